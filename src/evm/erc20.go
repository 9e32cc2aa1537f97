package evm

import (
	"context"
	"fmt"

	"github.com/holiman/uint256"
)

// ERC20 reads and encodes calls for one token contract.
type ERC20 struct {
	Address string
	reader  Reader
}

// NewERC20 binds the token at address to reader.
func NewERC20(address string, reader Reader) (*ERC20, error) {
	sum, err := ChecksumAddress(address)
	if err != nil {
		return nil, fmt.Errorf("token: %w", err)
	}
	return &ERC20{Address: sum, reader: reader}, nil
}

func (t *ERC20) call(ctx context.Context, data []byte) ([]byte, error) {
	if t.reader == nil {
		return nil, fmt.Errorf("no chain reader configured")
	}
	return t.reader.CallContract(ctx, t.Address, data)
}

func (t *ERC20) uintCall(ctx context.Context, signature string, args ...[]byte) (*uint256.Int, error) {
	out, err := t.call(ctx, EncodeCall(signature, args...))
	if err != nil {
		return nil, err
	}
	return DecodeUint(out)
}

// BalanceOf returns owner's balance in base units.
func (t *ERC20) BalanceOf(ctx context.Context, owner string) (*uint256.Int, error) {
	w, err := AddressWord(owner)
	if err != nil {
		return nil, err
	}
	return t.uintCall(ctx, "balanceOf(address)", w)
}

// TotalSupply returns the token supply in base units.
func (t *ERC20) TotalSupply(ctx context.Context) (*uint256.Int, error) {
	return t.uintCall(ctx, "totalSupply()")
}

// Allowance returns how much spender may move on owner's behalf.
func (t *ERC20) Allowance(ctx context.Context, owner, spender string) (*uint256.Int, error) {
	o, err := AddressWord(owner)
	if err != nil {
		return nil, err
	}
	s, err := AddressWord(spender)
	if err != nil {
		return nil, err
	}
	return t.uintCall(ctx, "allowance(address,address)", o, s)
}

// Decimals reads the token's decimals.
func (t *ERC20) Decimals(ctx context.Context) (uint8, error) {
	v, err := t.uintCall(ctx, "decimals()")
	if err != nil {
		return 0, err
	}
	if !v.IsUint64() || v.Uint64() > 255 {
		return 0, fmt.Errorf("decimals out of range: %s", v.Dec())
	}
	return uint8(v.Uint64()), nil
}

// Symbol reads the token's symbol.
func (t *ERC20) Symbol(ctx context.Context) (string, error) {
	out, err := t.call(ctx, EncodeCall("symbol()"))
	if err != nil {
		return "", err
	}
	return DecodeString(out)
}

// TransferData encodes transfer(to, amount).
func TransferData(to string, amount *uint256.Int) ([]byte, error) {
	w, err := AddressWord(to)
	if err != nil {
		return nil, err
	}
	return EncodeCall("transfer(address,uint256)", w, UintWord(amount)), nil
}

// ApproveData encodes approve(spender, amount).
func ApproveData(spender string, amount *uint256.Int) ([]byte, error) {
	w, err := AddressWord(spender)
	if err != nil {
		return nil, err
	}
	return EncodeCall("approve(address,uint256)", w, UintWord(amount)), nil
}
