package evm

import (
	"context"
	"fmt"

	"github.com/holiman/uint256"
)

// DefaultAddress is the wallet address used when none is configured.
const DefaultAddress = "0x742d35Cc6634C0532925a3b844Bc454e4438f44e"

// PreparedTx is an unsigned transaction left for the caller to sign and send.
type PreparedTx struct {
	From    string `json:"from"`
	To      string `json:"to"`
	Data    string `json:"data"`
	Value   string `json:"value"`
	ChainID uint64 `json:"chainId"`
}

// Wallet is a read-only view of one account. It never holds keys, so writes are
// returned as PreparedTx values.
type Wallet struct {
	address string
	chainID uint64
	reader  Reader
}

// NewWallet builds a read-only wallet for address on chainID.
func NewWallet(address string, chainID uint64, reader Reader) (*Wallet, error) {
	sum, err := ChecksumAddress(address)
	if err != nil {
		return nil, fmt.Errorf("wallet: %w", err)
	}
	if chainID == 0 {
		chainID = 1
	}
	return &Wallet{address: sum, chainID: chainID, reader: reader}, nil
}

func (w *Wallet) Address() string { return w.address }

func (w *Wallet) ChainID() uint64 { return w.chainID }

func (w *Wallet) Reader() Reader { return w.reader }

// Balance returns the wallet's native balance in wei.
func (w *Wallet) Balance(ctx context.Context) (*uint256.Int, error) {
	if w.reader == nil {
		return nil, fmt.Errorf("wallet has no chain reader")
	}
	return w.reader.Balance(ctx, w.address)
}

// Prepare builds an unsigned transaction from the wallet.
func (w *Wallet) Prepare(to string, data []byte, value *uint256.Int) PreparedTx {
	if value == nil {
		value = new(uint256.Int)
	}
	return PreparedTx{
		From:    w.address,
		To:      to,
		Data:    EncodeHex(data),
		Value:   value.Dec(),
		ChainID: w.chainID,
	}
}
