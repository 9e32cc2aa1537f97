package evm

import (
	"errors"
	"fmt"

	"github.com/holiman/uint256"
)

const word = 32

// Selector returns the 4-byte function selector of a canonical signature such as
// "balanceOf(address)".
func Selector(signature string) []byte {
	return Keccak256([]byte(signature))[:4]
}

// EncodeCall packs a selector followed by static 32-byte arguments.
func EncodeCall(signature string, args ...[]byte) []byte {
	out := make([]byte, 0, 4+len(args)*word)
	out = append(out, Selector(signature)...)
	for _, a := range args {
		out = append(out, a...)
	}
	return out
}

// AddressWord left-pads an address to one ABI word.
func AddressWord(addr string) ([]byte, error) {
	raw, err := AddressBytes(addr)
	if err != nil {
		return nil, err
	}
	out := make([]byte, word)
	copy(out[word-len(raw):], raw)
	return out, nil
}

// UintWord encodes v as one ABI word.
func UintWord(v *uint256.Int) []byte {
	b := v.Bytes32()
	return b[:]
}

// DecodeUint reads the first word of an ABI return value.
func DecodeUint(data []byte) (*uint256.Int, error) {
	if len(data) < word {
		return nil, fmt.Errorf("short uint256 return data: %d bytes", len(data))
	}
	return new(uint256.Int).SetBytes(data[:word]), nil
}

// DecodeString reads a dynamic string return value. Some legacy tokens return a
// bytes32 instead; that form is accepted too.
func DecodeString(data []byte) (string, error) {
	if len(data) == word {
		return string(trimZeros(data)), nil
	}
	if len(data) < 2*word {
		return "", errors.New("short string return data")
	}
	offset, err := wordToInt(data[:word])
	if err != nil {
		return "", err
	}
	if offset+word > len(data) {
		return "", errors.New("string offset out of range")
	}
	length, err := wordToInt(data[offset : offset+word])
	if err != nil {
		return "", err
	}
	start := offset + word
	if start+length > len(data) {
		return "", errors.New("string length out of range")
	}
	return string(data[start : start+length]), nil
}

func wordToInt(w []byte) (int, error) {
	v := new(uint256.Int).SetBytes(w)
	if !v.IsUint64() || v.Uint64() > 1<<31 {
		return 0, errors.New("abi offset too large")
	}
	return int(v.Uint64()), nil
}

func trimZeros(b []byte) []byte {
	end := len(b)
	for end > 0 && b[end-1] == 0 {
		end--
	}
	return b[:end]
}
