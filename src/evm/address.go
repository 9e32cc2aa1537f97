// Package evm holds the small slice of EVM plumbing the on-chain sources need: address
// checksums, ABI call encoding, unit conversion and a read-only JSON-RPC client.
package evm

import (
	"encoding/hex"
	"fmt"
	"strings"

	"golang.org/x/crypto/sha3"
)

// Keccak256 hashes data with the legacy Keccak padding Ethereum uses.
func Keccak256(data ...[]byte) []byte {
	h := sha3.NewLegacyKeccak256()
	for _, d := range data {
		h.Write(d)
	}
	return h.Sum(nil)
}

// IsAddress reports whether s is a 0x-prefixed 20-byte hex address.
func IsAddress(s string) bool {
	if len(s) != 42 || !has0x(s) {
		return false
	}
	_, err := hex.DecodeString(s[2:])
	return err == nil
}

// ChecksumAddress returns the EIP-55 mixed-case form of addr.
func ChecksumAddress(addr string) (string, error) {
	if !IsAddress(addr) {
		return "", fmt.Errorf("invalid address %q", addr)
	}
	lower := strings.ToLower(addr[2:])
	hash := hex.EncodeToString(Keccak256([]byte(lower)))

	out := make([]byte, 0, 42)
	out = append(out, '0', 'x')
	for i := 0; i < len(lower); i++ {
		c := lower[i]
		if c >= 'a' && c <= 'f' && hash[i] >= '8' {
			c -= 'a' - 'A'
		}
		out = append(out, c)
	}
	return string(out), nil
}

// AddressBytes decodes addr into its 20 raw bytes.
func AddressBytes(addr string) ([]byte, error) {
	if !IsAddress(addr) {
		return nil, fmt.Errorf("invalid address %q", addr)
	}
	return hex.DecodeString(addr[2:])
}

func has0x(s string) bool {
	return len(s) >= 2 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X')
}

// DecodeHex decodes 0x-prefixed (or bare) hex.
func DecodeHex(s string) ([]byte, error) {
	if has0x(s) {
		s = s[2:]
	}
	if len(s)%2 == 1 {
		s = "0" + s
	}
	return hex.DecodeString(s)
}

// EncodeHex renders b as 0x-prefixed hex.
func EncodeHex(b []byte) string {
	return "0x" + hex.EncodeToString(b)
}
