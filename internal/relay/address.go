package relay

import (
	"errors"
	"log/slog"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

var ErrEmptyAddress = errors.New("empty wallet address")

// NormalizeAddress canonicalizes a user-supplied wallet address into the
// lowercase form used as the registry key. A valid hex address goes through
// EIP-55 checksum canonicalization first, so every spelling of the same
// address yields the same key. Malformed but non-empty input falls back to
// plain lowercasing instead of being rejected: non-standard but consistent
// identifiers still route, at the cost of not catching typos.
func NormalizeAddress(raw string) (string, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", ErrEmptyAddress
	}
	if common.IsHexAddress(trimmed) {
		return strings.ToLower(common.HexToAddress(trimmed).Hex()), nil
	}
	slog.Warn("address_checksum_fallback",
		"address", trimmed,
	)
	return strings.ToLower(trimmed), nil
}
