package model

import (
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// NormalizePoolKey folds a pool identifier to its canonical casing.
// Hex addresses are round-tripped through common.HexToAddress so that
// shortened or oddly-cased forms collapse to the same key; anything
// else is lowercased as-is.
func NormalizePoolKey(key string) string {
	key = strings.TrimSpace(key)
	if common.IsHexAddress(key) {
		return strings.ToLower(common.HexToAddress(key).Hex())
	}
	return strings.ToLower(key)
}
