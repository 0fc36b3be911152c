package ledger

import (
	"fmt"
	"strconv"
	"strings"
)

// encodeQuantity renders n as a JSON-RPC hex quantity.
func encodeQuantity(n uint64) string {
	return "0x" + strconv.FormatUint(n, 16)
}

// parseQuantity parses a JSON-RPC hex quantity ("0x1a").
func parseQuantity(s string) (uint64, error) {
	if !strings.HasPrefix(s, "0x") && !strings.HasPrefix(s, "0X") {
		return 0, fmt.Errorf("quantity %q: missing 0x prefix", s)
	}
	if len(s) == 2 {
		return 0, fmt.Errorf("quantity %q: empty", s)
	}
	n, err := strconv.ParseUint(s[2:], 16, 64)
	if err != nil {
		return 0, fmt.Errorf("quantity %q: %w", s, err)
	}
	return n, nil
}
