package utils

import (
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common/hexutil"
)

// DisplayDecimals is the number of fractional digits shown for native balances.
const DisplayDecimals = 4

var ErrEmptyQuantity = errors.New("empty hex quantity")

func TruncateString(str string, num int) string {
	if len(str) <= num {
		return str
	}
	if num <= 3 {
		return str[:num]
	}
	return str[0:num-3] + "..."
}

// ShortAddress renders 0x1234...abcd.
func ShortAddress(addr string) string {
	if len(addr) <= 12 {
		return addr
	}
	return addr[:6] + "..." + addr[len(addr)-4:]
}

func AddCommas(s string) string {
	if len(s) == 0 {
		return s
	}
	parts := strings.Split(s, ".")
	integerPart := parts[0]
	sign := ""
	if strings.HasPrefix(integerPart, "-") {
		sign = "-"
		integerPart = integerPart[1:]
	}

	n := len(integerPart)
	if n <= 3 {
		return s
	}

	var result strings.Builder
	result.WriteString(sign)
	remainder := n % 3
	if remainder > 0 {
		result.WriteString(integerPart[:remainder])
		result.WriteString(",")
	}
	for i := remainder; i < n; i += 3 {
		if i > remainder {
			result.WriteString(",")
		}
		result.WriteString(integerPart[i : i+3])
	}

	if len(parts) > 1 {
		result.WriteString(".")
		result.WriteString(parts[1])
	}
	return result.String()
}

// ParseHexQuantity decodes a 0x-prefixed hex quantity. Wallets are not
// consistent about leading zeros, so those are accepted.
func ParseHexQuantity(s string) (*big.Int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, ErrEmptyQuantity
	}
	v, err := hexutil.DecodeBig(s)
	if err == nil {
		return v, nil
	}
	if !errors.Is(err, hexutil.ErrLeadingZero) {
		return nil, fmt.Errorf("invalid hex quantity %q: %w", s, err)
	}
	v, ok := new(big.Int).SetString(s[2:], 16)
	if !ok {
		return nil, fmt.Errorf("invalid hex quantity %q", s)
	}
	return v, nil
}

// NormalizeChainID returns the canonical lower-case hex form of a chain id so
// "0x20D8" and "0x20d8" compare equal.
func NormalizeChainID(s string) (string, error) {
	v, err := ParseHexQuantity(s)
	if err != nil {
		return "", err
	}
	return hexutil.EncodeBig(v), nil
}

// FormatUnits scales a smallest-unit value down by 10^decimals and renders it
// with the given number of fractional digits, rounding half away from zero.
func FormatUnits(value *big.Int, decimals, places int) string {
	if value == nil {
		value = new(big.Int)
	}
	denom := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil)
	return new(big.Rat).SetFrac(value, denom).FloatString(places)
}

// FormatHexUnits is FormatUnits over a hex quantity as returned by eth_getBalance.
func FormatHexUnits(hexValue string, decimals int) (string, error) {
	v, err := ParseHexQuantity(hexValue)
	if err != nil {
		return "", err
	}
	return FormatUnits(v, decimals, DisplayDecimals), nil
}
