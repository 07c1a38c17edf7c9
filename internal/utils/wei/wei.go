// Package wei converts between human decimal token amounts and
// smallest-unit integers. Prices cross the HTTP boundary as decimal
// strings and live everywhere else as *big.Int wei values.
package wei

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/params"
)

const decimals = 18

// ParseEther converts a decimal string like "1.5" into wei.
func ParseEther(amount string) (*big.Int, error) {
	amount = strings.TrimSpace(amount)
	if amount == "" {
		return nil, fmt.Errorf("empty amount")
	}
	if strings.HasPrefix(amount, "-") {
		return nil, fmt.Errorf("negative amount %q", amount)
	}

	intPart := amount
	fracPart := ""
	if i := strings.IndexByte(amount, '.'); i >= 0 {
		intPart, fracPart = amount[:i], amount[i+1:]
	}
	if intPart == "" {
		intPart = "0"
	}
	if len(fracPart) > decimals {
		return nil, fmt.Errorf("amount %q has more than %d fractional digits", amount, decimals)
	}

	whole, ok := new(big.Int).SetString(intPart, 10)
	if !ok {
		return nil, fmt.Errorf("invalid amount %q", amount)
	}
	whole.Mul(whole, big.NewInt(params.Ether))

	if fracPart != "" {
		frac, ok := new(big.Int).SetString(fracPart, 10)
		if !ok {
			return nil, fmt.Errorf("invalid amount %q", amount)
		}
		scale := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals-len(fracPart))), nil)
		whole.Add(whole, frac.Mul(frac, scale))
	}

	return whole, nil
}

// FormatEther renders wei as a decimal string with trailing zeros trimmed.
func FormatEther(amount *big.Int) string {
	if amount == nil {
		return "0"
	}
	if amount.Sign() < 0 {
		return "-" + FormatEther(new(big.Int).Neg(amount))
	}

	quo, rem := new(big.Int).QuoRem(amount, big.NewInt(params.Ether), new(big.Int))
	if rem.Sign() == 0 {
		return quo.String()
	}

	frac := strings.TrimRight(fmt.Sprintf("%018s", rem.String()), "0")
	return quo.String() + "." + frac
}

// MustParseEther parses a trusted decimal amount and panics on failure.
// Reserved for constants and tests.
func MustParseEther(amount string) *big.Int {
	v, err := ParseEther(amount)
	if err != nil {
		panic(err)
	}
	return v
}
