package wei

import (
	"math/big"
	"testing"
)

func TestParseEther(t *testing.T) {
	tests := []struct {
		name    string
		amount  string
		want    string // wei, decimal
		wantErr bool
	}{
		{"whole number", "1", "1000000000000000000", false},
		{"fraction", "1.5", "1500000000000000000", false},
		{"four fractional digits", "0.1234", "123400000000000000", false},
		{"zero", "0", "0", false},
		{"leading dot", ".5", "500000000000000000", false},
		{"eighteen digits", "0.000000000000000001", "1", false},
		{"too many digits", "0.0000000000000000001", "", true},
		{"negative", "-1", "", true},
		{"garbage", "1.2.3", "", true},
		{"empty", "", "", true},
		{"non numeric", "abc", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseEther(tt.amount)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseEther(%q) error = %v, wantErr %v", tt.amount, err, tt.wantErr)
			}
			if err != nil {
				return
			}
			want, _ := new(big.Int).SetString(tt.want, 10)
			if got.Cmp(want) != 0 {
				t.Errorf("ParseEther(%q) = %s, want %s", tt.amount, got, want)
			}
		})
	}
}

func TestFormatEther(t *testing.T) {
	tests := []struct {
		name string
		wei  string
		want string
	}{
		{"whole", "1000000000000000000", "1"},
		{"fraction", "1500000000000000000", "1.5"},
		{"trims trailing zeros", "123400000000000000", "0.1234"},
		{"zero", "0", "0"},
		{"one wei", "1", "0.000000000000000001"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, _ := new(big.Int).SetString(tt.wei, 10)
			if got := FormatEther(v); got != tt.want {
				t.Errorf("FormatEther(%s) = %q, want %q", tt.wei, got, tt.want)
			}
		})
	}
}

// Round-trip: parsing then formatting a decimal string with at most four
// fractional digits returns the original string.
func TestRoundTrip(t *testing.T) {
	for _, amount := range []string{"1", "1.5", "0.1234", "42", "1999.99", "0.0001"} {
		v, err := ParseEther(amount)
		if err != nil {
			t.Fatalf("ParseEther(%q) error = %v", amount, err)
		}
		if got := FormatEther(v); got != amount {
			t.Errorf("FormatEther(ParseEther(%q)) = %q", amount, got)
		}
	}
}
