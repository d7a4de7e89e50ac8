// Package bytesize parses human-readable sizes for transfer tuning
// knobs, so a config can say "64Ki" instead of 65536.
package bytesize

import (
	"fmt"
	"strconv"
	"strings"
)

// ByteSize is a size in bytes. It unmarshals from plain numbers
// ("65536"), binary units ("64Ki", "1MiB", x1024) and decimal units
// ("100KB", x1000).
type ByteSize uint64

const (
	B  ByteSize = 1
	KB ByteSize = 1000
	MB ByteSize = 1000 * KB
	GB ByteSize = 1000 * MB

	KiB ByteSize = 1024
	MiB ByteSize = 1024 * KiB
	GiB ByteSize = 1024 * MiB
)

var multipliers = map[string]ByteSize{
	"":    B,
	"b":   B,
	"k":   KB,
	"kb":  KB,
	"m":   MB,
	"mb":  MB,
	"g":   GB,
	"gb":  GB,
	"ki":  KiB,
	"kib": KiB,
	"mi":  MiB,
	"mib": MiB,
	"gi":  GiB,
	"gib": GiB,
}

// Parse parses a byte size string. The numeric part may be fractional
// ("1.5Mi"); the result is truncated to whole bytes.
func Parse(s string) (ByteSize, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty byte size")
	}

	split := len(s)
	for split > 0 {
		c := s[split-1]
		if c >= '0' && c <= '9' || c == '.' {
			break
		}
		split--
	}
	num := strings.TrimSpace(s[:split])
	unit := strings.ToLower(strings.TrimSpace(s[split:]))

	mult, ok := multipliers[unit]
	if !ok {
		return 0, fmt.Errorf("unknown byte size unit %q in %q", unit, s)
	}

	if strings.Contains(num, ".") {
		f, err := strconv.ParseFloat(num, 64)
		if err != nil || f < 0 {
			return 0, fmt.Errorf("invalid byte size %q", s)
		}
		return ByteSize(f * float64(mult)), nil
	}

	n, err := strconv.ParseUint(num, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid byte size %q", s)
	}
	return ByteSize(n) * mult, nil
}

// UnmarshalText implements encoding.TextUnmarshaler so ByteSize fields
// decode straight from config values.
func (b *ByteSize) UnmarshalText(text []byte) error {
	size, err := Parse(string(text))
	if err != nil {
		return err
	}
	*b = size
	return nil
}

// String renders the size with the largest binary unit that divides it
// cleanly enough to stay readable.
func (b ByteSize) String() string {
	switch {
	case b >= GiB:
		return fmt.Sprintf("%.2fGiB", float64(b)/float64(GiB))
	case b >= MiB:
		return fmt.Sprintf("%.2fMiB", float64(b)/float64(MiB))
	case b >= KiB:
		return fmt.Sprintf("%.2fKiB", float64(b)/float64(KiB))
	default:
		return fmt.Sprintf("%dB", b)
	}
}

// MarshalText implements encoding.TextMarshaler for config output.
func (b ByteSize) MarshalText() ([]byte, error) {
	return []byte(b.String()), nil
}

// Uint64 returns the size as a plain uint64.
func (b ByteSize) Uint64() uint64 {
	return uint64(b)
}
