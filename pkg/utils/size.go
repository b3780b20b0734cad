package utils

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"github.com/dustin/go-humanize"
)

const (
	KiB int64 = 1 << 10
	MiB int64 = 1 << 20
	GiB int64 = 1 << 30
	TiB int64 = 1 << 40
)

// ParseDataSize parses sizes such as "3GB", "2MiB", "1.5G" or "4096".
// Units follow go-humanize: SI suffixes (K, KB, M, MB, ...) are 1000-based
// and IEC suffixes (Ki, KiB, Mi, MiB, ...) are 1024-based.
func ParseDataSize(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty size string")
	}
	n, err := humanize.ParseBytes(s)
	if err != nil {
		return 0, fmt.Errorf("invalid size %q: %w", s, err)
	}
	if n > math.MaxInt64 {
		return 0, fmt.Errorf("invalid size %q: overflows int64", s)
	}
	return int64(n), nil
}

// FormatDataSize renders bytes with binary units, e.g. "512 B", "2.0 MiB" or "20 GiB".
func FormatDataSize(bytes int64) string {
	if bytes < 0 {
		return "invalid"
	}
	return humanize.IBytes(uint64(bytes))
}

// ByteSize is an int64 byte count that decodes from either a JSON number or
// a human-friendly string.
type ByteSize int64

func (b *ByteSize) UnmarshalJSON(data []byte) error {
	var raw interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	switch v := raw.(type) {
	case float64:
		*b = ByteSize(v)
	case string:
		n, err := ParseDataSize(v)
		if err != nil {
			return err
		}
		*b = ByteSize(n)
	case nil:
		*b = 0
	default:
		return fmt.Errorf("size must be a number or string, got %T", v)
	}
	return nil
}

func (b ByteSize) MarshalJSON() ([]byte, error) {
	return json.Marshal(int64(b))
}

func (b ByteSize) String() string {
	return FormatDataSize(int64(b))
}
