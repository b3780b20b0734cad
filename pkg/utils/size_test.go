package utils

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDataSize(t *testing.T) {
	tests := []struct {
		input    string
		expected int64
		wantErr  bool
	}{
		{"0", 0, false},
		{"4096", 4096, false},
		{"100B", 100, false},
		{"1KB", 1000, false},
		{"1K", 1000, false},
		{"1Ki", KiB, false},
		{"1.5KiB", 1536, false},
		{"2MiB", 2 * MiB, false},
		{"2M", 2000000, false},
		{"3GB", 3000000000, false},
		{"3GiB", 3 * GiB, false},
		{"3 gib", 3 * GiB, false},
		{" 1.5G ", 1500000000, false},
		{"1,024KiB", MiB, false},
		{"", 0, true},
		{"MB", 0, true},
		{"12XB", 0, true},
		{"1.2.3MB", 0, true},
		{"99999999999TiB", 0, true},
		{"9EiB", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseDataSize(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestFormatDataSize(t *testing.T) {
	assert.Equal(t, "7 B", FormatDataSize(7))
	assert.Equal(t, "512 B", FormatDataSize(512))
	assert.Equal(t, "1.0 KiB", FormatDataSize(KiB))
	assert.Equal(t, "2.0 MiB", FormatDataSize(2*MiB))
	assert.Equal(t, "1.5 GiB", FormatDataSize(GiB+GiB/2))
	assert.Equal(t, "20 GiB", FormatDataSize(20*GiB))
	assert.Equal(t, "invalid", FormatDataSize(-1))
}

func TestByteSizeJSON(t *testing.T) {
	var cfg struct {
		Chunk ByteSize `json:"chunk"`
		Max   ByteSize `json:"max"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"chunk": 2097152, "max": "3GiB"}`), &cfg))
	assert.Equal(t, ByteSize(2*MiB), cfg.Chunk)
	assert.Equal(t, ByteSize(3*GiB), cfg.Max)

	assert.Error(t, json.Unmarshal([]byte(`{"chunk": true}`), &cfg))
	assert.Error(t, json.Unmarshal([]byte(`{"chunk": "lots"}`), &cfg))

	out, err := json.Marshal(ByteSize(MiB))
	require.NoError(t, err)
	assert.Equal(t, "1048576", string(out))
}
