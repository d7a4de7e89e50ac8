package bytesize

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	cases := []struct {
		input string
		want  ByteSize
	}{
		{"0", 0},
		{"65536", 65536},
		{"64Ki", 64 * KiB},
		{"64KiB", 64 * KiB},
		{"1Mi", MiB},
		{"1.5Mi", MiB + 512*KiB},
		{"100KB", 100 * KB},
		{"2Gi", 2 * GiB},
		{" 32 Ki ", 32 * KiB},
		{"1mib", MiB},
	}
	for _, tc := range cases {
		t.Run(tc.input, func(t *testing.T) {
			got, err := Parse(tc.input)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestParseErrors(t *testing.T) {
	for _, input := range []string{"", "Ki", "12Xi", "-5Ki", "1..5Mi"} {
		t.Run(input, func(t *testing.T) {
			_, err := Parse(input)
			assert.Error(t, err)
		})
	}
}

func TestTextRoundTrip(t *testing.T) {
	var b ByteSize
	require.NoError(t, b.UnmarshalText([]byte("32Ki")))
	assert.Equal(t, 32*KiB, b)

	text, err := b.MarshalText()
	require.NoError(t, err)

	var back ByteSize
	require.NoError(t, back.UnmarshalText(text))
	assert.Equal(t, b, back)
}

func TestString(t *testing.T) {
	assert.Equal(t, "512B", ByteSize(512).String())
	assert.Equal(t, "32.00KiB", (32 * KiB).String())
	assert.Equal(t, "1.50MiB", (MiB + 512*KiB).String())
}
