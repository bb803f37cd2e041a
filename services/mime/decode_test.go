package mime

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodePart(t *testing.T) {
	tests := []struct {
		name     string
		leaf     *Leaf
		raw      string
		expected string
	}{
		{
			name:     "base64",
			leaf:     &Leaf{MediaType: "text", SubType: "html", Encoding: "base64"},
			raw:      "PHA+SGVsbG8g\r\nPGI+d29ybGQ8L2I+PC9wPg==",
			expected: "<p>Hello <b>world</b></p>",
		},
		{
			name:     "quoted-printable soft breaks and escapes",
			leaf:     &Leaf{MediaType: "text", SubType: "plain", Encoding: "quoted-printable", Params: map[string]string{"charset": "utf-8"}},
			raw:      "Your return request =\r\nnumber is =3D 8891 caf=C3=A9",
			expected: "Your return request number is = 8891 café",
		},
		{
			name:     "7bit passthrough",
			leaf:     &Leaf{MediaType: "text", SubType: "plain", Encoding: "7bit"},
			raw:      "plain text",
			expected: "plain text",
		},
		{
			name:     "empty encoding is passthrough",
			leaf:     &Leaf{MediaType: "text", SubType: "plain"},
			raw:      "no header",
			expected: "no header",
		},
		{
			name:     "latin1 converted to utf-8",
			leaf:     &Leaf{MediaType: "text", SubType: "plain", Encoding: "8bit", Params: map[string]string{"charset": "iso-8859-1"}},
			raw:      "caf\xe9",
			expected: "café",
		},
		{
			name:     "unknown charset keeps bytes",
			leaf:     &Leaf{MediaType: "text", SubType: "plain", Encoding: "7bit", Params: map[string]string{"charset": "x-made-up"}},
			raw:      "hello",
			expected: "hello",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			text, err := DecodePart(tt.leaf, []byte(tt.raw))
			require.NoError(t, err)
			assert.Equal(t, tt.expected, text)
		})
	}
}

func TestDecodePart_UnknownEncoding(t *testing.T) {
	_, err := DecodePart(&Leaf{MediaType: "text", SubType: "plain", Encoding: "x-uuencode"}, []byte("begin 644"))
	assert.ErrorIs(t, err, ErrUnknownEncoding)
}

func TestDecodePart_StripsNulBytes(t *testing.T) {
	text, err := DecodePart(&Leaf{MediaType: "text", SubType: "plain", Encoding: "binary"}, []byte("a\x00b"))
	require.NoError(t, err)
	assert.Equal(t, "ab", text)
}

func TestDecodeAttachment(t *testing.T) {
	data, err := DecodeAttachment("BASE64", []byte("AAECAw==\r\n"))
	require.NoError(t, err)
	assert.Equal(t, []byte{0, 1, 2, 3}, data)

	data, err = DecodeAttachment("", []byte("a\x00b"))
	require.NoError(t, err)
	assert.Equal(t, []byte("a\x00b"), data)

	_, err = DecodeAttachment("x-uuencode", []byte("begin 644"))
	assert.ErrorIs(t, err, ErrUnknownEncoding)
}
