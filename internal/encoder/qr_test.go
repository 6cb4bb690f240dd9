package encoder

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	qrcode "github.com/skip2/go-qrcode"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var pngMagic = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'}

func TestQREncodeProducesPNG(t *testing.T) {
	q := NewQR(128, "high")
	png, err := q.Encode("6f1c2a0e-4b7d-4c55-9a43-1d2e3f405162")
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(png, pngMagic))
}

func TestQREncodeEmptyPayload(t *testing.T) {
	_, err := NewQR(0, "").Encode("")
	assert.ErrorIs(t, err, ErrEncodingUnavailable)
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, qrcode.Low, ParseLevel("LOW"))
	assert.Equal(t, qrcode.Highest, ParseLevel(" highest "))
	assert.Equal(t, qrcode.Medium, ParseLevel("bogus"))
}

type brokenEncoder struct{}

func (brokenEncoder) Encode(string) ([]byte, error) { return nil, errors.New("boom") }

func TestDataURI(t *testing.T) {
	uri, err := DataURI(NewQR(64, "low"), "abc")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(uri, "data:image/png;base64,"))

	_, err = DataURI(brokenEncoder{}, "abc")
	assert.ErrorIs(t, err, ErrEncodingUnavailable)

	_, err = DataURI(nil, "abc")
	assert.ErrorIs(t, err, ErrEncodingUnavailable)
}
