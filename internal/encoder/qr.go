// Package encoder turns ticket payloads into scannable PNG images.
package encoder

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	qrcode "github.com/skip2/go-qrcode"
)

// ErrEncodingUnavailable wraps every failure to produce an image. Callers
// treat it as a degraded result, never as a reason to undo a write.
var ErrEncodingUnavailable = errors.New("credential encoding unavailable")

// Encoder converts a payload into image bytes.
type Encoder interface {
	Encode(payload string) ([]byte, error)
}

// QR renders PNG QR codes.
type QR struct {
	Size  int
	Level qrcode.RecoveryLevel
}

// NewQR returns a QR encoder. level is one of low, medium, high or highest;
// anything else selects medium.
func NewQR(size int, level string) *QR {
	if size <= 0 {
		size = 256
	}
	return &QR{Size: size, Level: ParseLevel(level)}
}

// ParseLevel maps a config string to a recovery level.
func ParseLevel(s string) qrcode.RecoveryLevel {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "low":
		return qrcode.Low
	case "high":
		return qrcode.High
	case "highest":
		return qrcode.Highest
	}
	return qrcode.Medium
}

// Encode implements Encoder.
func (q *QR) Encode(payload string) ([]byte, error) {
	if payload == "" {
		return nil, fmt.Errorf("%w: empty payload", ErrEncodingUnavailable)
	}
	png, err := qrcode.Encode(payload, q.Level, q.Size)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEncodingUnavailable, err)
	}
	return png, nil
}

// DataURI encodes payload with enc and returns it as a PNG data URI.
func DataURI(enc Encoder, payload string) (string, error) {
	if enc == nil {
		return "", fmt.Errorf("%w: no encoder configured", ErrEncodingUnavailable)
	}
	png, err := enc.Encode(payload)
	if err != nil {
		if !errors.Is(err, ErrEncodingUnavailable) {
			err = fmt.Errorf("%w: %v", ErrEncodingUnavailable, err)
		}
		return "", err
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(png), nil
}
