package service

import (
	"fmt"

	"github.com/skip2/go-qrcode"

	"github.com/openclaw/qrbatch/encoder"
)

var previewLevels = map[encoder.Level]qrcode.RecoveryLevel{
	encoder.LevelLow:      qrcode.Low,
	encoder.LevelMedium:   qrcode.Medium,
	encoder.LevelQuartile: qrcode.High,
	encoder.LevelHigh:     qrcode.Highest,
}

// TerminalPreview renders text as a QR code made of half-block characters,
// for printing to a terminal.
func TerminalPreview(text string, level encoder.Level) (string, error) {
	if text == "" {
		return "", fmt.Errorf("%w: payload is empty", encoder.ErrInvalidPayload)
	}
	lvl, ok := previewLevels[level]
	if !ok {
		return "", &encoder.OptionError{Field: "errorCorrectionLevel", Value: string(level), Reason: "must be one of low, medium, quartile, high"}
	}
	q, err := qrcode.New(text, lvl)
	if err != nil {
		return "", fmt.Errorf("%w: %v", encoder.ErrCapacityExceeded, err)
	}
	return q.ToSmallString(false), nil
}
