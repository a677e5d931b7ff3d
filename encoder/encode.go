// Package encoder turns text payloads into QR code images.
//
// Symbol construction (data encoding, Reed-Solomon blocks, module placement
// and masking) is done by rsc.io/qr/coding. This package validates options,
// picks the smallest version that fits, selects a mask, and renders the
// module grid as SVG or PNG. Encode is a pure function: the same payload
// and options always produce the same bytes.
package encoder

import (
	"fmt"

	"rsc.io/qr/coding"
)

// Request pairs a payload with the options to encode it with.
type Request struct {
	Payload string
	Options Options
}

// Artifact is one encoded image.
type Artifact struct {
	Payload string // the text the image decodes to
	Index   int    // position of the originating request in a batch
	Format  Format
	Data    []byte // SVG markup or PNG bytes
	Version int    // QR version, 1-40
	Mask    int    // mask pattern actually applied
}

// Filename returns the archive entry name, e.g. "qrcode-0.svg".
func (a *Artifact) Filename() string {
	return fmt.Sprintf("qrcode-%d.%s", a.Index, a.Format.Extension())
}

// ContentType returns the MIME type of Data.
func (a *Artifact) ContentType() string {
	return a.Format.ContentType()
}

// Encode renders payload as a QR code image.
//
// Errors wrap ErrInvalidPayload for an empty payload, ErrInvalidOption for
// a rejected option (as *OptionError), and ErrCapacityExceeded when the
// payload is too long for the requested level (as *CapacityError).
func Encode(payload string, opts Options) (*Artifact, error) {
	if payload == "" {
		return nil, fmt.Errorf("%w: payload is empty", ErrInvalidPayload)
	}
	r, err := opts.compile()
	if err != nil {
		return nil, err
	}

	code, plan, err := buildSymbol(payload, opts.Level, r)
	if err != nil {
		return nil, err
	}

	var data []byte
	switch r.format {
	case FormatPNG:
		data, err = renderPNG(code, r)
	default:
		data = renderSVG(code, r)
	}
	if err != nil {
		return nil, fmt.Errorf("render %s: %w", r.format, err)
	}

	return &Artifact{
		Payload: payload,
		Format:  r.format,
		Data:    data,
		Version: int(plan.Version),
		Mask:    int(plan.Mask),
	}, nil
}

// EncodeRequest is Encode(req.Payload, req.Options).
func EncodeRequest(req Request) (*Artifact, error) {
	return Encode(req.Payload, req.Options)
}

// buildSymbol picks the data mode and the smallest fitting version, then
// encodes with the pinned mask or the lowest-penalty one.
func buildSymbol(payload string, level Level, r rendering) (*coding.Code, *coding.Plan, error) {
	enc, mode := selectEncoding(payload)
	version, ok := fitVersion(enc, r.level)
	if !ok {
		return nil, nil, &CapacityError{Level: level, Mode: mode, Length: len(payload)}
	}

	if n, fixed := r.mask.Pattern(); fixed {
		return encodeWithMask(enc, version, r.level, coding.Mask(n))
	}

	var (
		bestCode  *coding.Code
		bestPlan  *coding.Plan
		bestScore = -1
	)
	for m := coding.Mask(0); m < 8; m++ {
		code, plan, err := encodeWithMask(enc, version, r.level, m)
		if err != nil {
			return nil, nil, err
		}
		if score := penalty(code); bestScore < 0 || score < bestScore {
			bestCode, bestPlan, bestScore = code, plan, score
		}
	}
	return bestCode, bestPlan, nil
}

func encodeWithMask(enc coding.Encoding, v coding.Version, l coding.Level, m coding.Mask) (*coding.Code, *coding.Plan, error) {
	plan, err := coding.NewPlan(v, l, m)
	if err != nil {
		return nil, nil, fmt.Errorf("plan version %d mask %d: %w", v, m, err)
	}
	code, err := plan.Encode(enc)
	if err != nil {
		return nil, nil, fmt.Errorf("encode version %d mask %d: %w", v, m, err)
	}
	return code, plan, nil
}

// selectEncoding returns the most compact single-mode encoding for payload.
func selectEncoding(payload string) (coding.Encoding, string) {
	switch {
	case coding.Num(payload).Check() == nil:
		return coding.Num(payload), "numeric"
	case coding.Alpha(payload).Check() == nil:
		return coding.Alpha(payload), "alphanumeric"
	default:
		return coding.String(payload), "byte"
	}
}

func fitVersion(enc coding.Encoding, l coding.Level) (coding.Version, bool) {
	for v := coding.Version(coding.MinVersion); v <= coding.MaxVersion; v++ {
		if enc.Bits(v) <= v.DataBytes(l)*8 {
			return v, true
		}
	}
	return 0, false
}
