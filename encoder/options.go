package encoder

import (
	"encoding/json"
	"fmt"
	"image/color"
	"strconv"
	"strings"

	"rsc.io/qr/coding"
)

// Level is the error-correction level of a QR symbol.
type Level string

const (
	LevelLow      Level = "low"      // ~7% recovery
	LevelMedium   Level = "medium"   // ~15% recovery
	LevelQuartile Level = "quartile" // ~25% recovery
	LevelHigh     Level = "high"     // ~30% recovery
)

// ParseLevel accepts the long names as well as the single-letter forms
// L, M, Q and H, case-insensitively.
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "low", "l":
		return LevelLow, nil
	case "medium", "m":
		return LevelMedium, nil
	case "quartile", "q":
		return LevelQuartile, nil
	case "high", "h":
		return LevelHigh, nil
	}
	return "", &OptionError{Field: "errorCorrectionLevel", Value: s, Reason: "must be one of low, medium, quartile, high"}
}

// UnmarshalJSON lets clients send any spelling ParseLevel understands.
func (l *Level) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return &OptionError{Field: "errorCorrectionLevel", Value: string(b), Reason: "must be a string"}
	}
	parsed, err := ParseLevel(s)
	if err != nil {
		return err
	}
	*l = parsed
	return nil
}

func (l Level) coding() (coding.Level, bool) {
	switch l {
	case LevelLow:
		return coding.L, true
	case LevelMedium:
		return coding.M, true
	case LevelQuartile:
		return coding.Q, true
	case LevelHigh:
		return coding.H, true
	}
	return 0, false
}

// Mask selects the data mask pattern. The zero value is automatic
// selection; FixedMask pins one of the eight patterns.
type Mask struct {
	pattern int
	fixed   bool
}

// AutoMask returns the automatic mask selection.
func AutoMask() Mask { return Mask{} }

// FixedMask returns a mask pinned to pattern n. Out-of-range values are
// accepted here and rejected by Options.Validate.
func FixedMask(n int) Mask { return Mask{pattern: n, fixed: true} }

// IsAuto reports whether the encoder picks the mask.
func (m Mask) IsAuto() bool { return !m.fixed }

// Pattern returns the pinned pattern number and whether one is pinned.
func (m Mask) Pattern() (int, bool) { return m.pattern, m.fixed }

func (m Mask) String() string {
	if !m.fixed {
		return "auto"
	}
	return strconv.Itoa(m.pattern)
}

// ParseMask accepts "auto" (or an empty string) and decimal integers.
func ParseMask(s string) (Mask, error) {
	s = strings.TrimSpace(s)
	if s == "" || strings.EqualFold(s, "auto") {
		return AutoMask(), nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return Mask{}, &OptionError{Field: "maskPattern", Value: s, Reason: `must be an integer 0-7 or "auto"`}
	}
	return FixedMask(n), nil
}

// MarshalJSON writes "auto" or the pattern number.
func (m Mask) MarshalJSON() ([]byte, error) {
	if !m.fixed {
		return []byte(`"auto"`), nil
	}
	return []byte(strconv.Itoa(m.pattern)), nil
}

// UnmarshalJSON accepts null, a number, or a string such as "3" or "auto".
// The browser form sends the pattern as a string.
func (m *Mask) UnmarshalJSON(b []byte) error {
	raw := strings.TrimSpace(string(b))
	if raw == "null" {
		*m = AutoMask()
		return nil
	}
	if strings.HasPrefix(raw, `"`) {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		parsed, err := ParseMask(s)
		if err != nil {
			return err
		}
		*m = parsed
		return nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return &OptionError{Field: "maskPattern", Value: raw, Reason: `must be an integer 0-7 or "auto"`}
	}
	*m = FixedMask(n)
	return nil
}

// Format is the output image format.
type Format string

const (
	FormatSVG Format = "svg"
	FormatPNG Format = "png"
)

// ParseFormat maps format names and MIME types onto a Format. "raster" is an
// alias for png.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "svg", "image/svg+xml":
		return FormatSVG, nil
	case "png", "raster", "image/png":
		return FormatPNG, nil
	}
	return "", &OptionError{Field: "type", Value: s, Reason: "unsupported output format, want svg or png"}
}

// UnmarshalJSON lets clients send any spelling ParseFormat understands.
func (f *Format) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return &OptionError{Field: "type", Value: string(b), Reason: "must be a string"}
	}
	parsed, err := ParseFormat(s)
	if err != nil {
		return err
	}
	*f = parsed
	return nil
}

// Extension returns the file extension without a dot.
func (f Format) Extension() string { return string(f) }

// ContentType returns the MIME type of the format.
func (f Format) ContentType() string {
	if f == FormatPNG {
		return "image/png"
	}
	return "image/svg+xml"
}

// Colors holds the module colours as CSS-style hex strings.
type Colors struct {
	Dark  string `json:"dark"`
	Light string `json:"light"`
}

// Options controls how a payload is turned into an image. Use DefaultOptions
// as the starting point; the zero value does not validate.
type Options struct {
	Level  Level  `json:"errorCorrectionLevel"`
	Mask   Mask   `json:"maskPattern"`
	Margin int    `json:"margin"`          // quiet zone, in modules
	Width  int    `json:"width,omitempty"` // output width in pixels, 0 = unset
	Color  Colors `json:"color"`
	Format Format `json:"type"`
}

// DefaultOptions returns medium error correction, automatic masking, a
// 4-module quiet zone, black on white, as SVG.
func DefaultOptions() Options {
	return Options{
		Level:  LevelMedium,
		Mask:   AutoMask(),
		Margin: 4,
		Color:  Colors{Dark: "#000000", Light: "#ffffff"},
		Format: FormatSVG,
	}
}

// Validate checks every field and returns the first *OptionError found.
func (o Options) Validate() error {
	_, err := o.compile()
	return err
}

// rendering is a validated, resolved form of Options.
type rendering struct {
	level  coding.Level
	mask   Mask
	margin int
	width  int
	dark   color.NRGBA
	light  color.NRGBA
	format Format
}

func (o Options) compile() (rendering, error) {
	lvl, ok := o.Level.coding()
	if !ok {
		return rendering{}, &OptionError{Field: "errorCorrectionLevel", Value: string(o.Level), Reason: "must be one of low, medium, quartile, high"}
	}
	if n, fixed := o.Mask.Pattern(); fixed && (n < 0 || n > 7) {
		return rendering{}, &OptionError{Field: "maskPattern", Value: n, Reason: "must be in [0,7]"}
	}
	if o.Margin < 0 {
		return rendering{}, &OptionError{Field: "margin", Value: o.Margin, Reason: "must not be negative"}
	}
	if o.Width < 0 {
		return rendering{}, &OptionError{Field: "width", Value: o.Width, Reason: "must be positive when set"}
	}
	dark, err := ParseColor(o.Color.Dark)
	if err != nil {
		return rendering{}, &OptionError{Field: "color.dark", Value: o.Color.Dark, Reason: err.Error()}
	}
	light, err := ParseColor(o.Color.Light)
	if err != nil {
		return rendering{}, &OptionError{Field: "color.light", Value: o.Color.Light, Reason: err.Error()}
	}
	if o.Format != FormatSVG && o.Format != FormatPNG {
		return rendering{}, &OptionError{Field: "type", Value: string(o.Format), Reason: "unsupported output format, want svg or png"}
	}
	return rendering{
		level:  lvl,
		mask:   o.Mask,
		margin: o.Margin,
		width:  o.Width,
		dark:   dark,
		light:  light,
		format: o.Format,
	}, nil
}

// ParseColor parses #rgb, #rgba, #rrggbb and #rrggbbaa hex colours. The
// leading '#' is optional.
func ParseColor(s string) (color.NRGBA, error) {
	hex := strings.TrimPrefix(strings.TrimSpace(s), "#")
	switch len(hex) {
	case 3, 4:
		var expanded strings.Builder
		for _, r := range hex {
			expanded.WriteRune(r)
			expanded.WriteRune(r)
		}
		hex = expanded.String()
	case 6, 8:
	default:
		return color.NRGBA{}, fmt.Errorf("malformed colour %q", s)
	}
	if len(hex) == 6 {
		hex += "ff"
	}
	v, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return color.NRGBA{}, fmt.Errorf("malformed colour %q", s)
	}
	return color.NRGBA{R: uint8(v >> 24), G: uint8(v >> 16), B: uint8(v >> 8), A: uint8(v)}, nil
}
