package encoder

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"image/png"
	"strings"
	"testing"

	"github.com/makiuchi-d/gozxing"
	"github.com/makiuchi-d/gozxing/qrcode"
	"github.com/srwiley/oksvg"
	"github.com/srwiley/rasterx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// decode reads an artifact back with a standard QR reader. SVG output is
// rasterized first.
func decode(t *testing.T, a *Artifact) string {
	t.Helper()

	var img image.Image
	switch a.Format {
	case FormatPNG:
		var err error
		img, err = png.Decode(bytes.NewReader(a.Data))
		require.NoError(t, err)
	case FormatSVG:
		img = rasterizeSVG(t, a.Data)
	default:
		t.Fatalf("unknown format %q", a.Format)
	}

	return decodeImage(t, img, true)
}

// decodeBothWays checks that the finder-pattern detector agrees with the
// pure-barcode reader, so uneven module sizes cannot slip through.
func decodeBothWays(t *testing.T, a *Artifact) string {
	t.Helper()

	var img image.Image
	if a.Format == FormatPNG {
		var err error
		img, err = png.Decode(bytes.NewReader(a.Data))
		require.NoError(t, err)
	} else {
		img = rasterizeSVG(t, a.Data)
	}
	pure := decodeImage(t, img, true)
	assert.Equal(t, pure, decodeImage(t, img, false), "detector result differs")
	return pure
}

func decodeImage(t *testing.T, img image.Image, pure bool) string {
	t.Helper()
	bmp, err := gozxing.NewBinaryBitmapFromImage(img)
	require.NoError(t, err)
	var hints map[gozxing.DecodeHintType]interface{}
	if pure {
		hints = map[gozxing.DecodeHintType]interface{}{gozxing.DecodeHintType_PURE_BARCODE: true}
	}
	res, err := qrcode.NewQRCodeReader().Decode(bmp, hints)
	require.NoError(t, err)
	return res.GetText()
}

func rasterizeSVG(t *testing.T, data []byte) image.Image {
	t.Helper()
	icon, err := oksvg.ReadIconStream(bytes.NewReader(data), oksvg.IgnoreErrorMode)
	require.NoError(t, err)

	// 8 pixels per module keeps module edges on pixel boundaries.
	side := int(icon.ViewBox.W) * 8
	icon.SetTarget(0, 0, float64(side), float64(side))
	img := image.NewRGBA(image.Rect(0, 0, side, side))
	scanner := rasterx.NewScannerGV(side, side, img, img.Bounds())
	icon.Draw(rasterx.NewDasher(side, side, scanner), 1.0)
	return img
}

func TestEncodeScenarioGoogle(t *testing.T) {
	opts := Options{
		Level:  LevelMedium,
		Margin: 1,
		Width:  500,
		Color:  Colors{Dark: "#000000", Light: "#ffffff"},
		Format: FormatSVG,
	}

	a, err := Encode("google.com", opts)
	require.NoError(t, err)
	assert.Equal(t, FormatSVG, a.Format)
	assert.Equal(t, "google.com", a.Payload)
	assert.True(t, bytes.HasPrefix(a.Data, []byte("<svg ")))
	assert.Contains(t, string(a.Data), `width="500" height="500"`)
	assert.Equal(t, "google.com", decode(t, a))
}

func TestEncodeRoundTrip(t *testing.T) {
	payloads := []string{
		"google.com",
		"HELLO WORLD",
		"0123456789",
		"https://example.com/path?q=1&x=y",
	}
	levels := []Level{LevelLow, LevelMedium, LevelQuartile, LevelHigh}
	masks := []Mask{AutoMask(), FixedMask(0), FixedMask(3), FixedMask(7)}
	formats := []Format{FormatSVG, FormatPNG}

	for _, payload := range payloads {
		for _, level := range levels {
			for _, mask := range masks {
				for _, format := range formats {
					name := fmt.Sprintf("%s/%s/mask=%s/%s", payload, level, mask, format)
					t.Run(name, func(t *testing.T) {
						opts := DefaultOptions()
						opts.Level = level
						opts.Mask = mask
						opts.Format = format
						opts.Margin = 2
						opts.Color = Colors{Dark: "#1a237e", Light: "#fffde7"}

						a, err := Encode(payload, opts)
						require.NoError(t, err)
						if n, fixed := mask.Pattern(); fixed {
							assert.Equal(t, n, a.Mask)
						}
						assert.Equal(t, payload, decode(t, a))
					})
				}
			}
		}
	}
}

func TestEncodeRoundTripLargeVersions(t *testing.T) {
	cases := []struct {
		name       string
		payload    string
		level      Level
		minVersion int
	}{
		{"v8", strings.Repeat("x", 150), LevelMedium, 7},
		{"low-2000", strings.Repeat("a", 2000), LevelLow, 30},
		{"high-900", strings.Repeat("b", 900), LevelHigh, 30},
	}

	for _, tc := range cases {
		for _, format := range []Format{FormatSVG, FormatPNG} {
			for _, width := range []int{500, 700} {
				t.Run(fmt.Sprintf("%s/%s/w=%d", tc.name, format, width), func(t *testing.T) {
					opts := DefaultOptions()
					opts.Level = tc.level
					opts.Format = format
					opts.Width = width

					a, err := Encode(tc.payload, opts)
					require.NoError(t, err)
					assert.GreaterOrEqual(t, a.Version, tc.minVersion)
					if format == FormatPNG {
						cfg, err := png.DecodeConfig(bytes.NewReader(a.Data))
						require.NoError(t, err)
						assert.Equal(t, width, cfg.Width)
						assert.Equal(t, width, cfg.Height)
					}
					assert.Equal(t, tc.payload, decodeBothWays(t, a))
				})
			}
		}
	}
}

func TestEncodePNGModulesAreUniform(t *testing.T) {
	opts := DefaultOptions()
	opts.Format = FormatPNG
	opts.Margin = 0
	opts.Width = 500

	a, err := Encode(strings.Repeat("a", 2000), opts)
	require.NoError(t, err)
	img, err := png.Decode(bytes.NewReader(a.Data))
	require.NoError(t, err)

	// The top-left finder pattern is a run of seven dark modules, so its
	// first row must be seven whole modules wide.
	n := 4*a.Version + 17
	scale := 500 / n
	offset := (500 - n*scale) / 2
	isDark := func(x, y int) bool {
		r, _, _, _ := img.At(x, y).RGBA()
		return r < 0x8000
	}
	run := 0
	for x := offset; isDark(x, offset); x++ {
		run++
	}
	assert.Equal(t, 7*scale, run)
	assert.False(t, isDark(offset-1, offset), "padding must be light")
}

func TestEncodeDeterministic(t *testing.T) {
	for _, format := range []Format{FormatSVG, FormatPNG} {
		opts := DefaultOptions()
		opts.Format = format
		opts.Width = 300

		first, err := Encode("determinism check", opts)
		require.NoError(t, err)
		second, err := Encode("determinism check", opts)
		require.NoError(t, err)

		assert.Equal(t, first.Data, second.Data, format)
		assert.Equal(t, first.Mask, second.Mask, format)
	}
}

func TestEncodeInvalidPayload(t *testing.T) {
	_, err := Encode("", DefaultOptions())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidPayload))
	assert.Equal(t, "invalid_payload", Kind(err))
}

func TestEncodeInvalidOptions(t *testing.T) {
	tests := []struct {
		name  string
		mod   func(*Options)
		field string
	}{
		{"mask 8", func(o *Options) { o.Mask = FixedMask(8) }, "maskPattern"},
		{"mask -1", func(o *Options) { o.Mask = FixedMask(-1) }, "maskPattern"},
		{"margin -1", func(o *Options) { o.Margin = -1 }, "margin"},
		{"width -5", func(o *Options) { o.Width = -5 }, "width"},
		{"bad dark", func(o *Options) { o.Color.Dark = "black" }, "color.dark"},
		{"bad light", func(o *Options) { o.Color.Light = "#12345" }, "color.light"},
		{"non-hex light", func(o *Options) { o.Color.Light = "#gggggg" }, "color.light"},
		{"format", func(o *Options) { o.Format = "jpeg" }, "type"},
		{"level", func(o *Options) { o.Level = "extreme" }, "errorCorrectionLevel"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := DefaultOptions()
			tt.mod(&opts)

			_, err := Encode("google.com", opts)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidOption))

			var oe *OptionError
			require.True(t, errors.As(err, &oe))
			assert.Equal(t, tt.field, oe.Field)
			assert.Equal(t, err, opts.Validate())
		})
	}
}

func TestEncodeEmptyPayloadCheckedBeforeOptions(t *testing.T) {
	opts := DefaultOptions()
	opts.Margin = -1
	_, err := Encode("", opts)
	assert.True(t, errors.Is(err, ErrInvalidPayload))
}

func TestEncodeCapacity(t *testing.T) {
	payload := strings.Repeat("a", 2000)

	high := DefaultOptions()
	high.Level = LevelHigh
	_, err := Encode(payload, high)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrCapacityExceeded))
	var ce *CapacityError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, "byte", ce.Mode)
	assert.Equal(t, 2000, ce.Length)

	low := DefaultOptions()
	low.Level = LevelLow
	low.Format = FormatPNG
	low.Margin = 4
	a, err := Encode(payload, low)
	require.NoError(t, err)
	assert.Greater(t, a.Version, 30)
}

func TestEncodeIdenticalColorsIsNotAnError(t *testing.T) {
	opts := DefaultOptions()
	opts.Color = Colors{Dark: "#777", Light: "#777777"}
	_, err := Encode("unreadable", opts)
	assert.NoError(t, err)
}

func TestEncodePNGWidth(t *testing.T) {
	opts := DefaultOptions()
	opts.Format = FormatPNG
	opts.Width = 500
	a, err := Encode("google.com", opts)
	require.NoError(t, err)

	cfg, err := png.DecodeConfig(bytes.NewReader(a.Data))
	require.NoError(t, err)
	assert.Equal(t, 500, cfg.Width)
	assert.Equal(t, 500, cfg.Height)

	// Narrower than the symbol falls back to four pixels per module.
	opts.Width = 10
	opts.Margin = 0
	a, err = Encode("google.com", opts)
	require.NoError(t, err)
	cfg, err = png.DecodeConfig(bytes.NewReader(a.Data))
	require.NoError(t, err)
	assert.Equal(t, (4*a.Version+17)*4, cfg.Width)
}

func TestEncodeSVGOpacity(t *testing.T) {
	opts := DefaultOptions()
	opts.Color.Light = "#ffffff00"
	a, err := Encode("transparent", opts)
	require.NoError(t, err)
	assert.Contains(t, string(a.Data), `fill-opacity="0.000"`)
	assert.NotContains(t, string(a.Data), "width=")
}

func TestArtifactFilename(t *testing.T) {
	a := &Artifact{Index: 3, Format: FormatPNG}
	assert.Equal(t, "qrcode-3.png", a.Filename())
	assert.Equal(t, "image/png", a.ContentType())
}

func TestEncodeAllPartialFailure(t *testing.T) {
	opts := DefaultOptions()
	reqs := []Request{
		{Payload: "first", Options: opts},
		{Payload: "", Options: opts},
		{Payload: "third", Options: opts},
	}

	results := EncodeAll(context.Background(), reqs, 2)
	require.Len(t, results, 3)

	assert.True(t, results[0].OK())
	assert.Equal(t, 0, results[0].Artifact.Index)
	assert.Equal(t, "first", results[0].Artifact.Payload)

	assert.False(t, results[1].OK())
	assert.Equal(t, 1, results[1].Index)
	assert.True(t, errors.Is(results[1].Err, ErrInvalidPayload))

	assert.True(t, results[2].OK())
	assert.Equal(t, 2, results[2].Artifact.Index)
	assert.Equal(t, "third", results[2].Artifact.Payload)
	assert.Equal(t, "qrcode-2.svg", results[2].Artifact.Filename())

	arts := Artifacts(results)
	require.Len(t, arts, 2)
	assert.Equal(t, "first", arts[0].Payload)
	assert.Equal(t, "third", arts[1].Payload)
}

func TestEncodeAllPreservesOrder(t *testing.T) {
	payloads := make([]string, 40)
	for i := range payloads {
		payloads[i] = fmt.Sprintf("payload-%02d", i)
	}
	results := EncodeAll(context.Background(), Batch(payloads, DefaultOptions()), 0)
	require.Len(t, results, len(payloads))
	for i, r := range results {
		require.True(t, r.OK(), "slot %d", i)
		assert.Equal(t, i, r.Index)
		assert.Equal(t, payloads[i], r.Artifact.Payload)
	}
}

func TestEncodeAllCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	results := EncodeAll(ctx, Batch([]string{"a", "b"}, DefaultOptions()), 1)
	require.Len(t, results, 2)
	for _, r := range results {
		assert.ErrorIs(t, r.Err, context.Canceled)
		assert.Equal(t, "canceled", Kind(r.Err))
	}
}

func TestOptionsFromFormJSON(t *testing.T) {
	// Body shape posted by the browser form.
	body := `{"errorCorrectionLevel":"quartile","maskPattern":"5","margin":1,
		"color":{"dark":"#112233","light":"#ffffff"},"width":500,"type":"image/png"}`

	opts := DefaultOptions()
	require.NoError(t, json.Unmarshal([]byte(body), &opts))
	assert.Equal(t, LevelQuartile, opts.Level)
	n, fixed := opts.Mask.Pattern()
	assert.True(t, fixed)
	assert.Equal(t, 5, n)
	assert.Equal(t, FormatPNG, opts.Format)
	assert.Equal(t, 500, opts.Width)
	assert.NoError(t, opts.Validate())

	out, err := json.Marshal(opts)
	require.NoError(t, err)
	assert.Contains(t, string(out), `"maskPattern":5`)
}

func TestMaskJSON(t *testing.T) {
	var m Mask
	require.NoError(t, json.Unmarshal([]byte(`"auto"`), &m))
	assert.True(t, m.IsAuto())
	require.NoError(t, json.Unmarshal([]byte(`7`), &m))
	assert.Equal(t, "7", m.String())
	require.NoError(t, json.Unmarshal([]byte(`null`), &m))
	assert.True(t, m.IsAuto())
	assert.Error(t, json.Unmarshal([]byte(`"seven"`), &m))
}

func TestParseLevel(t *testing.T) {
	for in, want := range map[string]Level{"L": LevelLow, "medium": LevelMedium, " Q ": LevelQuartile, "HIGH": LevelHigh} {
		got, err := ParseLevel(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := ParseLevel("x")
	assert.ErrorIs(t, err, ErrInvalidOption)
}

func TestParseColor(t *testing.T) {
	c, err := ParseColor("#abc")
	require.NoError(t, err)
	assert.Equal(t, uint8(0xaa), c.R)
	assert.Equal(t, uint8(0xcc), c.B)
	assert.Equal(t, uint8(0xff), c.A)

	c, err = ParseColor("11223380")
	require.NoError(t, err)
	assert.Equal(t, uint8(0x80), c.A)

	for _, bad := range []string{"", "#", "#12", "#1234567", "#zzzzzz", "red"} {
		_, err := ParseColor(bad)
		assert.Error(t, err, bad)
	}
}

func TestRunPenalty(t *testing.T) {
	row := []bool{true, true, true, true, true, true, false, false}
	assert.Equal(t, penaltyRun+1, runPenalty(len(row), func(i int) bool { return row[i] }))
}

func TestBalancePenalty(t *testing.T) {
	cases := []struct {
		dark, total, want int
	}{
		{50, 100, 0},
		{545, 1000, 0},
		{455, 1000, 0}, // 4.5% below half is not yet a full step
		{450, 1000, penaltyBalance},
		{550, 1000, penaltyBalance},
		{399, 1000, 2 * penaltyBalance},
		{0, 100, 10 * penaltyBalance},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, balancePenalty(tc.dark, tc.total), "%d/%d", tc.dark, tc.total)
	}
}
