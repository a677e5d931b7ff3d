package encoder

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"strconv"

	"rsc.io/qr/coding"
)

// defaultScale is the pixels per module used when no width is requested or
// the requested width is smaller than the symbol.
const defaultScale = 4

// renderSVG emits one background path and one path made of horizontal runs
// of dark modules. The viewBox is in module units.
func renderSVG(c *coding.Code, r rendering) []byte {
	n := c.Size + 2*r.margin

	var b bytes.Buffer
	b.WriteString(`<svg xmlns="http://www.w3.org/2000/svg"`)
	if r.width > 0 {
		fmt.Fprintf(&b, ` width="%d" height="%d"`, r.width, r.width)
	}
	fmt.Fprintf(&b, ` viewBox="0 0 %d %d" shape-rendering="crispEdges">`, n, n)
	fmt.Fprintf(&b, `<path fill="%s"%s d="M0 0h%dv%dH0z"/>`, hexRGB(r.light), opacityAttr(r.light), n, n)

	fmt.Fprintf(&b, `<path fill="%s"%s d="`, hexRGB(r.dark), opacityAttr(r.dark))
	for y := 0; y < c.Size; y++ {
		for x := 0; x < c.Size; {
			if !c.Black(x, y) {
				x++
				continue
			}
			start := x
			for x < c.Size && c.Black(x, y) {
				x++
			}
			run := x - start
			fmt.Fprintf(&b, "M%d %dh%dv1h-%dz", start+r.margin, y+r.margin, run, run)
		}
	}
	b.WriteString(`"/></svg>`)
	b.WriteByte('\n')
	return b.Bytes()
}

// renderPNG draws a two-colour paletted image with a whole number of pixels
// per module. With a width of at least one pixel per module the output is
// exactly width pixels square and the symbol is centred on light padding;
// otherwise each module is defaultScale pixels.
func renderPNG(c *coding.Code, r rendering) ([]byte, error) {
	n := c.Size + 2*r.margin
	scale, px := defaultScale, n*defaultScale
	if r.width >= n {
		scale, px = r.width/n, r.width
	}
	offset := (px-n*scale)/2 + r.margin*scale

	// Index 0 is the light colour, so the canvas starts out light.
	img := image.NewPaletted(image.Rect(0, 0, px, px), color.Palette{r.light, r.dark})
	for my := 0; my < c.Size; my++ {
		for mx := 0; mx < c.Size; mx++ {
			if !c.Black(mx, my) {
				continue
			}
			x0, y0 := offset+mx*scale, offset+my*scale
			for y := y0; y < y0+scale; y++ {
				for x := x0; x < x0+scale; x++ {
					img.SetColorIndex(x, y, 1)
				}
			}
		}
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func hexRGB(c color.NRGBA) string {
	return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
}

func opacityAttr(c color.NRGBA) string {
	if c.A == 0xff {
		return ""
	}
	return ` fill-opacity="` + strconv.FormatFloat(float64(c.A)/255, 'f', 3, 64) + `"`
}
