package render

import (
	"fmt"
	"image/color"
	"strings"

	"github.com/lucasb-eyer/go-colorful"
	"golang.org/x/image/colornames"
)

// ParseColor accepts a CSS/SVG colour name or a #rrggbb value.
func ParseColor(s string) (color.NRGBA, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	if c, ok := colornames.Map[name]; ok {
		return color.NRGBA{R: c.R, G: c.G, B: c.B, A: 255}, nil
	}
	if strings.HasPrefix(name, "#") {
		c, err := colorful.Hex(name)
		if err != nil {
			return color.NRGBA{}, fmt.Errorf("invalid colour %q: %w", s, err)
		}
		r, g, b := c.RGB255()
		return color.NRGBA{R: r, G: g, B: b, A: 255}, nil
	}
	return color.NRGBA{}, fmt.Errorf("invalid colour %q", s)
}

// WithAlpha returns c with opacity a in [0,1].
func WithAlpha(c color.Color, a float64) color.NRGBA {
	n := color.NRGBAModel.Convert(c).(color.NRGBA)
	n.A = uint8(clamp01(a)*255 + 0.5)
	return n
}

// Darken blends c toward black in Lab space, used for patch borders.
func Darken(c color.Color, amount float64) color.NRGBA {
	src, _ := colorful.MakeColor(opaque(c))
	out := src.BlendLab(colorful.Color{}, clamp01(amount)).Clamped()
	r, g, b := out.RGB255()
	return color.NRGBA{R: r, G: g, B: b, A: 255}
}

func opaque(c color.Color) color.Color {
	n := color.NRGBAModel.Convert(c).(color.NRGBA)
	n.A = 255
	return n
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
