package sources

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"math"
	"math/rand/v2"
	"os"
	"strconv"
	"strings"

	"wallp/internal/fileutil"
	"wallp/internal/services"
	"wallp/internal/store"
)

var namedColors = map[string]color.RGBA{
	"black":  rgb(0x00, 0x00, 0x00),
	"white":  rgb(0xff, 0xff, 0xff),
	"gray":   rgb(0x80, 0x80, 0x80),
	"red":    rgb(0xc0, 0x39, 0x2b),
	"orange": rgb(0xe6, 0x7e, 0x22),
	"yellow": rgb(0xf1, 0xc4, 0x0f),
	"green":  rgb(0x27, 0xae, 0x60),
	"teal":   rgb(0x16, 0xa0, 0x85),
	"blue":   rgb(0x29, 0x80, 0xb9),
	"navy":   rgb(0x1f, 0x2d, 0x3d),
	"purple": rgb(0x8e, 0x44, 0xad),
	"pink":   rgb(0xe8, 0x43, 0x93),
}

func rgb(r, g, b uint8) color.RGBA {
	return color.RGBA{R: r, G: g, B: b, A: 0xff}
}

// Color renders a vertical gradient from the requested color to a darker
// shade of it, or a solid fill when color.gradient is off. Without a color
// hint a random hue is used at the color.saturation setting.
type Color struct {
	width    int
	height   int
	intn     func(n int) int
	settings store.SettingGetter
}

// NewColor builds the generative color source producing width x height images.
func NewColor(width, height int) *Color {
	if width <= 0 {
		width = 1920
	}
	if height <= 0 {
		height = 1080
	}
	return &Color{width: width, height: height, intn: rand.IntN}
}

// WithSettings makes Color read the color.* settings on every Acquire.
func (c *Color) WithSettings(settings store.SettingGetter) *Color {
	c.settings = settings
	return c
}

func (c *Color) Name() string { return "color" }

func (c *Color) Capability() Capability { return Generative }

// Acquire picks the color and returns a selection whose Render writes the PNG.
func (c *Color) Acquire(ctx context.Context, params Params) (*Selection, error) {
	saturation := store.SettingOr(ctx, c.settings, store.ColorSaturationSetting, 0.6)
	gradient := store.SettingOr(ctx, c.settings, store.ColorGradientSetting, true)

	base, err := c.pick(params.Color, saturation)
	if err != nil {
		return nil, err
	}
	hex := HexColor(base)

	var trace Trace
	if strings.TrimSpace(params.Color) == "" {
		trace.Add("color", "random %s at saturation %.2f", hex, saturation)
	} else {
		trace.Add("color", "%s from hint %q", hex, params.Color)
	}
	style, title, fade := "solid", "Solid ", 0.0
	if gradient {
		style, title, fade = "gradient", "Gradient ", 0.6
	}
	trace.Add("render", "%s %dx%d", style, c.width, c.height)

	width, height := c.width, c.height
	return &Selection{
		Candidate: Candidate{
			Title:       title + hex,
			Description: fmt.Sprintf("%s %s, %dx%d", hex, style, width, height),
			Extension:   "png",
		},
		Trace: trace,
		Render: func(ctx context.Context, dir string) (string, string, error) {
			return renderGradient(ctx, dir, base, width, height, fade)
		},
	}, nil
}

func (c *Color) pick(hint string, saturation float64) (color.RGBA, error) {
	hint = strings.ToLower(strings.TrimSpace(hint))
	if hint == "" {
		return hsv(float64(c.intn(360)), min(max(saturation, 0), 1), 0.85), nil
	}
	if named, ok := namedColors[hint]; ok {
		return named, nil
	}
	parsed, err := ParseHexColor(hint)
	if err != nil {
		return color.RGBA{}, services.Wrap(services.ErrValidation, "color", "parse hint", hint, err)
	}
	return parsed, nil
}

// ParseHexColor parses #rgb or #rrggbb, with or without the leading #.
func ParseHexColor(s string) (color.RGBA, error) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "#")
	if len(s) == 3 {
		s = string([]byte{s[0], s[0], s[1], s[1], s[2], s[2]})
	}
	if len(s) != 6 {
		return color.RGBA{}, fmt.Errorf("invalid color %q", s)
	}
	v, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return color.RGBA{}, fmt.Errorf("invalid color %q", s)
	}
	return color.RGBA{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v), A: 0xff}, nil
}

// hsv converts hue in degrees, saturation and value in 0..1 to RGB.
func hsv(h, s, v float64) color.RGBA {
	chroma := v * s
	x := chroma * (1 - math.Abs(math.Mod(h/60, 2)-1))
	var r, g, b float64
	switch {
	case h < 60:
		r, g = chroma, x
	case h < 120:
		r, g = x, chroma
	case h < 180:
		g, b = chroma, x
	case h < 240:
		g, b = x, chroma
	case h < 300:
		r, b = x, chroma
	default:
		r, b = chroma, x
	}
	m := v - chroma
	return rgb(uint8(math.Round((r+m)*255)), uint8(math.Round((g+m)*255)), uint8(math.Round((b+m)*255)))
}

// HexColor formats c as #rrggbb.
func HexColor(c color.RGBA) string {
	return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
}

// renderGradient darkens rows linearly by up to fade at the bottom edge.
func renderGradient(ctx context.Context, dir string, base color.RGBA, width, height int, fade float64) (string, string, error) {
	if err := ctx.Err(); err != nil {
		return "", "", err
	}
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		shade := 1 - fade*float64(y)/float64(max(height-1, 1))
		row := color.RGBA{
			R: uint8(float64(base.R) * shade),
			G: uint8(float64(base.G) * shade),
			B: uint8(float64(base.B) * shade),
			A: 0xff,
		}
		for x := 0; x < width; x++ {
			img.SetRGBA(x, y, row)
		}
	}

	file, err := os.CreateTemp(dir, fileutil.TempPattern)
	if err != nil {
		return "", "", services.Wrap(services.ErrConfiguration, "color", "create temp file", dir, err)
	}
	path := file.Name()
	encoder := png.Encoder{CompressionLevel: png.BestSpeed}
	if err := encoder.Encode(file, img); err != nil {
		_ = file.Close()
		_ = os.Remove(path)
		return "", "", services.Wrap(services.ErrTransient, "color", "encode png", path, err)
	}
	if err := file.Close(); err != nil {
		_ = os.Remove(path)
		return "", "", services.Wrap(services.ErrTransient, "color", "close png", path, err)
	}
	return path, "png", nil
}
