package render

import (
	"image"
	"image/color"
	"image/draw"
	"math"

	"github.com/disintegration/imaging"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"nutrilens/api/internal/analyzer/types"
)

// Scale is the normalized coordinate range of a bbox.
const Scale = 1000

const (
	strokeWidth = 4
	labelHeight = 20
	charWidth   = 10 // approximate label width per character
)

// Palette: red, green, blue, orange, purple. Item i uses Palette[i%len(Palette)].
var Palette = []color.NRGBA{
	{0xFF, 0x00, 0x00, 0xFF},
	{0x00, 0xFF, 0x00, 0xFF},
	{0x00, 0x00, 0xFF, 0xFF},
	{0xFF, 0xA5, 0x00, 0xFF},
	{0x80, 0x00, 0x80, 0xFF},
}

// ToPixels maps bbox [ymin, xmin, ymax, xmax] (0..1000) onto a w×h image.
// Coordinates outside the range are clamped; ok is false for a bbox that is
// not 4 long or is empty after clamping.
func ToPixels(bbox []int, w, h int) (r image.Rectangle, ok bool) {
	if len(bbox) != 4 || w <= 0 || h <= 0 {
		return image.Rectangle{}, false
	}
	ymin, xmin, ymax, xmax := bbox[0], bbox[1], bbox[2], bbox[3]
	r = image.Rectangle{
		Min: image.Pt(toPixel(xmin, w), toPixel(ymin, h)),
		Max: image.Pt(toPixel(xmax, w), toPixel(ymax, h)),
	}
	if r.Max.X <= r.Min.X || r.Max.Y <= r.Min.Y {
		return image.Rectangle{}, false
	}
	return r, true
}

func toPixel(v, dim int) int {
	if v < 0 {
		v = 0
	}
	if v > Scale {
		v = Scale
	}
	return int(math.Round(float64(v) / Scale * float64(dim)))
}

// Annotate draws a labelled box per item on a copy of img; img is not modified.
func Annotate(img image.Image, items []types.FoodItem) *image.NRGBA {
	dst := imaging.Clone(img)
	b := dst.Bounds()
	w, h := b.Dx(), b.Dy()

	for i, it := range items {
		r, ok := ToPixels(it.BBox, w, h)
		if !ok {
			continue
		}
		c := Palette[i%len(Palette)]
		name := it.Name
		if name == "" {
			name = "Unknown"
		}

		strokeRect(dst, r, c, strokeWidth)
		label := image.Rect(r.Min.X, r.Min.Y, r.Min.X+len(name)*charWidth+10, r.Min.Y+labelHeight)
		fillRect(dst, label, c)
		drawText(dst, r.Min.X+5, r.Min.Y+2, name, color.White)
	}
	return dst
}

func fillRect(dst *image.NRGBA, r image.Rectangle, c color.Color) {
	r = r.Intersect(dst.Bounds())
	if r.Empty() {
		return
	}
	draw.Draw(dst, r, image.NewUniform(c), image.Point{}, draw.Src)
}

// strokeRect draws the outline inside r, like a PIL rectangle with width=stroke.
func strokeRect(dst *image.NRGBA, r image.Rectangle, c color.Color, stroke int) {
	if s := min(r.Dx(), r.Dy()) / 2; stroke > s {
		stroke = max(s, 1)
	}
	fillRect(dst, image.Rect(r.Min.X, r.Min.Y, r.Max.X, r.Min.Y+stroke), c)
	fillRect(dst, image.Rect(r.Min.X, r.Max.Y-stroke, r.Max.X, r.Max.Y), c)
	fillRect(dst, image.Rect(r.Min.X, r.Min.Y, r.Min.X+stroke, r.Max.Y), c)
	fillRect(dst, image.Rect(r.Max.X-stroke, r.Min.Y, r.Max.X, r.Max.Y), c)
}

// drawText puts s with its top-left corner at (x, y).
func drawText(dst *image.NRGBA, x, y int, s string, c color.Color) {
	face := basicfont.Face7x13
	d := &font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(c),
		Face: face,
		Dot:  fixed.P(x, y+face.Metrics().Ascent.Ceil()),
	}
	d.DrawString(s)
}
