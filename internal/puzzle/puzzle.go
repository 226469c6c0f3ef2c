// Package puzzle renders slider-captcha image pairs: a background with a
// tile-shaped hole and the matching cut-out tile. The true offset never
// leaves this package except through the returned struct.
package puzzle

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/draw"
	"image/jpeg"
	"image/png"
	"math"
	"math/rand"
	"os"

	"github.com/fogleman/gg"
	xdraw "golang.org/x/image/draw"
)

type Options struct {
	TileWidth    int
	TileHeight   int
	CanvasWidth  int
	CanvasHeight int
}

// DefaultOptions matches the dimensions the frontend slider is built for.
func DefaultOptions() Options {
	return Options{
		TileWidth:    60,
		TileHeight:   60,
		CanvasWidth:  320,
		CanvasHeight: 160,
	}
}

// Puzzle holds the rendered challenge pair and its ground-truth offset.
type Puzzle struct {
	Background []byte // JPEG
	Tile       []byte // PNG, transparent outside the piece shape
	X          int
	Y          int
}

var ErrRender = errors.New("puzzle: render failed")

// CreateFromFile decodes the image at path and cuts a puzzle from it.
func CreateFromFile(path string, opts Options) (*Puzzle, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	src, _, err := image.Decode(f)
	if err != nil {
		return nil, err
	}
	return Create(src, opts)
}

// Create scales src to the canvas, picks a pseudo-random offset with the
// tile fully inside the canvas, and renders the pair.
func Create(src image.Image, opts Options) (*Puzzle, error) {
	if opts.TileWidth <= 0 || opts.TileHeight <= 0 ||
		opts.CanvasWidth <= 2*opts.TileWidth || opts.CanvasHeight < opts.TileHeight {
		return nil, ErrRender
	}

	canvas := image.NewRGBA(image.Rect(0, 0, opts.CanvasWidth, opts.CanvasHeight))
	xdraw.ApproxBiLinear.Scale(canvas, canvas.Bounds(), src, src.Bounds(), xdraw.Src, nil)

	// Keep the tile off the left edge so the slider has travel distance.
	x := opts.TileWidth + rand.Intn(opts.CanvasWidth-2*opts.TileWidth)
	y := 0
	if opts.CanvasHeight > opts.TileHeight {
		y = rand.Intn(opts.CanvasHeight - opts.TileHeight)
	}

	mask := pieceMask(opts.TileWidth, opts.TileHeight)

	tile := image.NewRGBA(image.Rect(0, 0, opts.TileWidth, opts.TileHeight))
	draw.DrawMask(tile, tile.Bounds(), canvas, image.Pt(x, y), mask, image.Point{}, draw.Over)

	// Darken the hole so the target position is visible on the background.
	hole := image.NewUniform(color.RGBA{0, 0, 0, 160})
	draw.DrawMask(canvas, image.Rect(x, y, x+opts.TileWidth, y+opts.TileHeight),
		hole, image.Point{}, mask, image.Point{}, draw.Over)

	var bgBuf bytes.Buffer
	if err := jpeg.Encode(&bgBuf, canvas, &jpeg.Options{Quality: 80}); err != nil {
		return nil, ErrRender
	}
	var tileBuf bytes.Buffer
	if err := png.Encode(&tileBuf, tile); err != nil {
		return nil, ErrRender
	}

	return &Puzzle{
		Background: bgBuf.Bytes(),
		Tile:       tileBuf.Bytes(),
		X:          x,
		Y:          y,
	}, nil
}

// pieceMask draws the jigsaw piece silhouette: a rounded body with a knob
// on the top edge, fitted inside a w×h box.
func pieceMask(w, h int) *image.Alpha {
	knobR := float64(h) / 6
	body := float64(h) - 2*knobR

	dc := gg.NewContext(w, h)
	dc.SetRGB(1, 1, 1)
	dc.DrawRoundedRectangle(0, 2*knobR, float64(w), body, 6)
	dc.Fill()
	dc.DrawCircle(float64(w)/2, 2*knobR, knobR)
	dc.Fill()

	out := dc.Image()
	mask := image.NewAlpha(image.Rect(0, 0, w, h))
	for py := 0; py < h; py++ {
		for px := 0; px < w; px++ {
			_, _, _, a := out.At(px, py).RGBA()
			mask.SetAlpha(px, py, color.Alpha{A: uint8(a >> 8)})
		}
	}
	return mask
}

// Fallback produces a procedural background for when no source images are
// readable: a smooth two-tone gradient with light noise.
func Fallback(w, h int) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			fx := float64(x) / float64(w)
			fy := float64(y) / float64(h)
			r := uint8(70 + 90*fx)
			g := uint8(90 + 70*math.Abs(math.Sin(fx*math.Pi+fy)))
			b := uint8(140 + 80*fy)
			n := uint8(rand.Intn(18))
			img.SetRGBA(x, y, color.RGBA{r + n/2, g + n/3, b - n/4, 255})
		}
	}
	return img
}
