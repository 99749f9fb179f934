// Package raster measures and draws text into RGBA frame memory.
package raster

import (
	"fmt"
	"image"
	"image/color"
	"math"
	"sync"

	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"
)

// Renderer rasterizes text with one TrueType font. Faces are cached per
// pixel size.
type Renderer struct {
	font *opentype.Font

	mu    sync.Mutex
	faces map[float64]font.Face
}

// New returns a Renderer using the Go Bold font.
func New() (*Renderer, error) {
	return NewFromTTF(gobold.TTF)
}

// NewFromTTF returns a Renderer for a TrueType or OpenType font file.
func NewFromTTF(ttf []byte) (*Renderer, error) {
	f, err := opentype.Parse(ttf)
	if err != nil {
		return nil, fmt.Errorf("raster: failed to parse font: %w", err)
	}
	return &Renderer{
		font:  f,
		faces: make(map[float64]font.Face),
	}, nil
}

// face returns the cached face for size. Callers hold r.mu.
func (r *Renderer) face(size float64) (font.Face, error) {
	if f, ok := r.faces[size]; ok {
		return f, nil
	}
	f, err := opentype.NewFace(r.font, &opentype.FaceOptions{
		Size:    size,
		DPI:     72, // 1pt == 1px
		Hinting: font.HintingFull,
	})
	if err != nil {
		return nil, fmt.Errorf("raster: failed to create face (size %.1f): %w", size, err)
	}
	r.faces[size] = f
	return f, nil
}

// TextWidth returns the advance width of text in pixels. Unusable sizes
// measure as zero.
func (r *Renderer) TextWidth(text string, size float64) float64 {
	if text == "" || size <= 0 {
		return 0
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	f, err := r.face(size)
	if err != nil {
		return 0
	}
	return fromFixed(font.MeasureString(f, text))
}

// Close releases the cached faces.
func (r *Renderer) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for size, f := range r.faces {
		f.Close()
		delete(r.faces, size)
	}
	return nil
}

// Frame wraps width*height RGBA pixels (stride width*4) as a drawing
// surface. pix is drawn in place.
func (r *Renderer) Frame(pix []byte, width, height int) *Frame {
	fr := &Frame{renderer: r}
	if width <= 0 || height <= 0 || len(pix) < width*height*4 {
		return fr
	}
	fr.img = &image.RGBA{
		Pix:    pix,
		Stride: width * 4,
		Rect:   image.Rect(0, 0, width, height),
	}
	return fr
}

// Frame draws glyph runs into one video frame.
type Frame struct {
	renderer *Renderer
	img      *image.RGBA // nil for unusable buffers
}

// DrawText paints text with its baseline origin at (x, y). Glyphs falling
// outside the frame are clipped.
func (f *Frame) DrawText(x, y float64, text string, size float64, c color.RGBA) {
	if f.img == nil || text == "" || size <= 0 {
		return
	}
	if math.IsNaN(x) || math.IsNaN(y) {
		return
	}

	f.renderer.mu.Lock()
	defer f.renderer.mu.Unlock()

	face, err := f.renderer.face(size)
	if err != nil {
		return
	}

	d := font.Drawer{
		Dst:  f.img,
		Src:  image.NewUniform(c),
		Face: face,
		Dot:  fixed.Point26_6{X: toFixed(x), Y: toFixed(y)},
	}
	d.DrawString(text)
}

// Bounds returns the drawable area (empty for unusable buffers).
func (f *Frame) Bounds() image.Rectangle {
	if f.img == nil {
		return image.Rectangle{}
	}
	return f.img.Rect
}

func toFixed(v float64) fixed.Int26_6 {
	return fixed.Int26_6(math.Round(v * 64))
}

func fromFixed(v fixed.Int26_6) float64 {
	return float64(v) / 64
}
