// Package raster renders single glyph outlines from an embedded font program
// to fixed-size grayscale bitmaps suitable for OCR input. Rendering is
// deterministic: the same (program, glyph, size) triple always produces a
// bit-identical bitmap.
package raster

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"

	gofont "github.com/go-text/typesetting/font"
	ot "github.com/go-text/typesetting/font/opentype"
	"golang.org/x/image/vector"
)

// GlyphID is a glyph index within one font program. It shares no numbering
// with Unicode codepoints; the same ID in two fonts names two unrelated
// shapes.
type GlyphID uint32

// DefaultSize is the square bitmap edge in pixels. 256px leaves recognition
// engines plenty of stroke detail at their expected input scale.
const DefaultSize = 256

// marginRatio is the padding kept around the outline so stroke endpoints are
// never clipped.
const marginRatio = 0.12

// ErrUnsupportedProgram reports a font program whose outline format cannot be
// rendered (bare Type1 or bare CFF without an sfnt wrapper). Callers treat
// every glyph of such a font as unrecognizable rather than failing the run.
var ErrUnsupportedProgram = errors.New("raster: unsupported font program format")

// Bitmap is the ephemeral raster for one glyph. It lives for exactly one
// pipeline invocation and is discarded after recognition.
type Bitmap struct {
	// Image is a white-background, black-foreground grayscale raster.
	// Nil when Empty is set.
	Image *image.Gray
	// Empty marks a glyph with no renderable outline (space-like or
	// zero-area). No OCR is needed for an empty bitmap.
	Empty bool
}

// EncodePNG serializes the bitmap for engine submission.
func (b Bitmap) EncodePNG() ([]byte, error) {
	if b.Empty || b.Image == nil {
		return nil, errors.New("raster: empty bitmap has no encoding")
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, b.Image); err != nil {
		return nil, fmt.Errorf("encode glyph png: %w", err)
	}
	return buf.Bytes(), nil
}

// Rasterizer renders glyphs of a single embedded font program.
type Rasterizer struct {
	face *gofont.Face
	size int
}

// New parses an embedded font program and prepares a rasterizer with the
// given square target size (0 selects DefaultSize). TrueType and
// sfnt-wrapped CFF programs are supported; other formats return
// ErrUnsupportedProgram.
func New(program []byte, size int) (*Rasterizer, error) {
	if size <= 0 {
		size = DefaultSize
	}
	if !sfntLike(program) {
		return nil, ErrUnsupportedProgram
	}
	face, err := gofont.ParseTTF(bytes.NewReader(program))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedProgram, err)
	}
	return &Rasterizer{face: face, size: size}, nil
}

// sfntLike sniffs the program header for an sfnt container signature.
func sfntLike(program []byte) bool {
	if len(program) < 4 {
		return false
	}
	switch string(program[:4]) {
	case "\x00\x01\x00\x00", "true", "OTTO", "ttcf":
		return true
	}
	return false
}

// Size returns the bitmap edge length in pixels.
func (r *Rasterizer) Size() int { return r.size }

// GlyphForCode correlates a character code with a glyph index. Type0
// Identity fonts address glyphs directly by code. Simple fonts go through
// the program's own character map, trying the code itself and then the
// 0xF000 symbol-font offset convention.
func (r *Rasterizer) GlyphForCode(code int, identity bool) (GlyphID, bool) {
	if code < 0 {
		return 0, false
	}
	if identity {
		return GlyphID(code), true
	}
	if gid, ok := r.face.NominalGlyph(rune(code)); ok {
		return GlyphID(gid), true
	}
	if gid, ok := r.face.NominalGlyph(rune(0xF000 + code)); ok {
		return GlyphID(gid), true
	}
	return 0, false
}

// Rasterize renders one glyph outline. Glyphs with no outline data yield an
// Empty bitmap, not an error.
func (r *Rasterizer) Rasterize(glyph GlyphID) (Bitmap, error) {
	data := r.face.GlyphData(gofont.GID(glyph))
	outline, ok := data.(gofont.GlyphOutline)
	if !ok {
		return Bitmap{Empty: true}, nil
	}
	return fillOutline(outline.Segments, r.size), nil
}

// fillOutline scales the outline to fit the content area (target size minus
// margins), centers it, flips the Y axis to image coordinates, and fills it
// black on white.
func fillOutline(segs []gofont.Segment, size int) Bitmap {
	minX, minY, maxX, maxY, any := outlineBounds(segs)
	if !any || maxX-minX <= 0 || maxY-minY <= 0 {
		return Bitmap{Empty: true}
	}

	margin := float32(size) * marginRatio
	content := float32(size) - 2*margin
	w, h := maxX-minX, maxY-minY
	scale := content / w
	if s := content / h; s < scale {
		scale = s
	}
	// Center the scaled outline in the bitmap.
	ox := (float32(size) - w*scale) / 2
	oy := (float32(size) - h*scale) / 2
	tx := func(x float32) float32 { return ox + (x-minX)*scale }
	ty := func(y float32) float32 { return float32(size) - oy - (y-minY)*scale }

	vr := vector.NewRasterizer(size, size)
	for _, seg := range segs {
		switch seg.Op {
		case ot.SegmentOpMoveTo:
			vr.MoveTo(tx(seg.Args[0].X), ty(seg.Args[0].Y))
		case ot.SegmentOpLineTo:
			vr.LineTo(tx(seg.Args[0].X), ty(seg.Args[0].Y))
		case ot.SegmentOpQuadTo:
			vr.QuadTo(
				tx(seg.Args[0].X), ty(seg.Args[0].Y),
				tx(seg.Args[1].X), ty(seg.Args[1].Y),
			)
		case ot.SegmentOpCubeTo:
			vr.CubeTo(
				tx(seg.Args[0].X), ty(seg.Args[0].Y),
				tx(seg.Args[1].X), ty(seg.Args[1].Y),
				tx(seg.Args[2].X), ty(seg.Args[2].Y),
			)
		}
	}
	vr.ClosePath()

	img := image.NewGray(image.Rect(0, 0, size, size))
	draw.Draw(img, img.Bounds(), &image.Uniform{C: color.White}, image.Point{}, draw.Src)
	vr.DrawOp = draw.Over
	vr.Draw(img, img.Bounds(), image.Black, image.Point{})
	return Bitmap{Image: img}
}

func outlineBounds(segs []gofont.Segment) (minX, minY, maxX, maxY float32, any bool) {
	update := func(p gofont.SegmentPoint) {
		if !any {
			minX, maxX, minY, maxY = p.X, p.X, p.Y, p.Y
			any = true
			return
		}
		if p.X < minX {
			minX = p.X
		}
		if p.X > maxX {
			maxX = p.X
		}
		if p.Y < minY {
			minY = p.Y
		}
		if p.Y > maxY {
			maxY = p.Y
		}
	}
	for _, seg := range segs {
		switch seg.Op {
		case ot.SegmentOpMoveTo, ot.SegmentOpLineTo:
			update(seg.Args[0])
		case ot.SegmentOpQuadTo:
			update(seg.Args[0])
			update(seg.Args[1])
		case ot.SegmentOpCubeTo:
			update(seg.Args[0])
			update(seg.Args[1])
			update(seg.Args[2])
		}
	}
	return
}
