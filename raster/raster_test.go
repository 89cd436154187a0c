package raster

import (
	"bytes"
	"image/png"
	"testing"

	gofont "github.com/go-text/typesetting/font"
	ot "github.com/go-text/typesetting/font/opentype"
)

// square returns a closed square outline in font units.
func square(x0, y0, x1, y1 float32) []gofont.Segment {
	pt := func(x, y float32) [3]gofont.SegmentPoint {
		return [3]gofont.SegmentPoint{{X: x, Y: y}}
	}
	return []gofont.Segment{
		{Op: ot.SegmentOpMoveTo, Args: pt(x0, y0)},
		{Op: ot.SegmentOpLineTo, Args: pt(x1, y0)},
		{Op: ot.SegmentOpLineTo, Args: pt(x1, y1)},
		{Op: ot.SegmentOpLineTo, Args: pt(x0, y1)},
	}
}

func TestFillOutlineSquare(t *testing.T) {
	bm := fillOutline(square(0, 0, 700, 700), 64)
	if bm.Empty {
		t.Fatal("square outline classified as empty")
	}
	b := bm.Image.Bounds()
	if b.Dx() != 64 || b.Dy() != 64 {
		t.Fatalf("bitmap bounds = %v, want 64x64", b)
	}
	// Center must be filled (dark), corners must stay background (white).
	if c := bm.Image.GrayAt(32, 32).Y; c > 0x40 {
		t.Errorf("center luminance = %#x, want dark fill", c)
	}
	if c := bm.Image.GrayAt(1, 1).Y; c != 0xFF {
		t.Errorf("corner luminance = %#x, want white background", c)
	}
}

func TestFillOutlineKeepsMargin(t *testing.T) {
	bm := fillOutline(square(-200, -200, 1000, 1000), 100)
	if bm.Empty {
		t.Fatal("outline classified as empty")
	}
	// The margin band must remain untouched regardless of outline extents.
	for _, p := range [][2]int{{0, 50}, {99, 50}, {50, 0}, {50, 99}} {
		if c := bm.Image.GrayAt(p[0], p[1]).Y; c != 0xFF {
			t.Errorf("margin pixel (%d,%d) luminance = %#x, want white", p[0], p[1], c)
		}
	}
}

func TestFillOutlineDeterministic(t *testing.T) {
	segs := square(10, 20, 600, 650)
	a := fillOutline(segs, 128)
	b := fillOutline(segs, 128)
	if !bytes.Equal(a.Image.Pix, b.Image.Pix) {
		t.Error("identical outlines produced different rasters")
	}
}

func TestFillOutlineEmptyClassification(t *testing.T) {
	if bm := fillOutline(nil, 64); !bm.Empty {
		t.Error("nil segment list not classified as empty")
	}
	// Degenerate zero-area path (a lone move).
	lone := []gofont.Segment{{Op: ot.SegmentOpMoveTo, Args: [3]gofont.SegmentPoint{{X: 5, Y: 5}}}}
	if bm := fillOutline(lone, 64); !bm.Empty {
		t.Error("zero-area outline not classified as empty")
	}
}

func TestEncodePNG(t *testing.T) {
	bm := fillOutline(square(0, 0, 500, 500), 64)
	data, err := bm.EncodePNG()
	if err != nil {
		t.Fatalf("EncodePNG() error = %v", err)
	}
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("decode produced PNG: %v", err)
	}
	if img.Bounds().Dx() != 64 {
		t.Errorf("decoded width = %d, want 64", img.Bounds().Dx())
	}

	if _, err := (Bitmap{Empty: true}).EncodePNG(); err == nil {
		t.Error("EncodePNG() on empty bitmap did not error")
	}
}

func TestNewRejectsNonSfntPrograms(t *testing.T) {
	cases := map[string][]byte{
		"type1 pfb": {0x80, 0x01, 0x00, 0x00, '%', '!'},
		"bare cff":  {0x01, 0x00, 0x04, 0x02},
		"truncated": {0x00},
		"empty":     nil,
	}
	for name, program := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := New(program, 0); err == nil {
				t.Errorf("New() accepted %s program", name)
			}
		})
	}
}
