package tesseract

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"os/exec"
	"testing"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/wudi/unicodefix/ocr"
)

// ensureTesseractAvailable checks that the tesseract binary is reachable.
func ensureTesseractAvailable(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("tesseract"); err != nil {
		t.Skip("tesseract not installed in PATH")
	}
}

func glyphPNG(t *testing.T, s string) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 64, 64))
	draw.Draw(img, img.Bounds(), &image.Uniform{C: color.White}, image.Point{}, draw.Src)
	d := &font.Drawer{
		Dst:  img,
		Src:  image.Black,
		Face: basicfont.Face7x13,
		Dot:  fixed.P(28, 38),
	}
	d.DrawString(s)

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

func TestRecognizeSingleGlyph(t *testing.T) {
	ensureTesseractAvailable(t)

	in := ocr.NewInput("glyph-A", glyphPNG(t, "A"), ocr.WithDPI(300), ocr.WithLanguages("eng"))
	res, err := New().Recognize(context.Background(), in)
	if err != nil {
		t.Fatalf("Recognize() error = %v", err)
	}
	if res.InputID != "glyph-A" {
		t.Errorf("InputID = %q, want %q", res.InputID, "glyph-A")
	}
	ch, ok := ocr.ReconcileChar(res, nil)
	if !ok {
		t.Fatalf("ReconcileChar rejected %q", res.Text)
	}
	if ch != 'A' {
		t.Errorf("recognized %q, want 'A'", ch)
	}
}

func TestEngineRegistered(t *testing.T) {
	eng, err := ocr.Select(ocr.EngineTesseract, ocr.Options{})
	if err != nil {
		t.Fatalf("Select(Tesseract) error = %v", err)
	}
	if eng.Name() != "tesseract" {
		t.Errorf("Name() = %q, want %q", eng.Name(), "tesseract")
	}
}
