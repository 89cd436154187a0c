package ocr

import "context"

// ImageFormat identifies the content type of an OCR input image.
type ImageFormat string

const (
	ImageFormatPNG  ImageFormat = "image/png"
	ImageFormatJPEG ImageFormat = "image/jpeg"
)

// Input encapsulates a single glyph bitmap submitted for recognition.
type Input struct {
	// ID is an optional caller-provided identifier echoed back in the Result.
	// The pipeline uses "font<obj>-code<n>" so log lines correlate.
	ID string
	// Image is the encoded bitmap in the format specified by Format.
	Image []byte
	// Format declares the image content type.
	Format ImageFormat
	// DPI carries the effective dots-per-inch of the bitmap. Tesseract uses
	// this for scaling heuristics; zero means unknown.
	DPI int
	// Languages is a list of trained-data hints (e.g., "eng"). Recognition of
	// a lone glyph gains nothing from language modeling, so engines may
	// ignore this.
	Languages []string
	// Metadata passes engine-specific knobs (e.g., Tesseract variables)
	// without hard-coding them into the API surface.
	Metadata map[string]string
}

// Result captures recognition output for a single input.
type Result struct {
	// InputID mirrors the Input.ID that produced this result.
	InputID string
	// Text is the raw recognized text. Callers reduce it to a single
	// character via ReconcileChar; engines are not required to truncate.
	Text string
	// Confidence is the engine's score in [0, 1], zero if unreported.
	Confidence float64
}

// Engine is the recognition provider contract: one image in, one result out.
// An engine returning an error is treated as "unrecognized" by the pipeline,
// never as a fatal condition.
type Engine interface {
	Name() string
	Recognize(ctx context.Context, input Input) (Result, error)
}
