package ocr

import (
	"fmt"
	"strings"
)

// Engine selector names as accepted on the command line. Selection is fixed
// for the duration of one run; there is no per-glyph engine switching.
const (
	EngineTesseract = "Tesseract"
	EngineEasy      = "Easy"
	EngineRapid     = "Rapid"
)

// Factory constructs a named engine. Implementations register themselves so
// that engine selection stays a lookup instead of a chain of conditionals;
// adding a fourth engine touches exactly one new package.
type Factory func(opts Options) (Engine, error)

// Options carries construction-time settings shared across engines. Engine
// model loading (Tesseract trained data, sidecar model warm-up) happens
// inside the engine or its sidecar, outside this package.
type Options struct {
	// EasyEndpoint and RapidEndpoint are the HTTP sidecar base URLs for the
	// alternate engines. Empty selects the engine package's default.
	EasyEndpoint  string
	RapidEndpoint string
}

var factories = map[string]Factory{}

// Register installs a factory under an engine selector name. Called from
// engine package init functions.
func Register(name string, f Factory) { factories[name] = f }

// Select constructs the engine for a selector name.
func Select(name string, opts Options) (Engine, error) {
	f, ok := factories[name]
	if !ok {
		return nil, fmt.Errorf("ocr: unknown engine %q (have %s)", name, strings.Join(EngineNames(), ", "))
	}
	return f(opts)
}

// EngineNames lists the registered selector names, sorted for stable output.
func EngineNames() []string {
	names := make([]string, 0, len(factories))
	for n := range factories {
		names = append(names, n)
	}
	for i := 1; i < len(names); i++ {
		for j := i; j > 0 && names[j] < names[j-1]; j-- {
			names[j], names[j-1] = names[j-1], names[j]
		}
	}
	return names
}

// ReconcileChar reduces a recognition result to a single character. The
// recognition target is always one glyph, so multi-rune output beyond
// trailing whitespace means the engine hallucinated context and the result
// is rejected as unrecognized. Engine errors reconcile to unrecognized as
// well; they are an operational detail, not a pipeline failure.
func ReconcileChar(res Result, err error) (rune, bool) {
	if err != nil {
		return 0, false
	}
	text := strings.TrimSpace(res.Text)
	runes := []rune(text)
	if len(runes) != 1 {
		return 0, false
	}
	return runes[0], true
}

// InputOption mutates an OCR input before submission.
type InputOption func(*Input)

// WithDPI overrides the DPI value on the OCR input.
func WithDPI(dpi int) InputOption {
	return func(in *Input) { in.DPI = dpi }
}

// WithLanguages sets language hints on the OCR input.
func WithLanguages(langs ...string) InputOption {
	return func(in *Input) { in.Languages = append([]string(nil), langs...) }
}

// NewInput assembles an input from encoded PNG bytes and options.
func NewInput(id string, png []byte, opts ...InputOption) Input {
	in := Input{ID: id, Image: png, Format: ImageFormatPNG}
	for _, opt := range opts {
		opt(&in)
	}
	return in
}
