package repair

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"unicode/utf8"

	"github.com/wudi/unicodefix/ocr"
	"github.com/wudi/unicodefix/ocr/easyocr"
	"github.com/wudi/unicodefix/ocr/rapidocr"
	"github.com/wudi/unicodefix/raster"
)

// Config carries one run's settings. A zero Config is not usable; start from
// DefaultConfig.
type Config struct {
	// InputPath and OutputPath are the PDF files read and written.
	InputPath  string `json:"input"`
	OutputPath string `json:"output"`
	// Engine selects the recognition backend by its registered name.
	Engine string `json:"engine"`
	// DefaultChar is the single character assigned to glyphs recognition
	// cannot settle.
	DefaultChar string `json:"default_char"`
	// Languages passes trained-data hints to the recognition engine. Empty
	// selects the engine default.
	Languages []string `json:"languages,omitempty"`
	// TargetSize is the square glyph bitmap edge in pixels.
	TargetSize int `json:"target_size"`
	// DPI is reported to recognition engines alongside each bitmap.
	DPI int `json:"dpi"`
	// Workers bounds concurrent glyph recognition.
	Workers int `json:"workers"`
	// EasyEndpoint and RapidEndpoint locate the HTTP recognition sidecars.
	EasyEndpoint  string `json:"easy_endpoint"`
	RapidEndpoint string `json:"rapid_endpoint"`
}

// DefaultConfig returns the settings a run uses when nothing is overridden.
func DefaultConfig() Config {
	return Config{
		Engine:        ocr.EngineTesseract,
		DefaultChar:   " ",
		TargetSize:    raster.DefaultSize,
		DPI:           300,
		Workers:       4,
		EasyEndpoint:  easyocr.DefaultEndpoint,
		RapidEndpoint: rapidocr.DefaultEndpoint,
	}
}

// Validate checks the settings that do not depend on the filesystem.
func (c Config) Validate() error {
	switch c.Engine {
	case ocr.EngineTesseract, ocr.EngineEasy, ocr.EngineRapid:
	default:
		return fmt.Errorf("unknown engine %q", c.Engine)
	}
	if utf8.RuneCountInString(c.DefaultChar) != 1 {
		return errors.New("default_char must be exactly one character")
	}
	if c.TargetSize < 16 {
		return fmt.Errorf("target_size %d too small", c.TargetSize)
	}
	if c.DPI <= 0 {
		return fmt.Errorf("dpi %d must be positive", c.DPI)
	}
	if c.Workers <= 0 {
		return fmt.Errorf("workers %d must be positive", c.Workers)
	}
	return nil
}

// fallbackRune returns the configured default character.
func (c Config) fallbackRune() rune {
	r, _ := utf8.DecodeRuneInString(c.DefaultChar)
	return r
}

// Export writes the config as indented JSON, the same shape ImportConfig
// reads back.
func (c Config) Export(w io.Writer) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	_, err = w.Write(data)
	return err
}

// ImportConfig reads an exported config, layering it over the defaults so
// older files missing newer fields stay usable.
func ImportConfig(r io.Reader) (Config, error) {
	c := DefaultConfig()
	dec := json.NewDecoder(r)
	if err := dec.Decode(&c); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	return c, nil
}
