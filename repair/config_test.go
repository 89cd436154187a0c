package repair

import (
	"reflect"
	"strings"
	"testing"

	"github.com/wudi/unicodefix/ocr"
)

func TestDefaultConfigValidates(t *testing.T) {
	if err := DefaultConfig().Validate(); err != nil {
		t.Errorf("DefaultConfig().Validate() = %v", err)
	}
}

func TestConfigValidateRejections(t *testing.T) {
	mutate := func(f func(*Config)) Config {
		c := DefaultConfig()
		f(&c)
		return c
	}
	cases := []struct {
		name string
		cfg  Config
	}{
		{"unknown engine", mutate(func(c *Config) { c.Engine = "PaddleOCR" })},
		{"empty default char", mutate(func(c *Config) { c.DefaultChar = "" })},
		{"multi-rune default char", mutate(func(c *Config) { c.DefaultChar = "ab" })},
		{"tiny target size", mutate(func(c *Config) { c.TargetSize = 8 })},
		{"zero dpi", mutate(func(c *Config) { c.DPI = 0 })},
		{"zero workers", mutate(func(c *Config) { c.Workers = 0 })},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if err := tc.cfg.Validate(); err == nil {
				t.Error("Validate() accepted invalid config")
			}
		})
	}
}

func TestConfigMultibyteDefaultChar(t *testing.T) {
	c := DefaultConfig()
	c.DefaultChar = "中"
	if err := c.Validate(); err != nil {
		t.Errorf("single multibyte character rejected: %v", err)
	}
	if c.fallbackRune() != '中' {
		t.Errorf("fallbackRune() = %q", c.fallbackRune())
	}
}

func TestConfigExportImportRoundTrip(t *testing.T) {
	c := DefaultConfig()
	c.Engine = ocr.EngineRapid
	c.DefaultChar = "?"
	c.Languages = []string{"eng", "deu"}
	c.Workers = 9

	var sb strings.Builder
	if err := c.Export(&sb); err != nil {
		t.Fatalf("Export() error = %v", err)
	}
	got, err := ImportConfig(strings.NewReader(sb.String()))
	if err != nil {
		t.Fatalf("ImportConfig() error = %v", err)
	}
	if !reflect.DeepEqual(got, c) {
		t.Errorf("round trip = %+v, want %+v", got, c)
	}
}

func TestImportConfigLayersOverDefaults(t *testing.T) {
	got, err := ImportConfig(strings.NewReader(`{"engine": "Easy"}`))
	if err != nil {
		t.Fatalf("ImportConfig() error = %v", err)
	}
	if got.Engine != ocr.EngineEasy {
		t.Errorf("Engine = %q, want Easy", got.Engine)
	}
	if got.DefaultChar != " " || got.Workers != DefaultConfig().Workers {
		t.Errorf("defaults not layered: %+v", got)
	}
}
