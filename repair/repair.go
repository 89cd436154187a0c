// Package repair drives the missing-Unicode pipeline: enumerate embedded
// fonts, keep plausible existing mappings, render and recognize the rest,
// and install rebuilt ToUnicode tables. The document is persisted exactly
// once, by the caller, after the whole run succeeds.
package repair

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/wudi/unicodefix/cmap"
	"github.com/wudi/unicodefix/observability"
	"github.com/wudi/unicodefix/ocr"
	"github.com/wudi/unicodefix/pdfdoc"
	"github.com/wudi/unicodefix/raster"
)

// Document is the slice of the PDF boundary the pipeline needs.
type Document interface {
	EmbeddedFonts() ([]*pdfdoc.Font, error)
	SetToUnicode(f *pdfdoc.Font, data []byte) error
	Save(path string) error
}

// glyphRenderer renders glyphs of one font program.
type glyphRenderer interface {
	GlyphForCode(code int, identity bool) (raster.GlyphID, bool)
	Rasterize(g raster.GlyphID) (raster.Bitmap, error)
}

// Stats summarizes one run.
type Stats struct {
	Fonts      int
	Glyphs     int
	Kept       int
	Recognized int
	Fallback   int
	Patched    int
}

// Repairer executes the pipeline against one document.
type Repairer struct {
	cfg      Config
	engine   ocr.Engine
	log      observability.Logger
	counters *observability.Counters

	newRenderer func(program []byte, size int) (glyphRenderer, error)
}

// NewRepairer builds a Repairer with the production rasterizer.
func NewRepairer(cfg Config, engine ocr.Engine, log observability.Logger) *Repairer {
	if log == nil {
		log = observability.NopLogger{}
	}
	return &Repairer{
		cfg:      cfg,
		engine:   engine,
		log:      log,
		counters: observability.NewCounters(),
		newRenderer: func(program []byte, size int) (glyphRenderer, error) {
			return raster.New(program, size)
		},
	}
}

// fontState carries one font's mutable repair state. The mutex guards both
// the mapping table and the renderer, which is not safe for concurrent use.
// Recognition itself runs outside the lock.
type fontState struct {
	font     *pdfdoc.Font
	mu       sync.Mutex
	table    *cmap.Table
	renderer glyphRenderer
	changed  bool
}

type task struct {
	state *fontState
	code  int
}

// Repair settles a mapping for every used glyph of every embedded font and
// installs rebuilt ToUnicode tables for fonts that changed. A context
// cancellation aborts before anything is installed on the remaining fonts;
// since persistence is a separate step, a canceled run writes nothing.
func (r *Repairer) Repair(ctx context.Context, doc Document) (Stats, error) {
	fonts, err := doc.EmbeddedFonts()
	if err != nil {
		return r.stats(), fmt.Errorf("enumerate fonts: %w", err)
	}

	var states []*fontState
	var tasks []task
	for _, f := range fonts {
		r.counters.Add(observability.MetricFontsScanned, 1)
		st := r.prepareFont(f)
		states = append(states, st)
		for _, code := range f.UsedCodes {
			r.counters.Add(observability.MetricGlyphsScanned, 1)
			if existing, ok := st.table.Lookup(cmap.Code(code)); ok && Plausible(existing) {
				r.counters.Add(observability.MetricGlyphsKept, 1)
				continue
			}
			tasks = append(tasks, task{state: st, code: code})
		}
	}

	if err := r.runTasks(ctx, tasks); err != nil {
		return r.stats(), err
	}

	for _, st := range states {
		if !st.changed {
			continue
		}
		data := st.table.MarshalCMap(tableName(st.font))
		if err := doc.SetToUnicode(st.font, data); err != nil {
			return r.stats(), fmt.Errorf("install ToUnicode for %s: %w", tableName(st.font), err)
		}
		r.counters.Add(observability.MetricTablesPatched, 1)
		r.log.Info("ToUnicode table rebuilt",
			observability.String("font", tableName(st.font)),
			observability.Int("entries", st.table.Len()))
	}

	st := r.stats()
	r.log.Info("run complete", r.counters.Fields()...)
	return st, nil
}

// prepareFont parses the font's existing table and builds its renderer.
// Both failures degrade: an unparseable table is rebuilt from scratch, an
// unrenderable program sends every unsettled glyph to the fallback.
func (r *Repairer) prepareFont(f *pdfdoc.Font) *fontState {
	st := &fontState{font: f}

	if f.ToUnicode != nil {
		table, err := cmap.Parse(f.ToUnicode)
		if err != nil {
			r.log.Warn("existing ToUnicode unparseable, rebuilding",
				observability.String("font", tableName(f)),
				observability.Error("err", err))
		} else {
			st.table = table
		}
	}
	if st.table == nil {
		codeBytes := 1
		if f.Subtype == "Type0" {
			codeBytes = 2
		}
		st.table = cmap.New(codeBytes)
	}

	renderer, err := r.newRenderer(f.Program, r.cfg.TargetSize)
	if err != nil {
		if errors.Is(err, raster.ErrUnsupportedProgram) {
			r.log.Warn("font program not renderable, using fallback for all glyphs",
				observability.String("font", tableName(f)),
				observability.String("kind", f.ProgramKind))
		} else {
			r.log.Warn("font program unusable",
				observability.String("font", tableName(f)),
				observability.Error("err", err))
		}
		return st
	}
	st.renderer = renderer
	return st
}

// runTasks drains the glyph work queue with a bounded worker pool.
func (r *Repairer) runTasks(ctx context.Context, tasks []task) error {
	if len(tasks) == 0 {
		return nil
	}
	sem := make(chan struct{}, r.cfg.Workers)
	var wg sync.WaitGroup
	for _, t := range tasks {
		if err := ctx.Err(); err != nil {
			break
		}
		wg.Add(1)
		sem <- struct{}{}
		go func(t task) {
			defer wg.Done()
			defer func() { <-sem }()
			r.settleGlyph(ctx, t.state, t.code)
		}(t)
	}
	wg.Wait()
	return ctx.Err()
}

// settleGlyph resolves one (font, code) pair to a mapping: recognized text
// when the engine produces a single confident character, the configured
// default otherwise. Failures here never abort the run.
func (r *Repairer) settleGlyph(ctx context.Context, st *fontState, code int) {
	log := r.log.With(
		observability.String("font", tableName(st.font)),
		observability.Int("code", code))

	png, renderable := r.renderGlyph(st, code, log)
	if renderable && png != nil {
		opts := []ocr.InputOption{ocr.WithDPI(r.cfg.DPI)}
		if len(r.cfg.Languages) > 0 {
			opts = append(opts, ocr.WithLanguages(r.cfg.Languages...))
		}
		input := ocr.NewInput(inputID(st.font, code), png, opts...)
		res, err := r.engine.Recognize(ctx, input)
		if ch, ok := ocr.ReconcileChar(res, err); ok {
			r.assign(st, code, ch, OutcomeRecognized)
			log.Debug("glyph recognized", observability.Rune("char", ch))
			return
		}
		if err != nil {
			log.Warn("recognition failed", observability.Error("err", err))
		} else {
			log.Debug("recognition inconclusive", observability.String("text", res.Text))
		}
	}
	r.assign(st, code, r.cfg.fallbackRune(), OutcomeFallback)
}

// renderGlyph produces the glyph's PNG under the font lock. A nil PNG with
// renderable=true marks an empty outline, which needs no recognition.
func (r *Repairer) renderGlyph(st *fontState, code int, log observability.Logger) ([]byte, bool) {
	if st.font.Subtype == "Type0" && !st.font.Identity {
		// A CID behind a predefined or embedded CMap cannot be correlated
		// with a glyph index here; guessing one could persist a recognized
		// mapping for the wrong shape.
		log.Debug("no glyph correlation for non-Identity encoding")
		return nil, false
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	if st.renderer == nil {
		return nil, false
	}
	glyph, ok := st.renderer.GlyphForCode(code, st.font.Identity)
	if !ok {
		log.Debug("no glyph for code")
		return nil, false
	}
	bm, err := st.renderer.Rasterize(glyph)
	if err != nil {
		log.Warn("rasterize failed", observability.Error("err", err))
		return nil, false
	}
	if bm.Empty {
		// Space-like glyph, goes straight to the default character.
		return nil, true
	}
	png, err := bm.EncodePNG()
	if err != nil {
		log.Warn("encode failed", observability.Error("err", err))
		return nil, false
	}
	return png, true
}

func (r *Repairer) assign(st *fontState, code int, ch rune, outcome Outcome) {
	st.mu.Lock()
	defer st.mu.Unlock()
	if err := st.table.Assign(cmap.Code(code), []rune{ch}); err != nil {
		r.log.Warn("assignment rejected",
			observability.String("font", tableName(st.font)),
			observability.Int("code", code),
			observability.Error("err", err))
		return
	}
	st.changed = true
	switch outcome {
	case OutcomeRecognized:
		r.counters.Add(observability.MetricGlyphsRecognized, 1)
	case OutcomeFallback:
		r.counters.Add(observability.MetricGlyphsFallback, 1)
	}
}

func (r *Repairer) stats() Stats {
	return Stats{
		Fonts:      r.counters.Get(observability.MetricFontsScanned),
		Glyphs:     r.counters.Get(observability.MetricGlyphsScanned),
		Kept:       r.counters.Get(observability.MetricGlyphsKept),
		Recognized: r.counters.Get(observability.MetricGlyphsRecognized),
		Fallback:   r.counters.Get(observability.MetricGlyphsFallback),
		Patched:    r.counters.Get(observability.MetricTablesPatched),
	}
}

func tableName(f *pdfdoc.Font) string {
	if f.BaseFont != "" {
		return f.BaseFont
	}
	return fmt.Sprintf("Font-%d", f.ObjNumber)
}

func inputID(f *pdfdoc.Font, code int) string {
	return fmt.Sprintf("font%d-code%d", f.ObjNumber, code)
}

// Run opens the input, repairs it, and writes the output. This is the whole
// fix-missing-unicode operation; the CLI adds nothing but flag parsing.
func Run(ctx context.Context, cfg Config, log observability.Logger) (Stats, error) {
	if err := cfg.Validate(); err != nil {
		return Stats{}, err
	}
	engine, err := ocr.Select(cfg.Engine, ocr.Options{
		EasyEndpoint:  cfg.EasyEndpoint,
		RapidEndpoint: cfg.RapidEndpoint,
	})
	if err != nil {
		return Stats{}, err
	}
	doc, err := pdfdoc.Open(cfg.InputPath)
	if err != nil {
		return Stats{}, err
	}
	r := NewRepairer(cfg, engine, log)
	stats, err := r.Repair(ctx, doc)
	if err != nil {
		return stats, err
	}
	if err := doc.Save(cfg.OutputPath); err != nil {
		return stats, err
	}
	return stats, nil
}
