// Package ocr defines the abstraction layer for plugging recognition engines
// into the glyph repair pipeline. The recognition target is always a single
// rendered glyph, never a word or a page, so the contract is deliberately
// narrow: one bitmap in, at most one character out. Engines can be backed by
// native libraries (Tesseract via gosseract) or by HTTP sidecar services
// (EasyOCR, RapidOCR) without leaking provider-specific concerns into
// callers.
package ocr
