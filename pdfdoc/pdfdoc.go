// Package pdfdoc is the boundary to the PDF object model, backed by pdfcpu.
// The repair engine never touches raw PDF bytes: this package enumerates
// embedded fonts, hands out their font programs and ToUnicode streams, scans
// which character codes the document actually shows, and installs rebuilt
// ToUnicode streams. All mutation stays in memory until Save.
package pdfdoc

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"
)

// Font is one distinct embedded font referenced by the document. Identity is
// the font dict's indirect object number: the same resource name on two
// pages pointing at one dict is one Font, and one glyph id in two Fonts is
// two distinct glyphs.
type Font struct {
	// ObjNumber is the font dict's indirect object number, or a negative
	// synthetic number when the dict is stored directly in its resource dict.
	// Unique per font either way.
	ObjNumber int
	// BaseFont is the PostScript name from the font dict, may be subset-tagged.
	BaseFont string
	// Subtype is the font dict subtype (Type0, TrueType, Type1, ...).
	Subtype string
	// Identity reports a Type0 font with an Identity encoding: codes are two
	// bytes and address glyphs directly.
	Identity bool
	// Program holds the decoded embedded font program.
	Program []byte
	// ProgramKind names the descriptor key the program came from
	// (FontFile, FontFile2 or FontFile3).
	ProgramKind string
	// ToUnicode holds the decoded existing mapping stream, nil when absent.
	ToUnicode []byte
	// UsedCodes lists the distinct character codes the document shows with
	// this font, ascending. Only these bound the repair work; the font
	// program's full glyph set is irrelevant.
	UsedCodes []int

	dict types.Dict
}

// Document wraps an open pdfcpu context.
type Document struct {
	ctx  *model.Context
	path string

	// synthetic numbers fonts held as direct dicts, which have no indirect
	// object number of their own. Negative so they never collide.
	synthetic int
}

// Open reads and validates a PDF. Any failure here is fatal for the run.
func Open(path string) (*Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open input: %w", err)
	}
	defer f.Close()

	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	ctx, err := api.ReadValidateAndOptimize(f, conf)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return &Document{ctx: ctx, path: path}, nil
}

// PageCount reports the number of pages.
func (d *Document) PageCount() int { return d.ctx.PageCount }

// Save writes the document once, after all mutation. Nothing is persisted
// before this call, so an aborted run leaves no partial output.
func (d *Document) Save(path string) error {
	if err := api.WriteContextFile(d.ctx, path); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

// EmbeddedFonts returns the distinct embedded fonts referenced from page
// resources (including one level of Form XObject resources), with their
// used character codes populated. Fonts without an embedded program are
// skipped: there is no outline to render, and non-embedded fonts were out
// of scope for the original tool as well.
func (d *Document) EmbeddedFonts() ([]*Font, error) {
	byObj := make(map[int]*Font)

	for pageNr := 1; pageNr <= d.ctx.PageCount; pageNr++ {
		_, _, inhPAttrs, err := d.ctx.PageDict(pageNr, false)
		if err != nil {
			return nil, fmt.Errorf("page %d: %w", pageNr, err)
		}
		if inhPAttrs == nil || inhPAttrs.Resources == nil {
			continue
		}
		resFonts, err := d.resourceFonts(inhPAttrs.Resources, byObj)
		if err != nil {
			return nil, fmt.Errorf("page %d fonts: %w", pageNr, err)
		}

		content := d.pageContent(pageNr)
		d.scanContent(content, resFonts)

		if err := d.scanFormXObjects(inhPAttrs.Resources, byObj); err != nil {
			return nil, fmt.Errorf("page %d xobjects: %w", pageNr, err)
		}
	}

	out := make([]*Font, 0, len(byObj))
	for _, f := range byObj {
		sort.Ints(f.UsedCodes)
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ObjNumber < out[j].ObjNumber })
	return out, nil
}

// resourceFonts resolves a resource dict's /Font entries into Fonts, reusing
// previously seen dicts via byObj, and returns the page-local resource name
// binding used to correlate Tf selections.
func (d *Document) resourceFonts(res types.Dict, byObj map[int]*Font) (map[string]*Font, error) {
	bound := make(map[string]*Font)
	obj, found := res.Find("Font")
	if !found {
		return bound, nil
	}
	fontRes, err := d.ctx.DereferenceDict(obj)
	if err != nil || fontRes == nil {
		return bound, nil
	}
	for name, v := range fontRes {
		objNr := 0
		if ir, ok := v.(types.IndirectRef); ok {
			objNr = ir.ObjectNumber.Value()
		}
		if f, ok := byObj[objNr]; ok && objNr != 0 {
			bound[name] = f
			continue
		}
		fontDict, err := d.ctx.DereferenceDict(v)
		if err != nil || fontDict == nil {
			continue
		}
		if objNr == 0 {
			d.synthetic--
			objNr = d.synthetic
		}
		f, err := d.loadFont(objNr, fontDict)
		if err != nil {
			// Corrupt single font structure degrades to skipping that font.
			continue
		}
		if f == nil {
			continue
		}
		byObj[objNr] = f
		bound[name] = f
	}
	return bound, nil
}

// loadFont builds a Font from its dict, or nil when no embedded program
// exists.
func (d *Document) loadFont(objNr int, fontDict types.Dict) (*Font, error) {
	f := &Font{ObjNumber: objNr, dict: fontDict}
	if st := fontDict.Subtype(); st != nil {
		f.Subtype = *st
	}
	if bf, found := fontDict.Find("BaseFont"); found {
		if n, ok := bf.(types.Name); ok {
			f.BaseFont = n.Value()
		}
	}

	descriptorHolder := fontDict
	if f.Subtype == "Type0" {
		if enc, found := fontDict.Find("Encoding"); found {
			if n, ok := enc.(types.Name); ok && strings.HasPrefix(n.Value(), "Identity") {
				f.Identity = true
			}
		}
		descendants, err := d.ctx.DereferenceArray(fontDict["DescendantFonts"])
		if err != nil || len(descendants) == 0 {
			return nil, errors.New("Type0 font without descendant")
		}
		desc, err := d.ctx.DereferenceDict(descendants[0])
		if err != nil || desc == nil {
			return nil, errors.New("unresolvable descendant font")
		}
		descriptorHolder = desc
	}

	fd, err := d.ctx.DereferenceDict(descriptorHolder["FontDescriptor"])
	if err != nil || fd == nil {
		return nil, nil // not embedded
	}
	for _, key := range []string{"FontFile2", "FontFile3", "FontFile"} {
		obj, found := fd.Find(key)
		if !found {
			continue
		}
		data, err := d.streamBytes(obj)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", key, err)
		}
		f.Program = data
		f.ProgramKind = key
		break
	}
	if f.Program == nil {
		return nil, nil // not embedded
	}

	if tu, found := fontDict.Find("ToUnicode"); found {
		if data, err := d.streamBytes(tu); err == nil {
			f.ToUnicode = data
		}
	}
	return f, nil
}

func (d *Document) streamBytes(obj types.Object) ([]byte, error) {
	sd, _, err := d.ctx.DereferenceStreamDict(obj)
	if err != nil {
		return nil, err
	}
	if sd == nil {
		return nil, errors.New("not a stream")
	}
	if err := sd.Decode(); err != nil {
		return nil, fmt.Errorf("decode stream: %w", err)
	}
	return sd.Content, nil
}

// pageContent returns the page's flattened content stream, empty on error: a
// page whose content cannot be extracted simply contributes no used codes.
func (d *Document) pageContent(pageNr int) []byte {
	r, err := pdfcpu.ExtractPageContent(d.ctx, pageNr)
	if err != nil || r == nil {
		return nil
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil
	}
	return data
}

func (d *Document) scanContent(content []byte, bound map[string]*Font) {
	if len(content) == 0 || len(bound) == 0 {
		return
	}
	for resName, codes := range usedCodes(content) {
		f, ok := bound[resName]
		if !ok {
			continue
		}
		f.addCodes(codes, f.Subtype == "Type0")
	}
}

// scanFormXObjects walks Form XObjects reachable from a page resource dict
// one level deep, scanning their content against their own font resources.
func (d *Document) scanFormXObjects(res types.Dict, byObj map[int]*Font) error {
	obj, found := res.Find("XObject")
	if !found {
		return nil
	}
	xObjects, err := d.ctx.DereferenceDict(obj)
	if err != nil || xObjects == nil {
		return nil
	}
	for _, v := range xObjects {
		sd, _, err := d.ctx.DereferenceStreamDict(v)
		if err != nil || sd == nil {
			continue
		}
		if st := sd.Subtype(); st == nil || *st != "Form" {
			continue
		}
		xRes, err := d.ctx.DereferenceDict(sd.Dict["Resources"])
		if err != nil || xRes == nil {
			continue
		}
		bound, err := d.resourceFonts(xRes, byObj)
		if err != nil || len(bound) == 0 {
			continue
		}
		if err := sd.Decode(); err != nil {
			continue
		}
		d.scanContent(sd.Content, bound)
	}
	return nil
}

// addCodes merges raw string bytes into UsedCodes, splitting per the font's
// code width.
func (f *Font) addCodes(raw [][]byte, twoByte bool) {
	seen := make(map[int]struct{}, len(f.UsedCodes))
	for _, c := range f.UsedCodes {
		seen[c] = struct{}{}
	}
	for _, s := range raw {
		if twoByte {
			for i := 0; i+1 < len(s); i += 2 {
				code := int(s[i])<<8 | int(s[i+1])
				if _, ok := seen[code]; !ok {
					seen[code] = struct{}{}
					f.UsedCodes = append(f.UsedCodes, code)
				}
			}
		} else {
			for _, b := range s {
				code := int(b)
				if _, ok := seen[code]; !ok {
					seen[code] = struct{}{}
					f.UsedCodes = append(f.UsedCodes, code)
				}
			}
		}
	}
}

// SetToUnicode installs data as the font's ToUnicode stream. The stream is
// always a freshly created indirect object; the previous stream object, if
// any, is left for other consumers and the font dict is repointed.
func (d *Document) SetToUnicode(f *Font, data []byte) error {
	if f.dict == nil {
		return errors.New("font has no backing dict")
	}
	sd, err := d.ctx.XRefTable.NewStreamDictForBuf(data)
	if err != nil {
		return fmt.Errorf("build ToUnicode stream: %w", err)
	}
	if err := sd.Encode(); err != nil {
		return fmt.Errorf("encode ToUnicode stream: %w", err)
	}
	ir, err := d.ctx.XRefTable.IndRefForNewObject(*sd)
	if err != nil {
		return fmt.Errorf("allocate ToUnicode object: %w", err)
	}
	f.dict["ToUnicode"] = *ir
	f.ToUnicode = append([]byte(nil), data...)
	return nil
}
