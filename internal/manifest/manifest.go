// Package manifest loads and saves the JSON patch-manifest format named in
// the language definition's external interfaces: a file carrying the
// keys "soulPatchV1", "files", "manifest" and "view" that names which
// source files make up a patch, which processor is its entry point, and
// how a host should present it. The core compiler never reads one of
// these directly — cmd/soulc reads a manifest, resolves it to a list of
// source files and a main-processor name, then drives internal/compiler
// with those, the same split the language definition draws between the
// core and its external collaborators.
//
// Grounded on the reference implementation's saveJson/loadFunctions
// pair (bsd-linux.go): os.ReadFile/os.WriteFile plus encoding/json,
// generalised here to report failures as diag.Message values (wrapping
// the underlying *os.PathError/json.SyntaxError with github.com/pkg/errors
// so the cause survives) instead of the reference's msg()-to-console
// logging, since a manifest load failure is the caller's to decide what
// to do with, not something this package should print on its own.
package manifest

import (
	"encoding/json"
	"os"
	"path/filepath"

	"soul/internal/diag"
)

// Header is the "soulPatchV1" object: the metadata a host (or this
// repo's own CLI) needs to identify and launch a patch.
type Header struct {
	ID            string `json:"ID"`
	Version       string `json:"version"`
	Name          string `json:"name"`
	Description   string `json:"description,omitempty"`
	Category      string `json:"category,omitempty"`
	Manufacturer  string `json:"manufacturer,omitempty"`
	Website       string `json:"website,omitempty"`
	IsInstrument  bool   `json:"isInstrument,omitempty"`
	MainProcessor string `json:"mainProcessor"`
}

// View describes the optional UI surface a host can open alongside a
// running patch — the JSON counterpart of the mouse/visual control
// internal/runtime/display drives at runtime.
type View struct {
	Src       string `json:"src,omitempty"`
	Width     int    `json:"width,omitempty"`
	Height    int    `json:"height,omitempty"`
	Resizable bool   `json:"resizable,omitempty"`
}

// Document is the on-disk shape of a manifest file: the four keys the
// language definition names, as direct JSON siblings.
type Document struct {
	SoulPatchV1 Header   `json:"soulPatchV1"`
	Files       []string `json:"files"`
	// Manifest optionally names a further manifest file, relative to
	// this one, whose Files are merged in — the split-manifest case a
	// larger patch uses to share a common file list across variants.
	Manifest string `json:"manifest,omitempty"`
	View     *View  `json:"view,omitempty"`
}

// Patch is a Document resolved against the filesystem: every entry in
// Files is now an absolute-or-cwd-relative path a caller can hand
// straight to os.ReadFile, and any nested "manifest" reference has
// already been followed and merged in.
type Patch struct {
	MainProcessor string
	Files         []string
	View          *View
}

// Source is one file named by a Patch, with its contents already read —
// what internal/compiler.Compiler.AddCode wants as (file, code) pairs.
type Source struct {
	File string
	Code string
}

// Load reads and resolves the manifest at path. Diagnostics (a missing
// file, malformed JSON, a patch naming no files or no main processor)
// are appended to messages; Load returns nil only once it has appended
// at least one error-severity message explaining why.
func Load(messages *diag.List, path string) *Patch {
	loc := diag.Location{File: path}

	raw, err := os.ReadFile(path)
	if err != nil {
		messages.Add(diag.Wrap(loc, diag.InternalAssert, err, "reading patch manifest %q", path))
		return nil
	}

	var doc Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		messages.Add(diag.Wrap(loc, diag.ParseError, err, "decoding patch manifest %q", path))
		return nil
	}

	dir := filepath.Dir(path)
	files := resolveFiles(dir, doc.Files)

	if doc.Manifest != "" {
		nested := Load(messages, filepath.Join(dir, doc.Manifest))
		if nested == nil {
			return nil
		}
		files = append(files, nested.Files...)
		if doc.SoulPatchV1.MainProcessor == "" {
			doc.SoulPatchV1.MainProcessor = nested.MainProcessor
		}
		if doc.View == nil {
			doc.View = nested.View
		}
	}

	if len(files) == 0 {
		messages.Addf(loc, diag.SanityError, "patch manifest %q names no source files", path)
		return nil
	}
	if doc.SoulPatchV1.MainProcessor == "" {
		messages.Addf(loc, diag.SanityError, "patch manifest %q declares no mainProcessor", path)
		return nil
	}

	return &Patch{
		MainProcessor: doc.SoulPatchV1.MainProcessor,
		Files:         files,
		View:          doc.View,
	}
}

func resolveFiles(dir string, files []string) []string {
	out := make([]string, len(files))
	for i, f := range files {
		if filepath.IsAbs(f) {
			out[i] = f
		} else {
			out[i] = filepath.Join(dir, f)
		}
	}
	return out
}

// LoadSources reads every file a Patch names, in order, returning them
// ready to feed to Compiler.AddCode one at a time. It stops at the first
// read failure, appending the I/O error rather than skipping it silently —
// a patch with a missing source file can't compile correctly by halves.
func LoadSources(messages *diag.List, p *Patch) []Source {
	out := make([]Source, 0, len(p.Files))
	for _, f := range p.Files {
		raw, err := os.ReadFile(f)
		if err != nil {
			messages.Add(diag.Wrap(diag.Location{File: f}, diag.InternalAssert, err, "reading source file %q", f))
			return nil
		}
		out = append(out, Source{File: f, Code: string(raw)})
	}
	return out
}

// Save writes p back out as a manifest document at path, the save-side
// counterpart of Load, pretty-printed the way the reference
// implementation's saveJson always did ("", "\t") so a manifest stays
// diffable in version control.
func Save(p *Patch, path string) error {
	dir := filepath.Dir(path)
	rel := make([]string, len(p.Files))
	for i, f := range p.Files {
		r, err := filepath.Rel(dir, f)
		if err != nil {
			r = f
		}
		rel[i] = r
	}

	doc := Document{
		SoulPatchV1: Header{MainProcessor: p.MainProcessor},
		Files:       rel,
		View:        p.View,
	}
	j, err := json.MarshalIndent(doc, "", "\t")
	if err != nil {
		return err
	}
	return os.WriteFile(path, j, 0644)
}
