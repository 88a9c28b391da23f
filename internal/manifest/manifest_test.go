package manifest

import (
	"os"
	"path/filepath"
	"testing"

	"soul/internal/diag"
)

func writeFile(t *testing.T, dir, name, contents string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, []byte(contents), 0644); err != nil {
		t.Fatalf("writing fixture %q: %v", p, err)
	}
	return p
}

func TestLoadResolvesFilesRelativeToManifest(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "gain.soul", "processor Gain {}")
	manifestPath := writeFile(t, dir, "patch.soulpatch", `{
		"soulPatchV1": {"ID": "test.gain", "version": "1.0", "name": "Gain", "mainProcessor": "Gain"},
		"files": ["gain.soul"]
	}`)

	diags := &diag.List{}
	p := Load(diags, manifestPath)
	if diags.HasErrors() {
		t.Fatalf("unexpected errors: %s", diags.String())
	}
	if p == nil {
		t.Fatalf("expected a patch")
	}
	if p.MainProcessor != "Gain" {
		t.Fatalf("expected MainProcessor %q, got %q", "Gain", p.MainProcessor)
	}
	if len(p.Files) != 1 || p.Files[0] != filepath.Join(dir, "gain.soul") {
		t.Fatalf("expected resolved file path, got %v", p.Files)
	}
}

func TestLoadMergesNestedManifest(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "shared.soul", "processor Shared {}")
	shared := writeFile(t, dir, "shared.soulpatch", `{
		"soulPatchV1": {"mainProcessor": "Shared"},
		"files": ["shared.soul"]
	}`)
	_ = shared
	top := writeFile(t, dir, "top.soulpatch", `{
		"soulPatchV1": {"mainProcessor": "Top"},
		"files": ["top.soul"],
		"manifest": "shared.soulpatch"
	}`)
	writeFile(t, dir, "top.soul", "processor Top {}")

	diags := &diag.List{}
	p := Load(diags, top)
	if diags.HasErrors() {
		t.Fatalf("unexpected errors: %s", diags.String())
	}
	if len(p.Files) != 2 {
		t.Fatalf("expected both manifests' files merged, got %v", p.Files)
	}
	if p.MainProcessor != "Top" {
		t.Fatalf("expected the top manifest's own mainProcessor to win, got %q", p.MainProcessor)
	}
}

func TestLoadMissingFileReportsError(t *testing.T) {
	diags := &diag.List{}
	p := Load(diags, filepath.Join(t.TempDir(), "nope.soulpatch"))
	if p != nil {
		t.Fatalf("expected nil patch for a missing manifest file")
	}
	if !diags.HasErrors() {
		t.Fatalf("expected an error diagnostic")
	}
}

func TestLoadMalformedJSONReportsError(t *testing.T) {
	dir := t.TempDir()
	bad := writeFile(t, dir, "bad.soulpatch", `{ not json`)

	diags := &diag.List{}
	p := Load(diags, bad)
	if p != nil {
		t.Fatalf("expected nil patch for malformed JSON")
	}
	if !diags.HasErrors() {
		t.Fatalf("expected an error diagnostic")
	}
}

func TestLoadNoFilesReportsError(t *testing.T) {
	dir := t.TempDir()
	empty := writeFile(t, dir, "empty.soulpatch", `{
		"soulPatchV1": {"mainProcessor": "Gain"},
		"files": []
	}`)

	diags := &diag.List{}
	p := Load(diags, empty)
	if p != nil {
		t.Fatalf("expected nil patch when no files are named")
	}
	if !diags.HasErrors() {
		t.Fatalf("expected an error diagnostic about no source files")
	}
}

func TestLoadNoMainProcessorReportsError(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "gain.soul", "processor Gain {}")
	noMain := writeFile(t, dir, "nomain.soulpatch", `{
		"soulPatchV1": {},
		"files": ["gain.soul"]
	}`)

	diags := &diag.List{}
	p := Load(diags, noMain)
	if p != nil {
		t.Fatalf("expected nil patch when no mainProcessor is named")
	}
	if !diags.HasErrors() {
		t.Fatalf("expected an error diagnostic about the missing main processor")
	}
}

func TestLoadSourcesReadsEveryFileInOrder(t *testing.T) {
	dir := t.TempDir()
	a := writeFile(t, dir, "a.soul", "processor A {}")
	b := writeFile(t, dir, "b.soul", "processor B {}")

	diags := &diag.List{}
	p := &Patch{MainProcessor: "A", Files: []string{a, b}}
	sources := LoadSources(diags, p)
	if diags.HasErrors() {
		t.Fatalf("unexpected errors: %s", diags.String())
	}
	if len(sources) != 2 {
		t.Fatalf("expected 2 sources, got %d", len(sources))
	}
	if sources[0].Code != "processor A {}" || sources[1].Code != "processor B {}" {
		t.Fatalf("unexpected source contents: %+v", sources)
	}
}

func TestLoadSourcesStopsAtFirstMissingFile(t *testing.T) {
	dir := t.TempDir()
	a := writeFile(t, dir, "a.soul", "processor A {}")

	diags := &diag.List{}
	p := &Patch{MainProcessor: "A", Files: []string{a, filepath.Join(dir, "missing.soul")}}
	sources := LoadSources(diags, p)
	if sources != nil {
		t.Fatalf("expected nil sources when a file is missing")
	}
	if !diags.HasErrors() {
		t.Fatalf("expected an error diagnostic")
	}
}

func TestSaveRoundTripsFileListAsRelativePaths(t *testing.T) {
	dir := t.TempDir()
	src := writeFile(t, dir, "gain.soul", "processor Gain {}")

	out := filepath.Join(dir, "out.soulpatch")
	p := &Patch{MainProcessor: "Gain", Files: []string{src}}
	if err := Save(p, out); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	diags := &diag.List{}
	reloaded := Load(diags, out)
	if diags.HasErrors() {
		t.Fatalf("unexpected errors reloading saved manifest: %s", diags.String())
	}
	if reloaded.MainProcessor != "Gain" {
		t.Fatalf("expected MainProcessor to round-trip, got %q", reloaded.MainProcessor)
	}
	if len(reloaded.Files) != 1 || reloaded.Files[0] != src {
		t.Fatalf("expected file path to round-trip, got %v", reloaded.Files)
	}
}
