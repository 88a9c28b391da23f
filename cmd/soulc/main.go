// Command soulc is the CLI named in the language definition's external
// interfaces: `compile`, `render` and `run` subcommands over patches and
// raw source files.
//
// Grounded on the reference implementation's own main(): a plain switch
// over os.Args with no flag package, since none of the pack pulls one
// in for a CLI this small.
package main

import (
	"fmt"
	"os"

	"soul/internal/compiler"
	"soul/internal/diag"
	"soul/internal/manifest"
	"soul/internal/runtime"
)

const usage = `usage:
  soulc compile <source.soul> -o <out.heart>
  soulc render <patch.soulpatch> <input.wav> <output.wav>
  soulc run <patch.soulpatch>
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(1)
	}

	var code int
	switch os.Args[1] {
	case "compile":
		code = runCompile(os.Args[2:])
	case "render":
		code = runRender(os.Args[2:])
	case "run":
		code = runRun(os.Args[2:])
	default:
		fmt.Fprint(os.Stderr, usage)
		code = 1
	}
	os.Exit(code)
}

// runCompile implements `compile <source> -o <out>`: parse and link one
// source file on its own, with no main processor singled out, and dump
// the resulting Program to its HEART text form.
func runCompile(args []string) int {
	if len(args) < 3 || args[1] != "-o" {
		fmt.Fprint(os.Stderr, usage)
		return 1
	}
	source, out := args[0], args[2]

	src, err := os.ReadFile(source)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		return 2
	}

	diags := &diag.List{}
	c := compiler.New()
	prog := c.Build(diags, source, string(src), compiler.LinkOptions{})
	if diags.HasErrors() {
		fmt.Fprint(os.Stderr, diags.String())
		return 1
	}

	if err := os.WriteFile(out, []byte(prog.ToHEART()), 0644); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		return 2
	}
	return 0
}

// runRender implements `render <patch> <input.wav> <output.wav>`: load a
// patch manifest, link it with its named main processor, and run it
// offline over one WAV file into another.
func runRender(args []string) int {
	if len(args) < 3 {
		fmt.Fprint(os.Stderr, usage)
		return 1
	}
	patchPath, inPath, outPath := args[0], args[1], args[2]

	prog, mainModule, code := loadAndLink(patchPath)
	if prog == nil {
		return code
	}

	if err := runtime.Render(prog, mainModule, inPath, outPath); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		return 3
	}
	return 0
}

// runRun implements `run <patch>`: load a patch manifest and play it
// live against the default audio device until interrupted.
func runRun(args []string) int {
	if len(args) < 1 {
		fmt.Fprint(os.Stderr, usage)
		return 1
	}

	prog, mainModule, code := loadAndLink(args[0])
	if prog == nil {
		return code
	}

	player, err := runtime.NewPlayer(prog, mainModule, prog.Options.SampleRate)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		return 2
	}
	fmt.Println(player.Info())

	if err := player.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		return 3
	}
	return 0
}

// loadAndLink resolves a patch manifest to its source files and links
// them into a Program, reporting an appropriate exit code on failure
// (2 for manifest/I/O errors, 1 for compile errors).
func loadAndLink(patchPath string) (*compiler.Program, string, int) {
	diags := &diag.List{}
	patch := manifest.Load(diags, patchPath)
	if patch == nil {
		fmt.Fprint(os.Stderr, diags.String())
		return nil, "", 2
	}
	sources := manifest.LoadSources(diags, patch)
	if sources == nil {
		fmt.Fprint(os.Stderr, diags.String())
		return nil, "", 2
	}

	c := compiler.New()
	for _, s := range sources {
		c.AddCode(diags, s.File, s.Code)
	}
	if diags.HasErrors() {
		fmt.Fprint(os.Stderr, diags.String())
		return nil, "", 1
	}

	prog := c.Link(diags, compiler.LinkOptions{MainProcessor: patch.MainProcessor, SampleRate: 44100})
	if diags.HasErrors() || prog == nil {
		fmt.Fprint(os.Stderr, diags.String())
		return nil, "", 1
	}
	return prog, patch.MainProcessor, 0
}
