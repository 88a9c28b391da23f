package compiler

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"

	"soul/internal/heart"
	"soul/internal/ident"
)

// Program is the result of a successful Link: every processor and graph
// that was reachable from the merged source, already lowered to HEART,
// plus the interning tables they were built against.
type Program struct {
	idents *ident.Pool
	strs   *ident.StringDictionary
	consts *ident.ConstantTable

	Modules map[string]*heart.Module
	order   []string // lowering order, for deterministic dumps/hashes
	Main    string
	Options LinkOptions
}

// Module looks up one lowered module by name.
func (p *Program) Module(name string) *heart.Module { return p.Modules[name] }

// MainModule returns the module LinkOptions.MainProcessor named, or nil if
// none was set or it wasn't found.
func (p *Program) MainModule() *heart.Module {
	if p.Main == "" {
		return nil
	}
	return p.Modules[p.Main]
}

// ModuleNames returns every lowered module's name, in lowering order.
func (p *Program) ModuleNames() []string {
	out := make([]string, len(p.order))
	copy(out, p.order)
	return out
}

// ToHEART renders the whole program as the textual, round-trippable dump
// the language definition's toHEART()/createFromHEART() pair promises —
// one S-expression per module (internal/heart.Dump), wrapped in a header
// naming the main processor.
func (p *Program) ToHEART() string {
	var b strings.Builder
	b.WriteString("( PROGRAM ")
	if p.Main == "" {
		b.WriteString("_")
	} else {
		b.WriteString(p.Main)
	}
	b.WriteString(" ( MODULES")
	for _, name := range p.order {
		b.WriteString(" ")
		b.WriteString(heart.Dump(p.Modules[name]))
	}
	b.WriteString(" ) )")
	return b.String()
}

// CreateFromHEART decodes a dump produced by ToHEART back into a Program.
// The decoded Program shares no tables with whichever Compiler produced
// the original — it carries its own fresh ident.Pool, since a textual
// dump has already thrown away pointer identity in favour of names — but
// its ToHEART output reproduces the original text byte for byte, which is
// what Hash needs from a round trip.
func CreateFromHEART(text string) (*Program, error) {
	toks := strings.Fields(text)
	pos := 0
	expect := func(tok string) error {
		if pos >= len(toks) || toks[pos] != tok {
			return fmt.Errorf("malformed HEART dump: expected %q at token %d", tok, pos)
		}
		pos++
		return nil
	}
	if err := expect("("); err != nil {
		return nil, err
	}
	if err := expect("PROGRAM"); err != nil {
		return nil, err
	}
	if pos >= len(toks) {
		return nil, fmt.Errorf("malformed HEART dump: truncated after PROGRAM")
	}
	main := toks[pos]
	if main == "_" {
		main = ""
	}
	pos++
	if err := expect("("); err != nil {
		return nil, err
	}
	if err := expect("MODULES"); err != nil {
		return nil, err
	}

	idents := ident.NewPool()
	prog := &Program{
		idents:  idents,
		strs:    ident.NewStringDictionary(),
		consts:  ident.NewConstantTable(),
		Modules: map[string]*heart.Module{},
		Main:    main,
	}
	for pos < len(toks) && toks[pos] != ")" {
		m, next := heart.ParseModuleAt(toks, pos, idents)
		pos = next
		prog.Modules[m.Name] = m
		prog.order = append(prog.order, m.Name)
	}
	if err := expect(")"); err != nil {
		return nil, err
	}
	if err := expect(")"); err != nil {
		return nil, err
	}
	return prog, nil
}

// Hash returns a stable fingerprint of the compiled program, suitable for
// caching a build's output keyed on its source: two programs compiled
// from equivalent source hash identically, since Hash is computed purely
// from the main processor's name and each module's heart.Dump text (the
// same per-module text ToHEART embeds), and that text never embeds anything
// compilation-instance-specific (pointers, map iteration order, wall
// clock). Module order is sorted first so Hash doesn't depend on the
// order Link happened to lower modules in.
func (p *Program) Hash() string {
	sorted := make([]string, len(p.order))
	copy(sorted, p.order)
	sort.Strings(sorted)

	var b strings.Builder
	b.WriteString(p.Main)
	for _, name := range sorted {
		b.WriteString("\x00")
		b.WriteString(heart.Dump(p.Modules[name]))
	}
	sum := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:])
}
