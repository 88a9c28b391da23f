// Package sanity implements the pre- and post-resolution structural and
// semantic checks a SOUL program must satisfy.
//
// Grounded on the reference op-listing interpreter's validation helpers — argsCorrect,
// bounds, nyquist — which all share one shape: given some already-parsed
// state, return a bool (or emit via msg()) rather than panic. The checks
// here follow that "walk the tree, append a diagnostic, keep going"
// discipline instead of aborting on the first problem, so a single
// addCode call surfaces every structural defect at once.
package sanity

import (
	"soul/internal/ast"
	"soul/internal/diag"
)

// CheckPre runs the pre-resolution checks of the language definition: every processor
// must declare at least one output and exactly one run-annotated,
// parameterless, void function.
func CheckPre(ns *ast.Namespace, diags *diag.List) {
	walkModules(ns, func(m ast.Module) {
		if proc, ok := m.(*ast.Processor); ok {
			checkProcessorPre(proc, diags)
		}
	})
}

func checkProcessorPre(proc *ast.Processor, diags *diag.List) {
	hasOutput := false
	for _, e := range proc.Endpoints {
		if e.Direction == ast.DirOutput {
			hasOutput = true
			break
		}
	}
	if !hasOutput {
		diags.Addf(proc.Location(), diag.SanityError, "processor %s must declare at least one output", proc.Name)
	}

	runFns := 0
	for _, f := range proc.Functions {
		if f.Role == ast.RoleRun {
			runFns++
			if len(f.Params) != 0 {
				diags.Addf(f.Location(), diag.SanityError, "run function %s must take no parameters", f.Name)
			}
			if ct, ok := f.ReturnExpr.(*ast.ConcreteType); !ok || ct.ExprType() == nil || !ct.ExprType().IsVoid() {
				diags.Addf(f.Location(), diag.SanityError, "run function %s must return void", f.Name)
			}
		}
	}
	switch {
	case runFns == 0:
		diags.Addf(proc.Location(), diag.SanityError, "processor %s must declare exactly one run function", proc.Name)
	case runFns > 1:
		diags.Addf(proc.Location(), diag.SanityError, "processor %s declares %d run functions, expected exactly one", proc.Name, runFns)
	}
}

// CheckPost runs the post-resolution checks of the language definition, after the
// fixpoint loop in internal/resolve has settled.
func CheckPost(ns *ast.Namespace, diags *diag.List) {
	walkModules(ns, func(m ast.Module) {
		checkDuplicateNames(m, diags)
		switch mm := m.(type) {
		case *ast.Processor:
			checkEventHandlers(mm, diags)
			checkRecursiveStructs(mm.Structs, diags)
			checkRecursiveUsings(mm.Usings, diags)
			for _, e := range mm.Endpoints {
				for _, st := range e.SampleTypes {
					if st != nil && st.IsMultiDimensionalArray() {
						diags.Addf(e.Location(), diag.NotYetImplemented, "multi-dimensional array sample type on endpoint %s", e.Name)
					}
				}
			}
			for _, f := range mm.Functions {
				if f.Body != nil {
					checkIncDecCollisions(f.Body, diags)
				}
			}
		case *ast.Graph:
			checkDelayBounds(mm, diags)
			checkGraphCycles(mm, diags)
		}
	})
}

// checkDuplicateNames reports more than one declaration of the same name
// within a single scope — the walk mirrors ast.Scope.Lookup's own
// per-category loops instead of reusing Lookup, since Lookup is designed to
// find hits, not count collisions across categories.
func checkDuplicateNames(m ast.Module, diags *diag.List) {
	seen := map[string]diag.Location{}
	declare := func(name string, loc diag.Location) {
		if name == "" {
			return
		}
		if prev, ok := seen[name]; ok {
			diags.Addf(loc, diag.SanityError, "%q redeclared in this scope, previously declared at %s", name, prev)
			return
		}
		seen[name] = loc
	}
	switch mm := m.(type) {
	case *ast.Processor:
		for _, e := range mm.Endpoints {
			declare(e.Name.String(), e.Location())
		}
		for _, v := range mm.StateVars {
			declare(v.Name.String(), v.Location())
		}
		for _, u := range mm.Usings {
			declare(u.Name.String(), u.Location())
		}
		for _, f := range mm.Functions {
			declare(f.Name.String(), f.Location())
		}
	case *ast.Graph:
		for _, e := range mm.Endpoints {
			declare(e.Name.String(), e.Location())
		}
		for _, i := range mm.Instances {
			declare(i.Name.String(), i.Location())
		}
	case *ast.Namespace:
		for _, s := range mm.Subs {
			declare(s.ModuleName().String(), s.Location())
		}
		for _, u := range mm.Usings {
			declare(u.Name.String(), u.Location())
		}
		for _, c := range mm.Constants {
			declare(c.Name.String(), c.Location())
		}
		for _, f := range mm.Functions {
			declare(f.Name.String(), f.Location())
		}
	}
}

// checkEventHandlers enforces the correspondence between a
// processor's event input endpoints and its event-handler functions:
// every event input must have a same-named handler function.
func checkEventHandlers(proc *ast.Processor, diags *diag.List) {
	handlers := map[string]bool{}
	for _, f := range proc.Functions {
		handlers[f.Name.String()] = true
	}
	for _, e := range proc.Endpoints {
		if e.Direction == ast.DirInput && e.Kind == ast.EndpointEvent {
			if !handlers[e.Name.String()] {
				diags.Addf(e.Location(), diag.SanityError, "event input %s has no handler function of the same name", e.Name)
			}
		}
	}
}

// checkRecursiveStructs walks each struct's member types looking for a
// cycle, using the visiting/visited flags on ast.StructDecl the way
// the reference op-listing interpreter's listing builder flags a label already on the call
// stack rather than allocating a fresh visited set per call.
func checkRecursiveStructs(structs []*ast.StructDecl, diags *diag.List) {
	byName := map[string]*ast.StructDecl{}
	for _, s := range structs {
		byName[s.Info.Name] = s
	}
	var visit func(s *ast.StructDecl) bool
	visit = func(s *ast.StructDecl) bool {
		if s.IsVisiting() {
			diags.Addf(s.Location(), diag.SanityError, "struct %s is recursive", s.Info.Name)
			return true
		}
		if s.IsVisited() {
			return false
		}
		s.SetVisiting(true)
		defer s.SetVisiting(false)
		for _, f := range s.Info.Members {
			if f.Type == nil {
				continue
			}
			if ref := f.Type.StructRef(); ref != nil {
				if inner, ok := byName[ref.Name]; ok {
					if visit(inner) {
						return true
					}
				}
			}
		}
		s.SetVisited(true)
		return false
	}
	for _, s := range structs {
		if !s.IsVisited() {
			visit(s)
		}
	}
}

func checkRecursiveUsings(usings []*ast.UsingDecl, diags *diag.List) {
	byName := map[string]*ast.UsingDecl{}
	for _, u := range usings {
		byName[u.Name.String()] = u
	}
	var visit func(u *ast.UsingDecl) bool
	visit = func(u *ast.UsingDecl) bool {
		if u.IsVisiting() {
			diags.Addf(u.Location(), diag.SanityError, "using alias %s is recursive", u.Name)
			return true
		}
		if u.IsVisited() {
			return false
		}
		u.SetVisiting(true)
		defer u.SetVisiting(false)
		if qi, ok := u.TargetExpr.(*ast.QualifiedIdentifier); ok && len(qi.Parts) == 1 {
			if inner, ok := byName[qi.Parts[0].String()]; ok {
				if visit(inner) {
					return true
				}
			}
		}
		u.SetVisited(true)
		return false
	}
	for _, u := range usings {
		if !u.IsVisited() {
			visit(u)
		}
	}
}

func checkDelayBounds(g *ast.Graph, diags *diag.List) {
	const minDelay, maxDelay = 1, 65536
	for _, c := range g.Connections {
		if c.DelayLength == 0 {
			continue
		}
		if c.DelayLength < minDelay || c.DelayLength > maxDelay {
			diags.Addf(c.Location(), diag.SanityError, "delay length %d out of range [%d,%d]", c.DelayLength, minDelay, maxDelay)
		}
	}
}

// checkGraphCycles rejects a cycle in the instance connection graph that
// does not pass through at least one delayed edge, since an un-delayed
// cycle cannot produce a sample at any point in the stream graph.
func checkGraphCycles(g *ast.Graph, diags *diag.List) {
	type edge struct {
		to     string
		delay  bool
	}
	adj := map[string][]edge{}
	endpointOwner := func(e ast.Expr) string {
		switch n := e.(type) {
		case *ast.QualifiedIdentifier:
			if len(n.Parts) > 0 {
				return n.Parts[0].String()
			}
		case *ast.ProcessorPropertyRef:
			if n.Instance != nil {
				return n.Instance.Name.String()
			}
		}
		return ""
	}
	for _, c := range g.Connections {
		from, to := endpointOwner(c.Source), endpointOwner(c.Dest)
		if from == "" || to == "" {
			continue
		}
		adj[from] = append(adj[from], edge{to: to, delay: c.DelayLength > 0})
	}

	const (
		white = 0
		gray  = 1
		black = 2
	)
	color := map[string]int{}
	var visit func(n string) bool
	visit = func(n string) bool {
		color[n] = gray
		for _, e := range adj[n] {
			if e.delay {
				continue // a delayed edge breaks the cycle
			}
			switch color[e.to] {
			case gray:
				diags.Addf(g.Location(), diag.SanityError, "graph %s has an undelayed cycle through %s", g.Name, e.to)
				return true
			case white:
				if visit(e.to) {
					return true
				}
			}
		}
		color[n] = black
		return false
	}
	for _, inst := range g.Instances {
		if color[inst.Name.String()] == white {
			visit(inst.Name.String())
		}
	}
}

// checkIncDecCollisions rejects a statement that both pre/post-increments
// and otherwise reads or writes the same variable, e.g. `x = x++;`, whose
// ordering the language definition leaves undefined. It walks one statement's expression at
// a time so an inc/dec in one statement never collides with a read in the
// next.
func checkIncDecCollisions(b *ast.Block, diags *diag.List) {
	for _, s := range b.Stmts {
		switch n := s.(type) {
		case *ast.ExprStmt:
			checkExprIncDecCollision(n.X, diags)
		case *ast.IfStmt:
			checkIncDecCollisions(n.Then, diags)
			if n.Else != nil {
				checkIncDecCollisions(n.Else, diags)
			}
		case *ast.WhileStmt:
			checkIncDecCollisions(n.Body, diags)
		case *ast.DoStmt:
			checkIncDecCollisions(n.Body, diags)
		case *ast.ForStmt:
			checkIncDecCollisions(n.Body, diags)
		case *ast.LoopStmt:
			checkIncDecCollisions(n.Body, diags)
		case *ast.Block:
			checkIncDecCollisions(n, diags)
		}
	}
}

func checkExprIncDecCollision(e ast.Expr, diags *diag.List) {
	mutated := map[string]bool{}
	other := map[string]bool{}
	var walk func(e ast.Expr)
	name := func(e ast.Expr) string {
		if qi, ok := e.(*ast.QualifiedIdentifier); ok && len(qi.Parts) > 0 {
			return qi.Parts[len(qi.Parts)-1].String()
		}
		if vr, ok := e.(*ast.VariableRef); ok && vr.Target != nil {
			return vr.Target.SymbolName().String()
		}
		return ""
	}
	walk = func(e ast.Expr) {
		switch n := e.(type) {
		case *ast.IncDec:
			if nm := name(n.Target); nm != "" {
				mutated[nm] = true
			} else {
				walk(n.Target)
			}
		case *ast.AssignExpr:
			walk(n.Target)
			walk(n.Value)
		case *ast.BinaryOp:
			walk(n.Lhs)
			walk(n.Rhs)
		case *ast.UnaryOp:
			walk(n.Arg)
		case *ast.Ternary:
			walk(n.Cond)
			walk(n.True)
			walk(n.False)
		case *ast.CallOrCast:
			walk(n.Callee)
			for _, a := range n.Args {
				walk(a)
			}
		case *ast.FunctionCall:
			for _, a := range n.Args {
				walk(a)
			}
		case *ast.QualifiedIdentifier:
			if nm := name(n); nm != "" {
				other[nm] = true
			}
		case *ast.VariableRef:
			if nm := name(n); nm != "" {
				other[nm] = true
			}
		case *ast.StructMemberRef:
			walk(n.Base)
		case *ast.ArrayElementRef:
			walk(n.Base)
			if n.Index != nil {
				walk(n.Index)
			}
		}
	}
	walk(e)
	for nm := range mutated {
		if other[nm] {
			diags.Addf(e.Location(), diag.SanityError, "%s is both incremented/decremented and otherwise used in the same statement", nm)
		}
	}
}

func walkModules(m ast.Module, visit func(ast.Module)) {
	visit(m)
	for _, sub := range m.SubModules() {
		walkModules(sub, visit)
	}
}
