// Package runtime is the external collaborator the language definition's
// §6 names but leaves outside the core: a HEART interpreter plus the
// real-time audio I/O and mouse/visual control that drive it. The core
// compiler only ever hands this package a *compiler.Program; nothing
// here feeds back into resolution or lowering.
//
// Grounded on the reference implementation's SoundEngine: a single
// goroutine that walks a listing one operation at a time, once per
// sample, threading persistent state (the listing's signals) across
// calls. Machine.Step is the HEART equivalent — it walks a module's
// `run` function one statement at a time, persisting state-variable and
// local-variable values across calls and pausing at each advance()
// the same way the reference implementation's interpreter produces
// exactly one new stereoPair per loop iteration.
package runtime

import (
	"fmt"

	"soul/internal/ast"
	"soul/internal/compiler"
	"soul/internal/heart"
	"soul/internal/token"
	"soul/internal/types"
	"soul/internal/value"
)

// Machine interprets one processor's lowered HEART form, one sample (one
// advance()) at a time. It holds no notion of a graph's instance tree —
// GraphRunner (graph.go) walks a Program's instances and wires
// a Machine per leaf processor, forwarding stream values across
// connections between Step calls.
type Machine struct {
	Module *heart.Module
	run    *heart.Function
	vars   map[ast.Symbol]value.Value

	block   *heart.Block
	stmtIdx int

	Inputs  map[string]float64
	Outputs map[string]float64
}

// NewMachine builds a Machine for m, running its synthesised init
// function once to seed every state variable before any Step call.
func NewMachine(m *heart.Module) (*Machine, error) {
	var run *heart.Function
	var init *heart.Function
	for _, f := range m.Functions {
		switch f.Name {
		case "run":
			run = f
		case "init":
			init = f
		}
	}
	if run == nil {
		return nil, fmt.Errorf("module %q has no run() function to interpret", m.Name)
	}

	mc := &Machine{
		Module:  m,
		run:     run,
		vars:    map[ast.Symbol]value.Value{},
		Inputs:  map[string]float64{},
		Outputs: map[string]float64{},
	}
	if init != nil {
		mc.execToReturn(init)
	}
	mc.block = run.Blocks[0]
	return mc, nil
}

// Step runs mc's `run` function forward from wherever it last paused,
// consuming the values in Inputs, until the next advance() (or the
// function falls off its end, in which case execution restarts from
// the entry block — a `run` body without an enclosing `loop` still
// produces one sample per Step, matching the language definition's
// "advance() ends exactly one sample period"). Outputs holds whatever
// was written to an output endpoint during that period.
func (mc *Machine) Step(inputs map[string]float64) map[string]float64 {
	for k, v := range inputs {
		mc.Inputs[k] = v
	}
	mc.Outputs = map[string]float64{}

	for {
		for mc.stmtIdx < len(mc.block.Stmts) {
			st := mc.block.Stmts[mc.stmtIdx]
			mc.stmtIdx++
			switch s := st.(type) {
			case *heart.Assign:
				mc.assign(s.Dest, mc.eval(s.Value))
			case *heart.Eval:
				mc.eval(s.Expr)
			case *heart.AdvanceClock:
				return mc.Outputs
			}
		}
		if !mc.followTerminator() {
			mc.block = mc.run.Blocks[0]
			mc.stmtIdx = 0
			return mc.Outputs
		}
	}
}

// followTerminator advances mc.block/mc.stmtIdx past the current
// block's terminator, reporting whether it found somewhere to go —
// false means the function returned, which the caller treats as the
// end of one sample period exactly like an explicit advance().
func (mc *Machine) followTerminator() bool {
	switch t := mc.block.Term.(type) {
	case *heart.Branch:
		mc.block, mc.stmtIdx = t.Target, 0
		return true
	case *heart.BranchIf:
		if mc.eval(t.Cond).AsBool() {
			mc.block = t.True
		} else {
			mc.block = t.False
		}
		mc.stmtIdx = 0
		return true
	case *heart.Return:
		return false
	}
	return false
}

// execToReturn fully runs a function with no advance() of its own (the
// synthesised `init` function) by walking its blocks to completion
// instead of pausing — init never writes an endpoint or waits on a
// clock, so there is nothing for Step's per-sample pacing to do here.
func (mc *Machine) execToReturn(f *heart.Function) {
	block, idx := f.Blocks[0], 0
	for {
		for idx < len(block.Stmts) {
			st := block.Stmts[idx]
			idx++
			switch s := st.(type) {
			case *heart.Assign:
				mc.assign(s.Dest, mc.eval(s.Value))
			case *heart.Eval:
				mc.eval(s.Expr)
			}
		}
		switch t := block.Term.(type) {
		case *heart.Branch:
			block, idx = t.Target, 0
		case *heart.BranchIf:
			if mc.eval(t.Cond).AsBool() {
				block = t.True
			} else {
				block = t.False
			}
			idx = 0
		default:
			return
		}
	}
}

func (mc *Machine) assign(d heart.Dest, v value.Value) {
	switch dd := d.(type) {
	case heart.VarDest:
		mc.vars[dd.Target] = v
	case heart.SubElementDest:
		base := mc.readDest(dd.Base)
		elems := append([]value.Value(nil), base.Elements()...)
		idx := dd.FixedIndex
		if dd.DynIndex != nil {
			idx = int(mc.eval(dd.DynIndex).AsInt())
		}
		if dd.Wrap && len(elems) > 0 {
			idx = ((idx % len(elems)) + len(elems)) % len(elems)
		}
		if idx >= 0 && idx < len(elems) {
			elems[idx] = v
		}
		mc.writeDest(dd.Base, value.Aggregate(base.Type(), elems))
	}
}

func (mc *Machine) readDest(d heart.Dest) value.Value {
	switch dd := d.(type) {
	case heart.VarDest:
		return mc.vars[dd.Target]
	case heart.SubElementDest:
		base := mc.readDest(dd.Base)
		elems := base.Elements()
		idx := dd.FixedIndex
		if dd.DynIndex != nil {
			idx = int(mc.eval(dd.DynIndex).AsInt())
		}
		if idx >= 0 && idx < len(elems) {
			return elems[idx]
		}
		return value.ZeroInitialiser(base.Type())
	}
	return value.Value{}
}

func (mc *Machine) writeDest(d heart.Dest, v value.Value) {
	mc.assign(d, v)
}

// eval walks a resolved expression tree, computing its runtime value.
// It only ever sees the real ast.Expr variants resolve/heart produce —
// a Machine runs directly against a compiler.Program's live modules,
// never a decoded HEART dump's rawExpr placeholders.
func (mc *Machine) eval(e ast.Expr) value.Value {
	switch ex := e.(type) {
	case nil:
		return value.Value{}
	case *ast.Constant:
		return ex.Value
	case *ast.BuiltinConstant:
		return evalBuiltinConstant(ex.Name)
	case *ast.VariableRef:
		return mc.vars[ex.Target]
	case *ast.InputEndpointRef:
		return value.Float64(mc.Inputs[ex.Target.Name.String()])
	case *ast.OutputEndpointRef:
		return value.Float64(mc.Outputs[ex.Target.Name.String()])
	case *ast.StructMemberRef:
		base := mc.eval(ex.Base)
		if ex.MemberIdx >= 0 && ex.MemberIdx < len(base.Elements()) {
			return base.Elements()[ex.MemberIdx]
		}
		return value.Value{}
	case *ast.ArrayElementRef:
		return mc.evalArrayElement(ex)
	case *ast.BinaryOp:
		return mc.evalBinary(ex)
	case *ast.UnaryOp:
		return mc.evalUnary(ex)
	case *ast.Ternary:
		if mc.eval(ex.Cond).AsBool() {
			return mc.eval(ex.True)
		}
		return mc.eval(ex.False)
	case *ast.TypeCast:
		return mc.eval(ex.Arg).CastToTypeExpectingSuccess(ex.Target.ExprType())
	case *ast.FunctionCall:
		return mc.evalCall(ex)
	case *ast.IncDec:
		return mc.evalIncDec(ex)
	case *ast.AssignExpr:
		return mc.evalAssignExpr(ex)
	case *ast.InitialiserList:
		elems := make([]value.Value, len(ex.Elements))
		for i, el := range ex.Elements {
			elems[i] = mc.eval(el)
		}
		return value.Aggregate(ex.ExprType(), elems)
	case *ast.WriteToEndpoint:
		mc.writeEndpoint(ex)
		return value.Value{}
	case *ast.AdvanceCall:
		return value.Value{}
	}
	return value.Value{}
}

func (mc *Machine) writeEndpoint(w *ast.WriteToEndpoint) {
	v := mc.eval(w.Value)
	switch target := w.Endpoint.(type) {
	case *ast.OutputEndpointRef:
		mc.Outputs[target.Target.Name.String()] += v.AsFloat()
	case *ast.ArrayElementRef:
		if ref, ok := target.Base.(*ast.OutputEndpointRef); ok {
			mc.Outputs[ref.Target.Name.String()] += v.AsFloat()
		}
	}
}

func (mc *Machine) evalArrayElement(ex *ast.ArrayElementRef) value.Value {
	base := mc.eval(ex.Base)
	elems := base.Elements()
	if len(elems) == 0 {
		return value.Value{}
	}
	idx := int(mc.eval(ex.Index).AsInt())
	if ex.Wrap {
		idx = ((idx % len(elems)) + len(elems)) % len(elems)
	}
	if idx < 0 || idx >= len(elems) {
		return value.ZeroInitialiser(ex.ExprType())
	}
	return elems[idx]
}

func (mc *Machine) evalIncDec(ex *ast.IncDec) value.Value {
	dest, ok := heartDest(ex.Target)
	if !ok {
		return value.Value{}
	}
	old := mc.readDest(dest)
	delta := int64(1)
	if ex.Op == token.Dec {
		delta = -1
	}
	next := addInt(old, delta)
	mc.assign(dest, next)
	if ex.Pre {
		return next
	}
	return old
}

func (mc *Machine) evalAssignExpr(ex *ast.AssignExpr) value.Value {
	dest, ok := heartDest(ex.Target)
	if !ok {
		return value.Value{}
	}
	v := mc.eval(ex.Value)
	if ex.Op != token.Assign {
		v = applyBinary(compoundOp(ex.Op), mc.readDest(dest), v)
	}
	mc.assign(dest, v)
	return v
}

// heartDest mirrors internal/heart/lower.go's toDest — the machine needs
// the same l-value-to-Dest translation lower.go uses, since AssignExpr/
// IncDec used in expression position (not as a whole statement) never
// go through lower.go's statement-level toDest call.
func heartDest(e ast.Expr) (heart.Dest, bool) {
	switch n := e.(type) {
	case *ast.VariableRef:
		return heart.VarDest{Target: n.Target}, true
	case *ast.ArrayElementRef:
		base, ok := heartDest(n.Base)
		if !ok {
			return nil, false
		}
		if c, ok := n.Index.(*ast.Constant); ok && !n.Wrap {
			return heart.SubElementDest{Base: base, FixedIndex: int(c.Value.AsInt())}, true
		}
		return heart.SubElementDest{Base: base, FixedIndex: -1, DynIndex: n.Index, Wrap: n.Wrap}, true
	case *ast.StructMemberRef:
		base, ok := heartDest(n.Base)
		if !ok {
			return nil, false
		}
		return heart.SubElementDest{Base: base, FixedIndex: -1, Member: n.Member.String()}, true
	}
	return nil, false
}

func compoundOp(op token.Kind) token.Kind {
	switch op {
	case token.PlusAssign:
		return token.Plus
	case token.MinusAssign:
		return token.Minus
	case token.StarAssign:
		return token.Star
	case token.SlashAssign:
		return token.Slash
	case token.PercentAssign:
		return token.Percent
	case token.ShlAssign:
		return token.Shl
	case token.ShrAssign:
		return token.Shr
	case token.UShrAssign:
		return token.UShr
	case token.XorAssign:
		return token.Caret
	case token.AndAssign:
		return token.Amp
	case token.OrAssign:
		return token.Pipe
	}
	return op
}

func addInt(v value.Value, delta int64) value.Value {
	if v.Type() != nil && v.Type().IsPrimitiveFloat() {
		return newFloat(v.Type(), v.AsFloat()+float64(delta))
	}
	if v.Type() != nil && v.Type().PrimitiveType() == types.Int64 {
		return value.Int64(v.AsInt() + delta)
	}
	return value.Int32(int32(v.AsInt() + delta))
}

func evalBuiltinConstant(name string) value.Value {
	switch name {
	case "pi":
		return value.Float64(3.14159265358979323846)
	case "twoPi":
		return value.Float64(2 * 3.14159265358979323846)
	case "nan":
		return value.Float64(nan())
	case "inf":
		return value.Float64(inf())
	}
	return value.Value{}
}

func (mc *Machine) evalCall(ex *ast.FunctionCall) value.Value {
	if ex.Target.IsIntrinsic() {
		v, _ := evalIntrinsic(ex.Target.IntrinsicOf, mc.evalArgs(ex.Args), ex.Target.ReturnType)
		return v
	}
	return mc.callUserFunction(ex)
}

func (mc *Machine) evalArgs(args []ast.Expr) []value.Value {
	out := make([]value.Value, len(args))
	for i, a := range args {
		out[i] = mc.eval(a)
	}
	return out
}

// callUserFunction executes a user-defined function's blocks to
// completion and returns its Return value — a plain call-and-return,
// since only the top-level `run` function's advance() calls pace audio
// time; a helper function called from run executes within the same
// sample period.
func (mc *Machine) callUserFunction(ex *ast.FunctionCall) value.Value {
	fn := findLoweredFunction(mc.Module, ex.Target.Name.String())
	if fn == nil || len(fn.Blocks) == 0 {
		return value.Value{}
	}
	for i, p := range fn.Params {
		if i < len(ex.Args) {
			mc.vars[p] = mc.eval(ex.Args[i])
		}
	}
	block, idx := fn.Blocks[0], 0
	for {
		for idx < len(block.Stmts) {
			st := block.Stmts[idx]
			idx++
			switch s := st.(type) {
			case *heart.Assign:
				mc.assign(s.Dest, mc.eval(s.Value))
			case *heart.Eval:
				mc.eval(s.Expr)
			}
		}
		switch t := block.Term.(type) {
		case *heart.Branch:
			block, idx = t.Target, 0
		case *heart.BranchIf:
			if mc.eval(t.Cond).AsBool() {
				block = t.True
			} else {
				block = t.False
			}
			idx = 0
		case *heart.Return:
			return mc.eval(t.Value)
		default:
			return value.Value{}
		}
	}
}

func findLoweredFunction(m *heart.Module, name string) *heart.Function {
	for _, f := range m.Functions {
		if f.Name == name {
			return f
		}
	}
	return nil
}

// ProcessorNames reports every HEART module a compiler.Program lowered,
// for a CLI or host listing what can be run.
func ProcessorNames(p *compiler.Program) []string { return p.ModuleNames() }
