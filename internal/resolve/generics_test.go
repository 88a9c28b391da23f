package resolve

import (
	"testing"

	"soul/internal/ast"
	"soul/internal/ident"
	"soul/internal/types"
)

// genericTemplate builds a minimal generic FunctionDecl with one wildcard
// T and the given per-parameter patterns, for exercising unifyWildcards
// directly against each of the language definition's §4.6 step 7 forms
// without routing through the parser and full source text.
func genericTemplate(T *ident.Identifier, ret *ast.WildcardRef, params ...*ast.WildcardRef) *ast.FunctionDecl {
	fn := &ast.FunctionDecl{Wildcards: []*ident.Identifier{T}, ReturnWildcard: ret}
	for _, w := range params {
		fn.Params = append(fn.Params, &ast.Param{Wildcard: w})
	}
	return fn
}

func TestUnifyWildcardBare(t *testing.T) {
	T := ident.NewPool().Intern("T")
	bare := &ast.WildcardRef{Pattern: ast.WildcardBare, Name: T}
	tmpl := genericTemplate(T, bare, bare, bare)

	bound, ok := unifyWildcards(tmpl, []*types.Type{types.Int32T, types.Float32T})
	if !ok {
		t.Fatalf("expected int32/float32 to unify via a silent-cast union")
	}
	if got := bound[T]; !got.Equal(types.Float32T) {
		t.Fatalf("expected T to widen to float32, got %v", got)
	}
	spec := cloneFunctionForSpecialisation(tmpl, bound)
	if spec.ReturnType == nil || !spec.ReturnType.Equal(types.Float32T) {
		t.Fatalf("expected specialised return type float32, got %v", spec.ReturnType)
	}
	for _, p := range spec.Params {
		if p.Type == nil || !p.Type.Equal(types.Float32T) {
			t.Fatalf("expected specialised param type float32, got %v", p.Type)
		}
	}
}

func TestUnifyWildcardBareIncompatibleFails(t *testing.T) {
	T := ident.NewPool().Intern("T")
	bare := &ast.WildcardRef{Pattern: ast.WildcardBare, Name: T}
	tmpl := genericTemplate(T, bare, bare, bare)

	if _, ok := unifyWildcards(tmpl, []*types.Type{types.Int32T, types.StringT}); ok {
		t.Fatalf("expected int32/string to fail to unify under one wildcard")
	}
}

func TestUnifyWildcardConst(t *testing.T) {
	T := ident.NewPool().Intern("T")
	bare := &ast.WildcardRef{Pattern: ast.WildcardBare, Name: T}
	constParam := &ast.WildcardRef{Pattern: ast.WildcardConst, Name: T}
	tmpl := genericTemplate(T, bare, constParam)

	bound, ok := unifyWildcards(tmpl, []*types.Type{types.Int32T.WithConst()})
	if !ok {
		t.Fatalf("expected a const int32 argument to unify against `const T`")
	}
	got := bound[T]
	if got == nil || got.IsConst() || !got.Equal(types.Int32T) {
		t.Fatalf("expected T bound to plain (non-const) int32, got %v", got)
	}
}

func TestUnifyWildcardReference(t *testing.T) {
	T := ident.NewPool().Intern("T")
	refParam := &ast.WildcardRef{Pattern: ast.WildcardReference, Name: T}
	tmpl := genericTemplate(T, nil, refParam)
	tmpl.ReturnType = types.VoidT

	bound, ok := unifyWildcards(tmpl, []*types.Type{types.Int32T})
	if !ok {
		t.Fatalf("expected an int32 argument to unify against `T&`")
	}
	spec := cloneFunctionForSpecialisation(tmpl, bound)
	if spec.ReturnType == nil || !spec.ReturnType.Equal(types.VoidT) {
		t.Fatalf("expected the concrete void return type to pass through unchanged, got %v", spec.ReturnType)
	}
	want := types.Int32T.WithReference()
	if spec.Params[0].Type == nil || !spec.Params[0].Type.Equal(want) || !spec.Params[0].Type.IsReference() {
		t.Fatalf("expected specialised param type int32&, got %v", spec.Params[0].Type)
	}
}

func TestUnifyWildcardReferenceConflictFails(t *testing.T) {
	T := ident.NewPool().Intern("T")
	refParam := &ast.WildcardRef{Pattern: ast.WildcardReference, Name: T}
	tmpl := genericTemplate(T, nil, refParam, refParam)
	tmpl.ReturnType = types.VoidT

	if _, ok := unifyWildcards(tmpl, []*types.Type{types.Int32T, types.Float32T}); ok {
		t.Fatalf("expected two reference-involved bindings to distinct types to be reported, not unioned")
	}
}

func TestUnifyWildcardUnsizedArray(t *testing.T) {
	T := ident.NewPool().Intern("T")
	bare := &ast.WildcardRef{Pattern: ast.WildcardBare, Name: T}
	arrParam := &ast.WildcardRef{Pattern: ast.WildcardUnsizedArray, Name: T}
	tmpl := genericTemplate(T, bare, arrParam)

	bound, ok := unifyWildcards(tmpl, []*types.Type{types.UnsizedArray(types.Int32T)})
	if !ok {
		t.Fatalf("expected an unsized int32 array to unify against `T[]`")
	}
	if got := bound[T]; got == nil || !got.Equal(types.Int32T) {
		t.Fatalf("expected T bound to the element type int32, got %v", got)
	}
	if _, ok := unifyWildcards(tmpl, []*types.Type{types.Int32T}); ok {
		t.Fatalf("expected a non-array argument to fail unification against `T[]`")
	}
}

func TestUnifyWildcardFixedArray(t *testing.T) {
	T := ident.NewPool().Intern("T")
	bare := &ast.WildcardRef{Pattern: ast.WildcardBare, Name: T}
	arrParam := &ast.WildcardRef{Pattern: ast.WildcardFixedArray, Name: T, Size: 4}
	tmpl := genericTemplate(T, bare, arrParam)

	arr4, err := types.FixedArray(types.Int32T, 4)
	if err != nil {
		t.Fatalf("FixedArray(4): %v", err)
	}
	bound, ok := unifyWildcards(tmpl, []*types.Type{arr4})
	if !ok {
		t.Fatalf("expected a fixed array of size 4 to unify against `T[4]`")
	}
	if got := bound[T]; got == nil || !got.Equal(types.Int32T) {
		t.Fatalf("expected T bound to int32, got %v", got)
	}

	arr3, err := types.FixedArray(types.Int32T, 3)
	if err != nil {
		t.Fatalf("FixedArray(3): %v", err)
	}
	if _, ok := unifyWildcards(tmpl, []*types.Type{arr3}); ok {
		t.Fatalf("expected a fixed array of size 3 to fail unification against `T[4]`")
	}
}

func TestUnifyWildcardVector(t *testing.T) {
	T := ident.NewPool().Intern("T")
	vecParam := &ast.WildcardRef{Pattern: ast.WildcardVector, Name: T, Size: 4}
	tmpl := genericTemplate(T, vecParam, vecParam)

	vec4, err := types.Vector(types.Float32, 4)
	if err != nil {
		t.Fatalf("Vector(4): %v", err)
	}
	bound, ok := unifyWildcards(tmpl, []*types.Type{vec4})
	if !ok {
		t.Fatalf("expected a float32 vector of size 4 to unify against `T<4>`")
	}
	if got := bound[T]; got == nil || !got.Equal(types.Float32T) {
		t.Fatalf("expected T bound to the vector's element type float32, got %v", got)
	}
	spec := cloneFunctionForSpecialisation(tmpl, bound)
	if spec.ReturnType == nil || !spec.ReturnType.Equal(vec4) {
		t.Fatalf("expected specialised return type float32<4>, got %v", spec.ReturnType)
	}

	vec2, err := types.Vector(types.Float32, 2)
	if err != nil {
		t.Fatalf("Vector(2): %v", err)
	}
	if _, ok := unifyWildcards(tmpl, []*types.Type{vec2}); ok {
		t.Fatalf("expected a vector of size 2 to fail unification against `T<4>`")
	}
}

func TestUnifyWildcardUnboundReturnOnlyFails(t *testing.T) {
	// A wildcard appearing only in the return position, never bound by any
	// parameter, can't be unified from the call site.
	T := ident.NewPool().Intern("T")
	other := ident.NewPool().Intern("U")
	bare := &ast.WildcardRef{Pattern: ast.WildcardBare, Name: other}
	tmpl := &ast.FunctionDecl{
		Wildcards:      []*ident.Identifier{T, other},
		ReturnWildcard: &ast.WildcardRef{Pattern: ast.WildcardBare, Name: T},
		Params:         []*ast.Param{{Wildcard: bare}},
	}
	if _, ok := unifyWildcards(tmpl, []*types.Type{types.Int32T}); ok {
		t.Fatalf("expected an unbound return-only wildcard to fail unification")
	}
}
