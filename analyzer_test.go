// analyzer_test.go
package kslang

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

//
// ──────────────────────────────── Helpers ─────────────────────────────────
//

func analyze(t *testing.T, src string) (*Analyzer, []*AnalyzeError) {
	t.Helper()
	reg, stmts := mustParseSrc(t, src)
	a := NewAnalyzer(reg)
	return a, a.Analyze(stmts)
}

func mustAnalyze(t *testing.T, src string) *Analyzer {
	t.Helper()
	a, errs := analyze(t, src)
	if len(errs) > 0 {
		t.Fatalf("unexpected analysis errors: %v\nsource: %q", errs, src)
	}
	return a
}

func errKinds(errs []*AnalyzeError) []AnalyzeErrKind {
	out := make([]AnalyzeErrKind, 0, len(errs))
	for _, e := range errs {
		out = append(out, e.Kind)
	}
	return out
}

//
// ──────────────────────────────── Bindings ────────────────────────────────
//

func TestAnalyzeSimpleBindings(t *testing.T) {
	a := mustAnalyze(t, "x = 1; y = x + 1; y")
	root := a.Scope(a.Root())

	require.Contains(t, root.Locals, "x")
	require.Contains(t, root.Locals, "y")

	x := root.Locals["x"].(*VarInfo)
	require.Len(t, x.UseSpans, 1, "x is read once")
	y := root.Locals["y"].(*VarInfo)
	require.Len(t, y.UseSpans, 1)
}

func TestAnalyzeReassignIsUpdateNotDuplicate(t *testing.T) {
	a := mustAnalyze(t, "x = 1; x = 2;")
	x := a.Scope(a.Root()).Locals["x"].(*VarInfo)
	assert.Len(t, x.UseSpans, 1, "second assignment records a use")
}

func TestAnalyzeUndefinedName(t *testing.T) {
	_, errs := analyze(t, "x = y + 1;")
	require.Len(t, errs, 1)
	assert.Equal(t, ErrUndefinedName, errs[0].Kind)
	assert.Equal(t, "y", errs[0].Name)
}

func TestAnalyzeDefOpensScope(t *testing.T) {
	a := mustAnalyze(t, "def f(a, b) a + b;")
	root := a.Scope(a.Root())

	fn := root.Locals["f"].(*FnInfo)
	require.Equal(t, []string{"a", "b"}, fn.Params)
	require.NotEqual(t, NoScope, fn.Scope)

	body := a.Scope(fn.Scope)
	assert.Equal(t, a.Root(), body.Parent)
	assert.Contains(t, body.Locals, "a")
	assert.Contains(t, body.Locals, "b")
	assert.Equal(t, 2, a.NumScopes())
}

func TestAnalyzeDuplicateBindings(t *testing.T) {
	_, errs := analyze(t, "def f() 1; def f() 2;")
	require.Len(t, errs, 1)
	assert.Equal(t, ErrDuplicateBinding, errs[0].Kind)
	assert.Equal(t, "f", errs[0].Name)

	_, errs = analyze(t, "def g(a, a) a;")
	require.Len(t, errs, 1)
	assert.Equal(t, ErrDuplicateBinding, errs[0].Kind)
	assert.Equal(t, "a", errs[0].Name)

	_, errs = analyze(t, "x = 1; def x() 2;")
	require.Len(t, errs, 1)
	assert.Equal(t, ErrDuplicateBinding, errs[0].Kind)
}

//
// ──────────────────────────────── Calls ───────────────────────────────────
//

func TestAnalyzeForwardCallResolved(t *testing.T) {
	// g is called before it is defined; reconciliation at end of unit binds
	// the call and checks its arity.
	a := mustAnalyze(t, "def f(x) g(x); def g(y) y + 1;")
	g := a.Scope(a.Root()).Locals["g"].(*FnInfo)
	require.Len(t, g.UseSpans, 1)
}

func TestAnalyzeMutualRecursion(t *testing.T) {
	mustAnalyze(t, "def even(n) if n == 0 then 1 else odd(n - 1); def odd(n) if n == 0 then 0 else even(n - 1);")
}

func TestAnalyzeUndefinedFunction(t *testing.T) {
	_, errs := analyze(t, "f(1);")
	require.Len(t, errs, 1)
	assert.Equal(t, ErrUndefinedFunction, errs[0].Kind)
	assert.Equal(t, "f", errs[0].Name)
}

func TestAnalyzeArityMismatch(t *testing.T) {
	_, errs := analyze(t, "def f(a, b) a + b; f(1);")
	require.Len(t, errs, 1)
	require.Equal(t, ErrArityMismatch, errs[0].Kind)
	assert.Equal(t, 1, errs[0].Got)
	assert.Equal(t, 2, errs[0].Want)

	// forward call with wrong arity is caught at reconciliation too
	_, errs = analyze(t, "g(1, 2, 3); def g(a) a;")
	require.Len(t, errs, 1)
	assert.Equal(t, ErrArityMismatch, errs[0].Kind)
}

func TestAnalyzeExternIsVararg(t *testing.T) {
	a := mustAnalyze(t, "extern printf(fmt); printf(1, 2, 3); printf();")
	fn := a.Scope(a.Root()).Locals["printf"].(*FnInfo)
	assert.True(t, fn.IsVararg)
	assert.Equal(t, NoScope, fn.Scope)
	assert.Len(t, fn.UseSpans, 2)
}

func TestAnalyzeCallingVariableFails(t *testing.T) {
	_, errs := analyze(t, "x = 1; x(2);")
	require.Len(t, errs, 1)
	assert.Equal(t, ErrNotCallable, errs[0].Kind)
}

//
// ──────────────────────────── Captures ────────────────────────────────────
//

func TestAnalyzeRootReferenceIsOuter(t *testing.T) {
	a := mustAnalyze(t, "x = 1; def f() x + 1;")
	fn := a.Scope(a.Root()).Locals["f"].(*FnInfo)
	body := a.Scope(fn.Scope)

	require.Contains(t, body.Outers, "x")
	assert.Equal(t, a.Root(), body.Outers["x"].Scope)
	assert.Empty(t, body.Cells)
	assert.Equal(t, 0, a.NumCells(), "root references never allocate cells")
}

func TestAnalyzeCapturePromotesLocalToCell(t *testing.T) {
	a := mustAnalyze(t, "def f(a) { def g() a + 1; g() };")

	f := a.Scope(a.Root()).Locals["f"].(*FnInfo)
	fBody := a.Scope(f.Scope)
	g := fBody.Locals["g"].(*FnInfo)
	gBody := a.Scope(g.Scope)

	// The captured parameter moves out of the owner's locals into the cell
	// arena, and both scopes share the same cell id.
	assert.NotContains(t, fBody.Locals, "a")
	require.Contains(t, fBody.Cells, "a")
	require.Contains(t, gBody.Cells, "a")
	assert.Equal(t, fBody.Cells["a"], gBody.Cells["a"])
	assert.Empty(t, gBody.Outers, "non-root captures are cells, not outer references")

	require.Equal(t, 1, a.NumCells())
	cell := a.Cell(fBody.Cells["a"]).(*VarInfo)
	assert.Equal(t, "a", cell.Name)
	assert.Len(t, cell.UseSpans, 1)
}

func TestAnalyzeLoopVarBindsInEnclosingScope(t *testing.T) {
	a := mustAnalyze(t, "def f(xs) { acc = 0; for i in xs { acc = acc + i; }; acc };")
	fn := a.Scope(a.Root()).Locals["f"].(*FnInfo)
	body := a.Scope(fn.Scope)
	assert.Contains(t, body.Locals, "i", "loops do not open scopes")
	assert.Contains(t, body.Locals, "acc")
}

func TestAnalyzeScopeNameUniqueAcrossMaps(t *testing.T) {
	a := mustAnalyze(t, "x = 1; def f() x; def g() x;")
	for id := 0; id < a.NumScopes(); id++ {
		sc := a.Scope(ScopeID(id))
		for name := range sc.Locals {
			_, inCells := sc.Cells[name]
			_, inOuters := sc.Outers[name]
			assert.False(t, inCells || inOuters, "name %q bound twice in scope %d", name, id)
		}
		for name := range sc.Cells {
			_, inOuters := sc.Outers[name]
			assert.False(t, inOuters, "name %q bound twice in scope %d", name, id)
		}
	}
}

func TestAnalyzeCollectsMultipleErrors(t *testing.T) {
	_, errs := analyze(t, "a = q; f(1); x = 1; def x() 2;")
	got := errKinds(errs)
	assert.Contains(t, got, ErrUndefinedName)
	assert.Contains(t, got, ErrUndefinedFunction)
	assert.Contains(t, got, ErrDuplicateBinding)
	assert.Len(t, got, 3)
}
