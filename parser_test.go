// parser_test.go
package kslang

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

//
// ──────────────────────────────── Helpers ─────────────────────────────────
//

func mustParseSrc(t *testing.T, src string) (*SourceRegistry, []Stmt) {
	t.Helper()
	reg := NewSourceRegistry()
	id := reg.Add(NewStringSource(src))
	stmts, lexErrs, err := ParseSource(reg, id)
	if len(lexErrs) > 0 {
		t.Fatalf("lex errors: %v\nsource: %q", lexErrs, src)
	}
	if err != nil {
		t.Fatalf("parse error: %v\nsource: %q", err, src)
	}
	return reg, stmts
}

func mustParseExpr(t *testing.T, src string) (*SourceRegistry, Expr) {
	t.Helper()
	reg, stmts := mustParseSrc(t, src)
	require.Len(t, stmts, 1)
	es, ok := stmts[0].(*ExprStmt)
	require.True(t, ok, "want *ExprStmt, got %T", stmts[0])
	return reg, es.X
}

func parseFails(t *testing.T, src string) *ParseError {
	t.Helper()
	reg := NewSourceRegistry()
	id := reg.Add(NewStringSource(src))
	_, _, err := ParseSource(reg, id)
	if err == nil {
		t.Fatalf("expected parse error\nsource: %q", src)
	}
	pe, ok := err.(*ParseError)
	require.True(t, ok, "want *ParseError, got %T", err)
	return pe
}

// deepestKind walks the boxed chain to the production that actually failed.
func deepestKind(pe *ParseError) ParseErrKind {
	for pe.Inner != nil {
		pe = pe.Inner
	}
	return pe.Kind
}

func wantFail(t *testing.T, src string, kind ParseErrKind) {
	t.Helper()
	pe := parseFails(t, src)
	if got := deepestKind(pe); got != kind {
		t.Fatalf("want failure kind %d, got %d (%v)\nsource: %q", kind, got, pe, src)
	}
}

func asBinOp(t *testing.T, e Expr, op Operator) *BinOp {
	t.Helper()
	b, ok := e.(*BinOp)
	require.True(t, ok, "want *BinOp, got %T", e)
	require.Equal(t, op, b.Op)
	return b
}

func litVal(t *testing.T, e Expr) float64 {
	t.Helper()
	l, ok := e.(*Lit)
	require.True(t, ok, "want *Lit, got %T", e)
	return l.Val
}

//
// ──────────────────────────────── Expressions ─────────────────────────────
//

func TestParsePrecedenceMulOverAdd(t *testing.T) {
	_, e := mustParseExpr(t, "1 + 2 * 3")
	add := asBinOp(t, e, OpAdd)
	assert.Equal(t, 1.0, litVal(t, add.Left))
	mul := asBinOp(t, add.Right, OpMul)
	assert.Equal(t, 2.0, litVal(t, mul.Left))
	assert.Equal(t, 3.0, litVal(t, mul.Right))
}

func TestParseUnaryBindsTighterThanAdd(t *testing.T) {
	_, e := mustParseExpr(t, "-1 + 2")
	add := asBinOp(t, e, OpAdd)
	neg, ok := add.Left.(*UnOp)
	require.True(t, ok, "want *UnOp, got %T", add.Left)
	assert.Equal(t, OpSub, neg.Op)
	assert.Equal(t, 1.0, litVal(t, neg.Arg))
	assert.Equal(t, 2.0, litVal(t, add.Right))
}

func TestParseLeftAssociativity(t *testing.T) {
	_, e := mustParseExpr(t, "1 - 2 - 3")
	outer := asBinOp(t, e, OpSub)
	inner := asBinOp(t, outer.Left, OpSub)
	assert.Equal(t, 1.0, litVal(t, inner.Left))
	assert.Equal(t, 2.0, litVal(t, inner.Right))
	assert.Equal(t, 3.0, litVal(t, outer.Right))
}

func TestParseComparisonBelowLogical(t *testing.T) {
	_, e := mustParseExpr(t, "1 < 2 && 3 >= 4")
	and := asBinOp(t, e, OpAnd)
	asBinOp(t, and.Left, OpLt)
	asBinOp(t, and.Right, OpGe)
}

func TestParseParenOverridesPrecedence(t *testing.T) {
	_, e := mustParseExpr(t, "(1 + 2) * 3")
	mul := asBinOp(t, e, OpMul)
	paren, ok := mul.Left.(*Paren)
	require.True(t, ok, "want *Paren, got %T", mul.Left)
	asBinOp(t, paren.Inner, OpAdd)
}

func TestParseWhitespaceAndCommentsInsensitive(t *testing.T) {
	_, compact := mustParseExpr(t, "1+2*3")
	_, spaced := mustParseExpr(t, "1 # one\n  + 2\t*\n3")
	// same shape, different spans
	ca := asBinOp(t, compact, OpAdd)
	sa := asBinOp(t, spaced, OpAdd)
	assert.Equal(t, litVal(t, ca.Left), litVal(t, sa.Left))
	asBinOp(t, ca.Right, OpMul)
	asBinOp(t, sa.Right, OpMul)
}

func TestParseCallVersusReference(t *testing.T) {
	reg, e := mustParseExpr(t, "foo(1, x)")
	call, ok := e.(*Call)
	require.True(t, ok, "want *Call, got %T", e)
	assert.Equal(t, "foo", reg.Text(call.Callee.Span))
	require.Len(t, call.Args, 2)
	assert.Equal(t, 1.0, litVal(t, call.Args[0]))
	_, isIdent := call.Args[1].(*Ident)
	assert.True(t, isIdent)

	_, ref := mustParseExpr(t, "foo")
	_, isIdent = ref.(*Ident)
	assert.True(t, isIdent, "bare name must stay a reference")
}

func TestParseEmptyCall(t *testing.T) {
	_, e := mustParseExpr(t, "foo()")
	call, ok := e.(*Call)
	require.True(t, ok)
	assert.Empty(t, call.Args)
}

func TestParseNestedCalls(t *testing.T) {
	_, e := mustParseExpr(t, "f(g(1), h())")
	call := e.(*Call)
	require.Len(t, call.Args, 2)
	_, ok := call.Args[0].(*Call)
	assert.True(t, ok)
	_, ok = call.Args[1].(*Call)
	assert.True(t, ok)
}

func TestParseCallCommittedErrors(t *testing.T) {
	// Once the '(' is seen the attempt never degrades to a bare reference.
	pe := parseFails(t, "foo(1, 2")
	assert.Equal(t, ErrUnexpectedEnd, deepestKind(pe))
	assert.True(t, IsIncomplete(pe))

	wantFail(t, "foo(1 2)", ErrArgsComma)
}

func TestParseEllipsisExpr(t *testing.T) {
	_, e := mustParseExpr(t, "...")
	_, ok := e.(*Ellipsis)
	assert.True(t, ok)
	assert.True(t, e.Evalable())
}

func TestParseBadNumberRejected(t *testing.T) {
	wantFail(t, "x = 1._5", ErrNumber)
	wantFail(t, "x = 1e_2", ErrNumber)
}

func TestParseIfElseChain(t *testing.T) {
	_, e := mustParseExpr(t, "if a then 1 else if b then 2 else 3")
	ife, ok := e.(*IfExpr)
	require.True(t, ok, "want *IfExpr, got %T", e)
	require.Len(t, ife.Arms, 2)
	require.NotNil(t, ife.Else)
	assert.Equal(t, 3.0, litVal(t, ife.Else.Expr))
	assert.True(t, e.Evalable())
}

func TestParseIfWithoutElseNotEvalable(t *testing.T) {
	_, e := mustParseExpr(t, "if a then 1")
	require.IsType(t, &IfExpr{}, e)
	assert.False(t, e.Evalable())
}

func TestParseIfMissingThen(t *testing.T) {
	wantFail(t, "x = if a 1 else 2", ErrThenToken)
}

//
// ──────────────────────────────── Statements ──────────────────────────────
//

func TestParseAssign(t *testing.T) {
	reg, stmts := mustParseSrc(t, "x = 1 + 2;")
	require.Len(t, stmts, 1)
	as, ok := stmts[0].(*AssignStmt)
	require.True(t, ok)
	assert.Equal(t, "x", reg.Text(as.Left.Span))
	asBinOp(t, as.Right, OpAdd)
	assert.Equal(t, "=", reg.Text(as.AssignSpan))
}

func TestParseConsecutiveAssignRejected(t *testing.T) {
	pe := parseFails(t, "x = y = 1")
	assert.Equal(t, ErrConsecutiveAssign, deepestKind(pe))
}

func TestParseAssignRequiresEvalableRight(t *testing.T) {
	wantFail(t, "x = for i in y 1", ErrAssignNotEvalable)
	wantFail(t, "x = {}", ErrAssignNotEvalable)
}

func TestParseOptionalSemicolon(t *testing.T) {
	_, with := mustParseSrc(t, "x = 1;")
	_, without := mustParseSrc(t, "x = 1")
	require.Len(t, with, 1)
	require.Len(t, without, 1)
}

func TestParseEmptyStatement(t *testing.T) {
	_, stmts := mustParseSrc(t, ";;")
	require.Len(t, stmts, 2)
	for _, s := range stmts {
		_, ok := s.(*EmptyStmt)
		assert.True(t, ok)
	}
}

func TestParseBreakContinueReturn(t *testing.T) {
	_, stmts := mustParseSrc(t, "break; continue; return 1;")
	require.Len(t, stmts, 3)
	require.IsType(t, &BreakStmt{}, stmts[0])
	require.IsType(t, &ContinueStmt{}, stmts[1])
	ret := stmts[2].(*ReturnStmt)
	assert.Equal(t, 1.0, litVal(t, ret.X))
}

func TestParseDef(t *testing.T) {
	reg, stmts := mustParseSrc(t, "def add(a, b) a + b;")
	require.Len(t, stmts, 1)
	def, ok := stmts[0].(*DefStmt)
	require.True(t, ok)
	assert.Equal(t, "add", reg.Text(def.Name.Span))
	require.Len(t, def.Params, 2)
	assert.Equal(t, "a", reg.Text(def.Params[0].Span))
	assert.Equal(t, "b", reg.Text(def.Params[1].Span))
	asBinOp(t, def.Body, OpAdd)
	assert.Equal(t, "(a, b)", reg.Text(def.ArgsSpan))
}

func TestParseDefNoParamsIsNil(t *testing.T) {
	_, stmts := mustParseSrc(t, "def f() 1; extern exit();")
	require.Len(t, stmts, 2)
	assert.Nil(t, stmts[0].(*DefStmt).Params, "empty parameter lists stay nil so serialized nodes round-trip unchanged")
	assert.Nil(t, stmts[1].(*ExternStmt).Params)
}

func TestParseDefBodyMustBeEvalable(t *testing.T) {
	wantFail(t, "def f() if a then 1", ErrDefBodyNotEvalable)
	// and the else-carrying form is accepted
	_, stmts := mustParseSrc(t, "def f() if a then 1 else 2")
	require.Len(t, stmts, 1)
}

func TestParseDefParamMustBeIdent(t *testing.T) {
	wantFail(t, "def f(1) 2", ErrParamNonIdent)
}

func TestParseExtern(t *testing.T) {
	reg, stmts := mustParseSrc(t, "extern sin(x);")
	require.Len(t, stmts, 1)
	ext, ok := stmts[0].(*ExternStmt)
	require.True(t, ok)
	assert.Equal(t, "sin", reg.Text(ext.Name.Span))
	require.Len(t, ext.Params, 1)
}

func TestParseExternRequiresSemicolon(t *testing.T) {
	wantFail(t, "extern sin(x) 1", ErrExternEnd)
}

func TestParseForStatement(t *testing.T) {
	reg, stmts := mustParseSrc(t, "for i in xs { f(i); }")
	require.Len(t, stmts, 1)
	fs, ok := stmts[0].(*ForStmt)
	require.True(t, ok)
	assert.Equal(t, "i", reg.Text(fs.Var.Span))
	_, isBlock := fs.Body.(*Block)
	assert.True(t, isBlock)
	assert.Equal(t, "for i in xs", reg.Text(fs.HeadSpan))
}

func TestParseForMissingIn(t *testing.T) {
	wantFail(t, "for i xs 1", ErrForIn)
}

func TestParseBlockExpr(t *testing.T) {
	_, e := mustParseExpr(t, "{ x = 1; x }")
	blk, ok := e.(*Block)
	require.True(t, ok)
	require.Len(t, blk.Stmts, 2)
	assert.True(t, blk.Evalable(), "block ending in an evalable expr stmt")

	_, e = mustParseExpr(t, "{ x = 1; }")
	blk = e.(*Block)
	assert.False(t, blk.Evalable(), "block ending in an assignment")
}

func TestParseBlockPropagatesInnerErrors(t *testing.T) {
	wantFail(t, "{ x = ; }", ErrUnexpectedToken)
}

func TestParseProgramOrder(t *testing.T) {
	_, stmts := mustParseSrc(t, "a = 1; b = 2; c = 3;")
	require.Len(t, stmts, 3)
	for i, s := range stmts {
		as := s.(*AssignStmt)
		assert.Equal(t, float64(i+1), litVal(t, as.Right))
	}
}

func TestParseEmptyAndTriviaOnlySource(t *testing.T) {
	for _, src := range []string{"", "   \n\t", "# only a comment\n"} {
		reg := NewSourceRegistry()
		id := reg.Add(NewStringSource(src))
		stmts, lexErrs, err := ParseSource(reg, id)
		require.NoError(t, err, "source %q", src)
		assert.Empty(t, lexErrs)
		assert.Empty(t, stmts, "source %q", src)
	}
}

func TestIsIncomplete(t *testing.T) {
	incomplete := []string{"if a then", "x =", "def f(", "{ x = 1;", "foo(1,"}
	for _, src := range incomplete {
		pe := parseFails(t, src)
		assert.True(t, IsIncomplete(pe), "source %q should read as incomplete, got %v", src, pe)
	}

	complete := []string{"x = )", "def f(1) 2", "foo(1 2)"}
	for _, src := range complete {
		pe := parseFails(t, src)
		assert.False(t, IsIncomplete(pe), "source %q should be a hard failure, got %v", src, pe)
	}
}

func TestParseSpansContainChildren(t *testing.T) {
	_, stmts := mustParseSrc(t, "def f(a) { x = a * 2; if x > 1 then x else 0 }")
	require.Len(t, stmts, 1)
	var walk func(t *testing.T, span CodeSpan, e Expr)
	walk = func(t *testing.T, span CodeSpan, e Expr) {
		t.Helper()
		require.True(t, span.Contains(e.Pos()), "parent %s must contain child %s", span, e.Pos())
		switch e := e.(type) {
		case *Paren:
			walk(t, e.Pos(), e.Inner)
		case *BinOp:
			walk(t, e.Pos(), e.Left)
			walk(t, e.Pos(), e.Right)
		case *UnOp:
			walk(t, e.Pos(), e.Arg)
		case *Call:
			for _, a := range e.Args {
				walk(t, e.Pos(), a)
			}
		case *IfExpr:
			for _, arm := range e.Arms {
				walk(t, e.Pos(), arm.Cond)
				walk(t, e.Pos(), arm.Then)
			}
			if e.Else != nil {
				walk(t, e.Pos(), e.Else.Expr)
			}
		case *Block:
			for _, s := range e.Stmts {
				require.True(t, e.Pos().Contains(s.Pos()))
			}
		}
	}

	def := stmts[0].(*DefStmt)
	walk(t, def.Span, def.Body)
}
