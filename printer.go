// printer.go — human-readable tree dumps of the AST.
//
// The printer exists for the `ksc ast` command and for eyeballing parser
// output in tests. One node per line, children indented, identifier names
// resolved back through the registry, spans appended so the dump doubles as
// a span-containment check:
//
//	def fib(n) @ 1:0..28
//	  param n @ 1:8..9
//	  if @ 1:11..28
//	    arm @ 1:11..24
//	      binop < @ 1:14..19
//	        ident n @ 1:14..15
//	        lit 2 @ 1:18..19
//	...
//
// The output is a debugging aid, not a stable format; the JSON projection in
// json.go is the machine-readable one.
package kslang

import (
	"fmt"
	"io"
	"strconv"
	"strings"
)

// Printer writes AST dumps against the registry owning the tree's spans.
type Printer struct {
	reg *SourceRegistry
	w   io.Writer

	depth int
}

// NewPrinter returns a printer writing to w.
func NewPrinter(reg *SourceRegistry, w io.Writer) *Printer {
	return &Printer{reg: reg, w: w}
}

// DumpProgram formats a whole unit.
func DumpProgram(reg *SourceRegistry, stmts []Stmt) string {
	var b strings.Builder
	p := NewPrinter(reg, &b)
	p.Program(stmts)
	return b.String()
}

// Program prints every statement of a unit.
func (p *Printer) Program(stmts []Stmt) {
	for _, s := range stmts {
		p.Stmt(s)
	}
}

func (p *Printer) line(format string, args ...any) {
	fmt.Fprintf(p.w, "%s%s\n", strings.Repeat("  ", p.depth), fmt.Sprintf(format, args...))
}

func (p *Printer) nested(fn func()) {
	p.depth++
	fn()
	p.depth--
}

func (p *Printer) name(id *Ident) string { return p.reg.Text(id.Span) }

// Stmt prints one statement subtree.
func (p *Printer) Stmt(s Stmt) {
	switch s := s.(type) {
	case *EmptyStmt:
		p.line("empty @ %s", s.Span)
	case *ExprStmt:
		p.Expr(s.X)
	case *AssignStmt:
		p.line("assign %s @ %s", p.name(s.Left), s.Span)
		p.nested(func() { p.Expr(s.Right) })
	case *BreakStmt:
		p.line("break @ %s", s.Span)
	case *ContinueStmt:
		p.line("continue @ %s", s.Span)
	case *ReturnStmt:
		p.line("return @ %s", s.Span)
		p.nested(func() { p.Expr(s.X) })
	case *DefStmt:
		p.line("def %s(%s) @ %s", p.name(s.Name), p.params(s.Params), s.Span)
		p.nested(func() {
			for _, param := range s.Params {
				p.line("param %s @ %s", p.name(param), param.Span)
			}
			p.Expr(s.Body)
		})
	case *ExternStmt:
		p.line("extern %s(%s) @ %s", p.name(s.Name), p.params(s.Params), s.Span)
	case *ForStmt:
		p.forLoop("for", s.Var, s.Iter, s.Body, s.Span)
	default:
		p.line("unknown stmt %T", s)
	}
}

// Expr prints one expression subtree.
func (p *Printer) Expr(e Expr) {
	switch e := e.(type) {
	case *Ident:
		p.line("ident %s @ %s", p.name(e), e.Span)
	case *Ellipsis:
		p.line("ellipsis @ %s", e.Span)
	case *Lit:
		p.line("lit %s @ %s", strconv.FormatFloat(e.Val, 'g', -1, 64), e.Span)
	case *Paren:
		p.line("paren @ %s", e.Span)
		p.nested(func() { p.Expr(e.Inner) })
	case *Block:
		p.line("block @ %s", e.Span)
		p.nested(func() {
			for _, s := range e.Stmts {
				p.Stmt(s)
			}
		})
	case *Call:
		p.line("call %s @ %s", p.name(e.Callee), e.Span)
		p.nested(func() {
			for _, a := range e.Args {
				p.Expr(a)
			}
		})
	case *UnOp:
		p.line("unop %s @ %s", e.Op, e.Span)
		p.nested(func() { p.Expr(e.Arg) })
	case *BinOp:
		p.line("binop %s @ %s", e.Op, e.Span)
		p.nested(func() {
			p.Expr(e.Left)
			p.Expr(e.Right)
		})
	case *IfExpr:
		p.line("if @ %s", e.Span)
		p.nested(func() {
			for _, arm := range e.Arms {
				p.line("arm @ %s", arm.Span)
				p.nested(func() {
					p.Expr(arm.Cond)
					p.Expr(arm.Then)
				})
			}
			if e.Else != nil {
				p.line("else @ %s", e.Else.Span)
				p.nested(func() { p.Expr(e.Else.Expr) })
			}
		})
	case *ForExpr:
		p.forLoop("for-expr", e.Var, e.Iter, e.Body, e.Span)
	default:
		p.line("unknown expr %T", e)
	}
}

func (p *Printer) forLoop(label string, v *Ident, iter, body Expr, span CodeSpan) {
	p.line("%s %s @ %s", label, p.name(v), span)
	p.nested(func() {
		p.Expr(iter)
		p.Expr(body)
	})
}

func (p *Printer) params(params []*Ident) string {
	names := make([]string, 0, len(params))
	for _, param := range params {
		names = append(names, p.name(param))
	}
	return strings.Join(names, ", ")
}
