// ast.go — the parsed program representation.
//
// Expr and Stmt are tagged unions modeled as interfaces with one struct per
// variant. Nodes do not duplicate source text: an identifier is just its
// span, and names are sliced back out of the SourceRegistry on demand. Every
// node owns a full-extent CodeSpan built by merging its children's spans, so
// a parent span always contains the spans of its children.
package kslang

// Operator is the operator payload of unary and binary expressions.
type Operator int

const (
	OpEq Operator = iota
	OpNe
	OpLt
	OpLe
	OpGt
	OpGe
	OpAdd
	OpSub
	OpMul
	OpDiv
	OpMod
	OpAnd
	OpOr
	OpNot
)

var operatorNames = [...]string{
	OpEq: "==", OpNe: "!=", OpLt: "<", OpLe: "<=", OpGt: ">", OpGe: ">=",
	OpAdd: "+", OpSub: "-", OpMul: "*", OpDiv: "/", OpMod: "%",
	OpAnd: "&&", OpOr: "||", OpNot: "!",
}

func (o Operator) String() string {
	if int(o) < len(operatorNames) {
		return operatorNames[o]
	}
	return "?"
}

// Expr is one expression node.
//
// Evalable reports whether the expression is guaranteed to produce a value
// on every control path. The parser enforces it wherever the grammar
// requires a value (a def body, an assignment right-hand side).
type Expr interface {
	Pos() CodeSpan
	Evalable() bool
	exprNode()
}

// Stmt is one statement node. Statement-level evalability follows the
// expression-statement policy: only an expression statement can be evalable,
// and it is evalable iff its expression is. This is what makes a block's
// value well defined as "the value of its last statement".
type Stmt interface {
	Pos() CodeSpan
	Evalable() bool
	stmtNode()
}

// ─── Expressions ────────────────────────────────────────────────────────────

// Ident is a reference to a name; the name itself is the span's text.
type Ident struct {
	Span CodeSpan `json:"span"`
}

// Ellipsis is the "..." placeholder expression. It stands in for a value
// that has not been written yet, so it counts as evalable.
type Ellipsis struct {
	Span CodeSpan `json:"span"`
}

// Lit is a numeric literal, already converted by the parser.
type Lit struct {
	Val  float64  `json:"val"`
	Span CodeSpan `json:"span"`
}

// Paren is a parenthesized sub-expression.
type Paren struct {
	Inner Expr     `json:"inner"`
	Span  CodeSpan `json:"span"`
}

// Block is "{ stmt* }". Its value, when evalable, is the value of the last
// statement.
type Block struct {
	Stmts []Stmt   `json:"stmts"`
	Span  CodeSpan `json:"span"`
}

// Call is "callee(arg, ...)". ArgsSpan covers the parenthesized list.
type Call struct {
	Callee   *Ident   `json:"callee"`
	Args     []Expr   `json:"args"`
	ArgsSpan CodeSpan `json:"args_span"`
	Span     CodeSpan `json:"span"`
}

// UnOp is "-x" or "!x".
type UnOp struct {
	Op     Operator `json:"op"`
	OpSpan CodeSpan `json:"op_span"`
	Arg    Expr     `json:"arg"`
	Span   CodeSpan `json:"span"`
}

// BinOp is "left op right".
type BinOp struct {
	Op     Operator `json:"op"`
	OpSpan CodeSpan `json:"op_span"`
	Left   Expr     `json:"left"`
	Right  Expr     `json:"right"`
	Span   CodeSpan `json:"span"`
}

// IfThen is one "if cond then expr" arm of a conditional chain.
type IfThen struct {
	Cond Expr     `json:"cond"`
	Then Expr     `json:"then"`
	Span CodeSpan `json:"span"`
}

// ElseArm is the unconditional terminal "else expr" of a chain.
type ElseArm struct {
	Expr Expr     `json:"expr"`
	Span CodeSpan `json:"span"`
}

// IfExpr is the whole conditional chain. ArmsSpan covers the if/else-if arms
// without the terminal else.
type IfExpr struct {
	Arms     []IfThen `json:"arms"`
	ArmsSpan CodeSpan `json:"arms_span"`
	Else     *ElseArm `json:"else,omitempty"`
	Span     CodeSpan `json:"span"`
}

// ForExpr is a for-loop in expression position. Loops execute only for
// effect and never yield a value.
type ForExpr struct {
	Var      *Ident   `json:"var"`
	Iter     Expr     `json:"iter"`
	HeadSpan CodeSpan `json:"head_span"`
	Body     Expr     `json:"body"`
	Span     CodeSpan `json:"span"`
}

func (e *Ident) exprNode()    {}
func (e *Ellipsis) exprNode() {}
func (e *Lit) exprNode()      {}
func (e *Paren) exprNode()    {}
func (e *Block) exprNode()    {}
func (e *Call) exprNode()     {}
func (e *UnOp) exprNode()     {}
func (e *BinOp) exprNode()    {}
func (e *IfExpr) exprNode()   {}
func (e *ForExpr) exprNode()  {}

func (e *Ident) Pos() CodeSpan    { return e.Span }
func (e *Ellipsis) Pos() CodeSpan { return e.Span }
func (e *Lit) Pos() CodeSpan      { return e.Span }
func (e *Paren) Pos() CodeSpan    { return e.Span }
func (e *Block) Pos() CodeSpan    { return e.Span }
func (e *Call) Pos() CodeSpan     { return e.Span }
func (e *UnOp) Pos() CodeSpan     { return e.Span }
func (e *BinOp) Pos() CodeSpan    { return e.Span }
func (e *IfExpr) Pos() CodeSpan   { return e.Span }
func (e *ForExpr) Pos() CodeSpan  { return e.Span }

func (e *Ident) Evalable() bool    { return true }
func (e *Ellipsis) Evalable() bool { return true }
func (e *Lit) Evalable() bool      { return true }
func (e *Call) Evalable() bool     { return true }
func (e *UnOp) Evalable() bool     { return true }
func (e *BinOp) Evalable() bool    { return true }
func (e *Paren) Evalable() bool    { return e.Inner.Evalable() }

func (e *Block) Evalable() bool {
	if len(e.Stmts) == 0 {
		return false
	}
	return e.Stmts[len(e.Stmts)-1].Evalable()
}

// An if-chain yields a value only when every arm does and an else closes
// off the remaining control path.
func (e *IfExpr) Evalable() bool {
	for _, arm := range e.Arms {
		if !arm.Then.Evalable() {
			return false
		}
	}
	return e.Else != nil && e.Else.Expr.Evalable()
}

func (e *ForExpr) Evalable() bool { return false }

// ─── Statements ─────────────────────────────────────────────────────────────

// EmptyStmt is a lone ";".
type EmptyStmt struct {
	Span CodeSpan `json:"span"`
}

// ExprStmt is a bare expression in statement position.
type ExprStmt struct {
	X    Expr     `json:"expr"`
	Span CodeSpan `json:"span"`
}

// AssignStmt is "name = expr". AssignSpan covers the "=".
type AssignStmt struct {
	Left       *Ident   `json:"left"`
	Right      Expr     `json:"right"`
	AssignSpan CodeSpan `json:"assign_span"`
	Span       CodeSpan `json:"span"`
}

// BreakStmt is "break".
type BreakStmt struct {
	Span CodeSpan `json:"span"`
}

// ContinueStmt is "continue".
type ContinueStmt struct {
	Span CodeSpan `json:"span"`
}

// ReturnStmt is "return expr".
type ReturnStmt struct {
	X    Expr     `json:"expr"`
	Span CodeSpan `json:"span"`
}

// DefStmt is "def name(params) body".
type DefStmt struct {
	Name     *Ident   `json:"name"`
	Params   []*Ident `json:"params"`
	ArgsSpan CodeSpan `json:"args_span"`
	Body     Expr     `json:"body"`
	BodySpan CodeSpan `json:"body_span"`
	Span     CodeSpan `json:"span"`
}

// ExternStmt is "extern name(params);" — a fixed-name, any-arity contract
// without a body.
type ExternStmt struct {
	Name     *Ident   `json:"name"`
	Params   []*Ident `json:"params"`
	ArgsSpan CodeSpan `json:"args_span"`
	Span     CodeSpan `json:"span"`
}

// ForStmt is a for-loop in statement position.
type ForStmt struct {
	Var      *Ident   `json:"var"`
	Iter     Expr     `json:"iter"`
	HeadSpan CodeSpan `json:"head_span"`
	Body     Expr     `json:"body"`
	Span     CodeSpan `json:"span"`
}

func (s *EmptyStmt) stmtNode()    {}
func (s *ExprStmt) stmtNode()     {}
func (s *AssignStmt) stmtNode()   {}
func (s *BreakStmt) stmtNode()    {}
func (s *ContinueStmt) stmtNode() {}
func (s *ReturnStmt) stmtNode()   {}
func (s *DefStmt) stmtNode()      {}
func (s *ExternStmt) stmtNode()   {}
func (s *ForStmt) stmtNode()      {}

func (s *EmptyStmt) Pos() CodeSpan    { return s.Span }
func (s *ExprStmt) Pos() CodeSpan     { return s.Span }
func (s *AssignStmt) Pos() CodeSpan   { return s.Span }
func (s *BreakStmt) Pos() CodeSpan    { return s.Span }
func (s *ContinueStmt) Pos() CodeSpan { return s.Span }
func (s *ReturnStmt) Pos() CodeSpan   { return s.Span }
func (s *DefStmt) Pos() CodeSpan      { return s.Span }
func (s *ExternStmt) Pos() CodeSpan   { return s.Span }
func (s *ForStmt) Pos() CodeSpan      { return s.Span }

func (s *EmptyStmt) Evalable() bool    { return false }
func (s *ExprStmt) Evalable() bool     { return s.X.Evalable() }
func (s *AssignStmt) Evalable() bool   { return false }
func (s *BreakStmt) Evalable() bool    { return false }
func (s *ContinueStmt) Evalable() bool { return false }
func (s *ReturnStmt) Evalable() bool   { return false }
func (s *DefStmt) Evalable() bool      { return false }
func (s *ExternStmt) Evalable() bool   { return false }
func (s *ForStmt) Evalable() bool      { return false }
