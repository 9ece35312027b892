// json.go — lossless JSON projection of the AST.
//
// OVERVIEW
// --------
// Every node is encoded as an envelope carrying a "kind" discriminator plus
// the node's fields, so the tree survives a marshal/unmarshal round trip
// with spans, operator payloads and statement order intact:
//
//	{"kind": "binop", "op": "+", "left": {...}, "right": {...},
//	 "op_span": {...}, "span": {...}}
//
// Interfaces cannot be decoded by encoding/json directly, so the tree is
// converted through an intermediate wire node: one struct holding the union
// of all per-kind fields as optional members. Encoding fills only the fields
// the kind owns; decoding switches on the kind and rejects envelopes missing
// a required field instead of fabricating zero values. Operators travel as
// their surface symbols ("+", "&&"), which stay stable even if the internal
// enum is reordered.
package kslang

import (
	"encoding/json"
	"fmt"
)

// MarshalProgram encodes a parsed unit as a JSON array of statement
// envelopes.
func MarshalProgram(stmts []Stmt) ([]byte, error) {
	nodes := make([]*jsonNode, 0, len(stmts))
	for _, s := range stmts {
		nodes = append(nodes, encodeStmt(s))
	}
	return json.Marshal(nodes)
}

// UnmarshalProgram decodes a unit previously produced by MarshalProgram.
func UnmarshalProgram(data []byte) ([]Stmt, error) {
	var nodes []*jsonNode
	if err := json.Unmarshal(data, &nodes); err != nil {
		return nil, err
	}
	stmts := make([]Stmt, 0, len(nodes))
	for i, n := range nodes {
		s, err := decodeStmt(n)
		if err != nil {
			return nil, fmt.Errorf("stmt %d: %w", i, err)
		}
		stmts = append(stmts, s)
	}
	return stmts, nil
}

// MarshalExpr encodes a single expression envelope.
func MarshalExpr(e Expr) ([]byte, error) {
	return json.Marshal(encodeExpr(e))
}

// UnmarshalExpr decodes a single expression envelope.
func UnmarshalExpr(data []byte) (Expr, error) {
	var n jsonNode
	if err := json.Unmarshal(data, &n); err != nil {
		return nil, err
	}
	return decodeExpr(&n)
}

// jsonNode is the wire shape shared by every kind; per-kind fields are
// pointers or slices so absent ones vanish under omitempty.
type jsonNode struct {
	Kind string   `json:"kind"`
	Span CodeSpan `json:"span"`

	Val *float64 `json:"val,omitempty"` // lit

	Op     string    `json:"op,omitempty"` // unop, binop
	OpSpan *CodeSpan `json:"op_span,omitempty"`

	Inner *jsonNode   `json:"inner,omitempty"` // paren
	Stmts []*jsonNode `json:"stmts,omitempty"` // block

	Callee   *jsonNode   `json:"callee,omitempty"` // call
	Args     []*jsonNode `json:"args,omitempty"`
	ArgsSpan *CodeSpan   `json:"args_span,omitempty"` // call, def, extern

	Left  *jsonNode `json:"left,omitempty"` // binop, assign
	Right *jsonNode `json:"right,omitempty"`
	Arg   *jsonNode `json:"arg,omitempty"` // unop

	Arms     []jsonArm `json:"arms,omitempty"` // if
	ArmsSpan *CodeSpan `json:"arms_span,omitempty"`
	Else     *jsonElse `json:"else,omitempty"`

	Var      *jsonNode `json:"var,omitempty"` // for
	Iter     *jsonNode `json:"iter,omitempty"`
	Body     *jsonNode `json:"body,omitempty"` // for, def
	HeadSpan *CodeSpan `json:"head_span,omitempty"`
	BodySpan *CodeSpan `json:"body_span,omitempty"`

	X          *jsonNode `json:"expr,omitempty"` // expr_stmt, return
	AssignSpan *CodeSpan `json:"assign_span,omitempty"`

	Name   *jsonNode   `json:"name,omitempty"` // def, extern
	Params []*jsonNode `json:"params,omitempty"`
}

type jsonArm struct {
	Cond *jsonNode `json:"cond"`
	Then *jsonNode `json:"then"`
	Span CodeSpan  `json:"span"`
}

type jsonElse struct {
	Expr *jsonNode `json:"expr"`
	Span CodeSpan  `json:"span"`
}

var symbolOperators = func() map[string]Operator {
	m := make(map[string]Operator, len(operatorNames))
	for op, sym := range operatorNames {
		m[sym] = Operator(op)
	}
	return m
}()

func spanPtr(sp CodeSpan) *CodeSpan { return &sp }

// ─── encoding ────────────────────────────────────────────────────────────────

func encodeIdent(id *Ident) *jsonNode {
	if id == nil {
		return nil
	}
	return &jsonNode{Kind: "ident", Span: id.Span}
}

func encodeIdents(ids []*Ident) []*jsonNode {
	if len(ids) == 0 {
		return nil
	}
	out := make([]*jsonNode, 0, len(ids))
	for _, id := range ids {
		out = append(out, encodeIdent(id))
	}
	return out
}

func encodeExpr(e Expr) *jsonNode {
	switch e := e.(type) {
	case *Ident:
		return encodeIdent(e)
	case *Ellipsis:
		return &jsonNode{Kind: "ellipsis", Span: e.Span}
	case *Lit:
		v := e.Val
		return &jsonNode{Kind: "lit", Span: e.Span, Val: &v}
	case *Paren:
		return &jsonNode{Kind: "paren", Span: e.Span, Inner: encodeExpr(e.Inner)}
	case *Block:
		stmts := make([]*jsonNode, 0, len(e.Stmts))
		for _, s := range e.Stmts {
			stmts = append(stmts, encodeStmt(s))
		}
		return &jsonNode{Kind: "block", Span: e.Span, Stmts: stmts}
	case *Call:
		args := make([]*jsonNode, 0, len(e.Args))
		for _, a := range e.Args {
			args = append(args, encodeExpr(a))
		}
		return &jsonNode{
			Kind: "call", Span: e.Span,
			Callee: encodeIdent(e.Callee), Args: args, ArgsSpan: spanPtr(e.ArgsSpan),
		}
	case *UnOp:
		return &jsonNode{
			Kind: "unop", Span: e.Span,
			Op: e.Op.String(), OpSpan: spanPtr(e.OpSpan), Arg: encodeExpr(e.Arg),
		}
	case *BinOp:
		return &jsonNode{
			Kind: "binop", Span: e.Span,
			Op: e.Op.String(), OpSpan: spanPtr(e.OpSpan),
			Left: encodeExpr(e.Left), Right: encodeExpr(e.Right),
		}
	case *IfExpr:
		arms := make([]jsonArm, 0, len(e.Arms))
		for _, a := range e.Arms {
			arms = append(arms, jsonArm{Cond: encodeExpr(a.Cond), Then: encodeExpr(a.Then), Span: a.Span})
		}
		n := &jsonNode{Kind: "if", Span: e.Span, Arms: arms, ArmsSpan: spanPtr(e.ArmsSpan)}
		if e.Else != nil {
			n.Else = &jsonElse{Expr: encodeExpr(e.Else.Expr), Span: e.Else.Span}
		}
		return n
	case *ForExpr:
		return &jsonNode{
			Kind: "for_expr", Span: e.Span,
			Var: encodeIdent(e.Var), Iter: encodeExpr(e.Iter),
			HeadSpan: spanPtr(e.HeadSpan), Body: encodeExpr(e.Body),
		}
	}
	panic(fmt.Sprintf("unknown expression %T", e))
}

func encodeStmt(s Stmt) *jsonNode {
	switch s := s.(type) {
	case *EmptyStmt:
		return &jsonNode{Kind: "empty", Span: s.Span}
	case *ExprStmt:
		return &jsonNode{Kind: "expr_stmt", Span: s.Span, X: encodeExpr(s.X)}
	case *AssignStmt:
		return &jsonNode{
			Kind: "assign", Span: s.Span,
			Left: encodeIdent(s.Left), Right: encodeExpr(s.Right),
			AssignSpan: spanPtr(s.AssignSpan),
		}
	case *BreakStmt:
		return &jsonNode{Kind: "break", Span: s.Span}
	case *ContinueStmt:
		return &jsonNode{Kind: "continue", Span: s.Span}
	case *ReturnStmt:
		return &jsonNode{Kind: "return", Span: s.Span, X: encodeExpr(s.X)}
	case *DefStmt:
		return &jsonNode{
			Kind: "def", Span: s.Span,
			Name: encodeIdent(s.Name), Params: encodeIdents(s.Params),
			ArgsSpan: spanPtr(s.ArgsSpan),
			Body:     encodeExpr(s.Body), BodySpan: spanPtr(s.BodySpan),
		}
	case *ExternStmt:
		return &jsonNode{
			Kind: "extern", Span: s.Span,
			Name: encodeIdent(s.Name), Params: encodeIdents(s.Params),
			ArgsSpan: spanPtr(s.ArgsSpan),
		}
	case *ForStmt:
		return &jsonNode{
			Kind: "for_stmt", Span: s.Span,
			Var: encodeIdent(s.Var), Iter: encodeExpr(s.Iter),
			HeadSpan: spanPtr(s.HeadSpan), Body: encodeExpr(s.Body),
		}
	}
	panic(fmt.Sprintf("unknown statement %T", s))
}

// ─── decoding ────────────────────────────────────────────────────────────────

func missing(kind, field string) error {
	return fmt.Errorf("%s node: missing %q", kind, field)
}

func decodeIdent(n *jsonNode, owner, field string) (*Ident, error) {
	if n == nil {
		return nil, missing(owner, field)
	}
	if n.Kind != "ident" {
		return nil, fmt.Errorf("%s node: %q must be an ident, got %q", owner, field, n.Kind)
	}
	return &Ident{Span: n.Span}, nil
}

func decodeChild(n *jsonNode, owner, field string) (Expr, error) {
	if n == nil {
		return nil, missing(owner, field)
	}
	return decodeExpr(n)
}

func decodeOperator(n *jsonNode) (Operator, error) {
	op, ok := symbolOperators[n.Op]
	if !ok {
		return 0, fmt.Errorf("%s node: unknown operator %q", n.Kind, n.Op)
	}
	return op, nil
}

func decodeSpan(sp *CodeSpan, owner, field string) (CodeSpan, error) {
	if sp == nil {
		return CodeSpan{}, missing(owner, field)
	}
	return *sp, nil
}

func decodeExpr(n *jsonNode) (Expr, error) {
	switch n.Kind {
	case "ident":
		return &Ident{Span: n.Span}, nil
	case "ellipsis":
		return &Ellipsis{Span: n.Span}, nil
	case "lit":
		if n.Val == nil {
			return nil, missing("lit", "val")
		}
		return &Lit{Val: *n.Val, Span: n.Span}, nil
	case "paren":
		inner, err := decodeChild(n.Inner, "paren", "inner")
		if err != nil {
			return nil, err
		}
		return &Paren{Inner: inner, Span: n.Span}, nil
	case "block":
		var stmts []Stmt // stays nil for "{}", like the parser's result
		for _, sn := range n.Stmts {
			s, err := decodeStmt(sn)
			if err != nil {
				return nil, err
			}
			stmts = append(stmts, s)
		}
		return &Block{Stmts: stmts, Span: n.Span}, nil
	case "call":
		callee, err := decodeIdent(n.Callee, "call", "callee")
		if err != nil {
			return nil, err
		}
		argsSpan, err := decodeSpan(n.ArgsSpan, "call", "args_span")
		if err != nil {
			return nil, err
		}
		var args []Expr
		for _, an := range n.Args {
			a, err := decodeExpr(an)
			if err != nil {
				return nil, err
			}
			args = append(args, a)
		}
		return &Call{Callee: callee, Args: args, ArgsSpan: argsSpan, Span: n.Span}, nil
	case "unop":
		op, err := decodeOperator(n)
		if err != nil {
			return nil, err
		}
		opSpan, err := decodeSpan(n.OpSpan, "unop", "op_span")
		if err != nil {
			return nil, err
		}
		arg, err := decodeChild(n.Arg, "unop", "arg")
		if err != nil {
			return nil, err
		}
		return &UnOp{Op: op, OpSpan: opSpan, Arg: arg, Span: n.Span}, nil
	case "binop":
		op, err := decodeOperator(n)
		if err != nil {
			return nil, err
		}
		opSpan, err := decodeSpan(n.OpSpan, "binop", "op_span")
		if err != nil {
			return nil, err
		}
		left, err := decodeChild(n.Left, "binop", "left")
		if err != nil {
			return nil, err
		}
		right, err := decodeChild(n.Right, "binop", "right")
		if err != nil {
			return nil, err
		}
		return &BinOp{Op: op, OpSpan: opSpan, Left: left, Right: right, Span: n.Span}, nil
	case "if":
		if len(n.Arms) == 0 {
			return nil, missing("if", "arms")
		}
		armsSpan, err := decodeSpan(n.ArmsSpan, "if", "arms_span")
		if err != nil {
			return nil, err
		}
		arms := make([]IfThen, 0, len(n.Arms))
		for _, an := range n.Arms {
			cond, err := decodeChild(an.Cond, "if", "cond")
			if err != nil {
				return nil, err
			}
			then, err := decodeChild(an.Then, "if", "then")
			if err != nil {
				return nil, err
			}
			arms = append(arms, IfThen{Cond: cond, Then: then, Span: an.Span})
		}
		e := &IfExpr{Arms: arms, ArmsSpan: armsSpan, Span: n.Span}
		if n.Else != nil {
			elseExpr, err := decodeChild(n.Else.Expr, "if", "else")
			if err != nil {
				return nil, err
			}
			e.Else = &ElseArm{Expr: elseExpr, Span: n.Else.Span}
		}
		return e, nil
	case "for_expr":
		v, iter, head, body, err := decodeForParts(n)
		if err != nil {
			return nil, err
		}
		return &ForExpr{Var: v, Iter: iter, HeadSpan: head, Body: body, Span: n.Span}, nil
	}
	return nil, fmt.Errorf("unknown expression kind %q", n.Kind)
}

func decodeForParts(n *jsonNode) (*Ident, Expr, CodeSpan, Expr, error) {
	v, err := decodeIdent(n.Var, n.Kind, "var")
	if err != nil {
		return nil, nil, CodeSpan{}, nil, err
	}
	iter, err := decodeChild(n.Iter, n.Kind, "iter")
	if err != nil {
		return nil, nil, CodeSpan{}, nil, err
	}
	head, err := decodeSpan(n.HeadSpan, n.Kind, "head_span")
	if err != nil {
		return nil, nil, CodeSpan{}, nil, err
	}
	body, err := decodeChild(n.Body, n.Kind, "body")
	if err != nil {
		return nil, nil, CodeSpan{}, nil, err
	}
	return v, iter, head, body, nil
}

func decodeParams(n *jsonNode) ([]*Ident, error) {
	var params []*Ident
	for _, pn := range n.Params {
		p, err := decodeIdent(pn, n.Kind, "params")
		if err != nil {
			return nil, err
		}
		params = append(params, p)
	}
	return params, nil
}

func decodeStmt(n *jsonNode) (Stmt, error) {
	switch n.Kind {
	case "empty":
		return &EmptyStmt{Span: n.Span}, nil
	case "expr_stmt":
		x, err := decodeChild(n.X, "expr_stmt", "expr")
		if err != nil {
			return nil, err
		}
		return &ExprStmt{X: x, Span: n.Span}, nil
	case "assign":
		left, err := decodeIdent(n.Left, "assign", "left")
		if err != nil {
			return nil, err
		}
		right, err := decodeChild(n.Right, "assign", "right")
		if err != nil {
			return nil, err
		}
		assignSpan, err := decodeSpan(n.AssignSpan, "assign", "assign_span")
		if err != nil {
			return nil, err
		}
		return &AssignStmt{Left: left, Right: right, AssignSpan: assignSpan, Span: n.Span}, nil
	case "break":
		return &BreakStmt{Span: n.Span}, nil
	case "continue":
		return &ContinueStmt{Span: n.Span}, nil
	case "return":
		x, err := decodeChild(n.X, "return", "expr")
		if err != nil {
			return nil, err
		}
		return &ReturnStmt{X: x, Span: n.Span}, nil
	case "def":
		name, err := decodeIdent(n.Name, "def", "name")
		if err != nil {
			return nil, err
		}
		params, err := decodeParams(n)
		if err != nil {
			return nil, err
		}
		argsSpan, err := decodeSpan(n.ArgsSpan, "def", "args_span")
		if err != nil {
			return nil, err
		}
		body, err := decodeChild(n.Body, "def", "body")
		if err != nil {
			return nil, err
		}
		bodySpan, err := decodeSpan(n.BodySpan, "def", "body_span")
		if err != nil {
			return nil, err
		}
		return &DefStmt{
			Name: name, Params: params, ArgsSpan: argsSpan,
			Body: body, BodySpan: bodySpan, Span: n.Span,
		}, nil
	case "extern":
		name, err := decodeIdent(n.Name, "extern", "name")
		if err != nil {
			return nil, err
		}
		params, err := decodeParams(n)
		if err != nil {
			return nil, err
		}
		argsSpan, err := decodeSpan(n.ArgsSpan, "extern", "args_span")
		if err != nil {
			return nil, err
		}
		return &ExternStmt{Name: name, Params: params, ArgsSpan: argsSpan, Span: n.Span}, nil
	case "for_stmt":
		v, iter, head, body, err := decodeForParts(n)
		if err != nil {
			return nil, err
		}
		return &ForStmt{Var: v, Iter: iter, HeadSpan: head, Body: body, Span: n.Span}, nil
	}
	return nil, fmt.Errorf("unknown statement kind %q", n.Kind)
}
