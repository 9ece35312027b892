// parser.go — recursive-descent parser with precedence climbing and
// disciplined backtracking.
//
// OVERVIEW
// --------
// Every production is a pure function over a value cursor (source text,
// remaining tokens, span of the last consumed token). Nothing is mutated, so
// any production can be speculatively retried against the same cursor. The
// control-flow idiom of the whole file:
//
//   - An "unexpected token" failure is UNCOMMITTED: the construct simply did
//     not start here, and the caller falls through to its next alternative.
//   - Every other error is COMMITTED: a leading keyword or token (`def`,
//     `extern`, `for`, `if`, `return`, an assignment's `=`) has identified
//     the construct unambiguously, so failures inside it always propagate,
//     wrapped so the full derivation chain survives.
//
// Alternatives are combined by firstOf: first success wins, the first
// committed failure aborts, and exhaustion reports the last uncommitted one.
//
// The parser needs the materialized token slice (not the lexer iterator)
// because alternatives re-read the same tokens, and the source text because
// identifier names and numeric values live only in the text.
//
// Binary precedence, loosest to tightest: `&& ||`, comparisons, `+ -`,
// `* / %`. Unary `- !` binds tighter than all of those and applies to a
// call or primary.
package kslang

import (
	"fmt"
	"strconv"
	"strings"
)

// ParseErrKind discriminates which production failed.
type ParseErrKind int

const (
	ErrUnexpectedEnd   ParseErrKind = iota // span
	ErrUnexpectedToken                     // token; the only uncommitted kind

	ErrAssignRight       // boxed
	ErrAssignNotEvalable // span
	ErrConsecutiveAssign // span
	ErrReturnExpr        // boxed

	ErrArgsNonBegin  // span
	ErrArgsNonEnd    // span
	ErrArgsComma     // span
	ErrParamNonIdent // span: a def/extern parameter that is not a bare name

	ErrForIdent // span
	ErrForIn    // span
	ErrForIter  // boxed
	ErrForBody  // boxed

	ErrDefName            // span
	ErrDefArgs            // boxed
	ErrDefBody            // boxed
	ErrDefBodyNotEvalable // span

	ErrExternName // span
	ErrExternArgs // boxed
	ErrExternEnd  // span

	ErrNumber    // token: lexed fine, failed float conversion
	ErrCondExpr  // boxed
	ErrThenToken // token
	ErrThenExpr  // boxed
)

var parseErrMessages = map[ParseErrKind]string{
	ErrUnexpectedEnd:      "unexpected end of input",
	ErrUnexpectedToken:    "unexpected token",
	ErrAssignRight:        "malformed assignment right-hand side",
	ErrAssignNotEvalable:  "assignment right-hand side does not produce a value",
	ErrConsecutiveAssign:  "consecutive assignment",
	ErrReturnExpr:         "malformed return expression",
	ErrArgsNonBegin:       "argument list does not open with '('",
	ErrArgsNonEnd:         "unterminated argument list",
	ErrArgsComma:          "expected ',' or ')' in argument list",
	ErrParamNonIdent:      "parameter is not a bare identifier",
	ErrForIdent:           "expected loop variable after 'for'",
	ErrForIn:              "expected 'in' after loop variable",
	ErrForIter:            "malformed loop iterable",
	ErrForBody:            "malformed loop body",
	ErrDefName:            "expected function name after 'def'",
	ErrDefArgs:            "malformed parameter list",
	ErrDefBody:            "malformed function body",
	ErrDefBodyNotEvalable: "function body does not produce a value",
	ErrExternName:         "expected function name after 'extern'",
	ErrExternArgs:         "malformed extern parameter list",
	ErrExternEnd:          "expected ';' after extern declaration",
	ErrNumber:             "invalid numeric literal",
	ErrCondExpr:           "malformed condition",
	ErrThenToken:          "expected 'then' after condition",
	ErrThenExpr:           "malformed 'then' branch",
}

// ParseError carries either the span/token where a production failed or a
// boxed sub-error preserving the full derivation chain.
type ParseError struct {
	Kind  ParseErrKind
	Span  CodeSpan
	Tok   *Token      // set for token-carrying kinds
	Inner *ParseError // set for boxed kinds
}

func (e *ParseError) Error() string {
	msg, ok := parseErrMessages[e.Kind]
	if !ok {
		msg = fmt.Sprintf("parse error %d", int(e.Kind))
	}
	switch {
	case e.Inner != nil:
		return fmt.Sprintf("%s: %s", msg, e.Inner.Error())
	case e.Tok != nil:
		return fmt.Sprintf("%s (%s at %s)", msg, e.Tok.Kind, e.Tok.Span)
	default:
		return fmt.Sprintf("%s at %s", msg, e.Span)
	}
}

// Unwrap exposes the boxed sub-error, if any.
func (e *ParseError) Unwrap() error {
	if e.Inner == nil {
		return nil
	}
	return e.Inner
}

// Site returns the innermost span of the derivation chain.
func (e *ParseError) Site() CodeSpan {
	for e.Inner != nil {
		e = e.Inner
	}
	if e.Tok != nil {
		return e.Tok.Span
	}
	return e.Span
}

// IsIncomplete reports whether err is a parse failure caused by the input
// ending mid-construct, the signal interactive front ends use to keep
// reading instead of reporting.
func IsIncomplete(err error) bool {
	pe, ok := err.(*ParseError)
	if !ok {
		return false
	}
	for pe.Inner != nil {
		pe = pe.Inner
	}
	return pe.Kind == ErrUnexpectedEnd
}

func unexpected(tok Token) *ParseError {
	t := tok
	return &ParseError{Kind: ErrUnexpectedToken, Span: tok.Span, Tok: &t}
}

func boxed(kind ParseErrKind, err error) *ParseError {
	return &ParseError{Kind: kind, Inner: err.(*ParseError)}
}

// isUncommitted reports whether an alternative may still be retried.
func isUncommitted(err error) bool {
	pe, ok := err.(*ParseError)
	return ok && pe.Kind == ErrUnexpectedToken
}

// ─── cursor & combinators ────────────────────────────────────────────────────

// cursor is the immutable parse position: it is copied, never mutated, which
// is what makes speculative retries safe.
type cursor struct {
	src  string
	rest []Token
	last CodeSpan // span of the last consumed token
}

type parseFn[T any] func(cursor) (T, cursor, error)

// firstOf tries alternatives in priority order: first success, else first
// committed failure, else the last uncommitted failure.
func firstOf[T any](c cursor, alts ...parseFn[T]) (T, cursor, error) {
	var zero T
	var lastErr error
	for _, alt := range alts {
		v, nc, err := alt(c)
		if err == nil {
			return v, nc, nil
		}
		if !isUncommitted(err) {
			return zero, c, err
		}
		lastErr = err
	}
	return zero, c, lastErr
}

// parseSkips returns the next significant token, stepping over whitespace,
// comments and BOMs one by one (their spans stay available for diagnostics
// through the returned cursor's last-span chain).
func parseSkips(c cursor) (Token, cursor, error) {
	rest := c.rest
	last := c.last
	for len(rest) > 0 {
		tok := rest[0]
		rest = rest[1:]
		if tok.Kind.IsTrivia() {
			last = tok.Span
			continue
		}
		return tok, cursor{src: c.src, rest: rest, last: tok.Span}, nil
	}
	return Token{}, c, &ParseError{Kind: ErrUnexpectedEnd, Span: last}
}

// ─── entry points ────────────────────────────────────────────────────────────

// ParseAST parses a materialized token sequence (plus its owning source
// text) into an ordered statement sequence.
func ParseAST(src string, toks []Token) ([]Stmt, error) {
	if len(toks) == 0 || strings.TrimSpace(src) == "" {
		return nil, nil
	}

	last := CodeSpan{SrcID: toks[0].Span.SrcID}
	c := cursor{src: src, rest: toks, last: last}

	var stmts []Stmt
	for {
		if _, _, err := parseSkips(c); err != nil {
			break // only trivia left
		}
		stmt, nc, err := parseStmt(c)
		if err != nil {
			return nil, err
		}
		stmts = append(stmts, stmt)
		c = nc
	}
	return stmts, nil
}

// ParseSource lexes and parses one registered source. Lexical errors do not
// stop the pipeline (the lexer recovers); they are returned alongside
// whatever the parser made of the recognized tokens.
func ParseSource(reg *SourceRegistry, srcID int) ([]Stmt, []*LexError, error) {
	toks, lexErrs, _ := Tokenize(reg, srcID)
	stmts, err := ParseAST(reg.Get(srcID).Text, toks)
	return stmts, lexErrs, err
}

// ─── statements ──────────────────────────────────────────────────────────────

// Dispatch order matters: first match at the same start position wins.
func parseStmt(c cursor) (Stmt, cursor, error) {
	return firstOf(c,
		parseEmpty,
		parseAssign,
		parseReturn,
		parseBreakContinue,
		parseForStmt,
		parseDef,
		parseExtern,
		parseExprStmt,
	)
}

// parseSemi consumes one optional trailing semicolon.
func parseSemi(c cursor) cursor {
	if tok, nc, err := parseSkips(c); err == nil && tok.Kind == SEMICOLON {
		return nc
	}
	return c
}

func parseEmpty(c cursor) (Stmt, cursor, error) {
	tok, nc, err := parseSkips(c)
	if err != nil {
		return nil, c, err
	}
	if tok.Kind != SEMICOLON {
		return nil, c, unexpected(tok)
	}
	return &EmptyStmt{Span: tok.Span}, nc, nil
}

func parseExprStmt(c cursor) (Stmt, cursor, error) {
	expr, nc, err := parseExpr(c)
	if err != nil {
		return nil, c, err
	}
	nc = parseSemi(nc)
	return &ExprStmt{X: expr, Span: expr.Pos()}, nc, nil
}

func parseAssign(c cursor) (Stmt, cursor, error) {
	ident, identC, err := parseSkips(c)
	if err != nil {
		return nil, c, err
	}
	if ident.Kind != IDENT {
		return nil, c, unexpected(ident)
	}

	// Not committed until the '=' is seen: exhaustion here just means the
	// identifier was the whole remaining input, a valid expression statement.
	op, opC, err := parseSkips(identC)
	if err != nil || op.Kind != ASSIGN {
		return nil, c, unexpected(ident)
	}

	// '=' seen: the construct is committed from here on.
	right, rightC, err := parseExpr(opC)
	if err != nil {
		return nil, c, boxed(ErrAssignRight, err)
	}
	if !right.Evalable() {
		return nil, c, &ParseError{Kind: ErrAssignNotEvalable, Span: right.Pos()}
	}

	if a, _, err := parseSkips(rightC); err == nil && a.Kind == ASSIGN {
		return nil, c, &ParseError{Kind: ErrConsecutiveAssign, Span: ident.Span.Merge(a.Span)}
	}

	stmt := &AssignStmt{
		Left:       &Ident{Span: ident.Span},
		Right:      right,
		AssignSpan: op.Span,
		Span:       ident.Span.Merge(right.Pos()),
	}
	return stmt, parseSemi(rightC), nil
}

func parseReturn(c cursor) (Stmt, cursor, error) {
	tok, nc, err := parseSkips(c)
	if err != nil {
		return nil, c, err
	}
	if tok.Kind != RETURN {
		return nil, c, unexpected(tok)
	}

	expr, exprC, err := parseExpr(nc)
	if err != nil {
		return nil, c, boxed(ErrReturnExpr, err)
	}
	stmt := &ReturnStmt{X: expr, Span: tok.Span.Merge(expr.Pos())}
	return stmt, parseSemi(exprC), nil
}

func parseBreakContinue(c cursor) (Stmt, cursor, error) {
	tok, nc, err := parseSkips(c)
	if err != nil {
		return nil, c, err
	}
	var stmt Stmt
	switch tok.Kind {
	case BREAK:
		stmt = &BreakStmt{Span: tok.Span}
	case CONTINUE:
		stmt = &ContinueStmt{Span: tok.Span}
	default:
		return nil, c, unexpected(tok)
	}
	return stmt, parseSemi(nc), nil
}

// parseForHead parses "for x in iter" and is shared by the statement and
// expression forms of the loop.
func parseForHead(c cursor) (forTok Token, loopVar *Ident, iter Expr, headSpan CodeSpan, nc cursor, err error) {
	forTok, forC, err := parseSkips(c)
	if err != nil {
		return Token{}, nil, nil, CodeSpan{}, c, err
	}
	if forTok.Kind != FOR {
		return Token{}, nil, nil, CodeSpan{}, c, unexpected(forTok)
	}

	ident, identC, err := parseSkips(forC)
	if err != nil {
		return Token{}, nil, nil, CodeSpan{}, c, err
	}
	if ident.Kind != IDENT {
		return Token{}, nil, nil, CodeSpan{}, c, &ParseError{Kind: ErrForIdent, Span: ident.Span}
	}

	inTok, inC, err := parseSkips(identC)
	if err != nil {
		return Token{}, nil, nil, CodeSpan{}, c, err
	}
	if inTok.Kind != IN {
		return Token{}, nil, nil, CodeSpan{}, c, &ParseError{Kind: ErrForIn, Span: inTok.Span}
	}

	iter, iterC, err := parseExpr(inC)
	if err != nil {
		return Token{}, nil, nil, CodeSpan{}, c, boxed(ErrForIter, err)
	}

	headSpan = forTok.Span.Merge(iterC.last)
	return forTok, &Ident{Span: ident.Span}, iter, headSpan, iterC, nil
}

func parseForStmt(c cursor) (Stmt, cursor, error) {
	forTok, loopVar, iter, headSpan, headC, err := parseForHead(c)
	if err != nil {
		return nil, c, err
	}

	body, bodyC, err := parseExpr(headC)
	if err != nil {
		return nil, c, boxed(ErrForBody, err)
	}

	stmt := &ForStmt{
		Var:      loopVar,
		Iter:     iter,
		HeadSpan: headSpan,
		Body:     body,
		Span:     forTok.Span.Merge(body.Pos()),
	}
	return stmt, parseSemi(bodyC), nil
}

func parseDef(c cursor) (Stmt, cursor, error) {
	def, defC, err := parseSkips(c)
	if err != nil {
		return nil, c, err
	}
	if def.Kind != DEF {
		return nil, c, unexpected(def)
	}

	name, nameC, err := parseSkips(defC)
	if err != nil {
		return nil, c, err
	}
	if name.Kind != IDENT {
		return nil, c, &ParseError{Kind: ErrDefName, Span: name.Span}
	}

	params, argsSpan, argsC, err := parseParams(nameC)
	if err != nil {
		return nil, c, boxed(ErrDefArgs, err)
	}

	body, bodyC, err := parseExpr(argsC)
	if err != nil {
		return nil, c, boxed(ErrDefBody, err)
	}
	if !body.Evalable() {
		return nil, c, &ParseError{Kind: ErrDefBodyNotEvalable, Span: body.Pos()}
	}

	stmt := &DefStmt{
		Name:     &Ident{Span: name.Span},
		Params:   params,
		ArgsSpan: argsSpan,
		Body:     body,
		BodySpan: body.Pos(),
		Span:     def.Span.Merge(body.Pos()),
	}
	return stmt, parseSemi(bodyC), nil
}

func parseExtern(c cursor) (Stmt, cursor, error) {
	ext, extC, err := parseSkips(c)
	if err != nil {
		return nil, c, err
	}
	if ext.Kind != EXTERN {
		return nil, c, unexpected(ext)
	}

	name, nameC, err := parseSkips(extC)
	if err != nil {
		return nil, c, err
	}
	if name.Kind != IDENT {
		return nil, c, &ParseError{Kind: ErrExternName, Span: name.Span}
	}

	params, argsSpan, argsC, err := parseParams(nameC)
	if err != nil {
		return nil, c, boxed(ErrExternArgs, err)
	}

	// The declaration has no body, so the semicolon is mandatory here.
	semi, semiC, err := parseSkips(argsC)
	if err != nil {
		return nil, c, err
	}
	if semi.Kind != SEMICOLON {
		return nil, c, &ParseError{Kind: ErrExternEnd, Span: semi.Span}
	}

	stmt := &ExternStmt{
		Name:     &Ident{Span: name.Span},
		Params:   params,
		ArgsSpan: argsSpan,
		Span:     ext.Span.Merge(semi.Span),
	}
	return stmt, semiC, nil
}

// parseParams parses a def/extern parameter list: an argument list whose
// every element must be a bare identifier.
func parseParams(c cursor) ([]*Ident, CodeSpan, cursor, error) {
	args, argsSpan, nc, err := parseArgs(c)
	if err != nil {
		return nil, CodeSpan{}, c, err
	}
	// A nil slice for "()" keeps zero-parameter nodes identical after a
	// JSON round trip, where omitempty drops the empty list.
	var params []*Ident
	for _, a := range args {
		id, ok := a.(*Ident)
		if !ok {
			return nil, CodeSpan{}, c, &ParseError{Kind: ErrParamNonIdent, Span: a.Pos()}
		}
		params = append(params, id)
	}
	return params, argsSpan, nc, nil
}

// ─── argument lists ──────────────────────────────────────────────────────────

// parseArgs parses "( expr , ... )" and returns the expressions plus the
// span of the whole parenthesized list. A missing '(' is reported as
// ErrArgsNonBegin, which callers in expression position treat as "not a
// call" (the one sanctioned fallback); everything after the '(' is
// committed.
func parseArgs(c cursor) ([]Expr, CodeSpan, cursor, error) {
	// Exhaustion before the '(' counts as "no list here" so callers can fall
	// back, same as any other non-'(' token.
	open, openC, err := parseSkips(c)
	if err != nil {
		return nil, CodeSpan{}, c, &ParseError{Kind: ErrArgsNonBegin, Span: c.last}
	}
	if open.Kind != LROUND {
		return nil, CodeSpan{}, c, &ParseError{Kind: ErrArgsNonBegin, Span: open.Span}
	}

	var args []Expr
	cur := openC
	sawNonComma := false
	for {
		arg, argC, err := parseExpr(cur)
		if err != nil {
			if !isUncommitted(err) {
				return nil, CodeSpan{}, c, err
			}
			break // not an expression: leave the token for the ')' check
		}
		args = append(args, arg)
		cur = argC

		sep, sepC, err := parseSkips(cur)
		if err != nil {
			return nil, CodeSpan{}, c, err // ran out inside the list
		}
		if sep.Kind != COMMA {
			sawNonComma = true
			break
		}
		cur = sepC
	}

	closeTok, closeC, err := parseSkips(cur)
	if err != nil {
		return nil, CodeSpan{}, c, err
	}
	if closeTok.Kind != RROUND {
		if sawNonComma {
			return nil, CodeSpan{}, c, &ParseError{Kind: ErrArgsComma, Span: closeTok.Span}
		}
		return nil, CodeSpan{}, c, &ParseError{Kind: ErrArgsNonEnd, Span: closeTok.Span}
	}

	return args, open.Span.Merge(closeTok.Span), closeC, nil
}

// ─── expressions: precedence ladder ──────────────────────────────────────────

func parseExpr(c cursor) (Expr, cursor, error) { return parseAndOr(c) }

var (
	logicalOps        = map[TokenKind]Operator{AND: OpAnd, OR: OpOr}
	comparisonOps     = map[TokenKind]Operator{EQ: OpEq, NE: OpNe, LT: OpLt, LE: OpLe, GT: OpGt, GE: OpGe}
	additiveOps       = map[TokenKind]Operator{ADD: OpAdd, SUB: OpSub}
	multiplicativeOps = map[TokenKind]Operator{MUL: OpMul, DIV: OpDiv, MOD: OpMod}
)

func parseAndOr(c cursor) (Expr, cursor, error) {
	return parseBinOpLevel(c, parseComparison, logicalOps)
}
func parseComparison(c cursor) (Expr, cursor, error) {
	return parseBinOpLevel(c, parseAddSub, comparisonOps)
}
func parseAddSub(c cursor) (Expr, cursor, error) {
	return parseBinOpLevel(c, parseMulDiv, additiveOps)
}
func parseMulDiv(c cursor) (Expr, cursor, error) {
	return parseBinOpLevel(c, parseUnary, multiplicativeOps)
}

// parseBinOpLevel parses one left-associative precedence level: a chain of
// `next (op next)*` for the operators in ops.
func parseBinOpLevel(c cursor, next parseFn[Expr], ops map[TokenKind]Operator) (Expr, cursor, error) {
	left, cur, err := next(c)
	if err != nil {
		return nil, c, err
	}
	for {
		opTok, opC, err := parseSkips(cur)
		if err != nil {
			break
		}
		op, ok := ops[opTok.Kind]
		if !ok {
			break
		}
		right, rightC, err := next(opC)
		if err != nil {
			return nil, c, err
		}
		left = &BinOp{
			Op:     op,
			OpSpan: opTok.Span,
			Left:   left,
			Right:  right,
			Span:   left.Pos().Merge(right.Pos()),
		}
		cur = rightC
	}
	return left, cur, nil
}

func parseUnary(c cursor) (Expr, cursor, error) {
	opTok, opC, err := parseSkips(c)
	if err != nil {
		return nil, c, err
	}

	var op Operator
	switch opTok.Kind {
	case SUB:
		op = OpSub
	case NOT:
		op = OpNot
	default:
		return parseCall(c)
	}

	arg, argC, err := parseCall(opC)
	if err != nil {
		return nil, c, err
	}
	expr := &UnOp{
		Op:     op,
		OpSpan: opTok.Span,
		Arg:    arg,
		Span:   opTok.Span.Merge(arg.Pos()),
	}
	return expr, argC, nil
}

// parseCall parses "ident(args)". If no parenthesis opens after the
// identifier, the whole attempt falls back to a primary, re-reading the
// identifier as a bare reference. Any other argument-list failure is
// committed: "foo(1, 2" never degrades to a reference.
func parseCall(c cursor) (Expr, cursor, error) {
	ident, identC, err := parseSkips(c)
	if err != nil {
		return nil, c, err
	}
	if ident.Kind != IDENT {
		return parsePrimary(c)
	}

	args, argsSpan, argsC, err := parseArgs(identC)
	if err != nil {
		if pe, ok := err.(*ParseError); ok && pe.Kind == ErrArgsNonBegin {
			return parsePrimary(c)
		}
		return nil, c, err
	}

	expr := &Call{
		Callee:   &Ident{Span: ident.Span},
		Args:     args,
		ArgsSpan: argsSpan,
		Span:     ident.Span.Merge(argsSpan),
	}
	return expr, argsC, nil
}

// ─── primaries ───────────────────────────────────────────────────────────────

// Exhaustion is reported as a committed ErrUnexpectedEnd by the first
// alternative's token fetch, so an uncommitted failure here always carries
// the actual non-primary token.
func parsePrimary(c cursor) (Expr, cursor, error) {
	return firstOf(c,
		parseBlock,
		parseParen,
		parseIfExpr,
		parseForExpr,
		parseLit,
		parseIdentExpr,
		parseEllipsis,
	)
}

func parseBlock(c cursor) (Expr, cursor, error) {
	open, openC, err := parseSkips(c)
	if err != nil {
		return nil, c, err
	}
	if open.Kind != LCURLY {
		return nil, c, unexpected(open)
	}

	var stmts []Stmt
	cur := openC
	for {
		stmt, stmtC, err := parseStmt(cur)
		if err != nil {
			if !isUncommitted(err) {
				return nil, c, err
			}
			break
		}
		stmts = append(stmts, stmt)
		cur = stmtC
	}

	closeTok, closeC, err := parseSkips(cur)
	if err != nil {
		return nil, c, err
	}
	if closeTok.Kind != RCURLY {
		return nil, c, unexpected(closeTok)
	}

	expr := &Block{Stmts: stmts, Span: open.Span.Merge(closeTok.Span)}
	return expr, closeC, nil
}

func parseParen(c cursor) (Expr, cursor, error) {
	open, openC, err := parseSkips(c)
	if err != nil {
		return nil, c, err
	}
	if open.Kind != LROUND {
		return nil, c, unexpected(open)
	}

	inner, innerC, err := parseExpr(openC)
	if err != nil {
		return nil, c, err
	}

	closeTok, closeC, err := parseSkips(innerC)
	if err != nil {
		return nil, c, err
	}
	if closeTok.Kind != RROUND {
		return nil, c, unexpected(closeTok)
	}

	expr := &Paren{Inner: inner, Span: open.Span.Merge(closeTok.Span)}
	return expr, closeC, nil
}

// parseIfThen parses one "cond then expr" arm; ifTok is the `if` (or
// `else if`'s `if`) that opened it.
func parseIfThen(ifTok Token, c cursor) (IfThen, cursor, error) {
	cond, condC, err := parseExpr(c)
	if err != nil {
		return IfThen{}, c, boxed(ErrCondExpr, err)
	}

	thenTok, thenC, err := parseSkips(condC)
	if err != nil {
		return IfThen{}, c, err
	}
	if thenTok.Kind != THEN {
		t := thenTok
		return IfThen{}, c, &ParseError{Kind: ErrThenToken, Span: thenTok.Span, Tok: &t}
	}

	then, exprC, err := parseExpr(thenC)
	if err != nil {
		return IfThen{}, c, boxed(ErrThenExpr, err)
	}

	arm := IfThen{Cond: cond, Then: then, Span: ifTok.Span.Merge(then.Pos())}
	return arm, exprC, nil
}

func parseIfExpr(c cursor) (Expr, cursor, error) {
	ifTok, ifC, err := parseSkips(c)
	if err != nil {
		return nil, c, err
	}
	if ifTok.Kind != IF {
		return nil, c, unexpected(ifTok)
	}

	arm, cur, err := parseIfThen(ifTok, ifC)
	if err != nil {
		return nil, c, err
	}

	arms := []IfThen{arm}
	var elseArm *ElseArm

	for {
		elseTok, elseC, err := parseSkips(cur)
		if err != nil || elseTok.Kind != ELSE {
			break
		}

		nextTok, nextC, err := parseSkips(elseC)
		if err != nil {
			return nil, c, err
		}

		if nextTok.Kind != IF {
			// Terminal unconditional else.
			expr, exprC, err := parseExpr(elseC)
			if err != nil {
				return nil, c, err
			}
			elseArm = &ElseArm{Expr: expr, Span: elseTok.Span.Merge(expr.Pos())}
			cur = exprC
			break
		}

		elifArm, elifC, err := parseIfThen(nextTok, nextC)
		if err != nil {
			return nil, c, err
		}
		arms = append(arms, elifArm)
		cur = elifC
	}

	armsSpan := arms[0].Span
	if len(arms) > 1 {
		armsSpan = armsSpan.Merge(arms[len(arms)-1].Span)
	}

	expr := &IfExpr{
		Arms:     arms,
		ArmsSpan: armsSpan,
		Else:     elseArm,
		Span:     ifTok.Span.Merge(cur.last),
	}
	return expr, cur, nil
}

func parseForExpr(c cursor) (Expr, cursor, error) {
	forTok, loopVar, iter, headSpan, headC, err := parseForHead(c)
	if err != nil {
		return nil, c, err
	}

	body, bodyC, err := parseExpr(headC)
	if err != nil {
		return nil, c, boxed(ErrForBody, err)
	}

	expr := &ForExpr{
		Var:      loopVar,
		Iter:     iter,
		HeadSpan: headSpan,
		Body:     body,
		Span:     forTok.Span.Merge(body.Pos()),
	}
	return expr, bodyC, nil
}

func parseLit(c cursor) (Expr, cursor, error) {
	tok, nc, err := parseSkips(c)
	if err != nil {
		return nil, c, err
	}
	if tok.Kind != NUMBER {
		return nil, c, unexpected(tok)
	}

	// The lexer only checked the shape; the conversion can still fail
	// (e.g. "1._5" or "1e_2").
	val, err := strconv.ParseFloat(c.src[tok.Span.Start:tok.Span.End], 64)
	if err != nil {
		t := tok
		return nil, c, &ParseError{Kind: ErrNumber, Span: tok.Span, Tok: &t}
	}
	return &Lit{Val: val, Span: tok.Span}, nc, nil
}

func parseIdentExpr(c cursor) (Expr, cursor, error) {
	tok, nc, err := parseSkips(c)
	if err != nil {
		return nil, c, err
	}
	if tok.Kind != IDENT {
		return nil, c, unexpected(tok)
	}
	return &Ident{Span: tok.Span}, nc, nil
}

func parseEllipsis(c cursor) (Expr, cursor, error) {
	tok, nc, err := parseSkips(c)
	if err != nil {
		return nil, c, err
	}
	if tok.Kind != ELLIPSIS {
		return nil, c, unexpected(tok)
	}
	return &Ellipsis{Span: tok.Span}, nc, nil
}
