// lexer.go — single-pass tokenizer for kslang sources.
//
// The lexer walks one registered source and yields tokens in strict source
// order. Iteration is destructive: a Lexer cannot be rewound or reused, which
// is why the parser consumes a materialized slice (see Tokenize) rather than
// the iterator itself.
//
// Whitespace, comments and a UTF-8 BOM are real tokens. They carry no
// semantic value, but keeping them in the stream (instead of silently
// dropping them) preserves exact span information for diagnostics; the
// parser skips them one by one.
//
// Unrecognized input does not stop the lexer. A maximal run of bytes that
// cannot start any token becomes a single *LexError covering exactly those
// bytes, and scanning resumes at the next recognizable byte. One documented
// limitation: the running line counter only counts newlines inside
// successfully recognized tokens, so line numbers reported after a lexical
// error that swallowed a newline are off by that amount.
package kslang

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"
)

// TokenKind is the closed set of lexical classes.
type TokenKind int

const (
	// Trivia
	WHITESPACE TokenKind = iota
	COMMENT              // "#" to end of line
	BOM                  // UTF-8 byte order mark

	IDENT
	NUMBER

	// Keywords
	BREAK
	CONTINUE
	DEF
	ELSE
	EXTERN
	FOR
	IF
	IN
	RETURN
	THEN

	// Operators
	ASSIGN // "="
	EQ     // "=="
	NE     // "!="
	LT
	LE
	GT
	GE
	ADD
	SUB
	MUL
	DIV
	MOD
	AND // "&&"
	OR  // "||"
	NOT // "!"

	// Punctuation
	LROUND
	RROUND
	LCURLY
	RCURLY
	SEMICOLON
	COMMA

	ELLIPSIS // "..."
)

var tokenKindNames = map[TokenKind]string{
	WHITESPACE: "Whitespace", COMMENT: "Comment", BOM: "BOM",
	IDENT: "Ident", NUMBER: "Number",
	BREAK: "break", CONTINUE: "continue", DEF: "def", ELSE: "else",
	EXTERN: "extern", FOR: "for", IF: "if", IN: "in", RETURN: "return", THEN: "then",
	ASSIGN: "=", EQ: "==", NE: "!=", LT: "<", LE: "<=", GT: ">", GE: ">=",
	ADD: "+", SUB: "-", MUL: "*", DIV: "/", MOD: "%", AND: "&&", OR: "||", NOT: "!",
	LROUND: "(", RROUND: ")", LCURLY: "{", RCURLY: "}", SEMICOLON: ";", COMMA: ",",
	ELLIPSIS: "...",
}

func (k TokenKind) String() string {
	if s, ok := tokenKindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("TokenKind(%d)", int(k))
}

// IsTrivia reports whether a token can be skipped without changing the parse.
func (k TokenKind) IsTrivia() bool {
	return k == WHITESPACE || k == COMMENT || k == BOM
}

// IsKeyword reports whether the kind is a reserved word.
func (k TokenKind) IsKeyword() bool { return k >= BREAK && k <= THEN }

// IsOperator reports whether the kind is an operator token.
func (k TokenKind) IsOperator() bool { return k >= ASSIGN && k <= NOT }

// IsPunctuation reports whether the kind is a punctuation token.
func (k TokenKind) IsPunctuation() bool { return k >= LROUND && k <= COMMA }

var keywords = map[string]TokenKind{
	"break":    BREAK,
	"continue": CONTINUE,
	"def":      DEF,
	"else":     ELSE,
	"extern":   EXTERN,
	"for":      FOR,
	"if":       IF,
	"in":       IN,
	"return":   RETURN,
	"then":     THEN,
}

// Token is a lexical token: a kind plus the span of the bytes it covers.
// The raw text is not duplicated here; slice it back out of the registry.
type Token struct {
	Kind TokenKind `json:"kind"`
	Span CodeSpan  `json:"span"`
}

// LexError reports a run of bytes that matches no token pattern. Span covers
// exactly the offending bytes.
type LexError struct {
	Span CodeSpan
}

func (e *LexError) Error() string {
	return fmt.Sprintf("unrecognized input at %s", e.Span)
}

// Lexer scans one registered source. Create with NewLexer, drain with Next.
type Lexer struct {
	reg     *SourceRegistry
	srcID   int
	src     string
	pos     int
	line    int // 0-based, advanced by newlines in recognized tokens only
	symbols map[string][]CodeSpan
}

// NewLexer returns a lexer over the registered source srcID.
func NewLexer(reg *SourceRegistry, srcID int) *Lexer {
	return &Lexer{
		reg:     reg,
		srcID:   srcID,
		src:     reg.Get(srcID).Text,
		symbols: make(map[string][]CodeSpan),
	}
}

// Symbols returns the identifier-occurrence table collected so far: every
// IDENT lexeme mapped to the spans it appeared at, in source order.
func (l *Lexer) Symbols() map[string][]CodeSpan { return l.symbols }

// Next returns the next token in source order. At the end of the source it
// returns io.EOF. A *LexError is returned for each unrecognized byte run;
// iteration may continue afterwards.
func (l *Lexer) Next() (Token, error) {
	if l.pos >= len(l.src) {
		return Token{}, io.EOF
	}

	start := l.pos
	kind, ok := l.scan()
	if !ok {
		// Swallow at least one rune (a byte may be able to start a token
		// without completing one, e.g. a lone "&"), then the maximal run of
		// bytes that cannot start a token.
		_, size := utf8.DecodeRuneInString(l.src[l.pos:])
		l.pos += size
		for l.pos < len(l.src) && !l.canStartToken() {
			_, size := utf8.DecodeRuneInString(l.src[l.pos:])
			l.pos += size
		}
		return Token{}, &LexError{Span: l.span(start)}
	}

	sp := l.span(start)
	l.line += strings.Count(l.src[start:l.pos], "\n")
	if kind == IDENT {
		text := l.src[sp.Start:sp.End]
		l.symbols[text] = append(l.symbols[text], sp)
	}
	return Token{Kind: kind, Span: sp}, nil
}

// Tokenize drains a fresh lexer over srcID, returning the materialized token
// sequence the parser needs plus all lexical errors, each list in source
// order. The symbol table is returned as well so callers do not have to keep
// the lexer around.
func Tokenize(reg *SourceRegistry, srcID int) ([]Token, []*LexError, map[string][]CodeSpan) {
	l := NewLexer(reg, srcID)
	var toks []Token
	var errs []*LexError
	for {
		tok, err := l.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			errs = append(errs, err.(*LexError))
			continue
		}
		toks = append(toks, tok)
	}
	return toks, errs, l.Symbols()
}

func (l *Lexer) span(start int) CodeSpan {
	return CodeSpan{SrcID: l.srcID, Line: l.line, Start: start, End: l.pos}
}

func (l *Lexer) peekByte() (byte, bool) {
	if l.pos >= len(l.src) {
		return 0, false
	}
	return l.src[l.pos], true
}

func (l *Lexer) hasPrefix(s string) bool {
	return strings.HasPrefix(l.src[l.pos:], s)
}

// scan consumes one token starting at l.pos, returning its kind. ok is false
// when the byte at l.pos cannot start any token (nothing is consumed then).
func (l *Lexer) scan() (TokenKind, bool) {
	r, size := utf8.DecodeRuneInString(l.src[l.pos:])

	switch {
	case r == '\uFEFF':
		l.pos += size
		return BOM, true
	case unicode.IsSpace(r):
		for l.pos < len(l.src) {
			r, size := utf8.DecodeRuneInString(l.src[l.pos:])
			if !unicode.IsSpace(r) {
				break
			}
			l.pos += size
		}
		return WHITESPACE, true
	case r == '#':
		for l.pos < len(l.src) && l.src[l.pos] != '\n' {
			l.pos++
		}
		return COMMENT, true
	case r == '_' || unicode.IsLetter(r):
		return l.scanIdent(), true
	case r >= '0' && r <= '9':
		l.scanNumber()
		return NUMBER, true
	}

	// Multi-byte operators before their single-byte prefixes.
	type op struct {
		text string
		kind TokenKind
	}
	for _, o := range []op{
		{"...", ELLIPSIS},
		{"==", EQ}, {"!=", NE}, {"<=", LE}, {">=", GE},
		{"&&", AND}, {"||", OR},
		{"=", ASSIGN}, {"!", NOT}, {"<", LT}, {">", GT},
		{"+", ADD}, {"-", SUB}, {"*", MUL}, {"/", DIV}, {"%", MOD},
		{"(", LROUND}, {")", RROUND}, {"{", LCURLY}, {"}", RCURLY},
		{";", SEMICOLON}, {",", COMMA},
	} {
		if l.hasPrefix(o.text) {
			l.pos += len(o.text)
			return o.kind, true
		}
	}

	return 0, false
}

func (l *Lexer) scanIdent() TokenKind {
	start := l.pos
	for l.pos < len(l.src) {
		r, size := utf8.DecodeRuneInString(l.src[l.pos:])
		if r != '_' && !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			break
		}
		l.pos += size
	}
	if kw, ok := keywords[l.src[start:l.pos]]; ok {
		return kw
	}
	return IDENT
}

// scanNumber consumes the lexical shape of a number:
//
//	digits ("." "_"* digits)? (("e"|"E") "_"* sign? "_"* digits)?
//
// where digits is a digit run with single underscores between digits.
// Recognizing the shape is purely lexical; converting the text to a float64
// happens in the parser and can fail independently (e.g. "1._5").
func (l *Lexer) scanNumber() {
	l.scanDigits()

	if b, ok := l.peekByte(); ok && b == '.' {
		mark := l.pos
		l.pos++
		for b, ok := l.peekByte(); ok && b == '_'; b, ok = l.peekByte() {
			l.pos++
		}
		if b, ok := l.peekByte(); ok && isDigit(b) {
			l.scanDigits()
		} else {
			l.pos = mark // "1." — the dot is not part of the number
		}
	}

	if b, ok := l.peekByte(); ok && (b == 'e' || b == 'E') {
		mark := l.pos
		l.pos++
		for b, ok := l.peekByte(); ok && b == '_'; b, ok = l.peekByte() {
			l.pos++
		}
		if b, ok := l.peekByte(); ok && (b == '+' || b == '-') {
			l.pos++
		}
		for b, ok := l.peekByte(); ok && b == '_'; b, ok = l.peekByte() {
			l.pos++
		}
		if b, ok := l.peekByte(); ok && isDigit(b) {
			l.scanDigits()
		} else {
			l.pos = mark // "1e" with no digits — exponent not taken
		}
	}
}

// scanDigits consumes digit [ digit | "_" digit ]* — an underscore is taken
// only when a digit follows, so "1_" stops after the 1.
func (l *Lexer) scanDigits() {
	l.pos++ // first digit, checked by the caller
	for l.pos < len(l.src) {
		b := l.src[l.pos]
		if isDigit(b) {
			l.pos++
			continue
		}
		if b == '_' && l.pos+1 < len(l.src) && isDigit(l.src[l.pos+1]) {
			l.pos += 2
			continue
		}
		break
	}
}

func isDigit(b byte) bool { return b >= '0' && b <= '9' }

// numberValue converts a NUMBER token's text to its float value. The scanner
// accepts a few shapes strconv rejects (stray underscores), so conversion
// can fail even for a valid token.
func numberValue(reg *SourceRegistry, sp CodeSpan) (float64, error) {
	return strconv.ParseFloat(reg.Text(sp), 64)
}

// canStartToken reports whether the byte/rune at l.pos could begin some
// token. Used to delimit unrecognized-input runs.
func (l *Lexer) canStartToken() bool {
	r, _ := utf8.DecodeRuneInString(l.src[l.pos:])
	if r == '\uFEFF' || unicode.IsSpace(r) || unicode.IsLetter(r) {
		return true
	}
	if r >= '0' && r <= '9' {
		return true
	}
	switch r {
	case '#', '_', '=', '!', '<', '>', '+', '-', '*', '/', '%',
		'(', ')', '{', '}', ';', ',', '&', '|', '.':
		return true
	}
	return false
}
