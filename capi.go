// capi.go — flat, handle-based embedding surface.
//
// OVERVIEW
// --------
// Hosts that cannot hold Go pointers (C shims, other runtimes, RPC bridges)
// drive the pipeline through opaque int64 handles and flat token records.
// Objects live in a process-wide table guarded by a mutex; a handle is a
// monotonically increasing id, never reused, so a stale handle is detected
// instead of hitting a recycled object.
//
// Error discipline: there is no process-global "last error" slot. Every
// operation either returns a status directly or records its error on the
// handle it was invoked on, retrievable with LexerErr/ParseErr. Concurrent
// use of different handles never races on shared error state.
//
// Invalid handles are signaled with -1 (or the InvalidHandle constant) and
// never panic: the host is by assumption less able to recover from a crash
// than from an error code.
package kslang

import "sync"

// Handle identifies one object in the embedding table.
type Handle = int64

// InvalidHandle is returned by constructors that fail and rejected by every
// operation.
const InvalidHandle Handle = -1

// Status codes returned by LexerNext.
const (
	StatusOK       int32 = 0  // a token was produced
	StatusEnd      int32 = 1  // input exhausted
	StatusBadToken int32 = -2 // unrecognized input; error recorded on the handle
	StatusBadArg   int32 = -1 // invalid handle
)

// CToken is the flat token record handed across the boundary. Val carries
// the numeric payload of NUMBER tokens and is zero otherwise.
type CToken struct {
	Kind  int32
	Val   float64
	Line  int32
	Start int64
	End   int64
}

type apiSource struct {
	reg   *SourceRegistry
	srcID int
}

type apiLexer struct {
	lex *Lexer
	src *apiSource
	err error
}

type apiParse struct {
	src   *apiSource
	stmts []Stmt
	err   error
}

var capi = struct {
	sync.Mutex
	next    Handle
	objects map[Handle]any
}{objects: make(map[Handle]any)}

func capiPut(obj any) Handle {
	capi.Lock()
	defer capi.Unlock()
	h := capi.next
	capi.next++
	capi.objects[h] = obj
	return h
}

func capiGet(h Handle) any {
	capi.Lock()
	defer capi.Unlock()
	return capi.objects[h]
}

// Free releases the object behind h. It returns false if the handle was
// invalid or already freed.
func Free(h Handle) bool {
	capi.Lock()
	defer capi.Unlock()
	if _, ok := capi.objects[h]; !ok {
		return false
	}
	delete(capi.objects, h)
	return true
}

// SourceNew registers a named source text and returns its handle.
func SourceNew(name, text string) Handle {
	reg := NewSourceRegistry()
	src := &apiSource{reg: reg}
	if name == "" {
		src.srcID = reg.Add(NewStringSource(text))
	} else {
		src.srcID = reg.Add(NewFileSource(name, text))
	}
	return capiPut(src)
}

// SourceText returns the registered text, or "" and false for an invalid
// handle.
func SourceText(h Handle) (string, bool) {
	src, ok := capiGet(h).(*apiSource)
	if !ok {
		return "", false
	}
	return src.reg.Get(src.srcID).Text, true
}

// LexerNew creates a lexer over a registered source. It returns
// InvalidHandle if src does not name a source.
func LexerNew(src Handle) Handle {
	s, ok := capiGet(src).(*apiSource)
	if !ok {
		return InvalidHandle
	}
	return capiPut(&apiLexer{lex: NewLexer(s.reg, s.srcID), src: s})
}

// LexerNext advances the lexer one token. On StatusOK the record describes
// the token; on StatusBadToken it describes the offending span and the error
// is recorded on the handle; on StatusEnd and StatusBadArg the record is
// zero.
func LexerNext(h Handle) (CToken, int32) {
	lx, ok := capiGet(h).(*apiLexer)
	if !ok {
		return CToken{}, StatusBadArg
	}

	tok, err := lx.lex.Next()
	if err != nil {
		if le, ok := err.(*LexError); ok {
			lx.err = le
			return projectSpan(le.Span), StatusBadToken
		}
		return CToken{}, StatusEnd // io.EOF
	}

	rec := projectSpan(tok.Span)
	rec.Kind = int32(tok.Kind)
	if tok.Kind == NUMBER {
		// Best effort: malformed shapes stay zero here and are reported
		// properly by the parser.
		rec.Val, _ = numberValue(lx.src.reg, tok.Span)
	}
	return rec, StatusOK
}

// LexerErr returns the text of the last lexical error recorded on h, or ""
// if none (including for invalid handles).
func LexerErr(h Handle) string {
	lx, ok := capiGet(h).(*apiLexer)
	if !ok || lx.err == nil {
		return ""
	}
	return FormatLexError(lx.src.reg, 0, lx.err.(*LexError))
}

// ParseNew runs the lex+parse pipeline over a registered source and returns
// a result handle, or InvalidHandle if src does not name a source. Parse
// failure still yields a valid handle; interrogate it with ParseOK and
// ParseErr.
func ParseNew(src Handle) Handle {
	s, ok := capiGet(src).(*apiSource)
	if !ok {
		return InvalidHandle
	}
	p := &apiParse{src: s}
	p.stmts, _, p.err = ParseSource(s.reg, s.srcID)
	return capiPut(p)
}

// ParseOK reports the result state: 1 parsed, 0 failed, -1 invalid handle.
func ParseOK(h Handle) int32 {
	p, ok := capiGet(h).(*apiParse)
	switch {
	case !ok:
		return -1
	case p.err != nil:
		return 0
	default:
		return 1
	}
}

// ParseErr returns the rendered parse error, or "" if the parse succeeded
// or the handle is invalid.
func ParseErr(h Handle) string {
	p, ok := capiGet(h).(*apiParse)
	if !ok || p.err == nil {
		return ""
	}
	return WrapError(p.err, p.src.reg).Error()
}

// ParseNumStmts returns the number of top-level statements, or -1 for an
// invalid handle or failed parse.
func ParseNumStmts(h Handle) int64 {
	p, ok := capiGet(h).(*apiParse)
	if !ok || p.err != nil {
		return -1
	}
	return int64(len(p.stmts))
}

// ParseJSON returns the parsed unit in the json.go wire format, or "" and
// false for an invalid handle, failed parse, or encoding failure.
func ParseJSON(h Handle) (string, bool) {
	p, ok := capiGet(h).(*apiParse)
	if !ok || p.err != nil {
		return "", false
	}
	data, err := MarshalProgram(p.stmts)
	if err != nil {
		p.err = err
		return "", false
	}
	return string(data), true
}

func projectSpan(sp CodeSpan) CToken {
	return CToken{
		Line:  int32(sp.Line),
		Start: int64(sp.Start),
		End:   int64(sp.End),
	}
}
