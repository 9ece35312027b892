// source.go — source buffers, the registry that owns them, and byte spans.
//
// A compilation unit owns one SourceRegistry. Sources are appended once and
// never mutated or removed, so a source id is stable for the lifetime of the
// unit. Every token and AST node carries a CodeSpan pointing back into a
// registered source; the registry is the only component that can turn a span
// back into text.
package kslang

import "fmt"

// SourceKind discriminates where a source buffer came from.
type SourceKind int

const (
	// SourceStdin is an interactive buffer read from standard input.
	SourceStdin SourceKind = iota
	// SourceString is a literal string supplied by the host.
	SourceString
	// SourceFile is a file path together with its loaded contents.
	SourceFile
)

// Source is one immutable source buffer. The core performs no I/O: file
// contents are loaded by the caller before construction.
type Source struct {
	Kind SourceKind
	Path string // only meaningful for SourceFile
	Text string
}

// NewStdinSource wraps text read from an interactive session.
func NewStdinSource(text string) Source { return Source{Kind: SourceStdin, Text: text} }

// NewStringSource wraps a literal string.
func NewStringSource(text string) Source { return Source{Kind: SourceString, Text: text} }

// NewFileSource wraps a file path and its already-read contents.
func NewFileSource(path, contents string) Source {
	return Source{Kind: SourceFile, Path: path, Text: contents}
}

// Name renders the source for diagnostics: "<stdin>", "<string>", or the
// file path.
func (s Source) Name() string {
	switch s.Kind {
	case SourceStdin:
		return "<stdin>"
	case SourceFile:
		return s.Path
	default:
		return "<string>"
	}
}

// CodeSpan is a half-open byte range [Start, End) inside one registered
// source, plus the 0-based line on which the range starts.
type CodeSpan struct {
	SrcID int `json:"src_id"`
	Line  int `json:"line"`
	Start int `json:"start"`
	End   int `json:"end"`
}

// Merge combines two spans in textual order: the result keeps the receiver's
// source, line and start, and extends to b's end. Composite node spans are
// built exclusively through Merge, which is what keeps the parent-contains-
// child invariant cheap to maintain.
func (s CodeSpan) Merge(b CodeSpan) CodeSpan {
	return CodeSpan{SrcID: s.SrcID, Line: s.Line, Start: s.Start, End: b.End}
}

// Contains reports whether the receiver fully covers b (same source).
func (s CodeSpan) Contains(b CodeSpan) bool {
	return s.SrcID == b.SrcID && s.Start <= b.Start && b.End <= s.End
}

func (s CodeSpan) String() string {
	return fmt.Sprintf("%d:%d..%d", s.Line, s.Start, s.End)
}

// SourceRegistry is an append-only ordered collection of sources. The index
// assigned by Add is the span SrcID; ids are never reused.
type SourceRegistry struct {
	sources []Source
}

// NewSourceRegistry returns an empty registry. The zero value is also usable.
func NewSourceRegistry() *SourceRegistry { return &SourceRegistry{} }

// Add registers a source and returns its stable id.
func (r *SourceRegistry) Add(src Source) int {
	r.sources = append(r.sources, src)
	return len(r.sources) - 1
}

// Len returns the number of registered sources.
func (r *SourceRegistry) Len() int { return len(r.sources) }

// Get returns the source with the given id. The id must come from Add.
func (r *SourceRegistry) Get(id int) Source {
	if id < 0 || id >= len(r.sources) {
		panic(fmt.Sprintf("kslang: source id %d out of range (have %d sources)", id, len(r.sources)))
	}
	return r.sources[id]
}

// Text slices the text a span covers. Supplying a span with an unknown id or
// out-of-range offsets is a precondition violation, not a recoverable error:
// spans are only ever produced by the lexer and parser against this registry.
func (r *SourceRegistry) Text(sp CodeSpan) string {
	src := r.Get(sp.SrcID)
	if sp.Start < 0 || sp.End < sp.Start || sp.End > len(src.Text) {
		panic(fmt.Sprintf("kslang: span %s out of range for source %q", sp, src.Name()))
	}
	return src.Text[sp.Start:sp.End]
}
