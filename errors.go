// errors.go — user-facing error wrapping and caret-snippet rendering.
//
// OVERVIEW
// --------
// Lexer, parser and analyzer diagnostics all carry byte-range spans, which is
// the right currency for tooling but unreadable in a terminal. This file
// projects them into Python-style snippets with a caret under the offending
// column:
//
//	PARSE ERROR in <stdin> at 3:14: unexpected token `)`
//
//	   2 | x = (1 + 2
//	   3 |              )
//	       |            ^
//	   4 | y = 3
//
// WrapError recognizes *LexError, *ParseError and *AnalyzeError and formats
// them against the registry that owns their source; any other error is
// returned unchanged. FormatLexError renders the compact one-line form used
// when a whole batch of lexical errors is reported together.
//
// Rendering is plain text (no ANSI escapes) and clamps out-of-range
// coordinates instead of panicking, so malformed spans degrade gracefully.
package kslang

import (
	"fmt"
	"strings"
)

// WrapError returns an error whose message is a caret-annotated snippet of
// the registered source the diagnostic points into. Errors of unknown types
// are returned unchanged.
func WrapError(err error, reg *SourceRegistry) error {
	switch e := err.(type) {
	case *LexError:
		return wrapSpan(reg, "LEXICAL ERROR", e.Span, "unrecognized input")
	case *ParseError:
		return wrapSpan(reg, "PARSE ERROR", e.Site(), e.Error())
	case *AnalyzeError:
		return wrapSpan(reg, "ANALYSIS ERROR", e.Span, e.Error())
	default:
		return err
	}
}

// FormatLexError renders the compact batch form of one lexical error:
//
//	[Lexer:2] <stdin>@1:4..6 `@@`
//
// where i is the error's index within the batch and the backticked text is
// the offending source slice.
func FormatLexError(reg *SourceRegistry, i int, e *LexError) string {
	src := reg.Get(e.Span.SrcID)
	return fmt.Sprintf("[Lexer:%d] %s@%s `%s`", i, src.Name(), e.Span, reg.Text(e.Span))
}

// FormatLexErrors renders a batch, one error per line.
func FormatLexErrors(reg *SourceRegistry, errs []*LexError) string {
	lines := make([]string, 0, len(errs))
	for i, e := range errs {
		lines = append(lines, FormatLexError(reg, i, e))
	}
	return strings.Join(lines, "\n")
}

func wrapSpan(reg *SourceRegistry, header string, sp CodeSpan, msg string) error {
	src := reg.Get(sp.SrcID)
	line, col := lineCol(src.Text, sp.Start)
	return fmt.Errorf("%s", snippet(src.Text, header, src.Name(), line, col, msg))
}

// lineCol converts a byte offset into 1-based line/column coordinates,
// clamping offsets past the end of the text.
func lineCol(src string, off int) (line, col int) {
	line, col = 1, 1
	for i := 0; i < off && i < len(src); i++ {
		if src[i] == '\n' {
			line++
			col = 1
		} else {
			col++
		}
	}
	return line, col
}

// snippet builds the multi-line caret rendering: a header, up to one line of
// context on each side, and a caret under the 1-based column. Coordinates
// are clamped to the source bounds so rendering never fails.
func snippet(src, header, name string, line, col int, msg string) string {
	lines := strings.Split(src, "\n")
	if len(lines) == 0 {
		lines = []string{""}
	}
	if line < 1 {
		line = 1
	}
	if line > len(lines) {
		line = len(lines)
	}
	if col < 1 {
		col = 1
	}

	var b strings.Builder
	if name != "" {
		fmt.Fprintf(&b, "%s in %s at %d:%d: %s\n\n", header, name, line, col, msg)
	} else {
		fmt.Fprintf(&b, "%s at %d:%d: %s\n\n", header, line, col, msg)
	}
	if line > 1 {
		fmt.Fprintf(&b, "%4d | %s\n", line-1, lines[line-2])
	}
	fmt.Fprintf(&b, "%4d | %s\n", line, lines[line-1])
	fmt.Fprintf(&b, "     | %s^\n", strings.Repeat(" ", col-1))
	if line < len(lines) {
		fmt.Fprintf(&b, "%4d | %s\n", line+1, lines[line])
	}
	return b.String()
}
