package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	kslang "github.com/Sun-in-Splendour/ksproject"
)

var lexCmd = &cobra.Command{
	Use:   "lex",
	Short: "Tokenize a source and print the token stream",
	Long: `Tokenize a source and print every token, including whitespace,
comments and BOM trivia. Unrecognized input is reported to stderr and
makes the command fail, but lexing continues past it.`,
	RunE: runLex,
}

func init() {
	rootCmd.AddCommand(lexCmd)
}

type lexRecord struct {
	Kind string          `json:"kind"`
	Span kslang.CodeSpan `json:"span"`
	Text string          `json:"text"`
}

func runLex(cmd *cobra.Command, args []string) error {
	f, err := format()
	if err != nil {
		return err
	}
	src, err := readInput()
	if err != nil {
		return err
	}
	w, closeOut, err := openOutput()
	if err != nil {
		return err
	}
	defer closeOut()

	reg := kslang.NewSourceRegistry()
	id := reg.Add(src)
	toks, lexErrs, symbols := kslang.Tokenize(reg, id)

	switch f {
	case "json":
		records := make([]lexRecord, 0, len(toks))
		for _, t := range toks {
			records = append(records, lexRecord{
				Kind: t.Kind.String(),
				Span: t.Span,
				Text: reg.Text(t.Span),
			})
		}
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(records); err != nil {
			return err
		}
	default:
		for _, t := range toks {
			if t.Kind.IsTrivia() && !verbose {
				continue
			}
			fmt.Fprintf(w, "%-12s %s\t%q\n", t.Kind, t.Span, reg.Text(t.Span))
		}
	}

	if verbose {
		fmt.Fprintf(os.Stderr, "%d token(s), %d symbol(s)\n", len(toks), len(symbols))
	}
	if len(lexErrs) > 0 {
		fmt.Fprintln(os.Stderr, kslang.FormatLexErrors(reg, lexErrs))
		return fmt.Errorf("%d lexical error(s)", len(lexErrs))
	}
	return nil
}
