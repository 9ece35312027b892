package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	kslang "github.com/Sun-in-Splendour/ksproject"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Run the full front end and report every finding",
	Long: `Run lexing, parsing and lexical-scope analysis over a source.
All analysis findings are reported, not just the first: undefined
names, calls to undefined functions, argument-count mismatches and
duplicate bindings.`,
	RunE: runCheck,
}

func init() {
	rootCmd.AddCommand(checkCmd)
}

func runCheck(cmd *cobra.Command, args []string) error {
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

	stmts, lexErrs, perr := kslang.ParseSource(reg, id)
	if len(lexErrs) > 0 {
		fmt.Fprintln(os.Stderr, kslang.FormatLexErrors(reg, lexErrs))
	}
	if perr != nil {
		fmt.Fprintln(os.Stderr, kslang.WrapError(perr, reg).Error())
		return fmt.Errorf("parse failed")
	}

	an := kslang.NewAnalyzer(reg)
	findings := an.Analyze(stmts)
	for _, e := range findings {
		fmt.Fprintln(os.Stderr, kslang.WrapError(e, reg).Error())
	}

	total := len(lexErrs) + len(findings)
	if total > 0 {
		return fmt.Errorf("%d finding(s)", total)
	}
	if verbose {
		fmt.Fprintf(w, "%s: ok (%d statement(s), %d scope(s))\n", src.Name(), len(stmts), an.NumScopes())
	} else {
		fmt.Fprintln(w, "ok")
	}
	return nil
}
