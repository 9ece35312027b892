package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	kslang "github.com/Sun-in-Splendour/ksproject"
)

var astCmd = &cobra.Command{
	Use:   "ast",
	Short: "Parse a source and print its syntax tree",
	RunE:  runAST,
}

func init() {
	rootCmd.AddCommand(astCmd)
}

func runAST(cmd *cobra.Command, args []string) error {
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

	stmts, lexErrs, perr := kslang.ParseSource(reg, id)
	if len(lexErrs) > 0 {
		fmt.Fprintln(os.Stderr, kslang.FormatLexErrors(reg, lexErrs))
	}
	if perr != nil {
		fmt.Fprintln(os.Stderr, kslang.WrapError(perr, reg).Error())
		return fmt.Errorf("parse failed")
	}
	if len(lexErrs) > 0 {
		return fmt.Errorf("%d lexical error(s)", len(lexErrs))
	}

	switch f {
	case "json":
		data, err := kslang.MarshalProgram(stmts)
		if err != nil {
			return err
		}
		var pretty json.RawMessage = data
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(pretty)
	default:
		fmt.Fprint(w, kslang.DumpProgram(reg, stmts))
	}
	return nil
}
