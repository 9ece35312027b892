package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/peterh/liner"
	"github.com/spf13/cobra"

	kslang "github.com/Sun-in-Splendour/ksproject"
)

const (
	historyFile = ".ksc_history"
	promptMain  = "ks> "
	promptCont  = "... "
)

var replCmd = &cobra.Command{
	Use:   "repl",
	Short: "Interactive front-end session",
	Long: `Read ks source interactively; each complete input is parsed,
scope-checked and printed as a tree. Input that ends mid-construct
continues on the next line. Type :quit to exit.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runRepl()
	},
}

func init() {
	rootCmd.AddCommand(replCmd)
}

func runRepl() error {
	fmt.Printf("ks %s front end\nCtrl+C cancels input, Ctrl+D exits. Type :quit to exit.\n", kslang.Version)

	home, _ := os.UserHomeDir()
	histPath := filepath.Join(home, historyFile)

	ln := liner.NewLiner()
	defer ln.Close()
	ln.SetCtrlCAborts(true)

	defer func() {
		if f, err := os.Create(histPath); err == nil {
			_, _ = ln.WriteHistory(f)
			_ = f.Close()
		}
	}()

	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, os.Interrupt, syscall.SIGTERM, syscall.SIGHUP)
	defer signal.Stop(sigc)
	go func() {
		<-sigc
		ln.Close()
		os.Exit(130)
	}()

	if f, err := os.Open(histPath); err == nil {
		_, _ = ln.ReadHistory(f)
		_ = f.Close()
	}

	for {
		code, ok := readByParseProbe(ln, promptMain, promptCont)
		if !ok {
			fmt.Println()
			return nil
		}

		trimmed := strings.TrimSpace(code)
		if trimmed == "" {
			continue
		}
		if strings.HasPrefix(trimmed, ":") {
			switch strings.ToLower(trimmed) {
			case ":quit":
				return nil
			default:
				fmt.Println("unknown command. Type :quit to exit.")
			}
			continue
		}

		evalLine(code)
		ln.AppendHistory(strings.ReplaceAll(code, "\n", " "))
	}
}

func evalLine(code string) {
	reg := kslang.NewSourceRegistry()
	id := reg.Add(kslang.NewStringSource(code))

	stmts, lexErrs, perr := kslang.ParseSource(reg, id)
	if len(lexErrs) > 0 {
		fmt.Fprintln(os.Stderr, kslang.FormatLexErrors(reg, lexErrs))
	}
	if perr != nil {
		fmt.Fprintln(os.Stderr, kslang.WrapError(perr, reg).Error())
		return
	}

	for _, e := range kslang.NewAnalyzer(reg).Analyze(stmts) {
		fmt.Fprintln(os.Stderr, kslang.WrapError(e, reg).Error())
	}
	fmt.Print(kslang.DumpProgram(reg, stmts))
}

// readByParseProbe keeps prompting while the accumulated input still parses
// as incomplete (ends mid-construct); any other outcome hands the input to
// the caller as-is.
func readByParseProbe(ln *liner.State, prompt, cont string) (string, bool) {
	var b strings.Builder

	for {
		var line string
		var err error
		if b.Len() == 0 {
			line, err = ln.Prompt(prompt)
		} else {
			line, err = ln.Prompt(cont)
		}
		if errors.Is(err, io.EOF) {
			return "", false
		}
		if err != nil {
			return "", true
		}

		if b.Len() > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(line)

		src := b.String()
		reg := kslang.NewSourceRegistry()
		id := reg.Add(kslang.NewStringSource(src))
		_, _, perr := kslang.ParseSource(reg, id)
		if perr != nil && kslang.IsIncomplete(perr) {
			continue
		}
		return src, true
	}
}
