package cmd

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	kslang "github.com/Sun-in-Splendour/ksproject"
)

const appName = "ksc"

var (
	cfgFile string
	verbose bool

	flagInput  string
	flagOutput string
	flagFormat string
)

var rootCmd = &cobra.Command{
	Use:     appName,
	Short:   "Compiler front end for the ks language",
	Version: fmt.Sprintf("%s (built %s)", kslang.Version, kslang.BuildDate),
	Long: `ksc drives the ks language front end: lexing, parsing and
lexical-scope checking, with token streams and syntax trees printable
as text or JSON.`,
	SilenceUsage:  true,
	SilenceErrors: false,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default ./ksc.yaml, then ~/.ksc.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().StringVarP(&flagInput, "input", "i", "", "source input: <file> | <string> | stdin (default)")
	rootCmd.PersistentFlags().StringVarP(&flagOutput, "output", "o", "", "output: <file> | stderr | stdout (default)")
	rootCmd.PersistentFlags().StringVarP(&flagFormat, "format", "f", "", "output format: text | json")
}

// Config holds the optional defaults file. Flags always win over it.
type Config struct {
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

func loadConfig() Config {
	cfg := Config{Format: "text", Output: "stdout"}

	path := cfgFile
	if path == "" {
		if _, err := os.Stat("ksc.yaml"); err == nil {
			path = "ksc.yaml"
		} else if home, err := os.UserHomeDir(); err == nil {
			p := filepath.Join(home, ".ksc.yaml")
			if _, err := os.Stat(p); err == nil {
				path = p
			}
		}
	}
	if path == "" {
		return cfg
	}

	data, err := os.ReadFile(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: cannot read config %s: %v\n", appName, path, err)
		return cfg
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		fmt.Fprintf(os.Stderr, "%s: bad config %s: %v\n", appName, path, err)
	}
	if cfg.Format == "" {
		cfg.Format = "text"
	}
	if cfg.Output == "" {
		cfg.Output = "stdout"
	}
	return cfg
}

// format resolves the output format from the flag, then the config file.
func format() (string, error) {
	f := flagFormat
	if f == "" {
		f = loadConfig().Format
	}
	switch f {
	case "text", "json":
		return f, nil
	}
	return "", fmt.Errorf("invalid format %q (want text or json)", f)
}

// readInput loads the source named by -i: "" or "stdin" reads standard
// input, an existing path reads that file, anything else is taken as a
// source literal.
func readInput() (kslang.Source, error) {
	switch {
	case flagInput == "" || flagInput == "stdin":
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return kslang.Source{}, fmt.Errorf("read stdin: %w", err)
		}
		return kslang.NewStdinSource(string(data)), nil
	default:
		if _, err := os.Stat(flagInput); err == nil {
			data, err := os.ReadFile(flagInput)
			if err != nil {
				return kslang.Source{}, fmt.Errorf("read %s: %w", flagInput, err)
			}
			return kslang.NewFileSource(flagInput, string(data)), nil
		}
		return kslang.NewStringSource(flagInput), nil
	}
}

// openOutput resolves -o (falling back to the config default) into a writer
// and a close func.
func openOutput() (io.Writer, func() error, error) {
	out := flagOutput
	if out == "" {
		out = loadConfig().Output
	}
	switch out {
	case "", "stdout":
		return os.Stdout, func() error { return nil }, nil
	case "stderr":
		return os.Stderr, func() error { return nil }, nil
	}
	f, err := os.Create(out)
	if err != nil {
		return nil, nil, fmt.Errorf("create %s: %w", out, err)
	}
	return f, f.Close, nil
}
