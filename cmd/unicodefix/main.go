// Command unicodefix repairs PDF files whose embedded fonts lack usable
// Unicode mappings. Glyph outlines are rendered and recognized, and rebuilt
// ToUnicode tables are written into a copy of the document.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/wudi/unicodefix/observability"
	"github.com/wudi/unicodefix/ocr"
	"github.com/wudi/unicodefix/repair"

	_ "github.com/wudi/unicodefix/ocr/tesseract"
)

const (
	exitOK    = 0
	exitUsage = 1
	exitFatal = 2
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	if len(args) == 0 {
		usage(os.Stderr)
		return exitUsage
	}
	switch args[0] {
	case "fix-missing-unicode":
		return runFix(args[1:])
	case "config":
		return runConfig(args[1:])
	case "-h", "--help", "help":
		usage(os.Stdout)
		return exitOK
	default:
		fmt.Fprintf(os.Stderr, "unicodefix: unknown command %q\n", args[0])
		usage(os.Stderr)
		return exitUsage
	}
}

func usage(w *os.File) {
	fmt.Fprintf(w, `Usage: unicodefix <command> [flags]

Commands:
  fix-missing-unicode   Repair missing Unicode mappings in a PDF
  config                Export the default configuration as JSON

Run "unicodefix <command> -h" for command flags.
`)
}

func runFix(args []string) int {
	cfg := repair.DefaultConfig()

	fs := flag.NewFlagSet("fix-missing-unicode", flag.ContinueOnError)
	input := fs.String("i", "", "Input PDF path (required)")
	fs.StringVar(input, "input", "", "Input PDF path (required)")
	output := fs.String("o", "", "Output PDF path (required)")
	fs.StringVar(output, "output", "", "Output PDF path (required)")
	engine := fs.String("engine", cfg.Engine,
		fmt.Sprintf("Recognition engine: %s, %s or %s", ocr.EngineTesseract, ocr.EngineEasy, ocr.EngineRapid))
	defaultChar := fs.String("default_char", cfg.DefaultChar,
		"Character assigned to glyphs recognition cannot settle")
	workers := fs.Int("workers", cfg.Workers, "Concurrent glyph recognitions")
	langs := fs.String("lang", "", "Comma-separated language hints for the engine (e.g. eng,deu)")
	configPath := fs.String("config", "", "Optional config JSON, flags override its values")
	verbose := fs.Bool("v", false, "Verbose logging")
	if err := fs.Parse(args); err != nil {
		return exitUsage
	}

	if *configPath != "" {
		f, err := os.Open(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "unicodefix: %v\n", err)
			return exitUsage
		}
		cfg, err = repair.ImportConfig(f)
		f.Close()
		if err != nil {
			fmt.Fprintf(os.Stderr, "unicodefix: %v\n", err)
			return exitUsage
		}
	}
	// Flags set explicitly on the command line override imported values.
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "engine":
			cfg.Engine = *engine
		case "default_char":
			cfg.DefaultChar = *defaultChar
		case "workers":
			cfg.Workers = *workers
		case "lang":
			cfg.Languages = splitLangs(*langs)
		}
	})
	cfg.InputPath = *input
	cfg.OutputPath = *output

	if err := checkPaths(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "unicodefix: %v\n", err)
		fs.Usage()
		return exitUsage
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "unicodefix: %v\n", err)
		return exitUsage
	}

	level := observability.LevelInfo
	if *verbose {
		level = observability.LevelDebug
	}
	log := observability.NewWriterLogger(os.Stderr, level)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	stats, err := repair.Run(ctx, cfg, log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "unicodefix: %v\n", err)
		return exitFatal
	}
	fmt.Printf("repaired %s: %d fonts, %d glyphs (%d kept, %d recognized, %d fallback), %d tables rebuilt\n",
		cfg.OutputPath, stats.Fonts, stats.Glyphs, stats.Kept, stats.Recognized, stats.Fallback, stats.Patched)
	return exitOK
}

func splitLangs(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func checkPaths(cfg repair.Config) error {
	if cfg.InputPath == "" || cfg.OutputPath == "" {
		return fmt.Errorf("both -i and -o are required")
	}
	for _, p := range []string{cfg.InputPath, cfg.OutputPath} {
		if !strings.HasSuffix(strings.ToLower(p), ".pdf") {
			return fmt.Errorf("%s: not a .pdf path", p)
		}
	}
	return nil
}

func runConfig(args []string) int {
	fs := flag.NewFlagSet("config", flag.ContinueOnError)
	output := fs.String("o", "", "Write config JSON here instead of stdout")
	fs.StringVar(output, "output", "", "Write config JSON here instead of stdout")
	if err := fs.Parse(args); err != nil {
		return exitUsage
	}

	cfg := repair.DefaultConfig()
	if *output == "" {
		if err := cfg.Export(os.Stdout); err != nil {
			fmt.Fprintf(os.Stderr, "unicodefix: %v\n", err)
			return exitFatal
		}
		return exitOK
	}
	f, err := os.Create(*output)
	if err != nil {
		fmt.Fprintf(os.Stderr, "unicodefix: %v\n", err)
		return exitFatal
	}
	defer f.Close()
	if err := cfg.Export(f); err != nil {
		fmt.Fprintf(os.Stderr, "unicodefix: %v\n", err)
		return exitFatal
	}
	return exitOK
}
