// Package main is the openextract CLI entry point.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/openextract/openextract/internal/cli"
	"github.com/openextract/openextract/internal/config"
	"github.com/openextract/openextract/internal/engine"
	"github.com/openextract/openextract/internal/export"
	"github.com/openextract/openextract/internal/extract"
	"github.com/openextract/openextract/internal/registry"
	"github.com/openextract/openextract/internal/server"
	"github.com/openextract/openextract/internal/store"
	"github.com/openextract/openextract/internal/template"
	"github.com/openextract/openextract/internal/watcher"
	"github.com/openextract/openextract/pkg/utils"
)

var version = "dev"

const defaultConfigPath = "/usr/local/etc/openextract/config.yaml"

// loadConfig loads config from path. When path is the default, it first
// looks for config.yaml in the current directory (for development); if that
// exists it is used. Returns the config and the path actually loaded.
func loadConfig(path string) (*config.Config, string, error) {
	if path == defaultConfigPath {
		if cwd, cwdErr := os.Getwd(); cwdErr == nil {
			fallback := filepath.Join(cwd, "config.yaml")
			if _, statErr := os.Stat(fallback); statErr == nil {
				cfg, loadErr := config.Load(fallback)
				if loadErr != nil {
					return nil, "", loadErr
				}
				return cfg, fallback, nil
			}
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, "", err
	}
	return cfg, path, nil
}

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	command := os.Args[1]
	switch command {
	case "server":
		runServer()
	case "extract":
		runExtract()
	case "templates":
		runTemplates()
	case "validate":
		runValidate()
	case "version", "--version", "-v":
		fmt.Printf("openextract version %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Print(`openextract - template-driven document data extraction

Usage:
  openextract server    [-config path] [-debug]
  openextract extract   -template <id> [-output text|json|csv|xlsx] [-out path] <file>...
  openextract templates [-q query] [-show id] [-type document_type]
  openextract validate  <template.json>...
  openextract version

Run 'openextract <command> -h' for command flags.
`)
}

// newRegistry loads the template registry for CLI commands, honoring an
// explicit -templates override before falling back to the config file.
func newRegistry(templatesDir, configPath string, logger *zap.Logger) (*registry.Registry, error) {
	dir := templatesDir
	if dir == "" {
		cfg, _, err := loadConfig(configPath)
		if err != nil {
			return nil, fmt.Errorf("load config: %w", err)
		}
		dir = cfg.Templates.Directory
	}
	reg := registry.New(dir, logger)
	if err := reg.Load(); err != nil {
		return nil, err
	}
	return reg, nil
}

func runServer() {
	fs := flag.NewFlagSet("server", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging (template reloads, file events, etc.)")
	_ = fs.Parse(os.Args[2:])

	cfg, resolvedConfigPath, err := loadConfig(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	debugMode := cfg.Debug || *debug
	logger, err := utils.NewLogger(debugMode)
	if err != nil {
		fmt.Printf("Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("config loaded",
		zap.String("config_path", resolvedConfigPath),
		zap.String("templates_dir", cfg.Templates.Directory),
		zap.Bool("debug", debugMode),
	)

	reg := registry.New(cfg.Templates.Directory, logger)
	if err := reg.Load(); err != nil {
		logger.Fatal("Failed to load templates", zap.Error(err))
	}

	st, err := store.NewSQLiteStore(cfg.Storage.DatabasePath)
	if err != nil {
		logger.Fatal("Failed to open run store", zap.Error(err))
	}
	defer st.Close()

	eng := engine.NewEngine(engine.WithWhitespaceCollapse(cfg.Extract.CollapseWhitespaceOrDefault()))

	watchCtx, watchCancel := context.WithCancel(context.Background())
	defer watchCancel()
	if cfg.Templates.WatchOrDefault() {
		watchSvc := watcher.New(cfg.Templates.Directory, func() {
			if err := reg.Reload(); err != nil {
				logger.Warn("template reload failed", zap.Error(err))
			}
		}, logger)
		if err := watchSvc.Start(watchCtx); err != nil {
			logger.Fatal("Failed to start template watcher", zap.Error(err))
		}
		defer watchSvc.Stop()
	}

	srv := server.NewServer(eng, reg, extract.NewExtractor(), st, &cfg.Server, logger)
	go func() {
		if err := srv.Start(); err != nil {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down...")
	watchCancel()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Stop(ctx)
}

func runExtract() {
	fs := flag.NewFlagSet("extract", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	templatesDir := fs.String("templates", "", "templates directory (overrides config)")
	templateID := fs.String("template", "", "template id to extract with (required)")
	output := fs.String("output", "text", "output format: text, json, csv, or xlsx")
	outPath := fs.String("out", "", "output file (default stdout; required for xlsx)")
	collapse := fs.Bool("collapse-whitespace", true, "collapse whitespace runs before matching")
	_ = fs.Parse(os.Args[2:])

	if *templateID == "" || fs.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "Usage: openextract extract -template <id> [flags] <file>...")
		fs.PrintDefaults()
		os.Exit(1)
	}
	if *output == "xlsx" && *outPath == "" {
		fmt.Fprintln(os.Stderr, "xlsx output requires -out")
		os.Exit(1)
	}

	logger := zap.NewNop()
	reg, err := newRegistry(*templatesDir, *configPath, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load templates: %v\n", err)
		os.Exit(1)
	}
	t, err := reg.Get(*templateID)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}

	ex := extract.NewExtractor()
	eng := engine.NewEngine(engine.WithWhitespaceCollapse(*collapse))

	docs := make([]engine.Document, 0, fs.NArg())
	for _, path := range fs.Args() {
		pages, err := ex.Pages(path)
		if err != nil {
			// A file that cannot be converted is one failed batch item,
			// not a reason to abort the remaining files.
			docs = append(docs, engine.Document{Source: filepath.Base(path)})
			fmt.Fprintf(os.Stderr, "Error reading %s: %v\n", path, err)
			continue
		}
		docs = append(docs, engine.Document{Source: filepath.Base(path), Pages: pages})
	}
	batch := eng.ExtractBatch(docs, t)

	items := make([]cli.Item, len(batch))
	anyFailed := false
	for i, b := range batch {
		items[i] = cli.Item{Source: b.Source, Result: b.Result}
		if b.Err != nil {
			items[i].Error = b.Err.Error()
			anyFailed = true
			continue
		}
		items[i].Report = engine.Validate(b.Result, t)
	}

	out := os.Stdout
	if *outPath != "" && *output != "xlsx" {
		f, err := os.Create(*outPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to create output file: %v\n", err)
			os.Exit(1)
		}
		defer f.Close()
		out = f
	}

	switch *output {
	case "xlsx":
		results := make([]*engine.Result, 0, len(batch))
		for _, b := range batch {
			if b.Result != nil {
				results = append(results, b.Result)
			}
		}
		data, err := export.XLSX(t, results)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Export failed: %v\n", err)
			os.Exit(1)
		}
		if err := os.WriteFile(*outPath, data, 0644); err != nil {
			fmt.Fprintf(os.Stderr, "Write failed: %v\n", err)
			os.Exit(1)
		}
	case "text", "json", "csv":
		if err := cli.WriteExtraction(out, t, items, cli.OutputFormat(*output)); err != nil {
			fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
			os.Exit(1)
		}
	default:
		fmt.Fprintf(os.Stderr, "Unknown output format %q; use text, json, csv, or xlsx\n", *output)
		os.Exit(1)
	}
	if anyFailed {
		os.Exit(1)
	}
}

func runTemplates() {
	fs := flag.NewFlagSet("templates", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	templatesDir := fs.String("templates", "", "templates directory (overrides config)")
	query := fs.String("q", "", "full-text search query")
	show := fs.String("show", "", "print one template definition as JSON")
	docType := fs.String("type", "", "filter by document_type")
	_ = fs.Parse(os.Args[2:])

	logger := zap.NewNop()
	reg, err := newRegistry(*templatesDir, *configPath, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load templates: %v\n", err)
		os.Exit(1)
	}

	if *show != "" {
		t, err := reg.Get(*show)
		if err != nil {
			fmt.Fprintf(os.Stderr, "%v\n", err)
			os.Exit(1)
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(t); err != nil {
			fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
			os.Exit(1)
		}
		return
	}

	var list []*template.Template
	switch {
	case *query != "":
		list, err = reg.Search(*query, 25)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Search failed: %v\n", err)
			os.Exit(1)
		}
	case *docType != "":
		list = reg.ListByDocumentType(*docType)
	default:
		list = reg.List()
	}
	cli.WriteTemplateList(os.Stdout, list)
}

func runValidate() {
	fs := flag.NewFlagSet("validate", flag.ExitOnError)
	_ = fs.Parse(os.Args[2:])
	if fs.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "Usage: openextract validate <template.json>...")
		os.Exit(1)
	}
	failed := false
	for _, path := range fs.Args() {
		t, err := template.ParseFile(path)
		if err != nil {
			failed = true
			fmt.Printf("FAIL %s\n  %v\n", path, err)
			continue
		}
		fmt.Printf("OK   %s (%s)\n", path, t.Summary())
	}
	if failed {
		os.Exit(1)
	}
}
