package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/goccy/go-json"
	"github.com/spf13/pflag"

	"github.com/formgraph/formgraph/pkg/config"
	"github.com/formgraph/formgraph/pkg/editor"
	"github.com/formgraph/formgraph/pkg/importer"
	"github.com/formgraph/formgraph/pkg/logging"
	"github.com/formgraph/formgraph/pkg/watcher"
	"github.com/formgraph/formgraph/pkg/web"
)

func main() {
	f := pflag.NewFlagSet("formgraph", pflag.ExitOnError)
	f.String("schema", "", "Path to a JSON Schema document to import on startup")
	f.Bool("serve", false, "Start the editor API server instead of printing")
	f.Int("port", 8080, "Port for the API server (only used with --serve)")
	f.Bool("watch", false, "Re-import the schema file when it changes on disk")
	f.Int("debounce", 150, "Regeneration quiet period in milliseconds")
	f.Int("maxwait", 1000, "Regeneration max wait in milliseconds")
	f.Bool("jsonlogs", false, "Emit JSON logs instead of the compact console format")
	f.String("verbosity", "", "Log level (debug, info, warn, error)")
	f.Bool("pretty", true, "Indent printed documents")
	if err := f.Parse(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	cfg, err := config.Load(f)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if cfg.Schema == "" && f.NArg() > 0 {
		cfg.Schema = f.Arg(0)
	}

	setupLogging(cfg)

	if cfg.Serve {
		runServer(cfg)
	} else {
		runPrint(cfg)
	}
}

func setupLogging(cfg *config.Config) {
	level := slog.LevelInfo
	switch cfg.Verbosity {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	if cfg.JSONLogs {
		logging.SetJSONOutput(level)
	} else {
		logging.SetLevel(level)
	}
}

func newSession(cfg *config.Config, onUpdate func(editor.Documents)) *editor.Session {
	return editor.NewSession(editor.Options{
		QuietPeriod: time.Duration(cfg.Debounce) * time.Millisecond,
		MaxWait:     time.Duration(cfg.MaxWait) * time.Millisecond,
		OnUpdate:    onUpdate,
	})
}

// importSchemaFile loads the schema document at path into the session.
func importSchemaFile(session *editor.Session, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read schema file: %w", err)
	}

	_, skipped, err := session.Import(data, importer.ModeReplace)
	if err != nil {
		return fmt.Errorf("failed to import %s: %w", path, err)
	}
	if len(skipped) > 0 {
		logging.Warn("import skipped unsupported schema parts", "path", path, "count", len(skipped))
	}
	return nil
}

// runPrint imports the schema once, validates it, and prints the regenerated
// documents to stdout.
func runPrint(cfg *config.Config) {
	session := newSession(cfg, nil)

	if cfg.Schema != "" {
		if err := importSchemaFile(session, cfg.Schema); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	}

	report := session.Validate()
	for _, issue := range report.Issues {
		logging.Warn("validation issue", "code", issue.Code, "node", issue.NodeID, "message", issue.Message)
	}
	for _, cycle := range report.Cycles {
		logging.Error("cycle detected", "nodes", cycle.NodeIDs)
	}
	if len(report.Cycles) > 0 {
		os.Exit(1)
	}

	docs, err := session.Compile()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	out := map[string]any{
		"schema":   docs.Schema,
		"uiSchema": docs.UISchema,
	}

	enc := json.NewEncoder(os.Stdout)
	if cfg.PrettyPrint {
		enc.SetIndent("", "  ")
	}
	if err := enc.Encode(out); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// runServer starts the editor API, optionally watching the schema file for
// external changes.
func runServer(cfg *config.Config) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var server *web.Server
	session := newSession(cfg, func(docs editor.Documents) {
		server.PublishDocuments(docs)
	})
	server = web.NewServer(session)
	session.Start(ctx)

	if cfg.Schema != "" {
		if err := importSchemaFile(session, cfg.Schema); err != nil {
			logging.Error("initial import failed", "error", err)
		}

		if cfg.Watch {
			fw, err := watcher.NewFileWatcher(cfg.Schema)
			if err != nil {
				logging.Fatal("failed to create file watcher", "error", err)
			}
			if err := fw.Start(ctx); err != nil {
				logging.Fatal("failed to start file watcher", "error", err)
			}

			go func() {
				for change := range fw.Events() {
					logging.Info("schema file changed, re-importing", "path", change.Path)
					if err := importSchemaFile(session, change.Path); err != nil {
						logging.Error("re-import failed", "error", err)
					}
				}
			}()
		}
	}

	if err := server.Start(cfg.Port); err != nil {
		logging.Fatal("server failed", "error", err)
	}
}
