// Command domtailor is the page customization engine.
//
// Usage:
//
//	domtailor serve -config domtailor.yaml        # HTTP API + optional MCP over QUIC
//	domtailor analyze page.html                   # one-shot analysis + suggestions
//	domtailor apply page.html -kind hide -target ".ads"
//	domtailor apply https://example.com -template tpl_x -out clean.html
//	domtailor template list
//	domtailor template import reader.json
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"
	_ "modernc.org/sqlite"

	"github.com/hazyhaar/domtailor/docrt"
	"github.com/hazyhaar/domtailor/roddoc"
	"github.com/hazyhaar/domtailor/tailor"
)

func main() {
	cmd := &cli.Command{
		Name:  "domtailor",
		Usage: "attach to web pages, restructure them, and replay the changes as templates",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "path to domtailor.yaml config file",
				Sources: cli.EnvVars("DOMTAILOR_CONFIG"),
			},
			&cli.StringFlag{
				Name:    "db",
				Usage:   "path to the SQLite database",
				Sources: cli.EnvVars("DOMTAILOR_DB"),
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "log level: debug, info, warn, error",
				Value:   "info",
				Sources: cli.EnvVars("LOG_LEVEL"),
			},
		},
		Commands: []*cli.Command{
			serveCommand(),
			analyzeCommand(),
			applyCommand(),
			templateCommand(),
		},
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := cmd.Run(ctx, os.Args); err != nil {
		slog.Error("domtailor: fatal", "error", err)
		os.Exit(1)
	}
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}

// resolveConfig builds the engine config from -config, falling back to flag
// values. One-shot commands get a default database path so they work without
// any setup.
func resolveConfig(cmd *cli.Command) (*tailor.Config, error) {
	var cfg *tailor.Config
	if path := cmd.String("config"); path != "" {
		loaded, err := tailor.LoadConfigFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: %w", err)
		}
		cfg = loaded
	} else {
		cfg = &tailor.Config{}
	}
	if db := cmd.String("db"); db != "" {
		cfg.DBPath = db
	}
	return cfg, nil
}

// attachDocument binds a session to the argument: a URL gets a live browser
// page, anything else is read as an HTML file ("-" for stdin). The returned
// cleanup shuts the browser down when one was launched.
func attachDocument(ctx context.Context, e *tailor.Engine, logger *slog.Logger, arg, pageURL string, browser tailor.BrowserConfig) (*tailor.Session, func(), error) {
	if strings.HasPrefix(arg, "http://") || strings.HasPrefix(arg, "https://") {
		mgr := roddoc.NewManager(roddoc.Config{
			RemoteURL:  browser.RemoteURL,
			Headless:   browser.Headless,
			Stealth:    browser.Stealth,
			NavTimeout: browser.NavTimeout,
			Logger:     logger,
		})
		if err := mgr.Start(ctx); err != nil {
			return nil, nil, err
		}
		e.SetOpener(func(ctx context.Context, url string) (docrt.Runtime, error) {
			return mgr.Open(ctx, url)
		})
		s, err := e.AttachURL(ctx, arg)
		if err != nil {
			mgr.Close()
			return nil, nil, err
		}
		return s, func() { mgr.Close() }, nil
	}

	var data []byte
	var err error
	if arg == "-" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(arg)
	}
	if err != nil {
		return nil, nil, err
	}
	if pageURL == "" && arg != "-" {
		if abs, absErr := filepath.Abs(arg); absErr == nil {
			pageURL = "file://" + abs
		}
	}
	s, err := e.AttachHTML(ctx, string(data), pageURL)
	if err != nil {
		return nil, nil, err
	}
	return s, func() {}, nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// --- analyze ---

func analyzeCommand() *cli.Command {
	return &cli.Command{
		Name:      "analyze",
		Usage:     "analyze a page and print its structure and suggestions",
		ArgsUsage: "<url|file|->",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "url", Usage: "URL to associate with a file input"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			arg := cmd.Args().First()
			if arg == "" {
				return fmt.Errorf("usage: domtailor analyze <url|file|->")
			}
			logger := newLogger(cmd.String("log-level"))

			cfg, err := resolveConfig(cmd)
			if err != nil {
				return err
			}
			e, err := tailor.New(cfg, logger)
			if err != nil {
				return fmt.Errorf("init: %w", err)
			}
			defer e.Close()

			s, cleanup, err := attachDocument(ctx, e, logger, arg, cmd.String("url"), cfg.Browser)
			if err != nil {
				return fmt.Errorf("attach: %w", err)
			}
			defer cleanup()

			analysis, err := s.Analyze(ctx)
			if err != nil {
				return fmt.Errorf("analyze: %w", err)
			}
			suggestions, err := e.Suggest(ctx, s.ID())
			if err != nil {
				return fmt.Errorf("suggest: %w", err)
			}
			return printJSON(map[string]any{
				"analysis":    analysis,
				"suggestions": suggestions,
			})
		},
	}
}

// --- apply ---

func applyCommand() *cli.Command {
	return &cli.Command{
		Name:      "apply",
		Usage:     "apply a rule, a smart restructure, or a stored template and print the result",
		ArgsUsage: "<url|file|->",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "kind", Usage: "rule kind: hide, remove, restyle, replace, move, highlight"},
			&cli.StringFlag{Name: "target", Usage: "CSS selector the rule applies to"},
			&cli.StringSliceFlag{Name: "style", Usage: "style property as prop=value (repeatable)"},
			&cli.StringFlag{Name: "fragment", Usage: "replacement HTML for replace rules"},
			&cli.StringFlag{Name: "dest", Usage: "destination selector for move rules"},
			&cli.StringFlag{Name: "position", Usage: "move position: before, after, prepend, append"},
			&cli.StringFlag{Name: "template", Usage: "stored template id to replay instead of a rule"},
			&cli.StringFlag{Name: "restructure", Usage: "smart restructure kind: simplify, clean, focus, readability, mobile"},
			&cli.StringFlag{Name: "save", Usage: "save the applied rules as a template with this name"},
			&cli.StringFlag{Name: "url-pattern", Usage: "URL glob for the saved template (default *)"},
			&cli.StringFlag{Name: "url", Usage: "URL to associate with a file input"},
			&cli.StringFlag{Name: "out", Value: "-", Usage: "output file for the transformed HTML (- for stdout)"},
		},
		Action: runApply,
	}
}

func runApply(ctx context.Context, cmd *cli.Command) error {
	arg := cmd.Args().First()
	if arg == "" {
		return fmt.Errorf("usage: domtailor apply <url|file|-> [flags]")
	}
	logger := newLogger(cmd.String("log-level"))

	cfg, err := resolveConfig(cmd)
	if err != nil {
		return err
	}
	e, err := tailor.New(cfg, logger)
	if err != nil {
		return fmt.Errorf("init: %w", err)
	}
	defer e.Close()

	s, cleanup, err := attachDocument(ctx, e, logger, arg, cmd.String("url"), cfg.Browser)
	if err != nil {
		return fmt.Errorf("attach: %w", err)
	}
	defer cleanup()

	if id := cmd.String("template"); id != "" {
		app, err := e.ApplyTemplate(ctx, s.ID(), id)
		if err != nil {
			return fmt.Errorf("apply template: %w", err)
		}
		logger.Info("template applied", "template_id", id, "nodes", app.Total)
	}

	if kind := cmd.String("restructure"); kind != "" {
		count, err := e.SmartRestructure(ctx, s.ID(), tailor.RestructureKind(kind))
		if err != nil {
			return fmt.Errorf("restructure: %w", err)
		}
		logger.Info("restructure applied", "kind", kind, "nodes", count)
	}

	if kind := cmd.String("kind"); kind != "" {
		styles, err := parseStyles(cmd.StringSlice("style"))
		if err != nil {
			return err
		}
		rule, err := tailor.NewRule(tailor.RuleKind(kind), cmd.String("target"), styles,
			cmd.String("fragment"), cmd.String("dest"), cmd.String("position"))
		if err != nil {
			return err
		}
		count, err := e.Apply(ctx, s.ID(), rule)
		if err != nil {
			return fmt.Errorf("apply: %w", err)
		}
		logger.Info("rule applied", "rule_id", rule.ID, "kind", kind, "nodes", count)
	}

	if name := cmd.String("save"); name != "" {
		tpl, err := e.SaveTemplate(ctx, s.ID(), name, cmd.String("url-pattern"))
		if err != nil {
			return fmt.Errorf("save template: %w", err)
		}
		logger.Info("template saved", "template_id", tpl.ID, "rules", len(tpl.Rules))
	}

	html, err := s.HTML(ctx, "")
	if err != nil {
		return fmt.Errorf("render: %w", err)
	}
	if out := cmd.String("out"); out != "" && out != "-" {
		return os.WriteFile(out, []byte(html), 0o644)
	}
	_, err = fmt.Println(html)
	return err
}

// parseStyles turns repeated prop=value flags into a style map.
func parseStyles(pairs []string) (map[string]string, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	styles := make(map[string]string, len(pairs))
	for _, p := range pairs {
		k, v, ok := strings.Cut(p, "=")
		if !ok || k == "" {
			return nil, fmt.Errorf("style %q: want prop=value", p)
		}
		styles[k] = v
	}
	return styles, nil
}

// --- template ---

func templateCommand() *cli.Command {
	return &cli.Command{
		Name:  "template",
		Usage: "manage stored templates",
		Commands: []*cli.Command{
			{
				Name:  "list",
				Usage: "list stored templates",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					e, err := oneShotEngine(cmd)
					if err != nil {
						return err
					}
					defer e.Close()
					templates, err := e.ListTemplates(ctx)
					if err != nil {
						return err
					}
					return printJSON(templates)
				},
			},
			{
				Name:      "show",
				Usage:     "print one template with its rules",
				ArgsUsage: "<template-id>",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					id := cmd.Args().First()
					if id == "" {
						return fmt.Errorf("usage: domtailor template show <template-id>")
					}
					e, err := oneShotEngine(cmd)
					if err != nil {
						return err
					}
					defer e.Close()
					tpl, err := e.GetTemplate(ctx, id)
					if err != nil {
						return err
					}
					return printJSON(tpl)
				},
			},
			{
				Name:      "delete",
				Usage:     "delete a template",
				ArgsUsage: "<template-id>",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					id := cmd.Args().First()
					if id == "" {
						return fmt.Errorf("usage: domtailor template delete <template-id>")
					}
					e, err := oneShotEngine(cmd)
					if err != nil {
						return err
					}
					defer e.Close()
					return e.DeleteTemplate(ctx, id)
				},
			},
			{
				Name:      "default",
				Usage:     "mark a template as the default for its URL pattern",
				ArgsUsage: "<template-id>",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					id := cmd.Args().First()
					if id == "" {
						return fmt.Errorf("usage: domtailor template default <template-id>")
					}
					e, err := oneShotEngine(cmd)
					if err != nil {
						return err
					}
					defer e.Close()
					return e.SetDefaultTemplate(ctx, id)
				},
			},
			{
				Name:      "import",
				Usage:     "import a template interchange file",
				ArgsUsage: "<file>",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					path := cmd.Args().First()
					if path == "" {
						return fmt.Errorf("usage: domtailor template import <file>")
					}
					data, err := os.ReadFile(path)
					if err != nil {
						return err
					}
					e, err := oneShotEngine(cmd)
					if err != nil {
						return err
					}
					defer e.Close()
					tpl, err := e.ImportTemplate(ctx, data)
					if err != nil {
						return err
					}
					return printJSON(tpl)
				},
			},
		},
	}
}

func oneShotEngine(cmd *cli.Command) (*tailor.Engine, error) {
	cfg, err := resolveConfig(cmd)
	if err != nil {
		return nil, err
	}
	e, err := tailor.New(cfg, newLogger(cmd.String("log-level")))
	if err != nil {
		return nil, fmt.Errorf("init: %w", err)
	}
	return e, nil
}
