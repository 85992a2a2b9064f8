package main

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/urfave/cli/v3"

	"github.com/hazyhaar/domtailor/connectivity"
	"github.com/hazyhaar/domtailor/dbopen"
	"github.com/hazyhaar/domtailor/docrt"
	"github.com/hazyhaar/domtailor/mcpquic"
	"github.com/hazyhaar/domtailor/roddoc"
	"github.com/hazyhaar/domtailor/shield"
	"github.com/hazyhaar/domtailor/tailor"
	"github.com/hazyhaar/domtailor/trace"
)

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "run the HTTP API, the template importer and the MCP endpoint",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "port",
				Usage:   "HTTP listen port",
				Value:   "8086",
				Sources: cli.EnvVars("PORT"),
			},
			&cli.StringFlag{
				Name:    "import-dir",
				Usage:   "directory watched for template interchange files",
				Sources: cli.EnvVars("IMPORT_DIR"),
			},
			&cli.StringFlag{
				Name:    "browser-url",
				Usage:   "DevTools websocket of an already-running browser",
				Sources: cli.EnvVars("BROWSER_URL"),
			},
			&cli.BoolFlag{
				Name:  "headless",
				Usage: "run the managed browser headless",
				Value: true,
			},
			&cli.BoolFlag{
				Name:  "no-browser",
				Usage: "serve without a browser; only html attachments work",
			},
			&cli.StringFlag{
				Name:    "mcp-transport",
				Usage:   "MCP transport to expose (quic or none)",
				Value:   "quic",
				Sources: cli.EnvVars("MCP_TRANSPORT"),
			},
			&cli.StringFlag{
				Name:    "mcp-quic-addr",
				Usage:   "UDP listen address for MCP over QUIC",
				Value:   ":9444",
				Sources: cli.EnvVars("MCP_QUIC_ADDR"),
			},
			&cli.StringFlag{
				Name:    "tls-cert",
				Usage:   "TLS certificate for the QUIC endpoint (self-signed when empty)",
				Sources: cli.EnvVars("TLS_CERT"),
			},
			&cli.StringFlag{
				Name:    "tls-key",
				Usage:   "TLS key for the QUIC endpoint",
				Sources: cli.EnvVars("TLS_KEY"),
			},
			&cli.DurationFlag{
				Name:  "routes-poll",
				Usage: "poll interval for connectivity route changes",
				Value: 2 * time.Second,
			},
			&cli.StringFlag{
				Name:    "trace-db",
				Usage:   "SQLite file for SQL traces (tracing off when empty)",
				Sources: cli.EnvVars("TRACE_DB"),
			},
		},
		Action: runServe,
	}
}

func runServe(ctx context.Context, cmd *cli.Command) error {
	logger := newLogger(cmd.String("log-level"))
	slog.SetDefault(logger)

	cfg, err := resolveConfig(cmd)
	if err != nil {
		return err
	}
	if cmd.IsSet("import-dir") {
		cfg.ImportDir = cmd.String("import-dir")
	}
	if cmd.IsSet("browser-url") {
		cfg.Browser.RemoteURL = cmd.String("browser-url")
	}
	if cmd.IsSet("headless") {
		headless := cmd.Bool("headless")
		cfg.Browser.Headless = &headless
	}

	// Trace DB opens with the raw driver; the tracing driver would trace its
	// own writes. The engine store switches to "sqlite-trace" below.
	var traceStore *trace.Store
	if path := cmd.String("trace-db"); path != "" {
		traceDB, err := dbopen.Open(path, dbopen.WithMkdirAll())
		if err != nil {
			return fmt.Errorf("trace db: %w", err)
		}
		defer traceDB.Close()
		traceStore = trace.NewStore(traceDB)
		if err := traceStore.Init(); err != nil {
			return fmt.Errorf("trace init: %w", err)
		}
		trace.SetStore(traceStore)
		defer traceStore.Close()
		cfg.TraceSQL = true
	}

	e, err := tailor.New(cfg, logger)
	if err != nil {
		return fmt.Errorf("init: %w", err)
	}
	defer e.Close()

	if !cmd.Bool("no-browser") {
		mgr := roddoc.NewManager(roddoc.Config{
			RemoteURL:  cfg.Browser.RemoteURL,
			Headless:   cfg.Browser.Headless,
			Stealth:    cfg.Browser.Stealth,
			NavTimeout: cfg.Browser.NavTimeout,
			Logger:     logger,
		})
		if err := mgr.Start(ctx); err != nil {
			return fmt.Errorf("browser: %w", err)
		}
		defer mgr.Close()
		e.SetOpener(func(ctx context.Context, url string) (docrt.Runtime, error) {
			return mgr.Open(ctx, url)
		})
	}

	// Service routing: the planner and any future sidecars resolve through
	// the connectivity table, hot-reloaded as rows change.
	router := connectivity.New(connectivity.WithLogger(logger))
	router.RegisterTransport("http", connectivity.HTTPFactory())
	if err := connectivity.Init(e.Store().DB); err != nil {
		return fmt.Errorf("connectivity init: %w", err)
	}
	e.RegisterConnectivity(router)
	defer router.Close()
	go router.Watch(ctx, e.Store().DB, cmd.Duration("routes-poll"))

	if cmd.String("mcp-transport") == "quic" {
		mcpSrv := mcp.NewServer(&mcp.Implementation{Name: "domtailor", Version: "1.0.0"}, nil)
		e.RegisterMCP(mcpSrv)

		var tlsCfg *tls.Config
		if cert, key := cmd.String("tls-cert"), cmd.String("tls-key"); cert != "" && key != "" {
			tlsCfg, err = mcpquic.ServerTLSConfig(cert, key)
		} else {
			tlsCfg, err = mcpquic.SelfSignedTLSConfig()
		}
		if err != nil {
			return fmt.Errorf("mcp tls: %w", err)
		}
		ql, err := mcpquic.NewListener(cmd.String("mcp-quic-addr"), tlsCfg, mcpSrv, logger)
		if err != nil {
			return fmt.Errorf("mcp listen: %w", err)
		}
		defer ql.Close()
		go func() {
			if err := ql.Serve(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("mcp quic serve", "error", err)
			}
		}()
		logger.Info("mcp endpoint up", "transport", "quic", "addr", cmd.String("mcp-quic-addr"))
	}

	e.Start(ctx)

	srv := &http.Server{
		Addr:              ":" + cmd.String("port"),
		Handler:           apiRouter(e, traceStore),
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	go func() {
		logger.Info("http listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http serve", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown", "error", err)
	}
	logger.Info("server stopped")
	return nil
}

type sessionView struct {
	SessionID string `json:"session_id"`
	URL       string `json:"url"`
	Title     string `json:"title"`
	Mode      string `json:"mode"`
}

func viewOf(s *tailor.Session) sessionView {
	return sessionView{SessionID: s.ID(), URL: s.URL(), Title: s.Title(), Mode: string(s.Mode())}
}

func apiRouter(e *tailor.Engine, traceStore *trace.Store) http.Handler {
	r := chi.NewRouter()
	for _, mw := range shield.DefaultStack() {
		r.Use(mw)
	}

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	// Sidecars running with a RemoteStore push their SQL traces here.
	if traceStore != nil {
		r.Post("/api/internal/traces", trace.IngestHandler(traceStore))
	}

	r.Route("/api", func(r chi.Router) {
		r.Post("/sessions", func(w http.ResponseWriter, r *http.Request) {
			var req struct {
				URL  string `json:"url"`
				HTML string `json:"html"`
			}
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				writeError(w, http.StatusBadRequest, err)
				return
			}
			var s *tailor.Session
			var err error
			switch {
			case req.HTML != "":
				s, err = e.AttachHTML(r.Context(), req.HTML, req.URL)
			case req.URL != "":
				s, err = e.AttachURL(r.Context(), req.URL)
			default:
				writeError(w, http.StatusBadRequest, errors.New("url or html required"))
				return
			}
			if err != nil {
				writeError(w, domainStatus(err), err)
				return
			}
			writeJSON(w, http.StatusCreated, viewOf(s))
		})

		r.Get("/sessions", func(w http.ResponseWriter, r *http.Request) {
			sessions := e.Sessions()
			out := make([]sessionView, 0, len(sessions))
			for _, s := range sessions {
				out = append(out, viewOf(s))
			}
			writeJSON(w, http.StatusOK, out)
		})

		r.Route("/sessions/{sessionID}", func(r chi.Router) {
			r.Delete("/", func(w http.ResponseWriter, r *http.Request) {
				if err := e.Detach(r.Context(), chi.URLParam(r, "sessionID")); err != nil {
					writeError(w, domainStatus(err), err)
					return
				}
				writeJSON(w, http.StatusOK, map[string]string{"status": "detached"})
			})

			r.Get("/analysis", func(w http.ResponseWriter, r *http.Request) {
				analysis, err := e.Analyze(r.Context(), chi.URLParam(r, "sessionID"))
				if err != nil {
					writeError(w, domainStatus(err), err)
					return
				}
				writeJSON(w, http.StatusOK, analysis)
			})

			r.Put("/mode", func(w http.ResponseWriter, r *http.Request) {
				var req struct {
					Mode string `json:"mode"`
				}
				if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
					writeError(w, http.StatusBadRequest, err)
					return
				}
				if err := e.SetMode(r.Context(), chi.URLParam(r, "sessionID"), tailor.Mode(req.Mode)); err != nil {
					writeError(w, domainStatus(err), err)
					return
				}
				writeJSON(w, http.StatusOK, map[string]string{"mode": req.Mode})
			})

			r.Get("/elements", func(w http.ResponseWriter, r *http.Request) {
				s, err := e.Session(chi.URLParam(r, "sessionID"))
				if err != nil {
					writeError(w, domainStatus(err), err)
					return
				}
				var elements []docrt.Element
				if sel := r.URL.Query().Get("selector"); sel != "" {
					elements, err = s.ListElements(r.Context(), sel)
				} else {
					elements, err = s.ListAllStructural(r.Context())
				}
				if err != nil {
					writeError(w, domainStatus(err), err)
					return
				}
				writeJSON(w, http.StatusOK, elements)
			})

			r.Post("/selection", func(w http.ResponseWriter, r *http.Request) {
				var req struct {
					Target string `json:"target"`
				}
				if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
					writeError(w, http.StatusBadRequest, err)
					return
				}
				added, err := e.Select(r.Context(), chi.URLParam(r, "sessionID"), req.Target)
				if err != nil {
					writeError(w, domainStatus(err), err)
					return
				}
				writeJSON(w, http.StatusOK, map[string]int{"added": added})
			})

			r.Get("/selection", func(w http.ResponseWriter, r *http.Request) {
				s, err := e.Session(chi.URLParam(r, "sessionID"))
				if err != nil {
					writeError(w, domainStatus(err), err)
					return
				}
				writeJSON(w, http.StatusOK, s.Selected())
			})

			r.Delete("/selection", func(w http.ResponseWriter, r *http.Request) {
				id := chi.URLParam(r, "sessionID")
				target := r.URL.Query().Get("target")
				if target == "" {
					if err := e.ClearSelection(r.Context(), id); err != nil {
						writeError(w, domainStatus(err), err)
						return
					}
					writeJSON(w, http.StatusOK, map[string]string{"status": "cleared"})
					return
				}
				removed, err := e.Deselect(r.Context(), id, target)
				if err != nil {
					writeError(w, domainStatus(err), err)
					return
				}
				writeJSON(w, http.StatusOK, map[string]int{"removed": removed})
			})

			r.Post("/rules", func(w http.ResponseWriter, r *http.Request) {
				var req struct {
					Kind     string            `json:"kind"`
					Target   string            `json:"target"`
					Styles   map[string]string `json:"styles"`
					Fragment string            `json:"fragment"`
					Dest     string            `json:"dest"`
					Position string            `json:"position"`
				}
				if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
					writeError(w, http.StatusBadRequest, err)
					return
				}
				rule, err := tailor.NewRule(tailor.RuleKind(req.Kind), req.Target, req.Styles,
					req.Fragment, req.Dest, req.Position)
				if err != nil {
					writeError(w, http.StatusBadRequest, err)
					return
				}
				count, err := e.Apply(r.Context(), chi.URLParam(r, "sessionID"), rule)
				if err != nil {
					writeError(w, domainStatus(err), err)
					return
				}
				writeJSON(w, http.StatusCreated, map[string]any{"rule_id": rule.ID, "count": count})
			})

			r.Get("/rules", func(w http.ResponseWriter, r *http.Request) {
				s, err := e.Session(chi.URLParam(r, "sessionID"))
				if err != nil {
					writeError(w, domainStatus(err), err)
					return
				}
				writeJSON(w, http.StatusOK, s.Log())
			})

			r.Post("/restructure", func(w http.ResponseWriter, r *http.Request) {
				var req struct {
					Kind string `json:"kind"`
				}
				if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
					writeError(w, http.StatusBadRequest, err)
					return
				}
				count, err := e.SmartRestructure(r.Context(), chi.URLParam(r, "sessionID"), tailor.RestructureKind(req.Kind))
				if err != nil {
					writeError(w, domainStatus(err), err)
					return
				}
				writeJSON(w, http.StatusOK, map[string]int{"count": count})
			})

			r.Get("/suggestions", func(w http.ResponseWriter, r *http.Request) {
				suggestions, err := e.Suggest(r.Context(), chi.URLParam(r, "sessionID"))
				if err != nil {
					writeError(w, domainStatus(err), err)
					return
				}
				if suggestions == nil {
					suggestions = []string{}
				}
				writeJSON(w, http.StatusOK, suggestions)
			})

			r.Post("/plan", func(w http.ResponseWriter, r *http.Request) {
				plan, err := e.PlanSuggestions(r.Context(), chi.URLParam(r, "sessionID"))
				if err != nil {
					var notFound *connectivity.ErrServiceNotFound
					if errors.As(err, &notFound) {
						writeError(w, http.StatusServiceUnavailable, err)
						return
					}
					writeError(w, domainStatus(err), err)
					return
				}
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusOK)
				_, _ = w.Write(plan)
			})

			r.Get("/digest", func(w http.ResponseWriter, r *http.Request) {
				markdown, err := e.Digest(r.Context(), chi.URLParam(r, "sessionID"), r.URL.Query().Get("selector"))
				if err != nil {
					writeError(w, domainStatus(err), err)
					return
				}
				writeJSON(w, http.StatusOK, map[string]string{"markdown": markdown})
			})

			r.Get("/html", func(w http.ResponseWriter, r *http.Request) {
				s, err := e.Session(chi.URLParam(r, "sessionID"))
				if err != nil {
					writeError(w, domainStatus(err), err)
					return
				}
				html, err := s.HTML(r.Context(), r.URL.Query().Get("selector"))
				if err != nil {
					writeError(w, domainStatus(err), err)
					return
				}
				writeJSON(w, http.StatusOK, map[string]string{"html": html})
			})

			r.Post("/reset", func(w http.ResponseWriter, r *http.Request) {
				if err := e.Reset(r.Context(), chi.URLParam(r, "sessionID")); err != nil {
					writeError(w, domainStatus(err), err)
					return
				}
				writeJSON(w, http.StatusOK, map[string]string{"status": "reset"})
			})

			r.Post("/templates/{templateID}", func(w http.ResponseWriter, r *http.Request) {
				app, err := e.ApplyTemplate(r.Context(), chi.URLParam(r, "sessionID"), chi.URLParam(r, "templateID"))
				if err != nil {
					writeError(w, domainStatus(err), err)
					return
				}
				writeJSON(w, http.StatusOK, app)
			})
		})

		r.Post("/templates", func(w http.ResponseWriter, r *http.Request) {
			var req struct {
				SessionID  string `json:"session_id"`
				Name       string `json:"name"`
				URLPattern string `json:"url_pattern"`
			}
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				writeError(w, http.StatusBadRequest, err)
				return
			}
			tpl, err := e.SaveTemplate(r.Context(), req.SessionID, req.Name, req.URLPattern)
			if err != nil {
				writeError(w, domainStatus(err), err)
				return
			}
			writeJSON(w, http.StatusCreated, tpl)
		})

		r.Get("/templates", func(w http.ResponseWriter, r *http.Request) {
			templates, err := e.ListTemplates(r.Context())
			if err != nil {
				writeError(w, domainStatus(err), err)
				return
			}
			writeJSON(w, http.StatusOK, templates)
		})

		r.Post("/templates/import", func(w http.ResponseWriter, r *http.Request) {
			data, err := io.ReadAll(r.Body)
			if err != nil {
				writeError(w, http.StatusBadRequest, err)
				return
			}
			tpl, err := e.ImportTemplate(r.Context(), data)
			if err != nil {
				writeError(w, http.StatusBadRequest, err)
				return
			}
			writeJSON(w, http.StatusCreated, tpl)
		})

		r.Get("/templates/{templateID}", func(w http.ResponseWriter, r *http.Request) {
			tpl, err := e.GetTemplate(r.Context(), chi.URLParam(r, "templateID"))
			if err != nil {
				writeError(w, domainStatus(err), err)
				return
			}
			writeJSON(w, http.StatusOK, tpl)
		})

		r.Delete("/templates/{templateID}", func(w http.ResponseWriter, r *http.Request) {
			if err := e.DeleteTemplate(r.Context(), chi.URLParam(r, "templateID")); err != nil {
				writeError(w, domainStatus(err), err)
				return
			}
			writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
		})

		r.Post("/templates/{templateID}/default", func(w http.ResponseWriter, r *http.Request) {
			if err := e.SetDefaultTemplate(r.Context(), chi.URLParam(r, "templateID")); err != nil {
				writeError(w, domainStatus(err), err)
				return
			}
			writeJSON(w, http.StatusOK, map[string]string{"status": "default"})
		})

		r.Get("/stats", func(w http.ResponseWriter, r *http.Request) {
			stats, err := e.Stats(r.Context())
			if err != nil {
				writeError(w, domainStatus(err), err)
				return
			}
			writeJSON(w, http.StatusOK, stats)
		})
	})

	return r
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("write response", "error", err)
	}
}

func writeError(w http.ResponseWriter, code int, err error) {
	writeJSON(w, code, map[string]string{"error": err.Error()})
}

func domainStatus(err error) int {
	switch {
	case errors.Is(err, tailor.ErrNoSession), errors.Is(err, tailor.ErrTemplateNotFound):
		return http.StatusNotFound
	case errors.Is(err, tailor.ErrInvalidRule), errors.Is(err, tailor.ErrInvalidMode):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
