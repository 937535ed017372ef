// Entry point for the preflight HTTP service and one-shot CLI.
//
// With file arguments the binary analyzes each path and prints the results
// as JSON. Without arguments it serves the HTTP API (and optionally the
// MCP stdio transport).
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	_ "modernc.org/sqlite"

	"github.com/hazyhaar/preflight/dbopen"
	"github.com/hazyhaar/preflight/history"
	"github.com/hazyhaar/preflight/preflight"
	"github.com/hazyhaar/preflight/shield"
)

func main() {
	logLevel := env("LOG_LEVEL", "info")
	var lvl slog.Level
	switch logLevel {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
	slog.SetDefault(logger)

	// Policy tables: compiled-in defaults, optionally layered from YAML.
	policies := preflight.DefaultPolicies()
	if policyFile := env("POLICY_FILE", ""); policyFile != "" {
		var err error
		policies, err = preflight.LoadPolicies(policyFile)
		if err != nil {
			slog.Error("load policies", "error", err)
			os.Exit(1)
		}
	}

	eng, err := preflight.New(preflight.Config{Policies: policies, Logger: logger})
	if err != nil {
		slog.Error("engine init", "error", err)
		os.Exit(1)
	}

	// One-shot mode: analyze the given paths and print JSON.
	if len(os.Args) > 1 {
		os.Exit(runOnce(eng, os.Args[1:]))
	}

	// Signal context.
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// History DB.
	historyPath := env("HISTORY_DB", "db/preflight.db")
	db, err := dbopen.Open(historyPath, dbopen.WithMkdirAll())
	if err != nil {
		slog.Error("history db", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	store := history.NewStore(db)
	if err := store.Init(); err != nil {
		slog.Error("history init", "error", err)
		os.Exit(1)
	}
	defer store.Close()

	// Optional MCP stdio transport.
	if env("MCP_TRANSPORT", "") == "stdio" {
		mcpSrv := mcp.NewServer(&mcp.Implementation{
			Name:    "preflight",
			Version: "1.0.0",
		}, nil)
		eng.RegisterMCP(mcpSrv)
		go func() {
			if err := mcpSrv.Run(ctx, &mcp.StdioTransport{}); err != nil && ctx.Err() == nil {
				slog.Error("MCP stdio", "error", err)
			}
		}()
		slog.Info("MCP stdio transport started")
	}

	maxUpload := int64(envInt("MAX_UPLOAD_BYTES", 100<<20))

	r := chi.NewRouter()
	for _, mw := range shield.DefaultStack(maxUpload + 1<<20) {
		r.Use(mw)
	}

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Post("/api/preflight", handleAnalyze(eng, store, maxUpload))

	r.Get("/api/history", func(w http.ResponseWriter, r *http.Request) {
		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
		entries, err := store.Recent(r.Context(), limit)
		if err != nil {
			shield.GetLogger(r.Context()).Error("history query", "error", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "history unavailable"})
			return
		}
		if entries == nil {
			entries = []history.Entry{}
		}
		writeJSON(w, http.StatusOK, entries)
	})

	port := env("PORT", "8086")
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		slog.Info("preflight service starting", "port", port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("http server", "error", err)
			cancel()
		}
	}()

	<-ctx.Done()
	slog.Info("shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown", "error", err)
	}
}

// analysisResponse is one scored upload in the API response.
type analysisResponse struct {
	AnalysisID string           `json:"analysis_id,omitempty"`
	File       string           `json:"file"`
	Result     preflight.Result `json:"result"`
}

// handleAnalyze scores every file part of a multipart upload. Files are
// independent units of work; a failure on one never aborts the batch
// because the engine degrades instead of erroring.
func handleAnalyze(eng *preflight.Engine, store *history.Store, maxUpload int64) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		mr, err := r.MultipartReader()
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "multipart body required"})
			return
		}

		var responses []analysisResponse
		for {
			part, err := mr.NextPart()
			if err == io.EOF {
				break
			}
			if err != nil {
				writeJSON(w, http.StatusBadRequest, map[string]string{"error": fmt.Sprintf("read upload: %v", err)})
				return
			}
			if part.FileName() == "" {
				continue
			}

			data, err := io.ReadAll(io.LimitReader(part, maxUpload+1))
			part.Close()
			if err != nil {
				writeJSON(w, http.StatusBadRequest, map[string]string{"error": fmt.Sprintf("read upload: %v", err)})
				return
			}

			start := time.Now()
			d := preflight.BytesDescriptor(part.FileName(), part.Header.Get("Content-Type"), data)
			res := eng.Analyze(r.Context(), d)

			id := store.RecordAsync(&history.Entry{
				FileName:   part.FileName(),
				Family:     string(res.Family),
				Score:      res.Score,
				Verdict:    string(res.Verdict),
				Messages:   res.Messages,
				DurationUs: time.Since(start).Microseconds(),
			})
			responses = append(responses, analysisResponse{
				AnalysisID: id,
				File:       part.FileName(),
				Result:     res,
			})
		}

		if len(responses) == 0 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "no file parts in upload"})
			return
		}
		writeJSON(w, http.StatusOK, responses)
	}
}

// runOnce analyzes local paths and prints the results as a JSON array.
// Exit code 1 when any file's verdict is "reject".
func runOnce(eng *preflight.Engine, paths []string) int {
	ctx := context.Background()
	var responses []analysisResponse
	exit := 0
	for _, path := range paths {
		d, err := preflight.FileDescriptor(path)
		if err != nil {
			fmt.Fprintf(os.Stderr, "preflight: %v\n", err)
			exit = 1
			continue
		}
		res := eng.Analyze(ctx, d)
		if res.Verdict == preflight.VerdictReject {
			exit = 1
		}
		responses = append(responses, analysisResponse{File: d.Name, Result: res})
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(responses); err != nil {
		fmt.Fprintf(os.Stderr, "preflight: %v\n", err)
		return 1
	}
	return exit
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func env(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}
