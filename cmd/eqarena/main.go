package main

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pavelanni/eqarena/internal/handler"
	appI18n "github.com/pavelanni/eqarena/internal/i18n"
	"github.com/pavelanni/eqarena/internal/manifest"
	"github.com/pavelanni/eqarena/internal/model"
	"github.com/pavelanni/eqarena/internal/sink"
	"github.com/pavelanni/eqarena/internal/store"
	"github.com/pavelanni/eqarena/internal/survey"
)

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintln(os.Stderr, "load .env:", err)
	}
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "eqarena",
		Short: "Perceptual survey server for emotionally intelligent speech",
	}

	serve := serveCmd()
	root.AddCommand(serve, exportCmd(), manifestCmd())

	// Make "serve" the default when no subcommand is given.
	root.RunE = serve.RunE

	// Register serve flags on root so bare `eqarena --addr ...` still works.
	root.Flags().AddFlagSet(serve.Flags())

	return root
}

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP survey server",
		RunE:  runServe,
	}
	f := cmd.Flags()
	f.StringP("addr", "a", ":8080", "HTTP listen address")
	f.String("db", "eqarena.db", "SQLite database path for archived responses")
	f.StringP("data-dir", "d", ".", "Directory holding questions.json and data/")
	f.String("data-url", "", "Load questions and audio from this base URL instead of --data-dir")
	f.String("manifest", "questions.json", "Question manifest path, relative to the data source")
	f.String("fallback-metadata", "", "Metadata document to use when no manifest question loads")
	f.IntP("num-questions", "n", 10, "Questions sampled per participant (0 = all available)")
	f.String("access-code", "", "Participation code (or set EQARENA_ACCESS_CODE)")
	f.String("access-code-hash", "", "bcrypt hash of the participation code")
	f.String("sink-url", "", "Remote sheet endpoint; empty archives into --db")
	f.Duration("sink-timeout", sink.DefaultTimeout, "Timeout for one submission POST")
	f.StringP("lang", "l", "en", "Default UI language (en, ru)")
	f.String("base-path", "", "URL prefix for sub-path deployments (e.g. /eq)")
	f.StringSlice("cors-origins", []string{"http://localhost:3000"}, "Allowed CORS origins")
	f.Duration("session-ttl", 6*time.Hour, "Drop survey sessions idle this long (0 = never)")
	f.String("log-level", "info", "Log level (debug, info, warn, error)")
	f.String("log-format", "text", "Log format (text, json)")
	return cmd
}

func exportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export archived responses as JSON or CSV",
		RunE:  runExport,
	}
	f := cmd.Flags()
	f.String("db", "eqarena.db", "SQLite database path")
	f.StringP("format", "f", "json", "Output format (json, csv)")
	f.StringP("output", "o", "-", "Output file path (- for stdout)")
	f.String("log-level", "info", "Log level (debug, info, warn, error)")
	f.String("log-format", "text", "Log format (text, json)")
	return cmd
}

func manifestCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "manifest",
		Short: "Generate questions.json from data/<category>/<question>/metadata.json",
		RunE:  runManifest,
	}
	f := cmd.Flags()
	f.StringP("data-dir", "d", ".", "Directory holding data/")
	f.StringP("output", "o", "questions.json", "Output file path (- for stdout)")
	f.String("log-level", "info", "Log level (debug, info, warn, error)")
	f.String("log-format", "text", "Log format (text, json)")
	return cmd
}

func setupLogging(cmd *cobra.Command) {
	v := viperForCmd(cmd)

	var logLevel slog.Level
	switch strings.ToLower(v.GetString("log-level")) {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}
	handlerOpts := &slog.HandlerOptions{Level: logLevel}
	var logHandler slog.Handler
	switch strings.ToLower(v.GetString("log-format")) {
	case "json":
		logHandler = slog.NewJSONHandler(os.Stderr, handlerOpts)
	default:
		logHandler = slog.NewTextHandler(os.Stderr, handlerOpts)
	}
	slog.SetDefault(slog.New(logHandler))
}

// viperForCmd binds a command's flags and environment to a fresh viper instance.
func viperForCmd(cmd *cobra.Command) *viper.Viper {
	v := viper.New()
	_ = v.BindPFlags(cmd.Flags())

	v.SetEnvPrefix("EQARENA")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetConfigName("eqarena")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME/.config/eqarena")
	v.AddConfigPath("/etc/eqarena")
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			slog.Warn("error reading config file", "error", err)
		}
	} else {
		slog.Debug("loaded config file", "path", v.ConfigFileUsed())
	}

	return v
}

func runServe(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Open database.
	db, err := store.New(v.GetString("db"))
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()
	if n, err := db.ResponseCount(ctx); err == nil {
		slog.Info("opened response archive", "path", v.GetString("db"), "archived_responses", n)
	}

	// Initialize i18n.
	lang := v.GetString("lang")
	if err := appI18n.Init(lang); err != nil {
		return fmt.Errorf("init i18n: %w", err)
	}

	access, err := accessGate(v.GetString("access-code"), v.GetString("access-code-hash"))
	if err != nil {
		return err
	}

	// Question source: local directory or remote base URL.
	dataURL := strings.TrimSpace(v.GetString("data-url"))
	var fetcher manifest.Fetcher
	var dataFS fs.FS
	if dataURL != "" {
		fetcher = manifest.HTTPFetcher{BaseURL: dataURL, Client: &http.Client{Timeout: 30 * time.Second}}
	} else {
		dataFS = os.DirFS(v.GetString("data-dir"))
		fetcher = manifest.FSFetcher{FS: dataFS}
	}
	manifestPath := v.GetString("manifest")
	pool := manifest.NewPool(manifest.NewLoader(fetcher, manifestPath, v.GetString("fallback-metadata")))

	// Normalize base path.
	basePath := strings.TrimRight(v.GetString("base-path"), "/")
	if basePath != "" && !strings.HasPrefix(basePath, "/") {
		basePath = "/" + basePath
	}

	cfg := model.SurveyConfig{
		NumQuestions: v.GetInt("num-questions"),
		BasePath:     basePath,
		DataURL:      dataURL,
		Layout:       model.DefaultLayout(),
	}

	if err := recordSurveyInfo(ctx, db, fetcher, manifestPath, pool, cfg); err != nil {
		return fmt.Errorf("record survey info: %w", err)
	}

	var submissions survey.Sink = sink.StoreSink{Archive: db}
	if sinkURL := v.GetString("sink-url"); sinkURL != "" {
		submissions = sink.NewHTTPSink(sinkURL, v.GetDuration("sink-timeout"))
	}

	sessions := handler.NewRegistry(v.GetDuration("session-ttl"))
	go sessions.Run(ctx, time.Minute)

	h := handler.New(db, pool, submissions, access, cfg, sessions, dataFS)

	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: v.GetStringSlice("cors-origins"),
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Accept-Language", "Content-Type"},
		ExposedHeaders: []string{"Content-Language"},
		MaxAge:         300,
	}))
	r.Use(appI18n.Middleware())

	if basePath != "" {
		r.Route(basePath, func(sub chi.Router) {
			sub.Use(h.BasePathMiddleware)
			h.Routes(sub)
		})
		r.Get(basePath, func(w http.ResponseWriter, r *http.Request) {
			http.Redirect(w, r, basePath+"/", http.StatusMovedPermanently)
		})
	} else {
		r.Use(h.BasePathMiddleware)
		h.Routes(r)
	}

	addr := v.GetString("addr")
	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ErrorLog:          slog.NewLogLogger(slog.Default().Handler(), slog.LevelError),
		IdleTimeout:       time.Minute,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		slog.Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("error shutting down server", "error", err)
		}
	}()

	slog.Info("starting server",
		"addr", addr,
		"lang", lang,
		"num_questions", cfg.NumQuestions,
		"data_url", dataURL,
		"sink", v.GetString("sink-url"),
		"base_path", basePath,
	)
	if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func accessGate(code, hash string) (*survey.AccessGate, error) {
	if hash != "" {
		g, err := survey.NewAccessGateFromHash(hash)
		if err != nil {
			return nil, fmt.Errorf("access code hash: %w", err)
		}
		return g, nil
	}
	if code == "" {
		return nil, fmt.Errorf("access code is required: set --access-code, --access-code-hash or EQARENA_ACCESS_CODE")
	}
	g, err := survey.NewAccessGate(code)
	if err != nil {
		return nil, fmt.Errorf("hash access code: %w", err)
	}
	return g, nil
}

// recordSurveyInfo warms the question pool and stores what this run serves,
// warning when the manifest changed since the previous run.
func recordSurveyInfo(ctx context.Context, db *store.Store, f manifest.Fetcher, manifestPath string,
	pool *manifest.Pool, cfg model.SurveyConfig) error {
	info := model.SurveyInfo{DataURL: cfg.DataURL, NumQuestions: cfg.NumQuestions}

	if data, err := f.Fetch(ctx, manifestPath); err == nil {
		info.ManifestHash = sha256sum(data)
	}
	qs, err := pool.Questions(ctx)
	if err != nil {
		slog.Warn("question pool not available yet, sessions will retry", "error", err)
	} else {
		info.PoolSize = len(qs)
		slog.Info(appI18n.Tp(ctx, "QuestionsLoaded", len(qs)))
	}

	prev, err := db.GetSurveyInfo(ctx)
	if err != nil {
		return err
	}
	if prev.ManifestHash != "" && info.ManifestHash != "" && prev.ManifestHash != info.ManifestHash {
		slog.Warn("question manifest changed since last run", "path", manifestPath)
	}
	return db.SetSurveyInfo(ctx, info)
}

func sha256sum(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

func runExport(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	db, err := store.New(v.GetString("db"))
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	export, err := db.ExportResponses(ctx)
	if err != nil {
		return fmt.Errorf("export responses: %w", err)
	}

	w, closeFn, err := openOutput(v.GetString("output"))
	if err != nil {
		return err
	}
	defer closeFn()

	switch strings.ToLower(v.GetString("format")) {
	case "csv":
		if err := store.WriteCSV(w, export.Responses); err != nil {
			return fmt.Errorf("write CSV: %w", err)
		}
	case "json":
		if err := writeJSON(w, export); err != nil {
			return err
		}
	default:
		return fmt.Errorf("unknown format %q (want json or csv)", v.GetString("format"))
	}
	slog.Info("exported responses", "count", export.NumResponses)
	return nil
}

func runManifest(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)

	m, err := manifest.Generate(os.DirFS(v.GetString("data-dir")), "data")
	if err != nil {
		return fmt.Errorf("generate manifest: %w", err)
	}

	w, closeFn, err := openOutput(v.GetString("output"))
	if err != nil {
		return err
	}
	defer closeFn()

	if err := writeJSON(w, m); err != nil {
		return err
	}
	slog.Info("generated manifest", "questions", len(m.Questions), "output", v.GetString("output"))
	return nil
}

func openOutput(path string) (io.Writer, func(), error) {
	if path == "" || path == "-" {
		return os.Stdout, func() {}, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, nil, fmt.Errorf("create output file: %w", err)
	}
	return f, func() { f.Close() }, nil
}

func writeJSON(w io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal JSON: %w", err)
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	// Ensure trailing newline.
	_, _ = fmt.Fprintln(w)
	return nil
}
