package handler

import (
	"encoding/json"
	"io/fs"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	appI18n "github.com/pavelanni/eqarena/internal/i18n"
	"github.com/pavelanni/eqarena/internal/manifest"
	"github.com/pavelanni/eqarena/internal/model"
	"github.com/pavelanni/eqarena/internal/store"
	"github.com/pavelanni/eqarena/internal/survey"
)

// Handler holds shared dependencies for HTTP handlers.
type Handler struct {
	store    *store.Store
	pool     survey.Source
	sink     survey.Sink
	access   *survey.AccessGate
	config   model.SurveyConfig
	sessions *Registry
	data     fs.FS
}

// New creates a new Handler. data serves audio and metadata under /data/ and
// may be nil when audio lives elsewhere.
func New(s *store.Store, pool survey.Source, sink survey.Sink, access *survey.AccessGate,
	cfg model.SurveyConfig, sessions *Registry, data fs.FS) *Handler {
	return &Handler{
		store:    s,
		pool:     pool,
		sink:     sink,
		access:   access,
		config:   cfg,
		sessions: sessions,
		data:     data,
	}
}

// Routes registers all HTTP routes.
func (h *Handler) Routes(r chi.Router) {
	r.Route("/api/sessions", func(r chi.Router) {
		r.Post("/", h.handleCreateSession)
		r.Route("/{sessionID}", func(r chi.Router) {
			r.Get("/", h.withSession(h.handleGetSession))
			r.Post("/access", h.withSession(h.handleAccess))
			r.Post("/consent", h.withSession(h.handleConsent))
			r.Post("/choices", h.withSession(h.handleChoice))
			r.Post("/playback", h.withSession(h.handlePlayback))
			r.Post("/next", h.withSession(h.handleNext))
			r.Post("/previous", h.withSession(h.handlePrevious))
			r.Post("/finish", h.withSession(h.handleFinish))
			r.Post("/feedback", h.withSession(h.handleFeedback))
		})
	})
	r.Get("/sheet", h.handleSheetStatus)
	r.Post("/sheet", h.handleSheetAppend)
	if h.data != nil {
		r.Get("/questions.json", h.handleManifest)
		r.Get("/data/*", h.handleData)
	}
}

// BasePathMiddleware stores the configured base path in the request context.
func (h *Handler) BasePathMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := model.ContextWithBasePath(r.Context(), h.config.BasePath)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// audioURL resolves audio paths against the data URL, or against the request's
// base path when audio is served locally.
func (h *Handler) audioURL(basePath string) func(string) string {
	base := h.config.DataURL
	if base == "" {
		base = basePath
	}
	return func(p string) string {
		return manifest.AudioURL(base, p)
	}
}

func (h *Handler) handleManifest(w http.ResponseWriter, r *http.Request) {
	http.ServeFileFS(w, r, h.data, "questions.json")
}

func (h *Handler) handleData(w http.ResponseWriter, r *http.Request) {
	name := "data/" + chi.URLParam(r, "*")
	if !fs.ValidPath(name) {
		http.NotFound(w, r)
		return
	}
	http.ServeFileFS(w, r, h.data, name)
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encode response", "error", err)
	}
}

// writeError replies with a localized message for msgID.
func writeError(w http.ResponseWriter, r *http.Request, status int, msgID string) {
	writeJSON(w, status, errorResponse{Error: appI18n.T(r.Context(), msgID), Code: msgID})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	return dec.Decode(v)
}
