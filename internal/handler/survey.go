package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	appI18n "github.com/pavelanni/eqarena/internal/i18n"
	"github.com/pavelanni/eqarena/internal/model"
	"github.com/pavelanni/eqarena/internal/survey"
)

// sessionResponse is the state snapshot returned by every session route.
type sessionResponse struct {
	ID       string               `json:"id"`
	Title    string               `json:"title"`
	State    survey.State         `json:"state"`
	Error    string               `json:"error,omitempty"`
	Counter  string               `json:"counter,omitempty"`
	Question *survey.QuestionView `json:"question,omitempty"`
	Commands []PlayerCommand      `json:"commands"`
}

type playbackResponse struct {
	Allowed  bool            `json:"allowed"`
	Message  string          `json:"message,omitempty"`
	Commands []PlayerCommand `json:"commands"`
}

// validationMessages maps recoverable session errors to message IDs.
var validationMessages = []struct {
	err   error
	msgID string
}{
	{survey.ErrInvalidAccessCode, "InvalidAccessCode"},
	{survey.ErrConsentRequired, "ConsentRequired"},
	{survey.ErrIncompleteQuestion, "CompleteBothSelections"},
	{survey.ErrIncompleteSurvey, "AnswerAllQuestions"},
	{survey.ErrNoNextQuestion, "NoNextQuestion"},
	{survey.ErrNotLastQuestion, "FinishFromLast"},
	{survey.ErrEmptyFeedback, "FeedbackRequired"},
	{survey.ErrAlreadySubmitted, "AlreadySubmitted"},
	{survey.ErrUnknownClip, "UnknownClip"},
	{survey.ErrInvalidSlot, "InvalidSlot"},
	{survey.ErrUnknownQuestion, "UnknownQuestion"},
	{survey.ErrInvalidState, "InvalidState"},
}

func messageID(err error) string {
	for _, m := range validationMessages {
		if errors.Is(err, m.err) {
			return m.msgID
		}
	}
	return "InvalidState"
}

type sessionHandlerFunc func(w http.ResponseWriter, r *http.Request, id string, e *entry)

// withSession looks up the session and holds its lock for the request.
func (h *Handler) withSession(fn sessionHandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "sessionID")
		e, ok := h.sessions.get(id)
		if !ok {
			writeError(w, r, http.StatusNotFound, "SessionNotFound")
			return
		}
		e.mu.Lock()
		defer e.mu.Unlock()
		fn(w, r, id, e)
	}
}

// respond replies with the session snapshot, or with the localized error when
// err is set. Commands queued while handling are returned either way.
func (h *Handler) respond(w http.ResponseWriter, r *http.Request, id string, e *entry, err error) {
	if err == nil {
		writeJSON(w, http.StatusOK, h.snapshot(r, id, e))
		return
	}
	e.player.drain()
	if survey.IsValidation(err) {
		slog.Debug("rejected survey action", "session", id, "error", err)
		writeError(w, r, http.StatusUnprocessableEntity, messageID(err))
		return
	}
	slog.Error("survey action failed", "session", id, "error", err)
	writeError(w, r, http.StatusBadGateway, "SubmitFailed")
}

func (h *Handler) snapshot(r *http.Request, id string, e *entry) sessionResponse {
	s := e.session
	resp := sessionResponse{
		ID:       id,
		Title:    appI18n.T(r.Context(), "AppTitle"),
		State:    s.State(),
		Commands: e.player.drain(),
	}
	if s.State() == survey.StateError {
		resp.Error = appI18n.T(r.Context(), "LoadError")
	}
	if v, ok := s.View(); ok {
		resp.Question = &v
		resp.Counter = appI18n.Td(r.Context(), "QuestionCounter", map[string]any{
			"Index": v.Index + 1,
			"Total": v.Total,
		})
	}
	return resp
}

func (h *Handler) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	player := &commandPlayer{}
	s := survey.New(h.config, h.access, h.sink,
		survey.WithPlayer(player),
		survey.WithAudioURL(h.audioURL(model.BasePathFromContext(r.Context()))),
	)
	if err := s.Load(r.Context(), h.pool); err != nil {
		slog.Error("failed to load survey", "error", err)
	}
	e := &entry{session: s, player: player}
	id := h.sessions.add(e).String()
	slog.Info("created survey session", "session", id, "state", s.State(), "questions", len(s.Questions()))

	e.mu.Lock()
	defer e.mu.Unlock()
	writeJSON(w, http.StatusCreated, h.snapshot(r, id, e))
}

func (h *Handler) handleGetSession(w http.ResponseWriter, r *http.Request, id string, e *entry) {
	h.respond(w, r, id, e, nil)
}

func (h *Handler) handleAccess(w http.ResponseWriter, r *http.Request, id string, e *entry) {
	var req struct {
		Code string `json:"code"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, "BadRequest")
		return
	}
	h.respond(w, r, id, e, e.session.SubmitAccessCode(req.Code))
}

func (h *Handler) handleConsent(w http.ResponseWriter, r *http.Request, id string, e *entry) {
	var req model.UserInfo
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, "BadRequest")
		return
	}
	h.respond(w, r, id, e, e.session.Consent(req.Email, req.NativeSpeaker))
}

func (h *Handler) handleChoice(w http.ResponseWriter, r *http.Request, id string, e *entry) {
	var req struct {
		Slot model.ChoiceSlot `json:"slot"`
		Clip int              `json:"clip"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, "BadRequest")
		return
	}
	h.respond(w, r, id, e, e.session.Choose(req.Slot, req.Clip))
}

// handlePlayback accepts a play request or a media event for a clip of the
// current question and returns the player commands it caused. A play request
// only queues a start command; the clip unlocks on the start event that follows.
func (h *Handler) handlePlayback(w http.ResponseWriter, r *http.Request, id string, e *entry) {
	var req struct {
		Event string `json:"event"`
		Clip  int    `json:"clip"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, "BadRequest")
		return
	}

	var allowed bool
	var err error
	switch kind := survey.EventKind(req.Event); kind {
	case "play":
		allowed, err = e.session.Request(req.Clip)
	case survey.ClipStarted, survey.ClipPaused, survey.ClipEnded:
		allowed, err = e.session.Playback(kind, req.Clip)
	default:
		writeError(w, r, http.StatusBadRequest, "BadRequest")
		return
	}
	if err != nil {
		h.respond(w, r, id, e, err)
		return
	}
	resp := playbackResponse{Allowed: allowed, Commands: e.player.drain()}
	if !allowed {
		resp.Message = appI18n.T(r.Context(), "ClipLocked")
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleNext(w http.ResponseWriter, r *http.Request, id string, e *entry) {
	h.respond(w, r, id, e, e.session.Next())
}

func (h *Handler) handlePrevious(w http.ResponseWriter, r *http.Request, id string, e *entry) {
	h.respond(w, r, id, e, e.session.Previous())
}

func (h *Handler) handleFinish(w http.ResponseWriter, r *http.Request, id string, e *entry) {
	h.respond(w, r, id, e, e.session.Finish())
}

func (h *Handler) handleFeedback(w http.ResponseWriter, r *http.Request, id string, e *entry) {
	var req struct {
		Feedback string `json:"feedback"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, "BadRequest")
		return
	}
	err := e.session.SubmitFeedback(r.Context(), req.Feedback)
	if err == nil {
		slog.Info("survey submitted", "session", id)
	}
	h.respond(w, r, id, e, err)
}
