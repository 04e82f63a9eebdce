package handler

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	appI18n "github.com/pavelanni/eqarena/internal/i18n"
	"github.com/pavelanni/eqarena/internal/model"
	"github.com/pavelanni/eqarena/internal/sink"
)

// handleSheetStatus answers liveness probes for the sheet endpoint.
func (h *Handler) handleSheetStatus(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	fmt.Fprintf(w, "Sheet endpoint is working! Current time: %s\n", time.Now().UTC().Format(time.RFC3339))
}

// handleSheetAppend archives one payload. It accepts the form field data, as
// posted by the HTTP sink, or a raw JSON body.
func (h *Handler) handleSheetAppend(w http.ResponseWriter, r *http.Request) {
	raw, err := sheetBody(w, r)
	if err != nil {
		slog.Warn("unreadable sheet request", "error", err)
		writeJSON(w, http.StatusBadRequest, sink.Result{Error: err.Error()})
		return
	}

	var p model.Payload
	if err := json.Unmarshal(raw, &p); err != nil {
		slog.Warn("invalid sheet payload", "error", err)
		writeJSON(w, http.StatusBadRequest, sink.Result{Error: "invalid payload: " + err.Error()})
		return
	}

	id, err := h.store.InsertResponse(r.Context(), p)
	if err != nil {
		slog.Error("failed to archive response", "error", err)
		writeJSON(w, http.StatusInternalServerError, sink.Result{Error: err.Error()})
		return
	}
	slog.Debug("sheet row appended", "id", id, "questions", len(p.Questions))
	writeJSON(w, http.StatusOK, sink.Result{Success: true, Message: appI18n.T(r.Context(), "SubmitSuccess")})
}

func sheetBody(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	if strings.HasPrefix(r.Header.Get("Content-Type"), "application/x-www-form-urlencoded") {
		if err := r.ParseForm(); err != nil {
			return nil, err
		}
		if data := r.PostForm.Get("data"); data != "" {
			return []byte(data), nil
		}
		return nil, fmt.Errorf("no data received")
	}
	raw, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, err
	}
	if len(strings.TrimSpace(string(raw))) == 0 {
		return nil, fmt.Errorf("no data received")
	}
	return raw, nil
}
