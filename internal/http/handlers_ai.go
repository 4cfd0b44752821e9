package http

import (
	"encoding/json"
	"html/template"
	"log/slog"
	"net/http"
	"strings"

	"kharcha/internal/speech"
)

// handleParse turns free text into a structured expense guess the form can
// prefill. The guess still goes through validation on save.
func (s *Server) handleParse(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", "POST")
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if s.parser == nil {
		http.Error(w, "AI parsing is not configured", http.StatusNotImplemented)
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid request format", http.StatusBadRequest)
		return
	}

	text := strings.TrimSpace(r.Form.Get("text"))
	if text == "" {
		http.Error(w, "text is required", http.StatusUnprocessableEntity)
		return
	}

	parsed, err := s.parser.Parse(r.Context(), text)
	if err != nil {
		slog.ErrorContext(r.Context(), "AI parse failed", "error", err)
		http.Error(w, "could not parse expense", http.StatusBadGateway)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(parsed); err != nil {
		slog.ErrorContext(r.Context(), "Encode parse response failed", "error", err)
	}
}

// handleSpeechError renders the message for a recognition error the client
// recognizer reported. Voice capture happens in the browser; the server only
// owns the error taxonomy and its wording.
func (s *Server) handleSpeechError(w http.ResponseWriter, r *http.Request) {
	code := strings.TrimSpace(r.URL.Query().Get("code"))
	slog.WarnContext(r.Context(), "Speech recognition failed", "code", code)

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write([]byte(`<div class="error">` + template.HTMLEscapeString(speech.Message(code)) + `</div>`))
}
