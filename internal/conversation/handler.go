package conversation

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/wolfman30/dental-concierge/internal/language"
	"github.com/wolfman30/dental-concierge/pkg/logging"
)

// Handler wires HTTP requests to the session manager.
type Handler struct {
	manager  *Manager
	validate *validator.Validate
	logger   *logging.Logger
}

// NewHandler creates a conversation handler.
func NewHandler(manager *Manager, logger *logging.Logger) *Handler {
	if manager == nil {
		panic("conversation: manager required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{
		manager:  manager,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		logger:   logger,
	}
}

// Routes mounts the session endpoints.
func (h *Handler) Routes(r chi.Router) {
	r.Post("/sessions", h.Open)
	r.Get("/sessions/{id}", h.GetState)
	r.Delete("/sessions/{id}", h.Close)
	r.Post("/sessions/{id}/messages", h.Message)
}

type openRequest struct {
	Locale string `json:"locale" validate:"omitempty,oneof=ar en"`
}

type openResponse struct {
	SessionID string          `json:"sessionId"`
	Language  language.Locale `json:"language"`
}

// MessageRequest is the body of POST /v1/sessions/{id}/messages.
type MessageRequest struct {
	Text string `json:"text" validate:"required,max=4000"`
}

// Open handles POST /v1/sessions.
func (h *Handler) Open(w http.ResponseWriter, r *http.Request) {
	var req openRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "Invalid request body", http.StatusBadRequest)
			return
		}
	}
	if err := h.validate.Struct(req); err != nil {
		http.Error(w, "unsupported locale", http.StatusBadRequest)
		return
	}

	locale := language.English
	if req.Locale != "" {
		locale = language.Parse(req.Locale)
	}
	state, err := h.manager.Open(locale)
	if err != nil {
		h.logger.Error("failed to open session", "error", err)
		http.Error(w, "Failed to open session", http.StatusServiceUnavailable)
		return
	}
	h.writeJSON(w, http.StatusCreated, openResponse{SessionID: state.SessionID, Language: state.Language})
}

// Message handles POST /v1/sessions/{id}/messages.
func (h *Handler) Message(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req MessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		http.Error(w, "text is required", http.StatusBadRequest)
		return
	}

	result, err := h.manager.Turn(r.Context(), id, req.Text)
	if err != nil {
		h.writeError(w, id, err)
		return
	}
	h.writeJSON(w, http.StatusOK, result)
}

// GetState handles GET /v1/sessions/{id}.
func (h *Handler) GetState(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	state, err := h.manager.State(id)
	if err != nil {
		h.writeError(w, id, err)
		return
	}
	h.writeJSON(w, http.StatusOK, state)
}

// Close handles DELETE /v1/sessions/{id}.
func (h *Handler) Close(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.manager.CloseSession(id); err != nil {
		h.writeError(w, id, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) writeError(w http.ResponseWriter, id string, err error) {
	switch {
	case errors.Is(err, ErrSessionNotFound):
		http.Error(w, "session not found", http.StatusNotFound)
	case errors.Is(err, ErrSessionClosed):
		http.Error(w, "session closed", http.StatusGone)
	case errors.Is(err, ErrEmptyMessage):
		http.Error(w, "text is required", http.StatusBadRequest)
	default:
		h.logger.Error("conversation request failed", "error", err, "session_id", id)
		http.Error(w, "Failed to process message", http.StatusInternalServerError)
	}
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		h.logger.Error("failed to write JSON response", "error", err)
	}
}
