package content

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/wolfman30/dental-concierge/internal/language"
	"github.com/wolfman30/dental-concierge/pkg/logging"
)

// Handler serves the admin template endpoints.
type Handler struct {
	store    Store
	validate *validator.Validate
	logger   *logging.Logger
}

// NewHandler creates an admin content handler. store must also implement
// Writer for upserts to succeed.
func NewHandler(store Store, logger *logging.Logger) *Handler {
	if store == nil {
		panic("content: store required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{store: store, validate: validator.New(), logger: logger}
}

type upsertRequest struct {
	Body string `json:"body" validate:"required,max=4000"`
}

type templateResponse struct {
	Slug   string `json:"slug"`
	Locale string `json:"locale"`
	Body   string `json:"body"`
}

// GetTemplate handles GET /admin/content/{slug}/{locale}.
func (h *Handler) GetTemplate(w http.ResponseWriter, r *http.Request) {
	slug, locale := NormalizeSlug(chi.URLParam(r, "slug")), language.Locale(strings.ToLower(chi.URLParam(r, "locale")))
	body, err := h.store.Lookup(r.Context(), slug, locale)
	if errors.Is(err, ErrNotFound) {
		http.Error(w, "template not found", http.StatusNotFound)
		return
	}
	if err != nil {
		h.logger.Error("template lookup failed", "slug", slug, "locale", locale, "error", err)
		http.Error(w, "failed to load template", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, templateResponse{Slug: slug, Locale: string(locale), Body: body})
}

// LocaleLister reports which locales a slug is translated into.
type LocaleLister interface {
	Locales(ctx context.Context, slug string) ([]string, error)
}

// ListLocales handles GET /admin/content/{slug}.
func (h *Handler) ListLocales(w http.ResponseWriter, r *http.Request) {
	lister, ok := h.store.(LocaleLister)
	if !ok {
		http.Error(w, "content store cannot list locales", http.StatusNotImplemented)
		return
	}
	slug := NormalizeSlug(chi.URLParam(r, "slug"))
	locales, err := lister.Locales(r.Context(), slug)
	if err != nil {
		h.logger.Error("list locales failed", "slug", slug, "error", err)
		http.Error(w, "failed to list locales", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"slug": slug, "locales": locales})
}

// UpsertTemplate handles PUT /admin/content/{slug}/{locale}.
func (h *Handler) UpsertTemplate(w http.ResponseWriter, r *http.Request) {
	writer, ok := h.store.(Writer)
	if !ok {
		http.Error(w, "content store is read-only", http.StatusNotImplemented)
		return
	}
	slug, locale := NormalizeSlug(chi.URLParam(r, "slug")), language.Locale(strings.ToLower(chi.URLParam(r, "locale")))

	var req upsertRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		http.Error(w, "body is required and must be under 4000 characters", http.StatusBadRequest)
		return
	}

	if err := writer.Upsert(r.Context(), slug, locale, req.Body); err != nil {
		if errors.Is(err, ErrInvalidKey) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		h.logger.Error("template upsert failed", "slug", slug, "locale", locale, "error", err)
		http.Error(w, "failed to save template", http.StatusInternalServerError)
		return
	}
	h.logger.Info("template updated", "slug", slug, "locale", locale)
	writeJSON(w, http.StatusOK, templateResponse{Slug: slug, Locale: string(locale), Body: req.Body})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
