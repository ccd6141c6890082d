package bookings

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/wolfman30/dental-concierge/internal/rules"
	"github.com/wolfman30/dental-concierge/pkg/logging"
)

// Handler exposes the booking service over HTTP.
type Handler struct {
	service  *Service
	validate *validator.Validate
	logger   *logging.Logger
}

// NewHandler creates a bookings handler.
func NewHandler(service *Service, logger *logging.Logger) *Handler {
	if service == nil {
		panic("bookings: service required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{
		service:  service,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		logger:   logger,
	}
}

// Routes mounts the handler under a chi router.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/doctors", h.ListAvailableDoctors)
	r.Post("/bookings", h.CreateBooking)
	r.Put("/bookings/{id}", h.UpdateBooking)
	r.Delete("/bookings/{id}", h.CancelBooking)
}

// CreateBooking handles POST /v1/bookings.
func (h *Handler) CreateBooking(w http.ResponseWriter, r *http.Request) {
	var req Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			writeJSON(w, http.StatusBadRequest, map[string]any{"error": "missing fields", "fields": fieldNames(verrs)})
			return
		}
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	result, err := h.service.Create(r.Context(), req)
	if err != nil {
		h.logger.Error("create booking failed", "error", err)
	}
	h.writeResult(w, http.StatusCreated, result)
}

// UpdateBooking handles PUT /v1/bookings/{id}.
func (h *Handler) UpdateBooking(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var changes Changes
	if err := json.NewDecoder(r.Body).Decode(&changes); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	result, err := h.service.Update(r.Context(), id, changes)
	if err != nil {
		h.logger.Error("update booking failed", "error", err, "booking_id", id)
	}
	h.writeResult(w, http.StatusOK, result)
}

// CancelBooking handles DELETE /v1/bookings/{id}. The body is optional and
// carries verification fields.
func (h *Handler) CancelBooking(w http.ResponseWriter, r *http.Request) {
	req := CancelRequest{}
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}
	}
	req.ID = chi.URLParam(r, "id")
	result, err := h.service.Cancel(r.Context(), req)
	if err != nil {
		h.logger.Error("cancel booking failed", "error", err, "booking_id", req.ID)
	}
	h.writeResult(w, http.StatusOK, result)
}

type doctorsResponse struct {
	Doctors []Doctor `json:"doctors"`
	Count   int      `json:"count"`
}

// ListAvailableDoctors handles GET /v1/doctors?branch=&date=&time=. Without
// a date every doctor at the branch is listed.
func (h *Handler) ListAvailableDoctors(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	query := AvailabilityQuery{Branch: q.Get("branch"), Date: q.Get("date"), Time: q.Get("time")}

	var (
		doctors []Doctor
		err     error
	)
	if strings.TrimSpace(query.Date) == "" {
		doctors, err = h.service.repo.ListDoctors(r.Context(), query.Branch)
	} else {
		doctors, err = h.service.AvailableDoctors(r.Context(), query)
	}
	switch {
	case errors.Is(err, rules.ErrInvalidDate), errors.Is(err, rules.ErrInvalidTime):
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	case err != nil:
		h.logger.Error("list doctors failed", "error", err)
		http.Error(w, "failed to list doctors", http.StatusInternalServerError)
		return
	}
	if doctors == nil {
		doctors = []Doctor{}
	}
	writeJSON(w, http.StatusOK, doctorsResponse{Doctors: doctors, Count: len(doctors)})
}

func (h *Handler) writeResult(w http.ResponseWriter, okStatus int, result Result) {
	if result.Success {
		writeJSON(w, okStatus, result)
		return
	}
	writeJSON(w, statusForReason(result.Reason), result)
}

func statusForReason(reason rules.Reason) int {
	switch {
	case reason == rules.ReasonBookingNotFound, reason == rules.ReasonDoctorNotFound:
		return http.StatusNotFound
	case reason == rules.ReasonAlreadyBooked:
		return http.StatusConflict
	case reason.Verification():
		return http.StatusForbidden
	case reason == rules.ReasonInternal:
		return http.StatusInternalServerError
	default:
		return http.StatusUnprocessableEntity
	}
}

func fieldNames(verrs validator.ValidationErrors) []string {
	out := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		out = append(out, fe.Field())
	}
	return out
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
