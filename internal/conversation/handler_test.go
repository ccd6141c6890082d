package conversation

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/dental-concierge/internal/language"
)

func newTestRouter(t *testing.T, ext Extractor) (http.Handler, *Manager) {
	t.Helper()
	m := newTestManager(t, ext)
	r := chi.NewRouter()
	r.Route("/v1", NewHandler(m, nil).Routes)
	return r, m
}

func doJSON(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != "" {
		reader = bytes.NewReader([]byte(body))
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHandler_OpenSession(t *testing.T) {
	h, m := newTestRouter(t, &scriptedExtractor{})

	rec := doJSON(t, h, http.MethodPost, "/v1/sessions", `{"locale":"ar"}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	var resp openResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.SessionID)
	assert.Equal(t, language.Arabic, resp.Language)
	assert.Equal(t, 1, m.Len())

	rec = doJSON(t, h, http.MethodPost, "/v1/sessions", "")
	require.Equal(t, http.StatusCreated, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, language.English, resp.Language)
}

func TestHandler_OpenSessionRejectsUnknownLocale(t *testing.T) {
	h, _ := newTestRouter(t, &scriptedExtractor{})

	rec := doJSON(t, h, http.MethodPost, "/v1/sessions", `{"locale":"fr"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, h, http.MethodPost, "/v1/sessions", `{"locale":`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandler_MessageFlow(t *testing.T) {
	ext := (&scriptedExtractor{}).then(Extraction{
		Intent:   IntentCancelAppointment,
		Entities: Entities{},
	})
	h, m := newTestRouter(t, ext)
	state, err := m.Open(language.English)
	require.NoError(t, err)

	rec := doJSON(t, h, http.MethodPost, "/v1/sessions/"+state.SessionID+"/messages", `{"text":"cancel my appointment"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var result TurnResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.Equal(t, IntentCancelAppointment, result.Intent)
	assert.Contains(t, result.Reply, "booking ID")

	rec = doJSON(t, h, http.MethodGet, "/v1/sessions/"+state.SessionID, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var snapshot State
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snapshot))
	assert.Len(t, snapshot.Turns, 2)
	assert.Equal(t, IntentCancelAppointment, snapshot.CurrentIntent)
}

func TestHandler_MessageValidation(t *testing.T) {
	h, m := newTestRouter(t, &scriptedExtractor{})
	state, err := m.Open(language.English)
	require.NoError(t, err)
	path := "/v1/sessions/" + state.SessionID + "/messages"

	assert.Equal(t, http.StatusBadRequest, doJSON(t, h, http.MethodPost, path, `{"text":""}`).Code)
	assert.Equal(t, http.StatusBadRequest, doJSON(t, h, http.MethodPost, path, `not json`).Code)
	// Whitespace passes struct validation but sanitizes to nothing.
	assert.Equal(t, http.StatusBadRequest, doJSON(t, h, http.MethodPost, path, `{"text":"   "}`).Code)
}

func TestHandler_SessionErrors(t *testing.T) {
	h, m := newTestRouter(t, &scriptedExtractor{})

	assert.Equal(t, http.StatusNotFound, doJSON(t, h, http.MethodGet, "/v1/sessions/nope", "").Code)
	assert.Equal(t, http.StatusNotFound, doJSON(t, h, http.MethodPost, "/v1/sessions/nope/messages", `{"text":"hi"}`).Code)

	state, err := m.Open(language.English)
	require.NoError(t, err)
	orch, err := m.Get(state.SessionID)
	require.NoError(t, err)
	orch.Close()
	assert.Equal(t, http.StatusGone, doJSON(t, h, http.MethodPost, "/v1/sessions/"+state.SessionID+"/messages", `{"text":"hi"}`).Code)

	assert.Equal(t, http.StatusNoContent, doJSON(t, h, http.MethodDelete, "/v1/sessions/"+state.SessionID, "").Code)
	assert.Equal(t, http.StatusNotFound, doJSON(t, h, http.MethodDelete, "/v1/sessions/"+state.SessionID, "").Code)
}
