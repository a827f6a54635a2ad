package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/menta2k/plate-roaster/pkg/types"
)

type mockRoaster struct{ mock.Mock }

func (m *mockRoaster) RoastBase64(ctx context.Context, imgB64, mimeType string) (types.Roast, error) {
	args := m.Called(ctx, imgB64, mimeType)
	return args.Get(0).(types.Roast), args.Error(1)
}

var verdict = types.Roast{Target: "turkey", Roast: "This turkey died twice.", Rating: 1.8, Severity: types.SeverityHigh}

func post(h http.Handler, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/roast", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func errorBody(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body["error"]
}

func TestRoastSuccess(t *testing.T) {
	r := new(mockRoaster)
	r.On("RoastBase64", mock.Anything, "AAAA", "image/jpeg").Return(verdict, nil)
	s := NewServer(r, DefaultConfig())

	rec := post(s.Handler(), `{"imageBase64":"AAAA","mimeType":"image/jpeg"}`)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var got types.Roast
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, verdict, got)
	r.AssertExpectations(t)
}

func TestRoastMethodNotAllowed(t *testing.T) {
	s := NewServer(new(mockRoaster), DefaultConfig())

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/roast", nil))

	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	assert.Equal(t, "Method not allowed", errorBody(t, rec))
}

func TestRoastPreflight(t *testing.T) {
	s := NewServer(new(mockRoaster), DefaultConfig())

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodOptions, "/roast", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Content-Type", rec.Header().Get("Access-Control-Allow-Headers"))
}

func TestRoastBadRequests(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		status int
		msg    string
	}{
		{"missing image", `{"mimeType":"image/jpeg"}`, http.StatusBadRequest, "Missing image data"},
		{"missing mime", `{"imageBase64":"AAAA"}`, http.StatusBadRequest, "Missing image data"},
		{"empty object", `{}`, http.StatusBadRequest, "Missing image data"},
		{"not json", `imageBase64=AAAA`, http.StatusBadRequest, "Invalid request body"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := new(mockRoaster)
			rec := post(NewServer(r, DefaultConfig()).Handler(), tt.body)
			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, tt.msg, errorBody(t, rec))
			r.AssertNotCalled(t, "RoastBase64", mock.Anything, mock.Anything, mock.Anything)
		})
	}
}

func TestRoastBodyTooLarge(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxBodyBytes = 64
	s := NewServer(new(mockRoaster), cfg)

	rec := post(s.Handler(), `{"imageBase64":"`+strings.Repeat("A", 200)+`","mimeType":"image/jpeg"}`)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func TestRoastUpstreamError(t *testing.T) {
	r := new(mockRoaster)
	r.On("RoastBase64", mock.Anything, mock.Anything, mock.Anything).Return(types.Roast{}, errors.New("no roast generated"))
	s := NewServer(r, DefaultConfig())

	rec := post(s.Handler(), `{"imageBase64":"AAAA","mimeType":"image/jpeg"}`)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "no roast generated", errorBody(t, rec))
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestRoastRateLimited(t *testing.T) {
	r := new(mockRoaster)
	r.On("RoastBase64", mock.Anything, mock.Anything, mock.Anything).Return(verdict, nil)
	cfg := DefaultConfig()
	cfg.RequestsPerMinute = 1
	cfg.Burst = 2
	s := NewServer(r, cfg)

	body := `{"imageBase64":"AAAA","mimeType":"image/jpeg"}`
	assert.Equal(t, http.StatusOK, post(s.Handler(), body).Code)
	assert.Equal(t, http.StatusOK, post(s.Handler(), body).Code)
	assert.Equal(t, http.StatusTooManyRequests, post(s.Handler(), body).Code)
	r.AssertNumberOfCalls(t, "RoastBase64", 2)
}

func TestHealth(t *testing.T) {
	s := NewServer(new(mockRoaster), DefaultConfig())
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestStopWithoutStart(t *testing.T) {
	s := NewServer(new(mockRoaster), DefaultConfig())
	assert.NoError(t, s.Stop(context.Background()))
}
