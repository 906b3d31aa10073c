package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Freeeeeet/legal_consult/internal/model"
	"github.com/Freeeeeet/legal_consult/internal/repository/memory"
	"github.com/Freeeeeet/legal_consult/internal/service"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type apiFixture struct {
	server *httptest.Server
	store  *memory.Store
	lawyer uuid.UUID
	client uuid.UUID
}

func newAPI(t *testing.T) *apiFixture {
	t.Helper()

	ctx := context.Background()
	logger := zaptest.NewLogger(t)
	store := memory.NewStore()
	users := service.NewUserService(store.Users(), logger)

	lawyer, err := users.RegisterUser(ctx, 1, "lawyer", "Анна", "")
	require.NoError(t, err)
	price, err := model.NewPrice(300000, "RUB")
	require.NoError(t, err)
	_, err = users.MakeLawyer(ctx, lawyer.ID, price)
	require.NoError(t, err)

	consultations := service.NewConsultationService(store, store.Users(), logger)
	payments := service.NewPaymentService(store, store, consultations, logger)
	h := NewHandler(consultations, payments, service.NewHistoryService(consultations, store), logger)

	srv := httptest.NewServer(NewRouter(h, logger))
	t.Cleanup(srv.Close)

	return &apiFixture{server: srv, store: store, lawyer: lawyer.ID, client: uuid.New()}
}

func (f *apiFixture) do(t *testing.T, method, path string, caller uuid.UUID, body interface{}) (int, map[string]interface{}) {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequest(method, f.server.URL+path, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if caller != uuid.Nil {
		req.Header.Set(CallerHeader, caller.String())
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out map[string]interface{}
	_ = json.NewDecoder(resp.Body).Decode(&out)
	return resp.StatusCode, out
}

func (f *apiFixture) book(t *testing.T) string {
	t.Helper()
	status, body := f.do(t, http.MethodPost, "/api/consultations", f.client, map[string]interface{}{
		"lawyer_id": f.lawyer.String(),
		"type":      "emergency",
	})
	require.Equal(t, http.StatusCreated, status, body)
	return body["id"].(string)
}

func (f *apiFixture) pay(t *testing.T, id, status string) {
	t.Helper()
	code, body := f.do(t, http.MethodPost, "/api/payments/webhook", uuid.Nil, map[string]interface{}{
		"consultation_id": id,
		"status":          status,
		"provider_ref":    "ref-" + id,
	})
	require.Equal(t, http.StatusOK, code, body)
}

func TestAPI_Health(t *testing.T) {
	f := newAPI(t)
	status, body := f.do(t, http.MethodGet, "/healthz", uuid.Nil, nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "ok", body["status"])
}

func TestAPI_Lifecycle(t *testing.T) {
	f := newAPI(t)
	id := f.book(t)
	base := "/api/consultations/" + id

	status, body := f.do(t, http.MethodPost, base+"/confirm", f.lawyer, nil)
	assert.Equal(t, http.StatusPaymentRequired, status, body)

	f.pay(t, id, "succeeded")

	for _, step := range []string{"confirm", "start", "complete"} {
		status, body := f.do(t, http.MethodPost, base+"/"+step, f.lawyer, nil)
		require.Equal(t, http.StatusOK, status, "%s: %v", step, body)
	}

	status, body = f.do(t, http.MethodPost, base+"/rate", f.client, map[string]interface{}{"rating": 5, "review": "great"})
	require.Equal(t, http.StatusOK, status, body)
	assert.Equal(t, "completed", body["status"])
	assert.Equal(t, float64(5), body["rating"].(map[string]interface{})["score"])
	assert.Equal(t, float64(300000), body["price"].(map[string]interface{})["amount"])

	status, body = f.do(t, http.MethodGet, base, f.lawyer, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, float64(5), body["version"])

	status, body = f.do(t, http.MethodGet, base+"/events", f.client, nil)
	require.Equal(t, http.StatusOK, status, body)
	items := body["items"].([]interface{})
	require.Len(t, items, 5)
	names := make([]string, 0, len(items))
	for _, item := range items {
		names = append(names, item.(map[string]interface{})["name"].(string))
	}
	assert.Equal(t, []string{
		"consultation.booked",
		"consultation.confirmed",
		"consultation.started",
		"consultation.completed",
		"consultation.rated",
	}, names)
	assert.Equal(t, float64(5), items[4].(map[string]interface{})["payload"].(map[string]interface{})["rating"])
}

func TestAPI_ErrorMapping(t *testing.T) {
	f := newAPI(t)
	id := f.book(t)
	base := "/api/consultations/" + id
	stranger := uuid.New()

	cases := []struct {
		name   string
		method string
		path   string
		caller uuid.UUID
		body   interface{}
		want   int
	}{
		{"missing caller", http.MethodGet, base, uuid.Nil, nil, http.StatusUnauthorized},
		{"bad id", http.MethodGet, "/api/consultations/not-a-uuid", f.client, nil, http.StatusBadRequest},
		{"not found", http.MethodGet, "/api/consultations/" + uuid.NewString(), f.client, nil, http.StatusNotFound},
		{"stranger get", http.MethodGet, base, stranger, nil, http.StatusForbidden},
		{"stranger events", http.MethodGet, base + "/events", stranger, nil, http.StatusForbidden},
		{"stranger cancel", http.MethodPost, base + "/cancel", stranger, map[string]string{"reason": "x"}, http.StatusForbidden},
		{"client starts", http.MethodPost, base + "/start", f.client, nil, http.StatusForbidden},
		{"start pending", http.MethodPost, base + "/start", f.lawyer, nil, http.StatusConflict},
		{"empty reason", http.MethodPost, base + "/cancel", f.client, map[string]string{"reason": " "}, http.StatusBadRequest},
		{"rate pending", http.MethodPost, base + "/rate", f.client, map[string]int{"rating": 5}, http.StatusConflict},
		{"unknown field", http.MethodPost, base + "/cancel", f.client, map[string]string{"why": "x"}, http.StatusBadRequest},
		{"bad type", http.MethodPost, "/api/consultations", f.client, map[string]string{"lawyer_id": f.lawyer.String(), "type": "urgent"}, http.StatusBadRequest},
		{"scheduled without slot", http.MethodPost, "/api/consultations", f.client, map[string]string{"lawyer_id": f.lawyer.String(), "type": "scheduled"}, http.StatusBadRequest},
		{"slot start without end", http.MethodPost, "/api/consultations", f.client, map[string]string{"lawyer_id": f.lawyer.String(), "type": "emergency", "slot_start": "2030-01-15T10:00:00Z"}, http.StatusBadRequest},
		{"slot end without start", http.MethodPost, "/api/consultations", f.client, map[string]string{"lawyer_id": f.lawyer.String(), "type": "emergency", "slot_end": "2030-01-15T11:00:00Z"}, http.StatusBadRequest},
		{"unknown lawyer", http.MethodPost, "/api/consultations", f.client, map[string]string{"lawyer_id": uuid.NewString(), "type": "emergency"}, http.StatusBadRequest},
		{"bad webhook status", http.MethodPost, "/api/payments/webhook", uuid.Nil, map[string]string{"consultation_id": id, "status": "maybe"}, http.StatusBadRequest},
		{"webhook unknown consultation", http.MethodPost, "/api/payments/webhook", uuid.Nil, map[string]string{"consultation_id": uuid.NewString(), "status": "succeeded"}, http.StatusNotFound},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			status, body := f.do(t, tc.method, tc.path, tc.caller, tc.body)
			assert.Equal(t, tc.want, status, body)
			assert.NotEmpty(t, body["error"])
		})
	}
}

func TestAPI_LawyerBusy(t *testing.T) {
	f := newAPI(t)
	first := f.book(t)
	second := f.book(t)
	f.pay(t, first, "succeeded")
	f.pay(t, second, "succeeded")

	status, _ := f.do(t, http.MethodPost, "/api/consultations/"+first+"/confirm", f.lawyer, nil)
	require.Equal(t, http.StatusOK, status)

	status, body := f.do(t, http.MethodPost, "/api/consultations/"+second+"/confirm", f.lawyer, nil)
	assert.Equal(t, http.StatusConflict, status)
	assert.Contains(t, body["error"], "active consultation")
}

func TestAPI_FailedPaymentCancels(t *testing.T) {
	f := newAPI(t)
	id := f.book(t)
	f.pay(t, id, "failed")

	status, body := f.do(t, http.MethodGet, "/api/consultations/"+id, f.client, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "cancelled", body["status"])
	assert.Equal(t, service.PaymentFailedReason, body["cancellation_reason"])
	assert.Equal(t, f.client.String(), body["cancelled_by"])
}

func TestAPI_ScheduledBooking(t *testing.T) {
	f := newAPI(t)
	start := time.Date(2030, 1, 15, 10, 0, 0, 0, time.UTC)

	status, body := f.do(t, http.MethodPost, "/api/consultations", f.client, map[string]interface{}{
		"lawyer_id":  f.lawyer.String(),
		"type":       "scheduled",
		"slot_start": start,
		"slot_end":   start.Add(time.Hour),
	})
	require.Equal(t, http.StatusCreated, status, body)
	slot := body["slot"].(map[string]interface{})
	assert.Equal(t, "2030-01-15T10:00:00Z", slot["start"])

	status, _ = f.do(t, http.MethodPost, "/api/consultations", f.client, map[string]interface{}{
		"lawyer_id":  f.lawyer.String(),
		"type":       "scheduled",
		"slot_start": start,
		"slot_end":   start,
	})
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestAPI_Lists(t *testing.T) {
	f := newAPI(t)
	for i := 0; i < 3; i++ {
		f.book(t)
	}

	status, body := f.do(t, http.MethodGet, fmt.Sprintf("/api/clients/%s/consultations?limit=2", f.client), f.client, nil)
	require.Equal(t, http.StatusOK, status, body)
	assert.Equal(t, float64(3), body["total"])
	assert.Len(t, body["items"], 2)

	status, body = f.do(t, http.MethodGet, fmt.Sprintf("/api/lawyers/%s/consultations?status=pending", f.lawyer), f.lawyer, nil)
	require.Equal(t, http.StatusOK, status, body)
	assert.Equal(t, float64(3), body["total"])

	status, body = f.do(t, http.MethodGet, fmt.Sprintf("/api/lawyers/%s/consultations/pending?limit=1", f.lawyer), f.lawyer, nil)
	require.Equal(t, http.StatusOK, status, body)
	assert.Len(t, body["items"], 1)

	for _, q := range []string{"limit=0", "limit=101", "offset=-1", "limit=abc", "status=archived"} {
		status, _ := f.do(t, http.MethodGet, fmt.Sprintf("/api/clients/%s/consultations?%s", f.client, q), f.client, nil)
		assert.Equal(t, http.StatusBadRequest, status, q)
	}

	status, _ = f.do(t, http.MethodGet, fmt.Sprintf("/api/clients/%s/consultations", f.client), f.lawyer, nil)
	assert.Equal(t, http.StatusForbidden, status)
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, http.StatusConflict, statusFor(fmt.Errorf("wrap: %w", model.ErrConcurrencyConflict)))
	assert.Equal(t, http.StatusPaymentRequired, statusFor(model.ErrPaymentRequired))
	assert.Equal(t, http.StatusInternalServerError, statusFor(fmt.Errorf("connection refused")))
}
