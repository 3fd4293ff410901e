package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saasforge/backend/internal/domain"
	"github.com/saasforge/backend/pkg/payment"
)

type stubVerifier struct {
	event *domain.Event
	err   error
	got   string
}

func (s *stubVerifier) Verify(payload []byte, signature string) (*domain.Event, error) {
	s.got = signature
	return s.event, s.err
}

type stubDispatcher struct {
	err    error
	events []*domain.Event
}

func (s *stubDispatcher) Dispatch(_ context.Context, event *domain.Event) error {
	s.events = append(s.events, event)
	return s.err
}

func newWebhookRequest(signature string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/api/stripe/webhook", strings.NewReader(`{"id":"evt_1"}`))
	if signature != "" {
		req.Header.Set(payment.SignatureHeader, signature)
	}
	return req
}

func TestWebhookHandler(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	event := &domain.Event{ID: "evt_1", Type: domain.EventSubscriptionCreated}

	tests := []struct {
		name       string
		verifyErr  error
		dispatch   error
		wantStatus int
		wantBody   string
		dispatched bool
	}{
		{name: "handled", wantStatus: http.StatusOK, wantBody: `"received":true`, dispatched: true},
		{name: "missing signature", verifyErr: payment.ErrMissingSignature, wantStatus: http.StatusBadRequest, wantBody: "Missing stripe-signature header"},
		{name: "bad signature", verifyErr: fmt.Errorf("%w: no match", payment.ErrInvalidSignature), wantStatus: http.StatusBadRequest, wantBody: "signature verification failed"},
		{name: "malformed", verifyErr: payment.ErrMalformedEvent, wantStatus: http.StatusBadRequest, wantBody: "Invalid webhook payload"},
		{name: "reconciliation failure", dispatch: domain.ErrMissingUserID, wantStatus: http.StatusBadRequest, wantBody: "Webhook handler failed", dispatched: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			verifier := &stubVerifier{event: event, err: tt.verifyErr}
			if tt.verifyErr != nil {
				verifier.event = nil
			}
			dispatcher := &stubDispatcher{err: tt.dispatch}
			h := NewWebhookHandler(verifier, dispatcher, logger)

			rec := httptest.NewRecorder()
			h.HandleStripe(rec, newWebhookRequest("t=1,v1=abc"))

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Contains(t, rec.Body.String(), tt.wantBody)
			assert.Equal(t, "t=1,v1=abc", verifier.got)
			if tt.dispatched {
				require.Len(t, dispatcher.events, 1)
				assert.Equal(t, "evt_1", dispatcher.events[0].ID)
			} else {
				assert.Empty(t, dispatcher.events)
			}
		})
	}
}

func TestErrorResponse(t *testing.T) {
	rec := httptest.NewRecorder()
	Error(rec, domain.ErrNotFound("no billing account found"))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "no billing account found", body["error"])

	rec = httptest.NewRecorder()
	Error(rec, fmt.Errorf("raw"))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "internal server error")
}
