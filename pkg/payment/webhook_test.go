package payment

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v82/webhook"

	"github.com/saasforge/backend/internal/domain"
)

const testSecret = "whsec_test_secret"

func sign(t *testing.T, payload string) (string, []byte) {
	t.Helper()
	signed := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload:   []byte(payload),
		Secret:    testSecret,
		Timestamp: time.Now(),
	})
	return signed.Header, signed.Payload
}

func subscriptionEvent(eventType, userID string) string {
	metadata := `{}`
	if userID != "" {
		metadata = fmt.Sprintf(`{"userId":%q}`, userID)
	}
	return fmt.Sprintf(`{
		"id": "evt_1",
		"object": "event",
		"type": %q,
		"created": 1700000100,
		"data": {"object": {
			"id": "sub_1",
			"object": "subscription",
			"status": "active",
			"metadata": %s,
			"cancel_at_period_end": false,
			"current_period_start": 1700000000,
			"current_period_end": 1702592000,
			"created": 1700000000,
			"ended_at": null,
			"canceled_at": null,
			"cancel_at": null,
			"items": {"data": [{"price": {"id": "price_basic"}, "quantity": 1}]}
		}}
	}`, eventType, metadata)
}

func TestVerifier_Subscription(t *testing.T) {
	header, body := sign(t, subscriptionEvent("customer.subscription.created", "u1"))

	ev, err := NewVerifier(testSecret).Verify(body, header)
	require.NoError(t, err)
	assert.Equal(t, "evt_1", ev.ID)
	assert.Equal(t, domain.EventSubscriptionCreated, ev.Type)

	snap, ok := ev.Payload.(*domain.SubscriptionSnapshot)
	require.True(t, ok, "payload should be a subscription snapshot")
	assert.Equal(t, "sub_1", snap.ID)
	assert.Equal(t, "u1", snap.UserID)
	assert.Equal(t, "active", snap.Status)
	assert.Equal(t, "price_basic", snap.PriceID)
	require.NotNil(t, snap.Quantity)
	assert.Equal(t, int64(1), *snap.Quantity)
	assert.Equal(t, "2023-11-14T22:13:20Z", snap.CurrentPeriodStart.Format(time.RFC3339))
	assert.Equal(t, "2023-12-14T22:13:20Z", snap.CurrentPeriodEnd.Format(time.RFC3339))
	assert.Nil(t, snap.EndedAt)
	assert.Nil(t, snap.CanceledAt)
	assert.Nil(t, snap.CancelAt)
}

func TestVerifier_SubscriptionWithoutUserIDStillDecodes(t *testing.T) {
	header, body := sign(t, subscriptionEvent("customer.subscription.updated", ""))

	ev, err := NewVerifier(testSecret).Verify(body, header)
	require.NoError(t, err)
	snap := ev.Payload.(*domain.SubscriptionSnapshot)
	assert.Empty(t, snap.UserID)
}

func TestVerifier_PeriodFromItems(t *testing.T) {
	payload := `{
		"id": "evt_2", "object": "event", "type": "customer.subscription.updated", "created": 1700000100,
		"data": {"object": {
			"id": "sub_1", "object": "subscription", "status": "trialing",
			"metadata": {"userId": "u1"}, "created": 1700000000,
			"items": {"data": [{"price": {"id": "price_basic"}, "quantity": 2,
				"current_period_start": 1700000000, "current_period_end": 1702592000}]}
		}}
	}`
	header, body := sign(t, payload)

	ev, err := NewVerifier(testSecret).Verify(body, header)
	require.NoError(t, err)
	snap := ev.Payload.(*domain.SubscriptionSnapshot)
	assert.Equal(t, int64(1702592000), snap.CurrentPeriodEnd.Unix())
	assert.Equal(t, int64(2), *snap.Quantity)
}

func TestVerifier_Rejections(t *testing.T) {
	header, body := sign(t, subscriptionEvent("customer.subscription.created", "u1"))

	t.Run("missing signature", func(t *testing.T) {
		_, err := NewVerifier(testSecret).Verify(body, "")
		assert.ErrorIs(t, err, ErrMissingSignature)
	})

	t.Run("wrong secret", func(t *testing.T) {
		_, err := NewVerifier("whsec_other").Verify(body, header)
		assert.ErrorIs(t, err, ErrInvalidSignature)
	})

	t.Run("tampered body", func(t *testing.T) {
		tampered := append([]byte{}, body...)
		tampered[len(tampered)-2] = ' '
		_, err := NewVerifier(testSecret).Verify(tampered, header)
		assert.ErrorIs(t, err, ErrInvalidSignature)
	})

	t.Run("garbage header", func(t *testing.T) {
		_, err := NewVerifier(testSecret).Verify(body, "not-a-signature")
		assert.ErrorIs(t, err, ErrInvalidSignature)
	})

	t.Run("expired timestamp", func(t *testing.T) {
		old := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
			Payload:   body,
			Secret:    testSecret,
			Timestamp: time.Now().Add(-time.Hour),
		})
		_, err := NewVerifier(testSecret).WithTolerance(5*time.Minute).Verify(old.Payload, old.Header)
		assert.ErrorIs(t, err, ErrInvalidSignature)
	})
}

func TestVerifier_MalformedKnownType(t *testing.T) {
	payload := `{
		"id": "evt_3", "object": "event", "type": "customer.subscription.created", "created": 1700000100,
		"data": {"object": {"id": "sub_1", "object": "subscription", "status": "active", "created": 1700000000,
			"items": {"data": []}}}
	}`
	header, body := sign(t, payload)

	_, err := NewVerifier(testSecret).Verify(body, header)
	assert.ErrorIs(t, err, ErrMalformedEvent)
}

func TestVerifier_UnknownTypeHasNoPayload(t *testing.T) {
	payload := `{"id": "evt_4", "object": "event", "type": "invoice.paid", "created": 1700000100,
		"data": {"object": {"id": "in_1", "object": "invoice"}}}`
	header, body := sign(t, payload)

	ev, err := NewVerifier(testSecret).Verify(body, header)
	require.NoError(t, err)
	assert.Equal(t, domain.EventType("invoice.paid"), ev.Type)
	assert.Nil(t, ev.Payload)
}

func TestVerifier_Price(t *testing.T) {
	payload := `{"id": "evt_5", "object": "event", "type": "price.updated", "created": 1700000100,
		"data": {"object": {"id": "price_basic", "object": "price", "product": {"id": "prod_1", "object": "product"},
			"active": true, "currency": "usd", "nickname": "Monthly", "type": "recurring", "unit_amount": 1500,
			"recurring": {"interval": "month", "interval_count": 1, "trial_period_days": 14}}}}`
	header, body := sign(t, payload)

	ev, err := NewVerifier(testSecret).Verify(body, header)
	require.NoError(t, err)
	p, ok := ev.Payload.(*domain.PriceSnapshot)
	require.True(t, ok)
	assert.Equal(t, "prod_1", p.ProductID)
	assert.Equal(t, "month", *p.Interval)
	assert.Equal(t, int64(14), *p.TrialPeriodDays)
	assert.Equal(t, "Monthly", *p.Description)
}

func TestVerifier_RecurringPriceRequiresInterval(t *testing.T) {
	payload := `{"id": "evt_6", "object": "event", "type": "price.created", "created": 1700000100,
		"data": {"object": {"id": "price_basic", "object": "price", "product": "prod_1",
			"active": true, "currency": "usd", "type": "recurring", "unit_amount": 1500}}}`
	header, body := sign(t, payload)

	_, err := NewVerifier(testSecret).Verify(body, header)
	assert.ErrorIs(t, err, ErrMalformedEvent)
}

func TestVerifier_Product(t *testing.T) {
	payload := `{"id": "evt_7", "object": "event", "type": "product.created", "created": 1700000100,
		"data": {"object": {"id": "prod_1", "object": "product", "name": "Pro", "active": true,
			"images": ["https://cdn.example.com/pro.png"]}}}`
	header, body := sign(t, payload)

	ev, err := NewVerifier(testSecret).Verify(body, header)
	require.NoError(t, err)
	p, ok := ev.Payload.(*domain.ProductSnapshot)
	require.True(t, ok)
	assert.Equal(t, "Pro", p.Name)
	assert.Equal(t, "https://cdn.example.com/pro.png", *p.ImageURL)
}

func TestDecodeObject(t *testing.T) {
	var w struct {
		ID string `json:"id"`
	}
	require.NoError(t, decodeObject([]byte(` {"id":"sub_1","livemode":false,"extra":{"x":1}}`), &w))
	assert.Equal(t, "sub_1", w.ID)

	for _, raw := range []string{``, `null`, `[]`, `"sub_1"`} {
		assert.Error(t, decodeObject([]byte(raw), &w), raw)
	}
}
