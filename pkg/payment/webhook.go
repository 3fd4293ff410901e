package payment

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stripe/stripe-go/v82/webhook"

	"github.com/saasforge/backend/internal/domain"
)

// SignatureHeader is the request header carrying the webhook signature.
const SignatureHeader = "Stripe-Signature"

// Verification failures. Callers answer all of them with a client error.
var (
	ErrMissingSignature = errors.New("missing webhook signature")
	ErrInvalidSignature = errors.New("invalid webhook signature")
	ErrMalformedEvent   = errors.New("malformed webhook event")
)

// Verifier authenticates webhook deliveries and decodes them into
// domain.Event values. Nothing in the body is trusted before the signature
// over the raw bytes has been checked.
type Verifier struct {
	secret    string
	tolerance time.Duration
	validate  *validator.Validate
}

// NewVerifier creates a Verifier for the endpoint's signing secret.
func NewVerifier(secret string) *Verifier {
	return &Verifier{
		secret:    secret,
		tolerance: webhook.DefaultTolerance,
		validate:  validator.New(),
	}
}

// WithTolerance overrides how old a signed timestamp may be.
func (v *Verifier) WithTolerance(d time.Duration) *Verifier {
	v.tolerance = d
	return v
}

// Verify checks the signature and returns the decoded event. Unknown event
// types decode to an Event with a nil Payload.
func (v *Verifier) Verify(payload []byte, signature string) (*domain.Event, error) {
	if strings.TrimSpace(signature) == "" {
		return nil, ErrMissingSignature
	}

	ev, err := webhook.ConstructEventWithOptions(payload, signature, v.secret, webhook.ConstructEventOptions{
		Tolerance:                v.tolerance,
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		if isSignatureError(err) {
			return nil, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
		}
		return nil, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}
	if ev.ID == "" || ev.Type == "" {
		return nil, fmt.Errorf("%w: missing event id or type", ErrMalformedEvent)
	}

	event := &domain.Event{
		ID:      ev.ID,
		Type:    domain.EventType(ev.Type),
		Created: domain.UnixTime(ev.Created),
	}

	family := domain.FamilyOf(event.Type)
	if family == domain.FamilyUnknown {
		return event, nil
	}
	if ev.Data == nil || len(ev.Data.Raw) == 0 {
		return nil, fmt.Errorf("%w: %s has no data object", ErrMalformedEvent, ev.Type)
	}

	switch family {
	case domain.FamilySubscription:
		event.Payload, err = v.decodeSubscription(ev.Data.Raw)
	case domain.FamilyPrice:
		event.Payload, err = v.decodePrice(ev.Data.Raw)
	case domain.FamilyProduct:
		event.Payload, err = v.decodeProduct(ev.Data.Raw)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %s %s: %v", ErrMalformedEvent, ev.Type, ev.ID, err)
	}
	return event, nil
}

func isSignatureError(err error) bool {
	return errors.Is(err, webhook.ErrNotSigned) ||
		errors.Is(err, webhook.ErrInvalidHeader) ||
		errors.Is(err, webhook.ErrNoValidSignature) ||
		errors.Is(err, webhook.ErrTooOld)
}

type wireSubscription struct {
	ID                 string            `json:"id" validate:"required"`
	Object             string            `json:"object" validate:"omitempty,eq=subscription"`
	Status             string            `json:"status" validate:"required"`
	Metadata           map[string]string `json:"metadata"`
	CancelAtPeriodEnd  bool              `json:"cancel_at_period_end"`
	CurrentPeriodStart int64             `json:"current_period_start"`
	CurrentPeriodEnd   int64             `json:"current_period_end"`
	Created            int64             `json:"created" validate:"gt=0"`
	EndedAt            int64             `json:"ended_at"`
	CanceledAt         int64             `json:"canceled_at"`
	CancelAt           int64             `json:"cancel_at"`
	Items              wireItemList      `json:"items"`
}

type wireItemList struct {
	Data []wireSubscriptionItem `json:"data" validate:"min=1,dive"`
}

// Newer API versions report the billing period per item rather than on the
// subscription itself.
type wireSubscriptionItem struct {
	Price              wirePriceRef `json:"price"`
	Quantity           *int64       `json:"quantity"`
	CurrentPeriodStart int64        `json:"current_period_start"`
	CurrentPeriodEnd   int64        `json:"current_period_end"`
}

type wirePriceRef struct {
	ID string `json:"id" validate:"required"`
}

func (v *Verifier) decodeSubscription(raw json.RawMessage) (*domain.SubscriptionSnapshot, error) {
	var w wireSubscription
	if err := decodeObject(raw, &w); err != nil {
		return nil, err
	}
	if err := v.validate.Struct(&w); err != nil {
		return nil, err
	}

	item := w.Items.Data[0]
	start, end := w.CurrentPeriodStart, w.CurrentPeriodEnd
	if start == 0 && end == 0 {
		start, end = item.CurrentPeriodStart, item.CurrentPeriodEnd
	}
	if start <= 0 || end <= 0 {
		return nil, errors.New("subscription has no current period")
	}

	return &domain.SubscriptionSnapshot{
		ID:                 w.ID,
		UserID:             strings.TrimSpace(w.Metadata[MetadataUserID]),
		Status:             w.Status,
		PriceID:            item.Price.ID,
		Quantity:           item.Quantity,
		CancelAtPeriodEnd:  w.CancelAtPeriodEnd,
		CurrentPeriodStart: domain.UnixTime(start),
		CurrentPeriodEnd:   domain.UnixTime(end),
		Created:            domain.UnixTime(w.Created),
		EndedAt:            domain.UnixTimePtr(w.EndedAt),
		CanceledAt:         domain.UnixTimePtr(w.CanceledAt),
		CancelAt:           domain.UnixTimePtr(w.CancelAt),
	}, nil
}

type wirePrice struct {
	ID         string         `json:"id" validate:"required"`
	Object     string         `json:"object" validate:"omitempty,eq=price"`
	Product    expandableID   `json:"product" validate:"required"`
	Active     bool           `json:"active"`
	Currency   string         `json:"currency" validate:"required"`
	Nickname   *string        `json:"nickname"`
	Type       string         `json:"type" validate:"required,oneof=one_time recurring"`
	UnitAmount *int64         `json:"unit_amount"`
	Recurring  *wireRecurring `json:"recurring" validate:"required_if=Type recurring"`
}

type wireRecurring struct {
	Interval        string `json:"interval" validate:"required"`
	IntervalCount   *int64 `json:"interval_count"`
	TrialPeriodDays *int64 `json:"trial_period_days"`
}

func (v *Verifier) decodePrice(raw json.RawMessage) (*domain.PriceSnapshot, error) {
	var w wirePrice
	if err := decodeObject(raw, &w); err != nil {
		return nil, err
	}
	if err := v.validate.Struct(&w); err != nil {
		return nil, err
	}

	p := &domain.PriceSnapshot{
		ID:          w.ID,
		ProductID:   string(w.Product),
		Active:      w.Active,
		Currency:    w.Currency,
		Description: w.Nickname,
		Type:        w.Type,
		UnitAmount:  w.UnitAmount,
	}
	if w.Recurring != nil {
		interval := w.Recurring.Interval
		p.Interval = &interval
		p.IntervalCount = w.Recurring.IntervalCount
		p.TrialPeriodDays = w.Recurring.TrialPeriodDays
	}
	return p, nil
}

type wireProduct struct {
	ID          string   `json:"id" validate:"required"`
	Object      string   `json:"object" validate:"omitempty,eq=product"`
	Name        string   `json:"name" validate:"required"`
	Description *string  `json:"description"`
	Images      []string `json:"images"`
	Active      bool     `json:"active"`
}

func (v *Verifier) decodeProduct(raw json.RawMessage) (*domain.ProductSnapshot, error) {
	var w wireProduct
	if err := decodeObject(raw, &w); err != nil {
		return nil, err
	}
	if err := v.validate.Struct(&w); err != nil {
		return nil, err
	}

	p := &domain.ProductSnapshot{
		ID:          w.ID,
		Name:        w.Name,
		Description: w.Description,
		Active:      w.Active,
	}
	if len(w.Images) > 0 {
		img := w.Images[0]
		p.ImageURL = &img
	}
	return p, nil
}

// expandableID accepts either an object id or the expanded object.
type expandableID string

func (e *expandableID) UnmarshalJSON(b []byte) error {
	if bytes.Equal(b, []byte("null")) {
		*e = ""
		return nil
	}
	var id string
	if err := json.Unmarshal(b, &id); err == nil {
		*e = expandableID(id)
		return nil
	}
	var obj struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(b, &obj); err != nil {
		return fmt.Errorf("expected id or object: %w", err)
	}
	*e = expandableID(obj.ID)
	return nil
}

// decodeObject decodes raw into v after checking it is a JSON object. Unknown fields are ignored.
func decodeObject(raw json.RawMessage, v any) error {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return errors.New("data object is not a JSON object")
	}
	return json.Unmarshal(trimmed, v)
}
