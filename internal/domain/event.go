package domain

import (
	"strings"
	"time"
)

// EventType is the provider's event type discriminator.
type EventType string

const (
	EventSubscriptionCreated EventType = "customer.subscription.created"
	EventSubscriptionUpdated EventType = "customer.subscription.updated"
	EventSubscriptionDeleted EventType = "customer.subscription.deleted"
	EventPriceCreated        EventType = "price.created"
	EventPriceUpdated        EventType = "price.updated"
	EventPriceDeleted        EventType = "price.deleted"
	EventProductCreated      EventType = "product.created"
	EventProductUpdated      EventType = "product.updated"
	EventProductDeleted      EventType = "product.deleted"
)

// Lifecycle is the last segment of an event type: created, updated or deleted.
type Lifecycle string

const (
	LifecycleCreated Lifecycle = "created"
	LifecycleUpdated Lifecycle = "updated"
	LifecycleDeleted Lifecycle = "deleted"
)

// Lifecycle returns the lifecycle step encoded in the event type.
func (t EventType) Lifecycle() Lifecycle {
	s := string(t)
	if i := strings.LastIndexByte(s, '.'); i >= 0 {
		return Lifecycle(s[i+1:])
	}
	return Lifecycle(s)
}

// EventFamily groups event types that share one handler.
type EventFamily string

const (
	FamilySubscription EventFamily = "subscription"
	FamilyPrice        EventFamily = "price"
	FamilyProduct      EventFamily = "product"
	FamilyUnknown      EventFamily = "unknown"
)

// FamilyOf returns the handler family for an event type.
func FamilyOf(t EventType) EventFamily {
	switch t {
	case EventSubscriptionCreated, EventSubscriptionUpdated, EventSubscriptionDeleted:
		return FamilySubscription
	case EventPriceCreated, EventPriceUpdated, EventPriceDeleted:
		return FamilyPrice
	case EventProductCreated, EventProductUpdated, EventProductDeleted:
		return FamilyProduct
	default:
		return FamilyUnknown
	}
}

// Event is a verified webhook delivery. Payload is nil for types this service
// does not handle; otherwise it is exactly one of *SubscriptionSnapshot,
// *PriceSnapshot or *ProductSnapshot.
type Event struct {
	ID      string
	Type    EventType
	Created time.Time
	Payload EventPayload
}

// EventPayload is implemented only by the snapshot types in this package.
type EventPayload interface {
	Family() EventFamily
	sealed()
}

// SubscriptionSnapshot is the full subscription state carried by a
// customer.subscription.* event. It is never a delta.
type SubscriptionSnapshot struct {
	ID                 string
	UserID             string
	Status             string
	PriceID            string
	Quantity           *int64
	CancelAtPeriodEnd  bool
	CurrentPeriodStart time.Time
	CurrentPeriodEnd   time.Time
	Created            time.Time
	EndedAt            *time.Time
	CanceledAt         *time.Time
	CancelAt           *time.Time
}

func (*SubscriptionSnapshot) Family() EventFamily { return FamilySubscription }
func (*SubscriptionSnapshot) sealed() {}

// PriceSnapshot is the price state carried by a price.* event.
type PriceSnapshot struct {
	ID              string
	ProductID       string
	Active          bool
	Currency        string
	Description     *string
	Type            string
	UnitAmount      *int64
	Interval        *string
	IntervalCount   *int64
	TrialPeriodDays *int64
}

func (*PriceSnapshot) Family() EventFamily { return FamilyPrice }
func (*PriceSnapshot) sealed() {}

// ProductSnapshot is the product state carried by a product.* event.
type ProductSnapshot struct {
	ID          string
	Name        string
	Description *string
	ImageURL    *string
	Active      bool
}

func (*ProductSnapshot) Family() EventFamily { return FamilyProduct }
func (*ProductSnapshot) sealed() {}

// UnixTime converts provider seconds to a UTC time.
func UnixTime(sec int64) time.Time {
	return time.Unix(sec, 0).UTC()
}

// UnixTimePtr converts optional provider seconds; zero means absent.
func UnixTimePtr(sec int64) *time.Time {
	if sec == 0 {
		return nil
	}
	t := UnixTime(sec)
	return &t
}
