package model

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
)

type Provider string

const (
	ProviderNone   Provider = ""
	ProviderStripe Provider = "stripe"
	ProviderCreem  Provider = "creem"
)

// ParseProvider normalises user/admin input. Unknown values yield ProviderNone.
func ParseProvider(s string) Provider {
	switch Provider(strings.ToLower(strings.TrimSpace(s))) {
	case ProviderStripe:
		return ProviderStripe
	case ProviderCreem:
		return ProviderCreem
	default:
		return ProviderNone
	}
}

func (p Provider) Valid() bool { return p == ProviderStripe || p == ProviderCreem }

type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "pending"   // checkout session created, awaiting provider
	OrderStatusCompleted OrderStatus = "completed" // paid and settled
	OrderStatusFailed    OrderStatus = "failed"    // provider reported a failed payment
	OrderStatusCancelled OrderStatus = "cancelled" // provider-side checkout expired or cancelled
	OrderStatusExpired   OrderStatus = "expired"   // local sweep: expiredAt passed while pending
)

// IsTerminal reports whether no further transition is allowed.
func (s OrderStatus) IsTerminal() bool {
	switch s {
	case OrderStatusCompleted, OrderStatusFailed, OrderStatusCancelled, OrderStatusExpired:
		return true
	}
	return false
}

type ProductType string

const (
	ProductTypeSubscription ProductType = "subscription"
	ProductTypeCredits      ProductType = "credits"
	ProductTypeOneTime      ProductType = "one_time"
)

// Order is one attempted purchase. It is never deleted.
type Order struct {
	ID                    string
	OrderNumber           string
	UserID                string
	PaymentProvider       Provider
	Amount                int64 // minor units
	Currency              string
	ProductType           ProductType
	ProductID             string
	ProductName           string
	Credits               int64
	Interval              Interval
	ValidMonths           int
	Status                OrderStatus
	StripeSessionID       *string
	StripePaymentIntentID *string
	CreemCheckoutID       *string
	CreemPaymentID        *string
	PaidEmail             *string
	CreatedAt             time.Time
	UpdatedAt             time.Time
	PaidAt                *time.Time
	ExpiredAt             time.Time
	Metadata              map[string]any
}

// NewOrderID returns an opaque internal id.
func NewOrderID() string { return uuid.NewString() }

// NewOrderNumber returns a human-readable, time-sortable order number.
func NewOrderNumber(now time.Time) string {
	return fmt.Sprintf("ORD-%s", ulid.MustNew(ulid.Timestamp(now), ulid.DefaultEntropy()).String())
}

// ExternalID returns the provider checkout reference carried by the order.
func (o *Order) ExternalID() string {
	switch o.PaymentProvider {
	case ProviderStripe:
		if o.StripeSessionID != nil {
			return *o.StripeSessionID
		}
	case ProviderCreem:
		if o.CreemCheckoutID != nil {
			return *o.CreemCheckoutID
		}
	}
	return ""
}

// SetExternalID stores the checkout reference in the column that matches the provider.
func (o *Order) SetExternalID(id string) {
	switch o.PaymentProvider {
	case ProviderStripe:
		o.StripeSessionID = &id
	case ProviderCreem:
		o.CreemCheckoutID = &id
	}
}

// OrderPatch carries the optional columns a transition may fill in.
// Nil fields are left untouched.
type OrderPatch struct {
	Status                *OrderStatus
	StripePaymentIntentID *string
	CreemPaymentID        *string
	PaidEmail             *string
	PaidAt                *time.Time
	Metadata              map[string]any
}

// OrderStats is the operational summary of the order table.
type OrderStats struct {
	CountByStatus     map[OrderStatus]int64
	RevenueByCurrency map[string]int64 // completed orders only, minor units
}
