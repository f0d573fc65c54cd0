package model

import "time"

type Interval string

const (
	IntervalYear    Interval = "year"
	IntervalMonth   Interval = "month"
	IntervalOneTime Interval = "one-time"
)

func (i Interval) Valid() bool {
	return i == IntervalYear || i == IntervalMonth || i == IntervalOneTime
}

// IsSubscription reports whether the interval renews.
func (i Interval) IsSubscription() bool { return i == IntervalYear || i == IntervalMonth }

// ExpectedValidMonths returns the month count a subscription interval must carry.
// The second value is false for intervals that do not constrain it.
func (i Interval) ExpectedValidMonths() (int, bool) {
	switch i {
	case IntervalYear:
		return 12, true
	case IntervalMonth:
		return 1, true
	}
	return 0, false
}

const (
	// SubscriptionGrace is added to the expiry of renewing products.
	SubscriptionGrace = 24 * time.Hour
	// MinCheckoutWindow bounds the expiry of products without a validity period.
	MinCheckoutWindow = 24 * time.Hour
)

// PriceEntry is one row of the authoritative, server-controlled price table.
type PriceEntry struct {
	ProductID      string   `yaml:"product_id" json:"product_id"`
	ProductName    string   `yaml:"product_name" json:"product_name"`
	Amount         int64    `yaml:"amount" json:"amount"`
	Currency       string   `yaml:"currency" json:"currency"`
	Interval       Interval `yaml:"interval" json:"interval"`
	Credits        int64    `yaml:"credits" json:"credits"`
	ValidMonths    int      `yaml:"valid_months" json:"valid_months"`
	CreemProductID string   `yaml:"creem_product_id" json:"-"`
}

// ProductType derives the order product type from the entry.
func (p PriceEntry) ProductType() ProductType {
	switch {
	case p.Interval.IsSubscription():
		return ProductTypeSubscription
	case p.Credits > 0:
		return ProductTypeCredits
	default:
		return ProductTypeOneTime
	}
}

// ExpiresAt computes the order expiry for a purchase made at now.
func (p PriceEntry) ExpiresAt(now time.Time) time.Time {
	if p.ValidMonths <= 0 {
		return now.Add(MinCheckoutWindow)
	}
	exp := now.AddDate(0, p.ValidMonths, 0)
	if p.Interval.IsSubscription() {
		exp = exp.Add(SubscriptionGrace)
	}
	return exp
}
