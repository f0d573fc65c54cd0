package model

import (
	"fmt"
	"time"
)

type CreditTxType string

const (
	CreditTxPurchase CreditTxType = "purchase"
	CreditTxUsage    CreditTxType = "usage"
	CreditTxGift     CreditTxType = "gift"
	CreditTxRefund   CreditTxType = "refund"
	CreditTxBonus    CreditTxType = "bonus"
)

func (t CreditTxType) Valid() bool {
	switch t {
	case CreditTxPurchase, CreditTxUsage, CreditTxGift, CreditTxRefund, CreditTxBonus:
		return true
	}
	return false
}

// CreditTransaction is an append-only ledger entry. Amount is signed:
// positive grants, negative consumption.
type CreditTransaction struct {
	ID          string
	UserID      string
	Amount      int64
	Type        CreditTxType
	Description string
	ReferenceID string // unique; idempotency key
	Metadata    map[string]any
	CreatedAt   time.Time
}

// OrderSettlementRef is the reference id used when settling an order.
func OrderSettlementRef(orderID string) string { return "order:" + orderID }

// UsageRef is the reference id for a consumption without a client key.
func UsageRef(reason string, at time.Time) string {
	return fmt.Sprintf("usage:%s:%d", reason, at.UnixNano())
}
