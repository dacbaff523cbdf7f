package billing

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Record is the billing block shared by milestones and tasks.
type Record struct {
	BillingStatus Status              `json:"billing_status"`
	BillingAmount decimal.NullDecimal `json:"billing_amount"`
	TriggeredAt   *string             `json:"triggered_at,omitempty"`
	TriggeredByID *string             `json:"triggered_by_id,omitempty"`
	InvoicedAt    *string             `json:"invoiced_at,omitempty"`
	InvoicedByID  *string             `json:"invoiced_by_id,omitempty"`
}

// HasAmount reports whether a positive amount is recorded.
func (r *Record) HasAmount() bool {
	return r.BillingAmount.Valid && r.BillingAmount.Decimal.IsPositive()
}

func (r *Record) trigger(actor, now string) {
	r.BillingStatus = StatusTriggered
	r.TriggeredAt = &now
	r.TriggeredByID = &actor
}

func (r *Record) invoice(actor, now string) {
	r.BillingStatus = StatusInvoiced
	r.InvoicedAt = &now
	r.InvoicedByID = &actor
}

// Trigger flips a pending record with an amount to triggered.
func Trigger(r *Record, actor, now string) error {
	if !r.HasAmount() {
		return fmt.Errorf("%w: no billing amount", ErrNotBillable)
	}
	if r.BillingStatus != StatusPending {
		return fmt.Errorf("%w: billing is already %s", ErrNotBillable, r.BillingStatus)
	}
	r.trigger(actor, now)
	return nil
}

// Invoice flips a triggered record to invoiced.
func Invoice(r *Record, actor, now string) error {
	if !r.HasAmount() {
		return fmt.Errorf("%w: no billing amount", ErrNotBillable)
	}
	switch r.BillingStatus {
	case StatusTriggered:
		r.invoice(actor, now)
		return nil
	case StatusPending:
		return fmt.Errorf("%w: billing must be triggered before invoicing", ErrNotBillable)
	default:
		return fmt.Errorf("%w: already invoiced", ErrNotBillable)
	}
}
