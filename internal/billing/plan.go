package billing

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/HendryAvila/agencyops/internal/estimate"
)

// MilestoneChange is the billing-relevant part of a milestone edit. Nil
// fields are not part of the request.
type MilestoneChange struct {
	Status *Status
	Amount *decimal.NullDecimal
	// Completing is true when the request sets completed_at to a value.
	Completing bool
}

// PlanMilestoneUpdate applies ch to r and returns whether the completion
// auto-triggered billing. An explicit status always wins: the automatic
// flip only happens when the request carries no status, the milestone is
// pending and it already had an amount before this request.
func PlanMilestoneUpdate(r *Record, ch MilestoneChange, actor, now string) (bool, error) {
	prev := *r

	if ch.Amount != nil {
		if ch.Amount.Valid && !ch.Amount.Decimal.IsPositive() {
			return false, fmt.Errorf("billing amount must be positive, got %s", ch.Amount.Decimal)
		}
		r.BillingAmount = *ch.Amount
	}

	if ch.Status != nil {
		if err := ValidateStatus(*ch.Status); err != nil {
			return false, err
		}
		r.BillingStatus = *ch.Status
		if *ch.Status == StatusTriggered && prev.BillingStatus == StatusPending {
			r.trigger(actor, now)
		}
		if *ch.Status == StatusInvoiced && prev.BillingStatus != StatusInvoiced {
			r.invoice(actor, now)
		}
		return false, nil
	}

	if ch.Completing && prev.BillingStatus == StatusPending && prev.HasAmount() {
		r.trigger(actor, now)
		return true, nil
	}
	return false, nil
}

// PlanTaskCompletion flips a billable, pending task with an amount to
// triggered when it reaches done. It reports whether anything changed.
func PlanTaskCompletion(r *Record, billable bool, actor, now string) bool {
	if !billable || r.BillingStatus != StatusPending || !r.HasAmount() {
		return false
	}
	r.trigger(actor, now)
	return true
}

// Amount prices a task: an explicit positive amount wins, otherwise the
// chosen estimate in hours times the hourly rate, rounded to cents. The
// result is invalid when neither an amount nor a positive rate is known.
func Amount(explicit decimal.NullDecimal, est estimate.Estimates, rate decimal.NullDecimal, k estimate.Kind) decimal.NullDecimal {
	if explicit.Valid && explicit.Decimal.IsPositive() {
		return explicit
	}
	if !rate.Valid || !rate.Decimal.IsPositive() {
		return decimal.NullDecimal{}
	}
	minutes := decimal.NewFromInt(int64(est.Pick(k)))
	return decimal.NewNullDecimal(minutes.Mul(rate.Decimal).Div(decimal.NewFromInt(60)).Round(2))
}
