// Package billing decides when finished work becomes invoiceable.
//
// Milestones and billable tasks move pending -> triggered -> invoiced.
// Completion auto-triggers when an amount is known; an explicit status in
// the same request always wins over the automatic flip.
package billing

import "fmt"

// Status is the billing state of a milestone or task.
type Status string

const (
	StatusPending   Status = "pending"
	StatusTriggered Status = "triggered"
	StatusInvoiced  Status = "invoiced"
)

var validStatuses = map[Status]bool{
	StatusPending:   true,
	StatusTriggered: true,
	StatusInvoiced:  true,
}

// ValidateStatus returns an error if s is not a known billing status.
func ValidateStatus(s Status) error {
	if !validStatuses[s] {
		return fmt.Errorf("invalid billing status %q: must be one of: pending, triggered, invoiced", s)
	}
	return nil
}
