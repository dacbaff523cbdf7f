package billing_test

import (
	"errors"
	"slices"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/HendryAvila/agencyops/internal/billing"
	"github.com/HendryAvila/agencyops/internal/estimate"
)

const now = "2026-03-01T10:00:00Z"

func amount(s string) decimal.NullDecimal {
	return decimal.NewNullDecimal(decimal.RequireFromString(s))
}

func statusPtr(s billing.Status) *billing.Status { return &s }

func TestPlanMilestoneUpdate(t *testing.T) {
	tests := []struct {
		name        string
		rec         billing.Record
		change      billing.MilestoneChange
		wantStatus  billing.Status
		wantAuto    bool
		wantTrigger bool
		wantInvoice bool
	}{
		{
			name:        "completion auto-triggers pending with amount",
			rec:         billing.Record{BillingStatus: billing.StatusPending, BillingAmount: amount("2500")},
			change:      billing.MilestoneChange{Completing: true},
			wantStatus:  billing.StatusTriggered,
			wantAuto:    true,
			wantTrigger: true,
		},
		{
			name:       "completion without amount stays pending",
			rec:        billing.Record{BillingStatus: billing.StatusPending},
			change:     billing.MilestoneChange{Completing: true},
			wantStatus: billing.StatusPending,
		},
		{
			name:       "amount set in the same request does not auto-trigger",
			rec:        billing.Record{BillingStatus: billing.StatusPending},
			change:     billing.MilestoneChange{Completing: true, Amount: func() *decimal.NullDecimal { a := amount("10"); return &a }()},
			wantStatus: billing.StatusPending,
		},
		{
			name:       "explicit pending beats auto-trigger",
			rec:        billing.Record{BillingStatus: billing.StatusPending, BillingAmount: amount("2500")},
			change:     billing.MilestoneChange{Completing: true, Status: statusPtr(billing.StatusPending)},
			wantStatus: billing.StatusPending,
		},
		{
			name:        "explicit invoiced from pending stamps invoice only",
			rec:         billing.Record{BillingStatus: billing.StatusPending, BillingAmount: amount("100")},
			change:      billing.MilestoneChange{Status: statusPtr(billing.StatusInvoiced)},
			wantStatus:  billing.StatusInvoiced,
			wantInvoice: true,
		},
		{
			name:        "explicit triggered from pending stamps trigger",
			rec:         billing.Record{BillingStatus: billing.StatusPending},
			change:      billing.MilestoneChange{Status: statusPtr(billing.StatusTriggered)},
			wantStatus:  billing.StatusTriggered,
			wantTrigger: true,
		},
		{
			name:       "completion of triggered milestone changes nothing",
			rec:        billing.Record{BillingStatus: billing.StatusTriggered, BillingAmount: amount("1")},
			change:     billing.MilestoneChange{Completing: true},
			wantStatus: billing.StatusTriggered,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := tt.rec
			auto, err := billing.PlanMilestoneUpdate(&rec, tt.change, "pm-1", now)
			if err != nil {
				t.Fatalf("PlanMilestoneUpdate: %v", err)
			}
			if auto != tt.wantAuto {
				t.Errorf("auto = %v, want %v", auto, tt.wantAuto)
			}
			if rec.BillingStatus != tt.wantStatus {
				t.Errorf("status = %s, want %s", rec.BillingStatus, tt.wantStatus)
			}
			if got := rec.TriggeredAt != nil && *rec.TriggeredByID == "pm-1"; got != tt.wantTrigger {
				t.Errorf("trigger stamped = %v, want %v", got, tt.wantTrigger)
			}
			if got := rec.InvoicedAt != nil && *rec.InvoicedByID == "pm-1"; got != tt.wantInvoice {
				t.Errorf("invoice stamped = %v, want %v", got, tt.wantInvoice)
			}
		})
	}
}

func TestPlanMilestoneUpdate_RejectsBadInput(t *testing.T) {
	rec := billing.Record{BillingStatus: billing.StatusPending}
	if _, err := billing.PlanMilestoneUpdate(&rec, billing.MilestoneChange{Status: statusPtr("paid")}, "pm", now); err == nil {
		t.Error("unknown status accepted")
	}
	neg := amount("-5")
	if _, err := billing.PlanMilestoneUpdate(&rec, billing.MilestoneChange{Amount: &neg}, "pm", now); err == nil {
		t.Error("negative amount accepted")
	}
}

func TestPlanTaskCompletion(t *testing.T) {
	tests := []struct {
		name     string
		rec      billing.Record
		billable bool
		want     bool
	}{
		{"billable pending with amount", billing.Record{BillingStatus: billing.StatusPending, BillingAmount: amount("50")}, true, true},
		{"not billable", billing.Record{BillingStatus: billing.StatusPending, BillingAmount: amount("50")}, false, false},
		{"no amount", billing.Record{BillingStatus: billing.StatusPending}, true, false},
		{"already triggered", billing.Record{BillingStatus: billing.StatusTriggered, BillingAmount: amount("50")}, true, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := tt.rec
			if got := billing.PlanTaskCompletion(&rec, tt.billable, "u", now); got != tt.want {
				t.Errorf("PlanTaskCompletion = %v, want %v", got, tt.want)
			}
			if tt.want && rec.BillingStatus != billing.StatusTriggered {
				t.Errorf("status = %s", rec.BillingStatus)
			}
		})
	}
}

func TestTriggerAndInvoice(t *testing.T) {
	rec := billing.Record{BillingStatus: billing.StatusPending, BillingAmount: amount("300")}

	if err := billing.Invoice(&rec, "admin", now); !errors.Is(err, billing.ErrNotBillable) {
		t.Fatalf("invoice pending: err = %v", err)
	}
	if err := billing.Trigger(&rec, "admin", now); err != nil {
		t.Fatalf("Trigger: %v", err)
	}
	if err := billing.Trigger(&rec, "admin", now); !errors.Is(err, billing.ErrNotBillable) {
		t.Fatalf("double trigger: err = %v", err)
	}
	if err := billing.Invoice(&rec, "admin", now); err != nil {
		t.Fatalf("Invoice: %v", err)
	}
	err := billing.Invoice(&rec, "admin", now)
	if err == nil || err.Error() != "not billable: already invoiced" {
		t.Fatalf("double invoice: err = %v", err)
	}

	empty := billing.Record{BillingStatus: billing.StatusPending}
	if err := billing.Trigger(&empty, "admin", now); !errors.Is(err, billing.ErrNotBillable) {
		t.Errorf("trigger without amount: err = %v", err)
	}
}

func TestCheckBatch_CollectsEveryProblem(t *testing.T) {
	b := billing.Batch{
		MilestoneIDs: []string{"m-ok", "m-missing", "m-pending"},
		TaskIDs:      []string{"t-ok", "t-missing", "t-invoiced", "t-open"},
	}
	milestones := map[string]billing.Status{
		"m-ok":      billing.StatusTriggered,
		"m-pending": billing.StatusPending,
	}
	tasks := map[string]billing.TaskSnapshot{
		"t-ok":       {Done: true},
		"t-invoiced": {Done: true, Invoiced: true},
		"t-open":     {},
	}

	err := billing.CheckBatch(b, milestones, tasks)
	var verr *billing.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("err = %v, want *ValidationError", err)
	}
	if !errors.Is(err, billing.ErrValidation) {
		t.Error("errors.Is(err, ErrValidation) = false")
	}
	if !verr.HasNotFound() {
		t.Error("HasNotFound = false")
	}
	checks := []struct {
		name string
		got  []string
		want []string
	}{
		{"milestones not found", verr.MilestonesNotFound, []string{"m-missing"}},
		{"milestones not triggered", verr.MilestonesNotTriggered, []string{"m-pending"}},
		{"tasks not found", verr.TasksNotFound, []string{"t-missing"}},
		{"tasks already invoiced", verr.TasksAlreadyInvoiced, []string{"t-invoiced"}},
		{"tasks not done", verr.TasksNotDone, []string{"t-open"}},
	}
	for _, c := range checks {
		if !slices.Equal(c.got, c.want) {
			t.Errorf("%s = %v, want %v", c.name, c.got, c.want)
		}
	}
}

func TestCheckBatch_EmptyAndClean(t *testing.T) {
	if err := billing.CheckBatch(billing.Batch{}, nil, nil); !errors.Is(err, billing.ErrValidation) {
		t.Errorf("empty batch: err = %v", err)
	}
	b := billing.Batch{MilestoneIDs: []string{"m"}, TaskIDs: []string{"t"}}
	err := billing.CheckBatch(b,
		map[string]billing.Status{"m": billing.StatusTriggered},
		map[string]billing.TaskSnapshot{"t": {Done: true}})
	if err != nil {
		t.Errorf("clean batch: err = %v", err)
	}
}

func TestBatchNormalize(t *testing.T) {
	b := billing.Batch{MilestoneIDs: []string{"a", "b", "a"}, TaskIDs: []string{"x", "x"}}.Normalize()
	if !slices.Equal(b.MilestoneIDs, []string{"a", "b"}) || !slices.Equal(b.TaskIDs, []string{"x"}) {
		t.Errorf("Normalize = %+v", b)
	}
}

func TestAmount(t *testing.T) {
	energy := 3
	est := estimate.BillingEstimates(&energy, estimate.MysteryAverage, 7)
	rate := amount("100")

	tests := []struct {
		name     string
		explicit decimal.NullDecimal
		rate     decimal.NullDecimal
		kind     estimate.Kind
		want     string
	}{
		{"mid", decimal.NullDecimal{}, rate, estimate.KindMid, "120"},
		{"high", decimal.NullDecimal{}, rate, estimate.KindHigh, "140"},
		{"low", decimal.NullDecimal{}, rate, estimate.KindLow, "100"},
		{"actual rounds to cents", decimal.NullDecimal{}, rate, estimate.KindActual, "11.67"},
		{"explicit wins", amount("999.99"), rate, estimate.KindMid, "999.99"},
		{"zero explicit falls through", amount("0"), rate, estimate.KindMid, "120"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := billing.Amount(tt.explicit, est, tt.rate, tt.kind)
			if !got.Valid || got.Decimal.String() != tt.want {
				t.Errorf("Amount = %v, want %s", got, tt.want)
			}
		})
	}

	if got := billing.Amount(decimal.NullDecimal{}, est, decimal.NullDecimal{}, estimate.KindMid); got.Valid {
		t.Errorf("no rate: Amount = %v, want invalid", got)
	}
}
