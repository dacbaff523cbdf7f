package billing

// TaskSnapshot is what batch validation needs to know about a task.
type TaskSnapshot struct {
	Invoiced bool
	Done     bool
}

// Batch names the milestones and tasks to invoice together.
type Batch struct {
	MilestoneIDs []string `json:"milestone_ids"`
	TaskIDs      []string `json:"task_ids"`
}

// Normalize drops repeated IDs, keeping first-seen order.
func (b Batch) Normalize() Batch {
	return Batch{MilestoneIDs: dedupe(b.MilestoneIDs), TaskIDs: dedupe(b.TaskIDs)}
}

// BatchResult summarizes an applied batch invoice.
type BatchResult struct {
	MilestonesUpdated int    `json:"milestones_updated"`
	TasksUpdated      int    `json:"tasks_updated"`
	TotalUpdated      int    `json:"total_updated"`
	InvoicedAt        string `json:"invoiced_at"`
	InvoicedBy        string `json:"invoiced_by"`
}

// CheckBatch validates every target of b against what was found in the
// store and collects all problems at once. milestones maps found IDs to
// their billing status; tasks maps found IDs to their snapshot. A nil
// return means every target can be invoiced.
func CheckBatch(b Batch, milestones map[string]Status, tasks map[string]TaskSnapshot) error {
	verr := &ValidationError{}
	if len(b.MilestoneIDs) == 0 && len(b.TaskIDs) == 0 {
		verr.Message = "at least one milestone or task ID is required"
		return verr
	}

	for _, id := range b.MilestoneIDs {
		st, ok := milestones[id]
		switch {
		case !ok:
			verr.MilestonesNotFound = append(verr.MilestonesNotFound, id)
		case st != StatusTriggered:
			verr.MilestonesNotTriggered = append(verr.MilestonesNotTriggered, id)
		}
	}
	for _, id := range b.TaskIDs {
		snap, ok := tasks[id]
		switch {
		case !ok:
			verr.TasksNotFound = append(verr.TasksNotFound, id)
		case snap.Invoiced:
			verr.TasksAlreadyInvoiced = append(verr.TasksAlreadyInvoiced, id)
		case !snap.Done:
			verr.TasksNotDone = append(verr.TasksNotDone, id)
		}
	}

	if verr.empty() {
		return nil
	}
	return verr
}

// InvoiceForBatch stamps r as invoiced. Batch validation has already
// checked the preconditions.
func InvoiceForBatch(r *Record, actor, now string) {
	r.invoice(actor, now)
}

func dedupe(ids []string) []string {
	if len(ids) == 0 {
		return nil
	}
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}
