package workflow

// projectTransitions is the project state table. cancelled is terminal.
var projectTransitions = map[ProjectStatus][]ProjectStatus{
	ProjectQuote:      {ProjectQueue, ProjectCancelled},
	ProjectQueue:      {ProjectReady, ProjectQuote, ProjectSuspended, ProjectCancelled},
	ProjectReady:      {ProjectInProgress, ProjectQueue, ProjectSuspended, ProjectCancelled},
	ProjectInProgress: {ProjectReview, ProjectReady, ProjectSuspended, ProjectCancelled},
	ProjectReview:     {ProjectDone, ProjectInProgress, ProjectSuspended},
	ProjectDone:       {ProjectInProgress},
	ProjectSuspended:  {ProjectQueue, ProjectReady, ProjectInProgress, ProjectCancelled},
	ProjectCancelled:  {},
}

// ValidNextProjectStatuses returns the statuses reachable from s.
func ValidNextProjectStatuses(s ProjectStatus) []ProjectStatus {
	next := projectTransitions[s]
	out := make([]ProjectStatus, len(next))
	copy(out, next)
	return out
}

// CanTransitionProject reports whether the table allows from -> to.
func CanTransitionProject(from, to ProjectStatus) bool {
	if from == to {
		return true
	}
	for _, s := range projectTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// ProjectTransition is the outcome of an accepted project status request.
type ProjectTransition struct {
	From           ProjectStatus
	To             ProjectStatus
	NoOp           bool
	StampCompleted bool
	ClearCompleted bool
}

// RequestProjectTransition validates a project status change.
func RequestProjectTransition(from, to ProjectStatus) (ProjectTransition, error) {
	if err := ValidateProjectStatus(to); err != nil {
		return ProjectTransition{}, &TransitionError{Entity: "project", From: string(from), To: string(to), Reason: err.Error()}
	}
	if from == to {
		return ProjectTransition{From: from, To: to, NoOp: true}, nil
	}
	if !CanTransitionProject(from, to) {
		return ProjectTransition{}, &TransitionError{Entity: "project", From: string(from), To: string(to)}
	}
	return ProjectTransition{
		From:           from,
		To:             to,
		StampCompleted: to == ProjectDone,
		ClearCompleted: from == ProjectDone,
	}, nil
}
