package estimate

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// TaskEffort is the slice of a task the project rollup needs.
type TaskEffort struct {
	Done             bool
	Abandoned        bool
	Energy           *int
	Mystery          MysteryFactor
	EstimatedMinutes *int
}

// ProjectEstimates summarises effort across a project's tasks.
type ProjectEstimates struct {
	EstimatedHoursMin      decimal.Decimal `json:"estimated_hours_min"`
	EstimatedHoursMax      decimal.Decimal `json:"estimated_hours_max"`
	EstimatedRange         string          `json:"estimated_range"`
	TimeSpentMinutes       int             `json:"time_spent_minutes"`
	TaskCount              int             `json:"task_count"`
	CompletedTaskCount     int             `json:"completed_task_count"`
	TotalEnergyMinutes     int             `json:"total_energy_minutes"`
	CompletedEnergyMinutes int             `json:"completed_energy_minutes"`
	ProgressPercent        int             `json:"progress_percent"`
}

// ProjectRollup adds up remaining and completed effort. Abandoned tasks
// count towards TaskCount only. Tasks without energy fall back to their
// manual minute estimate for both bounds.
func ProjectRollup(tasks []TaskEffort, timeSpentMinutes int) ProjectEstimates {
	var remainingMin, remainingMax, completed, completedCount int

	for _, t := range tasks {
		switch {
		case t.Done:
			completedCount++
			if hasEnergy(t.Energy) {
				completed += BaseMinutes(float64(*t.Energy))
			} else if t.EstimatedMinutes != nil {
				completed += *t.EstimatedMinutes
			}
		case t.Abandoned:
		default:
			if hasEnergy(t.Energy) {
				base := BaseMinutes(float64(*t.Energy))
				remainingMin += base
				remainingMax += weighted(base, t.Mystery)
			} else if t.EstimatedMinutes != nil {
				remainingMin += *t.EstimatedMinutes
				remainingMax += *t.EstimatedMinutes
			}
		}
	}

	total := completed + remainingMin
	hoursMin := toHours(remainingMin + completed)
	hoursMax := toHours(remainingMax + completed)

	rng := fmt.Sprintf("%s-%s hrs", hoursMin, hoursMax)
	if hoursMin.Equal(hoursMax) {
		rng = fmt.Sprintf("%s hrs", hoursMin)
	}

	progress := 0
	if total > 0 {
		progress = roundInt(decimal.NewFromInt(int64(completed)).
			Div(decimal.NewFromInt(int64(total))).
			Mul(decimal.NewFromInt(100)))
	}

	return ProjectEstimates{
		EstimatedHoursMin:      hoursMin,
		EstimatedHoursMax:      hoursMax,
		EstimatedRange:         rng,
		TimeSpentMinutes:       timeSpentMinutes,
		TaskCount:              len(tasks),
		CompletedTaskCount:     completedCount,
		TotalEnergyMinutes:     total,
		CompletedEnergyMinutes: completed,
		ProgressPercent:        progress,
	}
}

// toHours converts minutes to hours rounded to one decimal place.
func toHours(minutes int) decimal.Decimal {
	return decimal.NewFromInt(int64(minutes)).Div(decimal.NewFromInt(60)).Round(1)
}
