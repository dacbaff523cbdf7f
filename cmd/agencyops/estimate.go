package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/HendryAvila/agencyops/internal/billing"
	"github.com/HendryAvila/agencyops/internal/estimate"
)

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39"))
	headerStyle = lipgloss.NewStyle().Bold(true).Width(10)
	cellStyle   = lipgloss.NewStyle().Width(10)
	chosenStyle = lipgloss.NewStyle().Width(10).Foreground(lipgloss.Color("226"))
	dimStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

func estimateCmd() *cobra.Command {
	var (
		energy  int
		mystery string
		actual  int
		rate    string
		kind    string
	)
	cmd := &cobra.Command{
		Use:   "estimate",
		Short: "Print low/mid/high estimates for an energy level",
		Long: `Print the four billing figures for a task of the given energy level and
mystery factor, and their price when an hourly rate is given.

  agencyops estimate --energy 3 --mystery average --rate 95`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var e *int
			if cmd.Flags().Changed("energy") {
				if err := estimate.ValidateEnergy(energy); err != nil {
					return err
				}
				e = &energy
			}
			m, err := estimate.ParseMysteryFactor(mystery)
			if err != nil {
				return err
			}
			k, err := estimate.ParseKind(kind)
			if err != nil {
				return err
			}
			var hourly decimal.NullDecimal
			if rate != "" {
				d, err := decimal.NewFromString(rate)
				if err != nil {
					return fmt.Errorf("--rate must be a decimal amount: %w", err)
				}
				hourly = decimal.NewNullDecimal(d)
			}
			if actual < 0 {
				return fmt.Errorf("--actual must not be negative")
			}
			renderEstimate(cmd.OutOrStdout(), e, m, estimate.BillingEstimates(e, m, actual), hourly, k)
			return nil
		},
	}
	cmd.Flags().IntVar(&energy, "energy", 0, "Energy level 1-8")
	cmd.Flags().StringVar(&mystery, "mystery", "none", "Mystery factor: none, average, significant, no_idea")
	cmd.Flags().IntVar(&actual, "actual", 0, "Minutes already logged")
	cmd.Flags().StringVar(&rate, "rate", "", "Hourly rate used to price each figure")
	cmd.Flags().StringVar(&kind, "kind", "mid", "Figure used for billing: actual, low, mid, high")
	return cmd
}

func renderEstimate(w io.Writer, energy *int, m estimate.MysteryFactor, est estimate.Estimates, rate decimal.NullDecimal, chosen estimate.Kind) {
	title := "Estimate without energy level"
	if energy != nil {
		title = fmt.Sprintf("Energy %d (%s), mystery %s", *energy, estimate.EnergyLabel(*energy), m.Label())
	}
	fmt.Fprintln(w, titleStyle.Render(title))

	kinds := []estimate.Kind{estimate.KindLow, estimate.KindMid, estimate.KindHigh, estimate.KindActual}
	row := func(label string, cell func(estimate.Kind) string) {
		cells := []string{headerStyle.Render(label)}
		for _, k := range kinds {
			style := cellStyle
			if k == chosen {
				style = chosenStyle
			}
			cells = append(cells, style.Render(cell(k)))
		}
		fmt.Fprintln(w, lipgloss.JoinHorizontal(lipgloss.Top, cells...))
	}

	row("", func(k estimate.Kind) string { return strings.ToUpper(string(k)) })
	row("time", func(k estimate.Kind) string { return estimate.FormatDuration(est.Pick(k)) })
	if rate.Valid {
		row("amount", func(k estimate.Kind) string {
			a := billing.Amount(decimal.NullDecimal{}, est, rate, k)
			if !a.Valid {
				return "-"
			}
			return a.Decimal.StringFixed(2)
		})
	}
	fmt.Fprintln(w, dimStyle.Render(fmt.Sprintf("billing uses %s", chosen)))
}
