package main

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/okian/trialeval/internal/domain/model"
)

// printStyles are the terminal styles used by table output.
type printStyles struct {
	header lipgloss.Style
	dim    lipgloss.Style
	pass   lipgloss.Style
	fail   lipgloss.Style
	badge  lipgloss.Style
	tiers  map[model.Tier]lipgloss.Style
}

func newPrintStyles() printStyles {
	color := func(c string) lipgloss.Style {
		return lipgloss.NewStyle().Foreground(lipgloss.Color(c))
	}
	return printStyles{
		header: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12")), // blue
		dim:    color("8"),                                                      // gray
		pass:   color("10"),                                                     // green
		fail:   color("9"),                                                      // red
		badge:  lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("11")), // yellow
		tiers: map[model.Tier]lipgloss.Style{
			model.TierExcellent:        color("10"),
			model.TierGood:             color("14"),
			model.TierSatisfactory:     color("11"),
			model.TierNeedsImprovement: color("208"),
			model.TierPoor:             color("9"),
		},
	}
}

// tier renders t padded to width in its tier color.
func (s printStyles) tier(t model.Tier, width int) string {
	st, ok := s.tiers[t]
	if !ok {
		st = s.dim
	}
	return st.Width(width).Render(string(t))
}

// verdict renders a pass/fail marker.
func (s printStyles) verdict(passed bool) string {
	if passed {
		return s.pass.Render("PASS")
	}
	return s.fail.Render("FAIL")
}
