package main

import (
	"github.com/charmbracelet/lipgloss"

	sig "trading-signals/internal/signal"
)

var (
	buyColor     = lipgloss.Color("#33cc33")
	sellColor    = lipgloss.Color("#cc3300")
	neutralColor = lipgloss.Color("#cccc00")

	titleStyle = lipgloss.NewStyle().Bold(true)
	labelStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#888888"))
)

// directionStyle colors a verdict or signal side. lipgloss drops the colors
// when stdout is not a terminal.
func directionStyle(d sig.Direction) lipgloss.Style {
	s := lipgloss.NewStyle().Bold(true)
	switch d {
	case sig.Buy:
		return s.Foreground(buyColor)
	case sig.Sell:
		return s.Foreground(sellColor)
	default:
		return s.Foreground(neutralColor)
	}
}
