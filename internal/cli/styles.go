// Package cli provides terminal presentation for the toro commands: lipgloss
// styles, run summaries, progress and confirmation prompts.
package cli

import (
	"fmt"

	"github.com/Veraticus/toro/internal/model"
	"github.com/charmbracelet/lipgloss"
)

// Palette.
var (
	PrimaryColor = lipgloss.Color("#E07A5F")
	SuccessColor = lipgloss.Color("#81B29A")
	WarningColor = lipgloss.Color("#F2CC8F")
	ErrorColor   = lipgloss.Color("#E63946")
	InfoColor    = lipgloss.Color("#8ECAE6")
	SubtleColor  = lipgloss.Color("#666666")
)

var (
	// TitleStyle is used for section titles.
	TitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(PrimaryColor).
			MarginBottom(1)

	// BoxStyle frames summaries and traces.
	BoxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#333")).
			Padding(1, 2)

	// PromptStyle is used for confirmation questions.
	PromptStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(PrimaryColor)

	BoldStyle   = lipgloss.NewStyle().Bold(true)
	SubtleStyle = lipgloss.NewStyle().Foreground(SubtleColor)

	successStyle = lipgloss.NewStyle().Foreground(SuccessColor)
	warningStyle = lipgloss.NewStyle().Foreground(WarningColor)
	errorStyle   = lipgloss.NewStyle().Foreground(ErrorColor)
	infoStyle    = lipgloss.NewStyle().Foreground(InfoColor)
)

// Icons.
const (
	SuccessIcon = "✓"
	ErrorIcon   = "✗"
	WarningIcon = "⚠️"
	InfoIcon    = "ℹ️"
	BullIcon    = "🐂"
	ChartIcon   = "📊"
	LockIcon    = "🔒"
)

// Confidence bands used when coloring a confianza value.
const (
	HighConfidence = 85
	LowConfidence  = 60
)

// FormatSuccess formats a success message with icon.
func FormatSuccess(message string) string {
	return successStyle.Render(SuccessIcon + " " + message)
}

// FormatError formats an error message with icon.
func FormatError(message string) string {
	return errorStyle.Render(ErrorIcon + " " + message)
}

// FormatWarning formats a warning message with icon.
func FormatWarning(message string) string {
	return warningStyle.Render(WarningIcon + " " + message)
}

// FormatInfo formats an info message with icon.
func FormatInfo(message string) string {
	return infoStyle.Render(InfoIcon + " " + message)
}

// FormatTitle formats a title with the app icon.
func FormatTitle(title string) string {
	return TitleStyle.Render(BullIcon + " " + title)
}

// FormatPrompt formats a confirmation question.
func FormatPrompt(prompt string) string {
	return PromptStyle.Render(prompt + " → ")
}

// FormatConfidence colors a confianza value by band: green from HighConfidence,
// yellow from LowConfidence, red below.
func FormatConfidence(confianza int) string {
	text := fmt.Sprintf("%d", confianza)
	switch {
	case confianza >= HighConfidence:
		return successStyle.Render(text)
	case confianza >= LowConfidence:
		return warningStyle.Render(text)
	default:
		return errorStyle.Render(text)
	}
}

// FormatFuente renders a provenance value; manual classifications carry a lock.
func FormatFuente(f model.Fuente) string {
	switch f {
	case model.FuenteManual:
		return BoldStyle.Render(LockIcon + " " + f.String())
	case model.FuenteUnset, model.FuenteSinFuente:
		return SubtleStyle.Render(f.String())
	default:
		return f.String()
	}
}

// RenderBox renders content in a styled box.
func RenderBox(title, content string) string {
	boxTitle := TitleStyle.
		UnsetMargins().
		Render(title)

	return BoxStyle.Render(lipgloss.JoinVertical(lipgloss.Left, boxTitle, content))
}
