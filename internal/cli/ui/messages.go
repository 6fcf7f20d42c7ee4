package ui

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"

	"github.com/conduit-lang/mapping/internal/mapping"
)

// Level is the severity of a message
type Level int

const (
	LevelError Level = iota
	LevelWarning
	LevelInfo
)

// Message is a diagnostic with optional details, suggestions and hints
type Message struct {
	Level       Level
	Context     string
	Problem     string
	Details     []string
	Suggestions []string
	Hints       []string
	NoColor     bool
}

// Format renders a message:
//
//	✗ TYPE NOT FOUND: Cannot find type 'Sales.Custmer'.
//
//	   Did you mean: Sales.Customer?
//
//	   → List all types: mapping inspect types
func Format(m Message) string {
	var b strings.Builder

	var headerColor, bodyColor *color.Color
	var symbol string
	switch m.Level {
	case LevelWarning:
		headerColor = newColor(m.NoColor, color.FgYellow, color.Bold)
		bodyColor = newColor(m.NoColor, color.FgYellow)
		symbol = "!"
	case LevelInfo:
		headerColor = newColor(m.NoColor, color.FgCyan, color.Bold)
		bodyColor = newColor(m.NoColor, color.FgCyan)
		symbol = "i"
	default:
		headerColor = newColor(m.NoColor, color.FgRed, color.Bold)
		bodyColor = newColor(m.NoColor, color.FgRed)
		symbol = "✗"
	}

	if m.Context != "" {
		headerColor.Fprintf(&b, "%s %s: %s\n", symbol, strings.ToUpper(m.Context), m.Problem)
	} else {
		headerColor.Fprintf(&b, "%s %s\n", symbol, m.Problem)
	}

	if len(m.Details) > 0 {
		b.WriteString("\n")
		for _, d := range m.Details {
			bodyColor.Fprintf(&b, "   - %s\n", strings.ReplaceAll(d, "\n", "\n     "))
		}
	}

	if len(m.Suggestions) > 0 {
		b.WriteString("\n")
		newColor(m.NoColor, color.FgYellow).Fprintf(&b, "   Did you mean: %s?\n", strings.Join(m.Suggestions, ", "))
	}

	if len(m.Hints) > 0 {
		b.WriteString("\n")
		hint := newColor(m.NoColor, color.FgCyan)
		for _, h := range m.Hints {
			hint.Fprintf(&b, "   → %s\n", h)
		}
	}

	return b.String()
}

// Write renders m to w
func Write(w io.Writer, m Message) {
	fmt.Fprint(w, Format(m))
}

// FormatSuccess renders a success line
func FormatSuccess(message string, noColor bool) string {
	return newColor(noColor, color.FgGreen, color.Bold).Sprintf("✓ %s", message)
}

// WriteSuccess writes a success line to w
func WriteSuccess(w io.Writer, message string, noColor bool) {
	fmt.Fprintln(w, FormatSuccess(message, noColor))
}

// TypeNotFound reports an unknown type name with close matches
func TypeNotFound(typeName string, suggestions []string, noColor bool) string {
	return Format(Message{
		Context:     "type not found",
		Problem:     fmt.Sprintf("Cannot find type '%s'.", typeName),
		Suggestions: suggestions,
		Hints:       []string{"List all types: mapping inspect types"},
		NoColor:     noColor,
	})
}

// RelationNotFound reports an unknown relation ID with close matches
func RelationNotFound(id string, suggestions []string, noColor bool) string {
	return Format(Message{
		Context:     "relation not found",
		Problem:     fmt.Sprintf("Cannot find relation '%s'.", id),
		Suggestions: suggestions,
		Hints:       []string{"List all relations: mapping inspect relations"},
		NoColor:     noColor,
	})
}

// ValidationFailed lists every failure of a rejected mapping
func ValidationFailed(failures []mapping.ValidationFailure, noColor bool) string {
	details := make([]string, len(failures))
	for i, f := range failures {
		details[i] = f.Error()
	}
	return Format(Message{
		Context: "mapping invalid",
		Problem: fmt.Sprintf("%d validation %s.", len(failures), plural(len(failures), "failure", "failures")),
		Details: details,
		Hints:   []string{"Fix the domain files and run: mapping validate"},
		NoColor: noColor,
	})
}

// ConfigError reports an unusable configuration
func ConfigError(err error, noColor bool) string {
	return Format(Message{
		Context: "configuration error",
		Problem: err.Error(),
		Hints:   []string{"View config: cat mapping.yaml", "Get help: mapping --help"},
		NoColor: noColor,
	})
}

// Warning renders a warning
func Warning(message string, noColor bool) string {
	return Format(Message{Level: LevelWarning, Problem: message, NoColor: noColor})
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}
