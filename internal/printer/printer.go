// Package printer renders CLI output: status messages, formatted errors,
// and deliberation outcomes.
package printer

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"

	"github.com/dyluth/quorum/pkg/deliberation"
)

func init() {
	// Force color output even when not connected to TTY
	// Users can disable with NO_COLOR environment variable
	if os.Getenv("NO_COLOR") == "" {
		color.NoColor = false
	}
}

var (
	// Color definitions
	green  = color.New(color.FgGreen)
	yellow = color.New(color.FgYellow)
	red    = color.New(color.FgRed, color.Bold)
	cyan   = color.New(color.FgCyan)
	bold   = color.New(color.Bold)
)

// Success prints a success message in green with a checkmark prefix
func Success(format string, a ...any) {
	msg := fmt.Sprintf(format, a...)
	if !strings.HasPrefix(msg, "✓") {
		green.Printf("✓ %s", msg)
	} else {
		green.Print(msg)
	}
}

// Info prints an informational message in the default color
func Info(format string, a ...any) {
	fmt.Printf(format, a...)
}

// Warning prints a warning message in yellow with a warning emoji prefix
func Warning(format string, a ...any) {
	msg := fmt.Sprintf(format, a...)
	if !strings.HasPrefix(msg, "⚠️") {
		yellow.Printf("⚠️  %s", msg)
	} else {
		yellow.Print(msg)
	}
}

// Step prints a step message with emphasis (used in multi-step operations)
func Step(format string, a ...any) {
	cyan.Printf("→ %s", fmt.Sprintf(format, a...))
}

// Println prints a plain message (for output that doesn't need coloring)
func Println(a ...any) {
	fmt.Println(a...)
}

// Printf prints a plain formatted message (for output that doesn't need coloring)
func Printf(format string, a ...any) {
	fmt.Printf(format, a...)
}

// Error creates a formatted error message with title, explanation, and suggestions
// Prints the formatted error to stderr with colors and returns a simple error for Cobra
func Error(title string, explanation string, suggestions []string) error {
	red.Fprintf(os.Stderr, "%s\n\n", title)

	fmt.Fprintf(os.Stderr, "%s\n", explanation)

	if len(suggestions) > 0 {
		fmt.Fprintf(os.Stderr, "\n")
		if len(suggestions) == 1 {
			fmt.Fprintf(os.Stderr, "%s\n", suggestions[0])
		} else {
			fmt.Fprintf(os.Stderr, "Either:\n")
			for i, suggestion := range suggestions {
				fmt.Fprintf(os.Stderr, "  %d. %s\n", i+1, suggestion)
			}
		}
	}

	// Return simple error for Cobra (won't be printed due to SilenceErrors)
	return fmt.Errorf("%s", title)
}

// Outcome renders a finished deliberation: the decision line, the vote
// split, dissenting views, and any degradation warnings.
func Outcome(o *deliberation.Outcome) {
	fmt.Println()

	if !o.Result.Reached() {
		red.Println("✗ No consensus reached")
		if len(o.Opinions) == 0 {
			Printf("  No personas produced a usable opinion.\n")
		}
	} else {
		bold.Printf("Decision: ")
		fmt.Println(o.Result.Decision)
		Printf("  confidence %.2f · agreement %.2f · method %s\n",
			o.Result.Confidence, o.Result.AgreementLevel, o.Result.Method)
	}

	if o.Degraded {
		Warning("degraded outcome: a required persona was absent\n")
	}

	if len(o.Result.Supporting) > 0 {
		green.Printf("  for:     ")
		fmt.Println(strings.Join(o.Result.Supporting, ", "))
	}
	if len(o.Result.Dissenting) > 0 {
		yellow.Printf("  against: ")
		fmt.Println(strings.Join(o.Result.Dissenting, ", "))
	}
	if len(o.Result.Absent) > 0 {
		red.Printf("  absent:  ")
		fmt.Println(strings.Join(o.Result.Absent, ", "))
	}

	for personaID, view := range o.Result.AlternativeViews {
		Printf("  alternative (%s): %s\n", personaID, view)
	}

	Printf("  round %s finished in %v with %d opinions\n", o.RoundID, o.Duration.Round(time.Millisecond), len(o.Opinions))
}

// Opinions renders each opinion's stance and confidence, in board order.
func Opinions(o *deliberation.Outcome) {
	for _, op := range o.Opinions {
		cyan.Printf("%s", op.PersonaID)
		Printf(" [%.2f, %s]: %s\n", op.Confidence, op.Priority, op.Recommendation)
		if op.Reasoning != "" {
			Printf("    %s\n", op.Reasoning)
		}
		for _, concern := range op.Concerns {
			yellow.Printf("    concern: ")
			fmt.Println(concern)
		}
	}
}
