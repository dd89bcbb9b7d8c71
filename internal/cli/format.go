package cli

import (
	"fmt"
	"os"

	"github.com/fatih/color"
)

var (
	successColor = color.New(color.FgGreen, color.Bold)
	warningColor = color.New(color.FgYellow, color.Bold)
	errorColor   = color.New(color.FgRed, color.Bold)
	headerColor  = color.New(color.FgBlue, color.Bold)
	labelColor   = color.New(color.FgWhite, color.Bold)
	valueColor   = color.New(color.FgHiBlack)
)

// PrintSection prints a section header.
func PrintSection(title string) {
	fmt.Println()
	_, _ = headerColor.Printf("▸ %s\n", title)
	fmt.Println()
}

// PrintSuccess prints a success message with a checkmark.
func PrintSuccess(msg string) {
	_, _ = successColor.Printf("✓ %s\n", msg)
}

// PrintWarning prints a warning message.
func PrintWarning(msg string) {
	_, _ = warningColor.Printf("⚠ %s\n", msg)
}

// PrintError prints an error message to stderr.
func PrintError(msg string) {
	_, _ = errorColor.Fprintf(os.Stderr, "✗ %s\n", msg)
}

// PrintLabelValue prints an indented label-value pair.
func PrintLabelValue(label, value string) {
	_, _ = labelColor.Printf("  %s: ", label)
	_, _ = valueColor.Println(value)
}

// FormatBytes renders a byte count with a binary unit suffix.
func FormatBytes(b int64) string {
	const (
		_          = iota
		kb float64 = 1 << (10 * iota)
		mb
		gb
	)

	fb := float64(b)
	switch {
	case fb >= gb:
		return fmt.Sprintf("%.2fGiB", fb/gb)
	case fb >= mb:
		return fmt.Sprintf("%.2fMiB", fb/mb)
	case fb >= kb:
		return fmt.Sprintf("%.2fKiB", fb/kb)
	default:
		return fmt.Sprintf("%dB", b)
	}
}
