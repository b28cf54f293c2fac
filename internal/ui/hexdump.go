package ui

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// SignalDump represents a box for displaying raw signal bytes.
// Used in verbose mode to show exactly what a blaster captured or is
// about to replay.
type SignalDump struct {
	Title    string // e.g., "Captured Signal"
	Data     []byte // The raw signal bytes
	Width    int    // Terminal width
	MaxLines int    // Maximum dump lines to display (0 = unlimited)
}

// NewSignalDump creates a new signal dump box
func NewSignalDump(data []byte) *SignalDump {
	return &SignalDump{
		Title:    "Captured Signal",
		Data:     data,
		Width:    GetTerminalWidth(),
		MaxLines: 0,
	}
}

// SetWidth sets the terminal width for responsive rendering
func (d *SignalDump) SetWidth(width int) *SignalDump {
	d.Width = width
	return d
}

// SetTitle sets a custom title for the box
func (d *SignalDump) SetTitle(title string) *SignalDump {
	d.Title = title
	return d
}

// SetMaxLines limits the number of dump lines displayed
func (d *SignalDump) SetMaxLines(max int) *SignalDump {
	d.MaxLines = max
	return d
}

// Render returns the styled hex dump box as a string
func (d *SignalDump) Render() string {
	width := d.Width
	if width < MinTerminalWidth {
		width = MinTerminalWidth
	}

	// Standard offset/hex/ASCII dump, 16 bytes per line
	lines := strings.Split(strings.TrimRight(hex.Dump(d.Data), "\n"), "\n")
	if d.MaxLines > 0 && len(lines) > d.MaxLines {
		lines = lines[:d.MaxLines]
		lines = append(lines, fmt.Sprintf("... (%d bytes total)", len(d.Data)))
	}

	// Title styled
	titleStyled := DumpTitleStyle.Render(fmt.Sprintf("%s (%d bytes)", d.Title, len(d.Data)))

	// Content styled (preserve monospace formatting)
	contentStyled := DumpContentStyle.Render(strings.Join(lines, "\n"))

	// Combine title and content
	inner := lipgloss.JoinVertical(lipgloss.Left, titleStyled, "", contentStyled)

	// Box with muted border
	boxWidth := width - 4
	if boxWidth < 40 {
		boxWidth = 40
	}

	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(MutedColor).
		Width(boxWidth).
		Padding(0, 1).
		MarginLeft(2).
		Render(inner)
}

// String implements fmt.Stringer
func (d *SignalDump) String() string {
	return d.Render()
}
