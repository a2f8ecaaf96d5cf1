// Package styles provides centralized style and color definitions for
// terminal output.
//
// Colors use lipgloss.AdaptiveColor so output stays readable on both light
// and dark terminal backgrounds: light variants are darker and more
// saturated, dark variants follow the Dracula palette.
package styles

import "github.com/charmbracelet/lipgloss"

// Adaptive colors shared by all state-gate terminal output.
var (
	// ColorError is used for error messages and rejected events.
	ColorError = lipgloss.AdaptiveColor{
		Light: "#D73737",
		Dark:  "#FF5555",
	}

	// ColorWarning is used for warnings and blocked-but-recoverable states.
	ColorWarning = lipgloss.AdaptiveColor{
		Light: "#E67E22",
		Dark:  "#FFB86C",
	}

	// ColorSuccess is used for accepted events and confirmations.
	ColorSuccess = lipgloss.AdaptiveColor{
		Light: "#27AE60",
		Dark:  "#50FA7B",
	}

	// ColorInfo is used for informational messages.
	ColorInfo = lipgloss.AdaptiveColor{
		Light: "#2980B9",
		Dark:  "#8BE9FD",
	}

	// ColorPurple highlights identifiers: run ids, process ids, file paths.
	ColorPurple = lipgloss.AdaptiveColor{
		Light: "#8E44AD",
		Dark:  "#BD93F9",
	}

	// ColorYellow marks values that want the operator's attention.
	ColorYellow = lipgloss.AdaptiveColor{
		Light: "#B7950B",
		Dark:  "#F1FA8C",
	}

	// ColorComment is used for de-emphasized supporting text.
	ColorComment = lipgloss.AdaptiveColor{
		Light: "#707070",
		Dark:  "#6272A4",
	}

	// ColorForeground is the primary text color.
	ColorForeground = lipgloss.AdaptiveColor{
		Light: "#2C3E50",
		Dark:  "#F8F8F2",
	}

	// ColorBorder is used for table and box borders.
	ColorBorder = lipgloss.AdaptiveColor{
		Light: "#BDC3C7",
		Dark:  "#44475A",
	}
)

// RoundedBorder is the default border for tables.
var RoundedBorder = lipgloss.RoundedBorder()

// Error renders error text.
var Error = lipgloss.NewStyle().
	Foreground(ColorError).
	Bold(true)

// Warning renders warning text.
var Warning = lipgloss.NewStyle().
	Foreground(ColorWarning).
	Bold(true)

// Success renders success text.
var Success = lipgloss.NewStyle().
	Foreground(ColorSuccess).
	Bold(true)

// Info renders informational text.
var Info = lipgloss.NewStyle().
	Foreground(ColorInfo)

// FilePath renders file locations in error output.
var FilePath = lipgloss.NewStyle().
	Foreground(ColorPurple).
	Bold(true)

// LineNumber renders gutter line numbers in error context.
var LineNumber = lipgloss.NewStyle().
	Foreground(ColorComment)

// ContextLine renders non-highlighted source context lines.
var ContextLine = lipgloss.NewStyle().
	Foreground(ColorComment)

// Highlight renders the offending span in error context.
var Highlight = lipgloss.NewStyle().
	Foreground(ColorYellow).
	Bold(true)

// Location renders file/directory location messages.
var Location = lipgloss.NewStyle().
	Foreground(ColorPurple)

// Command renders command suggestions.
var Command = lipgloss.NewStyle().
	Foreground(ColorPurple).
	Bold(true)

// Count renders numeric status messages.
var Count = lipgloss.NewStyle().
	Foreground(ColorYellow)

// Prompt renders user prompt messages.
var Prompt = lipgloss.NewStyle().
	Foreground(ColorInfo).
	Bold(true)

// ListHeader renders section headers for lists.
var ListHeader = lipgloss.NewStyle().
	Foreground(ColorInfo).
	Bold(true).
	Underline(true)

// ListItem renders individual list entries.
var ListItem = lipgloss.NewStyle().
	Foreground(ColorForeground)

// TableHeader renders table header cells.
var TableHeader = lipgloss.NewStyle().
	Foreground(ColorInfo).
	Bold(true)

// TableCell renders table body cells.
var TableCell = lipgloss.NewStyle().
	Foreground(ColorForeground)

// TableTitle renders table titles.
var TableTitle = lipgloss.NewStyle().
	Foreground(ColorForeground).
	Bold(true)

// TableBorder renders table borders.
var TableBorder = lipgloss.NewStyle().
	Foreground(ColorBorder)

// Header renders section headers.
var Header = lipgloss.NewStyle().
	Foreground(ColorInfo).
	Bold(true).
	MarginTop(1)
