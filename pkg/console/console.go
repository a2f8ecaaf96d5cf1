// Package console provides styled terminal output helpers for the
// state-gate CLI: status message formatting, table rendering, and
// source-positioned definition errors.
package console

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/CAPHTECH/state-gate-sub000/pkg/logger"
	"github.com/CAPHTECH/state-gate-sub000/pkg/styles"
	"github.com/CAPHTECH/state-gate-sub000/pkg/tty"
)

var consoleLog = logger.New("console:console")

// isTTY checks if stdout is a terminal
func isTTY() bool {
	return tty.IsStdoutTerminal()
}

// applyStyle conditionally applies styling based on TTY status
func applyStyle(style lipgloss.Style, text string) string {
	if isTTY() {
		return style.Render(text)
	}
	return text
}

// FormatError formats a DefinitionError with positioned, Rust-like rendering.
func FormatError(err DefinitionError) string {
	consoleLog.Printf("Formatting error: type=%s, file=%s, line=%d", err.Type, err.Position.File, err.Position.Line)
	var output strings.Builder

	var typeStyle lipgloss.Style
	var prefix string
	switch err.Type {
	case "warning":
		typeStyle = styles.Warning
		prefix = "warning"
	case "info":
		typeStyle = styles.Info
		prefix = "info"
	default:
		typeStyle = styles.Error
		prefix = "error"
	}

	// IDE-parseable format: file:line:column: type: message
	if err.Position.File != "" {
		location := fmt.Sprintf("%s:%d:%d:",
			ToRelativePath(err.Position.File),
			err.Position.Line,
			err.Position.Column)
		output.WriteString(applyStyle(styles.FilePath, location))
		output.WriteString(" ")
	}

	output.WriteString(applyStyle(typeStyle, prefix+":"))
	output.WriteString(" ")
	output.WriteString(err.Message)
	output.WriteString("\n")

	if len(err.Context) > 0 && err.Position.Line > 0 {
		output.WriteString(renderContext(err))
	}

	if err.Hint != "" {
		output.WriteString(applyStyle(styles.Info, "hint: "))
		output.WriteString(err.Hint)
		output.WriteString("\n")
	}

	return output.String()
}

// renderContext renders source lines around the error position with a
// line-number gutter and the offending line highlighted.
func renderContext(err DefinitionError) string {
	var output strings.Builder

	maxLineNum := err.Position.Line + len(err.Context)/2
	lineNumWidth := len(fmt.Sprintf("%d", maxLineNum))

	for i, line := range err.Context {
		lineNum := err.Position.Line - len(err.Context)/2 + i
		if lineNum < 1 {
			continue
		}

		lineNumStr := fmt.Sprintf("%*d", lineNumWidth, lineNum)
		output.WriteString(applyStyle(styles.LineNumber, lineNumStr))
		output.WriteString(" | ")

		if lineNum == err.Position.Line {
			output.WriteString(applyStyle(styles.Highlight, line))
		} else {
			output.WriteString(applyStyle(styles.ContextLine, line))
		}
		output.WriteString("\n")
	}

	return output.String()
}

// ToRelativePath converts an absolute path to one relative to the current
// working directory when that makes it shorter; otherwise returns the input.
func ToRelativePath(path string) string {
	if !filepath.IsAbs(path) {
		return path
	}
	cwd, err := filepath.Abs(".")
	if err != nil {
		return path
	}
	rel, err := filepath.Rel(cwd, path)
	if err != nil || strings.HasPrefix(rel, "..") {
		return path
	}
	return rel
}

// FormatSuccessMessage formats a success message with styling
func FormatSuccessMessage(message string) string {
	return applyStyle(styles.Success, "✓ ") + message
}

// FormatInfoMessage formats an informational message
func FormatInfoMessage(message string) string {
	return applyStyle(styles.Info, "ℹ ") + message
}

// FormatWarningMessage formats a warning message
func FormatWarningMessage(message string) string {
	return applyStyle(styles.Warning, "⚠ ") + message
}

// FormatErrorMessage formats a simple error message (for stderr output)
func FormatErrorMessage(message string) string {
	return applyStyle(styles.Error, "✗ ") + message
}

// FormatLocationMessage formats a file/directory location message
func FormatLocationMessage(message string) string {
	return applyStyle(styles.Location, "📁 ") + message
}

// FormatCommandMessage formats a command suggestion message
func FormatCommandMessage(command string) string {
	return applyStyle(styles.Command, "⚡ ") + command
}

// FormatPromptMessage formats a user prompt message
func FormatPromptMessage(message string) string {
	return applyStyle(styles.Prompt, "❓ ") + message
}

// FormatCountMessage formats a count/numeric status message
func FormatCountMessage(message string) string {
	return applyStyle(styles.Count, "📊 ") + message
}

// FormatListHeader formats a section header for lists
func FormatListHeader(header string) string {
	return applyStyle(styles.ListHeader, header)
}

// FormatListItem formats an item in a list
func FormatListItem(item string) string {
	return applyStyle(styles.ListItem, "  • "+item)
}

// FormatSectionHeader formats a section header with proper styling
func FormatSectionHeader(header string) string {
	if isTTY() {
		return applyStyle(styles.Header, header)
	}
	return header
}

// RenderTable renders a formatted table using lipgloss/table.
func RenderTable(config TableConfig) string {
	if len(config.Headers) == 0 {
		consoleLog.Print("No headers provided for table rendering")
		return ""
	}

	consoleLog.Printf("Rendering table: title=%s, columns=%d, rows=%d", config.Title, len(config.Headers), len(config.Rows))
	var output strings.Builder

	if config.Title != "" {
		output.WriteString(applyStyle(styles.TableTitle, config.Title))
		output.WriteString("\n")
	}

	styleFunc := func(row, col int) lipgloss.Style {
		if !isTTY() {
			return lipgloss.NewStyle()
		}
		if row == table.HeaderRow {
			return styles.TableHeader.PaddingLeft(1).PaddingRight(1)
		}
		return styles.TableCell.PaddingLeft(1).PaddingRight(1)
	}

	t := table.New().
		Headers(config.Headers...).
		Rows(config.Rows...).
		Border(styles.RoundedBorder).
		BorderStyle(styles.TableBorder).
		StyleFunc(styleFunc)

	output.WriteString(t.String())
	output.WriteString("\n")

	return output.String()
}
