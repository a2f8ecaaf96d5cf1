package console

import (
	"fmt"
	"os"
	"sync"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/CAPHTECH/state-gate-sub000/pkg/styles"
	"github.com/CAPHTECH/state-gate-sub000/pkg/tty"
)

const (
	ansiCarriageReturn = "\r"
	ansiClearLine      = "\033[K"
)

// updateMessageMsg is a custom message for updating the spinner message
type updateMessageMsg string

// spinnerModel is the Bubble Tea model for the spinner.
// Because we use tea.WithoutRenderer(), we must manually print in Update().
type spinnerModel struct {
	spinner spinner.Model
	message string
	output  *os.File
}

func (m spinnerModel) Init() tea.Cmd { return m.spinner.Tick }
func (m spinnerModel) View() string  { return "" } // Not used with WithoutRenderer

func (m spinnerModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case updateMessageMsg:
		m.message = string(msg)
		m.render()
		return m, nil
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return m, tea.Quit
		}
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		m.render()
		return m, cmd
	}
	return m, nil
}

// render manually prints the spinner frame (required when using WithoutRenderer)
func (m spinnerModel) render() {
	if m.output != nil {
		fmt.Fprintf(m.output, "%s%s%s %s", ansiCarriageReturn, ansiClearLine, m.spinner.View(), m.message)
	}
}

// Spinner shows a minimal dot animation during long-running operations.
// It is automatically disabled outside a TTY and when ACCESSIBLE is set.
type Spinner struct {
	program *tea.Program
	enabled bool
	running bool
	mu      sync.Mutex
	wg      sync.WaitGroup
}

// NewSpinner creates a new spinner with the given message using MiniDot style.
func NewSpinner(message string) *Spinner {
	enabled := tty.IsStderrTerminal() && !IsAccessibleMode()
	s := &Spinner{enabled: enabled}

	if enabled {
		model := spinnerModel{
			spinner: spinner.New(spinner.WithSpinner(spinner.MiniDot), spinner.WithStyle(styles.Info)),
			message: message,
			output:  os.Stderr,
		}
		s.program = tea.NewProgram(model, tea.WithOutput(os.Stderr), tea.WithoutRenderer())
	}
	return s
}

// Start begins the spinner animation. Safe to call at most once per spinner;
// repeat calls are no-ops.
func (s *Spinner) Start() {
	if s.enabled && s.program != nil {
		s.mu.Lock()
		if s.running {
			s.mu.Unlock()
			return
		}
		s.running = true
		s.wg.Add(1)
		s.mu.Unlock()
		go func() {
			defer s.wg.Done()
			_, _ = s.program.Run()
		}()
	}
}

// Stop halts the animation and clears the spinner line.
func (s *Spinner) Stop() {
	if s.enabled && s.program != nil {
		s.mu.Lock()
		if s.running {
			s.running = false
			s.mu.Unlock()
			s.program.Quit()
			s.wg.Wait()
			fmt.Fprintf(os.Stderr, "%s%s", ansiCarriageReturn, ansiClearLine)
		} else {
			s.mu.Unlock()
		}
	}
}

// StopWithMessage halts the animation and replaces the spinner line with msg.
// The message is printed even when the spinner is disabled.
func (s *Spinner) StopWithMessage(msg string) {
	if s.enabled && s.program != nil {
		s.mu.Lock()
		if s.running {
			s.running = false
			s.mu.Unlock()
			s.program.Quit()
			s.wg.Wait()
			fmt.Fprintf(os.Stderr, "%s%s%s\n", ansiCarriageReturn, ansiClearLine, msg)
		} else {
			s.mu.Unlock()
			fmt.Fprintf(os.Stderr, "%s\n", msg)
		}
	} else if msg != "" {
		fmt.Fprintf(os.Stderr, "%s\n", msg)
	}
}

// UpdateMessage swaps the message shown next to the spinner.
func (s *Spinner) UpdateMessage(message string) {
	if s.enabled && s.program != nil {
		s.mu.Lock()
		running := s.running
		s.mu.Unlock()
		if running {
			s.program.Send(updateMessageMsg(message))
		}
	}
}

// IsEnabled reports whether the spinner will animate.
func (s *Spinner) IsEnabled() bool { return s.enabled }
