package ui

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/fatih/color"
)

// Spinner represents a simple text-based spinner for indeterminate operations
type Spinner struct {
	writer   io.Writer
	message  string
	frames   []string
	interval time.Duration
	done     chan struct{}
	stopped  chan struct{}
	noColor  bool
	mu       sync.Mutex
	active   bool
}

// SpinnerOptions configures spinner behavior
type SpinnerOptions struct {
	Message  string
	NoColor  bool
	Interval time.Duration // Default: 100ms
}

var defaultFrames = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}

// NewSpinner creates a new spinner
func NewSpinner(w io.Writer, opts SpinnerOptions) *Spinner {
	interval := opts.Interval
	if interval == 0 {
		interval = 100 * time.Millisecond
	}
	return &Spinner{
		writer:   w,
		message:  opts.Message,
		frames:   defaultFrames,
		interval: interval,
		noColor:  opts.NoColor,
	}
}

// Start begins the spinner animation
func (s *Spinner) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active {
		return
	}
	s.active = true
	s.done = make(chan struct{})
	s.stopped = make(chan struct{})
	go s.animate(s.done, s.stopped)
}

// Stop stops the spinner and clears the line. Stopping twice is a no-op.
func (s *Spinner) Stop() {
	s.mu.Lock()
	if !s.active {
		s.mu.Unlock()
		return
	}
	s.active = false
	close(s.done)
	stopped := s.stopped
	s.mu.Unlock()

	<-stopped
	fmt.Fprint(s.writer, "\r\033[K")
}

// Success stops the spinner and shows a success message
func (s *Spinner) Success(message string) {
	s.Stop()
	WriteSuccess(s.writer, message, s.noColor)
}

// Error stops the spinner and shows an error message
func (s *Spinner) Error(message string) {
	s.Stop()
	red := color.New(color.FgRed, color.Bold)
	if s.noColor {
		red.DisableColor()
	}
	red.Fprintf(s.writer, "✗ %s\n", message)
}

// UpdateMessage changes the spinner message
func (s *Spinner) UpdateMessage(message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.message = message
}

func (s *Spinner) animate(done <-chan struct{}, stopped chan<- struct{}) {
	defer close(stopped)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	cyan := color.New(color.FgCyan)
	if s.noColor {
		cyan.DisableColor()
	}

	frame := 0
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			s.mu.Lock()
			msg := s.message
			s.mu.Unlock()
			cyan.Fprintf(s.writer, "\r%s %s", s.frames[frame], msg)
			frame = (frame + 1) % len(s.frames)
		}
	}
}

// WithSpinner runs fn while a spinner shows message, then reports the outcome
func WithSpinner(w io.Writer, message string, noColor bool, fn func() error) error {
	spinner := NewSpinner(w, SpinnerOptions{Message: message, NoColor: noColor})
	spinner.Start()

	if err := fn(); err != nil {
		spinner.Error(fmt.Sprintf("%s failed", message))
		return err
	}
	spinner.Success(message)
	return nil
}
