// Package notify delivers refresh notifications (info, success, error) to
// the user-facing surfaces.
package notify

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/charmbracelet/lipgloss"

	"prairie_track/internal/domain"
)

// Notifier is satisfied by every sink in this package.
type Notifier interface {
	Notify(ctx context.Context, n domain.Notification) error
}

// Log writes notifications to a structured logger.
type Log struct {
	logger *slog.Logger
}

func NewLog(logger *slog.Logger) *Log {
	return &Log{logger: logger.With("component", "notify")}
}

func (l *Log) Notify(ctx context.Context, n domain.Notification) error {
	level := slog.LevelInfo
	if n.Kind == domain.NotifyError {
		level = slog.LevelError
	}
	l.logger.Log(ctx, level, n.Message, "kind", n.Kind, "run_id", n.RunID)
	return nil
}

var (
	infoStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.AdaptiveColor{Light: "#5A56E0", Dark: "#7571F9"})
	successStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.AdaptiveColor{Light: "#04B575", Dark: "#25D366"})
	errorStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.AdaptiveColor{Light: "#D0021B", Dark: "#F25D94"})
)

// Terminal prints one styled line per notification, the CLI's toast.
type Terminal struct {
	w io.Writer
}

func NewTerminal(w io.Writer) *Terminal {
	return &Terminal{w: w}
}

func (t *Terminal) Notify(_ context.Context, n domain.Notification) error {
	style, icon := infoStyle, "i"
	switch n.Kind {
	case domain.NotifySuccess:
		style, icon = successStyle, "✓"
	case domain.NotifyError:
		style, icon = errorStyle, "✗"
	}
	_, err := fmt.Fprintln(t.w, style.Render(icon+" "+n.Message))
	return err
}

// Multi fans a notification out to every sink and joins their errors.
type Multi []Notifier

func (m Multi) Notify(ctx context.Context, n domain.Notification) error {
	var errs []error
	for _, sink := range m {
		if sink == nil {
			continue
		}
		if err := sink.Notify(ctx, n); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
