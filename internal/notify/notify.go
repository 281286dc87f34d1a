package notify

import (
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"time"
)

// AppName is passed to notify-send
const AppName = "dhyan"

// Urgency levels for notifications
type Urgency int

const (
	UrgencyLow Urgency = iota
	UrgencyNormal
	UrgencyCritical
)

// Notification represents a desktop notification
type Notification struct {
	Title   string
	Body    string
	Urgency Urgency
	Timeout time.Duration
	Icon    string // Optional icon name
}

// Runner executes notify-send with the given arguments
type Runner func(ctx context.Context, name string, args ...string) error

func execRunner(ctx context.Context, name string, args ...string) error {
	return exec.CommandContext(ctx, name, args...).Run()
}

// Notifier handles sending desktop notifications
type Notifier struct {
	enabled bool
	run     Runner
	timeout time.Duration
}

// Option configures a Notifier
type Option func(*Notifier)

// WithRunner replaces the command runner
func WithRunner(r Runner) Option {
	return func(n *Notifier) { n.run = r }
}

// NewNotifier creates a new notifier
func NewNotifier(enabled bool, opts ...Option) *Notifier {
	n := &Notifier{
		enabled: enabled,
		run:     execRunner,
		timeout: 5 * time.Second,
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// SetEnabled enables or disables notifications
func (n *Notifier) SetEnabled(enabled bool) {
	n.enabled = enabled
}

// IsEnabled returns whether notifications are enabled
func (n *Notifier) IsEnabled() bool {
	return n.enabled
}

// Send sends a desktop notification using notify-send
func (n *Notifier) Send(notification Notification) error {
	if !n.enabled {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), n.timeout)
	defer cancel()

	if err := n.run(ctx, "notify-send", buildArgs(notification)...); err != nil {
		return fmt.Errorf("notify-send: %w", err)
	}
	return nil
}

// buildArgs converts a notification into notify-send arguments
func buildArgs(notification Notification) []string {
	var args []string

	switch notification.Urgency {
	case UrgencyLow:
		args = append(args, "-u", "low")
	case UrgencyCritical:
		args = append(args, "-u", "critical")
	default:
		args = append(args, "-u", "normal")
	}

	// Timeout in milliseconds
	if notification.Timeout > 0 {
		args = append(args, "-t", strconv.Itoa(int(notification.Timeout.Milliseconds())))
	}

	if notification.Icon != "" {
		args = append(args, "-i", notification.Icon)
	}

	args = append(args, "-a", AppName)

	args = append(args, notification.Title)
	if notification.Body != "" {
		args = append(args, notification.Body)
	}
	return args
}

// SendEstimateReached tells the user the active task used up its estimate
func (n *Notifier) SendEstimateReached(taskTitle string, estimateMinutes int) error {
	return n.Send(Notification{
		Title:   "Estimate reached",
		Body:    fmt.Sprintf("%s (%d min)", taskTitle, estimateMinutes),
		Urgency: UrgencyNormal,
		Timeout: 10 * time.Second,
		Icon:    "alarm-symbolic",
	})
}

// SendTaskComplete confirms a finished task
func (n *Notifier) SendTaskComplete(taskTitle string, spent time.Duration) error {
	return n.Send(Notification{
		Title:   "Task complete",
		Body:    fmt.Sprintf("%s in %d min", taskTitle, int(spent.Round(time.Minute).Minutes())),
		Urgency: UrgencyLow,
		Timeout: 5 * time.Second,
		Icon:    "emblem-ok-symbolic",
	})
}

// SendDayReset announces that yesterday's tasks were cleared
func (n *Notifier) SendDayReset() error {
	return n.Send(Notification{
		Title:   "New day",
		Body:    "Yesterday's tasks were cleared",
		Urgency: UrgencyLow,
		Timeout: 5 * time.Second,
		Icon:    "appointment-soon-symbolic",
	})
}
