package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/dori/dhyan/internal/app"
	"github.com/dori/dhyan/internal/model"
	"github.com/dori/dhyan/internal/timer"
	"github.com/spf13/cobra"
)

func watchCmd(g *globalFlags) *cobra.Command {
	var (
		once   bool
		notify bool
	)

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Show the running task's timer until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(g, func(a *app.App) error {
				out := cmd.OutOrStdout()
				task, ok := a.Store.Active()
				if !ok {
					fmt.Fprintln(out, "No task in progress")
					return nil
				}

				if once {
					fmt.Fprintln(out, timerLine(task.Title, a.TimerState(&task)))
					return nil
				}

				ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
				defer stop()
				return watch(ctx, out, a, task.ID, notify, pollInterval)
			}, app.Shared())
		},
	}

	cmd.Flags().BoolVar(&once, "once", false, "print the timer once and exit")
	cmd.Flags().BoolVar(&notify, "notify", false, "send the estimate-reached notification")
	return cmd
}

// pollInterval is how often watch rereads storage for changes made by the
// process owning the task list
const pollInterval = 2 * time.Second

// watch redraws the timer line every second until ctx is done or the task
// stops running in storage
func watch(ctx context.Context, out io.Writer, a *app.App, id string, notify bool, poll time.Duration) error {
	task, err := a.Store.Get(id)
	if err != nil {
		return err
	}

	var mu sync.Mutex
	sched := timer.NewScheduler(timer.WithNow(a.Now))
	defer sched.Stop()
	sched.Track(&task, func(state timer.State) {
		mu.Lock()
		fmt.Fprintf(out, "\r%s", timerLine(task.Title, state))
		mu.Unlock()
		if notify {
			a.NotifyOverrun(task, state)
		}
	})

	ticker := time.NewTicker(poll)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			sched.Stop()
			fmt.Fprintln(out)
			return nil
		case <-ticker.C:
			msg, done := stillRunning(a, task)
			if !done {
				continue
			}
			sched.Stop()
			mu.Lock()
			fmt.Fprintf(out, "\n%s\n", msg)
			mu.Unlock()
			return nil
		}
	}
}

// stillRunning compares the stored copy of task with the one being watched
func stillRunning(a *app.App, task model.Task) (string, bool) {
	stored, ok := a.Stored(task.ID)
	switch {
	case !ok:
		return task.Title + " was deleted", true
	case stored.IsCompleted():
		return fmt.Sprintf("Completed %s in %s", stored.Title, timer.FormatMinutes(stored.Duration().Minutes())), true
	case !stored.IsActive():
		return task.Title + " is no longer running", true
	case stored.StartedAt == nil || !stored.StartedAt.Equal(*task.StartedAt):
		return task.Title + " was restarted", true
	}
	return "", false
}

func timerLine(title string, state timer.State) string {
	if state.Overrun() {
		return fmt.Sprintf("%s  100%%  estimate reached  %s", timer.FormatClock(state.Elapsed), title)
	}
	return fmt.Sprintf("%s  %3.0f%%  %s left  %s",
		timer.FormatClock(state.Elapsed), state.Progress, timer.FormatClock(state.Remaining), title)
}
