package app

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/dori/dhyan/internal/analytics"
	"github.com/dori/dhyan/internal/daily"
	"github.com/dori/dhyan/internal/db"
	"github.com/dori/dhyan/internal/model"
	"github.com/dori/dhyan/internal/notify"
	"github.com/dori/dhyan/internal/persist"
	"github.com/dori/dhyan/internal/store"
	"github.com/dori/dhyan/internal/timer"
	"github.com/gofrs/flock"
)

var (
	ErrAlreadyRunning = errors.New("another instance of dhyan is already running")
	ErrAmbiguousID    = errors.New("task id prefix is ambiguous")
)

// App holds the application state and dependencies
type App struct {
	Store    *store.Store
	Notifier *notify.Notifier
	Logger   *slog.Logger
	DataDir  string
	Scope    analytics.Scope
	Theme    string

	// ResetOnStart is true when yesterday's tasks were cleared during New
	ResetOnStart bool
	// DayChanged is true when a shared app found tasks from an earlier day.
	// They are hidden but left in storage for the lock holder to clear.
	DayChanged bool

	db       *db.DB
	adapter  *persist.Adapter
	policy   *daily.Policy
	lockFile *flock.Flock
	logFile  io.Closer
	now      func() time.Time
	shared   bool
	cancel   func()

	mu       sync.Mutex
	notified map[string]bool // Estimate-reached notifications already sent
}

// Option configures an App
type Option func(*App)

// Shared skips the single-instance lock, for short read-only commands
func Shared() Option {
	return func(a *App) { a.shared = true }
}

// WithClock overrides the time source used by the store, timer and reset policy
func WithClock(now func() time.Time) Option {
	return func(a *App) { a.now = now }
}

// WithNotifier replaces the desktop notifier
func WithNotifier(n *notify.Notifier) Option {
	return func(a *App) { a.Notifier = n }
}

// New creates a new application instance
func New(cfg *Config, opts ...Option) (*App, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	scope, err := analytics.ParseScope(cfg.Scope)
	if err != nil {
		return nil, err
	}

	app := &App{
		DataDir:  cfg.DataDir,
		Scope:    scope,
		Theme:    cfg.Theme,
		now:      func() time.Time { return time.Now().Round(0) },
		notified: make(map[string]bool),
	}
	for _, opt := range opts {
		opt(app)
	}
	if app.Notifier == nil {
		app.Notifier = notify.NewNotifier(cfg.Notifications)
	}

	var kv persist.KV
	if cfg.InMemory {
		app.Logger = slog.New(slog.DiscardHandler)
		kv = persist.NewMemoryKV()
	} else {
		// Ensure data directory exists
		if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create data directory: %w", err)
		}
		if err := app.openLog(cfg.LogLevel); err != nil {
			return nil, err
		}

		// Acquire lock to ensure single instance
		if !app.shared {
			if err := app.acquireLock(); err != nil {
				app.closeLog()
				return nil, err
			}
		}

		database, err := db.Open(cfg.DBPath, app.Logger)
		if err != nil {
			app.releaseLock()
			app.closeLog()
			return nil, fmt.Errorf("failed to open database: %w", err)
		}
		app.db = database
		kv = database
	}

	adapter := persist.New(kv, app.Logger)
	app.adapter = adapter

	app.policy = daily.New(adapter, app.now, app.Logger)
	var tasks []model.Task
	if app.shared {
		// Only the lock holder resets storage; a stale day reads as empty
		app.DayChanged = app.policy.Check()
		if !app.DayChanged {
			tasks = adapter.LoadTasks()
		}
	} else {
		reset, err := app.policy.Apply()
		if err != nil {
			app.Logger.Warn("daily reset failed", "err", err)
		}
		app.ResetOnStart = reset
		tasks = adapter.LoadTasks()
	}

	app.Store = store.New(adapter, tasks,
		store.WithClock(app.now),
		store.WithLogger(app.Logger),
	)
	app.cancel = app.Store.Subscribe(app.onEvent)

	if app.db != nil {
		app.Logger.Debug("app started", "db", app.db.Path(), "schema", app.db.SchemaVersion(), "shared", app.shared, "tasks", app.Store.Len())
	} else {
		app.Logger.Debug("app started", "in_memory", true, "tasks", app.Store.Len())
	}
	return app, nil
}

func (a *App) openLog(level string) error {
	lvl, err := parseLevel(level)
	if err != nil {
		return err
	}

	path := filepath.Join(a.DataDir, "dhyan.log")
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	a.logFile = f
	a.Logger = slog.New(slog.NewTextHandler(f, &slog.HandlerOptions{Level: lvl}))
	return nil
}

func (a *App) closeLog() {
	if a.logFile != nil {
		a.logFile.Close()
		a.logFile = nil
	}
}

// acquireLock acquires an exclusive file lock to prevent multiple instances
func (a *App) acquireLock() error {
	lockPath := filepath.Join(a.DataDir, "dhyan.lock")
	a.lockFile = flock.New(lockPath)

	locked, err := a.lockFile.TryLock()
	if err != nil {
		return fmt.Errorf("failed to acquire lock: %w", err)
	}

	if !locked {
		return ErrAlreadyRunning
	}

	return nil
}

// releaseLock releases the file lock
func (a *App) releaseLock() {
	if a.lockFile != nil {
		a.lockFile.Unlock()
	}
}

// onEvent forwards store events to desktop notifications
func (a *App) onEvent(e store.Event) {
	if e.Kind != store.EventCompleted {
		return
	}
	task, err := a.Store.Get(e.TaskID)
	if err != nil {
		return
	}
	a.notifyAsync(func() error { return a.Notifier.SendTaskComplete(task.Title, task.Duration()) })
}

func (a *App) notifyAsync(send func() error) {
	if !a.Notifier.IsEnabled() {
		return
	}
	go func() {
		if err := send(); err != nil {
			a.Logger.Debug("notification failed", "err", err)
		}
	}()
}

// Now returns the current time from the app clock
func (a *App) Now() time.Time {
	return a.now()
}

// ListTasks returns all tasks in display order
func (a *App) ListTasks() []model.Task {
	return a.Store.List()
}

// TimerState returns the timing of task right now
func (a *App) TimerState(task *model.Task) timer.State {
	return timer.ForTask(a.now(), task)
}

// Analytics computes the snapshot for scope right now
func (a *App) Analytics(scope analytics.Scope) model.Analytics {
	return analytics.Compute(a.Store.List(), a.now(), scope)
}

// NotifyOverrun sends the estimate-reached notification once per task start.
// Reports whether a notification was triggered.
func (a *App) NotifyOverrun(task model.Task, state timer.State) bool {
	if !task.IsActive() || task.StartedAt == nil || !state.Overrun() {
		return false
	}

	key := task.ID + "@" + task.StartedAt.Format(time.RFC3339Nano)
	a.mu.Lock()
	sent := a.notified[key]
	a.notified[key] = true
	a.mu.Unlock()
	if sent {
		return false
	}

	a.Logger.Info("estimate reached", "task", task.ID, "estimate", task.EstimatedTime)
	a.notifyAsync(func() error { return a.Notifier.SendEstimateReached(task.Title, task.EstimatedTime) })
	return true
}

// CheckRollover clears the tasks when the day changed during the session.
// Shared apps never clear.
func (a *App) CheckRollover() (bool, error) {
	now := a.now()
	if a.shared || !a.policy.Due(now) {
		return false, nil
	}

	if err := a.Store.Clear(); err != nil {
		return false, err
	}
	if err := a.policy.Mark(now); err != nil {
		a.Logger.Warn("recording active date failed", "err", err)
	}

	a.mu.Lock()
	a.notified = make(map[string]bool)
	a.mu.Unlock()

	a.Logger.Info("daily reset during session", "today", a.policy.Current())
	a.notifyAsync(a.Notifier.SendDayReset)
	return true, nil
}

// Stored reads the persisted copy of the task with id, bypassing the
// in-memory store, so shared apps can follow changes made by the lock holder.
func (a *App) Stored(id string) (model.Task, bool) {
	for _, t := range a.adapter.LoadTasks() {
		if t.ID == id {
			return t, true
		}
	}
	return model.Task{}, false
}

// Info describes where and how the app stores its state
type Info struct {
	DataDir       string
	DBPath        string // Empty when in memory
	SchemaVersion int64
	Keys          []string
	LastDate      string
	Tasks         int
	Shared        bool
}

// Info gathers storage details for diagnostics
func (a *App) Info() (Info, error) {
	info := Info{
		DataDir: a.DataDir,
		Tasks:   a.Store.Len(),
		Shared:  a.shared,
	}

	last, err := a.adapter.LastDate()
	if err != nil {
		return info, err
	}
	info.LastDate = last

	if a.db != nil {
		info.DBPath = a.db.Path()
		info.SchemaVersion = a.db.SchemaVersion()
		keys, err := a.db.Keys()
		if err != nil {
			return info, fmt.Errorf("listing keys: %w", err)
		}
		info.Keys = keys
	}
	return info, nil
}

// ResolveID expands a unique id prefix to the full task id
func (a *App) ResolveID(prefix string) (string, error) {
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		return "", store.ErrNotFound
	}

	var matches []string
	for _, t := range a.Store.List() {
		if t.ID == prefix {
			return t.ID, nil
		}
		if strings.HasPrefix(t.ID, prefix) {
			matches = append(matches, t.ID)
		}
	}

	switch len(matches) {
	case 0:
		return "", fmt.Errorf("%w: %s", store.ErrNotFound, prefix)
	case 1:
		return matches[0], nil
	default:
		return "", fmt.Errorf("%w: %s matches %d tasks", ErrAmbiguousID, prefix, len(matches))
	}
}

// Close cleans up application resources
func (a *App) Close() error {
	var errs []error

	if a.cancel != nil {
		a.cancel()
	}
	if a.Store != nil {
		if err := a.Store.Flush(); err != nil {
			errs = append(errs, fmt.Errorf("failed to save tasks: %w", err))
		}
	}

	if a.db != nil {
		if err := a.db.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close database: %w", err))
		}
	}

	a.releaseLock()
	a.closeLog()

	return errors.Join(errs...)
}
