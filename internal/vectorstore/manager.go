package vectorstore

import (
	"context"
	"log/slog"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// State is the lifecycle state of a Handle.
type State int

const (
	StateUninitialized State = iota
	StateInitializing
	StateReady
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateInitializing:
		return "initializing"
	case StateReady:
		return "ready"
	case StateFailed:
		return "failed"
	default:
		return "uninitialized"
	}
}

// Handle is the shared reference to a live collection. Only the Manager
// creates or replaces the client behind it; everything else reads
// through it.
type Handle struct {
	mu     sync.RWMutex
	client Client
	state  State
}

func (h *Handle) State() State {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.state
}

// Client returns the underlying client, or a StoreUnavailableError when
// the handle is not Ready.
func (h *Handle) Client() (Client, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.state != StateReady {
		return nil, &StoreUnavailableError{State: h.state}
	}
	return h.client, nil
}

func (h *Handle) set(client Client, state State) {
	h.mu.Lock()
	h.client = client
	h.state = state
	h.mu.Unlock()
}

// OpenFunc opens the backing collection. It is called once per attempt
// so recovery steps between attempts take effect.
type OpenFunc func(ctx context.Context) (Client, error)

// Manager owns handle initialization and recovery. StoragePath is the
// local directory behind embedded backends; leave it empty for remote
// backends, which disables the filesystem recovery steps.
type Manager struct {
	open        OpenFunc
	storagePath string

	maxRetries   int
	initialDelay time.Duration

	// Injected for tests.
	sleep   func(time.Duration)
	jitter  func() float64
	backups func() string

	mu     sync.Mutex
	handle *Handle
}

// Option configures a Manager.
type Option func(*Manager)

func WithMaxRetries(n int) Option {
	return func(m *Manager) { m.maxRetries = n }
}

func WithInitialDelay(d time.Duration) Option {
	return func(m *Manager) { m.initialDelay = d }
}

// WithSleep replaces the inter-attempt sleep, letting tests simulate
// backoff without real delays.
func WithSleep(fn func(time.Duration)) Option {
	return func(m *Manager) { m.sleep = fn }
}

func NewManager(open OpenFunc, storagePath string, opts ...Option) *Manager {
	m := &Manager{
		open:         open,
		storagePath:  storagePath,
		maxRetries:   3,
		initialDelay: time.Second,
		sleep:        time.Sleep,
		jitter:       rand.Float64,
		backups: func() string {
			return time.Now().Format("20060102_150405")
		},
		handle: &Handle{},
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Handle returns the shared handle. It starts Uninitialized and becomes
// Ready once Initialize succeeds.
func (m *Manager) Handle() *Handle { return m.handle }

// Initialize brings the handle to Ready, retrying with exponential
// backoff. Concurrent callers are serialized; once one succeeds the
// rest return immediately with the same handle.
func (m *Manager) Initialize(ctx context.Context) (*Handle, error) {
	if m.handle.State() == StateReady {
		return m.handle, nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	// Double check: another caller may have finished while we waited.
	if m.handle.State() == StateReady {
		return m.handle, nil
	}
	return m.initLocked(ctx)
}

// Recover discards the current handle state and runs a fresh
// initialization cycle. At most one recovery runs at a time; callers
// racing an in-flight recovery get its result.
func (m *Manager) Recover(ctx context.Context) (*Handle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if old, err := m.handle.Client(); err == nil {
		if cerr := old.Close(); cerr != nil {
			slog.Warn("failed to close previous vector store client", "error", cerr)
		}
	}
	m.handle.set(nil, StateUninitialized)
	return m.initLocked(ctx)
}

func (m *Manager) initLocked(ctx context.Context) (*Handle, error) {
	m.handle.set(nil, StateInitializing)
	slog.Info("initializing vector store", "max_retries", m.maxRetries, "path", m.storagePath)

	var lastErr error
	for attempt := 0; attempt < m.maxRetries; attempt++ {
		client, err := m.tryOpen(ctx)
		if err == nil {
			m.handle.set(client, StateReady)
			return m.handle, nil
		}
		lastErr = err

		kind := Classify(err)
		switch kind {
		case KindTenant, KindCollision:
			m.logRecoverableError(err, kind, attempt+1)
			if attempt > 0 {
				m.gentleCleanup()
			}
		default:
			slog.Error("vector store initialization error", "attempt", attempt+1, "error", err)
		}

		if attempt == m.maxRetries-1 {
			break
		}

		delay := m.initialDelay*(1<<attempt) + time.Duration(m.jitter()*float64(100*time.Millisecond))
		slog.Info("retrying vector store initialization", "delay", delay)
		m.sleep(delay)
	}

	// Last resort: move whatever is on disk aside and open against an
	// empty directory.
	if m.storagePath != "" {
		m.aggressiveRecovery()
		if client, err := m.tryOpen(ctx); err == nil {
			m.handle.set(client, StateReady)
			slog.Info("vector store recovered from backed-up state", "path", m.storagePath)
			return m.handle, nil
		} else {
			lastErr = err
		}
	}

	m.handle.set(nil, StateFailed)
	slog.Error("vector store initialization failed", "attempts", m.maxRetries, "error", lastErr)
	return nil, &InitializationError{Attempts: m.maxRetries, Err: lastErr}
}

func (m *Manager) tryOpen(ctx context.Context) (Client, error) {
	if m.storagePath != "" {
		if err := os.MkdirAll(m.storagePath, 0o750); err != nil {
			return nil, &Error{Kind: KindUnknown, Op: "mkdir", Err: err}
		}
	}

	client, err := m.open(ctx)
	if err != nil {
		return nil, err
	}

	// Probe with a trivial read; a half-initialized collection fails here.
	if _, err := client.Count(ctx); err != nil {
		_ = client.Close()
		return nil, err
	}
	return client, nil
}

func (m *Manager) logRecoverableError(err error, kind ErrorKind, attempt int) {
	exists := false
	writable := false
	if m.storagePath != "" {
		if _, statErr := os.Stat(m.storagePath); statErr == nil {
			exists = true
			probe := filepath.Join(m.storagePath, ".write_probe")
			if f, werr := os.Create(probe); werr == nil {
				_ = f.Close()
				_ = os.Remove(probe)
				writable = true
			}
		}
	}

	slog.Warn("vector store recoverable error",
		"kind", kind.String(),
		"attempt", attempt,
		"max_attempts", m.maxRetries,
		"path", m.storagePath,
		"path_exists", exists,
		"path_writable", writable,
		"error", err,
	)
}

// gentleCleanup removes stray lock and temp files that a crashed prior
// instance may have left under the storage path, without touching data.
func (m *Manager) gentleCleanup() {
	if m.storagePath == "" {
		return
	}

	// WAL and journal leftovers keep SQLite in a locked state.
	staleSuffixes := []string{".lock", ".tmp", "-wal", "-journal"}

	var stale []string
	err := filepath.WalkDir(m.storagePath, func(path string, d os.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		for _, suffix := range staleSuffixes {
			if strings.HasSuffix(d.Name(), suffix) {
				stale = append(stale, path)
				break
			}
		}
		return nil
	})
	if err != nil {
		slog.Warn("gentle vector store cleanup failed", "error", err)
		return
	}

	if len(stale) == 0 {
		return
	}
	slog.Info("removing stale vector store files", "count", len(stale))
	for _, path := range stale {
		if err := os.Remove(path); err != nil {
			slog.Warn("could not remove stale file", "path", path, "error", err)
		}
	}
}

// aggressiveRecovery moves the whole storage directory to a timestamped
// backup and recreates it empty, so the final attempt starts fresh.
func (m *Manager) aggressiveRecovery() {
	if m.storagePath == "" {
		return
	}

	if _, err := os.Stat(m.storagePath); err == nil {
		backupPath := m.storagePath + "_backup_" + m.backups()
		slog.Info("aggressive vector store recovery", "backup_path", backupPath)
		if err := os.Rename(m.storagePath, backupPath); err != nil {
			slog.Error("aggressive vector store recovery failed", "error", err)
			return
		}
	}
	if err := os.MkdirAll(m.storagePath, 0o750); err != nil {
		slog.Error("failed to recreate vector store directory", "error", err)
	}
}
