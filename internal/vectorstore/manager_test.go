package vectorstore

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedOpen fails with the scripted errors in order, then returns a
// working fake client for every call after the script runs out.
type scriptedOpen struct {
	failures []error
	calls    int
	client   *fakeClient
}

func (s *scriptedOpen) open(_ context.Context) (Client, error) {
	s.calls++
	if s.calls <= len(s.failures) {
		return nil, s.failures[s.calls-1]
	}
	if s.client == nil {
		s.client = &fakeClient{}
	}
	return s.client, nil
}

type fakeClient struct {
	records  []Record
	countErr error
	closed   bool
}

func (f *fakeClient) Upsert(_ context.Context, records []Record) error {
	f.records = append(f.records, records...)
	return nil
}

func (f *fakeClient) Query(_ context.Context, _ []float32, _ int) ([]Match, error) {
	return nil, nil
}

func (f *fakeClient) DeleteByIDs(_ context.Context, ids []string) error {
	keep := f.records[:0]
	for _, r := range f.records {
		remove := false
		for _, id := range ids {
			if r.ID == id {
				remove = true
				break
			}
		}
		if !remove {
			keep = append(keep, r)
		}
	}
	f.records = keep
	return nil
}

func (f *fakeClient) DeleteByFilter(_ context.Context, _, value string) ([]string, error) {
	var ids []string
	for _, r := range f.records {
		if r.Metadata.Filename == value {
			ids = append(ids, r.ID)
		}
	}
	return ids, f.DeleteByIDs(context.Background(), ids)
}

func (f *fakeClient) Count(_ context.Context) (int, error) {
	if f.countErr != nil {
		return 0, f.countErr
	}
	return len(f.records), nil
}

func (f *fakeClient) GetAll(_ context.Context, limit, offset int, filterValue string) ([]Record, error) {
	var out []Record
	for _, r := range f.records {
		if filterValue != "" && r.Metadata.Filename != filterValue {
			continue
		}
		out = append(out, r)
	}
	if offset > len(out) {
		offset = len(out)
	}
	out = out[offset:]
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeClient) CollectionName() string { return "documents" }

func (f *fakeClient) Close() error {
	f.closed = true
	return nil
}

func noSleep(_ time.Duration) {}

func TestInitializeSucceedsAfterTransientFailures(t *testing.T) {
	open := &scriptedOpen{failures: []error{
		errors.New("could not connect to tenant default_tenant"),
		&Error{Kind: KindCollision, Op: "open", Err: errors.New("collection already exists")},
	}}

	m := NewManager(open.open, t.TempDir(), WithSleep(noSleep))
	handle, err := m.Initialize(context.Background())

	require.NoError(t, err)
	assert.Equal(t, StateReady, handle.State())
	assert.Equal(t, 3, open.calls)

	client, err := handle.Client()
	require.NoError(t, err)
	assert.Equal(t, "documents", client.CollectionName())
}

func TestInitializeExhaustsRetries(t *testing.T) {
	open := &scriptedOpen{failures: []error{
		errors.New("database is locked"),
		errors.New("database is locked"),
		errors.New("database is locked"),
		errors.New("database is locked"),
	}}

	m := NewManager(open.open, t.TempDir(), WithSleep(noSleep))
	_, err := m.Initialize(context.Background())

	// Three regular attempts plus the post-backup one.
	assert.Equal(t, 4, open.calls)

	var initErr *InitializationError
	require.ErrorAs(t, err, &initErr)
	assert.Equal(t, 3, initErr.Attempts)
	assert.Equal(t, StateFailed, m.Handle().State())

	_, err = m.Handle().Client()
	var unavailable *StoreUnavailableError
	require.ErrorAs(t, err, &unavailable)
	assert.Equal(t, StateFailed, unavailable.State)
}

func TestInitializeIsIdempotentOnceReady(t *testing.T) {
	open := &scriptedOpen{}
	m := NewManager(open.open, t.TempDir(), WithSleep(noSleep))

	_, err := m.Initialize(context.Background())
	require.NoError(t, err)
	_, err = m.Initialize(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, open.calls)
}

func TestInitializeBacksOffExponentially(t *testing.T) {
	open := &scriptedOpen{failures: []error{
		errors.New("could not connect to tenant"),
		errors.New("could not connect to tenant"),
	}}

	var delays []time.Duration
	m := NewManager(open.open, t.TempDir(),
		WithInitialDelay(10*time.Millisecond),
		WithSleep(func(d time.Duration) { delays = append(delays, d) }))
	m.jitter = func() float64 { return 0 }

	_, err := m.Initialize(context.Background())
	require.NoError(t, err)

	require.Len(t, delays, 2)
	assert.Equal(t, 10*time.Millisecond, delays[0])
	assert.Equal(t, 20*time.Millisecond, delays[1])
}

func TestGentleCleanupRemovesStaleFilesOnly(t *testing.T) {
	dir := t.TempDir()
	stale := []string{"documents.db-wal", "documents.db-journal", "init.lock", "chunk.tmp"}
	for _, name := range stale {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o600))
	}
	require.NoError(t, os.WriteFile(filepath.Join(dir, "documents.db"), []byte("data"), 0o600))

	open := &scriptedOpen{failures: []error{
		errors.New("database is locked"),
		errors.New("database is locked"),
	}}
	m := NewManager(open.open, dir, WithSleep(noSleep))

	_, err := m.Initialize(context.Background())
	require.NoError(t, err)

	for _, name := range stale {
		_, statErr := os.Stat(filepath.Join(dir, name))
		assert.True(t, os.IsNotExist(statErr), "expected %s to be removed", name)
	}
	_, statErr := os.Stat(filepath.Join(dir, "documents.db"))
	assert.NoError(t, statErr, "data file must survive gentle cleanup")
}

func TestAggressiveRecoveryBacksUpStorageOnFinalAttempt(t *testing.T) {
	parent := t.TempDir()
	dir := filepath.Join(parent, "vectordb")
	require.NoError(t, os.MkdirAll(dir, 0o750))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "documents.db"), []byte("corrupt"), 0o600))

	open := &scriptedOpen{failures: []error{
		errors.New("file is not a database"),
		errors.New("file is not a database"),
		errors.New("file is not a database"),
	}}
	m := NewManager(open.open, dir, WithSleep(noSleep))
	m.backups = func() string { return "20260101_000000" }

	_, err := m.Initialize(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 4, open.calls)

	backup := dir + "_backup_20260101_000000"
	data, readErr := os.ReadFile(filepath.Join(backup, "documents.db"))
	require.NoError(t, readErr, "corrupt data should be preserved under the backup path")
	assert.Equal(t, "corrupt", string(data))

	entries, readErr := os.ReadDir(dir)
	require.NoError(t, readErr)
	assert.Empty(t, entries, "storage path should be recreated empty")
}

func TestRecoverReplacesFailedHandle(t *testing.T) {
	open := &scriptedOpen{}
	m := NewManager(open.open, t.TempDir(), WithSleep(noSleep))

	_, err := m.Initialize(context.Background())
	require.NoError(t, err)
	first := open.client

	// Simulate the store going bad after startup.
	open.client = nil
	handle, err := m.Recover(context.Background())
	require.NoError(t, err)

	assert.True(t, first.closed, "recover must close the previous client")
	assert.Equal(t, StateReady, handle.State())

	client, err := handle.Client()
	require.NoError(t, err)
	assert.NotSame(t, first, client.(*fakeClient))
}

func TestTryOpenProbesCollection(t *testing.T) {
	bad := &fakeClient{countErr: errors.New("database disk image is malformed")}
	calls := 0
	open := func(_ context.Context) (Client, error) {
		calls++
		if calls == 1 {
			return bad, nil
		}
		return &fakeClient{}, nil
	}

	m := NewManager(open, t.TempDir(), WithSleep(noSleep))
	_, err := m.Initialize(context.Background())

	require.NoError(t, err)
	assert.True(t, bad.closed, "a client failing the probe must be closed")
	assert.Equal(t, 2, calls)
}

func TestRemoteBackendSkipsFilesystemRecovery(t *testing.T) {
	open := &scriptedOpen{failures: []error{
		errors.New("could not connect to tenant"),
		errors.New("could not connect to tenant"),
	}}

	// Empty storage path: no mkdir, no cleanup, no backup.
	m := NewManager(open.open, "", WithSleep(noSleep))
	handle, err := m.Initialize(context.Background())

	require.NoError(t, err)
	assert.Equal(t, StateReady, handle.State())
}
