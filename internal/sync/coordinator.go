package sync

import (
	"bytes"
	"context"
	"fmt"
	gosync "sync"
	"time"

	"github.com/user/tally/internal/model"
	"github.com/user/tally/internal/remote"
	"github.com/user/tally/internal/storage"
)

// DefaultDebounce is how long a table must stay quiet after a change
// before its sync cycle starts. Bursts of writes within the window
// collapse into one cycle.
const DefaultDebounce = 2 * time.Second

// LogFunc matches the logging callback used across the module.
type LogFunc func(format string, args ...interface{})

func noopLog(string, ...interface{}) {}

// State is the sync lifecycle position of one table.
type State int

const (
	// Idle means no sync activity is scheduled or running.
	Idle State = iota
	// PendingSync means a change was seen and the debounce timer is armed.
	PendingSync
	// ActiveSync means a sync cycle is currently executing.
	ActiveSync
)

// String implements fmt.Stringer.
func (s State) String() string {
	switch s {
	case PendingSync:
		return "pending"
	case ActiveSync:
		return "active"
	default:
		return "idle"
	}
}

// EventKind classifies coordinator events.
type EventKind string

const (
	// EventSynced reports a completed sync cycle.
	EventSynced EventKind = "synced"
	// EventConflict reports a divergence that could not be merged by id,
	// resolved by taking the remote copy.
	EventConflict EventKind = "conflict"
	// EventError reports a failed sync cycle; the table stays dirty and
	// the next change retries.
	EventError EventKind = "error"
)

// Event is an observable sync outcome.
type Event struct {
	Key     model.TableKey
	Kind    EventKind
	Message string
}

// eventBufferSize bounds the events channel; sends never block.
const eventBufferSize = 64

// Coordinator drives background sync: it watches the store's change
// feed, debounces per table, and runs upload/download cycles against
// the remote client. Cycles for the same table never overlap.
type Coordinator struct {
	store    *storage.TableStore
	client   remote.Client
	meta     *MetadataStore
	logf     LogFunc
	debounce time.Duration

	mu     gosync.Mutex
	states map[string]State
	timers map[string]*time.Timer

	due    chan model.TableKey
	events chan Event
	wg     gosync.WaitGroup
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithDebounce overrides the quiet window before a cycle starts.
func WithDebounce(d time.Duration) Option {
	return func(c *Coordinator) { c.debounce = d }
}

// WithLogger sets the logging callback.
func WithLogger(logFn LogFunc) Option {
	return func(c *Coordinator) {
		if logFn != nil {
			c.logf = logFn
		}
	}
}

// NewCoordinator wires a coordinator to a table store, a remote client,
// and a metadata store.
func NewCoordinator(store *storage.TableStore, client remote.Client, meta *MetadataStore, opts ...Option) *Coordinator {
	c := &Coordinator{
		store:    store,
		client:   client,
		meta:     meta,
		logf:     noopLog,
		debounce: DefaultDebounce,
		states:   map[string]State{},
		timers:   map[string]*time.Timer{},
		due:      make(chan model.TableKey, changeQueueSize),
		events:   make(chan Event, eventBufferSize),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// changeQueueSize bounds the debounce-expired queue.
const changeQueueSize = 64

// Events returns the channel of sync outcomes. Events are dropped
// rather than blocking when no one is listening.
func (c *Coordinator) Events() <-chan Event {
	return c.events
}

// Run consumes the store's change feed until the context is cancelled,
// debouncing each changed table and syncing it after the quiet window.
func (c *Coordinator) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			c.stopTimers()
			return
		case key := <-c.store.Changes():
			c.NotifyChanged(key)
		case key := <-c.due:
			c.syncOne(ctx, key, false)
		}
	}
}

// NotifyChanged marks a table dirty and (re)arms its debounce timer.
// A table already in an active cycle is left alone; its write will be
// picked up by the cycle's own comparison or by the next change.
func (c *Coordinator) NotifyChanged(key model.TableKey) {
	c.mu.Lock()
	defer c.mu.Unlock()

	id := key.String()
	if c.states[id] == ActiveSync {
		return
	}
	c.states[id] = PendingSync

	if t, ok := c.timers[id]; ok {
		t.Stop()
	}
	c.timers[id] = time.AfterFunc(c.debounce, func() {
		select {
		case c.due <- key:
		default:
			c.logf("Sync queue full, dropping %s", key)
		}
	})
	c.logf("Change detected for %s, sync in %v", key, c.debounce)
}

// SyncNow runs a sync cycle for one table immediately, bypassing the
// debounce window.
func (c *Coordinator) SyncNow(ctx context.Context, key model.TableKey, force bool) error {
	return c.syncOne(ctx, key, force)
}

// SyncAll syncs every table under every module directory. With force
// set, unchanged tables are uploaded anyway.
func (c *Coordinator) SyncAll(ctx context.Context, force bool) error {
	var failed int
	for _, module := range c.store.ListModules() {
		for _, key := range c.store.ListTables(module) {
			if err := c.syncOne(ctx, key, force); err != nil {
				c.logf("Sync failed for %s: %v", key, err)
				failed++
			}
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d table(s) failed to sync", failed)
	}
	return nil
}

// TableStatus is one table's entry in a status report.
type TableStatus struct {
	Key   string    `json:"table"`
	State string    `json:"state"`
	Meta  TableMeta `json:"meta"`
}

// Status reports the current sync state and recorded metadata for
// every known table.
func (c *Coordinator) Status() []TableStatus {
	c.mu.Lock()
	states := make(map[string]State, len(c.states))
	for k, v := range c.states {
		states[k] = v
	}
	c.mu.Unlock()

	seen := map[string]bool{}
	var out []TableStatus
	for _, key := range c.meta.Keys() {
		meta, _ := c.meta.Get(key)
		out = append(out, TableStatus{Key: key, State: states[key].String(), Meta: meta})
		seen[key] = true
	}
	for key, state := range states {
		if !seen[key] {
			out = append(out, TableStatus{Key: key, State: state.String()})
		}
	}
	return out
}

// Close stops all pending timers and waits for in-flight work.
func (c *Coordinator) Close() {
	c.stopTimers()
	c.wg.Wait()
}

func (c *Coordinator) stopTimers() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for id, t := range c.timers {
		t.Stop()
		delete(c.timers, id)
	}
}

// syncOne runs one full cycle for a table. Returns nil when the table
// was already in sync or an active cycle was skipped.
func (c *Coordinator) syncOne(ctx context.Context, key model.TableKey, force bool) (err error) {
	id := key.String()

	c.mu.Lock()
	if c.states[id] == ActiveSync {
		c.mu.Unlock()
		c.logf("Sync already active for %s, skipping", key)
		return nil
	}
	c.states[id] = ActiveSync
	if t, ok := c.timers[id]; ok {
		t.Stop()
		delete(c.timers, id)
	}
	c.mu.Unlock()

	c.wg.Add(1)
	defer func() {
		c.mu.Lock()
		c.states[id] = Idle
		c.mu.Unlock()
		c.wg.Done()

		if r := recover(); r != nil {
			err = fmt.Errorf("sync panicked for %s: %v", key, r)
			c.emit(Event{Key: key, Kind: EventError, Message: err.Error()})
		}
	}()

	err = c.cycle(ctx, key, force)
	if err != nil {
		c.emit(Event{Key: key, Kind: EventError, Message: err.Error()})
	}
	return err
}

// cycle is the sync algorithm for one table:
//
//  1. Fingerprint the local file; if neither the local copy nor the
//     remote copy changed since the last recorded sync, stop.
//  2. On first sync (or force), upload the local copy.
//  3. Otherwise download the remote copy; identical content just
//     refreshes metadata, a missing remote gets the upload, and a
//     divergence is merged by timestamp, written locally, and uploaded.
//
// Metadata is recorded at the end of every cycle: successful cycles
// store the fresh fingerprints, failed cycles of a known table keep the
// stale fingerprints (so the table stays dirty and retries) but still
// bump the attempt counter.
func (c *Coordinator) cycle(ctx context.Context, key model.TableKey, force bool) (err error) {
	id := key.String()
	path := c.store.Path(key)

	localHash := storage.Fingerprint(path)
	localMod := storage.ModifiedAt(path)
	prev, known := c.meta.Get(id)

	record := func(remoteHash string) {
		c.meta.Update(id, time.Now().Format(time.RFC3339), storage.Fingerprint(path), remoteHash, localMod)
		if err := c.meta.Save(); err != nil {
			c.logf("Warning: failed to save sync metadata: %v", err)
		}
	}

	defer func() {
		if err != nil && known {
			c.meta.Update(id, time.Now().Format(time.RFC3339), prev.LocalHash, prev.RemoteHash, prev.LastModified)
			if saveErr := c.meta.Save(); saveErr != nil {
				c.logf("Warning: failed to save sync metadata: %v", saveErr)
			}
		}
	}()

	// Cheap path: nothing moved on either side.
	if known && !force && localHash == prev.LocalHash {
		if remoteHash := c.client.Hash(ctx, key); remoteHash != "" && remoteHash == prev.RemoteHash {
			c.logf("No changes for %s, skipping sync", key)
			return nil
		}
	}

	local := c.store.Read(key, nil)

	// First sync or forced push: local copy wins.
	if !known || force {
		return c.upload(ctx, key, local, record)
	}

	ok, payload, message := c.client.Download(ctx, key)
	if !ok {
		return fmt.Errorf("%w: %s", model.ErrRemoteUnavailable, message)
	}

	if payload == nil || payload.IsEmpty() {
		return c.upload(ctx, key, local, record)
	}

	theirs := payload.Table(key)
	if sameTable(local, theirs) {
		c.logf("Local and remote already match for %s", key)
		record(c.client.Hash(ctx, key))
		c.emit(Event{Key: key, Kind: EventSynced, Message: "already in sync"})
		return nil
	}

	merged, resolved := Merge(local, theirs)
	if !resolved {
		c.logf("Conflict for %s could not be merged by id, remote copy wins", key)
		c.emit(Event{Key: key, Kind: EventConflict, Message: "tables lack an id column, remote copy kept"})
	}

	if err := c.store.Write(key, merged); err != nil {
		return fmt.Errorf("failed to write merged table %s: %w", key, err)
	}
	localMod = storage.ModifiedAt(path)

	return c.upload(ctx, key, merged, record)
}

// upload pushes a table to the remote and records the cycle.
func (c *Coordinator) upload(ctx context.Context, key model.TableKey, tbl *model.Table, record func(remoteHash string)) error {
	payload := remote.NewPayload(tbl, time.Now())
	ok, message := c.client.Upload(ctx, key, payload)
	if !ok {
		return fmt.Errorf("%w: %s", model.ErrRemoteUnavailable, message)
	}

	record(c.client.Hash(ctx, key))
	c.logf("Synced %s: %s", key, message)
	c.emit(Event{Key: key, Kind: EventSynced, Message: message})
	return nil
}

// sameTable compares two tables by canonical CSV form.
func sameTable(a, b *model.Table) bool {
	ae, errA := storage.EncodeTable(a)
	be, errB := storage.EncodeTable(b)
	if errA != nil || errB != nil {
		return false
	}
	return bytes.Equal(ae, be)
}

func (c *Coordinator) emit(ev Event) {
	select {
	case c.events <- ev:
	default:
	}
}
