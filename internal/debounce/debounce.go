// Package debounce turns the high-frequency stream of editor events into
// well-spaced render submissions. Saves go through the preemptive path and
// submit at once; keystrokes go through the deferred path and only fire
// after the configured quiet period.
package debounce

import (
	"context"
	"sync"
	"time"

	"github.com/markview/markview/internal/logging"
	"github.com/markview/markview/internal/source"
	"github.com/markview/markview/internal/types"
)

// tickInterval is how often the loop scans for expired slots; a new slot
// also wakes it immediately.
const tickInterval = 20 * time.Millisecond

// preemptGuard drops preemptive submissions arriving within this window of
// the previous one for the same buffer, coalescing save bursts.
const preemptGuard = 10 * time.Millisecond

type slot struct {
	filename string
	deadline time.Time
}

// Debouncer owns the per-buffer slot map and the tick loop.
type Debouncer struct {
	mu          sync.Mutex
	slots       map[types.BufferID]*slot
	lastPreempt map[types.BufferID]time.Time
	delay       time.Duration

	src    source.BufferSource
	submit func(types.WorkItem) error
	logger logging.Logger

	wake chan struct{}
	stop chan struct{}
	done chan struct{}

	startOnce sync.Once
	stopOnce  sync.Once
}

// New creates a debouncer that snapshots buffers from src and hands work
// items to submit. delay is the deferred-path quiet period.
func New(src source.BufferSource, submit func(types.WorkItem) error, delay time.Duration, logger logging.Logger) *Debouncer {
	return &Debouncer{
		slots:       make(map[types.BufferID]*slot),
		lastPreempt: make(map[types.BufferID]time.Time),
		delay:       delay,
		src:         src,
		submit:      submit,
		logger:      logger.WithComponent("debounce"),
		wake:        make(chan struct{}, 1),
		stop:        make(chan struct{}),
		done:        make(chan struct{}),
	}
}

// Start launches the tick loop.
func (d *Debouncer) Start() {
	d.startOnce.Do(func() {
		go d.loop()
	})
}

// Stop terminates the tick loop; pending slots are discarded.
func (d *Debouncer) Stop() {
	d.stopOnce.Do(func() {
		close(d.stop)
		<-d.done
	})
}

// SetDelay changes the deferred-path quiet period for future slots.
func (d *Debouncer) SetDelay(delay time.Duration) {
	d.mu.Lock()
	d.delay = delay
	d.mu.Unlock()
}

// Preempt submits the buffer immediately, cancelling any deferred slot.
// Bursts within the guard window collapse into the first submission.
func (d *Debouncer) Preempt(id types.BufferID) {
	now := time.Now()

	d.mu.Lock()
	if last, ok := d.lastPreempt[id]; ok && now.Sub(last) < preemptGuard {
		d.mu.Unlock()
		return
	}
	d.lastPreempt[id] = now
	delete(d.slots, id)
	d.mu.Unlock()

	d.submitSnapshot(id, "")
}

// Defer creates or refreshes the deferred slot for the buffer. While a
// slot exists, further calls only renew its payload and deadline; a single
// submission fires once the quiet period elapses.
func (d *Debouncer) Defer(id types.BufferID) {
	snapshot, ok := d.src.Snapshot(id)
	if !ok {
		return
	}

	d.mu.Lock()
	d.slots[id] = &slot{
		filename: snapshot.Fullpath,
		deadline: time.Now().Add(d.delay),
	}
	d.mu.Unlock()

	select {
	case d.wake <- struct{}{}:
	default:
	}
}

// PendingFor reports whether a deferred slot exists for the buffer.
func (d *Debouncer) PendingFor(id types.BufferID) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, ok := d.slots[id]
	return ok
}

func (d *Debouncer) loop() {
	defer close(d.done)
	timer := time.NewTimer(tickInterval)
	defer timer.Stop()

	for {
		select {
		case <-d.stop:
			return
		case <-d.wake:
		case <-timer.C:
		}
		d.fireExpired(time.Now())

		if !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
		timer.Reset(tickInterval)
	}
}

func (d *Debouncer) fireExpired(now time.Time) {
	type expired struct {
		id       types.BufferID
		filename string
	}

	d.mu.Lock()
	var due []expired
	for id, s := range d.slots {
		if !s.deadline.After(now) {
			due = append(due, expired{id: id, filename: s.filename})
			delete(d.slots, id)
		}
	}
	d.mu.Unlock()

	for _, e := range due {
		d.submitSnapshot(e.id, e.filename)
	}
}

// submitSnapshot re-reads the buffer and submits it. With wantFilename set
// it verifies the buffer is still loaded under the same name as when the
// slot was created, and discards the slot silently otherwise.
func (d *Debouncer) submitSnapshot(id types.BufferID, wantFilename string) {
	snapshot, ok := d.src.Snapshot(id)
	if !ok {
		return
	}
	if wantFilename != "" && snapshot.Fullpath != wantFilename {
		return
	}
	if err := d.submit(snapshot.WorkItem()); err != nil {
		d.logger.Debug(context.Background(), "submission dropped",
			"buffer_id", id, "reason", err.Error())
	}
}
