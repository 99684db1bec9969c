package vdp

import "sync"

// RenderEventKind tags a variant carried across the producer/consumer render
// queue.
type RenderEventKind int

const (
	EvReset RenderEventKind = iota
	EvOddField
	EvVDP1EraseFramebuffer
	EvVDP1SwapFramebuffer
	EvVDP1BeginFrame
	EvVDP2BeginFrame
	EvVDP2UpdateEnabledBGs
	EvVDP2DrawLine
	EvVDP2EndFrame
	EvWriteVRAM1 // VDP1 VRAM write-through, Width bytes at Addr
	EvWriteVRAM2 // VDP2 VRAM write-through
	EvWriteCRAM  // VDP2 CRAM write-through
	EvPreSaveStateSync
	EvPostLoadStateSync
	EvVDP1StateSync
	EvUpdateEffectiveRenderingFlags
	EvShutdown
)

// RenderEvent is one entry on the render queue. Only the fields relevant to
// Kind are populated; the rest are zero.
type RenderEvent struct {
	Kind  RenderEventKind
	Addr  uint32
	Value uint32
	Width int // 1 or 2, for write-through events
	Line  int // for VDP2DrawLine
	Odd   bool

	// sync is non-nil for the *Sync kinds and Shutdown; the consumer closes
	// it once the event (and everything staged ahead of it) has been
	// applied, letting the producer block until the renderer has drained.
	sync chan struct{}
}

func isWriteEvent(k RenderEventKind) bool {
	return k == EvWriteVRAM1 || k == EvWriteVRAM2 || k == EvWriteCRAM
}

// stagingCapacity is the write-event batch size before a forced flush (
// "small staging buffer (64 entries)").
const stagingCapacity = 64

// RenderQueue is the bounded single-producer/single-consumer (plus optional
// deinterlace worker, not modeled separately here) queue carrying hardware
// simulation events to the renderer. Writes are batched in a staging buffer
// and flushed as one slice, preserving total order while cutting
// synchronization overhead; non-write events force an immediate flush.
type RenderQueue struct {
	Apply func(RenderEvent)

	threaded bool
	batches  chan []RenderEvent
	staging  []RenderEvent
	wg       sync.WaitGroup
}

// NewRenderQueue returns a queue that applies events via apply. When
// threaded is false, Push runs apply synchronously on the caller's
// goroutine and no consumer goroutine is started.
func NewRenderQueue(threaded bool, capacity int, apply func(RenderEvent)) *RenderQueue {
	q := &RenderQueue{Apply: apply, threaded: threaded}
	if threaded {
		q.batches = make(chan []RenderEvent, capacity)
		q.wg.Add(1)
		go q.consume()
	}
	return q
}

func (q *RenderQueue) consume() {
	defer q.wg.Done()
	for batch := range q.batches {
		for _, ev := range batch {
			q.Apply(ev)
			if ev.sync != nil {
				close(ev.sync)
			}
		}
	}
}

// Push enqueues ev. Write-through events accumulate in the staging buffer;
// any other event kind forces a flush first so ordering relative to draw
// commands is preserved.
func (q *RenderQueue) Push(ev RenderEvent) {
	if !q.threaded {
		q.Apply(ev)
		return
	}
	if !isWriteEvent(ev.Kind) {
		q.flush()
		q.staging = append(q.staging, ev)
		q.flush()
		return
	}
	q.staging = append(q.staging, ev)
	if len(q.staging) >= stagingCapacity {
		q.flush()
	}
}

func (q *RenderQueue) flush() {
	if len(q.staging) == 0 {
		return
	}
	batch := q.staging
	q.staging = nil
	q.batches <- batch
}

// Sync pushes a synchronization event of the given kind and blocks until the
// consumer has drained everything staged ahead of it, used before save-state
// snapshot/restore.
func (q *RenderQueue) Sync(kind RenderEventKind) {
	if !q.threaded {
		q.Apply(RenderEvent{Kind: kind})
		return
	}
	done := make(chan struct{})
	q.staging = append(q.staging, RenderEvent{Kind: kind, sync: done})
	q.flush()
	<-done
}

// Shutdown flushes any staged events, signals the consumer goroutine to
// exit, and waits for it to finish. Safe to call on a non-threaded queue as
// a no-op beyond applying the Shutdown event.
func (q *RenderQueue) Shutdown() {
	if !q.threaded {
		q.Apply(RenderEvent{Kind: EvShutdown})
		return
	}
	q.staging = append(q.staging, RenderEvent{Kind: EvShutdown})
	q.flush()
	close(q.batches)
	q.wg.Wait()
}
