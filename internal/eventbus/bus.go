// Package eventbus is the lifecycle event emitter the Orchestrator
// publishes BEGIN/STEP_*/COMPENSATE_*/TIMEOUT/FINISH notifications to
// (spec §2, §4.9). It is adapted from the teacher's internal/engine/event
// queue: a bounded, sequentially-drained caravan topic feeding a batch
// handler, generalized here into a typed pub/sub surface (On/Off/Once)
// per spec.md's design note on the event emitter, since nothing else in
// this module owns a single fixed handler the way the teacher's engine
// does.
package eventbus

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/kode4food/caravan"
	"github.com/kode4food/caravan/topic"

	"github.com/kode4food/txsaga/pkg/saga"
	"github.com/kode4food/txsaga/pkg/slogx"
)

type (
	// Listener receives one Event. Listeners run synchronously in the
	// bus's dispatch goroutine and must not block (spec §4.9); a
	// listener that panics is recovered and logged, matching the
	// teacher's ErrHandlerPanicked handling.
	Listener func(saga.Event)

	subscription struct {
		id     uint64
		kind   saga.EventType // "" subscribes to all kinds
		once   bool
		listen Listener
	}

	// Bus is the transaction lifecycle event emitter. One Bus instance
	// is shared across every transaction an Orchestrator drives.
	Bus struct {
		prod topic.Producer[saga.Event]
		cons topic.Consumer[saga.Event]

		mu        sync.Mutex
		subs      []subscription
		nextSubID uint64

		batchSize int
		stop      chan struct{}
		wg        sync.WaitGroup
		startOnce sync.Once
		stopOnce  sync.Once
	}
)

const defaultBatchSize = 32

// New constructs a Bus and starts its dispatch loop.
func New() *Bus {
	t := caravan.NewTopic[saga.Event]()
	b := &Bus{
		prod:      t.NewProducer(),
		cons:      t.NewConsumer(),
		batchSize: defaultBatchSize,
		stop:      make(chan struct{}),
	}
	b.start()
	return b
}

// On subscribes listen to every event of kind and returns an unsubscribe
// handle equivalent to calling Off.
func (b *Bus) On(kind saga.EventType, listen Listener) func() {
	return b.subscribe(kind, listen, false)
}

// OnAny subscribes listen to every event regardless of kind.
func (b *Bus) OnAny(listen Listener) func() {
	return b.subscribe("", listen, false)
}

// Once subscribes listen to the next event of kind only.
func (b *Bus) Once(kind saga.EventType, listen Listener) func() {
	return b.subscribe(kind, listen, true)
}

// Off removes a listener added by On/OnAny/Once. Prefer calling the
// unsubscribe func On returns; Off is for callers that stored only the
// listener reference and must scan for it (rare; O(n)).
func (b *Bus) Off(kind saga.EventType, listen Listener) {
	b.mu.Lock()
	defer b.mu.Unlock()
	kept := b.subs[:0]
	for _, s := range b.subs {
		if s.kind == kind && fmt.Sprintf("%p", s.listen) == fmt.Sprintf("%p", listen) {
			continue
		}
		kept = append(kept, s)
	}
	b.subs = kept
}

func (b *Bus) subscribe(kind saga.EventType, listen Listener, once bool) func() {
	b.mu.Lock()
	b.nextSubID++
	id := b.nextSubID
	b.subs = append(b.subs, subscription{id: id, kind: kind, once: once, listen: listen})
	b.mu.Unlock()

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		for i, s := range b.subs {
			if s.id == id {
				b.subs = append(b.subs[:i], b.subs[i+1:]...)
				return
			}
		}
	}
}

// Emit enqueues ev for asynchronous dispatch to subscribers, stamping At
// if the caller left it zero.
func (b *Bus) Emit(ev saga.Event) {
	if ev.At == 0 {
		ev.At = time.Now().UnixMilli()
	}
	b.prod.Send() <- ev
}

func (b *Bus) start() {
	b.startOnce.Do(func() {
		b.wg.Add(1)
		go func() {
			defer b.wg.Done()
			for {
				select {
				case <-b.stop:
					return
				case ev, ok := <-b.cons.Receive():
					if !ok {
						return
					}
					b.dispatch(ev)
				}
			}
		}()
	})
}

func (b *Bus) dispatch(ev saga.Event) {
	b.mu.Lock()
	matched := make([]subscription, 0, len(b.subs))
	kept := b.subs[:0]
	for _, s := range b.subs {
		if s.kind == "" || s.kind == ev.Type {
			matched = append(matched, s)
			if s.once {
				continue
			}
		}
		kept = append(kept, s)
	}
	b.subs = kept
	b.mu.Unlock()

	for _, s := range matched {
		b.invoke(s.listen, ev)
	}
}

func (b *Bus) invoke(listen Listener, ev saga.Event) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("event listener panicked",
				slogx.TxID(ev.TransactionID),
				slog.Any("event_type", ev.Type),
				slog.Any("panic", r))
		}
	}()
	listen(ev)
}

// Close stops dispatch and releases the underlying topic.
func (b *Bus) Close() {
	b.stopOnce.Do(func() {
		close(b.stop)
	})
	b.wg.Wait()
	b.prod.Close()
	b.cons.Close()
}
