package snapshot

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/nurpe/tract-board/internal/model"
	"github.com/nurpe/tract-board/internal/store"
)

// Publisher decouples readers from the mutation path. It keeps the latest
// versioned snapshot for polling and fans fresh snapshots out to push
// subscribers. Push delivery is best-effort: a full subscriber buffer drops
// the message, and the interval rebroadcast (plus polling) self-corrects.
type Publisher struct {
	mu      sync.RWMutex
	latest  model.Snapshot
	lastSeq uint64
	subs    map[chan model.Snapshot]struct{}
	bufSize int

	interval time.Duration
	now      func() time.Time
	log      zerolog.Logger
}

func New(interval time.Duration, bufSize int, now func() time.Time, log zerolog.Logger) *Publisher {
	if now == nil {
		now = time.Now
	}
	if bufSize <= 0 {
		bufSize = 8
	}
	return &Publisher{
		subs:     make(map[chan model.Snapshot]struct{}),
		bufSize:  bufSize,
		interval: interval,
		now:      now,
		log:      log,
	}
}

// Publish builds the next snapshot from a state copy the caller took
// inside the store's lock and broadcasts it. Called after every successful
// mutation, outside the store's lock.
//
// Mutations are applied under the store lock but published after it is
// released, so two publishes can arrive out of order. The store sequence
// decides: a copy older than one already published still gets its version
// bump (one mutation, one notification), but the newer records stay.
func (p *Publisher) Publish(state store.State) model.Snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()

	version := p.latest.Version + 1
	var snap model.Snapshot
	if state.Seq >= p.lastSeq {
		p.lastSeq = state.Seq
		snap = model.NewSnapshot(version, p.now(), state.Records)
	} else {
		snap = p.latest
		snap.Version = version
		snap.GeneratedAt = p.now()
	}
	p.latest = snap
	p.broadcastLocked(snap)
	return snap
}

// Latest returns the most recently published snapshot.
func (p *Publisher) Latest() model.Snapshot {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.latest
}

// Poll returns the latest snapshot only when it is newer than what the
// observer has already seen.
func (p *Publisher) Poll(lastSeen uint64) (model.Snapshot, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.latest.Version <= lastSeen {
		return model.Snapshot{}, false
	}
	return p.latest, true
}

// Subscribe registers a push observer. The returned cancel func must be
// called when the observer disconnects.
func (p *Publisher) Subscribe() (<-chan model.Snapshot, func()) {
	ch := make(chan model.Snapshot, p.bufSize)

	p.mu.Lock()
	p.subs[ch] = struct{}{}
	p.mu.Unlock()

	cancel := func() {
		p.mu.Lock()
		if _, ok := p.subs[ch]; ok {
			delete(p.subs, ch)
			close(ch)
		}
		p.mu.Unlock()
	}
	return ch, cancel
}

// Run rebroadcasts the latest snapshot on a fixed interval so a subscriber
// that missed a push is never stale for more than one tick.
func (p *Publisher) Run(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.mu.Lock()
			if p.latest.Version > 0 {
				p.broadcastLocked(p.latest)
			}
			p.mu.Unlock()
		}
	}
}

func (p *Publisher) broadcastLocked(snap model.Snapshot) {
	for ch := range p.subs {
		select {
		case ch <- snap:
		default:
			// Slow subscriber; the next tick or poll catches it up.
			p.log.Debug().Uint64("version", snap.Version).Msg("dropped snapshot for slow subscriber")
		}
	}
}
