// Package broadcast forwards committed lobby snapshots to external
// publishers. Delivery is fire-and-forget relative to the state mutation: the
// lobby never waits on a publisher.
package broadcast

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/DoyleJ11/santa-draw-backend/internal/lobby"
)

// Publisher delivers one snapshot to some external channel.
type Publisher interface {
	Publish(ctx context.Context, snap lobby.Snapshot) error
}

const publishTimeout = 3 * time.Second

// Relay buffers snapshots and hands them to every publisher from a single
// goroutine, so each publisher sees them in commit order.
type Relay struct {
	queue      chan lobby.Snapshot
	publishers []Publisher
	log        *zap.Logger

	closeOnce sync.Once
	done      chan struct{}
}

func NewRelay(log *zap.Logger, buffer int, publishers ...Publisher) *Relay {
	if log == nil {
		log = zap.NewNop()
	}
	r := &Relay{
		queue:      make(chan lobby.Snapshot, buffer),
		publishers: publishers,
		log:        log,
		done:       make(chan struct{}),
	}
	go r.run()
	return r
}

// Forward enqueues snap. When the queue is full the snapshot is dropped;
// observers recover by pulling a fresh snapshot.
func (r *Relay) Forward(snap lobby.Snapshot) {
	select {
	case r.queue <- snap:
	default:
		r.log.Warn("broadcast queue full, dropping message", zap.Int("version", snap.Version))
	}
}

func (r *Relay) run() {
	defer close(r.done)
	for snap := range r.queue {
		for _, p := range r.publishers {
			ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
			if err := p.Publish(ctx, snap); err != nil {
				r.log.Error("publish failed", zap.Int("version", snap.Version), zap.Error(err))
			}
			cancel()
		}
	}
}

// Close stops accepting snapshots and waits until queued ones are published.
// Forward must not be called after Close.
func (r *Relay) Close() {
	r.closeOnce.Do(func() { close(r.queue) })
	<-r.done
}
