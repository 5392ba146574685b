package room

import (
	"context"
	"math/rand/v2"
	"time"

	"github.com/sharetube/listenroom/internal/domain"
)

// roomActor owns one room's state. Every read and write of its fields happens
// on the run goroutine.
type roomActor struct {
	id      string
	ownerId string
	state   domain.State
	known   map[string]struct{}
	// lastSuggestion holds the time of each member's last accepted suggestion.
	lastSuggestion map[string]time.Time
	rnd            *rand.Rand

	cmds   chan func()
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}

	// idleSince is owned by the sweeper.
	idleSince time.Time
}

func newRoomActor(id string, state domain.State, rnd *rand.Rand) *roomActor {
	ctx, cancel := context.WithCancel(context.Background())
	return &roomActor{
		id:             id,
		state:          state,
		known:          make(map[string]struct{}),
		lastSuggestion: make(map[string]time.Time),
		rnd:            rnd,
		cmds:           make(chan func()),
		ctx:            ctx,
		cancel:         cancel,
		done:           make(chan struct{}),
	}
}

func (r *roomActor) run(tickInterval time.Duration, tick func()) {
	defer close(r.done)

	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-r.ctx.Done():
			return
		case fn := <-r.cmds:
			fn()
		case <-ticker.C:
			tick()
		}

		if r.ctx.Err() != nil {
			return
		}
	}
}

// exec runs fn on the room goroutine and waits for its result.
func (r *roomActor) exec(ctx context.Context, fn func() error) error {
	errCh := make(chan error, 1)
	select {
	case r.cmds <- func() { errCh <- fn() }:
	case <-r.ctx.Done():
		return errRoomClosed
	case <-ctx.Done():
		return ctx.Err()
	}

	return <-errCh
}

func (r *roomActor) closed() bool {
	return r.ctx.Err() != nil
}

func (r *roomActor) isOwner(memberId string) bool {
	return memberId != "" && memberId == r.ownerId
}

// canBypass reports whether memberId skips the suggestion and voting gates.
func (r *roomActor) canBypass(memberId string) bool {
	return r.isOwner(memberId) && r.state.Settings.OwnerBypass
}

// recordSuggestion stamps memberId's suggestion and forgets members whose
// cooldown has already passed.
func (r *roomActor) recordSuggestion(memberId string, now time.Time, cooldown time.Duration) {
	for id, last := range r.lastSuggestion {
		if now.Sub(last) >= cooldown {
			delete(r.lastSuggestion, id)
		}
	}
	r.lastSuggestion[memberId] = now
}

// hasQueuePriority reports whether memberId's tracks jump the queue and ignore its capacity.
func (r *roomActor) hasQueuePriority(memberId string) bool {
	return r.isOwner(memberId) && r.state.Settings.OwnerQueueBypass
}
