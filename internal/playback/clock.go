// Package playback turns an external player into a stream of position ticks.
package playback

import (
	"sync"
	"time"

	"github.com/MimeLyc/linklingua/pkg/log"
)

// DefaultInterval is how often a ready player is polled.
const DefaultInterval = 500 * time.Millisecond

// Player is the external player the session follows. The core does not own
// its lifecycle, only the subscription to its clock.
type Player interface {
	// Ready is closed once the player can report positions.
	Ready() <-chan struct{}
	CurrentTime() (time.Duration, error)
}

// Seeker is implemented by players that can jump to a position.
type Seeker interface {
	Seek(position time.Duration) error
}

// State is the clock status shown by the front end.
type State int

const (
	// StateNone: the current mode has no time source.
	StateNone State = iota
	// StateSyncing: waiting for the player to become ready.
	StateSyncing
	// StateSynced: ticks are flowing.
	StateSynced
)

func (s State) String() string {
	switch s {
	case StateSyncing:
		return "syncing"
	case StateSynced:
		return "synced"
	default:
		return "none"
	}
}

// Tick is one polled position.
type Tick struct {
	Position  time.Duration
	SampledAt time.Time
}

// Sink receives readiness and ticks from a Subscription.
type Sink interface {
	OnReady()
	OnTick(Tick)
}

// Subscription polls one player until Unsubscribe.
type Subscription struct {
	player   Player
	interval time.Duration
	sink     Sink

	stop     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

// Subscribe starts polling player every interval once it is ready.
func Subscribe(player Player, interval time.Duration, sink Sink) *Subscription {
	if interval <= 0 {
		interval = DefaultInterval
	}
	s := &Subscription{
		player:   player,
		interval: interval,
		sink:     sink,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	go s.run()
	return s
}

// Unsubscribe stops polling. It does not wait for the poller to exit, so it is
// safe to call from code the sink itself synchronizes with; use Done to wait.
func (s *Subscription) Unsubscribe() {
	s.stopOnce.Do(func() { close(s.stop) })
}

// Done is closed when the poller has exited.
func (s *Subscription) Done() <-chan struct{} {
	return s.done
}

func (s *Subscription) stopped() bool {
	select {
	case <-s.stop:
		return true
	default:
		return false
	}
}

func (s *Subscription) run() {
	defer close(s.done)

	select {
	case <-s.stop:
		return
	case <-s.player.Ready():
	}
	if s.stopped() {
		return
	}
	s.sink.OnReady()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			sampled := time.Now()
			pos, err := s.player.CurrentTime()
			if err != nil {
				log.Debug("player position unavailable: %v", err)
				continue
			}
			if s.stopped() {
				return
			}
			s.sink.OnTick(Tick{Position: pos, SampledAt: sampled})
		}
	}
}
