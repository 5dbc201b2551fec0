package playback

import (
	"sync"
	"time"
)

// SimulatedPlayer is a wall-clock player for front ends without a video
// surface. Its position advances while playing.
type SimulatedPlayer struct {
	now func() time.Time

	ready     chan struct{}
	readyOnce sync.Once

	mu        sync.Mutex
	base      time.Duration
	startedAt time.Time
	playing   bool
}

// NewSimulatedPlayer returns a paused player at position 0 that is not ready
// until MarkReady. A nil now uses time.Now.
func NewSimulatedPlayer(now func() time.Time) *SimulatedPlayer {
	if now == nil {
		now = time.Now
	}
	return &SimulatedPlayer{
		now:   now,
		ready: make(chan struct{}),
	}
}

func (p *SimulatedPlayer) Ready() <-chan struct{} {
	return p.ready
}

// MarkReady signals readiness and starts playback.
func (p *SimulatedPlayer) MarkReady() {
	p.readyOnce.Do(func() {
		close(p.ready)
		p.Play()
	})
}

func (p *SimulatedPlayer) CurrentTime() (time.Duration, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.positionLocked(), nil
}

func (p *SimulatedPlayer) positionLocked() time.Duration {
	if !p.playing {
		return p.base
	}
	return p.base + p.now().Sub(p.startedAt)
}

func (p *SimulatedPlayer) Play() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.playing {
		return
	}
	p.startedAt = p.now()
	p.playing = true
}

func (p *SimulatedPlayer) Pause() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.playing {
		return
	}
	p.base = p.positionLocked()
	p.playing = false
}

func (p *SimulatedPlayer) Playing() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.playing
}

func (p *SimulatedPlayer) Seek(position time.Duration) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if position < 0 {
		position = 0
	}
	p.base = position
	p.startedAt = p.now()
	return nil
}
