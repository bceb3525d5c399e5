package live

import (
	"sync"
	"time"
)

// Speaker is the playback device surface.
type Speaker interface {
	// Write queues raw PCM for playback.
	Write(pcm []byte) error

	// Reset discards anything the device has buffered but not yet played.
	Reset() error

	// Close releases the device.
	Close() error
}

// scheduledChunk is one in-flight playback buffer, tracked from its scheduled
// start until its scheduled end has passed or it is interrupted.
type scheduledChunk struct {
	start time.Duration
	end   time.Duration
}

// player schedules inbound synthesized audio gaplessly: each chunk starts at
// the later of the previous chunk's scheduled end and the playback clock at
// arrival, so playback stays strictly sequential whether fragments arrive
// faster or slower than real time.
type player struct {
	speaker Speaker
	format  AudioConfig
	now     func() time.Time

	mu        sync.Mutex
	origin    time.Time
	nextStart time.Duration
	active    []scheduledChunk
}

func newPlayer(speaker Speaker, format AudioConfig, now func() time.Time) *player {
	if now == nil {
		now = time.Now
	}
	return &player{
		speaker: speaker,
		format:  format,
		now:     now,
		origin:  now(),
	}
}

// clock returns the playback position relative to when the player was created.
func (p *player) clock() time.Duration {
	return p.now().Sub(p.origin)
}

// Enqueue schedules pcm after everything already queued and writes it to the
// speaker.
func (p *player) Enqueue(pcm []byte) error {
	if len(pcm) == 0 {
		return nil
	}

	dur := p.format.Duration(len(pcm))
	p.mu.Lock()
	start := p.nextStart
	if c := p.clock(); c > start {
		start = c
	}
	p.nextStart = start + dur
	p.active = append(p.active, scheduledChunk{start: start, end: start + dur})
	p.mu.Unlock()

	return p.speaker.Write(pcm)
}

// ExpireFinished drops chunks whose scheduled end has passed and reports how
// many remain.
func (p *player) ExpireFinished() int {
	p.mu.Lock()
	defer p.mu.Unlock()

	c := p.clock()
	kept := p.active[:0]
	for _, chunk := range p.active {
		if chunk.end > c {
			kept = append(kept, chunk)
		}
	}
	p.active = kept
	return len(p.active)
}

// Playing reports whether any chunk is still scheduled.
func (p *player) Playing() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.active) > 0
}

// Interrupt discards every scheduled chunk, resets the scheduling clock to
// zero, and drops whatever the device has buffered. Barge-in takes priority
// over natural completion.
func (p *player) Interrupt() error {
	p.mu.Lock()
	p.active = p.active[:0]
	p.nextStart = 0
	p.mu.Unlock()

	return p.speaker.Reset()
}

// Close releases the speaker.
func (p *player) Close() error {
	return p.speaker.Close()
}
