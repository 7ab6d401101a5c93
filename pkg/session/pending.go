package session

import (
	"sync"
	"time"
)

// Pending holds outbound media between flushes: PCM samples accumulated
// from capture and the most recent camera frame.
//
// Samples carry a running sequence number so a flush can discard exactly
// what it sent even if more samples arrived or old ones were dropped
// while the send was in flight.
type Pending struct {
	mu      sync.Mutex
	pcm     []int16
	head    int64 // sequence number of pcm[0]
	max     int
	dropped int64

	frame   string
	frameAt time.Time
}

// NewPending creates a buffer retaining at most max samples (0 = unbounded).
func NewPending(max int) *Pending {
	return &Pending{max: max}
}

// AppendPCM appends captured samples, dropping the oldest beyond the cap.
func (p *Pending) AppendPCM(samples []int16) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.pcm = append(p.pcm, samples...)
	if p.max > 0 && len(p.pcm) > p.max {
		over := len(p.pcm) - p.max
		p.pcm = append(p.pcm[:0], p.pcm[over:]...)
		p.head += int64(over)
		p.dropped += int64(over)
	}
}

// SetFrame replaces the cached base64 JPEG frame.
func (p *Pending) SetFrame(b64 string) {
	p.mu.Lock()
	p.frame = b64
	p.frameAt = time.Now()
	p.mu.Unlock()
}

// Snapshot copies the pending samples and cached frame. end is the
// sequence number one past the last returned sample.
func (p *Pending) Snapshot() (pcm []int16, frame string, end int64) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(p.pcm) > 0 {
		pcm = make([]int16, len(p.pcm))
		copy(pcm, p.pcm)
	}
	return pcm, p.frame, p.head + int64(len(p.pcm))
}

// DiscardThrough removes every sample with a sequence number below end.
// The cached frame is kept.
func (p *Pending) DiscardThrough(end int64) {
	p.mu.Lock()
	defer p.mu.Unlock()

	n := end - p.head
	if n <= 0 {
		return
	}
	if n > int64(len(p.pcm)) {
		n = int64(len(p.pcm))
	}
	p.pcm = append(p.pcm[:0], p.pcm[n:]...)
	p.head += n
}

// Len returns the number of pending samples.
func (p *Pending) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.pcm)
}

// Frame returns the cached frame and when it was captured.
func (p *Pending) Frame() (string, time.Time) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.frame, p.frameAt
}

// Dropped returns the number of samples dropped at the cap.
func (p *Pending) Dropped() int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.dropped
}
