package mqtt

import log "github.com/sirupsen/logrus"

// DefaultBufferSize is how many messages are held while the broker is unreachable.
const DefaultBufferSize = 256

// pending is a serialized message held while the broker is unreachable.
type pending struct {
	topic    string
	payload  []byte
	qos      byte
	retained bool
}

// backlog is a fixed-capacity FIFO that drops its oldest entry when full.
// Callers synchronize access.
type backlog struct {
	slots   []pending
	next    int // slot the next push writes
	size    int
	dropped int // messages lost since the last drain
}

func newBacklog(capacity int) *backlog {
	if capacity < 1 {
		capacity = 1
	}
	return &backlog{slots: make([]pending, capacity)}
}

func (b *backlog) push(msg pending) {
	b.slots[b.next] = msg
	b.next = (b.next + 1) % len(b.slots)
	if b.size < len(b.slots) {
		b.size++
		return
	}
	if b.dropped == 0 {
		log.WithField("capacity", len(b.slots)).Warn("mqtt: offline buffer full, dropping oldest")
	}
	b.dropped++
}

// drain returns the held messages oldest first and empties the backlog.
func (b *backlog) drain() []pending {
	if b.size == 0 {
		return nil
	}
	out := make([]pending, 0, b.size)
	first := (b.next - b.size + len(b.slots)) % len(b.slots)
	for i := 0; i < b.size; i++ {
		out = append(out, b.slots[(first+i)%len(b.slots)])
	}
	if b.dropped > 0 {
		log.WithField("dropped", b.dropped).Warn("mqtt: messages lost while offline")
	}
	b.next, b.size, b.dropped = 0, 0, 0
	return out
}

func (b *backlog) len() int {
	return b.size
}
