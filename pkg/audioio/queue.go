package audioio

// sampleQueue is a growable FIFO of float samples.
// It is not safe for concurrent use; the playback callback owns it.
type sampleQueue struct {
	buf  []float32
	head int
}

func (q *sampleQueue) len() int {
	return len(q.buf) - q.head
}

func (q *sampleQueue) push(samples []float32) {
	// Reclaim the consumed prefix before growing.
	if q.head > 0 && q.head >= len(q.buf)/2 {
		n := copy(q.buf, q.buf[q.head:])
		q.buf = q.buf[:n]
		q.head = 0
	}
	q.buf = append(q.buf, samples...)
}

// pop copies up to len(dst) samples into dst and returns the count.
func (q *sampleQueue) pop(dst []float32) int {
	n := copy(dst, q.buf[q.head:])
	q.head += n
	if q.head == len(q.buf) {
		q.buf = q.buf[:0]
		q.head = 0
	}
	return n
}

// discard drops up to n samples from the front and returns the count.
func (q *sampleQueue) discard(n int) int {
	if n > q.len() {
		n = q.len()
	}
	q.head += n
	if q.head == len(q.buf) {
		q.buf = q.buf[:0]
		q.head = 0
	}
	return n
}

func (q *sampleQueue) reset() {
	q.buf = q.buf[:0]
	q.head = 0
}
