package avrecord

import "sync"

// MediaFrameQueue is a FIFO of encoded frames for one media type, bridging
// a producer leg and the flush goroutine. It never reorders and never drops;
// a slow consumer grows the queue, bounded only by process memory.
type MediaFrameQueue struct {
	mu     sync.Mutex
	frames []*EncodedFrame
}

// NewMediaFrameQueue creates an empty queue.
func NewMediaFrameQueue() *MediaFrameQueue {
	return &MediaFrameQueue{}
}

// Push appends a frame. The queue takes ownership of the frame and its
// payload.
func (q *MediaFrameQueue) Push(f *EncodedFrame) {
	q.mu.Lock()
	q.frames = append(q.frames, f)
	q.mu.Unlock()
}

// Pop removes and returns the oldest frame, or nil if the queue is empty.
// Ownership of the returned frame transfers to the caller.
func (q *MediaFrameQueue) Pop() *EncodedFrame {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.frames) == 0 {
		return nil
	}
	f := q.frames[0]
	q.frames[0] = nil
	q.frames = q.frames[1:]
	return f
}

// Len returns the number of buffered frames.
func (q *MediaFrameQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.frames)
}
