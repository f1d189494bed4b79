package music

import "github.com/samber/lo"

// RecencyBuffer is a bounded FIFO of recently played catalog indices.
// It is not safe for concurrent use; the Player serializes access.
type RecencyBuffer struct {
	capacity int
	items    []int
}

// NewRecencyBuffer creates a buffer holding at most capacity indices
func NewRecencyBuffer(capacity int) *RecencyBuffer {
	b := &RecencyBuffer{}
	b.Resize(capacity)
	return b
}

// Touch moves index to the most recent position, evicting the oldest entries past capacity
func (b *RecencyBuffer) Touch(index int) {
	b.items = lo.Without(b.items, index)
	b.items = append(b.items, index)
	b.trim()
}

// Contains reports whether index was played recently
func (b *RecencyBuffer) Contains(index int) bool {
	return lo.Contains(b.items, index)
}

// Resize changes the capacity, dropping the oldest entries if the buffer is now too long
func (b *RecencyBuffer) Resize(capacity int) {
	if capacity < 0 {
		capacity = 0
	}
	b.capacity = capacity
	b.trim()
}

func (b *RecencyBuffer) trim() {
	if over := len(b.items) - b.capacity; over > 0 {
		b.items = append([]int(nil), b.items[over:]...)
	}
}

// Forget adjusts stored indices after catalog entry removed was deleted
func (b *RecencyBuffer) Forget(removed int) {
	b.items = shiftAfterRemoval(b.items, removed)
}

func (b *RecencyBuffer) Capacity() int { return b.capacity }

func (b *RecencyBuffer) Len() int { return len(b.items) }

// Items returns a copy, oldest first
func (b *RecencyBuffer) Items() []int {
	return append([]int(nil), b.items...)
}

func (b *RecencyBuffer) Clear() {
	b.items = nil
}

// UpcomingQueue holds catalog indices the user asked for explicitly.
// Consumption is FIFO; Next-style requests jump to the front.
type UpcomingQueue struct {
	items []int
}

func NewUpcomingQueue() *UpcomingQueue {
	return &UpcomingQueue{}
}

// PushBack appends index
func (q *UpcomingQueue) PushBack(index int) {
	q.items = append(q.items, index)
}

// PushFront inserts index at the head, removing any earlier occurrence first
func (q *UpcomingQueue) PushFront(index int) {
	q.items = append([]int{index}, lo.Without(q.items, index)...)
}

// Peek returns the head without removing it
func (q *UpcomingQueue) Peek() (int, bool) {
	if len(q.items) == 0 {
		return 0, false
	}
	return q.items[0], true
}

// PopFront removes and returns the head
func (q *UpcomingQueue) PopFront() (int, bool) {
	head, ok := q.Peek()
	if ok {
		q.items = q.items[1:]
	}
	return head, ok
}

// Remove deletes every occurrence of index and reports whether anything was removed
func (q *UpcomingQueue) Remove(index int) bool {
	before := len(q.items)
	q.items = lo.Without(q.items, index)
	return len(q.items) != before
}

func (q *UpcomingQueue) Contains(index int) bool {
	return lo.Contains(q.items, index)
}

// Forget drops removed from the queue and renumbers later indices
func (q *UpcomingQueue) Forget(removed int) {
	q.items = shiftAfterRemoval(q.items, removed)
}

func (q *UpcomingQueue) Empty() bool { return len(q.items) == 0 }

func (q *UpcomingQueue) Len() int { return len(q.items) }

// Items returns a copy in playback order
func (q *UpcomingQueue) Items() []int {
	return append([]int(nil), q.items...)
}

func (q *UpcomingQueue) Clear() {
	q.items = nil
}

func shiftAfterRemoval(items []int, removed int) []int {
	out := make([]int, 0, len(items))
	for _, i := range items {
		switch {
		case i == removed:
			continue
		case i > removed:
			out = append(out, i-1)
		default:
			out = append(out, i)
		}
	}
	return out
}
