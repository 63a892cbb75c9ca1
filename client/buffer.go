package client

// buffer keeps decoded inbound messages in arrival order.
// It is not safe for concurrent use, the client guards it.
type buffer struct {
	capacity int
	items    []any
	head     int
}

func newBuffer(capacity int) *buffer {
	return &buffer{capacity: capacity}
}

func (b *buffer) append(v any) {
	switch {
	case b.capacity < 0:
		return
	case b.capacity == 0 || len(b.items) < b.capacity:
		b.items = append(b.items, v)
	default:
		// full ring, overwrite the oldest message
		b.items[b.head] = v
		b.head = (b.head + 1) % b.capacity
	}
}

func (b *buffer) snapshot() []any {
	s := make([]any, 0, len(b.items))
	s = append(s, b.items[b.head:]...)
	s = append(s, b.items[:b.head]...)
	return s
}
