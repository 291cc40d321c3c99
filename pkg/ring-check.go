package pkg

import "fmt"

// Check walks every record between the release cursor and the write cursor and
// verifies the framing, the cursor order and that the records are contiguous.
func (rb *RingBuffer) Check() error {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	if rb.arena == nil {
		if rb.tail != 0 {
			return ErrRingClosed
		}
		return nil
	}
	if rb.popStart > rb.header || rb.header > rb.tail {
		return fmt.Errorf("%w: pop %d header %d tail %d", ErrRingCursor, rb.popStart, rb.header, rb.tail)
	}
	if rb.tail-rb.popStart > uint64(rb.capacity) {
		return fmt.Errorf("%w: used %d > capacity %d", ErrRingCursor, rb.tail-rb.popStart, rb.capacity)
	}
	index := rb.popStart
	headerSeen := index == rb.header
	for index < rb.tail {
		view, err := ValidateRecord(rb.arena, index)
		if err != nil {
			return fmt.Errorf("record at %d: %w", index, err)
		}
		if index == rb.popStart && index < rb.header && view.RefCount == 0 {
			return fmt.Errorf("%w: record at %d released but cursor not moved", ErrRingRelease, index)
		}
		index += uint64(view.TotalSize)
		if index == rb.header {
			headerSeen = true
		}
	}
	if index != rb.tail || !headerSeen {
		return fmt.Errorf("%w: walk ended at %d, header %d tail %d", ErrRingHole, index, rb.header, rb.tail)
	}
	return nil
}
