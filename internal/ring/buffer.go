package ring

import "io"

// DefaultCapacity is the buffer size used when none is configured.
const DefaultCapacity = 1024

// Buffer is a fixed-capacity FIFO of bytes.
type Buffer struct {
	data []byte
	head int // next byte to write out
	tail int // next free slot to fill
	size int // bytes queued
}

// New creates a buffer holding up to capacity bytes. Non-positive
// capacities get DefaultCapacity.
func New(capacity int) *Buffer {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Buffer{data: make([]byte, capacity)}
}

// Reset empties the buffer.
func (b *Buffer) Reset() {
	b.head, b.tail, b.size = 0, 0, 0
}

// Len returns the number of queued bytes.
func (b *Buffer) Len() int { return b.size }

// Cap returns the capacity.
func (b *Buffer) Cap() int { return len(b.data) }

// Free returns the room left.
func (b *Buffer) Free() int { return len(b.data) - b.size }

// Fill reads at most min(max, Free()) bytes from src into the buffer.
func (b *Buffer) Fill(src io.Reader, max int) (int, error) {
	if max > b.Free() {
		max = b.Free()
	}
	if max <= 0 {
		return 0, nil
	}

	first, second := b.span(b.tail, max)
	n, err := readRegions(src, first, second)
	if n < 0 {
		n = 0
	}
	if n > max {
		n = max
	}
	b.tail = (b.tail + n) % len(b.data)
	b.size += n

	if err != nil {
		return n, Classify("fill", err)
	}
	return n, nil
}

// Drain writes at most min(max, Len()) bytes from the buffer to dst.
func (b *Buffer) Drain(dst io.Writer, max int) (int, error) {
	if max > b.size {
		max = b.size
	}
	if max <= 0 {
		return 0, nil
	}

	first, second := b.span(b.head, max)
	n, err := writeRegions(dst, first, second)
	if n < 0 {
		n = 0
	}
	if n > max {
		n = max
	}
	b.head = (b.head + n) % len(b.data)
	b.size -= n

	if err != nil {
		return n, Classify("drain", err)
	}
	if n == 0 {
		// io.Writer forbids a zero-byte write without an error.
		return 0, &IOError{Op: "drain", Err: io.ErrShortWrite}
	}
	return n, nil
}

// span returns the n bytes starting at off as one or two slices.
func (b *Buffer) span(off, n int) (first, second []byte) {
	end := off + n
	if end <= len(b.data) {
		return b.data[off:end], nil
	}
	return b.data[off:], b.data[:end-len(b.data)]
}
