// Package ring provides the fixed-capacity circular byte buffer that sits
// between a pump's source and its sink.
//
// Bytes are read from the source straight into the free region of the
// buffer and written to the sink straight from the queued region. When a
// region wraps around the end of the backing slice it is handed to the
// endpoint as two slices in one vectored call if the endpoint supports
// it (VectorReader, VectorWriter), otherwise as two plain calls. Nothing
// is ever copied through a temporary buffer.
//
// Errors from the endpoints are classified:
//   - io.EOF: the source reached end of stream
//   - ErrWouldBlock: a non-blocking endpoint had nothing to offer
//   - ErrInterrupted: the call was interrupted by a signal
//   - *IOError: anything else, fatal for the owner
//
// A Buffer is owned by a single goroutine and does no locking.
package ring
