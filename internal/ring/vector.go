package ring

import "io"

// VectorReader reads into several slices with a single call, filling them
// in order.
type VectorReader interface {
	io.Reader
	Readv(bufs [][]byte) (int, error)
}

// VectorWriter writes several slices with a single call, in order.
type VectorWriter interface {
	io.Writer
	Writev(bufs [][]byte) (int, error)
}

// readRegions reads into first and then second. A short read on first
// ends the call as a plain reader would.
func readRegions(src io.Reader, first, second []byte) (int, error) {
	if len(second) > 0 {
		if vr, ok := src.(VectorReader); ok {
			return vr.Readv([][]byte{first, second})
		}
	}

	n, err := src.Read(first)
	if err != nil || n < len(first) || len(second) == 0 {
		return n, err
	}

	m, err := src.Read(second)
	if isQuietEnd(err) {
		// The first region was filled; report what arrived and let the
		// next call see the condition again.
		err = nil
	}
	return n + m, err
}

// writeRegions writes first and then second.
func writeRegions(dst io.Writer, first, second []byte) (int, error) {
	if len(second) > 0 {
		if vw, ok := dst.(VectorWriter); ok {
			return vw.Writev([][]byte{first, second})
		}
	}

	n, err := dst.Write(first)
	if err != nil || n < len(first) || len(second) == 0 {
		return n, err
	}

	m, err := dst.Write(second)
	if isQuietEnd(err) {
		err = nil
	}
	return n + m, err
}

// isQuietEnd reports errors that are not worth surfacing after some bytes
// have already been transferred in the same call.
func isQuietEnd(err error) bool {
	if err == nil || err == io.EOF {
		return true
	}
	return IsTransient(Classify("", err))
}
