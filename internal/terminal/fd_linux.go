package terminal

import "golang.org/x/sys/unix"

// Readv fills bufs in order with a single readv(2).
func (f *FD) Readv(bufs [][]byte) (int, error) {
	n, err := unix.Readv(f.fd, bufs)
	return f.readResult(n, err)
}

// Writev writes bufs in order with a single writev(2).
func (f *FD) Writev(bufs [][]byte) (int, error) {
	n, err := unix.Writev(f.fd, bufs)
	if n < 0 {
		n = 0
	}
	return n, err
}
