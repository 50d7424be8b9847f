package state

import (
	"io"
	"sync"
)

// ConsoleWriter syncs writes with a mutex shared by stdout and stderr, and
// knows whether it writes to a terminal.
type ConsoleWriter struct {
	Writer io.Writer
	IsTTY  bool
	Mutex  *sync.Mutex
}

func (w *ConsoleWriter) Write(p []byte) (n int, err error) {
	w.Mutex.Lock()
	defer w.Mutex.Unlock()
	return w.Writer.Write(p)
}
