package event

import (
	"bytes"
	"sync"
)

var bufMu sync.Mutex

type lockedWriter struct {
	buf *bytes.Buffer
}

func (w *lockedWriter) Write(p []byte) (int, error) {
	bufMu.Lock()
	defer bufMu.Unlock()
	return w.buf.Write(p)
}

func readLocked(buf *bytes.Buffer) string {
	bufMu.Lock()
	defer bufMu.Unlock()
	return buf.String()
}
