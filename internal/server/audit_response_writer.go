package server

import (
	"bytes"
	"net/http"
)

// maxAuditedBody caps how much of a response is copied into the audit entry.
const maxAuditedBody = 64 << 10

type responseWriterWrapper struct {
	http.ResponseWriter
	statusCode int
	buffer     bytes.Buffer
	truncated  bool
}

func newResponseWriterWrapper(w http.ResponseWriter) *responseWriterWrapper {
	return &responseWriterWrapper{
		ResponseWriter: w,
		statusCode:     http.StatusOK,
	}
}

func (w *responseWriterWrapper) WriteHeader(statusCode int) {
	w.statusCode = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}

func (w *responseWriterWrapper) Write(b []byte) (int, error) {
	if room := maxAuditedBody - w.buffer.Len(); room > 0 {
		if len(b) > room {
			w.buffer.Write(b[:room])
			w.truncated = true
		} else {
			w.buffer.Write(b)
		}
	} else if len(b) > 0 {
		w.truncated = true
	}
	return w.ResponseWriter.Write(b)
}

func (w *responseWriterWrapper) GetStatusCode() int {
	return w.statusCode
}

func (w *responseWriterWrapper) GetBody() []byte {
	if w.truncated {
		return append(w.buffer.Bytes(), "...(truncated)"...)
	}
	return w.buffer.Bytes()
}
