package server

import (
	"bytes"
	"net/http"
)

// Handler routes one parsed request. *gin.Engine satisfies it.
type Handler = http.Handler

// responseBuffer collects a handler's response in memory so the exact
// Content-Length is known before anything reaches the socket
type responseBuffer struct {
	header http.Header
	body   bytes.Buffer
	status int
}

func newResponseBuffer() *responseBuffer {
	return &responseBuffer{header: make(http.Header)}
}

func (b *responseBuffer) Header() http.Header { return b.header }

func (b *responseBuffer) WriteHeader(status int) {
	if b.status == 0 {
		b.status = status
	}
}

func (b *responseBuffer) Write(p []byte) (int, error) {
	if b.status == 0 {
		b.status = http.StatusOK
	}
	return b.body.Write(p)
}

// Flush is a no-op; the whole body is sent once the handler returns
func (b *responseBuffer) Flush() {}

func (b *responseBuffer) statusCode() int {
	if b.status == 0 {
		return http.StatusOK
	}
	return b.status
}
