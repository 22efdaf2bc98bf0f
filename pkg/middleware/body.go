package middleware

import (
	"bytes"
	"io"

	"github.com/gin-gonic/gin"
)

// BodyCache reads the request body once and stores it under
// gin.BodyBytesKey, so handlers can use both ShouldBindBodyWith and the raw
// bytes. A body that cannot be read is treated as empty.
func BodyCache(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		var body []byte
		if c.Request.Body != nil {
			data, err := io.ReadAll(io.LimitReader(c.Request.Body, maxBytes))
			if err == nil {
				body = data
			}
			_ = c.Request.Body.Close()
		}
		if body == nil {
			body = []byte{}
		}

		c.Set(gin.BodyBytesKey, body)
		c.Request.Body = io.NopCloser(bytes.NewReader(body))
		c.Next()
	}
}

// RawBody returns the body cached by BodyCache
func RawBody(c *gin.Context) []byte {
	if v, ok := c.Get(gin.BodyBytesKey); ok {
		if b, ok := v.([]byte); ok {
			return b
		}
	}
	return nil
}
