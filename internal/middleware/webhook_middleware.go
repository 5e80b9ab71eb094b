package middleware

import (
	"bytes"
	"io"
	"net/http"

	"github.com/farellandr/showticket/internal/helpers"
	"github.com/gin-gonic/gin"
)

const contextRawBody = "raw_body"

// RawBody buffers the request body so signature checks see the exact bytes
// the provider signed. Handlers can still bind from c.Request.Body.
func RawBody(limit int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		body, err := io.ReadAll(io.LimitReader(c.Request.Body, limit+1))
		if err != nil {
			helpers.AbortWithError(c, http.StatusBadRequest, "Could not read request body.")
			return
		}
		if int64(len(body)) > limit {
			helpers.AbortWithError(c, http.StatusRequestEntityTooLarge, "Request body too large.")
			return
		}
		c.Set(contextRawBody, body)
		c.Request.Body = io.NopCloser(bytes.NewReader(body))
		c.Next()
	}
}

func GetRawBody(c *gin.Context) []byte {
	body, exists := c.Get(contextRawBody)
	if !exists {
		return nil
	}
	return body.([]byte)
}
