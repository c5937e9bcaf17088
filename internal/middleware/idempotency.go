package middleware

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/seewalk/verslo-daigynas-directory-sub001/internal/cache"
	"github.com/seewalk/verslo-daigynas-directory-sub001/pkg/errors"
	"github.com/seewalk/verslo-daigynas-directory-sub001/pkg/logger"
	"github.com/seewalk/verslo-daigynas-directory-sub001/pkg/response"
)

const (
	// IdempotencyHeader carries the client chosen retry key.
	IdempotencyHeader = "Idempotency-Key"
	// ReplayHeader is set on responses served from a recorded result.
	ReplayHeader = "Idempotent-Replay"

	maxIdempotencyKeyLen = 128
)

type recordedResponse struct {
	Status      int    `json:"status"`
	ContentType string `json:"content_type"`
	Body        []byte `json:"body"`
}

type teeWriter struct {
	gin.ResponseWriter
	body bytes.Buffer
}

func (w *teeWriter) Write(b []byte) (int, error) {
	w.body.Write(b)
	return w.ResponseWriter.Write(b)
}

func (w *teeWriter) WriteString(s string) (int, error) {
	w.body.WriteString(s)
	return w.ResponseWriter.WriteString(s)
}

// Idempotency replays the first successful response for a repeated Idempotency-Key so a
// retried request creation or message send does not write twice. Keys are scoped to the
// caller and route. Requests without the header, or without a store, pass through.
func Idempotency(store cache.Store, ttl time.Duration) gin.HandlerFunc {
	log := logger.WithModule("idempotency")
	return func(c *gin.Context) {
		key := strings.TrimSpace(c.GetHeader(IdempotencyHeader))
		caller := c.GetString(CtxUserIDKey)
		if store == nil || ttl <= 0 || key == "" || caller == "" {
			c.Next()
			return
		}
		if len(key) > maxIdempotencyKeyLen {
			response.Error(c, errors.NewValidation("Idempotency-Key must be at most 128 characters"))
			c.Abort()
			return
		}

		sum := sha256.Sum256([]byte(caller + "\x00" + c.Request.Method + " " + c.Request.URL.Path + "\x00" + key))
		cacheKey := "idem:" + hex.EncodeToString(sum[:])
		ctx := c.Request.Context()

		raw, found, err := store.Get(ctx, cacheKey)
		if err != nil {
			log.Warn("idempotency lookup failed", zap.Error(err))
		}
		if found {
			var rec recordedResponse
			if err := json.Unmarshal(raw, &rec); err == nil {
				c.Header(ReplayHeader, "true")
				c.Data(rec.Status, rec.ContentType, rec.Body)
				c.Abort()
				return
			}
			log.Warn("discarding unreadable idempotency record", zap.String("key", cacheKey))
		}

		tee := &teeWriter{ResponseWriter: c.Writer}
		c.Writer = tee
		c.Next()

		status := tee.Status()
		if status < http.StatusOK || status >= http.StatusMultipleChoices {
			return
		}
		payload, err := json.Marshal(recordedResponse{
			Status:      status,
			ContentType: tee.Header().Get("Content-Type"),
			Body:        tee.body.Bytes(),
		})
		if err != nil {
			return
		}
		if err := store.Set(ctx, cacheKey, payload, ttl); err != nil {
			log.Warn("idempotency record not stored", zap.Error(err))
		}
	}
}
