package handlers

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"cargo_ingest/internal/cache"
)

const (
	cacheHit    = "HIT"
	cacheMiss   = "MISS"
	cacheBypass = "BYPASS"
)

const genericErrorMessage = "Internal server error"

type ErrorResponse struct {
	Error string `json:"error"`
}

type cachedResponse struct {
	body []byte
	etag string
}

// cachedJSON serves JSON bodies through the response cache with an ETag and
// shared-cache headers.
type cachedJSON struct {
	cache *cache.Cache
	ttl   time.Duration
	tags  []string
}

func (j cachedJSON) serve(c *gin.Context, key string, build func() (any, error)) error {
	state := cacheBypass
	var resp cachedResponse

	if j.cache.Enabled() {
		state = cacheMiss
		if v, ok := j.cache.Get(key); ok {
			if r, ok := v.(cachedResponse); ok {
				resp = r
				state = cacheHit
			}
		}
	}

	if state != cacheHit {
		value, err := build()
		if err != nil {
			return err
		}
		body, err := json.Marshal(value)
		if err != nil {
			return fmt.Errorf("marshal response: %w", err)
		}
		resp = cachedResponse{body: body, etag: weakETag(body)}
		j.cache.Set(key, resp, j.ttl, j.tags...)
	}

	c.Header("ETag", resp.etag)
	c.Header("Cache-Control", cacheControl(j.ttl))
	c.Header("X-Cache", state)

	if etagMatches(c.GetHeader("If-None-Match"), resp.etag) {
		c.Status(http.StatusNotModified)
		return nil
	}

	c.Data(http.StatusOK, "application/json; charset=utf-8", resp.body)
	return nil
}

func weakETag(body []byte) string {
	sum := sha256.Sum256(body)
	return `W/"` + hex.EncodeToString(sum[:16]) + `"`
}

func cacheControl(ttl time.Duration) string {
	secs := int(ttl.Seconds())
	return fmt.Sprintf("private, max-age=0, s-maxage=%d, stale-while-revalidate=%d", secs, 3*secs)
}

// etagMatches applies the weak comparison of If-None-Match.
func etagMatches(header, etag string) bool {
	if header == "" {
		return false
	}
	want := strings.TrimPrefix(etag, "W/")
	for _, candidate := range strings.Split(header, ",") {
		candidate = strings.TrimSpace(candidate)
		if candidate == "*" || strings.TrimPrefix(candidate, "W/") == want {
			return true
		}
	}
	return false
}

// internalError answers 500. The cause is only exposed outside production.
func internalError(c *gin.Context, logger *slog.Logger, production bool, err error) {
	logger.Error("request failed", "path", c.FullPath(), "error", err)

	msg := err.Error()
	if production {
		msg = genericErrorMessage
	}
	c.JSON(http.StatusInternalServerError, ErrorResponse{Error: msg})
}
