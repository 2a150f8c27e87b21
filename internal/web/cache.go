package web

import (
	"bytes"
	"net/http"
	"sync"
	"time"

	"fansite/internal/metrics"
)

// cachedResponse is one stored 200 response.
type cachedResponse struct {
	header    http.Header
	body      []byte
	updatedAt time.Time
}

// responseCache keeps successful GET responses keyed by path and query, so
// repeated page loads do not hit the store. A ttl <= 0 disables it.
type responseCache struct {
	ttl time.Duration
	now func() time.Time

	mu      sync.RWMutex
	entries map[string]cachedResponse
}

func newResponseCache(ttl time.Duration, now func() time.Time) *responseCache {
	return &responseCache{ttl: ttl, now: now, entries: map[string]cachedResponse{}}
}

func (c *responseCache) get(key string) (cachedResponse, bool) {
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok || c.now().Sub(e.updatedAt) >= c.ttl {
		return cachedResponse{}, false
	}
	return e, true
}

func (c *responseCache) put(key string, e cachedResponse) {
	c.mu.Lock()
	c.entries[key] = e
	c.mu.Unlock()
}

// Invalidate drops every entry.
func (c *responseCache) Invalidate() {
	c.mu.Lock()
	c.entries = map[string]cachedResponse{}
	c.mu.Unlock()
}

// captureWriter tees the response into a buffer.
type captureWriter struct {
	http.ResponseWriter
	status int
	buf    bytes.Buffer
}

func (cw *captureWriter) WriteHeader(code int) {
	cw.status = code
	cw.ResponseWriter.WriteHeader(code)
}

func (cw *captureWriter) Write(b []byte) (int, error) {
	if cw.status == 0 {
		cw.status = http.StatusOK
	}
	cw.buf.Write(b)
	return cw.ResponseWriter.Write(b)
}

// cached serves h through the response cache. Only 200 responses without
// "Cache-Control: no-store" are stored.
func (s *Server) cached(h http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.cache.ttl <= 0 {
			h(w, r)
			return
		}

		key := r.URL.Path + "?" + r.URL.RawQuery
		if e, ok := s.cache.get(key); ok {
			metrics.ResponseCacheTotal.WithLabelValues("hit").Inc()
			for k, v := range e.header {
				w.Header()[k] = v
			}
			w.Header().Set("X-Cache", "HIT")
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write(e.body)
			return
		}
		metrics.ResponseCacheTotal.WithLabelValues("miss").Inc()

		cw := &captureWriter{ResponseWriter: w}
		h(cw, r)
		if cw.status == http.StatusOK && w.Header().Get("Cache-Control") != "no-store" {
			s.cache.put(key, cachedResponse{
				header:    w.Header().Clone(),
				body:      bytes.Clone(cw.buf.Bytes()),
				updatedAt: s.cache.now(),
			})
		}
	})
}
