package middleware

import (
	"bytes"
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/movie-catalog/internal/config"
	"github.com/iliyamo/movie-catalog/internal/logging"
)

// cachedResponse is what one Redis entry holds.  Body is base64 in JSON.
type cachedResponse struct {
	Status int         `json:"status"`
	Header http.Header `json:"header"`
	Body   []byte      `json:"body"`
}

// Headers that belong to one particular response and are never replayed.
var uncachedHeaders = []string{echo.HeaderContentLength, HeaderRequestID, "X-Cache"}

func cacheableHeader(k string) bool {
	for _, h := range uncachedHeaders {
		if strings.EqualFold(k, h) {
			return false
		}
	}
	return true
}

// bodyRecorder tees the response body into buf, up to limit bytes (no
// limit when limit <= 0).  overflow is set once the body outgrows limit.
type bodyRecorder struct {
	http.ResponseWriter
	status   int
	buf      bytes.Buffer
	limit    int64
	overflow bool
}

func (w *bodyRecorder) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func (w *bodyRecorder) Write(b []byte) (int, error) {
	if !w.overflow {
		if w.limit > 0 && int64(w.buf.Len()+len(b)) > w.limit {
			w.overflow = true
			w.buf.Reset()
		} else {
			w.buf.Write(b)
		}
	}
	return w.ResponseWriter.Write(b)
}

// cacheKeyFrom hashes the catalog generation, the caller and the request
// path (plus the raw query for "route_query") into one key, so a write makes
// every older entry unreachable and users never share entries.  The concrete
// path is used rather than the route template so /movies/1 and /movies/2 get
// distinct entries.
func cacheKeyFrom(cfg config.CacheConfig, c echo.Context, gen int64) string {
	parts := []string{"gen", strconv.FormatInt(gen, 10), "user", userKey(c), "path", c.Request().URL.Path}
	if !strings.EqualFold(cfg.KeyStrategy, "route") {
		parts = append(parts, "q", c.Request().URL.RawQuery)
	}
	sum := sha1.Sum([]byte(strings.Join(parts, ":")))
	return cfg.Prefix + ":" + hex.EncodeToString(sum[:])
}

// generationKey holds the counter bumped on every successful write.
func generationKey(cfg config.CacheConfig) string { return cfg.Prefix + ":gen" }

func isWrite(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		return true
	}
	return false
}

type responseCache struct {
	cfg config.CacheConfig
	rdb *redis.Client
	ttl time.Duration
}

// generation returns the current catalog generation.  A missing counter is
// generation zero.
func (rc responseCache) generation(ctx context.Context) (int64, error) {
	gen, err := rc.rdb.Get(ctx, generationKey(rc.cfg)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return gen, err
}

func (rc responseCache) bump(ctx context.Context) error {
	return rc.rdb.Incr(ctx, generationKey(rc.cfg)).Err()
}

func (rc responseCache) load(ctx context.Context, key string) (cachedResponse, bool) {
	bs, err := rc.rdb.Get(ctx, key).Bytes()
	if err != nil {
		return cachedResponse{}, false
	}
	var cr cachedResponse
	if err := json.Unmarshal(bs, &cr); err != nil || cr.Status == 0 {
		return cachedResponse{}, false
	}
	return cr, true
}

func (rc responseCache) store(ctx context.Context, key string, cr cachedResponse) error {
	bs, err := json.Marshal(cr)
	if err != nil {
		return err
	}
	return rc.rdb.Set(ctx, key, bs, rc.ttl).Err()
}

// NewRedisCache caches successful reads in Redis, storing headers and body so
// clients see byte-identical responses.  Writes that succeed (2xx) bump the
// generation counter, which invalidates every cached read at once.
func NewRedisCache(cfg config.CacheConfig, rdb *redis.Client) echo.MiddlewareFunc {
	if !cfg.Enabled || rdb == nil {
		return func(next echo.HandlerFunc) echo.HandlerFunc { return next }
	}
	rc := responseCache{cfg: cfg, rdb: rdb, ttl: cfg.TTL}
	if rc.ttl <= 0 {
		rc.ttl = 30 * time.Second
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			method := strings.ToUpper(c.Request().Method)
			ctx := c.Request().Context()
			log := logging.Ctx(ctx)

			if isWrite(method) {
				err := next(c)
				if status := c.Response().Status; err == nil && status >= 200 && status < 300 {
					// the write already happened; do not tie the bump to the client
					if berr := rc.bump(context.WithoutCancel(ctx)); berr != nil {
						log.Warn().Err(berr).Msg("cache generation bump failed")
					}
				}
				return err
			}
			if !cfg.Methods[method] {
				return next(c)
			}

			gen, err := rc.generation(ctx)
			if err != nil {
				// Without the generation a stale entry could be served.
				return next(c)
			}
			key := cacheKeyFrom(cfg, c, gen)

			if cr, ok := rc.load(ctx, key); ok {
				h := c.Response().Header()
				for k, vals := range cr.Header {
					for _, v := range vals {
						h.Add(k, v)
					}
				}
				h.Set("X-Cache", "HIT")
				c.Response().WriteHeader(cr.Status)
				_, err := c.Response().Write(cr.Body)
				return err
			}

			rec := &bodyRecorder{ResponseWriter: c.Response().Writer, status: http.StatusOK, limit: int64(cfg.MaxBodyBytes)}
			c.Response().Writer = rec
			c.Response().Header().Set("X-Cache", "MISS")

			if err := next(c); err != nil {
				return err
			}
			if rec.status != http.StatusOK || rec.overflow {
				return nil
			}

			hdr := http.Header{}
			for k, vals := range c.Response().Header() {
				if cacheableHeader(k) {
					hdr[k] = append([]string(nil), vals...)
				}
			}
			cr := cachedResponse{Status: rec.status, Header: hdr, Body: rec.buf.Bytes()}
			if err := rc.store(context.WithoutCancel(ctx), key, cr); err != nil {
				log.Debug().Err(err).Msg("cache store failed")
			}
			return nil
		}
	}
}
