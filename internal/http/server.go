package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/CSwithChetan123/GhareluDiary/internal/cache"
	applog "github.com/CSwithChetan123/GhareluDiary/internal/log"
	"github.com/CSwithChetan123/GhareluDiary/internal/services"
	"github.com/CSwithChetan123/GhareluDiary/internal/storage"
)

// Server exposes the diary over a JSON API. Reads are served from the
// local store; writes go through the reconciler so they are pushed to
// the remote store as a side effect.
type Server struct {
	http.Server

	store        *storage.SQLiteStore
	reconciler   *services.Reconciler
	orchestrator *services.Orchestrator
	logger       *applog.Logger
	rateLimiter  *rateLimiter

	summaryCache *cache.SummaryCache
	shutdownOnce sync.Once
}

// Simple in-memory rate limiter
type rateLimiter struct {
	mu           sync.Mutex
	clients      map[string]*clientInfo
	stopCleanup  chan struct{}
	shutdownOnce sync.Once
}

type clientInfo struct {
	lastRequest time.Time
	requests    int
}

func newRateLimiter() *rateLimiter {
	rl := &rateLimiter{
		clients:     make(map[string]*clientInfo),
		stopCleanup: make(chan struct{}),
	}
	go rl.startCleanup()
	return rl
}

// startCleanup runs periodic cleanup to remove stale client entries
func (rl *rateLimiter) startCleanup() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.cleanupStaleEntries()
		case <-rl.stopCleanup:
			return
		}
	}
}

// cleanupStaleEntries removes client entries older than 10 minutes
func (rl *rateLimiter) cleanupStaleEntries() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	cutoff := time.Now().Add(-10 * time.Minute)
	for ip, client := range rl.clients {
		if client.lastRequest.Before(cutoff) {
			delete(rl.clients, ip)
		}
	}
}

func (rl *rateLimiter) stop() {
	rl.shutdownOnce.Do(func() {
		if rl.stopCleanup != nil {
			close(rl.stopCleanup)
		}
	})
}

func (rl *rateLimiter) allow(clientIP string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	client, exists := rl.clients[clientIP]

	if !exists {
		rl.clients[clientIP] = &clientInfo{
			lastRequest: now,
			requests:    1,
		}
		return true
	}

	// Reset counter if more than 1 minute has passed
	if now.Sub(client.lastRequest) > time.Minute {
		client.requests = 1
		client.lastRequest = now
		return true
	}

	// Allow up to 60 requests per minute
	client.requests++
	client.lastRequest = now

	return client.requests <= 60
}

// NewServer configures routes and returns a ready-to-run http.Server.
func NewServer(addr string, store *storage.SQLiteStore, rec *services.Reconciler, orch *services.Orchestrator, cacheSize int, logger *applog.Logger) *Server {
	mux := http.NewServeMux()

	s := &Server{
		Server: http.Server{
			Addr:    addr,
			Handler: mux,
		},
		store:        store,
		reconciler:   rec,
		orchestrator: orch,
		logger:       logger.WithComponent(applog.ComponentHTTP),
		rateLimiter:  newRateLimiter(),
		summaryCache: cache.NewSummaryCache(cacheSize, 5*time.Minute),
	}

	// A completed sync may have merged remote entries, so cached
	// aggregates for that period are stale.
	if orch != nil {
		orch.OnSynced(func(periodKey string) {
			if uid := rec.BoundUserID(); uid != "" {
				s.summaryCache.Invalidate(uid, periodKey)
			} else {
				s.summaryCache.InvalidateAll()
			}
		})
	}

	mux.HandleFunc("/healthz", handleHealth)
	mux.HandleFunc("/readyz", s.handleReady)

	mux.HandleFunc("/api/entries", s.protect(s.handleEntries))
	mux.HandleFunc("/api/entries/", s.protect(s.handleEntryByID))
	mux.HandleFunc("/api/summary", s.protect(s.handleSummary))
	mux.HandleFunc("/api/periods", s.protect(s.handlePeriods))
	mux.HandleFunc("/api/profile", s.protect(s.handleProfile))
	mux.HandleFunc("/api/sync", s.protect(s.handleSync))
	mux.HandleFunc("/api/sync/status", s.protect(s.handleSyncStatus))

	return s
}

// protect wraps a handler with rate limiting, security headers and
// request logging.
func (s *Server) protect(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		clientIP := clientIPOf(r)
		if !s.rateLimiter.allow(clientIP) {
			s.logger.WarnContext(r.Context(), "Rate limit exceeded", applog.FieldClientIP, clientIP, applog.FieldPath, r.URL.Path)
			writeError(w, http.StatusTooManyRequests, "too many requests")
			return
		}

		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Cache-Control", "no-store")

		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next(sw, r)
		applog.HTTPEnd(r.Context(), s.logger, r, sw.status, time.Since(start).Milliseconds())
	}
}

// statusWriter records the status code written by a handler
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

// Shutdown gracefully shuts down the server and cleanup routines
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error

	s.shutdownOnce.Do(func() {
		if s.rateLimiter != nil {
			s.rateLimiter.stop()
		}
		shutdownErr = s.Server.Shutdown(ctx)
	})

	return shutdownErr
}
