package http

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"elaun/internal/aggregate"
	"elaun/internal/cache"
	"elaun/internal/core"
	"elaun/internal/report"
	"elaun/internal/tracker"
)

// RecordEditor mutates attendance records under optimistic concurrency.
type RecordEditor interface {
	Load(ctx context.Context, classID string, m core.Month) (*core.AttendanceRecord, error)
	ToggleAttendance(ctx context.Context, classID string, m core.Month, role core.Role, personID string, day int, baseVersion int64) (*core.AttendanceRecord, error)
	AddParticipant(ctx context.Context, classID string, m core.Month, role core.Role, personID string, baseVersion int64) (*core.AttendanceRecord, error)
	RemoveParticipant(ctx context.Context, classID string, m core.Month, role core.Role, personID string, baseVersion int64) (*core.AttendanceRecord, error)
	CopyFromPreviousMonth(ctx context.Context, classID string, m core.Month, baseVersion int64) (*core.AttendanceRecord, core.CopyForwardResult, error)
	SyncCategoryFromMaster(ctx context.Context, classID string, m core.Month, baseVersion int64) (*core.AttendanceRecord, int, error)
}

// ReportReader produces filtered summaries and the cascading filter
// choices behind them.
type ReportReader interface {
	Summarize(ctx context.Context, f aggregate.Filter) (aggregate.Summary, error)
	FilterOptions(ctx context.Context, f aggregate.Filter) (aggregate.Options, error)
}

// PeopleReader searches the per-year participant directory and builds
// per-person monthly series.
type PeopleReader interface {
	Search(ctx context.Context, year int, query string) ([]tracker.Person, error)
	MonthlySeries(ctx context.Context, personID string, year int) ([12]tracker.MonthPoint, error)
}

// RecordLister feeds the spreadsheet export.
type RecordLister interface {
	ListRecordsByYear(ctx context.Context, year int) ([]*core.AttendanceRecord, error)
}

// Deps bundles the service dependencies the server routes to.
type Deps struct {
	Editor  RecordEditor
	Reports ReportReader
	People  PeopleReader

	// Export wiring: records are rebuilt into rows against the master
	// data sources and handed to the exporter.
	Records  RecordLister
	Classes  report.ClassDirectory
	Rates    report.RateSource
	Roster   report.Roster
	Exporter report.Exporter

	// RefreshMasterData reloads the master-data caches (rates, rosters,
	// classes). Optional.
	RefreshMasterData func(ctx context.Context) error
}

type Server struct {
	http.Server
	deps        Deps
	rateLimiter *rateLimiter
	metrics     *securityMetrics

	// Summaries and filter options are cached per filter combination
	// and purged wholesale on any successful mutation.
	summaryCache *cache.LRUCache[aggregate.Summary]
	optionsCache *cache.LRUCache[aggregate.Options]

	stopCacheCleanup chan struct{}
	shutdownOnce     sync.Once
}

// NewServer configures routes and caches, returning a ready-to-run
// http.Server.
func NewServer(addr string, deps Deps) *Server {
	mux := http.NewServeMux()

	s := &Server{
		Server: http.Server{
			Addr:    addr,
			Handler: mux,
		},
		deps:             deps,
		rateLimiter:      newRateLimiter(),
		metrics:          &securityMetrics{},
		summaryCache:     cache.NewLRUCache[aggregate.Summary](100, 5*time.Minute),
		optionsCache:     cache.NewLRUCache[aggregate.Options](100, 5*time.Minute),
		stopCacheCleanup: make(chan struct{}),
	}

	go s.startCacheCleanup()

	mux.HandleFunc("/healthz", handleHealth)
	mux.HandleFunc("/readyz", handleReady)

	mux.HandleFunc("/api/record", s.withSecurityHeaders(s.handleGetRecord))
	mux.HandleFunc("/api/record/toggle", s.withSecurityHeaders(s.handleToggleAttendance))
	mux.HandleFunc("/api/record/participants/add", s.withSecurityHeaders(s.handleAddParticipant))
	mux.HandleFunc("/api/record/participants/remove", s.withSecurityHeaders(s.handleRemoveParticipant))
	mux.HandleFunc("/api/record/copy-forward", s.withSecurityHeaders(s.handleCopyForward))
	mux.HandleFunc("/api/record/sync-categories", s.withSecurityHeaders(s.handleSyncCategories))

	mux.HandleFunc("/api/summary", s.withSecurityHeaders(s.handleSummary))
	mux.HandleFunc("/api/summary/options", s.withSecurityHeaders(s.handleFilterOptions))
	mux.HandleFunc("/api/export.xlsx", s.withSecurityHeaders(s.handleExport))

	mux.HandleFunc("/api/people", s.withSecurityHeaders(s.handleSearchPeople))
	mux.HandleFunc("/api/people/series", s.withSecurityHeaders(s.handleMonthlySeries))

	mux.HandleFunc("/api/caches/refresh", s.withSecurityHeaders(s.handleRefreshCaches))

	return s
}

// startCacheCleanup runs periodic cleanup for the response caches.
func (s *Server) startCacheCleanup() {
	ticker := time.NewTicker(10 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			summaries := s.summaryCache.CleanExpired()
			options := s.optionsCache.CleanExpired()
			if summaries > 0 || options > 0 {
				slog.Debug("Cache cleanup completed",
					"summary_entries_removed", summaries,
					"options_entries_removed", options)
			}
		case <-s.stopCacheCleanup:
			return
		}
	}
}

// Shutdown gracefully shuts down the server and cleanup routines.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error

	s.shutdownOnce.Do(func() {
		if s.stopCacheCleanup != nil {
			close(s.stopCacheCleanup)
		}

		if s.rateLimiter != nil {
			s.rateLimiter.stop()
		}

		shutdownErr = s.Server.Shutdown(ctx)
	})

	return shutdownErr
}

// invalidateReports drops all cached summaries and filter options.
// Mutations are rare next to reads, so wholesale purge beats tracking
// which filter combinations a record touches.
func (s *Server) invalidateReports() {
	s.summaryCache.Purge()
	s.optionsCache.Purge()
}

// withSecurityHeaders adds security headers, rate limiting, and request
// logging to responses.
func (s *Server) withSecurityHeaders(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		clientIP := extractClientIP(r)
		requestID := generateRequestID()

		ctx := context.WithValue(r.Context(), requestIDKey, requestID)
		r = r.WithContext(ctx)

		slog.InfoContext(ctx, "Request started",
			"request_id", requestID,
			"method", r.Method,
			"url", r.URL.Path,
			"client_ip", clientIP,
			"user_agent", r.Header.Get("User-Agent"))

		if detectSuspiciousRequest(r, s.metrics) {
			slog.WarnContext(ctx, "Suspicious request pattern",
				"request_id", requestID, "client_ip", clientIP, "url", r.URL.Path)
		}

		// Rate limiting applies to mutations only.
		if r.Method == http.MethodPost && !s.rateLimiter.allow(clientIP) {
			s.metrics.recordRateLimitHit()
			slog.WarnContext(ctx, "Rate limit exceeded", "client_ip", clientIP, "method", r.Method, "url", r.URL.Path)
			w.Header().Set("Retry-After", "60")
			http.Error(w, "Rate limit exceeded. Please try again later.", http.StatusTooManyRequests)
			return
		}

		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Content-Security-Policy", "default-src 'none'")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")

		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next(rw, r)

		duration := time.Since(start)
		slog.InfoContext(ctx, "Request completed",
			"request_id", requestID,
			"method", r.Method,
			"url", r.URL.Path,
			"status", rw.statusCode,
			"duration_ms", duration.Milliseconds(),
			"client_ip", clientIP)
	}
}

type contextKey string

const requestIDKey contextKey = "request_id"

// responseWriter wraps http.ResponseWriter to capture the status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// generateRequestID creates a unique request ID for tracing.
func generateRequestID() string {
	bytes := make([]byte, 8)
	if _, err := rand.Read(bytes); err != nil {
		// Fallback to timestamp if random fails
		return fmt.Sprintf("req_%d", time.Now().UnixNano())
	}
	return "req_" + hex.EncodeToString(bytes)
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func handleReady(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}
