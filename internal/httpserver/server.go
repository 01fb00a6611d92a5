// Package httpserver exposes an open session over a small JSON API.
package httpserver

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tinytelemetry/vxlview/internal/entrycache"
	"github.com/tinytelemetry/vxlview/internal/export"
	"github.com/tinytelemetry/vxlview/internal/filter"
	"github.com/tinytelemetry/vxlview/internal/render"
	"github.com/tinytelemetry/vxlview/internal/session"
)

const (
	// DefaultAddr is used when no listen address is configured.
	DefaultAddr = "127.0.0.1:3000"
	// DefaultPageSize is the entries page size when limit is omitted.
	DefaultPageSize = 100
	// MaxPageSize bounds the display range, and so the scan work, of one
	// request.
	MaxPageSize = 1000
)

// Server serves one session. Every handler holds mu while it uses the
// session; exports only take a snapshot under it.
type Server struct {
	addr      string
	exportDir string
	mu        sync.Mutex
	sess      *session.Session
	server    *http.Server
	ctx       context.Context
	cancel    context.CancelFunc
	startTime time.Time
}

// NewServer creates an API server for sess. Exports requested over the API
// are written into exportDir.
func NewServer(addr, exportDir string, sess *session.Session) *Server {
	if addr == "" {
		addr = DefaultAddr
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		addr:      addr,
		exportDir: exportDir,
		sess:      sess,
		ctx:       ctx,
		cancel:    cancel,
		startTime: time.Now(),
	}
}

// Handler returns the API routes.
func (s *Server) Handler() http.Handler {
	r := gin.New()
	r.Use(gin.Recovery())

	api := r.Group("/api")
	api.GET("/health", s.handleHealth)
	api.GET("/count", s.handleCount)
	api.GET("/entries", s.handleEntries)
	api.GET("/entries/:display", s.handleEntry)
	api.GET("/find/:raw", s.handleFind)
	api.GET("/filter", s.handleGetFilter)
	api.PUT("/filter", s.handlePutFilter)
	api.POST("/export", s.handleExport)
	return r
}

// Start begins serving HTTP requests.
func (s *Server) Start() error {
	gin.SetMode(gin.ReleaseMode)

	s.server = &http.Server{
		Handler:           s.Handler(),
		BaseContext:       func(_ net.Listener) context.Context { return s.ctx },
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      5 * time.Minute,
	}

	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}
	s.startTime = time.Now()

	go s.server.Serve(listener)
	return nil
}

// Addr is the configured listen address.
func (s *Server) Addr() string { return s.addr }

// Stop gracefully shuts down the HTTP server.
func (s *Server) Stop() error {
	s.cancel()
	if s.server == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.server.Shutdown(ctx)
}

// statusFor maps session errors to HTTP statuses.
func statusFor(err error) int {
	switch {
	case errors.Is(err, session.ErrNotOpen):
		return http.StatusServiceUnavailable
	case errors.Is(err, session.ErrNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func abort(c *gin.Context, err error) {
	c.JSON(statusFor(err), gin.H{"error": err.Error()})
}

func (s *Server) handleHealth(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c.JSON(http.StatusOK, gin.H{
		"status":     "ok",
		"uptime":     time.Since(s.startTime).String(),
		"open":       s.sess.IsOpen(),
		"file":       s.sess.Path(),
		"source_app": s.sess.SourceApplication(),
		"raw_count":  s.sess.RawCount(),
	})
}

func (s *Server) countJSON() gin.H {
	return gin.H{
		"count":     s.sess.Count(),
		"confirmed": s.sess.CountConfirmed(),
		"raw_count": s.sess.RawCount(),
	}
}

func (s *Server) handleCount(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.sess.IsOpen() {
		abort(c, session.ErrNotOpen)
		return
	}
	c.JSON(http.StatusOK, s.countJSON())
}

type pageQuery struct {
	Offset int  `form:"offset" binding:"min=0"`
	Limit  int  `form:"limit" binding:"min=0"`
	Long   bool `form:"long"`
}

type renderedEntry struct {
	Display   int    `json:"display"`
	Raw       int    `json:"raw"`
	Severity  string `json:"severity"`
	Text      string `json:"text"`
	Truncated bool   `json:"truncated,omitempty"`
}

func (s *Server) handleEntries(c *gin.Context) {
	var q pageQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid offset or limit"})
		return
	}
	if q.Limit == 0 {
		q.Limit = DefaultPageSize
	}
	q.Limit = min(q.Limit, MaxPageSize)

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.sess.IsOpen() {
		abort(c, session.ErrNotOpen)
		return
	}

	entries := make([]renderedEntry, 0, q.Limit)
	for d := q.Offset; d < q.Offset+q.Limit; d++ {
		e, err := s.sess.Entry(d)
		if errors.Is(err, session.ErrNotFound) {
			break
		}
		if err != nil {
			abort(c, err)
			return
		}
		text, err := render.Render(e, s.sess.Names(), q.Long)
		truncated := errors.Is(err, render.ErrTruncated)
		if err != nil && !truncated {
			abort(c, err)
			return
		}
		entries = append(entries, renderedEntry{
			Display:   d,
			Raw:       e.Raw,
			Severity:  e.Severity.String(),
			Text:      text,
			Truncated: truncated,
		})
	}

	resp := s.countJSON()
	resp["offset"] = q.Offset
	resp["entries"] = entries
	c.JSON(http.StatusOK, resp)
}

type entryJSON struct {
	Display   int       `json:"display"`
	Raw       int       `json:"raw"`
	Severity  string    `json:"severity"`
	Time      time.Time `json:"time"`
	TimeText  string    `json:"time_text"`
	PID       uint32    `json:"pid"`
	TID       uint32    `json:"tid"`
	Component string    `json:"component"`
	File      string    `json:"file"`
	Function  string    `json:"function"`
	Line      uint32    `json:"line"`
	Header    string    `json:"header"`
	Body      string    `json:"body,omitempty"`
}

func (s *Server) toJSON(display int, e *entrycache.Entry) entryJSON {
	names := s.sess.Names()
	return entryJSON{
		Display:   display,
		Raw:       e.Raw,
		Severity:  e.Severity.String(),
		Time:      e.Time,
		TimeText:  e.TimeText,
		PID:       e.PID,
		TID:       e.TID,
		Component: names.Component(e.Component),
		File:      names.File(e.File),
		Function:  names.Function(e.Function),
		Line:      e.Line,
		Header:    e.Header,
		Body:      e.Body,
	}
}

func intParam(c *gin.Context, name string) (int, bool) {
	n, err := strconv.Atoi(c.Param(name))
	if err != nil || n < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + name})
		return 0, false
	}
	return n, true
}

func (s *Server) handleEntry(c *gin.Context) {
	display, ok := intParam(c, "display")
	if !ok {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	e, err := s.sess.Entry(display)
	if err != nil {
		abort(c, err)
		return
	}
	c.JSON(http.StatusOK, s.toJSON(display, e))
}

func (s *Server) handleFind(c *gin.Context) {
	raw, ok := intParam(c, "raw")
	if !ok {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	display, err := s.sess.FindDisplayIndex(raw)
	if err != nil {
		abort(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"raw": raw, "display": display})
}

func (s *Server) handleGetFilter(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c.JSON(http.StatusOK, s.sess.Filter())
}

func (s *Server) handlePutFilter(c *gin.Context) {
	var crit filter.Criteria
	if err := c.ShouldBindJSON(&crit); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid JSON filter body"})
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.sess.SetFilter(crit); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	resp := s.countJSON()
	resp["filter"] = s.sess.Filter()
	c.JSON(http.StatusOK, resp)
}

func (s *Server) handleExport(c *gin.Context) {
	// A browser can send a text/plain POST cross-origin without a preflight.
	if c.ContentType() != "application/json" {
		c.JSON(http.StatusUnsupportedMediaType, gin.H{"error": "content type must be application/json"})
		return
	}
	var req struct {
		Name string `json:"name"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid JSON body"})
		return
	}
	if req.Name != "" && !validFileName(req.Name) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "name must be a plain file name"})
		return
	}

	s.mu.Lock()
	snap, err := s.sess.Snapshot()
	s.mu.Unlock()
	if err != nil {
		abort(c, err)
		return
	}

	name := req.Name
	if name == "" {
		name = export.DefaultFileName(snap.SourceApplication)
	}
	if err := os.MkdirAll(s.exportDir, 0o755); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	path := filepath.Join(s.exportDir, name)

	st, err := export.ToFile(c.Request.Context(), snap, path)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"path":      path,
		"entries":   st.Entries,
		"truncated": st.Truncated,
		"skipped":   st.Skipped,
		"bytes":     st.Bytes,
	})
}

// validFileName accepts a single path element with no directory parts.
func validFileName(name string) bool {
	if name == "." || name == ".." || strings.ContainsAny(name, `/\:`) || strings.ContainsRune(name, 0) {
		return false
	}
	return filepath.Base(name) == name
}
