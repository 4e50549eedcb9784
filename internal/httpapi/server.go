// Package httpapi exposes the health check and sweep triggers over HTTP.
package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/ykvlv/taskmate-bot/internal/scheduler"
)

const (
	statusOK        = "ok"
	statusDown      = "down"
	healthDBTimeout = 2 * time.Second
)

// Pinger checks the store connection.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Sweeper runs one sweep on demand.
type Sweeper interface {
	RunReminderSweep(ctx context.Context) (scheduler.SweepStats, error)
	RunDigestSweep(ctx context.Context) (scheduler.SweepStats, error)
}

// Health is the /healthz response body.
type Health struct {
	Status string `json:"status"`
	Store  string `json:"store"`
	Time   string `json:"time"`
}

// Handler serves the HTTP endpoints.
type Handler struct {
	db    Pinger
	sweep Sweeper
	log   *zap.Logger
}

// NewHandler creates a Handler.
func NewHandler(db Pinger, sweep Sweeper, log *zap.Logger) *Handler {
	return &Handler{db: db, sweep: sweep, log: log}
}

// NewRouter builds the gin engine with all routes registered.
func NewRouter(h *Handler, log *zap.Logger, sweepToken string) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), GinZapMiddleware(log))

	r.GET("/healthz", h.CheckHealth)
	sweeps := r.Group("/sweeps", requireToken(sweepToken))
	{
		sweeps.POST("/reminders", h.RunReminders)
		sweeps.POST("/digest", h.RunDigest)
	}
	return r
}

// NewServer wraps the router in an http.Server.
func NewServer(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 3 * time.Second,
		ReadTimeout:       5 * time.Second,
		WriteTimeout:      2 * time.Minute,
	}
}

// CheckHealth reports 200 when the store answers a ping, 503 otherwise.
func (h *Handler) CheckHealth(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), healthDBTimeout)
	defer cancel()

	code, store, status := http.StatusOK, statusOK, statusOK
	if err := h.db.Ping(ctx); err != nil {
		h.log.Warn("store ping failed", zap.Error(err))
		code, store, status = http.StatusServiceUnavailable, statusDown, statusDown
	}
	c.JSON(code, Health{
		Status: status,
		Store:  store,
		Time:   time.Now().UTC().Format(time.RFC3339),
	})
}

// RunReminders triggers one reminder sweep.
func (h *Handler) RunReminders(c *gin.Context) {
	h.runSweep(c, "reminders", h.sweep.RunReminderSweep)
}

// RunDigest triggers one digest sweep.
func (h *Handler) RunDigest(c *gin.Context) {
	h.runSweep(c, "digest", h.sweep.RunDigestSweep)
}

func (h *Handler) runSweep(c *gin.Context, kind string, run func(context.Context) (scheduler.SweepStats, error)) {
	st, err := run(c.Request.Context())
	if err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "sweep failed", "stats": st})
		return
	}
	h.log.Info("sweep triggered over http", zap.String("kind", kind), zap.Stringer("stats", st))
	c.JSON(http.StatusOK, st)
}
