// Package server exposes the result log and the uptime report over HTTP.
package server

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/amartya2002/uptime-probe/report"
	"github.com/amartya2002/uptime-probe/store"
)

// Reader is the read side of the result log the API serves.
type Reader interface {
	report.Source
	Recent(ctx context.Context, limit int) ([]store.Record, error)
}

type LogResponse struct {
	Timestamp  time.Time `json:"timestamp"`
	Input      string    `json:"input"`
	StatusCode int       `json:"status_code"`
	LatencyMS  int64     `json:"latency_ms"`
	Status     string    `json:"status"`
	Text       string    `json:"text"`
}

// NewRouter builds the gin engine. metrics may be nil.
func NewRouter(src Reader, metrics http.Handler, logger *zap.Logger) *gin.Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(logger))

	// Health check for API
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	r.GET("/report", func(c *gin.Context) {
		rep, err := report.Build(c.Request.Context(), src)
		if errors.Is(err, report.ErrNoData) {
			c.JSON(http.StatusNotFound, gin.H{"error": "No data found in request_logs. Run the monitor first."})
			return
		}
		if err != nil {
			logger.Error("Report failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, rep)
	})

	r.GET("/logs/status", func(c *gin.Context) {
		groups, err := src.GroupByStatus(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		if groups == nil {
			groups = []store.StatusCount{}
		}
		c.JSON(http.StatusOK, gin.H{"statuses": groups})
	})

	// Latest records, newest first
	r.GET("/logs", func(c *gin.Context) {
		limit, err := strconv.Atoi(c.DefaultQuery("limit", "50"))
		if err != nil || limit <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
			return
		}
		rawLogs, err := src.Recent(c.Request.Context(), limit)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		logs := make([]LogResponse, 0, len(rawLogs))
		for _, l := range rawLogs {
			ts, err := report.ParseTimestamp(l.Timestamp)
			if err != nil {
				c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
				return
			}
			logs = append(logs, LogResponse{
				Timestamp:  ts,
				Input:      l.Input,
				StatusCode: l.Status,
				LatencyMS:  l.LatencyMs,
				Status:     map[bool]string{true: "UP", false: "DOWN"}[l.Status == report.HealthyStatus],
				Text:       l.Text,
			})
		}
		c.JSON(http.StatusOK, gin.H{"logs": logs})
	})

	if metrics != nil {
		r.GET("/metrics", gin.WrapH(metrics))
	}
	return r
}

func requestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Debug("HTTP request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)))
	}
}
