// Package api exposes detection, backtesting, signal history and the
// live signal stream over HTTP.
package api

import (
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// NewRouter registers every route. stream serves the WebSocket endpoint
// and may be nil when streaming is disabled.
func NewRouter(h *Handler, stream http.Handler) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), requestLog(), cors())

	r.GET("/api/health", h.Health)
	r.GET("/api/history", h.History)
	r.GET("/api/symbols/search", h.SearchSymbols)

	detect := r.Group("/api/detect")
	{
		detect.POST("/dkx", h.DetectDKX)
		detect.POST("/ma", h.DetectMA)
	}
	r.POST("/api/backtest/dkx", h.BacktestDKX)

	if stream != nil {
		r.GET("/api/stream/signals", gin.WrapH(stream))
	}
	return r
}

func requestLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Printf("[api] %s %s %d %s", c.Request.Method, c.Request.URL.Path, c.Writer.Status(), time.Since(start).Round(time.Microsecond))
	}
}

func cors() gin.HandlerFunc {
	return func(c *gin.Context) {
		h := c.Writer.Header()
		h.Set("Access-Control-Allow-Origin", "*")
		h.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		h.Set("Access-Control-Allow-Headers", "Content-Type")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}
