// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.
package health

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/rapidaai/vcon-bridge/internal/poller"
	"github.com/rapidaai/vcon-bridge/pkg/commons"
)

// StatsFunc supplies the current loop counters.
type StatsFunc func() poller.Stats

// NewServer wires the liveness/readiness/status routes onto a plain engine.
// Readiness means the poller has completed at least one full cycle.
func NewServer(logger commons.Logger, addr string, stats StatsFunc) *http.Server {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())

	engine.GET("/healthz/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	engine.GET("/readiness/", func(c *gin.Context) {
		if stats().Cycles == 0 {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "starting"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	engine.GET("/status/", func(c *gin.Context) {
		s := stats()
		c.JSON(http.StatusOK, gin.H{
			"cycles":     s.Cycles,
			"processed":  s.Processed,
			"delivered":  s.Delivered,
			"failed":     s.Failed,
			"last_cycle": s.LastCycle.Format(time.RFC3339),
		})
	})

	logger.Infow("health routes added to engine", "addr", addr)
	return &http.Server{Addr: addr, Handler: engine}
}
