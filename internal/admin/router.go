// Package admin serves the HTTP side channel used for health checks and
// debugging. It never touches the RESP listeners.
package admin

import (
	"net/http"
	"time"

	ginzap "github.com/gin-contrib/zap"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/luma/respd/internal/meta"
	"github.com/luma/respd/storage"
)

// Stats is what the router reports about the RESP server.
type Stats interface {
	LiveConnections() int
	MaxConnections() int
}

type Options struct {
	Stats Stats
	Store storage.Store

	// Debug enables gin's debug mode and the /debug routes
	Debug bool

	Log *zap.Logger
}

func NewRouter(options Options) *gin.Engine {
	gin.DisableConsoleColor()
	if !options.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()

	// Logs all requests, like a combined access and error log, in UTC
	r.Use(ginzap.GinzapWithConfig(options.Log, &ginzap.Config{
		TimeFormat: time.RFC3339,
		UTC:        true,
		SkipPaths:  []string{"/health"},
	}))

	// Logs all panic to error log
	//   - stack means whether output the stack info.
	r.Use(ginzap.RecoveryWithZap(options.Log, true))

	r.GET("/ping", func(c *gin.Context) {
		c.String(http.StatusOK, "pong")
	})

	r.GET("/health", func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})

	r.GET("/stats", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"connections":    options.Stats.LiveConnections(),
			"maxConnections": options.Stats.MaxConnections(),
			"version":        meta.GetInfo().Version,
		})
	})

	if options.Debug {
		r.GET("/debug/keyspace", func(c *gin.Context) {
			doc, err := options.Store.Backup()
			if err != nil {
				c.String(http.StatusInternalServerError, err.Error())
				return
			}

			c.Data(http.StatusOK, "application/json", doc)
		})
	}

	return r
}
