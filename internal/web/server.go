// Package web serves a tasksync session as a JSON API.
package web

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/JamesPrial/tasksync/internal/session"
)

// Server is the tasksync HTTP API.
type Server struct {
	sess   *session.Session
	router *gin.Engine
}

// NewServer creates a server for sess. Gin runs in release mode unless debug
// is set.
func NewServer(sess *session.Session, debug bool) *Server {
	if debug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	return newServer(sess)
}

func newServer(sess *session.Session) *Server {
	router := gin.New()
	router.Use(gin.Recovery())
	if gin.Mode() == gin.DebugMode {
		router.Use(gin.Logger())
	}

	s := &Server{
		sess:   sess,
		router: router,
	}

	api := router.Group("/api")
	{
		api.GET("/tasks", s.handleListTasks)
		api.POST("/tasks", s.handleAddTask)
		api.PATCH("/tasks/:id", s.handleUpdateTask)
		api.POST("/tasks/:id/toggle", s.handleToggleTask)
		api.DELETE("/tasks/:id", s.handleDeleteTask)

		api.GET("/progress", s.handleProgress)
		api.GET("/progress/history", s.handleProgressHistory)

		api.GET("/preferences", s.handleGetPreferences)
		api.PATCH("/preferences", s.handleUpdatePreferences)

		api.GET("/status", s.handleStatus)
	}

	return s
}

// Handler returns the router for use with net/http or httptest.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
