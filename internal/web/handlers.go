package web

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/JamesPrial/tasksync/internal/prefs"
	"github.com/JamesPrial/tasksync/internal/session"
	"github.com/JamesPrial/tasksync/internal/syncengine"
	"github.com/JamesPrial/tasksync/internal/task"
)

// statusFor maps an engine or session error to an HTTP status.
func statusFor(err error) int {
	switch {
	case errors.Is(err, syncengine.ErrNotAuthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, syncengine.ErrDuplicateTask), errors.Is(err, syncengine.ErrTaskNotSynced):
		return http.StatusConflict
	case errors.Is(err, syncengine.ErrInvalidTask), errors.Is(err, prefs.ErrInvalid):
		return http.StatusBadRequest
	case errors.Is(err, syncengine.ErrTaskNotFound):
		return http.StatusNotFound
	case errors.Is(err, syncengine.ErrRemoteWrite):
		return http.StatusBadGateway
	case errors.Is(err, syncengine.ErrSubscription), errors.Is(err, session.ErrNotConfigured):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeError(c *gin.Context, err error) {
	c.JSON(statusFor(err), gin.H{
		"success": false,
		"error":   syncengine.Describe(err),
	})
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, gin.H{
		"success": false,
		"error":   msg,
	})
}

// Tasks

func (s *Server) handleListTasks(c *gin.Context) {
	if s.sess.OwnerID() == "" {
		writeError(c, syncengine.ErrNotAuthenticated)
		return
	}

	status := task.Status(c.Query("status"))
	if status != "" && !status.Valid() {
		badRequest(c, "status must be 'pending' or 'completed'")
		return
	}

	tasks := s.sess.Engine().CurrentTasks()
	filtered := make([]task.Task, 0, len(tasks))
	for _, t := range tasks {
		if status == "" || t.Status == status {
			filtered = append(filtered, t)
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    filtered,
		"count":   len(filtered),
	})
}

func (s *Server) handleAddTask(c *gin.Context) {
	var draft task.Draft
	if err := c.ShouldBindJSON(&draft); err != nil {
		badRequest(c, err.Error())
		return
	}

	created, err := s.sess.Engine().AddTask(c.Request.Context(), draft)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"success": true,
		"data":    created,
	})
}

func (s *Server) handleUpdateTask(c *gin.Context) {
	var fields task.Fields
	if err := c.ShouldBindJSON(&fields); err != nil {
		badRequest(c, err.Error())
		return
	}

	updated, err := s.sess.Engine().UpdateTask(c.Request.Context(), c.Param("id"), fields)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    updated,
	})
}

func (s *Server) handleToggleTask(c *gin.Context) {
	toggled, err := s.sess.Engine().ToggleStatus(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    toggled,
	})
}

func (s *Server) handleDeleteTask(c *gin.Context) {
	id := c.Param("id")
	if err := s.sess.Engine().DeleteTask(c.Request.Context(), id); err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"id":      id,
		"message": "Task deleted",
	})
}

// Progress

func (s *Server) handleProgress(c *gin.Context) {
	report, err := s.sess.Progress(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    report,
	})
}

func (s *Server) handleProgressHistory(c *gin.Context) {
	history, err := s.sess.History(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    history,
		"count":   len(history),
	})
}

// Preferences

func (s *Server) handleGetPreferences(c *gin.Context) {
	p, err := s.sess.Preferences()
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    p,
	})
}

func (s *Server) handleUpdatePreferences(c *gin.Context) {
	var patch prefs.Patch
	if err := c.ShouldBindJSON(&patch); err != nil {
		badRequest(c, err.Error())
		return
	}

	p, err := s.sess.UpdatePreferences(c.Request.Context(), patch)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    p,
	})
}

// Status

// handleStatus answers 503 while the subscription is failing so health
// checks notice, but still reports the last known state.
func (s *Server) handleStatus(c *gin.Context) {
	if s.sess.OwnerID() == "" {
		writeError(c, syncengine.ErrNotAuthenticated)
		return
	}

	status := s.sess.Engine().Status()
	code := http.StatusOK
	if status.SubscriptionErr != nil {
		code = statusFor(status.SubscriptionErr)
	}

	c.JSON(code, gin.H{
		"success": status.SubscriptionErr == nil,
		"data":    status,
	})
}
