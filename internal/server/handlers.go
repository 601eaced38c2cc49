package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/tallgy/qiankun/internal/lifecycle"
	"github.com/tallgy/qiankun/internal/monitoring"
	"github.com/tallgy/qiankun/internal/sandbox"
)

type registerRequest struct {
	Name   string `json:"name" binding:"required"`
	Script string `json:"script" binding:"required"`
	Kind   string `json:"kind"`
}

type executeRequest struct {
	Script string `json:"script" binding:"required"`
}

type appResponse struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Kind   string `json:"kind"`
	Status string `json:"status"`
}

func toAppResponse(app *lifecycle.App) appResponse {
	return appResponse{
		ID:     app.ID,
		Name:   app.Name,
		Kind:   string(app.Kind),
		Status: string(app.Status),
	}
}

func (s *Server) handleHealth(c *gin.Context) {
	s.metrics.UpdateUptime()
	c.JSON(http.StatusOK, gin.H{
		"status":           "ok",
		"active_sandboxes": s.realm.ActiveCount(),
		"apps":             len(s.controller.List()),
	})
}

func (s *Server) handleRegister(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	kind := sandbox.Kind(req.Kind)
	if req.Kind == "" {
		kind = sandbox.Kind(s.cfg.Sandbox.Mode)
	}

	app, err := s.controller.Register(req.Name, req.Script, kind)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	s.metrics.AppsRegistered.Set(float64(len(s.controller.List())))
	c.JSON(http.StatusCreated, toAppResponse(app))
}

func (s *Server) handleList(c *gin.Context) {
	apps := s.controller.List()
	out := make([]appResponse, 0, len(apps))
	for _, app := range apps {
		out = append(out, toAppResponse(app))
	}
	c.JSON(http.StatusOK, gin.H{"apps": out})
}

func (s *Server) handleMount(c *gin.Context) {
	name := c.Param("name")
	timer := monitoring.NewTimer(s.metrics, name)

	if err := s.controller.Mount(c.Request.Context(), name); err != nil {
		timer.Stop("error")
		s.logger.Warn("mount failed", zap.String("app", name), zap.Error(err))
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}
	timer.Stop("success")
	c.JSON(http.StatusOK, gin.H{"mounted": name})
}

func (s *Server) handleUnmount(c *gin.Context) {
	name := c.Param("name")
	if err := s.controller.Unmount(name); err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"unmounted": name})
}

func (s *Server) handleUnload(c *gin.Context) {
	name := c.Param("name")
	if err := s.controller.Unload(name); err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}
	s.metrics.AppsRegistered.Set(float64(len(s.controller.List())))
	c.JSON(http.StatusOK, gin.H{"unloaded": name})
}

// handleExecute runs an ad-hoc script inside a mounted app's sandbox.
func (s *Server) handleExecute(c *gin.Context) {
	name := c.Param("name")
	var req executeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	app, ok := s.controller.Get(name)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "micro-app not registered"})
		return
	}
	if app.Status != lifecycle.StatusMounted {
		c.JSON(http.StatusConflict, gin.H{"error": "micro-app not mounted"})
		return
	}

	res, err := s.controller.Execute(app, req.Script)
	if err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"result": res})
}

// handleGlobal reads a key through a registered app's membrane, showing
// the value that app's scripts would observe.
func (s *Server) handleGlobal(c *gin.Context) {
	name := c.Param("name")
	key := c.Param("key")

	app, ok := s.controller.Get(name)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "micro-app not registered"})
		return
	}

	v, present, err := s.controller.Peek(app, key)
	if err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"key":     key,
		"present": present,
		"value":   renderValue(v),
	})
}

// renderValue flattens membrane values into something JSON-encodable.
func renderValue(v any) any {
	switch t := v.(type) {
	case nil, string, bool, int64, float64:
		return t
	case interface{ String() string }:
		return t.String()
	default:
		return nil
	}
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, lifecycle.ErrNotRegistered):
		return http.StatusNotFound
	case errors.Is(err, lifecycle.ErrAlreadyMounted):
		return http.StatusConflict
	case errors.Is(err, lifecycle.ErrIncompatibleIsolation):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
