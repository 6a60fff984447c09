package server

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/termbridge/internal/lifecycle"
	"github.com/GriffinCanCode/termbridge/internal/surface/ws"
	"github.com/GriffinCanCode/termbridge/internal/terminal"
)

const recentLimit = 10

// root handles the service banner.
func (s *Server) root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "online",
		"service": "termbridge sidecar",
	})
}

// health handles the liveness check.
func (s *Server) health(c *gin.Context) {
	s.mu.Lock()
	busy := s.busy
	s.mu.Unlock()

	c.JSON(http.StatusOK, gin.H{
		"status":         "healthy",
		"session_active": busy,
		"uptime_seconds": int64(time.Since(s.upSince).Seconds()),
	})
}

// session reports the attached session, or the last one to finish.
func (s *Server) session(c *gin.Context) {
	s.mu.Lock()
	ctrl, last := s.active, s.last
	s.mu.Unlock()

	resp := gin.H{"active": ctrl != nil}
	switch {
	case ctrl != nil:
		resp["session_id"] = ctrl.ID()
		resp["state"] = ctrl.State()
		resp["transitions"] = ctrl.History()
	case last != nil:
		resp["session_id"] = last.SessionID
		resp["state"] = lifecycle.Closed
		resp["transitions"] = last.Transitions
		resp["result"] = resultView(*last)
	default:
		resp["state"] = lifecycle.Idle
		resp["transitions"] = []lifecycle.Transition{}
	}

	if s.opts.Journal != nil {
		recent, err := s.opts.Journal.Recent(c.Request.Context(), recentLimit)
		if err != nil {
			s.logger.Warn("journal read failed", zap.Error(err))
		} else {
			resp["recent"] = recent
		}
	}

	c.JSON(http.StatusOK, resp)
}

// pty upgrades to a websocket and runs one session on it.
func (s *Server) pty(c *gin.Context) {
	g, err := s.geometry(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ok, reason := s.reserve()
	if !ok {
		c.JSON(http.StatusConflict, gin.H{"error": reason})
		return
	}

	surf, err := ws.Upgrade(c.Writer, c.Request, s.logger, s.metrics)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", zap.Error(err))
		s.release(nil)
		return
	}

	ctrl := s.sessions.Controller(s.sessions.Bridge(), surf, g)
	s.attach(ctrl)
	s.logger.Info("session attached",
		zap.String("session_id", ctrl.ID().String()),
		zap.String("conn_id", surf.ID()),
		zap.Stringer("geometry", g),
	)

	res, err := ctrl.Run(s.ctx)
	if err != nil {
		s.logger.Info("session failed", zap.String("session_id", ctrl.ID().String()), zap.Error(err))
	}

	if err := surf.SendExit(exitMessage(res)); err != nil {
		s.logger.Debug("exit frame not sent", zap.Error(err))
	}
	_ = surf.Close()
	s.release(&res)
}

// geometry reads the optional cols and rows query parameters.
func (s *Server) geometry(c *gin.Context) (terminal.Geometry, error) {
	g := s.sessions.Geometry()
	for _, p := range []struct {
		name string
		dst  *int
	}{
		{"cols", &g.Cols},
		{"rows", &g.Rows},
	} {
		raw := c.Query(p.name)
		if raw == "" {
			continue
		}
		v, err := strconv.Atoi(raw)
		if err != nil || v <= 0 {
			return terminal.Geometry{}, fmt.Errorf("invalid %s %q", p.name, raw)
		}
		*p.dst = v
	}
	return g.Clamp(), nil
}

func exitMessage(res lifecycle.Result) ws.ExitMessage {
	var signal string
	if res.Exited && res.Status.Signaled {
		signal = lifecycle.SignalName(res.Status.Signal)
	}
	return ws.NewExitMessage(res.SessionID.String(), res.ExitCode(), signal, string(res.Cause), res.Err)
}

func resultView(res lifecycle.Result) gin.H {
	view := gin.H{
		"cause":     res.Cause,
		"exited":    res.Exited,
		"exit_code": res.ExitCode(),
	}
	if res.Exited && res.Status.Signaled {
		view["signal"] = lifecycle.SignalName(res.Status.Signal)
	}
	if text := res.ErrorText(); text != "" {
		view["error"] = text
	}
	return view
}
