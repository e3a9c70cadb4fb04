package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/netpulse-project/netpulse/internal/util"
)

// handlePing is a simple liveness check.
func (s *Server) handlePing(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// handleStatus returns per-endpoint and overall connection state.
func (s *Server) handleStatus(c *gin.Context) {
	snap := s.network.Store().Connections()
	c.JSON(http.StatusOK, gin.H{
		"endpoints": snap.Endpoints,
		"overall":   snap.Overall,
		"paused":    s.network.Paused(),
	})
}

// handleRuntime returns host and process resource usage.
func (s *Server) handleRuntime(c *gin.Context) {
	mem, err := util.GetMemoryUsage()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	cpu, err := util.GetCPUUsage()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"system": util.GetSystemInfo(),
		"memory": mem,
		"cpu":    cpu,
	})
}

// handleGetServers returns every reconciled server record.
func (s *Server) handleGetServers(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"servers": s.network.Store().Servers()})
}

// handleGetServer returns one server record.
func (s *Server) handleGetServer(c *gin.Context) {
	rec, ok := s.network.Store().Server(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "server not found"})
		return
	}
	c.JSON(http.StatusOK, rec)
}

// handleGetServerPlayers returns the name cache entries for one server.
func (s *Server) handleGetServerPlayers(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"players": s.network.Store().PlayersOn(c.Param("id"))})
}

// handleGetStats returns the aggregate network stats.
func (s *Server) handleGetStats(c *gin.Context) {
	st := s.network.Store()
	c.JSON(http.StatusOK, gin.H{
		"stats":           st.Stats(),
		"tracked_players": st.PlayerCount(),
	})
}

// handleGetPlayer returns one player's name cache entry and location.
func (s *Server) handleGetPlayer(c *gin.Context) {
	uuid := c.Param("uuid")
	st := s.network.Store()

	info, ok := st.Player(uuid)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "player not found"})
		return
	}
	server, _ := st.PlayerLocation(uuid)
	c.JSON(http.StatusOK, gin.H{"player": info, "server": server})
}

// handleGetMaintenance returns the maintenance state.
func (s *Server) handleGetMaintenance(c *gin.Context) {
	c.JSON(http.StatusOK, s.network.Store().Maintenance())
}

// handleSetMaintenance sets or clears the operator maintenance override.
func (s *Server) handleSetMaintenance(c *gin.Context) {
	var req struct {
		Force bool `json:"force"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	s.network.ForceMaintenance(req.Force)
	c.JSON(http.StatusOK, s.network.Store().Maintenance())
}

// handleGetUptime returns interpolated uptime counters.
func (s *Server) handleGetUptime(c *gin.Context) {
	running, total, ok := s.network.Store().Uptime()
	c.JSON(http.StatusOK, gin.H{
		"running_time":       running,
		"total_running_time": total,
		"known":              ok,
	})
}

// handleGetNotices returns the current announcement page.
func (s *Server) handleGetNotices(c *gin.Context) {
	c.JSON(http.StatusOK, s.network.Store().Notices())
}

// handleRequestNotices asks the backend for an announcement page.
func (s *Server) handleRequestNotices(c *gin.Context) {
	var req struct {
		Page   int `json:"page"`
		Counts int `json:"counts"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	if err := s.network.Store().RequestNotices(req.Page, req.Counts); err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"status": "requested"})
}

// handleConnect opens all endpoints.
func (s *Server) handleConnect(c *gin.Context) {
	if err := s.network.Connect(c.Request.Context()); err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "connecting"})
}

// handleDisconnect closes all endpoints.
func (s *Server) handleDisconnect(c *gin.Context) {
	s.network.Disconnect()
	c.JSON(http.StatusOK, gin.H{"status": "disconnected"})
}

// handlePause suspends connections and retries.
func (s *Server) handlePause(c *gin.Context) {
	s.network.Pause()
	c.JSON(http.StatusOK, gin.H{"status": "paused"})
}

// handleResume reconnects after a pause.
func (s *Server) handleResume(c *gin.Context) {
	s.network.Resume(c.Request.Context())
	c.JSON(http.StatusOK, gin.H{"status": "resumed"})
}
