package httpserver

import (
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/Dhakshil/ordernpick-sentiment-api/internal/platform/version"
)

func (s *Server) registerHealthRoutes() {
	s.echo.GET("/health", s.handleHealth)
	s.echo.GET("/health/live", s.handleLiveness)
	s.echo.GET("/health/ready", s.handleReadiness)
	s.echo.GET("/version", s.handleVersion)
}

type healthResponse struct {
	Status        string `json:"status"`
	ModelLoaded   bool   `json:"model_loaded"`
	PipelineReady bool   `json:"pipeline_ready"`
}

// handleHealth always answers 200 so a fallback instance stays in rotation.
func (s *Server) handleHealth(c echo.Context) error {
	status := s.loader.Status()
	response := healthResponse{
		Status:        "healthy",
		ModelLoaded:   status.ModelLoaded,
		PipelineReady: status.PipelineReady,
	}
	if err := c.JSON(http.StatusOK, response); err != nil {
		return fmt.Errorf("failed to write health response: %w", err)
	}
	return nil
}

func (s *Server) handleLiveness(c echo.Context) error {
	uptime := s.clock.Since(s.startTime).Seconds()

	response := map[string]any{
		"status": "ok",
		"uptime": uptime,
	}
	if err := c.JSON(http.StatusOK, response); err != nil {
		return fmt.Errorf("failed to write liveness response: %w", err)
	}

	return nil
}

func (s *Server) handleReadiness(c echo.Context) error {
	status := s.loader.Status()
	if status.Ready() {
		if err := c.JSON(http.StatusOK, map[string]string{"status": "ready"}); err != nil {
			return fmt.Errorf("failed to send JSON response: %w", err)
		}
		return nil
	}

	response := map[string]any{
		"status": "not_ready",
		"state":  status.State,
	}
	if status.LastError != "" {
		response["error"] = status.LastError
	}
	if err := c.JSON(http.StatusServiceUnavailable, response); err != nil {
		return fmt.Errorf("failed to send JSON response: %w", err)
	}
	return nil
}

func (s *Server) handleVersion(c echo.Context) error {
	if err := c.JSON(http.StatusOK, version.Get()); err != nil {
		return fmt.Errorf("failed to write version response: %w", err)
	}
	return nil
}
