package main

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/ElDoritoMasPutas/legendsbot-sub000/countstore"
	"github.com/ElDoritoMasPutas/legendsbot-sub000/engine"
	"github.com/ElDoritoMasPutas/legendsbot-sub000/escalation"
	"github.com/ElDoritoMasPutas/legendsbot-sub000/perftrack"
	"github.com/ElDoritoMasPutas/legendsbot-sub000/sources"
)

type assessRequest struct {
	Text      string `json:"text"`
	AuthorID  string `json:"authorId"`
	ChannelID string `json:"channelId"`
	// when set, the message is scored but no violation is recorded
	DryRun bool `json:"dryRun"`
}

func (s *Server) handleAssess(c echo.Context) error {
	var req assessRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.AuthorID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "authorId is required")
	}

	rc := sources.RequestContext{
		AuthorID:  req.AuthorID,
		ChannelID: req.ChannelID,
	}
	if req.DryRun {
		dec := s.engine.Assess(c.Request().Context(), req.Text, rc)
		return c.JSON(http.StatusOK, engine.Outcome{Decision: dec})
	}
	out := s.engine.ProcessMessage(c.Request().Context(), req.Text, rc)
	return c.JSON(http.StatusOK, out)
}

type escalateRequest struct {
	AuthorID      string `json:"authorId"`
	ViolationType string `json:"violationType"`
}

type escalateResponse struct {
	AuthorID        string          `json:"authorId"`
	ViolationType   string          `json:"violationType"`
	PriorViolations int             `json:"priorViolations"`
	Action          escalation.Rung `json:"action"`
}

// handleEscalate previews the ladder action for an author's next violation of
// the given type. It never increments the stored count; only assessed
// messages do that.
func (s *Server) handleEscalate(c echo.Context) error {
	var req escalateRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.AuthorID == "" || req.ViolationType == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "authorId and violationType are required")
	}

	key := countstore.ViolationKey(req.AuthorID, req.ViolationType)
	prior, err := s.engine.Counters.GetCount(c.Request().Context(), "violations", key, countstore.PeriodTotal)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to read violation count")
	}

	return c.JSON(http.StatusOK, escalateResponse{
		AuthorID:        req.AuthorID,
		ViolationType:   req.ViolationType,
		PriorViolations: prior,
		Action:          s.engine.Ladder.Escalate(req.ViolationType, prior),
	})
}

type sourceInfo struct {
	Name           string             `json:"name"`
	Enabled        bool               `json:"enabled"`
	CapabilityTags []string           `json:"capabilityTags"`
	BaseWeight     float64            `json:"baseWeight"`
	Timeout        time.Duration      `json:"timeout"`
	RateLimit      float64            `json:"rateLimit"`
	CostPerCall    float64            `json:"costPerCall"`
	Performance    perftrack.Snapshot `json:"performance"`
}

func (s *Server) handleListSources(c echo.Context) error {
	var out []sourceInfo
	for _, src := range s.engine.Registry.All() {
		desc := src.Descriptor()
		out = append(out, sourceInfo{
			Name:           desc.Name,
			Enabled:        desc.Enabled(),
			CapabilityTags: desc.CapabilityTags,
			BaseWeight:     desc.BaseWeight,
			Timeout:        desc.Timeout,
			RateLimit:      desc.RateLimit,
			CostPerCall:    desc.CostPerCall,
			Performance:    s.engine.Perf.Snapshot(desc.Name),
		})
	}
	return c.JSON(http.StatusOK, out)
}

func (s *Server) handleEnableSource(c echo.Context) error {
	return s.setSourceEnabled(c, true)
}

func (s *Server) handleDisableSource(c echo.Context) error {
	return s.setSourceEnabled(c, false)
}

func (s *Server) setSourceEnabled(c echo.Context, on bool) error {
	name := c.Param("name")
	if err := s.engine.Registry.SetEnabled(name, on); err != nil {
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	}
	s.logger.Info("source toggled", "source", name, "enabled", on)
	return c.JSON(http.StatusOK, map[string]any{
		"name":    name,
		"enabled": on,
	})
}

func (s *Server) handleHealthCheck(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{"status": "ok"})
}
