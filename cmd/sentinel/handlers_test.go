package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testServer(t *testing.T) *Server {
	t.Helper()
	srv, err := NewServer(Config{CacheTTL: time.Minute})
	require.NoError(t, err)
	// keep only the deterministic source
	require.NoError(t, srv.engine.Registry.SetEnabled("sentiment", false))
	return srv
}

func doJSON(srv *Server, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	srv.echo.ServeHTTP(rec, req)
	return rec
}

func TestHandleAssess(t *testing.T) {
	assert := assert.New(t)
	srv := testServer(t)

	rec := doJSON(srv, http.MethodPost, "/assess", `{"text":"fuuuuck you","authorId":"author-1","channelId":"general"}`)
	assert.Equal(http.StatusOK, rec.Code)

	var out struct {
		Decision struct {
			FinalScore     float64 `json:"finalScore"`
			ActionCategory string  `json:"actionCategory"`
			ViolationType  string  `json:"violationType"`
		} `json:"decision"`
		Action *struct {
			Action string `json:"action"`
		} `json:"action"`
	}
	assert.NoError(json.Unmarshal(rec.Body.Bytes(), &out))
	assert.Equal(7.0, out.Decision.FinalScore)
	assert.Equal("ban", out.Decision.ActionCategory)
	assert.Equal("SEVERE_TOXICITY", out.Decision.ViolationType)
	if assert.NotNil(out.Action) {
		assert.Equal("mute", out.Action.Action)
	}
}

func TestHandleAssessDryRun(t *testing.T) {
	assert := assert.New(t)
	srv := testServer(t)

	rec := doJSON(srv, http.MethodPost, "/assess", `{"text":"fuuuuck you","authorId":"author-1","dryRun":true}`)
	assert.Equal(http.StatusOK, rec.Code)

	var out map[string]json.RawMessage
	assert.NoError(json.Unmarshal(rec.Body.Bytes(), &out))
	assert.NotContains(out, "action")

	// dry runs must not touch violation history
	rec = doJSON(srv, http.MethodPost, "/escalate", `{"authorId":"author-1","violationType":"SEVERE_TOXICITY"}`)
	assert.Equal(http.StatusOK, rec.Code)
	var esc escalateResponse
	assert.NoError(json.Unmarshal(rec.Body.Bytes(), &esc))
	assert.Equal(0, esc.PriorViolations)
}

func TestHandleAssessValidation(t *testing.T) {
	assert := assert.New(t)
	srv := testServer(t)

	rec := doJSON(srv, http.MethodPost, "/assess", `{"text":"hello"}`)
	assert.Equal(http.StatusBadRequest, rec.Code)
}

func TestHandleEscalatePreview(t *testing.T) {
	assert := assert.New(t)
	srv := testServer(t)

	rec := doJSON(srv, http.MethodPost, "/escalate", `{"authorId":"author-2","violationType":"TOXICITY"}`)
	assert.Equal(http.StatusOK, rec.Code)

	var esc escalateResponse
	assert.NoError(json.Unmarshal(rec.Body.Bytes(), &esc))
	assert.Equal(0, esc.PriorViolations)
	assert.Equal("delete", string(esc.Action.Action))

	// preview is read-only
	rec = doJSON(srv, http.MethodPost, "/escalate", `{"authorId":"author-2","violationType":"TOXICITY"}`)
	assert.NoError(json.Unmarshal(rec.Body.Bytes(), &esc))
	assert.Equal(0, esc.PriorViolations)
}

func TestHandleSourceToggle(t *testing.T) {
	assert := assert.New(t)
	srv := testServer(t)

	rec := doJSON(srv, http.MethodGet, "/sources", "")
	assert.Equal(http.StatusOK, rec.Code)
	var infos []sourceInfo
	assert.NoError(json.Unmarshal(rec.Body.Bytes(), &infos))
	assert.Len(infos, 2)

	rec = doJSON(srv, http.MethodPost, "/sources/rule-based/disable", "")
	assert.Equal(http.StatusOK, rec.Code)

	rec = doJSON(srv, http.MethodGet, "/sources", "")
	assert.NoError(json.Unmarshal(rec.Body.Bytes(), &infos))
	for _, info := range infos {
		if info.Name == "rule-based" {
			assert.False(info.Enabled)
		}
	}

	rec = doJSON(srv, http.MethodPost, "/sources/rule-based/enable", "")
	assert.Equal(http.StatusOK, rec.Code)

	rec = doJSON(srv, http.MethodPost, "/sources/no-such-source/enable", "")
	assert.Equal(http.StatusNotFound, rec.Code)
}

func TestShutdownBeforeStart(t *testing.T) {
	assert := assert.New(t)

	srv, err := NewServer(Config{CacheTTL: time.Minute, MetricsListen: ":0"})
	require.NoError(t, err)
	// the metrics server exists before any listener goroutine runs
	assert.NotNil(srv.metricsSrv)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	assert.NoError(srv.Shutdown(ctx))
}

func TestHandleHealthCheck(t *testing.T) {
	assert := assert.New(t)
	srv := testServer(t)

	rec := doJSON(srv, http.MethodGet, "/healthz", "")
	assert.Equal(http.StatusOK, rec.Code)
	assert.Contains(rec.Body.String(), "ok")
}
