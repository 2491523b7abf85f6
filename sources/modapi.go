package sources

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"time"

	"github.com/carlmjohnson/versioninfo"

	"github.com/ElDoritoMasPutas/legendsbot-sub000/classify"
)

// ModerationAPISource scores text via an OpenAI-style /v1/moderations
// endpoint. It honors the classifier's protected-content hint by skipping
// the remote call entirely, since game-term text trips these models' false
// positives and the call costs money.
type ModerationAPISource struct {
	Client *http.Client
	Host   string
	Token  string

	desc *Descriptor
}

type modAPIReq struct {
	Input string `json:"input"`
}

type modAPIResp struct {
	Results []modAPIResult `json:"results"`
}

type modAPIResult struct {
	Flagged        bool               `json:"flagged"`
	CategoryScores map[string]float64 `json:"category_scores"`
}

func NewModerationAPISource(host, token string) *ModerationAPISource {
	desc := &Descriptor{
		Name:           "moderation-api",
		CapabilityTags: []string{"toxicity", "threat", "harassment"},
		BaseWeight:     0.9,
		Timeout:        8 * time.Second,
		RateLimit:      5,
		CostPerCall:    0.0002,
	}
	desc.SetEnabled(true)
	return &ModerationAPISource{
		Client: RobustHTTPClient(),
		Host:   host,
		Token:  token,
		desc:   desc,
	}
}

func (s *ModerationAPISource) Descriptor() *Descriptor {
	return s.desc
}

func (s *ModerationAPISource) Evaluate(ctx context.Context, text string, rc RequestContext) (*Result, error) {
	start := time.Now()

	if rc.ContentTypeHint == classify.ContentProtected {
		return &Result{
			Score:          0,
			Confidence:     60,
			Reasoning:      []string{"protected content hint, remote call skipped"},
			ResponseTimeMs: time.Since(start).Milliseconds(),
		}, nil
	}

	defer func() {
		moderationAPIDuration.Observe(time.Since(start).Seconds())
	}()

	reqBytes, err := json.Marshal(&modAPIReq{Input: text})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, "POST", s.Host+"/v1/moderations", bytes.NewReader(reqBytes))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.Token)
	req.Header.Set("User-Agent", "legendsbot-moderation/"+versioninfo.Short())

	res, err := s.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("moderation API request failed: %w", err)
	}
	defer res.Body.Close()

	moderationAPICount.WithLabelValues(fmt.Sprint(res.StatusCode)).Inc()
	if res.StatusCode != 200 {
		return nil, fmt.Errorf("moderation API request failed statusCode=%d", res.StatusCode)
	}

	respBytes, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read moderation API resp body: %w", err)
	}

	var respObj modAPIResp
	if err := json.Unmarshal(respBytes, &respObj); err != nil {
		return nil, fmt.Errorf("failed to parse moderation API resp JSON: %w", err)
	}
	if len(respObj.Results) == 0 {
		return nil, fmt.Errorf("moderation API returned no results")
	}

	result := respObj.Results[0]
	var worst float64
	var worstCategory string
	for category, v := range result.CategoryScores {
		if v > worst {
			worst = v
			worstCategory = category
		}
	}

	var reasoning []string
	if result.Flagged {
		reasoning = append(reasoning, fmt.Sprintf("moderation API flagged: %s=%.2f", worstCategory, worst))
	}

	return &Result{
		Score:          int(math.Round(worst * 10)),
		Confidence:     int(50 + math.Abs(worst-0.5)*100),
		Reasoning:      reasoning,
		ResponseTimeMs: time.Since(start).Milliseconds(),
	}, nil
}
