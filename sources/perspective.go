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
)

// PerspectiveSource scores text via a Perspective-style comment analysis API.
//
// schema: https://developers.perspectiveapi.com/s/about-the-api-methods
type PerspectiveSource struct {
	Client *http.Client
	Host   string
	APIKey string

	desc *Descriptor
}

type perspectiveReq struct {
	Comment             perspectiveComment                `json:"comment"`
	RequestedAttributes map[string]map[string]interface{} `json:"requestedAttributes"`
	DoNotStore          bool                              `json:"doNotStore"`
}

type perspectiveComment struct {
	Text string `json:"text"`
}

type perspectiveResp struct {
	AttributeScores map[string]perspectiveAttr `json:"attributeScores"`
}

type perspectiveAttr struct {
	SummaryScore perspectiveScore `json:"summaryScore"`
}

type perspectiveScore struct {
	Value float64 `json:"value"`
}

func NewPerspectiveSource(host, apiKey string) *PerspectiveSource {
	desc := &Descriptor{
		Name:           "perspective",
		CapabilityTags: []string{"toxicity", "threat"},
		BaseWeight:     0.85,
		Timeout:        5 * time.Second,
		RateLimit:      10,
		CostPerCall:    0.0001,
	}
	desc.SetEnabled(true)
	return &PerspectiveSource{
		Client: RobustHTTPClient(),
		Host:   host,
		APIKey: apiKey,
		desc:   desc,
	}
}

func (s *PerspectiveSource) Descriptor() *Descriptor {
	return s.desc
}

func (s *PerspectiveSource) Evaluate(ctx context.Context, text string, rc RequestContext) (*Result, error) {
	start := time.Now()
	defer func() {
		perspectiveAPIDuration.Observe(time.Since(start).Seconds())
	}()

	reqObj := perspectiveReq{
		Comment: perspectiveComment{Text: text},
		RequestedAttributes: map[string]map[string]interface{}{
			"TOXICITY": {},
			"THREAT":   {},
			"INSULT":   {},
		},
		DoNotStore: true,
	}
	reqBytes, err := json.Marshal(&reqObj)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, "POST", s.Host+"/v1alpha1/comments:analyze?key="+s.APIKey, bytes.NewReader(reqBytes))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "legendsbot-moderation/"+versioninfo.Short())

	res, err := s.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("perspective request failed: %w", err)
	}
	defer res.Body.Close()

	perspectiveAPICount.WithLabelValues(fmt.Sprint(res.StatusCode)).Inc()
	if res.StatusCode != 200 {
		return nil, fmt.Errorf("perspective request failed statusCode=%d", res.StatusCode)
	}

	respBytes, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read perspective resp body: %w", err)
	}

	var respObj perspectiveResp
	if err := json.Unmarshal(respBytes, &respObj); err != nil {
		return nil, fmt.Errorf("failed to parse perspective resp JSON: %w", err)
	}

	var worst float64
	var reasoning []string
	for attr, v := range respObj.AttributeScores {
		if v.SummaryScore.Value > worst {
			worst = v.SummaryScore.Value
		}
		if v.SummaryScore.Value >= 0.5 {
			reasoning = append(reasoning, fmt.Sprintf("perspective %s=%.2f", attr, v.SummaryScore.Value))
		}
	}

	return &Result{
		Score: int(math.Round(worst * 10)),
		// distance from the 0.5 coin-flip is how sure the model is, in
		// either direction
		Confidence:     int(50 + math.Abs(worst-0.5)*100),
		Reasoning:      reasoning,
		ResponseTimeMs: time.Since(start).Milliseconds(),
	}, nil
}
