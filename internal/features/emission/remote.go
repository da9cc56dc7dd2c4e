package emission

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// ErrMalformedResponse — справочник ответил, но без пригодного коэффициента.
var ErrMalformedResponse = errors.New("emission api: malformed response")

// HTTPSource — клиент внешнего справочника коэффициентов.
//
//	GET {baseURL}/v1/factors?activity=energy&region=MH
//	Authorization: Bearer {apiKey}
//	→ {"factor": 0.79}
type HTTPSource struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// NewHTTPSource создаёт клиент с ограниченным таймаутом.
func NewHTTPSource(baseURL, apiKey string, timeout time.Duration) *HTTPSource {
	return &HTTPSource{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		client:  &http.Client{Timeout: timeout},
	}
}

func (s *HTTPSource) Lookup(ctx context.Context, actionType, region string) (float64, error) {
	q := url.Values{}
	q.Set("activity", actionType)
	q.Set("region", region)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"/v1/factors?"+q.Encode(), nil)
	if err != nil {
		return 0, fmt.Errorf("emission api: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if s.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+s.apiKey)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("emission api: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("emission api: unexpected status %d", resp.StatusCode)
	}

	var body struct {
		Factor *float64 `json:"factor"`
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, 64<<10)).Decode(&body); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if body.Factor == nil {
		return 0, ErrMalformedResponse
	}
	v := *body.Factor
	if math.IsNaN(v) || math.IsInf(v, 0) || v <= 0 {
		return 0, ErrMalformedResponse
	}
	return v, nil
}
