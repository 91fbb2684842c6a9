// Package runner fronts the external code-execution collaborator. The
// collaborator owns retries and circuit breaking; this client does one
// request and maps its failures onto the API surface.
package runner

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
)

var (
	ErrNotConfigured = errors.New("runner: missing execution credentials")
	ErrRateLimited   = errors.New("runner: daily compilation limit exceeded")
	ErrUnavailable   = errors.New("runner: execution service unavailable")
)

// languageAliases maps editor language tags onto the execution engine's
// names.
var languageAliases = map[string]string{
	"javascript": "nodejs",
	"python":     "python3",
	"c++":        "cpp",
}

type Client struct {
	url          string
	clientID     string
	clientSecret string
	http         *http.Client
}

func New(url, clientID, clientSecret string) *Client {
	return &Client{
		url:          url,
		clientID:     clientID,
		clientSecret: clientSecret,
		http:         &http.Client{Timeout: 15 * time.Second},
	}
}

type Request struct {
	Code     string `json:"code"`
	Language string `json:"language"`
	Input    string `json:"input"`
}

// Result is the engine's response, passed through opaquely.
type Result = json.RawMessage

func (c *Client) Run(ctx context.Context, req Request) (Result, error) {
	if c.clientID == "" || c.clientSecret == "" {
		return nil, ErrNotConfigured
	}

	language := req.Language
	if alias, ok := languageAliases[language]; ok {
		language = alias
	}

	body, err := json.Marshal(map[string]any{
		"script":       req.Code,
		"language":     language,
		"versionIndex": "0",
		"stdin":        req.Input,
		"clientId":     c.clientID,
		"clientSecret": c.clientSecret,
	})
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		log.Error().Err(err).Str("module", "runner").Msg("execution request failed")
		return nil, ErrUnavailable
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, ErrUnavailable
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, ErrRateLimited
	case resp.StatusCode >= 500:
		return nil, ErrUnavailable
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("runner: unexpected status %d", resp.StatusCode)
	}
	return Result(payload), nil
}
