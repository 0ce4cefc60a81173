// Package llm talks to the Gemini text-generation API to write bulletins.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"news-digest/pkg/httpclient"
)

const (
	DefaultModel   = "gemini-1.5-flash"
	DefaultBaseURL = "https://generativelanguage.googleapis.com/v1beta"
)

// ErrEmptyResponse is returned when the model answers without any text.
var ErrEmptyResponse = errors.New("empty response from model")

// Config holds the Gemini client settings.
type Config struct {
	APIKey      string
	Model       string
	BaseURL     string
	Timeout     time.Duration
	MaxTokens   int
	Temperature float64
}

// Article is one input article for bulletin generation.
type Article struct {
	Title         string
	Content       string
	Source        string
	URL           string
	Author        string
	PublishedTime *time.Time
}

// Result is a generated bulletin.
type Result struct {
	Text              string    `json:"bulletin"`
	SourcesUsed       []string  `json:"sources_used"`
	ArticlesProcessed int       `json:"articles_processed"`
	GeneratedAt       time.Time `json:"generated_at"`
}

// Gemini generates bulletins through the generateContent endpoint.
type Gemini struct {
	cfg    Config
	client *httpclient.HTTPClient
	now    func() time.Time
}

// NewGemini creates a new Gemini client
func NewGemini(cfg Config) (*Gemini, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini API key is required")
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	return &Gemini{
		cfg:    cfg,
		client: httpclient.NewClient(httpclient.APIClient, cfg.Timeout),
		now:    time.Now,
	}, nil
}

type geminiRequest struct {
	Contents         []geminiContent  `json:"contents"`
	GenerationConfig *geminiGenConfig `json:"generationConfig,omitempty"`
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
	Role  string       `json:"role,omitempty"`
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiGenConfig struct {
	MaxOutputTokens int     `json:"maxOutputTokens,omitempty"`
	Temperature     float64 `json:"temperature,omitempty"`
}

type geminiResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
		FinishReason string `json:"finishReason"`
	} `json:"candidates"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error,omitempty"`
}

// Generate writes a bulletin covering articles. It makes exactly one call;
// retrying is left to the caller.
func (g *Gemini) Generate(ctx context.Context, articles []Article) (Result, error) {
	if len(articles) == 0 {
		return Result{}, fmt.Errorf("no articles to summarize")
	}

	gReq := geminiRequest{
		Contents: []geminiContent{{
			Role:  "user",
			Parts: []geminiPart{{Text: BuildPrompt(articles)}},
		}},
	}
	if g.cfg.MaxTokens > 0 || g.cfg.Temperature > 0 {
		gReq.GenerationConfig = &geminiGenConfig{
			MaxOutputTokens: g.cfg.MaxTokens,
			Temperature:     g.cfg.Temperature,
		}
	}

	body, err := json.Marshal(gReq)
	if err != nil {
		return Result{}, fmt.Errorf("marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/models/%s:generateContent?key=%s", g.cfg.BaseURL, g.cfg.Model, g.cfg.APIKey)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return Result{}, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	httpResp, err := g.client.Do(httpReq)
	if err != nil {
		return Result{}, fmt.Errorf("send request: %w", err)
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return Result{}, fmt.Errorf("read response: %w", err)
	}

	var gResp geminiResponse
	if err := json.Unmarshal(respBody, &gResp); err != nil {
		return Result{}, fmt.Errorf("parse response (status %d): %w", httpResp.StatusCode, err)
	}
	if gResp.Error != nil {
		return Result{}, fmt.Errorf("gemini error %d (%s): %s", gResp.Error.Code, gResp.Error.Status, gResp.Error.Message)
	}
	if httpResp.StatusCode != http.StatusOK {
		return Result{}, fmt.Errorf("gemini returned status %d", httpResp.StatusCode)
	}

	var text strings.Builder
	if len(gResp.Candidates) > 0 {
		for _, p := range gResp.Candidates[0].Content.Parts {
			text.WriteString(p.Text)
		}
	}
	out := strings.TrimSpace(text.String())
	if out == "" {
		return Result{}, ErrEmptyResponse
	}

	return Result{
		Text:              out,
		SourcesUsed:       uniqueSources(articles),
		ArticlesProcessed: len(articles),
		GeneratedAt:       g.now(),
	}, nil
}

func uniqueSources(articles []Article) []string {
	seen := make(map[string]bool)
	var out []string
	for _, a := range articles {
		if a.Source == "" || seen[a.Source] {
			continue
		}
		seen[a.Source] = true
		out = append(out, a.Source)
	}
	return out
}
