// Package probe is a small client for sanity checks against a running server.
package probe

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

const panelSelector = "#sources-panel"

type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

func New(baseURL, token string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		http:    &http.Client{Timeout: timeout},
	}
}

type ChatContext struct {
	Stage     string `json:"stage"`
	FileCount int    `json:"file_count"`
	Chars     int    `json:"chars"`
	Placement string `json:"placement"`
}

type ChatResponse struct {
	Dashboard      json.RawMessage `json:"dashboard"`
	Reply          string          `json:"reply"`
	ConversationID string          `json:"conversation_id"`
	Context        ChatContext     `json:"context"`
}

// HasDashboard reports whether the reply carried a dashboard payload.
func (r *ChatResponse) HasDashboard() bool {
	trimmed := bytes.TrimSpace(r.Dashboard)
	return len(trimmed) > 0 && !bytes.Equal(trimmed, []byte("null"))
}

func (c *Client) Chat(ctx context.Context, prompt, conversationID string) (*ChatResponse, error) {
	body, err := json.Marshal(map[string]string{"prompt": prompt, "conversation_id": conversationID})
	if err != nil {
		return nil, err
	}
	resp, err := c.do(ctx, http.MethodPost, "/chat", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read chat response failed: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("chat returned %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}
	var out ChatResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("decode chat response failed: %w", err)
	}
	return &out, nil
}

type HealthReport struct {
	StatusCode   int                        `json:"-"`
	OK           bool                       `json:"ok"`
	Dependencies map[string]json.RawMessage `json:"dependencies"`
}

func (c *Client) Health(ctx context.Context) (*HealthReport, error) {
	resp, err := c.do(ctx, http.MethodGet, "/healthz", nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var out HealthReport
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode health response failed: %w", err)
	}
	out.StatusCode = resp.StatusCode
	return &out, nil
}

// PanelReport is what the rendered dashboard says about the sources panel.
type PanelReport struct {
	Found     bool
	Collapsed bool
	State     string
	// ConditionalHide is true when a rule hides the panel only under the collapsed class.
	ConditionalHide bool
	// ForcedHide is true when some rule hides the panel with !important, which the toggle
	// could never undo.
	ForcedHide bool
}

// Toggleable reports whether the panel can be shown and hidden by flipping its class.
func (r *PanelReport) Toggleable() bool {
	return r.Found && r.ConditionalHide && !r.ForcedHide
}

func (c *Client) Panel(ctx context.Context, conversationID, sources string) (*PanelReport, error) {
	path := "/dashboard/" + url.PathEscape(conversationID)
	if sources != "" {
		path += "?sources=" + url.QueryEscape(sources)
	}
	resp, err := c.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("dashboard returned %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}
	return CheckPanel(resp.Body)
}

var (
	conditionalHideRule = regexp.MustCompile(`#sources-panel\.collapsed\s*\{[^}]*display\s*:\s*none`)
	forcedHideRule      = regexp.MustCompile(`display\s*:\s*none\s*!important`)
)

// CheckPanel inspects a dashboard page.
func CheckPanel(r io.Reader) (*PanelReport, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("parse dashboard html failed: %w", err)
	}

	report := &PanelReport{}
	panel := doc.Find(panelSelector)
	if panel.Length() > 0 {
		report.Found = true
		report.Collapsed = panel.HasClass("collapsed")
		report.State = panel.AttrOr("data-state", "")
	}
	doc.Find("style").Each(func(_ int, s *goquery.Selection) {
		css := s.Text()
		if conditionalHideRule.MatchString(css) {
			report.ConditionalHide = true
		}
		if forcedHideRule.MatchString(css) {
			report.ForcedHide = true
		}
	})
	if style, ok := panel.Attr("style"); ok && strings.Contains(strings.ReplaceAll(style, " ", ""), "display:none") {
		report.ForcedHide = true
	}
	return report, nil
}

func (c *Client) do(ctx context.Context, method, path string, body io.Reader) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("build request failed: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s failed: %w", method, path, err)
	}
	return resp, nil
}
