// Package session drives conversation turns against a bot: it sends one
// request per turn and exposes the reply as a lazily decoded event stream.
// A turn that ends in tool calls is continued with ResumeTurn, which carries
// the tool results in a follow-up request under the same identifiers.
package session

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/papercomputeco/botstream/pkg/llm"
	"github.com/papercomputeco/botstream/pkg/logger"
	"github.com/papercomputeco/botstream/pkg/toolcall"
	"github.com/papercomputeco/botstream/pkg/utils"
	"github.com/papercomputeco/botstream/pkg/xmltool"
)

const (
	// DefaultBaseURL is the bot service endpoint used when none is configured.
	DefaultBaseURL = "https://api.poe.com"

	// maxErrorBody bounds how much of a failed response is kept.
	maxErrorBody = 4 * 1024
)

// Doer sends HTTP requests. *http.Client satisfies it; timeouts and proxies
// are configured there.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Config holds everything a Client needs. There is no package-level state:
// two Clients never share anything mutable.
type Config struct {
	// BaseURL is the service root, for example https://api.poe.com.
	// Trailing slashes are ignored. Defaults to DefaultBaseURL.
	BaseURL string

	// Bot is the name of the bot every turn is addressed to.
	Bot string

	// AccessKey is sent as a bearer token.
	AccessKey string

	// XMLTools renders tools and tool results into the prompt and detects
	// tool-call markup in the reply, for bots without native tool calling.
	XMLTools bool

	// Doer performs requests. Defaults to an *http.Client without a
	// timeout, since a turn can stream for minutes.
	Doer Doer

	// Logger receives debug logs of requests and skipped frames.
	Logger *slog.Logger
}

// Option customizes a Client.
type Option func(*Client)

// WithRecorder copies the raw bytes of every turn's event stream to w.
func WithRecorder(w io.Writer) Option {
	return func(c *Client) {
		c.recorder = w
	}
}

// Client opens turns against one bot.
type Client struct {
	baseURL   string
	bot       string
	accessKey string
	xmlTools  bool
	doer      Doer
	logger    *slog.Logger
	recorder  io.Writer
}

// New validates cfg and returns a Client.
func New(cfg Config, opts ...Option) (*Client, error) {
	if cfg.Bot == "" {
		return nil, ErrMissingBot
	}
	if cfg.AccessKey == "" {
		return nil, ErrMissingAccessKey
	}

	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	doer := cfg.Doer
	if doer == nil {
		doer = &http.Client{}
	}

	log := cfg.Logger
	if log == nil {
		log = logger.Nop()
	}

	c := &Client{
		baseURL:   baseURL,
		bot:       cfg.Bot,
		accessKey: cfg.AccessKey,
		xmlTools:  cfg.XMLTools,
		doer:      doer,
		logger:    log.With("bot", cfg.Bot),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Bot returns the bot name turns are addressed to.
func (c *Client) Bot() string {
	return c.bot
}

// URL returns the endpoint turns are posted to.
func (c *Client) URL() string {
	return c.baseURL + "/bot/" + c.bot
}

// OpenTurn sends req and returns the reply stream. Exactly one request is
// made. The caller's request is not modified. The stream must be drained to
// done or closed.
func (c *Client) OpenTurn(ctx context.Context, req *llm.ChatRequest) (*Stream, error) {
	out := req.Clone()
	if err := out.Validate(); err != nil {
		return nil, err
	}

	var adapter *xmltool.Adapter
	if c.xmlTools {
		prior := make([]string, 0, len(out.ToolCalls))
		for _, call := range out.ToolCalls {
			prior = append(prior, call.ID)
		}
		adapter = xmltool.NewAdapter(
			xmltool.WithTools(out.Tools...),
			xmltool.WithReservedIDs(prior...),
			xmltool.WithLogger(c.logger),
		)
		out = xmltool.PrepareRequest(out)
	}

	body, err := json.Marshal(out)
	if err != nil {
		return nil, fmt.Errorf("encoding chat request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.URL(), bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "text/event-stream")
	httpReq.Header.Set("Authorization", "Bearer "+c.accessKey)
	httpReq.Header.Set("User-Agent", utils.UserAgent())

	c.logRequest(ctx, httpReq, out, body)

	resp, err := c.doer.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("sending request to bot %s: %w", c.bot, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		excerpt, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		_ = resp.Body.Close()
		return nil, &StatusError{
			Bot:        c.bot,
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
			Body:       strings.TrimSpace(string(excerpt)),
		}
	}

	c.logger.Debug("turn opened",
		"conversation_id", out.ConversationID,
		"message_id", out.MessageID,
		"status", resp.StatusCode,
	)

	return newStream(ctx, resp.Body, streamConfig{
		adapter:  adapter,
		logger:   c.logger.With("conversation_id", out.ConversationID),
		recorder: c.recorder,
	}), nil
}

// ResumeTurn continues original after its tool calls ran. Every call must
// have a result; otherwise a *toolcall.IncompleteToolResultsError naming the
// missing ids is returned and no request is made. The follow-up request keeps
// the original user, conversation and message ids.
func (c *Client) ResumeTurn(ctx context.Context, original *llm.ChatRequest, calls []llm.ToolCall, results []llm.ToolResult) (*Stream, error) {
	resumed, err := toolcall.BuildResume(original, calls, results)
	if err != nil {
		return nil, err
	}
	return c.OpenTurn(ctx, resumed)
}

func (c *Client) logRequest(ctx context.Context, httpReq *http.Request, req *llm.ChatRequest, body []byte) {
	if !c.logger.Enabled(ctx, slog.LevelDebug) {
		return
	}

	payload, truncated := logger.TruncateBytes(string(body), logger.MaxLoggedBytes)
	c.logger.Debug("sending turn request",
		"url", httpReq.URL.String(),
		"authorization", logger.RedactHeader("Authorization", httpReq.Header.Get("Authorization")),
		"conversation_id", req.ConversationID,
		"message_id", req.MessageID,
		"messages", len(req.Query),
		"tool_results", len(req.ToolResults),
		"body", payload,
		"body_truncated", truncated,
	)
}
