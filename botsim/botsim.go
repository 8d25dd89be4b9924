// Package botsim provides a simulated bot that speaks the streaming bot
// protocol. It answers turns from scripts and records every request, which
// makes it a stand-in for the real service in tests and local development.
package botsim

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"sync"

	"github.com/gofiber/adaptor/v2"
	"github.com/gofiber/fiber/v2"

	"github.com/papercomputeco/botstream/botsim/header"
	"github.com/papercomputeco/botstream/pkg/llm"
	"github.com/papercomputeco/botstream/pkg/llm/codec"
	"github.com/papercomputeco/botstream/pkg/logger"
)

// errorResponse is the JSON body of a rejected request.
type errorResponse struct {
	Error string `json:"error"`
}

// Server is a simulated bot.
type Server struct {
	config        Config
	logger        *slog.Logger
	server        *fiber.App
	headerHandler *header.Handler

	mu       sync.Mutex
	requests []*llm.ChatRequest
}

// New creates a new Server.
func New(config Config, log *slog.Logger) (*Server, error) {
	if config.Bot == "" {
		return nil, errors.New("bot name is required")
	}
	if config.ChunkSize < 0 {
		return nil, errors.New("chunk size must not be negative")
	}
	if config.Scripts.Initial == nil || config.Scripts.Resume == nil {
		defaults := DefaultScripts()
		if config.Scripts.Initial == nil {
			config.Scripts.Initial = defaults.Initial
		}
		if config.Scripts.Resume == nil {
			config.Scripts.Resume = defaults.Resume
		}
	}
	if log == nil {
		log = logger.Nop()
	}

	app := fiber.New(fiber.Config{
		// Disable startup message for cleaner logs
		DisableStartupMessage: true,
	})

	s := &Server{
		config:        config,
		logger:        log,
		server:        app,
		headerHandler: header.NewHandler(config.AccessKey),
	}

	app.Post("/bot/:name", s.handleBot)

	return s, nil
}

// Run starts the server on the configured listening address
func (s *Server) Run() error {
	s.logger.Info("starting simulated bot",
		"listen", s.config.ListenAddr,
		"bot", s.config.Bot,
	)

	return s.server.Listen(s.config.ListenAddr)
}

// RunWithListener starts the server using the provided listener.
func (s *Server) RunWithListener(listener net.Listener) error {
	s.logger.Info("starting simulated bot",
		"listen", listener.Addr().String(),
		"bot", s.config.Bot,
	)

	return s.server.Listener(listener)
}

// Close shuts the server down.
func (s *Server) Close() error {
	return s.server.Shutdown()
}

// Do serves req in-process without a network listener, so a Server can be
// used directly as a session.Doer.
func (s *Server) Do(req *http.Request) (*http.Response, error) {
	return s.server.Test(req, -1)
}

// Handler exposes the server as an http.Handler for net/http muxes and
// httptest servers. The response body is buffered before it is written.
func (s *Server) Handler() http.Handler {
	return adaptor.FiberApp(s.server)
}

// Requests returns every turn request received so far, in arrival order.
func (s *Server) Requests() []*llm.ChatRequest {
	s.mu.Lock()
	defer s.mu.Unlock()

	return append([]*llm.ChatRequest(nil), s.requests...)
}

func (s *Server) record(req *llm.ChatRequest) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.requests = append(s.requests, req)
}

// handleBot answers one turn with the script's events as an SSE stream.
func (s *Server) handleBot(c *fiber.Ctx) error {
	name := c.Params("name")
	if name != s.config.Bot {
		return c.Status(fiber.StatusNotFound).JSON(errorResponse{Error: "unknown bot " + name})
	}

	if !s.headerHandler.Authorized(c) {
		s.logger.Warn("rejected request without valid access key", "bot", name)
		return c.Status(fiber.StatusUnauthorized).JSON(errorResponse{Error: "invalid access key"})
	}

	var req llm.ChatRequest
	if err := json.Unmarshal(c.Body(), &req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(errorResponse{Error: "invalid request body"})
	}
	if err := req.Validate(); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(errorResponse{Error: err.Error()})
	}
	s.record(&req)

	script := s.config.Scripts.Initial
	if IsResume(&req) {
		script = s.config.Scripts.Resume
	}
	events := script(&req)

	s.logger.Debug("answering turn",
		"bot", name,
		"conversation_id", req.ConversationID,
		"resume", IsResume(&req),
		"events", len(events),
	)

	s.headerHandler.SetStreamHeaders(c)

	// io.Pipe gives per-write backpressure; fasthttp flushes every chunk.
	pr, pw := io.Pipe()
	go s.writeEvents(pw, events)

	// Unknown size (-1) triggers chunked transfer encoding in fasthttp.
	c.Context().Response.SetBodyStream(pr, -1)

	return nil
}

// writeEvents encodes events into w, honoring the chunking and drop options.
func (s *Server) writeEvents(pw *io.PipeWriter, events []llm.Event) {
	var buf bytes.Buffer
	if s.config.KeepAlive {
		buf.WriteString(": ping\n\n")
	}

	for _, ev := range events {
		if _, done := ev.(llm.DoneEvent); done && s.config.DropBeforeDone {
			break
		}
		if err := codec.WriteEvent(&buf, ev); err != nil {
			s.logger.Error("encoding scripted event", "event", ev.Kind().String(), "error", err)
			_ = pw.CloseWithError(err)
			return
		}
		if s.config.ChunkSize == 0 {
			if _, err := pw.Write(buf.Bytes()); err != nil {
				return
			}
			buf.Reset()
		}
	}

	for data := buf.Bytes(); len(data) > 0; {
		n := len(data)
		if s.config.ChunkSize > 0 {
			n = min(s.config.ChunkSize, n)
		}
		if _, err := pw.Write(data[:n]); err != nil {
			return
		}
		data = data[n:]
	}

	_ = pw.Close()
}
