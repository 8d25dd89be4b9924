package chatcmder

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/botstream/botsim"
	"github.com/papercomputeco/botstream/pkg/llm"
	"github.com/papercomputeco/botstream/pkg/logger"
)

const simKey = "sim-key"

var fixedNow = time.Date(2026, 3, 14, 15, 9, 26, 0, time.UTC)

func newSim(scripts botsim.Scripts) *botsim.Server {
	s, err := botsim.New(botsim.Config{Bot: "sim-bot", AccessKey: simKey, Scripts: scripts}, nil)
	Expect(err).NotTo(HaveOccurred())
	return s
}

func newCommander(sim *botsim.Server, input string) (*chatCommander, *bytes.Buffer, *bytes.Buffer) {
	out, errOut := &bytes.Buffer{}, &bytes.Buffer{}
	return &chatCommander{
		baseURL:   "http://sim.local",
		bot:       "sim-bot",
		accessKey: simKey,
		maxRounds: 2,
		workers:   2,
		in:        strings.NewReader(input),
		out:       out,
		errOut:    errOut,
		doer:      sim,
		now:       func() time.Time { return fixedNow },
	}, out, errOut
}

// prepare wires a commander without going through run.
func prepare(c *chatCommander) {
	c.logger = logger.Nop()
	Expect(c.setup()).To(Succeed())
	DeferCleanup(c.pool.Close)
	Expect(c.connect(nil)).To(Succeed())
}

var _ = Describe("NewChatCmd", func() {
	It("creates a command with the correct use string", func() {
		cmd := NewChatCmd()
		Expect(cmd.Use).To(Equal("chat"))
	})

	It("registers flags from the registry with config defaults", func() {
		cmd := NewChatCmd()

		bot := cmd.Flags().Lookup("bot")
		Expect(bot).NotTo(BeNil())
		Expect(bot.Shorthand).To(Equal("b"))

		Expect(cmd.Flags().Lookup("base-url").DefValue).To(Equal("https://api.poe.com"))
		Expect(cmd.Flags().Lookup("timeout").DefValue).To(Equal("5m"))
		Expect(cmd.Flags().Lookup("xml-tools").DefValue).To(Equal("false"))
		Expect(cmd.Flags().Lookup("record")).NotTo(BeNil())
		Expect(cmd.Flags().Lookup("log-file")).NotTo(BeNil())
		Expect(cmd.Flags().Lookup("access-key").DefValue).To(BeEmpty())
	})
})

var _ = Describe("chat session", func() {
	It("echoes a prompt when tools are disabled", func() {
		sim := newSim(botsim.Scripts{})
		c, out, _ := newCommander(sim, "hello there\n/exit\n")
		c.maxRounds = 0

		Expect(c.run(context.Background())).To(Succeed())
		Expect(out.String()).To(ContainSubstring("You said: hello there"))

		Expect(c.history).To(HaveLen(2))
		Expect(c.history[1].Role).To(Equal(llm.RoleAssistant))
		Expect(c.history[1].Content).To(Equal("You said: hello there"))
		Expect(sim.Requests()[0].Tools).To(BeEmpty())
	})

	It("renders the finished reply as markdown", func() {
		sim := newSim(botsim.Scripts{})
		c, out, _ := newCommander(sim, "hello there\n")
		c.maxRounds = 0
		c.markdown = true

		Expect(c.run(context.Background())).To(Succeed())
		Expect(out.String()).To(ContainSubstring("You said: hello there"))
		Expect(c.history).To(HaveLen(2))
	})

	It("keeps conversation ids and history across prompts", func() {
		sim := newSim(botsim.Scripts{})
		c, _, _ := newCommander(sim, "one\ntwo\n")
		c.maxRounds = 0

		Expect(c.run(context.Background())).To(Succeed())

		reqs := sim.Requests()
		Expect(reqs).To(HaveLen(2))
		Expect(reqs[1].ConversationID).To(Equal(reqs[0].ConversationID))
		Expect(reqs[1].UserID).To(Equal(reqs[0].UserID))
		Expect(reqs[1].Query).To(HaveLen(3))
		Expect(reqs[1].Query[1].Content).To(Equal("You said: one"))
	})

	It("runs native tool calls and resumes the turn", func() {
		sim := newSim(botsim.Scripts{})
		c, out, _ := newCommander(sim, "what time is it?\n")

		Expect(c.run(context.Background())).To(Succeed())
		Expect(out.String()).To(ContainSubstring("get_time"))
		Expect(c.history[1].Content).To(Equal("Here is what the tools said:\n- 2026-03-14T15:09:26Z"))

		reqs := sim.Requests()
		Expect(reqs).To(HaveLen(2))
		Expect(reqs[1].ToolResults).To(HaveLen(1))
		Expect(reqs[1].ToolResults[0].ToolCallID).To(Equal("call_sim_1"))
		Expect(reqs[1].ConversationID).To(Equal(reqs[0].ConversationID))
	})

	It("runs tools through XML markup", func() {
		sim := newSim(botsim.Scripts{})
		c, _, _ := newCommander(sim, "what time is it?\n")
		c.xmlTools = true

		Expect(c.run(context.Background())).To(Succeed())
		Expect(c.history[1].Content).To(Equal("Here is what the tools said:\n- 2026-03-14T15:09:26Z"))
		Expect(sim.Requests()[0].Tools).To(BeEmpty())
	})

	It("keeps XML tool call ids distinct across resumed rounds", func() {
		askTime := botsim.Static(
			llm.TextEvent{Text: `<tool_call><invoke name="get_time"></invoke></tool_call>`},
			llm.DoneEvent{},
		)
		sim := newSim(botsim.Scripts{
			Initial: askTime,
			Resume: func(req *llm.ChatRequest) []llm.Event {
				if strings.Count(req.LastUserMessage().Content, `tool_call_id="`) < 2 {
					return askTime(req)
				}
				return []llm.Event{llm.TextEvent{Text: "two answers"}, llm.DoneEvent{}}
			},
		})
		c, _, _ := newCommander(sim, "what time is it twice?\n")
		c.xmlTools = true

		Expect(c.run(context.Background())).To(Succeed())
		Expect(c.history[1].Content).To(Equal("two answers"))

		reqs := sim.Requests()
		Expect(reqs).To(HaveLen(3))
		prompt := reqs[2].LastUserMessage().Content
		Expect(strings.Count(prompt, `tool_call_id="call_1"`)).To(Equal(1))
		Expect(strings.Count(prompt, `tool_call_id="call_2"`)).To(Equal(1))
	})

	It("stops without resuming when the context ends during tool calls", func() {
		sim := newSim(botsim.Scripts{Initial: botsim.Static(
			llm.JSONEvent{ToolCalls: []llm.ToolCall{{
				ID:       "call_stop",
				Type:     llm.ToolTypeFunction,
				Function: llm.FunctionCall{Name: "stop", Arguments: `{}`},
			}}},
			llm.DoneEvent{},
		)})
		c, _, errOut := newCommander(sim, "")
		prepare(c)

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		Expect(c.registry.Register(llm.NewFunctionTool("stop", "Ends the session", nil), func(context.Context, json.RawMessage) (string, error) {
			cancel()
			return "stopped", nil
		})).To(Succeed())

		_, err := c.converse(ctx, "stop please")
		Expect(err).To(MatchError(context.Canceled))
		Expect(errOut.String()).To(ContainSubstring("Running 1 tool call(s)"))
		Expect(sim.Requests()).To(HaveLen(1))
	})

	It("reprints a replaced response", func() {
		sim := newSim(botsim.Scripts{Initial: botsim.Static(
			llm.TextEvent{Text: "draft"},
			llm.ReplaceResponseEvent{Text: "final"},
			llm.DoneEvent{},
		)})
		c, out, _ := newCommander(sim, "hi\n")

		Expect(c.run(context.Background())).To(Succeed())
		Expect(out.String()).To(ContainSubstring("(response replaced)"))
		Expect(c.history[1].Content).To(Equal("final"))
	})

	It("reports server errors with a retry hint and keeps streaming", func() {
		sim := newSim(botsim.Scripts{Initial: botsim.Static(
			llm.ErrorEvent{Text: "overloaded", AllowRetry: true},
			llm.TextEvent{Text: "still here"},
			llm.DoneEvent{},
		)})
		c, out, errOut := newCommander(sim, "hi\n")

		Expect(c.run(context.Background())).To(Succeed())
		Expect(errOut.String()).To(ContainSubstring("overloaded"))
		Expect(errOut.String()).To(ContainSubstring("retry by sending the prompt again"))
		Expect(out.String()).To(ContainSubstring("still here"))
	})

	It("prints file references", func() {
		sim := newSim(botsim.Scripts{Initial: botsim.Static(
			llm.FileEvent{Name: "chart.png", URL: "https://files.example/chart.png", ContentType: "image/png"},
			llm.DoneEvent{},
		)})
		c, out, _ := newCommander(sim, "draw\n")

		Expect(c.run(context.Background())).To(Succeed())
		Expect(out.String()).To(ContainSubstring("chart.png"))
		Expect(out.String()).To(ContainSubstring("https://files.example/chart.png"))
	})

	It("does not add a failed prompt to history", func() {
		sim := newSim(botsim.Scripts{})
		c, _, errOut := newCommander(sim, "hi\n")
		c.accessKey = "wrong"

		Expect(c.run(context.Background())).To(Succeed())
		Expect(errOut.String()).To(ContainSubstring("401"))
		Expect(c.history).To(BeEmpty())
	})

	It("appends raw streams to the record file", func() {
		sim := newSim(botsim.Scripts{})
		c, _, _ := newCommander(sim, "hi\n")
		c.maxRounds = 0
		c.record = filepath.Join(GinkgoT().TempDir(), "turns.sse")

		Expect(c.run(context.Background())).To(Succeed())

		data, err := os.ReadFile(c.record)
		Expect(err).NotTo(HaveOccurred())
		Expect(string(data)).To(ContainSubstring("event: text"))
		Expect(string(data)).To(ContainSubstring("event: done"))
	})

	It("writes JSON debug logs to the log file", func() {
		sim := newSim(botsim.Scripts{})
		c, _, errOut := newCommander(sim, "hi\n")
		c.maxRounds = 0
		c.logFile = filepath.Join(GinkgoT().TempDir(), "chat.log")

		Expect(c.run(context.Background())).To(Succeed())

		data, err := os.ReadFile(c.logFile)
		Expect(err).NotTo(HaveOccurred())
		Expect(string(data)).To(ContainSubstring(`"msg":"turn opened"`))
		Expect(errOut.String()).NotTo(ContainSubstring("turn opened"))
	})
})

var _ = Describe("converse", func() {
	It("stops at the round limit", func() {
		call := llm.JSONEvent{ToolCalls: []llm.ToolCall{{
			ID:       "loop",
			Type:     llm.ToolTypeFunction,
			Function: llm.FunctionCall{Name: "echo", Arguments: `{"text":"again"}`},
		}}}
		sim := newSim(botsim.Scripts{
			Initial: botsim.Static(call, llm.DoneEvent{}),
			Resume:  botsim.Static(call, llm.DoneEvent{}),
		})
		c, _, _ := newCommander(sim, "")
		c.maxRounds = 1
		prepare(c)

		_, err := c.converse(context.Background(), "loop forever")
		Expect(err).To(MatchError(errRoundLimit))
		Expect(sim.Requests()).To(HaveLen(2))
	})

	It("does not offer tools when rounds are disabled", func() {
		sim := newSim(botsim.Scripts{})
		c, _, _ := newCommander(sim, "")
		c.maxRounds = 0
		prepare(c)

		req := c.newRequest([]llm.Message{llm.NewTextMessage(llm.RoleUser, "hi")})
		Expect(req.Tools).To(BeEmpty())
	})
})
