package chatcmder

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/papercomputeco/botstream/pkg/cliui"
	"github.com/papercomputeco/botstream/pkg/llm"
	"github.com/papercomputeco/botstream/pkg/session"
	"github.com/papercomputeco/botstream/pkg/utils"
)

// maxShownArguments caps how much of a tool call's arguments is printed.
const maxShownArguments = 120

var errRoundLimit = errors.New("tool round limit reached")

// converse sends prompt with the conversation so far and drives the turn
// until the bot answers without tool calls. Tool calls of every round are
// executed on the pool and the turn is resumed with all calls and results
// gathered so far.
func (c *chatCommander) converse(ctx context.Context, prompt string) (llm.Message, error) {
	messages := append(slices.Clone(c.history), llm.NewTextMessage(llm.RoleUser, prompt))
	req := c.newRequest(messages)

	var (
		calls   []llm.ToolCall
		results []llm.ToolResult
	)
	for round := uint(0); ; round++ {
		var (
			stream *session.Stream
			err    error
		)
		if round == 0 {
			stream, err = c.client.OpenTurn(ctx, req)
		} else {
			stream, err = c.client.ResumeTurn(ctx, req, calls, results)
		}
		if err != nil {
			return llm.Message{}, err
		}

		transcript, err := c.render(stream)
		if err != nil {
			return llm.Message{}, err
		}
		if len(transcript.ToolCalls) == 0 {
			return transcript.AssistantMessage(), nil
		}
		if round >= c.maxRounds {
			return llm.Message{}, fmt.Errorf("%w after %d round(s)", errRoundLimit, c.maxRounds)
		}

		var batch []llm.ToolResult
		err = cliui.Step(c.errOut, fmt.Sprintf("Running %d tool call(s)", len(transcript.ToolCalls)), func() error {
			batch = c.pool.Run(ctx, transcript.ToolCalls)
			return ctx.Err()
		})
		if err != nil {
			return llm.Message{}, err
		}

		calls = append(calls, transcript.ToolCalls...)
		results = append(results, batch...)

		c.logger.Debug("resuming turn",
			"round", round+1,
			"tool_calls", len(calls),
			"conversation_id", req.ConversationID,
		)
	}
}

// newRequest builds the turn request. The user and conversation ids of the
// first turn are reused for the rest of the session.
func (c *chatCommander) newRequest(messages []llm.Message) *llm.ChatRequest {
	req := llm.NewRequest(messages...)
	if c.conversationID == "" {
		c.userID = req.UserID
		c.conversationID = req.ConversationID
	} else {
		req.UserID = c.userID
		req.ConversationID = c.conversationID
	}

	if c.maxRounds > 0 {
		req.Tools = c.registry.Tools()
	}
	return req
}

// render prints the events of one turn as they arrive and returns what they
// add up to.
func (c *chatCommander) render(stream *session.Stream) (*llm.Transcript, error) {
	defer stream.Close()

	t := &llm.Transcript{}
	fmt.Fprint(c.out, assistantPrompt)

	for ev, err := range stream.Events() {
		if err != nil {
			return t, err
		}
		t.Apply(ev)

		switch e := ev.(type) {
		case llm.TextEvent:
			if !c.markdown {
				fmt.Fprint(c.out, e.Text)
			}

		case llm.ReplaceResponseEvent:
			if !c.markdown {
				fmt.Fprintf(c.out, "\n%s\n%s", cliui.WarnStyle.Render("(response replaced)"), e.Text)
			}

		case llm.FileEvent:
			fmt.Fprintf(c.out, "\n  %s %s %s\n",
				cliui.KeyStyle.Render("File:"),
				cliui.NameStyle.Render(e.Name),
				cliui.DimStyle.Render(e.URL),
			)

		case llm.ErrorEvent:
			hint := "not retryable"
			if e.AllowRetry {
				hint = "retry by sending the prompt again"
			}
			fmt.Fprintf(c.errOut, "\n  %s %s %s\n",
				cliui.FailMark,
				e.Text,
				cliui.DimStyle.Render("("+hint+")"),
			)

		case llm.JSONEvent:
			for _, call := range e.ToolCalls {
				fmt.Fprintf(c.out, "\n  %s %s%s\n",
					cliui.KeyStyle.Render("Tool:"),
					cliui.NameStyle.Render(call.Function.Name),
					cliui.DimStyle.Render(utils.Truncate(call.Function.Arguments, maxShownArguments)),
				)
			}
		}
	}

	if c.markdown && t.Text() != "" {
		rendered, err := cliui.RenderMarkdown(t.Text(), cliui.Width(c.out))
		if err != nil {
			c.logger.Debug("rendering markdown", "error", err)
		}
		fmt.Fprint(c.out, rendered)
	}

	return t, nil
}
