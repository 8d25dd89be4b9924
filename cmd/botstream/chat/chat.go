// Package chatcmder provides the chat command: an interactive conversation
// with one bot, streaming each turn and running requested tools locally.
package chatcmder

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/papercomputeco/botstream/pkg/cliui"
	"github.com/papercomputeco/botstream/pkg/config"
	"github.com/papercomputeco/botstream/pkg/llm"
	"github.com/papercomputeco/botstream/pkg/logger"
	"github.com/papercomputeco/botstream/pkg/session"
	"github.com/papercomputeco/botstream/pkg/toolbox"
)

var (
	userPrompt      = lipgloss.NewStyle().Foreground(lipgloss.Color("82")).Bold(true).Render("you> ")
	assistantPrompt = lipgloss.NewStyle().Foreground(lipgloss.Color("245")).Render("bot> ")
)

type chatCommander struct {
	baseURL   string
	bot       string
	accessKey string
	xmlTools  bool
	timeout   time.Duration
	maxRounds uint
	workers   uint
	queueSize uint
	record    string
	logFile   string
	markdown  bool
	debug     bool

	in     io.Reader
	out    io.Writer
	errOut io.Writer

	// doer and now override the HTTP client and the clock, for tests.
	doer session.Doer
	now  func() time.Time

	logger   *slog.Logger
	client   *session.Client
	registry *toolbox.Registry
	pool     *toolbox.Pool

	history        []llm.Message
	userID         string
	conversationID string
}

// chatFlags is the flag registry for the chat command.
var chatFlags = config.FlagSet{
	config.FlagBaseURL:   {Name: "base-url", Shorthand: "u", ViperKey: "client.base_url", Description: "Bot service base URL"},
	config.FlagBot:       {Name: "bot", Shorthand: "b", ViperKey: "client.bot", Description: "Name of the bot to talk to"},
	config.FlagAccessKey: {Name: "access-key", Shorthand: "k", ViperKey: config.AccessKeyViperKey, Description: "Bot access key (default: $BOTSTREAM_ACCESS_KEY)"},
	config.FlagXMLTools:  {Name: "xml-tools", ViperKey: "client.xml_tools", Description: "Emulate tool calling with XML prompt markup"},
	config.FlagTimeout:   {Name: "timeout", ViperKey: "client.timeout", Description: "Per-turn HTTP timeout, 0 disables it"},
	config.FlagMaxRounds: {Name: "max-rounds", ViperKey: "client.max_rounds", Description: "Maximum tool rounds per prompt, 0 disables tools"},
	config.FlagWorkers:   {Name: "workers", Shorthand: "w", ViperKey: "toolbox.workers", Description: "Concurrent tool executions"},
}

var chatFlagKeys = []string{
	config.FlagBaseURL,
	config.FlagBot,
	config.FlagAccessKey,
	config.FlagXMLTools,
	config.FlagTimeout,
	config.FlagMaxRounds,
	config.FlagWorkers,
}

const chatLongDesc string = `Start an interactive chat session with a bot.

Each line read from stdin is sent as a new turn together with the
conversation so far. Replies are streamed as they arrive. When the bot
requests tools, they run locally and the turn is resumed with their
results, up to --max-rounds times per prompt.

Bots without native tool calling can be driven with --xml-tools, which
describes the tools inside the prompt and recovers calls from the reply.

The access key is read from --access-key or $BOTSTREAM_ACCESS_KEY and is
never written to config.toml.

Examples:
  botstream chat --bot my-bot
  botstream chat --bot my-bot --xml-tools --record turns.sse
  echo "what time is it?" | botstream chat --bot sim-bot --base-url http://localhost:8787`

const chatShortDesc string = "Interactive chat with a bot"

func NewChatCmd() *cobra.Command {
	cmder := &chatCommander{}

	cmd := &cobra.Command{
		Use:   "chat",
		Short: chatShortDesc,
		Long:  chatLongDesc,
		Args:  cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			configDir, _ := cmd.Flags().GetString("config-dir")
			v, err := config.InitViper(configDir)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}

			config.BindRegisteredFlags(v, cmd, chatFlags, chatFlagKeys)

			cmder.baseURL = v.GetString("client.base_url")
			cmder.bot = v.GetString("client.bot")
			cmder.accessKey = v.GetString(config.AccessKeyViperKey)
			cmder.xmlTools = v.GetBool("client.xml_tools")
			cmder.timeout = v.GetDuration("client.timeout")
			cmder.maxRounds = v.GetUint("client.max_rounds")
			cmder.workers = v.GetUint("toolbox.workers")
			cmder.queueSize = v.GetUint("toolbox.queue_size")
			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			cmder.debug, err = cmd.Flags().GetBool("debug")
			if err != nil {
				return fmt.Errorf("could not get debug flag: %w", err)
			}

			cmder.in = cmd.InOrStdin()
			cmder.out = cmd.OutOrStdout()
			cmder.errOut = cmd.ErrOrStderr()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()

			return cmder.run(ctx)
		},
	}

	var (
		timeout string
		xml     bool
	)
	config.AddStringFlag(cmd, chatFlags, config.FlagBaseURL, &cmder.baseURL)
	config.AddStringFlag(cmd, chatFlags, config.FlagBot, &cmder.bot)
	config.AddStringFlag(cmd, chatFlags, config.FlagAccessKey, &cmder.accessKey)
	config.AddBoolFlag(cmd, chatFlags, config.FlagXMLTools, &xml)
	config.AddStringFlag(cmd, chatFlags, config.FlagTimeout, &timeout)
	config.AddUintFlag(cmd, chatFlags, config.FlagMaxRounds, &cmder.maxRounds)
	config.AddUintFlag(cmd, chatFlags, config.FlagWorkers, &cmder.workers)
	cmd.Flags().StringVarP(&cmder.record, "record", "r", "", "Append the raw event stream of every turn to this file")
	cmd.Flags().StringVar(&cmder.logFile, "log-file", "", "Also write debug logs as JSON to this file")
	cmd.Flags().BoolVarP(&cmder.markdown, "markdown", "m", false, "Render each finished reply as markdown instead of streaming raw text")

	return cmd
}

func (c *chatCommander) run(ctx context.Context) error {
	c.logger = logger.New(
		logger.WithDebug(c.debug),
		logger.WithPretty(true),
		logger.WithWriter(c.errOut),
	)
	if c.logFile != "" {
		f, err := os.OpenFile(c.logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
		if err != nil {
			return fmt.Errorf("opening log file: %w", err)
		}
		defer f.Close()
		c.logger = logger.Multi(c.logger, logger.New(
			logger.WithDebug(true),
			logger.WithJSON(true),
			logger.WithWriter(f),
		))
	}

	if c.accessKey == "" {
		key, err := c.promptAccessKey()
		if err != nil {
			return err
		}
		c.accessKey = key
	}

	if err := c.setup(); err != nil {
		return err
	}
	defer c.pool.Close()

	var recorder io.Writer
	if c.record != "" {
		f, err := os.OpenFile(c.record, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
		if err != nil {
			return fmt.Errorf("opening record file: %w", err)
		}
		defer f.Close()
		recorder = f
	}
	if err := c.connect(recorder); err != nil {
		return err
	}

	mode := "native tools"
	if c.xmlTools {
		mode = "xml tools"
	}
	fmt.Fprintln(c.out)
	fmt.Fprintf(c.out, "  %s %s %s\n",
		cliui.KeyStyle.Render("Bot:"),
		cliui.NameStyle.Render(c.bot),
		cliui.DimStyle.Render(fmt.Sprintf("(%s, %s)", c.client.URL(), mode)),
	)
	fmt.Fprintf(c.out, "  %s\n\n", cliui.DimStyle.Render("Type your message and press Enter. /exit or Ctrl+D to quit."))

	scanner := bufio.NewScanner(c.in)

	for {
		fmt.Fprint(c.out, userPrompt)
		if !scanner.Scan() {
			// EOF or error
			break
		}

		input := strings.TrimSpace(scanner.Text())
		if input == "" {
			continue
		}
		if input == "/exit" {
			break
		}

		reply, err := c.converse(ctx, input)
		if err != nil {
			fmt.Fprintf(c.errOut, "\n  %s %v\n\n", cliui.FailMark, err)
			if ctx.Err() != nil {
				return nil
			}
			// The prompt is not added to history so it can be retried.
			continue
		}

		c.history = append(c.history,
			llm.NewTextMessage(llm.RoleUser, input),
			reply,
		)

		fmt.Fprintln(c.out)
		fmt.Fprintln(c.out)
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("reading input: %w", err)
	}

	fmt.Fprintln(c.out)
	return nil
}

// promptAccessKey asks for the access key with hidden input when stdin is a
// terminal. Otherwise it returns an empty key and session creation reports
// the missing key.
func (c *chatCommander) promptAccessKey() (string, error) {
	f, ok := c.in.(*os.File)
	if !ok || !term.IsTerminal(int(f.Fd())) {
		return "", nil
	}

	fmt.Fprintf(c.errOut, "Enter access key for %s (BOTSTREAM_ACCESS_KEY): ", c.bot)
	keyBytes, err := term.ReadPassword(int(f.Fd()))
	fmt.Fprintln(c.errOut) // newline after hidden input
	if err != nil {
		return "", fmt.Errorf("reading access key: %w", err)
	}

	return strings.TrimSpace(string(keyBytes)), nil
}

// setup builds the tool registry and worker pool.
func (c *chatCommander) setup() error {
	c.registry = toolbox.NewBuiltinRegistry(c.now)

	pool, err := toolbox.NewPool(&toolbox.Config{
		Registry:   c.registry,
		NumWorkers: c.workers,
		QueueSize:  c.queueSize,
		Logger:     c.logger,
	})
	if err != nil {
		return fmt.Errorf("creating tool pool: %w", err)
	}
	c.pool = pool
	return nil
}

// connect builds the session client. A nil recorder disables recording.
func (c *chatCommander) connect(recorder io.Writer) error {
	doer := c.doer
	if doer == nil {
		doer = &http.Client{
			// Bot turns can stream for a long time
			Timeout: c.timeout,
		}
	}

	var opts []session.Option
	if recorder != nil {
		opts = append(opts, session.WithRecorder(recorder))
	}

	client, err := session.New(session.Config{
		BaseURL:   c.baseURL,
		Bot:       c.bot,
		AccessKey: c.accessKey,
		XMLTools:  c.xmlTools,
		Doer:      doer,
		Logger:    c.logger,
	}, opts...)
	if err != nil {
		return fmt.Errorf("creating bot client: %w", err)
	}
	c.client = client
	return nil
}
