// Package simcmder provides the sim command, which serves scripted bot turns
// over the real wire protocol for local development.
package simcmder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/botstream/botsim"
	"github.com/papercomputeco/botstream/pkg/config"
	"github.com/papercomputeco/botstream/pkg/logger"
)

type simCommander struct {
	listen         string
	bot            string
	accessKey      string
	chunkSize      uint
	keepAlive      bool
	dropBeforeDone bool
	jsonLogs       bool
	debug          bool

	logger *slog.Logger
}

// simFlags binds the sim command's --bot to sim.bot rather than client.bot.
var simFlags = config.FlagSet{
	config.FlagSimListen: {Name: "listen", Shorthand: "l", ViperKey: "sim.listen", Description: "Address for the simulated bot to listen on"},
	config.FlagSimBot:    {Name: "bot", Shorthand: "b", ViperKey: "sim.bot", Description: "Bot name served under /bot/<name>"},
	config.FlagAccessKey: {Name: "access-key", Shorthand: "k", ViperKey: config.AccessKeyViperKey, Description: "Access key clients must send, empty accepts any (default: $BOTSTREAM_ACCESS_KEY)"},
	config.FlagChunkSize: {Name: "chunk-size", ViperKey: "sim.chunk_size", Description: "Split the stream into writes of at most this many bytes, 0 writes whole frames"},
}

var simFlagKeys = []string{
	config.FlagSimListen,
	config.FlagSimBot,
	config.FlagAccessKey,
	config.FlagChunkSize,
}

const simLongDesc string = `Run a simulated bot.

The simulated bot speaks the same server-sent event protocol as the real
service. When the request offers a get_time tool it asks for it, natively
or through XML markup depending on how the tools were sent, and reports the
result once the turn is resumed. Otherwise it echoes the prompt.

Use it to try "botstream chat" without an account:
  botstream sim
  botstream chat --base-url http://localhost:8787 --bot sim-bot --access-key any`

const simShortDesc string = "Run a simulated bot endpoint"

func NewSimCmd() *cobra.Command {
	cmder := &simCommander{}

	cmd := &cobra.Command{
		Use:   "sim",
		Short: simShortDesc,
		Long:  simLongDesc,
		Args:  cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			configDir, _ := cmd.Flags().GetString("config-dir")
			v, err := config.InitViper(configDir)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}

			config.BindRegisteredFlags(v, cmd, simFlags, simFlagKeys)

			cmder.listen = v.GetString("sim.listen")
			cmder.bot = v.GetString("sim.bot")
			cmder.accessKey = v.GetString(config.AccessKeyViperKey)
			cmder.chunkSize = v.GetUint("sim.chunk_size")
			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			cmder.debug, err = cmd.Flags().GetBool("debug")
			if err != nil {
				return fmt.Errorf("could not get debug flag: %w", err)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			listener, err := net.Listen("tcp", cmder.listen)
			if err != nil {
				return fmt.Errorf("listening on %s: %w", cmder.listen, err)
			}
			return cmder.run(ctx, listener)
		},
	}

	config.AddStringFlag(cmd, simFlags, config.FlagSimListen, &cmder.listen)
	config.AddStringFlag(cmd, simFlags, config.FlagSimBot, &cmder.bot)
	config.AddStringFlag(cmd, simFlags, config.FlagAccessKey, &cmder.accessKey)
	config.AddUintFlag(cmd, simFlags, config.FlagChunkSize, &cmder.chunkSize)
	cmd.Flags().BoolVar(&cmder.keepAlive, "keep-alive", false, "Send a keep-alive comment before the first event")
	cmd.Flags().BoolVar(&cmder.dropBeforeDone, "drop-before-done", false, "Close every stream before its done event")
	cmd.Flags().BoolVar(&cmder.jsonLogs, "json-logs", false, "Log as JSON instead of colorized text")

	return cmd
}

// run serves on listener until ctx ends or the server fails.
func (c *simCommander) run(ctx context.Context, listener net.Listener) error {
	if c.logger == nil {
		c.logger = logger.New(
			logger.WithDebug(c.debug),
			logger.WithPretty(!c.jsonLogs),
			logger.WithJSON(c.jsonLogs),
			logger.WithComponent("botsim"),
		)
	}

	server, err := botsim.New(botsim.Config{
		ListenAddr:     listener.Addr().String(),
		Bot:            c.bot,
		AccessKey:      c.accessKey,
		ChunkSize:      int(c.chunkSize),
		KeepAlive:      c.keepAlive,
		DropBeforeDone: c.dropBeforeDone,
	}, c.logger)
	if err != nil {
		listener.Close()
		return fmt.Errorf("creating simulated bot: %w", err)
	}

	errChan := make(chan error, 1)
	go func() {
		errChan <- server.RunWithListener(listener)
	}()

	select {
	case err := <-errChan:
		if err != nil && !errors.Is(err, net.ErrClosed) {
			return fmt.Errorf("simulated bot error: %w", err)
		}
		return nil
	case <-ctx.Done():
		c.logger.Info("shutting down simulated bot")
		return server.Close()
	}
}
