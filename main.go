package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"toolgate/builtin"
	"toolgate/config"
	"toolgate/engine"
	"toolgate/gateway"
	"toolgate/llm/openai"
	"toolgate/tool"
)

func main() {
	root := &cobra.Command{
		Use:          "toolgate",
		Short:        "OpenAI-compatible gateway that executes tool calls between model rounds",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context())
		},
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := root.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	// Missing .env is fine, the environment may already be populated.
	godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("TOOLGATE_LOG_LEVEL: %w", err)
	}
	var out io.Writer = os.Stderr
	if isatty.IsTerminal(os.Stderr.Fd()) {
		out = zerolog.ConsoleWriter{Out: os.Stderr}
	}
	logger := zerolog.New(out).
		Level(level).
		With().Timestamp().Logger()

	if cfg.APIKey == "" {
		logger.Warn().Msg("OPENAI_API_KEY is not set, requests will be unauthenticated")
	}

	toolbox := tool.Box(
		builtin.CurrentTime,
		builtin.FetchURL,
	)

	provider := openai.New(cfg.BaseURL, cfg.APIKey)
	eng := engine.New(provider, toolbox, cfg.Engine, logger)
	server := gateway.New(eng, cfg.Model, logger)

	logger.Info().
		Str("model", cfg.Model).
		Str("provider", provider.Name()).
		Int("max_rounds", cfg.Engine.MaxRounds).
		Msg("starting gateway")

	if err := server.ListenAndServe(ctx, cfg.Addr); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}
