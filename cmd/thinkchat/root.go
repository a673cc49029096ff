package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"github.com/spf13/cobra"

	"github.com/ai/thinkchat/internal/chat"
	"github.com/ai/thinkchat/internal/config"
	"github.com/ai/thinkchat/internal/conversation"
	"github.com/ai/thinkchat/internal/gate"
	"github.com/ai/thinkchat/internal/logging"
	"github.com/ai/thinkchat/internal/logs"
	"github.com/ai/thinkchat/internal/ollama"
	"github.com/ai/thinkchat/internal/prompt"
	"github.com/ai/thinkchat/internal/render"
	"github.com/ai/thinkchat/internal/repl"
	"github.com/ai/thinkchat/internal/tui"
)

// errReported marks a failure whose message has already been printed.
var errReported = errors.New("reported")

var (
	configFile string
	noValidate bool
)

// flagKeys maps config keys to the flags that override them.
var flagKeys = map[string]string{
	"model":              "model",
	"host":               "host",
	"tui":                "tui",
	"transcript.enabled": "transcript",
	"system_prompt":      "system",
	"refresh_rate":       "refresh-rate",
	"log.level":          "log-level",
}

var rootCmd = &cobra.Command{
	Use:   "thinkchat",
	Short: "Chat with a local thinking model and watch it reason",
	Long: `thinkchat streams answers from an Ollama thinking model (deepseek-r1,
qwen3) and shows the model's reasoning above the answer as it arrives.

Examples:
  thinkchat                         # chat with the default model
  thinkchat -m deepseek-r1:8b       # pick a model
  thinkchat --tui                   # full-screen interface
  thinkchat models                  # list installed models

Environment Variables:
  OLLAMA_HOST       Ollama API base URL (default: http://localhost:11434)
  OLLAMA_MODEL      Default model to use
  OLLAMA_API_KEY    API key for the cloud endpoint
  THINKCHAT_*       Any config key, e.g. THINKCHAT_REFRESH_RATE`,
	Version:           fmt.Sprintf("%s (commit %s, built %s)", version, commit, date),
	Args:              cobra.NoArgs,
	SilenceUsage:      true,
	SilenceErrors:     true,
	CompletionOptions: cobra.CompletionOptions{DisableDefaultCmd: true},
	RunE:              runChat,
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&configFile, "config", "c", "", "Config file (default: <config dir>/thinkchat/config.yaml)")
	flags.StringP("model", "m", "", "Model to chat with")
	flags.String("host", "", "Ollama API base URL")
	flags.String("log-level", "", "Log level (debug, info, warn, error)")

	rootCmd.Flags().Bool("tui", false, "Use the full-screen interface")
	rootCmd.Flags().BoolVar(&noValidate, "no-validate", false, "Skip the thinking-model check at startup")
	rootCmd.Flags().Bool("transcript", false, "Write a JSONL transcript of the session")
	rootCmd.Flags().StringP("system", "s", "", "Extra system instructions for this session")
	rootCmd.Flags().Float64("refresh-rate", render.DefaultRefreshRate, "Redraws per second while streaming (0 redraws on every fragment)")
}

// Execute runs the root command and exits 1 on failure.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		if !errors.Is(err, errReported) {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		stop()
		os.Exit(1)
	}
}

// loadConfig resolves configuration from defaults, file, environment and
// the flags of cmd.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	v := config.New()

	keys := make(map[string]string, len(flagKeys))
	for key, name := range flagKeys {
		if cmd.Flags().Lookup(name) != nil {
			keys[key] = name
		}
	}
	if err := config.BindFlags(v, cmd.Flags(), keys); err != nil {
		return nil, err
	}
	if noValidate {
		v.Set("validate_model", false)
	}

	return config.Load(v, configFile)
}

// setup loads config, starts logging and probes the server.
func setup(cmd *cobra.Command) (*config.Config, *slog.Logger, io.Closer, *ollama.Client, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, nil, nil, nil, err
	}

	logger, closer, err := logging.Init(cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: logging disabled: %v\n", err)
	}

	client := ollama.NewClient(ollama.Config{BaseURL: cfg.Host, APIKey: cfg.APIKey})
	if err := client.IsAvailable(cmd.Context()); err != nil {
		logger.Error("backend unreachable", "host", client.BaseURL(), "error", err)
		closer.Close()
		return nil, nil, nil, nil, fmt.Errorf("ollama is not available at %s: %w", client.BaseURL(), err)
	}

	return cfg, logger, closer, client, nil
}

func runChat(cmd *cobra.Command, _ []string) error {
	cfg, logger, closer, client, err := setup(cmd)
	if err != nil {
		return err
	}
	defer closer.Close()

	ctx := cmd.Context()
	lipgloss.SetColorProfile(render.ColorProfile(os.Stdout))

	g := gate.New(cfg.ThinkingFamilies...)
	if cfg.ValidateModel {
		result, err := g.Check(ctx, client, cfg.Model)
		if err != nil {
			return err
		}
		if !result.OK() {
			logger.Error("model rejected", "model", cfg.Model, "reason", result.Reason())
			fmt.Fprint(os.Stderr, result.Diagnostic())
			return fmt.Errorf("%w: %w", errReported, result.Err())
		}
	}

	prompts := prompt.NewManager(config.AppName)
	prompts.SetSessionInstructions(cfg.SystemPrompt)

	sessionCfg := chat.Config{
		Model:        cfg.Model,
		Backend:      client,
		Conversation: conversation.New(prompts.GetEffectivePrompt()),
		Cadence:      func() render.Cadence { return render.NewCadence(cfg.RefreshRate) },
		Logger:       logger,
	}

	if cfg.Transcript.Enabled {
		transcript, err := logs.NewSession(cfg.Transcript.Dir)
		if err != nil {
			return fmt.Errorf("failed to open transcript: %w", err)
		}
		defer transcript.Close()
		sessionCfg.Recorder = transcript
		logger.Info("transcript enabled", "path", transcript.Path())
	}

	logger.Info("session starting",
		"model", cfg.Model,
		"host", client.BaseURL(),
		"tui", cfg.TUI,
		"refresh_rate", cfg.RefreshRate,
	)

	if cfg.TUI {
		sink := tui.NewSink()
		sessionCfg.Sink = sink
		dark := termenv.NewOutput(os.Stdout).HasDarkBackground()
		return tui.Run(ctx, tui.Config{
			Session:   chat.NewSession(sessionCfg),
			Sink:      sink,
			Gate:      g,
			Lister:    client,
			Formatter: func(w int) render.Formatter { return markdownOrPlain(w, dark, logger) },
		})
	}

	sessionCfg.Sink = newSink(logger)
	loop := repl.New(repl.Config{
		Session: chat.NewSession(sessionCfg),
		Gate:    g,
		Lister:  client,
		Prompt:  prompts,
		Out:     os.Stdout,
		Logger:  logger,
	})

	in := repl.OpenLiner(cfg.HistoryFile)
	defer in.Close()
	return loop.Run(ctx, in)
}

// newSink redraws in place on a terminal and prints plain final frames
// otherwise.
func newSink(logger *slog.Logger) render.Sink {
	if !render.IsTerminal(os.Stdout) {
		return render.NewPlain(os.Stdout)
	}
	width := render.Width(os.Stdout)
	dark := termenv.NewOutput(os.Stdout).HasDarkBackground()
	return render.NewTerminal(os.Stdout, width, markdownOrPlain(width, dark, logger))
}

func markdownOrPlain(width int, dark bool, logger *slog.Logger) render.Formatter {
	md, err := render.NewMarkdown(width, render.StyleFor(dark))
	if err != nil {
		logger.Warn("markdown rendering unavailable", "error", err)
		return render.PlainText
	}
	return md
}
