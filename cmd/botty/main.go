package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/bottylabs/botty/pkg/agent"
	"github.com/bottylabs/botty/pkg/channels"
	"github.com/bottylabs/botty/pkg/completion"
	"github.com/bottylabs/botty/pkg/config"
	"github.com/bottylabs/botty/pkg/history"
	"github.com/bottylabs/botty/pkg/imagegen"
	"github.com/bottylabs/botty/pkg/logger"
	"github.com/bottylabs/botty/pkg/storage"
	"github.com/bottylabs/botty/pkg/tools"
)

var (
	version   = "dev"
	gitCommit string
)

func main() {
	root := newRootCmd()
	root.AddCommand(newVersionCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var settingsPath string

	cmd := &cobra.Command{
		Use:   "botty",
		Short: "Discord LLM agent bot",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBot(settingsPath)
		},
		SilenceUsage: true,
	}
	cmd.Flags().StringVarP(&settingsPath, "settings", "s", "settings.json", "Path to the settings file")
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			v := version
			if gitCommit != "" {
				v += fmt.Sprintf(" (git: %s)", gitCommit)
			}
			fmt.Printf("botty %s\n  Go: %s\n", v, runtime.Version())
		},
	}
}

func runBot(settingsPath string) error {
	cfg, err := config.LoadConfig(settingsPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger.SetLevel(parseLogLevel(cfg.LogLevel))
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := history.Open(cfg.DatabasePath, cfg.HistoryCharBudget)
	if err != nil {
		return fmt.Errorf("open history store: %w", err)
	}
	defer store.Close()

	uploader := buildUploader(ctx, cfg)
	registry := buildRegistry(cfg, store, uploader)
	completer := buildCompleter(cfg)

	level, err := agent.ParseReasoningLevel(cfg.ReasoningLevel)
	if err != nil {
		return fmt.Errorf("invalid reasoning level: %w", err)
	}

	engine := agent.NewEngine(store, registry, completer, uploader, agent.Options{
		Model:           cfg.Model,
		Instructions:    cfg.Instructions,
		MaxTurns:        cfg.MaximumTurns,
		ReasoningLevel:  level,
		EnableWebSearch: cfg.EnableWebSearch,
		MaxOutputTokens: cfg.MaxOutputTokens,
	})

	discord, err := channels.NewDiscord(channels.DiscordConfig{
		Token:               cfg.DiscordToken,
		AutoRespondChannels: cfg.AutoRespondChannels,
		DMWhitelist:         cfg.DMWhitelist,
	}, engine)
	if err != nil {
		return fmt.Errorf("create discord channel: %w", err)
	}

	if err := discord.Start(ctx); err != nil {
		return fmt.Errorf("start discord channel: %w", err)
	}

	logger.InfoCF("main", "Botty is running", map[string]any{
		"model":    cfg.Model,
		"provider": cfg.Provider,
	})

	<-ctx.Done()

	logger.InfoC("main", "Shutting down")
	return discord.Stop()
}

func buildCompleter(cfg *config.Config) completion.Completer {
	var inner completion.Completer
	switch strings.ToLower(cfg.Provider) {
	case config.ProviderAnthropic:
		inner = completion.NewAnthropic(cfg.AnthropicAPIKey)
	default:
		inner = completion.NewOpenAI(cfg.OpenAIAPIKey, cfg.OpenAIAPIBase)
	}
	return completion.NewRetrying(inner, completion.DefaultRetryPolicy())
}

// buildUploader returns nil when no cloud storage is configured. The bot
// still runs, it just cannot deliver generated images.
func buildUploader(ctx context.Context, cfg *config.Config) agent.Uploader {
	store, err := storage.New(ctx,
		storage.R2Config{
			AccessKeyID:     cfg.R2.AccessKeyID,
			SecretAccessKey: cfg.R2.SecretAccessKey,
			Bucket:          cfg.R2.Bucket,
			AccountID:       cfg.R2.AccountID,
			PublicURL:       cfg.R2.PublicURL,
		},
		storage.S3Config{
			AccessKeyID:     cfg.S3.AccessKeyID,
			SecretAccessKey: cfg.S3.SecretAccessKey,
			Bucket:          cfg.S3.Bucket,
			Region:          cfg.S3.Region,
		})
	if err != nil {
		logger.WarnCF("main", "Cloud storage unavailable, image tools disabled", map[string]any{
			"error": err.Error(),
		})
		return nil
	}
	return store
}

func buildRegistry(cfg *config.Config, store *history.Store, uploader agent.Uploader) *tools.Registry {
	registry := tools.NewRegistry()
	registry.Register(tools.NewPingTool())
	registry.Register(tools.NewRollTool(nil))
	registry.Register(tools.NewQuickMessageTool())
	registry.Register(tools.NewCreatePollTool())
	registry.Register(tools.NewSaveMemoryTool(store))
	registry.Register(tools.NewUpdateMemoryTool(store))
	registry.Register(tools.NewDeleteMemoryTool(store))
	registry.Register(tools.NewListMemoriesTool(store))

	if cfg.ReplicateAPIToken != "" && uploader != nil {
		gen := imagegen.NewClient(cfg.ReplicateAPIToken, cfg.ImageModel)
		registry.Register(tools.NewGenerateImageTool(gen))
		registry.Register(tools.NewEditImageTool(gen))
		registry.Register(tools.NewGenerateMemeTool(gen))
	} else {
		logger.InfoC("main", "Image generation disabled (needs REPLICATE_API_TOKEN and cloud storage)")
	}

	return registry
}

func parseLogLevel(level string) logger.LogLevel {
	switch strings.ToLower(level) {
	case "debug":
		return logger.DEBUG
	case "warn":
		return logger.WARN
	case "error":
		return logger.ERROR
	default:
		return logger.INFO
	}
}
