package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"TaskChat/internal/briefing"
	"TaskChat/internal/config"
	"TaskChat/internal/gate"
	"TaskChat/internal/relay"
	"TaskChat/internal/store"
	"TaskChat/internal/telemetry"
	"TaskChat/internal/toolexec"
	"TaskChat/internal/transcript"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		configPath = flag.String("config", "", "Path to YAML config file")
		chatURL    = flag.String("chat-url", "", "Chat service base URL")
		storeURL   = flag.String("store-url", "", "Planner store base URL")
		toolURL    = flag.String("tool-url", "", "Tool endpoint (http(s):// or ws(s)://)")
		agent      = flag.String("agent", "", "Agent name sent with each turn")
		model      = flag.String("model", "", "Model name sent with each turn")
		dbPath     = flag.String("db", "", "SQLite transcript database path")
		verbose    = flag.Bool("verbose", false, "Enable debug logging")
	)
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}

	// Flags override the config file.
	if *chatURL != "" {
		cfg.ChatBaseURL = *chatURL
	}
	if *storeURL != "" {
		cfg.StoreBaseURL = *storeURL
	}
	if *toolURL != "" {
		cfg.ToolEndpoint = *toolURL
	}
	if *agent != "" {
		cfg.Agent = *agent
	}
	if *model != "" {
		cfg.Model = *model
	}
	if *dbPath != "" {
		cfg.DBPath = *dbPath
	}
	if *verbose {
		cfg.Verbose = true
	}

	logger, err := telemetry.InitLogger(cfg.LogDir, cfg.Verbose)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	ctx := context.Background()
	tracer, meter, cleanup, err := telemetry.InitTelemetry(ctx, cfg.LogDir)
	if err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	defer cleanup()

	transcripts, err := transcript.Open(cfg.DBPath, logger)
	if err != nil {
		return fmt.Errorf("failed to open transcript store: %w", err)
	}
	defer transcripts.Close()

	runner, err := toolexec.New(cfg.ToolEndpoint, logger)
	if err != nil {
		return fmt.Errorf("failed to connect tool runner: %w", err)
	}
	defer runner.Close()

	chatClient, err := relay.NewChatClient(cfg.ChatBaseURL, cfg.RequestTimeout, cfg.RatePerSecond, cfg.Burst, logger)
	if err != nil {
		return fmt.Errorf("failed to create chat client: %w", err)
	}

	planner := store.NewClient(cfg.StoreBaseURL, logger)

	bot := relay.New(
		chatClient,
		briefing.NewBuilder(planner, logger),
		gate.New(runner, logger),
		transcripts,
		relay.Options{
			Agent: cfg.Agent,
			Model: cfg.Model,
			Selection: briefing.Selection{
				IncludeTasks:      cfg.IncludeTasks,
				IncludeChecklists: cfg.IncludeChecklists,
				IncludeJournal:    cfg.IncludeJournal,
			},
		},
		logger,
		tracer,
		meter,
	)

	// The first interrupt cancels an in-flight reply; an interrupt with
	// nothing streaming saves and exits.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		for range sigCh {
			if bot.CancelStream() {
				continue
			}
			if err := bot.Save(context.Background()); err != nil {
				logger.Error("failed to save conversation on exit", "error", err)
			}
			transcripts.Close()
			runner.Close()
			cleanup()
			os.Exit(0)
		}
	}()

	return bot.Run(ctx)
}
