// Command parley is a terminal client for a conversational knowledge-base
// agent service.
//
// Usage:
//
//	PARLEY_API_KEY=pk-... parley [flags]
//
// Flags:
//
//	-endpoint string  Agent service base URL (default http://localhost:8840)
//	-api-key string   API key (overrides the configured env var)
//	-config string    Path to YAML config file (default .parley/config.yaml)
//	-history string   Path to conversation file to resume and save
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"

	"github.com/parleyhq/parley"
	"github.com/parleyhq/parley/agentapi"
	bt "github.com/parleyhq/parley/bubbletea"
	parleyjson "github.com/parleyhq/parley/json"
	"github.com/parleyhq/parley/session"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "parley: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// Parse flags.
	var (
		endpoint    = flag.String("endpoint", "", "Agent service base URL")
		apiKey      = flag.String("api-key", "", "API key (overrides the configured env var)")
		configPath  = flag.String("config", defaultConfigPath, "Path to YAML config file")
		historyPath = flag.String("history", "", "Path to conversation file to resume and save")
	)
	flag.Parse()

	// Handle OS signals for graceful shutdown.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	// Load and resolve config. Env is only read here and passed as values.
	file, err := loadFileConfig(*configPath)
	if err != nil {
		return err
	}
	cfg, err := resolveConfig(file, *endpoint, *apiKey, *historyPath, os.Getenv)
	if err != nil {
		return err
	}

	logger := log.New(os.Stderr)

	// Create the streaming client.
	clientOpts := []agentapi.Option{agentapi.WithLogger(logger)}
	if cfg.apiKey != "" {
		clientOpts = append(clientOpts, agentapi.WithAPIKey(cfg.apiKey))
	}
	if cfg.idleTimeoutSet {
		clientOpts = append(clientOpts, agentapi.WithIdleTimeout(cfg.idleTimeout))
	}
	client := agentapi.New(cfg.endpoint, clientOpts...)

	// Create the session controller.
	sessOpts := []session.Option{session.WithLogger(logger)}
	if len(cfg.controlChunks) > 0 {
		sessOpts = append(sessOpts, session.WithTurnOptions(parley.WithControlChunks(cfg.controlChunks...)))
	}
	ctrl := session.New(client, sessOpts...)

	// Load or create the conversation.
	conversation, err := loadOrCreateConversation(cfg.historyPath)
	if err != nil {
		return err
	}

	// Build the ask function closure for the TUI. Wait uses a background
	// context so a cancelled turn still returns its final state instead of
	// the context error.
	askFn := func(ctx context.Context, input string, onUpdate func(parley.Turn)) (parley.Turn, error) {
		h, err := ctrl.Start(ctx, parley.Request{Input: input, SessionID: conversation.SessionID})
		if err != nil {
			return parley.Turn{}, err
		}
		h.OnUpdate(onUpdate)
		stop := context.AfterFunc(ctx, h.Cancel)
		defer stop()
		return h.Wait(context.Background())
	}

	// Create and run TUI.
	var modelOpts []bt.ModelOption
	if cfg.historyPath != "" {
		path := cfg.historyPath
		modelOpts = append(modelOpts, bt.WithSave(func(c parley.Conversation) error {
			return parleyjson.Save(path, c)
		}))
	}
	tuiModel := bt.New(askFn, conversation, parley.DefaultTheme(), modelOpts...)

	if err := bt.Run(ctx, tuiModel); err != nil {
		return fmt.Errorf("TUI: %w", err)
	}

	// Without an explicit history path, auto-save to the default location.
	if cfg.historyPath == "" && len(conversation.Entries) > 0 {
		savePath := defaultHistoryPath(conversation.ID)
		if err := parleyjson.Save(savePath, *conversation); err != nil {
			return fmt.Errorf("save conversation: %w", err)
		}
		fmt.Fprintf(os.Stderr, "Conversation saved to %s\n", savePath)
	}

	return nil
}

// loadOrCreateConversation resumes from path when it exists. A missing file
// at an explicit path is not an error: the conversation starts fresh and is
// saved there on exit.
func loadOrCreateConversation(path string) (*parley.Conversation, error) {
	if path != "" {
		c, err := parleyjson.Load(path)
		switch {
		case err == nil:
			return &c, nil
		case errors.Is(err, os.ErrNotExist):
		default:
			return nil, fmt.Errorf("load conversation: %w", err)
		}
	}
	return parley.NewConversation(time.Now()), nil
}

func defaultHistoryPath(id string) string {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return filepath.Join(home, ".parley", "conversations", id+".json")
}
