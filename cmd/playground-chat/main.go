// ABOUTME: Interactive terminal client for streaming prompt runs
// ABOUTME: Usage: playground-chat [-config path] [-instance name] [-model id]

package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/fatih/color"

	"github.com/promptlab/playground/internal/config"
	"github.com/promptlab/playground/internal/conversation"
	"github.com/promptlab/playground/internal/engine"
	"github.com/promptlab/playground/internal/store"
	"github.com/promptlab/playground/internal/transport"
)

// Version is set by goreleaser at build time.
var version = "dev"

// getConfigPath returns the path to the client config file.
// Priority: PLAYGROUND_CONFIG env var > XDG_CONFIG_HOME/playground/config.yaml > ~/.config/playground/config.yaml
func getConfigPath() string {
	if envPath := os.Getenv("PLAYGROUND_CONFIG"); envPath != "" {
		return envPath
	}

	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "config.yaml" // fallback
		}
		configDir = filepath.Join(homeDir, ".config")
	}

	return filepath.Join(configDir, "playground", "config.yaml")
}

func main() {
	configPath := flag.String("config", getConfigPath(), "Path to config file")
	instanceID := flag.String("instance", "default", "Instance name")
	model := flag.String("model", "", "Model id (overrides config default)")
	template := flag.String("template", "", "Prompt template for this instance")
	newSession := flag.Bool("new-session", false, "Force a new session on every turn")
	showVersion := flag.Bool("version", false, "Print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println("playground-chat", version)
		return
	}

	if err := run(*configPath, *instanceID, *model, *template, *newSession); err != nil {
		color.Red("Error: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath, instanceID, model, template string, newSession bool) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	logger := setupLogger(cfg.Logging)
	slog.SetDefault(logger)

	client := transport.NewClient(cfg.Server.BaseURL, cfg.Server.RequestTimeout, logger)

	var recorder store.Recorder
	if cfg.Database.Path != "" {
		sqliteStore, err := store.NewSQLiteStore(cfg.Database.Path)
		if err != nil {
			return err
		}
		defer sqliteStore.Close()
		recorder = sqliteStore
	}

	if model == "" {
		model = cfg.Chat.DefaultModel
	}

	r := &renderer{out: color.Output}
	eng := engine.New(engine.Params{
		Streamer:     client,
		SessionAPI:   client,
		Recorder:     recorder,
		OnUpdate:     r.onUpdate,
		PublishDelay: cfg.Chat.PublishDelay,
		MaxInstances: cfg.Chat.MaxInstances,
		Logger:       logger,
	})
	defer eng.Close()
	r.engine = eng

	inst, err := eng.AddInstance(instanceID, engine.InstanceConfig{
		Template:        template,
		ModelID:         model,
		ModelParams:     cfg.Chat.DefaultModelParams,
		ForceNewSession: newSession,
	})
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	cyan := color.New(color.FgCyan)
	cyan.Printf("playground-chat %s (model %s, backend %s)\n", version, model, cfg.Server.BaseURL)
	fmt.Println("Commands: /clear /restore /delete /stop /quit")

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print(color.GreenString("> "))
		if !scanner.Scan() {
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())

		switch {
		case line == "":
			continue
		case line == "/quit":
			return nil
		case line == "/stop":
			eng.Stop(instanceID)
		case line == "/clear":
			if err := eng.ClearHistory(instanceID); err != nil {
				color.Red("%v", err)
				continue
			}
			fmt.Println("History cleared. Use /restore to re-attach the previous session.")
		case line == "/restore":
			if err := eng.RestoreSession(ctx, instanceID); err != nil {
				color.Red("%v", err)
				continue
			}
			printHistory(inst)
		case line == "/delete":
			if err := eng.DeleteSession(ctx, instanceID); err != nil {
				color.Red("%v", err)
				continue
			}
			fmt.Println("Session deleted.")
		case strings.HasPrefix(line, "/"):
			color.Yellow("Unknown command: %s", line)
		default:
			if err := eng.Run(ctx, instanceID, line); err != nil {
				color.Red("%v", err)
				continue
			}
			r.reset()
			waitForIdle(ctx, inst)
			r.finishLine(inst)
		}
	}
}

// waitForIdle blocks until the in-flight turn reaches a terminal state.
func waitForIdle(ctx context.Context, inst *conversation.Instance) {
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()

	for inst.Busy() {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// printHistory re-renders a restored transcript.
func printHistory(inst *conversation.Instance) {
	for _, msg := range inst.History() {
		if msg.Role == conversation.RoleUser {
			fmt.Printf("%s %s\n", color.GreenString(">"), msg.Content)
		} else {
			fmt.Println(msg.Content)
		}
	}
}
