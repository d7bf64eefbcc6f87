// Package main is the kotae CLI entry point.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hyperjump/kotae/internal/cli"
	"github.com/hyperjump/kotae/internal/config"
	"github.com/hyperjump/kotae/internal/extract"
	"github.com/hyperjump/kotae/internal/models"
	"github.com/hyperjump/kotae/internal/server"
	"github.com/hyperjump/kotae/internal/tui"
	"github.com/hyperjump/kotae/pkg/utils"
)

var version = "dev"

const shutdownGrace = 10 * time.Second

const (
	defaultConfigPath = "/usr/local/etc/kotae/config.yaml"
	defaultServerURL  = "http://localhost:8000"
)

// loadConfig loads config from path. When path is the default, config.yaml in the
// current directory wins if present, and a missing default file yields the built-in
// defaults so a fresh checkout answers questions about its own README.
// Returns the config and the path that was actually loaded ("" for built-in defaults).
func loadConfig(path string) (*config.Config, string, error) {
	if path == defaultConfigPath {
		if cwd, cwdErr := os.Getwd(); cwdErr == nil {
			fallback := filepath.Join(cwd, "config.yaml")
			if _, statErr := os.Stat(fallback); statErr == nil {
				cfg, loadErr := config.Load(fallback)
				if loadErr != nil {
					return nil, "", loadErr
				}
				return cfg, fallback, nil
			}
		}
		if _, statErr := os.Stat(path); errors.Is(statErr, os.ErrNotExist) {
			cfg := config.Default()
			if err := cfg.ResolveSecrets(); err != nil {
				return nil, "", err
			}
			return cfg, "", nil
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, "", err
	}
	return cfg, path, nil
}

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	command := os.Args[1]
	switch command {
	case "server":
		runServer()
	case "ask":
		runAsk()
	case "chat":
		runChat()
	case "chunks":
		runChunks()
	case "status":
		runStatus()
	case "init":
		runInit()
	case "version":
		fmt.Printf("kotae version %s\n", version)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

// setup loads config and builds a logger. Command-line debug overrides the config.
func setup(configPath string, debug bool) (*config.Config, *zap.Logger, string, bool) {
	cfg, resolved, err := loadConfig(configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	debugMode := cfg.Debug || debug
	logger, err := utils.NewLogger(debugMode)
	if err != nil {
		fmt.Printf("Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	return cfg, logger, resolved, debugMode
}

func runServer() {
	fs := flag.NewFlagSet("server", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging (per-file loading, retrieval scores, etc.)")
	_ = fs.Parse(os.Args[2:])

	cfg, logger, resolvedConfigPath, debugMode := setup(*configPath, *debug)
	defer logger.Sync()

	logger.Info("config loaded",
		zap.String("config_path", resolvedConfigPath),
		zap.String("corpus", cfg.Corpus.Path),
		zap.Bool("debug", debugMode),
	)

	components, err := initializeComponents(context.Background(), cfg, logger, debugMode)
	if err != nil {
		logger.Fatal("Failed to initialize components", zap.Error(err))
	}
	defer components.Close()

	var srvOpts []server.Option
	if components.Transcripts != nil {
		srvOpts = append(srvOpts, server.WithTranscripts(components.Transcripts))
	}
	srv := server.NewServer(components.Pipeline, components, &cfg.Server, logger, srvOpts...)
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := srv.Run(ctx, shutdownGrace); err != nil {
		logger.Error("Server failed", zap.Error(err))
		components.Close()
		_ = logger.Sync()
		os.Exit(1)
	}
}

// buildQuestion joins positional args so multi-word questions work with or without quotes.
func buildQuestion(args []string) string {
	return strings.TrimSpace(strings.Join(args, " "))
}

// argsReorder moves flags that appear after the positional arguments to the front,
// since flag.Parse stops at the first non-flag argument.
func argsReorder(args []string) []string {
	for i, a := range args {
		if len(a) > 0 && a[0] == '-' {
			if i == 0 {
				return args
			}
			reordered := make([]string, 0, len(args))
			reordered = append(reordered, args[i:]...)
			reordered = append(reordered, args[:i]...)
			return reordered
		}
	}
	return args
}

func parseOutput(s string) cli.OutputFormat {
	format, err := cli.ParseOutputFormat(s)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	return format
}

func printAskUsage(fs *flag.FlagSet) {
	fmt.Fprintf(fs.Output(), "Usage: kotae ask [flags] <question>\n\n")
	fmt.Fprintf(fs.Output(), "The question is all remaining arguments joined by spaces.\n\n")
	fs.PrintDefaults()
	fmt.Fprintf(fs.Output(), `
Without --server the corpus is loaded and indexed in-process, so the first answer
takes as long as a server start. Reuse --session to keep a conversation going
against a running server.

Examples:
  kotae ask what is the capital of France
  kotae ask --server http://localhost:8000 --session docs "and its population?"
  kotae ask --output json how do I configure retrieval
`)
}

func runAsk() {
	args := argsReorder(os.Args[2:])
	fs := flag.NewFlagSet("ask", flag.ExitOnError)
	fs.Usage = func() { printAskUsage(fs) }
	configPath := fs.String("config", defaultConfigPath, "config file path (in-process mode)")
	serverURL := fs.String("server", "", "server URL; empty answers in-process")
	session := fs.String("session", "", "session ID (default: \"default\")")
	output := fs.String("output", "text", "output format: text or json")
	debug := fs.Bool("debug", false, "enable debug logging")
	_ = fs.Parse(args)

	format := parseOutput(*output)
	question := buildQuestion(fs.Args())
	if question == "" {
		fs.Usage()
		os.Exit(1)
	}
	req := models.AskRequest{Question: question, SessionID: *session}

	if *serverURL != "" {
		client := cli.NewClient(*serverURL, 0)
		resp, err := client.Ask(context.Background(), req)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Ask failed: %v\n", err)
			os.Exit(1)
		}
		_ = cli.WriteAnswer(os.Stdout, resp, format)
		return
	}

	cfg, logger, _, debugMode := setup(*configPath, *debug)
	defer logger.Sync()
	if !debugMode {
		logger = zap.NewNop()
	}
	ctx := context.Background()
	components, err := initializeComponents(ctx, cfg, logger, debugMode)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize components: %v\n", err)
		os.Exit(1)
	}
	defer components.Close()

	start := time.Now()
	res, err := components.Pipeline.Answer(ctx, req)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Ask failed: %v\n", err)
		os.Exit(1)
	}
	_ = cli.WriteAnswer(os.Stdout, toAskResponse(res, time.Since(start)), format)
}

func toAskResponse(res *models.QueryResult, took time.Duration) *models.AskResponse {
	chunks := res.RetrievedChunks
	if chunks == nil {
		chunks = []models.Chunk{}
	}
	return &models.AskResponse{
		Answer:    res.Answer,
		SessionID: res.SessionID,
		Chunks:    chunks,
		QueryTime: took.Milliseconds(),
	}
}

func runChat() {
	fs := flag.NewFlagSet("chat", flag.ExitOnError)
	serverURL := fs.String("server", defaultServerURL, "server URL")
	session := fs.String("session", "", "session ID (default: a new random session)")
	timeout := fs.Duration("timeout", 2*time.Minute, "per-question timeout")
	_ = fs.Parse(os.Args[2:])

	sessionID := *session
	if sessionID == "" {
		sessionID = uuid.NewString()
	}
	client := cli.NewClient(*serverURL, *timeout)
	if _, err := tea.NewProgram(tui.New(client, sessionID, *timeout), tea.WithAltScreen()).Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Chat failed: %v\n", err)
		os.Exit(1)
	}
}

func runChunks() {
	args := argsReorder(os.Args[2:])
	fs := flag.NewFlagSet("chunks", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	output := fs.String("output", "text", "output format: text or json")
	debug := fs.Bool("debug", false, "enable debug logging")
	_ = fs.Parse(args)

	format := parseOutput(*output)
	cfg, logger, _, debugMode := setup(*configPath, *debug)
	defer logger.Sync()

	path := cfg.Corpus.Path
	if fs.NArg() > 0 {
		path = fs.Arg(0)
	}
	chunks, err := newLoader(cfg, logger, debugMode).Load(context.Background(), path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load %s: %v\n", path, err)
		os.Exit(1)
	}
	_ = cli.WriteChunks(os.Stdout, chunks, format)
}

func runStatus() {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path (in-process mode)")
	serverURL := fs.String("server", defaultServerURL, "server URL; empty builds the knowledge base in-process")
	output := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(os.Args[2:])

	format := parseOutput(*output)
	ctx := context.Background()
	if *serverURL != "" {
		st, err := cli.NewClient(*serverURL, 10*time.Second).Status(ctx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to get status from %s: %v\n", *serverURL, err)
			fmt.Fprintln(os.Stderr, `Use --server "" to build the knowledge base in-process.`)
			os.Exit(1)
		}
		_ = cli.WriteStatus(os.Stdout, st, format)
		return
	}

	cfg, logger, _, _ := setup(*configPath, false)
	defer logger.Sync()
	components, err := initializeComponents(ctx, cfg, zap.NewNop(), false)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize components: %v\n", err)
		os.Exit(1)
	}
	defer components.Close()
	st, err := components.Status(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to get status: %v\n", err)
		os.Exit(1)
	}
	_ = cli.WriteStatus(os.Stdout, st, format)
}

// writeDefaultConfig writes the built-in defaults to path. An existing file is
// only replaced when force is set.
func writeDefaultConfig(path string, force bool) error {
	if _, err := os.Stat(path); err == nil && !force {
		return fmt.Errorf("%s already exists (use --force to overwrite)", path)
	}
	return config.Save(path, config.Default())
}

func runInit() {
	args := argsReorder(os.Args[2:])
	fs := flag.NewFlagSet("init", flag.ExitOnError)
	force := fs.Bool("force", false, "overwrite an existing config file")
	_ = fs.Parse(args)

	path := "config.yaml"
	if fs.NArg() > 0 {
		path = fs.Arg(0)
	}
	if err := writeDefaultConfig(path, *force); err != nil {
		fmt.Fprintf(os.Stderr, "Init failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Wrote %s\n", path)
}

func printUsage() {
	fmt.Printf(`kotae - Question answering over your documentation

Usage:
  kotae server [flags]             Build the knowledge base and start the HTTP server
  kotae ask [flags] <question>     Answer one question
  kotae chat [flags]               Interactive chat against a running server
  kotae chunks [flags] [path]      Show how a corpus is split into chunks
  kotae status [flags]             Show knowledge base and session status
  kotae init [--force] [path]      Write a default config (default: ./config.yaml)
  kotae version                    Show version
  kotae help                       Show this help

Server Flags:
  --config string    Config file path (default: %[1]s)
  --debug            Enable debug logging

Ask Flags:
  --config string    Config file path (in-process mode)
  --server string    Server URL. Empty (default) loads the corpus in-process.
  --session string   Session ID (default: "default")
  --output string    Output format: text or json (default: text)

Chat Flags:
  --server string    Server URL (default: %[2]s)
  --session string   Session ID (default: a new random session)
  --timeout duration Per-question timeout (default: 2m)

Chunks Flags:
  --config string    Config file path
  --output string    Output format: text or json (default: text)

Status Flags:
  --config string    Config file path (in-process mode)
  --server string    Server URL (default: %[2]s). Use --server "" to build in-process.
  --output string    Output format: text or json (default: text)

Supported document types: %[3]s

Examples:
  kotae server
  kotae ask what is the capital of France
  kotae chat --session docs
  kotae chunks ./docs
`, defaultConfigPath, defaultServerURL, strings.Join(extract.NewExtractor().Extensions(), ", "))
}
