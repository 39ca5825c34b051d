package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/charlesng35/tidylink/internal/app"
	"github.com/charlesng35/tidylink/internal/client"
	"github.com/charlesng35/tidylink/internal/inbox"
	"github.com/charlesng35/tidylink/pkg/logger"
)

const usage = `usage: tidylink [flags] <command> [args]

commands:
  notifications [--page N]     list classified notifications
  unread                       print both unread counters
  mark-read <id> | --all       mark notifications read
  mark-read --message <id>     mark one chat message read
  chat [--mark-read] <chatId>  open a chat; stdin lines are sent as messages,
                               /read marks the chat read, /typing toggles typing
  watch [chatId...]            stream store events, pushed notifications and
                               scheduled reconciliation
`

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdin, os.Stdout); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// env is what every command receives.
type env struct {
	cfg     *app.Config
	session *inbox.Session
	stdin   io.Reader
	stdout  io.Writer
}

func run(ctx context.Context, args []string, stdin io.Reader, stdout io.Writer) error {
	fs := flag.NewFlagSet("tidylink", flag.ContinueOnError)
	fs.SetOutput(stdout)
	fs.Usage = func() { fmt.Fprint(stdout, usage) }

	var configPath, apiURL, token, logFormat string
	fs.StringVar(&configPath, "config", "", "Path to configuration directory or file")
	fs.StringVar(&apiURL, "api", "", "REST base URL (overrides client.api_base_url)")
	fs.StringVar(&token, "token", "", "Bearer token (overrides client.token)")
	fs.StringVar(&logFormat, "log-format", string(logger.FormatConsole), "Log encoding: console or json")

	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() == 0 {
		fs.Usage()
		return flag.ErrHelp
	}

	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	if apiURL != "" {
		cfg.Client.APIBaseURL = apiURL
	}
	if token != "" {
		cfg.Client.Token = token
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	if err := app.ConfigureLogging(cfg.Client.LogLevel, logger.Format(logFormat)); err != nil {
		return fmt.Errorf("configure logging: %w", err)
	}
	defer logger.Sync() // best effort

	api := client.New(cfg.Client.APIBaseURL, cfg.Client.Token, client.WithTimeout(cfg.Client.Timeout))
	session := inbox.NewSession(api, cfg.RealtimeClientConfig())
	defer func() { _ = session.Close() }()

	e := &env{cfg: cfg, session: session, stdin: stdin, stdout: stdout}

	name, rest := fs.Arg(0), fs.Args()[1:]
	switch name {
	case "notifications":
		return e.notifications(ctx, rest)
	case "unread":
		return e.unread(ctx)
	case "mark-read":
		return e.markRead(ctx, rest)
	case "chat":
		return e.chat(ctx, rest)
	case "watch":
		return e.watch(ctx, rest)
	}
	fs.Usage()
	return fmt.Errorf("unknown command %q", name)
}

func loadConfig(path string) (*app.Config, error) {
	if strings.TrimSpace(path) == "" {
		return app.LoadConfig()
	}
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("config path %q does not exist", path)
		}
		return nil, fmt.Errorf("stat config path: %w", err)
	}
	if info.IsDir() {
		return app.LoadConfig(path)
	}
	return app.LoadConfig(filepath.Dir(path))
}
