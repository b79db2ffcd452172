// ABOUTME: Terminal chat front-end for a remote agent endpoint
// ABOUTME: Shows the conversation list and live message thread, and sends typed queries

package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"

	"github.com/2389/coven-chat/internal/agent"
	"github.com/2389/coven-chat/internal/auth"
	"github.com/2389/coven-chat/internal/changefeed"
	"github.com/2389/coven-chat/internal/chat"
	"github.com/2389/coven-chat/internal/config"
	"github.com/2389/coven-chat/internal/logging"
	"github.com/2389/coven-chat/internal/store"
)

// version is set at build time.
var version = "dev"

func main() {
	configPath := flag.String("config", "", "Config file (default: $COVEN_CHAT_CONFIG or ~/.config/coven/chat.yaml)")
	dbPath := flag.String("db", "", "SQLite database path (overrides config)")
	agentURL := flag.String("agent", "", "Agent endpoint URL (overrides config)")
	flag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if *dbPath != "" {
		cfg.Database.Path = *dbPath
	}
	if *agentURL != "" {
		cfg.Agent.URL = *agentURL
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, cfg, os.Stdin, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("\nGoodbye!")
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return config.LoadDefault()
	}
	return config.Load(path)
}

func run(ctx context.Context, cfg *config.Config, in io.Reader, out io.Writer) error {
	// Logs go to stderr so the conversation owns stdout
	logger := logging.Setup(cfg.Logging, os.Stderr)
	slog.SetDefault(logger)

	db, err := store.NewSQLiteStore(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer db.Close()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	bus := changefeed.NewBroadcaster(logger)
	defer bus.Close()

	poller := changefeed.NewPoller(db, bus, cfg.ChangeFeed.PollInterval, cfg.ChangeFeed.BatchSize, logger)
	go func() {
		if err := poller.Run(ctx); err != nil {
			logger.Error("change feed stopped", "error", err)
		}
	}()

	client := agent.NewClient(cfg.Agent.URL, cfg.Agent.Timeout, logger)
	session := chat.New(db, bus, client,
		chat.WithUserID(cfg.Agent.UserID),
		chat.WithLogger(logger),
	)

	r := &repl{
		ctx:     ctx,
		session: session,
		view:    newView(out),
		logger:  logger,
	}

	if cfg.Auth.JWTSecret != "" {
		tokens, err := auth.DefaultTokenFile()
		if err != nil {
			return err
		}
		r.accounts = auth.NewService(db, []byte(cfg.Auth.JWTSecret), logger, auth.WithSessionTTL(cfg.Auth.SessionTTL))
		r.tokens = tokens
		r.restoreSignIn()
	}

	printBanner(out, client.URL(), cfg.Database.Path, r.accounts != nil)

	go func() {
		if err := session.Run(ctx); err != nil {
			logger.Error("chat session stopped", "error", err)
		}
	}()
	go r.view.follow(ctx, session)

	return r.loop(in)
}

func printBanner(out io.Writer, agentURL, dbPath string, authEnabled bool) {
	cyan := color.New(color.FgCyan, color.Bold)
	gray := color.New(color.FgHiBlack)
	green := color.New(color.FgGreen)

	cyan.Fprintln(out, "coven-chat")
	gray.Fprintf(out, "version: %s\n", version)
	green.Fprint(out, "▶ ")
	fmt.Fprintf(out, "Agent:    %s\n", agentURL)
	green.Fprint(out, "▶ ")
	fmt.Fprintf(out, "Database: %s\n", dbPath)
	if authEnabled {
		green.Fprint(out, "▶ ")
		fmt.Fprintln(out, "Auth:     sign in with /signin <email> <password>")
	}
	fmt.Fprintln(out, "Type a message and press Enter. /help for commands. Ctrl+C to quit.")
	fmt.Fprintln(out)
}

// repl reads lines from the user and turns them into session operations.
type repl struct {
	ctx      context.Context
	session  *chat.Session
	view     *view
	logger   *slog.Logger
	accounts *auth.Service   // nil when auth is not configured
	tokens   *auth.TokenFile // nil when auth is not configured
	token    string
	lastList []string // session ids in the order /list printed them
}

func (r *repl) loop(in io.Reader) error {
	scanner := bufio.NewScanner(in)
	lines := make(chan string)
	readErr := make(chan error, 1)

	go func() {
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-r.ctx.Done():
				return
			}
		}
		if err := scanner.Err(); err != nil {
			readErr <- err
			return
		}
		readErr <- io.EOF
	}()

	for {
		r.view.prompt(r.session.Snapshot())

		select {
		case <-r.ctx.Done():
			return nil
		case err := <-readErr:
			if errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("reading input: %w", err)
		case line := <-lines:
			if quit := r.handle(line); quit {
				return nil
			}
		}
	}
}

// handle runs one input line and reports whether the user asked to quit.
func (r *repl) handle(line string) bool {
	cmd := parseCommand(line)

	switch cmd.name {
	case "":
		return false
	case "quit":
		return true
	case "help":
		r.view.help(r.accounts != nil)
		return false
	case "signup", "signin", "signout", "whoami":
		r.handleAuth(cmd)
		return false
	}

	if !r.signedIn() {
		r.view.notify(chat.Notification{Kind: chat.KindInfo, Title: "Sign in required", Description: "Use /signup or /signin first."})
		return false
	}

	switch cmd.name {
	case "list":
		st := r.session.Snapshot()
		r.lastList = r.view.conversations(st)
	case "switch":
		id, err := r.resolveSession(cmd.args)
		if err != nil {
			r.view.notify(chat.Notification{Kind: chat.KindError, Title: "Error", Description: err.Error()})
			return false
		}
		r.session.SwitchSession(id)
	case "new":
		r.session.StartNewConversation()
	case "refresh":
		r.session.RefreshConversations()
	case "send":
		r.session.SetInput(cmd.text)
		r.session.SendCurrent()
	default:
		r.view.notify(chat.Notification{Kind: chat.KindError, Title: "Unknown command", Description: "/" + cmd.name + " (try /help)"})
	}
	return false
}

// resolveSession accepts a 1-based index into the last /list output or a raw session id.
func (r *repl) resolveSession(args []string) (string, error) {
	if len(args) != 1 {
		return "", errors.New("usage: /switch <number|session-id>")
	}
	return pickSession(args[0], r.lastList)
}

func (r *repl) signedIn() bool {
	return r.accounts == nil || r.token != ""
}

func (r *repl) restoreSignIn() {
	token, err := r.tokens.Load()
	if err != nil {
		r.logger.Warn("could not read saved token", "error", err)
		return
	}
	if token == "" {
		return
	}
	ctx, cancel := context.WithTimeout(r.ctx, 5*time.Second)
	defer cancel()
	if _, err := r.accounts.Verify(ctx, token); err != nil {
		r.logger.Info("saved token no longer valid", "error", err)
		return
	}
	r.token = token
}

func (r *repl) handleAuth(cmd command) {
	if r.accounts == nil {
		r.view.notify(chat.Notification{Kind: chat.KindInfo, Title: "Auth disabled", Description: "Set auth.jwt_secret in the config to enable accounts."})
		return
	}

	ctx, cancel := context.WithTimeout(r.ctx, 10*time.Second)
	defer cancel()

	switch cmd.name {
	case "signup":
		if len(cmd.args) != 2 {
			r.view.notify(chat.Notification{Kind: chat.KindError, Title: "Error", Description: "usage: /signup <email> <password>"})
			return
		}
		if _, err := r.accounts.SignUp(ctx, cmd.args[0], cmd.args[1]); err != nil {
			r.view.notify(chat.NotificationFor(&chat.AuthError{Op: "sign up", Err: err}))
			return
		}
		r.view.notify(chat.Notification{Kind: chat.KindSuccess, Title: "Account created", Description: "You can now sign in."})

	case "signin":
		if len(cmd.args) != 2 {
			r.view.notify(chat.Notification{Kind: chat.KindError, Title: "Error", Description: "usage: /signin <email> <password>"})
			return
		}
		token, err := r.accounts.SignIn(ctx, cmd.args[0], cmd.args[1])
		if err != nil {
			r.view.notify(chat.NotificationFor(&chat.AuthError{Op: "sign in", Err: err}))
			return
		}
		r.token = token
		if err := r.tokens.Save(token); err != nil {
			r.logger.Warn("could not save token", "error", err)
		}
		r.view.notify(chat.Notification{Kind: chat.KindSuccess, Title: "Welcome back!", Description: "Successfully logged in."})

	case "signout":
		if r.token == "" {
			return
		}
		if err := r.accounts.SignOut(ctx, r.token); err != nil {
			r.view.notify(chat.NotificationFor(&chat.AuthError{Op: "sign out", Err: err}))
			return
		}
		r.token = ""
		if err := r.tokens.Clear(); err != nil {
			r.logger.Warn("could not remove token", "error", err)
		}
		r.session.StartNewConversation()
		r.view.notify(chat.Notification{Kind: chat.KindSuccess, Title: "Signed out", Description: ""})

	case "whoami":
		if r.token == "" {
			r.view.notify(chat.Notification{Kind: chat.KindInfo, Title: "Not signed in", Description: ""})
			return
		}
		userID, err := r.accounts.Verify(ctx, r.token)
		if err != nil {
			r.token = ""
			r.view.notify(chat.NotificationFor(&chat.AuthError{Op: "verify", Err: err}))
			return
		}
		r.view.notify(chat.Notification{Kind: chat.KindInfo, Title: "Signed in", Description: "user " + userID})
	}
}

