// ABOUTME: Entry point for the movilchat CLI
// ABOUTME: Command dispatch, configuration, logging, and backend wiring

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"

	"github.com/fatih/color"

	"github.com/movilplan/movilchat/internal/backend"
	"github.com/movilplan/movilchat/internal/config"
	"github.com/movilplan/movilchat/internal/session"
)

// Version is set by goreleaser at build time.
var version = "dev"

const banner = `
                       _ _      _           _
 _ __ ___   _____   __(_) | ___| |__   __ _| |_
| '_ ' _ \ / _ \ \ / /| | |/ __| '_ \ / _' | __|
| | | | | | (_) \ V / | | | (__| | | | (_| | |_
|_| |_| |_|\___/ \_/  |_|_|\___|_| |_|\__,_|\__|
`

// getConfigPath returns the path to the movilchat config file.
// Priority: MOVILCHAT_CONFIG env var > ./movilchat.yaml > XDG_CONFIG_HOME/movilchat/config.yaml
func getConfigPath() string {
	if envPath := os.Getenv("MOVILCHAT_CONFIG"); envPath != "" {
		return envPath
	}

	if _, err := os.Stat("movilchat.yaml"); err == nil {
		return "movilchat.yaml"
	}

	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "movilchat.yaml" // fallback
		}
		configDir = filepath.Join(homeDir, ".config")
	}

	return filepath.Join(configDir, "movilchat", "config.yaml")
}

func usage() {
	fmt.Println("Usage: movilchat <command>")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  init                      Create a config file interactively")
	fmt.Println("  login <email>             Sign in and store the session")
	fmt.Println("  register <email>          Create an account")
	fmt.Println("  logout                    Sign out and clear the stored session")
	fmt.Println("  me                        Show the signed-in user")
	fmt.Println("  plans [--todos]           List the plan catalog")
	fmt.Println("  contratar <plan-id>       Request a plan")
	fmt.Println("  mis-planes                List your contracted plans")
	fmt.Println("  cancelar <contract-id>    Cancel a pending request")
	fmt.Println("  conversations             List your chat conversations")
	fmt.Println("  chat <contract-id>        Open an interactive chat")
	fmt.Println("  profile                   Show or update your profile")
	fmt.Println()
	fmt.Println("Advisor commands:")
	fmt.Println("  pendientes                List pending contract requests")
	fmt.Println("  approve <contract-id>     Approve a pending request")
	fmt.Println("  reject <contract-id>      Reject a pending request")
	fmt.Println("  plan-image <plan-id> <file>  Upload a plan image")
}

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var err error
	switch os.Args[1] {
	case "init":
		err = runInit()
	case "login":
		err = runLogin(ctx)
	case "register":
		err = runRegister(ctx)
	case "logout":
		err = runLogout(ctx)
	case "me":
		err = runMe(ctx)
	case "plans":
		err = runPlans(ctx)
	case "contratar":
		err = runContratar(ctx)
	case "mis-planes":
		err = runMisPlanes(ctx)
	case "cancelar":
		err = runCancelar(ctx)
	case "conversations":
		err = runConversations(ctx)
	case "chat":
		err = runChat(ctx)
	case "profile":
		err = runProfile(ctx)
	case "pendientes":
		err = runPendientes(ctx)
	case "approve":
		err = runDecide(ctx, true)
	case "reject":
		err = runDecide(ctx, false)
	case "plan-image":
		err = runPlanImage(ctx)
	case "version":
		fmt.Println(version)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// app bundles the wired dependencies every command needs.
type app struct {
	cfg      *config.Config
	logger   *slog.Logger
	client   *backend.Client
	sessions *session.Store
}

func newApp() (*app, error) {
	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w (run 'movilchat init' to create one)", err)
	}

	logger := setupLogger(cfg.Logging)
	slog.SetDefault(logger)

	sessions, err := session.NewStore(cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("opening session store: %w", err)
	}

	client := backend.New(cfg.Backend.URL, cfg.Backend.AnonKey, logger)
	client.SetHeartbeatInterval(cfg.Chat.HeartbeatInterval)

	return &app{
		cfg:      cfg,
		logger:   logger,
		client:   client,
		sessions: sessions,
	}, nil
}

func (a *app) Close() {
	if err := a.sessions.Close(); err != nil {
		a.logger.Warn("closing session store", "error", err)
	}
}

// restoreSession installs the stored access token on the backend client,
// refreshing it first when it has expired.
func (a *app) restoreSession(ctx context.Context) (*session.Session, error) {
	sess, err := a.sessions.Load(ctx)
	if errors.Is(err, session.ErrNoSession) {
		return nil, fmt.Errorf("not signed in (run 'movilchat login <email>')")
	}
	if err != nil {
		return nil, err
	}

	if !sess.Expired() {
		a.client.SetAccessToken(sess.AccessToken)
		return sess, nil
	}

	a.logger.Debug("access token expired, refreshing", "user_id", sess.UserID)
	refreshed, err := a.client.RefreshSession(ctx, sess.RefreshToken)
	if err != nil {
		return nil, fmt.Errorf("session expired and refresh failed: %w (sign in again)", err)
	}

	sess = sessionFromBackend(refreshed)
	if err := a.sessions.Save(ctx, sess); err != nil {
		// The refreshed token still works for this invocation.
		a.logger.Warn("saving refreshed session", "error", err)
	}
	return sess, nil
}

func setupLogger(cfg config.LoggingConfig) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level: level,
	}

	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = &colorHandler{
			level: level,
		}
	}

	return slog.New(handler)
}

// colorHandler provides colorized log output with thread-safe writes.
type colorHandler struct {
	mu     sync.Mutex
	level  slog.Level
	attrs  []slog.Attr
	groups []string
}

func (h *colorHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level
}

func (h *colorHandler) Handle(_ context.Context, r slog.Record) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	var buf strings.Builder

	// Format timestamp
	buf.WriteString(color.HiBlackString(r.Time.Format("15:04:05") + " "))

	// Colorize level
	switch r.Level {
	case slog.LevelDebug:
		buf.WriteString(color.MagentaString("DBG "))
	case slog.LevelInfo:
		buf.WriteString(color.CyanString("INF "))
	case slog.LevelWarn:
		buf.WriteString(color.YellowString("WRN "))
	case slog.LevelError:
		buf.WriteString(color.New(color.FgRed, color.Bold).Sprint("ERR "))
	default:
		buf.WriteString("??? ")
	}

	// Print message
	buf.WriteString(r.Message)

	// Print handler-level attrs first (from WithAttrs)
	for _, a := range h.attrs {
		buf.WriteString(color.HiBlackString(" " + a.Key + "="))
		buf.WriteString(a.Value.String())
	}

	// Print record attrs
	r.Attrs(func(a slog.Attr) bool {
		buf.WriteString(color.HiBlackString(" " + a.Key + "="))
		buf.WriteString(a.Value.String())
		return true
	})

	buf.WriteString("\n")
	fmt.Fprint(os.Stderr, buf.String())
	return nil
}

func (h *colorHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	newAttrs := make([]slog.Attr, len(h.attrs), len(h.attrs)+len(attrs))
	copy(newAttrs, h.attrs)
	newAttrs = append(newAttrs, attrs...)
	return &colorHandler{
		level:  h.level,
		attrs:  newAttrs,
		groups: h.groups,
	}
}

func (h *colorHandler) WithGroup(name string) slog.Handler {
	newGroups := make([]string, len(h.groups), len(h.groups)+1)
	copy(newGroups, h.groups)
	newGroups = append(newGroups, name)
	return &colorHandler{
		level:  h.level,
		attrs:  h.attrs,
		groups: newGroups,
	}
}
