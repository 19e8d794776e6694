package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/dmitrijs2005/gophnotes/internal/buildinfo"
	"github.com/dmitrijs2005/gophnotes/internal/client/client"
	"github.com/dmitrijs2005/gophnotes/internal/client/config"
	"github.com/dmitrijs2005/gophnotes/internal/client/services"
	"github.com/dmitrijs2005/gophnotes/internal/keycache"
	"github.com/dmitrijs2005/gophnotes/internal/logging"
)

type Mode string

const (
	ModeOffline  Mode = "offline"
	ModeOnline   Mode = "online"
	ModeDisabled Mode = "disabled"
)

const program = "gophnotes-cli"

type App struct {
	config   *config.Config
	vault    services.VaultService
	notebook services.NotebookService
	logger   logging.Logger
	reader   *bufio.Reader
	out      io.Writer

	mu        sync.Mutex
	mode      Mode
	unlocked  bool
	stopWatch context.CancelFunc
	watchDone chan struct{}
}

// NewApp opens the local store, prepares the API client and wires the
// services. The server is not contacted until the first command needs it.
func NewApp(ctx context.Context, c *config.Config, logger logging.Logger) (*App, error) {
	db, err := client.OpenLocalStore(ctx, c.DataDir, c.DatabaseFile)
	if err != nil {
		return nil, fmt.Errorf("error initializing database: %w", err)
	}

	apiClient, err := client.NewGophNotesClient(c.ServerEndpointAddr, buildinfo.UserAgent(program))
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	vault := services.NewVaultService(apiClient, db, keycache.New(), logger)
	notebook := services.NewNotebookService(apiClient, db, vault, c.HistoryLimit, logger)

	return &App{
		config:   c,
		vault:    vault,
		notebook: notebook,
		logger:   logger,
		reader:   bufio.NewReader(os.Stdin),
		out:      os.Stdout,
	}, nil
}

// Run blocks in the REPL until the user exits or ctx is done.
func (a *App) Run(ctx context.Context) {
	defer func() {
		a.stopWatching()
		if err := a.vault.Close(context.Background()); err != nil {
			a.logger.Warn(ctx, "close failed", "error", err)
		}
	}()

	fmt.Fprintln(a.out, "Welcome to GophNotes CLI (type 'help' for commands)")

	go a.StartOnlineStatusWatcher(ctx, a.config.OnlineCheckInterval)

	runREPL(ctx, a, a.status, a.reader)
}

func (a *App) isUnlocked() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.unlocked
}

func (a *App) setUnlocked(v bool) {
	a.mu.Lock()
	a.unlocked = v
	a.mu.Unlock()
}

func (a *App) currentMode() Mode {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.mode
}

// setMode records mode and reports whether it changed.
func (a *App) setMode(mode Mode) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.mode == mode {
		return false
	}
	a.mode = mode
	return true
}

func (a *App) status() string {
	s := ""
	if u := a.vault.Username(); u != "" {
		s = u + " "
		if !a.isUnlocked() {
			s += "locked "
		}
	}
	if m := a.currentMode(); m != "" {
		s += string(m)
	}
	if s != "" {
		s = fmt.Sprintf("(%s)", s)
	}
	return s
}

// withTimeout bounds one interactive command.
func (a *App) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if a.config == nil || a.config.RequestTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, a.config.RequestTimeout)
}

// StartOnlineStatusWatcher pings the server every interval and flips the
// mode. Coming back online with an unlocked vault refreshes the notes and
// resumes the change stream.
func (a *App) StartOnlineStatusWatcher(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
			err := a.vault.Ping(pingCtx)
			cancel()

			if err != nil {
				if a.currentMode() == ModeOnline && a.setMode(ModeOffline) {
					a.logger.Info(ctx, "switched mode", "mode", ModeOffline)
				}
				continue
			}
			if a.currentMode() == ModeOffline && a.setMode(ModeOnline) {
				a.logger.Info(ctx, "switched mode", "mode", ModeOnline)
				if a.isUnlocked() {
					a.resumeOnline(ctx)
				}
			}

		case <-ctx.Done():
			return
		}
	}
}

func (a *App) resumeOnline(ctx context.Context) {
	rctx, cancel := a.withTimeout(ctx)
	defer cancel()
	if err := a.notebook.Refresh(rctx); err != nil {
		a.logger.Warn(ctx, "refresh after reconnect failed", "error", err)
		return
	}
	a.startWatching(ctx)
}

// startWatching follows server changes in the background until
// stopWatching is called.
func (a *App) startWatching(ctx context.Context) {
	a.mu.Lock()
	if a.stopWatch != nil {
		a.mu.Unlock()
		return
	}
	wctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	a.stopWatch = cancel
	a.watchDone = done
	a.mu.Unlock()

	go func() {
		defer close(done)
		defer func() {
			a.mu.Lock()
			if a.watchDone == done {
				a.stopWatch = nil
				a.watchDone = nil
			}
			a.mu.Unlock()
			cancel()
		}()

		err := a.notebook.Watch(wctx, func() {
			fmt.Fprintln(a.out, "\nSessions of your account changed. Type 'sessions' to review.")
		})
		if err == nil || wctx.Err() != nil {
			return
		}
		if errors.Is(err, client.ErrUnauthorized) {
			fmt.Fprintln(a.out, "\nThis session was ended on the server. Log in again.")
			return
		}
		a.logger.Warn(ctx, "change stream stopped", "error", err)
	}()
}

// stopWatching cancels the change stream and waits until its goroutine,
// including any refresh it started, has returned.
func (a *App) stopWatching() {
	a.mu.Lock()
	stop, done := a.stopWatch, a.watchDone
	a.stopWatch, a.watchDone = nil, nil
	a.mu.Unlock()
	if stop != nil {
		stop()
	}
	if done != nil {
		<-done
	}
}
