package cli

import (
	"context"
	"fmt"
	"io"
	"log"

	"github.com/JamesPrial/tasksync/internal/config"
	"github.com/JamesPrial/tasksync/internal/prefs"
	"github.com/JamesPrial/tasksync/internal/progress"
	"github.com/JamesPrial/tasksync/internal/remote"
	"github.com/JamesPrial/tasksync/internal/session"
	"github.com/JamesPrial/tasksync/internal/syncengine"
)

// OpenSession opens the stores cfg names and builds a session for its owner.
// The caller must Close the session.
func OpenSession(ctx context.Context, cfg *config.Config, logger *log.Logger) (*session.Session, error) {
	store, err := remote.NewStore(ctx, cfg.StoreOptions())
	if err != nil {
		return nil, err
	}

	var progressStore progress.Store
	if cfg.Progress.Enabled {
		var gs *progress.GormStore
		if cfg.Progress.PostgresURL != "" {
			gs, err = progress.NewPostgresGormStore(cfg.Progress.PostgresURL)
		} else {
			gs, err = progress.NewGormStore(cfg.Progress.DBPath)
		}
		if err != nil {
			_ = store.Close()
			return nil, err
		}
		progressStore = gs
	}

	var prefStore *prefs.FileStore
	if cfg.Prefs.Dir != "" {
		prefStore = prefs.NewFileStore(cfg.Prefs.Dir)
		prefStore.Logger = logger
	}

	sess, err := session.New(session.StaticIdentity(cfg.OwnerID), session.Options{
		Store:    store,
		Progress: progressStore,
		Prefs:    prefStore,
		Logger:   logger,
	})
	if err != nil {
		_ = store.Close()
		if progressStore != nil {
			_ = progressStore.Close()
		}
		return nil, err
	}
	return sess, nil
}

func (a *app) logger(cfg *config.Config) *log.Logger {
	if a.verbose || cfg.Debug {
		return log.New(a.errOut, "[tasksync] ", log.LstdFlags)
	}
	return log.New(io.Discard, "", 0)
}

// withSession opens a session, keeps it subscribed while fn runs and waits
// for the first snapshot before calling fn.
func (a *app) withSession(ctx context.Context, fn func(ctx context.Context, sess *session.Session) error) error {
	cfg, err := a.loadConfig()
	if err != nil {
		return err
	}

	sess, err := OpenSession(ctx, cfg, a.logger(cfg))
	if err != nil {
		return err
	}
	defer func() { _ = sess.Close() }()

	if sess.OwnerID() == "" {
		return fmt.Errorf("%w: set owner_id in the config or pass --owner", syncengine.ErrNotAuthenticated)
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	runErr := make(chan error, 1)
	go func() { runErr <- sess.Run(runCtx) }()

	waitCtx, waitCancel := context.WithTimeout(ctx, a.timeout)
	defer waitCancel()
	if err := sess.WaitSynced(waitCtx); err != nil {
		select {
		case rerr := <-runErr:
			if rerr != nil {
				return rerr
			}
		default:
		}
		return fmt.Errorf("failed to sync within %v: %w", a.timeout, err)
	}

	return fn(ctx, sess)
}
