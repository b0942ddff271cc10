package cli

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"

	"github.com/JamesPrial/tasksync/internal/config"
	"github.com/JamesPrial/tasksync/internal/mcpserver"
	"github.com/JamesPrial/tasksync/internal/syncengine"
	"github.com/JamesPrial/tasksync/internal/web"
)

func (a *app) serveCmd() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the JSON API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := a.loadConfig()
			if err != nil {
				return err
			}
			if addr == "" {
				addr = cfg.HTTP.Addr
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			logger := log.New(a.errOut, "[tasksync] ", log.LstdFlags)
			sess, err := OpenSession(ctx, cfg, logger)
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

			logger.Printf("serving %s on %s", sess.OwnerID(), addr)
			serveErr := web.NewServer(sess, cfg.Debug).Run(runCtx, addr)
			cancel()
			if err := <-runErr; err != nil && serveErr == nil {
				return err
			}
			return serveErr
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (default from config http.addr)")
	return cmd
}

func (a *app) mcpCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve the task tools over MCP on stdio",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := a.loadConfig()
			if err != nil {
				return err
			}
			return ServeMCP(cmd.Context(), cfg, log.New(a.errOut, "[mcp-server] ", log.LstdFlags))
		},
	}
}

// ServeMCP runs an MCP stdio server over a session for cfg's owner until
// stdin closes or the process is signalled.
func ServeMCP(ctx context.Context, cfg *config.Config, errLogger *log.Logger) error {
	sess, err := OpenSession(ctx, cfg, errLogger)
	if err != nil {
		return err
	}
	defer func() { _ = sess.Close() }()

	srv, err := mcpserver.NewServer(sess)
	if err != nil {
		return fmt.Errorf("failed to create MCP server: %w", err)
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	runErr := make(chan error, 1)
	go func() { runErr <- sess.Run(runCtx) }()

	serveErr := server.ServeStdio(srv, server.WithErrorLogger(errLogger))
	cancel()
	if err := <-runErr; err != nil && !errors.Is(err, syncengine.ErrNotAuthenticated) {
		errLogger.Printf("sync stopped: %v", err)
	}
	return serveErr
}
