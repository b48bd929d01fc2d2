package cli

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/custodia-labs/lorekeeper/internal/adapters/driving/mcp"
	"github.com/custodia-labs/lorekeeper/internal/logger"
)

var (
	serveAddr       string
	serveManuscript string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run background tasks and the MCP server",
	Long: `Runs until interrupted:
  - the scheduler, which fails timed-out jobs and optionally analyses
    changed chapters
  - the MCP server over HTTP
  - with --manuscript, a watch that re-imports edited chapters`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "127.0.0.1:7331", "MCP HTTP listen address (empty disables MCP)")
	serveCmd.Flags().StringVar(&serveManuscript, "manuscript", "", "manuscript directory to import and watch")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	if scheduler == nil {
		return errors.New("scheduler not configured")
	}
	project, err := projectID()
	if err != nil {
		return err
	}

	logger.SetTimestamps(true)
	defer logger.SetTimestamps(false)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	if schedulerConfig.Enabled {
		g.Go(func() error {
			return scheduler.Start(ctx)
		})
		defer func() {
			if err := scheduler.Stop(); err != nil {
				logger.Warn("scheduler stop: %v", err)
			}
		}()
	}

	if serveAddr != "" {
		server, err := newMCPServer()
		if err != nil {
			return err
		}
		g.Go(func() error {
			return server.RunHTTP(ctx, serveAddr)
		})
		cmd.Printf("MCP server listening on http://%s%s\n", serveAddr, mcp.Endpoint)
	}

	if serveManuscript != "" {
		if openManuscript == nil {
			return errors.New("manuscript import not configured")
		}
		svc, closeSource, err := openManuscript(project, serveManuscript)
		if err != nil {
			return fmt.Errorf("opening manuscript: %w", err)
		}
		defer func() {
			if closeSource != nil {
				_ = closeSource()
			}
		}()
		if _, err := svc.Import(ctx, project); err != nil {
			return fmt.Errorf("initial import: %w", err)
		}
		g.Go(func() error {
			err := svc.Watch(ctx, project)
			if ctx.Err() != nil {
				return nil
			}
			return err
		})
		cmd.Printf("Watching %s\n", serveManuscript)
	}

	cmd.Println("Press Ctrl+C to stop.")
	<-ctx.Done()
	stop()

	if err := g.Wait(); err != nil && !errors.Is(err, ctx.Err()) {
		return err
	}
	return nil
}
