package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ppiankov/crisisfeed/internal/api"
)

var (
	serveRequestTimeout time.Duration
	servePublish        bool
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the aggregation API over HTTP",
	Long: `Serve exposes both pipelines over HTTP:

  GET /v1/updates?tags=flood&location=Houston,%20TX
  GET /v1/posts?tags=flood&sources=bluesky&maxResults=20
  GET /healthz
  GET /metrics   (Prometheus)`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("addr", "", "listen address (default: server.addr)")
	serveCmd.Flags().DurationVar(&serveRequestTimeout, "request-timeout", 90*time.Second, "per-request aggregation timeout")
	serveCmd.Flags().BoolVar(&servePublish, "publish", true, "publish results when Kafka brokers are configured")

	_ = viper.BindPFlag("server.addr", serveCmd.Flags().Lookup("addr"))
}

func runServe(cmd *cobra.Command, args []string) error {
	env, err := newRuntime(true, servePublish)
	if err != nil {
		return err
	}
	defer func() { _ = env.svc.Close() }()

	srv := api.NewServer(env.cfg.Server.Addr, env.svc, serveRequestTimeout, env.logger)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	env.logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), env.cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
