package cmd

import (
	"context"
	stderrors "errors"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"statement-reconciliation-service/internal/api"
	"statement-reconciliation-service/pkg/errors"
	"statement-reconciliation-service/pkg/logger"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the reconciliation HTTP API",
	Long: `Serve exposes the reconciliation operations over JSON/HTTP. Requests
are expected to come through the authentication gateway, which sets the
X-Company-ID and X-User-ID headers.

Examples:
  reconciler serve
  reconciler serve --addr :9000 --store memory`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().String("addr", "", "listen address (default from http.addr)")
	_ = viper.BindPFlag("http.addr", serveCmd.Flags().Lookup("addr"))
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log := logger.WithComponent("serve")
	svc, st, err := newService(ctx, current, log)
	if err != nil {
		return err
	}
	defer st.Close()

	server := &http.Server{
		Addr:         current.HTTP.Addr,
		Handler:      api.NewServer(svc, logger.GetGlobalLogger()).Router(),
		ReadTimeout:  current.HTTP.ReadTimeout,
		WriteTimeout: current.HTTP.WriteTimeout,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.WithFields(logger.Fields{
			"addr":  current.HTTP.Addr,
			"store": string(current.Store.Kind),
		}).Info("Listening")
		serveErr <- server.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if !stderrors.Is(err, http.ErrServerClosed) {
			return errors.StorageError(errors.CodeConnectionFailed, "listen on "+current.HTTP.Addr, err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), current.HTTP.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return errors.InternalError(errors.CodeUnexpectedError, "shutdown", err)
	}
	log.Info("Server stopped")
	return nil
}
