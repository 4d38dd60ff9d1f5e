package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/tbxark/stepform/config"
	"github.com/tbxark/stepform/gateway/httpapi"
	"github.com/tbxark/stepform/gateway/sqlite"
)

func serveCmd(app *config.App) *cobra.Command {
	var addr, publicURL string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Expose the draft database over HTTP for remote wizards",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			store, err := sqlite.Open(app.Database, uploadsURL(publicURL, addr))
			if err != nil {
				return err
			}
			defer store.Close()

			reg := prometheus.NewRegistry()
			reg.MustRegister(collectors.NewGoCollector())
			mux := http.NewServeMux()
			mux.Handle("/api/", http.StripPrefix("/api", httpapi.NewHandler(store, slog.Default())))
			mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
			return listen(ctx, addr, mux)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:8480", "Listen address")
	cmd.Flags().StringVar(&publicURL, "public-url", "", "External base URL of the API, used in upload links (default http://<addr>/api)")
	return cmd
}

// uploadsURL is the base of the upload links handed out by serve. Without a
// public URL it points at the listen address, with a wildcard host replaced
// by localhost.
func uploadsURL(publicURL, addr string) string {
	if publicURL == "" {
		host, port, err := net.SplitHostPort(addr)
		if err == nil && (host == "" || host == "0.0.0.0" || host == "::") {
			addr = net.JoinHostPort("localhost", port)
		}
		publicURL = "http://" + addr + "/api"
	}
	return strings.TrimSuffix(publicURL, "/") + "/uploads"
}

// listen serves h on addr until ctx is done.
func listen(ctx context.Context, addr string, h http.Handler) error {
	srv := &http.Server{Addr: addr, Handler: h, ReadHeaderTimeout: 10 * time.Second}
	errCh := make(chan error, 1)
	go func() {
		slog.Info("Listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()
	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
