package cmd

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/common-nighthawk/go-figure"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/Sara3/tesla-mcp/clients"
	"github.com/Sara3/tesla-mcp/internal/config"
	"github.com/Sara3/tesla-mcp/mcptools"
	"github.com/Sara3/tesla-mcp/server"
	"github.com/Sara3/tesla-mcp/sessions"
	"github.com/Sara3/tesla-mcp/sms"
	"github.com/Sara3/tesla-mcp/tesla"
	"github.com/Sara3/tesla-mcp/token"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the Tesla MCP gateway",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := config.New()
	displayAppName(cfg.GetAppName())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sessionRepo := sessions.NewInMemoryRepo()
	clientRepo := clients.NewInMemoryRepo()
	tokens := token.New(cfg.GetAuthCodeTimeout(), cfg.GetAccessTokenExpiry(), cfg.GetRefreshTokenExpiry())
	teslaService := tesla.NewService(sessionRepo, cfg.GetTeslaRegion(), cfg.GetBaseURL())
	cache := tesla.NewVehicleCache(teslaService, sessionRepo, cfg.GetVehicleCacheTTL())

	var smsClient *sms.Client
	if cfg.SmsEnabled() {
		smsClient = sms.NewClient(cfg.GetSmsAccountSID(), cfg.GetSmsAuthToken(), cfg.GetSmsFromNumber())
		log.Info().Msg("sms tools enabled")
	}

	factory := mcptools.NewFactory(teslaService, cache, sessionRepo, smsClient, cfg.GetBaseURL())

	srv, err := server.New(cfg, server.Deps{
		Sessions: sessionRepo,
		Clients:  clientRepo,
		Tokens:   tokens,
		Tesla:    teslaService,
		Cache:    cache,
		Factory:  factory,
	})
	if err != nil {
		return errors.Wrap(err, "[serve] building server")
	}

	// Background sweeps for idle sessions and expired grants. Both stop
	// with the signal context.
	sessionRepo.StartCleanup(ctx, cfg.GetCleanupInterval(), cfg.GetSessionTTL())
	tokens.StartCleanup(ctx, cfg.GetCleanupInterval())

	httpServer := &http.Server{
		Addr:              cfg.GetPort(),
		Handler:           srv,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info().Str("addr", httpServer.Addr).Str("baseURL", cfg.GetBaseURL()).Msg("server listening")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serveErr <- err
		}
	}()

	select {
	case err := <-serveErr:
		return errors.Wrap(err, "[serve] listening")
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("transport shutdown")
	}
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return errors.Wrap(err, "[serve] shutting down")
	}
	log.Info().Msg("server stopped")
	return nil
}

func displayAppName(appName string) {
	banner := figure.NewFigure(appName, "cybermedium", true)
	banner.Print()
	fmt.Println()
}
