package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kozaktomas/signet/internal/web"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the web server",
	Long: `Start the Signet HTTP API.
The API manages accounts, rooms and enrolled signatures, starts room
training jobs and answers recognition and verification requests.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().Int("port", 0, "Port to listen on (default WEB_PORT or 8080)")
	serveCmd.Flags().String("host", "", "Host to bind to (default WEB_HOST or 0.0.0.0)")
}

// resolveServeHostPort lets flags override the environment configuration.
func resolveServeHostPort(cmd *cobra.Command, defaultPort int, defaultHost string) (int, string) {
	port := mustGetInt(cmd, "port")
	host := mustGetString(cmd, "host")
	if port == 0 {
		port = defaultPort
	}
	if host == "" {
		host = defaultHost
	}
	return port, host
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, service, store, closeBackend, err := setup(context.Background(), true)
	if err != nil {
		return err
	}
	defer closeBackend()

	fmt.Printf("Model backend: %s, weights in %s\n", cfg.Model.Backend, cfg.Model.WeightsDir)
	port, host := resolveServeHostPort(cmd, cfg.Web.Port, cfg.Web.Host)

	server, err := web.NewServer(cfg, port, host, service, store)
	if err != nil {
		return fmt.Errorf("creating server: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		fmt.Println("\nShutting down...")

		shutdownCtx, shutdownCancel := context.WithTimeout(ctx, 30*time.Second)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			fmt.Printf("Error during shutdown: %v\n", err)
		}
	}()

	fmt.Printf("Starting Signet API on http://%s:%d\n", host, port)
	fmt.Println("Press Ctrl+C to stop")

	if err := server.Start(); err != nil {
		return fmt.Errorf("starting server: %w", err)
	}
	return nil
}
