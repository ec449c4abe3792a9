package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"notesim/internal/adapter/mcp"
	"notesim/internal/usecase"
)

var (
	servePort        int
	servePrintClient bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the MCP server",
	Long: `Serve semantic_search_text, semantic_search_note and fetch_note over
JSON-RPC at http://127.0.0.1:<port>/mcp until interrupted.

With refresh.auto_on_startup set, one bulk refresh runs in the background once
the server is listening and the vault has been scanned.

Examples:
  notesim serve
  notesim serve --port 8080
  notesim serve --print-client-config`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().IntVar(&servePort, "port", 0, "port to listen on (default from config)")
	serveCmd.Flags().BoolVar(&servePrintClient, "print-client-config", false, "print the MCP client config block and exit")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := GetConfig()
	port := cfg.Server.Port
	if servePort > 0 {
		port = servePort
	}

	srvCfg := mcp.DefaultServerConfig()
	srvCfg.Port = port

	if servePrintClient {
		output, err := json.MarshalIndent(mcp.ClientConfigFor(srvCfg.Name, port, cfg.Server.Enabled), "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(output))
		return nil
	}
	if !cfg.Server.Enabled {
		return fmt.Errorf("server is disabled; set server.enabled in the config")
	}

	a, err := openApp(cfg, GetRootDir())
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger := slog.Default()
	server := mcp.NewServer(a.query, srvCfg, logger)
	if err := server.Start(); err != nil {
		return err
	}
	fmt.Printf("MCP server listening on http://%s/mcp\n", server.Addr())

	var guard *usecase.StartupGuard
	if cfg.Refresh.AutoOnStartup {
		guard = usecase.NewStartupGuard(func() {
			report, err := a.refresh.RefreshAll(ctx, false, nil)
			if err != nil {
				logger.Error("startup refresh failed", "error", err)
				return
			}
			logger.Info("startup refresh finished", "run", report.RunID, "added", report.Added, "updated", report.Updated)
		})
		// Either signal may arrive first; the guard runs the refresh once.
		guard.Trigger()
		go func() {
			if _, err := a.vault.List(ctx); err != nil {
				logger.Warn("vault scan failed", "error", err)
				return
			}
			guard.Trigger()
		}()
	}

	<-ctx.Done()
	fmt.Println("\nShutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Stop(shutdownCtx); err != nil {
		return err
	}
	if guard != nil {
		select {
		case <-guard.Done():
		case <-shutdownCtx.Done():
		}
	}
	return nil
}
