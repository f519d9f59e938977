// CivicFlow: citizen infrastructure complaint workflow.
//
// Complaints are classified, risk-scored and routed to contractors as work
// orders whose deadlines are watched and escalated up the jurisdiction
// chain.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

// Build information (set via ldflags)
var (
	Version   = "dev"
	BuildTime = "unknown"
)

var (
	configPath string
	debugMode  bool
)

var rootCmd = &cobra.Command{
	Use:   "civicflow",
	Short: "Citizen infrastructure complaint workflow",
	Long: `CivicFlow takes citizen complaints about roads, water, power and other
civic infrastructure, classifies and prioritises them, and tracks the
resulting work orders against their SLAs.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to configuration file")
	rootCmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "Enable debug logging")

	rootCmd.AddCommand(
		serveCmd,
		consoleCmd,
		migrateCmd,
		seedCmd,
		backfillCmd,
		slaScanCmd,
		clusterCmd,
		briefingCmd,
		doctorCmd,
		versionCmd,
	)
}

func main() {
	// A missing .env is normal outside development.
	_ = godotenv.Load()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	go func() {
		<-ctx.Done()
		// Force exit if shutdown stalls.
		time.AfterFunc(15*time.Second, func() {
			slog.Error("forced shutdown after timeout")
			os.Exit(1)
		})
	}()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		slog.Error("command failed", "error", err)
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
