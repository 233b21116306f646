package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/avelios/maestro/internal/daemon"
)

// statusCmd reports whether a daemon owns the configured data directory
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show daemon status",
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	pidFile := daemon.New(cfg.DataDir)

	if !pidFile.IsRunning() {
		fmt.Fprintln(out, "Status: stopped")
		return nil
	}

	pid, err := pidFile.Read()
	if err != nil {
		return err
	}

	fmt.Fprintln(out, "Status: running")
	fmt.Fprintf(out, "PID: %d\n", pid)
	if uptime, err := pidFile.Uptime(); err == nil {
		fmt.Fprintf(out, "Uptime: %s\n", formatDuration(uptime))
	}
	if cfg.Gateway.Enabled {
		fmt.Fprintf(out, "Gateway: ws://%s/ws\n", cfg.Gateway.Addr)
	}
	if cfg.Metrics.Enabled {
		fmt.Fprintf(out, "Metrics: http://%s/metrics\n", cfg.Metrics.Addr)
	}
	return nil
}

func formatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	h := d / time.Hour
	d -= h * time.Hour
	m := d / time.Minute
	d -= m * time.Minute
	s := d / time.Second

	if h > 0 {
		return fmt.Sprintf("%dh%dm%ds", h, m, s)
	}
	if m > 0 {
		return fmt.Sprintf("%dm%ds", m, s)
	}
	return fmt.Sprintf("%ds", s)
}
