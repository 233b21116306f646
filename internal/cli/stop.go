package cli

import (
	"fmt"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/avelios/maestro/internal/daemon"
)

var stopTimeout int

// stopCmd shuts down a running daemon
var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop a running maestro daemon",
	Long: `Send SIGTERM to the daemon recorded in the PID file and wait for it
to shut down, escalating to SIGKILL after --timeout seconds.`,
	RunE: runStop,
}

func init() {
	stopCmd.Flags().IntVar(&stopTimeout, "timeout", 30, "seconds to wait before sending SIGKILL")
	rootCmd.AddCommand(stopCmd)
}

func runStop(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	pidFile := daemon.New(cfg.DataDir)

	if !pidFile.IsRunning() {
		fmt.Fprintln(out, "Daemon is not running")
		return nil
	}

	if err := pidFile.Signal(syscall.SIGTERM); err != nil {
		return fmt.Errorf("failed to signal daemon: %w", err)
	}

	deadline := time.Now().Add(time.Duration(stopTimeout) * time.Second)
	for time.Now().Before(deadline) {
		if !pidFile.IsRunning() {
			fmt.Fprintln(out, "Daemon stopped")
			pidFile.Release()
			return nil
		}
		time.Sleep(100 * time.Millisecond)
	}

	fmt.Fprintln(out, "Timeout reached, sending SIGKILL")
	if err := pidFile.Signal(syscall.SIGKILL); err != nil {
		return fmt.Errorf("failed to kill daemon: %w", err)
	}
	pidFile.Release()
	return nil
}
