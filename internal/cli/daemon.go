package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/opgate/opgate/internal/daemon"
)

var (
	daemonPoll         bool
	daemonPollInterval time.Duration
	daemonWorkers      int
)

func init() {
	rootCmd.AddCommand(daemonCmd)
	daemonCmd.Flags().BoolVar(&daemonPoll, "poll", false, "Poll the inbox instead of using filesystem notifications")
	daemonCmd.Flags().DurationVar(&daemonPollInterval, "poll-interval", 5*time.Second, "Polling interval when --poll is set")
	daemonCmd.Flags().IntVar(&daemonWorkers, "workers", 0, "Worker pool size (default from config)")
}

var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Watch the inbox directory and process submissions",
	Long:  "Runs the spool daemon: submissions dropped into the inbox directory are\ngated through oversight and their results written to the outbox. A PID file\nprevents duplicate instances.",
	RunE:  runDaemon,
}

func runDaemon(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd.Context(), ackExecutor)
	if err != nil {
		return err
	}
	defer a.Close()

	workers := a.cfg.Daemon.Workers
	if daemonWorkers > 0 {
		workers = daemonWorkers
	}

	dirs := daemon.DirConfig{
		Inbox:  a.cfg.Daemon.InboxDir,
		Outbox: a.cfg.Daemon.OutboxDir,
		State:  filepath.Join(filepath.Dir(a.cfg.Daemon.InboxDir), "state"),
	}

	d, err := daemon.New(daemon.Config{
		Dirs:         dirs,
		Workers:      workers,
		PollMode:     daemonPoll,
		PollInterval: daemonPollInterval,
	}, a.orch, a.logger)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		fmt.Fprintln(os.Stderr, "\nShutting down daemon...")
		cancel()
	}()

	fmt.Fprintf(os.Stderr, "opgate daemon watching %s\n", dirs.Inbox)
	return d.Run(ctx)
}
