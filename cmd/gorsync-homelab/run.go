package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/fgeck/gorsync-homelab/internal/services/runner"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Execute one backup run",
	Long: `Execute one backup run:
1. Acquire the run lock for the destination
2. Wake-on-LAN (if configured)
3. rsync source to destination
4. Put the backup disk to sleep (if BACKUP_UUID is set)
5. SSH shutdown (if configured)
6. Send Telegram notification (if configured)
7. Append the report to the backup log
8. Export metrics (if configured)

The exit status is 0 whenever the run was carried out and logged, even if
rsync failed. It is non-zero if the configuration is invalid, rsync cannot
be started, another run holds the lock or the log cannot be written.`,
	RunE: runBackup,
}

func runBackup(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	log.Info().
		Str("source", cfg.Sync.Source).
		Str("destination", cfg.Sync.Destination).
		Str("log_file", cfg.LogFile).
		Msg("configuration loaded")

	// Set up context with signal handling
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	go func() {
		select {
		case sig := <-sigChan:
			log.Warn().Str("signal", sig.String()).Msg("received signal, stopping rsync")
			cancel()
		case <-ctx.Done():
		}
	}()

	runnerSvc := runner.New(log.Logger)
	result, err := runnerSvc.Run(ctx, *cfg)
	if err != nil {
		log.Error().Err(err).Msg("backup run aborted")
		return err
	}

	log.Info().
		Str("status", string(result.Report.Status)).
		Str("run_id", result.Report.RunID).
		Msg("backup run recorded")
	return nil
}
