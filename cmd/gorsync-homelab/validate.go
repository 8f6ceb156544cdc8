package main

import (
	"context"
	"fmt"
	"time"

	"github.com/fgeck/gorsync-homelab/internal/models"
	"github.com/fgeck/gorsync-homelab/internal/services/lock"
	"github.com/fgeck/gorsync-homelab/internal/services/rsync"
	"github.com/fgeck/gorsync-homelab/internal/services/ssh"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var probeSSH bool

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration",
	Long: `Validate the configuration without running a backup. Checks that the rsync
binary can be found and, with --probe-ssh, that the shutdown target accepts the
configured key.`,
	RunE: validateConfig,
}

func init() {
	validateCmd.Flags().BoolVar(&probeSSH, "probe-ssh", false, "connect to the SSH shutdown target and run a no-op command")
}

func validateConfig(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	binary, err := rsync.LookPath(cfg.Sync.Binary)
	if err != nil {
		log.Error().Err(err).Msg("rsync not usable")
		return err
	}

	// Print configuration summary
	fmt.Println("Configuration is valid!")
	fmt.Println()
	fmt.Println("Summary:")
	fmt.Printf("  Source: %s\n", rsync.NormalizeSource(cfg.Sync.Source))
	fmt.Printf("  Destination: %s\n", cfg.Sync.Destination)
	fmt.Printf("  rsync: %s\n", binary)
	fmt.Printf("  Log file: %s\n", cfg.LogFile)
	fmt.Printf("  Lock file: %s\n", lock.PathFor(cfg.LockDir, cfg.Sync.Destination))
	fmt.Println()
	fmt.Println("Optional Features:")
	fmt.Printf("  Disk sleep: %v\n", cfg.Disk != nil)
	fmt.Printf("  Wake-on-LAN: %v\n", cfg.WOL != nil)
	fmt.Printf("  SSH Shutdown: %v\n", cfg.SSHShutdown != nil)
	fmt.Printf("  Telegram: %s\n", telegramState(cfg.Telegram))
	fmt.Printf("  Metrics: %v\n", cfg.Metrics != nil)

	if cfg.Disk != nil {
		fmt.Println()
		fmt.Println("Disk Configuration:")
		fmt.Printf("  UUID: %s\n", cfg.Disk.UUID)
		fmt.Printf("  Use sudo: %v\n", cfg.Disk.UseSudo)
	}

	if cfg.WOL != nil {
		fmt.Println()
		fmt.Println("WOL Configuration:")
		fmt.Printf("  MAC Address: %s\n", cfg.WOL.MACAddress)
		fmt.Printf("  Broadcast IP: %s\n", cfg.WOL.BroadcastIP)
		if cfg.WOL.PollURL != "" {
			fmt.Printf("  Poll URL: %s\n", cfg.WOL.PollURL)
			fmt.Printf("  Timeout: %s\n", cfg.WOL.Timeout)
		}
	}

	if cfg.SSHShutdown != nil {
		fmt.Println()
		fmt.Println("SSH Shutdown Configuration:")
		fmt.Printf("  Host: %s\n", cfg.SSHShutdown.Host)
		fmt.Printf("  Port: %d\n", cfg.SSHShutdown.Port)
		fmt.Printf("  Username: %s\n", cfg.SSHShutdown.Username)
		fmt.Printf("  OS: %s\n", cfg.SSHShutdown.OS)
		fmt.Printf("  Shutdown Delay: %d minute(s)\n", cfg.SSHShutdown.ShutdownDelay)
		fmt.Printf("  Command: %s\n", ssh.ShutdownCommand(*cfg.SSHShutdown))
	}

	if cfg.Telegram != nil {
		fmt.Println()
		fmt.Println("Telegram Configuration:")
		fmt.Printf("  Chat ID: %s\n", valueOrMissing(cfg.Telegram.ChatID))
		if cfg.Telegram.BotToken != "" {
			fmt.Printf("  Bot Token: (configured)\n")
		} else {
			fmt.Printf("  Bot Token: (missing)\n")
		}
	}

	if cfg.Metrics != nil {
		fmt.Println()
		fmt.Println("Metrics Configuration:")
		fmt.Printf("  Textfile: %s\n", cfg.Metrics.TextfilePath)
	}

	if probeSSH && cfg.SSHShutdown != nil {
		ctx, cancel := context.WithTimeout(cmd.Context(), time.Minute)
		defer cancel()

		if err := probeTarget(ctx, ssh.New(log.Logger), *cfg.SSHShutdown); err != nil {
			log.Error().Err(err).Str("host", cfg.SSHShutdown.Host).Msg("SSH probe failed")
			return err
		}
		fmt.Println()
		fmt.Println("SSH probe: OK")
	}

	return nil
}

// probeTarget runs the no-op probe command on the shutdown target.
func probeTarget(ctx context.Context, svc ssh.Service, cfg models.SSHShutdownConfig) error {
	result, err := svc.Probe(ctx, cfg)
	if err != nil {
		return err
	}
	return result.Error
}

func telegramState(cfg *models.TelegramConfig) string {
	switch {
	case cfg.Enabled():
		return "enabled"
	case cfg != nil:
		return "disabled (BOT_TOKEN and CHAT_ID are both required)"
	default:
		return models.NotConfigured
	}
}

func valueOrMissing(s string) string {
	if s == "" {
		return "(missing)"
	}
	return s
}
