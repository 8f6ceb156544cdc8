// Package config provides configuration loading from the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/fgeck/gorsync-homelab/internal/models"
	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// Environment variable names. Viper resolves each key against the upper-cased
// environment variable of the same name.
const (
	keySource      = "backup_source"
	keyDestination = "backup_destination"
	keyUUID        = "backup_uuid"
	keyLogFile     = "backup_log_file"
	keyRsyncPath   = "backup_rsync_path"
	keyDiskSudo    = "backup_disk_sudo"
	keyLockDir     = "backup_lock_dir"
	keyMetricsFile = "backup_metrics_file"
	keyBotToken    = "bot_token"
	keyChatID      = "chat_id"

	keyWOLMAC           = "wol_mac_address"
	keyWOLBroadcast     = "wol_broadcast_ip"
	keyWOLPollURL       = "wol_poll_url"
	keyWOLTimeout       = "wol_timeout"
	keyWOLPollInterval  = "wol_poll_interval"
	keyWOLStabilizeWait = "wol_stabilize_wait"

	keySSHHost    = "ssh_shutdown_host"
	keySSHPort    = "ssh_shutdown_port"
	keySSHUser    = "ssh_shutdown_user"
	keySSHKeyPath = "ssh_shutdown_key_path"
	keySSHDelay   = "ssh_shutdown_delay"
	keySSHOS      = "ssh_shutdown_os"
)

var allKeys = []string{
	keySource, keyDestination, keyUUID, keyLogFile, keyRsyncPath, keyDiskSudo,
	keyLockDir, keyMetricsFile, keyBotToken, keyChatID,
	keyWOLMAC, keyWOLBroadcast, keyWOLPollURL, keyWOLTimeout, keyWOLPollInterval, keyWOLStabilizeWait,
	keySSHHost, keySSHPort, keySSHUser, keySSHKeyPath, keySSHDelay, keySSHOS,
}

// Parser handles configuration parsing.
type Parser struct {
	v *viper.Viper
}

// NewParser creates a new configuration parser bound to the process environment.
func NewParser() *Parser {
	v := viper.New()
	v.SetConfigType("env")
	v.AutomaticEnv()
	for _, key := range allKeys {
		// BindEnv makes AllKeys and IsSet aware of keys that only exist in the environment.
		_ = v.BindEnv(key)
	}
	v.SetDefault(keyRsyncPath, "rsync")
	v.SetDefault(keyDiskSudo, true)
	return &Parser{v: v}
}

// LoadEnv loads configuration from environment variables only.
func (p *Parser) LoadEnv() (*models.BackupConfig, error) {
	return p.parse()
}

// LoadFile loads configuration from a dotenv file. Variables set in the
// environment take precedence over the file.
func (p *Parser) LoadFile(path string) (*models.BackupConfig, error) {
	p.v.SetConfigFile(path)
	p.v.SetConfigType("env")

	if err := p.v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading env file: %w", err)
	}

	return p.parse()
}

// LoadReader loads configuration from dotenv content (useful for testing).
func (p *Parser) LoadReader(content string) (*models.BackupConfig, error) {
	if err := p.v.ReadConfig(strings.NewReader(content)); err != nil {
		return nil, fmt.Errorf("reading env content: %w", err)
	}

	return p.parse()
}

//nolint:gocognit // parsing config requires checking many fields
func (p *Parser) parse() (*models.BackupConfig, error) {
	cfg := &models.BackupConfig{
		Sync: models.SyncSettings{
			Source:      p.getString(keySource),
			Destination: p.getString(keyDestination),
			Binary:      p.getString(keyRsyncPath),
		},
		LogFile: p.getString(keyLogFile),
		LockDir: p.getString(keyLockDir),
	}

	if cfg.Sync.Source == "" {
		return nil, fmt.Errorf("BACKUP_SOURCE is required")
	}
	if cfg.Sync.Destination == "" {
		return nil, fmt.Errorf("BACKUP_DESTINATION is required")
	}
	if cfg.LogFile == "" {
		return nil, fmt.Errorf("BACKUP_LOG_FILE is required")
	}
	if cfg.LockDir == "" {
		cfg.LockDir = os.TempDir()
	}

	if uuid := p.getString(keyUUID); uuid != "" {
		cfg.Disk = &models.DiskConfig{
			UUID:    uuid,
			UseSudo: p.v.GetBool(keyDiskSudo),
		}
	}

	// Telegram stays populated when only one credential is present so that
	// validate can report it; Enabled() gates delivery.
	token, chatID := p.getString(keyBotToken), p.getString(keyChatID)
	if token != "" || chatID != "" {
		cfg.Telegram = &models.TelegramConfig{
			BotToken: token,
			ChatID:   chatID,
		}
	}

	if path := p.getString(keyMetricsFile); path != "" {
		cfg.Metrics = &models.MetricsConfig{TextfilePath: path}
	}

	// Parse optional WOL config.
	if mac := p.getString(keyWOLMAC); mac != "" { //nolint:nestif // config parsing with defaults
		cfg.WOL = &models.WOLConfig{
			MACAddress:    mac,
			BroadcastIP:   p.getString(keyWOLBroadcast),
			PollURL:       p.getString(keyWOLPollURL),
			Timeout:       p.v.GetDuration(keyWOLTimeout),
			PollInterval:  p.v.GetDuration(keyWOLPollInterval),
			StabilizeWait: p.v.GetDuration(keyWOLStabilizeWait),
		}

		if cfg.WOL.BroadcastIP == "" {
			cfg.WOL.BroadcastIP = "255.255.255.255"
		}
		if cfg.WOL.Timeout == 0 {
			cfg.WOL.Timeout = 5 * time.Minute
		}
		if cfg.WOL.PollInterval == 0 {
			cfg.WOL.PollInterval = 10 * time.Second
		}
		if cfg.WOL.StabilizeWait == 0 {
			cfg.WOL.StabilizeWait = 10 * time.Second
		}
	}

	// Parse optional SSH shutdown config.
	if host := p.getString(keySSHHost); host != "" {
		cfg.SSHShutdown = &models.SSHShutdownConfig{
			Host:          host,
			Port:          p.v.GetInt(keySSHPort),
			Username:      p.getString(keySSHUser),
			KeyPath:       p.getString(keySSHKeyPath),
			ShutdownDelay: p.v.GetInt(keySSHDelay),
			OS:            p.getString(keySSHOS),
		}

		if cfg.SSHShutdown.Port == 0 {
			cfg.SSHShutdown.Port = 22
		}
		if cfg.SSHShutdown.Username == "" {
			cfg.SSHShutdown.Username = "root"
		}
		if cfg.SSHShutdown.KeyPath == "" {
			return nil, fmt.Errorf("SSH_SHUTDOWN_KEY_PATH is required when SSH_SHUTDOWN_HOST is set")
		}
		if cfg.SSHShutdown.ShutdownDelay == 0 {
			cfg.SSHShutdown.ShutdownDelay = 1
		}
		if cfg.SSHShutdown.OS == "" {
			cfg.SSHShutdown.OS = "linux"
		}
	}

	return cfg, nil
}

// getString returns a trimmed value with ${VAR} references expanded.
func (p *Parser) getString(key string) string {
	return strings.TrimSpace(os.ExpandEnv(p.v.GetString(key)))
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate performs validation on the loaded configuration.
func Validate(cfg *models.BackupConfig) error {
	if cfg == nil {
		return fmt.Errorf("configuration is nil")
	}

	if err := validate.Struct(cfg); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s failed %q", fe.Namespace(), fe.Tag()))
			}
			return fmt.Errorf("invalid configuration: %s", strings.Join(msgs, "; "))
		}
		return fmt.Errorf("invalid configuration: %w", err)
	}

	return nil
}
