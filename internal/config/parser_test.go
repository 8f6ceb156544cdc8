package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/fgeck/gorsync-homelab/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const minimalEnv = `
BACKUP_SOURCE=/data
BACKUP_DESTINATION=/mnt/backup/
BACKUP_LOG_FILE=/var/log/backup.log
`

func TestParser_LoadReader_MinimalConfig(t *testing.T) {
	parser := NewParser()
	cfg, err := parser.LoadReader(minimalEnv)

	require.NoError(t, err)
	assert.Equal(t, "/data", cfg.Sync.Source)
	assert.Equal(t, "/mnt/backup/", cfg.Sync.Destination)
	assert.Equal(t, "/var/log/backup.log", cfg.LogFile)
	// Check defaults
	assert.Equal(t, "rsync", cfg.Sync.Binary)
	assert.Equal(t, os.TempDir(), cfg.LockDir)
	assert.Nil(t, cfg.Disk)
	assert.Nil(t, cfg.Telegram)
	assert.Nil(t, cfg.WOL)
	assert.Nil(t, cfg.SSHShutdown)
	assert.Nil(t, cfg.Metrics)
}

func TestParser_LoadReader_FullConfig(t *testing.T) {
	env := `
BACKUP_SOURCE=/data
BACKUP_DESTINATION=/mnt/backup/
BACKUP_UUID=0f3c2a1e-6b7d-4e2a-9c55-0a1b2c3d4e5f
BACKUP_LOG_FILE=/var/log/backup.log
BACKUP_RSYNC_PATH=/usr/local/bin/rsync
BACKUP_DISK_SUDO=false
BACKUP_LOCK_DIR=/run/lock
BACKUP_METRICS_FILE=/var/lib/node_exporter/gorsync.prom
BOT_TOKEN=123456:ABC-DEF
CHAT_ID=-100123456789

WOL_MAC_ADDRESS=AA:BB:CC:DD:EE:FF
WOL_BROADCAST_IP=192.168.1.255
WOL_POLL_URL=http://192.168.1.100:8384
WOL_TIMEOUT=10m
WOL_POLL_INTERVAL=5s
WOL_STABILIZE_WAIT=15s

SSH_SHUTDOWN_HOST=192.168.1.100
SSH_SHUTDOWN_PORT=2222
SSH_SHUTDOWN_USER=admin
SSH_SHUTDOWN_KEY_PATH=/root/.ssh/id_ed25519
SSH_SHUTDOWN_DELAY=5
SSH_SHUTDOWN_OS=windows
`
	parser := NewParser()
	cfg, err := parser.LoadReader(env)

	require.NoError(t, err)

	assert.Equal(t, "/usr/local/bin/rsync", cfg.Sync.Binary)
	assert.Equal(t, "/run/lock", cfg.LockDir)

	require.NotNil(t, cfg.Disk)
	assert.Equal(t, "0f3c2a1e-6b7d-4e2a-9c55-0a1b2c3d4e5f", cfg.Disk.UUID)
	assert.False(t, cfg.Disk.UseSudo)

	require.NotNil(t, cfg.Telegram)
	assert.Equal(t, "123456:ABC-DEF", cfg.Telegram.BotToken)
	assert.Equal(t, "-100123456789", cfg.Telegram.ChatID)
	assert.True(t, cfg.Telegram.Enabled())

	require.NotNil(t, cfg.Metrics)
	assert.Equal(t, "/var/lib/node_exporter/gorsync.prom", cfg.Metrics.TextfilePath)

	require.NotNil(t, cfg.WOL)
	assert.Equal(t, "AA:BB:CC:DD:EE:FF", cfg.WOL.MACAddress)
	assert.Equal(t, "192.168.1.255", cfg.WOL.BroadcastIP)
	assert.Equal(t, "http://192.168.1.100:8384", cfg.WOL.PollURL)
	assert.Equal(t, 10*time.Minute, cfg.WOL.Timeout)
	assert.Equal(t, 5*time.Second, cfg.WOL.PollInterval)
	assert.Equal(t, 15*time.Second, cfg.WOL.StabilizeWait)

	require.NotNil(t, cfg.SSHShutdown)
	assert.Equal(t, "192.168.1.100", cfg.SSHShutdown.Host)
	assert.Equal(t, 2222, cfg.SSHShutdown.Port)
	assert.Equal(t, "admin", cfg.SSHShutdown.Username)
	assert.Equal(t, "/root/.ssh/id_ed25519", cfg.SSHShutdown.KeyPath)
	assert.Equal(t, 5, cfg.SSHShutdown.ShutdownDelay)
	assert.Equal(t, "windows", cfg.SSHShutdown.OS)

	require.NoError(t, Validate(cfg))
}

func TestParser_LoadReader_EnvVarExpansion(t *testing.T) {
	t.Setenv("TEST_BACKUP_ROOT", "/srv")

	env := `
BACKUP_SOURCE=${TEST_BACKUP_ROOT}/data
BACKUP_DESTINATION=/mnt/backup/
BACKUP_LOG_FILE=/var/log/backup.log
`
	parser := NewParser()
	cfg, err := parser.LoadReader(env)

	require.NoError(t, err)
	assert.Equal(t, "/srv/data", cfg.Sync.Source)
}

func TestParser_LoadReader_EnvironmentWins(t *testing.T) {
	t.Setenv("BACKUP_DESTINATION", "/mnt/usb/")

	parser := NewParser()
	cfg, err := parser.LoadReader(minimalEnv)

	require.NoError(t, err)
	assert.Equal(t, "/mnt/usb/", cfg.Sync.Destination)
}

func TestParser_LoadEnv(t *testing.T) {
	t.Setenv("BACKUP_SOURCE", "/data")
	t.Setenv("BACKUP_DESTINATION", "/mnt/backup/")
	t.Setenv("BACKUP_LOG_FILE", "/var/log/backup.log")
	t.Setenv("BACKUP_UUID", "0f3c2a1e")

	parser := NewParser()
	cfg, err := parser.LoadEnv()

	require.NoError(t, err)
	assert.Equal(t, "/data", cfg.Sync.Source)
	require.NotNil(t, cfg.Disk)
	assert.Equal(t, "0f3c2a1e", cfg.Disk.UUID)
	assert.True(t, cfg.Disk.UseSudo, "sudo is the default")
}

func TestParser_LoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "backup.env")
	require.NoError(t, os.WriteFile(path, []byte(minimalEnv), 0o600))

	parser := NewParser()
	cfg, err := parser.LoadFile(path)

	require.NoError(t, err)
	assert.Equal(t, "/data", cfg.Sync.Source)
}

func TestParser_LoadFile_NotFound(t *testing.T) {
	parser := NewParser()
	_, err := parser.LoadFile(filepath.Join(t.TempDir(), "missing.env"))

	require.Error(t, err)
	assert.Contains(t, err.Error(), "reading env file")
}

func TestParser_LoadReader_MissingRequired(t *testing.T) {
	tests := []struct {
		name    string
		env     string
		wantErr string
	}{
		{
			name:    "source",
			env:     "BACKUP_DESTINATION=/mnt/backup/\nBACKUP_LOG_FILE=/var/log/backup.log\n",
			wantErr: "BACKUP_SOURCE is required",
		},
		{
			name:    "destination",
			env:     "BACKUP_SOURCE=/data\nBACKUP_LOG_FILE=/var/log/backup.log\n",
			wantErr: "BACKUP_DESTINATION is required",
		},
		{
			name:    "log file",
			env:     "BACKUP_SOURCE=/data\nBACKUP_DESTINATION=/mnt/backup/\n",
			wantErr: "BACKUP_LOG_FILE is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			parser := NewParser()
			_, err := parser.LoadReader(tt.env)

			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestParser_LoadReader_PartialTelegram(t *testing.T) {
	parser := NewParser()
	cfg, err := parser.LoadReader(minimalEnv + "BOT_TOKEN=123456:ABC-DEF\n")

	require.NoError(t, err)
	require.NotNil(t, cfg.Telegram)
	assert.False(t, cfg.Telegram.Enabled())
}

func TestParser_LoadReader_WOL_Defaults(t *testing.T) {
	parser := NewParser()
	cfg, err := parser.LoadReader(minimalEnv + "WOL_MAC_ADDRESS=AA:BB:CC:DD:EE:FF\n")

	require.NoError(t, err)
	require.NotNil(t, cfg.WOL)
	assert.Equal(t, "255.255.255.255", cfg.WOL.BroadcastIP)
	assert.Equal(t, 5*time.Minute, cfg.WOL.Timeout)
	assert.Equal(t, 10*time.Second, cfg.WOL.PollInterval)
	assert.Equal(t, 10*time.Second, cfg.WOL.StabilizeWait)
	assert.Empty(t, cfg.WOL.PollURL)
}

func TestParser_LoadReader_SSHShutdown_MissingKeyPath(t *testing.T) {
	parser := NewParser()
	_, err := parser.LoadReader(minimalEnv + "SSH_SHUTDOWN_HOST=192.168.1.100\n")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "SSH_SHUTDOWN_KEY_PATH is required")
}

func TestParser_LoadReader_SSHShutdown_Defaults(t *testing.T) {
	env := minimalEnv + "SSH_SHUTDOWN_HOST=192.168.1.100\nSSH_SHUTDOWN_KEY_PATH=/root/.ssh/id_ed25519\n"

	parser := NewParser()
	cfg, err := parser.LoadReader(env)

	require.NoError(t, err)
	require.NotNil(t, cfg.SSHShutdown)
	assert.Equal(t, 22, cfg.SSHShutdown.Port)
	assert.Equal(t, "root", cfg.SSHShutdown.Username)
	assert.Equal(t, 1, cfg.SSHShutdown.ShutdownDelay)
	assert.Equal(t, "linux", cfg.SSHShutdown.OS)
}

func TestValidate(t *testing.T) {
	valid := func() *models.BackupConfig {
		return &models.BackupConfig{
			Sync: models.SyncSettings{
				Source:      "/data/",
				Destination: "/mnt/backup/",
				Binary:      "rsync",
			},
			LogFile: "/var/log/backup.log",
		}
	}

	tests := []struct {
		name    string
		mutate  func(cfg *models.BackupConfig)
		wantErr string
	}{
		{
			name:   "valid",
			mutate: func(cfg *models.BackupConfig) {},
		},
		{
			name:    "missing binary",
			mutate:  func(cfg *models.BackupConfig) { cfg.Sync.Binary = "" },
			wantErr: "BackupConfig.Sync.Binary",
		},
		{
			name: "invalid MAC",
			mutate: func(cfg *models.BackupConfig) {
				cfg.WOL = &models.WOLConfig{MACAddress: "not-a-mac", BroadcastIP: "192.168.1.255"}
			},
			wantErr: "BackupConfig.WOL.MACAddress",
		},
		{
			name: "invalid poll URL",
			mutate: func(cfg *models.BackupConfig) {
				cfg.WOL = &models.WOLConfig{MACAddress: "AA:BB:CC:DD:EE:FF", BroadcastIP: "192.168.1.255", PollURL: "not a url"}
			},
			wantErr: "BackupConfig.WOL.PollURL",
		},
		{
			name: "invalid SSH OS",
			mutate: func(cfg *models.BackupConfig) {
				cfg.SSHShutdown = &models.SSHShutdownConfig{
					Host: "192.168.1.100", Port: 22, Username: "root", KeyPath: "/key", OS: "plan9",
				}
			},
			wantErr: "BackupConfig.SSHShutdown.OS",
		},
		{
			name: "invalid SSH port",
			mutate: func(cfg *models.BackupConfig) {
				cfg.SSHShutdown = &models.SSHShutdownConfig{
					Host: "192.168.1.100", Port: 70000, Username: "root", KeyPath: "/key", OS: "linux",
				}
			},
			wantErr: "BackupConfig.SSHShutdown.Port",
		},
		{
			name:    "empty metrics path",
			mutate:  func(cfg *models.BackupConfig) { cfg.Metrics = &models.MetricsConfig{} },
			wantErr: "BackupConfig.Metrics.TextfilePath",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)

			err := Validate(cfg)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestValidate_Nil(t *testing.T) {
	assert.Error(t, Validate(nil))
}
