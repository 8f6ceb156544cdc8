// Package metrics exports the outcome of the last backup run for the
// node_exporter textfile collector.
package metrics

import (
	"fmt"

	"github.com/fgeck/gorsync-homelab/internal/models"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
)

// Service defines the interface for metrics export.
type Service interface {
	Export(cfg *models.MetricsConfig, result models.RunResult) error
}

// Gauges holds the last-run gauges, all labelled by destination.
type Gauges struct {
	LastRun      *prometheus.GaugeVec
	Success      *prometheus.GaugeVec
	ExitCode     *prometheus.GaugeVec
	Duration     *prometheus.GaugeVec
	DiskSleepOK  *prometheus.GaugeVec
	Notification *prometheus.GaugeVec
}

// NewGauges creates the gauges and registers them with reg.
func NewGauges(reg prometheus.Registerer) *Gauges {
	labels := []string{"destination"}
	g := &Gauges{
		LastRun: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "gorsync_last_run_timestamp_seconds",
			Help: "Unix time of the last backup run",
		}, labels),
		Success: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "gorsync_last_run_success",
			Help: "1 if the last rsync exited with code 0, otherwise 0",
		}, labels),
		ExitCode: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "gorsync_last_run_exit_code",
			Help: "Exit code of the last rsync invocation",
		}, labels),
		Duration: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "gorsync_last_run_duration_seconds",
			Help: "Wall time of the last backup run in seconds",
		}, labels),
		DiskSleepOK: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "gorsync_last_run_disk_sleep_ok",
			Help: "1 if the backup disk was put to sleep or disk sleep is not configured",
		}, labels),
		Notification: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "gorsync_last_run_notification_delivered",
			Help: "1 if the Telegram notification was delivered",
		}, labels),
	}

	reg.MustRegister(g.LastRun, g.Success, g.ExitCode, g.Duration, g.DiskSleepOK, g.Notification)
	return g
}

// Observe records result in the gauges.
func (g *Gauges) Observe(result models.RunResult) {
	dest := result.Report.Destination

	g.LastRun.WithLabelValues(dest).Set(float64(result.Report.Timestamp.Unix()))
	g.Duration.WithLabelValues(dest).Set(result.Duration.Seconds())

	exitCode := 0
	if result.Report.ErrorCode != nil {
		exitCode = *result.Report.ErrorCode
	}
	g.ExitCode.WithLabelValues(dest).Set(float64(exitCode))
	g.Success.WithLabelValues(dest).Set(boolValue(result.Report.Status == models.StatusSuccess))
	g.DiskSleepOK.WithLabelValues(dest).Set(boolValue(!result.DiskSleepFailed))

	if result.Notification != nil {
		g.Notification.WithLabelValues(dest).Set(boolValue(result.Notification.Delivered))
	}
}

// Impl implements the metrics Service interface.
type Impl struct {
	logger zerolog.Logger
}

// New creates a new metrics service.
func New(logger zerolog.Logger) *Impl {
	return &Impl{logger: logger}
}

// Export writes the last-run gauges to the configured textfile. The write is
// atomic so the collector never reads a partial file.
func (s *Impl) Export(cfg *models.MetricsConfig, result models.RunResult) error {
	if cfg == nil || cfg.TextfilePath == "" {
		return nil
	}

	reg := prometheus.NewRegistry()
	NewGauges(reg).Observe(result)

	if err := prometheus.WriteToTextfile(cfg.TextfilePath, reg); err != nil {
		return fmt.Errorf("failed to write metrics textfile: %w", err)
	}

	s.logger.Debug().Str("path", cfg.TextfilePath).Msg("metrics exported")
	return nil
}

func boolValue(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
