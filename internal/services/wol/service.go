// Package wol wakes the backup target before a sync.
package wol

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/fgeck/gorsync-homelab/internal/models"
	"github.com/mdlayher/wol"
	"github.com/rs/zerolog"
)

// DiscardPort is the UDP port magic packets are sent to.
const DiscardPort = 9

// Service defines the interface for Wake-on-LAN operations.
type Service interface {
	Wake(ctx context.Context, cfg models.WOLConfig) (*models.WOLResult, error)
}

// Sender sends magic packets. It wraps the wol library for mocking.
type Sender interface {
	Send(addr string, mac net.HardwareAddr) error
}

// HTTPClient allows mocking HTTP requests.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// UDPSender sends magic packets over UDP using mdlayher/wol.
type UDPSender struct{}

// Send broadcasts a magic packet for mac to addr.
func (UDPSender) Send(addr string, mac net.HardwareAddr) error {
	client, err := wol.NewClient()
	if err != nil {
		return fmt.Errorf("failed to create WOL client: %w", err)
	}
	defer func() { _ = client.Close() }()

	if err := client.Wake(addr, mac); err != nil {
		return fmt.Errorf("failed to send WOL packet: %w", err)
	}
	return nil
}

// Impl implements the WOL Service interface.
type Impl struct {
	sender     Sender
	httpClient HTTPClient
	logger     zerolog.Logger
}

// New creates a new WOL service.
func New(logger zerolog.Logger) *Impl {
	return &Impl{
		sender: UDPSender{},
		httpClient: &http.Client{
			Timeout: 5 * time.Second,
		},
		logger: logger,
	}
}

// NewWithClients creates a new WOL service with a custom sender and HTTP client (for testing).
func NewWithClients(logger zerolog.Logger, sender Sender, httpClient HTTPClient) *Impl {
	return &Impl{
		sender:     sender,
		httpClient: httpClient,
		logger:     logger,
	}
}

// Wake sends a magic packet to the backup target. If a poll URL is set it
// then waits until the target answers HTTP and has had StabilizeWait to
// settle. Failures are stored in the result.
func (s *Impl) Wake(ctx context.Context, cfg models.WOLConfig) (*models.WOLResult, error) {
	result := &models.WOLResult{}
	start := time.Now()
	defer func() { result.WaitDuration = time.Since(start) }()

	mac, err := net.ParseMAC(cfg.MACAddress)
	if err != nil {
		result.Error = fmt.Errorf("invalid MAC address %q: %w", cfg.MACAddress, err)
		return result, nil
	}

	ip := net.ParseIP(cfg.BroadcastIP)
	if ip == nil {
		result.Error = fmt.Errorf("invalid broadcast IP: %s", cfg.BroadcastIP)
		return result, nil
	}
	addr := net.JoinHostPort(ip.String(), strconv.Itoa(DiscardPort))

	s.logger.Info().
		Str("mac", mac.String()).
		Str("addr", addr).
		Msg("waking backup target")

	if err := s.sender.Send(addr, mac); err != nil {
		result.Error = err
		return result, nil
	}
	result.PacketSent = true

	if cfg.PollURL == "" {
		result.TargetReady = true
		return result, nil
	}

	if err := s.pollUntilReady(ctx, cfg); err != nil {
		result.Error = err
		return result, nil
	}

	if err := sleep(ctx, cfg.StabilizeWait); err != nil {
		result.Error = err
		return result, nil
	}

	result.TargetReady = true
	s.logger.Info().Dur("elapsed", time.Since(start)).Msg("backup target is ready")

	return result, nil
}

// pollUntilReady issues GET requests against the poll URL until the target
// answers with a non-5xx status, the timeout passes or ctx is cancelled.
func (s *Impl) pollUntilReady(ctx context.Context, cfg models.WOLConfig) error {
	pollCtx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()

	interval := cfg.PollInterval
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.logger.Info().
		Str("url", cfg.PollURL).
		Dur("timeout", cfg.Timeout).
		Msg("waiting for backup target")

	for {
		if s.probe(pollCtx, cfg.PollURL) {
			return nil
		}

		select {
		case <-pollCtx.Done():
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("timeout waiting for target at %s", cfg.PollURL)
		case <-ticker.C:
		}
	}
}

func (s *Impl) probe(ctx context.Context, url string) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return false
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		if !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
			s.logger.Debug().Err(err).Msg("target not ready yet")
		}
		return false
	}
	_ = resp.Body.Close()

	if resp.StatusCode >= http.StatusInternalServerError {
		s.logger.Debug().Int("status", resp.StatusCode).Msg("target not ready yet")
		return false
	}
	return true
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
