// Package ngrok exposes the local listener through an ngrok endpoint.
package ngrok

import (
	"context"
	"errors"
	"fmt"

	"metaexplorer/internal/config"

	"github.com/sirupsen/logrus"
	"golang.ngrok.com/ngrok/v2"
)

// ErrNoAuthToken is returned when the tunnel is enabled without a token.
var ErrNoAuthToken = errors.New("ngrok auth token not found; set NGROK_AUTHTOKEN in .env or [ngrok].auth_token")

// Service represents the ngrok tunnel service
type Service struct {
	config *config.NgrokConfig
	agent  ngrok.Agent
	logger *logrus.Logger
	tunnel ngrok.EndpointForwarder
}

// NewService creates a tunnel service. It returns nil when the tunnel is
// disabled; a nil *Service is safe to use and does nothing.
func NewService(cfg *config.NgrokConfig, logger *logrus.Logger) (*Service, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	if cfg.AuthToken == "" {
		return nil, ErrNoAuthToken
	}

	agent, err := ngrok.NewAgent(ngrok.WithAuthtoken(cfg.AuthToken))
	if err != nil {
		return nil, fmt.Errorf("failed to create ngrok agent: %w", err)
	}

	return &Service{config: cfg, agent: agent, logger: logger}, nil
}

// Run forwards the public endpoint to upstream until ctx is cancelled or
// the tunnel closes on its own.
func (s *Service) Run(ctx context.Context, upstream string) error {
	if s == nil {
		return nil
	}

	s.logger.Info("Starting ngrok tunnel...")

	var opts []ngrok.EndpointOption
	if s.config.Domain != "" {
		opts = append(opts, ngrok.WithURL(s.config.Domain))
	}

	tunnel, err := s.agent.Forward(ctx, ngrok.WithUpstream(upstream), opts...)
	if err != nil {
		return fmt.Errorf("failed to create ngrok tunnel: %w", err)
	}
	s.tunnel = tunnel

	s.logger.WithFields(logrus.Fields{
		"public_url": tunnel.URL().String(),
		"upstream":   upstream,
	}).Info("Ngrok tunnel active")

	select {
	case <-ctx.Done():
		s.logger.Info("Stopping ngrok tunnel...")
		return tunnel.Close()
	case <-tunnel.Done():
		return errors.New("ngrok tunnel closed unexpectedly")
	}
}

// PublicURL returns the public URL of the tunnel, if one is active.
func (s *Service) PublicURL() string {
	if s == nil || s.tunnel == nil {
		return ""
	}
	return s.tunnel.URL().String()
}
