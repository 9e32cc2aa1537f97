package plugins

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/bitte-ai/go-mcp-proxy/src/logging"
	"github.com/bitte-ai/go-mcp-proxy/src/tools"
)

// Config names a plugin spec location (URL or file path).
type Config struct {
	Name string `yaml:"name"`
	Spec string `yaml:"spec"`
}

// Validate reports configuration errors.
func (c Config) Validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return errors.New("plugin name is required")
	}
	if strings.TrimSpace(c.Spec) == "" {
		return fmt.Errorf("plugin %s: spec location is required", c.Name)
	}
	return nil
}

// Source re-reads its spec on every listing.
type Source struct {
	cfg        Config
	httpClient *http.Client
	logger     logrus.FieldLogger
}

// NewSource validates cfg and builds a Source.
func NewSource(cfg Config, timeout time.Duration, logger logrus.FieldLogger) (*Source, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Source{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logging.OrDiscard(logger).WithField("source", cfg.Name),
	}, nil
}

func (s *Source) Name() string { return s.cfg.Name }

func (s *Source) ListTools(ctx context.Context) ([]tools.Tool, error) {
	spec, err := LoadSpec(ctx, s.httpClient, s.cfg.Spec)
	if err != nil {
		return nil, fmt.Errorf("loading plugin spec %s: %w", s.cfg.Spec, err)
	}
	specURL := ""
	if strings.HasPrefix(s.cfg.Spec, "http") {
		specURL = s.cfg.Spec
	}
	list := NewConverter(spec, specURL, s.cfg.Name).Convert()
	s.logger.Debugf("converted %d operations", len(list))
	return list, nil
}
