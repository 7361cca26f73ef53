package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/remiblancher/easyca/internal/audit"
	"github.com/remiblancher/easyca/internal/ca"
	"github.com/remiblancher/easyca/internal/config"
	"github.com/remiblancher/easyca/internal/index"
	"github.com/remiblancher/easyca/internal/toolkit"
)

// newToolkit builds the cryptographic backend. Tests may replace it.
var newToolkit = func() toolkit.Toolkit { return toolkit.NewNative() }

// loadConfig resolves the configuration from flags, file and environment.
func loadConfig() (config.Config, error) {
	cfg, err := config.Load(config.Options{BaseDir: baseDir, File: configPath})
	if err != nil {
		return config.Config{}, err
	}
	if auditLogPath != "" {
		cfg.AuditLog = auditLogPath
	}
	return cfg, nil
}

// session is one command's view of the store.
type session struct {
	cfg     config.Config
	manager *ca.Manager
	audit   *audit.Logger
	index   *index.Index
}

// openSession opens the audit log and the issuance index of cfg.
// The caller must call close.
func openSession(cfg config.Config) (*session, error) {
	if err := os.MkdirAll(cfg.BaseDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create base directory: %w", err)
	}

	logger, err := audit.Open(cfg.AuditLog)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize audit log: %w", err)
	}
	idx, err := index.Open(cfg.IndexPath())
	if err != nil {
		_ = logger.Close()
		return nil, err
	}

	return &session{
		cfg:     cfg,
		manager: ca.NewManager(cfg, newToolkit(), ca.WithAudit(logger), ca.WithIndex(idx)),
		audit:   logger,
		index:   idx,
	}, nil
}

func (s *session) close() error {
	return errors.Join(s.index.Close(), s.audit.Close())
}
