// Package config loads the EasyCA configuration.
//
// Values are layered, later layers winning:
//
//  1. built-in defaults
//  2. the YAML file ({basedir}/easyca.yaml, or --config)
//  3. {basedir}/.env and the process environment (EASYCA_* variables)
//  4. command-line flags, applied by the caller
//
// The resulting Config is a plain value; callers pass it explicitly.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/remiblancher/easyca/internal/toolkit"
)

// Defaults.
const (
	DefaultCADays         = 3650
	DefaultCertDays       = 365
	DefaultCAKeyAlgorithm = toolkit.AlgRSA4096
	DefaultKeyAlgorithm   = toolkit.AlgRSA2048
	DefaultTimeout        = 2 * time.Minute

	// FileName is the config file looked up in the base directory.
	FileName = "easyca.yaml"
	// EnvFileName is the dotenv file looked up in the base directory.
	EnvFileName = ".env"
)

// Environment variables.
const (
	EnvBaseDir        = "EASYCA_BASEDIR"
	EnvCADays         = "EASYCA_CA_DAYS"
	EnvCertDays       = "EASYCA_CERT_DAYS"
	EnvCAKeyAlgorithm = "EASYCA_CA_KEY_ALGORITHM"
	EnvKeyAlgorithm   = "EASYCA_KEY_ALGORITHM"
	EnvTimeout        = "EASYCA_TIMEOUT"
	EnvAuditLog       = "EASYCA_AUDIT_LOG"
	EnvCountry        = "EASYCA_COUNTRY"
	EnvState          = "EASYCA_STATE"
	EnvLocality       = "EASYCA_LOCALITY"
	EnvOrganization   = "EASYCA_ORGANIZATION"
)

// SubjectDefaults pre-fill the distinguished name fields.
type SubjectDefaults struct {
	Country      string `yaml:"country,omitempty"`
	State        string `yaml:"state,omitempty"`
	Locality     string `yaml:"locality,omitempty"`
	Organization string `yaml:"organization,omitempty"`
}

// Config is the immutable configuration of one invocation.
type Config struct {
	BaseDir        string              `yaml:"basedir,omitempty"`
	CADays         int                 `yaml:"ca_days,omitempty"`
	CertDays       int                 `yaml:"cert_days,omitempty"`
	CAKeyAlgorithm toolkit.AlgorithmID `yaml:"ca_key_algorithm,omitempty"`
	KeyAlgorithm   toolkit.AlgorithmID `yaml:"key_algorithm,omitempty"`
	Timeout        time.Duration       `yaml:"timeout,omitempty"`
	AuditLog       string              `yaml:"audit_log,omitempty"`
	Subject        SubjectDefaults     `yaml:"subject,omitempty"`
}

// Default returns the built-in configuration for baseDir.
func Default(baseDir string) Config {
	return Config{
		BaseDir:        baseDir,
		CADays:         DefaultCADays,
		CertDays:       DefaultCertDays,
		CAKeyAlgorithm: DefaultCAKeyAlgorithm,
		KeyAlgorithm:   DefaultKeyAlgorithm,
		Timeout:        DefaultTimeout,
	}
}

// Options select where Load looks for its inputs.
type Options struct {
	// BaseDir overrides every other source of the base directory when set.
	BaseDir string
	// File is an explicit config file; it must exist when set.
	File string
	// Getenv reads the process environment; nil means os.Getenv.
	Getenv func(string) string
}

// Load builds a Config from defaults, the YAML file and the environment.
func Load(opts Options) (Config, error) {
	getenv := opts.Getenv
	if getenv == nil {
		getenv = os.Getenv
	}

	baseDir := opts.BaseDir
	if baseDir == "" {
		baseDir = getenv(EnvBaseDir)
	}
	if baseDir == "" {
		baseDir = "."
	}
	cfg := Default(baseDir)

	path, required := opts.File, true
	if path == "" {
		path, required = filepath.Join(baseDir, FileName), false
	}
	if err := cfg.mergeFile(path, required); err != nil {
		return Config{}, err
	}
	// The base directory chosen on the command line always wins.
	if opts.BaseDir != "" {
		cfg.BaseDir = opts.BaseDir
	}

	dotenv, err := readDotenv(filepath.Join(cfg.BaseDir, EnvFileName))
	if err != nil {
		return Config{}, err
	}
	lookup := func(key string) string {
		if v := getenv(key); v != "" {
			return v
		}
		return dotenv[key]
	}
	if err := cfg.mergeEnv(lookup); err != nil {
		return Config{}, err
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func (c *Config) mergeFile(path string, required bool) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if !required && errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

func readDotenv(path string) (map[string]string, error) {
	env, err := godotenv.Read(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return map[string]string{}, nil
		}
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return env, nil
}

func (c *Config) mergeEnv(lookup func(string) string) error {
	setInt := func(key string, dst *int) error {
		if v := lookup(key); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("%s: %w", key, err)
			}
			*dst = n
		}
		return nil
	}
	setString := func(key string, dst *string) {
		if v := lookup(key); v != "" {
			*dst = v
		}
	}

	if err := setInt(EnvCADays, &c.CADays); err != nil {
		return err
	}
	if err := setInt(EnvCertDays, &c.CertDays); err != nil {
		return err
	}
	if v := lookup(EnvCAKeyAlgorithm); v != "" {
		c.CAKeyAlgorithm = toolkit.AlgorithmID(v)
	}
	if v := lookup(EnvKeyAlgorithm); v != "" {
		c.KeyAlgorithm = toolkit.AlgorithmID(v)
	}
	if v := lookup(EnvTimeout); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvTimeout, err)
		}
		c.Timeout = d
	}
	setString(EnvAuditLog, &c.AuditLog)
	setString(EnvCountry, &c.Subject.Country)
	setString(EnvState, &c.Subject.State)
	setString(EnvLocality, &c.Subject.Locality)
	setString(EnvOrganization, &c.Subject.Organization)
	return nil
}

// Validate checks that the configuration is usable.
func (c Config) Validate() error {
	if c.BaseDir == "" {
		return fmt.Errorf("basedir is required")
	}
	if c.CADays <= 0 {
		return fmt.Errorf("ca_days must be positive, got %d", c.CADays)
	}
	if c.CertDays <= 0 {
		return fmt.Errorf("cert_days must be positive, got %d", c.CertDays)
	}
	if !c.CAKeyAlgorithm.IsValid() {
		return fmt.Errorf("unsupported ca_key_algorithm: %q", c.CAKeyAlgorithm)
	}
	if !c.KeyAlgorithm.IsValid() {
		return fmt.Errorf("unsupported key_algorithm: %q", c.KeyAlgorithm)
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive, got %s", c.Timeout)
	}
	return nil
}

// IndexPath returns the path of the issuance index database.
func (c Config) IndexPath() string {
	return filepath.Join(c.BaseDir, "index.db")
}
