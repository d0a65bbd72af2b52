// Package config holds the run configuration of dbsync and its validation.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/openmined/dbsync/internal/transport"
	"github.com/openmined/dbsync/internal/utils"
)

var (
	home, _           = os.UserHomeDir()
	DefaultConfigPath = filepath.Join(home, ".config", "dbsync", "config.yaml")
)

// Placeholder marks a credential that was stripped from a shared settings file.
const Placeholder = "REDACTED"

var (
	ErrNoSource          = errors.New("no source selected")
	ErrTargetMissing     = errors.New("target directory not set")
	ErrTargetNotDir      = errors.New("target is not a directory")
	ErrMissingCredential = errors.New("credentials not set")
)

// Endpoint is the configuration of one source kind.
type Endpoint struct {
	Location string `mapstructure:"location" yaml:"location"`
	Username string `mapstructure:"username" yaml:"username,omitempty"`
	Password string `mapstructure:"password" yaml:"password,omitempty"`

	KnownHosts string `mapstructure:"known_hosts" yaml:"known_hosts,omitempty"`
	UseAgent   bool   `mapstructure:"use_agent" yaml:"use_agent,omitempty"`
	Insecure   bool   `mapstructure:"insecure" yaml:"insecure,omitempty"`
	Region     string `mapstructure:"region" yaml:"region,omitempty"`
	Endpoint   string `mapstructure:"endpoint" yaml:"endpoint,omitempty"`
}

type Config struct {
	Source string `mapstructure:"source" yaml:"source"`

	Local Endpoint `mapstructure:"local" yaml:"local"`
	FTP   Endpoint `mapstructure:"ftp" yaml:"ftp"`
	SFTP  Endpoint `mapstructure:"sftp" yaml:"sftp"`
	HTTPS Endpoint `mapstructure:"https" yaml:"https"`
	S3    Endpoint `mapstructure:"s3" yaml:"s3"`

	// ToLocal is the target root. It defaults to the local source location.
	ToLocal     string        `mapstructure:"to_local" yaml:"to_local"`
	Continue    bool          `mapstructure:"continue" yaml:"continue"`
	Catalog     string        `mapstructure:"catalog" yaml:"catalog"`
	Match       []string      `mapstructure:"match" yaml:"match,omitempty"`
	MaxAttempts int           `mapstructure:"max_attempts" yaml:"max_attempts"`
	Timeout     time.Duration `mapstructure:"timeout" yaml:"timeout"`
	LogFile     string        `mapstructure:"log_file" yaml:"log_file"`

	Path string `mapstructure:"-" yaml:"-"`
}

// Endpoint returns the section for kind, or nil for an unknown kind.
func (c *Config) Endpoint(kind transport.Kind) *Endpoint {
	switch kind {
	case transport.KindLocal:
		return &c.Local
	case transport.KindFTP:
		return &c.FTP
	case transport.KindSFTP:
		return &c.SFTP
	case transport.KindHTTPS:
		return &c.HTTPS
	case transport.KindS3:
		return &c.S3
	}
	return nil
}

// SourceKind parses the selected source.
func (c *Config) SourceKind() (transport.Kind, error) {
	if strings.TrimSpace(c.Source) == "" {
		return "", ErrNoSource
	}
	return transport.ParseKind(c.Source)
}

// Validate normalizes paths and checks the configuration of the selected
// source and the target. Unset FTP and placeholder HTTPS credentials are
// dropped with a warning on logger.
func (c *Config) Validate(logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}

	kind, err := c.SourceKind()
	if err != nil {
		return err
	}
	c.Source = string(kind)
	ep := c.Endpoint(kind)

	if strings.TrimSpace(ep.Location) == "" {
		return fmt.Errorf("%s location not set", kind)
	}
	if kind == transport.KindLocal {
		if ep.Location, err = utils.ResolvePath(ep.Location); err != nil {
			return fmt.Errorf("local source: %w", err)
		}
	}

	if err := c.validateTarget(); err != nil {
		return err
	}

	switch kind {
	case transport.KindFTP:
		if isPlaceholder(ep.Username) || isPlaceholder(ep.Password) {
			return fmt.Errorf("%s: %w", kind, ErrMissingCredential)
		}
		if strings.TrimSpace(ep.Username) == "" {
			logger.Warn("ftp credentials not set, connecting anonymously", "location", ep.Location)
			ep.Username, ep.Password = "", ""
		}
	case transport.KindSFTP:
		if err := validateCredentials(kind, ep); err != nil {
			return err
		}
	case transport.KindHTTPS:
		if isPlaceholder(ep.Username) || isPlaceholder(ep.Password) || (ep.Username == "") != (ep.Password == "") {
			logger.Warn("https credentials not set, connecting anonymously", "location", ep.Location)
			ep.Username, ep.Password = "", ""
		}
	}

	if c.MaxAttempts < 0 {
		return fmt.Errorf("invalid max attempts %d", c.MaxAttempts)
	}
	if c.Timeout < 0 {
		return fmt.Errorf("invalid timeout %s", c.Timeout)
	}

	if c.Catalog != "" {
		if c.Catalog, err = utils.ResolvePath(c.Catalog); err != nil {
			return fmt.Errorf("catalog: %w", err)
		}
	}
	if c.Path != "" {
		if c.Path, err = utils.ResolvePath(c.Path); err != nil {
			return fmt.Errorf("config path: %w", err)
		}
	}
	return nil
}

func (c *Config) validateTarget() error {
	if strings.TrimSpace(c.ToLocal) == "" {
		c.ToLocal = c.Local.Location
	}
	if strings.TrimSpace(c.ToLocal) == "" {
		return ErrTargetMissing
	}

	target, err := utils.ResolvePath(c.ToLocal)
	if err != nil {
		return fmt.Errorf("target: %w", err)
	}
	info, err := os.Stat(target)
	if err != nil {
		return fmt.Errorf("target %s: %w", target, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%w: %s", ErrTargetNotDir, target)
	}
	c.ToLocal = target
	return nil
}

func validateCredentials(kind transport.Kind, ep *Endpoint) error {
	if isPlaceholder(ep.Username) || strings.TrimSpace(ep.Username) == "" {
		return fmt.Errorf("%s username: %w", kind, ErrMissingCredential)
	}
	if isPlaceholder(ep.Password) {
		return fmt.Errorf("%s password: %w", kind, ErrMissingCredential)
	}
	if ep.Password == "" && !ep.UseAgent {
		return fmt.Errorf("%s password: %w", kind, ErrMissingCredential)
	}
	return nil
}

func isPlaceholder(s string) bool {
	return strings.EqualFold(strings.TrimSpace(s), Placeholder)
}

// SourceOptions converts the selected source section into dial options. Call
// it after Validate.
func (c *Config) SourceOptions(logger *slog.Logger) (*transport.Options, error) {
	kind, err := c.SourceKind()
	if err != nil {
		return nil, err
	}
	ep := c.Endpoint(kind)
	return &transport.Options{
		Kind:           kind,
		Location:       ep.Location,
		Username:       ep.Username,
		Password:       ep.Password,
		KnownHostsFile: ep.KnownHosts,
		UseAgent:       ep.UseAgent,
		Insecure:       ep.Insecure,
		Region:         ep.Region,
		Endpoint:       ep.Endpoint,
		Timeout:        c.Timeout,
		Logger:         logger,
	}, nil
}
