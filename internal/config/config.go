// Package config is the engine's internal configuration surface: a plain
// struct populated by whatever caller wires it (CLI flag/env binding
// itself is out of scope), validated with errors.Join so every missing or
// invalid field is reported at once rather than one-at-a-time.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// Dialect names a supported source/destination database kind.
type Dialect string

const (
	DialectPostgres Dialect = "postgres"
	DialectMySQL    Dialect = "mysql"
)

// DatabaseConfig holds connection parameters for one source or destination.
type DatabaseConfig struct {
	Dialect  Dialect
	Host     string
	Port     uint16
	User     string
	Password string
	DBName   string
	Schema   string // defaults to DBName for MySQL, "public" for Postgres
}

// ParseURI parses a postgres://, postgresql://, or mysql:// connection URI
// into the DatabaseConfig fields, unconditionally setting each component
// found in the URI and inferring Dialect from the scheme.
func (d *DatabaseConfig) ParseURI(uri string) error {
	u, err := url.Parse(uri)
	if err != nil {
		return fmt.Errorf("invalid connection URI: %w", err)
	}
	switch u.Scheme {
	case "postgres", "postgresql":
		d.Dialect = DialectPostgres
	case "mysql":
		d.Dialect = DialectMySQL
	default:
		return fmt.Errorf("unsupported URI scheme %q (expected postgres, postgresql, or mysql)", u.Scheme)
	}

	if u.Hostname() != "" {
		d.Host = u.Hostname()
	}
	if u.Port() != "" {
		p, err := strconv.ParseUint(u.Port(), 10, 16)
		if err != nil {
			return fmt.Errorf("invalid port in URI: %w", err)
		}
		d.Port = uint16(p)
	}
	if u.User != nil {
		if username := u.User.Username(); username != "" {
			d.User = username
		}
		if password, ok := u.User.Password(); ok {
			d.Password = password
		}
	}
	dbname := strings.TrimPrefix(u.Path, "/")
	if dbname != "" {
		d.DBName = dbname
	}
	return nil
}

// DSN returns a connection string for Dialect.
func (d DatabaseConfig) DSN() string {
	switch d.Dialect {
	case DialectMySQL:
		return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true", d.User, d.Password, d.Host, d.Port, d.DBName)
	default:
		u := url.URL{
			Scheme: "postgres",
			User:   url.UserPassword(d.User, d.Password),
			Host:   fmt.Sprintf("%s:%d", d.Host, d.Port),
			Path:   d.DBName,
		}
		return u.String()
	}
}

// ReplicationDSN returns a Postgres connection string with
// replication=database set, for the logical-replication connection.
func (d DatabaseConfig) ReplicationDSN() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(d.User, d.Password),
		Host:     fmt.Sprintf("%s:%d", d.Host, d.Port),
		Path:     d.DBName,
		RawQuery: "replication=database",
	}
	return u.String()
}

// EffectiveSchema returns Schema, defaulting per dialect when unset.
func (d DatabaseConfig) EffectiveSchema() string {
	if d.Schema != "" {
		return d.Schema
	}
	if d.Dialect == DialectMySQL {
		return d.DBName
	}
	return "public"
}

// ReplicationConfig holds settings for the CDC replication stream
// (Postgres logical replication; ignored for dialects without a CDC
// extractor wired).
type ReplicationConfig struct {
	SlotName     string
	Publication  string
	OutputPlugin string
	OriginID     string
}

// SnapshotConfig holds settings for the initial data copy.
type SnapshotConfig struct {
	Workers      int
	SliceSize    int
	BatchSize    int
	ParallelSize int
}

// LoggingConfig holds settings for structured logging.
type LoggingConfig struct {
	Level  string
	Format string // "json" or "console"
}

// Config is the top-level configuration the orchestrator is constructed
// from. Loading it from a CLI/env surface is out of core scope; the
// orchestrator's caller is responsible for populating and validating one.
type Config struct {
	Source       DatabaseConfig
	Dest         DatabaseConfig
	Replication  ReplicationConfig
	Snapshot     SnapshotConfig
	Logging      LoggingConfig
	PositionFile string
}

// Validate checks that required fields are present and applies defaults.
func (c *Config) Validate() error {
	var errs []error

	if c.Source.Host == "" {
		errs = append(errs, errors.New("source host is required"))
	}
	if c.Source.DBName == "" {
		errs = append(errs, errors.New("source database name is required"))
	}
	if c.Dest.Host == "" {
		errs = append(errs, errors.New("destination host is required"))
	}
	if c.Dest.DBName == "" {
		errs = append(errs, errors.New("destination database name is required"))
	}
	if c.Source.Dialect == "" {
		errs = append(errs, errors.New("source dialect is required"))
	}
	if c.Dest.Dialect == "" {
		errs = append(errs, errors.New("destination dialect is required"))
	}

	if c.Source.Dialect == DialectPostgres {
		if c.Replication.SlotName == "" {
			errs = append(errs, errors.New("replication slot name is required for a postgres source"))
		}
		if c.Replication.Publication == "" {
			errs = append(errs, errors.New("publication name is required for a postgres source"))
		}
		if c.Replication.OutputPlugin == "" {
			c.Replication.OutputPlugin = "pgoutput"
		}
	}

	if c.Snapshot.Workers < 1 {
		c.Snapshot.Workers = 4
	}
	if c.Snapshot.SliceSize < 1 {
		c.Snapshot.SliceSize = 1000
	}
	if c.Snapshot.BatchSize < 1 {
		c.Snapshot.BatchSize = 200
	}
	if c.Snapshot.ParallelSize < 1 {
		c.Snapshot.ParallelSize = c.Snapshot.Workers
	}
	if c.PositionFile == "" {
		c.PositionFile = "dtpipe.position"
	}

	return errors.Join(errs...)
}
