package config

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
)

// ErrInvalidReplicaOf is returned for a malformed replicaof value.
var ErrInvalidReplicaOf = errors.New("invalid replicaof")

// Verify validates the configuration.
func Verify(cfg *ServerConfig) error {
	if err := verifyServer(&cfg.Server); err != nil {
		return err
	}
	if err := verifySnapshot(&cfg.Snapshot); err != nil {
		return err
	}
	if cfg.Replication.ReplicaOf != "" {
		if _, err := ParseReplicaOf(cfg.Replication.ReplicaOf); err != nil {
			return err
		}
	}
	if cfg.Replication.HandshakeTimeout < 0 {
		return errors.New("replication.handshake_timeout must not be negative")
	}
	return verifyLog(&cfg.Log)
}

func verifyServer(cfg *ServerSection) error {
	if cfg.Port < 1 || cfg.Port > 65535 {
		return fmt.Errorf("server.port %d out of range 1-65535", cfg.Port)
	}
	if cfg.ReadTimeout < 0 || cfg.WriteTimeout < 0 || cfg.IdleTimeout < 0 {
		return errors.New("server timeouts must not be negative")
	}
	if cfg.RateLimit < 0 {
		return errors.New("server.rate_limit must not be negative")
	}
	return nil
}

func verifySnapshot(cfg *SnapshotSection) error {
	if cfg.Dir == "" {
		return errors.New("snapshot.dir is required")
	}
	if cfg.DBFilename == "" {
		return errors.New("snapshot.dbfilename is required")
	}
	return nil
}

func verifyLog(cfg *LogSection) error {
	switch strings.ToLower(cfg.Level) {
	case "", "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("log.level %q is not one of debug, info, warn, error", cfg.Level)
	}
	switch strings.ToLower(cfg.Format) {
	case "", "json", "text":
	default:
		return fmt.Errorf("log.format %q is not json or text", cfg.Format)
	}
	return nil
}

// ParseReplicaOf converts "host port" or "host:port" into a dialable address.
func ParseReplicaOf(s string) (string, error) {
	s = strings.TrimSpace(s)

	var host, port string
	switch fields := strings.Fields(s); len(fields) {
	case 2:
		host, port = fields[0], fields[1]
	case 1:
		var err error
		host, port, err = net.SplitHostPort(s)
		if err != nil {
			return "", fmt.Errorf("%w %q: %v", ErrInvalidReplicaOf, s, err)
		}
	default:
		return "", fmt.Errorf("%w %q: want \"host port\"", ErrInvalidReplicaOf, s)
	}

	if host == "" {
		return "", fmt.Errorf("%w %q: empty host", ErrInvalidReplicaOf, s)
	}
	n, err := strconv.Atoi(port)
	if err != nil || n < 1 || n > 65535 {
		return "", fmt.Errorf("%w %q: bad port", ErrInvalidReplicaOf, s)
	}
	return net.JoinHostPort(host, port), nil
}
