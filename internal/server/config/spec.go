package config

import "time"

// ServerConfig is the root configuration for respkv-server.
type ServerConfig struct {
	Server      ServerSection      `koanf:"server"`
	Snapshot    SnapshotSection    `koanf:"snapshot"`
	Replication ReplicationSection `koanf:"replication"`
	Metrics     MetricsSection     `koanf:"metrics"`
	Log         LogSection         `koanf:"log"`
}

// ServerSection configures the RESP listener.
type ServerSection struct {
	Bind string `koanf:"bind"`
	Port int    `koanf:"port"`

	// ReadTimeout bounds reading one command once its first byte arrived.
	ReadTimeout time.Duration `koanf:"read_timeout"`
	// WriteTimeout bounds writing one reply.
	WriteTimeout time.Duration `koanf:"write_timeout"`
	// IdleTimeout closes connections idle between commands. 0 disables it.
	IdleTimeout time.Duration `koanf:"idle_timeout"`

	// RateLimit is the maximum commands per second per connection. 0 disables it.
	RateLimit int `koanf:"rate_limit"`
}

// SnapshotSection locates the RDB file loaded at startup.
type SnapshotSection struct {
	Dir        string `koanf:"dir"`
	DBFilename string `koanf:"dbfilename"`
}

// ReplicationSection configures replica mode.
type ReplicationSection struct {
	// ReplicaOf is the primary address as "host port" or "host:port".
	// Empty means this server is a primary.
	ReplicaOf        string        `koanf:"replicaof"`
	HandshakeTimeout time.Duration `koanf:"handshake_timeout"`
}

// MetricsSection configures the Prometheus endpoint.
type MetricsSection struct {
	// Addr is the listen address for /metrics. Empty disables it.
	Addr string `koanf:"addr"`
}

// LogSection configures logging.
type LogSection struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}
