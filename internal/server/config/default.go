package config

import (
	"os"
	"time"
)

// Default configuration values.
const (
	DefaultBind         = "0.0.0.0"
	DefaultPort         = 6379
	DefaultReadTimeout  = 30 * time.Second
	DefaultWriteTimeout = 30 * time.Second

	DefaultDBFilename = "dump.rdb"

	DefaultHandshakeTimeout = 5 * time.Second

	DefaultLogLevel  = "info"
	DefaultLogFormat = "text"
)

// Default returns the default server configuration.
func Default() *ServerConfig {
	return &ServerConfig{
		Server: ServerSection{
			Bind:         DefaultBind,
			Port:         DefaultPort,
			ReadTimeout:  DefaultReadTimeout,
			WriteTimeout: DefaultWriteTimeout,
		},
		Snapshot: SnapshotSection{
			Dir:        os.TempDir(),
			DBFilename: DefaultDBFilename,
		},
		Replication: ReplicationSection{
			HandshakeTimeout: DefaultHandshakeTimeout,
		},
		Log: LogSection{
			Level:  DefaultLogLevel,
			Format: DefaultLogFormat,
		},
	}
}
