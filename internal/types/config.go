// SPDX-License-Identifier: AGPL-3.0-or-later
package types

// WriteRetry tunes the bounded backoff applied to contended writes.
type WriteRetry struct {
	Attempts    uint `yaml:"attempts,omitempty"`
	BaseDelayMS int  `yaml:"base_delay_ms,omitempty"`
	MaxDelayMS  int  `yaml:"max_delay_ms,omitempty"`
}

// Config is the optional exptrack.yaml file. Every field has a working
// default; flags and environment variables take precedence over the file.
type Config struct {
	// DB is the database file path. Empty means the platform default under
	// the data directory.
	DB string `yaml:"db,omitempty"`
	// DataDir overrides the base data directory.
	DataDir string `yaml:"data_dir,omitempty"`
	// BusyTimeoutMS bounds how long a statement waits on the file lock.
	BusyTimeoutMS int `yaml:"busy_timeout_ms,omitempty"`
	// WriteRetry tunes the write contention retry budget.
	WriteRetry WriteRetry `yaml:"write_retry,omitempty"`
}
