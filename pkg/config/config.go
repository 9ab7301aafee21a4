// Package config resolves RayforceDB's process-level configuration:
// the listening port and the heap swap directory. Grounded on the
// teacher's pkg/infrastructure/config.Config (DefaultConfig +
// applyEnvironmentOverrides + Validate), trimmed to the handful of
// settings the core itself consumes — everything else in the teacher's
// Config (cache sizing, TLS, FUSE mount options) has no RayforceDB
// counterpart, since all other CLI/config behavior here is external to
// the core per the external-interfaces surface this package exists to
// narrow down to.
package config

import (
	"flag"
	"fmt"
	"os"
)

const swapDirEnvVar = "RAYFORCE_SWAP_DIR"

// Config is the process-level configuration consumed by cmd/rayforce.
type Config struct {
	// Port is the TCP port the reactor listens on. A zero value means
	// no listening socket is opened; the reactor still services stdin.
	Port int

	// SwapDir is the directory heap pools fall back to file-backed mmap
	// in when anonymous mmap growth fails (OOM).
	SwapDir string
}

// Default returns the configuration used when no port flag is given
// and RAYFORCE_SWAP_DIR is unset.
func Default() Config {
	return Config{Port: 0, SwapDir: "."}
}

// Load resolves Config from the process environment and from port,
// the parsed value of the single optional -port flag (0 meaning
// absent, per the CLI surface's "presence or absence is the only
// core-visible option").
func Load(port int) (Config, error) {
	cfg := Default()
	cfg.Port = port

	if dir := os.Getenv(swapDirEnvVar); dir != "" {
		cfg.SwapDir = dir
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks that SwapDir exists and is a directory. Writability
// itself is not checked here; a non-writable swap directory surfaces
// as an OS error from the first file-backed pool allocation, per the
// environment contract's "non-writability is an OS error returned from
// allocation" rather than a startup-time check.
func (c Config) Validate() error {
	info, err := os.Stat(c.SwapDir)
	if err != nil {
		return fmt.Errorf("config: swap directory %q: %w", c.SwapDir, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("config: swap directory %q is not a directory", c.SwapDir)
	}
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("config: port %d out of range", c.Port)
	}
	return nil
}

// ParseFlags parses the single optional port flag from args (normally
// os.Args[1:]) and returns the resolved Config.
func ParseFlags(fs *flag.FlagSet, args []string) (Config, error) {
	port := fs.Int("port", 0, "TCP port to listen on (0 disables the listening socket)")
	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}
	return Load(*port)
}
