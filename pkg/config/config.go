// Package config loads slabq's configuration from defaults, an optional
// YAML file, and environment/flag overrides, in that order of precedence:
// defaults first, file next, then flags/env win.
package config

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
	"gopkg.in/yaml.v3"
)

// Config holds every sizing, networking, logging, and metrics knob the
// daemon accepts.
type Config struct {
	Server struct {
		IP   string `yaml:"ip"`
		Port int    `yaml:"port"`
	} `yaml:"server"`

	WorkerThreadNum int `yaml:"worker_thread_num"`

	Queue struct {
		PoolSize          string `yaml:"pool_size"`
		BlockSize         string `yaml:"block_size"`
		InitialBlockCount int    `yaml:"initial_block_count"`
		FreeBlockPoolCap  int    `yaml:"free_block_pool_cap"`
	} `yaml:"queue"`

	Conn struct {
		RBufInitSize string `yaml:"rbuf_init_size"`
		RBufMaxSize  string `yaml:"rbuf_max_size"`
	} `yaml:"conn"`

	Logging struct {
		Level string `yaml:"level"`
	} `yaml:"logging"`

	Metrics struct {
		Addr string `yaml:"addr"`
	} `yaml:"metrics"`
}

// Defaults returns the daemon's documented default configuration.
func Defaults() *Config {
	c := &Config{}
	c.Server.IP = "0.0.0.0"
	c.Server.Port = 9000
	c.WorkerThreadNum = 8
	c.Queue.PoolSize = "1MiB"
	c.Queue.BlockSize = "8MiB"
	c.Queue.InitialBlockCount = 5
	c.Queue.FreeBlockPoolCap = 8
	c.Conn.RBufInitSize = "4KiB"
	c.Conn.RBufMaxSize = "16MiB"
	c.Logging.Level = "info"
	c.Metrics.Addr = ":9090"
	return c
}

// LoadFile merges YAML at path onto c, leaving fields the file doesn't set
// untouched. A missing file is not an error; an unreadable or malformed
// one is.
func LoadFile(c *Config, path string) error {
	if path == "" {
		return nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(b, c); err != nil {
		return fmt.Errorf("config: parse %s: %w", path, err)
	}
	return nil
}

// Flags are slabqd's command-line flags, parsed on top of defaults+file.
type Flags struct {
	ConfigPath string
	IP         string
	Port       int
	Workers    int
}

// ParseFlags defines and parses the daemon's flags, reporting which ones
// the caller explicitly set so ApplyFlags can apply only those.
func ParseFlags(args []string) (Flags, map[string]bool) {
	fs := flag.NewFlagSet("slabqd", flag.ContinueOnError)
	cfgPath := fs.String("config", "", "path to YAML config file")
	ip := fs.String("ip", "", "listen address")
	port := fs.Int("port", 0, "listen port")
	workers := fs.Int("worker_thread_num", 0, "number of worker reactors")
	_ = fs.Parse(args)

	set := map[string]bool{}
	fs.Visit(func(f *flag.Flag) { set[f.Name] = true })

	return Flags{
		ConfigPath: *cfgPath,
		IP:         *ip,
		Port:       *port,
		Workers:    *workers,
	}, set
}

// ApplyFlags overlays explicitly-set flags onto c.
func ApplyFlags(c *Config, f Flags, set map[string]bool) {
	if set["ip"] {
		c.Server.IP = f.IP
	}
	if set["port"] {
		c.Server.Port = f.Port
	}
	if set["worker_thread_num"] {
		c.WorkerThreadNum = f.Workers
	}
}

// ApplyEnv overlays SLABQ_*-prefixed environment variables onto c, taking
// precedence over the file but not over explicit flags (ApplyFlags must
// run after this if flags are to win outright; slabqd applies env first,
// flags last).
func ApplyEnv(c *Config) {
	if v := os.Getenv("SLABQ_IP"); v != "" {
		c.Server.IP = v
	}
	if v := os.Getenv("SLABQ_PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			c.Server.Port = p
		}
	}
	if v := os.Getenv("SLABQ_WORKER_THREAD_NUM"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.WorkerThreadNum = n
		}
	}
	if v := os.Getenv("SLABQ_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("SLABQ_METRICS_ADDR"); v != "" {
		c.Metrics.Addr = v
	}
}

// Addr returns host:port for the TCP listener.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.IP, c.Server.Port)
}

// ParseSize parses a human-readable size string ("8MB", "1MiB") via
// go-humanize. An empty string yields 0, and ParseSize never fails on a
// bad string — it just falls back to 0 so the caller's own withDefaults()
// can supply the documented default.
func ParseSize(s string) int {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}
	n, err := humanize.ParseBytes(s)
	if err != nil {
		return 0
	}
	return int(n)
}
