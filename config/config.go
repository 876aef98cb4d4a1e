// Package config loads the YAML configuration surface described in spec
// §6 into typed structs and exposes the urfave/cli/v2 flags both indexer
// binaries accept, in the teacher's style of layering a YAML file under a
// thin CLI flag layer (zk/apollo/common.go unmarshals YAML into the same
// flag namespace a cli.Context serves from).
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/urfave/cli/v2"
	"gopkg.in/yaml.v3"
)

// Config is the root of the YAML document passed via --config-path.
type Config struct {
	Database DatabaseConfig          `yaml:"database"`
	Redis    RedisConfig             `yaml:"redis"`
	Kafka    KafkaConfig             `yaml:"kafka"`
	Chains   []ChainConfig           `yaml:"chains"`
	API      APIConfig               `yaml:"api"`
	Logging  LoggingConfig           `yaml:"logging"`
}

type DatabaseConfig struct {
	DSN             string        `yaml:"dsn"`
	MaxConns        int32         `yaml:"max_conns"`
	MinConns        int32         `yaml:"min_conns"`
	MaxConnLifetime time.Duration `yaml:"max_conn_lifetime"`
}

// RedisConfig backs the optional second-level, cross-process block-number
// cache (§4 C8). Addr empty disables it; the in-process cache still works.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// KafkaConfig backs the change publisher (§4 C9). Topics map a change kind
// ("block", "transaction", "token_transfer", ...) to its topic name; a kind
// with no entry is not published, matching §6's allow-list semantics.
type KafkaConfig struct {
	Brokers []string          `yaml:"brokers"`
	Topics  map[string]string `yaml:"topics"`
}

// ChainConfig is one §5 "one driver per configured chain" unit.
type ChainConfig struct {
	Name            string   `yaml:"name"`
	ChainID         int64    `yaml:"chain_id"`
	RPCEndpoints    []string `yaml:"rpc_endpoints"`
	PollInterval    time.Duration `yaml:"poll_interval"`
	ConfirmationLag int64    `yaml:"confirmation_lag"`
	BatchSize       int      `yaml:"batch_size"`
}

// APIConfig is parsed but not validated, and produces no internal behavior:
// the query-serving HTTP API is out of scope per spec §1's Non-goals.
type APIConfig struct {
	ListenAddr string `yaml:"listen_addr"`
}

type LoggingConfig struct {
	ConsoleVerbosity string `yaml:"console_verbosity"`
	DirPath          string `yaml:"dir_path"`
	DirPrefix        string `yaml:"dir_prefix"`
	DirVerbosity     string `yaml:"dir_verbosity"`
	ConsoleJSON      bool   `yaml:"console_json"`
	DirJSON          bool   `yaml:"dir_json"`
}

// Load reads and parses the YAML file at path.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}
	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}
	cfg.applyDefaults()
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Database.MaxConns == 0 {
		c.Database.MaxConns = 100
	}
	if c.Database.MinConns == 0 {
		c.Database.MinConns = 5
	}
	if c.Database.MaxConnLifetime == 0 {
		c.Database.MaxConnLifetime = 8 * time.Second
	}
	for i := range c.Chains {
		if c.Chains[i].PollInterval == 0 {
			c.Chains[i].PollInterval = 3 * time.Second
		}
		if c.Chains[i].BatchSize == 0 {
			c.Chains[i].BatchSize = 50
		}
	}
}

// ConfigFlag is the single flag both cmd/indexer and cmd/tokenmetadata
// expose; each binary's own flags (if any) are layered on top of this one
// in its own main package, the way turbo/logging's callers layer logging
// flags onto a shared cli.App rather than this package owning the App.
var ConfigFlag = &cli.StringFlag{
	Name:     "config-path",
	Usage:    "path to the YAML configuration file",
	Required: true,
}

// FromContext loads the config named by ConfigFlag off ctx.
func FromContext(ctx *cli.Context) (*Config, error) {
	return Load(ctx.String(ConfigFlag.Name))
}
