package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/Versifine/locus/internal/logger"
	"github.com/Versifine/locus/internal/protocol"
	"gopkg.in/yaml.v3"
)

const (
	ModeProxy  = "proxy"
	ModeClient = "client"
	ModePing   = "ping"
)

type Config struct {
	Listen  ListenConfig  `yaml:"listen" toml:"listen"`
	Backend BackendConfig `yaml:"backend" toml:"backend"`
	Logging LoggingConfig `yaml:"logging" toml:"logging"`
	Mode    string        `yaml:"mode" toml:"mode"`
	Client  ClientConfig  `yaml:"client" toml:"client"`
}

type ListenConfig struct {
	Host string `yaml:"host" toml:"host"`
	Port int    `yaml:"port" toml:"port"`
}
type BackendConfig struct {
	Host string `yaml:"host" toml:"host"`
	Port int    `yaml:"port" toml:"port"`
}
type LoggingConfig struct {
	Level  string `yaml:"level" toml:"level"`
	File   string `yaml:"file" toml:"file"`
	Format string `yaml:"format" toml:"format"`
}

type ClientConfig struct {
	Username        string `yaml:"username" toml:"username"`
	ProtocolVersion int32  `yaml:"protocol_version" toml:"protocol_version"`
	ViewDistance    int    `yaml:"view_distance" toml:"view_distance"`
	Locale          string `yaml:"locale" toml:"locale"`
	BlocksJSON      string `yaml:"blocks_json" toml:"blocks_json"`
	// SkipUnknown drops configuration and play packets the client does not
	// know instead of disconnecting.
	SkipUnknown bool `yaml:"skip_unknown" toml:"skip_unknown"`
}

func Default() *Config {
	return &Config{
		Listen:  ListenConfig{Host: "0.0.0.0", Port: 25565},
		Backend: BackendConfig{Host: "127.0.0.1", Port: 25566},
		Logging: LoggingConfig{Level: "info", Format: "console"},
		Mode:    ModeProxy,
		Client: ClientConfig{
			Username:        "Locus",
			ProtocolVersion: int32(protocol.V1_21_11),
			ViewDistance:    10,
			Locale:          "en_us",
		},
	}
}

// Load reads a YAML file, or TOML when the extension is .toml. Keys missing
// from the file keep their Default values.
func Load(path string) (*Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		if _, err := toml.Decode(string(data), cfg); err != nil {
			return nil, fmt.Errorf("parse toml config: %w", err)
		}
	} else if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse yaml config: %w", err)
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	var errs []error
	switch c.Mode {
	case ModeProxy:
		if err := checkPort("listen", c.Listen.Port); err != nil {
			errs = append(errs, err)
		}
	case ModeClient, ModePing:
	default:
		errs = append(errs, fmt.Errorf("unknown mode %q", c.Mode))
	}
	if c.Backend.Host == "" {
		errs = append(errs, errors.New("backend host is empty"))
	}
	if err := checkPort("backend", c.Backend.Port); err != nil {
		errs = append(errs, err)
	}
	if !logger.ValidFormat(c.Logging.Format) {
		errs = append(errs, fmt.Errorf("unknown log format %q", c.Logging.Format))
	}
	if err := protocol.ProtocolVersion(c.Client.ProtocolVersion).Check(); err != nil {
		errs = append(errs, fmt.Errorf("client protocol_version: %w", err))
	}
	if c.Mode == ModeClient {
		if n := len(c.Client.Username); n == 0 || n > 16 {
			errs = append(errs, fmt.Errorf("client username must be 1 to 16 characters, got %d", n))
		}
		if c.Client.ViewDistance < 2 || c.Client.ViewDistance > 32 {
			errs = append(errs, fmt.Errorf("client view_distance %d outside 2..32", c.Client.ViewDistance))
		}
	}
	return errors.Join(errs...)
}

func checkPort(name string, port int) error {
	if port <= 0 || port > 65535 {
		return fmt.Errorf("%s port %d outside 1..65535", name, port)
	}
	return nil
}

func (c *Config) ListenAddr() string {
	return net.JoinHostPort(c.Listen.Host, strconv.Itoa(c.Listen.Port))
}

func (c *Config) BackendAddr() string {
	return net.JoinHostPort(c.Backend.Host, strconv.Itoa(c.Backend.Port))
}
