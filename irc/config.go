// Copyright (c) 2026 Mitchell Cooper
// released under the MIT license

package irc

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v2"

	"github.com/cooper/vulpia/irc/logger"
	"github.com/cooper/vulpia/irc/utils"
)

// exported members of the config structs are deserialized directly from the
// YAML file; unexported members are derived from them in LoadConfig.

// ServerConfig is the identity of this server.
type ServerConfig struct {
	Name        string
	SID         string
	Description string
}

// AccountsConfig controls the account subsystem.
type AccountsConfig struct {
	Encryption             string
	AutologinAfterRegister bool `yaml:"autologin-after-register"`
}

// ChannelsConfig controls channel behavior.
type ChannelsConfig struct {
	// Automodes is applied when a channel is created; the literal token
	// "+user" is substituted with the creating user's UID.
	Automodes    string
	Registration struct {
		Enabled bool
		Path    string
	}
}

// LinkBlock configures one outbound server link.
type LinkBlock struct {
	Address      string
	Port         int
	TLS          bool          `yaml:"tls"`
	TLSVerify    bool          `yaml:"tls-verify"`
	Protocol     string        `yaml:"protocol"`
	AutoInterval time.Duration `yaml:"auto-interval"`
}

// supported link protocols, selecting which init event a new connection is
// handed to
var linkProtocols = map[string]bool{
	"jelp": true,
	"ts6":  true,
}

// ProtocolName returns the configured link protocol, defaulting to jelp.
func (block *LinkBlock) ProtocolName() string {
	if block.Protocol != "" && linkProtocols[block.Protocol] {
		return block.Protocol
	}
	return "jelp"
}

// ServicesConfig locates the services package on the network.
type ServicesConfig struct {
	Server    string
	SASLAgent string `yaml:"sasl-agent"`
}

// AccountStoreConfig locates the accounts table.
type AccountStoreConfig struct {
	Driver string
	Path   string
}

// Config is the all-encompassing configuration.
type Config struct {
	Server       ServerConfig
	Listen       []string
	Accounts     AccountsConfig
	Channels     ChannelsConfig
	Links        map[string]*LinkBlock
	Services     ServicesConfig
	Logging      []logger.LoggingConfig
	AccountStore AccountStoreConfig `yaml:"accountstore"`

	filename string
	links    map[string]*LinkBlock // casefolded name -> block
}

// LinkBlock resolves the connect block for a server name,
// case-insensitively.
func (conf *Config) LinkBlock(name string) *LinkBlock {
	return conf.links[utils.Casefold(name)]
}

// Filename returns the file this config was loaded from.
func (conf *Config) Filename() string {
	return conf.filename
}

// LoadConfig loads the given YAML configuration file.
func LoadConfig(filename string) (config *Config, err error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, err
	}

	config = &Config{}
	if err = yaml.Unmarshal(data, config); err != nil {
		return nil, err
	}
	config.filename = filename

	if config.Server.Name == "" {
		return nil, errors.New("Server name missing")
	}
	if !strings.Contains(config.Server.Name, ".") {
		return nil, errors.New("Server name must contain a dot")
	}
	if config.Server.SID == "" {
		return nil, errors.New("Server SID missing")
	}
	if config.AccountStore.Driver == "" {
		config.AccountStore.Driver = "sqlite3"
	}
	if config.AccountStore.Path == "" {
		config.AccountStore.Path = "vulpia.db"
	}

	config.links = make(map[string]*LinkBlock, len(config.Links))
	for name, block := range config.Links {
		if block == nil {
			return nil, fmt.Errorf("Empty link block: %s", name)
		}
		if block.Address == "" || block.Port == 0 {
			return nil, fmt.Errorf("Link block %s needs address and port", name)
		}
		config.links[utils.Casefold(name)] = block
	}

	// resolve logging levels and type filters
	for i, logConfig := range config.Logging {
		level, ok := logger.LogLevelNames[strings.ToLower(logConfig.LevelString)]
		if !ok && logConfig.LevelString != "" {
			return nil, fmt.Errorf("Unknown log level: %s", logConfig.LevelString)
		}
		config.Logging[i].Level = level

		types := make(map[string]bool)
		excluded := make(map[string]bool)
		for _, typeStr := range strings.Fields(logConfig.TypeString) {
			if rest, found := strings.CutPrefix(typeStr, "-"); found {
				excluded[rest] = true
			} else {
				types[typeStr] = true
			}
		}
		if len(types) == 0 {
			types["*"] = true
		}
		config.Logging[i].Types = types
		config.Logging[i].ExcludedTypes = excluded

		if config.Logging[i].Method == "" {
			config.Logging[i].Method = "stderr"
		}
	}

	return config, nil
}
