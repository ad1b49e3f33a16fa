// Copyright (c) 2026 Mitchell Cooper
// released under the MIT license

package irc

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

const testYAML = `
server:
    name: irc.test.example
    sid: 1SA
    description: test server

accounts:
    encryption: sha1
    autologin-after-register: true

channels:
    automodes: "+ntqo +user +user"

links:
    Hub.Example:
        address: 10.0.0.5
        port: 7000
        tls: true
        protocol: ts6
        auto-interval: 30s

services:
    server: services.test.example
    sasl-agent: SaslServ

logging:
    - method: stderr
      type: "* -debugtype"
      level: debug
`

func loadTestConfig(t *testing.T, contents string) (*Config, error) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ircd.yaml")
	if err := os.WriteFile(path, []byte(contents), 0600); err != nil {
		t.Fatal(err)
	}
	return LoadConfig(path)
}

func TestLoadConfig(t *testing.T) {
	config, err := loadTestConfig(t, testYAML)
	if err != nil {
		t.Fatal(err)
	}

	if config.Server.Name != "irc.test.example" || config.Server.SID != "1SA" {
		t.Errorf("unexpected server identity: %+v", config.Server)
	}
	if !config.Accounts.AutologinAfterRegister {
		t.Errorf("autologin-after-register should parse")
	}
	if config.Channels.Automodes != "+ntqo +user +user" {
		t.Errorf("unexpected automodes: %q", config.Channels.Automodes)
	}

	// link blocks are found case-insensitively
	block := config.LinkBlock("hub.example")
	if block == nil {
		t.Fatalf("link block should resolve case-insensitively")
	}
	if block.Address != "10.0.0.5" || block.Port != 7000 || !block.TLS {
		t.Errorf("unexpected link block: %+v", block)
	}
	if block.AutoInterval != 30*time.Second {
		t.Errorf("auto-interval should parse as a duration: %v", block.AutoInterval)
	}
	if block.ProtocolName() != "ts6" {
		t.Errorf("unexpected protocol: %q", block.ProtocolName())
	}

	if config.Services.SASLAgent != "SaslServ" {
		t.Errorf("unexpected services config: %+v", config.Services)
	}

	if len(config.Logging) != 1 {
		t.Fatalf("expected one logging target")
	}
	logConfig := config.Logging[0]
	if !logConfig.Types["*"] || !logConfig.ExcludedTypes["debugtype"] {
		t.Errorf("log type filters should parse: %+v", logConfig)
	}
}

func TestLoadConfigRejectsBadServer(t *testing.T) {
	if _, err := loadTestConfig(t, "server:\n    name: nodots\n    sid: 1SA\n"); err == nil {
		t.Errorf("server names must contain a dot")
	}
	if _, err := loadTestConfig(t, "server:\n    name: irc.x.example\n"); err == nil {
		t.Errorf("missing SID should be rejected")
	}
}

func TestLoadConfigRejectsBadLink(t *testing.T) {
	bad := `
server:
    name: irc.test.example
    sid: 1SA
links:
    hub.example:
        port: 7000
`
	if _, err := loadTestConfig(t, bad); err == nil {
		t.Errorf("link blocks need an address")
	}
}
