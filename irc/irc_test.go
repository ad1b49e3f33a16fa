// Copyright (c) 2026 Mitchell Cooper
// released under the MIT license

package irc

import (
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/cooper/vulpia/irc/logger"
)

// recordedSink captures the lines an entity would have written to its socket.
type recordedSink struct {
	sync.Mutex
	lines []string
}

func (sink *recordedSink) SendLine(line string) {
	sink.Lock()
	defer sink.Unlock()
	sink.lines = append(sink.lines, strings.TrimRight(line, "\r\n"))
}

func (sink *recordedSink) Lines() []string {
	sink.Lock()
	defer sink.Unlock()
	result := make([]string, len(sink.lines))
	copy(result, sink.lines)
	return result
}

func (sink *recordedSink) Clear() {
	sink.Lock()
	defer sink.Unlock()
	sink.lines = nil
}

func (sink *recordedSink) Contains(substr string) bool {
	for _, line := range sink.Lines() {
		if strings.Contains(line, substr) {
			return true
		}
	}
	return false
}

func testConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Name:        "irc.test.example",
			SID:         "1SA",
			Description: "test server",
		},
		AccountStore: AccountStoreConfig{Driver: "sqlite3", Path: ":memory:"},
		links:        make(map[string]*LinkBlock),
	}
}

func newTestServer(t *testing.T) *Server {
	t.Helper()
	lg, err := logger.NewManager(nil)
	if err != nil {
		t.Fatal(err)
	}
	server, err := NewServer(testConfig(), lg)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(server.Shutdown)
	return server
}

// newLocalClient creates a registered local user with a recorded sink.
func newLocalClient(server *Server, nick string) (*Client, *recordedSink) {
	sink := &recordedSink{}
	client := NewClient(server, server.me, server.generateUID(), nick, "u"+nick, nick+".host", "Real "+nick, sink)
	client.SetRegistered()
	server.clients.Add(client)
	return client, sink
}

// newTestPeer creates a directly linked peer server with a recorded sink.
func newTestPeer(server *Server, name, sid string) (*Peer, *recordedSink) {
	sink := &recordedSink{}
	peer := NewPeer(server, name, sid, "peer "+name)
	peer.AttachConn(sink)
	server.servers.Add(peer)
	return peer, sink
}

var remoteUIDCounter uint64

// newRemoteClient creates a user living on the given peer.
func newRemoteClient(server *Server, peer *Peer, nick string) *Client {
	remoteUIDCounter++
	uid := fmt.Sprintf("%s%06d", peer.sid, remoteUIDCounter)
	client := NewClient(server, peer, uid, nick, "u"+nick, nick+".host", "Real "+nick, nil)
	client.SetRegistered()
	server.clients.Add(client)
	return client
}
