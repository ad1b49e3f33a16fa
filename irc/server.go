// Copyright (c) 2026 Mitchell Cooper
// released under the MIT license

package irc

import (
	"fmt"
	"net"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/okzk/sdnotify"

	"github.com/cooper/vulpia/irc/logger"
)

// Server is the running ircd.
type Server struct {
	config atomic.Pointer[Config]

	logger   *logger.Manager
	events   *EventBus
	clients  ClientManager
	channels ChannelManager
	servers  ServerManager
	linker   Linker
	accounts AccountManager
	registry ChannelRegistry

	// me is this server's own entity in the pool
	me *Peer

	cmodeHandlers map[string]ModeHandler
	umodeHandlers map[string]func(*Client, bool) bool

	uidCounter uint64

	listeners     []net.Listener
	listenersLock sync.Mutex
}

// user mode letters understood locally
var umodeNames = map[byte]string{
	'i': "invisible",
	'D': "deaf",
	'r': "registered",
	'o': "oper",
}

// NewServer returns a new Server wired from the given config.
func NewServer(config *Config, lg *logger.Manager) (*Server, error) {
	server := &Server{
		logger: lg,
		events: NewEventBus(),
	}
	server.config.Store(config)

	server.clients.Initialize()
	server.channels.Initialize(server)
	server.servers.Initialize(server)
	server.linker.Initialize(server)

	server.me = NewPeer(server, config.Server.Name, config.Server.SID, config.Server.Description)
	server.servers.Add(server.me)

	server.cmodeHandlers = make(map[string]ModeHandler)
	server.registerDefaultModeHandlers()

	if err := server.accounts.Initialize(server, config.AccountStore.Driver, config.AccountStore.Path); err != nil {
		return nil, fmt.Errorf("Couldn't open account store: %w", err)
	}
	server.umodeHandlers = map[string]func(*Client, bool) bool{
		"registered": server.accounts.registeredModeHandler,
	}

	if err := server.registry.Initialize(server, config.Channels.Registration.Enabled, config.Channels.Registration.Path); err != nil {
		return nil, fmt.Errorf("Couldn't open channel registry: %w", err)
	}
	server.registry.LoadChannels()

	return server, nil
}

// Name returns this server's name.
func (server *Server) Name() string {
	return server.me.name
}

// Config returns the current configuration.
func (server *Server) Config() *Config {
	return server.config.Load()
}

// SetConfig replaces the configuration (rehash).
func (server *Server) SetConfig(config *Config) {
	server.config.Store(config)
}

// Events returns the server's event bus.
func (server *Server) Events() *EventBus {
	return server.events
}

// Linker returns the server linkage engine.
func (server *Server) Linker() *Linker {
	return &server.linker
}

// Accounts returns the account manager.
func (server *Server) Accounts() *AccountManager {
	return &server.accounts
}

const uidAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// generateUID assigns the next TS6-form UID: this server's SID plus six
// characters.
func (server *Server) generateUID() string {
	n := atomic.AddUint64(&server.uidCounter, 1) - 1
	suffix := []byte("AAAAAA")
	for i := len(suffix) - 1; i >= 0 && n > 0; i-- {
		suffix[i] = uidAlphabet[n%uint64(len(uidAlphabet))]
		n /= uint64(len(uidAlphabet))
	}
	return server.me.sid + string(suffix)
}

// noticeOpers logs a tagged notice and relays it to local opers.
func (server *Server) noticeOpers(tag, text string) {
	server.logger.Info("opers", tag, text)
	for _, client := range server.clients.All() {
		if client.IsLocal() && client.HasMode("oper") {
			client.ServerNotice(tag, text)
		}
	}
}

// ApplyUserModeChange routes a user mode change through its handler, if the
// mode has one. Reports whether the change took effect.
func (server *Server) ApplyUserModeChange(client *Client, name string, set, force bool) bool {
	if handler := server.umodeHandlers[name]; handler != nil && !force {
		return handler(client, set)
	}
	return client.setMode(name, set)
}

// burstChannel announces a newly created channel to the network: protocol
// listeners get the event, and direct links a TS6-style SJOIN carrying the
// channel's modes and the creator.
func (server *Server) burstChannel(channel *Channel, client *Client) {
	server.events.Fire("channel_burst", JoinData{Channel: channel, Client: client, New: true})

	_, serverView := channel.ModeStringAll(true)
	params := append([]string{
		strconv.FormatInt(channel.Time(), 10),
		channel.Name(),
	}, splitModeString(serverView)...)
	params = append(params, "@"+client.uid)

	for _, peer := range server.servers.DirectPeers() {
		peer.Send(server.me.sid, "SJOIN", params...)
	}
}

// broadcastJoin tells direct links about a join to an existing channel.
func (server *Server) broadcastJoin(channel *Channel, client *Client) {
	ts := strconv.FormatInt(channel.Time(), 10)
	for _, peer := range server.servers.DirectPeers() {
		if client.peer != nil && peer == client.peer.Route() {
			continue
		}
		peer.Send(client.uid, "JOIN", ts, channel.Name(), "+")
	}
}

// Run opens the configured listeners, starts autoconnect, and then blocks
// forever; it never returns after a successful start, and Shutdown does not
// make it return.
func (server *Server) Run() error {
	config := server.Config()

	for _, addr := range config.Listen {
		listener, err := net.Listen("tcp", addr)
		if err != nil {
			return fmt.Errorf("Couldn't listen on %s: %w", addr, err)
		}
		server.listenersLock.Lock()
		server.listeners = append(server.listeners, listener)
		server.listenersLock.Unlock()

		server.logger.Info("listeners", "listening on "+addr)
		go server.acceptLoop(listener)
	}

	// autoconnect any links configured with an interval
	for name, block := range config.Links {
		if block.AutoInterval > 0 {
			if err := server.linker.ConnectServer(name, true); err != nil {
				server.logger.Warning("connect", err.Error())
			}
		}
	}

	sdnotify.Ready()
	select {} // serve forever
}

func (server *Server) acceptLoop(listener net.Listener) {
	for {
		conn, err := listener.Accept()
		if err != nil {
			return
		}
		go server.runClient(conn)
	}
}

// Shutdown closes the listeners and the stores.
func (server *Server) Shutdown() {
	server.listenersLock.Lock()
	for _, listener := range server.listeners {
		listener.Close()
	}
	server.listenersLock.Unlock()

	server.accounts.Close()
	server.registry.Close()
}
