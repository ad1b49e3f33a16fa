// Copyright (c) 2026 Mitchell Cooper
// released under the MIT license

package irc

import (
	"sync"

	"github.com/ergochat/irc-go/ircmsg"

	"github.com/cooper/vulpia/irc/modes"
	"github.com/cooper/vulpia/irc/utils"
)

// Peer is a server on the network: this one, a directly linked one, or one
// reached through a link. Each peer carries its own channel mode table, since
// letter maps are free to differ across the network.
type Peer struct {
	stateMutex sync.RWMutex // tier 1

	server *Server

	name           string
	nameCasefolded string
	sid            string
	description    string

	cmodes *modes.Table

	// conn is set iff this peer is directly linked.
	conn lineSink
	// route is the directly linked peer this one is reached through; a
	// directly linked peer routes through itself, and the local server has
	// no route.
	route *Peer
}

// NewPeer creates a server entity with the default mode table.
func NewPeer(server *Server, name, sid, description string) *Peer {
	p := &Peer{
		server:         server,
		name:           name,
		nameCasefolded: utils.Casefold(name),
		sid:            sid,
		description:    description,
		cmodes:         modes.DefaultChannelModes(),
	}
	return p
}

func (p *Peer) Name() string {
	return p.name
}

func (p *Peer) SID() string {
	return p.sid
}

func (p *Peer) SourceMask() string {
	return p.name
}

func (p *Peer) SourceName() string {
	return p.name
}

func (p *Peer) IsServerSource() bool {
	return true
}

// IsLocal reports whether this peer is the running server itself.
func (p *Peer) IsLocal() bool {
	return p.server != nil && p.server.me == p
}

// Cmodes returns this server's channel mode table.
func (p *Peer) Cmodes() *modes.Table {
	return p.cmodes
}

// Route returns the directly linked peer this one is reached through.
func (p *Peer) Route() *Peer {
	p.stateMutex.RLock()
	defer p.stateMutex.RUnlock()
	return p.route
}

func (p *Peer) setRoute(route *Peer) {
	p.stateMutex.Lock()
	defer p.stateMutex.Unlock()
	p.route = route
}

// AttachConn marks this peer as directly linked over the given sink.
func (p *Peer) AttachConn(conn lineSink) {
	p.stateMutex.Lock()
	p.conn = conn
	p.route = p
	p.stateMutex.Unlock()
}

// Send assembles and writes a line down this peer's link, routing through the
// direct link for remote peers.
func (p *Peer) Send(prefix, command string, params ...string) {
	sink := p.sink()
	if sink == nil {
		return
	}
	message := ircmsg.MakeMessage(nil, prefix, command, params...)
	line, err := message.Line()
	if err != nil {
		if p.server != nil {
			p.server.logger.Error("internal", "couldn't assemble server message", err.Error())
		}
		return
	}
	sink.SendLine(line)
}

func (p *Peer) sink() lineSink {
	p.stateMutex.RLock()
	defer p.stateMutex.RUnlock()
	if p.conn != nil {
		return p.conn
	}
	if p.route != nil && p.route != p {
		return p.route.sink()
	}
	return nil
}

// ServerManager is the pool of known servers.
type ServerManager struct {
	sync.RWMutex // tier 2
	byName map[string]*Peer
	bySID  map[string]*Peer

	server *Server
}

func (sm *ServerManager) Initialize(server *Server) {
	sm.byName = make(map[string]*Peer)
	sm.bySID = make(map[string]*Peer)
	sm.server = server
}

// Add registers a server and announces it on the bus. The linker listens for
// this to drop a pending retry timer.
func (sm *ServerManager) Add(peer *Peer) {
	sm.Lock()
	sm.byName[peer.nameCasefolded] = peer
	sm.bySID[peer.sid] = peer
	sm.Unlock()

	sm.server.events.Fire(eventNewServer, peer)
}

// Remove detaches a server from the pool.
func (sm *ServerManager) Remove(peer *Peer) {
	sm.Lock()
	defer sm.Unlock()
	delete(sm.byName, peer.nameCasefolded)
	delete(sm.bySID, peer.sid)
}

// Get resolves a server name, case-insensitively.
func (sm *ServerManager) Get(name string) *Peer {
	sm.RLock()
	defer sm.RUnlock()
	return sm.byName[utils.Casefold(name)]
}

// GetBySID resolves a server by SID.
func (sm *ServerManager) GetBySID(sid string) *Peer {
	sm.RLock()
	defer sm.RUnlock()
	return sm.bySID[sid]
}

// DirectPeers returns the directly linked peers.
func (sm *ServerManager) DirectPeers() (result []*Peer) {
	sm.RLock()
	defer sm.RUnlock()
	seen := make(utils.HashSet[*Peer])
	for _, peer := range sm.byName {
		if peer.conn == nil || seen.Has(peer) {
			continue
		}
		seen.Add(peer)
		result = append(result, peer)
	}
	return
}
