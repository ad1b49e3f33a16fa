// Copyright (c) 2026 Mitchell Cooper
// released under the MIT license

package irc

import (
	"fmt"
	"sync"

	"github.com/ergochat/irc-go/ircmsg"

	"github.com/cooper/vulpia/irc/caps"
	"github.com/cooper/vulpia/irc/utils"
)

// Source is a user or a server originating a command.
type Source interface {
	// SourceMask is the full prefix: nick!user@host for users, the server
	// name for servers.
	SourceMask() string
	// SourceName is the short name: nick for users, name for servers.
	SourceName() string
	// IsServerSource reports whether the source is a server.
	IsServerSource() bool
}

// lineSink receives assembled wire lines. Local clients and direct server
// links carry one; remote entities do not.
type lineSink interface {
	SendLine(line string)
}

// saslSession is the transient SASL proxy state of one connection.
type saslSession struct {
	agent    string // UID of the services agent this session is pinned to
	messages int    // AUTHENTICATE lines written to the client
	failures int
	complete bool
	started  bool // the client has sent at least one data blob
}

// Client is a user anywhere on the network. Local users additionally carry a
// connection.
type Client struct {
	stateMutex sync.RWMutex // tier 1

	server *Server
	peer   *Peer // the server this user is on

	uid            string
	nick           string
	nickCasefolded string
	username       string
	hostname       string
	realname       string

	ip         string
	registered bool

	awayMessage  string
	modes        map[string]bool
	capabilities *caps.Set

	account *ClientAccount // nil when logged out

	conn lineSink // non-nil iff local
	sasl saslSession
}

// NewClient creates a user on the given server. conn is nil for remote users.
func NewClient(server *Server, peer *Peer, uid, nick, username, hostname, realname string, conn lineSink) *Client {
	return &Client{
		server:         server,
		peer:           peer,
		uid:            uid,
		nick:           nick,
		nickCasefolded: utils.Casefold(nick),
		username:       username,
		hostname:       hostname,
		realname:       realname,
		modes:          make(map[string]bool),
		capabilities:   caps.NewSet(),
		conn:           conn,
	}
}

func (client *Client) UID() string {
	return client.uid
}

func (client *Client) Nick() string {
	client.stateMutex.RLock()
	defer client.stateMutex.RUnlock()
	return client.nick
}

func (client *Client) NickCasefolded() string {
	client.stateMutex.RLock()
	defer client.stateMutex.RUnlock()
	return client.nickCasefolded
}

func (client *Client) Realname() string {
	client.stateMutex.RLock()
	defer client.stateMutex.RUnlock()
	return client.realname
}

// IsLocal reports whether this user belongs to this server.
func (client *Client) IsLocal() bool {
	return client.conn != nil
}

// Registered reports whether the connection has completed IRC registration.
func (client *Client) Registered() bool {
	client.stateMutex.RLock()
	defer client.stateMutex.RUnlock()
	return client.registered
}

// SetRegistered marks the connection as a registered user.
func (client *Client) SetRegistered() {
	client.stateMutex.Lock()
	defer client.stateMutex.Unlock()
	client.registered = true
}

// IPString returns the client's IP in wire form, "0" when unknown.
func (client *Client) IPString() string {
	client.stateMutex.RLock()
	defer client.stateMutex.RUnlock()
	if client.ip == "" {
		return "0"
	}
	return client.ip
}

// SetIP records the client's IP address.
func (client *Client) SetIP(ip string) {
	client.stateMutex.Lock()
	defer client.stateMutex.Unlock()
	client.ip = ip
}

// Peer returns the server this user is on.
func (client *Client) Peer() *Peer {
	return client.peer
}

// SourceMask returns nick!user@host.
func (client *Client) SourceMask() string {
	client.stateMutex.RLock()
	defer client.stateMutex.RUnlock()
	return fmt.Sprintf("%s!%s@%s", client.nick, client.username, client.hostname)
}

func (client *Client) SourceName() string {
	return client.Nick()
}

func (client *Client) IsServerSource() bool {
	return false
}

// HasMode reports whether the named user mode is set.
func (client *Client) HasMode(name string) bool {
	client.stateMutex.RLock()
	defer client.stateMutex.RUnlock()
	return client.modes[name]
}

func (client *Client) setMode(name string, on bool) (applied bool) {
	client.stateMutex.Lock()
	defer client.stateMutex.Unlock()
	if client.modes[name] == on {
		return false
	}
	if on {
		client.modes[name] = true
	} else {
		delete(client.modes, name)
	}
	return true
}

// HasCap reports whether the client negotiated the given capability.
func (client *Client) HasCap(capab caps.Capability) bool {
	return client.capabilities.Has(capab)
}

// Capabilities exposes the client's capability set.
func (client *Client) Capabilities() *caps.Set {
	return client.capabilities
}

// AwayMessage returns the away message, empty when present.
func (client *Client) AwayMessage() string {
	client.stateMutex.RLock()
	defer client.stateMutex.RUnlock()
	return client.awayMessage
}

// SetAwayMessage records the away message; empty marks the user present.
func (client *Client) SetAwayMessage(message string) {
	client.stateMutex.Lock()
	defer client.stateMutex.Unlock()
	client.awayMessage = message
}

// Account returns the sanitized account attached by a login, or nil.
func (client *Client) Account() *ClientAccount {
	client.stateMutex.RLock()
	defer client.stateMutex.RUnlock()
	return client.account
}

// AccountName returns the account name, or "*" when logged out, which is the
// form used on the wire (extended-join and friends).
func (client *Client) AccountName() string {
	if account := client.Account(); account != nil {
		return account.Name
	}
	return "*"
}

func (client *Client) setAccount(account *ClientAccount) {
	client.stateMutex.Lock()
	defer client.stateMutex.Unlock()
	client.account = account
}

// Send assembles and writes a line to a local client. Lines to remote users
// are dropped here; they reach the user through their server link instead.
func (client *Client) Send(prefix, command string, params ...string) {
	if client.conn == nil {
		return
	}
	message := ircmsg.MakeMessage(nil, prefix, command, params...)
	line, err := message.Line()
	if err != nil {
		client.server.logger.Error("internal", "couldn't assemble message", err.Error())
		return
	}
	client.conn.SendLine(line)
}

// SendFrom writes a line to the client from the given source.
func (client *Client) SendFrom(source Source, command string, params ...string) {
	client.Send(source.SourceMask(), command, params...)
}

// SendRaw writes a preassembled line to a local client.
func (client *Client) SendRaw(line string) {
	if client.conn != nil {
		client.conn.SendLine(line)
	}
}

// Numeric sends the named numeric reply, formatted with args.
func (client *Client) Numeric(name string, args ...string) {
	numeric, ok := LookupNumeric(name)
	if !ok {
		client.server.logger.Error("internal", "unknown numeric", name)
		return
	}
	rendered := fmt.Sprintf(":%s %03d %s %s",
		client.server.Name(), numeric.Code, client.Nick(), numeric.render(args...))
	client.SendRaw(rendered)
}

// ServerNotice sends a tagged server notice to a local client.
func (client *Client) ServerNotice(tag, text string) {
	if client.conn == nil {
		return
	}
	client.Send(client.server.Name(), "NOTICE", client.Nick(),
		fmt.Sprintf("*** %s: %s", tag, text))
}

// FireEvent fires a user-scoped event through the server bus.
func (client *Client) FireEvent(name string, data interface{}) *Event {
	return client.server.events.Fire(name, data)
}

// ClientManager is the pool of users, keyed by UID and by casefolded nick.
type ClientManager struct {
	sync.RWMutex // tier 2
	byUID  map[string]*Client
	byNick map[string]*Client
}

func (cm *ClientManager) Initialize() {
	cm.byUID = make(map[string]*Client)
	cm.byNick = make(map[string]*Client)
}

// Add registers a client in the pool.
func (cm *ClientManager) Add(client *Client) {
	cm.Lock()
	defer cm.Unlock()
	cm.byUID[client.uid] = client
	cm.byNick[client.NickCasefolded()] = client
}

// Remove detaches a client from the pool.
func (cm *ClientManager) Remove(client *Client) {
	cm.Lock()
	defer cm.Unlock()
	delete(cm.byUID, client.uid)
	delete(cm.byNick, client.NickCasefolded())
}

// Get resolves a nickname, case-insensitively.
func (cm *ClientManager) Get(nick string) *Client {
	cm.RLock()
	defer cm.RUnlock()
	return cm.byNick[utils.Casefold(nick)]
}

// GetByUID resolves a UID.
func (cm *ClientManager) GetByUID(uid string) *Client {
	cm.RLock()
	defer cm.RUnlock()
	return cm.byUID[uid]
}

// ChangeNick renames a client in the index.
func (cm *ClientManager) ChangeNick(client *Client, newNick string) {
	cfnick := utils.Casefold(newNick)

	cm.Lock()
	defer cm.Unlock()

	client.stateMutex.Lock()
	delete(cm.byNick, client.nickCasefolded)
	client.nick = newNick
	client.nickCasefolded = cfnick
	client.stateMutex.Unlock()

	cm.byNick[cfnick] = client
}

// All returns every user in the pool.
func (cm *ClientManager) All() (result []*Client) {
	cm.RLock()
	defer cm.RUnlock()
	for _, client := range cm.byUID {
		result = append(result, client)
	}
	return
}

// Count returns the number of users in the pool.
func (cm *ClientManager) Count() int {
	cm.RLock()
	defer cm.RUnlock()
	return len(cm.byUID)
}
