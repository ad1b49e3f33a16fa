// Copyright (c) 2026 Mitchell Cooper
// released under the MIT license

package irc

import (
	"fmt"

	"github.com/cooper/vulpia/irc/utils"
)

// SASL is proxied: the server never evaluates mechanisms itself. Client
// AUTHENTICATE traffic is tunneled to a services agent over ENCAP frames and
// the agent's verdicts are relayed back as numerics.

// saslAgentClient resolves the configured services agent, which must be a
// remote user.
func (server *Server) saslAgentClient() *Client {
	agentNick := server.Config().Services.SASLAgent
	if agentNick == "" {
		return nil
	}
	agent := server.clients.Get(agentNick)
	if agent == nil || agent.IsLocal() || agent.peer == nil {
		return nil
	}
	return agent
}

// HandleAuthenticate processes a local client's AUTHENTICATE line: the first
// one opens a session toward the agent, later ones forward data blobs, and
// "*" aborts.
func (server *Server) HandleAuthenticate(client *Client, param string) {
	if param == "*" {
		server.saslAbort(client)
		return
	}

	client.stateMutex.RLock()
	agentUID := client.sasl.agent
	client.stateMutex.RUnlock()

	if agentUID == "" {
		agent := server.saslAgentClient()
		if agent == nil {
			client.Numeric("ERR_SASLFAIL")
			return
		}
		client.stateMutex.Lock()
		client.sasl.agent = agent.uid
		client.stateMutex.Unlock()

		server.sendSASLHost(client, agent)
		server.sendSASLStart(client, agent, param)
		return
	}

	agent := server.clients.GetByUID(agentUID)
	if agent == nil {
		client.Numeric("ERR_SASLFAIL")
		server.clearSASL(client)
		return
	}

	client.stateMutex.Lock()
	client.sasl.started = true
	client.stateMutex.Unlock()
	server.sendSASLClientData(client, agent, param)
}

// sendSASLHost emits the host-info frame: temp UID, agent UID, temp host,
// temp IP. UIDs are already in TS6 form; encoding at the boundary is the
// identity here.
func (server *Server) sendSASLHost(client *Client, agent *Client) {
	server.sendEncap(agent.peer, "SASL",
		client.uid, agent.uid, "H", client.hostname, client.IPString())
}

// sendSASLStart emits the session-initiate frame with the chosen mechanism.
func (server *Server) sendSASLStart(client *Client, agent *Client, mechanism string) {
	server.sendEncap(agent.peer, "SASL",
		client.uid, agent.uid, "S", mechanism)
}

// sendSASLClientData forwards a base64 blob from the client to the agent.
func (server *Server) sendSASLClientData(client *Client, agent *Client, blob string) {
	server.sendEncap(agent.peer, "SASL",
		client.uid, agent.uid, "C", blob)
}

// saslAbort tells the agent the client gave up, then resets the session.
func (server *Server) saslAbort(client *Client) {
	client.stateMutex.RLock()
	agentUID := client.sasl.agent
	client.stateMutex.RUnlock()

	if agentUID != "" {
		if agent := server.clients.GetByUID(agentUID); agent != nil {
			server.sendEncap(agent.peer, "SASL", client.uid, agent.uid, "D", "A")
		}
	}
	client.Numeric("ERR_SASLFAIL")
	server.clearSASL(client)
}

func (server *Server) clearSASL(client *Client) {
	client.stateMutex.Lock()
	client.sasl.agent = ""
	client.sasl.messages = 0
	client.sasl.started = false
	client.stateMutex.Unlock()
}

// sendEncap sends an ENCAP frame addressed to the given peer's server name.
func (server *Server) sendEncap(target *Peer, cmd string, params ...string) {
	if target == nil {
		return
	}
	full := append([]string{target.Name(), cmd}, params...)
	target.Send(server.me.sid, "ENCAP", full...)
}

// HandleEncap dispatches an incoming ENCAP frame. Frames whose mask is not
// exactly this server's name are passed along untouched: only agents may
// respond to broadcast.
func (server *Server) HandleEncap(source *Peer, arrivedOn *Peer, mask, cmd string, params []string) {
	if utils.Casefold(mask) != server.me.nameCasefolded {
		server.forwardEncap(source, arrivedOn, mask, cmd, params)
		return
	}

	switch cmd {
	case "SASL":
		server.handleEncapSASL(source, params)
	case "SVSLOGIN":
		server.handleEncapSVSLOGIN(source, params)
	default:
		server.logger.Debug("sasl", "unhandled ENCAP subcommand", cmd)
	}
}

func (server *Server) forwardEncap(source *Peer, arrivedOn *Peer, mask, cmd string, params []string) {
	full := append([]string{mask, cmd}, params...)
	for _, peer := range server.servers.DirectPeers() {
		if peer == arrivedOn || peer.Route() == arrivedOn {
			continue
		}
		peer.Send(source.SID(), "ENCAP", full...)
	}
}

// handleEncapSASL processes an agent→server SASL frame:
// <agent_uid> <target_uid> <C|D|M> <data>
func (server *Server) handleEncapSASL(source *Peer, params []string) {
	if len(params) < 3 {
		server.logger.Debug("sasl", "malformed SASL encap")
		return
	}
	agentUID, targetUID, mode := params[0], params[1], params[2]
	var data string
	if len(params) > 3 {
		data = params[3]
	}

	agent := server.clients.GetByUID(agentUID)
	if agent == nil || agent.peer != source {
		server.logger.Debug("sasl",
			fmt.Sprintf("agent %s is not owned by %s; dropping", agentUID, source.Name()))
		return
	}

	target := server.clients.GetByUID(targetUID)
	if target == nil || !target.IsLocal() {
		server.logger.Debug("sasl", fmt.Sprintf("%v: %s", errSaslUnknownTarget, targetUID))
		return
	}

	// pin the session to the first agent that answers
	target.stateMutex.Lock()
	if target.sasl.agent == "" {
		target.sasl.agent = agent.uid
	} else if target.sasl.agent != agent.uid {
		target.stateMutex.Unlock()
		server.logger.Debug("sasl", fmt.Sprintf("%v: %s", errSaslAgentMismatch, agentUID))
		return
	}
	target.stateMutex.Unlock()

	switch mode {
	case "C":
		target.Send("", "AUTHENTICATE", data)
		target.stateMutex.Lock()
		target.sasl.messages++
		target.stateMutex.Unlock()

	case "D":
		switch data {
		case "F":
			target.Numeric("ERR_SASLFAIL")
			target.stateMutex.Lock()
			// an immediate failure with no client data means the mechanism
			// was unknown; that does not count against the client
			if target.sasl.started {
				target.sasl.failures++
			}
			target.sasl.agent = ""
			target.sasl.messages = 0
			target.sasl.started = false
			target.stateMutex.Unlock()
		case "S":
			target.Numeric("RPL_SASLSUCCESS")
			target.stateMutex.Lock()
			target.sasl.failures = 0
			target.sasl.complete = true
			target.sasl.agent = ""
			target.sasl.messages = 0
			target.sasl.started = false
			target.stateMutex.Unlock()
		default:
			server.logger.Debug("sasl", "unknown SASL done state", data)
		}

	case "M":
		target.Numeric("RPL_SASLMECHS", data)

	default:
		server.logger.Debug("sasl", "unknown SASL mode", mode)
	}
}

// handleEncapSVSLOGIN processes an agent-driven identity update:
// <target_uid> <nick|*> <ident|*> <cloak|*> <account|0>
func (server *Server) handleEncapSVSLOGIN(source *Peer, params []string) {
	if len(params) < 5 {
		server.logger.Debug("sasl", "malformed SVSLOGIN encap")
		return
	}
	targetUID := params[0]

	target := server.clients.GetByUID(targetUID)
	if target == nil || !target.IsLocal() {
		server.logger.Debug("sasl", fmt.Sprintf("%v: %s", errSaslUnknownTarget, targetUID))
		return
	}
	if target.Registered() {
		// identity rewrites of a fully registered user are not honored
		server.logger.Debug("sasl",
			fmt.Sprintf("rejecting SVSLOGIN for registered user %s", target.Nick()))
		return
	}

	server.updateUserInfo(target, params[1], params[2], params[3])
	server.updateAccount(target, params[4])
}

// updateUserInfo applies nick/ident/cloak rewrites; "*" means unchanged.
func (server *Server) updateUserInfo(client *Client, nick, ident, cloak string) {
	if nick != "*" {
		server.clients.ChangeNick(client, nick)
	}
	client.stateMutex.Lock()
	if ident != "*" {
		client.username = ident
	}
	if cloak != "*" {
		client.hostname = cloak
	}
	client.stateMutex.Unlock()
}

// updateAccount applies an agent-asserted account name; "0" logs out.
func (server *Server) updateAccount(client *Client, accountName string) {
	if accountName == "0" || accountName == "" {
		server.accounts.Logout(client, false)
		return
	}
	if err := server.accounts.Login(accountName, client, nil, false); err != nil {
		server.logger.Debug("sasl",
			fmt.Sprintf("SVSLOGIN login to %s failed: %v", accountName, err))
	}
}
