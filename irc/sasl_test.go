// Copyright (c) 2026 Mitchell Cooper
// released under the MIT license

package irc

import (
	"strings"
	"testing"
)

// saslFixture wires a services peer carrying an agent into a test server.
func saslFixture(t *testing.T) (server *Server, services *Peer, servicesSink *recordedSink, agent *Client) {
	server = newTestServer(t)

	config := testConfig()
	config.Services = ServicesConfig{Server: "services.test.example", SASLAgent: "SaslServ"}
	server.SetConfig(config)

	services, servicesSink = newTestPeer(server, "services.test.example", "0SV")
	agent = newRemoteClient(server, services, "SaslServ")
	return
}

func TestSASLSuccess(t *testing.T) {
	server, services, servicesSink, agent := saslFixture(t)
	client, clientSink := newLocalClient(server, "conny")

	// AUTHENTICATE PLAIN opens the session: host info, then initiation
	server.HandleAuthenticate(client, "PLAIN")

	lines := servicesSink.Lines()
	if len(lines) != 2 {
		t.Fatalf("expected H and S frames, got %v", lines)
	}
	wantH := "ENCAP services.test.example SASL " + client.UID() + " " + agent.UID() + " H"
	if !strings.Contains(lines[0], wantH) {
		t.Errorf("unexpected host frame: %q", lines[0])
	}
	if !strings.Contains(lines[1], " S PLAIN") {
		t.Errorf("unexpected initiate frame: %q", lines[1])
	}
	servicesSink.Clear()

	// the client's blob is forwarded as a C frame
	server.HandleAuthenticate(client, "AGFsaWNlAGh1bnRlcjI=")
	if !servicesSink.Contains(" C AGFsaWNlAGh1bnRlcjI=") {
		t.Errorf("expected client data frame, got %v", servicesSink.Lines())
	}

	// agent sends a challenge back
	server.HandleEncap(services, services, server.Name(), "SASL",
		[]string{agent.UID(), client.UID(), "C", "QWhveQ=="})
	if !clientSink.Contains("AUTHENTICATE QWhveQ==") {
		t.Errorf("challenge should be written to the client, got %v", clientSink.Lines())
	}
	if client.sasl.messages != 1 {
		t.Errorf("message count should be 1, is %d", client.sasl.messages)
	}

	// agent declares success
	server.HandleEncap(services, services, server.Name(), "SASL",
		[]string{agent.UID(), client.UID(), "D", "S"})
	if !clientSink.Contains("903") {
		t.Errorf("expected RPL_SASLSUCCESS, got %v", clientSink.Lines())
	}
	if !client.sasl.complete {
		t.Errorf("session should be complete")
	}
	if client.sasl.agent != "" || client.sasl.messages != 0 {
		t.Errorf("agent and message count should be cleared: %+v", client.sasl)
	}
	if client.sasl.failures != 0 {
		t.Errorf("failures should be cleared")
	}
}

func TestSASLFailure(t *testing.T) {
	server, services, _, agent := saslFixture(t)
	client, clientSink := newLocalClient(server, "conny")

	server.HandleAuthenticate(client, "PLAIN")

	// failure before any client data is an unknown mechanism and doesn't
	// count against the client
	server.HandleEncap(services, services, server.Name(), "SASL",
		[]string{agent.UID(), client.UID(), "D", "F"})
	if !clientSink.Contains("904") {
		t.Errorf("expected ERR_SASLFAIL, got %v", clientSink.Lines())
	}
	if client.sasl.failures != 0 {
		t.Errorf("unknown mechanism should not count as a failure")
	}
	if client.sasl.agent != "" {
		t.Errorf("agent pin should be cleared")
	}

	// a failure after client data does count
	server.HandleAuthenticate(client, "PLAIN")
	server.HandleAuthenticate(client, "blob")
	server.HandleEncap(services, services, server.Name(), "SASL",
		[]string{agent.UID(), client.UID(), "D", "F"})
	if client.sasl.failures != 1 {
		t.Errorf("failure count should be 1, is %d", client.sasl.failures)
	}
}

func TestSASLAgentPinning(t *testing.T) {
	server, services, _, agent := saslFixture(t)
	client, clientSink := newLocalClient(server, "conny")
	impostor := newRemoteClient(server, services, "Impostor")

	server.HandleAuthenticate(client, "PLAIN")

	// a different agent on the same server may not take over the session
	server.HandleEncap(services, services, server.Name(), "SASL",
		[]string{impostor.UID(), client.UID(), "C", "xyz"})
	if clientSink.Contains("AUTHENTICATE xyz") {
		t.Errorf("mismatched agent should be dropped")
	}

	// the pinned agent still works
	server.HandleEncap(services, services, server.Name(), "SASL",
		[]string{agent.UID(), client.UID(), "C", "ok"})
	if !clientSink.Contains("AUTHENTICATE ok") {
		t.Errorf("pinned agent should get through, got %v", clientSink.Lines())
	}
}

func TestSASLAgentOwnership(t *testing.T) {
	server, _, _, agent := saslFixture(t)
	client, clientSink := newLocalClient(server, "conny")
	other, _ := newTestPeer(server, "other.test.example", "9ZZ")

	// frames claiming an agent owned by a different server are dropped
	server.HandleEncap(other, other, server.Name(), "SASL",
		[]string{agent.UID(), client.UID(), "C", "spoof"})
	if clientSink.Contains("AUTHENTICATE spoof") {
		t.Errorf("spoofed agent ownership should be dropped")
	}
}

func TestSASLMechList(t *testing.T) {
	server, services, _, agent := saslFixture(t)
	client, clientSink := newLocalClient(server, "conny")

	server.HandleEncap(services, services, server.Name(), "SASL",
		[]string{agent.UID(), client.UID(), "M", "PLAIN,EXTERNAL"})
	if !clientSink.Contains("908") || !clientSink.Contains("PLAIN,EXTERNAL") {
		t.Errorf("expected RPL_SASLMECHS, got %v", clientSink.Lines())
	}
}

func TestSASLAbort(t *testing.T) {
	server, _, servicesSink, _ := saslFixture(t)
	client, clientSink := newLocalClient(server, "conny")

	server.HandleAuthenticate(client, "PLAIN")
	servicesSink.Clear()

	server.HandleAuthenticate(client, "*")
	if !servicesSink.Contains(" D A") {
		t.Errorf("abort should notify the agent, got %v", servicesSink.Lines())
	}
	if !clientSink.Contains("904") {
		t.Errorf("abort fails the exchange client-side")
	}
	if client.sasl.agent != "" {
		t.Errorf("abort should clear the session")
	}
}

func TestEncapForwarding(t *testing.T) {
	server, services, servicesSink, agent := saslFixture(t)
	_, otherSink := newTestPeer(server, "other.test.example", "9ZZ")
	client, clientSink := newLocalClient(server, "conny")

	// a mask that isn't exactly us is forwarded, not processed
	server.HandleEncap(services, services, "*.example", "SASL",
		[]string{agent.UID(), client.UID(), "C", "blob"})

	if clientSink.Contains("AUTHENTICATE blob") {
		t.Errorf("broadcast frames are not processed locally")
	}
	if !otherSink.Contains("ENCAP *.example SASL") {
		t.Errorf("frame should be forwarded to other links, got %v", otherSink.Lines())
	}
	if servicesSink.Contains("ENCAP *.example SASL") {
		t.Errorf("frame should not be forwarded back where it came from")
	}
}

func TestSVSLOGIN(t *testing.T) {
	server, services, _, _ := saslFixture(t)
	conn, _ := newLocalClient(server, "preconn")
	conn.stateMutex.Lock()
	conn.registered = false // still a bare connection
	conn.stateMutex.Unlock()

	server.accounts.Register("alice", "hunter2", server.me, nil)

	server.HandleEncap(services, services, server.Name(), "SVSLOGIN",
		[]string{conn.UID(), "alice", "aident", "cloaked.host", "alice"})

	if conn.Nick() != "alice" {
		t.Errorf("nick should be rewritten, is %q", conn.Nick())
	}
	if conn.SourceMask() != "alice!aident@cloaked.host" {
		t.Errorf("ident and cloak should be rewritten: %q", conn.SourceMask())
	}
	if account := conn.Account(); account == nil || account.Name != "alice" {
		t.Errorf("account should be attached: %+v", account)
	}

	// "*" leaves fields unchanged; "0" logs out
	server.HandleEncap(services, services, server.Name(), "SVSLOGIN",
		[]string{conn.UID(), "*", "*", "*", "0"})
	if conn.Nick() != "alice" {
		t.Errorf("* should leave the nick alone")
	}
	if conn.Account() != nil {
		t.Errorf("0 should log the account out")
	}
}

func TestSVSLOGINRejectsRegisteredUser(t *testing.T) {
	server, services, _, _ := saslFixture(t)
	user, _ := newLocalClient(server, "established")

	server.HandleEncap(services, services, server.Name(), "SVSLOGIN",
		[]string{user.UID(), "newnick", "*", "*", "0"})

	if user.Nick() != "established" {
		t.Errorf("a registered user's identity is not rewritten")
	}
}
