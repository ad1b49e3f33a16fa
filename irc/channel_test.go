// Copyright (c) 2026 Mitchell Cooper
// released under the MIT license

package irc

import (
	"strings"
	"testing"

	"github.com/cooper/vulpia/irc/modes"
)

func TestKickRemovesStatus(t *testing.T) {
	server := newTestServer(t)
	alice, aliceSink := newLocalClient(server, "alice")
	bob, bobSink := newLocalClient(server, "bob")

	channel, _ := server.channels.GetOrCreate("#a")
	channel.AddUser(alice)
	channel.AddUser(bob)
	channel.AddToList("op", alice.UID(), server.Name())
	channel.AddToList("voice", bob.UID(), server.Name())

	channel.Kick(bob, alice, "bye")

	want := ":alice!ualice@alice.host KICK #a bob :bye"
	if !aliceSink.Contains(want) {
		t.Errorf("alice should see the kick, got %v", aliceSink.Lines())
	}
	if !bobSink.Contains(want) {
		t.Errorf("bob should see the kick, got %v", bobSink.Lines())
	}
	if channel.HasUser(bob) {
		t.Errorf("bob should be removed from the channel")
	}
	if channel.ListHas("voice", bob.UID()) {
		t.Errorf("bob should be purged from the voice list")
	}
}

func TestRemoveUserPurgesEveryStatusList(t *testing.T) {
	server := newTestServer(t)
	alice, _ := newLocalClient(server, "alice")
	bob, _ := newLocalClient(server, "bob")

	channel, _ := server.channels.GetOrCreate("#purge")
	channel.AddUser(alice)
	channel.AddUser(bob)
	for _, status := range []string{"owner", "op", "voice"} {
		channel.AddToList(status, bob.UID(), server.Name())
	}

	channel.RemoveUser(bob)

	for _, status := range []string{"owner", "op", "voice"} {
		if channel.ListHas(status, bob.UID()) {
			t.Errorf("bob should be purged from %s", status)
		}
	}
	if channel.UserHighestLevel(bob) != modes.NoLevel {
		t.Errorf("a departed user has no level")
	}
	// alice is still here, so the channel survives
	if server.channels.Get("#purge") == nil {
		t.Errorf("non-empty channel should not be destroyed")
	}

	channel.RemoveUser(alice)
	if server.channels.Get("#purge") != nil {
		t.Errorf("empty channel should be destroyed")
	}
}

func TestCanDestroyVeto(t *testing.T) {
	server := newTestServer(t)
	alice, _ := newLocalClient(server, "alice")

	server.events.Subscribe(eventCanDestroy, func(e *Event) {
		e.Stop("kept for testing")
	})

	channel, _ := server.channels.GetOrCreate("#keep")
	channel.AddUser(alice)
	channel.RemoveUser(alice)

	if server.channels.Get("#keep") == nil {
		t.Errorf("vetoed channel should survive emptying out")
	}
}

func TestListDuplicatesRefused(t *testing.T) {
	server := newTestServer(t)
	channel, _ := server.channels.GetOrCreate("#lists")

	if err := channel.AddToList("ban", "*!*@spam.example", "alice"); err != nil {
		t.Fatal(err)
	}
	if err := channel.AddToList("ban", "*!*@spam.example", "bob"); err != errListDuplicate {
		t.Errorf("expected duplicate refusal, got %v", err)
	}
	if got := len(channel.ListElements("ban")); got != 1 {
		t.Errorf("list should have one element, has %d", got)
	}
}

func TestListMatches(t *testing.T) {
	server := newTestServer(t)
	channel, _ := server.channels.GetOrCreate("#masks")
	channel.AddToList("ban", "*!*@spam.example", "alice")

	if !channel.ListMatches("ban", "evil!user@spam.example") {
		t.Errorf("subject should match the ban")
	}
	if channel.ListMatches("ban", "good!user@ham.example") {
		t.Errorf("subject should not match the ban")
	}
}

func TestUserLevels(t *testing.T) {
	server := newTestServer(t)
	alice, _ := newLocalClient(server, "alice")
	channel, _ := server.channels.GetOrCreate("#levels")

	if channel.UserHighestLevel(alice) != modes.NoLevel {
		t.Errorf("non-member should have no level")
	}

	channel.AddUser(alice)
	channel.AddToList("voice", alice.UID(), server.Name())
	if channel.UserHasBasicStatus(alice) {
		t.Errorf("voice is below basic status")
	}

	channel.AddToList("halfop", alice.UID(), server.Name())
	if !channel.UserHasBasicStatus(alice) {
		t.Errorf("halfop is basic status")
	}
	if channel.UserHighestLevel(alice) != 1 {
		t.Errorf("unexpected highest level: %d", channel.UserHighestLevel(alice))
	}

	if got := channel.Prefixes(alice, nil); got != "%" {
		t.Errorf("unexpected prefixes: %q", got)
	}
}

func TestTakeLowerTime(t *testing.T) {
	server := newTestServer(t)
	alice, aliceSink := newLocalClient(server, "alice")

	channel, _ := server.channels.GetOrCreate("#ts")
	channel.AddUser(alice)
	channel.stateMutex.Lock()
	channel.createdTime = 1000
	channel.stateMutex.Unlock()

	server.HandleModeString(channel, server.me, []string{"+mnt"}, true, false)
	channel.SetTopic(alice, "old topic")
	aliceSink.Clear()

	if got := channel.TakeLowerTime(500, false); got != 500 {
		t.Errorf("TS should lower to 500, got %d", got)
	}
	if channel.Time() != 500 {
		t.Errorf("channel time should be 500")
	}
	for _, mode := range []string{"moderated", "no_ext", "protect_topic"} {
		if channel.IsMode(mode) {
			t.Errorf("mode %s should be cleared", mode)
		}
	}
	if channel.Topic() != "" {
		t.Errorf("topic should be dropped")
	}
	if !aliceSink.Contains("MODE #ts -mnt") {
		t.Errorf("members should see the mode clear, got %v", aliceSink.Lines())
	}
	if !aliceSink.Contains("New channel time") {
		t.Errorf("members should see the time notice")
	}
}

func TestTakeLowerTimeIdempotent(t *testing.T) {
	server := newTestServer(t)
	channel, _ := server.channels.GetOrCreate("#ts2")
	channel.stateMutex.Lock()
	channel.createdTime = 1000
	channel.stateMutex.Unlock()

	server.HandleModeString(channel, server.me, []string{"+mn"}, true, false)

	if got := channel.TakeLowerTime(1000, false); got != 1000 {
		t.Errorf("equal TS should be a no-op, got %d", got)
	}
	if got := channel.TakeLowerTime(2000, false); got != 1000 {
		t.Errorf("higher TS should be a no-op, got %d", got)
	}
	if !channel.IsMode("moderated") {
		t.Errorf("modes should survive a no-op reconciliation")
	}
}

func TestDoJoinExtendedJoin(t *testing.T) {
	server := newTestServer(t)
	alice, _ := newLocalClient(server, "alice")
	bob, bobSink := newLocalClient(server, "bob")
	carol, carolSink := newLocalClient(server, "carol")
	bob.Capabilities().Enable("extended-join")

	channel, _ := server.channels.GetOrCreate("#join")
	channel.AddUser(bob)
	channel.AddUser(carol)

	channel.DoJoin(alice, false)

	if !bobSink.Contains("JOIN #join * :Real alice") {
		t.Errorf("extended-join member should see account and realname, got %v", bobSink.Lines())
	}
	if !carolSink.Contains("JOIN #join") || carolSink.Contains("Real alice") {
		t.Errorf("plain member should see a bare join, got %v", carolSink.Lines())
	}
}

func TestDoJoinAwayNotify(t *testing.T) {
	server := newTestServer(t)
	alice, _ := newLocalClient(server, "alice")
	bob, bobSink := newLocalClient(server, "bob")
	bob.Capabilities().Enable("away-notify")
	alice.SetAwayMessage("gone fishing")

	channel, _ := server.channels.GetOrCreate("#away")
	channel.AddUser(bob)
	channel.DoJoin(alice, false)

	if !bobSink.Contains("AWAY :gone fishing") {
		t.Errorf("away-notify member should learn the away message, got %v", bobSink.Lines())
	}
}

func TestNames(t *testing.T) {
	server := newTestServer(t)
	alice, aliceSink := newLocalClient(server, "alice")
	bob, _ := newLocalClient(server, "bob")

	channel, _ := server.channels.GetOrCreate("#names")
	channel.AddUser(alice)
	channel.AddUser(bob)
	channel.AddToList("op", alice.UID(), server.Name())
	aliceSink.Clear()

	channel.Names(alice, false)

	lines := aliceSink.Lines()
	if len(lines) != 2 {
		t.Fatalf("expected one reply and one end, got %v", lines)
	}
	if !strings.Contains(lines[0], "353") || !strings.Contains(lines[0], "@alice") ||
		!strings.Contains(lines[0], "bob") {
		t.Errorf("unexpected NAMES reply: %q", lines[0])
	}
	if !strings.Contains(lines[1], "366") {
		t.Errorf("expected end of names: %q", lines[1])
	}
}

func TestNamesInvisible(t *testing.T) {
	server := newTestServer(t)
	alice, aliceSink := newLocalClient(server, "alice")
	ghost, _ := newLocalClient(server, "ghost")
	ghost.setMode("invisible", true)

	channel, _ := server.channels.GetOrCreate("#inv")
	channel.AddUser(ghost)

	// alice does not share the channel, so the invisible member is hidden
	channel.Names(alice, false)
	if aliceSink.Contains("ghost") {
		t.Errorf("invisible member should be hidden from outsiders")
	}
	aliceSink.Clear()

	channel.AddUser(alice)
	channel.Names(alice, false)
	if !aliceSink.Contains("ghost") {
		t.Errorf("invisible member should be visible to channel members")
	}
}

func TestPrivMsgNotice(t *testing.T) {
	server := newTestServer(t)
	alice, aliceSink := newLocalClient(server, "alice")
	bob, bobSink := newLocalClient(server, "bob")
	deaf, deafSink := newLocalClient(server, "deafguy")
	deaf.setMode("deaf", true)

	peer, peerSink := newTestPeer(server, "remote.test.example", "2SA")
	remote := newRemoteClient(server, peer, "remmy")

	channel, _ := server.channels.GetOrCreate("#msg")
	for _, member := range []*Client{alice, bob, deaf, remote} {
		channel.AddUser(member)
	}

	channel.PrivMsgNotice("PRIVMSG", alice, "hello world")

	if aliceSink.Contains("hello world") {
		t.Errorf("the source should not hear its own message")
	}
	if !bobSink.Contains("PRIVMSG #msg :hello world") {
		t.Errorf("local member should hear the message, got %v", bobSink.Lines())
	}
	if deafSink.Contains("hello world") {
		t.Errorf("deaf member should be skipped")
	}
	if !peerSink.Contains("PRIVMSG #msg :hello world") {
		t.Errorf("remote member's link should be forwarded to once, got %v", peerSink.Lines())
	}
}

func TestPrivMsgVeto(t *testing.T) {
	server := newTestServer(t)
	alice, _ := newLocalClient(server, "alice")
	bob, bobSink := newLocalClient(server, "bob")

	server.events.Subscribe(eventCanMessage, func(e *Event) {
		e.Stop("moderated")
	})

	channel, _ := server.channels.GetOrCreate("#veto")
	channel.AddUser(alice)
	channel.AddUser(bob)
	channel.PrivMsgNotice("PRIVMSG", alice, "blocked")

	if bobSink.Contains("blocked") {
		t.Errorf("vetoed message should be dropped")
	}
}

func TestModeStringAll(t *testing.T) {
	server := newTestServer(t)
	alice, _ := newLocalClient(server, "alice")

	channel, _ := server.channels.GetOrCreate("#str")
	channel.AddUser(alice)
	channel.SetMode("moderated", "")
	channel.SetMode("limit", "20")
	channel.AddToList("ban", "*!*@spam.example", "alice")
	channel.AddToList("op", alice.UID(), server.Name())

	userView, serverView := channel.ModeStringAll(false)
	if userView != "+blmo *!*@spam.example 20 alice" {
		t.Errorf("unexpected user view: %q", userView)
	}
	if serverView != "+blmo *!*@spam.example 20 "+alice.UID() {
		t.Errorf("unexpected server view: %q", serverView)
	}

	noStatus, _ := channel.ModeStringAll(true)
	if strings.Contains(noStatus, "o") {
		t.Errorf("noStatus view should omit status modes: %q", noStatus)
	}

	statusUser, statusServer := channel.ModeStringStatus()
	if statusUser != "+o alice" || statusServer != "+o "+alice.UID() {
		t.Errorf("unexpected status views: %q %q", statusUser, statusServer)
	}
}
