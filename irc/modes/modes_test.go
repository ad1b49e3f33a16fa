// Copyright (c) 2026 Mitchell Cooper
// released under the MIT license

package modes

import (
	"reflect"
	"testing"
)

func TestParseModeString(t *testing.T) {
	table := DefaultChannelModes()

	changes, unknown := table.ParseModeString("+h", "wrmsr")
	if len(unknown) > 0 {
		t.Errorf("unexpected unknown mode letter: %v", unknown)
	}
	expected := ModeChange{
		Op:    Add,
		Name:  "halfop",
		Param: "wrmsr",
	}
	if len(changes) != 1 || changes[0] != expected {
		t.Errorf("unexpected mode change: %v", changes)
	}

	changes, unknown = table.ParseModeString("-v", "alice")
	if len(unknown) > 0 {
		t.Errorf("unexpected unknown mode letter: %v", unknown)
	}
	expected = ModeChange{
		Op:    Remove,
		Name:  "voice",
		Param: "alice",
	}
	if len(changes) != 1 || changes[0] != expected {
		t.Errorf("unexpected mode change: %v", changes)
	}

	changes, unknown = table.ParseModeString("+tx")
	if len(unknown) != 1 || unknown[0] != 'x' {
		t.Errorf("expected that x is an unknown mode, instead: %v", unknown)
	}
	if len(changes) != 1 || changes[0].Name != "protect_topic" {
		t.Errorf("unexpected mode change: %v", changes)
	}

	// mandatory parameter missing: the mode is dropped, the batch survives
	changes, _ = table.ParseModeString("+ol", "alice")
	expectedChanges := ModeChanges{
		{Op: Add, Name: "op", Param: "alice"},
	}
	if !reflect.DeepEqual(changes, expectedChanges) {
		t.Errorf("unexpected mode changes: %v", changes)
	}

	// sign changes mid-string
	changes, _ = table.ParseModeString("+m-n+b", "*!*@spam.example")
	expectedChanges = ModeChanges{
		{Op: Add, Name: "moderated"},
		{Op: Remove, Name: "no_ext"},
		{Op: Add, Name: "ban", Param: "*!*@spam.example"},
	}
	if !reflect.DeepEqual(changes, expectedChanges) {
		t.Errorf("unexpected mode changes: %v", changes)
	}

	// +b with no parameter is the list-view form and still parses
	changes, _ = table.ParseModeString("b")
	if len(changes) != 1 || changes[0].Name != "ban" || changes[0].Param != "" {
		t.Errorf("unexpected mode changes: %v", changes)
	}
}

func TestTakesParameter(t *testing.T) {
	table := DefaultChannelModes()

	cases := []struct {
		name string
		set  bool
		want int
	}{
		{"moderated", true, TakesNone},
		{"moderated", false, TakesNone},
		{"forward", true, TakesMandatory},
		{"forward", false, TakesMandatory},
		{"limit", true, TakesMandatory},
		{"limit", false, TakesNone},
		{"ban", true, TakesOptional},
		{"op", true, TakesMandatory},
		{"op", false, TakesMandatory},
		{"key", true, TakesMandatory},
		{"key", false, TakesOptional},
	}
	for _, c := range cases {
		if got := table.TakesParameter(c.name, c.set); got != c.want {
			t.Errorf("TakesParameter(%s, %v) = %d, want %d", c.name, c.set, got, c.want)
		}
	}
}

func TestStringsRoundTrip(t *testing.T) {
	table := DefaultChannelModes()

	changes, _ := table.ParseModeString("+mnt-s+l", "20")
	user, server := table.Strings(changes, false)
	if user != "+mnt-s+l 20" {
		t.Errorf("unexpected user view: %q", user)
	}
	if server != user {
		t.Errorf("server view should match user view without status params: %q", server)
	}

	// reparsing the rendered string yields the same changes
	reparsed, _ := table.ParseModeString("+mnt-s+l", "20")
	if !reflect.DeepEqual(changes, reparsed) {
		t.Errorf("round trip mismatch: %v vs %v", changes, reparsed)
	}
}

func TestStringsServerView(t *testing.T) {
	table := DefaultChannelModes()

	changes := ModeChanges{
		{Op: Add, Name: "op", Param: "alice", ServerParam: "1SAAAAAAB"},
		{Op: Add, Name: "ban", Param: "*!*@host"},
	}
	user, server := table.Strings(changes, false)
	if user != "+ob alice *!*@host" {
		t.Errorf("unexpected user view: %q", user)
	}
	if server != "+ob 1SAAAAAAB *!*@host" {
		t.Errorf("unexpected server view: %q", server)
	}
}

func TestStringsOrganize(t *testing.T) {
	table := DefaultChannelModes()

	changes, _ := table.ParseModeString("-t+nm")
	user, _ := table.Strings(changes, true)
	if user != "+mn-t" {
		t.Errorf("unexpected organized view: %q", user)
	}
}

func TestSplit(t *testing.T) {
	table := DefaultChannelModes()
	changes, _ := table.ParseModeString("+ooo", "a", "b", "c")

	chunks := Split(changes, 2)
	if len(chunks) != 2 || len(chunks[0]) != 2 || len(chunks[1]) != 1 {
		t.Errorf("unexpected split: %v", chunks)
	}
}

func TestStatusLadder(t *testing.T) {
	if StatusLevel("halfop") != 1 || StatusLevel("owner") != 4 {
		t.Errorf("unexpected ladder levels")
	}
	if StatusLevel("ban") != NoLevel {
		t.Errorf("non-status mode should have no level")
	}

	pfx, ok := PrefixByLevel(2)
	if !ok || pfx.Name != "op" || pfx.Symbol != '@' {
		t.Errorf("unexpected prefix for level 2: %+v", pfx)
	}

	if got := SymbolsFromLevels([]int{0, 2}, true); got != "@+" {
		t.Errorf("unexpected multi-prefix symbols: %q", got)
	}
	if got := SymbolsFromLevels([]int{0, 2}, false); got != "@" {
		t.Errorf("unexpected single-prefix symbols: %q", got)
	}
}

func TestSplitMembershipPrefixes(t *testing.T) {
	prefixes, name := SplitMembershipPrefixes("@+alice")
	if prefixes != "@+" || name != "alice" {
		t.Errorf("unexpected split: %q %q", prefixes, name)
	}
}

func TestTokens(t *testing.T) {
	table := DefaultChannelModes()
	if got := table.ChanmodesToken(); got != "be,fk,l,imnst" {
		t.Errorf("unexpected CHANMODES token: %q", got)
	}
	if got := PrefixToken(); got != "(qaohv)~&@%+" {
		t.Errorf("unexpected PREFIX token: %q", got)
	}
}
