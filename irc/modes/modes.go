// Copyright (c) 2026 Mitchell Cooper
// released under the MIT license

package modes

import (
	"fmt"
	"math"
	"sort"
	"strings"
)

// ModeType classifies a channel mode by its parameter discipline.
type ModeType int

const (
	// TypeNormal modes are never parameterized (+m).
	TypeNormal ModeType = iota
	// TypeParameter modes require a parameter when setting and unsetting.
	TypeParameter
	// TypeParameterSet modes require a parameter when setting only (+l).
	TypeParameterSet
	// TypeList modes carry a list of values with metadata; unset by value (+b).
	TypeList
	// TypeStatus modes are list modes whose values are users and govern
	// privilege (+o).
	TypeStatus
	// TypeKey is the channel key: parameter mandatory when setting, consumed
	// only if present when unsetting (+k).
	TypeKey
)

// parameter arities reported by Table.TakesParameter
const (
	TakesNone      = 0
	TakesMandatory = 1
	TakesOptional  = 2
)

// ModeOp is an operation performed with modes
type ModeOp rune

const (
	// Add is used when setting the given mode.
	Add ModeOp = '+'
	// Remove is used when unsetting the given mode.
	Remove ModeOp = '-'
)

func (op ModeOp) String() string {
	return string(op)
}

// ModeChange is a single change to a channel mode, identified by name rather
// than letter so that peers with different letter maps agree on it.
type ModeChange struct {
	Name  string
	Op    ModeOp
	Param string
	// ServerParam is the server-facing rendering of Param (the UID for a
	// status mode). Empty means Param serves both views.
	ServerParam string
}

// ModeChanges are a collection of 'ModeChange's
type ModeChanges []ModeChange

// Prefix is one rung of the status ladder.
type Prefix struct {
	Level  int
	Letter byte
	Symbol byte
	Name   string
}

var (
	// Prefixes is the status ladder in descending order of authority.
	Prefixes = []Prefix{
		{4, 'q', '~', "owner"},
		{3, 'a', '&', "admin"},
		{2, 'o', '@', "op"},
		{1, 'h', '%', "halfop"},
		{0, 'v', '+', "voice"},
	}

	prefixesByName = func() map[string]Prefix {
		m := make(map[string]Prefix, len(Prefixes))
		for _, p := range Prefixes {
			m[p.Name] = p
		}
		return m
	}()
)

// BasicStatusLevel is the lowest level that counts as "basic status"
// (halfop-or-greater rights).
const BasicStatusLevel = 1

// NoLevel is the level reported for a user with no status, or not on the
// channel at all.
const NoLevel = math.MinInt

// PrefixByName looks up a ladder rung by status mode name.
func PrefixByName(name string) (p Prefix, ok bool) {
	p, ok = prefixesByName[name]
	return
}

// PrefixByLevel looks up a ladder rung by numeric level.
func PrefixByLevel(level int) (p Prefix, ok bool) {
	for _, pfx := range Prefixes {
		if pfx.Level == level {
			return pfx, true
		}
	}
	return
}

// StatusLevel returns the level of the named status mode, or NoLevel.
func StatusLevel(name string) int {
	if p, ok := prefixesByName[name]; ok {
		return p.Level
	}
	return NoLevel
}

// SymbolsFromLevels renders the prefix symbols for a member's status levels,
// highest first. Unless multiPrefix, only the highest symbol is kept.
func SymbolsFromLevels(levels []int, multiPrefix bool) string {
	var out []byte
	for _, pfx := range Prefixes {
		for _, level := range levels {
			if level == pfx.Level {
				out = append(out, pfx.Symbol)
			}
		}
	}
	if !multiPrefix && len(out) > 1 {
		out = out[:1]
	}
	return string(out)
}

// ModeDef is one entry in a server's channel mode table.
type ModeDef struct {
	Name   string
	Letter byte
	Type   ModeType
}

// Table maps mode names to letters and types for one server. Each server on
// the network carries its own table; changes cross the wire as names, so
// letter maps are a per-server concern.
type Table struct {
	byName   map[string]ModeDef
	byLetter map[byte]ModeDef
}

// NewTable returns a Table containing the given defs.
func NewTable(defs ...ModeDef) *Table {
	t := &Table{
		byName:   make(map[string]ModeDef, len(defs)),
		byLetter: make(map[byte]ModeDef, len(defs)),
	}
	for _, def := range defs {
		t.Add(def)
	}
	return t
}

// DefaultChannelModes returns the mode table a freshly configured server uses.
func DefaultChannelModes() *Table {
	t := NewTable(
		ModeDef{"ban", 'b', TypeList},
		ModeDef{"except", 'e', TypeList},
		ModeDef{"invite_only", 'i', TypeNormal},
		ModeDef{"moderated", 'm', TypeNormal},
		ModeDef{"no_ext", 'n', TypeNormal},
		ModeDef{"protect_topic", 't', TypeNormal},
		ModeDef{"secret", 's', TypeNormal},
		ModeDef{"key", 'k', TypeKey},
		ModeDef{"limit", 'l', TypeParameterSet},
		ModeDef{"forward", 'f', TypeParameter},
	)
	for _, pfx := range Prefixes {
		t.Add(ModeDef{pfx.Name, pfx.Letter, TypeStatus})
	}
	return t
}

// Add inserts or replaces a mode definition.
func (t *Table) Add(def ModeDef) {
	t.byName[def.Name] = def
	t.byLetter[def.Letter] = def
}

// Type returns the type of the named mode.
func (t *Table) Type(name string) (mt ModeType, ok bool) {
	def, ok := t.byName[name]
	return def.Type, ok
}

// Letter returns the letter of the named mode.
func (t *Table) Letter(name string) (letter byte, ok bool) {
	def, ok := t.byName[name]
	return def.Letter, ok
}

// NameOf returns the name of the mode with the given letter.
func (t *Table) NameOf(letter byte) (name string, ok bool) {
	def, ok := t.byLetter[letter]
	return def.Name, ok
}

// TakesParameter reports the parameter arity of the named mode in the given
// state (set or unset).
func (t *Table) TakesParameter(name string, set bool) int {
	def, ok := t.byName[name]
	if !ok {
		return TakesNone
	}
	switch def.Type {
	case TypeParameter, TypeStatus:
		return TakesMandatory
	case TypeParameterSet:
		if set {
			return TakesMandatory
		}
		return TakesNone
	case TypeList:
		return TakesOptional
	case TypeKey:
		if set {
			return TakesMandatory
		}
		return TakesOptional
	}
	return TakesNone
}

// ParseModeString turns a mode string plus its positional parameters into a
// list of named changes. Unknown letters are returned separately. Parameters
// are consumed per the table's arity rules; a mandatory parameter that is not
// available drops that single mode, never the batch.
func (t *Table) ParseModeString(params ...string) (changes ModeChanges, unknown []rune) {
	if len(params) == 0 {
		return
	}

	op := Add
	skipArgs := 1

	for _, letter := range params[0] {
		if letter == '+' || letter == '-' {
			op = ModeOp(letter)
			continue
		}
		if letter > 0x7f {
			unknown = append(unknown, letter)
			continue
		}

		name, ok := t.NameOf(byte(letter))
		if !ok {
			unknown = append(unknown, letter)
			continue
		}

		change := ModeChange{
			Name: name,
			Op:   op,
		}

		switch t.TakesParameter(name, op == Add) {
		case TakesMandatory:
			if len(params) <= skipArgs {
				continue
			}
			change.Param = params[skipArgs]
			skipArgs++
		case TakesOptional:
			if len(params) > skipArgs {
				change.Param = params[skipArgs]
				skipArgs++
			}
		}

		changes = append(changes, change)
	}

	return
}

// Strings renders a change list as a user-facing and a server-facing mode
// string. The two differ only in parameters: status modes show nicknames to
// users and UIDs to servers. With organize, changes are regrouped with
// positive changes first and letters alphabetized; otherwise command order is
// preserved.
func (t *Table) Strings(changes ModeChanges, organize bool) (userView, serverView string) {
	if len(changes) == 0 {
		return
	}

	if organize {
		changes = organizeChanges(t, changes)
	}

	var letters strings.Builder
	var userParams, serverParams []string

	op := ModeOp(0)
	for _, change := range changes {
		letter, ok := t.Letter(change.Name)
		if !ok {
			continue
		}
		if change.Op != op {
			op = change.Op
			letters.WriteRune(rune(op))
		}
		letters.WriteByte(letter)

		if change.Param == "" {
			continue
		}
		userParams = append(userParams, change.Param)
		if change.ServerParam != "" {
			serverParams = append(serverParams, change.ServerParam)
		} else {
			serverParams = append(serverParams, change.Param)
		}
	}

	userView = letters.String()
	serverView = userView
	if len(userParams) > 0 {
		userView += " " + strings.Join(userParams, " ")
		serverView += " " + strings.Join(serverParams, " ")
	}
	return
}

// Split breaks a change list into runs of at most max parameterized changes,
// for clients that cap MODE parameters per line.
func Split(changes ModeChanges, max int) (result []ModeChanges) {
	if max <= 0 || len(changes) == 0 {
		return []ModeChanges{changes}
	}
	var current ModeChanges
	params := 0
	for _, change := range changes {
		if change.Param != "" {
			if params == max {
				result = append(result, current)
				current = nil
				params = 0
			}
			params++
		}
		current = append(current, change)
	}
	if len(current) > 0 {
		result = append(result, current)
	}
	return
}

func organizeChanges(t *Table, changes ModeChanges) ModeChanges {
	organized := make(ModeChanges, len(changes))
	copy(organized, changes)
	sort.SliceStable(organized, func(i, j int) bool {
		if organized[i].Op != organized[j].Op {
			return organized[i].Op == Add
		}
		li, _ := t.Letter(organized[i].Name)
		lj, _ := t.Letter(organized[j].Name)
		return li < lj
	})
	return organized
}

// ChanmodesToken renders the table as the four comma-separated classes of the
// CHANMODES isupport token.
func (t *Table) ChanmodesToken() string {
	var a, b, c, d []byte
	for letter, def := range t.byLetter {
		switch def.Type {
		case TypeList:
			a = append(a, letter)
		case TypeParameter, TypeKey:
			b = append(b, letter)
		case TypeParameterSet:
			c = append(c, letter)
		case TypeNormal:
			d = append(d, letter)
		}
	}
	for _, class := range [][]byte{a, b, c, d} {
		sort.Slice(class, func(i, j int) bool { return class[i] < class[j] })
	}
	return fmt.Sprintf("%s,%s,%s,%s", a, b, c, d)
}

// PrefixToken renders the status ladder as the PREFIX isupport token,
// e.g. "(qaohv)~&@%+".
func PrefixToken() string {
	var letters, symbols []byte
	for _, pfx := range Prefixes {
		letters = append(letters, pfx.Letter)
		symbols = append(symbols, pfx.Symbol)
	}
	return "(" + string(letters) + ")" + string(symbols)
}

// SplitMembershipPrefixes takes a target and returns the leading status
// symbols, then the bare name.
func SplitMembershipPrefixes(target string) (prefixes string, name string) {
	name = target
	for i := 0; i < len(target); i++ {
		switch target[i] {
		case '~', '&', '@', '%', '+':
			prefixes = target[:i+1]
			name = target[i+1:]
		default:
			return
		}
	}
	return
}
