// Copyright (c) 2026 Mitchell Cooper
// released under the MIT license

package irc

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/ergochat/irc-go/ircmsg"

	"github.com/cooper/vulpia/irc/caps"
	"github.com/cooper/vulpia/irc/modes"
	"github.com/cooper/vulpia/irc/utils"
)

// listEntry is one value in a list mode's list, with its metadata. For status
// modes the value is a UID.
type listEntry struct {
	Value string
	SetBy string
	SetAt int64
}

// modeRecord is the state of one set mode on a channel.
type modeRecord struct {
	setAt int64
	param string
	list  []listEntry
}

// Channel is an IRC channel. Members and status list values are stored as
// UIDs and resolved through the client pool at use sites.
type Channel struct {
	stateMutex sync.RWMutex // tier 1

	server *Server

	name           string
	nameCasefolded string
	createdTime    int64

	topic      string
	topicSetBy string
	topicSetAt int64

	members   []string // UIDs in join order
	memberSet utils.HashSet[string]
	modes     map[string]*modeRecord
}

// NewChannel creates a channel with the current time as its TS.
func NewChannel(server *Server, name string) *Channel {
	return &Channel{
		server:         server,
		name:           name,
		nameCasefolded: utils.Casefold(name),
		createdTime:    time.Now().Unix(),
		memberSet:      make(utils.HashSet[string]),
		modes:          make(map[string]*modeRecord),
	}
}

func (channel *Channel) Name() string {
	return channel.name
}

func (channel *Channel) NameCasefolded() string {
	return channel.nameCasefolded
}

// Time returns the channel TS.
func (channel *Channel) Time() int64 {
	channel.stateMutex.RLock()
	defer channel.stateMutex.RUnlock()
	return channel.createdTime
}

// Topic returns the channel topic, empty if unset.
func (channel *Channel) Topic() string {
	channel.stateMutex.RLock()
	defer channel.stateMutex.RUnlock()
	return channel.topic
}

// SetTopic records a topic change and tells the members.
func (channel *Channel) SetTopic(source Source, topic string) {
	channel.stateMutex.Lock()
	channel.topic = topic
	channel.topicSetBy = source.SourceMask()
	channel.topicSetAt = time.Now().Unix()
	channel.stateMutex.Unlock()

	channel.sendFromAll(source.SourceMask(), nil, "TOPIC", channel.name, topic)
	channel.server.registry.UpdateTopic(channel)
}

// SendTopic replies with the topic numerics, or nothing when no topic is set.
func (channel *Channel) SendTopic(client *Client) {
	channel.stateMutex.RLock()
	topic, setBy, setAt := channel.topic, channel.topicSetBy, channel.topicSetAt
	channel.stateMutex.RUnlock()

	if topic == "" {
		client.Numeric("RPL_NOTOPIC", channel.name)
		return
	}
	client.Numeric("RPL_TOPIC", channel.name, topic)
	client.Numeric("RPL_TOPICWHOTIME", channel.name, setBy, strconv.FormatInt(setAt, 10))
}

//
// mode state
//

// IsMode reports whether a non-list mode is set.
func (channel *Channel) IsMode(name string) bool {
	if mt, ok := channel.server.me.cmodes.Type(name); !ok ||
		mt == modes.TypeList || mt == modes.TypeStatus {
		return false
	}

	channel.stateMutex.RLock()
	defer channel.stateMutex.RUnlock()
	_, set := channel.modes[name]
	return set
}

// ModeParameter returns the parameter of a set parametric mode.
func (channel *Channel) ModeParameter(name string) string {
	channel.stateMutex.RLock()
	defer channel.stateMutex.RUnlock()
	if record, ok := channel.modes[name]; ok {
		return record.param
	}
	return ""
}

// SetMode sets a simple or parametric mode.
func (channel *Channel) SetMode(name string, param string) {
	channel.stateMutex.Lock()
	defer channel.stateMutex.Unlock()
	channel.modes[name] = &modeRecord{
		setAt: time.Now().Unix(),
		param: param,
	}
}

// UnsetMode unsets a simple or parametric mode.
func (channel *Channel) UnsetMode(name string) {
	channel.stateMutex.Lock()
	defer channel.stateMutex.Unlock()
	delete(channel.modes, name)
}

// ListHas reports whether value is in the named list, exactly.
func (channel *Channel) ListHas(name, value string) bool {
	channel.stateMutex.RLock()
	defer channel.stateMutex.RUnlock()
	record, ok := channel.modes[name]
	if !ok {
		return false
	}
	for _, entry := range record.list {
		if entry.Value == value {
			return true
		}
	}
	return false
}

// ListMatches reports whether subject wildcard-matches any entry of the
// named list.
func (channel *Channel) ListMatches(name, subject string) bool {
	for _, value := range channel.ListElements(name) {
		if utils.GlobMatch(value, subject) {
			return true
		}
	}
	return false
}

// ListElements returns the values of the named list in insertion order.
func (channel *Channel) ListElements(name string) (result []string) {
	channel.stateMutex.RLock()
	defer channel.stateMutex.RUnlock()
	record, ok := channel.modes[name]
	if !ok {
		return
	}
	for _, entry := range record.list {
		result = append(result, entry.Value)
	}
	return
}

// ListEntries returns the entries of the named list with their metadata.
func (channel *Channel) ListEntries(name string) (result []listEntry) {
	channel.stateMutex.RLock()
	defer channel.stateMutex.RUnlock()
	record, ok := channel.modes[name]
	if !ok {
		return
	}
	result = make([]listEntry, len(record.list))
	copy(result, record.list)
	return
}

// AddToList appends a value to the named list. Duplicates are refused.
func (channel *Channel) AddToList(name, value, setBy string) error {
	channel.stateMutex.Lock()
	defer channel.stateMutex.Unlock()

	record, ok := channel.modes[name]
	if !ok {
		record = &modeRecord{setAt: time.Now().Unix()}
		channel.modes[name] = record
	}
	for _, entry := range record.list {
		if entry.Value == value {
			return errListDuplicate
		}
	}
	record.list = append(record.list, listEntry{
		Value: value,
		SetBy: setBy,
		SetAt: time.Now().Unix(),
	})
	return nil
}

// RemoveFromList removes a value from the named list.
func (channel *Channel) RemoveFromList(name, value string) bool {
	channel.stateMutex.Lock()
	defer channel.stateMutex.Unlock()

	record, ok := channel.modes[name]
	if !ok {
		return false
	}
	for i, entry := range record.list {
		if entry.Value == value {
			record.list = append(record.list[:i], record.list[i+1:]...)
			if len(record.list) == 0 {
				delete(channel.modes, name)
			}
			return true
		}
	}
	return false
}

//
// membership
//

// AddUser attaches a user to the channel.
func (channel *Channel) AddUser(client *Client) {
	channel.stateMutex.Lock()
	defer channel.stateMutex.Unlock()
	if channel.memberSet.Has(client.uid) {
		return
	}
	channel.members = append(channel.members, client.uid)
	channel.memberSet.Add(client.uid)
}

// HasUser reports membership.
func (channel *Channel) HasUser(client *Client) bool {
	channel.stateMutex.RLock()
	defer channel.stateMutex.RUnlock()
	return channel.memberSet.Has(client.uid)
}

// Members returns the members in join order.
func (channel *Channel) Members() (result []*Client) {
	channel.stateMutex.RLock()
	uids := make([]string, len(channel.members))
	copy(uids, channel.members)
	channel.stateMutex.RUnlock()

	for _, uid := range uids {
		if client := channel.server.clients.GetByUID(uid); client != nil {
			result = append(result, client)
		}
	}
	return
}

// RemoveUser purges the user from every status list, detaches them, and
// destroys the channel if it is now empty and nothing vetoes destruction.
func (channel *Channel) RemoveUser(client *Client) {
	channel.stateMutex.Lock()

	// a departing user must not linger in any status list
	for name, record := range channel.modes {
		if mt, ok := channel.server.me.cmodes.Type(name); !ok || mt != modes.TypeStatus {
			continue
		}
		for i, entry := range record.list {
			if entry.Value == client.uid {
				record.list = append(record.list[:i], record.list[i+1:]...)
				break
			}
		}
		if len(record.list) == 0 {
			delete(channel.modes, name)
		}
	}

	for i, uid := range channel.members {
		if uid == client.uid {
			channel.members = append(channel.members[:i], channel.members[i+1:]...)
			break
		}
	}
	channel.memberSet.Remove(client.uid)
	empty := len(channel.members) == 0
	channel.stateMutex.Unlock()

	if empty {
		channel.destroyMaybe()
	}
}

// destroyMaybe detaches an empty channel from the pool unless a listener
// vetoes it.
func (channel *Channel) destroyMaybe() {
	if len(channel.Members()) != 0 {
		return
	}
	event := channel.server.events.Fire(eventCanDestroy, channel)
	if event.Stopped() {
		return
	}
	channel.server.channels.Cleanup(channel)
}

//
// status queries
//

// UserIs reports whether the user holds the named status.
func (channel *Channel) UserIs(client *Client, status string) bool {
	return channel.ListHas(status, client.uid)
}

// UserHasBasicStatus reports halfop-or-greater rights.
func (channel *Channel) UserHasBasicStatus(client *Client) bool {
	return channel.UserHighestLevel(client) >= modes.BasicStatusLevel
}

// UserLevels returns the user's status levels, highest first.
func (channel *Channel) UserLevels(client *Client) (levels []int) {
	for _, pfx := range modes.Prefixes {
		if channel.ListHas(pfx.Name, client.uid) {
			levels = append(levels, pfx.Level)
		}
	}
	return
}

// UserHighestLevel returns the user's top status level, or modes.NoLevel for
// a user with no status or no membership.
func (channel *Channel) UserHighestLevel(client *Client) int {
	if levels := channel.UserLevels(client); len(levels) != 0 {
		return levels[0]
	}
	return modes.NoLevel
}

// Prefixes returns the member's status symbols as shown to target.
func (channel *Channel) Prefixes(client *Client, target *Client) string {
	multiPrefix := target != nil && target.HasCap(caps.MultiPrefix)
	return modes.SymbolsFromLevels(channel.UserLevels(client), multiPrefix)
}

//
// time reconciliation
//

// setTime lowers the channel TS. Time never decreases otherwise; an attempt
// to raise it here is an invariant violation and is refused.
func (channel *Channel) setTime(t int64) {
	channel.stateMutex.Lock()
	defer channel.stateMutex.Unlock()
	if t > channel.createdTime {
		channel.server.logger.Warning("channels",
			fmt.Sprintf("refusing to raise TS of %s from %d to %d", channel.name, channel.createdTime, t))
		return
	}
	channel.createdTime = t
}

// TakeLowerTime reconciles the channel TS against an asserted time. The
// lower TS wins: an older assertion drops the topic, clears all non-status
// modes (unless ignoreModes) and announces the new time to members. Returns
// the resulting TS.
func (channel *Channel) TakeLowerTime(t int64, ignoreModes bool) int64 {
	if t >= channel.Time() {
		return channel.Time()
	}

	channel.setTime(t)

	if channel.Topic() != "" {
		channel.stateMutex.Lock()
		channel.topic, channel.topicSetBy, channel.topicSetAt = "", "", 0
		channel.stateMutex.Unlock()
		channel.sendFromAll(channel.server.Name(), nil, "TOPIC", channel.name, "")
	}

	if !ignoreModes {
		userView, _ := channel.ModeStringAll(true)
		if userView != "+" {
			// invert the leading + so the whole mode state unsets
			negated := "-" + strings.TrimPrefix(userView, "+")
			fields := strings.Fields(negated)
			channel.sendFromAll(channel.server.Name(), nil, "MODE",
				append([]string{channel.name}, fields...)...)
			channel.server.HandleModeString(channel, channel.server.me, fields, true, false)
		}
	}

	notice := fmt.Sprintf("New channel time: %s (%d)", time.Unix(t, 0).UTC().Format(time.RFC1123), t)
	for _, member := range channel.Members() {
		member.ServerNotice("channel", notice)
	}

	return t
}

//
// serialization
//

// sortedModeNames returns the set mode names ordered by letter for stable
// output.
func (channel *Channel) sortedModeNames() (names []string) {
	channel.stateMutex.RLock()
	for name := range channel.modes {
		names = append(names, name)
	}
	channel.stateMutex.RUnlock()

	table := channel.server.me.cmodes
	sort.Slice(names, func(i, j int) bool {
		li, _ := table.Letter(names[i])
		lj, _ := table.Letter(names[j])
		return li < lj
	})
	return
}

// ModeString renders the non-list modes: letters for normal and parametric
// modes, key included only when showHidden (keys are visible to members
// only), followed by the parameters in order.
func (channel *Channel) ModeString(showHidden bool) string {
	table := channel.server.me.cmodes
	var letters strings.Builder
	var params []string

	for _, name := range channel.sortedModeNames() {
		mt, _ := table.Type(name)
		switch mt {
		case modes.TypeNormal:
		case modes.TypeParameter, modes.TypeParameterSet:
		case modes.TypeKey:
			if !showHidden {
				continue
			}
		default:
			continue
		}
		letter, _ := table.Letter(name)
		letters.WriteByte(letter)
		if param := channel.ModeParameter(name); param != "" {
			params = append(params, param)
		}
	}

	result := "+" + letters.String()
	if len(params) != 0 {
		result += " " + strings.Join(params, " ")
	}
	return result
}

// ModeStringAll renders the complete mode state in both the user-facing and
// the server-facing forms. List elements contribute one letter per value;
// status entries (unless noStatus) show nicknames to users and UIDs to
// servers.
func (channel *Channel) ModeStringAll(noStatus bool) (userView, serverView string) {
	table := channel.server.me.cmodes
	var changes modes.ModeChanges

	for _, name := range channel.sortedModeNames() {
		mt, _ := table.Type(name)
		switch mt {
		case modes.TypeNormal:
			changes = append(changes, modes.ModeChange{Name: name, Op: modes.Add})
		case modes.TypeParameter, modes.TypeParameterSet, modes.TypeKey:
			changes = append(changes, modes.ModeChange{
				Name: name, Op: modes.Add, Param: channel.ModeParameter(name),
			})
		case modes.TypeList:
			for _, value := range channel.ListElements(name) {
				changes = append(changes, modes.ModeChange{Name: name, Op: modes.Add, Param: value})
			}
		case modes.TypeStatus:
			if noStatus {
				continue
			}
			for _, uid := range channel.ListElements(name) {
				nick := uid
				if member := channel.server.clients.GetByUID(uid); member != nil {
					nick = member.Nick()
				}
				changes = append(changes, modes.ModeChange{
					Name: name, Op: modes.Add, Param: nick, ServerParam: uid,
				})
			}
		}
	}

	userView, serverView = table.Strings(changes, false)
	if userView == "" {
		userView, serverView = "+", "+"
	}
	return
}

// ModeStringStatus renders only the status modes, in both views.
func (channel *Channel) ModeStringStatus() (userView, serverView string) {
	table := channel.server.me.cmodes
	var changes modes.ModeChanges

	for _, name := range channel.sortedModeNames() {
		if mt, _ := table.Type(name); mt != modes.TypeStatus {
			continue
		}
		for _, uid := range channel.ListElements(name) {
			nick := uid
			if member := channel.server.clients.GetByUID(uid); member != nil {
				nick = member.Nick()
			}
			changes = append(changes, modes.ModeChange{
				Name: name, Op: modes.Add, Param: nick, ServerParam: uid,
			})
		}
	}

	userView, serverView = table.Strings(changes, false)
	if userView == "" {
		userView, serverView = "+", "+"
	}
	return
}

//
// fan-out plumbing
//

// sendFromAll sends a line to every local member, minus those in skip.
func (channel *Channel) sendFromAll(prefix string, skip utils.HashSet[string], command string, params ...string) {
	for _, member := range channel.Members() {
		if skip != nil && skip.Has(member.uid) {
			continue
		}
		member.Send(prefix, command, params...)
	}
}

// forwardToPeers sends a line once per direct link, minus the link the
// source arrived through.
func (channel *Channel) forwardToPeers(source Source, prefix, command string, params ...string) {
	var sourceRoute *Peer
	if client, ok := source.(*Client); ok && client.peer != nil {
		sourceRoute = client.peer.Route()
	} else if peer, ok := source.(*Peer); ok {
		sourceRoute = peer.Route()
	}

	sent := make(utils.HashSet[*Peer])
	for _, member := range channel.Members() {
		if member.IsLocal() || member.peer == nil {
			continue
		}
		route := member.peer.Route()
		if route == nil || route == sourceRoute || sent.Has(route) {
			continue
		}
		sent.Add(route)
		route.Send(prefix, command, params...)
	}
}

//
// channel operations
//

// JoinData is the payload of can_join, join_failed and user_joined.
type JoinData struct {
	Channel *Channel
	Client  *Client
	New     bool
}

// DoJoin attaches the user (unless already attached and allowAlready) and
// announces the join to members, honoring extended-join and away-notify.
func (channel *Channel) DoJoin(client *Client, allowAlready bool) {
	if channel.HasUser(client) && !allowAlready {
		return
	}
	channel.AddUser(client)

	for _, member := range channel.Members() {
		if !member.IsLocal() {
			continue
		}
		if member.HasCap(caps.ExtendedJoin) {
			member.SendFrom(client, "JOIN", channel.name, client.AccountName(), client.Realname())
		} else {
			member.SendFrom(client, "JOIN", channel.name)
		}
	}

	if away := client.AwayMessage(); away != "" {
		for _, member := range channel.Members() {
			if member == client || !member.IsLocal() || !member.HasCap(caps.AwayNotify) {
				continue
			}
			member.SendFrom(client, "AWAY", away)
		}
	}

	if client.IsLocal() {
		if channel.Topic() != "" {
			channel.SendTopic(client)
		}
		channel.Names(client, false)
	}

	channel.server.events.Fire(eventUserJoined, JoinData{Channel: channel, Client: client})
}

// AttemptLocalJoin runs the local-user join sequence: policy check, then for
// a fresh channel pre-add, automodes and a burst to peers, then the join
// proper.
func (channel *Channel) AttemptLocalJoin(client *Client, isNew bool) {
	event := channel.server.events.Fire(eventCanJoin, JoinData{Channel: channel, Client: client, New: isNew})
	if event.Stopped() {
		channel.server.events.Fire(eventJoinFailed, JoinData{Channel: channel, Client: client, New: isNew})
		if isNew {
			channel.destroyMaybe()
		}
		return
	}

	if isNew {
		channel.AddUser(client)
		if automodes := channel.server.Config().Channels.Automodes; automodes != "" {
			applied := strings.ReplaceAll(automodes, "+user", client.uid)
			channel.server.HandleModeString(channel, channel.server.me, strings.Fields(applied), true, true)
		}
		channel.server.burstChannel(channel, client)
	} else {
		channel.server.broadcastJoin(channel, client)
	}

	channel.DoJoin(client, isNew)
}

// DoPart announces the part, detaches the user and notifies opers.
func (channel *Channel) DoPart(client *Client, reason string, quiet bool) {
	params := []string{channel.name}
	if reason != "" {
		params = append(params, reason)
	}
	message := ircmsg.MakeMessage(nil, client.SourceMask(), "PART", params...)
	if reason != "" {
		// the reason always goes out as a trailing parameter
		message.ForceTrailing()
	}
	if line, err := message.Line(); err == nil {
		for _, member := range channel.Members() {
			member.SendRaw(line)
		}
	} else {
		channel.server.logger.Error("internal", "couldn't assemble message", err.Error())
	}
	channel.RemoveUser(client)

	if !quiet {
		channel.server.noticeOpers("user_part",
			fmt.Sprintf("%s parted %s", client.Nick(), channel.name))
	}
}

// Kick ejects target on behalf of source. The reason defaults to the
// source's name.
func (channel *Channel) Kick(target *Client, source Source, reason string) {
	if reason == "" {
		reason = source.SourceName()
	}
	// the reason always goes out as a trailing parameter
	message := ircmsg.MakeMessage(nil, source.SourceMask(), "KICK", channel.name, target.Nick(), reason)
	message.ForceTrailing()
	if line, err := message.Line(); err == nil {
		for _, member := range channel.Members() {
			member.SendRaw(line)
		}
	} else {
		channel.server.logger.Error("internal", "couldn't assemble message", err.Error())
	}

	if !source.IsServerSource() {
		channel.server.noticeOpers("user_kick",
			fmt.Sprintf("%s was kicked from %s by %s (%s)",
				target.Nick(), channel.name, source.SourceName(), reason))
	}

	channel.RemoveUser(target)
}

// namesChar is the channel-status character of a NAMES reply.
const namesChar = "="

// maxNamesLen caps the name tokens accumulated per RPL_NAMREPLY line.
const maxNamesLen = 500

// Names sends the NAMES replies for this channel to client.
func (channel *Channel) Names(client *Client, noEndOf bool) {
	var tl utils.TokenLineBuilder
	tl.Initialize(maxNamesLen, " ")

	for _, member := range channel.Members() {
		event := channel.server.events.Fire(eventShowInNames, JoinData{Channel: channel, Client: member})
		if event.Stopped() {
			continue
		}
		if member.HasMode("invisible") && member != client &&
			!client.HasMode("see_invisible") && !channel.HasUser(client) {
			continue
		}
		tl.Add(channel.Prefixes(member, client) + member.Nick())
	}

	for _, line := range tl.Lines() {
		client.Numeric("RPL_NAMREPLY", namesChar, channel.name, line)
	}
	if !noEndOf {
		client.Numeric("RPL_ENDOFNAMES", channel.name)
	}
}

// MessageData is the payload of can_message and the message events.
type MessageData struct {
	Channel *Channel
	Source  Source
	Command string
	Message string
}

// PrivMsgNotice fans a PRIVMSG or NOTICE out to members: local delivery
// first, then one copy per remote link, never back toward the source.
func (channel *Channel) PrivMsgNotice(command string, source Source, message string) {
	data := MessageData{Channel: channel, Source: source, Command: command, Message: message}
	if channel.server.events.Fire(eventCanMessage, data).Stopped() {
		return
	}
	if channel.server.events.Fire("can_"+strings.ToLower(command), data).Stopped() {
		return
	}

	skip := make(utils.HashSet[string])
	if client, ok := source.(*Client); ok {
		skip.Add(client.uid)
	}
	for _, member := range channel.Members() {
		if !member.IsLocal() || skip.Has(member.uid) || member.HasMode("deaf") {
			continue
		}
		member.SendFrom(source, command, channel.name, message)
	}

	channel.forwardToPeers(source, source.SourceMask(), command, channel.name, message)

	channel.server.events.Fire(eventChannelMessage, data)
}
