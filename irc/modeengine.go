// Copyright (c) 2026 Mitchell Cooper
// released under the MIT license

package irc

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/cooper/vulpia/irc/modes"
)

// ModeContext is the mutable record a channel_mode handler operates on.
type ModeContext struct {
	Channel *Channel
	Server  *Server
	Source  Source
	State   bool // true when setting
	Param   string
	Force   bool
	Proto   bool // parameters are UIDs rather than nicks
	// HasBasicStatus is precomputed: forced and server sources always
	// qualify.
	HasBasicStatus bool

	// handler outputs
	SendNoPrivs bool   // emit ERR_CHANOPRIVSNEEDED even if the handler succeeded
	HideNoPrivs bool   // suppress ERR_CHANOPRIVSNEEDED even if the handler failed
	ServerParam string // server-facing parameter (a UID), when it differs
}

// ModeHandler decides and possibly applies one mode change. Returning false
// cancels the change.
type ModeHandler func(*ModeContext) bool

// HandleModes runs the proposed changes through the per-mode pipeline and
// returns the changes that were actually applied. Recoverable problems skip
// the individual mode, never the batch.
func (server *Server) HandleModes(channel *Channel, source Source, changes modes.ModeChanges, force, proto bool) (applied modes.ModeChanges) {
	table := server.me.cmodes

	for _, change := range changes {
		state := change.Op == modes.Add

		mt, known := table.Type(change.Name)
		if !known {
			server.logger.Debug("modes", "skipping unknown mode", change.Name)
			continue
		}

		if table.TakesParameter(change.Name, state) == modes.TakesMandatory && change.Param == "" {
			server.logger.Debug("modes", "missing mandatory parameter", change.Name)
			continue
		}

		sourceClient, sourceIsUser := source.(*Client)
		hasBasicStatus := force || source.IsServerSource()
		if !hasBasicStatus && sourceIsUser {
			hasBasicStatus = channel.UserHasBasicStatus(sourceClient)
		}

		ctx := &ModeContext{
			Channel:        channel,
			Server:         server,
			Source:         source,
			State:          state,
			Param:          change.Param,
			Force:          force,
			Proto:          proto,
			HasBasicStatus: hasBasicStatus,
		}

		handler := server.cmodeHandlers[change.Name]
		ok := hasBasicStatus
		if handler != nil {
			ok = handler(ctx)
		}

		if sourceIsUser && sourceClient.IsLocal() {
			if ctx.SendNoPrivs || (!ok && !ctx.HasBasicStatus && !ctx.HideNoPrivs) {
				sourceClient.Numeric("ERR_CHANOPRIVSNEEDED", channel.Name())
			}
		}
		if !ok {
			continue
		}

		switch mt {
		case modes.TypeNormal:
			if state {
				channel.SetMode(change.Name, "")
			} else {
				channel.UnsetMode(change.Name)
			}
		case modes.TypeParameter, modes.TypeParameterSet:
			if state {
				channel.SetMode(change.Name, ctx.Param)
			} else {
				channel.UnsetMode(change.Name)
			}
		default:
			// list, status and key handlers have already mutated the channel
		}

		applied = append(applied, modes.ModeChange{
			Name:        change.Name,
			Op:          change.Op,
			Param:       ctx.Param,
			ServerParam: ctx.ServerParam,
		})
	}

	return
}

// HandleModeString parses a mode string in the perspective of the source's
// server and applies it.
func (server *Server) HandleModeString(channel *Channel, source Source, params []string, force, proto bool) modes.ModeChanges {
	table := server.me.cmodes
	if peer, ok := source.(*Peer); ok {
		table = peer.cmodes
	}
	changes, unknown := table.ParseModeString(params...)
	for _, letter := range unknown {
		server.logger.Debug("modes", "unknown mode letter", string(letter))
	}
	return server.HandleModes(channel, source, changes, force, proto)
}

// DoModes applies changes and then tells everyone: members receive the
// user-facing MODE line, peers receive a CMODE with the server-facing string,
// unless localOnly.
func (server *Server) DoModes(channel *Channel, source Source, changes modes.ModeChanges, force, proto, localOnly bool) modes.ModeChanges {
	applied := server.HandleModes(channel, source, changes, force, proto)
	if len(applied) == 0 {
		return applied
	}

	userView, serverView := server.me.cmodes.Strings(applied, false)

	modeParams := append([]string{channel.Name()}, splitModeString(userView)...)
	channel.sendFromAll(source.SourceMask(), nil, "MODE", modeParams...)

	if !localOnly {
		server.broadcastCmode(channel, source, serverView)
	}
	return applied
}

// DoModeString is DoModes for a string-form delta.
func (server *Server) DoModeString(channel *Channel, source Source, params []string, force, proto, localOnly bool) modes.ModeChanges {
	table := server.me.cmodes
	if peer, ok := source.(*Peer); ok {
		table = peer.cmodes
	}
	changes, _ := table.ParseModeString(params...)
	return server.DoModes(channel, source, changes, force, proto, localOnly)
}

// broadcastCmode sends the s2s form of a mode change to every direct link.
func (server *Server) broadcastCmode(channel *Channel, source Source, serverModestr string) {
	params := append([]string{
		sourceID(source),
		channel.Name(),
		strconv.FormatInt(channel.Time(), 10),
		server.me.sid,
	}, splitModeString(serverModestr)...)

	var sourceRoute *Peer
	if client, ok := source.(*Client); ok && client.peer != nil {
		sourceRoute = client.peer.Route()
	} else if peer, ok := source.(*Peer); ok {
		sourceRoute = peer.Route()
	}

	for _, peer := range server.servers.DirectPeers() {
		if peer.Route() == sourceRoute {
			continue
		}
		peer.Send(server.me.sid, "CMODE", params...)
	}
}

// sourceID renders a source in s2s form: UID for users, SID for servers.
func sourceID(source Source) string {
	switch s := source.(type) {
	case *Client:
		return s.uid
	case *Peer:
		return s.sid
	}
	return source.SourceName()
}

// splitModeString separates a rendered mode string into wire parameters.
func splitModeString(modestr string) []string {
	return strings.Fields(modestr)
}

//
// shared handlers
//

// registerDefaultModeHandlers installs the handlers for the default mode
// table.
func (server *Server) registerDefaultModeHandlers() {
	simple := func(ctx *ModeContext) bool {
		return ctx.Force || ctx.Source.IsServerSource() || ctx.HasBasicStatus
	}
	for _, name := range []string{"invite_only", "moderated", "no_ext", "protect_topic", "secret", "limit", "forward"} {
		server.cmodeHandlers[name] = simple
	}

	server.cmodeHandlers["key"] = func(ctx *ModeContext) bool {
		if !simple(ctx) {
			return false
		}
		if ctx.State {
			ctx.Channel.SetMode("key", ctx.Param)
		} else {
			ctx.Channel.UnsetMode("key")
			// the remove parameter always displays as "*"
			if ctx.Param != "" {
				ctx.Param = "*"
			}
		}
		return true
	}

	server.cmodeHandlers["ban"] = server.banLikeHandler("ban", "RPL_BANLIST", "RPL_ENDOFBANLIST")
	server.cmodeHandlers["except"] = server.banLikeHandler("except", "RPL_EXCEPTLIST", "RPL_ENDOFEXCEPTLIST")

	for _, pfx := range modes.Prefixes {
		server.cmodeHandlers[pfx.Name] = server.statusHandler(pfx.Name)
	}
}

// statusHandler grants and removes a status mode, enforcing the ladder.
func (server *Server) statusHandler(name string) ModeHandler {
	level := modes.StatusLevel(name)

	return func(ctx *ModeContext) bool {
		var target *Client
		if ctx.Proto {
			target = server.clients.GetByUID(ctx.Param)
		} else {
			target = server.clients.Get(ctx.Param)
		}

		sourceClient, sourceIsUser := ctx.Source.(*Client)
		complain := sourceIsUser && sourceClient.IsLocal() && !ctx.Force

		if target == nil {
			if complain {
				sourceClient.Numeric("ERR_NOSUCHNICK", ctx.Param)
			}
			ctx.HideNoPrivs = true
			return false
		}
		if !ctx.Channel.HasUser(target) {
			if complain {
				sourceClient.Numeric("ERR_USERNOTINCHANNEL", target.Nick(), ctx.Channel.Name())
			}
			ctx.HideNoPrivs = true
			return false
		}

		if sourceIsUser && !ctx.Force && !ctx.Source.IsServerSource() {
			if !ctx.HasBasicStatus {
				return false
			}
			sourceLevel := ctx.Channel.UserHighestLevel(sourceClient)
			if !ctx.State && sourceLevel < ctx.Channel.UserHighestLevel(target) {
				ctx.SendNoPrivs = true
				return false
			}
			if sourceLevel < level {
				ctx.SendNoPrivs = true
				return false
			}
		}

		if ctx.State {
			if err := ctx.Channel.AddToList(name, target.uid, ctx.Source.SourceName()); err != nil {
				return false
			}
		} else {
			if !ctx.Channel.RemoveFromList(name, target.uid) {
				return false
			}
		}

		ctx.Param = target.Nick()
		ctx.ServerParam = target.uid
		return true
	}
}

// banLikeHandler serves the list modes that hold masks: with no parameter it
// is the view path, otherwise it mutates the list.
func (server *Server) banLikeHandler(name, listNumeric, endNumeric string) ModeHandler {
	return func(ctx *ModeContext) bool {
		sourceClient, sourceIsUser := ctx.Source.(*Client)

		if ctx.Param == "" {
			if sourceIsUser && sourceClient.IsLocal() {
				for _, entry := range ctx.Channel.ListEntries(name) {
					sourceClient.Numeric(listNumeric, ctx.Channel.Name(),
						entry.Value, entry.SetBy, strconv.FormatInt(entry.SetAt, 10))
				}
				sourceClient.Numeric(endNumeric, ctx.Channel.Name())
			}
			ctx.HideNoPrivs = true
			return false
		}

		if !ctx.Force && !ctx.Source.IsServerSource() && !ctx.HasBasicStatus {
			ctx.SendNoPrivs = true
			ctx.HideNoPrivs = true
			return false
		}

		if ctx.State {
			if err := ctx.Channel.AddToList(name, ctx.Param, ctx.Source.SourceName()); err != nil {
				server.logger.Debug("modes", fmt.Sprintf("+%s %s: %v", name, ctx.Param, err))
				return false
			}
		} else {
			if !ctx.Channel.RemoveFromList(name, ctx.Param) {
				return false
			}
		}
		return true
	}
}
