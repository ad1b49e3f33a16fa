// Copyright (c) 2026 Mitchell Cooper
// released under the MIT license

package irc

import (
	"strconv"
	"strings"

	"github.com/ergochat/irc-go/ircmsg"

	"github.com/cooper/vulpia/irc/utils"
)

// Command is a local client command handler. The registry of s2s commands
// lives with the protocol modules; this table covers the client protocol
// surface of the core.
type Command struct {
	handler   func(server *Server, client *Client, msg ircmsg.Message)
	minParams int
}

var clientCommands = map[string]Command{
	"NICK":         {nickHandler, 1},
	"USER":         {userHandler, 4},
	"JOIN":         {joinHandler, 1},
	"PART":         {partHandler, 1},
	"MODE":         {modeHandler, 1},
	"KICK":         {kickHandler, 2},
	"TOPIC":        {topicHandler, 1},
	"NAMES":        {namesHandler, 1},
	"PRIVMSG":      {privmsgHandler, 2},
	"NOTICE":       {privmsgHandler, 2},
	"AWAY":         {awayHandler, 0},
	"AUTHENTICATE": {authenticateHandler, 1},
	"REGISTER":     {registerHandler, 1},
	"DROP":         {dropHandler, 1},
	"LOGIN":        {loginHandler, 2},
	"LOGOUT":       {logoutHandler, 0},
	"CONNECT":      {connectHandler, 1},
	"PING":         {pingHandler, 1},
	"QUIT":         {quitHandler, 0},
}

func (server *Server) handleCommand(client *Client, msg ircmsg.Message) {
	command, ok := clientCommands[strings.ToUpper(msg.Command)]
	if !ok {
		return
	}
	if len(msg.Params) < command.minParams {
		client.Numeric("ERR_NEEDMOREPARAMS", strings.ToUpper(msg.Command))
		return
	}
	command.handler(server, client, msg)
}

func nickHandler(server *Server, client *Client, msg ircmsg.Message) {
	newNick := msg.Params[0]
	if existing := server.clients.Get(newNick); existing != nil && existing != client {
		client.ServerNotice("nick", "Nickname is already in use")
		return
	}
	oldMask := client.SourceMask()
	server.clients.ChangeNick(client, newNick)
	if client.Registered() {
		client.Send(oldMask, "NICK", newNick)
	} else {
		client.SetRegistered()
	}
}

func userHandler(server *Server, client *Client, msg ircmsg.Message) {
	client.stateMutex.Lock()
	client.username = msg.Params[0]
	client.realname = msg.Params[3]
	client.stateMutex.Unlock()
}

func joinHandler(server *Server, client *Client, msg ircmsg.Message) {
	for _, name := range strings.Split(msg.Params[0], ",") {
		if name == "" || name[0] != '#' {
			client.Numeric("ERR_NOSUCHNICK", name)
			continue
		}
		server.channels.Join(client, name)
	}
}

func partHandler(server *Server, client *Client, msg ircmsg.Message) {
	channel := server.channels.Get(msg.Params[0])
	if channel == nil || !channel.HasUser(client) {
		client.Numeric("ERR_NOTONCHANNEL", msg.Params[0])
		return
	}
	var reason string
	if len(msg.Params) > 1 {
		reason = msg.Params[1]
	}
	channel.DoPart(client, reason, false)
}

func modeHandler(server *Server, client *Client, msg ircmsg.Message) {
	target := msg.Params[0]

	if strings.HasPrefix(target, "#") {
		channel := server.channels.Get(target)
		if channel == nil {
			client.Numeric("ERR_NOSUCHNICK", target)
			return
		}
		if len(msg.Params) == 1 {
			client.Numeric("RPL_CHANNELMODEIS", channel.Name(), channel.ModeString(channel.HasUser(client)))
			client.Numeric("RPL_CREATIONTIME", channel.Name(), strconv.FormatInt(channel.Time(), 10))
			return
		}
		server.DoModeString(channel, client, msg.Params[1:], false, false, false)
		return
	}

	// user modes apply to oneself only
	if server.clients.Get(target) != client {
		return
	}
	if len(msg.Params) == 1 {
		return
	}

	set := true
	var applied []byte
	var appliedOps []byte
	for i := 0; i < len(msg.Params[1]); i++ {
		letter := msg.Params[1][i]
		switch letter {
		case '+':
			set = true
			continue
		case '-':
			set = false
			continue
		}
		name, known := umodeNames[letter]
		if !known {
			continue
		}
		if server.ApplyUserModeChange(client, name, set, false) {
			if set {
				appliedOps = append(appliedOps, '+')
			} else {
				appliedOps = append(appliedOps, '-')
			}
			applied = append(applied, letter)
		}
	}
	if len(applied) != 0 {
		var modestr strings.Builder
		var lastOp byte
		for i := range applied {
			if appliedOps[i] != lastOp {
				lastOp = appliedOps[i]
				modestr.WriteByte(lastOp)
			}
			modestr.WriteByte(applied[i])
		}
		client.SendFrom(client, "MODE", client.Nick(), modestr.String())
	}
}

func kickHandler(server *Server, client *Client, msg ircmsg.Message) {
	channel := server.channels.Get(msg.Params[0])
	if channel == nil {
		client.Numeric("ERR_NOSUCHNICK", msg.Params[0])
		return
	}
	target := server.clients.Get(msg.Params[1])
	if target == nil {
		client.Numeric("ERR_NOSUCHNICK", msg.Params[1])
		return
	}
	if !channel.HasUser(target) {
		client.Numeric("ERR_USERNOTINCHANNEL", target.Nick(), channel.Name())
		return
	}
	if !channel.UserHasBasicStatus(client) {
		client.Numeric("ERR_CHANOPRIVSNEEDED", channel.Name())
		return
	}
	var reason string
	if len(msg.Params) > 2 {
		reason = msg.Params[2]
	}
	channel.Kick(target, client, reason)
}

func topicHandler(server *Server, client *Client, msg ircmsg.Message) {
	channel := server.channels.Get(msg.Params[0])
	if channel == nil {
		client.Numeric("ERR_NOSUCHNICK", msg.Params[0])
		return
	}
	if len(msg.Params) == 1 {
		channel.SendTopic(client)
		return
	}
	if channel.IsMode("protect_topic") && !channel.UserHasBasicStatus(client) {
		client.Numeric("ERR_CHANOPRIVSNEEDED", channel.Name())
		return
	}
	channel.SetTopic(client, msg.Params[1])
}

func namesHandler(server *Server, client *Client, msg ircmsg.Message) {
	channel := server.channels.Get(msg.Params[0])
	if channel == nil {
		client.Numeric("RPL_ENDOFNAMES", msg.Params[0])
		return
	}
	channel.Names(client, false)
}

func privmsgHandler(server *Server, client *Client, msg ircmsg.Message) {
	target := msg.Params[0]
	if strings.HasPrefix(target, "#") {
		channel := server.channels.Get(target)
		if channel == nil {
			client.Numeric("ERR_NOSUCHNICK", target)
			return
		}
		channel.PrivMsgNotice(strings.ToUpper(msg.Command), client, msg.Params[1])
		return
	}

	targetClient := server.clients.Get(target)
	if targetClient == nil {
		client.Numeric("ERR_NOSUCHNICK", target)
		return
	}
	targetClient.SendFrom(client, strings.ToUpper(msg.Command), targetClient.Nick(), msg.Params[1])
}

func awayHandler(server *Server, client *Client, msg ircmsg.Message) {
	if len(msg.Params) == 0 || msg.Params[0] == "" {
		client.SetAwayMessage("")
		return
	}
	client.SetAwayMessage(msg.Params[0])
}

func authenticateHandler(server *Server, client *Client, msg ircmsg.Message) {
	server.HandleAuthenticate(client, msg.Params[0])
}

// registerHandler registers an account (REGISTER name password) or, with a
// channel target, registers the channel to the caller's account.
func registerHandler(server *Server, client *Client, msg ircmsg.Message) {
	if strings.HasPrefix(msg.Params[0], "#") {
		registerChannel(server, client, msg.Params[0])
		return
	}

	if len(msg.Params) < 2 {
		client.Numeric("ERR_NEEDMOREPARAMS", "REGISTER")
		return
	}
	name, password := msg.Params[0], msg.Params[1]

	_, err := server.accounts.Register(name, password, server.me, client)
	if err != nil {
		client.ServerNotice("register", err.Error())
		return
	}
	client.ServerNotice("register", "Registration successful")

	if server.Config().Accounts.AutologinAfterRegister {
		server.accounts.Login(name, client, nil, true)
	}
}

func registerChannel(server *Server, client *Client, name string) {
	account := client.Account()
	if account == nil {
		client.ServerNotice("register", "You must be logged in to register a channel")
		return
	}
	channel := server.channels.Get(name)
	if channel == nil || !channel.HasUser(client) {
		client.Numeric("ERR_NOTONCHANNEL", name)
		return
	}
	if !channel.UserHasBasicStatus(client) {
		client.Numeric("ERR_CHANOPRIVSNEEDED", channel.Name())
		return
	}
	if server.registry.IsRegistered(channel.Name()) {
		client.ServerNotice("register", "Channel is already registered")
		return
	}
	if err := server.registry.SetRegistered(channel, account.Name); err != nil {
		client.ServerNotice("register", err.Error())
		return
	}
	client.ServerNotice("register", "Channel "+channel.Name()+" registered to "+account.Name)
}

// dropHandler removes a channel registration; only the founder may drop.
func dropHandler(server *Server, client *Client, msg ircmsg.Message) {
	name := msg.Params[0]
	if !server.registry.IsRegistered(name) {
		client.ServerNotice("drop", "Channel is not registered")
		return
	}
	founder, err := server.registry.Founder(name)
	if err != nil {
		client.ServerNotice("drop", err.Error())
		return
	}
	account := client.Account()
	if account == nil || utils.Casefold(account.Name) != utils.Casefold(founder) {
		client.ServerNotice("drop", "Only the founder may drop a registration")
		return
	}
	if err := server.registry.SetUnregistered(name); err != nil {
		client.ServerNotice("drop", err.Error())
		return
	}
	client.ServerNotice("drop", "Channel "+name+" dropped")

	// an empty channel that was only kept alive by its registration goes away
	if channel := server.channels.Get(name); channel != nil {
		channel.destroyMaybe()
	}
}

func loginHandler(server *Server, client *Client, msg ircmsg.Message) {
	password := msg.Params[1]
	server.accounts.Login(msg.Params[0], client, &password, false)
}

func logoutHandler(server *Server, client *Client, msg ircmsg.Message) {
	server.accounts.Logout(client, false)
}

func connectHandler(server *Server, client *Client, msg ircmsg.Message) {
	if !client.HasMode("oper") {
		client.ServerNotice("connect", "Permission denied")
		return
	}
	if err := server.Linker().ConnectServer(msg.Params[0], false); err != nil {
		client.ServerNotice("connect", err.Error())
		return
	}
	client.ServerNotice("connect", "Connecting to "+msg.Params[0])
}

func pingHandler(server *Server, client *Client, msg ircmsg.Message) {
	client.Send(server.Name(), "PONG", server.Name(), msg.Params[0])
}

func quitHandler(server *Server, client *Client, msg ircmsg.Message) {
	reason := "Quit"
	if len(msg.Params) > 0 {
		reason = "Quit: " + msg.Params[0]
	}
	server.quitClient(client, reason)
}
