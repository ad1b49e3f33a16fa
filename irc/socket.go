// Copyright (c) 2026 Mitchell Cooper
// released under the MIT license

package irc

import (
	"net"
	"strings"
	"sync"

	"github.com/ergochat/irc-go/ircmsg"
	"github.com/ergochat/irc-go/ircreader"
)

// ircConn is the line sink wrapped around a client socket.
type ircConn struct {
	conn net.Conn

	writeLock sync.Mutex
}

func (c *ircConn) SendLine(line string) {
	if !strings.HasSuffix(line, "\n") {
		line += "\r\n"
	}
	c.writeLock.Lock()
	defer c.writeLock.Unlock()
	c.conn.Write([]byte(line))
}

// runClient owns a client connection: it reads lines and dispatches them
// until the connection dies, then detaches the user everywhere.
func (server *Server) runClient(conn net.Conn) {
	sink := &ircConn{conn: conn}

	host, _, err := net.SplitHostPort(conn.RemoteAddr().String())
	if err != nil {
		host = conn.RemoteAddr().String()
	}

	uid := server.generateUID()
	client := NewClient(server, server.me, uid, uid, "unknown", host, "", sink)
	client.SetIP(host)
	server.clients.Add(client)

	reader := ircreader.NewIRCReader(conn)
	for {
		lineBytes, err := reader.ReadLine()
		if err != nil {
			break
		}
		message, err := ircmsg.ParseLine(string(lineBytes))
		if err != nil {
			continue
		}
		server.handleCommand(client, message)
	}

	server.quitClient(client, "Connection closed")
	conn.Close()
}

// quitClient detaches a user from every channel and the pool.
func (server *Server) quitClient(client *Client, reason string) {
	for _, channel := range server.channels.Channels() {
		if !channel.HasUser(client) {
			continue
		}
		channel.sendFromAll(client.SourceMask(), nil, "QUIT", reason)
		channel.RemoveUser(client)
	}
	server.clients.Remove(client)
}
