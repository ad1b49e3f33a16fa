// Copyright (c) 2026 Mitchell Cooper
// released under the MIT license

package irc

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/cooper/vulpia/irc/utils"
)

// connectTimeout bounds each individual connect attempt.
const connectTimeout = 5 * time.Second

// LinkConn is an established but not yet registered server connection.
type LinkConn struct {
	// Name is the registered server name, set by protocol init; Want is the
	// configured name the attempt was made for.
	Name string
	Want string

	Initiated     bool
	DontReconnect bool
	Proto         string
	Conn          net.Conn
}

// TargetName resolves the server name this connection is for.
func (lc *LinkConn) TargetName() string {
	if lc.Name != "" {
		return lc.Name
	}
	return lc.Want
}

type linkTimer struct {
	stop chan struct{}
}

type linkFuture struct {
	cancel    context.CancelFunc
	cancelled bool
}

// Linker manages outbound server connections: retry timers, in-flight
// connect futures and established-but-unregistered connections, each keyed
// by lowercased server name. An entry leaves its table on success, on
// cancellation and on connection closure.
type Linker struct {
	mu sync.Mutex // tier 2

	server  *Server
	timers  map[string]*linkTimer
	futures map[string]*linkFuture
	conns   map[string]*LinkConn
}

func (linker *Linker) Initialize(server *Server) {
	linker.server = server
	linker.timers = make(map[string]*linkTimer)
	linker.futures = make(map[string]*linkFuture)
	linker.conns = make(map[string]*LinkConn)

	// a newly known server no longer needs its retry timer, but a live
	// connection is left alone
	server.events.Subscribe(eventNewServer, func(e *Event) {
		if peer, ok := e.Data.(*Peer); ok {
			linker.CancelConnection(peer.Name(), true)
		}
	})

	// when a link closes, resume autoconnect unless told otherwise
	server.events.Subscribe(eventConnectionDone, func(e *Event) {
		if lc, ok := e.Data.(*LinkConn); ok {
			linker.ConnectionDone(lc, "Connection closed")
		}
	})
}

// ConnectServer starts an outbound connection attempt toward the named
// server. With autoOnly, only servers configured for autoconnect are
// eligible. Fails fast when the server is already linked, an attempt is
// already pending, or there is no configuration for it.
func (linker *Linker) ConnectServer(name string, autoOnly bool) error {
	lower := utils.Casefold(name)

	if linker.server.servers.Get(name) != nil {
		return fmt.Errorf("%w: %s", errAlreadyLinked, name)
	}

	block := linker.server.Config().LinkBlock(name)
	if block == nil {
		return fmt.Errorf("%w: %s", errNoLinkBlock, name)
	}
	if autoOnly && block.AutoInterval <= 0 {
		return fmt.Errorf("%w: %s", errNoAutoconnect, name)
	}

	linker.mu.Lock()
	if linker.timers[lower] != nil || linker.futures[lower] != nil {
		linker.mu.Unlock()
		return fmt.Errorf("%w: %s", errConnectInProgress, name)
	}

	if block.AutoInterval <= 0 {
		linker.mu.Unlock()
		go linker.establishConnection(lower, block, 1)
		return nil
	}

	timer := &linkTimer{stop: make(chan struct{})}
	linker.timers[lower] = timer
	linker.mu.Unlock()

	go func() {
		// first attempt fires immediately, then once per interval
		attempt := 1
		linker.establishConnection(lower, block, attempt)
		ticker := time.NewTicker(block.AutoInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				attempt++
				linker.establishConnection(lower, block, attempt)
			case <-timer.stop:
				return
			}
		}
	}()
	return nil
}

// establishConnection launches one connect attempt, racing the dialer
// against the timeout. At most one attempt per server is in flight.
func (linker *Linker) establishConnection(lower string, block *LinkBlock, attempt int) {
	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	future := &linkFuture{cancel: cancel}

	linker.mu.Lock()
	if linker.futures[lower] != nil {
		linker.mu.Unlock()
		cancel()
		return
	}
	linker.futures[lower] = future
	linker.mu.Unlock()

	linker.server.noticeOpers("connect",
		fmt.Sprintf("Attempting to connect to %s (attempt %d)", lower, attempt))

	go func() {
		defer cancel()

		conn, err := dialLink(ctx, block)

		linker.mu.Lock()
		delete(linker.futures, lower)
		cancelled := future.cancelled
		linker.mu.Unlock()

		if err != nil {
			// a cancelled attempt reports nothing
			if cancelled {
				return
			}
			linker.connectFail(lower, err.Error())
			return
		}
		if cancelled {
			conn.Close()
			return
		}

		lc := &LinkConn{
			Want:      lower,
			Initiated: true,
			Proto:     block.ProtocolName(),
			Conn:      conn,
		}
		linker.mu.Lock()
		linker.conns[lower] = lc
		linker.mu.Unlock()

		// hand off to protocol init
		linker.server.events.Fire("initiate_"+lc.Proto+"_link", lc)
	}()
}

// dialLink selects the transport per the link block and dials.
func dialLink(ctx context.Context, block *LinkBlock) (net.Conn, error) {
	network := "tcp4"
	if strings.Contains(block.Address, ":") {
		network = "tcp6"
	}
	addr := net.JoinHostPort(block.Address, strconv.Itoa(block.Port))

	if block.TLS {
		dialer := tls.Dialer{
			NetDialer: &net.Dialer{},
			Config: &tls.Config{
				InsecureSkipVerify: !block.TLSVerify,
			},
		}
		return dialer.DialContext(ctx, network, addr)
	}

	var dialer net.Dialer
	return dialer.DialContext(ctx, network, addr)
}

func (linker *Linker) connectFail(name, reason string) {
	linker.server.noticeOpers("connect_fail",
		fmt.Sprintf("Can't connect to %s: %s", name, reason))
	linker.server.events.Fire(eventConnectFail, name)
}

// CancelConnection stops a pending attempt: the retry timer and in-flight
// future are dropped, and unless keepConn, an established connection is
// closed and flagged not to reconnect. Reports whether a pending attempt was
// active.
func (linker *Linker) CancelConnection(name string, keepConn bool) (active bool) {
	lower := utils.Casefold(name)

	linker.mu.Lock()
	if timer := linker.timers[lower]; timer != nil {
		close(timer.stop)
		delete(linker.timers, lower)
		active = true
	}
	if future := linker.futures[lower]; future != nil {
		future.cancelled = true
		future.cancel()
		delete(linker.futures, lower)
		active = true
	}
	var toClose *LinkConn
	if !keepConn {
		if lc := linker.conns[lower]; lc != nil {
			lc.DontReconnect = true
			delete(linker.conns, lower)
			toClose = lc
		}
	}
	linker.mu.Unlock()

	if toClose != nil && toClose.Conn != nil {
		linker.server.logger.Info("connect",
			fmt.Sprintf("closing connection to %s: Connection canceled", lower))
		toClose.Conn.Close()
	}
	return
}

// ConnectionDone handles the closure of a link connection. While a retry
// timer is still armed, the failure is only logged; otherwise autoconnect
// resumes unless the connection was flagged not to reconnect.
func (linker *Linker) ConnectionDone(lc *LinkConn, reason string) {
	name := lc.TargetName()
	lower := utils.Casefold(name)

	linker.mu.Lock()
	if linker.conns[lower] == lc {
		delete(linker.conns, lower)
	}
	timerActive := linker.timers[lower] != nil
	linker.mu.Unlock()

	if timerActive {
		linker.server.logger.Info("connect",
			fmt.Sprintf("connection to %s failed before registration: %s", name, reason))
		return
	}
	if lc.DontReconnect {
		return
	}
	if err := linker.ConnectServer(name, true); err != nil {
		linker.server.logger.Debug("connect",
			fmt.Sprintf("not reconnecting to %s: %v", name, err))
	}
}

// PendingConn returns the established-but-unregistered connection for a
// server name, if any.
func (linker *Linker) PendingConn(name string) *LinkConn {
	linker.mu.Lock()
	defer linker.mu.Unlock()
	return linker.conns[utils.Casefold(name)]
}
