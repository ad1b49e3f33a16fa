// Copyright (c) 2026 Mitchell Cooper
// released under the MIT license

package irc

import (
	"sync"

	"github.com/cooper/vulpia/irc/utils"
)

// ChannelManager keeps track of all the channels on the server, creating them
// on first join and cleaning up empty ones.
type ChannelManager struct {
	sync.RWMutex // tier 2
	chans  map[string]*Channel
	server *Server
}

func (cm *ChannelManager) Initialize(server *Server) {
	cm.chans = make(map[string]*Channel)
	cm.server = server
}

// Get returns the channel with the given name, or nil.
func (cm *ChannelManager) Get(name string) *Channel {
	cm.RLock()
	defer cm.RUnlock()
	return cm.chans[utils.Casefold(name)]
}

// GetOrCreate returns the named channel, creating it when absent; isNew
// reports which happened.
func (cm *ChannelManager) GetOrCreate(name string) (channel *Channel, isNew bool) {
	cfname := utils.Casefold(name)

	cm.Lock()
	defer cm.Unlock()

	channel = cm.chans[cfname]
	if channel == nil {
		channel = NewChannel(cm.server, name)
		cm.chans[cfname] = channel
		isNew = true
	}
	return
}

// Join runs the local-join sequence against the named channel.
func (cm *ChannelManager) Join(client *Client, name string) {
	channel, isNew := cm.GetOrCreate(name)
	channel.AttemptLocalJoin(client, isNew)
}

// Cleanup detaches an empty channel from the pool.
func (cm *ChannelManager) Cleanup(channel *Channel) {
	cm.Lock()
	defer cm.Unlock()
	if existing := cm.chans[channel.nameCasefolded]; existing == channel {
		delete(cm.chans, channel.nameCasefolded)
	}
}

// Len returns the number of channels.
func (cm *ChannelManager) Len() int {
	cm.RLock()
	defer cm.RUnlock()
	return len(cm.chans)
}

// Channels returns all channels.
func (cm *ChannelManager) Channels() (result []*Channel) {
	cm.RLock()
	defer cm.RUnlock()
	for _, channel := range cm.chans {
		result = append(result, channel)
	}
	return
}
