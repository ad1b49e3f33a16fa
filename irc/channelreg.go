// Copyright (c) 2026 Mitchell Cooper
// released under the MIT license

package irc

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/gofrs/flock"
	"github.com/tidwall/buntdb"

	"github.com/cooper/vulpia/irc/utils"
)

const keyChannelRegistered = "channel.registered %s"

// RegisteredChannel is the persisted state of a registered channel.
type RegisteredChannel struct {
	Name         string
	RegisteredAt int64
	Founder      string
	Topic        string
	TopicSetBy   string
	TopicSetAt   int64
	TS           int64
}

// ChannelRegistry persists registered channels so that their topic and TS
// survive restarts. Registered channels also survive emptying out: the
// registry vetoes their destruction.
type ChannelRegistry struct {
	sync.Mutex // tier 3

	server *Server
	db     *buntdb.DB
	flock  *flock.Flock
}

// Initialize opens the registry datastore; with enabled false the registry
// is inert and every method is a no-op.
func (reg *ChannelRegistry) Initialize(server *Server, enabled bool, path string) error {
	reg.server = server
	if !enabled || path == "" {
		return nil
	}

	// take the lock file first so two processes can't share the datastore
	lock := flock.New(path + ".lock")
	locked, err := lock.TryLock()
	if err != nil {
		return err
	}
	if !locked {
		return fmt.Errorf("Datastore %s is in use by another process", path)
	}

	db, err := buntdb.Open(path)
	if err != nil {
		lock.Unlock()
		return err
	}
	reg.db = db
	reg.flock = lock

	server.events.Subscribe(eventCanDestroy, func(e *Event) {
		if channel, ok := e.Data.(*Channel); ok && reg.IsRegistered(channel.Name()) {
			e.Stop("channel is registered")
		}
	})
	return nil
}

func (reg *ChannelRegistry) Close() {
	if reg.db != nil {
		reg.db.Close()
	}
	if reg.flock != nil {
		reg.flock.Unlock()
	}
}

func channelKey(name string) string {
	return fmt.Sprintf(keyChannelRegistered, utils.Casefold(name))
}

// IsRegistered reports whether the named channel is registered.
func (reg *ChannelRegistry) IsRegistered(name string) bool {
	if reg.db == nil {
		return false
	}
	found := false
	reg.db.View(func(tx *buntdb.Tx) error {
		if _, err := tx.Get(channelKey(name)); err == nil {
			found = true
		}
		return nil
	})
	return found
}

// SetRegistered registers a channel to a founder account, capturing its
// current topic and TS.
func (reg *ChannelRegistry) SetRegistered(channel *Channel, founder string) error {
	if reg.db == nil {
		return nil
	}
	channel.stateMutex.RLock()
	record := RegisteredChannel{
		Name:         channel.name,
		RegisteredAt: channel.createdTime,
		Founder:      founder,
		Topic:        channel.topic,
		TopicSetBy:   channel.topicSetBy,
		TopicSetAt:   channel.topicSetAt,
		TS:           channel.createdTime,
	}
	channel.stateMutex.RUnlock()

	return reg.save(record)
}

// Founder returns the account a channel is registered to.
func (reg *ChannelRegistry) Founder(name string) (string, error) {
	if reg.db == nil {
		return "", buntdb.ErrNotFound
	}
	record, err := reg.load(name)
	if err != nil {
		return "", err
	}
	return record.Founder, nil
}

// SetUnregistered drops a channel's registration.
func (reg *ChannelRegistry) SetUnregistered(name string) error {
	if reg.db == nil {
		return nil
	}
	return reg.db.Update(func(tx *buntdb.Tx) error {
		_, err := tx.Delete(channelKey(name))
		if err == buntdb.ErrNotFound {
			return nil
		}
		return err
	})
}

// UpdateTopic refreshes the persisted topic of a registered channel.
func (reg *ChannelRegistry) UpdateTopic(channel *Channel) {
	if reg.db == nil || !reg.IsRegistered(channel.Name()) {
		return
	}

	record, err := reg.load(channel.Name())
	if err != nil {
		reg.server.logger.Error("datastore", "couldn't load channel record", err.Error())
		return
	}
	channel.stateMutex.RLock()
	record.Topic = channel.topic
	record.TopicSetBy = channel.topicSetBy
	record.TopicSetAt = channel.topicSetAt
	channel.stateMutex.RUnlock()

	if err := reg.save(*record); err != nil {
		reg.server.logger.Error("datastore", "couldn't save channel record", err.Error())
	}
}

// LoadChannels recreates every registered channel at startup, restoring
// topic and TS.
func (reg *ChannelRegistry) LoadChannels() {
	if reg.db == nil {
		return
	}

	var records []RegisteredChannel
	prefix := strings.TrimSuffix(keyChannelRegistered, "%s")
	reg.db.View(func(tx *buntdb.Tx) error {
		return tx.AscendGreaterOrEqual("", prefix, func(key, value string) bool {
			if !strings.HasPrefix(key, prefix) {
				return false
			}
			var record RegisteredChannel
			if err := json.Unmarshal([]byte(value), &record); err == nil {
				records = append(records, record)
			}
			return true
		})
	})

	for _, record := range records {
		channel, _ := reg.server.channels.GetOrCreate(record.Name)
		channel.stateMutex.Lock()
		channel.createdTime = record.TS
		channel.topic = record.Topic
		channel.topicSetBy = record.TopicSetBy
		channel.topicSetAt = record.TopicSetAt
		channel.stateMutex.Unlock()
	}
	if len(records) != 0 {
		reg.server.logger.Info("datastore",
			fmt.Sprintf("restored %d registered channel(s)", len(records)))
	}
}

func (reg *ChannelRegistry) load(name string) (*RegisteredChannel, error) {
	var record RegisteredChannel
	err := reg.db.View(func(tx *buntdb.Tx) error {
		value, err := tx.Get(channelKey(name))
		if err != nil {
			return err
		}
		return json.Unmarshal([]byte(value), &record)
	})
	if err != nil {
		return nil, err
	}
	return &record, nil
}

func (reg *ChannelRegistry) save(record RegisteredChannel) error {
	reg.Lock()
	defer reg.Unlock()

	serialized, err := json.Marshal(record)
	if err != nil {
		return err
	}
	return reg.db.Update(func(tx *buntdb.Tx) error {
		_, _, err := tx.Set(channelKey(record.Name), string(serialized), nil)
		return err
	})
}
