// Package bridge glues the ICCom engine to Redis, playing the role the
// teacher's pkg/service played between USOCK and pkg/redis: it is the
// integrator sample spec.md §6/§9 assumes exists on top of the engine, not
// part of the engine itself.
package bridge

import (
	"encoding/hex"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/librescoot/iccom-engine/pkg/iccom"
	iccomredis "github.com/librescoot/iccom-engine/pkg/redis"
)

// OutboundListKey is the Redis list the bridge BRPops for outbound work.
// Entries are "<channel>:<hex payload>", pushed with LPush by any external
// producer.
const OutboundListKey = "iccom:outbound"

// outboundPollTimeout bounds each BRPOP call so the drain loop notices
// Close promptly instead of blocking indefinitely on an idle list.
const outboundPollTimeout = 1 * time.Second

// Bridge drains outbound work from a Redis list into engine.Post calls and
// publishes delivered messages from per-channel engine callbacks onto
// Redis pub/sub channels.
type Bridge struct {
	engine      *iccom.Engine
	rc          *iccomredis.Client
	outboundKey string

	stopCh chan struct{}
	wg     sync.WaitGroup
}

// New builds a bridge over an already-initialized engine and Redis client.
// It does not start the drain loop; call Start for that.
func New(engine *iccom.Engine, rc *iccomredis.Client) *Bridge {
	return &Bridge{
		engine:      engine,
		rc:          rc,
		outboundKey: OutboundListKey,
		stopCh:      make(chan struct{}),
	}
}

// Start spawns the outbound drain loop.
func (b *Bridge) Start() {
	b.wg.Add(1)
	go b.drainOutbound()
}

// Close stops the drain loop and joins it.
func (b *Bridge) Close() {
	close(b.stopCh)
	b.wg.Wait()
}

func (b *Bridge) drainOutbound() {
	defer b.wg.Done()
	for {
		select {
		case <-b.stopCh:
			return
		default:
		}

		result, err := b.rc.BRPop(outboundPollTimeout, b.outboundKey)
		if err != nil {
			log.Printf("bridge: BRPOP on %s failed: %v", b.outboundKey, err)
			continue
		}
		if result == nil {
			continue // timeout, no work
		}
		if err := b.postOne(result[1]); err != nil {
			log.Printf("bridge: dropping malformed outbound entry %q: %v", result[1], err)
		}
	}
}

func (b *Bridge) postOne(entry string) error {
	channel, payload, err := parseOutboundEntry(entry)
	if err != nil {
		return err
	}
	return b.engine.Post(channel, payload)
}

func parseOutboundEntry(entry string) (iccom.Channel, []byte, error) {
	parts := strings.SplitN(entry, ":", 2)
	if len(parts) != 2 {
		return 0, nil, fmt.Errorf("expected \"<channel>:<hex>\", got %q", entry)
	}
	var channel uint16
	if _, err := fmt.Sscanf(parts[0], "%d", &channel); err != nil {
		return 0, nil, fmt.Errorf("bad channel %q: %w", parts[0], err)
	}
	payload, err := hex.DecodeString(parts[1])
	if err != nil {
		return 0, nil, fmt.Errorf("bad hex payload: %w", err)
	}
	return iccom.Channel(channel), payload, nil
}

// InboundChannelKey names the Redis pub/sub channel a delivered ICCom
// channel's messages are published on.
func InboundChannelKey(channel iccom.Channel) string {
	return fmt.Sprintf("iccom:inbound:%d", channel)
}

// RegisterInbound installs an engine ready-callback on channel that
// publishes every delivered message, hex-encoded, to that channel's Redis
// pub/sub topic - the mirror image of drainOutbound.
func (b *Bridge) RegisterInbound(channel iccom.Channel) error {
	topic := InboundChannelKey(channel)
	return b.engine.SetChannelCallback(channel, func(ch iccom.Channel, data []byte, opaque interface{}) bool {
		if err := b.rc.Publish(topic, hex.EncodeToString(data)); err != nil {
			log.Printf("bridge: publish to %s failed: %v", topic, err)
		}
		return true
	}, nil)
}
