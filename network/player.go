package network

import (
	"sync"
	"time"

	"github.com/flotilla-net/flotilla/crypto"
)

// Player is one logical identity. It owns the transport, the per-direction
// counters and the liveness flag, and survives the transport being replaced
// on reconnect. Exactly one Player exists per name at a time.
type Player struct {
	Name string

	key   crypto.Key
	guard *ReplayGuard

	mutex  sync.Mutex
	client Client
	role   Role
	seq    uint32
	nonce  uint64
	lastRx uint32
	alive  bool
}

func NewPlayer(name string, client Client, key crypto.Key, guard *ReplayGuard) *Player {
	return &Player{
		Name:   name,
		key:    key,
		guard:  guard,
		client: client,
		nonce:  crypto.RandomNonce(),
		alive:  true,
	}
}

// Send is fire and forget. A transport failure flips the liveness flag and
// the session finds out through its next liveness poll, the caller never
// handles an error. Serializing sends through the lock is what guarantees
// the gap-free sequence.
func (p *Player) Send(typ byte, text string) {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	if p.client == nil {
		return
	}
	p.seq += 1
	p.nonce += 1
	frame := EncodeFrame(p.key, typ, p.seq, p.nonce, []byte(text))
	err := p.client.Send(frame)
	if err != nil {
		p.alive = false
		return
	}
	metrics.sent(typ)
}

// Receive returns one frame or ok=false. Timeouts, closures and every decode
// failure look identical to the caller, and nothing about the distinction
// ever reaches the remote peer. The lock is never held across the blocking
// read, so a Reattach can come in underneath; dead-marking is conditional on
// the failing transport still being the current one so a stale read error
// can not clobber a fresh connection.
func (p *Player) Receive(timeout time.Duration) (byte, string, bool) {
	p.mutex.Lock()
	client, lastRx := p.client, p.lastRx
	p.mutex.Unlock()

	if client == nil {
		return 0, "", false
	}
	buf, err := client.Receive(timeout)
	if err != nil {
		if err != ErrTimeout {
			p.markOffline(client)
		}
		return 0, "", false
	}
	frame, err := DecodeFrame(p.key, buf, lastRx)
	if err != nil {
		metrics.dropped()
		return 0, "", false
	}
	if p.guard != nil && !p.guard.Witness(p.Name, frame.Nonce) {
		metrics.dropped()
		return 0, "", false
	}

	p.mutex.Lock()
	if p.client == client && frame.Sequence > p.lastRx {
		p.lastRx = frame.Sequence
	}
	p.mutex.Unlock()

	metrics.received(frame.Type)
	return frame.Type, string(frame.Payload), true
}

// Reattach swaps in a fresh transport and resets both directions to a
// fresh-connection state, the reconnecting client can not know it is
// rejoining and always restarts its counters at 1. The replay window this
// reopens is covered by the guard.
func (p *Player) Reattach(client Client) {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	if p.client != nil {
		p.client.Close()
	}
	p.client = client
	p.seq = 0
	p.nonce = crypto.RandomNonce()
	p.lastRx = 0
	p.alive = true
	metrics.reattached()
}

func (p *Player) Alive() bool {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	return p.alive
}

// MarkOffline is how the session declares the turn holder gone after the
// turn deadline expires without a frame.
func (p *Player) MarkOffline() {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	p.alive = false
}

func (p *Player) markOffline(failed Client) {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	if p.client == failed {
		p.alive = false
	}
}

func (p *Player) Role() Role {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	return p.role
}

func (p *Player) Advance(e RoleEvent) {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	p.role = p.role.Next(e)
}

func (p *Player) Close() error {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	p.alive = false
	if p.client == nil {
		return nil
	}
	return p.client.Close()
}
