package network

import (
	"net"
	"testing"
	"time"

	"github.com/flotilla-net/flotilla/crypto"
	"github.com/stretchr/testify/require"
)

// chanClient is an in-memory Client for exercising Player without sockets.
// The test plays the remote end through the in/out channels.
type chanClient struct {
	in   chan []byte
	out  chan []byte
	done chan struct{}
}

func newChanClient() *chanClient {
	return &chanClient{
		in:   make(chan []byte, 64),
		out:  make(chan []byte, 64),
		done: make(chan struct{}),
	}
}

func (c *chanClient) RemoteAddr() net.Addr { return &net.TCPAddr{IP: net.IPv4(127, 0, 0, 1)} }

func (c *chanClient) SendLine(line string) error { return nil }

func (c *chanClient) ReceiveLine(timeout time.Duration) (string, error) { return "", ErrTimeout }

func (c *chanClient) Send(frame []byte) error {
	select {
	case <-c.done:
		return ErrClosed
	default:
	}
	select {
	case <-c.done:
		return ErrClosed
	case c.out <- frame:
		return nil
	}
}

func (c *chanClient) Receive(timeout time.Duration) ([]byte, error) {
	if timeout <= 0 {
		select {
		case <-c.done:
			return nil, ErrClosed
		case buf := <-c.in:
			return buf, nil
		}
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-c.done:
		return nil, ErrClosed
	case buf := <-c.in:
		return buf, nil
	case <-timer.C:
		return nil, ErrTimeout
	}
}

func (c *chanClient) Close() error {
	select {
	case <-c.done:
	default:
		close(c.done)
	}
	return nil
}

// remotePeer encodes like a real client would, with its own counters.
type remotePeer struct {
	key   crypto.Key
	seq   uint32
	nonce uint64
}

func (r *remotePeer) frame(typ byte, text string) []byte {
	r.seq += 1
	r.nonce += 1
	return EncodeFrame(r.key, typ, r.seq, r.nonce, []byte(text))
}

func TestPlayerSend(t *testing.T) {
	require := require.New(t)

	key := crypto.RandomKey()
	client := newChanClient()
	p := NewPlayer("alice", client, key, nil)
	require.True(p.Alive())

	p.Send(FrameTypeControl, "YOURTURN 30")
	p.Send(FrameTypeGame, "RESULT MISS")
	p.Send(FrameTypeChat, "alice: hey")

	var lastSeq uint32
	nonces := make(map[uint64]bool)
	types := []byte{FrameTypeControl, FrameTypeGame, FrameTypeChat}
	texts := []string{"YOURTURN 30", "RESULT MISS", "alice: hey"}
	for i := 0; i < 3; i++ {
		frame, err := DecodeFrame(key, <-client.out, lastSeq)
		require.Nil(err)
		require.Equal(uint32(i+1), frame.Sequence)
		require.Equal(types[i], frame.Type)
		require.Equal(texts[i], string(frame.Payload))
		require.False(nonces[frame.Nonce])
		nonces[frame.Nonce] = true
		lastSeq = frame.Sequence
	}

	// a dead transport flips liveness without surfacing an error
	client.Close()
	p.Send(FrameTypeControl, "LOBBY")
	require.False(p.Alive())
}

func TestPlayerReceive(t *testing.T) {
	require := require.New(t)

	key := crypto.RandomKey()
	client := newChanClient()
	p := NewPlayer("bob", client, key, nil)
	remote := &remotePeer{key: key}

	// timeout is not a liveness event
	_, _, ok := p.Receive(20 * time.Millisecond)
	require.False(ok)
	require.True(p.Alive())

	buf := remote.frame(FrameTypeGame, "B5")
	client.in <- buf
	typ, text, ok := p.Receive(time.Second)
	require.True(ok)
	require.Equal(byte(FrameTypeGame), typ)
	require.Equal("B5", text)

	// identical bytes again are a replay, dropped like a missing frame
	client.in <- buf
	_, _, ok = p.Receive(50 * time.Millisecond)
	require.False(ok)
	require.True(p.Alive())

	// corrupt frames are dropped the same way
	next := remote.frame(FrameTypeGame, "C7")
	next[FrameHeaderSize] ^= 0x01
	client.in <- next
	_, _, ok = p.Receive(50 * time.Millisecond)
	require.False(ok)

	// closure does flip liveness
	client.Close()
	_, _, ok = p.Receive(time.Second)
	require.False(ok)
	require.False(p.Alive())
}

func TestPlayerReattach(t *testing.T) {
	require := require.New(t)

	key := crypto.RandomKey()
	guard := NewReplayGuard(1)
	client := newChanClient()
	p := NewPlayer("carol", client, key, guard)
	remote := &remotePeer{key: key}

	captured := remote.frame(FrameTypeGame, "A1")
	client.in <- captured
	_, text, ok := p.Receive(time.Second)
	require.True(ok)
	require.Equal("A1", text)

	p.Send(FrameTypeControl, "WAIT")
	p.Send(FrameTypeControl, "WAIT")

	next := newChanClient()
	p.Reattach(next)
	require.True(p.Alive())

	// old transport is closed, sends go out on the new one at sequence 1
	select {
	case <-client.done:
	default:
		t.Fatal("old transport not closed")
	}
	p.Send(FrameTypeControl, "RECONNECTED")
	frame, err := DecodeFrame(key, <-next.out, 0)
	require.Nil(err)
	require.Equal(uint32(1), frame.Sequence)

	// the watermark reset reopens the sequence window, but a frame captured
	// before the reattach is still dropped by the nonce guard
	next.in <- captured
	_, _, ok = p.Receive(50 * time.Millisecond)
	require.False(ok)

	// fresh traffic from the reconnected client is fine
	fresh := &remotePeer{key: key, nonce: crypto.RandomNonce()}
	next.in <- fresh.frame(FrameTypeGame, "B2")
	_, text, ok = p.Receive(time.Second)
	require.True(ok)
	require.Equal("B2", text)
}

func TestPlayerRole(t *testing.T) {
	require := require.New(t)

	p := NewPlayer("dave", newChanClient(), crypto.RandomKey(), nil)
	require.Equal(RoleWaiting, p.Role())
	require.False(p.Role().InMatch())

	p.Advance(EventMatched)
	require.Equal(RolePlaying, p.Role())
	require.True(p.Role().InMatch())

	// a playing identity can not also become a spectator
	p.Advance(EventAdmittedWatching)
	require.Equal(RolePlaying, p.Role())

	p.Advance(EventSessionEnded)
	require.Equal(RoleWaiting, p.Role())

	p.Advance(EventAdmittedWatching)
	require.Equal(RoleWatching, p.Role())
	require.Equal("spectator", p.Role().String())
	p.Advance(EventSessionEnded)
	require.Equal("waiting", p.Role().String())
}
