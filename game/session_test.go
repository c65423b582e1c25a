package game

import (
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/flotilla-net/flotilla/battleship"
	"github.com/flotilla-net/flotilla/crypto"
	"github.com/flotilla-net/flotilla/network"
	"github.com/stretchr/testify/require"
)

// fakeClient is an in-memory network.Client; the test drives the remote end
// through the in/out channels.
type fakeClient struct {
	line string
	in   chan []byte
	out  chan []byte
	done chan struct{}
	once sync.Once
}

func newFakeClient() *fakeClient {
	return &fakeClient{
		in:   make(chan []byte, 1024),
		out:  make(chan []byte, 4096),
		done: make(chan struct{}),
	}
}

func (c *fakeClient) RemoteAddr() net.Addr { return &net.TCPAddr{IP: net.IPv4(127, 0, 0, 1)} }

func (c *fakeClient) SendLine(line string) error { return nil }

func (c *fakeClient) ReceiveLine(timeout time.Duration) (string, error) { return c.line, nil }

func (c *fakeClient) Send(frame []byte) error {
	select {
	case <-c.done:
		return network.ErrClosed
	default:
	}
	select {
	case c.out <- frame:
	default:
	}
	return nil
}

func (c *fakeClient) Receive(timeout time.Duration) ([]byte, error) {
	if timeout <= 0 {
		select {
		case <-c.done:
			return nil, network.ErrClosed
		case buf := <-c.in:
			return buf, nil
		}
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-c.done:
		return nil, network.ErrClosed
	case buf := <-c.in:
		return buf, nil
	case <-timer.C:
		return nil, network.ErrTimeout
	}
}

func (c *fakeClient) Close() error {
	c.once.Do(func() { close(c.done) })
	return nil
}

// testPeer encodes and decodes like a real remote client.
type testPeer struct {
	t      *testing.T
	name   string
	key    crypto.Key
	client *fakeClient
	seq    uint32
	nonce  uint64
	lastRx uint32
}

func newTestPeer(t *testing.T, name string, key crypto.Key) *testPeer {
	return &testPeer{t: t, name: name, key: key, client: newFakeClient()}
}

func (tp *testPeer) send(typ byte, text string) {
	tp.seq += 1
	tp.nonce += 1
	tp.client.in <- network.EncodeFrame(tp.key, typ, tp.seq, tp.nonce, []byte(text))
}

// expect drains frames until one whose payload contains want shows up.
func (tp *testPeer) expect(want string) string {
	tp.t.Helper()
	deadline := time.After(3 * time.Second)
	for {
		select {
		case buf := <-tp.client.out:
			frame, err := network.DecodeFrame(tp.key, buf, tp.lastRx)
			require.Nil(tp.t, err)
			tp.lastRx = frame.Sequence
			text := string(frame.Payload)
			if len(want) == 0 || strings.Contains(text, want) {
				return text
			}
		case <-deadline:
			tp.t.Fatalf("%s never received %q", tp.name, want)
			return ""
		}
	}
}

// stubFleet makes outcomes deterministic: row A always hits, everything else
// misses, and the fleet dies after a fixed number of hits.
type stubFleet struct {
	shots    map[[2]int]bool
	hitsLeft int
}

func newStubFleet(hits int) *stubFleet {
	return &stubFleet{shots: make(map[[2]int]bool), hitsLeft: hits}
}

func (f *stubFleet) FireAt(row, col int) (battleship.Outcome, string) {
	rc := [2]int{row, col}
	if f.shots[rc] {
		return battleship.AlreadyShot, ""
	}
	f.shots[rc] = true
	if row != 0 {
		return battleship.Miss, ""
	}
	f.hitsLeft -= 1
	if f.hitsLeft == 0 {
		return battleship.Hit, "Destroyer"
	}
	return battleship.Hit, ""
}

func (f *stubFleet) AllSunk() bool { return f.hitsLeft <= 0 }

func (f *stubFleet) View() string { return "STUB\nBOARD" }

func fastSession() SessionConfig {
	return SessionConfig{
		TurnTimeout:     500 * time.Millisecond,
		ReconnectWindow: 400 * time.Millisecond,
		DrainTimeout:    5 * time.Millisecond,
		DisconnectPoll:  20 * time.Millisecond,
	}
}

func sessionFixture(t *testing.T, hits int) (*testPeer, *testPeer, *testPeer, *Session) {
	key := crypto.RandomKey()
	alice := newTestPeer(t, "alice", key)
	bob := newTestPeer(t, "bob", key)
	carol := newTestPeer(t, "carol", key)

	pa := network.NewPlayer("alice", alice.client, key, nil)
	pb := network.NewPlayer("bob", bob.client, key, nil)
	pc := network.NewPlayer("carol", carol.client, key, nil)

	s := NewSession(pa, pb, []*network.Player{pc},
		func() Fleet { return newStubFleet(hits) }, fastSession())
	return alice, bob, carol, s
}

func TestSessionTurnAlternation(t *testing.T) {
	require := require.New(t)

	alice, bob, carol, s := sessionFixture(t, 2)
	go s.Run()

	alice.expect("MATCH-START FIRST")
	bob.expect("MATCH-START SECOND")
	carol.expect("SPECTATOR-START")
	carol.expect("PLAYER-1")
	carol.expect("PLAYER-2")

	// alice fires B5 for a miss
	alice.expect("YOURTURN")
	alice.send(network.FrameTypeGame, "b5")
	alice.expect("RESULT MISS")
	bob.expect("INCOMING B5 MISS")
	carol.expect("alice→B5 MISS")

	// turn strictly alternates
	bob.expect("YOURTURN")
	bob.send(network.FrameTypeGame, "A1")
	bob.expect("RESULT HIT")
	alice.expect("INCOMING A1 HIT")

	// chat, malformed targets, repeats and odd frame types never consume
	// the turn
	alice.expect("YOURTURN")
	alice.send(network.FrameTypeChat, "gg")
	bob.expect("alice: gg")
	alice.expect("YOURTURN")
	alice.send(network.FrameTypeGame, "zzz")
	alice.expect("ERROR")
	alice.expect("YOURTURN")
	alice.send(network.FrameTypeGame, "B5")
	alice.expect("ERROR already_shot")
	alice.expect("YOURTURN")
	alice.send(network.FrameTypeControl, "ping")
	alice.expect("ERROR unexpected packet")

	// two hits on row A sink the stub fleet, the turn flips after a hit
	// the same as after a miss so bob shoots in between
	alice.expect("YOURTURN")
	alice.send(network.FrameTypeGame, "A1")
	alice.expect("RESULT HIT")
	bob.expect("YOURTURN")
	bob.send(network.FrameTypeGame, "B1")
	bob.expect("RESULT MISS")
	alice.expect("YOURTURN")
	alice.send(network.FrameTypeGame, "A2")
	alice.expect("RESULT HIT sunk Destroyer")
	alice.expect("WIN")
	bob.expect("LOSE")
	carol.expect("alice wins (all ships sunk)")

	<-s.Done()
	require.False(s.Running())
}

func TestSessionForfeit(t *testing.T) {
	require := require.New(t)

	alice, bob, carol, s := sessionFixture(t, 10)
	go s.Run()

	alice.expect("YOURTURN")
	alice.send(network.FrameTypeGame, "Quit")
	alice.expect("FORFEIT")
	bob.expect("WIN")
	carol.expect("bob wins (forfeit)")

	<-s.Done()
	require.False(s.Running())
}

func TestSessionSpectatorAdmission(t *testing.T) {
	key := crypto.RandomKey()
	alice := newTestPeer(t, "alice", key)
	bob := newTestPeer(t, "bob", key)
	pa := network.NewPlayer("alice", alice.client, key, nil)
	pb := network.NewPlayer("bob", bob.client, key, nil)

	s := NewSession(pa, pb, nil, func() Fleet { return newStubFleet(10) }, fastSession())
	go s.Run()
	alice.expect("YOURTURN")

	// admission is asynchronous to the turn loop, the snapshot arrives
	// without waiting for a turn boundary
	carol := newTestPeer(t, "carol", key)
	pc := network.NewPlayer("carol", carol.client, key, nil)
	s.AddSpectator(pc)
	carol.expect("SPECTATOR-START")
	carol.expect("PLAYER-1")
	carol.expect("PLAYER-2")
	require.Equal(t, network.RoleWatching, pc.Role())

	alice.send(network.FrameTypeGame, "quit")
	<-s.Done()
	require.Equal(t, network.RoleWaiting, pc.Role())
}

func TestSessionReconnect(t *testing.T) {
	require := require.New(t)

	key := crypto.RandomKey()
	alice := newTestPeer(t, "alice", key)
	bob := newTestPeer(t, "bob", key)
	pa := network.NewPlayer("alice", alice.client, key, nil)
	pb := network.NewPlayer("bob", bob.client, key, nil)

	conf := fastSession()
	conf.TurnTimeout = 100 * time.Millisecond
	conf.ReconnectWindow = 2 * time.Second
	s := NewSession(pa, pb, nil, func() Fleet { return newStubFleet(10) }, conf)

	go s.Run()
	alice.expect("YOURTURN")

	// alice goes silent past the turn deadline
	bob.expect("DC alice")

	// and rejoins within the window on a fresh transport
	alice2 := newTestPeer(t, "alice2", key)
	pa.Reattach(alice2.client)
	bob.expect("REJOIN alice")

	// same turn index, boards re-pushed on the new transport
	alice2.expect("PLAYER-1")
	alice2.expect("YOURTURN")
	alice2.send(network.FrameTypeGame, "quit")
	bob.expect("WIN")
	<-s.Done()
	require.Equal(network.RoleWaiting, pa.Role())
	require.True(pa.Alive())
}

func TestSessionDisconnectTimeout(t *testing.T) {
	require := require.New(t)

	key := crypto.RandomKey()
	alice := newTestPeer(t, "alice", key)
	bob := newTestPeer(t, "bob", key)
	pa := network.NewPlayer("alice", alice.client, key, nil)
	pb := network.NewPlayer("bob", bob.client, key, nil)

	conf := fastSession()
	conf.TurnTimeout = 80 * time.Millisecond
	conf.ReconnectWindow = 200 * time.Millisecond
	s := NewSession(pa, pb, nil, func() Fleet { return newStubFleet(10) }, conf)

	go s.Run()
	bob.expect("DC alice")
	bob.expect("WIN")
	bob.expect("bob wins (opponent disconnect).")

	<-s.Done()
	require.Equal(network.RoleWaiting, pa.Role())
	require.Equal(network.RoleWaiting, pb.Role())
	require.False(pa.Alive())
}
