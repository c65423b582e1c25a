package game

import (
	"strings"
	"sync"
	"time"

	"github.com/flotilla-net/flotilla/config"
	"github.com/flotilla-net/flotilla/crypto"
	"github.com/flotilla-net/flotilla/logger"
	"github.com/flotilla-net/flotilla/network"
	"github.com/flotilla-net/flotilla/util"
	"github.com/gofrs/uuid"
)

type LobbyConfig struct {
	SessionConfig
	LobbyPing time.Duration
	MatchPoll time.Duration
	QueuePoll time.Duration
}

func (c LobbyConfig) normalized() LobbyConfig {
	c.SessionConfig = c.SessionConfig.normalized()
	if c.LobbyPing <= 0 {
		c.LobbyPing = config.LobbyPing
	}
	if c.MatchPoll <= 0 {
		c.MatchPoll = time.Second
	}
	if c.QueuePoll <= 0 {
		c.QueuePoll = 500 * time.Millisecond
	}
	return c
}

// Lobby owns the identity registry and the waiting queue, resolves new
// transports against known names, and pairs waiting identities FIFO into
// sessions. The registry lock guards every existence-check-plus-mutation.
type Lobby struct {
	key      crypto.Key
	guard    *network.ReplayGuard
	conf     LobbyConfig
	newFleet func() Fleet
	epoch    time.Time

	mutex    sync.RWMutex
	registry map[string]*network.Player
	pending  map[string]bool
	pinging  map[string]bool
	session  *Session

	waiting chan *network.Player
}

func NewLobby(key crypto.Key, conf LobbyConfig) *Lobby {
	return &Lobby{
		key:      key,
		guard:    network.NewReplayGuard(16),
		conf:     conf.normalized(),
		newFleet: NewFleet,
		epoch:    time.Now(),
		registry: make(map[string]*network.Player),
		pending:  make(map[string]bool),
		pinging:  make(map[string]bool),
		waiting:  make(chan *network.Player, 128),
	}
}

// Serve listens on every configured transport and hands each accepted
// connection its own goroutine. It blocks until a listener fails.
func (lb *Lobby) Serve(transports ...network.Transport) error {
	errs := make(chan error, len(transports))
	for _, t := range transports {
		err := t.Listen()
		if err != nil {
			return err
		}
		logger.Printf("lobby listening on %s\n", t.Addr())
		go func(t network.Transport) {
			for {
				client, err := t.Accept()
				if err != nil {
					errs <- err
					return
				}
				go lb.handleConnection(client)
			}
		}(t)
	}
	return <-errs
}

// handleConnection reads the bootstrap identity line and resolves it against
// the registry. Empty or missing names become guests.
func (lb *Lobby) handleConnection(client network.Client) {
	name, err := client.ReceiveLine(config.BootstrapTimeout)
	if err != nil {
		logger.Verbosef("lobby bootstrap %s error %s\n", client.RemoteAddr(), err)
		client.Close()
		return
	}
	name = strings.TrimSpace(name)
	if name == "" {
		id, err := uuid.NewV4()
		if err != nil {
			client.Close()
			return
		}
		name = "guest-" + id.String()[:8]
	}
	lb.attach(client, name)
}

// attach resolves the name under the registry lock and releases it before any
// frame goes out, a slow transport never stalls the whole lobby.
func (lb *Lobby) attach(client network.Client, name string) {
	lb.mutex.Lock()
	p, session := lb.registry[name], lb.session
	known := p != nil
	if known {
		p.Reattach(client)
	} else {
		p = network.NewPlayer(name, client, lb.key, lb.guard)
		lb.registry[name] = p
	}
	lb.startKeepAlive(p)
	lb.mutex.Unlock()

	if known && p.Role().InMatch() {
		// the running session picks the player or spectator back up,
		// nothing is re-queued
		p.Send(network.FrameTypeControl, "RECONNECTED")
		logger.Printf("lobby reattach %s into running match\n", name)
		return
	}
	if !known && session != nil && session.Running() {
		session.AddSpectator(p)
		logger.Printf("lobby admit %s as spectator\n", name)
		return
	}

	p.Send(network.FrameTypeControl, "CONNECTED waiting")
	lb.mutex.Lock()
	lb.enqueue(p)
	lb.mutex.Unlock()
	logger.Printf("lobby queue %s\n", name)
}

// enqueue is deduplicated so a reattach can not put one identity in the
// queue twice. Callers hold the registry lock.
func (lb *Lobby) enqueue(p *network.Player) {
	if lb.pending[p.Name] {
		return
	}
	select {
	case lb.waiting <- p:
		lb.pending[p.Name] = true
	default:
		logger.Printf("lobby queue full, dropping %s\n", p.Name)
	}
}

// startKeepAlive guarantees exactly one notifier goroutine per identity,
// restarting it when a reattach finds the previous one gone. Callers hold the
// registry write lock.
func (lb *Lobby) startKeepAlive(p *network.Player) {
	if lb.pinging[p.Name] {
		return
	}
	lb.pinging[p.Name] = true
	go lb.keepAlive(p)
}

// keepAlive lets an idle client see the connection is still up while it
// waits for a match. The notifier stays quiet during a match and exits only
// once the identity is offline; the exit is re-checked under the registry
// lock so a concurrent reattach can not be left without a notifier.
func (lb *Lobby) keepAlive(p *network.Player) {
	for {
		time.Sleep(lb.conf.LobbyPing)
		if p.Role().InMatch() {
			continue
		}
		if p.Alive() {
			p.Send(network.FrameTypeControl, "LOBBY")
			continue
		}
		lb.mutex.Lock()
		if !p.Alive() {
			delete(lb.pinging, p.Name)
			lb.mutex.Unlock()
			return
		}
		lb.mutex.Unlock()
	}
}

// Run is the matchmaking loop: whenever no session is live, collect two
// waiting identities FIFO, take everyone else registered and live as the
// initial spectators, and start a session.
func (lb *Lobby) Run() {
	for {
		if s := lb.CurrentSession(); s == nil || !s.Running() {
			if s != nil {
				lb.requeueIdle()
			}
			pair := lb.collectPair()
			spectators := lb.gatherSpectators(pair)
			next := NewSession(pair[0], pair[1], spectators, lb.newFleet, lb.conf.SessionConfig)
			lb.setSession(next)
			go next.Run()
		}
		time.Sleep(lb.conf.MatchPoll)
	}
}

// collectPair blocks until two distinct, live, not-in-match identities come
// off the queue, skipping anything that went stale while it waited.
func (lb *Lobby) collectPair() [2]*network.Player {
	var picked []*network.Player
	timer := util.NewTimer(lb.conf.QueuePoll)
	defer timer.Stop()

	for len(picked) < 2 {
		select {
		case p := <-lb.waiting:
			lb.clearPending(p.Name)
			if !p.Alive() || p.Role().InMatch() {
				continue
			}
			if len(picked) == 1 && picked[0] == p {
				continue
			}
			picked = append(picked, p)
		case <-timer.C():
			timer.Drain()
			timer.Reset(lb.conf.QueuePoll)
		}
	}
	return [2]*network.Player{picked[0], picked[1]}
}

func (lb *Lobby) gatherSpectators(pair [2]*network.Player) []*network.Player {
	lb.mutex.RLock()
	defer lb.mutex.RUnlock()

	var spectators []*network.Player
	for _, p := range lb.registry {
		if p == pair[0] || p == pair[1] {
			continue
		}
		if !p.Alive() || p.Role().InMatch() {
			continue
		}
		spectators = append(spectators, p)
	}
	return spectators
}

// requeueIdle sweeps everyone a finished session released back into the
// queue so the next match can form.
func (lb *Lobby) requeueIdle() {
	lb.mutex.Lock()
	defer lb.mutex.Unlock()

	for _, p := range lb.registry {
		if p.Alive() && !p.Role().InMatch() {
			lb.enqueue(p)
		}
	}
}

func (lb *Lobby) clearPending(name string) {
	lb.mutex.Lock()
	defer lb.mutex.Unlock()

	delete(lb.pending, name)
}

func (lb *Lobby) CurrentSession() *Session {
	lb.mutex.RLock()
	defer lb.mutex.RUnlock()

	return lb.session
}

func (lb *Lobby) setSession(s *Session) {
	lb.mutex.Lock()
	defer lb.mutex.Unlock()

	lb.session = s
}

// Info feeds the operator endpoint.
func (lb *Lobby) Info() map[string]interface{} {
	lb.mutex.RLock()
	defer lb.mutex.RUnlock()

	players := make([]map[string]interface{}, 0, len(lb.registry))
	waiting := make([]string, 0, len(lb.pending))
	for _, p := range lb.registry {
		players = append(players, map[string]interface{}{
			"name":  p.Name,
			"role":  p.Role().String(),
			"alive": p.Alive(),
		})
	}
	for name := range lb.pending {
		waiting = append(waiting, name)
	}
	info := map[string]interface{}{
		"uptime":  time.Since(lb.epoch).String(),
		"players": players,
		"waiting": waiting,
	}
	if s := lb.session; s != nil && s.Running() {
		info["match"] = s.Info()
	}
	return info
}
