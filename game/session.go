package game

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/flotilla-net/flotilla/battleship"
	"github.com/flotilla-net/flotilla/config"
	"github.com/flotilla-net/flotilla/logger"
	"github.com/flotilla-net/flotilla/network"
)

type SessionConfig struct {
	TurnTimeout     time.Duration
	ReconnectWindow time.Duration
	DrainTimeout    time.Duration
	DisconnectPoll  time.Duration
}

func (c SessionConfig) normalized() SessionConfig {
	if c.TurnTimeout <= 0 {
		c.TurnTimeout = config.TurnTimeout
	}
	if c.ReconnectWindow <= 0 {
		c.ReconnectWindow = config.ReconnectWindow
	}
	if c.DrainTimeout <= 0 {
		c.DrainTimeout = config.DrainTimeout
	}
	if c.DisconnectPoll <= 0 {
		c.DisconnectPoll = config.DisconnectPoll
	}
	return c
}

// Session coordinates exactly two participants and any number of spectators
// through alternating turns until a win, forfeit or expired reconnection
// window. A session object is never reused, the lobby builds a new one per
// match.
type Session struct {
	conf    SessionConfig
	players [2]*network.Player
	fleets  [2]Fleet

	mutex      sync.Mutex
	spectators []*network.Player
	turn       int

	done chan struct{}
}

func NewSession(p0, p1 *network.Player, spectators []*network.Player, newFleet func() Fleet, conf SessionConfig) *Session {
	s := &Session{
		conf:    conf.normalized(),
		players: [2]*network.Player{p0, p1},
		done:    make(chan struct{}),
	}
	s.fleets[0], s.fleets[1] = newFleet(), newFleet()
	p0.Advance(network.EventMatched)
	p1.Advance(network.EventMatched)
	for _, sp := range spectators {
		s.AddSpectator(sp)
	}
	return s
}

func (s *Session) Running() bool {
	select {
	case <-s.done:
		return false
	default:
		return true
	}
}

func (s *Session) Done() <-chan struct{} {
	return s.done
}

// AddSpectator admits a spectator mid-match. Safe to call from the lobby
// while the turn loop is running; the newcomer gets the welcome notice and
// both board snapshots immediately, it does not wait for a turn boundary.
func (s *Session) AddSpectator(p *network.Player) {
	s.mutex.Lock()
	s.spectators = append(s.spectators, p)
	s.mutex.Unlock()

	p.Advance(network.EventAdmittedWatching)
	p.Send(network.FrameTypeControl, "SPECTATOR-START")
	s.pushBoardsTo(p)
	logger.Verbosef("session spectator %s admitted\n", p.Name)
}

func (s *Session) Run() {
	defer s.finish()

	s.players[0].Send(network.FrameTypeControl, "MATCH-START FIRST")
	s.players[1].Send(network.FrameTypeControl, "MATCH-START SECOND")
	s.broadcast(network.FrameTypeControl, "MATCH-START")
	logger.Printf("session start %s vs %s\n", s.players[0].Name, s.players[1].Name)

	for {
		turn := s.currentTurn()
		me, enemy := s.players[turn], s.players[1-turn]

		s.pushBoards()
		s.drainChat(enemy)

		me.Send(network.FrameTypeControl, fmt.Sprintf("YOURTURN %d", int(s.conf.TurnTimeout/time.Second)))
		enemy.Send(network.FrameTypeControl, "WAIT")
		for _, sp := range s.watchers() {
			sp.Send(network.FrameTypeControl, "WAIT")
		}

		typ, text, ok := me.Receive(s.conf.TurnTimeout)
		if !ok {
			me.MarkOffline()
			if s.handleDisconnect(me, enemy) {
				return
			}
			continue
		}

		if typ == network.FrameTypeChat {
			s.broadcast(network.FrameTypeChat, me.Name+": "+text)
			continue
		}
		if typ != network.FrameTypeGame {
			me.Send(network.FrameTypeControl, "ERROR unexpected packet")
			continue
		}

		cmd := strings.TrimSpace(text)
		if strings.EqualFold(cmd, "quit") {
			me.Send(network.FrameTypeControl, "FORFEIT")
			enemy.Send(network.FrameTypeControl, "WIN")
			s.broadcast(network.FrameTypeControl, fmt.Sprintf("%s wins (forfeit)", enemy.Name))
			return
		}

		row, col, err := battleship.ParseTarget(cmd)
		if err != nil {
			me.Send(network.FrameTypeControl, "ERROR "+err.Error())
			continue
		}
		outcome, sunk := s.fleets[1-turn].FireAt(row, col)
		if outcome == battleship.AlreadyShot {
			me.Send(network.FrameTypeControl, "ERROR already_shot")
			continue
		}

		tag := "MISS"
		if outcome == battleship.Hit {
			tag = "HIT"
		}
		extra := ""
		if sunk != "" {
			extra = " sunk " + sunk
		}
		target := strings.ToUpper(cmd)
		me.Send(network.FrameTypeGame, fmt.Sprintf("RESULT %s%s", tag, extra))
		enemy.Send(network.FrameTypeGame, fmt.Sprintf("INCOMING %s %s%s", target, tag, extra))
		s.broadcast(network.FrameTypeGame, fmt.Sprintf("%s→%s %s%s", me.Name, target, tag, extra))

		if s.fleets[1-turn].AllSunk() {
			me.Send(network.FrameTypeControl, "WIN")
			enemy.Send(network.FrameTypeControl, "LOSE")
			s.broadcast(network.FrameTypeControl, fmt.Sprintf("%s wins (all ships sunk)", me.Name))
			return
		}

		s.setTurn(1 - turn)
	}
}

// handleDisconnect polls the leaver's liveness once per poll interval until
// the reconnection window runs out. The turn index is untouched either way,
// a rejoining leaver resumes exactly where it left. Returns true when the
// session is over.
func (s *Session) handleDisconnect(leaver, opponent *network.Player) bool {
	s.broadcast(network.FrameTypeControl,
		fmt.Sprintf("DC %s — waiting %ds…", leaver.Name, int(s.conf.ReconnectWindow/time.Second)))
	logger.Printf("session disconnect %s, window %s\n", leaver.Name, s.conf.ReconnectWindow)

	var waited time.Duration
	for waited < s.conf.ReconnectWindow && !leaver.Alive() {
		time.Sleep(s.conf.DisconnectPoll)
		waited += s.conf.DisconnectPoll
	}

	if leaver.Alive() {
		s.broadcast(network.FrameTypeControl, fmt.Sprintf("REJOIN %s — game resumes.", leaver.Name))
		return false
	}
	opponent.Send(network.FrameTypeControl, "WIN")
	s.broadcast(network.FrameTypeControl, fmt.Sprintf("%s wins (opponent disconnect).", opponent.Name))
	return true
}

// drainChat gives the non-turn participant and every spectator a brief
// chance to speak without delaying the turn. Anything drained that is not
// chat is discarded.
func (s *Session) drainChat(enemy *network.Player) {
	peers := append([]*network.Player{enemy}, s.watchers()...)
	for _, p := range peers {
		if !p.Alive() {
			continue
		}
		typ, text, ok := p.Receive(s.conf.DrainTimeout)
		if ok && typ == network.FrameTypeChat {
			s.broadcast(network.FrameTypeChat, p.Name+": "+text)
		}
	}
}

func (s *Session) pushBoards() {
	for _, m := range s.members() {
		s.pushBoardsTo(m)
	}
}

func (s *Session) pushBoardsTo(p *network.Player) {
	p.Send(network.FrameTypeGame, "PLAYER-1\n"+s.fleets[0].View())
	p.Send(network.FrameTypeGame, "PLAYER-2\n"+s.fleets[1].View())
}

func (s *Session) broadcast(typ byte, text string) {
	for _, m := range s.members() {
		m.Send(typ, text)
	}
}

func (s *Session) members() []*network.Player {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	members := make([]*network.Player, 0, 2+len(s.spectators))
	members = append(members, s.players[0], s.players[1])
	members = append(members, s.spectators...)
	return members
}

func (s *Session) watchers() []*network.Player {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	return append([]*network.Player{}, s.spectators...)
}

func (s *Session) currentTurn() int {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	return s.turn
}

func (s *Session) setTurn(turn int) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.turn = turn
}

func (s *Session) finish() {
	for _, m := range s.members() {
		m.Advance(network.EventSessionEnded)
	}
	close(s.done)
	logger.Printf("session end %s vs %s\n", s.players[0].Name, s.players[1].Name)
}

// Info feeds the operator endpoint.
func (s *Session) Info() map[string]interface{} {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	return map[string]interface{}{
		"participants": []string{s.players[0].Name, s.players[1].Name},
		"turn":         s.turn,
		"spectators":   len(s.spectators),
	}
}
