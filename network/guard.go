package network

import (
	"encoding/binary"
	"time"

	"github.com/VictoriaMetrics/fastcache"
)

// GuardWindow is how long an accepted (identity, nonce) pair stays remembered.
// It only has to outlive the reconnection window, after which the counters a
// replayed capture could sneak under are gone anyway.
const GuardWindow = 10 * time.Minute

// ReplayGuard remembers every nonce accepted per identity. Reattaching resets
// an identity's sequence watermark to stay wire-compatible with clients that
// always start at 1, which would reopen the replay window; the nonce memory
// keeps it shut, a frame captured before the reconnect still gets dropped
// after it.
type ReplayGuard struct {
	cache *fastcache.Cache
}

func NewReplayGuard(sizeMB int) *ReplayGuard {
	return &ReplayGuard{cache: fastcache.New(sizeMB * 1024 * 1024)}
}

// Witness records the pair and reports true the first time it is seen.
func (g *ReplayGuard) Witness(name string, nonce uint64) bool {
	key := make([]byte, len(name)+8)
	copy(key, name)
	binary.LittleEndian.PutUint64(key[len(name):], nonce)

	val := g.cache.Get(nil, key)
	if len(val) == 8 {
		ts := time.Unix(0, int64(binary.BigEndian.Uint64(val)))
		if ts.Add(GuardWindow).After(time.Now()) {
			return false
		}
	}
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, uint64(time.Now().UnixNano()))
	g.cache.Set(key, buf)
	return true
}
