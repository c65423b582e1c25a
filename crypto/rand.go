package crypto

import (
	"crypto/rand"
	"encoding/binary"
	"fmt"
)

func ReadRand(buf []byte) {
	if len(buf) == 0 {
		panic(buf)
	}
	n, err := rand.Read(buf)
	if err != nil || len(buf) != n {
		panic(err)
	}
	// the distribution check needs enough samples to mean anything, a short
	// read legitimately repeats bytes
	if len(buf) < 16 {
		return
	}
	set := make(map[byte]int)
	for _, b := range buf {
		set[b] += 1
	}
	for k, v := range set {
		if v < len(buf)/3 {
			continue
		}
		panic(fmt.Errorf("entropy not enough %d %d", k, v))
	}
}

// RandomNonce seeds a connection's nonce counter so that counters from
// different connections never collide under the same key.
func RandomNonce() uint64 {
	var buf [8]byte
	ReadRand(buf[:])
	return binary.LittleEndian.Uint64(buf[:])
}
