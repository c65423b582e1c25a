package crypto

import (
	"encoding/hex"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"
	"golang.org/x/crypto/sha3"
)

// Key is the 32 byte shared secret that keys the frame cipher. Both ends of a
// connection must hold the same key out of band.
type Key [32]byte

func RandomKey() Key {
	var key Key
	ReadRand(key[:])
	return key
}

func KeyFromString(s string) (Key, error) {
	var key Key
	b, err := hex.DecodeString(s)
	if err != nil {
		return key, err
	}
	if len(b) != len(key) {
		return key, fmt.Errorf("invalid key length %d", len(b))
	}
	copy(key[:], b)
	return key, nil
}

func (k Key) String() string {
	return hex.EncodeToString(k[:])
}

func (k Key) HasValue() bool {
	var zero Key
	return k != zero
}

// DeriveKey stretches a passphrase into a shared secret with HKDF over
// SHA3-256, so operators can distribute a phrase instead of 64 hex characters.
func DeriveKey(secret, salt []byte) Key {
	var key Key
	r := hkdf.New(sha3.New256, secret, salt, []byte("flotilla-frame-key"))
	_, err := io.ReadFull(r, key[:])
	if err != nil {
		panic(err)
	}
	return key
}
