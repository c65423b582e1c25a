package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"encoding/binary"
	"hash/crc32"
)

// Keystream applies AES-256-CTR to data and returns the result. The counter
// block is the 64-bit nonce little-endian in its high half with the low half
// starting at zero, so every distinct nonce yields a distinct keystream.
// Encryption and decryption are the same transform.
func Keystream(key Key, nonce uint64, data []byte) []byte {
	block, err := aes.NewCipher(key[:])
	if err != nil {
		panic(err)
	}
	var iv [aes.BlockSize]byte
	binary.LittleEndian.PutUint64(iv[:8], nonce)
	out := make([]byte, len(data))
	cipher.NewCTR(block, iv[:]).XORKeyStream(out, data)
	return out
}

// Checksum is the zlib-compatible CRC-32 used as the frame integrity tag.
func Checksum(data []byte) uint32 {
	return crc32.ChecksumIEEE(data)
}
