package network

import (
	"encoding/binary"
	"errors"

	"github.com/flotilla-net/flotilla/crypto"
)

const (
	FrameTypeGame    = 1
	FrameTypeChat    = 2
	FrameTypeControl = 3

	FrameHeaderSize   = 15
	FrameChecksumSize = 4
	FrameOverhead     = FrameHeaderSize + FrameChecksumSize
)

// The receive path treats all four identically, a bad frame is a dropped
// frame, the peer never learns which check failed.
var (
	ErrFrameTooShort = errors.New("frame too short")
	ErrSizeMismatch  = errors.New("frame size mismatch")
	ErrIntegrity     = errors.New("frame checksum mismatch")
	ErrReplay        = errors.New("frame replay or stale sequence")
)

// Frame is the wire unit, little-endian:
//
//	type(1) | seq(4) | len(2) | nonce(8) | ciphertext(len) | crc32(4)
//
// The header stays plaintext so the receiver can check sequence and checksum
// before paying for a decryption. Sequence starts at 1 and grows by exactly
// one per frame per direction. The nonce doubles as the CTR parameter and
// must never repeat under one key.
type Frame struct {
	Type     byte
	Sequence uint32
	Nonce    uint64
	Payload  []byte
}

func EncodeFrame(key crypto.Key, typ byte, seq uint32, nonce uint64, payload []byte) []byte {
	ct := crypto.Keystream(key, nonce, payload)
	buf := make([]byte, FrameOverhead+len(ct))
	buf[0] = typ
	binary.LittleEndian.PutUint32(buf[1:], seq)
	binary.LittleEndian.PutUint16(buf[5:], uint16(len(ct)))
	binary.LittleEndian.PutUint64(buf[7:], nonce)
	copy(buf[FrameHeaderSize:], ct)
	crc := crypto.Checksum(buf[:FrameHeaderSize+len(ct)])
	binary.LittleEndian.PutUint32(buf[FrameHeaderSize+len(ct):], crc)
	return buf
}

// DecodeFrame validates buf against lastSeq, the highest sequence accepted on
// this direction so far, and only decrypts once every check has passed.
func DecodeFrame(key crypto.Key, buf []byte, lastSeq uint32) (*Frame, error) {
	if len(buf) < FrameOverhead {
		return nil, ErrFrameTooShort
	}
	length := binary.LittleEndian.Uint16(buf[5:])
	if len(buf) != FrameOverhead+int(length) {
		return nil, ErrSizeMismatch
	}
	ctEnd := FrameHeaderSize + int(length)
	crc := binary.LittleEndian.Uint32(buf[ctEnd:])
	if crypto.Checksum(buf[:ctEnd]) != crc {
		return nil, ErrIntegrity
	}
	seq := binary.LittleEndian.Uint32(buf[1:])
	if seq <= lastSeq {
		return nil, ErrReplay
	}
	nonce := binary.LittleEndian.Uint64(buf[7:])
	return &Frame{
		Type:     buf[0],
		Sequence: seq,
		Nonce:    nonce,
		Payload:  crypto.Keystream(key, nonce, buf[FrameHeaderSize:ctEnd]),
	}, nil
}
