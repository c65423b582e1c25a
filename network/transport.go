package network

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"github.com/flotilla-net/flotilla/config"
)

const (
	TransportMaxFrameSize = 8 * 1024
	TransportPrefixSize   = 2

	HandshakeTimeout = 2 * time.Second
	WriteDeadline    = 3 * time.Second
)

var (
	ErrTimeout = errors.New("transport timeout")
	ErrClosed  = errors.New("transport closed")
)

// Client is one duplex connection carrying length-delimited frames. The first
// thing on the wire after connect is a plaintext identity line, everything
// after that is encrypted frames prefixed by a 2 byte little-endian length.
type Client interface {
	RemoteAddr() net.Addr
	SendLine(line string) error
	ReceiveLine(timeout time.Duration) (string, error)
	Send(frame []byte) error
	Receive(timeout time.Duration) ([]byte, error)
	Close() error
}

type Transport interface {
	Listen() error
	Addr() net.Addr
	Accept() (Client, error)
	Dial() (Client, error)
	Close() error
}

// duplexStream is the surface shared by net.Conn and quic.Stream.
type duplexStream interface {
	io.ReadWriteCloser
	SetReadDeadline(t time.Time) error
	SetWriteDeadline(t time.Time) error
}

type streamClient struct {
	remote net.Addr
	stream duplexStream
	reader *bufio.Reader
	write  sync.Mutex
}

func newStreamClient(remote net.Addr, stream duplexStream) *streamClient {
	return &streamClient{
		remote: remote,
		stream: stream,
		reader: bufio.NewReaderSize(stream, TransportMaxFrameSize+TransportPrefixSize),
	}
}

func (c *streamClient) RemoteAddr() net.Addr {
	return c.remote
}

func (c *streamClient) SendLine(line string) error {
	c.write.Lock()
	defer c.write.Unlock()

	err := c.stream.SetWriteDeadline(time.Now().Add(WriteDeadline))
	if err != nil {
		return translateError(err)
	}
	_, err = c.stream.Write(append([]byte(line), '\n'))
	return translateError(err)
}

func (c *streamClient) ReceiveLine(timeout time.Duration) (string, error) {
	err := c.setReadDeadline(timeout)
	if err != nil {
		return "", translateError(err)
	}
	var line []byte
	for len(line) < config.IdentityMaxSize {
		b, err := c.reader.ReadByte()
		if err != nil {
			return "", translateError(err)
		}
		if b == '\n' {
			return string(line), nil
		}
		line = append(line, b)
	}
	return "", fmt.Errorf("identity line exceeds %d bytes", config.IdentityMaxSize)
}

func (c *streamClient) Receive(timeout time.Duration) ([]byte, error) {
	err := c.setReadDeadline(timeout)
	if err != nil {
		return nil, translateError(err)
	}
	prefix := make([]byte, TransportPrefixSize)
	_, err = io.ReadFull(c.reader, prefix)
	if err != nil {
		return nil, translateError(err)
	}
	size := binary.LittleEndian.Uint16(prefix)
	if int(size) > TransportMaxFrameSize {
		return nil, fmt.Errorf("receive invalid frame size %d", size)
	}
	frame := make([]byte, size)
	_, err = io.ReadFull(c.reader, frame)
	if err != nil {
		return nil, translateError(err)
	}
	return frame, nil
}

func (c *streamClient) Send(frame []byte) error {
	if l := len(frame); l < 1 || l > TransportMaxFrameSize {
		return fmt.Errorf("send invalid frame size %d", l)
	}

	c.write.Lock()
	defer c.write.Unlock()

	err := c.stream.SetWriteDeadline(time.Now().Add(WriteDeadline))
	if err != nil {
		return translateError(err)
	}
	buf := make([]byte, TransportPrefixSize+len(frame))
	binary.LittleEndian.PutUint16(buf, uint16(len(frame)))
	copy(buf[TransportPrefixSize:], frame)
	_, err = c.stream.Write(buf)
	return translateError(err)
}

func (c *streamClient) Close() error {
	return c.stream.Close()
}

func (c *streamClient) setReadDeadline(timeout time.Duration) error {
	if timeout <= 0 {
		return c.stream.SetReadDeadline(time.Time{})
	}
	return c.stream.SetReadDeadline(time.Now().Add(timeout))
}

func translateError(err error) error {
	if err == nil {
		return nil
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return ErrTimeout
	}
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, net.ErrClosed) {
		return ErrClosed
	}
	return err
}
