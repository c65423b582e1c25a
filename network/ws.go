package network

import (
	"encoding/binary"
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/flotilla-net/flotilla/config"
	"github.com/gorilla/websocket"
)

// WsPath is where the browser transport upgrades.
const WsPath = "/play"

// WsClient carries one frame per binary message. The payload is the length
// prefix plus the frame, byte-identical to what the stream transports carry,
// so a capture on any transport decodes the same way. The identity line is
// the first text message, without the trailing newline.
//
// A gorilla connection does not survive a read deadline expiry, so reads go
// through a pump goroutine and timeouts are applied on the channel instead.
type WsClient struct {
	conn  *websocket.Conn
	inbox chan []byte
	write sync.Mutex
}

type WsTransport struct {
	addr     string
	server   *http.Server
	listener net.Listener
	backlog  chan *WsClient
}

func NewWsServer(addr string) (*WsTransport, error) {
	return &WsTransport{
		addr:    addr,
		backlog: make(chan *WsClient, 64),
	}, nil
}

func NewWsClient(addr string) (*WsTransport, error) {
	return &WsTransport{
		addr: addr,
	}, nil
}

func (t *WsTransport) Listen() error {
	l, err := net.Listen("tcp", t.addr)
	if err != nil {
		return err
	}
	t.listener = l

	upgrader := websocket.Upgrader{
		ReadBufferSize:  TransportMaxFrameSize + TransportPrefixSize,
		WriteBufferSize: TransportMaxFrameSize + TransportPrefixSize,
		CheckOrigin:     func(r *http.Request) bool { return true },
	}
	mux := http.NewServeMux()
	mux.HandleFunc(WsPath, func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		select {
		case t.backlog <- newWsConn(conn):
		default:
			conn.Close()
		}
	})
	t.server = &http.Server{Handler: mux}
	go t.server.Serve(l)
	return nil
}

func (t *WsTransport) Addr() net.Addr {
	if t.listener == nil {
		return nil
	}
	return t.listener.Addr()
}

func (t *WsTransport) Accept() (Client, error) {
	c, ok := <-t.backlog
	if !ok {
		return nil, ErrClosed
	}
	return c, nil
}

func (t *WsTransport) Dial() (Client, error) {
	url := t.addr
	if !strings.Contains(url, "://") {
		url = "ws://" + url
	}
	if !strings.HasSuffix(url, WsPath) {
		url = url + WsPath
	}
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		return nil, err
	}
	return newWsConn(conn), nil
}

func (t *WsTransport) Close() error {
	if t.server == nil {
		return nil
	}
	close(t.backlog)
	return t.server.Close()
}

func newWsConn(conn *websocket.Conn) *WsClient {
	c := &WsClient{
		conn:  conn,
		inbox: make(chan []byte, 64),
	}
	go c.pump()
	return c
}

func (c *WsClient) pump() {
	defer close(c.inbox)

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		c.inbox <- data
	}
}

func (c *WsClient) RemoteAddr() net.Addr {
	return c.conn.RemoteAddr()
}

func (c *WsClient) SendLine(line string) error {
	c.write.Lock()
	defer c.write.Unlock()

	c.conn.SetWriteDeadline(time.Now().Add(WriteDeadline))
	return translateError(c.conn.WriteMessage(websocket.TextMessage, []byte(line)))
}

func (c *WsClient) ReceiveLine(timeout time.Duration) (string, error) {
	data, err := c.receiveMessage(timeout)
	if err != nil {
		return "", err
	}
	if len(data) > config.IdentityMaxSize {
		return "", fmt.Errorf("identity line exceeds %d bytes", config.IdentityMaxSize)
	}
	return strings.TrimSuffix(string(data), "\n"), nil
}

func (c *WsClient) Send(frame []byte) error {
	if l := len(frame); l < 1 || l > TransportMaxFrameSize {
		return fmt.Errorf("send invalid frame size %d", l)
	}

	c.write.Lock()
	defer c.write.Unlock()

	c.conn.SetWriteDeadline(time.Now().Add(WriteDeadline))
	buf := make([]byte, TransportPrefixSize+len(frame))
	binary.LittleEndian.PutUint16(buf, uint16(len(frame)))
	copy(buf[TransportPrefixSize:], frame)
	return translateError(c.conn.WriteMessage(websocket.BinaryMessage, buf))
}

func (c *WsClient) Receive(timeout time.Duration) ([]byte, error) {
	data, err := c.receiveMessage(timeout)
	if err != nil {
		return nil, err
	}
	if len(data) < TransportPrefixSize {
		return nil, fmt.Errorf("receive invalid message size %d", len(data))
	}
	size := binary.LittleEndian.Uint16(data)
	if int(size) != len(data)-TransportPrefixSize || int(size) > TransportMaxFrameSize {
		return nil, fmt.Errorf("receive invalid frame size %d", size)
	}
	return data[TransportPrefixSize:], nil
}

func (c *WsClient) Close() error {
	return c.conn.Close()
}

func (c *WsClient) receiveMessage(timeout time.Duration) ([]byte, error) {
	if timeout <= 0 {
		data, ok := <-c.inbox
		if !ok {
			return nil, ErrClosed
		}
		return data, nil
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case data, ok := <-c.inbox:
		if !ok {
			return nil, ErrClosed
		}
		return data, nil
	case <-timer.C:
		return nil, ErrTimeout
	}
}
