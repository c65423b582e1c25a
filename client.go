package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/flotilla-net/flotilla/crypto"
	"github.com/flotilla-net/flotilla/network"
	"github.com/pterm/pterm"
	"github.com/urfave/cli/v2"
)

// playerConn is all the client-side connection state: the transport, the tx
// counters and the rx watermark. It lives and dies with one connection,
// nothing about the protocol is process-global.
type playerConn struct {
	client network.Client
	key    crypto.Key

	mutex  sync.Mutex
	seq    uint32
	nonce  uint64
	lastRx uint32
}

func playCmd(c *cli.Context) error {
	keyStr := c.String("key")
	if keyStr == "" {
		return fmt.Errorf("a shared frame key is required, create one with createkey")
	}
	key, err := crypto.KeyFromString(keyStr)
	if err != nil {
		return err
	}

	client, err := dialServer(c.String("server"))
	if err != nil {
		return err
	}
	defer client.Close()

	err = client.SendLine(c.String("name"))
	if err != nil {
		return err
	}

	conn := &playerConn{
		client: client,
		key:    key,
		nonce:  crypto.RandomNonce(),
	}

	pterm.Info.Printfln("flotilla %s — connected to %s", c.App.Version, c.String("server"))
	pterm.Info.Println("type a coordinate like B5 to fire, /say <text> to chat, quit to forfeit")

	done := make(chan struct{})
	go conn.renderLoop(done)

	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		select {
		case <-done:
			return nil
		default:
		}
		line := strings.TrimSpace(scanner.Text())
		switch {
		case line == "":
		case strings.HasPrefix(line, "/say "):
			conn.send(network.FrameTypeChat, strings.TrimPrefix(line, "/say "))
		case strings.EqualFold(line, "quit") || line == "/quit":
			conn.send(network.FrameTypeGame, "quit")
			time.Sleep(200 * time.Millisecond)
			return nil
		default:
			conn.send(network.FrameTypeGame, line)
		}
	}
	return scanner.Err()
}

func dialServer(addr string) (network.Client, error) {
	scheme, host := "tcp", addr
	if i := strings.Index(addr, "://"); i >= 0 {
		scheme, host = addr[:i], addr[i+3:]
	}
	var transport network.Transport
	var err error
	switch scheme {
	case "tcp":
		transport, err = network.NewTcpClient(host)
	case "quic":
		transport, err = network.NewQuicClient(host)
	case "ws", "wss":
		transport, err = network.NewWsClient(addr)
	default:
		return nil, fmt.Errorf("unsupported scheme %s", scheme)
	}
	if err != nil {
		return nil, err
	}
	return transport.Dial()
}

func (pc *playerConn) send(typ byte, text string) {
	pc.mutex.Lock()
	defer pc.mutex.Unlock()

	pc.seq += 1
	pc.nonce += 1
	frame := network.EncodeFrame(pc.key, typ, pc.seq, pc.nonce, []byte(text))
	err := pc.client.Send(frame)
	if err != nil {
		pterm.Warning.Printfln("send failed: %s", err)
	}
}

func (pc *playerConn) renderLoop(done chan struct{}) {
	defer close(done)

	for {
		buf, err := pc.client.Receive(0)
		if err != nil {
			pterm.Warning.Println("server closed the connection, press enter to exit")
			return
		}
		frame, err := network.DecodeFrame(pc.key, buf, pc.lastRx)
		if err != nil {
			// bad frames are dropped without comment, same as the server
			continue
		}
		pc.lastRx = frame.Sequence
		text := string(frame.Payload)
		switch frame.Type {
		case network.FrameTypeChat:
			pterm.FgCyan.Println(text)
		case network.FrameTypeGame:
			if strings.Contains(text, "\n") {
				pterm.Println("\n" + text)
			} else {
				pterm.FgGreen.Println(text)
			}
		default:
			pterm.FgYellow.Println(text)
		}
	}
}
