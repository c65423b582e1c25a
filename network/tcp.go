package network

import (
	"net"
)

type TcpTransport struct {
	addr     string
	listener net.Listener
}

func NewTcpServer(addr string) (*TcpTransport, error) {
	return &TcpTransport{
		addr: addr,
	}, nil
}

func NewTcpClient(addr string) (*TcpTransport, error) {
	return &TcpTransport{
		addr: addr,
	}, nil
}

func (t *TcpTransport) Listen() error {
	l, err := net.Listen("tcp", t.addr)
	if err != nil {
		return err
	}
	t.listener = l
	return nil
}

func (t *TcpTransport) Addr() net.Addr {
	if t.listener == nil {
		return nil
	}
	return t.listener.Addr()
}

func (t *TcpTransport) Accept() (Client, error) {
	conn, err := t.listener.Accept()
	if err != nil {
		return nil, err
	}
	return newStreamClient(conn.RemoteAddr(), conn), nil
}

func (t *TcpTransport) Dial() (Client, error) {
	tcpAddr, err := net.ResolveTCPAddr("tcp", t.addr)
	if err != nil {
		return nil, err
	}
	conn, err := net.DialTCP("tcp", nil, tcpAddr)
	if err != nil {
		return nil, err
	}
	return newStreamClient(conn.RemoteAddr(), conn), nil
}

func (t *TcpTransport) Close() error {
	if t.listener == nil {
		return nil
	}
	return t.listener.Close()
}
