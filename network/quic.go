package network

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"encoding/pem"
	"math/big"
	"net"
	"time"

	"github.com/flotilla-net/flotilla/crypto"
	"github.com/quic-go/quic-go"
)

const (
	quicNextProto      = "flotilla"
	MaxIncomingStreams = 64
	IdleTimeout        = 5 * time.Minute
)

type QuicClient struct {
	*streamClient
	session quic.Connection
}

type QuicTransport struct {
	addr     string
	tls      *tls.Config
	listener *quic.Listener
}

func NewQuicServer(addr string, k crypto.Key) (*QuicTransport, error) {
	tlsConf, err := generateTLSConfig(k)
	if err != nil {
		return nil, err
	}
	return &QuicTransport{
		addr: addr,
		tls:  tlsConf,
	}, nil
}

func NewQuicClient(addr string) (*QuicTransport, error) {
	return &QuicTransport{
		addr: addr,
		tls: &tls.Config{
			InsecureSkipVerify: true,
			NextProtos:         []string{quicNextProto},
		},
	}, nil
}

func (t *QuicTransport) Listen() error {
	l, err := quic.ListenAddr(t.addr, t.tls, &quic.Config{
		MaxIncomingStreams:   MaxIncomingStreams,
		HandshakeIdleTimeout: HandshakeTimeout,
		MaxIdleTimeout:       IdleTimeout,
		KeepAlivePeriod:      IdleTimeout / 2,
	})
	if err != nil {
		return err
	}
	t.listener = l
	return nil
}

func (t *QuicTransport) Addr() net.Addr {
	if t.listener == nil {
		return nil
	}
	return t.listener.Addr()
}

func (t *QuicTransport) Accept() (Client, error) {
	sess, err := t.listener.Accept(context.Background())
	if err != nil {
		return nil, err
	}
	stm, err := sess.AcceptStream(context.Background())
	if err != nil {
		return nil, err
	}
	return &QuicClient{
		streamClient: newStreamClient(sess.RemoteAddr(), stm),
		session:      sess,
	}, nil
}

func (t *QuicTransport) Dial() (Client, error) {
	sess, err := quic.DialAddr(context.Background(), t.addr, t.tls, &quic.Config{
		HandshakeIdleTimeout: HandshakeTimeout,
		MaxIdleTimeout:       IdleTimeout,
		KeepAlivePeriod:      IdleTimeout / 2,
	})
	if err != nil {
		return nil, err
	}
	stm, err := sess.OpenStreamSync(context.Background())
	if err != nil {
		return nil, err
	}
	return &QuicClient{
		streamClient: newStreamClient(sess.RemoteAddr(), stm),
		session:      sess,
	}, nil
}

func (t *QuicTransport) Close() error {
	if t.listener == nil {
		return nil
	}
	return t.listener.Close()
}

func (c *QuicClient) Close() error {
	c.streamClient.Close()
	return c.session.CloseWithError(0, "")
}

func generateTLSConfig(k crypto.Key) (*tls.Config, error) {
	var priv *ecdsa.PrivateKey
	key := new(big.Int)
	key.SetBytes(k[:])
	priv = new(ecdsa.PrivateKey)
	curve := elliptic.P256()
	priv.PublicKey.Curve = curve
	priv.D = key
	priv.PublicKey.X, priv.PublicKey.Y = curve.ScalarBaseMult(key.Bytes())

	keyDER, err := x509.MarshalECPrivateKey(priv)
	if err != nil {
		return nil, err
	}

	template := x509.Certificate{SerialNumber: big.NewInt(1)}
	certDER, err := x509.CreateCertificate(rand.Reader, &template, &template, &priv.PublicKey, priv)
	if err != nil {
		return nil, err
	}

	keyPEM := pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: keyDER})
	certPEM := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: certDER})
	tlsCert, err := tls.X509KeyPair(certPEM, keyPEM)
	if err != nil {
		return nil, err
	}

	return &tls.Config{
		Certificates: []tls.Certificate{tlsCert},
		NextProtos:   []string{quicNextProto},
	}, nil
}
