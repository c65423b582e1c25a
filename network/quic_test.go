package network

import (
	"testing"
	"time"

	"github.com/flotilla-net/flotilla/crypto"
	"github.com/stretchr/testify/require"
)

func TestQuic(t *testing.T) {
	require := require.New(t)

	addr := "127.0.0.1:7001"
	serverTrans, err := NewQuicServer(addr, crypto.RandomKey())
	require.Nil(err)
	require.NotNil(serverTrans)
	err = serverTrans.Listen()
	require.Nil(err)
	defer serverTrans.Close()

	wait := make(chan struct{})
	go func() {
		server, err := serverTrans.Accept()
		require.Nil(err)
		require.NotNil(server)
		line, err := server.ReceiveLine(3 * time.Second)
		require.Nil(err)
		require.Equal("alice", line)
		msg, err := server.Receive(3 * time.Second)
		require.Nil(err)
		require.Equal("hello flotilla", string(msg))
		wait <- struct{}{}
	}()

	clientTrans, err := NewQuicClient(addr)
	require.Nil(err)
	require.NotNil(clientTrans)
	client, err := clientTrans.Dial()
	require.Nil(err)
	require.NotNil(client)
	err = client.SendLine("alice")
	require.Nil(err)
	err = client.Send([]byte("hello flotilla"))
	require.Nil(err)
	<-wait
	client.Close()
}
