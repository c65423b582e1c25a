package main

import (
	"fmt"
	"net/http"
	_ "net/http/pprof"
	"runtime"
	"time"

	"github.com/flotilla-net/flotilla/config"
	"github.com/flotilla-net/flotilla/crypto"
	"github.com/flotilla-net/flotilla/game"
	"github.com/flotilla-net/flotilla/logger"
	"github.com/flotilla-net/flotilla/network"
	"github.com/flotilla-net/flotilla/rpc"
	"github.com/urfave/cli/v2"
)

func serverCmd(c *cli.Context) error {
	runtime.GOMAXPROCS(runtime.NumCPU())

	logger.SetLevel(c.Int("log"))
	err := logger.SetFilter(c.String("filter"))
	if err != nil {
		return err
	}

	custom, err := config.Initialize(c.String("config"))
	if err != nil {
		return err
	}

	lobby := game.NewLobby(custom.Node.SecretKey, game.LobbyConfig{
		SessionConfig: game.SessionConfig{
			TurnTimeout:     time.Duration(custom.Game.TurnTimeoutSeconds) * time.Second,
			ReconnectWindow: time.Duration(custom.Game.ReconnectWindowSeconds) * time.Second,
		},
		LobbyPing: time.Duration(custom.Game.LobbyPingSeconds) * time.Second,
	})

	transports := make([]network.Transport, 0, 3)
	tcp, err := network.NewTcpServer(custom.Network.Listener)
	if err != nil {
		return err
	}
	transports = append(transports, tcp)
	if addr := custom.Network.QuicListener; addr != "" {
		quic, err := network.NewQuicServer(addr, custom.Node.SecretKey)
		if err != nil {
			return err
		}
		transports = append(transports, quic)
	}
	if addr := custom.Network.WsListener; addr != "" {
		ws, err := network.NewWsServer(addr)
		if err != nil {
			return err
		}
		transports = append(transports, ws)
	}

	if p := custom.RPC.Port; p > 0 {
		server := rpc.NewServer(lobby, p)
		go func() {
			err := server.ListenAndServe()
			if err != nil && err != http.ErrServerClosed {
				panic(err)
			}
		}()
	}

	go lobby.Run()
	return lobby.Serve(transports...)
}

func createKeyCmd(c *cli.Context) error {
	var key crypto.Key
	if phrase := c.String("passphrase"); phrase != "" {
		key = crypto.DeriveKey([]byte(phrase), []byte(c.String("salt")))
	} else {
		key = crypto.RandomKey()
	}
	fmt.Println(key.String())
	return nil
}

func getInfoCmd(c *cli.Context) error {
	data, err := rpc.CallFlotillaRPC(c.String("node"), "getinfo", nil)
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}

func listPlayersCmd(c *cli.Context) error {
	data, err := rpc.CallFlotillaRPC(c.String("node"), "listplayers", nil)
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}
