package config

import (
	"fmt"
	"os"
	"time"

	"github.com/flotilla-net/flotilla/crypto"
	"github.com/pelletier/go-toml"
)

type Custom struct {
	Node struct {
		SecretKey crypto.Key `toml:"-"`
		SecretStr string     `toml:"secret-key"`
		Name      string     `toml:"name"`
	} `toml:"node"`
	Network struct {
		Listener     string `toml:"listener"`
		QuicListener string `toml:"quic-listener"`
		WsListener   string `toml:"ws-listener"`
	} `toml:"network"`
	Game struct {
		TurnTimeoutSeconds     int `toml:"turn-timeout-seconds"`
		ReconnectWindowSeconds int `toml:"reconnect-window-seconds"`
		LobbyPingSeconds       int `toml:"lobby-ping-seconds"`
	} `toml:"game"`
	RPC struct {
		Port int `toml:"port"`
	} `toml:"rpc"`
}

// Initialize reads the node configuration. The frame key is mandatory, a node
// without its own secret must not come up silently on some weak default.
func Initialize(file string) (*Custom, error) {
	f, err := os.ReadFile(file)
	if err != nil {
		return nil, err
	}
	var config Custom
	err = toml.Unmarshal(f, &config)
	if err != nil {
		return nil, err
	}
	if config.Node.SecretStr == "" {
		return nil, fmt.Errorf("config %s missing node secret-key", file)
	}
	key, err := crypto.KeyFromString(config.Node.SecretStr)
	if err != nil {
		return nil, fmt.Errorf("config %s invalid node secret-key %s", file, err)
	}
	config.Node.SecretKey = key
	if config.Network.Listener == "" {
		config.Network.Listener = DefaultListener
	}
	if config.Game.TurnTimeoutSeconds == 0 {
		config.Game.TurnTimeoutSeconds = int(TurnTimeout / time.Second)
	}
	if config.Game.ReconnectWindowSeconds == 0 {
		config.Game.ReconnectWindowSeconds = int(ReconnectWindow / time.Second)
	}
	if config.Game.LobbyPingSeconds == 0 {
		config.Game.LobbyPingSeconds = int(LobbyPing / time.Second)
	}
	return &config, nil
}
