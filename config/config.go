package config

import "time"

const (
	BuildVersion = "v0.3.1"

	// turn-based session pacing
	TurnTimeout     = 30 * time.Second
	ReconnectWindow = 60 * time.Second
	DisconnectPoll  = 1 * time.Second
	DrainTimeout    = 10 * time.Millisecond
	LobbyPing       = 10 * time.Second

	// connection bootstrap
	BootstrapTimeout = 5 * time.Second
	IdentityMaxSize  = 64

	BoardSize = 10

	DefaultListener = "0.0.0.0:7350"
)
