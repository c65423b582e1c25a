package rpc

import (
	"github.com/flotilla-net/flotilla/config"
	"github.com/flotilla-net/flotilla/game"
	"github.com/flotilla-net/flotilla/network"
)

func getInfo(lobby *game.Lobby) map[string]interface{} {
	info := lobby.Info()
	info["version"] = config.BuildVersion
	info["metric"] = network.Metrics()
	return info
}

func listPlayers(lobby *game.Lobby) interface{} {
	return lobby.Info()["players"]
}
