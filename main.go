package main

import (
	"fmt"
	"os"

	"github.com/flotilla-net/flotilla/config"
	"github.com/flotilla-net/flotilla/logger"
	"github.com/urfave/cli/v2"
)

func main() {
	defaultRPC := os.Getenv("FLOTILLA_NODE_RPC")
	if defaultRPC == "" {
		defaultRPC = "http://127.0.0.1:7360"
	}

	app := cli.NewApp()
	app.Name = "flotilla"
	app.Usage = "An encrypted, replay-resistant, turn-based match server with spectators and reconnects."
	app.Version = config.BuildVersion
	app.Flags = []cli.Flag{
		&cli.StringFlag{
			Name:    "node",
			Aliases: []string{"n"},
			Value:   defaultRPC,
			Usage:   "the RPC endpoint, and the default value is read from environment variable FLOTILLA_NODE_RPC",
		},
	}
	app.EnableBashCompletion = true
	app.Commands = []*cli.Command{
		{
			Name:    "server",
			Aliases: []string{"s"},
			Usage:   "Start the flotilla match server daemon",
			Action:  serverCmd,
			Flags: []cli.Flag{
				&cli.StringFlag{
					Name:    "config",
					Aliases: []string{"c"},
					Value:   "config.toml",
					Usage:   "the configuration file",
				},
				&cli.IntFlag{
					Name:    "log",
					Aliases: []string{"l"},
					Value:   logger.INFO,
					Usage:   "the log level",
				},
				&cli.StringFlag{
					Name:  "filter",
					Usage: "the RE2 regex pattern to filter log",
				},
			},
		},
		{
			Name:    "play",
			Aliases: []string{"p"},
			Usage:   "Connect to a match server and play interactively",
			Action:  playCmd,
			Flags: []cli.Flag{
				&cli.StringFlag{
					Name:    "server",
					Aliases: []string{"s"},
					Value:   "tcp://127.0.0.1:7350",
					Usage:   "the server address as tcp://, quic:// or ws://",
				},
				&cli.StringFlag{
					Name:  "name",
					Usage: "the declared identity, empty for a guest name",
				},
				&cli.StringFlag{
					Name:    "key",
					Aliases: []string{"k"},
					Usage:   "the shared frame key `HEX`",
				},
			},
		},
		{
			Name:   "createkey",
			Usage:  "Create a shared frame key, random or from a passphrase",
			Action: createKeyCmd,
			Flags: []cli.Flag{
				&cli.StringFlag{
					Name:  "passphrase",
					Usage: "derive the key from this passphrase instead of random",
				},
				&cli.StringFlag{
					Name:  "salt",
					Value: "flotilla",
					Usage: "the derivation salt",
				},
			},
		},
		{
			Name:   "getinfo",
			Usage:  "Get info from the server",
			Action: getInfoCmd,
		},
		{
			Name:   "listplayers",
			Usage:  "List all registered players",
			Action: listPlayersCmd,
		},
	}
	err := app.Run(os.Args)
	if err != nil {
		fmt.Println(err)
	}
}
