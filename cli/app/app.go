package app

import (
	"fmt"
	"os"
	"runtime"

	"github.com/nspcc-dev/neo-exex/cli/wal"
	"github.com/nspcc-dev/neo-exex/pkg/config"
	"github.com/urfave/cli"
)

func versionPrinter(c *cli.Context) {
	_, _ = fmt.Fprintf(c.App.Writer, "NeoExEx\nVersion: %s\nGoVersion: %s\n",
		config.Version,
		runtime.Version(),
	)
}

// New creates a neo-exex instance of [cli.App] with all commands included.
func New() *cli.App {
	cli.VersionPrinter = versionPrinter
	ctl := cli.NewApp()
	ctl.Name = "neo-exex"
	ctl.Version = config.Version
	ctl.Usage = "Chain state notifications for Neo execution extensions"
	ctl.ErrWriter = os.Stdout

	ctl.Commands = append(ctl.Commands, wal.NewCommands()...)
	return ctl
}
