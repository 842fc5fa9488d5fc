// hostifd manages a switch's host interface objects: trap groups,
// traps, host interfaces, router interfaces and table entries.
package main

import (
	"os"

	"github.com/alecthomas/kong"

	"github.com/frobware/go-hostif/cmd/hostifd/cli"
)

func main() {
	c := cli.CLI{Out: os.Stdout}
	ctx := kong.Parse(&c, cli.KongOptions()...)
	ctx.FatalIfErrorf(ctx.Run(&c))
}
