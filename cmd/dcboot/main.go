// Command dcboot is the host-side tool for the boot manager: it packs and
// inspects firmware images, prints the compiled-in partition table and drives
// a simulated device whose flash persists between runs.
package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "dcboot",
		Usage: "dual-bank firmware boot manager tool",
		Commands: []*cli.Command{
			imageCmd,
			partitionsCmd,
			simCmd,
		},
	}
}
