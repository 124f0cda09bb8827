// Command render-scan-replay replays a scripted host session through an
// attribution tracker on a virtual clock and prints the completion records
// and the merged timeline.
package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"
)

func newApp() *cli.App {
	return &cli.App{
		Name:     "render-scan-replay",
		Usage:    "Replay interaction sessions through the latency attribution pipeline",
		Commands: []*cli.Command{RunCommand()},
	}
}

func main() {
	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
