// ceremony assigns the participants of proof of personhood ceremonies to
// meetups and judges the attendance ballots they submit.
package main

import (
	"fmt"
	"os"

	ceremonycli "github.com/drand/ceremony/internal/ceremony-cli"
)

func main() {
	app := ceremonycli.CLI()
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "ceremony: %+v\n", err)
		os.Exit(1)
	}
}
