// Command dmasim runs DMA scenarios on a simulated CH32V003.
package main

import (
	"github.com/tebeka/atexit"

	"github.com/simplehal/simplehal/cmd/dmasim/cmd"
	"github.com/simplehal/simplehal/sim"
)

func main() {
	sim.UseParallelIDGenerator()

	if err := cmd.Execute(); err != nil {
		atexit.Exit(1)
	}

	atexit.Exit(0)
}
