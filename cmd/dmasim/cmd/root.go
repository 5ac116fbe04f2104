// Package cmd provides the command-line interface of dmasim.
package cmd

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "dmasim",
	Short: "dmasim runs DMA transfers on a simulated CH32V003.",
	Long: `dmasim assembles a simulated CH32V003 with its DMA controller, ` +
		`ADC, USART and SPI, and runs one transfer scenario on it. The ` +
		`board is configured with SIMPLEHAL_* variables, read from the ` +
		`environment and from an optional .env file.`,
	SilenceUsage: true,
}

func init() {
	f := rootCmd.PersistentFlags()
	f.String("env", "", "read board settings from this .env file")
	f.String("trace-db", "", "record transfers into this SQLite database")
	f.Bool("log", false, "log transfers to stderr")
	f.Bool("log-events", false, "log every hardware event to stderr")
	f.Bool("monitor", false, "serve the web monitor")
	f.Int("port", 0, "port of the web monitor, random if 0")
	f.Bool("open", false, "open the web monitor in a browser")
	f.Bool("hold", false, "keep running after the scenario until interrupted")
}

// Execute runs the command line.
func Execute() error {
	return rootCmd.Execute()
}
