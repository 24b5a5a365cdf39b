// Command hmeshctl is the AL entity's CLI front end: a "run" subcommand
// that starts the daemon itself, plus "version"/"interfaces"/"alme"
// utility subcommands, all built with cobra exactly as the teacher's
// cmd/niac is.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	version = "v0.1.0"
	commit  = "dev"
	date    = "unknown"
)

var rootCmd = &cobra.Command{
	Use:   "hmeshctl",
	Short: "IEEE 1905.1/1a Abstraction Layer daemon and control CLI",
	Long: `hmeshctl runs and controls the hmeshd Abstraction Layer entity: an
IEEE 1905.1/1a daemon with Wi-Fi Multi-AP/EasyMesh extensions.

"hmeshctl run" starts the AL event loop against a set of local interfaces.
The other subcommands are lightweight clients: "version" prints build
info, "interfaces" lists platform network interfaces, and "alme" dials a
running daemon's ALME debug/management port and prints a decoded reply.`,
	Version: version,
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf("hmeshctl %s (commit: %s, built: %s)\n", version, commit, date))
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitCodeFor(err))
	}
}
