// Command tallierd runs one tallier in a secure-voting clique: the TLS
// mesh listener, the MPC orchestrator, and the operator/vote HTTP
// surfaces. Subcommand layout mirrors threshold-cli's: a root command with
// serve/dial-test/bench subcommands.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	operatorAddr  string
	frontdoorAddr string
	iterations    int
)

var rootCmd = &cobra.Command{
	Use:   "tallierd",
	Short: "Distributed secure-voting tallier daemon",
	Long:  `tallierd runs one party of a threshold secret-sharing voting tally over a TLS mesh of talliers.`,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the tallier daemon",
	Long:  `Load config.json, join the clique, and serve the operator and front-door HTTP surfaces.`,
	RunE:  runServe,
}

var dialTestCmd = &cobra.Command{
	Use:   "dial-test",
	Short: "Form the clique once and report liveness",
	Long:  `Dial every configured peer, form one clique, and report success or failure without serving traffic.`,
	RunE:  runDialTest,
}

var benchCmd = &cobra.Command{
	Use:   "bench",
	Short: "Benchmark validate/tally throughput against an in-process mesh",
	Long:  `Run the voting-rule validation and winner-calculation primitives against an in-process mpctest mesh and report timings.`,
	RunE:  runBench,
}

func init() {
	serveCmd.Flags().StringVar(&operatorAddr, "operator-addr", ":8081", "address for the operator HTTP surface (/healthz, /debug/elections)")
	serveCmd.Flags().StringVar(&frontdoorAddr, "frontdoor-addr", ":8080", "address for the vote/stop websocket front door")

	benchCmd.Flags().IntVar(&iterations, "iterations", 20, "number of iterations per benchmarked operation")

	rootCmd.AddCommand(serveCmd, dialTestCmd, benchCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
