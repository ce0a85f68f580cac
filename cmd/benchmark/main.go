// Command benchmark runs the synthetic access-pattern workloads against a
// cache configuration.
//
// Usage:
//
//	go run ./cmd/benchmark [flags]
//
// Example:
//
//	# Run all benchmarks with human-readable output
//	go run ./cmd/benchmark
//
//	# Output CSV for spreadsheet comparison
//	go run ./cmd/benchmark --format csv --associativity 4 > results.csv
package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/sarchlab/cachesim/benchmarks"
	"github.com/sarchlab/cachesim/timing/cache"
)

func main() {
	if err := newRootCmd(os.Stdout).Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd(stdout io.Writer) *cobra.Command {
	var (
		configPath string
		format     string
		core       bool
		verbose    bool
	)
	defaults := cache.DefaultConfig()
	overrides := *defaults

	cmd := &cobra.Command{
		Use:   "benchmark",
		Short: "Run synthetic access-pattern workloads through the cache model.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cmd.SilenceUsage = true

			config := cache.DefaultConfig()
			if configPath != "" {
				var err error
				config, err = cache.LoadConfig(configPath)
				if err != nil {
					return err
				}
			}

			flags := cmd.Flags()
			if flags.Changed("cache-size") {
				config.Size = overrides.Size
			}
			if flags.Changed("associativity") {
				config.Associativity = overrides.Associativity
			}
			if flags.Changed("block-size") {
				config.BlockSize = overrides.BlockSize
			}
			if flags.Changed("policy") {
				config.Policy = overrides.Policy
			}
			if err := config.Validate(); err != nil {
				return err
			}

			harnessConfig := benchmarks.DefaultConfig()
			harnessConfig.Cache = *config
			harnessConfig.Output = stdout
			harnessConfig.Verbose = verbose

			harness := benchmarks.NewHarness(harnessConfig)
			if core {
				harness.AddBenchmarks(benchmarks.GetCoreBenchmarks())
			} else {
				harness.AddBenchmarks(benchmarks.GetMicrobenchmarks())
			}

			results := harness.RunAll()

			switch format {
			case "csv":
				harness.PrintCSV(results)
			case "json":
				return harness.PrintJSON(results)
			case "text":
				_, _ = fmt.Fprintln(stdout, "Cache Benchmark Harness")
				_, _ = fmt.Fprintln(stdout, "=======================")
				_, _ = fmt.Fprintf(stdout, "Size: %d, Associativity: %d, Block Size: %d, Policy: %s\n",
					config.Size, config.Associativity, config.BlockSize, config.Policy)
				_, _ = fmt.Fprintln(stdout, "")
				harness.PrintResults(results)
			default:
				return fmt.Errorf("unknown output format %q", format)
			}

			return nil
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&configPath, "config", "", "Path to cache configuration JSON file")
	flags.IntVar(&overrides.Size, "cache-size", defaults.Size, "Cache capacity in bytes")
	flags.IntVar(&overrides.Associativity, "associativity", defaults.Associativity, "Blocks per set")
	flags.IntVar(&overrides.BlockSize, "block-size", defaults.BlockSize, "Block size in bytes")
	flags.StringVar(&overrides.Policy, "policy", defaults.Policy, "Replacement policy (counter or lru)")
	flags.StringVar(&format, "format", "text", "Output format (text, csv or json)")
	flags.BoolVar(&core, "core", false, "Run only the core benchmarks")
	flags.BoolVarP(&verbose, "verbose", "v", false, "Print one line per access")

	return cmd
}
