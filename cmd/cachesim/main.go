// Package main provides the entry point for cachesim.
// cachesim replays a memory-access trace through a set-associative cache
// model and reports the miss rate and IPC.
package main

import (
	"errors"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/spf13/cobra"
	"github.com/tebeka/atexit"

	"github.com/sarchlab/cachesim/loader"
	"github.com/sarchlab/cachesim/recording"
	"github.com/sarchlab/cachesim/report"
	"github.com/sarchlab/cachesim/timing/cache"
	"github.com/sarchlab/cachesim/timing/core"
	"github.com/sarchlab/cachesim/timing/stats"
)

type options struct {
	configPath       string
	blockSize        int
	associativity    int
	size             int
	missPenalty      uint64
	writebackPenalty uint64
	policy           string
	includeWriteback bool

	verbose       bool
	recordPath    string
	skipMalformed bool
	format        string
}

func main() {
	atexit.Exit(execute(os.Args[1:], os.Stdout, os.Stderr))
}

// execute runs the command line and returns the process exit code.
func execute(args []string, stdout, stderr io.Writer) int {
	cmd := newRootCmd(stdout, stderr)
	cmd.SetArgs(args)

	if err := cmd.Execute(); err != nil {
		return 1
	}

	return 0
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	opts := &options{}
	defaults := cache.DefaultConfig()

	cmd := &cobra.Command{
		Use:   "cachesim [flags] <trace-file>",
		Short: "Replay a memory-access trace through a set-associative cache model.",
		Long: `cachesim replays a memory-access trace through a single-level ` +
			`set-associative cache and reports the miss rate and IPC. Each trace ` +
			`line has the form "# <0|1> <hex address> <instructions>".`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceUsage = true
			return run(cmd, opts, args[0], stdout, stderr)
		},
	}

	cmd.SetOut(stderr)
	cmd.SetErr(stderr)

	flags := cmd.Flags()
	flags.StringVar(&opts.configPath, "config", "", "Path to cache configuration JSON file")
	flags.IntVar(&opts.blockSize, "block-size", defaults.BlockSize, "Block size in bytes")
	flags.IntVar(&opts.associativity, "associativity", defaults.Associativity, "Blocks per set")
	flags.IntVar(&opts.size, "cache-size", defaults.Size, "Cache capacity in bytes")
	flags.Uint64Var(&opts.missPenalty, "miss-penalty", defaults.MissPenalty, "Miss penalty in cycles")
	flags.Uint64Var(&opts.writebackPenalty, "writeback-penalty", defaults.DirtyWritebackPenalty,
		"Dirty writeback penalty in cycles")
	flags.StringVar(&opts.policy, "policy", defaults.Policy, "Replacement policy (counter or lru)")
	flags.BoolVar(&opts.includeWriteback, "include-writeback-penalty", false,
		"Charge the dirty writeback penalty in the cycle count")
	flags.BoolVarP(&opts.verbose, "verbose", "v", false, "Print one line per access")
	flags.StringVar(&opts.recordPath, "record", "", "Record every access into this SQLite database")
	flags.BoolVar(&opts.skipMalformed, "skip-malformed", false,
		"Skip malformed trace lines with a warning instead of aborting")
	flags.StringVar(&opts.format, "format", "text", "Report format (text or json)")

	return cmd
}

// loadConfig builds the cache config from defaults, the config file, and
// explicitly set flags, in that order.
func loadConfig(cmd *cobra.Command, opts *options) (*cache.Config, error) {
	config := cache.DefaultConfig()
	if opts.configPath != "" {
		var err error
		config, err = cache.LoadConfig(opts.configPath)
		if err != nil {
			return nil, err
		}
	}

	flags := cmd.Flags()
	if flags.Changed("block-size") {
		config.BlockSize = opts.blockSize
	}
	if flags.Changed("associativity") {
		config.Associativity = opts.associativity
	}
	if flags.Changed("cache-size") {
		config.Size = opts.size
	}
	if flags.Changed("miss-penalty") {
		config.MissPenalty = opts.missPenalty
	}
	if flags.Changed("writeback-penalty") {
		config.DirtyWritebackPenalty = opts.writebackPenalty
	}
	if flags.Changed("policy") {
		config.Policy = opts.policy
	}
	if flags.Changed("include-writeback-penalty") {
		config.IncludeWritebackPenalty = opts.includeWriteback
	}

	return config, nil
}

func run(cmd *cobra.Command, opts *options, tracePath string, stdout, stderr io.Writer) error {
	if opts.format != "text" && opts.format != "json" {
		return fmt.Errorf("unknown report format %q", opts.format)
	}

	config, err := loadConfig(cmd, opts)
	if err != nil {
		return err
	}

	c, err := cache.New(*config)
	if err != nil {
		return err
	}

	trace, err := loader.Open(tracePath)
	if err != nil {
		return err
	}

	simOpts := []core.Option{}
	if opts.verbose {
		simOpts = append(simOpts, core.WithSink(recording.NewTextSink(stdout)))
	}
	if opts.recordPath != "" {
		sink, err := recording.NewSQLiteSink(opts.recordPath)
		if err != nil {
			_ = trace.Close()
			return err
		}
		simOpts = append(simOpts, core.WithSink(sink))
	}
	if opts.skipMalformed {
		simOpts = append(simOpts, core.WithSkipMalformed(log.New(stderr, "", 0)))
	}

	sim := core.NewSimulator(c, simOpts...)
	summary, err := sim.Run(trace)
	if errors.Is(err, stats.ErrDegenerateSummary) {
		if opts.format == "json" {
			if jsonErr := report.WriteDegenerateJSON(stdout, *config, sim.Counters(), err.Error()); jsonErr != nil {
				return jsonErr
			}
			return err
		}
		report.WriteDegenerate(stdout, *config, sim.Counters())
		return err
	}
	if err != nil {
		return err
	}

	if opts.format == "json" {
		return report.WriteJSON(stdout, *config, summary)
	}

	report.WriteText(stdout, *config, summary)

	return nil
}
