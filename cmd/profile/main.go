// Package main provides a profiling wrapper for cachesim to identify
// performance bottlenecks in trace replay.
package main

import (
	"fmt"
	"io"
	"os"
	"runtime/pprof"
	"time"

	"github.com/spf13/cobra"

	"github.com/sarchlab/cachesim/loader"
	"github.com/sarchlab/cachesim/timing/cache"
	"github.com/sarchlab/cachesim/timing/core"
)

type options struct {
	configPath string
	cpuProfile string
	memProfile string
	repeat     int
}

func main() {
	cmd := newRootCmd(os.Stdout)
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd(stdout io.Writer) *cobra.Command {
	opts := &options{}

	cmd := &cobra.Command{
		Use:   "profile [flags] <trace-file>",
		Short: "Replay a trace under the Go profiler.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceUsage = true
			return run(opts, args[0], stdout)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&opts.configPath, "config", "", "Path to cache configuration JSON file")
	flags.StringVar(&opts.cpuProfile, "cpuprofile", "", "write cpu profile to file")
	flags.StringVar(&opts.memProfile, "memprofile", "", "write memory profile to file")
	flags.IntVar(&opts.repeat, "repeat", 1, "number of times to replay the trace")

	return cmd
}

func run(opts *options, tracePath string, stdout io.Writer) error {
	config := cache.DefaultConfig()
	if opts.configPath != "" {
		var err error
		config, err = cache.LoadConfig(opts.configPath)
		if err != nil {
			return err
		}
	}

	c, err := cache.New(*config)
	if err != nil {
		return err
	}

	if opts.cpuProfile != "" {
		f, err := os.Create(opts.cpuProfile)
		if err != nil {
			return fmt.Errorf("failed to create CPU profile: %w", err)
		}
		defer func() { _ = f.Close() }()

		if err := pprof.StartCPUProfile(f); err != nil {
			return fmt.Errorf("failed to start CPU profile: %w", err)
		}
		defer pprof.StopCPUProfile()
	}

	sim := core.NewSimulator(c)
	var accesses uint64
	var lines int
	var name string

	start := time.Now()
	for i := 0; i < opts.repeat; i++ {
		trace, err := loader.Open(tracePath)
		if err != nil {
			return err
		}

		sim.Reset()
		if _, err := sim.Run(trace); err != nil {
			return err
		}
		accesses += sim.Counters().Accesses
		lines += trace.Line()
		name = trace.Name()
	}
	elapsed := time.Since(start)

	if opts.memProfile != "" {
		f, err := os.Create(opts.memProfile)
		if err != nil {
			return fmt.Errorf("failed to create memory profile: %w", err)
		}
		defer func() { _ = f.Close() }()

		if err := pprof.WriteHeapProfile(f); err != nil {
			return fmt.Errorf("failed to write memory profile: %w", err)
		}
	}

	_, _ = fmt.Fprintf(stdout, "Profiling Results:\n")
	_, _ = fmt.Fprintf(stdout, "Trace: %s\n", name)
	_, _ = fmt.Fprintf(stdout, "Replays: %d\n", opts.repeat)
	_, _ = fmt.Fprintf(stdout, "Lines read: %d\n", lines)
	_, _ = fmt.Fprintf(stdout, "Accesses simulated: %d\n", accesses)
	_, _ = fmt.Fprintf(stdout, "Elapsed time: %v\n", elapsed)
	if elapsed > 0 {
		_, _ = fmt.Fprintf(stdout, "Accesses/second: %.0f\n", float64(accesses)/elapsed.Seconds())
	}

	return nil
}
