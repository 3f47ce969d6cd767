// Package config defines the fuzzer's configuration surface: the CLI flags
// in spec.md §6, plus an optional YAML file used only to pre-seed flag
// defaults before cobra parses argv.
package config

import (
	"fmt"
	"os"

	"github.com/spf13/viper"
)

// Args holds every recognised command-line option plus the resolved
// positional arguments (seed directory and oracle command).
type Args struct {
	Chaos     uint8
	Deletions uint8
	MaxSize   int
	Mutations int
	Radamsa   bool
	Debug     bool
	Jobs      int
	Output    string
	Seed      uint64
	TimeoutMS uint64
	Verbosity int // positive = more verbose (-v repeated), negative = quieter (-q repeated)
	NodeTypes string

	InterestingExitCodes []int
	InterestingStdout    string
	InterestingStderr    string
	UninterestingStdout  string
	UninterestingStderr  string

	SeedDir string
	Check   []string
}

// Defaults mirror the original tool's clap defaults (spec.md §6).
func Defaults() Args {
	return Args{
		Chaos:     5,
		Deletions: 5,
		MaxSize:   1048576,
		Mutations: 16,
		Jobs:      0, // 0 means "use runtime.NumCPU()"; resolved by the supervisor.
		Output:    "tree-crasher.out",
		TimeoutMS: 500,
	}
}

// Validate checks the construction-time preconditions from spec.md §8:
// an uninteresting pattern requires its interesting counterpart, and both
// the seed directory and oracle command must be present.
func (a Args) Validate() error {
	if a.UninterestingStdout != "" && a.InterestingStdout == "" {
		return fmt.Errorf("--uninteresting-stdout requires --interesting-stdout")
	}
	if a.UninterestingStderr != "" && a.InterestingStderr == "" {
		return fmt.Errorf("--uninteresting-stderr requires --interesting-stderr")
	}
	if a.SeedDir == "" {
		return fmt.Errorf("seed directory argument is required")
	}
	if len(a.Check) == 0 {
		return fmt.Errorf("interestingness check command is required")
	}
	return nil
}

// LoadFileDefaults reads an optional YAML config file and applies any keys
// it sets onto args. It is meant to run before flags are bound so that
// cobra's own flag defaults (and any values the user passes on argv) take
// precedence over the file — the same "config file, flags override"
// layering as the teacher's internal/config.Load, trimmed to the flags
// this tool actually exposes.
func LoadFileDefaults(path string, args *Args) error {
	if path == "" {
		return nil
	}
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("failed to stat config file %s: %w", path, err)
	}

	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	if v.IsSet("chaos") {
		args.Chaos = uint8(v.GetInt("chaos"))
	}
	if v.IsSet("deletions") {
		args.Deletions = uint8(v.GetInt("deletions"))
	}
	if v.IsSet("max_size") {
		args.MaxSize = v.GetInt("max_size")
	}
	if v.IsSet("mutations") {
		args.Mutations = v.GetInt("mutations")
	}
	if v.IsSet("radamsa") {
		args.Radamsa = v.GetBool("radamsa")
	}
	if v.IsSet("debug") {
		args.Debug = v.GetBool("debug")
	}
	if v.IsSet("jobs") {
		args.Jobs = v.GetInt("jobs")
	}
	if v.IsSet("output") {
		args.Output = v.GetString("output")
	}
	if v.IsSet("seed") {
		args.Seed = uint64(v.GetInt64("seed"))
	}
	if v.IsSet("timeout") {
		args.TimeoutMS = uint64(v.GetInt64("timeout"))
	}
	if v.IsSet("node_types") {
		args.NodeTypes = v.GetString("node_types")
	}
	if v.IsSet("interesting_exit_code") {
		args.InterestingExitCodes = v.GetIntSlice("interesting_exit_code")
	}
	if v.IsSet("interesting_stdout") {
		args.InterestingStdout = v.GetString("interesting_stdout")
	}
	if v.IsSet("interesting_stderr") {
		args.InterestingStderr = v.GetString("interesting_stderr")
	}
	if v.IsSet("uninteresting_stdout") {
		args.UninterestingStdout = v.GetString("uninteresting_stdout")
	}
	if v.IsSet("uninteresting_stderr") {
		args.UninterestingStderr = v.GetString("uninteresting_stderr")
	}

	return nil
}
