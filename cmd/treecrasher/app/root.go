// Package app wires the tree-crasher cobra command: every flag in
// spec.md §6, plus the --config/--node-types/--watch-config additions
// from SPEC_FULL.md.
package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
	tree_sitter "github.com/tree-sitter/go-tree-sitter"
	tree_sitter_javascript "github.com/tree-sitter/tree-sitter-javascript/bindings/go"

	"github.com/zjy-dev/tree-crasher/internal/config"
	"github.com/zjy-dev/tree-crasher/internal/grammar"
	"github.com/zjy-dev/tree-crasher/internal/logger"
	"github.com/zjy-dev/tree-crasher/internal/oracle"
	"github.com/zjy-dev/tree-crasher/internal/seed"
	"github.com/zjy-dev/tree-crasher/internal/supervisor"
)

// NewRootCommand builds the tree-crasher root command, wired against the
// bundled tree-sitter-javascript grammar (spec.md's default interesting
// regex vocabulary — SyntaxError, TypeError, etc. — is JS engine error
// terminology, so JS is the natural demo grammar for this binary).
func NewRootCommand() *cobra.Command {
	args := config.Defaults()
	var configPath, nodeTypesPath string
	var verboseCount, quietCount int
	var watchConfig bool

	cmd := &cobra.Command{
		Use:   "tree-crasher SEED_DIR -- CMD [ARGS...]",
		Short: "Grammar-aware, black-box mutation fuzzer.",
		Long: `tree-crasher mutates parsed seed syntax trees by splicing, deleting and
perturbing subtrees, runs each candidate through an external interestingness
check, and on an interesting verdict persists the crash and a reduced
witness.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, positional []string) error {
			dash := cmd.ArgsLenAtDash()
			if dash < 0 || dash >= len(positional) {
				return fmt.Errorf("a check command is required after \"--\"")
			}
			args.SeedDir = positional[0]
			args.Check = positional[dash:]

			if err := config.LoadFileDefaults(configPath, &args); err != nil {
				return err
			}
			if err := args.Validate(); err != nil {
				return err
			}

			logger.Init("info")
			logger.AdjustVerbosity(verboseCount - quietCount)

			if args.Seed == 0 {
				args.Seed = uint64(time.Now().UnixNano())
			}

			nodeTypesJSON, err := os.ReadFile(nodeTypesPath)
			if err != nil {
				return fmt.Errorf("failed to read --node-types file: %w", err)
			}
			lang := tree_sitter.NewLanguage(tree_sitter_javascript.Language())
			cat, err := grammar.Load(lang, nodeTypesJSON)
			if err != nil {
				return fmt.Errorf("failed to build grammar catalogue: %w", err)
			}

			corpus, err := seed.Load(args.SeedDir, "*", cat)
			if err != nil {
				return fmt.Errorf("failed to load seed corpus: %w", err)
			}
			logger.Info("loaded %d seed(s) from %s", corpus.Len(), args.SeedDir)

			o, err := oracle.New(oracle.Config{
				Path:                 args.Check[0],
				Args:                 args.Check[1:],
				InterestingExitCodes: args.InterestingExitCodes,
				InterestingStdout:    args.InterestingStdout,
				InterestingStderr:    args.InterestingStderr,
				UninterestingStdout:  args.UninterestingStdout,
				UninterestingStderr:  args.UninterestingStderr,
				Debug:                args.Debug,
				Timeout:              time.Duration(args.TimeoutMS) * time.Millisecond,
			})
			if err != nil {
				return fmt.Errorf("failed to build interestingness check: %w", err)
			}

			if err := os.MkdirAll(args.Output, 0755); err != nil {
				return fmt.Errorf("failed to create output directory %s: %w", args.Output, err)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if watchConfig && configPath != "" {
				go watchConfigFile(ctx, configPath, &args)
			}

			return supervisor.Run(ctx, supervisor.Options{
				Jobs:      args.Jobs,
				Debug:     args.Debug,
				Radamsa:   args.Radamsa,
				MaxSize:   args.MaxSize,
				Seed:      args.Seed,
				OutputDir: args.Output,
			}, cat, corpus, o)
		},
	}

	flags := cmd.Flags()
	flags.Uint8Var(&args.Chaos, "chaos", args.Chaos, "percent of mutations that overwrite bytes with random data (overridden by per-batch randomization; see divergence notes)")
	flags.Uint8Var(&args.Deletions, "deletions", args.Deletions, "percent of mutations that delete an optional subtree (overridden by per-batch randomization; see divergence notes)")
	flags.IntVar(&args.MaxSize, "max-size", args.MaxSize, "maximum size in bytes of a mutated candidate")
	flags.IntVar(&args.Mutations, "mutations", args.Mutations, "number of inter-seed splices per candidate (overridden by per-batch randomization; see divergence notes)")
	flags.BoolVar(&args.Radamsa, "radamsa", args.Radamsa, "use byte-level (radamsa-style) mutation instead of grammar-aware splicing")
	flags.BoolVar(&args.Debug, "debug", args.Debug, "run a single worker and forward the checked command's output live")
	flags.IntSliceVar(&args.InterestingExitCodes, "interesting-exit-code", args.InterestingExitCodes, "exit code that counts as interesting (repeatable); 128-255 are always interesting")
	flags.StringVar(&args.InterestingStdout, "interesting-stdout", oracle.DefaultInterestingPattern, "regex; a stdout match counts as interesting")
	flags.StringVar(&args.InterestingStderr, "interesting-stderr", oracle.DefaultInterestingPattern, "regex; a stderr match counts as interesting")
	flags.StringVar(&args.UninterestingStdout, "uninteresting-stdout", oracle.DefaultUninterestingPattern, "regex; a stdout match overrides interesting (requires --interesting-stdout)")
	flags.StringVar(&args.UninterestingStderr, "uninteresting-stderr", oracle.DefaultUninterestingPattern, "regex; a stderr match overrides interesting (requires --interesting-stderr)")
	flags.IntVarP(&args.Jobs, "jobs", "j", args.Jobs, "number of worker goroutines (0 = number of CPUs)")
	flags.StringVarP(&args.Output, "output", "o", args.Output, "directory crash artifacts are written to")
	flags.Uint64Var(&args.Seed, "seed", args.Seed, "PRNG seed (0 = derive from current time)")
	flags.Uint64Var(&args.TimeoutMS, "timeout", args.TimeoutMS, "interestingness check timeout in milliseconds")
	flags.StringVar(&nodeTypesPath, "node-types", "", "path to the grammar's node-types.json")
	flags.StringVar(&configPath, "config", "", "optional YAML file pre-seeding these flags' defaults")
	flags.BoolVar(&watchConfig, "watch-config", false, "re-read --config whenever it is written and log the new values; running workers keep their startup settings")
	flags.CountVarP(&verboseCount, "verbose", "v", "increase logging verbosity (repeatable)")
	flags.CountVarP(&quietCount, "quiet", "q", "decrease logging verbosity (repeatable)")

	cmd.MarkFlagRequired("node-types")

	return cmd
}

// watchConfigFile re-reads configPath on every write event and applies its
// keys onto args, matching the teacher's fsnotify-based config reload
// pattern. The already-running oracle and workers were built from args as
// they stood at startup, so a reload here only takes effect on the next
// restart; this still catches config typos and logs the corrected values
// without taking the fuzzer down.
func watchConfigFile(ctx context.Context, configPath string, args *config.Args) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		logger.Warn("config watch disabled: %v", err)
		return
	}
	defer watcher.Close()

	if err := watcher.Add(configPath); err != nil {
		logger.Warn("config watch disabled: %v", err)
		return
	}

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if err := config.LoadFileDefaults(configPath, args); err != nil {
				logger.Warn("failed to reload config: %v", err)
				continue
			}
			logger.Info("reloaded config from %s: %+v", configPath, *args)
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			logger.Warn("config watch error: %v", err)
		}
	}
}
