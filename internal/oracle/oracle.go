// Package oracle implements the interestingness check (spec.md §4.1): an
// external command that each mutated candidate is run through, classified
// as interesting or not from its exit status and captured output.
package oracle

import (
	"context"
	"fmt"
	"os"
	"regexp"
	"time"

	"github.com/zjy-dev/tree-crasher/internal/exec"
)

// DefaultInterestingPattern and DefaultUninterestingPattern match the
// defaults the original tool wires into its CmdCheck when the user doesn't
// override them, tuned for JS-engine style crash/error output.
const (
	DefaultInterestingPattern   = `AddressSanitizer|Fatal|DCHECK|Check`
	DefaultUninterestingPattern = `RangeError|SyntaxError|ReferenceError|TypeError|URIError|EvalError|InternalError`
)

// atFilePlaceholder is substituted in Config.Args with a temp file path
// holding the candidate bytes, mirroring AFL-style harness invocation.
const atFilePlaceholder = "@@"

// Config configures a Oracle. InterestingExitCodes is augmented at
// construction time with the 128..255 signal-exit range, so callers need
// only list application-specific codes (e.g. a sanitizer's abort code).
type Config struct {
	Path string
	Args []string

	InterestingExitCodes []int
	InterestingStdout    string
	InterestingStderr    string
	UninterestingStdout  string
	UninterestingStderr  string

	Debug   bool
	Timeout time.Duration
}

// Oracle is a constructed, ready-to-run interestingness check. It holds no
// mutable state across calls, so Clone is a cheap value copy — matching the
// "oracle clone" each worker owns per spec.md §4.4.
type Oracle struct {
	path string
	args []string
	usesFile bool

	exitCodes map[int]bool

	interestingStdout   *regexp.Regexp
	interestingStderr   *regexp.Regexp
	uninterestingStdout *regexp.Regexp
	uninterestingStderr *regexp.Regexp

	debug   bool
	timeout time.Duration
}

// Verdict is the outcome of checking one candidate.
type Verdict struct {
	Interesting bool
	ExitCode    int // raw process exit code
	Signal      int // terminating signal number, 0 if none
	TimedOut    bool
	Stdout      string
	Stderr      string
}

// New builds an Oracle, compiling every configured regex once so per-
// candidate checks never pay parse cost. An uninteresting pattern without
// its interesting counterpart is a construction error (spec.md §8),
// checked again here defensively even though internal/config.Args.Validate
// already enforces it at the CLI layer.
func New(cfg Config) (*Oracle, error) {
	if cfg.UninterestingStdout != "" && cfg.InterestingStdout == "" {
		return nil, fmt.Errorf("uninteresting stdout pattern requires an interesting stdout pattern")
	}
	if cfg.UninterestingStderr != "" && cfg.InterestingStderr == "" {
		return nil, fmt.Errorf("uninteresting stderr pattern requires an interesting stderr pattern")
	}

	o := &Oracle{
		path:    cfg.Path,
		args:    cfg.Args,
		debug:   cfg.Debug,
		timeout: cfg.Timeout,
	}

	for _, a := range cfg.Args {
		if a == atFilePlaceholder {
			o.usesFile = true
			break
		}
	}

	o.exitCodes = make(map[int]bool, len(cfg.InterestingExitCodes)+128)
	for _, c := range cfg.InterestingExitCodes {
		o.exitCodes[c] = true
	}
	for c := 128; c < 256; c++ {
		o.exitCodes[c] = true
	}

	var err error
	if o.interestingStdout, err = compile(cfg.InterestingStdout); err != nil {
		return nil, fmt.Errorf("invalid --interesting-stdout pattern: %w", err)
	}
	if o.interestingStderr, err = compile(cfg.InterestingStderr); err != nil {
		return nil, fmt.Errorf("invalid --interesting-stderr pattern: %w", err)
	}
	if o.uninterestingStdout, err = compile(cfg.UninterestingStdout); err != nil {
		return nil, fmt.Errorf("invalid --uninteresting-stdout pattern: %w", err)
	}
	if o.uninterestingStderr, err = compile(cfg.UninterestingStderr); err != nil {
		return nil, fmt.Errorf("invalid --uninteresting-stderr pattern: %w", err)
	}

	return o, nil
}

func compile(pattern string) (*regexp.Regexp, error) {
	if pattern == "" {
		return nil, nil
	}
	return regexp.Compile(pattern)
}

// Clone returns an independent copy of o. Safe to call concurrently from
// multiple workers sharing the same constructed Oracle.
func (o *Oracle) Clone() *Oracle {
	clone := *o
	return &clone
}

// Check runs the interestingness command against input and classifies the
// result. A non-nil error means the command itself failed to spawn (e.g.
// binary not found); per spec.md this is a soft, per-candidate error — the
// caller should log it and continue, not abort the run.
func (o *Oracle) Check(ctx context.Context, input []byte) (Verdict, error) {
	args := o.args
	var stdin []byte

	if o.usesFile {
		tmp, err := os.CreateTemp("", "tree-crasher-*.candidate")
		if err != nil {
			return Verdict{}, fmt.Errorf("failed to create candidate temp file: %w", err)
		}
		defer os.Remove(tmp.Name())
		if _, err := tmp.Write(input); err != nil {
			tmp.Close()
			return Verdict{}, fmt.Errorf("failed to write candidate temp file: %w", err)
		}
		if err := tmp.Close(); err != nil {
			return Verdict{}, fmt.Errorf("failed to close candidate temp file: %w", err)
		}

		args = make([]string, len(o.args))
		for i, a := range o.args {
			if a == atFilePlaceholder {
				args[i] = tmp.Name()
			} else {
				args[i] = a
			}
		}
	} else {
		stdin = input
	}

	var teeStdout, teeStderr *os.File
	if o.debug {
		teeStdout, teeStderr = os.Stdout, os.Stderr
	}

	var result *exec.ExecutionResult
	var err error
	if o.debug {
		result, err = exec.RunWithInputTee(ctx, o.timeout, o.path, args, stdin, teeStdout, teeStderr)
	} else {
		result, err = exec.RunWithInput(ctx, o.timeout, o.path, args, stdin)
	}
	if err != nil {
		return Verdict{}, fmt.Errorf("failed to run interestingness check: %w", err)
	}

	v := Verdict{
		ExitCode: result.ExitCode,
		Signal:   result.Signal,
		TimedOut: result.TimedOut,
		Stdout:   result.Stdout,
		Stderr:   result.Stderr,
	}
	v.Interesting = o.classify(result)
	return v, nil
}

// classify applies the verdict rule: a run killed by the timeout is never
// interesting; otherwise a signal death or a listed exit code is
// unconditionally interesting. Only the regex disjuncts are gated by the
// uninteresting patterns — an uninteresting match there vetoes that one
// regex match, not the whole verdict, so a genuine crash whose output also
// happens to match an uninteresting string (e.g. sanitizer output next to
// generic error text) is never misclassified.
func (o *Oracle) classify(result *exec.ExecutionResult) bool {
	if result.TimedOut {
		return false
	}

	if result.Signal != 0 {
		return true
	}

	if o.exitCodes[result.ExitCode] {
		return true
	}

	if o.interestingStdout != nil && o.interestingStdout.MatchString(result.Stdout) {
		if o.uninterestingStdout == nil || !o.uninterestingStdout.MatchString(result.Stdout) {
			return true
		}
	}
	if o.interestingStderr != nil && o.interestingStderr.MatchString(result.Stderr) {
		if o.uninterestingStderr == nil || !o.uninterestingStderr.MatchString(result.Stderr) {
			return true
		}
	}

	return false
}
