package types

import (
	"errors"
	"fmt"
	"strings"
)

// Pipeline errors. Parse, grammar and decode failures are file local and
// degrade instead of aborting; the rest are fatal for the run.
var (
	ErrParseFailure      = errors.New("parse failure")
	ErrGrammarLoad       = errors.New("grammar load failure")
	ErrCycleDetected     = errors.New("cycle detected in dependency graph")
	ErrInvalidSplitRatio = errors.New("split ratio must be in the open interval (0, 1)")
	ErrTokenizerLoad     = errors.New("tokenizer load failure")
	ErrDecodeFailure     = errors.New("token decode failure")
	ErrInvalidMaxTokens  = errors.New("max context tokens must be positive")

	// Training sample validation
	ErrEmptyPrompt      = errors.New("prompt must contain at least one token")
	ErrNegativeTokens   = errors.New("token counts cannot be negative")
	ErrMissingTokenizer = errors.New("tokenizer name is required")
)

// CycleError reports a dependency cycle. Cycle is one concrete loop of file
// paths (first element repeated at the end); Remaining lists every file that
// could not be ordered.
type CycleError struct {
	Cycle     []string
	Remaining []string
}

func (e *CycleError) Error() string {
	if len(e.Cycle) == 0 {
		return fmt.Sprintf("%s: %d files unordered", ErrCycleDetected, len(e.Remaining))
	}
	return fmt.Sprintf("%s: %s", ErrCycleDetected, strings.Join(e.Cycle, " -> "))
}

func (e *CycleError) Unwrap() error {
	return ErrCycleDetected
}

// SplitRatioError carries the rejected prompt/completion ratio
type SplitRatioError struct {
	Ratio float64
}

func (e *SplitRatioError) Error() string {
	return fmt.Sprintf("%s: got %g", ErrInvalidSplitRatio, e.Ratio)
}

func (e *SplitRatioError) Unwrap() error {
	return ErrInvalidSplitRatio
}
