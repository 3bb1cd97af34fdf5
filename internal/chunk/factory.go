package chunk

import (
	"github.com/rlmtools/rlm/internal/errors"
)

// Strategy names accepted by the factory.
const (
	StrategyFixed    = "fixed"
	StrategySemantic = "semantic"
	StrategyCode     = "code"
	StrategyParallel = "parallel"
)

// New maps a strategy name to a chunker. The parallel strategy wraps the
// semantic chunker.
func New(name string) (Chunker, error) {
	switch name {
	case StrategyFixed:
		return NewFixedChunker(), nil
	case StrategySemantic:
		return NewSemanticChunker(), nil
	case StrategyCode:
		return NewCodeChunker(), nil
	case StrategyParallel:
		return NewParallelChunker(NewSemanticChunker())
	default:
		return nil, errors.Newf(errors.ErrCodeUnknownStrategy, "unknown chunking strategy: %s", name).
			WithSuggestion("valid strategies: fixed, semantic, code, parallel")
	}
}

// Names returns the recognized strategy names.
func Names() []string {
	return []string{StrategyFixed, StrategySemantic, StrategyCode, StrategyParallel}
}
