package formatter

import (
	"context"

	"github.com/tomyedwab/jsprettify/config"
	"github.com/tomyedwab/jsprettify/reindent"
)

// Reindent is the heuristic re-indenter. It never fails.
type Reindent struct {
	Indent string
}

func (Reindent) Name() string { return config.StrategyReindent }

func (r Reindent) Format(_ context.Context, source string) (string, error) {
	return reindent.ReindentWith(source, r.Indent), nil
}
