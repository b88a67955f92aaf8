package pipeline

import (
	"github.com/ppiankov/crisisfeed/internal/model"
	"github.com/ppiankov/crisisfeed/internal/score"
)

// Explanation is how one record was labeled and scored. Rule is empty when
// the default label applied.
type Explanation struct {
	Rule  string          `json:"rule,omitempty"`
	Score score.Breakdown `json:"score"`
}

// Explained is a result with one explanation per record, in record order
type Explained[T model.Record] struct {
	Result[T]
	Explanations []Explanation `json:"explanations"`
}

// Explain recomputes the classification rule and score terms of every record
// in res. Recency terms use the current clock, so cached results may differ
// slightly from their stored scores.
func (a *Aggregator[T]) Explain(dctx model.DisasterContext, res Result[T]) Explained[T] {
	out := Explained[T]{Result: res, Explanations: make([]Explanation, 0, len(res.Records))}
	if a.hooks.Explain == nil {
		return out
	}
	for _, r := range res.Records {
		out.Explanations = append(out.Explanations, a.hooks.Explain(r, dctx))
	}
	return out
}
