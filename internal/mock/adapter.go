package mock

import (
	"context"
	"time"

	"github.com/ppiankov/crisisfeed/internal/adapters"
	"github.com/ppiankov/crisisfeed/internal/model"
)

// DefaultCount is the number of records the mock source returns when the
// request sets no limit.
const DefaultCount = 5

// Adapter exposes the generator as the "mock" source
type Adapter struct {
	gen  *Generator
	kind model.RecordKind
}

// NewAdapter creates a mock source producing records of kind
func NewAdapter(gen *Generator, kind model.RecordKind) *Adapter {
	return &Adapter{gen: gen, kind: kind}
}

func (a *Adapter) Name() string           { return model.SourceMock }
func (a *Adapter) DisplayName() string    { return "Mock data" }
func (a *Adapter) Kind() model.RecordKind { return a.kind }
func (a *Adapter) Timeout() time.Duration { return time.Second }

// Fetch never fails and performs no I/O
func (a *Adapter) Fetch(_ context.Context, req adapters.Request) ([]model.RawRecord, error) {
	if a.kind == model.KindPost {
		return a.gen.RawPosts(req.Context, DefaultCount), nil
	}
	return a.gen.RawUpdates(req.Context, DefaultCount), nil
}
