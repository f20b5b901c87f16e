package uuid

import (
	"context"

	googleuuid "github.com/google/uuid"

	"github.com/Gurpartap/pipeframe/pipeline"
)

// Generator issues UUID-backed run IDs.
type Generator struct {
	prefix string
}

var _ pipeline.IDGenerator = (*Generator)(nil)

func New(prefix string) *Generator {
	if prefix == "" {
		prefix = "run"
	}
	return &Generator{prefix: prefix}
}

func (g *Generator) NewRunID(_ context.Context) (pipeline.RunID, error) {
	return pipeline.RunID(g.prefix + "-" + googleuuid.NewString()), nil
}
