package ports

import (
	"context"

	"lagscan/domain/photon"
)

// SampleSource is the boundary to the external event-file loader. The engine
// only ever sees an in-memory photon sample; parsing instrument formats is
// the loader's problem.
type SampleSource interface {
	Load(ctx context.Context) (*photon.Sample, error)
}
