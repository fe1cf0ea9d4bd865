package pgwatcher

import (
	werrors "github.com/kart-io/pg-watcher/pkg/errors"
	pgopts "github.com/kart-io/pg-watcher/pkg/options/postgres"
	redisopts "github.com/kart-io/pg-watcher/pkg/options/redis"
	watcheropts "github.com/kart-io/pg-watcher/pkg/options/watcher"
	"github.com/kart-io/pg-watcher/pkg/pubsub"
	"github.com/kart-io/pg-watcher/pkg/pubsub/memory"
	"github.com/kart-io/pg-watcher/pkg/pubsub/postgres"
	"github.com/kart-io/pg-watcher/pkg/pubsub/redis"
)

// NewDriver returns the notification driver selected by backend.
func NewDriver(backend string, pg *pgopts.Options, rd *redisopts.Options) (pubsub.Driver, error) {
	switch backend {
	case watcheropts.BackendPostgres:
		return postgres.NewFromOptions(pg)
	case watcheropts.BackendRedis:
		return redis.NewFromOptions(rd), nil
	case watcheropts.BackendMemory:
		return memory.New(), nil
	default:
		return nil, werrors.ErrUnknownBackend.WithMessagef("unknown notification backend %q", backend)
	}
}
