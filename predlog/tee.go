package predlog

import (
	"context"

	"go.uber.org/multierr"
)

type tee []Store

// Tee fans each append out to every store. All stores are attempted; their
// errors are combined.
func Tee(stores ...Store) Store {
	if len(stores) == 1 {
		return stores[0]
	}
	return tee(stores)
}

func (t tee) Append(ctx context.Context, entry LogEntry) error {
	var err error
	for _, s := range t {
		err = multierr.Append(err, s.Append(ctx, entry))
	}
	return err
}

func (t tee) Close() error {
	var err error
	for _, s := range t {
		err = multierr.Append(err, s.Close())
	}
	return err
}
