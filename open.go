package fsindex

import (
	"context"
	"fmt"

	"github.com/mwantia/fsindex/store"
	"github.com/mwantia/fsindex/store/consul"
	"github.com/mwantia/fsindex/store/memory"
	"github.com/mwantia/fsindex/store/postgres"
	"github.com/mwantia/fsindex/store/sqlite"
)

// OpenStore creates and opens the store behind address. See
// store.ParseAddress for the accepted formats.
func OpenStore(ctx context.Context, address string, table store.Table) (store.Store, error) {
	addr, err := store.ParseAddress(address)
	if err != nil {
		return nil, err
	}

	s, err := newStore(addr, table)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s store: %w", addr.Protocol, err)
	}

	if err := s.Open(ctx); err != nil {
		s.Close(ctx)
		return nil, fmt.Errorf("failed to open %s store: %w", s.Name(), err)
	}

	return s, nil
}

func newStore(addr *store.Address, table store.Table) (store.Store, error) {
	switch addr.Protocol {
	case store.ProtocolMemory:
		return memory.NewMemoryStore(), nil

	case store.ProtocolSQLite:
		s, err := sqlite.NewSQLiteStore(addr.Target, table)
		if err != nil {
			return nil, err
		}
		return s, nil

	case store.ProtocolPostgres:
		s, err := postgres.NewPostgresStore(addr.Target, table)
		if err != nil {
			return nil, err
		}
		return s, nil

	case store.ProtocolConsul:
		s, err := consul.NewConsulStore(&consul.ConsulStoreConfig{
			Address:    addr.Target,
			Token:      addr.Params.Get("token"),
			Datacenter: addr.Params.Get("datacenter"),
			Namespace:  addr.Params.Get("namespace"),
			Prefix:     addr.Params.Get("prefix"),
		}, table)
		if err != nil {
			return nil, err
		}
		return s, nil
	}

	return nil, fmt.Errorf("%w: %s", store.ErrUnknownProtocolAddress, addr.Protocol)
}
