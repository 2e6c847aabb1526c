package ordering

import (
	"context"

	"github.com/m3rciful/coffeebot/coffee/storage"
)

type sqlStore struct {
	*storage.Store
}

// SQLStore adapts a storage.Store to Store.
func SQLStore(s *storage.Store) Store {
	return sqlStore{s}
}

func (s sqlStore) WithinTx(ctx context.Context, fn func(tx Store) error) error {
	return s.Store.WithinTx(ctx, func(tx *storage.Store) error {
		return fn(sqlStore{tx})
	})
}
