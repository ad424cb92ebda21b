package sqlite

import (
	"database/sql"

	"github.com/civicworks/townhall/internal/auth/store"
	"github.com/civicworks/townhall/internal/auth/store/drivers/sqlite/gen"
)

type txStore struct {
	q *gen.Queries
}

func newTx(tx *sql.Tx) *txStore {
	return &txStore{q: gen.New(tx)}
}

func (t *txStore) Accounts() store.Accounts { return &accountsRepo{q: t.q} }
