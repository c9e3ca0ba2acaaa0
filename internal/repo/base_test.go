package repo

import (
	"context"
	"testing"

	"github.com/angelmondragon/allocations-backend/internal/repo/repotest"
)

type ctxKey struct{}

func TestBaseDB_BindsContext(t *testing.T) {
	db := repotest.Open(t)
	base := NewBase(db)

	ctx := context.WithValue(context.Background(), ctxKey{}, "value")
	withCtx := base.DB(ctx)
	if withCtx.Statement == nil || withCtx.Statement.Context != ctx {
		t.Fatalf("expected context to flow through")
	}

	if base.DB(nil) != db {
		t.Fatalf("expected nil context to return raw connection")
	}
}

func TestBaseTxSwapsConnection(t *testing.T) {
	db := repotest.Open(t)
	base := NewBase(db)

	tx := db.Begin()
	defer tx.Rollback()

	if base.Tx(tx).DB(nil) != tx {
		t.Fatalf("expected tx-bound base to use the transaction")
	}
	if base.Tx(nil).DB(nil) != db {
		t.Fatalf("expected nil tx to keep the connection")
	}
}
