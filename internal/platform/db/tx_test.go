package db

import (
	"context"
	"testing"
)

func TestTxFromContext_Nil(t *testing.T) {
	tx := TxFromContext(context.Background())
	if tx != nil {
		t.Error("expected nil tx from empty context")
	}
}

func TestTxFromContext_WithWrongType(t *testing.T) {
	ctx := context.WithValue(context.Background(), DBTxKey, "not-a-tx")
	tx := TxFromContext(ctx)
	if tx != nil {
		t.Error("expected nil when context value is wrong type")
	}
}

func TestQuerierFromContext_Fallback(t *testing.T) {
	var fallback Querier
	if got := QuerierFromContext(context.Background(), fallback); got != nil {
		t.Errorf("expected fallback querier, got %T", got)
	}
}

func TestTxManager_NoPool(t *testing.T) {
	m := NewTxManager(nil)
	called := false
	err := m.InTx(context.Background(), func(ctx context.Context) error {
		called = true
		return nil
	})
	if err == nil {
		t.Fatal("expected error when no pool is configured")
	}
	if called {
		t.Error("fn must not run without a transaction")
	}
	if err.Error() != "no database pool configured" {
		t.Errorf("unexpected error message: %s", err.Error())
	}
}
