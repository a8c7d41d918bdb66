package store_test

import (
	"context"
	"errors"
	"testing"

	"ledger-core/pkg/store"
	"ledger-core/pkg/store/mock"
)

type doc struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

func TestJSONDocuments(t *testing.T) {
	ctx := context.Background()
	layer := mock.New("docs")

	var got doc
	found, err := store.GetJSON(ctx, layer, "ledger:users", &got)
	if err != nil || found {
		t.Fatalf("Expected missing document, got found=%v err=%v", found, err)
	}

	if err := store.SetJSON(ctx, layer, "ledger:users", doc{Name: "a", Count: 2}); err != nil {
		t.Fatalf("SetJSON failed: %v", err)
	}

	found, err = store.GetJSON(ctx, layer, "ledger:users", &got)
	if err != nil || !found {
		t.Fatalf("Expected document, got found=%v err=%v", found, err)
	}
	if got.Name != "a" || got.Count != 2 {
		t.Errorf("Unexpected document: %+v", got)
	}
}

func TestGetJSON_Corrupt(t *testing.T) {
	ctx := context.Background()
	layer := mock.New("docs")
	layer.Set(ctx, "ledger:users", []byte("{not json"), 0)

	var got doc
	_, err := store.GetJSON(ctx, layer, "ledger:users", &got)
	if !errors.Is(err, store.ErrInvalidValue) {
		t.Errorf("Expected ErrInvalidValue, got %v", err)
	}
}

func TestGetJSON_BackendError(t *testing.T) {
	layer := mock.Failing("docs", store.ErrLayerUnavailable)

	var got doc
	_, err := store.GetJSON(context.Background(), layer, "ledger:users", &got)
	if !errors.Is(err, store.ErrLayerUnavailable) {
		t.Errorf("Expected ErrLayerUnavailable, got %v", err)
	}
}
