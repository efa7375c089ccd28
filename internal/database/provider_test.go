package database

import (
	"context"
	"testing"
)

func TestProvider_NotInitialized(t *testing.T) {
	RegisterBackend("", nil, nil, nil)

	if IsInitialized() {
		t.Error("expected no backend registered")
	}
	if _, err := GetAccountStore(context.Background()); err == nil {
		t.Error("expected error from GetAccountStore")
	}
	if _, err := GetRoomStore(context.Background()); err == nil {
		t.Error("expected error from GetRoomStore")
	}
	if _, err := GetSignatureStore(context.Background()); err == nil {
		t.Error("expected error from GetSignatureStore")
	}
}
