package database

import (
	"context"
	"errors"
	"sync"
)

var errNotInitialized = errors.New("database backend not initialized: DATABASE_URL or MARIADB_DSN is required")

var (
	providerMu     sync.RWMutex
	backendName    string
	accountStore   func() AccountStore
	roomStore      func() RoomStore
	signatureStore func() SignatureStore
)

// RegisterBackend registers the repository constructors of a storage backend.
// This is called from cmd after the backend package initialized its pool,
// which keeps this package free of driver imports.
func RegisterBackend(
	name string,
	accounts func() AccountStore,
	rooms func() RoomStore,
	signatures func() SignatureStore,
) {
	providerMu.Lock()
	defer providerMu.Unlock()
	backendName = name
	accountStore = accounts
	roomStore = rooms
	signatureStore = signatures
}

// IsInitialized returns whether a backend has been registered.
func IsInitialized() bool {
	providerMu.RLock()
	defer providerMu.RUnlock()
	return backendName != ""
}

// BackendName returns the name of the registered backend.
func BackendName() string {
	providerMu.RLock()
	defer providerMu.RUnlock()
	return backendName
}

// GetAccountStore returns the registered AccountStore
func GetAccountStore(ctx context.Context) (AccountStore, error) {
	providerMu.RLock()
	defer providerMu.RUnlock()
	if accountStore == nil {
		return nil, errNotInitialized
	}
	return accountStore(), nil
}

// GetRoomStore returns the registered RoomStore
func GetRoomStore(ctx context.Context) (RoomStore, error) {
	providerMu.RLock()
	defer providerMu.RUnlock()
	if roomStore == nil {
		return nil, errNotInitialized
	}
	return roomStore(), nil
}

// GetSignatureStore returns the registered SignatureStore
func GetSignatureStore(ctx context.Context) (SignatureStore, error) {
	providerMu.RLock()
	defer providerMu.RUnlock()
	if signatureStore == nil {
		return nil, errNotInitialized
	}
	return signatureStore(), nil
}
