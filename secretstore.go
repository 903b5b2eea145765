package fairtrade

import (
	"github.com/fairdatasociety/fairtrade/internal/store"
)

// OpenSecretStore opens the default BadgerDB-backed secret store using the
// config's Paths and MinimumFreeSpace. Callers with an OS keychain or other
// secret backend can implement SecretStore themselves instead.
func OpenSecretStore(config *Config) (*store.Store, error) {
	config.applyDefaults()
	return store.Open(&store.Config{
		Paths:            config.Paths,
		MinimumFreeSpace: config.MinimumFreeSpace,
		Logger:           config.Logger,
	})
}
