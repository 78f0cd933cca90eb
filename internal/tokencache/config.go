package tokencache

import (
	"fmt"

	"github.com/florianilch/signet/internal/tokenstore"
)

// StorageType selects the secure-storage backend.
type StorageType string

const (
	StorageTypeFile    StorageType = "file"
	StorageTypeKeyring StorageType = "keyring"
	StorageTypeEnv     StorageType = "env"
)

// Config addresses the cache location. Only the fields of the selected
// storage type are used.
type Config struct {
	Storage StorageType `json:"storage" validate:"required,oneof=file keyring env"`

	// File storage: path of the record file.
	File string `json:"file,omitempty"`

	// Keyring storage: collection (service) name and account tag.
	KeyringService string `json:"keyring_service,omitempty"`
	KeyringUser    string `json:"keyring_user,omitempty"`

	// Env storage: variable holding a pre-provisioned record.
	EnvKey string `json:"env_key,omitempty"`
}

// newStore creates the backend described by the configuration.
func (c Config) newStore() (tokenstore.Store, error) {
	switch c.Storage {
	case StorageTypeFile:
		return tokenstore.NewFileStore(c.File)
	case StorageTypeKeyring:
		return tokenstore.NewKeyringStore(c.KeyringService, c.KeyringUser)
	case StorageTypeEnv:
		return tokenstore.NewEnvStore(c.EnvKey)
	default:
		return nil, fmt.Errorf("unsupported storage type: %q", c.Storage)
	}
}
