package core

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/valter-silva-au/taskmirror/pkg/models"
)

const identityFile = "identity.yaml"

// IdentityStore persists the logged-in user between runs.
type IdentityStore interface {
	Load() (models.Identity, error)
	Save(identity models.Identity) error
	Clear() error
}

type fileIdentityStore struct {
	basePath string
}

// NewIdentityStore creates an IdentityStore backed by identity.yaml in
// basePath.
func NewIdentityStore(basePath string) IdentityStore {
	return &fileIdentityStore{basePath: basePath}
}

func (s *fileIdentityStore) path() string {
	return filepath.Join(s.basePath, identityFile)
}

// Load reads the stored identity. A missing file returns a zero identity
// and no error; callers check Valid.
func (s *fileIdentityStore) Load() (models.Identity, error) {
	data, err := os.ReadFile(s.path())
	if err != nil {
		if os.IsNotExist(err) {
			return models.Identity{}, nil
		}
		return models.Identity{}, fmt.Errorf("reading identity: %w", err)
	}

	var identity models.Identity
	if err := yaml.Unmarshal(data, &identity); err != nil {
		return models.Identity{}, fmt.Errorf("parsing identity: %w", err)
	}
	return identity, nil
}

// Save writes the identity. The file carries a credential, so permissions
// are owner-only.
func (s *fileIdentityStore) Save(identity models.Identity) error {
	if !identity.Valid() {
		return fmt.Errorf("saving identity: user id and email are required")
	}

	data, err := yaml.Marshal(identity)
	if err != nil {
		return fmt.Errorf("marshalling identity: %w", err)
	}
	if err := os.MkdirAll(s.basePath, 0o755); err != nil {
		return fmt.Errorf("creating identity dir: %w", err)
	}
	if err := os.WriteFile(s.path(), data, 0o600); err != nil {
		return fmt.Errorf("writing identity: %w", err)
	}
	return nil
}

// Clear removes the stored identity. Clearing an absent identity is not an
// error.
func (s *fileIdentityStore) Clear() error {
	if err := os.Remove(s.path()); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing identity: %w", err)
	}
	return nil
}
