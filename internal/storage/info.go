package storage

import (
	"time"

	bolt "go.etcd.io/bbolt"
)

// Info describes the state file for status output. It holds no secrets.
type Info struct {
	Path      string
	Version   string
	InstallID string
	Created   time.Time
	Modified  time.Time
	Size      int64
	Secrets   int
	Settings  int
	VaultKey  bool // KDF salt present
}

// Info gathers state file details without touching sealed values
func (s *Storage) Info() (*Info, error) {
	info := &Info{Path: s.db.Path()}
	err := s.db.View(func(tx *bolt.Tx) error {
		info.Size = tx.Size()

		config := tx.Bucket(ConfigBucket)
		if config == nil {
			return ErrNotInitialized
		}
		info.Version = string(config.Get(ConfigVersion))
		info.InstallID = string(config.Get(ConfigInstallID))
		info.VaultKey = config.Get(ConfigSalt) != nil
		if data := config.Get(ConfigCreated); data != nil {
			if err := info.Created.UnmarshalBinary(data); err != nil {
				return err
			}
		}
		if data := config.Get(ConfigModified); data != nil {
			if err := info.Modified.UnmarshalBinary(data); err != nil {
				return err
			}
		}

		if b := tx.Bucket(SecretsBucket); b != nil {
			info.Secrets = b.Stats().KeyN
		}
		if b := tx.Bucket(SettingsBucket); b != nil {
			info.Settings = b.Stats().KeyN
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return info, nil
}
