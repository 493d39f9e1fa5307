package storage

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"os"
	"time"

	"github.com/google/uuid"
	bolt "go.etcd.io/bbolt"
)

// Bucket names
var (
	ConfigBucket   = []byte("config")   // install id, KDF params, timestamps - unencrypted
	SecretsBucket  = []byte("secrets")  // Sealed values
	SettingsBucket = []byte("settings") // Plain JSON values
)

// Config keys
var (
	ConfigVersion   = []byte("version")
	ConfigCreated   = []byte("created")
	ConfigModified  = []byte("modified")
	ConfigSalt      = []byte("salt")
	ConfigIters     = []byte("iterations")
	ConfigInstallID = []byte("install_id")
)

const (
	FilePermSecure = 0600
	openTimeout    = 2 * time.Second
)

var (
	ErrNotFound       = errors.New("key not found")
	ErrNotInitialized = errors.New("state file not initialized")
	ErrLocked         = errors.New("state file is in use by another process")
	ErrInvalidKDF     = errors.New("invalid KDF parameters")
)

// Storage provides BBolt-based storage for pinlock
type Storage struct {
	db *bolt.DB
}

// Open opens or creates a state file. It fails after a short timeout if
// another process holds the file lock.
func Open(path string) (*Storage, error) {
	db, err := bolt.Open(path, FilePermSecure, &bolt.Options{Timeout: openTimeout})
	if errors.Is(err, bolt.ErrTimeout) {
		return nil, fmt.Errorf("%w: %s", ErrLocked, path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open state file: %w", err)
	}

	return &Storage{db: db}, nil
}

// Close closes the database
func (s *Storage) Close() error {
	return s.db.Close()
}

// Path returns the state file location
func (s *Storage) Path() string {
	return s.db.Path()
}

// Initialize creates the bucket structure. It is idempotent: an existing
// state file keeps its version and creation time.
func (s *Storage) Initialize() error {
	return s.db.Update(func(tx *bolt.Tx) error {
		for _, bucket := range [][]byte{ConfigBucket, SecretsBucket, SettingsBucket} {
			if _, err := tx.CreateBucketIfNotExists(bucket); err != nil {
				return fmt.Errorf("failed to create bucket %s: %w", bucket, err)
			}
		}

		config := tx.Bucket(ConfigBucket)
		if config.Get(ConfigVersion) != nil {
			return nil
		}
		if err := config.Put(ConfigVersion, []byte("1")); err != nil {
			return err
		}

		created, _ := time.Now().MarshalBinary()
		if err := config.Put(ConfigCreated, created); err != nil {
			return err
		}
		return config.Put(ConfigModified, created)
	})
}

// IsInitialized checks if the database has been initialized
func (s *Storage) IsInitialized() (bool, error) {
	var initialized bool
	err := s.db.View(func(tx *bolt.Tx) error {
		config := tx.Bucket(ConfigBucket)
		if config != nil && config.Get(ConfigVersion) != nil {
			initialized = true
		}
		return nil
	})
	return initialized, err
}

// Get returns a copy of the value stored under key in bucket
func (s *Storage) Get(bucket []byte, key string) ([]byte, error) {
	var value []byte
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucket)
		if b == nil {
			return ErrNotInitialized
		}
		data := b.Get([]byte(key))
		if data == nil {
			return ErrNotFound
		}
		// Make a copy since the slice is only valid during the transaction
		value = append([]byte(nil), data...)
		return nil
	})
	return value, err
}

// Put stores value under key in bucket and bumps the modified timestamp
func (s *Storage) Put(bucket []byte, key string, value []byte) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucket)
		if b == nil {
			return ErrNotInitialized
		}
		if err := b.Put([]byte(key), value); err != nil {
			return err
		}
		return touch(tx)
	})
}

// Delete removes key from bucket. Deleting a missing key is not an error.
func (s *Storage) Delete(bucket []byte, key string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucket)
		if b == nil {
			return ErrNotInitialized
		}
		if err := b.Delete([]byte(key)); err != nil {
			return err
		}
		return touch(tx)
	})
}

func touch(tx *bolt.Tx) error {
	config := tx.Bucket(ConfigBucket)
	if config == nil {
		return ErrNotInitialized
	}
	modified, _ := time.Now().MarshalBinary()
	return config.Put(ConfigModified, modified)
}

// SetKDF stores the KDF salt and iteration count in one transaction.
// A state file never holds one without the other.
func (s *Storage) SetKDF(salt []byte, iterations int) error {
	if len(salt) == 0 {
		return fmt.Errorf("%w: empty salt", ErrInvalidKDF)
	}
	if iterations <= 0 || uint64(iterations) > math.MaxUint32 {
		return fmt.Errorf("%w: iterations %d out of range", ErrInvalidKDF, iterations)
	}

	iters := make([]byte, 4)
	binary.BigEndian.PutUint32(iters, uint32(iterations))

	return s.db.Update(func(tx *bolt.Tx) error {
		config := tx.Bucket(ConfigBucket)
		if config == nil {
			return ErrNotInitialized
		}
		if err := config.Put(ConfigSalt, salt); err != nil {
			return err
		}
		return config.Put(ConfigIters, iters)
	})
}

// GetSalt retrieves the KDF salt, ErrNotFound if the vault key was never set up
func (s *Storage) GetSalt() ([]byte, error) {
	return s.Get(ConfigBucket, string(ConfigSalt))
}

// GetIterations retrieves the KDF iterations
func (s *Storage) GetIterations() (uint32, error) {
	iters, err := s.Get(ConfigBucket, string(ConfigIters))
	if err != nil {
		return 0, err
	}
	if len(iters) != 4 {
		return 0, fmt.Errorf("invalid iterations value")
	}
	return binary.BigEndian.Uint32(iters), nil
}

// GetInstallID retrieves the installation id
func (s *Storage) GetInstallID() (string, error) {
	data, err := s.Get(ConfigBucket, string(ConfigInstallID))
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// GetOrCreateInstallID retrieves the installation id, generating one on first use.
// The id scopes this installation's OS keyring entries.
func (s *Storage) GetOrCreateInstallID() (string, error) {
	var installID string
	err := s.db.Update(func(tx *bolt.Tx) error {
		config := tx.Bucket(ConfigBucket)
		if config == nil {
			return ErrNotInitialized
		}
		if data := config.Get(ConfigInstallID); data != nil {
			installID = string(data)
			return nil
		}
		installID = uuid.NewString()
		return config.Put(ConfigInstallID, []byte(installID))
	})
	if err != nil {
		return "", fmt.Errorf("failed to get installation id: %w", err)
	}
	return installID, nil
}

// Compact creates a compacted copy of the database, removing unused space.
func (s *Storage) Compact() error {
	srcPath := s.db.Path()
	tmpPath := srcPath + ".compact"

	dst, err := bolt.Open(tmpPath, FilePermSecure, nil)
	if err != nil {
		return fmt.Errorf("failed to create compact database: %w", err)
	}

	err = s.db.View(func(srcTx *bolt.Tx) error {
		return dst.Update(func(dstTx *bolt.Tx) error {
			return srcTx.ForEach(func(name []byte, srcBucket *bolt.Bucket) error {
				dstBucket, err := dstTx.CreateBucketIfNotExists(name)
				if err != nil {
					return err
				}
				return srcBucket.ForEach(func(k, v []byte) error {
					return dstBucket.Put(k, v)
				})
			})
		})
	})
	if err != nil {
		dst.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed to copy data: %w", err)
	}

	if err := dst.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to close compact database: %w", err)
	}
	if err := s.db.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to close source database: %w", err)
	}

	// Atomic replace
	backupPath := srcPath + ".backup"
	if err := os.Rename(srcPath, backupPath); err != nil {
		return fmt.Errorf("failed to backup original: %w", err)
	}
	if err := os.Rename(tmpPath, srcPath); err != nil {
		os.Rename(backupPath, srcPath) // rollback
		return fmt.Errorf("failed to replace database: %w", err)
	}
	os.Remove(backupPath)

	s.db, err = bolt.Open(srcPath, FilePermSecure, &bolt.Options{Timeout: openTimeout})
	if err != nil {
		return fmt.Errorf("failed to reopen database: %w", err)
	}
	return nil
}
