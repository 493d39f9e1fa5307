package storage

import "context"

// PlainBucket stores non-sensitive values in the settings bucket
type PlainBucket struct {
	s *Storage
}

// NewPlainBucket wraps the settings bucket of s
func NewPlainBucket(s *Storage) *PlainBucket {
	return &PlainBucket{s: s}
}

// Get returns the value for key or ErrNotFound
func (p *PlainBucket) Get(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return p.s.Get(SettingsBucket, key)
}

// Set stores value under key
func (p *PlainBucket) Set(ctx context.Context, key string, value []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return p.s.Put(SettingsBucket, key, value)
}
