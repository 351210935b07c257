package directory

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/spf13/viper"

	"dcv-session-gateway/internal/backend/domain"
)

// StaticEntry is one backend as written in the directory file.
type StaticEntry struct {
	ID      string            `mapstructure:"id"`
	Address string            `mapstructure:"address"`
	Tags    map[string]string `mapstructure:"tags"`
}

// StaticDirectory serves backends from memory. Set replaces an entry at runtime.
type StaticDirectory struct {
	mu       sync.RWMutex
	backends map[string]domain.Backend
}

// NewStaticDirectory returns a directory holding the given backends.
func NewStaticDirectory(backends ...domain.Backend) *StaticDirectory {
	d := &StaticDirectory{backends: make(map[string]domain.Backend, len(backends))}
	for _, b := range backends {
		d.Set(b)
	}
	return d
}

// LoadStaticDirectory reads a YAML or JSON file of the form below. Viper folds map keys to lower case,
// so tag keys should be written in lower case.
//
//	backends:
//	  - id: i-0abc
//	    address: 10.0.1.23
//	    tags: {"dcv:type": server, "dcv:user": alice}
func LoadStaticDirectory(path string) (*StaticDirectory, error) {
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read backend directory %s: %w", path, err)
	}
	var file struct {
		Backends []StaticEntry `mapstructure:"backends"`
	}
	if err := v.Unmarshal(&file); err != nil {
		return nil, fmt.Errorf("parse backend directory %s: %w", path, err)
	}
	d := NewStaticDirectory()
	for i, e := range file.Backends {
		if strings.TrimSpace(e.ID) == "" {
			return nil, fmt.Errorf("backend directory %s: entry %d has no id", path, i)
		}
		d.Set(domain.Backend{ID: e.ID, Address: e.Address, Tags: e.Tags})
	}
	return d, nil
}

// Set adds or replaces a backend.
func (d *StaticDirectory) Set(b domain.Backend) {
	tags := make(map[string]string, len(b.Tags))
	for k, v := range b.Tags {
		tags[k] = v
	}
	b.Tags = tags
	d.mu.Lock()
	d.backends[b.ID] = b
	d.mu.Unlock()
}

// Remove deletes a backend; later lookups return ErrNotFound.
func (d *StaticDirectory) Remove(backendID string) {
	d.mu.Lock()
	delete(d.backends, backendID)
	d.mu.Unlock()
}

// Lookup returns a copy of the backend with id backendID.
func (d *StaticDirectory) Lookup(ctx context.Context, backendID string) (*domain.Backend, error) {
	d.mu.RLock()
	b, ok := d.backends[backendID]
	d.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	tags := make(map[string]string, len(b.Tags))
	for k, v := range b.Tags {
		tags[k] = v
	}
	b.Tags = tags
	return &b, nil
}

var _ Directory = (*StaticDirectory)(nil)
