// Package registry holds the named field table profiles a message can be
// decoded against.
package registry

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"iso8583_parser/internal/iso8583"
	"iso8583_parser/internal/spec"
)

// ErrProfileNotFound is returned for a profile name nobody registered.
var ErrProfileNotFound = errors.New("profile not found")

// Profile is a named field table plus the MTI tables that go with it.
type Profile struct {
	Name        string
	Description string
	Fields      spec.Table
	MTI         spec.MTITables
}

// Decoder returns a Decoder for this profile.
func (p *Profile) Decoder(cs iso8583.Charset) *iso8583.Decoder {
	return iso8583.NewDecoder(
		iso8583.WithFields(p.Fields),
		iso8583.WithMTITables(p.MTI),
		iso8583.WithCharset(cs),
	)
}

// Registry holds profiles by name.
type Registry struct {
	mu     sync.RWMutex
	byName map[string]*Profile

	// decoders caches one Decoder per profile and charset.
	decoders map[decoderKey]*iso8583.Decoder
}

type decoderKey struct {
	name    string
	charset iso8583.Charset
}

// New creates a Registry holding only the built-in ISO 8583:1987 profile.
func New() *Registry {
	r := &Registry{
		byName:   make(map[string]*Profile),
		decoders: make(map[decoderKey]*iso8583.Decoder),
	}
	r.Register(&Profile{
		Name:        spec.ProfileISO1987,
		Description: "ISO 8583:1987, packed numerics",
		Fields:      spec.ISO1987(),
		MTI:         spec.DefaultMTI(),
	})
	return r
}

var defaultRegistry = New()

// Default returns the global registry instance.
func Default() *Registry {
	return defaultRegistry
}

// Register adds a profile to the default registry.
func Register(p *Profile) {
	defaultRegistry.Register(p)
}

// Register adds or replaces a profile.
func (r *Registry) Register(p *Profile) {
	r.mu.Lock()
	defer r.mu.Unlock()

	name := strings.ToLower(p.Name)
	r.byName[name] = p
	for k := range r.decoders {
		if k.name == name {
			delete(r.decoders, k)
		}
	}
}

// Lookup returns the profile registered under name. An empty name selects
// the ISO 8583:1987 profile.
func (r *Registry) Lookup(name string) (*Profile, error) {
	if name == "" {
		name = spec.ProfileISO1987
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.byName[strings.ToLower(name)]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrProfileNotFound, name)
	}
	return p, nil
}

// Decoder returns a cached Decoder for the named profile.
func (r *Registry) Decoder(name string, cs iso8583.Charset) (*iso8583.Decoder, error) {
	p, err := r.Lookup(name)
	if err != nil {
		return nil, err
	}
	key := decoderKey{name: strings.ToLower(p.Name), charset: cs}

	r.mu.RLock()
	d, ok := r.decoders[key]
	r.mu.RUnlock()
	if ok {
		return d, nil
	}

	d = p.Decoder(cs)
	r.mu.Lock()
	r.decoders[key] = d
	r.mu.Unlock()
	return d, nil
}

// Names returns all registered profile names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.byName))
	for _, p := range r.byName {
		names = append(names, p.Name)
	}
	sort.Strings(names)
	return names
}

// Count returns the number of registered profiles.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byName)
}

// LoadDir registers every *.yaml and *.yml table in dir. A table may extend
// a built-in profile or another table from the same directory. It returns
// the names it registered.
func (r *Registry) LoadDir(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read tables dir: %w", err)
	}

	pending := make(map[string]*spec.TableFile)
	for _, e := range entries {
		ext := strings.ToLower(filepath.Ext(e.Name()))
		if e.IsDir() || (ext != ".yaml" && ext != ".yml") {
			continue
		}
		tf, err := spec.LoadYAMLFile(filepath.Join(dir, e.Name()))
		if err != nil {
			return nil, err
		}
		pending[strings.ToLower(tf.Name)] = tf
	}

	var loaded []string
	resolving := make(map[string]bool)
	var resolve func(name string) (*Profile, error)
	resolve = func(name string) (*Profile, error) {
		tf, ok := pending[name]
		if !ok {
			return r.Lookup(name)
		}
		if resolving[name] {
			return nil, fmt.Errorf("%w: table %q extends itself", spec.ErrInvalidTable, tf.Name)
		}
		resolving[name] = true

		base := &Profile{Fields: spec.Table{}, MTI: spec.DefaultMTI()}
		if tf.Extends != "" {
			parent, err := resolve(strings.ToLower(tf.Extends))
			if err != nil {
				return nil, fmt.Errorf("%s: %w", tf.Name, err)
			}
			base = parent
		}
		p := &Profile{
			Name:        tf.Name,
			Description: "loaded from " + dir,
			Fields:      base.Fields.Merge(tf.Fields),
			MTI:         base.MTI,
		}
		switch {
		case tf.Description != "":
			p.Description = tf.Description
		case tf.Extends != "":
			p.Description = "extends " + tf.Extends
		}
		r.Register(p)
		loaded = append(loaded, p.Name)
		delete(pending, name)
		return p, nil
	}

	names := make([]string, 0, len(pending))
	for name := range pending {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if _, ok := pending[name]; !ok {
			continue
		}
		if _, err := resolve(name); err != nil {
			return loaded, err
		}
	}
	sort.Strings(loaded)
	return loaded, nil
}
