// Package registry holds the set of known protocol descriptors and resolves
// the descriptor matching a connected device.
package registry

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/usepat/SW-soniccontrol/internal/ir"
	"github.com/usepat/SW-soniccontrol/internal/protocols"
	"github.com/usepat/SW-soniccontrol/internal/schema"
)

var (
	// ErrProtocolNotFound reports that no descriptor matches a lookup.
	ErrProtocolNotFound = errors.New("protocol not found")

	// ErrDuplicateProtocol reports two descriptors with the same key.
	ErrDuplicateProtocol = errors.New("duplicate protocol")
)

// ProtocolNotFoundError describes a failed lookup.
type ProtocolNotFoundError struct {
	Device  schema.DeviceType
	Version ir.Version

	// Build is set for lookups that asked for a specific build.
	Build *schema.BuildType
}

func (e *ProtocolNotFoundError) Error() string {
	if e.Build != nil {
		return fmt.Sprintf("no protocol for %s", schema.Key{Device: e.Device, Version: e.Version, Build: *e.Build})
	}
	return fmt.Sprintf("no protocol for %s %s", e.Device, e.Version)
}

// Is matches ErrProtocolNotFound.
func (e *ProtocolNotFoundError) Is(target error) bool {
	return target == ErrProtocolNotFound
}

// Registry is an immutable set of protocol descriptors keyed by device,
// version and build. It is safe for concurrent use.
type Registry struct {
	byKey  map[schema.Key]*schema.ProtocolDescriptor
	sorted []*schema.ProtocolDescriptor
	logger *slog.Logger
}

// Option configures a Registry.
type Option func(*Registry)

// WithLogger sets the logger used to report version fallbacks. A nil
// logger keeps the default.
func WithLogger(l *slog.Logger) Option {
	return func(r *Registry) {
		if l != nil {
			r.logger = l
		}
	}
}

// New builds a registry. It fails with ErrDuplicateProtocol when two
// descriptors share a key.
func New(descs []*schema.ProtocolDescriptor, opts ...Option) (*Registry, error) {
	r := &Registry{
		byKey:  make(map[schema.Key]*schema.ProtocolDescriptor, len(descs)),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	for _, d := range descs {
		if d == nil {
			return nil, errors.New("nil protocol descriptor")
		}
		if _, dup := r.byKey[d.Key()]; dup {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateProtocol, d.Key())
		}
		r.byKey[d.Key()] = d
		r.sorted = append(r.sorted, d)
	}
	slices.SortFunc(r.sorted, func(a, b *schema.ProtocolDescriptor) int {
		return a.Key().Compare(b.Key())
	})
	return r, nil
}

// FromTables checks every table and builds a registry from the results.
// All table errors are reported together.
func FromTables(tables []schema.ProtocolTable, opts ...Option) (*Registry, error) {
	descs := make([]*schema.ProtocolDescriptor, 0, len(tables))
	var errs []error
	for _, t := range tables {
		d, err := schema.NewProtocolDescriptor(t)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		descs = append(descs, d)
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return New(descs, opts...)
}

var defaultRegistry = sync.OnceValues(func() (*Registry, error) {
	return New(protocols.Builtin())
})

// Default returns the process-wide registry over the built-in protocol
// tables. It is built on first use and never changes afterwards.
func Default() (*Registry, error) {
	return defaultRegistry()
}

// Lookup returns the descriptor for device at exactly version, preferring
// the release build when both builds exist.
func (r *Registry) Lookup(device schema.DeviceType, version ir.Version) (*schema.ProtocolDescriptor, error) {
	return r.LookupWith(ExactMatch, device, version)
}

// LookupBuild returns the descriptor matching all three key components.
func (r *Registry) LookupBuild(device schema.DeviceType, version ir.Version, build schema.BuildType) (*schema.ProtocolDescriptor, error) {
	d, ok := r.byKey[schema.Key{Device: device, Version: version, Build: build}]
	if !ok {
		return nil, &ProtocolNotFoundError{Device: device, Version: version, Build: &build}
	}
	return d, nil
}

// LookupWith resolves version through policy among the versions known for
// device, then returns that version's descriptor, preferring release.
func (r *Registry) LookupWith(policy Policy, device schema.DeviceType, version ir.Version) (*schema.ProtocolDescriptor, error) {
	resolved, ok := policy(version, r.Versions(device))
	if !ok {
		return nil, &ProtocolNotFoundError{Device: device, Version: version}
	}
	if resolved != version {
		r.logger.Debug("protocol version fallback",
			"device", device.String(),
			"requested", version.String(),
			"resolved", resolved.String())
	}
	for _, build := range []schema.BuildType{schema.BuildRelease, schema.BuildDebug} {
		if d, ok := r.byKey[schema.Key{Device: device, Version: resolved, Build: build}]; ok {
			return d, nil
		}
	}
	return nil, &ProtocolNotFoundError{Device: device, Version: version}
}

// Versions returns the distinct versions known for device, ascending.
func (r *Registry) Versions(device schema.DeviceType) []ir.Version {
	var out []ir.Version
	for _, d := range r.sorted {
		if d.Device() != device {
			continue
		}
		if n := len(out); n == 0 || out[n-1] != d.Version() {
			out = append(out, d.Version())
		}
	}
	return out
}

// Descriptors returns all descriptors ordered by device, version and build.
func (r *Registry) Descriptors() []*schema.ProtocolDescriptor {
	return slices.Clone(r.sorted)
}

// Len returns the number of descriptors.
func (r *Registry) Len() int { return len(r.sorted) }
