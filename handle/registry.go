package handle

import (
	"errors"
	"fmt"
	"log/slog"
)

// ErrUnknownKind is returned by a strict registry for kinds it does not know.
var ErrUnknownKind = errors.New("handle: unknown handle kind")

// Registry is the static handle catalogue: kinds, direction, per-instance
// limits and the source→target compatibility table. It is read-only after
// construction and safe for concurrent use.
type Registry struct {
	compat map[Kind]map[Kind]bool
	strict bool
	logger *slog.Logger
}

type Option func(*Registry)

// WithLogger sets the logger used for unknown-kind warnings.
func WithLogger(l *slog.Logger) Option {
	return func(r *Registry) { r.logger = l }
}

// WithStrictKinds makes Resolve fail on unknown kinds instead of degrading
// them to CommonOutput.
func WithStrictKinds() Option {
	return func(r *Registry) { r.strict = true }
}

// NewRegistry builds the default catalogue.
func NewRegistry(opts ...Option) *Registry {
	r := &Registry{compat: map[Kind]map[Kind]bool{}}
	for src, targets := range defaultMatrix() {
		row := make(map[Kind]bool, len(targets))
		for _, t := range targets {
			row[t] = true
		}
		r.compat[src] = row
	}
	for _, o := range opts {
		o(r)
	}
	if r.logger == nil {
		r.logger = slog.Default()
	}
	return r
}

// Known reports whether k is part of the catalogue.
func (r *Registry) Known(k Kind) bool {
	_, ok := kindTable[k]
	return ok
}

// Resolve maps a wire kind to a known kind. Unknown kinds degrade to
// CommonOutput with a warning unless the registry is strict.
func (r *Registry) Resolve(k Kind) (Kind, error) {
	if r.Known(k) {
		return k, nil
	}
	if r.strict {
		return "", fmt.Errorf("%w: %q", ErrUnknownKind, k)
	}
	r.logger.Warn("unknown handle kind, treating as common output", "kind", string(k))
	return CommonOutput, nil
}

// ResolveID parses a handle id and resolves its kind.
func (r *Registry) ResolveID(s string) (ID, Kind, error) {
	id, err := Parse(s)
	if err != nil {
		return ID{}, "", err
	}
	k, err := r.Resolve(id.Kind)
	if err != nil {
		return ID{}, "", err
	}
	return id, k, nil
}

// Compatible reports whether an edge may run from a src handle to a tgt
// handle. Pairs missing from the table are incompatible.
func (r *Registry) Compatible(src, tgt Kind) bool {
	return r.compat[src][tgt]
}

// Targets lists the kinds src may connect to, in display order.
func (r *Registry) Targets(src Kind) []Kind {
	var out []Kind
	for _, k := range kinds {
		if r.compat[src][k] {
			out = append(out, k)
		}
	}
	return out
}

// Limits returns the per-instance cardinality of k. Unknown kinds get
// output limits, matching how Resolve degrades them.
func (r *Registry) Limits(k Kind) Limits {
	if info, ok := kindTable[k]; ok {
		return info.limits
	}
	return outputLimits
}

func (r *Registry) Direction(k Kind) Direction {
	if info, ok := kindTable[k]; ok {
		return info.direction
	}
	return Output
}

func (r *Registry) IsInput(k Kind) bool { return r.Direction(k) == Input }

// Label returns a human-readable name for k.
func (r *Registry) Label(k Kind) string {
	if info, ok := kindTable[k]; ok {
		return info.label
	}
	return string(k)
}

// Kinds returns every known kind in display order.
func (r *Registry) Kinds() []Kind {
	return append([]Kind(nil), kinds...)
}
