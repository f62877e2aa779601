package handle

import (
	"errors"
	"fmt"
	"strings"
)

// ErrMalformed is returned for handle ids that do not have the
// "nodeId:kind[:discriminator]" shape.
var ErrMalformed = errors.New("handle: malformed handle id")

// ID is a parsed composite handle id.
type ID struct {
	NodeID        string
	Kind          Kind
	Discriminator string
}

// Parse splits s into node id, kind and optional discriminator. Anything
// after the second colon is the discriminator, so String reproduces s.
func Parse(s string) (ID, error) {
	parts := strings.SplitN(s, ":", 3)
	if len(parts) < 2 {
		return ID{}, fmt.Errorf("%w: %q", ErrMalformed, s)
	}
	if parts[0] == "" || parts[1] == "" {
		return ID{}, fmt.Errorf("%w: %q has an empty segment", ErrMalformed, s)
	}
	id := ID{NodeID: parts[0], Kind: Kind(parts[1])}
	if len(parts) == 3 {
		if parts[2] == "" {
			return ID{}, fmt.Errorf("%w: %q has an empty discriminator", ErrMalformed, s)
		}
		id.Discriminator = parts[2]
	}
	return id, nil
}

// String formats the id back into its wire form.
func (id ID) String() string {
	if id.Discriminator == "" {
		return id.NodeID + ":" + string(id.Kind)
	}
	return id.NodeID + ":" + string(id.Kind) + ":" + id.Discriminator
}

// WithNode returns a copy of id owned by another node.
func (id ID) WithNode(nodeID string) ID {
	id.NodeID = nodeID
	return id
}
