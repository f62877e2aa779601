package diff

import (
	"encoding/hex"
	"encoding/json"
	"sort"
	"strings"

	"github.com/meikuraledutech/flow"
	"lukechampine.com/blake3"
)

// Hash domains keep node, edge and graph digests from colliding with
// each other for identical payloads.
const (
	domainNode  = "flow/node/v1"
	domainEdge  = "flow/edge/v1"
	domainGraph = "flow/graph/v1"
)

// NodeHash digests the persisted business subset of n. The branch map is
// derived from edges, so a rewired branch changes the hash of its
// condition node. Ids and display state do not participate.
func NodeHash(n flow.Node, edges []flow.Edge) string {
	rec := flow.NodeToRecord(n, edges)
	rec.ID = ""
	return hashJSON(domainNode, rec)
}

// EdgeHash digests the persisted business subset of e.
func EdgeHash(e flow.Edge) string {
	rec := flow.EdgeToRecord(e)
	rec.ID = ""
	return hashJSON(domainEdge, rec)
}

// GraphHash fingerprints a whole graph, ids included.
func GraphHash(nodes []flow.Node, edges []flow.Edge) string {
	lines := make([]string, 0, len(nodes)+len(edges))
	for _, n := range nodes {
		lines = append(lines, "n "+n.ID+" "+NodeHash(n, edges))
	}
	for _, e := range edges {
		lines = append(lines, "e "+e.ID+" "+EdgeHash(e))
	}
	sort.Strings(lines)
	return hashBytes(domainGraph, []byte(strings.Join(lines, "\n")))
}

// hashJSON relies on encoding/json emitting struct fields in declaration
// order and map keys sorted, which makes the encoding canonical.
func hashJSON(domain string, v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		// records hold only JSON-safe values; a failure here means a
		// config value that cannot be encoded, which must never compare equal
		b = []byte(err.Error())
	}
	return hashBytes(domain, b)
}

func hashBytes(domain string, b []byte) string {
	h := blake3.New(32, nil)
	h.Write([]byte(domain))
	h.Write([]byte{0})
	h.Write(b)
	return hex.EncodeToString(h.Sum(nil))
}
