package catalogrpc

import (
	"context"
	"fmt"

	"github.com/hanpama/olapcore/internal/olap"
)

// Reader is an olap.SchemaReader backed by a remote catalog service.
// Members are rebuilt against the caller's cube metadata, so both sides
// must agree on the cube's naming mode.
type Reader struct {
	t    *transport
	desc *Descriptors
}

var _ olap.SchemaReader = (*Reader)(nil)

func NewReader(opts ...Option) (*Reader, error) {
	o := defaultOptions()
	for _, fn := range opts {
		fn(o)
	}
	d, err := Describe()
	if err != nil {
		return nil, err
	}
	return &Reader{t: newTransport(o), desc: d}, nil
}

// LookupChildrenByName implements olap.SchemaReader with one RPC per call.
func (r *Reader) LookupChildrenByName(ctx context.Context, parent *olap.Member, names []olap.NameSegment, match olap.MatchType) (map[olap.NameSegment]*olap.Member, error) {
	out := make(map[olap.NameSegment]*olap.Member, len(names))
	if parent == nil || len(names) == 0 {
		return out, nil
	}
	h := parent.Hierarchy
	req := r.desc.encodeRequest(lookupRequest{
		Cube:   h.Dimension.Cube.Name,
		Parent: parent.UniqueName(),
		Names:  names,
		Match:  match,
	})
	resp, err := r.t.call(ctx, r.desc.Lookup, req)
	if err != nil {
		return nil, err
	}
	for _, wm := range r.desc.decodeResponse(resp) {
		if wm.Index < 0 || wm.Index >= len(names) {
			return nil, fmt.Errorf("catalogrpc: match index %d out of range", wm.Index)
		}
		m, err := h.NewMember(parent, wm.Name, wm.Ordinal)
		if err != nil {
			return nil, err
		}
		if olap.FoldName(m.UniqueName()) != olap.FoldName(wm.Unique) {
			return nil, fmt.Errorf("%w: server %s, local %s", ErrNamingMismatch, wm.Unique, m.UniqueName())
		}
		out[names[wm.Index]] = m
	}
	return out, nil
}

// Close releases pooled connections.
func (r *Reader) Close() error { return r.t.close() }
