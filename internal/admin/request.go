package admin

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/hanpama/olapcore/internal/engine"
	"github.com/hanpama/olapcore/internal/execution"
	"github.com/hanpama/olapcore/internal/olap"
	"github.com/hanpama/olapcore/internal/query"
)

var errBodyTooLarge = errors.New("body too large")

// resolveRequest lists identifiers per clause. Each axis is a set of
// identifiers; the slicer is a tuple.
type resolveRequest struct {
	Cube           string     `json:"cube"`
	Label          string     `json:"label,omitempty"`
	Axes           [][]string `json:"axes"`
	Slicer         []string   `json:"slicer,omitempty"`
	CellProperties []string   `json:"cellProperties,omitempty"`
}

func decodeResolveRequest(r *http.Request, maxBody int64) (resolveRequest, error) {
	var req resolveRequest
	ct := r.Header.Get("Content-Type")
	if ct != "" && ct != "application/json" && !strings.HasPrefix(ct, "application/json;") {
		return req, fmt.Errorf("unsupported Content-Type %q", ct)
	}
	reader := io.Reader(r.Body)
	if maxBody > 0 {
		reader = io.LimitReader(r.Body, maxBody+1)
	}
	body, err := io.ReadAll(reader)
	if err != nil {
		return req, errors.New("failed to read body")
	}
	defer r.Body.Close()
	if maxBody > 0 && int64(len(body)) > maxBody {
		return req, errBodyTooLarge
	}
	if err := json.Unmarshal(body, &req); err != nil {
		return req, errors.New("invalid JSON")
	}
	if req.Cube == "" {
		return req, errors.New("missing 'cube'")
	}
	if len(req.Axes) == 0 && len(req.Slicer) == 0 && len(req.CellProperties) == 0 {
		return req, errors.New("no identifiers")
	}
	return req, nil
}

func parseIds(ss []string) ([]*query.IdExpr, error) {
	out := make([]*query.IdExpr, 0, len(ss))
	for _, s := range ss {
		id, err := olap.ParseIdentifier(s)
		if err != nil {
			return nil, err
		}
		out = append(out, &query.IdExpr{Id: id})
	}
	return out, nil
}

func exprs(ids []*query.IdExpr) []query.Expr {
	out := make([]query.Expr, len(ids))
	for i, id := range ids {
		out[i] = id
	}
	return out
}

func (req resolveRequest) query() (*query.Query, error) {
	q := &query.Query{Cube: req.Cube}
	for i, axis := range req.Axes {
		ids, err := parseIds(axis)
		if err != nil {
			return nil, fmt.Errorf("axes[%d]: %w", i, err)
		}
		q.Axes = append(q.Axes, query.On(i, query.Set(exprs(ids)...)))
	}
	if len(req.Slicer) > 0 {
		ids, err := parseIds(req.Slicer)
		if err != nil {
			return nil, fmt.Errorf("slicer: %w", err)
		}
		q.Slicer = query.Tuple(exprs(ids)...)
	}
	props, err := parseIds(req.CellProperties)
	if err != nil {
		return nil, fmt.Errorf("cellProperties: %w", err)
	}
	q.CellProperties = props
	return q, nil
}

type entryView struct {
	Id        string `json:"id"`
	Status    string `json:"status"`
	Role      string `json:"role"`
	Reason    string `json:"reason,omitempty"`
	Element   string `json:"element,omitempty"`
	Hierarchy string `json:"hierarchy,omitempty"`
}

type statsView struct {
	Candidates int `json:"candidates"`
	Rounds     int `json:"rounds"`
	Lookups    int `json:"lookups"`
	Dropped    int `json:"dropped"`
}

type resolveResponse struct {
	Statement  string      `json:"statement"`
	Execution  string      `json:"execution"`
	State      string      `json:"state"`
	Error      string      `json:"error,omitempty"`
	DurationMs float64     `json:"durationMs"`
	Stats      statsView   `json:"stats"`
	Entries    []entryView `json:"entries"`
	Bound      []string    `json:"bound,omitempty"`
}

func newResolveResponse(id execution.StatementID, res *engine.Result, q *query.Query, err error) resolveResponse {
	out := resolveResponse{
		Statement:  id.String(),
		Execution:  res.ExecutionID,
		State:      res.State.String(),
		DurationMs: float64(res.Duration.Microseconds()) / 1000,
		Entries:    []entryView{},
	}
	if err != nil {
		out.Error = err.Error()
	}
	if m := res.Map; m != nil {
		out.Stats = statsView{m.Stats.Candidates, m.Stats.Rounds, m.Stats.Lookups, m.Stats.Dropped}
		for _, e := range m.Entries() {
			v := entryView{Id: e.Node.Id.String(), Status: e.Status.String(), Role: e.Role.String(), Reason: e.Reason.String()}
			if e.Element != nil {
				v.Element = e.Element.UniqueName()
			}
			if e.Hierarchy != nil {
				v.Hierarchy = e.Hierarchy.UniqueName()
			}
			out.Entries = append(out.Entries, v)
		}
	}
	if err == nil {
		for _, a := range q.Axes {
			out.Bound = append(out.Bound, query.Format(a.Exp))
		}
	}
	return out
}
