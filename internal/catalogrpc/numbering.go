package catalogrpc

import (
	"hash/fnv"
	"sort"

	"github.com/jhump/protoreflect/v2/protobuilder"
	"google.golang.org/protobuf/reflect/protoreflect"
)

// allocateFieldNumbers derives stable tag numbers from field names so that
// adding a field never renumbers the others.
func allocateFieldNumbers(fbs []*protobuilder.FieldBuilder) {
	names := make([]string, len(fbs))
	for i, fb := range fbs {
		names[i] = string(fb.Name())
	}
	for i, n := range fieldNumbers(names) {
		fbs[i].SetNumber(protoreflect.FieldNumber(n))
	}
}

const (
	maxTag        = 31767
	reservedFirst = 19000
	reservedLast  = 19999
)

// fieldNumbers maps each name to (FNV-32a(name) % maxTag) + 1, probing
// linearly past collisions and the reserved 19000-19999 block. Names are
// visited in sorted order so collisions resolve the same way every time.
func fieldNumbers(names []string) []int {
	order := make([]int, len(names))
	for i := range order {
		order[i] = i
	}
	sort.Slice(order, func(a, b int) bool { return names[order[a]] < names[order[b]] })

	out := make([]int, len(names))
	used := make(map[int]bool, len(names))
	for _, idx := range order {
		h := fnv.New32a()
		_, _ = h.Write([]byte(names[idx]))
		start := int(h.Sum32()%maxTag) + 1
		cand := start
		for {
			if cand >= reservedFirst && cand <= reservedLast {
				cand = reservedLast + 1
			}
			if !used[cand] {
				break
			}
			cand++
			if cand > maxTag {
				cand = 1
			}
			if cand == start {
				panic("catalogrpc: exhausted field number space")
			}
		}
		used[cand] = true
		out[idx] = cand
	}
	return out
}
