// Package resolver binds the member identifiers of a parsed query to schema
// members while keeping the number of schema lookups small.
//
// # Overview
//
// A query may name hundreds of members, often siblings: {[Product].[Food].[Dairy],
// [Product].[Food].[Deli], ...}. Looking each one up separately costs one
// round-trip per name. The resolver instead groups names that share a parent
// and asks the SchemaReader for all of them in one LookupChildrenByName call.
//
// # Pipeline
//
//  1. Walk lists candidate IdExpr nodes from the axes, the slicer, WITH
//     formula bodies and the cell property list, descending into every
//     function argument. Declared formula names, level references such as
//     [Time.Weekly].Week and nodes already bound by an earlier pass are
//     skipped.
//  2. Classify splits each id into a hierarchy prefix and a member path and
//     computes its BatchKey (hierarchy, parent). Ids that need no lookup
//     (bare hierarchies, All members) are recorded as known; ids the
//     batcher cannot handle (&[key] segments, unknown hierarchies,
//     level-qualified paths, hierarchies without an All member) are left
//     to the validator.
//  3. BuildRounds merges eligible ids into Groups keyed by BatchKey and
//     orders them by depth. Ancestors are scheduled even when the query does
//     not name them, so [Time].[1997].[Q1] produces a depth 0 group for 1997
//     and a depth 1 group for Q1.
//  4. Resolve runs the rounds in order. Depth 0 groups hang off the All
//     member, which the cube already holds. A depth k group uses the parent
//     found in round k-1; if that parent was not found, the group is dropped
//     and its nodes end up unresolved. Each group costs exactly one lookup.
//
// # Naming
//
// Under SSAS-compatible naming a named hierarchy is always two segments,
// [Time].[Weekly]. Under legacy naming it may also be one dotted segment,
// [Time.Weekly]. The naming mode changes unique names (the All member of
// Weekly is [Time].[Weekly].[All Weeklys] or [Time.Weekly].[All Time.Weeklys])
// but not the shape of the batches.
//
// # Cancellation
//
// Resolution runs on the caller's goroutine. The execution's
// CheckCancelOrTimeout is polled before every round and before every lookup;
// an in-flight lookup is not interrupted except through its context. When a
// run stops early the partial ResolutionMap is still returned: finished
// lookups keep their members and everything else is unresolved.
//
// # Attribution
//
// The whole run and each lookup execute inside an execution.Locus frame
// named after the component (IdBatchResolver by default), so telemetry can
// attribute slow lookups.
//
// # Binding
//
// Bind applies a ResolutionMap to the query tree. Unresolved nodes raise a
// MemberNotFoundError only under strict validation without
// ignore-invalid-members; otherwise they become NullMemberExpr placeholders.
package resolver
