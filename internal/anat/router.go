package anat

import (
	"sort"
)

// FieldSource tags where a downstream field's value comes from.
type FieldSource int

const (
	// SourceInput fields pass through unchanged from the raw input bundle.
	SourceInput FieldSource = iota
	// SourceComputed fields are produced by a node built during assembly.
	SourceComputed
)

// FieldRouter tracks, per named field, whether its value is sourced from the
// workflow's input interface or from the locally computed buffer. Every field
// starts input-sourced; a branch that computes a field claims it exactly
// once. At finalization each downstream field is wired from whichever set
// holds it, and the partition is validated exhaustively.
type FieldRouter struct {
	sources map[string]FieldSource
	// claimedBy records the assembler branch that claimed each field, so a
	// conflicting second claim names both producers in its error.
	claimedBy map[string]string
}

// NewFieldRouter starts every named field in the input-sourced set.
func NewFieldRouter(fields []string) *FieldRouter {
	r := &FieldRouter{
		sources:   make(map[string]FieldSource, len(fields)),
		claimedBy: make(map[string]string, 4),
	}
	for _, f := range fields {
		r.sources[f] = SourceInput
	}
	return r
}

// Claim moves the named fields into the computed set on behalf of a branch.
// Claiming an unknown field or re-claiming a computed field is an
// internal-consistency error.
func (r *FieldRouter) Claim(branch string, fields ...string) error {
	for _, f := range fields {
		src, ok := r.sources[f]
		if !ok {
			return inconsistencyError("branch %q claimed unknown field %q", branch, f)
		}
		if src == SourceComputed {
			return inconsistencyError("field %q claimed by both %q and %q", f, r.claimedBy[f], branch)
		}
		r.sources[f] = SourceComputed
		r.claimedBy[f] = branch
	}
	return nil
}

// SourceOf reports which set currently holds the field.
func (r *FieldRouter) SourceOf(field string) (FieldSource, error) {
	src, ok := r.sources[field]
	if !ok {
		return SourceInput, inconsistencyError("can't determine location of field %q", field)
	}
	return src, nil
}

// InputFields returns the sorted fields still sourced from the input bundle.
func (r *FieldRouter) InputFields() []string {
	return r.fieldsWith(SourceInput)
}

// ComputedFields returns the sorted fields claimed by assembler branches.
func (r *FieldRouter) ComputedFields() []string {
	return r.fieldsWith(SourceComputed)
}

func (r *FieldRouter) fieldsWith(want FieldSource) []string {
	out := make([]string, 0, len(r.sources))
	for f, src := range r.sources {
		if src == want {
			out = append(out, f)
		}
	}
	sort.Strings(out)
	return out
}

// Finalize validates the partition against the unified downstream field
// list: every downstream field must be in exactly one set.
func (r *FieldRouter) Finalize(downstream []string) error {
	seen := make(map[string]struct{}, len(downstream))
	for _, f := range downstream {
		if _, dup := seen[f]; dup {
			return inconsistencyError("field %q appears twice in the downstream interface", f)
		}
		seen[f] = struct{}{}
		if _, ok := r.sources[f]; !ok {
			return inconsistencyError("downstream field %q belongs to neither sourcing set", f)
		}
	}
	return nil
}
