package kintree

import (
	"fmt"
	"strings"
)

// Structural errors are fatal for the object being converted. Each carries a
// stable Kind string so the batch layer can classify failures without string
// matching on messages.

// DuplicateLinkError reports a link id declared more than once.
type DuplicateLinkError struct {
	ID string
}

func (e *DuplicateLinkError) Error() string {
	return fmt.Sprintf("duplicate link id %q", e.ID)
}

func (e *DuplicateLinkError) Kind() string { return "duplicate-link" }

// MultipleParentsError reports a link that is the child of more than one joint.
type MultipleParentsError struct {
	Link   string
	Joints []string // joint ids claiming the link, in declaration order
}

func (e *MultipleParentsError) Error() string {
	return fmt.Sprintf("link %q has multiple parents (joints %s)", e.Link, strings.Join(e.Joints, ", "))
}

func (e *MultipleParentsError) Kind() string { return "multiple-parents" }

// NoRootError reports that every declared link appears as a joint child.
type NoRootError struct{}

func (e *NoRootError) Error() string {
	return "no root link: every link appears as a joint child"
}

func (e *NoRootError) Kind() string { return "no-root" }

// MultipleRootsError reports a disconnected forest: more than one link with
// no inbound joint.
type MultipleRootsError struct {
	Roots []string // sorted
}

func (e *MultipleRootsError) Error() string {
	return fmt.Sprintf("multiple root links (%s): description is a forest, not a single object", strings.Join(e.Roots, ", "))
}

func (e *MultipleRootsError) Kind() string { return "multiple-roots" }

// CycleDetectedError reports a joint cycle, with the link path that closes it.
type CycleDetectedError struct {
	Path []string // link ids, first == last
}

func (e *CycleDetectedError) Error() string {
	return fmt.Sprintf("joint cycle: %s", strings.Join(e.Path, " -> "))
}

func (e *CycleDetectedError) Kind() string { return "cycle" }

// UnreachableLinkError reports declared links never visited by the traversal
// from the root.
type UnreachableLinkError struct {
	Links []string // sorted
}

func (e *UnreachableLinkError) Error() string {
	return fmt.Sprintf("links not reachable from root: %s", strings.Join(e.Links, ", "))
}

func (e *UnreachableLinkError) Kind() string { return "unreachable-link" }

// InvalidJointError reports a joint whose axis or limits fail validation, or
// one referencing an undeclared link.
type InvalidJointError struct {
	Joint  string
	Reason string
}

func (e *InvalidJointError) Error() string {
	return fmt.Sprintf("joint %q: %s", e.Joint, e.Reason)
}

func (e *InvalidJointError) Kind() string { return "invalid-joint" }
