package ginternals

import (
	"bytes"
	"strings"

	"golang.org/x/xerrors"
)

// Common ref names
const (
	// Head is a reference to the current branch, or to a commit if
	// we're detached
	Head = "HEAD"
	// OrigHead is a backup reference of HEAD set during destructive commands
	// such as rebase, merge, etc. and can be used to revert an operation
	OrigHead = "ORIG_HEAD"
	// MergeHead is a reference to the commit that is being merged
	// into the current branch
	MergeHead = "MERGE_HEAD"
	// CherryPickHead is a reference to the commit that is being
	// cherry-picked
	CherryPickHead = "CHERRY_PICK_HEAD"
	// Master correspond to the default branch name if none was
	// specified
	Master = "master"

	// FetchHead is a reference to the most recently fetched branch
	// TODO(melvin): Removed because the format is not currently
	// supported. It's a list of commit IDs with the branch name,
	// the origin, and other extra information. Example:
	//     bbb720a96e4c29b9950a4c577c98470a4d5dd089		branch 'master' of github.com:Nivl/git-go
	//     5f35f2dc6cec7356da02ca26192ce2bc3f271e79	not-for-merge	branch 'ml/feat/clone' of github.com:Nivl/git-go
	// FetchHead = "FETCH_HEAD"
)

// ReferenceType represents the type of a reference
type ReferenceType int8

const (
	// OidReference represents a reference that targets an Oid
	OidReference ReferenceType = 1
	// SymbolicReference represents a reference that targets another
	// reference
	SymbolicReference ReferenceType = 2
)

// Reference represents a git reference
// https://git-scm.com/book/en/v2/Git-Internals-Git-References
type Reference struct {
	name   string
	target string
	id     Oid
	typ    ReferenceType
}

// RefContent represents a method that returns the content of reference
// This is used so we can do the process here, without depending
// on a specific backend or having circular dependencies
type RefContent func(name string) ([]byte, error)

// ResolveReference resolves name, following symbolic references (a
// file whose content is "ref: <other-ref>") until it lands on an oid.
// The returned Reference always carries the original name; if at
// least one symbolic hop was followed, its Type is SymbolicReference
// and its SymbolicTarget is the first hop, while its Target is the
// oid the whole chain ultimately resolves to.
func ResolveReference(name string, finder RefContent) (*Reference, error) {
	visited := map[string]struct{}{}
	cur := name
	firstHop := ""
	symbolic := false

	for {
		// we need to protect ourselves against circular references
		// Ex: refs/heads/master is a ref to refs/heads/a which is a ref to
		// refs/heads/master
		if _, seen := visited[cur]; seen {
			return nil, xerrors.Errorf("circular symbolic reference: %w", ErrRefInvalid)
		}
		visited[cur] = struct{}{}

		if !IsRefNameValid(cur) {
			return nil, xerrors.Errorf(`ref "%s": %w`, cur, ErrRefNameInvalid)
		}

		data, err := finder(cur)
		if err != nil {
			return nil, err
		}
		data = bytes.Trim(data, " \n")

		// we're expecting at the very least 6 char:
		// "ref: " followed by a ref
		if len(data) < 6 {
			return nil, ErrRefInvalid
		}

		// if the reference is symbolic, follow it to find its target
		if string(data[0:5]) == "ref: " {
			next := string(data[5:])
			if !symbolic {
				firstHop = next
			}
			symbolic = true
			cur = next
			continue
		}

		oid, err := NewOidFromChars(data)
		if err != nil {
			return nil, ErrRefInvalid
		}
		if !symbolic {
			return &Reference{typ: OidReference, name: name, id: oid}, nil
		}
		return &Reference{typ: SymbolicReference, name: name, id: oid, target: firstHop}, nil
	}
}

// NewReference return a new Reference object that targets
// an object
func NewReference(name string, target Oid) *Reference {
	return &Reference{
		typ:  OidReference,
		name: name,
		id:   target,
	}
}

// NewSymbolicReference return a new Reference object that targets
// another reference.
// Example HEAD targeting heads/master
func NewSymbolicReference(name, target string) *Reference {
	return &Reference{
		typ:    SymbolicReference,
		name:   name,
		target: target,
	}
}

// Name returns the full name fo the reference:
// example: refs/heads/master
func (ref *Reference) Name() string {
	return ref.name
}

// Target returns the ID targeted by a reference
func (ref *Reference) Target() Oid {
	return ref.id
}

// Type returns the type of a reference
func (ref *Reference) Type() ReferenceType {
	return ref.typ
}

// SymbolicTarget returns the symbolic target of a reference
func (ref *Reference) SymbolicTarget() string {
	return ref.target
}

// refNameForbiddenChars are the individual characters a reference
// name may never contain, on top of control characters and DEL.
const refNameForbiddenChars = "*?!^ [\\:"

// refNameForbiddenSubstrings are the two-character sequences a
// reference name may never contain.
var refNameForbiddenSubstrings = []string{"@{", ".."}

// IsRefNameValid returns whether the name of a reference is valid or not
// https://stackoverflow.com/a/12093994/382879
func IsRefNameValid(name string) bool {
	if name == "" || name == "/" || strings.HasSuffix(name, "/") || strings.HasSuffix(name, ".") {
		return false
	}

	for i, c := range name {
		if c < 32 || c == 127 || strings.ContainsRune(refNameForbiddenChars, c) {
			return false
		}
		for _, sub := range refNameForbiddenSubstrings {
			if i+len(sub) <= len(name) && name[i:i+len(sub)] == sub {
				return false
			}
		}
	}

	for _, segment := range strings.Split(name, "/") {
		// a segment cannot be empty, start with a dot, end with a dot, or
		// end with ".lock"
		if segment == "" || strings.HasPrefix(segment, ".") ||
			strings.HasSuffix(segment, ".") || strings.HasSuffix(segment, ".lock") {
			return false
		}
	}

	return true
}
