package ginternals

import "errors"

// Sentinel errors returned by the object store, reference store, and
// their on-disk codecs. Errors stemming from one of these conditions
// wrap the matching sentinel with %w (through golang.org/x/xerrors or
// fmt.Errorf) so callers can keep using errors.Is/errors.As through
// the wrap chain.
var (
	// ErrNotARepository is returned when no .git directory (or bare
	// repository) can be found by walking up from a given path
	ErrNotARepository = errors.New("not a git repository (or any of the parent directories)")
	// ErrObjectNotFound is returned when an object can't be found in
	// either the loose object store or any packfile
	ErrObjectNotFound = errors.New("object not found")
	// ErrMalformedObject is returned when a loose or packed object's
	// payload doesn't match its declared framing
	ErrMalformedObject = errors.New("malformed object")
	// ErrUnsupportedVersion is returned when an index or packfile
	// declares a format version this package doesn't implement
	ErrUnsupportedVersion = errors.New("unsupported format version")
	// ErrUnsupportedIndexEntry is returned when an index entry uses a
	// file mode or entry type this package doesn't implement
	ErrUnsupportedIndexEntry = errors.New("unsupported index entry")
	// ErrDeltaUnsupported is returned when a packed object is stored as
	// an ofs-delta or ref-delta; delta reconstruction is out of scope
	ErrDeltaUnsupported = errors.New("delta-encoded objects are not supported")
	// ErrLargePackUnsupported is returned when a pack index requires
	// the >2GiB extended offset table
	ErrLargePackUnsupported = errors.New("packfiles larger than 2GiB are not supported")
	// ErrRefNotFound is returned when a reference cannot be resolved
	ErrRefNotFound = errors.New("reference not found")
	// ErrRefExists is returned when a reference already exists and the
	// caller asked for a non-overwriting write
	ErrRefExists = errors.New("reference already exists")
	// ErrRefNameInvalid is returned when a reference name fails
	// validation
	ErrRefNameInvalid = errors.New("invalid reference name")
	// ErrRefInvalid is returned when a reference's on-disk content
	// can't be parsed
	ErrRefInvalid = errors.New("invalid reference content")
	// ErrPackedRefInvalid is returned when a line in packed-refs can't
	// be parsed
	ErrPackedRefInvalid = errors.New("invalid packed-refs entry")
	// ErrUnknownRefType is returned when a Reference carries a type
	// this package doesn't know how to serialize
	ErrUnknownRefType = errors.New("unknown reference type")
	// ErrInvalidHead is returned when HEAD points to something that
	// doesn't resolve to a commit
	ErrInvalidHead = errors.New("HEAD does not resolve to a valid commit")
	// ErrIOFailure wraps unexpected filesystem errors encountered while
	// reading repository data
	ErrIOFailure = errors.New("i/o failure")
	// ErrDecompressionFailure is returned when a zlib stream can't be
	// inflated
	ErrDecompressionFailure = errors.New("decompression failure")
	// ErrConfigForbiddenKey is returned when a config section/key name
	// could be used for prototype pollution in embedding contexts
	// (__proto__, constructor, prototype)
	ErrConfigForbiddenKey = errors.New("config key is forbidden")
)
