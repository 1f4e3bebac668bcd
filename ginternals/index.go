package ginternals

import (
	"bufio"
	"encoding/binary"
	"io"

	"golang.org/x/xerrors"
)

// Index represents a git index (staging area) file.
//
// An index file has 4 sections: a 12-byte header (magic "DIRC",
// 4-byte version, 4-byte entry count), a sorted list of entries, a
// list of extensions, and a 20-byte SHA-1 footer over everything that
// precedes it. Only versions 2 and 3 are supported.
// https://git-scm.com/docs/index-format
type Index struct {
	Version int
	Entries []IndexEntry
	// CacheTree holds the parsed TREE extension, if present and valid.
	// Entries with entry_count == -1 (invalidated) are skipped, so a
	// nil CacheTree means either no TREE extension was present, or
	// every entry of the extension was invalidated.
	CacheTree []CacheTreeEntry
}

// IndexEntryType represents the object type nibble of an index
// entry's mode field
type IndexEntryType uint32

const (
	// IndexEntryRegularFile is a regular, possibly executable, file
	IndexEntryRegularFile IndexEntryType = 0b1000
	// IndexEntrySymlink is a symbolic link
	IndexEntrySymlink IndexEntryType = 0b1010
	// IndexEntryGitlink is a submodule reference (gitlink)
	IndexEntryGitlink IndexEntryType = 0b1110
)

// IndexEntry represents a single staged file
type IndexEntry struct {
	CTimeSec  uint32
	CTimeNano uint32
	MTimeSec  uint32
	MTimeNano uint32
	Dev       uint32
	Ino       uint32
	// Mode is the raw 32-bit mode field: object type in bits 12-15,
	// UNIX permissions in the low 9 bits
	Mode uint32
	UID  uint32
	GID  uint32
	Size uint32
	OID  Oid

	AssumeValid bool
	Stage       uint8
	Path        string
}

// Type returns the object type nibble of the entry's mode
func (e IndexEntry) Type() IndexEntryType {
	return IndexEntryType((e.Mode >> 12) & 0xF)
}

// Perms returns the UNIX permission bits of the entry's mode
func (e IndexEntry) Perms() uint32 {
	return e.Mode & 0o777
}

// CacheTreeEntry represents one entry of the TREE extension: a
// pre-computed tree OID for a path prefix of the index, used to
// speed up tree writes. This implementation parses and exposes the
// cache but never relies on it to answer queries.
type CacheTreeEntry struct {
	Path      string
	EntryCount int
	SubtreeCount int
	OID       Oid
}

const (
	indexHeaderSize     = 12
	indexEntryFixedSize = 62
	indexExtendedFlag   = 0x4000
	indexNameMask       = 0x0FFF
)

var indexMagic = [4]byte{'D', 'I', 'R', 'C'}

// DecodeIndex parses a DIRC index file (version 2 or 3)
func DecodeIndex(r io.Reader) (*Index, error) {
	br := bufio.NewReader(r)

	header := make([]byte, indexHeaderSize)
	if _, err := io.ReadFull(br, header); err != nil {
		return nil, xerrors.Errorf("could not read index header: %w", err)
	}
	if [4]byte{header[0], header[1], header[2], header[3]} != indexMagic {
		return nil, xerrors.Errorf("invalid index magic: %w", ErrMalformedObject)
	}
	version := int(binary.BigEndian.Uint32(header[4:8]))
	if version != 2 && version != 3 {
		return nil, xerrors.Errorf("index version %d: %w", version, ErrUnsupportedVersion)
	}
	entryCount := int(binary.BigEndian.Uint32(header[8:12]))

	idx := &Index{
		Version: version,
		Entries: make([]IndexEntry, 0, entryCount),
	}

	for i := 0; i < entryCount; i++ {
		entry, consumed, err := decodeIndexEntry(br, version)
		if err != nil {
			return nil, xerrors.Errorf("could not decode index entry %d: %w", i, err)
		}
		idx.Entries = append(idx.Entries, entry)
		if err := discardPadding(br, consumed); err != nil {
			return nil, xerrors.Errorf("could not skip padding after entry %d: %w", i, err)
		}
	}

	if err := decodeExtensions(br, idx); err != nil {
		return nil, err
	}

	return idx, nil
}

// decodeIndexEntry decodes a single entry, starting right after the
// fixed-size header. consumed is the number of bytes read for this
// entry (header + optional extended flags + name), used by the
// caller to compute the 8-byte alignment padding.
func decodeIndexEntry(r *bufio.Reader, version int) (entry IndexEntry, consumed int, err error) {
	fixed := make([]byte, indexEntryFixedSize)
	if _, err := io.ReadFull(r, fixed); err != nil {
		return IndexEntry{}, 0, xerrors.Errorf("could not read entry: %w", err)
	}
	consumed = indexEntryFixedSize

	entry.CTimeSec = binary.BigEndian.Uint32(fixed[0:4])
	entry.CTimeNano = binary.BigEndian.Uint32(fixed[4:8])
	entry.MTimeSec = binary.BigEndian.Uint32(fixed[8:12])
	entry.MTimeNano = binary.BigEndian.Uint32(fixed[12:16])
	entry.Dev = binary.BigEndian.Uint32(fixed[16:20])
	entry.Ino = binary.BigEndian.Uint32(fixed[20:24])
	entry.Mode = binary.BigEndian.Uint32(fixed[24:28])
	entry.UID = binary.BigEndian.Uint32(fixed[28:32])
	entry.GID = binary.BigEndian.Uint32(fixed[32:36])
	entry.Size = binary.BigEndian.Uint32(fixed[36:40])

	oid, err := NewOidFromHex(fixed[40:60])
	if err != nil {
		return IndexEntry{}, 0, err
	}
	entry.OID = oid

	flags := binary.BigEndian.Uint16(fixed[60:62])
	entry.AssumeValid = flags&0x8000 != 0
	extended := flags&indexExtendedFlag != 0
	entry.Stage = uint8((flags >> 12) & 0x3)
	nameLen := int(flags & indexNameMask)

	if err := validateEntryTypeAndPerms(entry); err != nil {
		return IndexEntry{}, 0, err
	}

	if extended {
		if version < 3 {
			return IndexEntry{}, 0, xerrors.Errorf("extended flag set in v%d entry: %w", version, ErrMalformedObject)
		}
		extBuf := make([]byte, 2)
		if _, err := io.ReadFull(r, extBuf); err != nil {
			return IndexEntry{}, 0, xerrors.Errorf("could not read extended flags: %w", err)
		}
		consumed += 2
	}

	name, nameBytesRead, err := readEntryName(r, nameLen)
	if err != nil {
		return IndexEntry{}, 0, err
	}
	entry.Path = name
	consumed += nameBytesRead

	return entry, consumed, nil
}

// readEntryName reads the entry's path. When nameLen is the sentinel
// 0xFFF, the name didn't fit in the 12-bit field and is instead
// NUL-terminated; otherwise exactly nameLen bytes are read followed
// by the mandatory terminating NUL.
func readEntryName(r *bufio.Reader, nameLen int) (name string, consumed int, err error) {
	if nameLen == indexNameMask {
		data, err := r.ReadBytes(0)
		if err != nil {
			return "", 0, xerrors.Errorf("could not read NUL-terminated name: %w", err)
		}
		return string(data[:len(data)-1]), len(data), nil
	}

	buf := make([]byte, nameLen+1)
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", 0, xerrors.Errorf("could not read name: %w", err)
	}
	return string(buf[:nameLen]), len(buf), nil
}

// discardPadding consumes the NUL bytes padding an entry out to the
// next 8-byte boundary, measured from the start of the entry
func discardPadding(r *bufio.Reader, consumed int) error {
	pad := 8 - (consumed % 8)
	if pad == 8 {
		return nil
	}
	if _, err := r.Discard(pad); err != nil {
		return err
	}
	return nil
}

// validateEntryTypeAndPerms rejects entry types and permission bits
// this implementation doesn't support
func validateEntryTypeAndPerms(e IndexEntry) error {
	switch e.Type() {
	case IndexEntryRegularFile:
		switch e.Perms() {
		case 0o644, 0o755:
			return nil
		default:
			return xerrors.Errorf("unsupported permission %o: %w", e.Perms(), ErrUnsupportedIndexEntry)
		}
	case IndexEntrySymlink, IndexEntryGitlink:
		return nil
	default:
		return xerrors.Errorf("unsupported entry type %o: %w", e.Type(), ErrUnsupportedIndexEntry)
	}
}

// decodeExtensions reads the extension section: a signature, a size,
// and the extension body. Unknown extensions (or extensions we don't
// need) are skipped using their declared size. Parsing stops once 20
// bytes or fewer remain, since what's left is the trailing checksum.
func decodeExtensions(r *bufio.Reader, idx *Index) error {
	for {
		peek, err := r.Peek(OidSize + 1)
		if err != nil || len(peek) <= OidSize {
			// fewer than OidSize+1 bytes remain: nothing left but
			// the trailing checksum (or a short/empty file)
			return nil
		}

		sig := make([]byte, 4)
		if _, err := io.ReadFull(r, sig); err != nil {
			return xerrors.Errorf("could not read extension signature: %w", err)
		}
		sizeBuf := make([]byte, 4)
		if _, err := io.ReadFull(r, sizeBuf); err != nil {
			return xerrors.Errorf("could not read extension size: %w", err)
		}
		size := binary.BigEndian.Uint32(sizeBuf)

		body := make([]byte, size)
		if _, err := io.ReadFull(r, body); err != nil {
			return xerrors.Errorf("could not read extension body: %w", err)
		}

		if string(sig) == "TREE" {
			entries, err := decodeCacheTree(body)
			if err != nil {
				return err
			}
			idx.CacheTree = entries
		}
		// any other extension is skipped: its bytes were already
		// consumed above via its declared size
	}
}

// decodeCacheTree parses the TREE extension: a sequence of entries,
// each a NUL-terminated path, an ASCII entry count, a space, an ASCII
// subtree count, a newline, and (if the entry count isn't -1) a raw
// 20-byte OID
func decodeCacheTree(body []byte) ([]CacheTreeEntry, error) {
	var entries []CacheTreeEntry
	pos := 0
	for pos < len(body) {
		nameEnd := indexOf(body[pos:], 0)
		if nameEnd < 0 {
			return nil, xerrors.Errorf("cache-tree: unterminated path: %w", ErrMalformedObject)
		}
		path := string(body[pos : pos+nameEnd])
		pos += nameEnd + 1

		lineEnd := indexOf(body[pos:], '\n')
		if lineEnd < 0 {
			return nil, xerrors.Errorf("cache-tree: missing newline: %w", ErrMalformedObject)
		}
		line := body[pos : pos+lineEnd]
		pos += lineEnd + 1

		spaceIdx := indexOf(line, ' ')
		if spaceIdx < 0 {
			return nil, xerrors.Errorf("cache-tree: malformed counts: %w", ErrMalformedObject)
		}
		entryCount := parseASCIIInt(line[:spaceIdx])
		subtreeCount := parseASCIIInt(line[spaceIdx+1:])

		entry := CacheTreeEntry{
			Path:         path,
			EntryCount:   entryCount,
			SubtreeCount: subtreeCount,
		}

		// entry_count == -1 means this (sub)tree is invalidated and
		// has no corresponding OID; such entries are skipped
		if entryCount >= 0 {
			if pos+OidSize > len(body) {
				return nil, xerrors.Errorf("cache-tree: truncated oid: %w", ErrMalformedObject)
			}
			oid, err := NewOidFromHex(body[pos : pos+OidSize])
			if err != nil {
				return nil, err
			}
			entry.OID = oid
			pos += OidSize
			entries = append(entries, entry)
		}
	}
	return entries, nil
}

func indexOf(b []byte, target byte) int {
	for i, c := range b {
		if c == target {
			return i
		}
	}
	return -1
}

func parseASCIIInt(b []byte) int {
	neg := false
	i := 0
	if len(b) > 0 && b[0] == '-' {
		neg = true
		i = 1
	}
	n := 0
	for ; i < len(b); i++ {
		if b[i] < '0' || b[i] > '9' {
			break
		}
		n = n*10 + int(b[i]-'0')
	}
	if neg {
		return -n
	}
	return n
}
