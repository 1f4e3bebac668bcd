package packfile

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"sync"

	"github.com/ngit-go/ngit/ginternals"
	"github.com/ngit-go/ngit/internal/readutil"
)

// indexHeader represents the header of an index file.
// the first 4 bytes contain the magic, the 4 next bytes
// contains the version of the file.
// We only support Version 2
func indexHeader() []byte {
	return []byte{255, 't', 'O', 'c', 0, 0, 0, 2}
}

// PackIndex represents a packfile's PackIndex file (.idx)
// The index contains data to help parsing the packfile
// The index contains a header, 5 layers, and a footer.
// header: 8 bytes - See indexHeader to know the header format
// Layer1: 1024 bytes. Contains 256 entries of 4 bytes.
//         Each entry contains the CUMULATIVE number of objects having
//         a oid starting by oid[0].
//         (oid[0] is an hex number, 0 <= x <= 255).
//         It's used to count how many objects have a SHA starting by
//         a specific value.
//         Example:
//         oid[0] represents the value of the 2 first chars of a SHA
//         So for 9b91da06e69613397b38e0808e0ba5ee6983251b, oid[0]
//         is equal to '9b' which corresponds to 155.
//         You'll then find the CUMULATIVE object count at the
//         position 155 * 4 in layer1.
//         To get the total of object starting with 9b, you will need
//         to look at the previous entry (9a at 154 * 4), and do
//         total_at_9b = cumul_9b - cummul_9a
// Layer2: x*20 bytes - Contains the IDs (20 Bytes each) of all the objects
//		   contained in the packfile
// Layer3: x*4 bytes - Contains a CRC (Cyclic redundancy check) value
//         for each object. It's used to check that data did not get corrupt
//         by network operations.
//         https://en.wikipedia.org/wiki/Cyclic_redundancy_check
// Layer4: x*4 - Contains the offset of each objects inside the packfile.
//         The first bit (and not byte, 1 byte = 8 bits) of the offset
//         (called MSB for Most Significant Bit) is used to store a special
//         value, and is not part of the offset:
//
//         If the packfile is < 2GB
//           - The MSB will always be 0
//           - The remaining bit (31, because it's 4 bytes of 8 bits
//             minus the MSB, so 4*8-1) correspond to the offset of
//             the object in the packfile.
//
//         If the packfile is > 2GB
//           - The MSB may be 0, or 1
//           - If 0, then the next 31 bits will contain the offset of
//             the object in the packfile.
//           - If 1, then the packfile offset doesn't fit in 4 bytes and
//             has been stored in layer5. This implementation doesn't
//             support packfiles that large: see ErrLargePackUnsupported.
// Layer5: y*8 bytes - Only exists for packfile bigger than 2GB. Not
//         supported by this implementation.
// Footer: 40 bytes - Contains 2 sha of 20 bytes each
//         The first is the sha1 sum of the packfile
//         The second is the sha1 sum of the index file minus this sha
//
// Resources:
// https://codewords.recurse.com/issues/three/unpacking-git-packfiles#idx-files
// https://git-scm.com/docs/pack-format
type PackIndex struct {
	mu sync.Mutex

	r readutil.BufferedReader

	fanout     [256]uint32
	oids       []ginternals.Oid
	crcs       []uint32
	hashOffset map[ginternals.Oid]uint64

	parseError error
	parsed     bool
}

// NewIndex returns an index object from the given reader
func NewIndex(r readutil.BufferedReader) (idx *PackIndex, err error) {
	// Let's validate the header
	header := make([]byte, len(indexHeader()))
	_, err = r.Read(header)
	if err != nil {
		return nil, fmt.Errorf("could read header of index file: %w", err)
	}
	if !bytes.Equal(header, indexHeader()) {
		return nil, fmt.Errorf("invalid header: %w", ErrInvalidMagic)
	}

	return &PackIndex{
		r: r,
	}, nil
}

// GetObjectOffset returns the offset of Oid in the packfile
// If the object is not found ginternals.ErrObjectNotFound is returned
func (idx *PackIndex) GetObjectOffset(oid ginternals.Oid) (uint64, error) {
	if err := idx.parse(); err != nil {
		return 0, fmt.Errorf("could not parse the index file: %w", err)
	}
	offset, exists := idx.hashOffset[oid]
	if !exists {
		return 0, ginternals.ErrObjectNotFound
	}
	return offset, nil
}

// GetObjectCRC returns the CRC32 checksum stored for oid in layer3.
// If the object is not found ginternals.ErrObjectNotFound is returned
func (idx *PackIndex) GetObjectCRC(oid ginternals.Oid) (uint32, error) {
	if err := idx.parse(); err != nil {
		return 0, fmt.Errorf("could not parse the index file: %w", err)
	}
	i := idx.search(oid)
	if i < 0 {
		return 0, ginternals.ErrObjectNotFound
	}
	return idx.crcs[i], nil
}

// search returns the position of oid in idx.oids using the fan-out
// table to bound a binary search to the slice of entries sharing
// oid's first byte, or -1 if oid isn't present.
func (idx *PackIndex) search(oid ginternals.Oid) int {
	lo := 0
	if oid[0] > 0 {
		lo = int(idx.fanout[oid[0]-1])
	}
	hi := int(idx.fanout[oid[0]])

	for lo < hi {
		mid := lo + (hi-lo)/2
		switch bytes.Compare(idx.oids[mid][:], oid[:]) {
		case 0:
			return mid
		case -1:
			lo = mid + 1
		default:
			hi = mid
		}
	}
	return -1
}

// parse extracts the fan-out table, the oid/crc/offset layers, and
// puts them in memory.
func (idx *PackIndex) parse() (err error) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	// No reason to call this method more than once
	if idx.parsed {
		return nil
	}

	// If the method failed, then there's no reason to try again,
	// especially that the underlying reader doesn't get its cursor
	// reset
	if idx.parseError != nil {
		return idx.parseError
	}
	defer func() {
		if err != nil {
			idx.parseError = err
		}
	}()

	bufInt32 := make([]byte, 4)
	bufOid := make([]byte, ginternals.OidSize)

	// Layer1 (fan-out table): 256 cumulative counts, one per possible
	// value of the oid's first byte
	for i := 0; i < 256; i++ {
		if _, err = io.ReadFull(idx.r, bufInt32); err != nil {
			return fmt.Errorf("could not read fanout entry %d: %w", i, err)
		}
		idx.fanout[i] = binary.BigEndian.Uint32(bufInt32)
	}
	objectCount := int(idx.fanout[255])

	// Layer2: objectCount oids, stored back-to-back, sorted
	idx.oids = make([]ginternals.Oid, 0, objectCount)
	for i := 0; i < objectCount; i++ {
		_, err = io.ReadFull(idx.r, bufOid)
		if err != nil {
			return fmt.Errorf("couldn't get oid %d: %w", i, err)
		}
		oid, err := ginternals.NewOidFromHex(bufOid)
		if err != nil {
			return fmt.Errorf("invalid oid at position %d: %w", i, err)
		}
		idx.oids = append(idx.oids, oid)
	}

	// Layer3: objectCount CRC32 values, one per object, in the same
	// order as layer2
	idx.crcs = make([]uint32, objectCount)
	for i := 0; i < objectCount; i++ {
		if _, err = io.ReadFull(idx.r, bufInt32); err != nil {
			return fmt.Errorf("couldn't read crc %d: %w", i, err)
		}
		idx.crcs[i] = binary.BigEndian.Uint32(bufInt32)
	}

	// Layer4: objectCount 4-byte offsets. The MSB flags an extended
	// (layer5) offset, used for packfiles bigger than 2GiB, which this
	// implementation doesn't support.
	idx.hashOffset = make(map[ginternals.Oid]uint64, objectCount)
	for i, oid := range idx.oids {
		if _, err = io.ReadFull(idx.r, bufInt32); err != nil {
			return fmt.Errorf("couldn't read offset of oid %s at position %d (layer4): %w", oid.String(), i, err)
		}
		entry := binary.BigEndian.Uint32(bufInt32)

		// The entry contains 2 information, a MSB and the offset.
		// The MSB correspond to the first bit on the very left, and the
		// offset is stored in the 31 next bits (because its a 32bits number)
		msb := (entry >> 31) == 1
		if msb {
			return fmt.Errorf("oid %s requires a layer5 (extended) offset: %w", oid.String(), ginternals.ErrLargePackUnsupported)
		}

		offset := uint64(entry & 0b01111111111111111111111111111111)
		idx.hashOffset[oid] = offset
	}
	idx.parsed = true
	return nil
}
