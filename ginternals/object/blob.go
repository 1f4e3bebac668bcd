package object

import "github.com/ngit-go/ngit/ginternals"

// Blob represents a blob object
type Blob struct {
	rawObject *Object
}

// NewBlob returns a new Blob object from a git Object
func NewBlob(o *Object) *Blob {
	return &Blob{
		rawObject: o,
	}
}

// IsPersisted returns whether the object has been written to the odb
func (b *Blob) IsPersisted() bool {
	return b.ID() != ginternals.NullOid
}

// ID returns the blob's ID
func (b *Blob) ID() ginternals.Oid {
	return b.rawObject.ID()
}

// Bytes returns the blob's contents
func (b *Blob) Bytes() []byte {
	return b.rawObject.Bytes()
}

// BytesCopy returns a copy of blob's contents
func (b *Blob) BytesCopy() []byte {
	content := b.rawObject.Bytes()
	out := make([]byte, len(content))
	copy(out, content)
	return out
}

// Size returns the size of the blob
func (b *Blob) Size() int {
	return b.rawObject.Size()
}

// ToObject returns the Blob's underlying Object
func (b *Blob) ToObject() *Object {
	return b.rawObject
}
