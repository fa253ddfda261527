package crdt

import (
	"github.com/cespare/xxhash"
	"github.com/google/uuid"
)

// Stamp is a write timestamp: a lamport clock reading plus the 64-bit id
// of the source replica. Stamps totally order all writes; the source id
// breaks lamport ties.
type Stamp struct {
	Time uint64
	Src  uint64
}

func (s Stamp) Less(o Stamp) bool {
	if s.Time != o.Time {
		return s.Time < o.Time
	}
	return s.Src < o.Src
}

func (s Stamp) IsZero() bool {
	return s.Time == 0 && s.Src == 0
}

func (s Stamp) zip() []byte {
	return ZipUint64Pair(s.Time, s.Src)
}

func unzipStamp(buf []byte) Stamp {
	t, src := UnzipUint64Pair(buf)
	return Stamp{Time: t, Src: src}
}

// NewSource mints a random 64-bit replica id.
func NewSource() uint64 {
	u := uuid.New()
	return xxhash.Sum64(u[:])
}
