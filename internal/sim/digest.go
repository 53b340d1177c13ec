package sim

import (
	"encoding/binary"
	"hash/fnv"
	"math"
)

// StateDigest returns an FNV-64a digest over the authoritative state
// arrays in index order. Two runs that replayed the same command sequence
// must produce identical digests; the replay tool compares them to verify
// the determinism contract.
func (c *Coordinator) StateDigest() uint64 {
	h := fnv.New64a()
	var buf [8]byte

	writeFloat := func(f float64) {
		binary.LittleEndian.PutUint64(buf[:], math.Float64bits(f))
		h.Write(buf[:])
	}
	writeUint := func(u uint64) {
		binary.LittleEndian.PutUint64(buf[:], u)
		h.Write(buf[:])
	}
	writeBool := func(b bool) {
		if b {
			h.Write([]byte{1})
		} else {
			h.Write([]byte{0})
		}
	}

	for i := 0; i < c.resources.Len(); i++ {
		rec := c.resources.Record(i)
		h.Write([]byte(rec.ID))
		writeFloat(rec.Amount)
		writeBool(rec.Unlocked)
		writeBool(rec.Visible)
	}
	for i := 0; i < c.generators.Len(); i++ {
		rec := c.generators.Record(i)
		h.Write([]byte(rec.ID))
		writeUint(uint64(rec.Owned))
		writeBool(rec.Enabled)
		writeUint(rec.NextPurchaseReadyAtStep)
	}
	for i := 0; i < c.upgrades.Len(); i++ {
		rec := c.upgrades.Record(i)
		h.Write([]byte(rec.ID))
		writeUint(uint64(rec.Purchases))
		writeUint(uint64(rec.Status))
	}
	writeUint(c.lastProcessedStep)
	return h.Sum64()
}
