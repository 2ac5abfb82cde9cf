package world

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"math"
)

type hashWriter interface {
	Write(p []byte) (n int, err error)
}

// stateDigest hashes the full simulation state in scheduler order. Two
// worlds with equal digests at the same tick evolve identically.
func (w *World) stateDigest(nowTick uint64) string {
	h := sha256.New()
	var tmp [8]byte

	digestWriteU64(h, &tmp, nowTick)
	digestWriteU64(h, &tmp, uint64(w.cfg.Seed))
	digestWriteU64(h, &tmp, w.nextID)
	if st, err := w.rng.State(); err == nil {
		h.Write(st)
	}

	w.sched.Each(func(id uint64, e entity) {
		digestWriteU64(h, &tmp, id)
		switch {
		case e.agent != nil:
			w.digestAgent(h, &tmp, e.agent)
		case e.res != nil:
			r := e.res
			h.Write([]byte{'R'})
			digestWriteI64(h, &tmp, int64(r.Pos.X))
			digestWriteI64(h, &tmp, int64(r.Pos.Y))
			digestWriteF64(h, &tmp, r.Reserve)
			digestWriteF64(h, &tmp, r.DecayRate)
		}
	})
	return hex.EncodeToString(h.Sum(nil))
}

func (w *World) digestAgent(h hashWriter, tmp *[8]byte, a *Agent) {
	h.Write([]byte{'A', byte(a.Kind)})
	digestWriteI64(h, tmp, int64(a.Pos.X))
	digestWriteI64(h, tmp, int64(a.Pos.Y))
	digestWriteF64(h, tmp, a.Energy)
	digestWriteI64(h, tmp, int64(a.Age))
	h.Write([]byte{boolByte(a.HasTarget)})
	digestWriteI64(h, tmp, int64(a.Target.X))
	digestWriteI64(h, tmp, int64(a.Target.Y))
	digestWriteF64(h, tmp, a.LivingCost)
	digestWriteF64(h, tmp, a.ShareProb)

	recs := a.Memory.Records()
	digestWriteU64(h, tmp, uint64(len(recs)))
	for _, r := range recs {
		digestWriteI64(h, tmp, int64(r.Pos.X))
		digestWriteI64(h, tmp, int64(r.Pos.Y))
		digestWriteF64(h, tmp, r.Reserve)
		digestWriteF64(h, tmp, r.DecayRate)
		digestWriteU64(h, tmp, r.ObservedAt)
	}

	if ex := a.Explorer; ex != nil {
		h.Write([]byte{byte(ex.Drift), boolByte(ex.MineMode), boolByte(ex.ReturningToBase)})
		digestWriteI64(h, tmp, int64(ex.BoundarySteps))
		digestWriteI64(h, tmp, int64(ex.CycleRate))
	}
	if ex := a.Exploiter; ex != nil {
		h.Write([]byte{boolByte(ex.AtBase), boolByte(ex.Exploiting)})
		digestWriteF64(h, tmp, ex.StaticCost)
		digestWriteF64(h, tmp, ex.EnergyShareProb)
	}
}

func digestWriteU64(h hashWriter, tmp *[8]byte, v uint64) {
	binary.LittleEndian.PutUint64(tmp[:], v)
	h.Write(tmp[:])
}

func digestWriteI64(h hashWriter, tmp *[8]byte, v int64) {
	digestWriteU64(h, tmp, uint64(v))
}

func digestWriteF64(h hashWriter, tmp *[8]byte, v float64) {
	digestWriteU64(h, tmp, math.Float64bits(v))
}

func boolByte(b bool) byte {
	if b {
		return 1
	}
	return 0
}

// StateDigest returns the digest of the current state at the last
// completed tick.
func (w *World) StateDigest() string {
	t := w.tick.Load()
	if t > 0 {
		t--
	}
	return w.stateDigest(t)
}
