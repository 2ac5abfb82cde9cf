// Package memory holds an agent's beliefs about energy resources.
//
// Records are stale snapshots: they are never linked to the live resource,
// and the reserve they imply is projected forward from the observation tick
// at read time.
package memory

import "github.com/Abhipanda4/Agent-Based-Modelling/internal/sim/grid"

type Record struct {
	Pos        grid.Pos `json:"pos"`
	Reserve    float64  `json:"reserve"`
	DecayRate  float64  `json:"decay_rate"`
	ObservedAt uint64   `json:"observed_at"`
}

// ReserveAt projects the recorded reserve to tick now at the recorded rate.
func (r Record) ReserveAt(now uint64) float64 {
	var elapsed float64
	if now > r.ObservedAt {
		elapsed = float64(now - r.ObservedAt)
	}
	return r.Reserve - elapsed*r.DecayRate
}

// Table is an ordered set of records keyed by position.
type Table struct {
	recs []Record
}

func (t *Table) Len() int { return len(t.recs) }

func (t *Table) Records() []Record {
	out := make([]Record, len(t.recs))
	copy(out, t.recs)
	return out
}

func (t *Table) Get(p grid.Pos) (Record, bool) {
	if i := t.find(p); i >= 0 {
		return t.recs[i], true
	}
	return Record{}, false
}

func (t *Table) Has(p grid.Pos) bool { return t.find(p) >= 0 }

// Upsert overwrites the record for r.Pos in place or appends it.
func (t *Table) Upsert(r Record) {
	if i := t.find(r.Pos); i >= 0 {
		t.recs[i] = r
		return
	}
	t.recs = append(t.recs, r)
}

// AddIfAbsent appends r unless its position is already known.
func (t *Table) AddIfAbsent(r Record) bool {
	if t.find(r.Pos) >= 0 {
		return false
	}
	t.recs = append(t.recs, r)
	return true
}

// Forget drops the record at p, keeping the order of the rest.
func (t *Table) Forget(p grid.Pos) bool {
	i := t.find(p)
	if i < 0 {
		return false
	}
	t.recs = append(t.recs[:i], t.recs[i+1:]...)
	return true
}

func (t *Table) Reset(recs []Record) {
	t.recs = t.recs[:0]
	for _, r := range recs {
		t.Upsert(r)
	}
}

func (t *Table) find(p grid.Pos) int {
	for i := range t.recs {
		if t.recs[i].Pos == p {
			return i
		}
	}
	return -1
}
