// Package grid is the 2-D cell space shared by agents and energy resources.
//
// The grid only stores references (entity id plus a capability tag); owners
// keep the entities themselves. Membership mirrors liveness: callers place an
// entity when it comes alive and remove it when it dies or depletes.
package grid

import (
	"cmp"
	"errors"
	"fmt"
	"slices"
)

var (
	ErrOutOfBounds   = errors.New("grid: position out of bounds")
	ErrAlreadyPlaced = errors.New("grid: entity already placed")
	ErrNotPlaced     = errors.New("grid: entity not placed")
)

type Pos struct {
	X int `json:"x"`
	Y int `json:"y"`
}

func (p Pos) String() string { return fmt.Sprintf("(%d,%d)", p.X, p.Y) }

// Kind is the capability tag of an occupant.
type Kind uint8

const (
	KindAgent Kind = iota + 1
	KindResource
)

func (k Kind) String() string {
	switch k {
	case KindAgent:
		return "agent"
	case KindResource:
		return "resource"
	default:
		return "unknown"
	}
}

type Entry struct {
	ID   uint64
	Kind Kind
}

type Grid struct {
	w, h  int
	torus bool

	cells [][]Entry
	where map[uint64]Pos
}

func New(width, height int, torus bool) (*Grid, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("grid: invalid size %dx%d", width, height)
	}
	return &Grid{
		w:     width,
		h:     height,
		torus: torus,
		cells: make([][]Entry, width*height),
		where: map[uint64]Pos{},
	}, nil
}

func (g *Grid) Width() int  { return g.w }
func (g *Grid) Height() int { return g.h }
func (g *Grid) Torus() bool { return g.torus }

// Len is the number of placed entities.
func (g *Grid) Len() int { return len(g.where) }

func (g *Grid) InBounds(p Pos) bool {
	return p.X >= 0 && p.X < g.w && p.Y >= 0 && p.Y < g.h
}

// Wrap maps p onto the grid. A torus always succeeds; a bounded grid only
// accepts in-bounds positions.
func (g *Grid) Wrap(p Pos) (Pos, bool) {
	if g.torus {
		return Pos{X: mod(p.X, g.w), Y: mod(p.Y, g.h)}, true
	}
	return p, g.InBounds(p)
}

// Clamp wraps on a torus and clamps to the edges on a bounded grid.
func (g *Grid) Clamp(p Pos) Pos {
	if g.torus {
		q, _ := g.Wrap(p)
		return q
	}
	return Pos{X: clamp(p.X, 0, g.w-1), Y: clamp(p.Y, 0, g.h-1)}
}

func (g *Grid) Place(e Entry, p Pos) error {
	if !g.InBounds(p) {
		return fmt.Errorf("%w: %s on %dx%d", ErrOutOfBounds, p, g.w, g.h)
	}
	if _, ok := g.where[e.ID]; ok {
		return fmt.Errorf("%w: id=%d", ErrAlreadyPlaced, e.ID)
	}
	i := g.index(p)
	cell := g.cells[i]
	j, _ := slices.BinarySearchFunc(cell, e.ID, byID)
	g.cells[i] = slices.Insert(cell, j, e)
	g.where[e.ID] = p
	return nil
}

func byID(e Entry, id uint64) int { return cmp.Compare(e.ID, id) }

// Remove is a no-op for entities that are not on the grid.
func (g *Grid) Remove(id uint64) {
	p, ok := g.where[id]
	if !ok {
		return
	}
	i := g.index(p)
	cell := g.cells[i]
	if j, found := slices.BinarySearchFunc(cell, id, byID); found {
		cell = slices.Delete(cell, j, j+1)
	}
	if len(cell) == 0 {
		cell = nil
	}
	g.cells[i] = cell
	delete(g.where, id)
}

// Move relocates a placed entity. On error the entity stays where it was.
func (g *Grid) Move(id uint64, p Pos) error {
	if !g.InBounds(p) {
		return fmt.Errorf("%w: %s on %dx%d", ErrOutOfBounds, p, g.w, g.h)
	}
	old, ok := g.where[id]
	if !ok {
		return fmt.Errorf("%w: id=%d", ErrNotPlaced, id)
	}
	if old == p {
		return nil
	}
	var kind Kind
	cell := g.cells[g.index(old)]
	if j, found := slices.BinarySearchFunc(cell, id, byID); found {
		kind = cell[j].Kind
	}
	g.Remove(id)
	return g.Place(Entry{ID: id, Kind: kind}, p)
}

func (g *Grid) PosOf(id uint64) (Pos, bool) {
	p, ok := g.where[id]
	return p, ok
}

// Occupants returns a copy of the entries at p, ordered by id. Cell order
// is a function of membership alone, so a world rebuilt from a snapshot
// sees the same neighbor order as the one that wrote it.
func (g *Grid) Occupants(p Pos) []Entry {
	if !g.InBounds(p) {
		return nil
	}
	cell := g.cells[g.index(p)]
	if len(cell) == 0 {
		return nil
	}
	out := make([]Entry, len(cell))
	copy(out, cell)
	return out
}

// Neighborhood returns the Moore neighborhood of p: all cells within
// Chebyshev distance radius. Cells are ordered by x offset then y offset.
// A bounded grid drops out-of-range cells; a torus wraps them and never
// reports a cell twice.
func (g *Grid) Neighborhood(p Pos, radius int, includeCenter bool) []Pos {
	if radius < 0 {
		return nil
	}
	side := 2*radius + 1
	out := make([]Pos, 0, side*side)
	var seen map[Pos]struct{}
	if g.torus && (side > g.w || side > g.h) {
		seen = make(map[Pos]struct{}, side*side)
	}
	for dx := -radius; dx <= radius; dx++ {
		for dy := -radius; dy <= radius; dy++ {
			if dx == 0 && dy == 0 && !includeCenter {
				continue
			}
			q, ok := g.Wrap(Pos{X: p.X + dx, Y: p.Y + dy})
			if !ok {
				continue
			}
			if seen != nil {
				if q == p && !includeCenter {
					continue
				}
				if _, dup := seen[q]; dup {
					continue
				}
				seen[q] = struct{}{}
			}
			out = append(out, q)
		}
	}
	return out
}

// Neighbors returns every entry occupying a cell of the neighborhood.
func (g *Grid) Neighbors(p Pos, radius int, includeCenter bool) []Entry {
	var out []Entry
	for _, q := range g.Neighborhood(p, radius, includeCenter) {
		out = append(out, g.cells[g.index(q)]...)
	}
	return out
}

// Distance is the Chebyshev distance, measured around the wrap on a torus.
func (g *Grid) Distance(a, b Pos) int {
	dx, dy := g.delta(a.X, b.X, g.w), g.delta(a.Y, b.Y, g.h)
	return max(abs(dx), abs(dy))
}

// StepToward moves one cell on each axis toward to, independently.
func (g *Grid) StepToward(from, to Pos) Pos {
	dx, dy := g.delta(from.X, to.X, g.w), g.delta(from.Y, to.Y, g.h)
	return g.Clamp(Pos{X: from.X + sign(dx), Y: from.Y + sign(dy)})
}

// Positions returns a copy of the id -> cell index.
func (g *Grid) Positions() map[uint64]Pos {
	out := make(map[uint64]Pos, len(g.where))
	for id, p := range g.where {
		out[id] = p
	}
	return out
}

func (g *Grid) delta(from, to, size int) int {
	d := to - from
	if !g.torus {
		return d
	}
	d = mod(d, size)
	if d > size/2 {
		d -= size
	}
	return d
}

func (g *Grid) index(p Pos) int { return p.Y*g.w + p.X }

func mod(a, m int) int {
	r := a % m
	if r < 0 {
		r += m
	}
	return r
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

func sign(v int) int {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	default:
		return 0
	}
}
