package geometry

import (
	"fmt"
	"math"
)

// MergeWithPairing сливает грань парного ребра в грань ребра e. Ребро и его
// пара удаляются, петли сшиваются, плоскость пересчитывается методом Ньюэлла.
// После слияния рекурсивно устраняется двойная смежность: два соседних ребра
// грани, чьи пары лежат в одной и той же грани.
func (m *Mesh) MergeWithPairing(e EdgeID, eps float64) error {
	if !m.EdgeAlive(e) {
		return fmt.Errorf("merge edge %d: %w", e, ErrDeadEdge)
	}

	p := m.edges[e].Pair
	f := m.edges[e].Face
	g := m.edges[p].Face
	if f == g {
		return fmt.Errorf("merge edge %d: %w", e, ErrSelfMerge)
	}

	prevFromCurrent := m.edges[p].Prev
	prevConnection := m.edges[e].Next
	nextFromCurrent := m.edges[p].Next
	nextConnection := m.edges[e].Prev

	m.link(prevFromCurrent, prevConnection)
	m.link(nextConnection, nextFromCurrent)

	m.killEdge(e)
	m.killEdge(p)
	m.killFace(g)

	m.faces[f].Start = prevFromCurrent
	m.refreshFace(f)

	m.repairDoubleAdjacency(f, eps)
	return nil
}

// findDoubleAdjacent ищет пару соседних ребер грани f, граничащих с одной гранью
func (m *Mesh) findDoubleAdjacent(f FaceID) (EdgeID, EdgeID, bool) {
	first, second := InvalidEdge, InvalidEdge
	m.ForEachEdge(f, func(e EdgeID) bool {
		n := m.edges[e].Next
		if m.edges[m.edges[e].Pair].Face == m.edges[m.edges[n].Pair].Face {
			first, second = e, n
			return false
		}
		return true
	})
	return first, second, first != InvalidEdge
}

func (m *Mesh) repairDoubleAdjacency(f FaceID, eps float64) {
	for m.FaceAlive(f) {
		e, n, found := m.findDoubleAdjacent(f)
		if !found {
			return
		}

		h := m.edges[m.edges[e].Pair].Face
		if m.FaceEdgeCount(h) == 3 || m.FaceEdgeCount(f) == 3 || m.coplanar(f, h, eps) {
			m.absorbFace(f, e, n)
			continue
		}

		m.collapseVertex(e, n)
		m.repairDoubleAdjacency(h, eps)
	}
}

// absorbFace вливает соседнюю грань h в f по двум последовательным ребрам e -> n
func (m *Mesh) absorbFace(f FaceID, e, n EdgeID) {
	pe := m.edges[e].Pair
	pn := m.edges[n].Pair
	h := m.edges[pe].Face

	prevE := m.edges[e].Prev
	nextN := m.edges[n].Next
	hAfter := m.edges[pe].Next
	hBefore := m.edges[pn].Prev

	m.link(prevE, hAfter)
	m.link(hBefore, nextN)

	m.killEdge(e)
	m.killEdge(n)
	m.killEdge(pe)
	m.killEdge(pn)
	m.killFace(h)

	m.faces[f].Start = prevE
	m.refreshFace(f)
}

// collapseVertex убирает вершину валентности 2 между ребрами e и n,
// заменяя две пары ребер одной
func (m *Mesh) collapseVertex(e, n EdgeID) {
	f := m.edges[e].Face
	pe := m.edges[e].Pair
	pn := m.edges[n].Pair
	h := m.edges[pe].Face

	m.link(e, m.edges[n].Next)
	m.link(pn, m.edges[pe].Next)

	m.edges[e].Pair = pn
	m.edges[pn].Pair = e

	if m.faces[f].Start == n {
		m.faces[f].Start = e
	}
	if m.faces[h].Start == pe {
		m.faces[h].Start = pn
	}

	m.killEdge(n)
	m.killEdge(pe)

	m.refreshFace(f)
	m.refreshFace(h)
}

// coplanar проверяет, что грани смотрят в одну сторону и все вершины каждой
// лежат в плоскости другой с точностью eps
func (m *Mesh) coplanar(f, g FaceID, eps float64) bool {
	nf := m.faces[f].Normal
	ng := m.faces[g].Normal
	if nf.Dot(ng) < 1-eps {
		return false
	}

	inPlane := func(face, other FaceID) bool {
		ok := true
		m.ForEachEdge(other, func(e EdgeID) bool {
			if math.Abs(m.PlaneDistance(face, m.Origin(e))) > eps {
				ok = false
			}
			return ok
		})
		return ok
	}
	return inPlane(f, g) && inPlane(g, f)
}

// mergeCoplanarFaces сливает соседние компланарные грани до стабилизации
func (m *Mesh) mergeCoplanarFaces(eps float64) error {
	for changed := true; changed; {
		changed = false
		for i := range m.faces {
			f := FaceID(i)
			if !m.faces[i].alive {
				continue
			}

			candidate := InvalidEdge
			m.ForEachEdge(f, func(e EdgeID) bool {
				g := m.edges[m.edges[e].Pair].Face
				if g != f && m.coplanar(f, g, eps) {
					candidate = e
					return false
				}
				return true
			})

			if candidate == InvalidEdge {
				continue
			}
			if err := m.MergeWithPairing(candidate, eps); err != nil {
				return err
			}
			changed = true
		}
	}
	return nil
}
