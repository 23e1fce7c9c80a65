// Package modelling is the boundary-representation application hosted by
// the docket CLI: a single "brep" store holding a BRepModel, and the body
// actions that edit it.
package modelling

import (
	"fmt"
	"strings"

	"github.com/aretw0/docket/pkg/domain"
)

// StoreKey is the store holding the BRepModel.
const StoreKey = "brep"

// Cell is an open connected subset of its support geometry.
type Cell struct {
	Support string `json:"support"`
	Active  bool   `json:"active"`
}

// Cocell connects a cell (its star) to one of its boundary cells.
// Sense is 0 for internal boundaries, otherwise +1 or -1.
type Cocell struct {
	StarCell     int `json:"star_cell"`
	BoundaryCell int `json:"boundary_cell"`
	Sense        int `json:"sense"`
}

// Body is a pointset made of cells connected by cocells.
type Body struct {
	Name    string   `json:"name"`
	Cells   []Cell   `json:"cells"`
	Cocells []Cocell `json:"cocells"`
}

func (b Body) String() string {
	return fmt.Sprintf("Body(%q, cells=%d, cocells=%d)", b.Name, len(b.Cells), len(b.Cocells))
}

// BRepModel owns a list of bodies addressed by index. Removing a body
// shifts the indexes of every body after it.
type BRepModel struct {
	Bodies []Body `json:"bodies"`
}

var _ domain.Cloner = (*BRepModel)(nil)

// AddBody appends b and returns its index.
func (m *BRepModel) AddBody(b Body) int {
	m.Bodies = append(m.Bodies, b)
	return len(m.Bodies) - 1
}

// RemoveBody deletes the body at index.
func (m *BRepModel) RemoveBody(index int) error {
	if err := m.check(index); err != nil {
		return err
	}
	m.Bodies = append(m.Bodies[:index], m.Bodies[index+1:]...)
	return nil
}

// RenameBody sets the name of the body at index.
func (m *BRepModel) RenameBody(index int, name string) error {
	if err := m.check(index); err != nil {
		return err
	}
	m.Bodies[index].Name = name
	return nil
}

func (m *BRepModel) check(index int) error {
	if index < 0 || index >= len(m.Bodies) {
		return fmt.Errorf("%w: %d (have %d)", ErrNoSuchBody, index, len(m.Bodies))
	}
	return nil
}

func (m *BRepModel) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "BRepModel with %d bodies.", len(m.Bodies))
	for i, body := range m.Bodies {
		fmt.Fprintf(&b, " Body %d: %s", i, body)
	}
	return b.String()
}

func (m *BRepModel) Clone() domain.Model {
	out := &BRepModel{Bodies: make([]Body, len(m.Bodies))}
	for i, body := range m.Bodies {
		out.Bodies[i] = Body{
			Name:    body.Name,
			Cells:   append([]Cell(nil), body.Cells...),
			Cocells: append([]Cocell(nil), body.Cocells...),
		}
	}
	return out
}
