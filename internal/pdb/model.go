// Package pdb parses ATOM and HETATM records from PDB-format structure files
// into an ordered atom/residue model.
package pdb

// Position is a point in 3-D space.
type Position struct {
	X, Y, Z float64
}

// DistanceSq returns the squared Euclidean distance between two positions.
func DistanceSq(a, b Position) float64 {
	dx := a.X - b.X
	dy := a.Y - b.Y
	dz := a.Z - b.Z
	return dx*dx + dy*dy + dz*dz
}

// Atom is one coordinate record. Index is assigned sequentially across the
// whole molecule at parse time and is stable for the lifetime of the parse.
type Atom struct {
	Index   int
	Name    string
	Element string
	Pos     Position
	Residue *Residue
}

// Residue is a named group of atoms, for example one amino acid. Atoms are
// unique by name within a residue; a record reusing a name replaces the
// earlier atom in the residue while keeping its slot order.
type Residue struct {
	Name    string
	Chain   string
	SeqNum  int
	ICode   string
	atoms   []*Atom
	indexOf map[string]int
}

func newResidue(name, chain string, seqNum int, icode string) *Residue {
	return &Residue{
		Name:    name,
		Chain:   chain,
		SeqNum:  seqNum,
		ICode:   icode,
		indexOf: make(map[string]int),
	}
}

func (r *Residue) add(a *Atom) {
	a.Residue = r
	if i, ok := r.indexOf[a.Name]; ok {
		r.atoms[i] = a
		return
	}
	r.indexOf[a.Name] = len(r.atoms)
	r.atoms = append(r.atoms, a)
}

// Atom returns the residue's atom with the given name, or nil.
func (r *Residue) Atom(name string) *Atom {
	if i, ok := r.indexOf[name]; ok {
		return r.atoms[i]
	}
	return nil
}

// Atoms returns the residue's atoms in slot order.
func (r *Residue) Atoms() []*Atom {
	return r.atoms
}

// Molecule is a parsed structure: all atoms in record order with dense
// 0-based indices, grouped into residues in order of first appearance.
type Molecule struct {
	atoms    []*Atom
	residues []*Residue
}

// Atoms returns every parsed atom in record order.
func (m *Molecule) Atoms() []*Atom {
	return m.atoms
}

// Residues returns the molecule's residues in source order.
func (m *Molecule) Residues() []*Residue {
	return m.residues
}
