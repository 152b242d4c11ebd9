// Package bond derives a bond graph from a parsed molecule by pairwise
// distance comparison, with residue-level pruning to avoid the full
// quadratic atom cross-product on large structures.
package bond

import (
	"math"

	"github.com/sjando/jolecule/internal/pdb"
)

// Bond is an unordered pair of atom indices.
type Bond [2]int

// Cutoffs are compared against squared distances.
const (
	smallCutoffSq = 1.2 * 1.2 // either atom is hydrogen
	largeCutoffSq = 1.9 * 1.9
	pruneSq       = 64.0 // representatives more than 8 units apart
)

// Result holds the bonds in discovery order, the maximum representative
// separation seen across all residue pairs, and the number of atom-pair
// distance comparisons performed.
type Result struct {
	Bonds       []Bond
	MaxLength   float64
	Comparisons int
}

// Infer walks every residue pair (i, j) with i <= j. When both residues have
// a representative atom and the representatives sit strictly more than 8
// units apart, the pair's atom comparisons are skipped entirely; the maximum
// separation is still recorded first. Residue pairs where either side lacks
// a representative are always fully compared.
func Infer(mol *pdb.Molecule) Result {
	residues := mol.Residues()
	var (
		bonds []Bond
		maxSq float64
		comps int
	)
	for i := 0; i < len(residues); i++ {
		for j := i; j < len(residues); j++ {
			r1, r2 := residues[i], residues[j]
			c, d := representative(r1), representative(r2)
			if c != nil && d != nil {
				dSq := pdb.DistanceSq(c.Pos, d.Pos)
				if dSq > maxSq {
					maxSq = dSq
				}
				// Strict comparison: exactly 64 does not prune.
				if dSq > pruneSq {
					continue
				}
			}
			for _, a := range r1.Atoms() {
				for _, b := range r2.Atoms() {
					if a.Index == b.Index {
						continue
					}
					// The self pair iterates one residue as both sides, so
					// each unordered atom pair comes up twice; keep the
					// first ordering only.
					if i == j && a.Index > b.Index {
						continue
					}
					comps++
					cutoff := largeCutoffSq
					if a.Element == "H" || b.Element == "H" {
						cutoff = smallCutoffSq
					}
					if pdb.DistanceSq(a.Pos, b.Pos) < cutoff {
						bonds = append(bonds, Bond{a.Index, b.Index})
					}
				}
			}
		}
	}
	return Result{Bonds: bonds, MaxLength: math.Sqrt(maxSq), Comparisons: comps}
}

// representative picks the atom that stands in for a residue's position
// during pruning: CA when present, else C3', else none.
func representative(r *pdb.Residue) *pdb.Atom {
	if a := r.Atom("CA"); a != nil {
		return a
	}
	return r.Atom("C3'")
}
