// Package benchmark contains Go benchmarks for the structure pipeline:
// record filtering, parsing, bond inference, artifact rendering, and the
// chunk codec, measuring throughput and allocation behaviour.
package benchmark

import (
	"fmt"
	"strings"
	"testing"

	"github.com/sjando/jolecule/internal/pdb"
	"github.com/sjando/jolecule/internal/structure/bond"
)

// syntheticStructure builds a PDB file of n alanine-like residues along a
// straight chain, five atoms each, with realistic bond distances so inference
// finds intra-residue and peptide bonds.
func syntheticStructure(n int) string {
	names := []string{"N", "CA", "C", "O", "CB"}
	offsets := [][3]float64{
		{-0.5, 1.4, 0.0},
		{0.0, 0.0, 0.0},
		{1.5, 0.0, 0.0},
		{2.1, 1.1, 0.0},
		{-0.4, -1.4, 0.5},
	}

	var b strings.Builder
	serial := 1
	for i := 0; i < n; i++ {
		base := float64(i) * 3.8
		for k, name := range names {
			padded := name
			if len(padded) < 4 {
				padded = fmt.Sprintf(" %-3s", padded)
			}
			fmt.Fprintf(&b, "ATOM  %5d %-4s %-3s %1s%4d    %8.3f%8.3f%8.3f%6.2f%6.2f          %2s\n",
				serial, padded, "ALA", "A", i+1,
				base+offsets[k][0], offsets[k][1], offsets[k][2],
				1.0, 0.0, name[:1])
			serial++
		}
	}
	b.WriteString("END\n")
	return b.String()
}

// BenchmarkFilterAtomLines measures record filtering throughput on raw
// structure file text.
func BenchmarkFilterAtomLines(b *testing.B) {
	text := syntheticStructure(500)
	b.ReportAllocs()
	b.SetBytes(int64(len(text)))
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		lines := pdb.FilterAtomLines(text)
		_ = lines
	}
}

// BenchmarkParse measures fixed-column record parsing into the molecule
// model.
func BenchmarkParse(b *testing.B) {
	lines := pdb.FilterAtomLines(syntheticStructure(500))
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		mol, err := pdb.Parse(lines)
		if err != nil {
			b.Fatal(err)
		}
		_ = mol
	}
}

// BenchmarkInferBonds measures bond inference at various structure sizes.
// Residue-pair pruning keeps the cost near-linear for chain geometries.
func BenchmarkInferBonds(b *testing.B) {
	sizes := []int{10, 100, 500, 2000}
	for _, size := range sizes {
		b.Run(fmt.Sprintf("residues_%d", size), func(b *testing.B) {
			mol, err := pdb.Parse(pdb.FilterAtomLines(syntheticStructure(size)))
			if err != nil {
				b.Fatal(err)
			}
			b.ReportAllocs()
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				res := bond.Infer(mol)
				_ = res
			}
		})
	}
}

// BenchmarkInferBondsParallel measures concurrent inference throughput, the
// shape of the load when many structures are derived at once.
func BenchmarkInferBondsParallel(b *testing.B) {
	mol, err := pdb.Parse(pdb.FilterAtomLines(syntheticStructure(200)))
	if err != nil {
		b.Fatal(err)
	}
	b.ReportAllocs()
	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			res := bond.Infer(mol)
			_ = res
		}
	})
}
