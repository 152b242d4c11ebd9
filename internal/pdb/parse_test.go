package pdb

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	pkgerrors "github.com/sjando/jolecule/pkg/errors"
)

// atomLine formats one fixed-column ATOM/HETATM record.
func atomLine(record string, serial int, name, resName, chain string, resSeq int, x, y, z float64, element string) string {
	padded := name
	if len(padded) < 4 {
		padded = fmt.Sprintf(" %-3s", padded)
	}
	return fmt.Sprintf("%-6s%5d %-4s %-3s %1s%4d    %8.3f%8.3f%8.3f%6.2f%6.2f          %2s",
		record, serial, padded, resName, chain, resSeq, x, y, z, 1.0, 0.0, element)
}

func TestFilterAtomLines(t *testing.T) {
	text := strings.Join([]string{
		"HEADER    HYDROLASE",
		atomLine("ATOM", 1, "N", "ALA", "A", 1, 11.104, 6.134, -6.504, "N"),
		"TER",
		atomLine("HETATM", 2, "O", "HOH", "A", 2, 1.0, 2.0, 3.0, "O"),
		"ENDMDL",
		atomLine("ATOM", 3, "CA", "GLY", "A", 3, 0.0, 0.0, 0.0, "C"),
	}, "\n")

	lines := FilterAtomLines(text)
	if len(lines) != 2 {
		t.Fatalf("expected 2 kept lines, got %d", len(lines))
	}
	if !strings.HasPrefix(lines[0], "ATOM") {
		t.Errorf("first kept line should be the ATOM record, got %q", lines[0])
	}
	if !strings.HasPrefix(lines[1], "HETATM") {
		t.Errorf("second kept line should be the HETATM record, got %q", lines[1])
	}
}

func TestFilterAtomLinesStripsCarriageReturns(t *testing.T) {
	raw := atomLine("ATOM", 1, "CA", "ALA", "A", 1, 1.0, 2.0, 3.0, "C")
	lines := FilterAtomLines(raw + "\r\n" + "END\r\n")
	if len(lines) != 1 {
		t.Fatalf("expected 1 kept line, got %d", len(lines))
	}
	if strings.ContainsRune(lines[0], '\r') {
		t.Errorf("carriage return not stripped: %q", lines[0])
	}
	if lines[0] != raw {
		t.Errorf("record content altered:\nwant %q\ngot  %q", raw, lines[0])
	}
}

func TestParseAssignsDenseIndices(t *testing.T) {
	lines := []string{
		atomLine("ATOM", 1, "N", "ALA", "A", 1, 0.0, 0.0, 0.0, "N"),
		atomLine("ATOM", 2, "CA", "ALA", "A", 1, 1.5, 0.0, 0.0, "C"),
		atomLine("ATOM", 3, "C", "ALA", "A", 1, 2.0, 1.0, 0.0, "C"),
		atomLine("ATOM", 4, "N", "GLY", "A", 2, 3.0, 1.5, 0.0, "N"),
		atomLine("ATOM", 5, "CA", "GLY", "A", 2, 4.0, 2.0, 0.0, "C"),
	}
	mol, err := Parse(lines)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}

	atoms := mol.Atoms()
	if len(atoms) != 5 {
		t.Fatalf("expected 5 atoms, got %d", len(atoms))
	}
	for i, a := range atoms {
		if a.Index != i {
			t.Errorf("atom %d has index %d", i, a.Index)
		}
		if a.Residue == nil {
			t.Errorf("atom %d has no owning residue", i)
		}
	}

	residues := mol.Residues()
	if len(residues) != 2 {
		t.Fatalf("expected 2 residues, got %d", len(residues))
	}
	if residues[0].Name != "ALA" || residues[1].Name != "GLY" {
		t.Errorf("unexpected residue names: %s, %s", residues[0].Name, residues[1].Name)
	}
	if got := len(residues[0].Atoms()); got != 3 {
		t.Errorf("first residue should have 3 atoms, got %d", got)
	}
}

func TestParseResidueLookup(t *testing.T) {
	lines := []string{
		atomLine("ATOM", 1, "N", "ALA", "A", 1, 0.0, 0.0, 0.0, "N"),
		atomLine("ATOM", 2, "CA", "ALA", "A", 1, 1.5, 0.0, 0.0, "C"),
	}
	mol, err := Parse(lines)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	res := mol.Residues()[0]
	ca := res.Atom("CA")
	if ca == nil {
		t.Fatal("expected CA lookup to succeed")
	}
	if ca.Index != 1 {
		t.Errorf("CA should be atom 1, got %d", ca.Index)
	}
	if res.Atom("OXT") != nil {
		t.Error("lookup of absent atom should return nil")
	}
}

func TestParseDuplicateNameReplacesSlot(t *testing.T) {
	lines := []string{
		atomLine("ATOM", 1, "CA", "ALA", "A", 1, 0.0, 0.0, 0.0, "C"),
		atomLine("ATOM", 2, "CB", "ALA", "A", 1, 1.0, 0.0, 0.0, "C"),
		atomLine("ATOM", 3, "CA", "ALA", "A", 1, 2.0, 0.0, 0.0, "C"),
	}
	mol, err := Parse(lines)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if len(mol.Atoms()) != 3 {
		t.Fatalf("all records should be kept in the molecule, got %d", len(mol.Atoms()))
	}
	res := mol.Residues()[0]
	if got := len(res.Atoms()); got != 2 {
		t.Fatalf("residue should hold 2 named slots, got %d", got)
	}
	// Later record wins the name, slot order is preserved.
	if res.Atoms()[0].Index != 2 {
		t.Errorf("first slot should hold the replacing atom (index 2), got %d", res.Atoms()[0].Index)
	}
	if res.Atom("CA").Index != 2 {
		t.Errorf("CA lookup should return the later atom, got index %d", res.Atom("CA").Index)
	}
}

func TestParseResidueBoundaries(t *testing.T) {
	lines := []string{
		atomLine("ATOM", 1, "CA", "ALA", "A", 1, 0.0, 0.0, 0.0, "C"),
		atomLine("ATOM", 2, "CA", "GLY", "A", 2, 1.0, 0.0, 0.0, "C"),
		atomLine("ATOM", 3, "CA", "SER", "B", 2, 2.0, 0.0, 0.0, "C"),
		atomLine("HETATM", 4, "O", "HOH", "B", 3, 3.0, 0.0, 0.0, "O"),
	}
	mol, err := Parse(lines)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	residues := mol.Residues()
	if len(residues) != 4 {
		t.Fatalf("expected 4 residues, got %d", len(residues))
	}
	if residues[2].Chain != "B" {
		t.Errorf("third residue should be on chain B, got %q", residues[2].Chain)
	}
}

func TestParseMalformedCoordinate(t *testing.T) {
	line := atomLine("ATOM", 1, "CA", "ALA", "A", 1, 0.0, 0.0, 0.0, "C")
	broken := line[:30] + "  xx.xxx" + line[38:]
	_, err := Parse([]string{broken})
	if err == nil {
		t.Fatal("expected error for unparseable coordinate")
	}
	if !errors.Is(err, pkgerrors.ErrMalformedRecord) {
		t.Errorf("expected ErrMalformedRecord, got %v", err)
	}
}

func TestParseShortLine(t *testing.T) {
	_, err := Parse([]string{"ATOM      1  CA  ALA A   1"})
	if err == nil {
		t.Fatal("expected error for truncated record")
	}
	if !errors.Is(err, pkgerrors.ErrMalformedRecord) {
		t.Errorf("expected ErrMalformedRecord, got %v", err)
	}
}

func TestElementFallbackFromName(t *testing.T) {
	full := atomLine("ATOM", 1, "1HB2", "ALA", "A", 1, 0.0, 0.0, 0.0, "")
	truncated := full[:54]
	mol, err := Parse([]string{truncated})
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if got := mol.Atoms()[0].Element; got != "H" {
		t.Errorf("expected element H from name 1HB2, got %q", got)
	}

	ca := atomLine("ATOM", 2, "CA", "ALA", "A", 1, 0.0, 0.0, 0.0, "")[:54]
	mol, err = Parse([]string{ca})
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if got := mol.Atoms()[0].Element; got != "C" {
		t.Errorf("expected element C from name CA, got %q", got)
	}
}

func TestParseUsesElementColumn(t *testing.T) {
	// Name-based derivation would say carbon; the element column says calcium.
	line := atomLine("HETATM", 1, "CA", "CA", "A", 90, 0.0, 0.0, 0.0, "CA")
	mol, err := Parse([]string{line})
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if got := mol.Atoms()[0].Element; got != "CA" {
		t.Errorf("expected element CA from element column, got %q", got)
	}
}

func TestDistanceSq(t *testing.T) {
	a := Position{X: 1, Y: 2, Z: 3}
	b := Position{X: 4, Y: 6, Z: 3}
	if got := DistanceSq(a, b); got != 25.0 {
		t.Errorf("expected 25.0, got %v", got)
	}
}
