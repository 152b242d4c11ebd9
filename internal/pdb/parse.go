package pdb

import (
	"strconv"
	"strings"

	pkgerrors "github.com/sjando/jolecule/pkg/errors"
)

// Fixed column ranges of ATOM and HETATM records (0-based, half-open).
const (
	colNameStart    = 12
	colNameEnd      = 16
	colResNameStart = 17
	colResNameEnd   = 20
	colChain        = 21
	colSeqStart     = 22
	colSeqEnd       = 26
	colICode        = 26
	colXStart       = 30
	colYStart       = 38
	colZStart       = 46
	colZEnd         = 54
	colElemStart    = 76
	colElemEnd      = 78
)

// FilterAtomLines returns the ATOM and HETATM lines of a structure file,
// stopping at the first ENDMDL record. Line terminators are stripped; the
// record content is kept verbatim.
func FilterAtomLines(text string) []string {
	var kept []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSuffix(line, "\r")
		if strings.HasPrefix(line, "ATOM") || strings.HasPrefix(line, "HETATM") {
			kept = append(kept, line)
		}
		if strings.HasPrefix(line, "ENDMDL") {
			break
		}
	}
	return kept
}

// Parse builds a Molecule from pre-filtered atom record lines. Atom indices
// are assigned densely in line order. Consecutive records sharing a
// (chain, sequence number, insertion code) key form one residue.
func Parse(lines []string) (*Molecule, error) {
	mol := &Molecule{}
	var cur *Residue
	for n, line := range lines {
		if len(line) < colZEnd {
			return nil, pkgerrors.Newf(pkgerrors.ErrMalformedRecord, 400,
				"record %d: line too short (%d chars)", n+1, len(line))
		}

		x, err := parseCoord(line[colXStart:colYStart])
		if err != nil {
			return nil, pkgerrors.Newf(pkgerrors.ErrMalformedRecord, 400,
				"record %d: bad x coordinate %q", n+1, strings.TrimSpace(line[colXStart:colYStart]))
		}
		y, err := parseCoord(line[colYStart:colZStart])
		if err != nil {
			return nil, pkgerrors.Newf(pkgerrors.ErrMalformedRecord, 400,
				"record %d: bad y coordinate %q", n+1, strings.TrimSpace(line[colYStart:colZStart]))
		}
		z, err := parseCoord(line[colZStart:colZEnd])
		if err != nil {
			return nil, pkgerrors.Newf(pkgerrors.ErrMalformedRecord, 400,
				"record %d: bad z coordinate %q", n+1, strings.TrimSpace(line[colZStart:colZEnd]))
		}

		seqField := strings.TrimSpace(line[colSeqStart:colSeqEnd])
		seqNum, err := strconv.Atoi(seqField)
		if err != nil {
			return nil, pkgerrors.Newf(pkgerrors.ErrMalformedRecord, 400,
				"record %d: bad residue number %q", n+1, seqField)
		}

		name := strings.TrimSpace(line[colNameStart:colNameEnd])
		resName := strings.TrimSpace(line[colResNameStart:colResNameEnd])
		chain := string(line[colChain])
		icode := strings.TrimSpace(string(line[colICode]))

		atom := &Atom{
			Index:   len(mol.atoms),
			Name:    name,
			Element: elementOf(line, name),
			Pos:     Position{X: x, Y: y, Z: z},
		}

		if cur == nil || cur.Chain != chain || cur.SeqNum != seqNum || cur.ICode != icode {
			cur = newResidue(resName, chain, seqNum, icode)
			mol.residues = append(mol.residues, cur)
		}
		cur.add(atom)
		mol.atoms = append(mol.atoms, atom)
	}
	return mol, nil
}

func parseCoord(field string) (float64, error) {
	return strconv.ParseFloat(strings.TrimSpace(field), 64)
}

// elementOf reads the element symbol column when present, falling back to
// deriving it from the atom name (leading digits dropped, first letter kept,
// so "1HB2" is hydrogen and "CA" is carbon).
func elementOf(line, name string) string {
	if len(line) >= colElemEnd {
		if e := strings.TrimSpace(line[colElemStart:colElemEnd]); e != "" {
			return strings.ToUpper(e)
		}
	}
	for _, c := range name {
		if c >= 'A' && c <= 'Z' {
			return string(c)
		}
		if c >= 'a' && c <= 'z' {
			return strings.ToUpper(string(c))
		}
	}
	return ""
}
