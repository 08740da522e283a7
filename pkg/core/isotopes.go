package core

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/tidwall/btree"
)

// IsotopeEntry is one reference peak: nominal mass in Da, element and isotope label.
type IsotopeEntry struct {
	Mass   float64
	Symbol string // Element symbol (e.g., "Al")
	Label  string // Isotope label (e.g., "27Al")
}

// IsotopeTable stores reference isotopes ordered by mass. A mass appears at
// most once; adding an entry with an existing mass replaces it.
type IsotopeTable struct {
	entries *btree.BTreeG[IsotopeEntry]
}

func byMass(a, b IsotopeEntry) bool {
	return a.Mass < b.Mass
}

// NewIsotopeTable creates an empty isotope table
func NewIsotopeTable() *IsotopeTable {
	return &IsotopeTable{
		entries: btree.NewBTreeG(byMass),
	}
}

// Add adds or replaces the entry for a mass
func (t *IsotopeTable) Add(mass float64, symbol, label string) {
	t.entries.Set(IsotopeEntry{Mass: mass, Symbol: symbol, Label: label})
}

// Lookup returns the entry stored at exactly this mass
func (t *IsotopeTable) Lookup(mass float64) (IsotopeEntry, bool) {
	return t.entries.Get(IsotopeEntry{Mass: mass})
}

// Len returns the number of entries
func (t *IsotopeTable) Len() int {
	return t.entries.Len()
}

// Entries returns all entries in ascending mass order.
func (t *IsotopeTable) Entries() []IsotopeEntry {
	return t.entries.Items()
}

// Between returns entries with lo <= mass <= hi in ascending order.
func (t *IsotopeTable) Between(lo, hi float64) []IsotopeEntry {
	var out []IsotopeEntry
	t.entries.Ascend(IsotopeEntry{Mass: lo}, func(e IsotopeEntry) bool {
		if e.Mass > hi {
			return false
		}
		out = append(out, e)
		return true
	})
	return out
}

// LoadFromCSV loads isotopes from a CSV file (format: mass,symbol,label).
// The first line is a header. A missing label defaults to "<mass><symbol>".
func (t *IsotopeTable) LoadFromCSV(r io.Reader) error {
	scanner := bufio.NewScanner(r)

	// Skip header line
	scanner.Scan()

	lineNum := 1
	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		parts := strings.Split(line, ",")
		if len(parts) < 2 {
			return fmt.Errorf("line %d: invalid format, expected at least 2 comma-separated fields", lineNum)
		}

		massStr := strings.TrimSpace(parts[0])
		mass, err := strconv.ParseFloat(massStr, 64)
		if err != nil {
			return fmt.Errorf("line %d: invalid mass value '%s': %w", lineNum, massStr, err)
		}
		if mass <= 0 {
			return fmt.Errorf("line %d: mass must be positive, got %g", lineNum, mass)
		}

		symbol := strings.TrimSpace(parts[1])
		if symbol == "" {
			return fmt.Errorf("line %d: empty element symbol", lineNum)
		}

		label := fmt.Sprintf("%d%s", int(mass), symbol)
		if len(parts) > 2 && strings.TrimSpace(parts[2]) != "" {
			label = strings.TrimSpace(parts[2])
		}

		t.Add(mass, symbol, label)
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("error reading CSV: %w", err)
	}

	return nil
}

// DefaultIsotopeTable returns the built-in reference table of singly charged
// isotopes at nominal mass. Where isotopes of two elements share a nominal
// mass, the more abundant one owns the entry.
func DefaultIsotopeTable() *IsotopeTable {
	t := NewIsotopeTable()

	for _, iso := range []struct {
		mass   float64
		symbol string
	}{
		{1, "H"}, {2, "H"},
		{10, "B"}, {11, "B"},
		{12, "C"}, {13, "C"},
		{14, "N"}, {15, "N"},
		{16, "O"}, {17, "O"}, {18, "O"},
		{19, "F"},
		{23, "Na"},
		{24, "Mg"}, {25, "Mg"}, {26, "Mg"},
		{27, "Al"},
		{28, "Si"}, {29, "Si"}, {30, "Si"},
		{31, "P"},
		{32, "S"}, {33, "S"}, {34, "S"},
		{35, "Cl"}, {37, "Cl"},
		{39, "K"}, {41, "K"},
		{40, "Ca"}, {42, "Ca"}, {43, "Ca"}, {44, "Ca"},
		{45, "Sc"},
		{46, "Ti"}, {47, "Ti"}, {48, "Ti"}, {49, "Ti"},
		{50, "Cr"}, {52, "Cr"}, {53, "Cr"},
		{51, "V"},
		{54, "Fe"}, {56, "Fe"}, {57, "Fe"},
		{55, "Mn"},
		{58, "Ni"}, {60, "Ni"}, {61, "Ni"}, {62, "Ni"},
		{59, "Co"},
		{63, "Cu"}, {65, "Cu"},
		{64, "Zn"}, {66, "Zn"}, {67, "Zn"}, {68, "Zn"},
		{69, "Ga"}, {71, "Ga"},
		{70, "Ge"}, {72, "Ge"}, {73, "Ge"}, {74, "Ge"},
		{75, "As"},
		{92, "Mo"}, {94, "Mo"}, {95, "Mo"}, {97, "Mo"}, {98, "Mo"},
		{96, "Ru"}, {99, "Ru"}, {100, "Ru"}, {101, "Ru"}, {102, "Ru"}, {104, "Ru"},
		{103, "Rh"},
		{105, "Pd"}, {106, "Pd"}, {108, "Pd"}, {110, "Pd"},
		{107, "Ag"}, {109, "Ag"},
		{112, "Cd"}, {111, "Cd"}, {114, "Cd"},
		{113, "In"}, {115, "In"},
		{116, "Sn"}, {117, "Sn"}, {118, "Sn"}, {119, "Sn"}, {120, "Sn"},
		{121, "Sb"}, {123, "Sb"},
		{122, "Te"}, {124, "Sn"},
	} {
		t.Add(iso.mass, iso.symbol, fmt.Sprintf("%d%s", int(iso.mass), iso.symbol))
	}

	return t
}
