package annotator

import "strings"

// Species is a label a reviewer can assign to a box.
type Species string

const (
	Kauris    Species = "kauris"
	Peura     Species = "peura"
	Janis     Species = "janis"
	Linnut    Species = "linnut"
	Supikoira Species = "supikoira"
	Kettu     Species = "kettu"
	Ihminen   Species = "ihminen"
	Koira     Species = "koira"
	Muu       Species = "muu"
)

// DefaultSpecies is the label set in class-id order.
var DefaultSpecies = []Species{Kauris, Peura, Janis, Linnut, Supikoira, Kettu, Ihminen, Koira, Muu}

func (s Species) String() string { return string(s) }

// Valid reports whether s is one of the labels in set.
func (s Species) Valid(set []Species) bool {
	for _, c := range set {
		if c == s {
			return true
		}
	}
	return false
}

// ParseSpecies normalizes a label typed by hand or read from a config file.
func ParseSpecies(s string) Species {
	return Species(strings.ToLower(strings.TrimSpace(s)))
}

// ClassID returns the position of s in set, or -1.
func ClassID(set []Species, s Species) int {
	for i, c := range set {
		if c == s {
			return i
		}
	}
	return -1
}
