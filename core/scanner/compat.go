package scanner

import "strings"

// conflictGroups are cargo families that must never share a truck. A cargo
// type belongs to a group when its text contains one of the group's keywords,
// case-insensitively.
var conflictGroups = [2][]string{
	{"food", "pharma"},
	{"chemicals", "hazardous"},
}

// CargoCompatible reports whether two cargo types may ride together. The
// relation is symmetric: a pair is rejected when the two types fall into
// opposing conflict groups.
func CargoCompatible(a, b string) bool {
	aIn0, aIn1 := inGroup(a, 0), inGroup(a, 1)
	bIn0, bIn1 := inGroup(b, 0), inGroup(b, 1)
	if aIn0 && bIn1 {
		return false
	}
	if aIn1 && bIn0 {
		return false
	}
	return true
}

// routesCompatible checks every cross pair of cargo types between two
// delivery sets.
func routesCompatible(a, b []string) bool {
	for _, ta := range a {
		for _, tb := range b {
			if !CargoCompatible(ta, tb) {
				return false
			}
		}
	}
	return true
}

func inGroup(cargoType string, group int) bool {
	lower := strings.ToLower(cargoType)
	for _, kw := range conflictGroups[group] {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}
