package entities

import "debug/elf"

// LibraryInfo summarizes the dynamic-linking view of a native library
type LibraryInfo struct {
	Path    string
	Soname  string
	Needed  []string
	Machine elf.Machine
	Class   elf.Class
}

// Declares reports whether the library lists dep as a dynamic dependency
func (i *LibraryInfo) Declares(dep string) bool {
	for _, n := range i.Needed {
		if n == dep {
			return true
		}
	}
	return false
}
