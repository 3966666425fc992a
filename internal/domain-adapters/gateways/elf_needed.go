package gateways

import (
	"bytes"
	"debug/elf"
	"fmt"
	"os"

	"github.com/ochairo/jnirepair/internal/domain/failures"
)

// removeNeeded deletes every DT_NEEDED entry naming dep from the dynamic
// section of the library at path, in place. Later entries move up one slot
// and the freed slots at the end become DT_NULL. Nothing else in the file is
// touched.
func removeNeeded(path, dep string) error {
	//nolint:gosec // G304: path is the pipeline's working copy of the library
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return fmt.Errorf("failed to open library: %w", err)
	}
	//nolint:errcheck // Defer close; WriteAt errors are checked
	defer f.Close()

	ef, err := elf.NewFile(f)
	if err != nil {
		return fmt.Errorf("failed to parse ELF file: %w", err)
	}

	ds := ef.SectionByType(elf.SHT_DYNAMIC)
	if ds == nil {
		return fmt.Errorf("library has no dynamic section header")
	}
	if int(ds.Link) <= 0 || int(ds.Link) >= len(ef.Sections) {
		return fmt.Errorf("dynamic section has invalid string table link %d", ds.Link)
	}
	strtab, err := ef.Sections[ds.Link].Data()
	if err != nil {
		return fmt.Errorf("failed to read dynamic string table: %w", err)
	}
	raw, err := ds.Data()
	if err != nil {
		return fmt.Errorf("failed to read dynamic section: %w", err)
	}

	entSize := 8
	if ef.Class == elf.ELFCLASS64 {
		entSize = 16
	}
	if len(raw)%entSize != 0 {
		return fmt.Errorf("dynamic section size %d is not a multiple of %d", len(raw), entSize)
	}

	out := make([]byte, len(raw)) // zero bytes are DT_NULL entries
	w := 0
	removed := 0
	for off := 0; off < len(raw); off += entSize {
		ent := raw[off : off+entSize]
		var tag, val uint64
		if entSize == 16 {
			tag = ef.ByteOrder.Uint64(ent[0:8])
			val = ef.ByteOrder.Uint64(ent[8:16])
		} else {
			tag = uint64(ef.ByteOrder.Uint32(ent[0:4]))
			val = uint64(ef.ByteOrder.Uint32(ent[4:8]))
		}
		if elf.DynTag(tag) == elf.DT_NEEDED && cString(strtab, val) == dep {
			removed++
			continue
		}
		copy(out[w:], ent)
		w += entSize
	}

	if removed == 0 {
		return failures.New(failures.NotFound, dep+" is not declared by "+path, nil)
	}

	//nolint:gosec // G115: section offsets come from a parsed ELF header
	if _, err := f.WriteAt(out, int64(ds.Offset)); err != nil {
		return fmt.Errorf("failed to write dynamic section: %w", err)
	}
	return f.Sync()
}

// cString returns the NUL-terminated string at off in a string table
func cString(table []byte, off uint64) string {
	if off >= uint64(len(table)) {
		return ""
	}
	s := table[off:]
	if i := bytes.IndexByte(s, 0); i >= 0 {
		s = s[:i]
	}
	return string(s)
}
