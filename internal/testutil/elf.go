// Package testutil builds fixtures shared by package tests.
package testutil

import (
	"bytes"
	"debug/elf"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/zip"
)

// SharedObject describes a minimal ELF64 little-endian shared object
type SharedObject struct {
	Machine elf.Machine
	Soname  string
	Needed  []string
	// SpareNull adds trailing DT_NULL slots, as linkers usually leave
	SpareNull int
}

// Bytes renders the shared object. The image carries section headers for
// .dynstr, .dynamic and .shstrtab and nothing else, which is enough for
// debug/elf and for in-place dynamic section edits.
func (so SharedObject) Bytes() []byte {
	le := binary.LittleEndian
	machine := so.Machine
	if machine == elf.EM_NONE {
		machine = elf.EM_AARCH64
	}

	// .dynstr
	var dynstr bytes.Buffer
	dynstr.WriteByte(0)
	offsetOf := func(s string) uint64 {
		off := uint64(dynstr.Len())
		dynstr.WriteString(s)
		dynstr.WriteByte(0)
		return off
	}
	type dyn struct {
		tag elf.DynTag
		val uint64
	}
	var dyns []dyn
	for _, n := range so.Needed {
		dyns = append(dyns, dyn{elf.DT_NEEDED, offsetOf(n)})
	}
	if so.Soname != "" {
		dyns = append(dyns, dyn{elf.DT_SONAME, offsetOf(so.Soname)})
	}
	dyns = append(dyns, dyn{elf.DT_NULL, 0})
	for i := 0; i < so.SpareNull; i++ {
		dyns = append(dyns, dyn{elf.DT_NULL, 0})
	}

	shstrtab := []byte("\x00.dynstr\x00.dynamic\x00.shstrtab\x00")

	const ehsize = 64
	dynstrOff := uint64(ehsize)
	dynamicOff := align8(dynstrOff + uint64(dynstr.Len()))
	dynamicSize := uint64(len(dyns) * 16)
	shstrOff := dynamicOff + dynamicSize
	shOff := align8(shstrOff + uint64(len(shstrtab)))

	out := make([]byte, shOff+4*64)

	// ELF header
	copy(out[0:], elf.ELFMAG)
	out[elf.EI_CLASS] = byte(elf.ELFCLASS64)
	out[elf.EI_DATA] = byte(elf.ELFDATA2LSB)
	out[elf.EI_VERSION] = byte(elf.EV_CURRENT)
	le.PutUint16(out[16:], uint16(elf.ET_DYN))
	le.PutUint16(out[18:], uint16(machine))
	le.PutUint32(out[20:], uint32(elf.EV_CURRENT))
	le.PutUint64(out[40:], shOff)
	le.PutUint16(out[52:], ehsize)
	le.PutUint16(out[54:], 56)
	le.PutUint16(out[58:], 64)
	le.PutUint16(out[60:], 4)
	le.PutUint16(out[62:], 3)

	copy(out[dynstrOff:], dynstr.Bytes())
	for i, d := range dyns {
		base := dynamicOff + uint64(i*16)
		le.PutUint64(out[base:], uint64(d.tag))
		le.PutUint64(out[base+8:], d.val)
	}
	copy(out[shstrOff:], shstrtab)

	putSection := func(idx int, name uint32, typ elf.SectionType, flags elf.SectionFlag, off, size uint64, link uint32, align, entsize uint64) {
		base := shOff + uint64(idx*64)
		le.PutUint32(out[base:], name)
		le.PutUint32(out[base+4:], uint32(typ))
		le.PutUint64(out[base+8:], uint64(flags))
		le.PutUint64(out[base+24:], off)
		le.PutUint64(out[base+32:], size)
		le.PutUint32(out[base+40:], link)
		le.PutUint64(out[base+48:], align)
		le.PutUint64(out[base+56:], entsize)
	}
	putSection(1, 1, elf.SHT_STRTAB, elf.SHF_ALLOC, dynstrOff, uint64(dynstr.Len()), 0, 1, 0)
	putSection(2, 9, elf.SHT_DYNAMIC, elf.SHF_ALLOC|elf.SHF_WRITE, dynamicOff, dynamicSize, 1, 8, 16)
	putSection(3, 18, elf.SHT_STRTAB, 0, shstrOff, uint64(len(shstrtab)), 0, 1, 0)

	return out
}

// Write stores the shared object at dir/name and returns its path
func (so SharedObject) Write(t testing.TB, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	//nolint:gosec // G306: fixture libraries are executable like real ones
	if err := os.WriteFile(path, so.Bytes(), 0755); err != nil {
		t.Fatalf("write shared object: %v", err)
	}
	return path
}

func align8(n uint64) uint64 {
	return (n + 7) &^ 7
}

// ZipEntry is one file for WriteZip
type ZipEntry struct {
	Name   string
	Data   []byte
	Stored bool
}

// WriteZip writes a container with the given entries, in order
func WriteZip(t testing.TB, path string, entries []ZipEntry) {
	t.Helper()
	//nolint:gosec // G304: test-controlled path
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create zip: %v", err)
	}
	defer f.Close()

	zw := zip.NewWriter(f)
	for _, e := range entries {
		method := zip.Deflate
		if e.Stored {
			method = zip.Store
		}
		w, err := zw.CreateHeader(&zip.FileHeader{Name: e.Name, Method: method})
		if err != nil {
			t.Fatalf("zip header %s: %v", e.Name, err)
		}
		if _, err := w.Write(e.Data); err != nil {
			t.Fatalf("zip write %s: %v", e.Name, err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("close zip: %v", err)
	}
}

// ReadZip returns entry names in order and their contents
func ReadZip(t testing.TB, path string) ([]string, map[string][]byte) {
	t.Helper()
	r, err := zip.OpenReader(path)
	if err != nil {
		t.Fatalf("open zip: %v", err)
	}
	defer r.Close()

	var names []string
	contents := make(map[string][]byte)
	for _, f := range r.File {
		names = append(names, f.Name)
		rc, err := f.Open()
		if err != nil {
			t.Fatalf("open entry %s: %v", f.Name, err)
		}
		var buf bytes.Buffer
		if _, err := buf.ReadFrom(rc); err != nil {
			t.Fatalf("read entry %s: %v", f.Name, err)
		}
		_ = rc.Close()
		contents[f.Name] = buf.Bytes()
	}
	return names, contents
}

// WriteScript writes an executable shell script, used to fake external tools
func WriteScript(t testing.TB, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	//nolint:gosec // G306: fake tools must be executable
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), 0755); err != nil {
		t.Fatalf("write script %s: %v", name, err)
	}
	return path
}
