package query

import (
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"golang.org/x/sys/unix"

	"github.com/RayforceDB/rayforce/pkg/heap"
	"github.com/RayforceDB/rayforce/pkg/rferr"
	"github.com/RayforceDB/rayforce/pkg/value"
	"github.com/RayforceDB/rayforce/pkg/vm"
)

// epochDay is the zero point DATE values count days from, matching the
// DATE column kind's on-disk zero point (spec's "i32 days since epoch").
var epochDay = time.Date(1970, 1, 1, 0, 0, 0, 0, time.UTC)

// LoadSplayedTable reads a splayed table directory: each column is a file
// whose first byte is its type tag and whose remaining bytes are the raw
// vector payload (spec §6, "Persisted state"). Every column file is
// memory-mapped and wrapped as a file-backed vector rather than copied
// into heap-owned memory, so the mapping's lifetime matches the process's
// use of it (grounded on slotcache's syscall.Mmap-then-wrap pattern).
func LoadSplayedTable(dir string) (*value.Value, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, rferr.NewOS(0, err.Error())
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	names := make([]string, 0, len(entries))
	cols := make([]*value.Value, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		col, err := loadColumnFile(filepath.Join(dir, e.Name()))
		if err != nil {
			return nil, err
		}
		names = append(names, e.Name())
		cols = append(cols, col)
	}
	return value.NewTable(value.NewSymbolVector(names), value.NewList(cols))
}

// loadColumnFile mmaps path and wraps it as a file-backed vector; the
// leading byte is the column's value.Type tag, and the rest of the file
// is its raw element payload.
func loadColumnFile(path string) (*value.Value, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, rferr.NewOS(0, err.Error())
	}
	defer f.Close()

	fi, err := f.Stat()
	if err != nil {
		return nil, rferr.NewOS(0, err.Error())
	}
	size := int(fi.Size())
	if size < 1 {
		return nil, rferr.NewLength(1, size, nil)
	}

	data, err := unix.Mmap(int(f.Fd()), 0, size, unix.PROT_READ, unix.MAP_SHARED)
	if err != nil {
		return nil, rferr.NewOS(0, "mmap: "+path+": "+err.Error())
	}

	tag := value.Type(int8(data[0]))
	payload := data[1:]
	elemSize := tag.ElemSize()
	if tag == value.TSymbol || elemSize == 0 {
		return nil, rferr.NewNYI("splayed column of type " + tag.String())
	}
	n := len(payload) / elemSize
	return value.NewFileBackedVector(tag, payload, n), nil
}

// PartedTable is a directory of date-named partitions sharing a schema
// (spec §6): each partition is itself a splayed table, plus the date the
// partition directory name encodes.
type PartedTable struct {
	Dates      []int32
	Partitions []*value.Value
}

// LoadPartedTable reads every partition subdirectory of baseDir (each
// named by its date, YYYY.MM.DD per spec's literal date syntax) as a
// splayed table.
func LoadPartedTable(baseDir string) (*PartedTable, error) {
	entries, err := os.ReadDir(baseDir)
	if err != nil {
		return nil, rferr.NewOS(0, err.Error())
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	pt := &PartedTable{}
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		day, ok := parsePartitionDate(e.Name())
		if !ok {
			continue
		}
		tbl, err := LoadSplayedTable(filepath.Join(baseDir, e.Name()))
		if err != nil {
			return nil, err
		}
		pt.Dates = append(pt.Dates, day)
		pt.Partitions = append(pt.Partitions, tbl)
	}
	return pt, nil
}

// parsePartitionDate parses a "2024.01.01"-style directory name into days
// since epoch, matching the DATE column kind's representation.
func parsePartitionDate(name string) (int32, bool) {
	if len(name) != 10 || name[4] != '.' || name[7] != '.' {
		return 0, false
	}
	y, err1 := strconv.Atoi(name[0:4])
	m, err2 := strconv.Atoi(name[5:7])
	d, err3 := strconv.Atoi(name[8:10])
	if err1 != nil || err2 != nil || err3 != nil {
		return 0, false
	}
	t := time.Date(y, time.Month(m), d, 0, 0, 0, 0, time.UTC)
	return int32(t.Sub(epochDay).Hours() / 24), true
}

// SelectParted runs q independently against every partition of pt,
// exposing each partition's date as a virtual MAPCOMMON "Date" column
// (spec: "MAPCOMMON (virtual constant column for parted data)"), then
// concatenates the matching rows from every partition. A `where` clause
// referencing Date lets whole partitions come back empty without the
// core needing a separate pruning pass: filtering already discards their
// rows, this just avoids ever materialising a cross-partition copy of
// columns that didn't match.
func SelectParted(vmctx *vm.Context, h *heap.Heap, pt *PartedTable, q *Query) (*value.Value, error) {
	var result *value.Value
	for i, part := range pt.Partitions {
		partWithDate := withVirtualDateColumn(part, pt.Dates[i])
		partQuery := *q
		partQuery.From = partWithDate
		out, err := Select(vmctx, &partQuery)
		if err != nil {
			return nil, err
		}
		if result == nil {
			result = out
			continue
		}
		result, err = concatTables(h, result, out)
		if err != nil {
			return nil, err
		}
	}
	if result == nil {
		return value.NewTable(value.NewSymbolVector(nil), value.NewList(nil))
	}
	return result, nil
}

// withVirtualDateColumn returns t with an extra "Date" column: a
// MAPCOMMON-wrapped scalar repeated once per row, the same representation
// the query engine uses for any other parted virtual column.
func withVirtualDateColumn(t *value.Value, day int32) *value.Value {
	rows := t.RowCount()
	dateCol := value.NewMapCommon(value.NewDate(day), rows)
	names := append(append([]string(nil), t.Names().Strs()...), "Date")
	cols := append(append([]*value.Value(nil), t.Columns().Elems()...), dateCol)
	tbl, _ := value.NewTable(value.NewSymbolVector(names), value.NewList(cols))
	return tbl
}

// concatTables appends b's rows to a's, column by column (matching
// schemas assumed, since both came from the same parted table via the
// same Select).
func concatTables(h *heap.Heap, a, b *value.Value) (*value.Value, error) {
	if a.RowCount() == 0 {
		return b, nil
	}
	if b.RowCount() == 0 {
		return a, nil
	}
	names := a.Names().Strs()
	acols := a.Columns().Elems()
	bcols := b.Columns().Elems()
	out := make([]*value.Value, len(acols))
	for i := range acols {
		v, err := concatVectors(h, acols[i], bcols[i])
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return value.NewTable(value.NewSymbolVector(append([]string(nil), names...)), value.NewList(out))
}
