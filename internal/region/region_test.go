package region

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"math/rand"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLocateUsesFloorDivision(t *testing.T) {
	testCases := []struct {
		cell   int32
		region int32
		local  int
	}{
		{0, 0, 0},
		{31, 0, 31},
		{32, 1, 0},
		{-1, -1, 31},
		{-32, -1, 0},
		{-33, -2, 31},
	}

	for _, tc := range testCases {
		pos, lx, lz := Locate(tc.cell, tc.cell)
		if pos.X != tc.region || pos.Z != tc.region || lx != tc.local || lz != tc.local {
			t.Fatalf("Locate(%d) = %+v/%d/%d, want region %d local %d", tc.cell, pos, lx, lz, tc.region, tc.local)
		}
	}
}

func TestLocateReconstructsCell(t *testing.T) {
	for cell := int32(-200); cell <= 200; cell++ {
		pos, lx, _ := Locate(cell, 0)
		if lx < 0 || lx >= Size {
			t.Fatalf("local x %d out of range for cell %d", lx, cell)
		}
		if pos.X*Size+int32(lx) != cell {
			t.Fatalf("cell %d not reconstructed: region %d local %d", cell, pos.X, lx)
		}
	}
}

func TestFileNameFormat(t *testing.T) {
	if got := (Pos{X: -1, Z: 3}).FileName(); got != "r.-1.3.mca" {
		t.Fatalf("unexpected file name %s", got)
	}
}

func TestWriteCommitAndRead(t *testing.T) {
	dir := t.TempDir()
	stamp := time.Unix(1700000000, 0)
	set := NewSet(WithClock(func() time.Time { return stamp }))

	st, err := set.Open("minecraft:overworld/entities", dir)
	if err != nil {
		t.Fatalf("open storage: %v", err)
	}
	payload := []byte("cell record payload")
	if err := st.WriteCell(context.Background(), -1, 5, payload, 4); err != nil {
		t.Fatalf("write cell: %v", err)
	}

	result, err := set.Finalize(context.Background())
	if err != nil {
		t.Fatalf("finalize: %v", err)
	}
	if result.Committed != 1 {
		t.Fatalf("expected 1 committed file, got %+v", result)
	}
	wantOutcome := Outcome{
		Key:       "minecraft:overworld/entities",
		Path:      filepath.Join(dir, "r.-1.0.mca"),
		Cells:     1,
		Items:     4,
		Committed: true,
	}
	if len(result.Outcomes) != 1 || result.Outcomes[0] != wantOutcome {
		t.Fatalf("unexpected outcomes %+v", result.Outcomes)
	}

	got, err := ReadCell(dir, -1, 5)
	if err != nil {
		t.Fatalf("read cell: %v", err)
	}
	if !bytes.Equal(got, payload) {
		t.Fatalf("payload mismatch: %q", got)
	}

	raw, err := os.ReadFile(filepath.Join(dir, "r.-1.0.mca"))
	if err != nil {
		t.Fatalf("read region file: %v", err)
	}
	if len(raw)%SectorSize != 0 {
		t.Fatalf("region file not sector aligned: %d", len(raw))
	}
	idx := SlotIndex(31, 5)
	loc := binary.BigEndian.Uint32(raw[idx*4:])
	if loc>>8 != headerSectors || loc&0xFF != 1 {
		t.Fatalf("unexpected location word %#x", loc)
	}
	if ts := binary.BigEndian.Uint32(raw[SectorSize+idx*4:]); ts != uint32(stamp.Unix()) {
		t.Fatalf("unexpected timestamp %d", ts)
	}
	reopened, err := OpenFile(filepath.Join(dir, "r.-1.0.mca"), nil)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Abort()
	if ts := reopened.Timestamp(31, 5); ts != uint32(stamp.Unix()) {
		t.Fatalf("reopened timestamp %d, want %d", ts, stamp.Unix())
	}
	if ts := reopened.Timestamp(0, 0); ts != 0 {
		t.Fatalf("unwritten slot should have no timestamp, got %d", ts)
	}
	if raw[headerBytes+4] != CompressionZlib {
		t.Fatalf("expected zlib compression byte, got %d", raw[headerBytes+4])
	}

	if _, err := ReadCell(dir, 0, 0); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for empty slot, got %v", err)
	}
}

func TestRewriteSameCellLastWriteWins(t *testing.T) {
	dir := t.TempDir()
	f, err := OpenFile(filepath.Join(dir, "r.0.0.mca"), nil)
	if err != nil {
		t.Fatalf("open file: %v", err)
	}

	big := incompressible(3*SectorSize, 1)
	if err := f.WriteCell(1, 1, big); err != nil {
		t.Fatalf("write big: %v", err)
	}
	for _, v := range []string{"first", "second"} {
		if err := f.WriteCell(1, 1, []byte(v)); err != nil {
			t.Fatalf("write %s: %v", v, err)
		}
	}
	got, err := f.ReadCell(1, 1)
	if err != nil {
		t.Fatalf("read cell: %v", err)
	}
	if string(got) != "second" {
		t.Fatalf("expected last write to win, got %q", got)
	}
	sectorsBefore := len(f.used)
	if err := f.WriteCell(1, 1, []byte("third")); err != nil {
		t.Fatalf("write third: %v", err)
	}
	if len(f.used) != sectorsBefore {
		t.Fatalf("freed sectors should be reused: %d -> %d", sectorsBefore, len(f.used))
	}
	if err := f.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}
}

func TestAbortLeavesCommittedFileUntouched(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "r.0.0.mca")

	f, err := OpenFile(path, nil)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := f.WriteCell(0, 0, []byte("v1")); err != nil {
		t.Fatalf("write v1: %v", err)
	}
	if err := f.Commit(); err != nil {
		t.Fatalf("commit v1: %v", err)
	}
	before, _ := os.ReadFile(path)

	f, err = OpenFile(path, nil)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	if err := f.WriteCell(0, 0, []byte("v2")); err != nil {
		t.Fatalf("write v2: %v", err)
	}
	if err := f.WriteCell(3, 3, []byte("other")); err != nil {
		t.Fatalf("write other: %v", err)
	}
	f.Abort()
	f.Abort()

	after, _ := os.ReadFile(path)
	if !bytes.Equal(before, after) {
		t.Fatalf("aborted pass must not modify the live file")
	}
	assertNoWorkingFiles(t, dir)

	if err := f.WriteCell(0, 0, []byte("v3")); !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed after abort, got %v", err)
	}
}

func TestReopenPreservesOtherSlots(t *testing.T) {
	dir := t.TempDir()
	set := NewSet()
	st, _ := set.Open("k", dir)
	ctx := context.Background()
	if err := st.WriteCell(ctx, 1, 1, []byte("one"), 1); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := set.Finalize(ctx); err != nil {
		t.Fatalf("finalize: %v", err)
	}

	set = NewSet()
	st, _ = set.Open("k", dir)
	if err := st.WriteCell(ctx, 2, 2, []byte("two"), 1); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := set.Finalize(ctx); err != nil {
		t.Fatalf("finalize: %v", err)
	}

	for cell, want := range map[int32]string{1: "one", 2: "two"} {
		got, err := ReadCell(dir, cell, cell)
		if err != nil || string(got) != want {
			t.Fatalf("cell %d: got %q err %v", cell, got, err)
		}
	}
}

func TestOpenDropsCorruptLocations(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "r.0.0.mca")
	header := make([]byte, headerBytes)
	binary.BigEndian.PutUint32(header[0:], 50<<8|1)
	binary.BigEndian.PutUint32(header[4:], 1<<8|1)
	if err := os.WriteFile(path, header, 0o644); err != nil {
		t.Fatalf("write header: %v", err)
	}

	f, err := OpenFile(path, nil)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer f.Abort()
	for _, lx := range []int{0, 1} {
		if _, err := f.ReadCell(lx, 0); !errors.Is(err, ErrNotFound) {
			t.Fatalf("corrupt slot %d should read as empty, got %v", lx, err)
		}
	}
}

func TestPayloadTooLarge(t *testing.T) {
	f, err := OpenFile(filepath.Join(t.TempDir(), "r.0.0.mca"), nil)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer f.Abort()
	if err := f.WriteCell(0, 0, incompressible(maxSectorCount*SectorSize+SectorSize, 7)); !errors.Is(err, ErrPayloadTooLarge) {
		t.Fatalf("expected ErrPayloadTooLarge, got %v", err)
	}
}

func TestSetReusesStorageAndRejectsDirMismatch(t *testing.T) {
	set := NewSet()
	a, err := set.Open("k", "/tmp/a")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	b, err := set.Open("k", "/tmp/a")
	if err != nil || a != b {
		t.Fatalf("expected same storage handle")
	}
	if _, err := set.Open("k", "/tmp/b"); err == nil {
		t.Fatalf("expected directory mismatch error")
	}
}

func TestFinalizeCancelledAbortsUncommitted(t *testing.T) {
	dir := t.TempDir()
	set := NewSet(WithParallelism(1))
	st, _ := set.Open("k", dir)
	for _, cell := range []int32{0, 40, 80} {
		if err := st.WriteCell(context.Background(), cell, 0, []byte("x"), 2); err != nil {
			t.Fatalf("write: %v", err)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	result, err := set.Finalize(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if result.Committed != 0 || result.Aborted != 3 {
		t.Fatalf("unexpected finalize result %+v", result)
	}
	for _, out := range result.Outcomes {
		if out.Committed || out.Cells != 1 || out.Items != 2 {
			t.Fatalf("unexpected outcome %+v", out)
		}
	}
	matches, _ := filepath.Glob(filepath.Join(dir, "*.mca"))
	if len(matches) != 0 {
		t.Fatalf("no region file should be committed, found %v", matches)
	}
	assertNoWorkingFiles(t, dir)

	if _, err := set.Open("k", dir); !errors.Is(err, ErrClosed) {
		t.Fatalf("finalized set should reject Open, got %v", err)
	}
}

func TestOutcomeCountsLastWritePerSlot(t *testing.T) {
	dir := t.TempDir()
	set := NewSet()
	st, _ := set.Open("k", dir)
	ctx := context.Background()
	writes := []struct {
		cell  int32
		items int
	}{
		{0, 3},
		{0, 5},
		{1, 2},
		{40, 7},
	}
	for _, w := range writes {
		if err := st.WriteCell(ctx, w.cell, 0, []byte("x"), w.items); err != nil {
			t.Fatalf("write: %v", err)
		}
	}

	result := set.Abort()
	if result.Committed != 0 || result.Aborted != 2 {
		t.Fatalf("unexpected abort result %+v", result)
	}
	want := []Outcome{
		{Key: "k", Path: filepath.Join(dir, "r.0.0.mca"), Cells: 2, Items: 7},
		{Key: "k", Path: filepath.Join(dir, "r.1.0.mca"), Cells: 1, Items: 7},
	}
	if len(result.Outcomes) != len(want) {
		t.Fatalf("unexpected outcomes %+v", result.Outcomes)
	}
	for i := range want {
		if result.Outcomes[i] != want[i] {
			t.Fatalf("outcome %d = %+v, want %+v", i, result.Outcomes[i], want[i])
		}
	}
	assertNoWorkingFiles(t, dir)
}

func assertNoWorkingFiles(t *testing.T, dir string) {
	t.Helper()
	matches, _ := filepath.Glob(filepath.Join(dir, "*.tmp"))
	if len(matches) != 0 {
		t.Fatalf("working files should be removed, found %v", matches)
	}
}

func incompressible(n int, seed int64) []byte {
	buf := make([]byte, n)
	rand.New(rand.NewSource(seed)).Read(buf)
	return buf
}
