package region

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"sync"
	"time"
)

// Storage 管理一个类别（例如 minecraft:overworld/entities）目录下的所有 region 文件，
// region 文件在首次写入时惰性打开，同一 Storage 上的写入串行执行。
type Storage struct {
	key string
	dir string
	now func() time.Time

	mu    sync.Mutex
	files map[Pos]*File
	tally map[Pos]map[int]int
	done  bool
}

func newStorage(key, dir string, now func() time.Time) *Storage {
	return &Storage{
		key:   key,
		dir:   dir,
		now:   now,
		files: make(map[Pos]*File),
		tally: make(map[Pos]map[int]int),
	}
}

// Key returns the category key this storage was opened with.
func (s *Storage) Key() string {
	return s.key
}

// Dir returns the directory holding the region files.
func (s *Storage) Dir() string {
	return s.dir
}

// WriteCell 将一个 cell 的记录写入对应 region 文件的工作副本。items 为记录中包含的对象数，
// 只有在该文件提交成功后才会出现在 Outcome 的计数里。
func (s *Storage) WriteCell(ctx context.Context, cellX, cellZ int32, payload []byte, items int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	pos, lx, lz := Locate(cellX, cellZ)

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.done {
		return ErrClosed
	}
	f, ok := s.files[pos]
	if !ok {
		opened, err := OpenFile(filepath.Join(s.dir, pos.FileName()), s.now)
		if err != nil {
			return err
		}
		s.files[pos] = opened
		f = opened
	}
	if err := f.WriteCell(lx, lz, payload); err != nil {
		return fmt.Errorf("%s cell (%d,%d): %w", s.key, cellX, cellZ, err)
	}
	slots, ok := s.tally[pos]
	if !ok {
		slots = make(map[int]int)
		s.tally[pos] = slots
	}
	// 同一槽位重写时以最后一次为准，与文件内容一致。
	slots[SlotIndex(lx, lz)] = items
	return nil
}

// pending 是一个等待提交或丢弃的 region 文件及其本次写入的计数。
type pending struct {
	file    *File
	outcome Outcome
}

// detach 交出全部文件句柄，之后的写入返回 ErrClosed。
func (s *Storage) detach() []pending {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.done = true
	result := make([]pending, 0, len(s.files))
	for _, pos := range sortedPositions(s.files) {
		out := Outcome{Key: s.key, Path: s.files[pos].Path()}
		for _, items := range s.tally[pos] {
			out.Cells++
			out.Items += items
		}
		result = append(result, pending{file: s.files[pos], outcome: out})
	}
	s.files = make(map[Pos]*File)
	s.tally = make(map[Pos]map[int]int)
	return result
}

func sortedPositions(files map[Pos]*File) []Pos {
	result := make([]Pos, 0, len(files))
	for pos := range files {
		result = append(result, pos)
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].X != result[j].X {
			return result[i].X < result[j].X
		}
		return result[i].Z < result[j].Z
	})
	return result
}

var errDirMismatch = errors.New("region: storage key already bound to another directory")
