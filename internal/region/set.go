package region

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// DefaultParallelism 是 Finalize 同时提交的文件数上限。
const DefaultParallelism = 4

// Set 是单次保存过程持有的 Storage 映射，同一 key 在整个过程中复用同一个句柄。
type Set struct {
	parallelism int
	now         func() time.Time

	mu       sync.Mutex
	stores   map[string]*Storage
	finished bool
}

// SetOption 调整 Set 的行为，主要供测试注入时钟。
type SetOption func(*Set)

// WithClock 替换写入槽位时间戳所用的时钟。
func WithClock(now func() time.Time) SetOption {
	return func(s *Set) {
		s.now = now
	}
}

// WithParallelism 设置 Finalize 的并发度，小于 1 时按 1 处理。
func WithParallelism(n int) SetOption {
	return func(s *Set) {
		if n < 1 {
			n = 1
		}
		s.parallelism = n
	}
}

// NewSet returns an empty pass-scoped set.
func NewSet(opts ...SetOption) *Set {
	s := &Set{
		parallelism: DefaultParallelism,
		now:         time.Now,
		stores:      make(map[string]*Storage),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Open 返回 key 对应的 Storage，不存在时以 dir 为目录创建并登记。
func (s *Set) Open(key, dir string) (*Storage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.finished {
		return nil, ErrClosed
	}
	if st, ok := s.stores[key]; ok {
		if st.dir != dir {
			return nil, fmt.Errorf("%w: %s (%s != %s)", errDirMismatch, key, st.dir, dir)
		}
		return st, nil
	}
	st := newStorage(key, dir, s.now)
	s.stores[key] = st
	return st, nil
}

// Keys 返回已打开的 Storage key（排序后）。
func (s *Set) Keys() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	keys := make([]string, 0, len(s.stores))
	for key := range s.stores {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// Outcome 描述一个 region 文件在本次过程中的结局。Cells/Items 是本次写入该文件的
// 槽位数与对象数，Committed 为 false 时这些写入均未落盘。
type Outcome struct {
	Key       string
	Path      string
	Cells     int
	Items     int
	Committed bool
}

// FinalizeResult 汇总一次 Finalize 或 Abort 的提交情况。
type FinalizeResult struct {
	Committed int
	Aborted   int
	Outcomes  []Outcome
}

func summarize(files []pending) FinalizeResult {
	result := FinalizeResult{Outcomes: make([]Outcome, 0, len(files))}
	for _, p := range files {
		if p.outcome.Committed {
			result.Committed++
		} else {
			result.Aborted++
		}
		result.Outcomes = append(result.Outcomes, p.outcome)
	}
	return result
}

// Finalize 提交本次过程中打开的全部 region 文件。ctx 取消后不再开始新的提交，
// 尚未提交的文件被丢弃；已提交的文件保持有效。单个文件失败不影响其它文件。
func (s *Set) Finalize(ctx context.Context) (FinalizeResult, error) {
	files := s.drain()

	var (
		errMu sync.Mutex
		errs  []error
	)

	var g errgroup.Group
	g.SetLimit(s.parallelism)
	for i := range files {
		p := &files[i]
		if ctx.Err() != nil {
			p.file.Abort()
			continue
		}
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				p.file.Abort()
				return nil
			}
			if err := p.file.Commit(); err != nil {
				errMu.Lock()
				errs = append(errs, err)
				errMu.Unlock()
				return nil
			}
			p.outcome.Committed = true
			return nil
		})
	}
	g.Wait()

	result := summarize(files)
	if err := ctx.Err(); err != nil && result.Aborted > 0 {
		errs = append(errs, err)
	}
	return result, errors.Join(errs...)
}

// Abort 丢弃全部未提交的工作副本。
func (s *Set) Abort() FinalizeResult {
	files := s.drain()
	for _, p := range files {
		p.file.Abort()
	}
	return summarize(files)
}

func (s *Set) drain() []pending {
	s.mu.Lock()
	s.finished = true
	keys := make([]string, 0, len(s.stores))
	for key := range s.stores {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	stores := make([]*Storage, 0, len(keys))
	for _, key := range keys {
		stores = append(stores, s.stores[key])
	}
	s.mu.Unlock()

	var files []pending
	for _, st := range stores {
		files = append(files, st.detach()...)
	}
	return files
}
