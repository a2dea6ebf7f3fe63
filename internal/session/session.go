package session

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/worldsnap/worldsnap/internal/dimension"
)

// ErrUnavailable 表示目标存储介质不可用（目录无法创建或打开）。
var ErrUnavailable = errors.New("session: storage unavailable")

// Purpose 标识存档中的一类目录。
type Purpose string

const (
	PurposeRoot         Purpose = "."
	PurposePlayerData   Purpose = "playerdata"
	PurposeAdvancements Purpose = "advancements"
)

// Session 绑定一个存档根目录，整次保存复用一份实例。
type Session struct {
	root string

	mu    sync.Mutex
	locks map[string]*entryLock
}

type entryLock struct {
	mu   sync.Mutex
	refs int
}

// Open 以 root 为存档根目录构建 Session，目录不存在时创建。
func Open(root string) (*Session, error) {
	if root == "" {
		return nil, fmt.Errorf("%w: save path required", ErrUnavailable)
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("%w: resolve save path: %v", ErrUnavailable, err)
	}
	if err := ensureDir(abs); err != nil {
		return nil, err
	}
	return &Session{
		root:  abs,
		locks: make(map[string]*entryLock),
	}, nil
}

// Root returns the absolute save root.
func (s *Session) Root() string {
	return s.root
}

// Directory 返回某用途的目录并确保其存在。
func (s *Session) Directory(purpose Purpose) (string, error) {
	dir := filepath.Join(s.root, string(purpose))
	if err := ensureDir(dir); err != nil {
		return "", err
	}
	return dir, nil
}

// RegionDirectory 返回维度实体 region 目录并确保其存在。
func (s *Session) RegionDirectory(dim string) (string, error) {
	rel, err := dimension.RegionDir(dim)
	if err != nil {
		return "", err
	}
	dir := filepath.Join(s.root, filepath.FromSlash(rel))
	if err := ensureDir(dir); err != nil {
		return "", err
	}
	return dir, nil
}

func ensureDir(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	info, err := os.Stat(dir)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%w: %s is not a directory", ErrUnavailable, dir)
	}
	return nil
}

// lockPath 保证同一目标文件同一时刻只有一个写入者。
func (s *Session) lockPath(key string) func() {
	s.mu.Lock()
	lock := s.locks[key]
	if lock == nil {
		lock = &entryLock{}
		s.locks[key] = lock
	}
	lock.refs++
	s.mu.Unlock()

	lock.mu.Lock()
	return func() {
		lock.mu.Unlock()
		s.mu.Lock()
		lock.refs--
		if lock.refs == 0 {
			delete(s.locks, key)
		}
		s.mu.Unlock()
	}
}
