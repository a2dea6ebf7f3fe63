package hotcache

import (
	"bytes"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"
)

// ErrConsistency 表示缓存内部不变量被破坏，属于程序缺陷。
var ErrConsistency = errors.New("hotcache: consistency violation")

// SpatialCell 是世界中固定大小区域的整数坐标。
type SpatialCell struct {
	X, Z int32
}

// CellKey 将维度与 cell 组合为桶键，不同维度的同坐标 cell 互不干扰。
type CellKey struct {
	Dimension string
	SpatialCell
}

func (k CellKey) String() string {
	return fmt.Sprintf("%s[%d,%d]", k.Dimension, k.X, k.Z)
}

// Entry 是缓存中的一个条目，由可缓存对象自己实现。
type Entry interface {
	Identity() uuid.UUID
	Cell() CellKey
}

// Cache 是进程级的暂存缓存：cell 桶 + 单例类别（例如在线玩家）的平铺集合。
type Cache struct {
	cells      sync.Map // CellKey -> *bucket
	index      sync.Map // uuid.UUID -> CellKey
	singletons sync.Map // string -> *bucket
}

type bucket struct {
	mu      sync.Mutex
	entries map[uuid.UUID]Entry
	dead    bool
}

func newBucket() *bucket {
	return &bucket{entries: make(map[uuid.UUID]Entry)}
}

// New returns an empty cache.
func New() *Cache {
	return &Cache{}
}

// Put 插入或替换条目。相同身份的旧条目（无论在哪个桶）都会被取代，
// 新条目先写入目标桶再从旧桶移除，并发快照至多看到一次（快照自身去重）。
func (c *Cache) Put(e Entry) {
	id, key := e.Identity(), e.Cell()
	c.insert(key, id, e)
	if prev, ok := c.index.Swap(id, key); ok && prev.(CellKey) != key {
		c.removeFrom(prev.(CellKey), id)
	}
}

// Remove 按身份移除条目；桶变空时一并移除。条目不存在时返回 false。
func (c *Cache) Remove(id uuid.UUID) bool {
	prev, ok := c.index.LoadAndDelete(id)
	if !ok {
		return false
	}
	return c.removeFrom(prev.(CellKey), id)
}

func (c *Cache) insert(key CellKey, id uuid.UUID, e Entry) {
	for {
		v, ok := c.cells.Load(key)
		if !ok {
			v, _ = c.cells.LoadOrStore(key, newBucket())
		}
		b := v.(*bucket)
		b.mu.Lock()
		if b.dead {
			b.mu.Unlock()
			continue
		}
		b.entries[id] = e
		b.mu.Unlock()
		return
	}
}

func (c *Cache) removeFrom(key CellKey, id uuid.UUID) bool {
	v, ok := c.cells.Load(key)
	if !ok {
		return false
	}
	b := v.(*bucket)
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.dead {
		return false
	}
	_, had := b.entries[id]
	delete(b.entries, id)
	if len(b.entries) == 0 {
		b.dead = true
		c.cells.CompareAndDelete(key, b)
	}
	return had
}

// PutSingleton 将条目放入单例类别集合，按身份去重。
func (c *Cache) PutSingleton(category string, e Entry) {
	v, ok := c.singletons.Load(category)
	if !ok {
		v, _ = c.singletons.LoadOrStore(category, newBucket())
	}
	b := v.(*bucket)
	b.mu.Lock()
	b.entries[e.Identity()] = e
	b.mu.Unlock()
}

// RemoveSingleton 从单例类别集合中移除条目。
func (c *Cache) RemoveSingleton(category string, id uuid.UUID) bool {
	v, ok := c.singletons.Load(category)
	if !ok {
		return false
	}
	b := v.(*bucket)
	b.mu.Lock()
	defer b.mu.Unlock()
	_, had := b.entries[id]
	delete(b.entries, id)
	return had
}

// Singletons 返回某个单例类别的当前条目。
func (c *Cache) Singletons(category string) []Entry {
	v, ok := c.singletons.Load(category)
	if !ok {
		return nil
	}
	return v.(*bucket).copyEntries(nil)
}

// Bucket 返回某个 cell 桶的条目（按身份排序），桶不存在时返回 nil。
func (c *Cache) Bucket(key CellKey) []Entry {
	v, ok := c.cells.Load(key)
	if !ok {
		return nil
	}
	return v.(*bucket).copyEntries(nil)
}

// HasCell reports whether a bucket exists for key.
func (c *Cache) HasCell(key CellKey) bool {
	_, ok := c.cells.Load(key)
	return ok
}

// Cells 返回当前存在的 cell 键（排序后）。
func (c *Cache) Cells() []CellKey {
	var keys []CellKey
	c.cells.Range(func(k, _ any) bool {
		keys = append(keys, k.(CellKey))
		return true
	})
	sortKeys(keys)
	return keys
}

// Len 返回所有 cell 桶中的条目总数。
func (c *Cache) Len() int {
	total := 0
	c.cells.Range(func(_, v any) bool {
		b := v.(*bucket)
		b.mu.Lock()
		total += len(b.entries)
		b.mu.Unlock()
		return true
	})
	return total
}

// Clear 清空全部桶与单例集合，通常在离开世界时调用。
func (c *Cache) Clear() {
	c.cells.Range(func(k, v any) bool {
		b := v.(*bucket)
		b.mu.Lock()
		b.dead = true
		c.cells.CompareAndDelete(k, b)
		b.mu.Unlock()
		return true
	})
	c.index.Clear()
	c.singletons.Clear()
}

func (b *bucket) copyEntries(seen map[uuid.UUID]struct{}) []Entry {
	b.mu.Lock()
	result := make([]Entry, 0, len(b.entries))
	for id, e := range b.entries {
		if seen != nil {
			if _, dup := seen[id]; dup {
				continue
			}
			seen[id] = struct{}{}
		}
		result = append(result, e)
	}
	b.mu.Unlock()

	sort.Slice(result, func(i, j int) bool {
		x, y := result[i].Identity(), result[j].Identity()
		return bytes.Compare(x[:], y[:]) < 0
	})
	return result
}

func sortKeys(keys []CellKey) {
	sort.Slice(keys, func(i, j int) bool {
		a, b := keys[i], keys[j]
		if a.Dimension != b.Dimension {
			return a.Dimension < b.Dimension
		}
		if a.X != b.X {
			return a.X < b.X
		}
		return a.Z < b.Z
	})
}
