package hotcache

import (
	"fmt"

	"github.com/google/uuid"
)

// Snapshot 是一次保存过程看到的缓存视图。每个桶在自身锁内复制，
// 同一身份在整个快照中至多出现一次。
type Snapshot struct {
	Cells      map[CellKey][]Entry
	Singletons map[string][]Entry
}

// Keys 返回快照中的 cell 键（排序后）。
func (s Snapshot) Keys() []CellKey {
	keys := make([]CellKey, 0, len(s.Cells))
	for k := range s.Cells {
		keys = append(keys, k)
	}
	sortKeys(keys)
	return keys
}

// Len 返回快照中 cell 条目的总数。
func (s Snapshot) Len() int {
	total := 0
	for _, entries := range s.Cells {
		total += len(entries)
	}
	return total
}

// Snapshot 遍历当前所有桶。遍历期间新增或移除的条目可能被包含也可能不被包含，
// 但遍历开始前已存在且未被并发移除的条目一定出现。
func (c *Cache) Snapshot() Snapshot {
	snap := Snapshot{
		Cells:      make(map[CellKey][]Entry),
		Singletons: make(map[string][]Entry),
	}
	seen := make(map[uuid.UUID]struct{})
	c.cells.Range(func(k, v any) bool {
		if entries := v.(*bucket).copyEntries(seen); len(entries) > 0 {
			snap.Cells[k.(CellKey)] = entries
		}
		return true
	})
	c.singletons.Range(func(k, v any) bool {
		if entries := v.(*bucket).copyEntries(nil); len(entries) > 0 {
			snap.Singletons[k.(string)] = entries
		}
		return true
	})
	return snap
}

// Verify 检查不变量：无空桶、同一身份仅在一个桶中、索引与桶一致。
// 只应在缓存静止时调用（测试或诊断）。
func (c *Cache) Verify() error {
	owner := make(map[uuid.UUID]CellKey)
	var violation error
	c.cells.Range(func(k, v any) bool {
		key := k.(CellKey)
		b := v.(*bucket)
		b.mu.Lock()
		defer b.mu.Unlock()
		if b.dead {
			return true
		}
		if len(b.entries) == 0 {
			violation = fmt.Errorf("%w: empty bucket %s retained", ErrConsistency, key)
			return false
		}
		for id, e := range b.entries {
			if other, dup := owner[id]; dup {
				violation = fmt.Errorf("%w: identity %s in %s and %s", ErrConsistency, id, other, key)
				return false
			}
			owner[id] = key
			if e.Identity() != id {
				violation = fmt.Errorf("%w: entry %s filed under %s", ErrConsistency, e.Identity(), id)
				return false
			}
		}
		return true
	})
	if violation != nil {
		return violation
	}

	indexed := 0
	c.index.Range(func(k, v any) bool {
		indexed++
		id, key := k.(uuid.UUID), v.(CellKey)
		if owner[id] != key {
			violation = fmt.Errorf("%w: index maps %s to %s, bucket is %s", ErrConsistency, id, key, owner[id])
			return false
		}
		return true
	})
	if violation != nil {
		return violation
	}
	if indexed != len(owner) {
		return fmt.Errorf("%w: %d indexed identities, %d cached", ErrConsistency, indexed, len(owner))
	}
	return nil
}
