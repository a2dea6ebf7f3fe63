package capture

import (
	"github.com/worldsnap/worldsnap/internal/hotcache"
)

// FromSnapshot 把缓存快照转换为本次保存的存储单元：每个 cell 一个 CellEntities，
// 单例集合中的玩家与进度各一个。不认识的条目类型被忽略。
func FromSnapshot(snap hotcache.Snapshot, opts Options) []Storeable {
	var units []Storeable
	for _, key := range snap.Keys() {
		var entities []*EntityCacheable
		for _, entry := range snap.Cells[key] {
			if e, ok := entry.(*EntityCacheable); ok {
				entities = append(entities, e)
			}
		}
		if len(entities) > 0 {
			units = append(units, NewCellEntities(key, entities, opts))
		}
	}
	for _, entry := range snap.Singletons[CategoryPlayers] {
		if p, ok := entry.(*PlayerStoreable); ok {
			units = append(units, p.bind(opts))
		}
	}
	for _, entry := range snap.Singletons[CategoryAdvancements] {
		if a, ok := entry.(*AdvancementsStoreable); ok {
			units = append(units, a.bind(opts))
		}
	}
	return units
}
