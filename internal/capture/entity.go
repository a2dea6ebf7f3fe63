package capture

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/worldsnap/worldsnap/internal/dimension"
	"github.com/worldsnap/worldsnap/internal/hotcache"
	"github.com/worldsnap/worldsnap/internal/logging"
	"github.com/worldsnap/worldsnap/internal/nbt"
	"github.com/worldsnap/worldsnap/internal/region"
	"github.com/worldsnap/worldsnap/internal/stats"
)

// entitySuffix 是实体 region 存储类别键的后缀。
const entitySuffix = "/entities"

// EntityCacheable 是一个实体在 hotcache 中的条目。
type EntityCacheable struct {
	state EntityState
	cache *hotcache.Cache
}

// NewEntity 以状态快照构造条目，调用 Cache 前不会进入缓存。
func NewEntity(cache *hotcache.Cache, state EntityState) *EntityCacheable {
	return &EntityCacheable{state: state, cache: cache}
}

func (e *EntityCacheable) Identity() uuid.UUID {
	return e.state.ID
}

func (e *EntityCacheable) Cell() hotcache.CellKey {
	return CellOf(e.state.Dimension, e.state.Pos)
}

// State returns the captured snapshot.
func (e *EntityCacheable) State() EntityState {
	return e.state
}

// Cache 放入（或替换）当前 cell 中的条目。
func (e *EntityCacheable) Cache() {
	e.cache.Put(e)
}

// Flush 移除条目，条目不存在时为空操作。
func (e *EntityCacheable) Flush() {
	e.cache.Remove(e.state.ID)
}

// Compound 生成实体记录。位置或速度含非有限值时返回 ErrEncoding。
func (e *EntityCacheable) Compound(opts Options, now time.Time) (*nbt.Compound, error) {
	s := e.state
	if s.Type == "" {
		return nil, fmt.Errorf("%w: entity %s has no type", ErrEncoding, s.ID)
	}
	if !s.Pos.finite() || !s.Motion.finite() {
		return nil, fmt.Errorf("%w: entity %s has non-finite position or motion", ErrEncoding, s.ID)
	}

	most, least := uuidHalves(s.ID)
	c := nbt.NewCompound().
		PutString("id", s.Type).
		Put("Pos", s.Pos.list()).
		Put("Rotation", nbt.FloatList(s.Yaw, s.Pitch)).
		Put("Motion", s.Motion.list()).
		PutLong("UUIDMost", most).
		PutLong("UUIDLeast", least).
		PutShort("Air", s.Air).
		PutShort("Fire", s.Fire).
		PutBool("OnGround", s.OnGround)

	if opts.ModifyEntityBehavior {
		c.PutBool("NoAI", opts.NoAI).
			PutBool("NoGravity", opts.NoGravity).
			PutBool("Invulnerable", opts.Invulnerable).
			PutBool("Silent", opts.Silent)
	}
	if opts.CaptureTimestamp {
		c.PutLong("CaptureTimestamp", now.UnixMilli())
	}
	return c, nil
}

// CellEntities 把同一 cell 的全部实体写成一条 region 记录。
type CellEntities struct {
	Key      hotcache.CellKey
	Entities []*EntityCacheable
	opts     Options
}

// NewCellEntities 构造某个 cell 的存储单元。
func NewCellEntities(key hotcache.CellKey, entities []*EntityCacheable, opts Options) *CellEntities {
	return &CellEntities{Key: key, Entities: entities, opts: opts}
}

// Category 返回统计用的类别键 <dimension>/entities。
func (c *CellEntities) Category() string {
	return c.Key.Dimension + entitySuffix
}

func (c *CellEntities) ShouldStore() bool {
	return c.opts.Entities && len(c.Entities) > 0
}

func (c *CellEntities) VerboseInfo() string {
	return fmt.Sprintf("%d entities in %s cell [%d, %d]", len(c.Entities), c.Key.Dimension, c.Key.X, c.Key.Z)
}

func (c *CellEntities) AnonymizedInfo() string {
	return fmt.Sprintf("%d entities in %s", len(c.Entities), dimension.ShortName(c.Key.Dimension))
}

// Store 编码全部实体并写入维度对应的 region 存储。单个实体编码失败只省略该实体并计为一次失败。
// 写入只落在工作副本上，实体与 cell 计数在 Finalize 之后由 RecordRegionOutcomes 按提交结果补记。
func (c *CellEntities) Store(ctx context.Context, pass *Pass) error {
	dir, err := pass.Session.RegionDirectory(c.Key.Dimension)
	if err != nil {
		return err
	}
	storage, err := pass.Regions.Open(c.Category(), dir)
	if err != nil {
		return err
	}

	entities := nbt.NewList(nbt.TagCompound)
	for _, e := range c.Entities {
		record, err := e.Compound(c.opts, pass.Now)
		if err != nil {
			pass.logger().WithFields(logging.ItemFields(c.Category(), e.Identity().String(), c.Key.Dimension)).
				WithError(err).Warn("entity omitted from cell record")
			pass.Stats.AddFailure()
			continue
		}
		entities.Add(record)
	}
	if entities.Len() == 0 {
		return fmt.Errorf("%w: %w: no encodable entities in %s", ErrEncoding, ErrAccounted, c.Key)
	}

	root := nbt.NewCompound().
		PutInt("DataVersion", c.opts.DataVersion).
		PutIntArray("Position", []int32{c.Key.X, c.Key.Z}).
		Put("Entities", entities)
	payload, err := nbt.Marshal(root)
	if err != nil {
		return errors.Join(ErrEncoding, err)
	}
	return storage.WriteCell(ctx, c.Key.X, c.Key.Z, payload, entities.Len())
}

// RecordRegionOutcomes 把 region 文件的提交结果计入统计：已提交文件中的实体与 cell
// 记为保存成功，被丢弃文件中的实体逐个记为失败。
func RecordRegionOutcomes(st *stats.Statistics, outcomes []region.Outcome) {
	for _, out := range outcomes {
		dim, ok := strings.CutSuffix(out.Key, entitySuffix)
		if !ok {
			continue
		}
		if out.Committed {
			st.AddEntities(dim, out.Items)
			st.AddCells(dim, out.Cells)
			continue
		}
		st.AddFailures(out.Items)
	}
}
