package capture

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/google/uuid"

	"github.com/worldsnap/worldsnap/internal/hotcache"
	"github.com/worldsnap/worldsnap/internal/nbt"
)

// CellShift 是方块坐标到 cell 坐标的位移（16 格一个 cell）。
const CellShift = 4

// Vec3 是世界坐标或速度向量。
type Vec3 struct {
	X, Y, Z float64
}

func (v Vec3) finite() bool {
	return isFinite(v.X) && isFinite(v.Y) && isFinite(v.Z)
}

func (v Vec3) list() *nbt.List {
	return nbt.DoubleList(v.X, v.Y, v.Z)
}

// CellOf 返回坐标所在的 cell；非有限值落在原点 cell。
func CellOf(dimension string, pos Vec3) hotcache.CellKey {
	return hotcache.CellKey{
		Dimension: dimension,
		SpatialCell: hotcache.SpatialCell{
			X: blockToCell(pos.X),
			Z: blockToCell(pos.Z),
		},
	}
}

func blockToCell(v float64) int32 {
	if !isFinite(v) {
		return 0
	}
	return int32(math.Floor(v)) >> CellShift
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// EntityState 是某一时刻实体状态的值拷贝，保存协程只读取这份拷贝。
type EntityState struct {
	ID        uuid.UUID
	Type      string
	Dimension string
	Pos       Vec3
	Yaw       float32
	Pitch     float32
	Motion    Vec3
	Air       int16
	Fire      int16
	OnGround  bool
}

// ItemStack 是背包中的一格物品。
type ItemStack struct {
	Slot       int8
	ID         string
	Count      int32
	Components *nbt.Compound
}

func (s ItemStack) validate() error {
	if s.ID == "" {
		return fmt.Errorf("%w: slot %d has empty item id", ErrEncoding, s.Slot)
	}
	if s.Count < 1 || s.Count > 99 {
		return fmt.Errorf("%w: slot %d count %d out of range", ErrEncoding, s.Slot, s.Count)
	}
	return nil
}

// Abilities 对应玩家记录中的 abilities compound。
type Abilities struct {
	Invulnerable bool
	Flying       bool
	MayFly       bool
	InstaBuild   bool
	FlySpeed     float32
	WalkSpeed    float32
}

// DeathLocation 是玩家上次死亡的位置，属于隐私敏感字段。
type DeathLocation struct {
	Dimension string
	X, Y, Z   int32
}

// PlayerState 是玩家状态的值拷贝。
type PlayerState struct {
	ID             uuid.UUID
	Name           string
	Dimension      string
	Pos            Vec3
	Yaw            float32
	Pitch          float32
	Motion         Vec3
	Health         float32
	FoodLevel      int32
	FoodSaturation float32
	XPLevel        int32
	XPProgress     float32
	XPTotal        int32
	Air            int16
	Fire           int16
	OnGround       bool
	Invulnerable   bool
	PortalCooldown int32
	FallDistance   float32
	Abilities      Abilities
	Score          int32
	Inventory      []ItemStack
	EnderItems     []ItemStack
	LastDeath      *DeathLocation
}

// uuidHalves 拆出高低两个 64 位，对应实体记录的 UUIDMost/UUIDLeast。
func uuidHalves(id uuid.UUID) (most, least int64) {
	return int64(binary.BigEndian.Uint64(id[:8])), int64(binary.BigEndian.Uint64(id[8:]))
}

// uuidWords 拆为四个 32 位字，对应玩家记录的 UUID int 数组。
func uuidWords(id uuid.UUID) []int32 {
	words := make([]int32, 4)
	for i := range words {
		words[i] = int32(binary.BigEndian.Uint32(id[i*4:]))
	}
	return words
}
