package capture

import (
	"bytes"
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/worldsnap/worldsnap/internal/dimension"
	"github.com/worldsnap/worldsnap/internal/hotcache"
	"github.com/worldsnap/worldsnap/internal/logging"
	"github.com/worldsnap/worldsnap/internal/nbt"
	"github.com/worldsnap/worldsnap/internal/session"
)

// PlayerStoreable 既是在线玩家的缓存条目，也是保存时写出 <uuid>.dat 的存储单元。
type PlayerStoreable struct {
	state PlayerState
	cache *hotcache.Cache
	opts  Options
}

// NewPlayer 以状态快照构造玩家条目。
func NewPlayer(cache *hotcache.Cache, state PlayerState) *PlayerStoreable {
	return &PlayerStoreable{state: state, cache: cache}
}

func (p *PlayerStoreable) Identity() uuid.UUID {
	return p.state.ID
}

func (p *PlayerStoreable) Cell() hotcache.CellKey {
	return CellOf(p.state.Dimension, p.state.Pos)
}

// State returns the captured snapshot.
func (p *PlayerStoreable) State() PlayerState {
	return p.state
}

// Cache 放入 players 单例集合。
func (p *PlayerStoreable) Cache() {
	p.cache.PutSingleton(CategoryPlayers, p)
}

// Flush 从 players 单例集合中移除。
func (p *PlayerStoreable) Flush() {
	p.cache.RemoveSingleton(CategoryPlayers, p.state.ID)
}

// bind 返回带有本次保存配置的副本，缓存中的条目保持不变。
func (p *PlayerStoreable) bind(opts Options) *PlayerStoreable {
	bound := *p
	bound.opts = opts
	return &bound
}

func (p *PlayerStoreable) ShouldStore() bool {
	return p.opts.Players
}

func (p *PlayerStoreable) VerboseInfo() string {
	s := p.state
	return fmt.Sprintf("player %s (%s) at %.1f, %.1f, %.1f in %s", s.Name, s.ID, s.Pos.X, s.Pos.Y, s.Pos.Z, s.Dimension)
}

func (p *PlayerStoreable) AnonymizedInfo() string {
	return fmt.Sprintf("player %s in %s", p.state.Name, dimension.ShortName(p.state.Dimension))
}

// Compound 生成玩家记录。无效的物品格被省略并通过 omitted 返回对应错误。
func (p *PlayerStoreable) Compound(opts Options) (root *nbt.Compound, omitted []error, err error) {
	s := p.state
	if !s.Pos.finite() || !s.Motion.finite() {
		return nil, nil, fmt.Errorf("%w: player %s has non-finite position or motion", ErrEncoding, s.ID)
	}

	inventory, invErrs := itemList(s.Inventory)
	ender, enderErrs := itemList(s.EnderItems)
	omitted = append(invErrs, enderErrs...)

	root = nbt.NewCompound().
		PutIntArray("UUID", uuidWords(s.ID)).
		Put("Pos", s.Pos.list()).
		Put("Rotation", nbt.FloatList(s.Yaw, s.Pitch)).
		Put("Motion", s.Motion.list()).
		PutString("Dimension", s.Dimension).
		PutFloat("Health", s.Health).
		PutInt("foodLevel", s.FoodLevel).
		PutFloat("foodSaturationLevel", s.FoodSaturation).
		PutInt("XpLevel", s.XPLevel).
		PutFloat("XpP", s.XPProgress).
		PutInt("XpTotal", s.XPTotal).
		PutInt("playerGameType", 0).
		PutShort("Air", s.Air).
		PutShort("Fire", s.Fire).
		PutBool("OnGround", s.OnGround).
		PutBool("Invulnerable", s.Invulnerable).
		PutInt("PortalCooldown", s.PortalCooldown).
		PutFloat("FallDistance", s.FallDistance).
		Put("abilities", abilitiesCompound(s.Abilities)).
		PutInt("Score", s.Score).
		Put("Inventory", inventory).
		Put("EnderItems", ender)

	if s.LastDeath != nil {
		root.Put("LastDeathLocation", nbt.NewCompound().
			PutString("dimension", s.LastDeath.Dimension).
			PutIntArray("pos", []int32{s.LastDeath.X, s.LastDeath.Y, s.LastDeath.Z}))
	}
	if opts.CensorLastDeathLocation {
		root.Remove("LastDeathLocation")
	}
	root.PutInt("DataVersion", opts.DataVersion)
	return root, omitted, nil
}

// Store 以 backup-and-replace 方式写出 playerdata/<uuid>.dat。
func (p *PlayerStoreable) Store(ctx context.Context, pass *Pass) error {
	root, omitted, err := p.Compound(p.opts)
	if err != nil {
		return err
	}
	for _, itemErr := range omitted {
		pass.logger().WithFields(logging.ItemFields(CategoryPlayers, p.state.ID.String(), p.state.Dimension)).
			WithError(itemErr).Warn("item omitted from player record")
		pass.Stats.AddFailure()
	}

	var buf bytes.Buffer
	if err := nbt.WriteCompressed(&buf, root); err != nil {
		return fmt.Errorf("%w: %v", ErrEncoding, err)
	}
	dir, err := pass.Session.Directory(session.PurposePlayerData)
	if err != nil {
		return err
	}
	if _, err := pass.Session.BackupAndReplace(ctx, dir, p.state.ID.String()+".dat", &buf); err != nil {
		return err
	}
	pass.Stats.AddPlayer(p.state.Dimension)
	return nil
}

func itemList(items []ItemStack) (*nbt.List, []error) {
	list := nbt.NewList(nbt.TagCompound)
	var omitted []error
	for _, item := range items {
		if err := item.validate(); err != nil {
			omitted = append(omitted, err)
			continue
		}
		c := nbt.NewCompound().
			PutString("id", item.ID).
			PutInt("count", item.Count)
		if item.Components != nil && item.Components.Len() > 0 {
			c.Put("components", item.Components)
		}
		c.PutByte("Slot", item.Slot)
		list.Add(c)
	}
	return list, omitted
}

func abilitiesCompound(a Abilities) *nbt.Compound {
	return nbt.NewCompound().
		PutBool("invulnerable", a.Invulnerable).
		PutBool("flying", a.Flying).
		PutBool("mayfly", a.MayFly).
		PutBool("instabuild", a.InstaBuild).
		PutFloat("flySpeed", a.FlySpeed).
		PutFloat("walkSpeed", a.WalkSpeed)
}
