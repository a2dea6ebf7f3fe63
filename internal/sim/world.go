package sim

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"

	"github.com/worldsnap/worldsnap/internal/capture"
	"github.com/worldsnap/worldsnap/internal/hotcache"
)

const (
	// DefaultSpread 是角色出生点离原点的最大水平距离（方块）。
	DefaultSpread = 256.0

	minLifetime = 100
	maxLifetime = 600
	walkSpeed   = 0.3
	groundY     = 64.0
	// 每隔多少步推进一个进度条件。
	advancementEvery = 20
)

var mobTypes = []string{
	"minecraft:pig",
	"minecraft:cow",
	"minecraft:sheep",
	"minecraft:chicken",
	"minecraft:zombie",
	"minecraft:skeleton",
}

// 玩家依次达成的进度条件。
var advancementPlan = []struct {
	ID        string
	Criterion string
}{
	{"minecraft:story/root", "crafting_table"},
	{"minecraft:story/mine_stone", "get_stone"},
	{"minecraft:story/upgrade_tools", "stone_pickaxe"},
	{"minecraft:story/smelt_iron", "iron"},
	{"minecraft:adventure/root", "killed_something"},
}

// Options 描述世界规模，Seed 相同则演化过程相同。
type Options struct {
	Seed       int64
	Actors     int
	Players    int
	Dimensions []string
	Spread     float64
}

// World 只能由一个协程推进；缓存中的条目都是状态快照，保存协程不会读到可变状态。
type World struct {
	cache   *hotcache.Cache
	src     *rand.ChaCha8
	rng     *rand.Rand
	opts    Options
	clock   func() time.Time
	tick    uint64
	actors  []*actor
	players []*player
}

type actor struct {
	state    capture.EntityState
	lifetime int
}

type player struct {
	state    capture.PlayerState
	progress map[string]capture.AdvancementProgress
	next     int
}

// New 创建世界并把初始角色与玩家放入缓存。
func New(cache *hotcache.Cache, opts Options, clock func() time.Time) (*World, error) {
	if cache == nil {
		return nil, errors.New("sim: cache is required")
	}
	if opts.Actors > 0 && len(opts.Dimensions) == 0 {
		return nil, errors.New("sim: at least one dimension is required")
	}
	if opts.Spread <= 0 {
		opts.Spread = DefaultSpread
	}
	if clock == nil {
		clock = time.Now
	}

	var seed [32]byte
	binary.BigEndian.PutUint64(seed[:], uint64(opts.Seed))
	src := rand.NewChaCha8(seed)
	w := &World{
		cache: cache,
		src:   src,
		rng:   rand.New(src),
		opts:  opts,
		clock: clock,
	}

	for i := 0; i < opts.Actors; i++ {
		a, err := w.spawnActor()
		if err != nil {
			return nil, err
		}
		w.actors = append(w.actors, a)
	}
	for i := 0; i < opts.Players; i++ {
		p, err := w.joinPlayer(i)
		if err != nil {
			return nil, err
		}
		w.players = append(w.players, p)
	}
	return w, nil
}

// Tick returns the number of completed steps.
func (w *World) Tick() uint64 {
	return w.tick
}

// ActorCount returns the number of live actors.
func (w *World) ActorCount() int {
	return len(w.actors)
}

// Step 推进一步：移动角色并重新缓存，寿命耗尽的角色消失并由新角色替补。
func (w *World) Step() error {
	w.tick++
	for i, a := range w.actors {
		a.lifetime--
		if a.lifetime <= 0 {
			capture.NewEntity(w.cache, a.state).Flush()
			replacement, err := w.spawnActor()
			if err != nil {
				return err
			}
			w.actors[i] = replacement
			continue
		}
		a.state.Pos.X += a.state.Motion.X
		a.state.Pos.Z += a.state.Motion.Z
		if w.rng.IntN(20) == 0 {
			a.state.Motion = w.randomMotion()
			a.state.Yaw = float32(w.rng.Float64() * 360)
		}
		capture.NewEntity(w.cache, a.state).Cache()
	}

	for _, p := range w.players {
		p.state.Pos.X += p.state.Motion.X
		p.state.Pos.Z += p.state.Motion.Z
		p.state.XPTotal++
		if w.tick%advancementEvery == 0 && p.next < len(advancementPlan) {
			step := advancementPlan[p.next]
			p.progress[step.ID] = capture.AdvancementProgress{
				Criteria: map[string]time.Time{step.Criterion: w.clock()},
				Done:     true,
			}
			p.next++
		}
		w.cachePlayer(p)
	}
	return nil
}

// Run 以 tickRate 推进世界直到 ctx 取消。
func (w *World) Run(ctx context.Context, tickRate time.Duration) error {
	if tickRate <= 0 {
		return fmt.Errorf("sim: invalid tick rate %s", tickRate)
	}
	ticker := time.NewTicker(tickRate)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := w.Step(); err != nil {
				return err
			}
		}
	}
}

// Close 让全部角色与玩家离开缓存。
func (w *World) Close() {
	for _, a := range w.actors {
		capture.NewEntity(w.cache, a.state).Flush()
	}
	for _, p := range w.players {
		capture.NewPlayer(w.cache, p.state).Flush()
		capture.NewAdvancements(w.cache, p.state.ID, p.state.Dimension, nil).Flush()
	}
	w.actors = nil
	w.players = nil
}

func (w *World) spawnActor() (*actor, error) {
	id, err := uuid.NewRandomFromReader(w.src)
	if err != nil {
		return nil, err
	}
	a := &actor{
		state: capture.EntityState{
			ID:        id,
			Type:      mobTypes[w.rng.IntN(len(mobTypes))],
			Dimension: w.opts.Dimensions[w.rng.IntN(len(w.opts.Dimensions))],
			Pos: capture.Vec3{
				X: (w.rng.Float64()*2 - 1) * w.opts.Spread,
				Y: groundY,
				Z: (w.rng.Float64()*2 - 1) * w.opts.Spread,
			},
			Yaw:      float32(w.rng.Float64() * 360),
			Motion:   w.randomMotion(),
			Air:      300,
			OnGround: true,
		},
		lifetime: minLifetime + w.rng.IntN(maxLifetime-minLifetime),
	}
	capture.NewEntity(w.cache, a.state).Cache()
	return a, nil
}

func (w *World) joinPlayer(n int) (*player, error) {
	id, err := uuid.NewRandomFromReader(w.src)
	if err != nil {
		return nil, err
	}
	dim := "minecraft:overworld"
	if len(w.opts.Dimensions) > 0 {
		dim = w.opts.Dimensions[0]
	}
	p := &player{
		state: capture.PlayerState{
			ID:             id,
			Name:           fmt.Sprintf("player%d", n+1),
			Dimension:      dim,
			Pos:            capture.Vec3{X: 0.5, Y: groundY, Z: 0.5},
			Motion:         capture.Vec3{X: 0.1},
			Health:         20,
			FoodLevel:      20,
			FoodSaturation: 5,
			Air:            300,
			OnGround:       true,
			Abilities:      capture.Abilities{FlySpeed: 0.05, WalkSpeed: 0.1},
			LastDeath:      &capture.DeathLocation{Dimension: dim, X: -12, Y: 63, Z: 40},
		},
		progress: make(map[string]capture.AdvancementProgress),
	}
	w.cachePlayer(p)
	return p, nil
}

// cachePlayer 缓存玩家与进度账本的深拷贝。
func (w *World) cachePlayer(p *player) {
	state := p.state
	state.XPLevel = state.XPTotal / 100
	state.XPProgress = float32(state.XPTotal%100) / 100
	state.Inventory = []capture.ItemStack{
		{Slot: 0, ID: "minecraft:stone_pickaxe", Count: 1},
		{Slot: 1, ID: "minecraft:cobblestone", Count: int32(1 + p.next*8)},
		{Slot: 8, ID: "minecraft:bread", Count: 16},
	}
	state.EnderItems = []capture.ItemStack{
		{Slot: 0, ID: "minecraft:diamond", Count: 3},
	}
	if p.state.LastDeath != nil {
		death := *p.state.LastDeath
		state.LastDeath = &death
	}
	capture.NewPlayer(w.cache, state).Cache()

	ledger := make(map[string]capture.AdvancementProgress, len(p.progress))
	for id, progress := range p.progress {
		criteria := make(map[string]time.Time, len(progress.Criteria))
		for name, at := range progress.Criteria {
			criteria[name] = at
		}
		ledger[id] = capture.AdvancementProgress{Criteria: criteria, Done: progress.Done}
	}
	capture.NewAdvancements(w.cache, state.ID, state.Dimension, ledger).Cache()
}

func (w *World) randomMotion() capture.Vec3 {
	return capture.Vec3{
		X: (w.rng.Float64()*2 - 1) * walkSpeed,
		Z: (w.rng.Float64()*2 - 1) * walkSpeed,
	}
}
