package capture

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/worldsnap/worldsnap/internal/hotcache"
	"github.com/worldsnap/worldsnap/internal/session"
)

// AdvancementTimeLayout 是进度文件中条件达成时间的格式。
const AdvancementTimeLayout = "2006-01-02 15:04:05 -0700"

// AdvancementProgress 记录一个进度下各条件的达成时间，未达成的条件不出现。
type AdvancementProgress struct {
	Criteria map[string]time.Time
	Done     bool
}

// AdvancementsStoreable 是玩家进度账本的缓存条目与存储单元。
type AdvancementsStoreable struct {
	owner     uuid.UUID
	dimension string
	progress  map[string]AdvancementProgress
	cache     *hotcache.Cache
	opts      Options
}

// NewAdvancements 以账本快照构造条目，progress 由调用方交出所有权。
func NewAdvancements(cache *hotcache.Cache, owner uuid.UUID, dim string, progress map[string]AdvancementProgress) *AdvancementsStoreable {
	return &AdvancementsStoreable{owner: owner, dimension: dim, progress: progress, cache: cache}
}

func (a *AdvancementsStoreable) Identity() uuid.UUID {
	return a.owner
}

func (a *AdvancementsStoreable) Cell() hotcache.CellKey {
	return hotcache.CellKey{Dimension: a.dimension}
}

func (a *AdvancementsStoreable) Cache() {
	a.cache.PutSingleton(CategoryAdvancements, a)
}

func (a *AdvancementsStoreable) Flush() {
	a.cache.RemoveSingleton(CategoryAdvancements, a.owner)
}

func (a *AdvancementsStoreable) bind(opts Options) *AdvancementsStoreable {
	bound := *a
	bound.opts = opts
	return &bound
}

func (a *AdvancementsStoreable) ShouldStore() bool {
	return a.opts.Advancements
}

func (a *AdvancementsStoreable) VerboseInfo() string {
	return fmt.Sprintf("%d advancements of %s", a.obtained(), a.owner)
}

func (a *AdvancementsStoreable) AnonymizedInfo() string {
	return fmt.Sprintf("%d advancements", a.obtained())
}

func (a *AdvancementsStoreable) obtained() int {
	n := 0
	for _, p := range a.progress {
		if len(p.Criteria) > 0 {
			n++
		}
	}
	return n
}

type advancementJSON struct {
	Criteria map[string]string `json:"criteria"`
	Done     bool              `json:"done"`
}

// Document 生成进度 JSON，只包含至少达成一个条件的进度。
func (a *AdvancementsStoreable) Document(opts Options) ([]byte, error) {
	doc := make(map[string]any, len(a.progress)+1)
	for id, p := range a.progress {
		if len(p.Criteria) == 0 {
			continue
		}
		criteria := make(map[string]string, len(p.Criteria))
		for name, at := range p.Criteria {
			criteria[name] = at.Format(AdvancementTimeLayout)
		}
		doc[id] = advancementJSON{Criteria: criteria, Done: p.Done}
	}
	doc["DataVersion"] = opts.DataVersion
	return json.MarshalIndent(doc, "", "  ")
}

// Store 写出 advancements/<uuid>.json。
func (a *AdvancementsStoreable) Store(ctx context.Context, pass *Pass) error {
	body, err := a.Document(a.opts)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrEncoding, err)
	}
	dir, err := pass.Session.Directory(session.PurposeAdvancements)
	if err != nil {
		return err
	}
	if _, err := pass.Session.WriteAtomic(ctx, dir, a.owner.String()+".json", bytes.NewReader(body)); err != nil {
		return err
	}
	pass.Stats.AddAdvancements()
	return nil
}
