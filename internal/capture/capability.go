package capture

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/worldsnap/worldsnap/internal/region"
	"github.com/worldsnap/worldsnap/internal/session"
	"github.com/worldsnap/worldsnap/internal/stats"
)

// ErrEncoding 表示某个字段或条目未通过编码前校验，对应条目会被省略。
var ErrEncoding = errors.New("capture: encoding failure")

// ErrAccounted 标记失败已由 Storeable 自行计入 failures，保存流程只记录日志不再计数。
var ErrAccounted = errors.New("capture: failure already counted")

// 单例类别名称。
const (
	CategoryPlayers      = "players"
	CategoryAdvancements = "advancements"
)

// Cacheable 是加入 / 离开 hotcache 的能力，由模拟循环同步调用。
type Cacheable interface {
	Cache()
	Flush()
}

// Storeable 是参与一次保存过程的能力。
type Storeable interface {
	// ShouldStore 只读取构造时拷贝的配置，不产生副作用。
	ShouldStore() bool
	VerboseInfo() string
	AnonymizedInfo() string
	// Store 写出记录；返回的 error 只影响当前条目，除非包装了 session.ErrUnavailable。
	Store(ctx context.Context, pass *Pass) error
}

// Pass 汇集一次保存过程共享的对象，由保存流程创建并在过程结束时丢弃。
type Pass struct {
	Session *session.Session
	Regions *region.Set
	Stats   *stats.Statistics
	Logger  logrus.FieldLogger
	Now     time.Time
}

// Options 是采集相关的配置快照，仅在编码时读取。
type Options struct {
	DataVersion int32

	Players      bool
	Advancements bool
	Entities     bool

	ModifyEntityBehavior bool
	NoAI                 bool
	NoGravity            bool
	Invulnerable         bool
	Silent               bool

	CaptureTimestamp        bool
	CensorLastDeathLocation bool
}

func (p *Pass) logger() logrus.FieldLogger {
	if p.Logger == nil {
		return logrus.StandardLogger()
	}
	return p.Logger
}
