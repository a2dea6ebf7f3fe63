package save

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/worldsnap/worldsnap/internal/capture"
	"github.com/worldsnap/worldsnap/internal/hotcache"
	"github.com/worldsnap/worldsnap/internal/logging"
	"github.com/worldsnap/worldsnap/internal/region"
	"github.com/worldsnap/worldsnap/internal/session"
	"github.com/worldsnap/worldsnap/internal/stats"
)

// ErrPassInProgress 表示已有保存过程在运行。
var ErrPassInProgress = errors.New("save: pass already in progress")

// Orchestrator 保证同一时刻只有一个保存过程，并保留最近一次的报告。
type Orchestrator struct {
	root   string
	cache  *hotcache.Cache
	opts   capture.Options
	logger *logrus.Logger

	now         func() time.Time
	parallelism int

	running atomic.Bool
	mu      sync.Mutex
	last    *stats.Report
}

// Option 调整 Orchestrator，主要供测试注入时钟。
type Option func(*Orchestrator)

// WithClock 替换保存过程使用的时钟。
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) {
		o.now = now
	}
}

// WithParallelism 设置 region 文件提交的并发度。
func WithParallelism(n int) Option {
	return func(o *Orchestrator) {
		o.parallelism = n
	}
}

// New 创建保存编排器。root 是存档根目录，每次保存都会重新打开。
func New(root string, cache *hotcache.Cache, opts capture.Options, logger *logrus.Logger, options ...Option) *Orchestrator {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	o := &Orchestrator{
		root:        root,
		cache:       cache,
		opts:        opts,
		logger:      logger,
		now:         time.Now,
		parallelism: region.DefaultParallelism,
	}
	for _, opt := range options {
		opt(o)
	}
	return o
}

// Running reports whether a pass is in progress.
func (o *Orchestrator) Running() bool {
	return o.running.Load()
}

// LastReport 返回最近一次完成的保存报告。
func (o *Orchestrator) LastReport() (stats.Report, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.last == nil {
		return stats.Report{}, false
	}
	return *o.last, true
}

// Run 执行一次保存。单个条目的失败只记录日志并计数；存储介质不可用时立即中止，
// 丢弃全部未提交的 region 工作副本并返回错误。ctx 取消后不再开始新的写入或提交。
func (o *Orchestrator) Run(ctx context.Context) (stats.Report, error) {
	if !o.running.CompareAndSwap(false, true) {
		return stats.Report{}, ErrPassInProgress
	}
	defer o.running.Store(false)

	passID := uuid.NewString()
	started := o.now()
	logger := o.logger.WithFields(logging.PassFields(passID, o.root))
	counters := stats.New(started)

	report, err := o.run(ctx, logger, counters, started)
	report.PassID = passID

	fields := logrus.Fields{
		"saved":      report.Saved(),
		"failures":   report.Counters[stats.CounterFailures],
		"categories": report.CategoryNames(),
		"duration":   report.Duration.String(),
	}
	if err != nil {
		logger.WithFields(fields).WithError(err).Error("save pass failed")
	} else {
		logger.WithFields(fields).Info("save pass finished")
	}

	o.mu.Lock()
	o.last = &report
	o.mu.Unlock()
	return report, err
}

func (o *Orchestrator) run(ctx context.Context, logger *logrus.Entry, counters *stats.Statistics, started time.Time) (stats.Report, error) {
	sess, err := session.Open(o.root)
	if err != nil {
		return counters.Report(o.now()), err
	}

	set := region.NewSet(region.WithClock(o.now), region.WithParallelism(o.parallelism))
	pass := &capture.Pass{
		Session: sess,
		Regions: set,
		Stats:   counters,
		Logger:  logger,
		Now:     started,
	}

	units := capture.FromSnapshot(o.cache.Snapshot(), o.opts)
	logger.WithField("units", len(units)).Debug("save pass started")

	for _, unit := range units {
		if err := ctx.Err(); err != nil {
			return o.finish(counters, set.Abort()), err
		}
		if !unit.ShouldStore() {
			counters.AddSkipped()
			continue
		}
		if err := unit.Store(ctx, pass); err != nil {
			if errors.Is(err, session.ErrUnavailable) {
				return o.finish(counters, set.Abort()), fmt.Errorf("%s: %w", unit.VerboseInfo(), err)
			}
			logger.WithField("item", unit.VerboseInfo()).WithError(err).Warn("item dropped from save pass")
			if !errors.Is(err, capture.ErrAccounted) {
				counters.AddFailure()
			}
			continue
		}
		logger.WithField("item", unit.AnonymizedInfo()).Debug("item stored")
	}

	result, err := set.Finalize(ctx)
	return o.finish(counters, result), err
}

// finish 按 region 文件的实际结局补记实体计数并生成报告；未提交文件中的实体计为失败。
func (o *Orchestrator) finish(counters *stats.Statistics, result region.FinalizeResult) stats.Report {
	capture.RecordRegionOutcomes(counters, result.Outcomes)
	report := counters.Report(o.now())
	report.Committed = result.Committed
	report.Aborted = result.Aborted
	return report
}
