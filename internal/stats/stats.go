// Package stats 汇总单次保存过程的计数与类别集合，供日志、管理接口与 CLI 输出。
package stats

import (
	"sort"
	"sync"
	"time"
)

// 计数器名称，同时作为 Report.Counters 的键。
const (
	CounterEntities     = "entities"
	CounterPlayers      = "players"
	CounterAdvancements = "advancements"
	CounterCells        = "cells"
	CounterFailures     = "failures"
	CounterSkipped      = "skipped"
)

// Statistics 在一次保存过程中被各个 Storeable 并发累加。
type Statistics struct {
	mu         sync.Mutex
	started    time.Time
	counters   map[string]int
	categories map[string]int
	dimensions map[string]struct{}
}

// New 创建计数器，started 为本次保存的开始时间。
func New(started time.Time) *Statistics {
	return &Statistics{
		started:    started,
		counters:   make(map[string]int),
		categories: make(map[string]int),
		dimensions: make(map[string]struct{}),
	}
}

// AddEntities 记录写入某维度的 n 个实体，类别为 <dimension>/entities。
func (s *Statistics) AddEntities(dimension string, n int) {
	if n <= 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.counters[CounterEntities] += n
	s.categories[dimension+"/entities"] += n
	s.dimensions[dimension] = struct{}{}
}

// AddCells 记录 n 个已提交的 cell 记录。
func (s *Statistics) AddCells(dimension string, n int) {
	if n <= 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.counters[CounterCells] += n
	s.dimensions[dimension] = struct{}{}
}

// AddPlayer 记录一份玩家数据，并把玩家所在维度计入触及的维度。
func (s *Statistics) AddPlayer(dimension string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.counters[CounterPlayers]++
	s.categories["players"]++
	if dimension != "" {
		s.dimensions[dimension] = struct{}{}
	}
}

// AddAdvancements 记录一份进度文件。
func (s *Statistics) AddAdvancements() {
	s.add(CounterAdvancements, "advancements", 1)
}

// AddFailure 记录一个被丢弃的条目。
func (s *Statistics) AddFailure() {
	s.add(CounterFailures, "", 1)
}

// AddFailures 记录 n 个被丢弃的对象，例如随未提交的 region 文件一起丢弃的实体。
func (s *Statistics) AddFailures(n int) {
	if n <= 0 {
		return
	}
	s.add(CounterFailures, "", n)
}

// AddSkipped 记录一个因配置被跳过的条目。
func (s *Statistics) AddSkipped() {
	s.add(CounterSkipped, "", 1)
}

func (s *Statistics) add(counter, category string, n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.counters[counter] += n
	if category != "" {
		s.categories[category] += n
	}
}

// Count returns the current value of a counter.
func (s *Statistics) Count(counter string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.counters[counter]
}

// Report 是某一时刻统计信息的只读副本。
type Report struct {
	PassID     string         `json:"passId,omitempty"`
	Started    time.Time      `json:"started"`
	Duration   time.Duration  `json:"duration"`
	Counters   map[string]int `json:"counters"`
	Categories map[string]int `json:"categories"`
	Dimensions []string       `json:"dimensions"`
	Committed  int            `json:"committedRegions"`
	Aborted    int            `json:"abortedRegions"`
}

// Report 以 finished 作为结束时间生成快照。
func (s *Statistics) Report(finished time.Time) Report {
	s.mu.Lock()
	defer s.mu.Unlock()

	report := Report{
		Started:    s.started,
		Duration:   finished.Sub(s.started),
		Counters:   make(map[string]int, len(s.counters)),
		Categories: make(map[string]int, len(s.categories)),
		Dimensions: make([]string, 0, len(s.dimensions)),
	}
	for k, v := range s.counters {
		report.Counters[k] = v
	}
	for k, v := range s.categories {
		report.Categories[k] = v
	}
	for dim := range s.dimensions {
		report.Dimensions = append(report.Dimensions, dim)
	}
	sort.Strings(report.Dimensions)
	return report
}

// CategoryNames 返回被触及的类别（排序后）。
func (r Report) CategoryNames() []string {
	names := make([]string, 0, len(r.Categories))
	for k := range r.Categories {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// Saved 返回成功写入的对象总数（实体、玩家、进度）。
func (r Report) Saved() int {
	return r.Counters[CounterEntities] + r.Counters[CounterPlayers] + r.Counters[CounterAdvancements]
}
