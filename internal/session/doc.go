// Package session 抽象一次保存的目标存档目录，按用途（玩家数据、进度数据、
// 各维度实体 region）提供目录，并负责两种安全写入：
//
//   - WriteAtomic：临时文件写满后 rename 覆盖目标，用于进度 JSON；
//   - BackupAndReplace：临时文件写满后先把现有文件改名为 <name>_old，
//     再把临时文件改名为正式文件，用于玩家 .dat。
//
// 两者在失败路径上都会清理临时文件，正式文件永远不会被原地修改。
// 目录无法创建时返回 ErrUnavailable，调用方应中止整个保存过程。
package session
