// Package capture 定义可缓存 / 可存储能力以及实体、玩家、进度三类实现。
//
// 模拟循环通过 Cacheable 把对象的状态快照放入 hotcache；保存时由
// FromSnapshot 将快照转换为一次性使用的 Storeable 列表交给保存流程。
package capture
