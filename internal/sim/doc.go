// Package sim 提供一个确定性的合成世界：单协程固定步长推进，角色生成、移动与消失时
// 同步调用 Cache/Flush，玩家状态与进度账本每步重新缓存。
package sim
