// Package dimension 维护维度键到存档目录布局的注册表。
//
// 内置维度在 init() 中通过 MustRegister 注册；未注册的命名空间维度按
// dimensions/<namespace>/<path> 的通用布局解析，与外部客户端的加载规则一致。
// Session 通过本包定位每个维度的实体 region 目录。
package dimension
