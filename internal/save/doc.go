// Package save 驱动单次保存过程：读取缓存快照、筛选、写入并提交 region 文件。
package save
