package dimension

// 原版三个维度沿用外部客户端的历史目录名。
func init() {
	MustRegister(Layout{
		Key:         "minecraft:overworld",
		Dir:         "",
		Description: "Overworld, stored at the save root",
	})
	MustRegister(Layout{
		Key:         "minecraft:the_nether",
		Dir:         "DIM-1",
		Description: "Nether",
	})
	MustRegister(Layout{
		Key:         "minecraft:the_end",
		Dir:         "DIM1",
		Description: "The End",
	})
}
