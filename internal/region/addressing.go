package region

import "fmt"

const (
	// Size 是每个 region 边长包含的 cell 数。
	Size = 32

	// Extension 是 region 文件后缀。
	Extension = "mca"

	slotCount = Size * Size
)

// Pos 标识一个 region 文件。
type Pos struct {
	X, Z int32
}

// FileName 返回 r.<x>.<z>.<ext> 形式的文件名。
func (p Pos) FileName() string {
	return fmt.Sprintf("r.%d.%d.%s", p.X, p.Z, Extension)
}

// Locate 将 cell 坐标映射为 region 位置与区域内坐标，负坐标使用向下取整除法。
func Locate(cellX, cellZ int32) (pos Pos, localX, localZ int) {
	pos = Pos{X: floorDiv(cellX, Size), Z: floorDiv(cellZ, Size)}
	localX = int(cellX - pos.X*Size)
	localZ = int(cellZ - pos.Z*Size)
	return pos, localX, localZ
}

// SlotIndex 返回区域内坐标对应的槽位序号。
func SlotIndex(localX, localZ int) int {
	return localZ*Size + localX
}

func floorDiv(a, b int32) int32 {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}
