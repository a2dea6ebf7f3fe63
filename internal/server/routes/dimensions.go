package routes

import (
	"github.com/gofiber/fiber/v3"

	"github.com/worldsnap/worldsnap/internal/dimension"
)

// RegisterDimensionRoutes 暴露 /-/dimensions 诊断接口，查询维度键与 region 目录的映射。
func RegisterDimensionRoutes(app *fiber.App) {
	if app == nil {
		return
	}

	app.Get("/-/dimensions", func(c fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"dimensions": encodeLayouts(dimension.List()),
		})
	})

	app.Get("/-/dimensions/:key", func(c fiber.Ctx) error {
		layout, err := dimension.Resolve(c.Params("key"))
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_dimension_key"})
		}
		return c.JSON(encodeLayout(layout))
	})
}

type layoutPayload struct {
	Key         string `json:"key"`
	RegionDir   string `json:"region_dir"`
	Description string `json:"description,omitempty"`
}

func encodeLayouts(layouts []dimension.Layout) []layoutPayload {
	if len(layouts) == 0 {
		return nil
	}
	result := make([]layoutPayload, 0, len(layouts))
	for _, layout := range layouts {
		result = append(result, encodeLayout(layout))
	}
	return result
}

func encodeLayout(layout dimension.Layout) layoutPayload {
	regionDir, err := dimension.RegionDir(layout.Key)
	if err != nil {
		regionDir = ""
	}
	return layoutPayload{
		Key:         layout.Key,
		RegionDir:   regionDir,
		Description: layout.Description,
	}
}
