package routes

import (
	"encoding/json"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v3"

	"github.com/worldsnap/worldsnap/internal/dimension"
)

func TestEncodeLayoutsIncludesRegionDir(t *testing.T) {
	encoded := encodeLayouts([]dimension.Layout{
		{Key: "minecraft:overworld"},
		{Key: "minecraft:the_nether", Dir: "DIM-1", Description: "Nether"},
	})
	if len(encoded) != 2 {
		t.Fatalf("expected 2 layouts, got %d", len(encoded))
	}
	if encoded[0].RegionDir != "entities" {
		t.Fatalf("unexpected overworld region dir %s", encoded[0].RegionDir)
	}
	if encoded[1].RegionDir != "DIM-1/entities" || encoded[1].Description != "Nether" {
		t.Fatalf("unexpected nether payload %+v", encoded[1])
	}
	if encodeLayouts(nil) != nil {
		t.Fatalf("empty input should encode to nil")
	}
}

func TestDimensionRoutes(t *testing.T) {
	app := fiber.New()
	RegisterDimensionRoutes(app)

	resp, err := app.Test(httptest.NewRequest("GET", "/-/dimensions", nil))
	if err != nil {
		t.Fatalf("app.Test failed: %v", err)
	}
	var list struct {
		Dimensions []layoutPayload `json:"dimensions"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&list); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(list.Dimensions) < 3 {
		t.Fatalf("expected vanilla dimensions, got %+v", list.Dimensions)
	}

	resp, err = app.Test(httptest.NewRequest("GET", "/-/dimensions/the_end", nil))
	if err != nil {
		t.Fatalf("app.Test failed: %v", err)
	}
	var detail layoutPayload
	if err := json.NewDecoder(resp.Body).Decode(&detail); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if detail.Key != "minecraft:the_end" || detail.RegionDir != "DIM1/entities" {
		t.Fatalf("unexpected detail %+v", detail)
	}

	resp, err = app.Test(httptest.NewRequest("GET", "/-/dimensions/Bad%20Key", nil))
	if err != nil {
		t.Fatalf("app.Test failed: %v", err)
	}
	if resp.StatusCode != fiber.StatusBadRequest {
		t.Fatalf("expected 400 for invalid key, got %d", resp.StatusCode)
	}
}
