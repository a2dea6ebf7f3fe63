package hotcache

import (
	"errors"
	"math/rand"
	"sync"
	"testing"

	"github.com/google/uuid"
)

type testEntry struct {
	id    uuid.UUID
	key   CellKey
	value string
}

func (e testEntry) Identity() uuid.UUID { return e.id }
func (e testEntry) Cell() CellKey       { return e.key }

func cell(x, z int32) CellKey {
	return CellKey{Dimension: "minecraft:overworld", SpatialCell: SpatialCell{X: x, Z: z}}
}

func TestCacheFlushSequenceMatchesModel(t *testing.T) {
	c := New()
	key := cell(3, -4)
	ids := make([]uuid.UUID, 8)
	for i := range ids {
		ids[i] = uuid.New()
	}

	model := map[uuid.UUID]bool{}
	rng := rand.New(rand.NewSource(42))
	for step := 0; step < 500; step++ {
		id := ids[rng.Intn(len(ids))]
		if rng.Intn(3) == 0 {
			c.Remove(id)
			delete(model, id)
		} else {
			c.Put(testEntry{id: id, key: key})
			model[id] = true
		}
	}

	entries := c.Bucket(key)
	if len(entries) != len(model) {
		t.Fatalf("bucket has %d entries, model has %d", len(entries), len(model))
	}
	seen := map[uuid.UUID]bool{}
	for _, e := range entries {
		if !model[e.Identity()] {
			t.Fatalf("unexpected identity %s", e.Identity())
		}
		if seen[e.Identity()] {
			t.Fatalf("identity %s duplicated", e.Identity())
		}
		seen[e.Identity()] = true
	}
	if len(model) == 0 && c.HasCell(key) {
		t.Fatalf("empty bucket should not be retained")
	}
	if err := c.Verify(); err != nil {
		t.Fatalf("verify: %v", err)
	}
}

func TestFlushOnlyEntryRemovesBucket(t *testing.T) {
	c := New()
	e := testEntry{id: uuid.New(), key: cell(0, 0)}
	c.Put(e)
	if !c.HasCell(e.key) {
		t.Fatalf("bucket should exist after Put")
	}
	if !c.Remove(e.id) {
		t.Fatalf("remove should report the entry")
	}
	if c.HasCell(e.key) {
		t.Fatalf("bucket should be removed once empty")
	}
	if c.Remove(e.id) {
		t.Fatalf("second remove should be a no-op")
	}
	if len(c.Cells()) != 0 {
		t.Fatalf("cache should have no cells, got %v", c.Cells())
	}
}

func TestRecacheReplacesContent(t *testing.T) {
	c := New()
	id := uuid.New()
	c.Put(testEntry{id: id, key: cell(1, 1), value: "v1"})
	c.Put(testEntry{id: id, key: cell(1, 1), value: "v2"})

	entries := c.Bucket(cell(1, 1))
	if len(entries) != 1 {
		t.Fatalf("expected bucket size 1, got %d", len(entries))
	}
	if got := entries[0].(testEntry).value; got != "v2" {
		t.Fatalf("expected replaced content v2, got %s", got)
	}
}

func TestPutMovesEntryBetweenCells(t *testing.T) {
	c := New()
	id := uuid.New()
	c.Put(testEntry{id: id, key: cell(0, 0)})
	c.Put(testEntry{id: id, key: cell(0, 1)})

	if c.HasCell(cell(0, 0)) {
		t.Fatalf("old cell should be removed after the only entry moved")
	}
	if len(c.Bucket(cell(0, 1))) != 1 {
		t.Fatalf("entry should live in the new cell")
	}
	if !c.Remove(id) || c.HasCell(cell(0, 1)) {
		t.Fatalf("remove should follow the entry to its current cell")
	}
	if err := c.Verify(); err != nil {
		t.Fatalf("verify: %v", err)
	}
}

func TestDimensionsDoNotShareBuckets(t *testing.T) {
	c := New()
	over := cell(0, 0)
	nether := CellKey{Dimension: "minecraft:the_nether", SpatialCell: SpatialCell{}}
	c.Put(testEntry{id: uuid.New(), key: over})
	c.Put(testEntry{id: uuid.New(), key: nether})
	if len(c.Cells()) != 2 || c.Len() != 2 {
		t.Fatalf("expected two distinct buckets, got %v", c.Cells())
	}
}

func TestSingletons(t *testing.T) {
	c := New()
	id := uuid.New()
	c.PutSingleton("players", testEntry{id: id, value: "a"})
	c.PutSingleton("players", testEntry{id: id, value: "b"})

	players := c.Singletons("players")
	if len(players) != 1 || players[0].(testEntry).value != "b" {
		t.Fatalf("singleton should be replaced by identity: %+v", players)
	}
	if !c.RemoveSingleton("players", id) {
		t.Fatalf("remove singleton should report the entry")
	}
	if len(c.Singletons("players")) != 0 {
		t.Fatalf("singleton set should be empty")
	}
}

func TestSnapshotGroupsByCell(t *testing.T) {
	c := New()
	for i := 0; i < 3; i++ {
		c.Put(testEntry{id: uuid.New(), key: cell(int32(i%2), 0)})
	}
	c.PutSingleton("players", testEntry{id: uuid.New()})

	snap := c.Snapshot()
	if len(snap.Cells) != 2 || snap.Len() != 3 {
		t.Fatalf("unexpected snapshot shape: %d cells, %d entries", len(snap.Cells), snap.Len())
	}
	if len(snap.Singletons["players"]) != 1 {
		t.Fatalf("snapshot should include singleton categories")
	}
	keys := snap.Keys()
	if keys[0] != cell(0, 0) || keys[1] != cell(1, 0) {
		t.Fatalf("snapshot keys not sorted: %v", keys)
	}
}

func TestConcurrentSnapshotsKeepInvariants(t *testing.T) {
	c := New()
	stable := make([]uuid.UUID, 20)
	for i := range stable {
		stable[i] = uuid.New()
		c.Put(testEntry{id: stable[i], key: cell(int32(i%4), 0)})
	}
	churn := make([]uuid.UUID, 50)
	for i := range churn {
		churn[i] = uuid.New()
	}

	var wg sync.WaitGroup
	stop := make(chan struct{})
	wg.Add(1)
	go func() {
		defer wg.Done()
		rng := rand.New(rand.NewSource(7))
		for i := 0; i < 20000; i++ {
			id := churn[rng.Intn(len(churn))]
			if rng.Intn(2) == 0 {
				c.Put(testEntry{id: id, key: cell(int32(rng.Intn(6)), int32(rng.Intn(2)))})
			} else {
				c.Remove(id)
			}
		}
		close(stop)
	}()

	for running := true; running; {
		select {
		case <-stop:
			running = false
		default:
		}
		snap := c.Snapshot()
		seen := map[uuid.UUID]bool{}
		for _, entries := range snap.Cells {
			if len(entries) == 0 {
				t.Fatalf("snapshot contains empty bucket")
			}
			for _, e := range entries {
				if seen[e.Identity()] {
					t.Fatalf("identity %s emitted twice in one snapshot", e.Identity())
				}
				seen[e.Identity()] = true
			}
		}
		for _, id := range stable {
			if !seen[id] {
				t.Fatalf("stable entry %s missing from snapshot", id)
			}
		}
	}
	wg.Wait()

	if err := c.Verify(); err != nil {
		t.Fatalf("verify after churn: %v", err)
	}
}

func TestVerifyDetectsEmptyBucket(t *testing.T) {
	c := New()
	c.cells.Store(cell(9, 9), newBucket())
	if err := c.Verify(); !errors.Is(err, ErrConsistency) {
		t.Fatalf("expected ErrConsistency, got %v", err)
	}
}

func TestClear(t *testing.T) {
	c := New()
	c.Put(testEntry{id: uuid.New(), key: cell(0, 0)})
	c.PutSingleton("players", testEntry{id: uuid.New()})
	c.Clear()
	if c.Len() != 0 || len(c.Singletons("players")) != 0 {
		t.Fatalf("clear should drop everything")
	}
	if err := c.Verify(); err != nil {
		t.Fatalf("verify after clear: %v", err)
	}
}
