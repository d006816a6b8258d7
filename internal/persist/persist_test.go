package persist

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	loomerrors "github.com/inkloom/loom/internal/errors"
	"github.com/inkloom/loom/internal/narrative"
	"github.com/inkloom/loom/internal/pathkey"
)

func testArtifact(scene, branch string) *narrative.Artifact {
	return &narrative.Artifact{
		Identity: narrative.ContentIdentity{Scene: narrative.SceneID(scene), Branch: pathkey.Key(branch)},
		Prose:    "The fog rolled in off the bay.",
		Position: 4,
		Stance:   narrative.StanceCautious,
		Recovery: narrative.RecoveryClean,
	}
}

func runStoreTests(t *testing.T, store Store) {
	ctx := context.Background()

	t.Run("get missing returns ErrNotFound", func(t *testing.T) {
		_, err := store.Get(ctx, narrative.ContentIdentity{Scene: "001A", Branch: pathkey.Root})
		if !errors.Is(err, ErrNotFound) {
			t.Fatalf("Get = %v, want ErrNotFound", err)
		}
		var nf *loomerrors.NotFoundError
		if !errors.As(err, &nf) || nf.ID != "001A@ROOT" {
			t.Fatalf("Get = %v, want a NotFoundError naming the identity", err)
		}
	})

	t.Run("put then get round trip", func(t *testing.T) {
		want := testArtifact("004B", "AB")
		if err := store.Put(ctx, want); err != nil {
			t.Fatalf("Put: %v", err)
		}

		got, err := store.Get(ctx, want.Identity)
		if err != nil {
			t.Fatalf("Get: %v", err)
		}
		if got.Prose != want.Prose || got.Position != want.Position || got.Stance != want.Stance {
			t.Errorf("Get = %+v, want %+v", got, want)
		}
	})

	t.Run("same scene on sibling branches stays distinct", func(t *testing.T) {
		a := testArtifact("004B", "AA")
		a.Prose = "variant on AA"
		b := testArtifact("004B", "AB")
		b.Prose = "variant on AB"
		for _, art := range []*narrative.Artifact{a, b} {
			if err := store.Put(ctx, art); err != nil {
				t.Fatalf("Put: %v", err)
			}
		}

		got, err := store.Get(ctx, a.Identity)
		if err != nil {
			t.Fatalf("Get: %v", err)
		}
		if got.Prose != "variant on AA" {
			t.Errorf("sibling branches collided: got %q", got.Prose)
		}
	})

	t.Run("overwrite replaces", func(t *testing.T) {
		first := testArtifact("006C", "BB")
		if err := store.Put(ctx, first); err != nil {
			t.Fatalf("Put: %v", err)
		}
		second := testArtifact("006C", "BB")
		second.Prose = "regenerated"
		if err := store.Put(ctx, second); err != nil {
			t.Fatalf("Put: %v", err)
		}

		got, err := store.Get(ctx, second.Identity)
		if err != nil {
			t.Fatalf("Get: %v", err)
		}
		if got.Prose != "regenerated" {
			t.Errorf("Get = %q, want the overwritten value", got.Prose)
		}
	})

	t.Run("delete is idempotent", func(t *testing.T) {
		a := testArtifact("007A", "A")
		if err := store.Put(ctx, a); err != nil {
			t.Fatalf("Put: %v", err)
		}
		if err := store.Delete(ctx, a.Identity); err != nil {
			t.Fatalf("Delete: %v", err)
		}
		if _, err := store.Get(ctx, a.Identity); !errors.Is(err, ErrNotFound) {
			t.Fatalf("Get after delete = %v, want ErrNotFound", err)
		}
		if err := store.Delete(ctx, a.Identity); err != nil {
			t.Fatalf("second Delete: %v", err)
		}
	})

	t.Run("cancelled context is honored", func(t *testing.T) {
		cancelled, cancel := context.WithCancel(ctx)
		cancel()
		if err := store.Put(cancelled, testArtifact("008A", "A")); !errors.Is(err, context.Canceled) {
			t.Errorf("Put with cancelled ctx = %v", err)
		}
		if _, err := store.Get(cancelled, narrative.ContentIdentity{Scene: "008A", Branch: "A"}); !errors.Is(err, context.Canceled) {
			t.Errorf("Get with cancelled ctx = %v", err)
		}
	})
}

func TestMemStore(t *testing.T) {
	runStoreTests(t, NewMemStore())
}

func TestBoltStore(t *testing.T) {
	store, err := OpenBolt(filepath.Join(t.TempDir(), "loom.db"))
	if err != nil {
		t.Fatalf("OpenBolt: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	runStoreTests(t, store)
}

func TestOpenBoltRequiresPath(t *testing.T) {
	if _, err := OpenBolt("   "); err == nil {
		t.Fatal("OpenBolt with blank path succeeded")
	}
}

func TestBoltSurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "loom.db")
	ctx := context.Background()

	store, err := OpenBolt(path)
	if err != nil {
		t.Fatalf("OpenBolt: %v", err)
	}
	want := testArtifact("010B", "BA")
	if err := store.Put(ctx, want); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	reopened, err := OpenBolt(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()

	got, err := reopened.Get(ctx, want.Identity)
	if err != nil {
		t.Fatalf("Get after reopen: %v", err)
	}
	if got.Prose != want.Prose {
		t.Errorf("Get = %q, want %q", got.Prose, want.Prose)
	}
}
