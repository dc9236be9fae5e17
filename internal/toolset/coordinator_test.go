package toolset

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/vespid-ai/control-plane/internal/store"
	"github.com/vespid-ai/control-plane/internal/store/memstore"
)

func newTestCoordinator() (*Coordinator, store.TenantCtx) {
	st := memstore.New()
	tc := store.TenantCtx{ActorUserID: uuid.New(), OrganizationID: uuid.New()}
	return New(st), tc
}

func TestCreateDefaultsToPrivate(t *testing.T) {
	c, tc := newTestCoordinator()
	ts, err := c.Create(context.Background(), tc, tc.ActorUserID, "my tools", store.ToolsetDraft{})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if ts.Visibility != store.ToolsetPrivate {
		t.Fatalf("Visibility = %q, want private", ts.Visibility)
	}
}

func TestPublishUnpublishRoundTrip(t *testing.T) {
	c, tc := newTestCoordinator()
	ctx := context.Background()

	ts, err := c.Create(ctx, tc, tc.ActorUserID, "my tools", store.ToolsetDraft{})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	published, err := c.Publish(ctx, tc, ts.ID, store.ToolsetPublic)
	if err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if published.Visibility != store.ToolsetPublic {
		t.Fatalf("Visibility = %q, want public", published.Visibility)
	}
	if published.PublicSlug == nil || *published.PublicSlug == "" {
		t.Fatal("expected a non-empty publicSlug after publishing")
	}
	if published.PublishedAt == nil {
		t.Fatal("expected publishedAt to be set after publishing")
	}

	unpublished, err := c.Unpublish(ctx, tc, ts.ID, store.ToolsetPrivate)
	if err != nil {
		t.Fatalf("Unpublish: %v", err)
	}
	if unpublished.Visibility != store.ToolsetPrivate {
		t.Fatalf("Visibility = %q, want private", unpublished.Visibility)
	}
	if unpublished.PublicSlug != nil {
		t.Fatal("expected publicSlug to be cleared after unpublishing")
	}
	if unpublished.PublishedAt != nil {
		t.Fatal("expected publishedAt to be cleared after unpublishing")
	}
}

func TestPublishRejectsInvalidVisibility(t *testing.T) {
	c, tc := newTestCoordinator()
	ctx := context.Background()

	ts, err := c.Create(ctx, tc, tc.ActorUserID, "my tools", store.ToolsetDraft{})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := c.Publish(ctx, tc, ts.ID, store.ToolsetPrivate); err == nil {
		t.Fatal("expected Publish with visibility=private to fail")
	}
}

func TestUnpublishRejectsInvalidVisibility(t *testing.T) {
	c, tc := newTestCoordinator()
	ctx := context.Background()

	ts, err := c.Create(ctx, tc, tc.ActorUserID, "my tools", store.ToolsetDraft{})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := c.Unpublish(ctx, tc, ts.ID, store.ToolsetPublic); err == nil {
		t.Fatal("expected Unpublish with visibility=public to fail")
	}
}

func TestGetNotFound(t *testing.T) {
	c, tc := newTestCoordinator()
	if _, err := c.Get(context.Background(), tc, uuid.New()); err == nil {
		t.Fatal("expected Get on unknown id to fail")
	}
}
