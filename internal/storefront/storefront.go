// Package storefront pushes the catalog and item photos to the repository
// that hosts the static shop.
package storefront

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"path/filepath"
	"strings"

	"github.com/Halomaster0/ColdBloodedHeartbeats/internal/imaging"
	"github.com/Halomaster0/ColdBloodedHeartbeats/internal/store"
)

// ErrNotConfigured is returned when no publishing credentials are set.
var ErrNotConfigured = errors.New("publishing is not configured")

// Publisher is satisfied by *github.Publisher.
type Publisher interface {
	Configured() bool
	PublishFile(ctx context.Context, repoPath string, content []byte, message string) error
	PublishImage(ctx context.Context, localPath, repoPath string) error
}

// Layout maps local files to their place in the hosting repository.
type Layout struct {
	AssetsDir       string
	RepoCatalogPath string
	RepoAssetsDir   string
}

// PublishCatalog uploads the full inventory as the storefront catalog.
func PublishCatalog(ctx context.Context, p Publisher, inv *store.Inventory, l Layout) error {
	if p == nil || !p.Configured() {
		return ErrNotConfigured
	}
	data, err := inv.CatalogJSON()
	if err != nil {
		return err
	}
	if err := p.PublishFile(ctx, l.RepoCatalogPath, data, "Update inventory"); err != nil {
		return fmt.Errorf("publishing catalog: %w", err)
	}
	slog.Info("catalog published", "path", l.RepoCatalogPath, "items", len(inv.All()))
	return nil
}

// PublishItemImage uploads the stored photo of one item.
func PublishItemImage(ctx context.Context, p Publisher, inv *store.Inventory, l Layout, itemID string) error {
	if p == nil || !p.Configured() {
		return ErrNotConfigured
	}
	item, ok := inv.Get(itemID)
	if !ok {
		return fmt.Errorf("%w: item %s", store.ErrNotFound, itemID)
	}
	if item.Image != imaging.AssetPath(item.ID) {
		return fmt.Errorf("%w: item %s has no stored image", store.ErrInvalidArgument, itemID)
	}

	name := strings.TrimPrefix(item.Image, imaging.AssetsPrefix+"/")
	local := filepath.Join(l.AssetsDir, name)
	remote := path.Join(l.RepoAssetsDir, name)
	if err := p.PublishImage(ctx, local, remote); err != nil {
		return fmt.Errorf("publishing image for %s: %w", itemID, err)
	}
	slog.Info("item image published", "id", itemID, "path", remote)
	return nil
}
