package cache

import (
	"context"
	"errors"
	"fmt"

	"acme/internal/log"
)

// Invalidator drops cached pages affected by a change at path.
type Invalidator interface {
	Invalidate(ctx context.Context, path string) error
}

// StoreInvalidator invalidates a single PageStore.
type StoreInvalidator struct {
	store  PageStore
	logger *log.Logger
}

func NewStoreInvalidator(store PageStore, logger *log.Logger) *StoreInvalidator {
	return &StoreInvalidator{store: store, logger: logger.WithComponent(log.ComponentCache)}
}

func (i *StoreInvalidator) Invalidate(ctx context.Context, path string) error {
	n, err := i.store.Invalidate(ctx, path)
	if err != nil {
		return fmt.Errorf("invalidate %s: %w", path, err)
	}
	i.logger.DebugContext(ctx, "Cached pages invalidated", log.FieldPath, path, "count", n)
	return nil
}

// Publisher announces an invalidation to other instances.
type Publisher interface {
	PublishInvalidation(ctx context.Context, path string) error
}

// BroadcastInvalidator invalidates locally, then tells every other instance
// to do the same. A failed publish does not undo the local invalidation.
type BroadcastInvalidator struct {
	local Invalidator
	pub   Publisher
}

func NewBroadcastInvalidator(local Invalidator, pub Publisher) *BroadcastInvalidator {
	return &BroadcastInvalidator{local: local, pub: pub}
}

func (b *BroadcastInvalidator) Invalidate(ctx context.Context, path string) error {
	localErr := b.local.Invalidate(ctx, path)
	var pubErr error
	if err := b.pub.PublishInvalidation(ctx, path); err != nil {
		pubErr = fmt.Errorf("publish invalidation: %w", err)
	}
	return errors.Join(localErr, pubErr)
}
