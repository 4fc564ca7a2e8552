// Package storage defines the persistence interface and its implementations.
package storage

import (
	"context"
	"time"

	"feed_screener/internal/model"
)

// Storage persists engine state between runs. State is loaded once at
// startup and saved as a snapshot after state-affecting scheduler
// passes and registry commands.
type Storage interface {
	LoadSources(ctx context.Context) ([]model.Source, error)
	SaveSources(ctx context.Context, sources []model.Source) error

	LoadInterests(ctx context.Context) ([]model.Interest, error)
	SaveInterests(ctx context.Context, interests []model.Interest) error

	LoadSeenItems(ctx context.Context) (map[string]time.Time, error)
	SaveSeenItems(ctx context.Context, items map[string]time.Time) error

	LoadSeenEpisodes(ctx context.Context) (map[string][]string, error)
	SaveSeenEpisodes(ctx context.Context, episodes map[string][]string) error

	LoadBadItems(ctx context.Context) ([]model.BadItem, error)
	SaveBadItems(ctx context.Context, items []model.BadItem) error

	Close() error
}
