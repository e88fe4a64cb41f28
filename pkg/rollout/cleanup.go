package rollout

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog/log"
)

// DefaultCleanupAge is how long rollouts are kept when no age is given.
const DefaultCleanupAge = 30 * 24 * time.Hour

// Summary describes one rollout file for listings.
type Summary struct {
	Path          string    `json:"path"`
	ID            string    `json:"id"`
	Timestamp     time.Time `json:"timestamp"`
	Model         string    `json:"model,omitempty"`
	ModelProvider string    `json:"model_provider,omitempty"`
	Cwd           string    `json:"cwd,omitempty"`
	Messages      int       `json:"messages"`
	LastModified  time.Time `json:"last_modified"`
}

// Summaries loads the meta of every rollout under codexHome, oldest first.
// Unreadable rollouts are skipped.
func Summaries(ctx context.Context, codexHome string) ([]Summary, error) {
	paths, err := List(codexHome)
	if err != nil {
		return nil, err
	}

	summaries := make([]Summary, 0, len(paths))
	for _, path := range paths {
		info, err := os.Stat(path)
		if err != nil {
			continue
		}
		meta, messages, err := Load(ctx, path)
		if err != nil {
			log.Warn().Str("path", path).Err(err).Msg("Skipping unreadable rollout")
			continue
		}
		summaries = append(summaries, Summary{
			Path:          path,
			ID:            meta.ID,
			Timestamp:     meta.Timestamp,
			Model:         meta.Model,
			ModelProvider: meta.ModelProvider,
			Cwd:           meta.Cwd,
			Messages:      len(messages),
			LastModified:  info.ModTime(),
		})
	}
	return summaries, nil
}

// Find returns the rollout recorded for a conversation id.
func Find(ctx context.Context, codexHome, id string) (string, error) {
	if err := validateID(id); err != nil {
		return "", err
	}
	summaries, err := Summaries(ctx, codexHome)
	if err != nil {
		return "", err
	}
	for i := len(summaries) - 1; i >= 0; i-- {
		if summaries[i].ID == id {
			return summaries[i].Path, nil
		}
	}
	return "", fmt.Errorf("no rollout for conversation %s", id)
}

// Cleanup deletes rollouts that have not been written to for cleanupAge.
// It returns the number of files removed.
func Cleanup(codexHome string, cleanupAge time.Duration, now time.Time) (int, error) {
	if cleanupAge <= 0 {
		cleanupAge = DefaultCleanupAge
	}

	paths, err := List(codexHome)
	if err != nil {
		return 0, fmt.Errorf("failed to list rollouts: %w", err)
	}

	deleted := 0
	for _, path := range paths {
		info, err := os.Stat(path)
		if err != nil {
			log.Warn().Str("path", path).Err(err).Msg("Failed to stat rollout")
			continue
		}

		age := now.Sub(info.ModTime())
		if age < cleanupAge {
			continue
		}
		if err := os.Remove(path); err != nil {
			log.Error().Str("path", path).Err(err).Msg("Failed to delete rollout")
			continue
		}
		deleted++

		log.Debug().
			Str("path", path).
			Dur("age", age).
			Msg("Rollout deleted")
	}

	if deleted > 0 {
		log.Info().
			Int("deleted", deleted).
			Msg("Cleaned up old rollouts")
	}
	return deleted, nil
}
