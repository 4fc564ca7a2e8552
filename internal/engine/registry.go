package engine

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"feed_screener/internal/model"
)

// AddSource registers a new source. The URL must be unique across the
// registry.
func (e *Engine) AddSource(src model.Source) (model.Source, error) {
	e.sourcesMu.Lock()
	defer e.sourcesMu.Unlock()

	for _, existing := range e.sources {
		if existing.URL == src.URL {
			return model.Source{}, fmt.Errorf("%w: source with URL %q already exists", model.ErrInvalidInput, src.URL)
		}
	}
	if src.ID == "" {
		src.ID = uuid.NewString()
	}
	if src.Kind == "" {
		src.Kind = model.SourceFeed
	}
	if src.CreatedAt.IsZero() {
		src.CreatedAt = time.Now().UTC()
	}
	e.sources = append(e.sources, src)
	e.log.Info("source added", "id", src.ID, "name", src.Name, "kind", src.Kind)
	return src, nil
}

// UpdateSource replaces the stored source with the same ID.
func (e *Engine) UpdateSource(src model.Source) error {
	e.sourcesMu.Lock()
	defer e.sourcesMu.Unlock()

	for i, existing := range e.sources {
		if existing.ID == src.ID {
			src.CreatedAt = existing.CreatedAt
			e.sources[i] = src
			return nil
		}
	}
	return fmt.Errorf("%w: source %q", model.ErrNotFound, src.ID)
}

// RemoveSource deletes a source by ID.
func (e *Engine) RemoveSource(id string) error {
	e.sourcesMu.Lock()
	defer e.sourcesMu.Unlock()

	for i, existing := range e.sources {
		if existing.ID == id {
			e.sources = append(e.sources[:i], e.sources[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("%w: source %q", model.ErrNotFound, id)
}

// ToggleSource flips the enabled flag and returns the new value.
func (e *Engine) ToggleSource(id string) (bool, error) {
	e.sourcesMu.Lock()
	defer e.sourcesMu.Unlock()

	for i := range e.sources {
		if e.sources[i].ID == id {
			e.sources[i].Enabled = !e.sources[i].Enabled
			return e.sources[i].Enabled, nil
		}
	}
	return false, fmt.Errorf("%w: source %q", model.ErrNotFound, id)
}

// Sources returns a copy of the source registry.
func (e *Engine) Sources() []model.Source {
	e.sourcesMu.RLock()
	defer e.sourcesMu.RUnlock()

	out := make([]model.Source, len(e.sources))
	copy(out, e.sources)
	return out
}

// StoreCheckState writes back the timing, cache, and backoff fields the
// scheduler mutates after a check. A source removed mid-check is
// silently skipped.
func (e *Engine) StoreCheckState(src model.Source) {
	e.sourcesMu.Lock()
	defer e.sourcesMu.Unlock()

	for i := range e.sources {
		if e.sources[i].ID == src.ID {
			e.sources[i].LastChecked = src.LastChecked
			e.sources[i].NextCheckAt = src.NextCheckAt
			e.sources[i].ETag = src.ETag
			e.sources[i].LastModified = src.LastModified
			e.sources[i].FailureCount = src.FailureCount
			e.sources[i].RetryAfter = src.RetryAfter
			return
		}
	}
}

// AddInterest registers a new interest.
func (e *Engine) AddInterest(in model.Interest) (model.Interest, error) {
	e.interestsMu.Lock()
	defer e.interestsMu.Unlock()

	if in.Name == "" {
		return model.Interest{}, fmt.Errorf("%w: interest name is required", model.ErrInvalidInput)
	}
	if in.ID == "" {
		in.ID = uuid.NewString()
	}
	if in.FilterLogic == "" {
		in.FilterLogic = model.LogicAnd
	}
	if in.CreatedAt.IsZero() {
		in.CreatedAt = time.Now().UTC()
	}
	e.interests = append(e.interests, in)
	e.log.Info("interest added", "id", in.ID, "name", in.Name, "filters", len(in.Filters))
	return in, nil
}

// UpdateInterest replaces the stored interest with the same ID.
func (e *Engine) UpdateInterest(in model.Interest) error {
	e.interestsMu.Lock()
	defer e.interestsMu.Unlock()

	for i, existing := range e.interests {
		if existing.ID == in.ID {
			in.CreatedAt = existing.CreatedAt
			e.interests[i] = in
			return nil
		}
	}
	return fmt.Errorf("%w: interest %q", model.ErrNotFound, in.ID)
}

// RemoveInterest deletes an interest by ID.
func (e *Engine) RemoveInterest(id string) error {
	e.interestsMu.Lock()
	defer e.interestsMu.Unlock()

	for i, existing := range e.interests {
		if existing.ID == id {
			e.interests = append(e.interests[:i], e.interests[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("%w: interest %q", model.ErrNotFound, id)
}

// ToggleInterest flips the enabled flag and returns the new value.
func (e *Engine) ToggleInterest(id string) (bool, error) {
	e.interestsMu.Lock()
	defer e.interestsMu.Unlock()

	for i := range e.interests {
		if e.interests[i].ID == id {
			e.interests[i].Enabled = !e.interests[i].Enabled
			return e.interests[i].Enabled, nil
		}
	}
	return false, fmt.Errorf("%w: interest %q", model.ErrNotFound, id)
}

// Interests returns a copy of the interest registry.
func (e *Engine) Interests() []model.Interest {
	e.interestsMu.RLock()
	defer e.interestsMu.RUnlock()

	out := make([]model.Interest, len(e.interests))
	copy(out, e.interests)
	return out
}

// enabledInterests returns enabled interests in registration order.
// Registration order decides which interest claims an item when several
// match.
func (e *Engine) enabledInterests() []model.Interest {
	e.interestsMu.RLock()
	defer e.interestsMu.RUnlock()

	var out []model.Interest
	for _, in := range e.interests {
		if in.Enabled {
			out = append(out, in)
		}
	}
	return out
}

// EnabledInterestCount reports how many interests are enabled. The
// scheduler checks nothing when it is zero.
func (e *Engine) EnabledInterestCount() int {
	e.interestsMu.RLock()
	defer e.interestsMu.RUnlock()

	n := 0
	for _, in := range e.interests {
		if in.Enabled {
			n++
		}
	}
	return n
}

func (e *Engine) interestByID(id string) (model.Interest, bool) {
	e.interestsMu.RLock()
	defer e.interestsMu.RUnlock()

	for _, in := range e.interests {
		if in.ID == id {
			return in, true
		}
	}
	return model.Interest{}, false
}

func (e *Engine) enabledSources() []model.Source {
	e.sourcesMu.RLock()
	defer e.sourcesMu.RUnlock()

	var out []model.Source
	for _, src := range e.sources {
		if src.Enabled {
			out = append(out, src)
		}
	}
	return out
}
