// Package templates resolves the email template of a phishing scenario.
// Template CRUD lives elsewhere; this side only reads.
package templates

import (
	"context"
	"strconv"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"golang.org/x/sync/singleflight"

	"PhishSim/internal/models"
)

const lookupTimeout = 10 * time.Second

type Source interface {
	TemplateByScenarioID(ctx context.Context, scenarioID int64) (*models.Template, error)
}

// Cache keeps recently used templates in process memory. Misses are not cached.
// Concurrent misses for one scenario share a single source lookup.
type Cache struct {
	src Source
	c   *gocache.Cache
	sf  singleflight.Group
}

func NewCache(src Source, ttl time.Duration) *Cache {
	return &Cache{src: src, c: gocache.New(ttl, time.Minute)}
}

func (c *Cache) TemplateByScenarioID(ctx context.Context, scenarioID int64) (*models.Template, error) {
	key := strconv.FormatInt(scenarioID, 10)

	if v, ok := c.c.Get(key); ok {
		t := v.(models.Template)
		return &t, nil
	}

	// the shared lookup must not die with whichever caller started it
	detached := context.WithoutCancel(ctx)
	ch := c.sf.DoChan(key, func() (any, error) {
		lookupCtx, cancel := context.WithTimeout(detached, lookupTimeout)
		defer cancel()

		t, err := c.src.TemplateByScenarioID(lookupCtx, scenarioID)
		if err != nil {
			return nil, err
		}
		c.c.SetDefault(key, *t)
		return *t, nil
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		t := res.Val.(models.Template)
		return &t, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Invalidate drops a scenario's template, e.g. after it was edited.
func (c *Cache) Invalidate(scenarioID int64) {
	c.c.Delete(strconv.FormatInt(scenarioID, 10))
}
