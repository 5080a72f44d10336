// Package notifications caches the two notification list endpoints. Callers
// asking for the same list while a request is outstanding share that request,
// and any mutation or reset invalidates both lists.
package notifications

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/alanjade/growthctl/internal/api"
	"github.com/alanjade/growthctl/internal/logging"
	"github.com/alanjade/growthctl/internal/metrics"
)

// List keys.
const (
	ListAll    = "all"
	ListUnread = "unread"
)

const (
	pathAll     = "/notifications"
	pathUnread  = "/notifications/unread"
	pathReadAll = "/notifications/read"
)

// Client is the subset of *api.Client the cache needs.
type Client interface {
	Get(ctx context.Context, path string, out any) error
	Post(ctx context.Context, path string, body, out any) error
}

// Cache is safe for concurrent use.
type Cache struct {
	client Client
	group  singleflight.Group

	mu    sync.Mutex
	lists map[string][]Notification
	gen   uint64
	// seq numbers requests per list; stored is the seq of the cached list.
	seq    map[string]uint64
	stored map[string]uint64
}

func NewCache(client Client) *Cache {
	return &Cache{
		client: client,
		lists:  make(map[string][]Notification),
		seq:    make(map[string]uint64),
		stored: make(map[string]uint64),
	}
}

// FetchAll returns every notification for the current user.
func (c *Cache) FetchAll(ctx context.Context, force bool) ([]Notification, error) {
	return c.fetch(ctx, ListAll, force)
}

// FetchUnread returns the unread notifications for the current user.
func (c *Cache) FetchUnread(ctx context.Context, force bool) ([]Notification, error) {
	return c.fetch(ctx, ListUnread, force)
}

// UnreadCount is the length of the unread list, served from the cache when possible.
func (c *Cache) UnreadCount(ctx context.Context) (int, error) {
	list, err := c.FetchUnread(ctx, false)
	if err != nil {
		return 0, err
	}
	return len(list), nil
}

// Cached returns the cached list for key without touching the network.
func (c *Cache) Cached(key string) ([]Notification, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	list, ok := c.lists[key]
	return list, ok
}

func (c *Cache) fetch(ctx context.Context, key string, force bool) ([]Notification, error) {
	c.mu.Lock()
	if list, ok := c.lists[key]; ok && !force {
		c.mu.Unlock()
		metrics.IncNotificationCacheHit(key)
		return list, nil
	}
	gen := c.gen
	c.seq[key]++
	seq := c.seq[key]
	if force {
		// later callers join the forced request, not the older one
		c.group.Forget(key)
	}
	c.mu.Unlock()

	// the shared request outlives any single caller's cancellation
	fetchCtx := context.WithoutCancel(ctx)
	ch := c.group.DoChan(key, func() (any, error) {
		metrics.IncNotificationFetch(key)
		list, err := c.request(fetchCtx, key)
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		switch {
		case c.gen != gen:
			logging.Get().Debug().Str("list", key).Msg("discarding notifications fetched before reset")
		case seq < c.stored[key]:
			logging.Get().Debug().Str("list", key).Msg("keeping newer notifications than a late response")
		default:
			c.lists[key] = list
			c.stored[key] = seq
		}
		c.mu.Unlock()
		return list, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Shared {
			metrics.IncNotificationShared(key)
		}
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.([]Notification), nil
	}
}

func (c *Cache) request(ctx context.Context, key string) ([]Notification, error) {
	path, envelope := pathAll, "notifications"
	if key == ListUnread {
		path, envelope = pathUnread, "unread_notifications"
	}
	var raw json.RawMessage
	if err := c.client.Get(ctx, path, &raw); err != nil {
		return nil, fmt.Errorf("fetch %s notifications: %w", key, err)
	}
	list, err := api.DecodeList[Notification](raw, envelope, "notifications", "data")
	if err != nil {
		return nil, fmt.Errorf("fetch %s notifications: %w", key, err)
	}
	if list == nil {
		list = []Notification{}
	}
	return list, nil
}

// MarkAllRead marks every notification read. Both lists are invalidated once
// the server has accepted the mutation.
func (c *Cache) MarkAllRead(ctx context.Context) error {
	if err := c.client.Post(ctx, pathReadAll, nil, nil); err != nil {
		return fmt.Errorf("mark all notifications read: %w", err)
	}
	c.Reset()
	return nil
}

// MarkRead marks a single notification read and invalidates both lists.
func (c *Cache) MarkRead(ctx context.Context, id string) error {
	if id == "" {
		return fmt.Errorf("mark notification read: empty id")
	}
	if err := c.client.Post(ctx, "/notifications/"+api.PathEscape(id)+"/read", nil, nil); err != nil {
		return fmt.Errorf("mark notification %s read: %w", id, err)
	}
	c.Reset()
	return nil
}

// Reset drops both lists and detaches any in-flight request, whose result
// will be discarded when it lands.
func (c *Cache) Reset() {
	c.mu.Lock()
	c.gen++
	c.lists = make(map[string][]Notification)
	c.group.Forget(ListAll)
	c.group.Forget(ListUnread)
	c.mu.Unlock()
}
