package cache

import (
	"fmt"
	"time"

	aggregatedomain "github.com/hivelabs/hivetally/internal/aggregate/domain"
)

const (
	defaultTotalTTL = 3 * time.Second
	defaultTopTTL   = 5 * time.Second
)

// QueryCache absorbs repeated total and leaderboard reads. TTLs are short;
// staleness is bounded by seconds, not invalidation.
type QueryCache interface {
	GetChatTotal(chatID int64) (int64, bool)
	SetChatTotal(chatID int64, total int64)
	GetUserTotal(chatID, userID int64) (int64, bool)
	SetUserTotal(chatID, userID int64, total int64)
	GetTop(chatID int64, limit int) ([]aggregatedomain.Row, bool)
	SetTop(chatID int64, limit int, rows []aggregatedomain.Row)
}

type queryCache struct {
	totals   Cache[string, int64]
	top      Cache[string, []aggregatedomain.Row]
	totalTTL time.Duration
	topTTL   time.Duration
}

// NewQueryCache returns an in-memory cache tuned for chat query traffic.
func NewQueryCache() QueryCache {
	return &queryCache{
		totals:   NewTTLCache[string, int64](),
		top:      NewTTLCache[string, []aggregatedomain.Row](),
		totalTTL: defaultTotalTTL,
		topTTL:   defaultTopTTL,
	}
}

func (c *queryCache) GetChatTotal(chatID int64) (int64, bool) {
	return c.totals.Get(fmt.Sprintf("chat:%d", chatID))
}

func (c *queryCache) SetChatTotal(chatID int64, total int64) {
	c.totals.Set(fmt.Sprintf("chat:%d", chatID), total, c.totalTTL)
}

func (c *queryCache) GetUserTotal(chatID, userID int64) (int64, bool) {
	return c.totals.Get(fmt.Sprintf("user:%d:%d", chatID, userID))
}

func (c *queryCache) SetUserTotal(chatID, userID int64, total int64) {
	c.totals.Set(fmt.Sprintf("user:%d:%d", chatID, userID), total, c.totalTTL)
}

func (c *queryCache) GetTop(chatID int64, limit int) ([]aggregatedomain.Row, bool) {
	return c.top.Get(fmt.Sprintf("top:%d:%d", chatID, limit))
}

func (c *queryCache) SetTop(chatID int64, limit int, rows []aggregatedomain.Row) {
	c.top.Set(fmt.Sprintf("top:%d:%d", chatID, limit), rows, c.topTTL)
}
