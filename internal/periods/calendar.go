package periods

import (
	"sync"
	"time"

	"github.com/emirpasic/gods/trees/redblacktree"
	"github.com/emirpasic/gods/utils"

	"github.com/cleared-dev/ledger/internal/model"
)

// calendar indexes a tenant's periods by start day. Period bounds never
// change after creation, so the index only needs to learn about new periods;
// the closed flag is always read from the store.
type calendar struct {
	mu   sync.RWMutex
	tree *redblacktree.Tree
}

func dayKey(t time.Time) int64 {
	return model.Day(t).Unix() / 86400
}

func newCalendar(ps []model.AccountingPeriod) *calendar {
	c := &calendar{tree: redblacktree.NewWith(utils.Int64Comparator)}
	for _, p := range ps {
		c.tree.Put(dayKey(p.StartDate), p)
	}
	return c
}

func (c *calendar) put(p model.AccountingPeriod) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tree.Put(dayKey(p.StartDate), p)
}

// find returns the period whose range contains date.
func (c *calendar) find(date time.Time) (model.AccountingPeriod, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	node, found := c.tree.Floor(dayKey(date))
	if !found {
		return model.AccountingPeriod{}, false
	}
	p := node.Value.(model.AccountingPeriod)
	if !p.Contains(date) {
		return model.AccountingPeriod{}, false
	}
	return p, true
}

// overlapping returns a period sharing at least one day with [start, end].
func (c *calendar) overlapping(start, end time.Time) (model.AccountingPeriod, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	// The latest period starting on or before end is the only candidate:
	// periods never overlap each other.
	node, found := c.tree.Floor(dayKey(end))
	if !found {
		return model.AccountingPeriod{}, false
	}
	p := node.Value.(model.AccountingPeriod)
	if p.EndDate.Before(model.Day(start)) {
		return model.AccountingPeriod{}, false
	}
	return p, true
}

// extends reports whether [start, end] attaches to the calendar without a
// gap. Any range extends an empty calendar.
func (c *calendar) extends(start, end time.Time) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.tree.Empty() {
		return true
	}
	first := c.tree.Left().Value.(model.AccountingPeriod)
	last := c.tree.Right().Value.(model.AccountingPeriod)
	return dayKey(start) == dayKey(last.EndDate)+1 || dayKey(end)+1 == dayKey(first.StartDate)
}
