// Package stats computes spending summaries over the user's receipts.
package stats

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/shopspring/decimal"

	"github.com/snaptrack/snaptrack/internal/client/models"
	"github.com/snaptrack/snaptrack/internal/logging"
)

const DateLayout = "2006-01-02"

// Lister fetches receipts from the backend. *gateway.Gateway satisfies it.
type Lister interface {
	ListReceipts(ctx context.Context) ([]models.ReceiptRecord, error)
}

// Summary aggregates the receipts dated within [From, To]. Receipts without
// an amount count toward Count but add nothing to the totals. Undated counts
// receipts excluded because their date could not be read.
type Summary struct {
	From     time.Time
	To       time.Time
	Count    int
	Total    decimal.Decimal
	ByEntity map[string]decimal.Decimal
	ByTag    map[string]decimal.Decimal
	Undated  int
}

// Tags returns the tag names ordered by total, largest first.
func (s *Summary) Tags() []string {
	return sortedKeys(s.ByTag)
}

// Entities returns the entity names ordered by total, largest first.
func (s *Summary) Entities() []string {
	return sortedKeys(s.ByEntity)
}

const cacheKey = "receipts"

// Service caches the fetched receipt list for a short TTL so repeated
// summaries over different ranges cost one request.
type Service struct {
	src   Lister
	cache *expirable.LRU[string, []models.ReceiptRecord]
	log   logging.Logger
}

// NewService returns a Service. A non-positive ttl disables caching.
func NewService(src Lister, ttl time.Duration, log logging.Logger) *Service {
	if log == nil {
		log = logging.Nop()
	}
	s := &Service{src: src, log: log.With("component", "stats")}
	if ttl > 0 {
		s.cache = expirable.NewLRU[string, []models.ReceiptRecord](1, nil, ttl)
	}
	return s
}

// Invalidate drops cached receipts, e.g. after a drain uploaded new ones.
func (s *Service) Invalidate() {
	if s.cache != nil {
		s.cache.Purge()
	}
}

// Summary totals receipts dated from..to inclusive. A zero bound leaves
// that side of the range open.
func (s *Service) Summary(ctx context.Context, from, to time.Time) (*Summary, error) {
	if !from.IsZero() && !to.IsZero() && to.Before(from) {
		return nil, fmt.Errorf("range end %s is before start %s", to.Format(DateLayout), from.Format(DateLayout))
	}

	recs, err := s.receipts(ctx)
	if err != nil {
		return nil, err
	}
	return Summarize(recs, from, to), nil
}

func (s *Service) receipts(ctx context.Context) ([]models.ReceiptRecord, error) {
	if s.cache != nil {
		if recs, ok := s.cache.Get(cacheKey); ok {
			return recs, nil
		}
	}

	recs, err := s.src.ListReceipts(ctx)
	if err != nil {
		return nil, fmt.Errorf("list receipts: %w", err)
	}
	s.log.Debug(ctx, "receipts fetched", "count", len(recs))

	if s.cache != nil {
		s.cache.Add(cacheKey, recs)
	}
	return recs, nil
}

// Summarize aggregates recs without any I/O.
func Summarize(recs []models.ReceiptRecord, from, to time.Time) *Summary {
	from, to = day(from), day(to)
	sum := &Summary{
		From:     from,
		To:       to,
		Total:    decimal.Zero,
		ByEntity: map[string]decimal.Decimal{},
		ByTag:    map[string]decimal.Decimal{},
	}

	for _, r := range recs {
		d, ok := ParseDate(r.Date)
		if !ok {
			sum.Undated++
			continue
		}
		if (!from.IsZero() && d.Before(from)) || (!to.IsZero() && d.After(to)) {
			continue
		}

		sum.Count++
		if r.Amount == nil {
			continue
		}
		amt := *r.Amount
		sum.Total = sum.Total.Add(amt)

		entity := r.Entity
		if entity == "" {
			entity = "unassigned"
		}
		sum.ByEntity[entity] = sum.ByEntity[entity].Add(amt)
		for _, tag := range r.Tags {
			tag = strings.ToLower(strings.TrimSpace(tag))
			if tag != "" {
				sum.ByTag[tag] = sum.ByTag[tag].Add(amt)
			}
		}
	}
	return sum
}

// ParseInputDate reads a date typed by the user. Only a plain YYYY-MM-DD
// date or a full RFC 3339 timestamp is accepted.
func ParseInputDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(DateLayout, s); err == nil {
		return t, true
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return day(t), true
	}
	return time.Time{}, false
}

// ParseDate reads a receipt date reported by the backend as a calendar day.
// Besides the forms ParseInputDate takes, any value starting with a
// YYYY-MM-DD date (e.g. "2025-01-07 10:00") is read as that day.
func ParseDate(s string) (time.Time, bool) {
	if t, ok := ParseInputDate(s); ok {
		return t, true
	}
	s = strings.TrimSpace(s)
	if len(s) >= len(DateLayout) {
		if t, err := time.Parse(DateLayout, s[:len(DateLayout)]); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func day(t time.Time) time.Time {
	if t.IsZero() {
		return t
	}
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func sortedKeys(m map[string]decimal.Decimal) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if c := m[keys[i]].Cmp(m[keys[j]]); c != 0 {
			return c > 0
		}
		return keys[i] < keys[j]
	})
	return keys
}
