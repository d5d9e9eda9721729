package record

import (
	"encoding/json"
	"fmt"
	"time"
)

// PoolCategory is the kind of pool.
type PoolCategory string

const (
	PoolCategorySeries     PoolCategory = "series"
	PoolCategoryCollection PoolCategory = "collection"
)

// UnmarshalJSON rejects unknown categories.
func (c *PoolCategory) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}

	switch PoolCategory(s) {
	case PoolCategorySeries, PoolCategoryCollection:
		*c = PoolCategory(s)
		return nil
	default:
		return fmt.Errorf("unknown pool category %q", s)
	}
}

// Pool is an ordered group of posts.
type Pool struct {
	ID          uint64       `json:"id"`
	Name        string       `json:"name"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`
	CreatorID   uint64       `json:"creator_id"`
	CreatorName string       `json:"creator_name"`
	Description string       `json:"description"`
	IsActive    bool         `json:"is_active"`
	IsDeleted   bool         `json:"is_deleted"`
	Category    PoolCategory `json:"category"`
	PostIDs     []uint64     `json:"post_ids"`
	PostCount   int          `json:"post_count"`
}

// RecordID returns the pool id.
func (p *Pool) RecordID() uint64 {
	return p.ID
}
