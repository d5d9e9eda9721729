package client

import (
	"context"
	"fmt"
	"iter"

	"github.com/Sternrassler/go621/pkg/query"
	"github.com/Sternrassler/go621/pkg/record"
)

// SearchPools lists the pools matching s.
func (c *Client) SearchPools(ctx context.Context, s query.PoolSearch) iter.Seq2[*record.Pool, error] {
	return search[*record.Pool](ctx, s, c.fetchPools)
}

// PoolsByIDs yields one element per id in the order given.
func (c *Client) PoolsByIDs(ctx context.Context, ids []uint64) iter.Seq2[*record.Pool, error] {
	return lookup[*record.Pool](ctx, c, ids, query.PoolsByIDs, c.fetchPools)
}

func (c *Client) fetchPools(ctx context.Context, req query.Request) ([]*record.Pool, error) {
	var pools []*record.Pool
	if err := c.getJSON(ctx, req, &pools); err != nil {
		return nil, err
	}
	if pools == nil {
		return nil, c.decodeError(req, fmt.Errorf("expected an array of pools"))
	}
	return checkRecords(c, req, pools)
}
