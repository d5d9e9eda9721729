package client

import (
	"context"
	"iter"

	"github.com/Sternrassler/go621/pkg/query"
	"github.com/Sternrassler/go621/pkg/record"
)

// SearchTags lists the tags matching s.
func (c *Client) SearchTags(ctx context.Context, s query.TagSearch) iter.Seq2[*record.Tag, error] {
	return search[*record.Tag](ctx, s, c.fetchTags)
}

func (c *Client) fetchTags(ctx context.Context, req query.Request) ([]*record.Tag, error) {
	var page record.TagPage
	if err := c.getJSON(ctx, req, &page); err != nil {
		return nil, err
	}
	return checkRecords(c, req, []*record.Tag(page))
}
