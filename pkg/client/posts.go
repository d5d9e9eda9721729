package client

import (
	"context"
	"errors"
	"iter"

	"github.com/Sternrassler/go621/pkg/query"
	"github.com/Sternrassler/go621/pkg/record"
)

// SearchPosts lists the posts matching q, newest first unless q carries an
// order: metatag. Pages are fetched lazily as the sequence is consumed.
func (c *Client) SearchPosts(ctx context.Context, q query.PostQuery) iter.Seq2[*record.Post, error] {
	return search[*record.Post](ctx, q, c.fetchPosts)
}

// PostsByIDs yields one element per id in the order given. Posts the server
// does not return yield an *apierror.NotFoundError.
func (c *Client) PostsByIDs(ctx context.Context, ids []uint64) iter.Seq2[*record.Post, error] {
	return lookup[*record.Post](ctx, c, ids, query.PostsByIDs, c.fetchPosts)
}

// Post fetches a single post.
func (c *Client) Post(ctx context.Context, id uint64) (*record.Post, error) {
	req := query.PostByID(id)

	var envelope record.PostEnvelope
	if err := c.getJSON(ctx, req, &envelope); err != nil {
		return nil, err
	}
	if envelope.Post == nil {
		return nil, c.decodeError(req, errors.New(`missing "post" object`))
	}
	return envelope.Post, nil
}

func (c *Client) fetchPosts(ctx context.Context, req query.Request) ([]*record.Post, error) {
	var page record.PostPage
	if err := c.getJSON(ctx, req, &page); err != nil {
		return nil, err
	}
	return checkRecords(c, req, page.Posts)
}
