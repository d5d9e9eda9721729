package query

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/Sternrassler/go621/pkg/record"
)

const (
	// MaxLimit is the server's hard cap on records per request.
	MaxLimit = 320

	// MaxTags is the number of tags a single post search accepts.
	MaxTags = 40
)

// LimitError reports an option above what the API allows.
type LimitError struct {
	Option string
	Value  int
	Max    int
}

// Error implements the error interface.
func (e *LimitError) Error() string {
	return fmt.Sprintf("%s:%d is above the maximum value allowed in this context (%d)", e.Option, e.Value, e.Max)
}

// Sort tells the listing engine how to continue past the first page.
type Sort int

const (
	// SortIDDesc pages with "b<id>" markers. This is the API default.
	SortIDDesc Sort = iota
	// SortIDAsc pages with "a<id>" markers.
	SortIDAsc
	// SortNumbered pages with page numbers; used for every other ordering.
	SortNumbered
)

// Listing is the shared shape of every paginated search.
type Listing interface {
	// Request returns the first-page request without limit or page parameters.
	Request() Request
	// Sort returns how to page through the results.
	Sort() Sort
	// Limits returns the per-request page size (0 = server max) and total
	// record budget (0 = unbounded).
	Limits() (pageSize, maxItems int)
	// Validate checks the query before any request is issued.
	Validate() error
}

func validateLimits(pageSize, maxItems int) error {
	if pageSize < 0 {
		return fmt.Errorf("page size must not be negative (got %d)", pageSize)
	}
	if pageSize > MaxLimit {
		return &LimitError{Option: "limit", Value: pageSize, Max: MaxLimit}
	}
	if maxItems < 0 {
		return fmt.Errorf("max must not be negative (got %d)", maxItems)
	}
	return nil
}

// PostQuery searches posts by tags.
type PostQuery struct {
	// Tags are deduplicated search terms, in the order first seen.
	Tags []string

	// PageSize is the number of posts per request (0 = MaxLimit).
	PageSize int

	// Max bounds the total number of posts produced (0 = unbounded).
	Max int
}

// NewPostQuery builds a query from tag terms. Each argument may hold several
// whitespace separated tags; duplicates are dropped.
func NewPostQuery(tags ...string) PostQuery {
	seen := make(map[string]struct{})
	var terms []string

	for _, arg := range tags {
		for _, tag := range strings.Fields(arg) {
			if _, ok := seen[tag]; ok {
				continue
			}
			seen[tag] = struct{}{}
			terms = append(terms, tag)
		}
	}

	return PostQuery{Tags: terms}
}

// WithPageSize sets the number of posts fetched per request.
func (q PostQuery) WithPageSize(n int) PostQuery {
	q.PageSize = n
	return q
}

// WithMax bounds the total number of posts produced.
func (q PostQuery) WithMax(n int) PostQuery {
	q.Max = n
	return q
}

// Validate implements Listing.
func (q PostQuery) Validate() error {
	if len(q.Tags) > MaxTags {
		return &LimitError{Option: "tags", Value: len(q.Tags), Max: MaxTags}
	}
	return validateLimits(q.PageSize, q.Max)
}

// Request implements Listing.
func (q PostQuery) Request() Request {
	params := url.Values{}
	if len(q.Tags) > 0 {
		params.Set("tags", strings.Join(q.Tags, " "))
	}
	return Request{Endpoint: "/posts.json", Params: params}
}

// Sort implements Listing. It follows the order: metatag, if any.
func (q PostQuery) Sort() Sort {
	for _, tag := range q.Tags {
		order, ok := strings.CutPrefix(strings.ToLower(tag), "order:")
		if !ok {
			continue
		}
		switch order {
		case "id_desc":
			return SortIDDesc
		case "id", "id_asc":
			return SortIDAsc
		default:
			return SortNumbered
		}
	}
	return SortIDDesc
}

// Limits implements Listing.
func (q PostQuery) Limits() (int, int) {
	return q.PageSize, q.Max
}

// PostsByIDs builds the request for one batch of post ids.
func PostsByIDs(ids []uint64) Request {
	params := url.Values{}
	params.Set("tags", "id:"+joinIDs(ids))
	params.Set("limit", strconv.Itoa(len(ids)))
	return Request{Endpoint: "/posts.json", Params: params}
}

// PostByID builds the request for a single post.
func PostByID(id uint64) Request {
	return Request{Endpoint: fmt.Sprintf("/posts/%d.json", id), Params: url.Values{}}
}

// PoolOrder is the sort order of a pool search.
type PoolOrder string

const (
	PoolOrderName      PoolOrder = "name"
	PoolOrderCreatedAt PoolOrder = "created_at"
	PoolOrderUpdatedAt PoolOrder = "updated_at"
	PoolOrderPostCount PoolOrder = "post_count"
)

// PoolSearch searches pools.
type PoolSearch struct {
	NameMatches        string
	IDs                []uint64
	DescriptionMatches string
	CreatorName        string
	CreatorID          uint64
	IsActive           *bool
	IsDeleted          *bool
	Category           record.PoolCategory
	Order              PoolOrder

	PageSize int
	Max      int
}

// Validate implements Listing.
func (s PoolSearch) Validate() error {
	return validateLimits(s.PageSize, s.Max)
}

// Request implements Listing.
func (s PoolSearch) Request() Request {
	params := url.Values{}
	if s.NameMatches != "" {
		params.Set("search[name_matches]", s.NameMatches)
	}
	if len(s.IDs) > 0 {
		params.Set("search[id]", joinIDs(s.IDs))
	}
	if s.DescriptionMatches != "" {
		params.Set("search[description_matches]", s.DescriptionMatches)
	}
	if s.CreatorName != "" {
		params.Set("search[creator_name]", s.CreatorName)
	}
	if s.CreatorID != 0 {
		params.Set("search[creator_id]", strconv.FormatUint(s.CreatorID, 10))
	}
	if s.IsActive != nil {
		params.Set("search[is_active]", strconv.FormatBool(*s.IsActive))
	}
	if s.IsDeleted != nil {
		params.Set("search[is_deleted]", strconv.FormatBool(*s.IsDeleted))
	}
	if s.Category != "" {
		params.Set("search[category]", string(s.Category))
	}
	if s.Order != "" {
		params.Set("search[order]", string(s.Order))
	}
	return Request{Endpoint: "/pools.json", Params: params}
}

// Sort implements Listing.
func (s PoolSearch) Sort() Sort {
	if s.Order != "" {
		return SortNumbered
	}
	return SortIDDesc
}

// Limits implements Listing.
func (s PoolSearch) Limits() (int, int) {
	return s.PageSize, s.Max
}

// PoolsByIDs builds the request for one batch of pool ids.
func PoolsByIDs(ids []uint64) Request {
	params := url.Values{}
	params.Set("search[id]", joinIDs(ids))
	params.Set("limit", strconv.Itoa(len(ids)))
	return Request{Endpoint: "/pools.json", Params: params}
}

// TagOrder is the sort order of a tag search.
type TagOrder string

const (
	TagOrderDate       TagOrder = "date"
	TagOrderCount      TagOrder = "count"
	TagOrderName       TagOrder = "name"
	TagOrderSimilarity TagOrder = "similarity"
	TagOrderIDAsc      TagOrder = "id_asc"
	TagOrderIDDesc     TagOrder = "id_desc"
)

// TagSearch searches tags.
type TagSearch struct {
	Names            []string
	NameMatches      string
	FuzzyNameMatches string
	Categories       []record.TagCategory
	Order            TagOrder
	HideEmpty        bool
	HasWiki          bool
	HasArtist        bool

	PageSize int
	Max      int
}

// Validate implements Listing.
func (s TagSearch) Validate() error {
	return validateLimits(s.PageSize, s.Max)
}

// Request implements Listing.
func (s TagSearch) Request() Request {
	params := url.Values{}
	if len(s.Names) > 0 {
		params.Set("search[name]", strings.Join(s.Names, ","))
	}
	if s.NameMatches != "" {
		params.Set("search[name_matches]", s.NameMatches)
	}
	if s.FuzzyNameMatches != "" {
		params.Set("search[fuzzy_name_matches]", s.FuzzyNameMatches)
	}
	if len(s.Categories) > 0 {
		cats := make([]string, len(s.Categories))
		for i, c := range s.Categories {
			cats[i] = strconv.Itoa(int(c))
		}
		params.Set("search[category]", strings.Join(cats, ","))
	}
	if s.Order != "" {
		params.Set("search[order]", string(s.Order))
	}
	if s.HideEmpty {
		params.Set("search[hide_empty]", "true")
	}
	if s.HasWiki {
		params.Set("search[has_wiki]", "true")
	}
	if s.HasArtist {
		params.Set("search[has_artist]", "true")
	}
	return Request{Endpoint: "/tags.json", Params: params}
}

// Sort implements Listing.
func (s TagSearch) Sort() Sort {
	switch s.Order {
	case "", TagOrderDate, TagOrderIDDesc:
		return SortIDDesc
	case TagOrderIDAsc:
		return SortIDAsc
	default:
		return SortNumbered
	}
}

// Limits implements Listing.
func (s TagSearch) Limits() (int, int) {
	return s.PageSize, s.Max
}
