// Package record defines the typed records decoded from e621 responses.
package record

import (
	"encoding/json"
	"fmt"
	"time"
)

// Rating is a post's content rating.
type Rating string

const (
	// RatingSafe is safe for work.
	RatingSafe Rating = "s"
	// RatingQuestionable wouldn't be recommended for work.
	RatingQuestionable Rating = "q"
	// RatingExplicit is not safe for work.
	RatingExplicit Rating = "e"
)

// UnmarshalJSON rejects ratings outside s/q/e.
func (r *Rating) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}

	switch Rating(s) {
	case RatingSafe, RatingQuestionable, RatingExplicit:
		*r = Rating(s)
		return nil
	default:
		return fmt.Errorf("unknown rating %q", s)
	}
}

// String returns the long name of the rating.
func (r Rating) String() string {
	switch r {
	case RatingSafe:
		return "safe"
	case RatingQuestionable:
		return "questionable"
	case RatingExplicit:
		return "explicit"
	default:
		return string(r)
	}
}

// Status is the moderation status of a post, derived from its flags.
type Status string

const (
	StatusActive  Status = "active"
	StatusPending Status = "pending"
	StatusFlagged Status = "flagged"
	StatusDeleted Status = "deleted"
)

// File describes the original upload. URL and MD5 are empty for deleted posts.
type File struct {
	Width  int    `json:"width"`
	Height int    `json:"height"`
	Ext    string `json:"ext"`
	Size   int64  `json:"size"`
	MD5    string `json:"md5"`
	URL    string `json:"url"`
}

// Preview describes the thumbnail.
type Preview struct {
	Width  int    `json:"width"`
	Height int    `json:"height"`
	URL    string `json:"url"`
}

// Sample describes the scaled-down image, if one exists.
type Sample struct {
	Has    bool   `json:"has"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
	URL    string `json:"url"`
}

// Score holds the vote tallies.
type Score struct {
	Up    int `json:"up"`
	Down  int `json:"down"`
	Total int `json:"total"`
}

// Tags groups a post's tags by category.
type Tags struct {
	General   []string `json:"general"`
	Artist    []string `json:"artist"`
	Copyright []string `json:"copyright"`
	Character []string `json:"character"`
	Species   []string `json:"species"`
	Invalid   []string `json:"invalid"`
	Meta      []string `json:"meta"`
	Lore      []string `json:"lore"`
}

// All returns every tag of the post, category by category.
func (t Tags) All() []string {
	groups := [][]string{t.Artist, t.Copyright, t.Character, t.Species, t.General, t.Lore, t.Meta, t.Invalid}

	n := 0
	for _, g := range groups {
		n += len(g)
	}

	all := make([]string, 0, n)
	for _, g := range groups {
		all = append(all, g...)
	}
	return all
}

// Flags are the moderation flags of a post.
type Flags struct {
	Pending      bool `json:"pending"`
	Flagged      bool `json:"flagged"`
	NoteLocked   bool `json:"note_locked"`
	StatusLocked bool `json:"status_locked"`
	RatingLocked bool `json:"rating_locked"`
	Deleted      bool `json:"deleted"`
}

// Relationships links a post to its parent and children.
type Relationships struct {
	ParentID          *uint64  `json:"parent_id"`
	HasChildren       bool     `json:"has_children"`
	HasActiveChildren bool     `json:"has_active_children"`
	Children          []uint64 `json:"children"`
}

// Post is a single e621 post.
type Post struct {
	ID            uint64        `json:"id"`
	CreatedAt     time.Time     `json:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at"`
	File          File          `json:"file"`
	Preview       Preview       `json:"preview"`
	Sample        Sample        `json:"sample"`
	Score         Score         `json:"score"`
	Tags          Tags          `json:"tags"`
	LockedTags    []string      `json:"locked_tags"`
	Flags         Flags         `json:"flags"`
	Rating        Rating        `json:"rating"`
	FavCount      int           `json:"fav_count"`
	Sources       []string      `json:"sources"`
	Pools         []uint64      `json:"pools"`
	Relationships Relationships `json:"relationships"`
	ApproverID    *uint64       `json:"approver_id"`
	UploaderID    uint64        `json:"uploader_id"`
	Description   string        `json:"description"`
	CommentCount  int           `json:"comment_count"`
	IsFavorited   bool          `json:"is_favorited"`
	HasNotes      bool          `json:"has_notes"`
	Duration      *float64      `json:"duration"`
}

// RecordID returns the post id.
func (p *Post) RecordID() uint64 {
	return p.ID
}

// Status derives the moderation status from the post flags.
func (p *Post) Status() Status {
	switch {
	case p.Flags.Deleted:
		return StatusDeleted
	case p.Flags.Flagged:
		return StatusFlagged
	case p.Flags.Pending:
		return StatusPending
	default:
		return StatusActive
	}
}

// IsDeleted returns true if the post was deleted.
func (p *Post) IsDeleted() bool {
	return p.Flags.Deleted
}

// String renders a one-line summary, e.g. "#8595 by fluffy (safe, +12)".
func (p *Post) String() string {
	if p.IsDeleted() {
		return fmt.Sprintf("#%d (deleted)", p.ID)
	}

	artist := "unknown artist"
	if len(p.Tags.Artist) > 0 {
		artist = p.Tags.Artist[0]
	}
	return fmt.Sprintf("#%d by %s (%s, %+d)", p.ID, artist, p.Rating, p.Score.Total)
}

// PostPage is the envelope of /posts.json.
type PostPage struct {
	Posts []*Post `json:"posts"`
}

// UnmarshalJSON requires the "posts" array to be present.
func (p *PostPage) UnmarshalJSON(data []byte) error {
	var raw struct {
		Posts *[]*Post `json:"posts"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw.Posts == nil {
		return fmt.Errorf(`missing "posts" array`)
	}
	p.Posts = *raw.Posts
	return nil
}

// PostEnvelope is the envelope of /posts/<id>.json.
type PostEnvelope struct {
	Post *Post `json:"post"`
}
