package record

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// TagCategory is the numeric category e621 assigns to a tag.
type TagCategory int

const (
	TagCategoryGeneral   TagCategory = 0
	TagCategoryArtist    TagCategory = 1
	TagCategoryCopyright TagCategory = 3
	TagCategoryCharacter TagCategory = 4
	TagCategorySpecies   TagCategory = 5
	TagCategoryInvalid   TagCategory = 6
	TagCategoryMeta      TagCategory = 7
	TagCategoryLore      TagCategory = 8
)

var tagCategoryNames = map[TagCategory]string{
	TagCategoryGeneral:   "general",
	TagCategoryArtist:    "artist",
	TagCategoryCopyright: "copyright",
	TagCategoryCharacter: "character",
	TagCategorySpecies:   "species",
	TagCategoryInvalid:   "invalid",
	TagCategoryMeta:      "meta",
	TagCategoryLore:      "lore",
}

// String returns the category name.
func (c TagCategory) String() string {
	if name, ok := tagCategoryNames[c]; ok {
		return name
	}
	return strconv.Itoa(int(c))
}

// ParseTagCategory accepts a category name or its number.
func ParseTagCategory(s string) (TagCategory, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for c, name := range tagCategoryNames {
		if name == s {
			return c, nil
		}
	}

	n, err := strconv.Atoi(s)
	if err == nil {
		if _, ok := tagCategoryNames[TagCategory(n)]; ok {
			return TagCategory(n), nil
		}
	}
	return 0, fmt.Errorf("unknown tag category %q", s)
}

// Tag is a single e621 tag.
type Tag struct {
	ID                   uint64      `json:"id"`
	Name                 string      `json:"name"`
	PostCount            int         `json:"post_count"`
	RelatedTags          string      `json:"related_tags"`
	RelatedTagsUpdatedAt *time.Time  `json:"related_tags_updated_at"`
	Category             TagCategory `json:"category"`
	IsLocked             bool        `json:"is_locked"`
	CreatedAt            time.Time   `json:"created_at"`
	UpdatedAt            time.Time   `json:"updated_at"`
}

// RecordID returns the tag id.
func (t *Tag) RecordID() uint64 {
	return t.ID
}

// TagPage is a /tags.json response. The endpoint answers an empty search
// with {"tags": []} instead of an empty array.
type TagPage []*Tag

// UnmarshalJSON accepts both the array and the empty-object shapes.
func (p *TagPage) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '{' {
		var empty struct {
			Tags []json.RawMessage `json:"tags"`
		}
		dec := json.NewDecoder(bytes.NewReader(trimmed))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&empty); err != nil {
			return err
		}
		if len(empty.Tags) != 0 {
			return fmt.Errorf("unexpected non-empty tags object")
		}
		*p = nil
		return nil
	}

	var tags []*Tag
	if err := json.Unmarshal(trimmed, &tags); err != nil {
		return err
	}
	*p = tags
	return nil
}
