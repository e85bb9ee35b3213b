// Package notes holds the persisted note collection and the hashtag extractor.
package notes

import (
	"regexp"
	"time"
)

// Note is a persisted, timestamped, tagged text record.
type Note struct {
	ID        int64     `json:"id"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
	Tags      []string  `json:"tags"`
}

var tagPattern = regexp.MustCompile(`#(\w+)`)

// ExtractTags returns every #word token in text with the marker stripped,
// in order of appearance. Repeats are kept and case is preserved.
func ExtractTags(text string) []string {
	matches := tagPattern.FindAllStringSubmatch(text, -1)
	tags := make([]string, 0, len(matches))
	for _, m := range matches {
		tags = append(tags, m[1])
	}
	return tags
}

func (n Note) clone() Note {
	n.Tags = append([]string{}, n.Tags...)
	return n
}
