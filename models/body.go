package models

import "time"

// BodyFormat describes how Body.Content should be interpreted.
type BodyFormat string

const (
	BodyFormatMarkdown BodyFormat = "markdown"
	BodyFormatJSON     BodyFormat = "json"
	BodyFormatPlain    BodyFormat = "plain"
)

// Body is the fully hydrated content body. It lives in its own table and in
// the content cache, never inside [ContentRecord].
type Body struct {
	Format    BodyFormat `json:"format"`
	Content   string     `json:"content"`
	Checksum  string     `json:"checksum"`
	UpdatedAt time.Time  `json:"updated_at"`
}
