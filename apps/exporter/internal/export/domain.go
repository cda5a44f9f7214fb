package export

import "fmt"

// Book is one canonical book of a language's text, exported as a single JSON
// document. Field order here is the field order of the exported file.
type Book struct {
	ID       int       `json:"id"`
	Name     string    `json:"name"`
	Chapters []Chapter `json:"chapters"`
}

// Chapter holds verses ordered by verse id.
type Chapter struct {
	ID     int     `json:"id"`
	Verses []Verse `json:"verses"`
}

// Verse holds words ordered by word id.
type Verse struct {
	ID    string `json:"id"`
	Words []Word `json:"words"`
}

// Word carries the approved gloss for the language, or nil when none is
// approved. Gloss is always serialised, as null when absent.
type Word struct {
	ID    string  `json:"id"`
	Gloss *string `json:"gloss"`
}

// Git tree entry modes and object types used when building export trees.
const (
	ModeRegularFile = "100644"
	TypeBlob        = "blob"
)

// TreeItem describes one entry to add to a remote tree object. Exactly one of
// SHA or Content is set.
type TreeItem struct {
	Path    string
	Mode    string
	Type    string
	SHA     *string
	Content *string
}

// BookPath returns the repository path of a book's exported file, e.g.
// "eng/01-Genesis.json".
func BookPath(languageCode string, b Book) string {
	return fmt.Sprintf("%s/%02d-%s.json", languageCode, b.ID, b.Name)
}

// ExportRequest is the body of a queue message asking for one language export.
type ExportRequest struct {
	Code string `json:"code"`
}

// Event sources understood by Dispatch.
const (
	SourceSchedule = "schedule"
	SourceQueue    = "queue"
)

// Event is a trigger delivered by the invoking host: either a schedule tick or
// one or more queue records.
type Event struct {
	Source  string   `json:"source"`
	Records []Record `json:"records,omitempty"`
}

// Record is a single delivered queue message.
type Record struct {
	MessageID string `json:"messageId,omitempty"`
	Body      string `json:"body"`
}

// QueueMessage is one message handed to Queue.SendBatch.
type QueueMessage struct {
	ID      string
	DedupID string
	Body    []byte
}
