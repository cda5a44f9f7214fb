package export

import (
	"context"
	"iter"
)

// LanguageStore reads language content from the translation database.
type LanguageStore interface {
	// ChangedLanguages returns the distinct codes of languages with glosses
	// updated or phrases deleted in the trailing window, in ascending order.
	ChangedLanguages(ctx context.Context) ([]string, error)
	// StreamBooks returns a lazy, one-shot sequence of the language's books
	// ordered by book id. An error is yielded at most once and ends the sequence.
	StreamBooks(ctx context.Context, languageCode string) iter.Seq2[Book, error]
}

// Repository is the subset of the remote Git Data API the exporter needs. All
// calls are scoped to one owner/repository.
type Repository interface {
	CreateBlob(ctx context.Context, content string) (string, error)
	GetTreeSHA(ctx context.Context, treeish string) (string, error)
	CreateTree(ctx context.Context, baseTree string, items []TreeItem) (string, error)
	GetRefSHA(ctx context.Context, ref string) (string, error)
	CreateCommit(ctx context.Context, treeSHA, message string, parents []string) (string, error)
	UpdateRef(ctx context.Context, ref, sha string) error
}

// Queue sends export requests to the work queue.
type Queue interface {
	SendBatch(ctx context.Context, group string, msgs []QueueMessage) error
}
