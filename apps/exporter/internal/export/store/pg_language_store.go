package store

import (
	"context"
	"fmt"
	"iter"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/globalbibletools/exporter/apps/exporter/internal/export"
)

// DefaultBatchSize is the number of book rows fetched from the cursor per round trip.
const DefaultBatchSize = 1

const changedLanguagesQuery = `
	SELECT l.code
	FROM language AS l
	WHERE EXISTS (
		SELECT 1
		FROM phrase AS ph
		JOIN gloss AS g ON g.phrase_id = ph.id
		WHERE ph.language_id = l.id
			AND g.updated_at >= NOW() - INTERVAL '8 days'
	) OR EXISTS (
		SELECT 1
		FROM phrase AS ph
		WHERE ph.language_id = l.id
			AND ph.deleted_at >= NOW() - INTERVAL '8 days'
	)
	GROUP BY l.code
	ORDER BY l.code
`

// languageTreeQuery aggregates words into verses, verses into chapters and
// chapters into books, sorting at each level before aggregating.
const languageExistsQuery = `SELECT EXISTS (SELECT 1 FROM language WHERE code = $1)`

const languageTreeQuery = `
	WITH lang AS (
		SELECT id FROM language WHERE code = $1
	),
	approved AS (
		SELECT DISTINCT ON (phw.word_id) phw.word_id, g.gloss
		FROM phrase_word AS phw
		JOIN phrase AS ph ON ph.id = phw.phrase_id
		JOIN gloss AS g ON g.phrase_id = ph.id
		WHERE ph.language_id = (SELECT id FROM lang)
			AND ph.deleted_at IS NULL
			AND g.state = 'APPROVED'
		ORDER BY phw.word_id, ph.id
	),
	verses AS (
		SELECT
			v.id, v.book_id, v.chapter,
			JSON_AGG(JSON_BUILD_OBJECT('id', w.id, 'gloss', a.gloss) ORDER BY w.id) AS words
		FROM verse AS v
		JOIN word AS w ON w.verse_id = v.id
		LEFT JOIN approved AS a ON a.word_id = w.id
		GROUP BY v.id, v.book_id, v.chapter
	),
	chapters AS (
		SELECT
			book_id, chapter,
			JSON_AGG(JSON_BUILD_OBJECT('id', id, 'words', words) ORDER BY id) AS verses
		FROM verses
		GROUP BY book_id, chapter
	)
	SELECT
		b.id, b.name,
		JSON_AGG(JSON_BUILD_OBJECT('id', c.chapter, 'verses', c.verses) ORDER BY c.chapter) AS chapters
	FROM book AS b
	JOIN chapters AS c ON c.book_id = b.id
	GROUP BY b.id, b.name
	ORDER BY b.id
`

const cursorName = "language_tree"

// PGLanguageStore implements export.LanguageStore backed by PostgreSQL.
type PGLanguageStore struct {
	pool      *pgxpool.Pool
	batchSize int
}

// NewPGLanguageStore creates a PGLanguageStore. A batchSize below 1 falls back
// to DefaultBatchSize.
func NewPGLanguageStore(pool *pgxpool.Pool, batchSize int) *PGLanguageStore {
	if batchSize < 1 {
		batchSize = DefaultBatchSize
	}
	return &PGLanguageStore{pool: pool, batchSize: batchSize}
}

// ChangedLanguages returns languages with glosses updated or phrases deleted in
// the last eight days.
func (s *PGLanguageStore) ChangedLanguages(ctx context.Context) ([]string, error) {
	rows, err := s.pool.Query(ctx, changedLanguagesQuery)
	if err != nil {
		return nil, fmt.Errorf("changed languages query: %w", err)
	}
	codes, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("scan changed languages: %w", err)
	}
	return codes, nil
}

// StreamBooks runs the language tree query behind a server-side cursor and
// yields one book per row, fetching batchSize rows at a time. The connection
// is held only while the sequence is being consumed and is released however
// iteration ends.
func (s *PGLanguageStore) StreamBooks(ctx context.Context, languageCode string) iter.Seq2[export.Book, error] {
	return func(yield func(export.Book, error) bool) {
		conn, err := s.pool.Acquire(ctx)
		if err != nil {
			yield(export.Book{}, fmt.Errorf("acquire connection: %w", err))
			return
		}
		defer conn.Release()

		tx, err := conn.BeginTx(ctx, pgx.TxOptions{AccessMode: pgx.ReadOnly})
		if err != nil {
			yield(export.Book{}, fmt.Errorf("begin transaction: %w", err))
			return
		}
		// Read-only; rolling back also closes the cursor.
		defer func() { _ = tx.Rollback(context.WithoutCancel(ctx)) }() //nolint:errcheck // nothing to undo

		var exists bool
		if err := tx.QueryRow(ctx, languageExistsQuery, languageCode).Scan(&exists); err != nil {
			yield(export.Book{}, fmt.Errorf("look up language %s: %w", languageCode, err))
			return
		}
		if !exists {
			yield(export.Book{}, export.UnknownLanguageError{Code: languageCode})
			return
		}

		declare := fmt.Sprintf("DECLARE %s NO SCROLL CURSOR FOR %s", cursorName, languageTreeQuery)
		if _, err := tx.Exec(ctx, declare, languageCode); err != nil {
			yield(export.Book{}, fmt.Errorf("declare cursor for %s: %w", languageCode, err))
			return
		}

		fetch := fmt.Sprintf("FETCH %d FROM %s", s.batchSize, cursorName)
		for {
			rows, err := tx.Query(ctx, fetch)
			if err != nil {
				yield(export.Book{}, fmt.Errorf("fetch books: %w", err))
				return
			}
			books, err := pgx.CollectRows(rows, scanBook)
			if err != nil {
				yield(export.Book{}, fmt.Errorf("scan books: %w", err))
				return
			}
			if len(books) == 0 {
				return
			}
			for _, b := range books {
				if !yield(b, nil) {
					return
				}
			}
		}
	}
}

func scanBook(row pgx.CollectableRow) (export.Book, error) {
	var b export.Book
	// chapters is a json column; pgx decodes it straight into the nested slice.
	err := row.Scan(&b.ID, &b.Name, &b.Chapters)
	return b, err
}

// Compile-time check.
var _ export.LanguageStore = (*PGLanguageStore)(nil)
