package export

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const instrName = "github.com/globalbibletools/exporter"

// MessageGroup is the logical queue group every export request is sent under.
const MessageGroup = "language-export"

// Target identifies the branch exports are committed to and the system name
// used in commit messages.
type Target struct {
	Branch     string
	SystemName string
}

// Service runs change detection, fan-out and per-language export.
type Service struct {
	languages LanguageStore
	repo      Repository
	queue     Queue
	target    Target
	log       *slog.Logger

	tracer          trace.Tracer
	languagesQueued metric.Int64Counter
	booksExported   metric.Int64Counter
	commitsCreated  metric.Int64Counter
}

// NewService creates a Service.
func NewService(languages LanguageStore, repo Repository, queue Queue, target Target, log *slog.Logger) *Service {
	m := otel.Meter(instrName)

	languagesQueued, _ := m.Int64Counter("exporter.languages.queued",
		metric.WithDescription("Number of language export requests sent to the queue"))
	booksExported, _ := m.Int64Counter("exporter.books.exported",
		metric.WithDescription("Number of book documents written as blobs"))
	commitsCreated, _ := m.Int64Counter("exporter.commits.created",
		metric.WithDescription("Number of export commits pushed"))

	return &Service{
		languages:       languages,
		repo:            repo,
		queue:           queue,
		target:          target,
		log:             log,
		tracer:          otel.Tracer(instrName),
		languagesQueued: languagesQueued,
		booksExported:   booksExported,
		commitsCreated:  commitsCreated,
	}
}

// DetectChangedLanguages returns the codes of languages with content touched
// in the trailing window.
func (s *Service) DetectChangedLanguages(ctx context.Context) ([]string, error) {
	codes, err := s.languages.ChangedLanguages(ctx)
	if err != nil {
		return nil, fmt.Errorf("detect changed languages: %w", err)
	}
	return codes, nil
}

// QueueLanguages detects changed languages and enqueues one export request per
// language in a single batch. Nothing is sent when no language changed.
func (s *Service) QueueLanguages(ctx context.Context) (err error) {
	ctx, span := s.tracer.Start(ctx, "QueueLanguages")
	defer func() { endSpan(span, err) }()

	codes, err := s.DetectChangedLanguages(ctx)
	if err != nil {
		return err
	}
	if len(codes) == 0 {
		s.log.Info("no languages to export")
		return nil
	}

	msgs := make([]QueueMessage, 0, len(codes))
	for _, code := range codes {
		body, err := json.Marshal(ExportRequest{Code: code})
		if err != nil {
			return fmt.Errorf("marshal export request %s: %w", code, err)
		}
		msgs = append(msgs, QueueMessage{ID: code, DedupID: code, Body: body})
	}

	if err := s.queue.SendBatch(ctx, MessageGroup, msgs); err != nil {
		return fmt.Errorf("queue languages: %w", err)
	}

	s.languagesQueued.Add(ctx, int64(len(codes)))
	span.SetAttributes(attribute.Int("languages", len(codes)))
	s.log.Info("queued language exports", "count", len(codes), "languages", codes)
	return nil
}

// ExportLanguage writes every book of the language as a blob, then creates a
// tree on top of the branch tip, a commit with the tip as its only parent, and
// moves the branch to that commit. Nothing is retried or cleaned up on failure.
func (s *Service) ExportLanguage(ctx context.Context, code string) (err error) {
	ctx, span := s.tracer.Start(ctx, "ExportLanguage", trace.WithAttributes(attribute.String("language", code)))
	defer func() { endSpan(span, err) }()

	log := s.log.With("language", code)
	log.Info("export started")

	var items []TreeItem
	for book, err := range s.languages.StreamBooks(ctx, code) {
		if err != nil {
			return fmt.Errorf("fetch books for %s: %w", code, err)
		}

		content, err := MarshalBook(book)
		if err != nil {
			return fmt.Errorf("marshal book %d: %w", book.ID, err)
		}
		sha, err := s.repo.CreateBlob(ctx, string(content))
		if err != nil {
			return fmt.Errorf("create blob for book %d: %w", book.ID, err)
		}

		path := BookPath(code, book)
		log.Debug("blob created", "path", path, "sha", sha)
		items = append(items, TreeItem{
			Path: path,
			Mode: ModeRegularFile,
			Type: TypeBlob,
			SHA:  &sha,
		})
		s.booksExported.Add(ctx, 1, metric.WithAttributes(attribute.String("language", code)))
	}

	ref := "heads/" + s.target.Branch

	baseTree, err := s.repo.GetTreeSHA(ctx, s.target.Branch)
	if err != nil {
		return fmt.Errorf("get base tree: %w", err)
	}
	treeSHA, err := s.repo.CreateTree(ctx, baseTree, items)
	if err != nil {
		return fmt.Errorf("create tree: %w", err)
	}

	parent, err := s.repo.GetRefSHA(ctx, ref)
	if err != nil {
		return fmt.Errorf("get ref %s: %w", ref, err)
	}
	commitSHA, err := s.repo.CreateCommit(ctx, treeSHA, CommitMessage(s.target.SystemName, code), []string{parent})
	if err != nil {
		return fmt.Errorf("create commit: %w", err)
	}

	if err := s.repo.UpdateRef(ctx, ref, commitSHA); err != nil {
		return fmt.Errorf("update ref %s: %w", ref, err)
	}

	s.commitsCreated.Add(ctx, 1, metric.WithAttributes(attribute.String("language", code)))
	log.Info("export committed", "books", len(items), "sha", commitSHA)
	return nil
}

// CommitMessage is the message of the commit produced for one language export.
func CommitMessage(system, code string) string {
	return fmt.Sprintf("Export from %s for %s", system, code)
}

// MarshalBook renders a book as 2-space indented JSON without HTML escaping
// and without a trailing newline.
func MarshalBook(b Book) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(b); err != nil {
		return nil, err
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
