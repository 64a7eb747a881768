package postgres

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/askidc/corpus-assistant/internal/core/domain"
)

func newDocRepoWithMock(t *testing.T) (*DocumentRepository, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	return &DocumentRepository{db: db}, mock, func() { _ = db.Close() }
}

func TestGetBySourceIDReturnsDomainNotFound(t *testing.T) {
	repo, mock, done := newDocRepoWithMock(t)
	defer done()

	mock.ExpectQuery("SELECT source_id, segments, status").
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.GetBySourceID(context.Background(), "missing")
	if err == nil {
		t.Fatalf("expected error")
	}
	if !domain.IsKind(err, domain.ErrDocumentNotFound) {
		t.Fatalf("expected ErrDocumentNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestGetBySourceIDDecodesSegments(t *testing.T) {
	repo, mock, done := newDocRepoWithMock(t)
	defer done()

	now := time.Now().UTC()
	rows := sqlmock.NewRows([]string{"source_id", "segments", "status", "error_message", "created_at", "updated_at"}).
		AddRow("faq-1", []byte(`[{"text":"hello","kind":"faq"}]`), "indexed", "", now, now)
	mock.ExpectQuery("SELECT source_id, segments, status").
		WithArgs("faq-1").
		WillReturnRows(rows)

	doc, err := repo.GetBySourceID(context.Background(), "faq-1")
	if err != nil {
		t.Fatalf("GetBySourceID() error = %v", err)
	}
	if doc.Status != domain.StatusIndexed {
		t.Fatalf("expected indexed status, got %s", doc.Status)
	}
	if len(doc.Segments) != 1 || doc.Segments[0].Kind != domain.KindFAQ {
		t.Fatalf("segments decoded wrong: %+v", doc.Segments)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestReplaceUpsertsDocument(t *testing.T) {
	repo, mock, done := newDocRepoWithMock(t)
	defer done()

	now := time.Now().UTC()
	mock.ExpectExec("INSERT INTO documents").
		WithArgs("faq-1", sqlmock.AnyArg(), string(domain.StatusReceived), "", now, now).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.Replace(context.Background(), &domain.Document{
		SourceID:  "faq-1",
		Segments:  []domain.Segment{{Text: "hello", Kind: domain.KindFAQ}},
		Status:    domain.StatusReceived,
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		t.Fatalf("Replace() error = %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestUpdateStatusReturnsDomainNotFoundWhenNoRowsAffected(t *testing.T) {
	repo, mock, done := newDocRepoWithMock(t)
	defer done()

	mock.ExpectExec("UPDATE documents").
		WithArgs("missing", string(domain.StatusFailed), "boom", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.UpdateStatus(context.Background(), "missing", domain.StatusFailed, "boom")
	if err == nil {
		t.Fatalf("expected error")
	}
	if !domain.IsKind(err, domain.ErrDocumentNotFound) {
		t.Fatalf("expected ErrDocumentNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestListAllScansEveryRow(t *testing.T) {
	repo, mock, done := newDocRepoWithMock(t)
	defer done()

	now := time.Now().UTC()
	rows := sqlmock.NewRows([]string{"source_id", "segments", "status", "error_message", "created_at", "updated_at"}).
		AddRow("a", []byte(`[]`), "indexed", "", now, now).
		AddRow("b", []byte(`[{"text":"x","kind":"paragraph"}]`), "received", "", now, now)
	mock.ExpectQuery("SELECT source_id, segments, status").WillReturnRows(rows)

	docs, err := repo.ListAll(context.Background())
	if err != nil {
		t.Fatalf("ListAll() error = %v", err)
	}
	if len(docs) != 2 || docs[1].SourceID != "b" {
		t.Fatalf("unexpected documents: %+v", docs)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}
