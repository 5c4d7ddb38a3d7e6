package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/strandfi/facilityd/internal/domain"
)

// HistoryStore is the narrow read surface the archiver needs: filtered
// listings of pledges and paydowns. domain.Ledger satisfies it implicitly.
type HistoryStore interface {
	ListPledges(ctx context.Context, states ...domain.PledgeState) ([]domain.Pledge, error)
	ListPaydowns(ctx context.Context, states ...domain.PaydownState) ([]domain.Paydown, error)
}

// BlobWriter is the upload surface the archiver needs. *Writer satisfies it.
type BlobWriter interface {
	Put(ctx context.Context, path string, data io.Reader, contentType string) error
}

// Archiver copies terminal pledge and paydown records older than a cutoff
// into object storage as JSONL files, partitioned by the cutoff's year-month.
// Records are never deleted from the primary ledger here; pruning is a
// separate, explicit step taken after the archive has been verified.
type Archiver struct {
	writer BlobWriter
	store  HistoryStore
}

// NewArchiver creates an Archiver that reads from store and writes to writer.
func NewArchiver(writer BlobWriter, store HistoryStore) *Archiver {
	return &Archiver{writer: writer, store: store}
}

// ArchivePledges uploads all closed or cancelled pledges last updated before
// the cutoff to archive/pledges/YYYY-MM.jsonl and returns the record count.
func (a *Archiver) ArchivePledges(ctx context.Context, before time.Time) (int64, error) {
	pledges, err := a.store.ListPledges(ctx, domain.PledgeStateClosed, domain.PledgeStateCancelled)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive pledges query: %w", err)
	}

	old := pledges[:0]
	for _, p := range pledges {
		if p.UpdatedAt.Before(before) {
			old = append(old, p)
		}
	}
	if len(old) == 0 {
		return 0, nil
	}

	buf, err := marshalJSONL(old)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive pledges marshal: %w", err)
	}

	path := archivePath("pledges", before)
	if err := a.writer.Put(ctx, path, bytes.NewReader(buf), "application/x-ndjson"); err != nil {
		return 0, fmt.Errorf("s3blob: archive pledges upload: %w", err)
	}
	return int64(len(old)), nil
}

// ArchivePaydowns uploads all executed or cancelled paydowns last updated
// before the cutoff to archive/paydowns/YYYY-MM.jsonl and returns the record
// count.
func (a *Archiver) ArchivePaydowns(ctx context.Context, before time.Time) (int64, error) {
	paydowns, err := a.store.ListPaydowns(ctx, domain.PaydownStateExecuted, domain.PaydownStateCancelled)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive paydowns query: %w", err)
	}

	old := paydowns[:0]
	for _, p := range paydowns {
		if p.UpdatedAt.Before(before) {
			old = append(old, p)
		}
	}
	if len(old) == 0 {
		return 0, nil
	}

	buf, err := marshalJSONL(old)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive paydowns marshal: %w", err)
	}

	path := archivePath("paydowns", before)
	if err := a.writer.Put(ctx, path, bytes.NewReader(buf), "application/x-ndjson"); err != nil {
		return 0, fmt.Errorf("s3blob: archive paydowns upload: %w", err)
	}
	return int64(len(old)), nil
}

// archivePath builds the S3 key for an archive file, partitioned by the
// year-month of the cutoff time.
//
//	archive/pledges/2026-08.jsonl
//	archive/paydowns/2026-08.jsonl
func archivePath(kind string, before time.Time) string {
	return fmt.Sprintf("archive/%s/%s.jsonl", kind, before.Format("2006-01"))
}

// marshalJSONL serialises a slice of values as newline-delimited JSON. Each
// element is marshalled as a single compact JSON line followed by '\n'.
func marshalJSONL[T any](records []T) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)

	for i, rec := range records {
		if err := enc.Encode(rec); err != nil {
			return nil, fmt.Errorf("jsonl encode record %d: %w", i, err)
		}
	}
	return buf.Bytes(), nil
}
