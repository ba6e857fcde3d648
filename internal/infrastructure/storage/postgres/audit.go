package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/klauspost/compress/zstd"

	"stockledger/internal/core/apperror"
	"stockledger/internal/core/id"
	"stockledger/internal/domain/ledger"
	"stockledger/internal/domain/sales"
)

const auditTable = "sys_audit"

// AuditAction represents the type of audited operation.
type AuditAction string

const (
	AuditActionPost    AuditAction = "post"
	AuditActionReverse AuditAction = "reverse"
)

// CompressionAlgo specifies the compression algorithm used.
type CompressionAlgo string

const (
	CompressionNone CompressionAlgo = "none"
	CompressionZstd CompressionAlgo = "zstd"
)

// AuditEntityJournalEntry is the entity_type of posting snapshots.
const AuditEntityJournalEntry = "journal_entry"

// DefaultCompressThreshold is the snapshot size above which changes are zstd-compressed.
const DefaultCompressThreshold = 10 * 1024

// AuditEntry represents a single audit log entry.
type AuditEntry struct {
	ID                id.ID           `db:"id" json:"id"`
	EntityType        string          `db:"entity_type" json:"entityType"`
	EntityID          id.ID           `db:"entity_id" json:"entityId"`
	Action            AuditAction     `db:"action" json:"action"`
	Changes           json.RawMessage `db:"changes" json:"changes,omitempty"`
	ChangesCompressed []byte          `db:"changes_compressed" json:"-"`
	CompressionAlgo   CompressionAlgo `db:"compression_algo" json:"compressionAlgo"`
	Metadata          json.RawMessage `db:"metadata" json:"metadata,omitempty"`
	CreatedAt         time.Time       `db:"created_at" json:"createdAt"`
}

// postingSnapshot is what gets stored for every posted entry.
type postingSnapshot struct {
	Entry       *ledger.JournalEntry `json:"entry"`
	Transaction *sales.Transaction   `json:"transaction,omitempty"`
}

// AuditService stores posting snapshots in sys_audit inside the posting
// transaction, so an entry and its audit row commit together.
type AuditService struct {
	txManager         *TxManager
	builder           squirrel.StatementBuilderType
	encoder           *zstd.Encoder
	decoder           *zstd.Decoder
	compressThreshold int
}

var _ ledger.Auditor = (*AuditService)(nil)

// NewAuditService creates a new audit service. A non-positive threshold
// uses DefaultCompressThreshold.
func NewAuditService(txManager *TxManager, compressThreshold int) (*AuditService, error) {
	encoder, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, fmt.Errorf("create zstd encoder: %w", err)
	}

	decoder, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("create zstd decoder: %w", err)
	}

	if compressThreshold <= 0 {
		compressThreshold = DefaultCompressThreshold
	}

	return &AuditService{
		txManager:         txManager,
		builder:           squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
		encoder:           encoder,
		decoder:           decoder,
		compressThreshold: compressThreshold,
	}, nil
}

// RecordPosting snapshots entry and the transaction it was built from.
// Reversals are recorded with a nil source.
func (s *AuditService) RecordPosting(ctx context.Context, entry *ledger.JournalEntry, source *sales.Transaction) error {
	changes, err := json.Marshal(postingSnapshot{Entry: entry, Transaction: source})
	if err != nil {
		return fmt.Errorf("marshal posting snapshot: %w", err)
	}

	debits, credits := entry.Totals()
	metadata, err := json.Marshal(map[string]any{
		"reference": entry.Reference,
		"lines":     len(entry.Lines),
		"debits":    debits.String(),
		"credits":   credits.String(),
	})
	if err != nil {
		return fmt.Errorf("marshal posting metadata: %w", err)
	}

	action := AuditActionPost
	if entry.ReversesEntryID != nil {
		action = AuditActionReverse
	}

	return s.Log(ctx, AuditEntry{
		EntityType: AuditEntityJournalEntry,
		EntityID:   entry.ID,
		Action:     action,
		Changes:    changes,
		Metadata:   metadata,
	})
}

// Log records an audit entry, compressing large change sets.
func (s *AuditService) Log(ctx context.Context, entry AuditEntry) error {
	s.prepare(&entry)

	sql, args, err := s.builder.Insert(auditTable).
		Columns(Columns[AuditEntry]()...).
		Values(Values(entry)...).
		ToSql()
	if err != nil {
		return fmt.Errorf("build audit insert: %w", err)
	}

	if _, err := s.txManager.GetQuerier(ctx).Exec(ctx, sql, args...); err != nil {
		return apperror.NewPersistence("insert audit entry", err)
	}
	return nil
}

// GetEntityHistory retrieves audit history for an entity, newest first,
// with compressed change sets expanded.
func (s *AuditService) GetEntityHistory(ctx context.Context, entityType string, entityID id.ID, limit int) ([]AuditEntry, error) {
	if limit <= 0 {
		limit = 50
	}

	sql, args, err := s.builder.Select(Columns[AuditEntry]()...).
		From(auditTable).
		Where(squirrel.Eq{"entity_type": entityType, "entity_id": entityID}).
		OrderBy("created_at DESC").
		Limit(uint64(limit)).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build history query: %w", err)
	}

	var entries []AuditEntry
	if err := pgxscan.Select(ctx, s.txManager.GetQuerier(ctx), &entries, sql, args...); err != nil {
		return nil, apperror.NewPersistence("query audit history", err)
	}

	for i := range entries {
		if err := s.expand(&entries[i]); err != nil {
			return nil, err
		}
	}
	return entries, nil
}

func (s *AuditService) prepare(entry *AuditEntry) {
	if id.IsNil(entry.ID) {
		entry.ID = id.New()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	entry.CompressionAlgo = CompressionNone
	if len(entry.Changes) > s.compressThreshold {
		entry.ChangesCompressed = s.encoder.EncodeAll(entry.Changes, nil)
		entry.Changes = nil
		entry.CompressionAlgo = CompressionZstd
	}
}

func (s *AuditService) expand(e *AuditEntry) error {
	if e.CompressionAlgo != CompressionZstd || len(e.ChangesCompressed) == 0 {
		return nil
	}
	decompressed, err := s.decoder.DecodeAll(e.ChangesCompressed, nil)
	if err != nil {
		return fmt.Errorf("decompress changes: %w", err)
	}
	e.Changes = decompressed
	e.ChangesCompressed = nil
	return nil
}

// Close releases the zstd encoder and decoder.
func (s *AuditService) Close() {
	_ = s.encoder.Close()
	s.decoder.Close()
}
