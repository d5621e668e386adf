package auditlog

import (
	"context"
	"time"

	"github.com/wardenchat/warden/automod/engine"

	"gorm.io/gorm"
)

// Row in the audit table.
type AuditEntry struct {
	ID             uint      `gorm:"primarykey"`
	CreatedAt      time.Time `gorm:"index"`
	Kind           string    `gorm:"index"`
	TenantID       string    `gorm:"index:idx_audit_tenant_author"`
	AuthorID       string    `gorm:"index:idx_audit_tenant_author"`
	ChannelID      string
	MessageID      string
	ViolationType  string
	Reason         string
	ViolationCount int
	RequestedTier  string
	AppliedTier    string
	Attempt        int
	Success        bool
	FailureReason  string
	Content        string
	Attachments    int
}

func (AuditEntry) TableName() string {
	return "moderation_audit"
}

// Persists audit records with gorm (sqlite or postgres).
type DBSink struct {
	DB *gorm.DB
}

var _ engine.AuditSink = (*DBSink)(nil)

// Wraps the database handle, creating or migrating the audit table.
func NewDBSink(db *gorm.DB) (*DBSink, error) {
	if err := db.AutoMigrate(&AuditEntry{}); err != nil {
		return nil, err
	}
	return &DBSink{DB: db}, nil
}

func (s *DBSink) Record(ctx context.Context, rec engine.AuditRecord) error {
	row := AuditEntry{
		CreatedAt:      rec.Timestamp,
		Kind:           string(rec.Kind),
		TenantID:       rec.TenantID,
		AuthorID:       rec.AuthorID,
		ChannelID:      rec.ChannelID,
		MessageID:      rec.MessageID,
		ViolationType:  string(rec.ViolationType),
		Reason:         rec.Reason,
		ViolationCount: rec.ViolationCount,
		RequestedTier:  rec.RequestedTier.String(),
		AppliedTier:    rec.AppliedTier.String(),
		Attempt:        rec.Attempt,
		Success:        rec.Success,
		FailureReason:  rec.FailureReason,
		Content:        rec.Content,
		Attachments:    rec.Attachments,
	}
	if row.CreatedAt.IsZero() {
		row.CreatedAt = time.Now()
	}
	return s.DB.WithContext(ctx).Create(&row).Error
}

// Most recent entries for a tenant, newest first. If authorID is non-empty, only that author's entries.
func (s *DBSink) Recent(ctx context.Context, tenantID, authorID string, limit int) ([]AuditEntry, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	q := s.DB.WithContext(ctx).Where("tenant_id = ?", tenantID)
	if authorID != "" {
		q = q.Where("author_id = ?", authorID)
	}
	var out []AuditEntry
	if err := q.Order("id desc").Limit(limit).Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

// Deletes entries older than the cutoff, returning how many were removed.
func (s *DBSink) Prune(ctx context.Context, before time.Time) (int64, error) {
	res := s.DB.WithContext(ctx).Where("created_at < ?", before).Delete(&AuditEntry{})
	return res.RowsAffected, res.Error
}
