package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/letter-service/internal/domain"
)

// LetterMutation edits a locked letter in place. Returning an error aborts the transaction.
type LetterMutation func(letter *domain.Letter) error

// LetterRepository encapsulates letter persistence.
type LetterRepository interface {
	Create(ctx context.Context, letter *domain.Letter) error
	GetBySerial(ctx context.Context, serial string) (*domain.Letter, error)
	Exists(ctx context.Context, serial string) (bool, error)
	List(ctx context.Context, filter LetterFilter) ([]domain.Letter, error)
	Count(ctx context.Context, filter LetterFilter) (domain.ReplyCounts, error)
	UpdateLocked(ctx context.Context, serial string, mutate LetterMutation) (*domain.Letter, error)
	Delete(ctx context.Context, serial string) (*domain.Letter, error)
}

type letterRepository struct {
	pool *pgxpool.Pool
	tx   *TxRunner
}

// NewLetterRepository instantiates repository.
func NewLetterRepository(pool *pgxpool.Pool) LetterRepository {
	return &letterRepository{pool: pool, tx: NewTxRunner(pool)}
}

const letterColumns = `serial_number, date_received, sender_name, sender_address, letter_type,
               accepting_officer_id, target_sector, administered_by, is_replied, replied_at, created_at`

func (r *letterRepository) Create(ctx context.Context, letter *domain.Letter) error {
	const query = `
        INSERT INTO letters (serial_number, date_received, sender_name, sender_address, letter_type,
            accepting_officer_id, target_sector, administered_by, is_replied, replied_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
        RETURNING created_at`
	isReplied, repliedAt := letter.Reply.Columns()

	err := r.tx.RunInTx(ctx, func(tx pgx.Tx) error {
		if err := tx.QueryRow(ctx, query,
			letter.SerialNumber,
			letter.DateReceived,
			letter.SenderName,
			letter.SenderAddress,
			letter.LetterType,
			letter.AcceptingOfficerID,
			letter.TargetSector,
			letter.AdministeredBy,
			isReplied,
			repliedAt,
		).Scan(&letter.CreatedAt); err != nil {
			return err
		}
		return syncAttachments(ctx, tx, letter.SerialNumber, letter.Attachments)
	})
	if isUniqueViolation(err) {
		return ErrDuplicateSerial
	}
	return err
}

func (r *letterRepository) GetBySerial(ctx context.Context, serial string) (*domain.Letter, error) {
	return fetchLetter(ctx, r.pool, serial, false)
}

func (r *letterRepository) Exists(ctx context.Context, serial string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM letters WHERE serial_number=$1)`, serial).Scan(&exists)
	return exists, err
}

func (r *letterRepository) List(ctx context.Context, filter LetterFilter) ([]domain.Letter, error) {
	where, args := buildLetterWhere(filter)
	query := fmt.Sprintf("SELECT %s FROM letters%s %s%s", letterColumns, where, letterOrder, buildLetterPaging(filter))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	letters, err := scanLetters(rows)
	if err != nil {
		return nil, err
	}
	if len(letters) == 0 {
		return letters, nil
	}

	serials := make([]string, len(letters))
	for i := range letters {
		serials[i] = letters[i].SerialNumber
	}
	attachments, err := loadAttachments(ctx, r.pool, serials)
	if err != nil {
		return nil, err
	}
	for i := range letters {
		letters[i].Attachments = attachments[letters[i].SerialNumber]
		if letters[i].Attachments == nil {
			letters[i].Attachments = domain.Attachments{}
		}
	}
	return letters, nil
}

func (r *letterRepository) Count(ctx context.Context, filter LetterFilter) (domain.ReplyCounts, error) {
	where, args := buildLetterWhere(filter)
	query := "SELECT COUNT(*), COUNT(*) FILTER (WHERE is_replied) FROM letters" + where

	var counts domain.ReplyCounts
	if err := r.pool.QueryRow(ctx, query, args...).Scan(&counts.Total, &counts.Resolved); err != nil {
		return domain.ReplyCounts{}, err
	}
	counts.Pending = counts.Total - counts.Resolved
	return counts, nil
}

// UpdateLocked loads the row FOR UPDATE, applies mutate, and persists every column and
// attachment slot in the same transaction.
func (r *letterRepository) UpdateLocked(ctx context.Context, serial string, mutate LetterMutation) (*domain.Letter, error) {
	var updated *domain.Letter
	err := r.tx.RunInTx(ctx, func(tx pgx.Tx) error {
		current, err := fetchLetter(ctx, tx, serial, true)
		if err != nil {
			return err
		}
		next := current.Clone()
		if err := mutate(next); err != nil {
			return err
		}
		if err := writeLetter(ctx, tx, serial, next); err != nil {
			return err
		}
		if err := syncAttachments(ctx, tx, next.SerialNumber, next.Attachments); err != nil {
			return err
		}
		updated = next
		return nil
	})
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDuplicateSerial
		}
		return nil, err
	}
	return updated, nil
}

func (r *letterRepository) Delete(ctx context.Context, serial string) (*domain.Letter, error) {
	var deleted *domain.Letter
	err := r.tx.RunInTx(ctx, func(tx pgx.Tx) error {
		current, err := fetchLetter(ctx, tx, serial, true)
		if err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `DELETE FROM letters WHERE serial_number=$1`, serial); err != nil {
			return err
		}
		deleted = current
		return nil
	})
	return deleted, err
}

func fetchLetter(ctx context.Context, db DBTX, serial string, forUpdate bool) (*domain.Letter, error) {
	query := fmt.Sprintf("SELECT %s FROM letters WHERE serial_number=$1", letterColumns)
	if forUpdate {
		query += " FOR UPDATE"
	}
	letter, err := scanLetter(db.QueryRow(ctx, query, serial))
	if err != nil {
		return nil, notFound(err)
	}
	attachments, err := loadAttachments(ctx, db, []string{serial})
	if err != nil {
		return nil, err
	}
	letter.Attachments = attachments[serial]
	if letter.Attachments == nil {
		letter.Attachments = domain.Attachments{}
	}
	return letter, nil
}

func writeLetter(ctx context.Context, db DBTX, originalSerial string, letter *domain.Letter) error {
	const query = `
        UPDATE letters SET serial_number=$1, date_received=$2, sender_name=$3, sender_address=$4,
            letter_type=$5, accepting_officer_id=$6, target_sector=$7, administered_by=$8,
            is_replied=$9, replied_at=$10
        WHERE serial_number=$11`
	isReplied, repliedAt := letter.Reply.Columns()
	cmd, err := db.Exec(ctx, query,
		letter.SerialNumber,
		letter.DateReceived,
		letter.SenderName,
		letter.SenderAddress,
		letter.LetterType,
		letter.AcceptingOfficerID,
		letter.TargetSector,
		letter.AdministeredBy,
		isReplied,
		repliedAt,
		originalSerial,
	)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// syncAttachments makes the stored slots for serial equal to attachments.
func syncAttachments(ctx context.Context, db DBTX, serial string, attachments domain.Attachments) error {
	slots := attachments.Slots()
	keep := make([]int32, 0, len(slots))
	for _, slot := range slots {
		keep = append(keep, int32(slot))
	}
	if _, err := db.Exec(ctx,
		`DELETE FROM letter_attachments WHERE serial_number=$1 AND NOT (slot = ANY($2))`,
		serial, keep); err != nil {
		return err
	}

	const upsert = `
        INSERT INTO letter_attachments (serial_number, slot, storage_key, file_name, mime_type, size_bytes, uploaded_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7)
        ON CONFLICT (serial_number, slot) DO UPDATE SET storage_key=EXCLUDED.storage_key,
            file_name=EXCLUDED.file_name, mime_type=EXCLUDED.mime_type,
            size_bytes=EXCLUDED.size_bytes, uploaded_at=EXCLUDED.uploaded_at`
	for _, slot := range slots {
		att := attachments[slot]
		uploadedAt := att.UploadedAt
		if uploadedAt.IsZero() {
			uploadedAt = time.Now()
		}
		if _, err := db.Exec(ctx, upsert,
			serial,
			int16(slot),
			att.StorageKey,
			att.FileName,
			att.MimeType,
			att.SizeBytes,
			uploadedAt,
		); err != nil {
			return err
		}
	}
	return nil
}

func loadAttachments(ctx context.Context, db DBTX, serials []string) (map[string]domain.Attachments, error) {
	const query = `
        SELECT serial_number, slot, storage_key, file_name, mime_type, size_bytes, uploaded_at
        FROM letter_attachments WHERE serial_number = ANY($1) ORDER BY serial_number, slot`
	rows, err := db.Query(ctx, query, serials)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make(map[string]domain.Attachments, len(serials))
	for rows.Next() {
		var (
			serial string
			slot   int16
			att    domain.Attachment
		)
		if err := rows.Scan(&serial, &slot, &att.StorageKey, &att.FileName, &att.MimeType, &att.SizeBytes, &att.UploadedAt); err != nil {
			return nil, err
		}
		att.Slot = int(slot)
		if result[serial] == nil {
			result[serial] = domain.Attachments{}
		}
		result[serial][att.Slot] = att
	}
	return result, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanLetter(row rowScanner) (*domain.Letter, error) {
	var (
		letter    domain.Letter
		isReplied bool
		repliedAt *time.Time
	)
	if err := row.Scan(
		&letter.SerialNumber,
		&letter.DateReceived,
		&letter.SenderName,
		&letter.SenderAddress,
		&letter.LetterType,
		&letter.AcceptingOfficerID,
		&letter.TargetSector,
		&letter.AdministeredBy,
		&isReplied,
		&repliedAt,
		&letter.CreatedAt,
	); err != nil {
		return nil, err
	}
	letter.Reply = domain.ReplyStateFromColumns(isReplied, repliedAt)
	return &letter, nil
}

func scanLetters(rows pgx.Rows) ([]domain.Letter, error) {
	defer rows.Close()
	result := []domain.Letter{}
	for rows.Next() {
		letter, err := scanLetter(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *letter)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}
