package attachment

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/jackc/pgx/v5"
)

// DBTX is the subset of pgx used by PostgresStore.
// Satisfied by *pgxpool.Pool, *pgx.Conn and pgx.Tx.
type DBTX interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// DefaultChunkSize is the number of large object bytes read per query.
const DefaultChunkSize = 1 << 20

const (
	metadataQuery = `SELECT file_id, oid, file_name, mime_type, size_in_bytes, created_at
FROM files
WHERE file_id = ANY($1) AND (mime_type = 'application/pdf' OR mime_type LIKE 'image/%')
ORDER BY file_id ASC`

	oidQuery = `SELECT oid FROM files WHERE file_id = $1`

	chunkQuery = `SELECT lo_get($1, $2, $3)`
)

// PostgresStore reads file metadata from the files table and content from
// large objects.
type PostgresStore struct {
	db        DBTX
	chunkSize int32
}

// NewPostgresStore creates a store over db.
func NewPostgresStore(db DBTX) *PostgresStore {
	return &PostgresStore{db: db, chunkSize: DefaultChunkSize}
}

// Metadata returns the PDF and image files among ids, ordered by file id.
func (s *PostgresStore) Metadata(ctx context.Context, ids []string) ([]Metadata, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	rows, err := s.db.Query(ctx, metadataQuery, ids)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMetadata, err)
	}
	defer rows.Close()

	var out []Metadata
	for rows.Next() {
		var m Metadata
		if err := rows.Scan(&m.FileID, &m.OID, &m.OriginalName, &m.MimeType, &m.SizeInBytes, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMetadata, err)
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMetadata, err)
	}
	return out, nil
}

// Download streams the large object of fileID into dst, chunk by chunk.
func (s *PostgresStore) Download(ctx context.Context, fileID, dst string) (err error) {
	var oid uint32
	if err := s.db.QueryRow(ctx, oidQuery, fileID).Scan(&oid); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("%w: %s", ErrFileNotFound, fileID)
		}
		return fmt.Errorf("%w: %s: %v", ErrDownload, fileID, err)
	}

	f, err := os.OpenFile(dst, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600) // #nosec G304 -- temp path
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDownload, err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("%w: %v", ErrDownload, cerr)
		}
	}()

	var offset int64
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		var chunk []byte
		if err := s.db.QueryRow(ctx, chunkQuery, oid, offset, s.chunkSize).Scan(&chunk); err != nil {
			return fmt.Errorf("%w: %s: %v", ErrDownload, fileID, err)
		}
		if _, err := f.Write(chunk); err != nil {
			return fmt.Errorf("%w: %v", ErrDownload, err)
		}
		offset += int64(len(chunk))
		if len(chunk) < int(s.chunkSize) {
			return nil
		}
	}
}

// Compile-time interface check.
var _ Store = (*PostgresStore)(nil)
