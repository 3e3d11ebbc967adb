package sqlxrepos

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/edlabhq/exameval/core/upload"
)

type uploadRepository struct {
	db *sqlx.DB
}

var _ upload.Repository = (*uploadRepository)(nil) // interface compliance check

func NewUploadRepository(db *sql.DB) *uploadRepository {
	return &uploadRepository{db: sqlx.NewDb(db, "postgres")}
}

type uploadRow struct {
	ID           string      `db:"id"`
	Kind         string      `db:"kind"`
	StudentName  null.String `db:"student_name"`
	StudentClass null.String `db:"student_class"`
	Subject      null.String `db:"subject"`
	Files        []byte      `db:"files"`
	Result       null.JSON   `db:"result"`
	UploadedBy   null.String `db:"uploaded_by"`
	UploadedAt   null.Time   `db:"uploaded_at"`
}

func (repo uploadRepository) toRow(up upload.Upload) (uploadRow, error) {
	files, err := json.Marshal(up.Files)
	if err != nil {
		return uploadRow{}, errors.Wrap(err, "encoding file refs")
	}
	row := uploadRow{
		ID:           up.ID,
		Kind:         up.Kind,
		StudentName:  null.NewString(up.StudentInfo.Name, up.StudentInfo.Name != ""),
		StudentClass: null.NewString(up.StudentInfo.Class, up.StudentInfo.Class != ""),
		Subject:      null.NewString(up.StudentInfo.Subject, up.StudentInfo.Subject != ""),
		Files:        files,
		UploadedBy:   null.NewString(up.UploadedBy, up.UploadedBy != ""),
		UploadedAt:   null.NewTime(up.UploadedAt.UTC(), !up.UploadedAt.IsZero()),
	}
	if up.Result != nil {
		result, err := json.Marshal(up.Result)
		if err != nil {
			return uploadRow{}, errors.Wrap(err, "encoding result")
		}
		row.Result = null.JSONFrom(result)
	}
	return row, nil
}

func (repo uploadRepository) fromRow(row uploadRow) (upload.Upload, error) {
	up := upload.Upload{
		ID:   row.ID,
		Kind: row.Kind,
		StudentInfo: upload.StudentInfo{
			Name:    row.StudentName.String,
			Class:   row.StudentClass.String,
			Subject: row.Subject.String,
		},
		UploadedBy: row.UploadedBy.String,
		UploadedAt: row.UploadedAt.Time,
	}
	if err := json.Unmarshal(row.Files, &up.Files); err != nil {
		return upload.Upload{}, errors.Wrap(err, "decoding file refs")
	}
	if row.Result.Valid {
		up.Result = new(upload.Result)
		if err := json.Unmarshal(row.Result.JSON, up.Result); err != nil {
			return upload.Upload{}, errors.Wrap(err, "decoding result")
		}
	}
	return up, nil
}

func (repo uploadRepository) CreateUpload(ctx context.Context, up upload.Upload) (upload.Upload, error) {
	row, err := repo.toRow(up)
	if err != nil {
		return upload.Upload{}, err
	}
	_, err = repo.db.NamedExecContext(ctx, `
		INSERT INTO upload (id, kind, student_name, student_class, subject, files, result, uploaded_by, uploaded_at)
		VALUES (:id, :kind, :student_name, :student_class, :subject, :files, :result, :uploaded_by, :uploaded_at)`,
		row,
	)
	if err != nil {
		return upload.Upload{}, errors.Wrap(err, "inserting upload")
	}
	return up, nil
}

func (repo uploadRepository) QueryUploads(ctx context.Context, kind, uploadedBy string) ([]upload.Upload, error) {
	query := `SELECT * FROM upload WHERE kind = $1 ORDER BY uploaded_at DESC`
	args := []interface{}{kind}
	if uploadedBy != "" {
		query = `SELECT * FROM upload WHERE kind = $1 AND uploaded_by = $2 ORDER BY uploaded_at DESC`
		args = append(args, uploadedBy)
	}

	var rows []uploadRow
	if err := repo.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, errors.Wrap(err, "querying uploads")
	}
	uploads := make([]upload.Upload, 0, len(rows))
	for _, row := range rows {
		up, err := repo.fromRow(row)
		if err != nil {
			return nil, err
		}
		uploads = append(uploads, up)
	}
	return uploads, nil
}

func (repo uploadRepository) GetUploadByID(ctx context.Context, id string) (upload.Upload, error) {
	var row uploadRow
	if err := repo.db.GetContext(ctx, &row, `SELECT * FROM upload WHERE id = $1`, id); err != nil {
		if err == sql.ErrNoRows {
			return upload.Upload{}, upload.ErrNotFound
		}
		return upload.Upload{}, errors.Wrap(err, "finding upload by ID")
	}
	return repo.fromRow(row)
}

func (repo uploadRepository) AttachResult(ctx context.Context, id string, res upload.Result) (upload.Upload, error) {
	result, err := json.Marshal(res)
	if err != nil {
		return upload.Upload{}, errors.Wrap(err, "encoding result")
	}
	out, err := repo.db.ExecContext(ctx, `UPDATE upload SET result = $1 WHERE id = $2`, result, id)
	if err != nil {
		return upload.Upload{}, errors.Wrap(err, "attaching result")
	}
	if n, err := out.RowsAffected(); err == nil && n == 0 {
		return upload.Upload{}, upload.ErrNotFound
	}
	return repo.GetUploadByID(ctx, id)
}

// DeleteUpload removes the record only; referenced file blobs are kept.
func (repo uploadRepository) DeleteUpload(ctx context.Context, id string) error {
	out, err := repo.db.ExecContext(ctx, `DELETE FROM upload WHERE id = $1`, id)
	if err != nil {
		return errors.Wrap(err, "deleting upload")
	}
	if n, err := out.RowsAffected(); err == nil && n == 0 {
		return upload.ErrNotFound
	}
	return nil
}

type fileBlobRow struct {
	ID          string      `db:"id"`
	Name        null.String `db:"name"`
	ContentType null.String `db:"content_type"`
	Size        int64       `db:"size"`
	Data        null.Bytes  `db:"data"`
	UploadType  null.String `db:"upload_type"`
	UploadedBy  null.String `db:"uploaded_by"`
	UploadedAt  null.Time   `db:"uploaded_at"`
}

func (repo uploadRepository) StoreFile(ctx context.Context, blob upload.FileBlob) error {
	row := fileBlobRow{
		ID:          blob.ID,
		Name:        null.NewString(blob.Name, blob.Name != ""),
		ContentType: null.NewString(blob.ContentType, blob.ContentType != ""),
		Size:        blob.Size,
		Data:        null.BytesFrom(blob.Data),
		UploadType:  null.NewString(blob.UploadType, blob.UploadType != ""),
		UploadedBy:  null.NewString(blob.UploadedBy, blob.UploadedBy != ""),
		UploadedAt:  null.NewTime(blob.UploadedAt.UTC(), !blob.UploadedAt.IsZero()),
	}
	_, err := repo.db.NamedExecContext(ctx, `
		INSERT INTO file_blob (id, name, content_type, size, data, upload_type, uploaded_by, uploaded_at)
		VALUES (:id, :name, :content_type, :size, :data, :upload_type, :uploaded_by, :uploaded_at)
		ON CONFLICT (id) DO UPDATE
		SET name = EXCLUDED.name, content_type = EXCLUDED.content_type, size = EXCLUDED.size,
		    data = EXCLUDED.data, upload_type = EXCLUDED.upload_type,
		    uploaded_by = EXCLUDED.uploaded_by, uploaded_at = EXCLUDED.uploaded_at`,
		row,
	)
	return errors.Wrap(err, "storing file blob")
}

func (repo uploadRepository) GetFile(ctx context.Context, id string) (upload.FileBlob, error) {
	var row fileBlobRow
	if err := repo.db.GetContext(ctx, &row, `SELECT * FROM file_blob WHERE id = $1`, id); err != nil {
		if err == sql.ErrNoRows {
			return upload.FileBlob{}, upload.ErrFileNotFound
		}
		return upload.FileBlob{}, errors.Wrap(err, "finding file blob")
	}
	return upload.FileBlob{
		ID:          row.ID,
		Name:        row.Name.String,
		ContentType: row.ContentType.String,
		Size:        row.Size,
		Data:        row.Data.Bytes,
		UploadType:  row.UploadType.String,
		UploadedBy:  row.UploadedBy.String,
		UploadedAt:  row.UploadedAt.Time,
	}, nil
}
