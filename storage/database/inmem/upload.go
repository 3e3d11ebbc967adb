package inmemdb

import (
	"context"

	"github.com/edlabhq/exameval/core/upload"
)

type uploadRepository struct {
	db *uploadTables
}

var _ upload.Repository = (*uploadRepository)(nil) // interface compliance check

func NewUploadRepository(db *DB) *uploadRepository {
	return &uploadRepository{db: db.upload}
}

func (repo *uploadRepository) CreateUpload(ctx context.Context, up upload.Upload) (upload.Upload, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	// prepend; listings are most-recent-first
	repo.db.uploads = append([]upload.Upload{up}, repo.db.uploads...)
	return up, nil
}

func (repo *uploadRepository) QueryUploads(ctx context.Context, kind, uploadedBy string) ([]upload.Upload, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	var uploads []upload.Upload
	for _, up := range repo.db.uploads {
		if up.Kind != kind {
			continue
		}
		if uploadedBy != "" && up.UploadedBy != uploadedBy {
			continue
		}
		uploads = append(uploads, up)
	}
	return uploads, nil
}

func (repo *uploadRepository) GetUploadByID(ctx context.Context, id string) (upload.Upload, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	for _, up := range repo.db.uploads {
		if up.ID == id {
			return up, nil
		}
	}
	return upload.Upload{}, upload.ErrNotFound
}

func (repo *uploadRepository) AttachResult(ctx context.Context, id string, res upload.Result) (upload.Upload, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	for i := range repo.db.uploads {
		if repo.db.uploads[i].ID == id {
			repo.db.uploads[i].Result = &res
			return repo.db.uploads[i], nil
		}
	}
	return upload.Upload{}, upload.ErrNotFound
}

// DeleteUpload removes the record only; referenced file blobs are kept.
func (repo *uploadRepository) DeleteUpload(ctx context.Context, id string) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	for i := range repo.db.uploads {
		if repo.db.uploads[i].ID == id {
			repo.db.uploads = append(repo.db.uploads[:i], repo.db.uploads[i+1:]...)
			return nil
		}
	}
	return upload.ErrNotFound
}

func (repo *uploadRepository) StoreFile(ctx context.Context, blob upload.FileBlob) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	repo.db.blobs[blob.ID] = &blob
	return nil
}

func (repo *uploadRepository) GetFile(ctx context.Context, id string) (upload.FileBlob, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if blob, ok := repo.db.blobs[id]; ok {
		return *blob, nil
	}
	return upload.FileBlob{}, upload.ErrFileNotFound
}
