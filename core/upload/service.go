package upload

import (
	"context"
	"fmt"
	"math/rand"
	"net/mail"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/edlabhq/exameval/core"
	"github.com/edlabhq/exameval/core/user"
)

var (
	// errors
	ErrNotFound     = errors.New("upload not found")
	ErrFileNotFound = errors.New("file not found")
	ErrNoFiles      = errors.New("no files accepted; each file must be non-empty and within the size limit")
)

// mockable
var randIntn = rand.Intn

// cannedResults are the evaluation outcomes attached to uploads, picked
// uniformly at random. File content is never analyzed.
var cannedResults = []Result{
	{
		TotalMarks:   85,
		MaxMarks:     100,
		Grade:        "A",
		Feedback:     "Excellent understanding of core concepts. Strong analytical skills demonstrated throughout.",
		Strengths:    []string{"Clear explanations", "Good use of examples", "Logical structure"},
		Improvements: []string{"Could expand on theoretical foundations"},
	},
	{
		TotalMarks:   92,
		MaxMarks:     100,
		Grade:        "A+",
		Feedback:     "Outstanding performance with comprehensive answers and innovative thinking.",
		Strengths:    []string{"Exceptional depth", "Creative problem-solving", "Perfect formatting"},
		Improvements: []string{"Minor grammatical errors"},
	},
	{
		TotalMarks:   78,
		MaxMarks:     100,
		Grade:        "B+",
		Feedback:     "Good grasp of fundamentals with room for deeper analysis in complex topics.",
		Strengths:    []string{"Clear methodology", "Good examples", "Neat presentation"},
		Improvements: []string{"Need more detailed explanations", "Could improve time management"},
	},
}

type (
	Repository interface {
		CreateUpload(ctx context.Context, up Upload) (Upload, error)
		// QueryUploads returns uploads of the given kind, most recent first.
		// A non-empty uploadedBy restricts the result to that uploader.
		QueryUploads(ctx context.Context, kind, uploadedBy string) ([]Upload, error)
		GetUploadByID(ctx context.Context, id string) (Upload, error)
		AttachResult(ctx context.Context, id string, res Result) (Upload, error)
		// DeleteUpload removes the upload record only. Referenced file blobs
		// are kept; they may be shared and are never garbage collected.
		DeleteUpload(ctx context.Context, id string) error

		StoreFile(ctx context.Context, blob FileBlob) error
		GetFile(ctx context.Context, id string) (FileBlob, error)
	}

	Service struct {
		repo    Repository
		mailSvc core.EmailService
		logger  core.Logger
		conf    *core.Config
	}
)

func NewService(repo Repository, mailSvc core.EmailService, logger core.Logger, conf *core.Config) *Service {
	return &Service{repo: repo, mailSvc: mailSvc, logger: logger, conf: conf}
}

// Create stores the accepted files as blobs, records the upload and kicks off
// the asynchronous evaluation. Files over the size limit (or empty) are
// skipped; if none remain the whole upload is rejected.
func (svc *Service) Create(ctx context.Context, uploader user.User, nu NewUpload) (Upload, error) {
	kind := KindStudent
	if uploader.IsTeacher() || uploader.IsAdmin() {
		kind = KindTeacher
	}

	now := time.Now().UTC()
	var refs []FileRef
	for _, f := range nu.Files {
		if f.Size <= 0 || f.Size > svc.conf.Upload.MaxFileSize {
			continue
		}
		blob := FileBlob{
			ID:          uuid.New().String(),
			Name:        f.Name,
			ContentType: f.ContentType,
			Size:        f.Size,
			Data:        f.Data,
			UploadType:  nu.UploadType,
			UploadedBy:  uploader.Email,
			UploadedAt:  now,
		}
		if err := svc.repo.StoreFile(ctx, blob); err != nil {
			return Upload{}, err
		}
		refs = append(refs, FileRef{
			ID:         blob.ID,
			Name:       blob.Name,
			Type:       blob.ContentType,
			Size:       blob.Size,
			UploadType: blob.UploadType,
		})
	}
	if len(refs) == 0 {
		return Upload{}, core.NewValidationError(ErrNoFiles, core.FieldError{Field: "files", Error: ErrNoFiles.Error()})
	}

	up := Upload{
		ID:          uuid.New().String(),
		Kind:        kind,
		StudentInfo: nu.StudentInfo,
		Files:       refs,
		UploadedBy:  uploader.Email,
		UploadedAt:  now,
	}
	up, err := svc.repo.CreateUpload(ctx, up)
	if err != nil {
		return Upload{}, err
	}

	// Evaluation runs detached from the request; there is no cancellation
	// once started.
	go svc.evaluate(up.ID, uploader)

	return up, nil
}

// evaluate attaches a canned result to the upload after an artificial delay
// and notifies the uploader by email.
func (svc *Service) evaluate(uploadID string, uploader user.User) {
	time.Sleep(svc.conf.Upload.EvaluationDelay)

	res := cannedResults[randIntn(len(cannedResults))]
	up, err := svc.repo.AttachResult(context.Background(), uploadID, res)
	if err != nil {
		svc.logger.Error(fmt.Sprintf("upload %s: attaching evaluation result: %v", uploadID, err))
		return
	}

	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:      []mail.Address{{Name: uploader.Name, Address: uploader.Email}},
		Subject: "Your evaluation is ready",
		Body: fmt.Sprintf(
			"Hi %s,\n\nThe evaluation of your upload for %s (%s) is complete: grade %s, %d/%d.\nLog in at %s to see the full feedback.",
			uploader.Name, up.StudentInfo.Name, up.StudentInfo.Subject,
			res.Grade, res.TotalMarks, res.MaxMarks, svc.conf.FrontendBaseURL,
		),
	})
}

// Query lists uploads of a kind, optionally restricted to one uploader.
func (svc *Service) Query(ctx context.Context, kind, uploadedBy string) ([]Upload, error) {
	return svc.repo.QueryUploads(ctx, kind, uploadedBy)
}

func (svc *Service) GetByID(ctx context.Context, id string) (Upload, error) {
	return svc.repo.GetUploadByID(ctx, id)
}

func (svc *Service) Delete(ctx context.Context, id string) error {
	return svc.repo.DeleteUpload(ctx, id)
}

func (svc *Service) GetFile(ctx context.Context, id string) (FileBlob, error) {
	return svc.repo.GetFile(ctx, id)
}
