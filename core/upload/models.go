package upload

import (
	"time"

	"github.com/edlabhq/exameval/core"
)

// Upload kinds; student and teacher uploads are kept in separate collections.
const (
	KindStudent = "student"
	KindTeacher = "teacher"
)

// Upload types
const (
	TypeQuestion = "question"
	TypeAnswer   = "answer"
)

// StudentInfo identifies whose work an upload contains.
type StudentInfo struct {
	Name    string `json:"name" validate:"required"`
	Class   string `json:"class" validate:"required"`
	Subject string `json:"subject" validate:"required"`
}

// FileRef is a lightweight reference to a stored FileBlob.
type FileRef struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Type       string `json:"type"` // MIME type
	Size       int64  `json:"size"`
	UploadType string `json:"upload_type"` // question | answer
}

// FileBlob holds the actual file content, keyed by generated file id.
// Blobs outlive the uploads referencing them; there is no garbage collection.
type FileBlob struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	ContentType string    `json:"content_type"`
	Size        int64     `json:"size"`
	Data        []byte    `json:"-"`
	UploadType  string    `json:"upload_type"`
	UploadedBy  string    `json:"uploaded_by"`
	UploadedAt  time.Time `json:"uploaded_at"` // UTC
}

// Result is the mock evaluation attached to an upload once analysis finishes.
type Result struct {
	TotalMarks   int      `json:"total_marks"`
	MaxMarks     int      `json:"max_marks"`
	Grade        string   `json:"grade"`
	Feedback     string   `json:"feedback"`
	Strengths    []string `json:"strengths"`
	Improvements []string `json:"improvements"`
}

type Upload struct {
	ID          string      `json:"id"`
	Kind        string      `json:"kind"`
	StudentInfo StudentInfo `json:"student_info"`
	Files       []FileRef   `json:"files"`
	Result      *Result     `json:"result"` // nil until evaluation completes
	UploadedBy  string      `json:"uploaded_by"`
	UploadedAt  time.Time   `json:"uploaded_at"` // UTC
}

// NewFile is an incoming file within a NewUpload.
type NewFile struct {
	Name        string
	ContentType string
	Size        int64
	Data        []byte
}

// NewUpload contains information needed to create an Upload.
type NewUpload struct {
	StudentInfo StudentInfo `json:"student_info" validate:"required"`
	UploadType  string      `json:"upload_type" validate:"required,oneof=question answer"`
	Files       []NewFile   `json:"-" validate:"-"`
}

func (nu *NewUpload) Validate() error {
	nu.StudentInfo.Name = core.CleanString(nu.StudentInfo.Name)
	nu.StudentInfo.Class = core.CleanString(nu.StudentInfo.Class)
	nu.StudentInfo.Subject = core.CleanString(nu.StudentInfo.Subject)
	nu.UploadType = core.CleanString(nu.UploadType, true /* lower */)
	return core.Validate.Struct(nu)
}
