package user

import (
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/edlabhq/exameval/core"
)

// Roles
const (
	RoleStudent = "student"
	RoleTeacher = "teacher"
	RoleAdmin   = "admin" // created via the admin CLI only
)

var (
	AllRoles = []string{RoleStudent, RoleTeacher, RoleAdmin}

	// SignupRoles are the roles self-registration may pick from.
	SignupRoles = []string{RoleStudent, RoleTeacher}
)

type User struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	Role         string    `json:"role"`
	Phone        string    `json:"phone,omitempty"`
	Institution  string    `json:"institution,omitempty"`
	Bio          string    `json:"bio,omitempty"`
	Section      string    `json:"section,omitempty"` // student's section, eg. "10A"
	IsActive     *bool     `json:"is_active"`
	PasswordHash []byte    `json:"-"`
	CreatedAt    time.Time `json:"created_at"` // UTC
	UpdatedAt    time.Time `json:"updated_at"` // UTC
	LastLogin    time.Time `json:"last_login"` // UTC
}

func (u *User) SetPassword(pwd string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(pwd), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	u.PasswordHash = hash
	return nil
}

func (u *User) CheckPassword(pwd string) error {
	return bcrypt.CompareHashAndPassword(u.PasswordHash, []byte(pwd))
}

func (u *User) SetActive(active bool) {
	u.IsActive = &active
}

func (u *User) Active() bool {
	return u.IsActive != nil && *u.IsActive
}

func (u *User) IsStudent() bool { return u.Role == RoleStudent }
func (u *User) IsTeacher() bool { return u.Role == RoleTeacher }
func (u *User) IsAdmin() bool   { return u.Role == RoleAdmin }

// NewUser contains information needed to register a new User.
type NewUser struct {
	Name     string `json:"name" validate:"required"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
	Role     string `json:"role" validate:"required,signuprole"`
	Section  string `json:"section"`
}

func (nu *NewUser) Validate(svc *Service) error {
	nu.Name = core.CleanString(nu.Name)
	nu.Email = core.CleanString(nu.Email, true /* lower */)
	nu.Section = core.CleanString(nu.Section)

	if err := core.Validate.Struct(nu); err != nil {
		return err
	}
	return svc.CheckUniqueness(nu.Email)
}

// UpdateProfile defines what information may be provided to modify an existing User.
// Empty fields leave the corresponding stored field unchanged.
type UpdateProfile struct {
	Name        string `json:"name"`
	Email       string `json:"email" validate:"omitempty,email"`
	Phone       string `json:"phone"`
	Institution string `json:"institution"`
	Bio         string `json:"bio"`
	Section     string `json:"section"`
}

func (up *UpdateProfile) Validate(origUsr User, svc *Service) error {
	if name := core.CleanString(up.Name); name != "" {
		up.Name = name
	} else {
		up.Name = origUsr.Name
	}

	if email := core.CleanString(up.Email, true /* lower */); email != "" {
		up.Email = email
	} else {
		up.Email = origUsr.Email
	}

	if up.Phone == "" {
		up.Phone = origUsr.Phone
	}
	if up.Institution == "" {
		up.Institution = origUsr.Institution
	}
	if up.Bio == "" {
		up.Bio = origUsr.Bio
	}
	if up.Section = core.CleanString(up.Section); up.Section == "" {
		up.Section = origUsr.Section
	}

	if err := core.Validate.Struct(up); err != nil {
		return err
	}
	return svc.CheckUniqueness(up.Email, origUsr)
}

// UpdatePassword carries a password change request.
type UpdatePassword struct {
	CurrentPassword string `json:"currentPassword" validate:"required"`
	NewPassword     string `json:"newPassword" validate:"required"`
}

func (up *UpdatePassword) Validate() error {
	return core.Validate.Struct(up)
}
