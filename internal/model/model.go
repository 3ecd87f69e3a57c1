package model

import (
	"fmt"
	"time"
)

// Role is the closed set of user roles. The values match the database enum.
type Role string

const (
	RoleAdmin        Role = "ADMIN"
	RoleManager      Role = "GERENTE"
	RoleCollaborator Role = "COLABORADOR"
)

// ParseRole validates a role value coming from a request or the database.
func ParseRole(value string) (Role, error) {
	switch Role(value) {
	case RoleAdmin, RoleManager, RoleCollaborator:
		return Role(value), nil
	default:
		return "", fmt.Errorf("unknown role %q", value)
	}
}

// RoleFromCode maps the legacy numeric codes ("1", "2", "3") still sent by
// older clients to roles. Unknown codes are an error, never a silent default.
func RoleFromCode(code string) (Role, error) {
	switch code {
	case "1":
		return RoleAdmin, nil
	case "2":
		return RoleManager, nil
	case "3":
		return RoleCollaborator, nil
	default:
		return "", fmt.Errorf("unknown role code %q", code)
	}
}

// User is a staff account. RecoveryTokenHash and RecoveryTokenExpiresAt are
// paired: both set while a recovery token is outstanding, both nil otherwise.
// DeletedAt marks a soft-deleted account; soft-deleted users cannot log in.
type User struct {
	ID                     string
	Name                   string
	Email                  string
	PasswordHash           string
	Role                   Role
	RecoveryTokenHash      *string
	RecoveryTokenExpiresAt *time.Time
	CreatedAt              time.Time
	UpdatedAt              time.Time
	DeletedAt              *time.Time
}

// CategoryKind is the closed set of category kinds.
type CategoryKind string

const (
	CategoryIncome  CategoryKind = "receita"
	CategoryExpense CategoryKind = "despesa"
)

func ParseCategoryKind(value string) (CategoryKind, error) {
	switch CategoryKind(value) {
	case CategoryIncome, CategoryExpense:
		return CategoryKind(value), nil
	default:
		return "", fmt.Errorf("unknown category kind %q", value)
	}
}

// Category rows are scoped to the user that created them.
type Category struct {
	ID        string
	Name      string
	Kind      CategoryKind
	UserID    string
	CreatedAt time.Time
	UpdatedAt time.Time
}

type Item struct {
	ID          string
	Description string
	Quantity    int64
	UnitValue   float64
	CreatedAt   time.Time
	UpdatedAt   time.Time
	UpdatedBy   *string
	DeletedAt   *time.Time
}

// Matrix is a catalog entry. CreatedBy/UpdatedBy hold the id of the session
// user that performed the write.
type Matrix struct {
	ID          string
	Code        string
	Description string
	ImageURL    *string
	Kind        *string
	FirstNumber *int64
	LastNumber  *int64
	Notes       *string
	CreatedAt   time.Time
	CreatedBy   *string
	UpdatedAt   time.Time
	UpdatedBy   *string
	DeletedAt   *time.Time
}
