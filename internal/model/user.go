package model

import "time"

// PlatformRole is the platform-wide default role of a user. It is unrelated
// to the per-job ParticipantRole.
type PlatformRole string

const (
	PlatformRoleTradesperson   PlatformRole = "tradesperson"
	PlatformRoleContractor     PlatformRole = "contractor"
	PlatformRoleProjectManager PlatformRole = "project_manager"
)

// Valid reports whether r is one of the declared platform roles.
func (r PlatformRole) Valid() bool {
	switch r {
	case PlatformRoleTradesperson, PlatformRoleContractor, PlatformRoleProjectManager:
		return true
	}
	return false
}

// User represents a row of the `users` table.
//
// Fields:
//
//	ID             – uuid primary key.
//	Email          – unique, stored trimmed and lower-cased.
//	PasswordHash   – bcrypt hash; never serialised.
//	Role           – platform role (tradesperson, contractor, project_manager).
//	Rating         – maintained outside this service, default 0.
//	CompletedJobs  – maintained outside this service, default 0.
type User struct {
	ID             string       `gorm:"primaryKey;size:36" json:"id"`
	Email          string       `gorm:"size:255;not null;uniqueIndex" json:"email"`
	PasswordHash   string       `gorm:"size:255;not null" json:"-"`
	FirstName      string       `gorm:"size:100" json:"firstName"`
	LastName       string       `gorm:"size:100" json:"lastName"`
	Role           PlatformRole `gorm:"type:varchar(32);not null;default:tradesperson" json:"role"`
	Specialization *string      `gorm:"size:255" json:"specialization,omitempty"`
	Rating         float64      `gorm:"not null;default:0" json:"rating"`
	CompletedJobs  int          `gorm:"not null;default:0" json:"completedJobs"`
	CreatedAt      time.Time    `json:"createdAt"`
	UpdatedAt      time.Time    `json:"updatedAt"`
}

// RefreshToken models an entry in the `refresh_tokens` table. The raw token
// handed to the client is never stored, only its SHA-256 hex digest. Rows are
// never deleted; Revoked flips exactly once.
type RefreshToken struct {
	ID        string     `gorm:"primaryKey;size:36"`
	UserID    string     `gorm:"size:36;not null;index"`
	TokenHash string     `gorm:"size:64;not null;uniqueIndex"`
	Revoked   bool       `gorm:"not null;default:false"`
	ExpiresAt time.Time  `gorm:"not null"`
	RevokedAt *time.Time
	CreatedAt time.Time
	UpdatedAt time.Time
}
