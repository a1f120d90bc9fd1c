package models

// Role is the caller's forum role as asserted by the identity provider.
type Role string

const (
	RoleStudent Role = "student"
	RoleTeacher Role = "teacher"
	RoleMaster  Role = "master"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	switch r {
	case RoleStudent, RoleTeacher, RoleMaster:
		return true
	}
	return false
}

// IsModerator is the single capability check for moderation actions.
func IsModerator(role Role) bool {
	return role == RoleTeacher || role == RoleMaster
}

// Caller is the authenticated identity acting on the forum.
type Caller struct {
	UserID      uint   `json:"user_id"`
	DisplayName string `json:"display_name"`
	Role        Role   `json:"role"`
}

// IsModerator reports whether the caller may moderate.
func (c Caller) IsModerator() bool {
	return IsModerator(c.Role)
}

// AuthorProfile is the externally owned public profile of a user.
type AuthorProfile struct {
	UserID          uint     `gorm:"primaryKey" json:"user_id"`
	DisplayName     string   `gorm:"size:120" json:"display_name"`
	PostsCount      int      `gorm:"not null;default:0" json:"posts_count"`
	ReputationScore int      `gorm:"not null;default:0" json:"reputation_score"`
	Badges          []string `gorm:"serializer:json;type:text" json:"badges"`
}
