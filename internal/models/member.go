package models

type Role string

const (
	RoleManager  Role = "manager"
	RoleEmployee Role = "employee"
)

func (r Role) Valid() bool {
	return r == RoleManager || r == RoleEmployee
}

// Member is a staff member of an establishment. Credentials live with the identity provider.
type Member struct {
	Model
	EstablishmentID string `gorm:"type:varchar(36);not null;uniqueIndex:idx_member_email" json:"establishment_id"`
	Name            string `gorm:"size:100;not null" json:"name"`
	Email           string `gorm:"size:100;not null;uniqueIndex:idx_member_email" json:"email"`
	Role            Role   `gorm:"size:20;not null" json:"role"`
	Active          bool   `gorm:"not null" json:"active"`
}
