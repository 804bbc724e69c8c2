package ledger

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Role controls route access: students redeem, faculty award, admins manage
// the catalog.
type Role string

const (
	RoleStudent Role = "student"
	RoleFaculty Role = "faculty"
	RoleAdmin   Role = "admin"
)

// AwardStatus tracks an award's on-chain lifecycle. Awards start confirmed
// when the mint confirmed in-band, or pending_onchain when the broadcast
// outlived the confirmation budget and is resolved later by reconciliation.
type AwardStatus string

const (
	AwardConfirmed AwardStatus = "confirmed"
	AwardPending   AwardStatus = "pending_onchain"
	AwardFailed    AwardStatus = "failed"
)

// RedemptionStatus tracks a redemption. Rejected redemptions never count
// against a student's available balance.
type RedemptionStatus string

const (
	RedemptionApproved RedemptionStatus = "approved"
	RedemptionPending  RedemptionStatus = "pending_onchain"
	RedemptionRejected RedemptionStatus = "rejected"
)

// User is a platform account. WalletAddress is set only after the student
// proves control of the key via the signature challenge.
type User struct {
	ID             string         `gorm:"primaryKey;type:uuid" json:"id"`
	Name           string         `gorm:"not null" json:"name"`
	Email          string         `gorm:"uniqueIndex;not null" json:"email"`
	PasswordHash   string         `gorm:"not null" json:"-"`
	Role           Role           `gorm:"not null;default:'student'" json:"role"`
	WalletAddress  *string        `gorm:"uniqueIndex" json:"wallet_address,omitempty"`
	WalletVerified bool           `gorm:"default:false" json:"wallet_verified"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
	DeletedAt      gorm.DeletedAt `gorm:"index" json:"-"`
}

func (u *User) BeforeCreate(*gorm.DB) error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	return nil
}

// Achievement is a catalog entry faculty can award. OnChainCreated records
// whether the title was synced to the contract; unsynced entries award
// database-only.
type Achievement struct {
	ID             string         `gorm:"primaryKey;type:uuid" json:"id"`
	Title          string         `gorm:"uniqueIndex;not null" json:"title"`
	Description    string         `gorm:"type:text" json:"description"`
	TokenReward    int64          `gorm:"not null" json:"token_reward"`
	Active         bool           `gorm:"default:true;index" json:"active"`
	OnChainCreated bool           `gorm:"default:false" json:"on_chain_created"`
	TxHash         string         `json:"tx_hash,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
	DeletedAt      gorm.DeletedAt `gorm:"index" json:"-"`
}

func (a *Achievement) BeforeCreate(*gorm.DB) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	return nil
}

// Perk is a catalog entry students can redeem.
type Perk struct {
	ID             string         `gorm:"primaryKey;type:uuid" json:"id"`
	Title          string         `gorm:"uniqueIndex;not null" json:"title"`
	Description    string         `gorm:"type:text" json:"description"`
	TokenCost      int64          `gorm:"not null" json:"token_cost"`
	Active         bool           `gorm:"default:true;index" json:"active"`
	OnChainCreated bool           `gorm:"default:false" json:"on_chain_created"`
	TxHash         string         `json:"tx_hash,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
	DeletedAt      gorm.DeletedAt `gorm:"index" json:"-"`
}

func (p *Perk) BeforeCreate(*gorm.DB) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	return nil
}

// Award records one achievement granted to one student by one faculty member.
type Award struct {
	ID            string      `gorm:"primaryKey;type:uuid" json:"id"`
	StudentID     string      `gorm:"type:uuid;not null;index" json:"student_id"`
	AchievementID string      `gorm:"type:uuid;not null;index" json:"achievement_id"`
	AwardedByID   string      `gorm:"type:uuid;not null;index" json:"awarded_by_id"`
	Status        AwardStatus `gorm:"not null;index" json:"status"`
	TxHash        string      `json:"tx_hash,omitempty"`
	CreatedAt     time.Time   `json:"created_at"`
	UpdatedAt     time.Time   `json:"updated_at"`

	Student     *User        `gorm:"foreignKey:StudentID" json:"student,omitempty"`
	Achievement *Achievement `gorm:"foreignKey:AchievementID" json:"achievement,omitempty"`
	AwardedBy   *User        `gorm:"foreignKey:AwardedByID" json:"awarded_by,omitempty"`
}

func (a *Award) BeforeCreate(*gorm.DB) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	return nil
}

// Redemption records one perk claim. A redemption with an empty TxHash was
// never burned on-chain; balance reconciliation subtracts its cost from the
// chain balance so database-only claims still spend tokens.
type Redemption struct {
	ID        string           `gorm:"primaryKey;type:uuid" json:"id"`
	StudentID string           `gorm:"type:uuid;not null;index" json:"student_id"`
	PerkID    string           `gorm:"type:uuid;not null;index" json:"perk_id"`
	Status    RedemptionStatus `gorm:"not null;index" json:"status"`
	TxHash    string           `json:"tx_hash,omitempty"`
	CreatedAt time.Time        `json:"created_at"`
	UpdatedAt time.Time        `json:"updated_at"`

	Student *User `gorm:"foreignKey:StudentID" json:"student,omitempty"`
	Perk    *Perk `gorm:"foreignKey:PerkID" json:"perk,omitempty"`
}

func (r *Redemption) BeforeCreate(*gorm.DB) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	return nil
}
