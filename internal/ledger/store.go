package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// ErrNotFound is returned when a lookup matches no row.
var ErrNotFound = errors.New("not found")

// Store is the relational ledger: accounts, the reward catalog, and the
// award/redemption history that backs balance reconciliation.
type Store struct {
	db *gorm.DB
}

// Open connects the store and migrates its schema. Production passes a
// postgres dialector; tests pass sqlite.
func Open(dialector gorm.Dialector) (*Store, error) {
	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.AutoMigrate(&User{}, &Achievement{}, &Perk{}, &Award{}, &Redemption{}); err != nil {
		return nil, fmt.Errorf("failed to migrate schema: %w", err)
	}

	return &Store{db: db}, nil
}

// DB exposes the underlying handle for transactional composition.
func (s *Store) DB() *gorm.DB {
	return s.db
}

func translate(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}

// --- users ---

func (s *Store) CreateUser(ctx context.Context, u *User) error {
	return s.db.WithContext(ctx).Create(u).Error
}

func (s *Store) UserByID(ctx context.Context, id string) (*User, error) {
	var u User
	if err := s.db.WithContext(ctx).First(&u, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return &u, nil
}

func (s *Store) UserByEmail(ctx context.Context, email string) (*User, error) {
	var u User
	if err := s.db.WithContext(ctx).First(&u, "email = ?", email).Error; err != nil {
		return nil, translate(err)
	}
	return &u, nil
}

func (s *Store) UserByWallet(ctx context.Context, address string) (*User, error) {
	var u User
	if err := s.db.WithContext(ctx).First(&u, "wallet_address = ?", address).Error; err != nil {
		return nil, translate(err)
	}
	return &u, nil
}

// StudentsWithWallets returns every student account with a verified wallet,
// the dashboard's fan-out set.
func (s *Store) StudentsWithWallets(ctx context.Context) ([]User, error) {
	var users []User
	err := s.db.WithContext(ctx).
		Where("role = ? AND wallet_address IS NOT NULL AND wallet_verified", RoleStudent).
		Order("name").
		Find(&users).Error
	return users, err
}

// AttachWallet binds a verified wallet address to the user.
func (s *Store) AttachWallet(ctx context.Context, userID, address string) error {
	res := s.db.WithContext(ctx).Model(&User{}).Where("id = ?", userID).
		Updates(map[string]interface{}{"wallet_address": address, "wallet_verified": true})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// DetachWallet clears the user's wallet binding.
func (s *Store) DetachWallet(ctx context.Context, userID string) error {
	return s.db.WithContext(ctx).Model(&User{}).Where("id = ?", userID).
		Updates(map[string]interface{}{"wallet_address": nil, "wallet_verified": false}).Error
}

// --- achievements ---

func (s *Store) CreateAchievement(ctx context.Context, a *Achievement) error {
	return s.db.WithContext(ctx).Create(a).Error
}

func (s *Store) SaveAchievement(ctx context.Context, a *Achievement) error {
	return s.db.WithContext(ctx).Save(a).Error
}

func (s *Store) AchievementByID(ctx context.Context, id string) (*Achievement, error) {
	var a Achievement
	if err := s.db.WithContext(ctx).First(&a, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return &a, nil
}

func (s *Store) AchievementByTitle(ctx context.Context, title string) (*Achievement, error) {
	var a Achievement
	if err := s.db.WithContext(ctx).First(&a, "title = ?", title).Error; err != nil {
		return nil, translate(err)
	}
	return &a, nil
}

// ListAchievements returns catalog entries, optionally only active ones.
func (s *Store) ListAchievements(ctx context.Context, activeOnly bool) ([]Achievement, error) {
	q := s.db.WithContext(ctx).Order("created_at DESC")
	if activeOnly {
		q = q.Where("active")
	}
	var out []Achievement
	err := q.Find(&out).Error
	return out, err
}

// DeactivateAchievement soft-disables a catalog entry. Existing awards keep
// referencing it.
func (s *Store) DeactivateAchievement(ctx context.Context, id string) error {
	res := s.db.WithContext(ctx).Model(&Achievement{}).Where("id = ?", id).Update("active", false)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// --- perks ---

func (s *Store) CreatePerk(ctx context.Context, p *Perk) error {
	return s.db.WithContext(ctx).Create(p).Error
}

func (s *Store) SavePerk(ctx context.Context, p *Perk) error {
	return s.db.WithContext(ctx).Save(p).Error
}

func (s *Store) PerkByID(ctx context.Context, id string) (*Perk, error) {
	var p Perk
	if err := s.db.WithContext(ctx).First(&p, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return &p, nil
}

func (s *Store) ListPerks(ctx context.Context, activeOnly bool) ([]Perk, error) {
	q := s.db.WithContext(ctx).Order("created_at DESC")
	if activeOnly {
		q = q.Where("active")
	}
	var out []Perk
	err := q.Find(&out).Error
	return out, err
}

func (s *Store) DeactivatePerk(ctx context.Context, id string) error {
	res := s.db.WithContext(ctx).Model(&Perk{}).Where("id = ?", id).Update("active", false)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// --- awards ---

func (s *Store) CreateAward(ctx context.Context, a *Award) error {
	return s.db.WithContext(ctx).Create(a).Error
}

func (s *Store) AwardsByStudent(ctx context.Context, studentID string) ([]Award, error) {
	var out []Award
	err := s.db.WithContext(ctx).
		Preload("Achievement").Preload("AwardedBy").
		Where("student_id = ?", studentID).
		Order("created_at DESC").
		Find(&out).Error
	return out, err
}

func (s *Store) AwardsByFaculty(ctx context.Context, facultyID string) ([]Award, error) {
	var out []Award
	err := s.db.WithContext(ctx).
		Preload("Achievement").Preload("Student").
		Where("awarded_by_id = ?", facultyID).
		Order("created_at DESC").
		Find(&out).Error
	return out, err
}

// RecentAwards returns the newest awards across all students, for the
// faculty activity feed.
func (s *Store) RecentAwards(ctx context.Context, limit int) ([]Award, error) {
	var out []Award
	err := s.db.WithContext(ctx).
		Preload("Achievement").Preload("Student").Preload("AwardedBy").
		Order("created_at DESC").
		Limit(limit).
		Find(&out).Error
	return out, err
}

// PendingAwards returns awards whose mint was broadcast but never confirmed
// in-band. The reconciliation pass resolves them from receipts.
func (s *Store) PendingAwards(ctx context.Context) ([]Award, error) {
	var out []Award
	err := s.db.WithContext(ctx).
		Where("status = ? AND tx_hash <> ''", AwardPending).
		Order("created_at").
		Find(&out).Error
	return out, err
}

func (s *Store) ResolveAward(ctx context.Context, id string, status AwardStatus) error {
	return s.db.WithContext(ctx).Model(&Award{}).Where("id = ?", id).Update("status", status).Error
}

// --- redemptions ---

func (s *Store) CreateRedemption(ctx context.Context, r *Redemption) error {
	return s.db.WithContext(ctx).Create(r).Error
}

func (s *Store) RedemptionsByStudent(ctx context.Context, studentID string) ([]Redemption, error) {
	var out []Redemption
	err := s.db.WithContext(ctx).
		Preload("Perk").
		Where("student_id = ?", studentID).
		Order("created_at DESC").
		Find(&out).Error
	return out, err
}

func (s *Store) AllRedemptions(ctx context.Context) ([]Redemption, error) {
	var out []Redemption
	err := s.db.WithContext(ctx).
		Preload("Perk").Preload("Student").
		Order("created_at DESC").
		Find(&out).Error
	return out, err
}

// DatabaseOnlyRedemptionCost sums perk costs for the student's non-rejected
// redemptions that never burned on-chain. These claims spent tokens the
// chain balance still shows, so reconciliation subtracts the sum.
func (s *Store) DatabaseOnlyRedemptionCost(ctx context.Context, studentID string) (int64, error) {
	var total *int64
	err := s.db.WithContext(ctx).Model(&Redemption{}).
		Select("SUM(perks.token_cost)").
		Joins("JOIN perks ON perks.id = redemptions.perk_id").
		Where("redemptions.student_id = ? AND redemptions.status <> ? AND redemptions.tx_hash = ''",
			studentID, RedemptionRejected).
		Scan(&total).Error
	if err != nil {
		return 0, err
	}
	if total == nil {
		return 0, nil
	}
	return *total, nil
}

// OnChainRedemptionCost sums perk costs for the student's non-rejected
// redemptions that burned on-chain. The chain balance already reflects these,
// so they are reported but never subtracted during reconciliation.
func (s *Store) OnChainRedemptionCost(ctx context.Context, studentID string) (int64, error) {
	var total *int64
	err := s.db.WithContext(ctx).Model(&Redemption{}).
		Select("SUM(perks.token_cost)").
		Joins("JOIN perks ON perks.id = redemptions.perk_id").
		Where("redemptions.student_id = ? AND redemptions.status <> ? AND redemptions.tx_hash <> ''",
			studentID, RedemptionRejected).
		Scan(&total).Error
	if err != nil {
		return 0, err
	}
	if total == nil {
		return 0, nil
	}
	return *total, nil
}

// PendingRedemptions returns redemptions awaiting receipt resolution.
func (s *Store) PendingRedemptions(ctx context.Context) ([]Redemption, error) {
	var out []Redemption
	err := s.db.WithContext(ctx).
		Where("status = ? AND tx_hash <> ''", RedemptionPending).
		Order("created_at").
		Find(&out).Error
	return out, err
}

func (s *Store) ResolveRedemption(ctx context.Context, id string, status RedemptionStatus) error {
	return s.db.WithContext(ctx).Model(&Redemption{}).Where("id = ?", id).Update("status", status).Error
}

// FacultyStats summarizes one faculty member's awarding activity.
type FacultyStats struct {
	TotalAwards     int64 `json:"total_awards"`
	StudentsReached int64 `json:"students_reached"`
	TokensGranted   int64 `json:"tokens_granted"`
	AwardsThisMonth int64 `json:"awards_this_month"`
}

// StatsForFaculty aggregates award counts, distinct students, and granted
// token totals for one faculty member.
func (s *Store) StatsForFaculty(ctx context.Context, facultyID string) (FacultyStats, error) {
	var stats FacultyStats
	db := s.db.WithContext(ctx)

	if err := db.Model(&Award{}).Where("awarded_by_id = ?", facultyID).
		Count(&stats.TotalAwards).Error; err != nil {
		return stats, err
	}
	if err := db.Model(&Award{}).Where("awarded_by_id = ?", facultyID).
		Distinct("student_id").Count(&stats.StudentsReached).Error; err != nil {
		return stats, err
	}

	var granted *int64
	if err := db.Model(&Award{}).
		Select("SUM(achievements.token_reward)").
		Joins("JOIN achievements ON achievements.id = awards.achievement_id").
		Where("awards.awarded_by_id = ? AND awards.status <> ?", facultyID, AwardFailed).
		Scan(&granted).Error; err != nil {
		return stats, err
	}
	if granted != nil {
		stats.TokensGranted = *granted
	}

	monthStart := time.Now().AddDate(0, 0, -30)
	if err := db.Model(&Award{}).
		Where("awarded_by_id = ? AND created_at >= ?", facultyID, monthStart).
		Count(&stats.AwardsThisMonth).Error; err != nil {
		return stats, err
	}

	return stats, nil
}
