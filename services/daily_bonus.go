package services

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/cppla/learnquest/clock"
	"github.com/cppla/learnquest/models"
	"github.com/cppla/learnquest/utils"
)

// ClaimOutcome tags the result of a daily bonus claim.
type ClaimOutcome string

const (
	ClaimGranted        ClaimOutcome = "granted"
	ClaimAlreadyClaimed ClaimOutcome = "already_claimed"
)

// DefaultDailyBonusXP is the bonus when none is configured.
const DefaultDailyBonusXP = 20

// ClaimResult is the tagged outcome of Claim. Profile is only set when granted.
type ClaimResult struct {
	Outcome   ClaimOutcome
	XPAwarded int
	Profile   models.Profile
}

func (r ClaimResult) Granted() bool { return r.Outcome == ClaimGranted }

var errAlreadyClaimed = errors.New("daily bonus already claimed")

// BonusService grants the once-per-day login bonus.
type BonusService struct {
	db          *gorm.DB
	clock       clock.Clock
	progression *ProgressionService
	metrics     *Metrics
	log         *zap.Logger
	amount      int
}

func NewBonusService(d Deps, progression *ProgressionService) *BonusService {
	amount := d.Config.DailyBonusXP
	if amount <= 0 {
		amount = DefaultDailyBonusXP
	}
	return &BonusService{
		db:          d.DB,
		clock:       d.Clock,
		progression: progression,
		metrics:     d.Metrics,
		log:         d.logger().Named("daily_bonus"),
		amount:      amount,
	}
}

// Amount is the XP granted per claim.
func (s *BonusService) Amount() int { return s.amount }

// Claim grants today's bonus at most once. The (user, date) unique index
// decides races: a losing insert rolls back and reports AlreadyClaimed.
func (s *BonusService) Claim(ctx context.Context, userID uint) (ClaimResult, error) {
	now := s.clock.Now()
	today := clock.DateOf(now)
	db := s.db.WithContext(ctx)
	already := ClaimResult{Outcome: ClaimAlreadyClaimed}

	claimed, err := claimedOn(db, userID, today)
	if err != nil {
		return ClaimResult{}, err
	}
	if claimed {
		s.alreadyClaimed(userID, today)
		return already, nil
	}

	grant := XPGrant{
		UserID:    userID,
		Source:    models.XPSourceDailyBonus,
		SourceRef: today.String(),
		EventKey:  models.XPSourceDailyBonus + ":" + today.String(),
		Amount:    s.amount,
		Note:      "Daily login bonus",
	}
	var profile models.Profile
	err = db.Transaction(func(tx *gorm.DB) error {
		if _, err := lockProfile(tx, userID); err != nil {
			return err
		}
		claimed, err := claimedOn(tx, userID, today)
		if err != nil {
			return err
		}
		if claimed {
			return errAlreadyClaimed
		}
		claim := models.DailyBonusClaim{
			UserID:    userID,
			BonusDate: today,
			XPAwarded: s.amount,
			ClaimedAt: now,
		}
		if err := tx.Create(&claim).Error; err != nil {
			if utils.IsUniqueViolation(err) {
				return errAlreadyClaimed
			}
			return fmt.Errorf("insert claim: %w", err)
		}
		res, err := s.progression.grantTx(tx, grant)
		if err != nil {
			return err
		}
		if !res.Granted {
			// The day's ledger entry exists without a claim row.
			return errAlreadyClaimed
		}
		profile = res.Profile
		return nil
	})
	if errors.Is(err, errAlreadyClaimed) {
		s.alreadyClaimed(userID, today)
		return already, nil
	}
	if err != nil {
		s.log.Error("daily bonus claim failed", zap.Uint("user_id", userID), zap.Error(err))
		return ClaimResult{}, fmt.Errorf("claim daily bonus: %w", err)
	}

	s.metrics.claim(ClaimGranted)
	s.progression.granted(ctx, grant)
	return ClaimResult{Outcome: ClaimGranted, XPAwarded: s.amount, Profile: profile}, nil
}

func (s *BonusService) alreadyClaimed(userID uint, day clock.Date) {
	s.metrics.claim(ClaimAlreadyClaimed)
	s.log.Debug("daily bonus already claimed", zap.Uint("user_id", userID), zap.Stringer("date", day))
}

// BonusStatus tells the dashboard whether today's bonus is still open.
type BonusStatus struct {
	ClaimedToday  bool       `json:"claimed_today"`
	LastBonusDate clock.Date `json:"last_bonus_date"`
	BonusXP       int        `json:"bonus_xp"`
}

func (s *BonusService) Status(ctx context.Context, userID uint) (BonusStatus, error) {
	var last models.DailyBonusClaim
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("bonus_date DESC").
		Take(&last).Error
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return BonusStatus{}, fmt.Errorf("load last claim: %w", err)
	}
	return BonusStatus{
		ClaimedToday:  !last.BonusDate.IsZero() && last.BonusDate == clock.Today(s.clock),
		LastBonusDate: last.BonusDate,
		BonusXP:       s.amount,
	}, nil
}

func claimedOn(db *gorm.DB, userID uint, day clock.Date) (bool, error) {
	var n int64
	if err := db.Model(&models.DailyBonusClaim{}).
		Where("user_id = ? AND bonus_date = ?", userID, day).
		Count(&n).Error; err != nil {
		return false, fmt.Errorf("check claim: %w", err)
	}
	return n > 0, nil
}
