package core

import (
	"slices"
	"time"

	"github.com/shopspring/decimal"
)

type Rank string

const (
	RankRookie  Rank = "Rookie"
	RankVeteran Rank = "Veteran"
	RankPro     Rank = "Pro"
)

// Level thresholds.
const (
	pointsPerLevel      = 250
	bitsPerLevel        = 5
	savingsPerLevelUnit = 1000
)

// Profile is a user's progression: points, level and rank.
type Profile struct {
	UserID        string    `json:"userId"`
	Points        int       `json:"points"`
	Level         int       `json:"level"`
	Rank          Rank      `json:"rank"`
	CompletedBits int       `json:"completedBits"`
	RewardedBits  []string  `json:"rewardedBits"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

func NewProfile(userID string) Profile {
	return Profile{UserID: userID, Level: 1, Rank: RankRookie, RewardedBits: []string{}}
}

func RankFor(points int) Rank {
	switch {
	case points >= 1000:
		return RankPro
	case points >= 500:
		return RankVeteran
	default:
		return RankRookie
	}
}

// LevelFor combines points, completed bits and savings into a level starting at 1.
func LevelFor(points, completedBits int, savings decimal.Decimal) int {
	lvl := 1 + points/pointsPerLevel + completedBits/bitsPerLevel
	if savings.IsPositive() {
		lvl += int(savings.Div(decimal.NewFromInt(savingsPerLevelUnit)).IntPart())
	}
	return lvl
}

// HasReward reports whether bitID has already been rewarded.
func (p Profile) HasReward(bitID string) bool {
	return slices.Contains(p.RewardedBits, bitID)
}

// ApplyReward credits points for bitID once. It returns false when the bit was
// already rewarded, leaving the profile untouched.
func (p *Profile) ApplyReward(bitID string, points int, savings decimal.Decimal, now time.Time) bool {
	if p.HasReward(bitID) {
		return false
	}
	p.RewardedBits = append(p.RewardedBits, bitID)
	p.Points += points
	p.CompletedBits++
	p.Level = LevelFor(p.Points, p.CompletedBits, savings)
	p.Rank = RankFor(p.Points)
	p.UpdatedAt = now
	return true
}
