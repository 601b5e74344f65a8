package core

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestRankFor(t *testing.T) {
	cases := []struct {
		points int
		want   Rank
	}{
		{0, RankRookie},
		{499, RankRookie},
		{500, RankVeteran},
		{999, RankVeteran},
		{1000, RankPro},
		{5000, RankPro},
	}
	for _, tc := range cases {
		if got := RankFor(tc.points); got != tc.want {
			t.Errorf("RankFor(%d) = %s, want %s", tc.points, got, tc.want)
		}
	}
}

func TestLevelFor(t *testing.T) {
	cases := []struct {
		points, bits int
		savings      string
		want         int
	}{
		{0, 0, "0", 1},
		{100, 1, "0", 1},
		{250, 1, "0", 2},
		{500, 5, "0", 4},
		{100, 1, "2500", 3},
		{100, 1, "-300", 1},
	}
	for _, tc := range cases {
		if got := LevelFor(tc.points, tc.bits, decimal.RequireFromString(tc.savings)); got != tc.want {
			t.Errorf("LevelFor(%d, %d, %s) = %d, want %d", tc.points, tc.bits, tc.savings, got, tc.want)
		}
	}
}

func TestApplyRewardOnce(t *testing.T) {
	p := NewProfile("u1")
	if !p.ApplyReward("b1", CompletionPoints, decimal.Zero, testNow) {
		t.Fatalf("first reward not applied")
	}
	if p.Points != 100 || p.CompletedBits != 1 || p.Rank != RankRookie || p.Level != 1 {
		t.Fatalf("profile after reward %+v", p)
	}
	if p.ApplyReward("b1", CompletionPoints, decimal.Zero, testNow) {
		t.Fatalf("duplicate reward applied")
	}
	if p.Points != 100 {
		t.Fatalf("points changed on duplicate: %d", p.Points)
	}
}

func TestApplyRewardRecomputesRank(t *testing.T) {
	p := NewProfile("u1")
	for i := 0; i < 5; i++ {
		p.ApplyReward(string(rune('a'+i)), CompletionPoints, decimal.Zero, testNow)
	}
	if p.Points != 500 || p.Rank != RankVeteran {
		t.Fatalf("points=%d rank=%s", p.Points, p.Rank)
	}
	// 1 + 500/250 + 5/5
	if p.Level != 4 {
		t.Fatalf("level=%d", p.Level)
	}
}
