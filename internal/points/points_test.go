package points

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yxm4nsy/pay2win-backend/internal/model"
)

func ptrFloat(v float64) *float64 { return &v }
func ptrInt(v int64) *int64       { return &v }

func TestBase(t *testing.T) {
	tests := []struct {
		name       string
		spentCents int64
		want       int64
	}{
		{name: "100 units at 4 points per unit", spentCents: 10000, want: 400},
		{name: "one unit", spentCents: 100, want: 4},
		{name: "rounds up at half", spentCents: 113, want: 5},
		{name: "rounds down below half", spentCents: 112, want: 4},
		{name: "zero", spentCents: 0, want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Base(tt.spentCents))
		})
	}
}

func TestCalculate_AutomaticPromotions(t *testing.T) {
	now := time.Now()
	window := func(p *model.Promotion) {
		p.StartTime = now.Add(-time.Hour)
		p.EndTime = now.Add(time.Hour)
	}

	rate := model.Promotion{ID: 1, Type: model.PromotionAutomatic, Rate: ptrFloat(0.5)}
	window(&rate)
	flat := model.Promotion{ID: 2, Type: model.PromotionAutomatic, Points: ptrInt(50)}
	window(&flat)

	res, err := Calculate(10000, now, []model.Promotion{rate, flat}, nil, nil)
	require.NoError(t, err)

	// base 400 + rate 200 + flat 50
	assert.Equal(t, int64(650), res.Earned)
	assert.Equal(t, []int64{1, 2}, res.AppliedIDs)
	assert.Empty(t, res.OneTimeIDs)
}

func TestCalculate_PerContributionRounding(t *testing.T) {
	now := time.Now()
	mk := func(id int64, rate float64) model.Promotion {
		return model.Promotion{
			ID:        id,
			Type:      model.PromotionAutomatic,
			StartTime: now.Add(-time.Hour),
			EndTime:   now.Add(time.Hour),
			Rate:      ptrFloat(rate),
		}
	}

	// 1.10 у.е.: каждая акция даёт round(1.1/3) = 0, хотя сумма ставок
	// дала бы round(2.2/3) = 1. Округление выполняется до суммирования.
	res, err := Calculate(110, now, []model.Promotion{mk(1, 3), mk(2, 3)}, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, Base(110), res.Earned)
}

func TestCalculate_ExplicitOneTime(t *testing.T) {
	now := time.Now()
	active := model.Promotion{
		ID:        7,
		Type:      model.PromotionOneTime,
		StartTime: now.Add(-time.Hour),
		EndTime:   now.Add(time.Hour),
		Points:    ptrInt(100),
	}

	res, err := Calculate(10000, now, nil, []model.Promotion{active}, map[int64]bool{})
	require.NoError(t, err)
	assert.Equal(t, int64(500), res.Earned)
	assert.Equal(t, []int64{7}, res.AppliedIDs)
	assert.Equal(t, []int64{7}, res.OneTimeIDs)
}

func TestCalculate_ExplicitOrderAfterAutomatic(t *testing.T) {
	now := time.Now()
	window := func(p *model.Promotion) {
		p.StartTime = now.Add(-time.Hour)
		p.EndTime = now.Add(time.Hour)
	}

	auto := model.Promotion{ID: 1, Type: model.PromotionAutomatic, Points: ptrInt(10)}
	window(&auto)
	first := model.Promotion{ID: 9, Type: model.PromotionOneTime, Points: ptrInt(10)}
	window(&first)
	second := model.Promotion{ID: 3, Type: model.PromotionOneTime, Points: ptrInt(10)}
	window(&second)

	res, err := Calculate(100, now, []model.Promotion{auto}, []model.Promotion{first, second}, nil)
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 9, 3}, res.AppliedIDs)
	assert.Equal(t, []int64{9, 3}, res.OneTimeIDs)
}

func TestCalculate_ExplicitRejections(t *testing.T) {
	now := time.Now()

	tests := []struct {
		name    string
		promo   model.Promotion
		used    map[int64]bool
		wantErr error
	}{
		{
			name: "automatic requested explicitly",
			promo: model.Promotion{
				ID: 1, Type: model.PromotionAutomatic,
				StartTime: now.Add(-time.Hour), EndTime: now.Add(time.Hour),
			},
			wantErr: ErrNotOneTime,
		},
		{
			name: "expired window",
			promo: model.Promotion{
				ID: 2, Type: model.PromotionOneTime,
				StartTime: now.Add(-2 * time.Hour), EndTime: now.Add(-time.Hour),
			},
			wantErr: ErrInactive,
		},
		{
			name: "not started yet",
			promo: model.Promotion{
				ID: 3, Type: model.PromotionOneTime,
				StartTime: now.Add(time.Hour), EndTime: now.Add(2 * time.Hour),
			},
			wantErr: ErrInactive,
		},
		{
			name: "already used",
			promo: model.Promotion{
				ID: 4, Type: model.PromotionOneTime,
				StartTime: now.Add(-time.Hour), EndTime: now.Add(time.Hour),
			},
			used:    map[int64]bool{4: true},
			wantErr: ErrAlreadyUsed,
		},
		{
			name: "below minimum spending",
			promo: model.Promotion{
				ID: 5, Type: model.PromotionOneTime,
				StartTime: now.Add(-time.Hour), EndTime: now.Add(time.Hour),
				MinSpendingCents: ptrInt(50000),
			},
			wantErr: ErrMinSpending,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Calculate(10000, now, nil, []model.Promotion{tt.promo}, tt.used)
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.wantErr), "got %v, want %v", err, tt.wantErr)
		})
	}
}

func TestCalculate_WindowBoundaries(t *testing.T) {
	start := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	end := start.Add(24 * time.Hour)
	p := model.Promotion{ID: 1, Type: model.PromotionOneTime, Points: ptrInt(1), StartTime: start, EndTime: end}

	// Окно действия полуоткрытое: [start, end).
	if _, err := Calculate(100, start, nil, []model.Promotion{p}, nil); err != nil {
		t.Fatalf("promotion must be active at start time: %v", err)
	}
	if _, err := Calculate(100, end, nil, []model.Promotion{p}, nil); !errors.Is(err, ErrInactive) {
		t.Fatalf("promotion must be inactive at end time, got %v", err)
	}
}
