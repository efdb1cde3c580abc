package promotion

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanUse(t *testing.T) {
	record := func(promoID, userID string) UsageRecord {
		return UsageRecord{PromotionID: promoID, UserID: userID, UsedAt: testNow}
	}

	tests := []struct {
		name    string
		promo   Promotion
		userID  string
		records []UsageRecord
		want    bool
	}{
		{
			name:   "no per-user cap",
			promo:  Promotion{ID: "promo-1", MaxUsagePerUser: 0},
			userID: "u1",
			records: []UsageRecord{
				record("promo-1", "u1"), record("promo-1", "u1"), record("promo-1", "u1"),
			},
			want: true,
		},
		{
			name:    "under cap",
			promo:   Promotion{ID: "promo-1", MaxUsagePerUser: 2},
			userID:  "u1",
			records: []UsageRecord{record("promo-1", "u1")},
			want:    true,
		},
		{
			name:    "at cap",
			promo:   Promotion{ID: "promo-1", MaxUsagePerUser: 1},
			userID:  "u1",
			records: []UsageRecord{record("promo-1", "u1")},
			want:    false,
		},
		{
			name:    "other users do not count",
			promo:   Promotion{ID: "promo-1", MaxUsagePerUser: 1},
			userID:  "u1",
			records: []UsageRecord{record("promo-1", "u2"), record("promo-1", "u3")},
			want:    true,
		},
		{
			name:    "other promotions do not count",
			promo:   Promotion{ID: "promo-1", MaxUsagePerUser: 1},
			userID:  "u1",
			records: []UsageRecord{record("promo-2", "u1")},
			want:    true,
		},
		{
			name:    "anonymous user bypasses per-user cap",
			promo:   Promotion{ID: "promo-1", MaxUsagePerUser: 1},
			userID:  "",
			records: []UsageRecord{record("promo-1", "")},
			want:    true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CanUse(&tt.promo, tt.userID, tt.records))
		})
	}
}

func TestExhausted(t *testing.T) {
	assert.False(t, Exhausted(&Promotion{MaxUsage: 0, CurrentUsage: 9999}))
	assert.False(t, Exhausted(&Promotion{MaxUsage: 100, CurrentUsage: 99}))
	assert.True(t, Exhausted(&Promotion{MaxUsage: 100, CurrentUsage: 100}))
	assert.True(t, Exhausted(&Promotion{MaxUsage: 100, CurrentUsage: 150}))
}
