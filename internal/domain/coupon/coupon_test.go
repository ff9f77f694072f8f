package coupon

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(v string) decimal.Decimal {
	return decimal.RequireFromString(v)
}

func TestApply(t *testing.T) {
	tests := []struct {
		name     string
		rule     *Rule
		subtotal int64
		want     int64
		wantErr  string
	}{
		{
			name:     "percentage 20% of 10000",
			rule:     &Rule{Code: "TWENTY", Kind: KindPercentage, Value: d("20")},
			subtotal: 10000,
			want:     2000,
		},
		{
			name:     "percentage floors fractional result",
			rule:     &Rule{Code: "HALFISH", Kind: KindPercentage, Value: d("12.5")},
			subtotal: 999,
			want:     124,
		},
		{
			name:     "percentage 100% equals subtotal",
			rule:     &Rule{Code: "FREE", Kind: KindPercentage, Value: d("100")},
			subtotal: 2500,
			want:     2500,
		},
		{
			name:     "fixed below subtotal",
			rule:     &Rule{Code: "FLAT", Kind: KindFixed, Value: d("500")},
			subtotal: 10000,
			want:     500,
		},
		{
			name:     "fixed clamped at subtotal",
			rule:     &Rule{Code: "FLAT", Kind: KindFixed, Value: d("500")},
			subtotal: 300,
			want:     300,
		},
		{
			name:     "fixed on zero subtotal",
			rule:     &Rule{Code: "FLAT", Kind: KindFixed, Value: d("500")},
			subtotal: 0,
			want:     0,
		},
		{
			name:     "unknown kind",
			rule:     &Rule{Code: "ODD", Kind: Kind("bogus"), Value: d("1")},
			subtotal: 100,
			wantErr:  "unsupported coupon kind",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Apply(tt.rule, tt.subtotal)
			if tt.wantErr != "" {
				require.ErrorContains(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

type mockRepo struct {
	rule *Rule
	err  error
}

func (m *mockRepo) FindByCode(_ context.Context, _ string) (*Rule, error) {
	return m.rule, m.err
}

func TestRepoValidator(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)
	five := 5

	tests := []struct {
		name     string
		rule     *Rule
		repoErr  error
		subtotal int64
		want     int64
		wantErr  error
	}{
		{
			name:    "unknown code",
			repoErr: ErrNotFound,
			wantErr: ErrNotFound,
		},
		{
			name:    "expired",
			rule:    &Rule{Code: "OLD", Kind: KindPercentage, Value: d("10"), ExpiresAt: &past},
			wantErr: ErrExpired,
		},
		{
			name:     "not yet expired",
			rule:     &Rule{Code: "NEW", Kind: KindPercentage, Value: d("10"), ExpiresAt: &future},
			subtotal: 1000,
			want:     100,
		},
		{
			name:    "exhausted",
			rule:    &Rule{Code: "CAPPED", Kind: KindFixed, Value: d("100"), MaxUses: &five, Uses: 5},
			wantErr: ErrExhausted,
		},
		{
			name:     "under the usage cap",
			rule:     &Rule{Code: "CAPPED", Kind: KindFixed, Value: d("100"), MaxUses: &five, Uses: 4},
			subtotal: 1000,
			want:     100,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := NewRepoValidator(&mockRepo{rule: tt.rule, err: tt.repoErr})
			v.now = func() time.Time { return now }

			got, err := v.Validate(context.Background(), "ANY", tt.subtotal)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.Amount)
		})
	}
}
