package models_test

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arkantrust/payments-engine/models"
)

func TestParseAmountPrecision(t *testing.T) {
	tests := []struct {
		raw     string
		want    string
		wantErr error
	}{
		{raw: "10.1234", want: "10.1234"},
		{raw: "10.12345", wantErr: models.ErrPrecisionAnomaly},
		{raw: "0.00001", wantErr: models.ErrPrecisionAnomaly},
		{raw: "1.50000", wantErr: models.ErrPrecisionAnomaly},
		{raw: "10.12340", wantErr: models.ErrPrecisionAnomaly},
		{raw: "1.5000", want: "1.5000"},
		{raw: "+7", want: "7.0000"},
		{raw: " 3 ", want: "3.0000"},
		{raw: "-2.5", want: "-2.5000"},
		{raw: "", wantErr: models.ErrInvalidAmount},
		{raw: "abc", wantErr: models.ErrInvalidAmount},
		{raw: "1E2", wantErr: models.ErrInvalidAmount},
		{raw: "0.00000001e4", wantErr: models.ErrInvalidAmount},
		{raw: "1e100000000", wantErr: models.ErrInvalidAmount},
		{raw: ".5", wantErr: models.ErrInvalidAmount},
		{raw: "5.", wantErr: models.ErrInvalidAmount},
		{raw: "1,5", wantErr: models.ErrInvalidAmount},
		{raw: "0x10", wantErr: models.ErrInvalidAmount},
		{raw: "999999999999999999999999.9999", want: "999999999999999999999999.9999"},
		{raw: "9999999999999999999999999.9999", wantErr: models.ErrInvalidAmount},
		{raw: "1" + strings.Repeat("0", 1000), wantErr: models.ErrInvalidAmount},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, err := models.ParseAmount(tt.raw)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.String())
		})
	}
}

func TestAmountArithmeticIsExact(t *testing.T) {
	a := models.MustParseAmount("0.1")
	b := models.MustParseAmount("0.2")

	assert.True(t, a.Add(b).Equal(models.MustParseAmount("0.3")))
	assert.True(t, a.Sub(b).IsNegative())
	assert.True(t, a.Sub(b).Neg().Equal(a))
	assert.Equal(t, -1, a.Cmp(b))
	assert.True(t, a.Sub(a).IsZero())
	assert.True(t, models.Zero.IsZero())
	assert.True(t, models.MustParseAmount("7").IsPositive())
}

func TestAmountJSON(t *testing.T) {
	data, err := json.Marshal(models.MustParseAmount("12.3400"))
	require.NoError(t, err)
	assert.JSONEq(t, `"12.34"`, string(data))

	var back models.Amount
	require.NoError(t, json.Unmarshal(data, &back))
	assert.True(t, back.Equal(models.MustParseAmount("12.34")))

	assert.ErrorIs(t, json.Unmarshal([]byte(`"1.123456"`), &back), models.ErrPrecisionAnomaly)
	assert.ErrorIs(t, json.Unmarshal([]byte(`"1.50000"`), &back), models.ErrPrecisionAnomaly)
	assert.ErrorIs(t, json.Unmarshal([]byte(`"1e9"`), &back), models.ErrInvalidAmount)
	assert.ErrorIs(t, json.Unmarshal([]byte(`12`), &back), models.ErrInvalidAmount)

	// Stored balances are not held to the request digit limit.
	big := `"` + strings.Repeat("9", 40) + `.5"`
	require.NoError(t, json.Unmarshal([]byte(big), &back))
	assert.Equal(t, strings.Repeat("9", 40)+".5000", back.String())
}

func TestAccountTotalIsDerived(t *testing.T) {
	acc := models.NewAccount(1)
	acc.Available = models.MustParseAmount("-5")
	acc.Held = models.MustParseAmount("12.5")

	assert.Equal(t, "7.5000", acc.Total().String())
	assert.False(t, acc.Locked)
}

func TestParseTransactionType(t *testing.T) {
	got, err := models.ParseTransactionType(" Chargeback ")
	require.NoError(t, err)
	assert.Equal(t, models.Chargeback, got)
	assert.False(t, got.CarriesAmount())
	assert.True(t, models.Withdrawal.CarriesAmount())

	_, err = models.ParseTransactionType("refund")
	assert.Error(t, err)
}
