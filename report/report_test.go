package report_test

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arkantrust/payments-engine/models"
	"github.com/arkantrust/payments-engine/report"
)

func TestWriteAccounts(t *testing.T) {
	accounts := []models.Account{
		{Client: 1, Available: models.MustParseAmount("1.5"), Held: models.Zero},
		{Client: 2, Available: models.MustParseAmount("-2"), Held: models.MustParseAmount("0.0001"), Locked: true},
	}

	var buf bytes.Buffer
	require.NoError(t, report.WriteAccounts(&buf, accounts))
	assert.Equal(t, "client,available,held,total,locked\n"+
		"1,1.5000,0.0000,1.5000,false\n"+
		"2,-2.0000,0.0001,-1.9999,true\n", buf.String())
}

func TestWriteAccountsEmpty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, report.WriteAccounts(&buf, nil))
	assert.Equal(t, "client,available,held,total,locked\n", buf.String())
}
