package journal

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cleared-dev/ledger/internal/model"
)

const entryYAML = `
date: "2025-03-15"
description: GitHub subscription
lines:
  - account: "5010"
    debit: "4.00"
  - account: "1010"
    credit: "4.00"
    description: card payment
`

func TestEntryFile_Draft(t *testing.T) {
	f, err := ReadEntryFile(strings.NewReader(entryYAML))
	require.NoError(t, err)

	ids := map[string]string{"5010": "software", "1010": "cash"}
	d, err := f.Draft(tenant, "EUR", func(ref string) (string, error) {
		if id, ok := ids[ref]; ok {
			return id, nil
		}
		return "", errors.New("unknown")
	})
	require.NoError(t, err)

	assert.Equal(t, tenant, d.TenantID)
	assert.Equal(t, "2025-03-15", d.Date.Format(model.DateFormat))
	require.Len(t, d.Lines, 2)
	assert.Equal(t, model.JournalLine{AccountID: "software", Debit: 400}, d.Lines[0])
	assert.Equal(t, model.JournalLine{AccountID: "cash", Credit: 400, Description: "card payment"}, d.Lines[1])
}

func TestEntryFile_Errors(t *testing.T) {
	resolve := func(ref string) (string, error) { return ref, nil }

	_, err := ReadEntryFile(strings.NewReader("date: \"2025-03-15\"\nbogus: 1\n"))
	assert.Error(t, err)

	f := EntryFile{Date: "15/03/2025"}
	_, err = f.Draft(tenant, "EUR", resolve)
	assert.True(t, model.HasCode(err, model.CodeInvalidInput))

	f = EntryFile{Date: "2025-03-15", Lines: []EntryLine{{Account: "1010", Debit: "4.001"}}}
	_, err = f.Draft(tenant, "EUR", resolve)
	assert.True(t, model.HasCode(err, model.CodeInvalidLineAmount))
}
