package schema

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/docintel/internal/model"
)

func TestNew_CompilesEveryClass(t *testing.T) {
	v, err := New()
	require.NoError(t, err)
	for _, dt := range model.AllDocumentTypes {
		assert.NotEmpty(t, v.Fields(dt), dt)
	}
}

func TestValidate_Conforming(t *testing.T) {
	v, err := New()
	require.NoError(t, err)

	issues, err := v.Validate(model.DocBankStatement, map[string]any{
		"account_number":  "50100012345678",
		"period_start":    "2025-01-01",
		"period_end":      "2025-03-31",
		"opening_balance": "₹12,000.00",
		"transactions": []any{
			map[string]any{"date": "2025-01-01", "amount": 52000.0, "type": "credit", "description": "SALARY ACME"},
		},
	})
	require.NoError(t, err)
	assert.Empty(t, issues)
}

func TestValidate_Violations(t *testing.T) {
	v, err := New()
	require.NoError(t, err)

	issues, err := v.Validate(model.DocBankStatement, map[string]any{
		"account_number": 12345,
		"period_start":   "2025-01-01",
		"transactions": []any{
			map[string]any{"date": "2025-01-01", "amount": 10.0, "type": "transfer"},
		},
	})
	require.NoError(t, err)
	require.NotEmpty(t, issues)

	joined := strings.Join(issues, "\n")
	assert.Contains(t, joined, "period_end")
	assert.Contains(t, joined, "account_number")
	for _, i := range issues {
		assert.True(t, strings.HasPrefix(i, "schema: "))
	}
}

func TestValidate_NilDocumentReportsRequired(t *testing.T) {
	v, err := New()
	require.NoError(t, err)

	issues, err := v.Validate(model.DocIdentity, nil)
	require.NoError(t, err)
	assert.Len(t, issues, 2)
}

func TestValidate_UnknownType(t *testing.T) {
	v, err := New()
	require.NoError(t, err)
	_, err = v.Validate(model.DocumentType("utility_bill"), map[string]any{})
	assert.Error(t, err)
}

func TestFields_DeclarationOrder(t *testing.T) {
	v, err := New()
	require.NoError(t, err)

	fields := v.Fields(model.DocIdentity)
	require.NotEmpty(t, fields)
	assert.Equal(t, "document_kind", fields[0].Name)
	assert.Equal(t, "id_number", fields[1].Name)
	assert.True(t, fields[1].Required)
	assert.Equal(t, []string{"string"}, fields[1].Types)
	assert.False(t, fields[0].Required)
}

func TestHint(t *testing.T) {
	v, err := New()
	require.NoError(t, err)

	hint := v.Hint(model.DocPayslip)
	assert.True(t, strings.HasPrefix(hint, "{\n"))
	assert.Contains(t, hint, `"net_salary": <number|string: net pay credited>`)
	assert.Contains(t, hint, `"pay_period": <string, required:`)
	assert.True(t, strings.HasSuffix(hint, "\n}"))
}

func TestRaw_Missing(t *testing.T) {
	_, err := Raw(model.DocumentType("nope"))
	assert.Error(t, err)
}
