package prompt

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRender_Builtin(t *testing.T) {
	r := NewRegistry()

	out, err := r.Render(BPParser, map[string]string{"CompanyName": "Acme AI"})
	require.NoError(t, err)
	assert.Contains(t, out, "Acme AI")
	assert.Contains(t, out, "company_name")
}

func TestRender_UnknownName(t *testing.T) {
	r := NewRegistry()
	_, err := r.Render("no_such_prompt", nil)
	require.Error(t, err)
}

func TestOverride_ReplacesTemplate(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Override(TeamAnalyst, "custom for {{.CompanyName}}"))

	out, err := r.Render(TeamAnalyst, map[string]string{"CompanyName": "Acme AI"})
	require.NoError(t, err)
	assert.Equal(t, "custom for Acme AI", out)
}

func TestOverride_RejectsBadTemplate(t *testing.T) {
	r := NewRegistry()
	err := r.Override("bad", "{{.Unclosed")
	require.Error(t, err)
}

func TestNames_IncludesAllBuiltins(t *testing.T) {
	r := NewRegistry()
	names := r.Names()
	for _, want := range []string{BPParser, TeamAnalyst, MarketAnalyst, DDQGenerator, Valuation, Exit, CrossCheck, RoundtableAgent} {
		assert.Contains(t, names, want)
	}
}
