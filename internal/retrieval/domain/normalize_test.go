package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize(t *testing.T) {
	assert.Equal(t, "what is the annual fee", Normalize("  What   IS the\tAnnual Fee  "))
	assert.Equal(t, "", Normalize("   "))

	// Idempotent: normalizing normalized text is a no-op.
	once := Normalize("  Tell ME about    the Bank ")
	assert.Equal(t, once, Normalize(once))
}

func TestFingerprintSeparatesNamespaces(t *testing.T) {
	a := Fingerprint(NamespaceProducts, "credit card")
	b := Fingerprint(NamespacePolicies, "credit card")
	require.NotEqual(t, a, b)

	// Case and spacing differences collapse to the same key.
	require.Equal(t,
		Fingerprint(NamespaceProducts, "Credit   CARD"),
		Fingerprint(NamespaceProducts, "credit card"))
}

func TestIsFinancialDocument(t *testing.T) {
	assert.True(t, IsFinancialDocument("Annual-Report-2024.pdf"))
	assert.True(t, IsFinancialDocument("q3_financial_statement"))
	assert.True(t, IsFinancialDocument("psi-2025-06-30"))
	assert.False(t, IsFinancialDocument("branch-locations"))
	assert.False(t, IsFinancialDocument(""))
}
