package orchestrator

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPostprocessStripsMarkdown(t *testing.T) {
	in := "## Annual Fee\n\nThe **annual fee** is `USD 11.50` per *year*.\n\n```\nsome table\n```"
	out := Postprocess(in)
	assert.Equal(t, "Annual Fee\n\nThe annual fee is USD 11.50 per year.\n\nsome table", out)
}

func TestPostprocessCurrencySymbols(t *testing.T) {
	assert.Equal(t, "The charge is BDT 345.", Postprocess("The charge is ৳345."))
	assert.Equal(t, "BDT 500 per visit", Postprocess("Tk 500 per visit"))
	assert.Equal(t, "BDT 500", Postprocess("Tk. 500"))
}

func TestPostprocessBankNameCanonical(t *testing.T) {
	cases := []string{
		"Edgebank offers this card.",
		"edge bank offers this card.",
		"EdgeBank Limited offers this card.",
		"EdgeBank, Limited offers this card.",
		"edgebank ltd offers this card.",
	}
	for _, in := range cases {
		assert.Equal(t, "EdgeBank PLC offers this card.", Postprocess(in), in)
	}

	// Already canonical text is left alone.
	canonical := "EdgeBank PLC offers this card."
	assert.Equal(t, canonical, Postprocess(canonical))
}

func TestPostprocessRemovesFabricatedEnvelope(t *testing.T) {
	in := "Here is the answer. __SOURCES__{\"sources\":[\"fake\"]}__SOURCES__"
	assert.Equal(t, "Here is the answer.", Postprocess(in))
}

func TestPostprocessIdempotent(t *testing.T) {
	in := "**Edgebank ltd** charges ৳345 for `withdrawals`."
	once := Postprocess(in)
	assert.Equal(t, once, Postprocess(once))
}
