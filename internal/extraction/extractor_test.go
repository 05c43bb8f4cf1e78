package extraction

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractEmptyAndWhitespace(t *testing.T) {
	e := NewExtractor()

	for _, text := range []string{"", "   ", "\n\t  \n"} {
		set := e.Extract(text)
		assert.False(t, set.HasEntities())
		assert.Equal(t, 0, set.Count())
		assert.Empty(t, set.Flatten())
	}
}

func TestExtractNonASCIINeverPanics(t *testing.T) {
	e := NewExtractor()

	inputs := []string{
		"Звоните +79261234567 срочно",
		"振込先: ¥50,000 を送金してください",
		"\x00\x01\xff garbled ocr output \xfe",
		strings.Repeat("€", 500),
	}
	for _, text := range inputs {
		assert.NotPanics(t, func() { e.Extract(text) })
	}
}

func TestExtractPhones(t *testing.T) {
	e := NewExtractor()

	set := e.Extract("Call 1-800-555-1234 or (415) 555-9876 now. Also 1.800.555.1234!")
	require.Len(t, set.Phones, 2, "same number in two formats must dedup")

	tollfree := set.Phones[0]
	assert.Equal(t, "+18005551234", tollfree.Value)
	assert.Equal(t, "tollfree", tollfree.Kind)
	assert.Equal(t, "US", tollfree.Country)
	assert.True(t, tollfree.Valid)

	standard := set.Phones[1]
	assert.Equal(t, "+14155559876", standard.Value)
	assert.Equal(t, "standard", standard.Kind)
}

func TestExtractInternationalPhone(t *testing.T) {
	e := NewExtractor()

	set := e.Extract("WhatsApp us at +447911123456")
	require.Len(t, set.Phones, 1)
	assert.Equal(t, "+447911123456", set.Phones[0].Value)
	assert.Equal(t, "international", set.Phones[0].Kind)
}

func TestExtractURLs(t *testing.T) {
	e := NewExtractor()

	set := e.Extract("Visit https://secure-bank-login.com/verify and http://bit.ly/3xYz now, or www.secure-bank-login.com.")
	require.Len(t, set.URLs, 2, "same apex domain must dedup")

	assert.Equal(t, "secure-bank-login.com", set.URLs[0].Domain)
	assert.False(t, set.URLs[0].Shortened)
	assert.Equal(t, "bit.ly", set.URLs[1].Domain)
	assert.True(t, set.URLs[1].Shortened)
}

func TestExtractEmails(t *testing.T) {
	e := NewExtractor()

	set := e.Extract("Reply to Support@PayPal-Refunds.net or support@paypal-refunds.net")
	require.Len(t, set.Emails, 1)
	assert.Equal(t, "support@paypal-refunds.net", set.Emails[0].Value)
	assert.Equal(t, "paypal-refunds.net", set.Emails[0].Domain)
}

func TestExtractPayments(t *testing.T) {
	e := NewExtractor()

	set := e.Extract("Send BTC to bc1qar0srrr7xfkvy5l643lydnw9re59gtzzwf5mdq or ETH to 0x52908400098527886E0F7030069857D2E4169EE7, cashtag $quickrefund")
	require.Len(t, set.Payments, 3)
	kinds := map[string]bool{}
	for _, p := range set.Payments {
		kinds[p.Kind] = true
		assert.NotEmpty(t, p.Context)
	}
	assert.True(t, kinds["btc"])
	assert.True(t, kinds["eth"])
	assert.True(t, kinds["cashtag"])
}

func TestExtractAmounts(t *testing.T) {
	e := NewExtractor()

	set := e.Extract("Pay $1,499.99 today or lose €500. Wire 250 USD immediately.")
	require.Len(t, set.Amounts, 3)
	assert.Equal(t, 1499.99, set.Amounts[0].Value)
	assert.Equal(t, "USD", set.Amounts[0].Currency)
	assert.Equal(t, 500.0, set.Amounts[1].Value)
	assert.Equal(t, "EUR", set.Amounts[1].Currency)
	assert.Equal(t, 250.0, set.Amounts[2].Value)
	assert.Equal(t, "USD", set.Amounts[2].Currency)
}

func TestParseAmountCurrencySymbols(t *testing.T) {
	cases := []struct {
		raw      string
		value    float64
		currency string
	}{
		{"$1,499.99", 1499.99, "USD"},
		{"€ 500", 500, "EUR"},
		{"£75.50", 75.50, "GBP"},
		{"250 USD", 250, "USD"},
		{"1,000 pounds", 1000, "GBP"},
	}
	for _, tc := range cases {
		a, ok := parseAmount(tc.raw)
		require.True(t, ok, tc.raw)
		assert.Equal(t, tc.value, a.Value, tc.raw)
		assert.Equal(t, tc.currency, a.Currency, tc.raw)
	}
}

func TestExtractCompanies(t *testing.T) {
	e := NewExtractor()

	set := e.Extract("You owe money to Apex Recovery Solutions LLC. Contact Apex Recovery Solutions, LLC today.")
	require.Len(t, set.Companies, 1, "suffix variants of the same name must dedup")
	assert.Equal(t, "apex recovery solutions", set.Companies[0].Normalized)
	assert.Equal(t, "llc", set.Companies[0].Category)
}

func TestFlattenOrderAndCount(t *testing.T) {
	e := NewExtractor()

	set := e.Extract("Call (800) 555-0000 about invoice from Globex Corp. Pay $99 at https://pay-now.example.com")
	flat := set.Flatten()
	require.Equal(t, set.Count(), len(flat))

	// Roster-bearing types come first, in extraction order.
	assert.Equal(t, EntityPhone, flat[0].Type)
	assert.Equal(t, EntityURL, flat[1].Type)
	assert.Equal(t, EntityCompany, flat[2].Type)
	assert.Equal(t, EntityAmount, flat[3].Type)
}

func TestExtractDeterministic(t *testing.T) {
	e := NewExtractor()
	text := "Call 800-555-1234, visit bit.ly/x, email a@b.co, pay $50 to Acme Inc."

	first := e.Extract(text)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, e.Extract(text))
	}
}
