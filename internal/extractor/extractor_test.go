package extractor

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AI2HU/compscout/internal/router"
)

const pageHTML = `<!DOCTYPE html>
<html>
<head>
  <title> Bean There  Coffee </title>
  <meta property="og:description" content="Roasters since 1999">
  <meta name="keywords" content="coffee, espresso, Coffee, ">
  <script type="application/ld+json">
  {"@context":"https://schema.org","@graph":[
    {"@type":"Product","name":"House Blend","category":"Beans",
     "offers":{"@type":"Offer","price":"14.50","priceCurrency":"USD"}},
    {"@type":"CafeOrCoffeeShop","telephone":"+1 555 0100",
     "address":{"@type":"PostalAddress","streetAddress":"1 Main St","addressLocality":"Springfield"}}
  ]}
  </script>
  <script type="application/ld+json">{ not json </script>
  <style>.price { color: red }</style>
</head>
<body>
  <header><span class="price">$99.00</span></header>
  <nav class="breadcrumb"><a href="/">Home</a><a href="/menu">Menu</a></nav>
  <main>
    <h1>Our menu</h1>
    <div class="prices">
      <span class="price">Latte $4.50</span>
      <span class="price">Mocha $5.25</span>
      <span class="price" style="display: none">$1.00</span>
      <span class="price">orders@beanthere.com</span>
    </div>
    <p>Rooms from <span class="rate">€1.200,50 per night</span></p>
    <a href="mailto:hello@beanthere.com?subject=hi">Email us</a>
    <a href="tel:+15550100">Call</a>
  </main>
  <footer><span class="price">$2.00</span></footer>
  <script>var price = "$3.00";</script>
</body>
</html>`

type fakeInvoker struct {
	text    string
	err     error
	prompts []string
}

func (f *fakeInvoker) Invoke(ctx context.Context, operation, prompt, preferred string) (*router.Result, error) {
	f.prompts = append(f.prompts, prompt)
	if f.err != nil {
		return nil, f.err
	}
	return &router.Result{Text: f.text, Model: "fake-model"}, nil
}

func TestParsePrice(t *testing.T) {
	tests := []struct {
		text     string
		value    float64
		currency string
		ok       bool
	}{
		{"Rooms from €1.200,50 per night", 1200.50, "€", true},
		{"$4.50", 4.50, "$", true},
		{"USD 1,234.56", 1234.56, "$", true},
		{"US$ 12", 12, "$", true},
		{"£1,5", 1.5, "£", true},
		{"EUR 1.200", 1200, "€", true},
		{"€ 1 200,50", 1200.50, "€", true},
		{"₹2,50,000", 250000, "₹", true},
		{"JPY 980", 980, "¥", true},
		{"Latte 2 for $5", 5, "$", true},
		{"$0.00", 0, "", false},
		{"$1,000,000", 0, "", false},
		{"no price here", 0, "", false},
		{"12.99", 12.99, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			value, currency, ok := ParsePrice(tt.text)
			assert.Equal(t, tt.ok, ok)
			assert.InDelta(t, tt.value, value, 0.0001)
			assert.Equal(t, tt.currency, currency)
		})
	}
}

func TestExtractWithoutLLM(t *testing.T) {
	e := New(nil, Config{})

	content, err := e.Extract(context.Background(), "https://beanthere.com/menu", []byte(pageHTML))
	require.NoError(t, err)

	assert.Equal(t, "Bean There Coffee", content.Title)
	assert.Equal(t, "Roasters since 1999", content.Description)
	assert.Equal(t, []string{"coffee", "espresso"}, content.Keywords)
	assert.Equal(t, []string{"Menu", "Beans"}, content.Categories)

	var got []float64
	for _, p := range content.Metadata.Prices {
		got = append(got, p.Price)
		assert.Equal(t, "https://beanthere.com/menu", p.Source)
	}
	assert.Equal(t, []float64{4.50, 5.25, 1200.50}, got)
	assert.Equal(t, "€", content.Metadata.Prices[2].Currency)

	require.Len(t, content.Products, 1)
	assert.Equal(t, "House Blend", content.Products[0].Name)
	assert.InDelta(t, 14.50, content.Products[0].Price, 0.001)
	assert.Equal(t, "$", content.Products[0].Currency)
	assert.Equal(t, "Beans", content.Products[0].Category)

	contact := content.Metadata.ContactInfo
	assert.Contains(t, contact.Emails, "hello@beanthere.com")
	assert.Contains(t, contact.Emails, "orders@beanthere.com")
	assert.Equal(t, []string{"+15550100", "+1 555 0100"}, contact.Phones)
	assert.Equal(t, "1 Main St, Springfield", contact.Address)

	assert.Contains(t, content.MainContent, "Our menu")
	assert.NotContains(t, content.MainContent, "var price")
	assert.NotContains(t, content.MainContent, "color: red")
	assert.Len(t, content.Metadata.StructuredData, 2)
}

func TestExtractWithLLMOfferings(t *testing.T) {
	llm := &fakeInvoker{text: "Here you go:\n```json\n[" +
		`{"name":"Latte","price":4.5,"currency":"USD","type":"product","category":"Drinks"},` +
		`{"name":"House Blend","price":15},` +
		`{"name":"","price":3},` +
		`{"name":"Catering","type":"service","url":"/catering","price":"from $120"},` +
		`{"description":"nameless"}` +
		"]\n```\nLet me know if you need more."}
	e := New(llm, Config{})

	content, err := e.Extract(context.Background(), "https://beanthere.com/menu", []byte(pageHTML))
	require.NoError(t, err)
	require.Len(t, llm.prompts, 1)
	assert.Contains(t, llm.prompts[0], "Our menu")

	require.Len(t, content.Products, 2)
	assert.Equal(t, "House Blend", content.Products[0].Name)
	assert.InDelta(t, 14.50, content.Products[0].Price, 0.001)
	assert.Equal(t, "Latte", content.Products[1].Name)
	assert.Equal(t, "$", content.Products[1].Currency)
	assert.Equal(t, "Drinks", content.Products[1].Category)

	require.Len(t, content.Services, 1)
	svc := content.Services[0]
	assert.Equal(t, "Catering", svc.Name)
	assert.InDelta(t, 120, svc.Price, 0.001)
	assert.Equal(t, "https://beanthere.com/catering", svc.URL)
	assert.Equal(t, "General", svc.Category)
	assert.Equal(t, "$", svc.Currency)
}

func TestExtractLLMFailureKeepsStructuredOfferings(t *testing.T) {
	e := New(&fakeInvoker{err: errors.New("boom")}, Config{})

	content, err := e.Extract(context.Background(), "https://beanthere.com/menu", []byte(pageHTML))
	require.NoError(t, err)
	assert.Len(t, content.Products, 1)
	assert.Empty(t, content.Services)
}

func TestExtractUnparseableLLMResponse(t *testing.T) {
	e := New(&fakeInvoker{text: "I could not find any products."}, Config{})

	content, err := e.Extract(context.Background(), "https://beanthere.com/menu", []byte(pageHTML))
	require.NoError(t, err)
	assert.Len(t, content.Products, 1)
}

func TestNormalizeOfferingsDefaults(t *testing.T) {
	name := "Espresso"
	products, services := normalizeOfferings([]llmOffering{{Name: &name, Price: -3.0}}, "https://a.com", "USD")

	require.Len(t, products, 1)
	assert.Empty(t, services)
	assert.Equal(t, 0.0, products[0].Price)
	assert.Equal(t, "USD", products[0].Currency)
	assert.Equal(t, "https://a.com", products[0].URL)
	assert.Equal(t, "General", products[0].Category)
}

func TestExtractEmptyPage(t *testing.T) {
	e := New(&fakeInvoker{text: "[]"}, Config{})

	content, err := e.Extract(context.Background(), "https://a.com", []byte(""))
	require.NoError(t, err)
	assert.False(t, content.HasContent())
	assert.Equal(t, "https://a.com", content.URL)
}
