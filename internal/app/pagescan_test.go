package app

import (
	"testing"
)

func TestScanPage_ItemPathInLocation(t *testing.T) {
	// Tab URL lagged; the page's own location already has the item path.
	id := ScanPage("https://opensea.io/item/ethereum/0xabc/42", "<html></html>")

	if id == nil {
		t.Fatal("expected identity")
	}
	if id.Source != SourcePageItemPath {
		t.Errorf("unexpected source: %s", id.Source)
	}
	if id.ContractAddress != "0xabc" || id.TokenID != "42" {
		t.Errorf("unexpected identity: %+v", id)
	}
}

func TestScanPage_JSONLD(t *testing.T) {
	html := `<html><head>
	<script type="application/ld+json">
	{
		"@context": "https://schema.org",
		"@type": "Product",
		"name": "Cool Cat #42",
		"offers": {
			"@type": "Offer",
			"itemOffered": {"identifier": "0xABC/42"}
		}
	}
	</script>
	</head><body></body></html>`

	id := ScanPage("https://opensea.io/collection/coolcats", html)

	if id == nil {
		t.Fatal("expected identity")
	}
	if id.Blockchain != "ethereum" {
		t.Errorf("unexpected blockchain: %s", id.Blockchain)
	}
	if id.ContractAddress != "0xABC" {
		t.Errorf("unexpected contract: %s", id.ContractAddress)
	}
	if id.TokenID != "42" {
		t.Errorf("unexpected token id: %s", id.TokenID)
	}
	if id.Source != SourcePageJSONLD {
		t.Errorf("unexpected source: %s", id.Source)
	}
}

func TestScanPage_JSONLD_OffersArray(t *testing.T) {
	html := `<html><head>
	<script type="application/ld+json">
	{"offers": [{"itemOffered": {"identifier": "0xdef/7"}}]}
	</script>
	</head></html>`

	id := ScanPage("https://opensea.io/somewhere", html)

	if id == nil {
		t.Fatal("expected identity")
	}
	if id.ContractAddress != "0xdef" || id.TokenID != "7" {
		t.Errorf("unexpected identity: %+v", id)
	}
}

func TestScanPage_JSONLD_BadIdentifierShapes(t *testing.T) {
	htmls := []string{
		`<html><script type="application/ld+json">{"offers":{"itemOffered":{"identifier":"noslash"}}}</script></html>`,
		`<html><script type="application/ld+json">{"offers":{"itemOffered":{"identifier":"/42"}}}</script></html>`,
		`<html><script type="application/ld+json">{"offers":{"itemOffered":{"identifier":"0xabc/"}}}</script></html>`,
		`<html><script type="application/ld+json">not json at all</script></html>`,
	}
	for _, html := range htmls {
		if id := ScanPage("https://opensea.io/somewhere", html); id != nil {
			t.Errorf("expected nil for %q, got %+v", html, id)
		}
	}
}

func TestScanPage_InlineScript(t *testing.T) {
	html := `<html><body>
	<script>window.__wired__ = {"props": {"asset": {"token_id": "1337",
	"asset_contract": {"address": "0xbc4c", "chain": "matic", "schema_name": "ERC721"}},
	"other": true}};</script>
	</body></html>`

	id := ScanPage("https://opensea.io/somewhere", html)

	if id == nil {
		t.Fatal("expected identity")
	}
	if id.Blockchain != "matic" {
		t.Errorf("unexpected blockchain: %s", id.Blockchain)
	}
	if id.ContractAddress != "0xbc4c" {
		t.Errorf("unexpected contract: %s", id.ContractAddress)
	}
	if id.TokenID != "1337" {
		t.Errorf("unexpected token id: %s", id.TokenID)
	}
	if id.Source != SourcePageInline {
		t.Errorf("unexpected source: %s", id.Source)
	}
}

func TestScanPage_InlineScript_DefaultsChain(t *testing.T) {
	html := `<html><script>
	{"asset": {"token_id": "9", "asset_contract": {"address": "0xaa"}}}
	</script></html>`

	id := ScanPage("https://opensea.io/somewhere", html)

	if id == nil {
		t.Fatal("expected identity")
	}
	if id.Blockchain != "ethereum" {
		t.Errorf("expected default blockchain, got %s", id.Blockchain)
	}
}

func TestScanPage_InlineScript_MissingFields(t *testing.T) {
	// token_id present but no contract address: no partial identities.
	html := `<html><script>
	{"asset": {"token_id": "9", "asset_contract": {"chain": "ethereum"}}}
	</script></html>`

	if id := ScanPage("https://opensea.io/somewhere", html); id != nil {
		t.Errorf("expected nil, got %+v", id)
	}
}

func TestScanPage_JSONLDWinsOverInline(t *testing.T) {
	html := `<html>
	<script type="application/ld+json">{"offers":{"itemOffered":{"identifier":"0xfirst/1"}}}</script>
	<script>{"asset": {"token_id": "2", "asset_contract": {"address": "0xsecond"}}}</script>
	</html>`

	id := ScanPage("https://opensea.io/somewhere", html)

	if id == nil || id.ContractAddress != "0xfirst" {
		t.Errorf("expected structured data to win, got %+v", id)
	}
}

func TestScanPage_NothingFound(t *testing.T) {
	htmls := []string{
		"",
		"<html><body><p>hello</p></body></html>",
		"<html><script>var x = 1;</script></html>",
	}
	for _, html := range htmls {
		if id := ScanPage("https://opensea.io/rankings", html); id != nil {
			t.Errorf("expected nil, got %+v", id)
		}
	}
}
