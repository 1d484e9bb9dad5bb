package app

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/tidwall/gjson"
)

// assetFragmentRe pulls the JSON object following an "asset" key out of an
// inline script. Bounded to one level of nesting so a missing brace cannot
// make the scan run away on large bundles.
var assetFragmentRe = regexp.MustCompile(`"asset"\s*:\s*(\{[^{}]*(?:\{[^{}]*\}[^{}]*)*\})`)

// ScanPage recovers an NFT identity from a rendered page when the tab URL
// alone was not enough. Strategies run in priority order; all parse errors
// are swallowed and nil means "not an NFT page".
func ScanPage(pageURL, html string) *NFTIdentity {
	// Client-side navigation can leave the tab's reported URL behind the
	// page's own location, so the item-path rule gets a second chance here.
	if id := matchItemPath(pageURL); id != nil {
		return id
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil
	}

	if id := scanJSONLD(doc); id != nil {
		return id
	}
	if id := scanInlineScripts(doc); id != nil {
		return id
	}

	return nil
}

// scanJSONLD inspects structured-data blocks for an offer item identifier
// shaped "<contractAddress>/<tokenId>".
func scanJSONLD(doc *goquery.Document) *NFTIdentity {
	var found *NFTIdentity

	doc.Find(`script[type="application/ld+json"]`).EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		payload := sel.Text()
		if !gjson.Valid(payload) {
			return true
		}

		identifier := gjson.Get(payload, "offers.itemOffered.identifier")
		if !identifier.Exists() {
			// Offers may be an array of offer objects.
			identifier = gjson.Get(payload, "offers.0.itemOffered.identifier")
		}
		if !identifier.Exists() {
			return true
		}

		parts := strings.SplitN(identifier.String(), "/", 2)
		if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
			return true
		}

		found = &NFTIdentity{
			Blockchain:      defaultBlockchain,
			ContractAddress: parts[0],
			TokenID:         parts[1],
			Source:          SourcePageJSONLD,
		}
		return false
	})

	return found
}

// scanInlineScripts looks for hydration payloads that embed an asset object
// alongside a token_id and reads the identity out of the JSON fragment.
func scanInlineScripts(doc *goquery.Document) *NFTIdentity {
	var found *NFTIdentity

	doc.Find("script").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		text := sel.Text()
		if !strings.Contains(text, `"asset"`) || !strings.Contains(text, `"token_id"`) {
			return true
		}

		match := assetFragmentRe.FindStringSubmatch(text)
		if match == nil {
			return true
		}

		fragment := match[1]
		if !gjson.Valid(fragment) {
			return true
		}

		address := gjson.Get(fragment, "asset_contract.address").String()
		tokenID := gjson.Get(fragment, "token_id").String()
		if address == "" || tokenID == "" {
			return true
		}

		chain := gjson.Get(fragment, "asset_contract.chain").String()
		if chain == "" {
			chain = defaultBlockchain
		}

		found = &NFTIdentity{
			Blockchain:      chain,
			ContractAddress: address,
			TokenID:         tokenID,
			Source:          SourcePageInline,
		}
		return false
	})

	return found
}
