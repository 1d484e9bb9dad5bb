package app

import (
	"net/url"
	"strings"
)

const (
	marketplaceHost   = "opensea.io"
	defaultBlockchain = "ethereum"
)

// Identity sources, recorded as provenance on extracted identities.
const (
	SourceURLItem        = "url:item"
	SourceURLAssets      = "url:assets"
	SourceCollectionSlug = "url:collection-slug"
	SourcePageItemPath   = "page:item-path"
	SourcePageJSONLD     = "page:json-ld"
	SourcePageInline     = "page:inline-script"
)

// reservedRoots are marketplace path roots that can never be collection slugs.
var reservedRoots = map[string]struct{}{
	"assets":     {},
	"item":       {},
	"collection": {},
	"rankings":   {},
	"activity":   {},
	"explore":    {},
}

// NFTIdentity identifies a single NFT asset. All three of Blockchain,
// ContractAddress and TokenID are always populated; partial identities are
// never returned. Source records which strategy produced the identity.
type NFTIdentity struct {
	Blockchain      string `json:"blockchain"`
	ContractAddress string `json:"contractAddress"`
	TokenID         string `json:"tokenId"`
	Source          string `json:"source,omitempty"`
}

// LowConfidence reports whether the identity came from the collection-slug
// heuristic, where ContractAddress holds an unverified slug rather than a
// contract address.
func (id *NFTIdentity) LowConfidence() bool {
	return id != nil && id.Source == SourceCollectionSlug
}

// MatchURL maps a marketplace URL to an NFT identity. Strategies are tried
// in priority order; the first match wins. Returns nil for non-marketplace
// hosts, malformed URLs, and paths that identify nothing.
func MatchURL(rawURL string) *NFTIdentity {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil
	}
	if !strings.Contains(strings.ToLower(u.Hostname()), marketplaceHost) {
		return nil
	}

	segments := pathSegments(u.Path)

	if id := matchKeywordPath(segments, "item", SourceURLItem); id != nil {
		return id
	}
	if id := matchKeywordPath(segments, "assets", SourceURLAssets); id != nil {
		return id
	}

	// Collection-slug fallback: /<slug>/<tokenId>. The slug is not a
	// verified contract address; consumers must treat this identity as
	// lower confidence than the item/assets paths.
	if len(segments) >= 2 {
		if _, reserved := reservedRoots[segments[0]]; !reserved {
			return &NFTIdentity{
				Blockchain:      defaultBlockchain,
				ContractAddress: segments[0],
				TokenID:         segments[1],
				Source:          SourceCollectionSlug,
			}
		}
	}

	return nil
}

// matchKeywordPath finds keyword in segments and reads the three following
// segments as (blockchain, contractAddress, tokenId).
func matchKeywordPath(segments []string, keyword, source string) *NFTIdentity {
	for i, seg := range segments {
		if seg != keyword {
			continue
		}
		if len(segments) < i+4 {
			return nil
		}
		return &NFTIdentity{
			Blockchain:      segments[i+1],
			ContractAddress: segments[i+2],
			TokenID:         segments[i+3],
			Source:          source,
		}
	}
	return nil
}

// pathSegments splits a URL path into its non-empty segments.
func pathSegments(path string) []string {
	parts := strings.Split(path, "/")
	segments := make([]string, 0, len(parts))
	for _, p := range parts {
		if p != "" {
			segments = append(segments, p)
		}
	}
	return segments
}

// matchItemPath applies only the item-path rule against a URL. The page
// extractor uses this for client-side navigations where the tab's reported
// URL lags behind the page's own location.
func matchItemPath(rawURL string) *NFTIdentity {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil
	}
	id := matchKeywordPath(pathSegments(u.Path), "item", SourcePageItemPath)
	return id
}
