package dolibarr

import (
	"context"
	"regexp"
	"strings"

	"github.com/borjarodrigo23ia/ocr-ia/internal/textmatch"
)

// Matching cascades for suppliers and products. Dolibarr's sqlfilters are
// too coarse for fuzzy lookups, so listings are fetched once and matched
// client-side. Each cascade is an ordered table of named strategies,
// strictest first; the first strategy that matches any candidate wins, and
// later strategies never override an earlier match.

// Similarity thresholds below are empirical; tighten only with a corpus of
// real invoices to re-validate against.
const (
	supplierSimilarityHigh = 0.9
	supplierSimilarityLow  = 0.8
	refSimilarity          = 0.9
	descriptionSimilarity  = 0.85
)

// Trailing company-form suffixes with or without dots: S.L., SL, s.l,
// S.A., Ltd., Inc., Corp., GmbH, B.V.
var legalSuffix = regexp.MustCompile(`(?i)\s+(s\.?l\.?|s\.?a\.?|ltd\.?|inc\.?|corp\.?|gmbh|b\.?v\.?)$`)

var refSeparators = regexp.MustCompile(`[\s\-_]`)

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func noSpaces(s string) string {
	return strings.ReplaceAll(normalize(s), " ", "")
}

// stripLegalSuffix removes a trailing company-form suffix (S.L., GmbH, ...)
// so "Acme S.L." and "Acme" compare equal.
func stripLegalSuffix(s string) string {
	return strings.TrimSpace(legalSuffix.ReplaceAllString(normalize(s), ""))
}

type nameStrategy struct {
	name  string
	match func(search, candidate string) bool
}

// supplierStrategies compares the extracted supplier name against existing
// third-party names, both normalized.
var supplierStrategies = []nameStrategy{
	{"exact", func(s, c string) bool {
		return s == c
	}},
	{"exact-no-spaces", func(s, c string) bool {
		return strings.ReplaceAll(s, " ", "") == strings.ReplaceAll(c, " ", "")
	}},
	{"candidate-contains", func(s, c string) bool {
		return len(s) > 3 && strings.Contains(c, s)
	}},
	{"search-contains", func(s, c string) bool {
		return len(c) > 3 && strings.Contains(s, c)
	}},
	{"similarity-high", func(s, c string) bool {
		return textmatch.Similarity(s, c) > supplierSimilarityHigh
	}},
	{"similarity-low", func(s, c string) bool {
		return textmatch.Similarity(s, c) > supplierSimilarityLow
	}},
	{"legal-suffix", func(s, c string) bool {
		cs, cc := stripLegalSuffix(s), stripLegalSuffix(c)
		if cs == cc {
			return true
		}
		return (len(cs) > 3 && strings.Contains(cc, cs)) ||
			(len(cc) > 3 && strings.Contains(cs, cc))
	}},
}

// refStrategies compares product references.
var refStrategies = []nameStrategy{
	{"exact", func(s, c string) bool {
		return s == c
	}},
	{"no-separators", func(s, c string) bool {
		return refSeparators.ReplaceAllString(s, "") == refSeparators.ReplaceAllString(c, "")
	}},
	{"candidate-contains", func(s, c string) bool {
		return len(s) > 3 && strings.Contains(c, s)
	}},
	{"search-contains", func(s, c string) bool {
		return len(c) > 3 && strings.Contains(s, c)
	}},
	{"similarity", func(s, c string) bool {
		return textmatch.Similarity(s, c) > refSimilarity
	}},
}

type productStrategy struct {
	name  string
	match func(search string, p Product) bool
}

// descriptionStrategies compares an extracted line description against both
// the product label and its long description.
var descriptionStrategies = []productStrategy{
	{"exact-label", func(s string, p Product) bool {
		return s == normalize(p.Label)
	}},
	{"exact-description", func(s string, p Product) bool {
		return p.Description != "" && s == normalize(p.Description)
	}},
	{"exact-label-no-spaces", func(s string, p Product) bool {
		return noSpaces(s) == noSpaces(p.Label)
	}},
	{"exact-description-no-spaces", func(s string, p Product) bool {
		return p.Description != "" && noSpaces(s) == noSpaces(p.Description)
	}},
	{"label-contains", func(s string, p Product) bool {
		return len(s) > 5 && strings.Contains(normalize(p.Label), s)
	}},
	{"description-contains", func(s string, p Product) bool {
		return p.Description != "" && len(s) > 5 && strings.Contains(normalize(p.Description), s)
	}},
	{"search-contains-label", func(s string, p Product) bool {
		label := normalize(p.Label)
		return len(label) > 5 && strings.Contains(s, label)
	}},
	{"similarity-label", func(s string, p Product) bool {
		return textmatch.Similarity(s, normalize(p.Label)) > descriptionSimilarity
	}},
	{"similarity-description", func(s string, p Product) bool {
		return p.Description != "" && textmatch.Similarity(s, normalize(p.Description)) > descriptionSimilarity
	}},
	{"all-keywords", func(s string, p Product) bool {
		words := textmatch.Keywords(s)
		if len(words) == 0 {
			return false
		}
		haystack := normalize(p.Label + " " + p.Description)
		for _, w := range words {
			if !strings.Contains(haystack, w) {
				return false
			}
		}
		return true
	}},
}

// FindSupplierByName looks for an existing supplier whose name matches the
// extracted one. Returns nil when no strategy matches.
func (c *Client) FindSupplierByName(ctx context.Context, entity, name string) (*ThirdParty, error) {
	search := normalize(name)
	if search == "" {
		return nil, nil
	}

	suppliers, err := c.getThirdParties(ctx, entity, 4, searchLimit)
	if err != nil {
		return nil, err
	}

	for _, strategy := range supplierStrategies {
		for i := range suppliers {
			if strategy.match(search, normalize(suppliers[i].Name)) {
				c.log.Info().Str("strategy", strategy.name).Str("search", name).Str("matched", suppliers[i].Name).Msg("supplier matched")
				return &suppliers[i], nil
			}
		}
	}
	return nil, nil
}

// FindProduct locates an existing product by reference first, then by
// description. Either argument may be empty.
func (c *Client) FindProduct(ctx context.Context, entity, ref, description string) (*Product, error) {
	if ref != "" {
		// Cheapest path: the dedicated ref endpoint. On miss or failure the
		// listing cascades below still get their chance.
		if p, err := c.getProductByRef(ctx, entity, ref); err == nil && p != nil {
			c.log.Info().Str("ref", ref).Str("matched", p.Ref).Msg("product matched by ref endpoint")
			return p, nil
		}
	}

	products, err := c.getProducts(ctx, entity, searchLimit)
	if err != nil {
		return nil, err
	}

	if ref != "" {
		if p := matchProductByRef(products, ref); p != nil {
			c.log.Info().Str("ref", ref).Str("matched", p.Ref).Msg("product matched by ref")
			return p, nil
		}
	}
	if description != "" {
		if p := matchProductByDescription(products, description); p != nil {
			c.log.Info().Str("description", description).Str("matched", p.Label).Msg("product matched by description")
			return p, nil
		}
	}
	return nil, nil
}

func matchProductByRef(products []Product, ref string) *Product {
	search := normalize(ref)
	for _, strategy := range refStrategies {
		for i := range products {
			if products[i].Ref == "" {
				continue
			}
			if strategy.match(search, normalize(products[i].Ref)) {
				return &products[i]
			}
		}
	}
	return nil
}

func matchProductByDescription(products []Product, description string) *Product {
	search := normalize(description)
	for _, strategy := range descriptionStrategies {
		for i := range products {
			if strategy.match(search, products[i]) {
				return &products[i]
			}
		}
	}
	return nil
}
