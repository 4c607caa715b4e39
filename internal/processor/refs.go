package processor

import (
	"fmt"
	"math/rand"
	"regexp"
	"strings"
	"time"
	"unicode"
)

const refAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

func randomSuffix(n int) string {
	b := make([]byte, n)
	for i := range b {
		b[i] = refAlphabet[rand.Intn(len(refAlphabet))]
	}
	return string(b)
}

// generateInvoiceRef builds the unique ref_supplier for a new invoice. The
// timestamp and random suffix keep re-uploads of the same document from
// colliding; duplicate detection happens on the embedded invoice number.
func generateInvoiceRef(invoiceNumber string) string {
	return fmt.Sprintf("SUP-%s-%d-%s", invoiceNumber, time.Now().UnixMilli(), randomSuffix(6))
}

func generateInvoiceNumber() string {
	return fmt.Sprintf("AUTO-%s-%s", time.Now().Format("20060102"), randomSuffix(4))
}

var nonAlnum = regexp.MustCompile(`[^a-zA-Z0-9\s]`)

// generateSupplierRef derives a readable ref from the supplier name:
// SUP-<initials>-<timestamp>-<random>.
func generateSupplierRef(name string) string {
	clean := strings.TrimSpace(nonAlnum.ReplaceAllString(name, ""))
	parts := strings.Fields(clean)
	if len(parts) > 3 {
		parts = parts[:3]
	}
	var initials strings.Builder
	for _, part := range parts {
		if r := []rune(part); len(r) > 3 {
			part = string(r[:3])
		}
		initials.WriteString(strings.ToUpper(part))
	}
	prefix := initials.String()
	if prefix == "" {
		prefix = "GEN"
	}
	return fmt.Sprintf("SUP-%s-%d-%s", prefix, time.Now().UnixMilli(), randomSuffix(4))
}

var commonRefWords = map[string]bool{
	"de": true, "del": true, "la": true, "el": true, "en": true, "con": true,
	"para": true, "por": true, "un": true, "una": true, "y": true, "o": true,
}

// generateProductRef builds a ref from the first meaningful words of the
// description plus the date, so similar products get recognizable refs.
func generateProductRef(description string) string {
	clean := cleanDescription(description)
	dateStr := time.Now().Format("20060102")

	var words []string
	for _, w := range strings.Fields(clean) {
		if len(w) > 2 && !commonRefWords[strings.ToLower(w)] {
			words = append(words, w)
			if len(words) == 3 {
				break
			}
		}
	}

	if len(words) > 0 {
		parts := make([]string, len(words))
		for i, w := range words {
			if r := []rune(w); len(r) > 4 {
				w = string(r[:4])
			}
			parts[i] = strings.ToUpper(w)
		}
		return fmt.Sprintf("%s-%s", strings.Join(parts, "-"), dateStr)
	}

	short := strings.ToUpper(strings.ReplaceAll(clean, " ", ""))
	if r := []rune(short); len(r) > 8 {
		short = string(r[:8])
	}
	if short == "" {
		short = "ITEM"
	}
	return fmt.Sprintf("PROD-%s-%s-%s", short, dateStr, randomSuffix(2))
}

var labelJunk = regexp.MustCompile(`[^\p{L}\p{N}\s.,()/-]`)
var multiSpace = regexp.MustCompile(`\s+`)

// cleanDescription trims a description down to a usable product label:
// collapsed whitespace, no exotic characters, capped length, capitalized.
func cleanDescription(description string) string {
	s := labelJunk.ReplaceAllString(description, "")
	s = strings.TrimSpace(multiSpace.ReplaceAllString(s, " "))
	runes := []rune(s)
	if len(runes) > 100 {
		runes = runes[:100]
	}
	if len(runes) > 0 {
		runes[0] = unicode.ToUpper(runes[0])
	}
	return string(runes)
}
