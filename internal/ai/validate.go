package ai

import (
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/borjarodrigo23ia/ocr-ia/internal/models"
)

// errInvalidData marks an extraction the sanity checks rejected. The retry
// loop treats it like any model failure and moves on to the next model.
var errInvalidData = errors.New("extracted data failed validation")

// Names and codes the models hallucinate when they cannot read the
// document. An extraction containing any of these is discarded.
var (
	testCompanyNames = []string{
		"test", "prueba", "demo", "ejemplo", "sample", "acme", "company", "empresa",
		"distribuciones fresca vida", "fresca vida", "test company", "demo company",
		"ejemplo empresa", "prueba empresa", "company ltd", "empresa s.l.",
	}
	testProductNames = []string{
		"producto de prueba", "test product", "demo product", "ejemplo producto",
		"producto ejemplo", "sample product", "producto genérico", "test item",
	}
	testProductCodes = []string{
		"test-001", "test-1", "demo-001", "prueba-001", "ejemplo-001",
		"test001", "demo001", "sample001",
	}
	genericTerms = []string{"producto", "servicio", "artículo", "item", "según factura"}
	// Descriptions that legitimately carry no price: diagnostics, notes,
	// follow-up remarks. A zero-priced line matching one of these does not
	// discard the extraction.
	informationalTerms = []string{
		"problema", "buscar", "revisar", "diagnóstico", "análisis",
		"consulta", "nota", "observación", "comentario",
	}
)

func containsAny(haystack string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(haystack, n) {
			return true
		}
	}
	return false
}

// validateExtractedData rejects hallucinated extractions and normalizes the
// rest: placeholder invoice number and date when missing, clamped
// quantities and prices, a synthesized single line when the model read
// totals but no product table.
func validateExtractedData(data *models.ExtractedInvoiceData) (*models.ExtractedInvoiceData, error) {
	name := strings.TrimSpace(data.Supplier.Name)
	if name == "" || name == "null" {
		return nil, fmt.Errorf("%w: missing supplier name", errInvalidData)
	}
	if containsAny(strings.ToLower(name), testCompanyNames) {
		return nil, fmt.Errorf("%w: supplier name looks like test data: %s", errInvalidData, name)
	}

	if len(data.Products) == 0 {
		// totals without a readable product table: synthesize one line so
		// the invoice can still be registered
		amount := data.Invoice.TotalHT
		if amount == 0 {
			amount = data.Invoice.TotalTTC
		}
		data.Products = []models.ExtractedProduct{{
			Description: "Servicio/Producto según factura",
			Quantity:    1,
			UnitPrice:   amount,
			TotalPrice:  amount,
			VatRate:     21,
		}}
	} else {
		hasValidPriced := false
		hasInformational := false
		for i := range data.Products {
			p := &data.Products[i]
			desc := strings.TrimSpace(p.Description)
			if desc == "" || desc == "null" || len([]rune(desc)) < 5 {
				return nil, fmt.Errorf("%w: product without usable description", errInvalidData)
			}
			descLower := strings.ToLower(desc)
			if containsAny(descLower, genericTerms) {
				return nil, fmt.Errorf("%w: generic product description: %s", errInvalidData, desc)
			}
			if containsAny(descLower, testProductNames) {
				return nil, fmt.Errorf("%w: product description looks like test data: %s", errInvalidData, desc)
			}
			if p.ProductCode != "" && containsAny(strings.ToLower(p.ProductCode), testProductCodes) {
				return nil, fmt.Errorf("%w: product code looks like test data: %s", errInvalidData, p.ProductCode)
			}

			if p.Quantity <= 0 {
				p.Quantity = 1
			}
			if p.UnitPrice < 0 {
				p.UnitPrice = 0
			}
			if p.UnitPrice > 0 {
				hasValidPriced = true
			} else if containsAny(descLower, informationalTerms) {
				hasInformational = true
			}
		}
		if hasValidPriced {
			if data.Invoice.TotalTTC <= 0 {
				return nil, fmt.Errorf("%w: priced products but no invoice total", errInvalidData)
			}
		} else if !hasInformational && data.Invoice.TotalTTC <= 0 && data.Invoice.TotalHT <= 0 {
			// All lines at zero with nothing informational about them and no
			// invoice total to recover an amount from.
			return nil, fmt.Errorf("%w: every product has zero price", errInvalidData)
		}
	}

	if n := strings.TrimSpace(data.Invoice.Number); n == "" || n == "null" {
		data.Invoice.Number = generatedInvoiceNumber()
	}
	if d := strings.TrimSpace(data.Invoice.Date); d == "" || d == "null" {
		data.Invoice.Date = time.Now().Format("2006-01-02")
	}
	for i := range data.Products {
		p := &data.Products[i]
		if p.TotalPrice == 0 {
			p.TotalPrice = p.Quantity * p.UnitPrice
		}
	}

	return data, nil
}

const suffixAlphabet = "abcdefghijklmnopqrstuvwxyz0123456789"

func generatedInvoiceNumber() string {
	suffix := make([]byte, 4)
	for i := range suffix {
		suffix[i] = suffixAlphabet[rand.Intn(len(suffixAlphabet))]
	}
	return fmt.Sprintf("AUTO-%s-%s", time.Now().Format("20060102"), strings.ToUpper(string(suffix)))
}
