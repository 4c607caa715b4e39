// Package ai extracts structured invoice data from document images and
// PDFs. Providers wrap one model backend each; the Gemini provider carries
// its own key failover, the OpenAI-compatible provider is a single-endpoint
// alternative for self-hosted vision models.
package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/borjarodrigo23ia/ocr-ia/internal/models"
)

// ErrBusy is returned when every configured model and key has been tried
// without success. The message is user-facing.
var ErrBusy = errors.New("el sistema de procesamiento de facturas está saturado en este momento, por favor inténtalo de nuevo en unos minutos")

// ErrUnreadable is returned when the models answered but none of the
// responses survived parsing and validation, which usually means the
// document itself is the problem. The message is user-facing.
var ErrUnreadable = errors.New("no hemos podido procesar este documento, por favor asegúrese de que el archivo sea legible e inténtelo de nuevo")

// Provider extracts invoice data from a document.
type Provider interface {
	Extract(ctx context.Context, fileData []byte, mimeType string) (*models.ExtractedInvoiceData, error)
}

// flexFloat tolerates models that quote numbers ("28.96") or localize the
// decimal separator ("28,96").
type flexFloat float64

func (f *flexFloat) UnmarshalJSON(data []byte) error {
	s := strings.TrimSpace(string(data))
	if s == "null" || s == `""` {
		*f = 0
		return nil
	}
	s = strings.Trim(s, `"`)
	s = strings.ReplaceAll(s, ",", ".")
	var v float64
	if _, err := fmt.Sscanf(s, "%g", &v); err != nil {
		*f = 0
		return nil
	}
	*f = flexFloat(v)
	return nil
}

// rawInvoice mirrors the JSON shape requested in the prompt before any
// validation or normalization.
type rawInvoice struct {
	Supplier struct {
		Name      string `json:"name"`
		Email     string `json:"email"`
		Phone     string `json:"phone"`
		Address   string `json:"address"`
		City      string `json:"city"`
		Zip       string `json:"zip"`
		VatNumber string `json:"vatNumber"`
		Country   string `json:"country"`
		Ref       string `json:"ref"`
	} `json:"supplier"`
	Invoice struct {
		Number   string    `json:"number"`
		Date     string    `json:"date"`
		DueDate  string    `json:"dueDate"`
		TotalHT  flexFloat `json:"totalHT"`
		TotalTTC flexFloat `json:"totalTTC"`
		TotalVAT flexFloat `json:"totalVAT"`
	} `json:"invoice"`
	Products []struct {
		Description     string    `json:"description"`
		Quantity        flexFloat `json:"quantity"`
		UnitPrice       flexFloat `json:"unitPrice"`
		TotalPrice      flexFloat `json:"totalPrice"`
		VatRate         flexFloat `json:"vatRate"`
		DiscountPercent flexFloat `json:"discountPercent"`
		DiscountAmount  flexFloat `json:"discountAmount"`
		ProductCode     string    `json:"productCode"`
		Ref             string    `json:"ref"`
		Type            string    `json:"type"`
	} `json:"products"`
}

var jsonFence = regexp.MustCompile("(?s)```(?:json)?\\s*(.*?)\\s*```")

// parseModelResponse strips markdown fences, decodes the model's JSON and
// runs the extraction sanity checks.
func parseModelResponse(text string) (*models.ExtractedInvoiceData, error) {
	cleaned := strings.TrimSpace(text)
	if m := jsonFence.FindStringSubmatch(cleaned); m != nil {
		cleaned = m[1]
	}
	// some models prepend prose before the object
	if i := strings.Index(cleaned, "{"); i > 0 {
		cleaned = cleaned[i:]
	}

	var raw rawInvoice
	if err := json.Unmarshal([]byte(cleaned), &raw); err != nil {
		return nil, fmt.Errorf("model returned invalid JSON: %w", err)
	}

	data := &models.ExtractedInvoiceData{
		Supplier: models.ExtractedSupplier{
			Name:      strings.TrimSpace(raw.Supplier.Name),
			Email:     strings.TrimSpace(raw.Supplier.Email),
			Phone:     strings.TrimSpace(raw.Supplier.Phone),
			Address:   strings.TrimSpace(raw.Supplier.Address),
			City:      strings.TrimSpace(raw.Supplier.City),
			Zip:       strings.TrimSpace(raw.Supplier.Zip),
			VatNumber: strings.TrimSpace(raw.Supplier.VatNumber),
			Country:   strings.TrimSpace(raw.Supplier.Country),
			Ref:       strings.TrimSpace(raw.Supplier.Ref),
		},
		Invoice: models.ExtractedInvoice{
			Number:   strings.TrimSpace(raw.Invoice.Number),
			Date:     strings.TrimSpace(raw.Invoice.Date),
			DueDate:  strings.TrimSpace(raw.Invoice.DueDate),
			TotalHT:  float64(raw.Invoice.TotalHT),
			TotalTTC: float64(raw.Invoice.TotalTTC),
			TotalVAT: float64(raw.Invoice.TotalVAT),
		},
	}
	for _, p := range raw.Products {
		data.Products = append(data.Products, models.ExtractedProduct{
			Description:     strings.TrimSpace(p.Description),
			Quantity:        float64(p.Quantity),
			UnitPrice:       float64(p.UnitPrice),
			TotalPrice:      float64(p.TotalPrice),
			VatRate:         float64(p.VatRate),
			DiscountPercent: float64(p.DiscountPercent),
			DiscountAmount:  float64(p.DiscountAmount),
			ProductCode:     strings.TrimSpace(p.ProductCode),
			Ref:             strings.TrimSpace(p.Ref),
			Type:            strings.TrimSpace(p.Type),
		})
	}

	return validateExtractedData(data)
}
