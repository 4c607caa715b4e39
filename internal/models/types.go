package models

import "time"

// ExtractedSupplier holds the supplier block returned by the AI extraction.
// Ref is not extracted; the user assigns it when editing the data before
// creating the supplier in Dolibarr.
type ExtractedSupplier struct {
	Name      string `json:"name"`
	Email     string `json:"email,omitempty"`
	Phone     string `json:"phone,omitempty"`
	Address   string `json:"address,omitempty"`
	City      string `json:"city,omitempty"`
	Zip       string `json:"zip,omitempty"`
	VatNumber string `json:"vatNumber,omitempty"`
	Country   string `json:"country,omitempty"`
	Ref       string `json:"ref,omitempty"`
}

// ExtractedInvoice holds the invoice header block. Dates are YYYY-MM-DD
// strings, amounts are HT/TTC/VAT totals as read from the document.
type ExtractedInvoice struct {
	Number   string  `json:"number"`
	Date     string  `json:"date"`
	DueDate  string  `json:"dueDate,omitempty"`
	TotalHT  float64 `json:"totalHT"`
	TotalTTC float64 `json:"totalTTC"`
	TotalVAT float64 `json:"totalVAT"`
}

// ProductType values for ExtractedProduct.Type.
const (
	ProductTypePhysical = "product"
	ProductTypeService  = "service"
)

// ExtractedProduct is one invoice line as extracted. Ref and Type are
// user-assignable edits layered on top of the raw extraction.
type ExtractedProduct struct {
	Description     string  `json:"description"`
	Quantity        float64 `json:"quantity"`
	UnitPrice       float64 `json:"unitPrice"`
	TotalPrice      float64 `json:"totalPrice"`
	VatRate         float64 `json:"vatRate"`
	DiscountPercent float64 `json:"discountPercent"`
	DiscountAmount  float64 `json:"discountAmount"`
	ProductCode     string  `json:"productCode,omitempty"`
	Ref             string  `json:"ref,omitempty"`
	Type            string  `json:"type,omitempty"`
}

// ExtractedInvoiceData is the structured result of one extraction run.
// Invariant: Supplier.Name is non-empty (the extraction is rejected
// otherwise). Products may be empty until the validation pass synthesizes a
// placeholder line.
type ExtractedInvoiceData struct {
	Supplier ExtractedSupplier  `json:"supplier"`
	Invoice  ExtractedInvoice   `json:"invoice"`
	Products []ExtractedProduct `json:"products"`
}

// ProcessingResult reports what a processing run created in Dolibarr.
// Per-product failures are accumulated in Errors without aborting the
// invoice itself.
type ProcessingResult struct {
	SupplierID      string   `json:"supplierId"`
	InvoiceID       string   `json:"invoiceId"`
	CreatedProducts []string `json:"createdProducts"`
	UpdatedProducts []string `json:"updatedProducts"`
	Errors          []string `json:"errors"`
}

// HistoryEntry is the server-side record of a completed run.
type HistoryEntry struct {
	ID          string                `json:"id"`
	FileName    string                `json:"fileName"`
	FileSize    int64                 `json:"fileSize"`
	EntityID    string                `json:"entityId,omitempty"`
	ProcessedAt time.Time             `json:"processedAt"`
	CompletedAt time.Time             `json:"completedAt"`
	Extracted   *ExtractedInvoiceData `json:"extractedData,omitempty"`
	Result      *ProcessingResult     `json:"processingResult,omitempty"`
	DocumentURL string                `json:"documentUrl,omitempty"`
}
