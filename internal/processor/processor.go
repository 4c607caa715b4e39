// Package processor drives the invoice workflow: sanity-check the
// extracted data, verify it against the ERP, and register supplier,
// products and invoice once the user confirms.
package processor

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/borjarodrigo23ia/ocr-ia/internal/dolibarr"
	"github.com/borjarodrigo23ia/ocr-ia/internal/models"
)

// ERP is the slice of the Dolibarr client the processor needs. Tests
// substitute a fake.
type ERP interface {
	GetEntities(ctx context.Context) ([]dolibarr.Entity, error)
	FindSupplierByName(ctx context.Context, entity, name string) (*dolibarr.ThirdParty, error)
	FindProduct(ctx context.Context, entity, ref, description string) (*dolibarr.Product, error)
	CreateThirdParty(ctx context.Context, entity string, tp dolibarr.ThirdParty) (string, error)
	CreateProduct(ctx context.Context, entity string, p dolibarr.Product) (string, error)
	CreateSupplierInvoice(ctx context.Context, entity string, inv dolibarr.SupplierInvoice) (string, error)
	AddInvoiceLine(ctx context.Context, entity, invoiceID string, line dolibarr.InvoiceLine) (string, error)
	ValidateSupplierInvoice(ctx context.Context, entity, invoiceID string) error
	AddPurchasePrice(ctx context.Context, entity, productID, supplierID string, price, vatRate float64, productRef string)
	CheckInvoiceExists(ctx context.Context, entity, supplierRef, invoiceNumber string, supplierID int) *dolibarr.SupplierInvoice
}

// ValidationError marks problems in the extracted data itself, as opposed
// to ERP failures. The API layer maps it to 422.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

func validationErrorf(format string, args ...any) error {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

type Processor struct {
	erp ERP
	log zerolog.Logger
}

func New(erp ERP) *Processor {
	return &Processor{
		erp: erp,
		log: log.With().Str("component", "processor").Logger(),
	}
}

// Sanitize normalizes extracted data in place and rejects anything the ERP
// would choke on. Running it twice yields the same result.
func (p *Processor) Sanitize(data *models.ExtractedInvoiceData) error {
	data.Supplier.Name = strings.TrimSpace(data.Supplier.Name)
	if data.Supplier.Name == "" {
		return validationErrorf("el nombre del proveedor es obligatorio y no puede estar vacío")
	}

	if n := strings.TrimSpace(data.Invoice.Number); n == "" || n == "null" {
		data.Invoice.Number = generateInvoiceNumber()
	} else {
		data.Invoice.Number = n
	}
	data.Invoice.Date = normalizeDate(data.Invoice.Date)
	if data.Invoice.DueDate != "" {
		data.Invoice.DueDate = normalizeDate(data.Invoice.DueDate)
	}

	if len(data.Products) == 0 {
		return validationErrorf("debe haber al menos un producto en la factura")
	}

	for i := range data.Products {
		prod := &data.Products[i]
		prod.Description = strings.TrimSpace(prod.Description)
		if prod.Description == "" || prod.Description == "null" {
			return validationErrorf("el producto %d debe tener una descripción válida", i+1)
		}
		if isGenericDescription(prod.Description) {
			return validationErrorf("el producto %d tiene una descripción genérica, se requiere la descripción específica del producto", i+1)
		}

		if prod.Quantity == 0 {
			prod.Quantity = 1
		}
		if prod.Quantity <= 0 {
			return validationErrorf("la cantidad del producto %q debe ser mayor a 0", prod.Description)
		}
		if prod.UnitPrice < 0 {
			return validationErrorf("el precio unitario del producto %q no puede ser negativo", prod.Description)
		}
		if prod.VatRate < 0 || prod.VatRate > 100 {
			prod.VatRate = 21
		}
		if prod.TotalPrice == 0 && prod.Quantity > 0 && prod.UnitPrice > 0 {
			prod.TotalPrice = lineTotal(prod.Quantity, prod.UnitPrice, prod.DiscountPercent, prod.DiscountAmount)
		}
	}
	return nil
}

// lineTotal applies both discount kinds to the base amount, floored at 0.
func lineTotal(qty, unitPrice, discountPercent, discountAmount float64) float64 {
	base := qty * unitPrice
	discount := 0.0
	if discountPercent > 0 {
		discount += base * discountPercent / 100
	}
	if discountAmount > 0 {
		discount += discountAmount
	}
	if total := base - discount; total > 0 {
		return total
	}
	return 0
}

var genericDescriptions = []string{
	"producto", "servicio", "artículo", "item", "producto según factura",
	"servicio según factura", "producto/servicio según factura",
}

func isGenericDescription(desc string) bool {
	d := strings.ToLower(strings.TrimSpace(desc))
	for _, g := range genericDescriptions {
		if d == g || strings.Contains(d, g) {
			return true
		}
	}
	return false
}

var dateLayouts = []string{"2006-01-02", "02/01/2006", "02-01-2006", "2006/01/02"}

// normalizeDate coerces the value to YYYY-MM-DD, falling back to today when
// it cannot be parsed.
func normalizeDate(value string) string {
	v := strings.TrimSpace(value)
	if v == "" || v == "null" {
		return time.Now().Format("2006-01-02")
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, v); err == nil {
			return t.Format("2006-01-02")
		}
	}
	return time.Now().Format("2006-01-02")
}

// Process registers everything in the ERP: supplier first, then products
// with their purchase prices, then the invoice with one line per product.
// Product failures are collected and do not abort the invoice.
func (p *Processor) Process(ctx context.Context, entity string, data *models.ExtractedInvoiceData) (*models.ProcessingResult, error) {
	if err := p.Sanitize(data); err != nil {
		return nil, err
	}

	result := &models.ProcessingResult{}

	supplierID, err := p.processSupplier(ctx, entity, data.Supplier)
	if err != nil {
		return nil, fmt.Errorf("error procesando proveedor %q: %w", data.Supplier.Name, err)
	}
	result.SupplierID = supplierID

	productIDs := make([]string, len(data.Products))
	for i := range data.Products {
		prod := &data.Products[i]
		id, perr := p.processProduct(ctx, entity, prod, supplierID)
		if perr != nil {
			p.log.Error().Err(perr).Str("product", prod.Description).Msg("product processing failed")
			result.Errors = append(result.Errors, fmt.Sprintf("error procesando producto %q: %v", prod.Description, perr))
			continue
		}
		productIDs[i] = id
		result.CreatedProducts = append(result.CreatedProducts, id)
	}

	invoiceID, err := p.createInvoice(ctx, entity, data, supplierID, productIDs)
	if err != nil {
		return nil, err
	}
	result.InvoiceID = invoiceID

	p.log.Info().Str("entity", entity).Str("supplier", supplierID).Str("invoice", invoiceID).
		Int("products", len(result.CreatedProducts)).Int("errors", len(result.Errors)).
		Msg("invoice processed")
	return result, nil
}

// processSupplier reuses a matching supplier or creates one.
func (p *Processor) processSupplier(ctx context.Context, entity string, supplier models.ExtractedSupplier) (string, error) {
	existing, err := p.erp.FindSupplierByName(ctx, entity, supplier.Name)
	if err != nil {
		return "", err
	}
	if existing != nil {
		p.log.Info().Str("id", existing.ID).Str("name", existing.Name).Msg("reusing existing supplier")
		return existing.ID, nil
	}

	ref := supplier.Ref
	if ref == "" {
		ref = generateSupplierRef(supplier.Name)
	}
	return p.erp.CreateThirdParty(ctx, entity, dolibarr.ThirdParty{
		Name:       supplier.Name,
		NameAlias:  supplier.Name,
		Email:      supplier.Email,
		Phone:      supplier.Phone,
		Address:    supplier.Address,
		Zip:        supplier.Zip,
		Town:       supplier.City,
		TvaIntra:   supplier.VatNumber,
		NotePublic: fmt.Sprintf("Proveedor creado automáticamente via OCR. Ref: %s", ref),
	})
}

// processProduct reuses a matching product or creates one, and records the
// supplier's purchase price either way.
func (p *Processor) processProduct(ctx context.Context, entity string, prod *models.ExtractedProduct, supplierID string) (string, error) {
	existing, err := p.erp.FindProduct(ctx, entity, prod.ProductCode, prod.Description)
	if err != nil {
		return "", err
	}
	if existing != nil {
		p.log.Info().Str("id", existing.ID).Str("ref", existing.Ref).Msg("reusing existing product")
		ref := prod.ProductCode
		if ref == "" {
			ref = existing.Ref
		}
		p.erp.AddPurchasePrice(ctx, entity, existing.ID, supplierID, prod.UnitPrice, prod.VatRate, ref)
		return existing.ID, nil
	}

	ref := prod.Ref
	if ref == "" {
		ref = prod.ProductCode
	}
	if ref == "" {
		ref = generateProductRef(prod.Description)
	}

	productType := "0"
	if prod.Type == models.ProductTypeService {
		productType = "1"
	}

	id, err := p.erp.CreateProduct(ctx, entity, dolibarr.Product{
		Ref:         ref,
		Label:       cleanDescription(prod.Description),
		Description: prod.Description,
		Type:        productType,
		Price:       dolibarr.FormatAmount(prod.UnitPrice),
		TvaTx:       dolibarr.FormatAmount(prod.VatRate),
		NotePublic:  "Producto creado automáticamente desde factura de proveedor",
	})
	if err != nil {
		return "", err
	}

	p.erp.AddPurchasePrice(ctx, entity, id, supplierID, prod.UnitPrice, prod.VatRate, ref)
	return id, nil
}

// createInvoice builds the header, one line per product and validates the
// result. Dolibarr only supports percentage discounts on lines, so fixed
// discounts are converted to an equivalent percentage capped at 100.
func (p *Processor) createInvoice(ctx context.Context, entity string, data *models.ExtractedInvoiceData, supplierID string, productIDs []string) (string, error) {
	socid, err := strconv.Atoi(supplierID)
	if err != nil {
		return "", validationErrorf("el ID del proveedor no es un número válido: %q", supplierID)
	}

	invoiceID, err := p.erp.CreateSupplierInvoice(ctx, entity, dolibarr.SupplierInvoice{
		SocID:        socid,
		RefSupplier:  generateInvoiceRef(data.Invoice.Number),
		Date:         data.Invoice.Date,
		DateEcheance: data.Invoice.DueDate,
		Type:         0,
	})
	if err != nil {
		return "", err
	}

	for i := range data.Products {
		prod := &data.Products[i]

		totalHT := prod.TotalPrice
		if totalHT == 0 && prod.Quantity > 0 && prod.UnitPrice > 0 {
			totalHT = lineTotal(prod.Quantity, prod.UnitPrice, prod.DiscountPercent, prod.DiscountAmount)
		}
		if totalHT == 0 && prod.UnitPrice > 0 {
			return "", validationErrorf("error en el cálculo del total para el producto %q: el total no puede ser 0 cuando hay precio unitario", prod.Description)
		}
		totalVAT := totalHT * prod.VatRate / 100
		totalTTC := totalHT + totalVAT

		discountPercent := prod.DiscountPercent
		if prod.DiscountAmount > 0 && prod.Quantity > 0 && prod.UnitPrice > 0 {
			equivalent := prod.DiscountAmount / (prod.Quantity * prod.UnitPrice) * 100
			discountPercent += equivalent
			if discountPercent > 100 {
				discountPercent = 100
			}
		}

		line := dolibarr.InvoiceLine{
			Desc:          prod.Description,
			Qty:           strconv.FormatFloat(prod.Quantity, 'f', -1, 64),
			Subprice:      dolibarr.FormatAmount(prod.UnitPrice),
			TvaTx:         dolibarr.FormatAmount(prod.VatRate),
			RemisePercent: dolibarr.FormatAmount(discountPercent),
			TotalHT:       dolibarr.FormatAmount(totalHT),
			TotalTVA:      dolibarr.FormatAmount(totalVAT),
			TotalTTC:      dolibarr.FormatAmount(totalTTC),
			FkProduct:     productIDs[i],
		}
		if prod.Type == models.ProductTypeService {
			line.ProductType = "1"
		}
		if _, err := p.erp.AddInvoiceLine(ctx, entity, invoiceID, line); err != nil {
			return "", fmt.Errorf("error añadiendo la línea %d de la factura: %w", i+1, err)
		}
	}

	if err := p.erp.ValidateSupplierInvoice(ctx, entity, invoiceID); err != nil {
		return "", fmt.Errorf("error validando la factura: %w", err)
	}
	return invoiceID, nil
}
