package processor

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/borjarodrigo23ia/ocr-ia/internal/dolibarr"
	"github.com/borjarodrigo23ia/ocr-ia/internal/models"
)

// SupplierCheck reports whether the extracted supplier already exists in
// the entity.
type SupplierCheck struct {
	Exists        bool                     `json:"exists"`
	ID            string                   `json:"id,omitempty"`
	NeedsCreation bool                     `json:"needsCreation"`
	Data          models.ExtractedSupplier `json:"data"`
}

// ProductCheck is the per-line equivalent of SupplierCheck.
type ProductCheck struct {
	Exists        bool                    `json:"exists"`
	ID            string                  `json:"id,omitempty"`
	NeedsCreation bool                    `json:"needsCreation"`
	Data          models.ExtractedProduct `json:"data"`
}

// DuplicateDetails identifies an already-registered invoice.
type DuplicateDetails struct {
	Ref         string `json:"ref"`
	RefSupplier string `json:"ref_supplier"`
	ID          string `json:"id"`
	SocID       int    `json:"socid"`
}

type InvoiceCheck struct {
	IsDuplicate      bool                      `json:"isDuplicate"`
	ExistingInvoice  *dolibarr.SupplierInvoice `json:"existingInvoice,omitempty"`
	DuplicateDetails *DuplicateDetails         `json:"duplicateDetails,omitempty"`
}

type MissingItems struct {
	Suppliers []string `json:"suppliers"`
	Products  []string `json:"products"`
}

// VerificationResult is what the user reviews before confirming. CanProcess
// is false whenever anything needs creation or looks like a duplicate.
type VerificationResult struct {
	Supplier     SupplierCheck  `json:"supplier"`
	Products     []ProductCheck `json:"products"`
	Invoice      InvoiceCheck   `json:"invoice"`
	CanProcess   bool           `json:"canProcess"`
	MissingItems MissingItems   `json:"missingItems"`
	Warnings     []string       `json:"warnings"`
}

// Verify checks the extracted data against the entity's catalog without
// writing anything: entity-name collision, supplier and product existence,
// duplicate invoice detection.
func (p *Processor) Verify(ctx context.Context, entity string, data *models.ExtractedInvoiceData) (*VerificationResult, error) {
	result := &VerificationResult{
		Supplier:     SupplierCheck{Data: data.Supplier},
		CanProcess:   true,
		MissingItems: MissingItems{Suppliers: []string{}, Products: []string{}},
		Warnings:     []string{},
	}

	// a supplier that matches one of the multicompany entities usually
	// means the model read the buyer instead of the seller
	entities, err := p.erp.GetEntities(ctx)
	if err != nil {
		return nil, fmt.Errorf("error verificando datos: %w", err)
	}
	supplierName := strings.ToLower(strings.TrimSpace(data.Supplier.Name))
	for _, e := range entities {
		label := strings.ToLower(strings.TrimSpace(e.Label))
		if label == "" {
			continue
		}
		if label == supplierName || strings.Contains(label, supplierName) || strings.Contains(supplierName, label) {
			result.Warnings = append(result.Warnings, fmt.Sprintf(
				"ATENCIÓN: el proveedor %q parece ser una de las entidades del sistema (%q). Esto podría indicar un error de lectura o que el documento no es una factura de proveedor válida.",
				data.Supplier.Name, e.Label))
			result.CanProcess = false
			return result, nil
		}
	}

	existingSupplier, err := p.erp.FindSupplierByName(ctx, entity, data.Supplier.Name)
	if err != nil {
		return nil, fmt.Errorf("error verificando el proveedor: %w", err)
	}
	supplierID := 0
	if existingSupplier != nil {
		result.Supplier.Exists = true
		result.Supplier.ID = existingSupplier.ID
		supplierID, _ = strconv.Atoi(existingSupplier.ID)
	} else {
		result.Supplier.NeedsCreation = true
		result.MissingItems.Suppliers = append(result.MissingItems.Suppliers, data.Supplier.Name)
		result.CanProcess = false
	}

	for _, prod := range data.Products {
		existing, err := p.erp.FindProduct(ctx, entity, prod.ProductCode, prod.Description)
		if err != nil {
			return nil, fmt.Errorf("error verificando el producto %q: %w", prod.Description, err)
		}
		if existing != nil {
			result.Products = append(result.Products, ProductCheck{Exists: true, ID: existing.ID, Data: prod})
		} else {
			result.Products = append(result.Products, ProductCheck{NeedsCreation: true, Data: prod})
			result.MissingItems.Products = append(result.MissingItems.Products, prod.Description)
			result.CanProcess = false
		}
	}

	if dup := p.erp.CheckInvoiceExists(ctx, entity, generateInvoiceRef(data.Invoice.Number), data.Invoice.Number, supplierID); dup != nil {
		result.Invoice.IsDuplicate = true
		result.Invoice.ExistingInvoice = dup
		result.Invoice.DuplicateDetails = &DuplicateDetails{
			Ref:         dup.Ref,
			RefSupplier: dup.RefSupplier,
			ID:          dup.ID,
			SocID:       dup.SocID,
		}
		result.Warnings = append(result.Warnings, fmt.Sprintf("posible factura duplicada encontrada en esta entidad: %s", dup.RefSupplier))
		// duplicates need explicit user confirmation
		result.CanProcess = false
	}

	p.log.Info().Str("entity", entity).Bool("canProcess", result.CanProcess).
		Int("missingSuppliers", len(result.MissingItems.Suppliers)).
		Int("missingProducts", len(result.MissingItems.Products)).
		Bool("duplicate", result.Invoice.IsDuplicate).
		Msg("verification finished")
	return result, nil
}
