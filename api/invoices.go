package api

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/borjarodrigo23ia/ocr-ia/internal/dolibarr"
	"github.com/borjarodrigo23ia/ocr-ia/internal/models"
)

// Extract receives a document (multipart field "file"), runs the AI
// extraction and returns the structured data for the user to review.
// Nothing is written to the ERP here.
func (h *Handler) Extract(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, MaxUploadSize)
	if err := r.ParseMultipartForm(MaxUploadSize); err != nil {
		h.badRequest(w, "el archivo supera el tamaño máximo de 10MB")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		h.badRequest(w, "no se ha recibido ningún archivo (campo 'file')")
		return
	}
	defer file.Close()

	contentType := header.Header.Get("Content-Type")
	if contentType != "application/pdf" && !strings.HasPrefix(contentType, "image/") {
		h.badRequest(w, "tipo de archivo no soportado, se aceptan PDF e imágenes")
		return
	}

	data, err := io.ReadAll(file)
	if err != nil {
		h.sendError(w, err)
		return
	}

	provider, err := h.createProvider(r.FormValue("aiProvider"))
	if err != nil {
		h.badRequest(w, err.Error())
		return
	}

	h.log.Info().Str("file", header.Filename).Int("size", len(data)).Str("type", contentType).Msg("extracting invoice")

	extracted, err := provider.Extract(r.Context(), data, contentType)
	if err != nil {
		h.sendError(w, err)
		return
	}

	entityID := r.FormValue("entityId")
	if entityID == "" {
		entityID = dolibarr.DefaultEntity
	}

	documentURL := ""
	if h.archive.Enabled() {
		if url, aerr := h.archive.Store(r.Context(), entityID, data, contentType); aerr != nil {
			h.log.Warn().Err(aerr).Msg("failed to archive document")
		} else {
			documentURL = url
		}
	}

	entry := &models.HistoryEntry{
		FileName:    header.Filename,
		FileSize:    header.Size,
		EntityID:    entityID,
		ProcessedAt: time.Now(),
		Extracted:   extracted,
		DocumentURL: documentURL,
	}
	if err := h.history.Save(r.Context(), entry); err != nil {
		h.log.Warn().Err(err).Msg("failed to save history entry")
	}

	h.sendData(w, http.StatusOK, extractResponse{
		ExtractedData: extracted,
		HistoryID:     entry.ID,
		DocumentURL:   documentURL,
	})
}

type extractResponse struct {
	ExtractedData *models.ExtractedInvoiceData `json:"extractedData"`
	HistoryID     string                       `json:"historyId,omitempty"`
	DocumentURL   string                       `json:"documentUrl,omitempty"`
}

type verifyRequest struct {
	EntityID      string                       `json:"entityId"`
	ExtractedData *models.ExtractedInvoiceData `json:"extractedData"`
}

// Verify checks the (possibly user-edited) extraction against the entity's
// catalog and reports what would need to be created.
func (h *Handler) Verify(w http.ResponseWriter, r *http.Request) {
	var req verifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ExtractedData == nil {
		h.badRequest(w, "cuerpo de petición inválido, se esperaba extractedData")
		return
	}
	if req.ExtractedData.Supplier.Name == "" {
		h.badRequest(w, "los datos extraídos no contienen proveedor")
		return
	}

	result, err := h.processor.Verify(r.Context(), h.entityOrDefault(req.EntityID), req.ExtractedData)
	if err != nil {
		h.sendError(w, err)
		return
	}
	h.sendData(w, http.StatusOK, result)
}

type processRequest struct {
	EntityID       string                       `json:"entityId"`
	HistoryID      string                       `json:"historyId"`
	ExtractedData  *models.ExtractedInvoiceData `json:"extractedData"`
	ForceDuplicate bool                         `json:"forceDuplicate"`
}

// Process registers the confirmed data in Dolibarr. Suspected duplicates
// are refused with 409 unless the caller sets forceDuplicate.
func (h *Handler) Process(w http.ResponseWriter, r *http.Request) {
	var req processRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ExtractedData == nil {
		h.badRequest(w, "cuerpo de petición inválido, se esperaba extractedData")
		return
	}
	entity := h.entityOrDefault(req.EntityID)

	if !req.ForceDuplicate {
		verification, err := h.processor.Verify(r.Context(), entity, req.ExtractedData)
		if err != nil {
			h.sendError(w, err)
			return
		}
		if verification.Invoice.IsDuplicate {
			h.sendJSON(w, http.StatusConflict, map[string]any{
				"success":      false,
				"error":        "posible factura duplicada, confirma el reprocesado con forceDuplicate",
				"verification": verification,
			})
			return
		}
	}

	result, err := h.processor.Process(r.Context(), entity, req.ExtractedData)
	if err != nil {
		h.sendError(w, err)
		return
	}

	if req.HistoryID != "" {
		if err := h.history.SetResult(r.Context(), req.HistoryID, result); err != nil {
			h.log.Warn().Err(err).Str("id", req.HistoryID).Msg("failed to update history entry")
		}
	}

	h.sendData(w, http.StatusOK, result)
}

type createSupplierRequest struct {
	EntityID string                   `json:"entityId"`
	Supplier models.ExtractedSupplier `json:"supplier"`
}

// CreateSupplier creates a third party ahead of processing so the user can
// resolve a missing supplier from the verification screen.
func (h *Handler) CreateSupplier(w http.ResponseWriter, r *http.Request) {
	var req createSupplierRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.badRequest(w, "cuerpo de petición inválido")
		return
	}
	if strings.TrimSpace(req.Supplier.Name) == "" {
		h.badRequest(w, "el nombre del proveedor es obligatorio")
		return
	}

	id, err := h.erp.CreateThirdParty(r.Context(), h.entityOrDefault(req.EntityID), dolibarr.ThirdParty{
		Name:      req.Supplier.Name,
		NameAlias: req.Supplier.Name,
		Email:     req.Supplier.Email,
		Phone:     req.Supplier.Phone,
		Address:   req.Supplier.Address,
		Zip:       req.Supplier.Zip,
		Town:      req.Supplier.City,
		TvaIntra:  req.Supplier.VatNumber,
	})
	if err != nil {
		h.sendError(w, err)
		return
	}
	h.sendData(w, http.StatusCreated, map[string]string{"id": id})
}

type createProductRequest struct {
	EntityID string                  `json:"entityId"`
	Product  models.ExtractedProduct `json:"product"`
}

func (h *Handler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	var req createProductRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.badRequest(w, "cuerpo de petición inválido")
		return
	}
	if strings.TrimSpace(req.Product.Description) == "" {
		h.badRequest(w, "la descripción del producto es obligatoria")
		return
	}

	ref := req.Product.Ref
	if ref == "" {
		ref = req.Product.ProductCode
	}
	productType := "0"
	if req.Product.Type == models.ProductTypeService {
		productType = "1"
	}

	id, err := h.erp.CreateProduct(r.Context(), h.entityOrDefault(req.EntityID), dolibarr.Product{
		Ref:         ref,
		Label:       req.Product.Description,
		Description: req.Product.Description,
		Type:        productType,
		Price:       dolibarr.FormatAmount(req.Product.UnitPrice),
		TvaTx:       dolibarr.FormatAmount(req.Product.VatRate),
	})
	if err != nil {
		h.sendError(w, err)
		return
	}
	h.sendData(w, http.StatusCreated, map[string]string{"id": id})
}

// GetEntities lists the active multicompany entities.
func (h *Handler) GetEntities(w http.ResponseWriter, r *http.Request) {
	entities, err := h.erp.GetEntities(r.Context())
	if err != nil {
		h.sendError(w, err)
		return
	}
	h.sendData(w, http.StatusOK, entities)
}

type selectEntityRequest struct {
	EntityID string `json:"entityId"`
}

// SelectEntity validates that an entity exists and returns it. The client
// keeps the selection and sends it with every subsequent request; the
// server holds no per-session entity state.
func (h *Handler) SelectEntity(w http.ResponseWriter, r *http.Request) {
	var req selectEntityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.EntityID == "" {
		h.badRequest(w, "se requiere entityId")
		return
	}

	entity, err := h.erp.GetEntityByID(r.Context(), req.EntityID)
	if err != nil {
		h.sendError(w, err)
		return
	}
	h.sendData(w, http.StatusOK, entity)
}

func (h *Handler) entityOrDefault(entityID string) string {
	if entityID == "" {
		return dolibarr.DefaultEntity
	}
	return entityID
}
