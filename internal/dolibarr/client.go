// Package dolibarr wraps the Dolibarr REST API: CRUD for third parties,
// products and supplier invoices, plus the client-side search cascades the
// ERP's own filtering does not reliably support. The active multicompany
// entity is an explicit parameter on every scoped call so concurrent
// requests never interfere through shared client state.
package dolibarr

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/borjarodrigo23ia/ocr-ia/internal/models"
)

// DefaultEntity is the implicit Dolibarr entity; it is never sent as an
// explicit DOLENTITY header (ERP convention).
const DefaultEntity = "1"

// searchLimit caps the client-side listing fetches used by the cascades.
const searchLimit = 1000

// APIError carries the status and raw body of any non-2xx ERP response.
// Callers branch on the type, not on message text.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("dolibarr api error: %d - %s", e.StatusCode, e.Body)
}

// Client talks to one Dolibarr instance.
type Client struct {
	baseURL string
	apiKey  string
	httpc   *http.Client
	log     zerolog.Logger
}

// NewClient validates the configuration and builds a client.
func NewClient(cfg models.DolibarrConfig) (*Client, error) {
	if cfg.BaseURL == "" || cfg.APIKey == "" {
		return nil, fmt.Errorf("dolibarr configuration is missing (base URL and API key are required)")
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		httpc:   &http.Client{Timeout: 30 * time.Second},
		log:     log.With().Str("component", "dolibarr").Logger(),
	}, nil
}

// request performs one API call. entity scopes the request to a
// multicompany tenant; the default entity travels without a header.
func (c *Client) request(ctx context.Context, method, endpoint, entity string, payload, out any) error {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("failed to encode request body: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+endpoint, body)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("DOLAPIKEY", c.apiKey)
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if entity != "" && entity != DefaultEntity {
		req.Header.Set("DOLENTITY", entity)
	}

	c.log.Debug().Str("method", method).Str("endpoint", endpoint).Str("entity", entity).Msg("dolibarr request")

	resp, err := c.httpc.Do(req)
	if err != nil {
		return fmt.Errorf("dolibarr request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &APIError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(data))}
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to decode dolibarr response: %w", err)
	}
	return nil
}

// decodeID handles create responses, which Dolibarr returns as a bare
// number (or quoted number, depending on the endpoint).
func (c *Client) createID(ctx context.Context, endpoint, entity string, payload any) (string, error) {
	var id json.Number
	if err := c.request(ctx, http.MethodPost, endpoint, entity, payload, &id); err != nil {
		return "", err
	}
	return id.String(), nil
}

// Ping checks that the API is reachable and the key is accepted.
func (c *Client) Ping(ctx context.Context) error {
	return c.request(ctx, http.MethodGet, "/status", "", nil, nil)
}

// GetEntities lists active, visible multicompany entities. When the
// multicompany endpoint is absent (module not enabled) a single default
// entity is synthesized so the rest of the flow works unchanged.
func (c *Client) GetEntities(ctx context.Context) ([]Entity, error) {
	var entities []Entity
	if err := c.request(ctx, http.MethodGet, "/multicompany", "", nil, &entities); err != nil {
		c.log.Warn().Err(err).Msg("multicompany endpoint unavailable, assuming single entity")
		return []Entity{defaultEntity()}, nil
	}

	active := entities[:0]
	for _, e := range entities {
		if e.Active == "1" && e.Visible == "1" {
			active = append(active, e)
		}
	}
	c.log.Info().Int("total", len(entities)).Int("active", len(active)).Msg("entities listed")
	return active, nil
}

// GetEntityByID fetches one entity, with the same single-entity fallback
// for the default id.
func (c *Client) GetEntityByID(ctx context.Context, entityID string) (*Entity, error) {
	var entity Entity
	if err := c.request(ctx, http.MethodGet, "/multicompany/"+url.PathEscape(entityID), "", nil, &entity); err != nil {
		if entityID == DefaultEntity {
			e := defaultEntity()
			return &e, nil
		}
		return nil, err
	}
	return &entity, nil
}

func defaultEntity() Entity {
	return Entity{ID: "1", Label: "Entidad Principal", Active: "1", Visible: "1", Entity: "1"}
}

// getThirdParties lists third parties. mode=4 restricts to suppliers.
func (c *Client) getThirdParties(ctx context.Context, entity string, mode, limit int) ([]ThirdParty, error) {
	q := url.Values{}
	if mode > 0 {
		q.Set("mode", fmt.Sprintf("%d", mode))
	}
	if limit > 0 {
		q.Set("limit", fmt.Sprintf("%d", limit))
	}
	endpoint := "/thirdparties"
	if len(q) > 0 {
		endpoint += "?" + q.Encode()
	}
	var parties []ThirdParty
	if err := c.request(ctx, http.MethodGet, endpoint, entity, nil, &parties); err != nil {
		return nil, err
	}
	return parties, nil
}

// CreateThirdParty creates a supplier and returns its id. A supplier code
// is generated when the caller did not assign one.
func (c *Client) CreateThirdParty(ctx context.Context, entity string, tp ThirdParty) (string, error) {
	code := tp.Code
	if code == "" {
		code = generateSupplierCode()
	}

	payload := map[string]any{
		"code":                       code,
		"code_fournisseur":           code,
		"name":                       tp.Name,
		"name_alias":                 orDefault(tp.NameAlias, tp.Name),
		"client":                     orDefault(tp.Client, "0"),
		"prospect":                   orDefault(tp.Prospect, "0"),
		"fournisseur":                orDefault(tp.Fournisseur, "1"),
		"email":                      tp.Email,
		"phone":                      tp.Phone,
		"address":                    tp.Address,
		"zip":                        tp.Zip,
		"town":                       tp.Town,
		"country_id":                 orDefault(tp.CountryID, "1"),
		"tva_assuj":                  orDefault(tp.TvaAssuj, "1"),
		"tva_intra":                  tp.TvaIntra,
		"status":                     orDefault(tp.Status, "1"),
		"note_public":                orDefault(tp.NotePublic, "Proveedor creado automáticamente via OCR"),
		"default_lang":               orDefault(tp.DefaultLang, "es_ES"),
		"mode_reglement_supplier_id": orDefaultInt(tp.ModeReglementSupplierID, 2),
		"cond_reglement_supplier_id": orDefaultInt(tp.CondReglementSupplierID, 1),
		"fk_user_creat":              orDefaultInt(tp.FkUserCreat, 1),
	}

	id, err := c.createID(ctx, "/thirdparties", entity, payload)
	if err != nil {
		return "", err
	}
	c.log.Info().Str("id", id).Str("name", tp.Name).Msg("third party created")
	return id, nil
}

// getProducts lists products for the client-side cascades.
func (c *Client) getProducts(ctx context.Context, entity string, limit int) ([]Product, error) {
	endpoint := "/products"
	if limit > 0 {
		endpoint += fmt.Sprintf("?limit=%d", limit)
	}
	var products []Product
	if err := c.request(ctx, http.MethodGet, endpoint, entity, nil, &products); err != nil {
		return nil, err
	}
	return products, nil
}

// CreateProduct creates a product/service and returns its id.
func (c *Client) getProductByRef(ctx context.Context, entity, ref string) (*Product, error) {
	var p Product
	if err := c.request(ctx, http.MethodGet, "/products/ref/"+url.PathEscape(ref), entity, nil, &p); err != nil {
		var apiErr *APIError
		if isNotFound(err, &apiErr) {
			return nil, nil
		}
		return nil, err
	}
	return &p, nil
}

func (c *Client) CreateProduct(ctx context.Context, entity string, p Product) (string, error) {
	payload := map[string]any{
		"ref":                p.Ref,
		"label":              p.Label,
		"description":        orDefault(p.Description, p.Label),
		"type":               orDefault(p.Type, "0"),
		"price":              orDefault(p.Price, "0"),
		"tva_tx":             orDefault(p.TvaTx, "0"),
		"status":             orDefault(p.Status, "1"),
		"status_buy":         orDefault(p.StatusBuy, "1"),
		"tobuy":              orDefault(p.ToBuy, "1"),
		"tosell":             orDefault(p.ToSell, "1"),
		"note_public":        orDefault(p.NotePublic, "Producto creado automáticamente via OCR"),
		"seuil_stock_alerte": orDefault(p.SeuilStockAlerte, "5"),
		"desiredstock":       orDefault(p.DesiredStock, "20"),
		"default_lang":       orDefault(p.DefaultLang, "es_ES"),
	}

	id, err := c.createID(ctx, "/products", entity, payload)
	if err != nil {
		return "", err
	}
	c.log.Info().Str("id", id).Str("ref", p.Ref).Msg("product created")
	return id, nil
}

// CreateSupplierInvoice creates the invoice header and returns its id.
// Dolibarr assigns the internal ref; RefSupplier carries our unique
// reference.
func (c *Client) CreateSupplierInvoice(ctx context.Context, entity string, inv SupplierInvoice) (string, error) {
	payload := map[string]any{
		"socid":              inv.SocID,
		"ref":                orDefault(inv.Ref, "auto"),
		"ref_supplier":       inv.RefSupplier,
		"date":               inv.Date,
		"date_echeance":      inv.DateEcheance,
		"note_public":        orDefault(inv.NotePublic, "Factura creada automáticamente via OCR"),
		"note_private":       inv.NotePrivate,
		"cond_reglement_id":  orDefaultInt(inv.CondReglementID, 1),
		"mode_reglement_id":  orDefaultInt(inv.ModeReglementID, 2),
		"type":               inv.Type,
		"order_supplier":     inv.OrderSupplier,
		"multicurrency_code": orDefault(inv.MulticurrencyCode, "EUR"),
		"multicurrency_tx":   orDefault(inv.MulticurrencyTx, "1.00000000"),
		"fk_account":         inv.FkAccount,
	}
	return c.createID(ctx, "/supplierinvoices", entity, payload)
}

// AddInvoiceLine appends one line to a supplier invoice.
func (c *Client) AddInvoiceLine(ctx context.Context, entity, invoiceID string, line InvoiceLine) (string, error) {
	subprice, _ := decimal.NewFromString(line.Subprice)
	vat, _ := decimal.NewFromString(line.TvaTx)

	payload := map[string]any{
		"desc":           line.Desc,
		"qty":            line.Qty,
		"subprice":       line.Subprice,
		"pu_ht":          line.Subprice,
		"pu_ttc":         priceWithVAT(subprice, vat),
		"tva_tx":         line.TvaTx,
		"remise_percent": orDefault(line.RemisePercent, "0.000"),
		"total_ht":       line.TotalHT,
		"total_tva":      line.TotalTVA,
		"total_ttc":      line.TotalTTC,
		"product_type":   orDefault(line.ProductType, "0"),
		"info_bits":      "0",
		"rang":           "1",
	}
	if line.FkProduct != "" {
		payload["fk_product"] = line.FkProduct
	}
	return c.createID(ctx, "/supplierinvoices/"+url.PathEscape(invoiceID)+"/lines", entity, payload)
}

// ValidateSupplierInvoice finalizes the invoice in Dolibarr.
func (c *Client) ValidateSupplierInvoice(ctx context.Context, entity, invoiceID string) error {
	payload := map[string]any{"notrigger": 0}
	return c.request(ctx, http.MethodPost, "/supplierinvoices/"+url.PathEscape(invoiceID)+"/validate", entity, payload, nil)
}

// AddPurchasePrice records a supplier buy price for a product. Failures are
// logged and swallowed: purchase prices are not critical to the main flow.
func (c *Client) AddPurchasePrice(ctx context.Context, entity, productID, supplierID string, price, vatRate float64, productRef string) {
	supplierRef := productRef
	if supplierRef == "" {
		supplierRef = fmt.Sprintf("SUP-%s-%s", productID, supplierID)
	}

	payload := map[string]any{
		"qty":             1,
		"buyprice":        FormatAmount(price),
		"price_base_type": "HT",
		"fourn_id":        atoiOrZero(supplierID),
		"availability":    1,
		"ref_fourn":       supplierRef,
		"tva_tx":          FormatAmount(vatRate),
	}

	endpoint := "/products/" + url.PathEscape(productID) + "/purchase_prices"
	if err := c.request(ctx, http.MethodPost, endpoint, entity, payload, nil); err != nil {
		c.log.Warn().Err(err).Str("product", productID).Str("supplier", supplierID).Msg("failed to add purchase price (non-critical)")
	}
}

// SearchSupplierInvoiceParams narrows a supplier-invoice listing.
type SearchSupplierInvoiceParams struct {
	SocID       int
	RefSupplier string
	SQLFilters  string
	Limit       int
}

// SearchSupplierInvoices lists supplier invoices matching params. Lookup
// errors degrade to an empty result; duplicate detection must not block the
// flow when the ERP hiccups.
func (c *Client) SearchSupplierInvoices(ctx context.Context, entity string, params SearchSupplierInvoiceParams) []SupplierInvoice {
	q := url.Values{}
	if params.SocID > 0 {
		q.Set("socid", fmt.Sprintf("%d", params.SocID))
	}
	if params.RefSupplier != "" {
		q.Set("ref_supplier", params.RefSupplier)
	}
	if params.SQLFilters != "" {
		q.Set("sqlfilters", params.SQLFilters)
	}
	if params.Limit > 0 {
		q.Set("limit", fmt.Sprintf("%d", params.Limit))
	}
	endpoint := "/supplierinvoices"
	if len(q) > 0 {
		endpoint += "?" + q.Encode()
	}

	var invoices []SupplierInvoice
	if err := c.request(ctx, http.MethodGet, endpoint, entity, nil, &invoices); err != nil {
		c.log.Debug().Err(err).Msg("supplier invoice search returned nothing")
		return nil
	}
	return invoices
}

// GetSupplierInvoiceByRef fetches one invoice by its internal ref, nil when
// absent.
func (c *Client) GetSupplierInvoiceByRef(ctx context.Context, entity, ref string) (*SupplierInvoice, error) {
	var inv SupplierInvoice
	if err := c.request(ctx, http.MethodGet, "/supplierinvoices/ref/"+url.PathEscape(ref), entity, nil, &inv); err != nil {
		var apiErr *APIError
		if isNotFound(err, &apiErr) {
			return nil, nil
		}
		return nil, err
	}
	return &inv, nil
}

// CheckInvoiceExists looks for an already-registered invoice with the same
// supplier reference or number, scoped to entity. Up to three search
// strategies run in order; the first invoice whose ref_supplier exactly
// equals supplierRef or contains invoiceNumber wins.
func (c *Client) CheckInvoiceExists(ctx context.Context, entity, supplierRef, invoiceNumber string, supplierID int) *SupplierInvoice {
	entityFilter := ""
	if entity != "" && entity != DefaultEntity {
		entityFilter = fmt.Sprintf("(t.entity:=:'%s')", entity)
	}
	numberFilter := fmt.Sprintf("(t.ref_supplier:like:'%%%s%%')", invoiceNumber)
	if entityFilter != "" {
		numberFilter += " and " + entityFilter
	}

	searches := []SearchSupplierInvoiceParams{
		{RefSupplier: supplierRef, SQLFilters: entityFilter, Limit: 10},
		{SQLFilters: numberFilter, Limit: 10},
	}
	if supplierID > 0 {
		searches = append(searches, SearchSupplierInvoiceParams{SocID: supplierID, SQLFilters: numberFilter, Limit: 10})
	}

	for _, params := range searches {
		for _, inv := range c.SearchSupplierInvoices(ctx, entity, params) {
			if inv.RefSupplier == supplierRef || (invoiceNumber != "" && strings.Contains(inv.RefSupplier, invoiceNumber)) {
				c.log.Warn().Str("entity", entity).Str("ref", inv.Ref).Str("ref_supplier", inv.RefSupplier).Msg("duplicate invoice found")
				return &inv
			}
		}
	}
	return nil
}

// FormatAmount renders an amount the way the Dolibarr API expects: fixed 3
// decimals, dot separator, regardless of locale.
func FormatAmount(value float64) string {
	return decimal.NewFromFloat(value).StringFixed(3)
}

func priceWithVAT(price, vatRate decimal.Decimal) string {
	if vatRate.IsZero() {
		return price.StringFixed(3)
	}
	factor := decimal.NewFromInt(1).Add(vatRate.Div(decimal.NewFromInt(100)))
	return price.Mul(factor).StringFixed(3)
}

// generateSupplierCode builds a short Dolibarr-compatible supplier code of
// the form SUyymm-XXXX.
func generateSupplierCode() string {
	now := time.Now()
	return fmt.Sprintf("SU%02d%02d-%04d", now.Year()%100, int(now.Month()), rand.Intn(10000))
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

func orDefaultInt(v, def int) int {
	if v == 0 {
		return def
	}
	return v
}

func atoiOrZero(s string) int {
	n := 0
	fmt.Sscanf(s, "%d", &n)
	return n
}

func isNotFound(err error, target **APIError) bool {
	return errors.As(err, target) && (*target).StatusCode == http.StatusNotFound
}
