package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/borjarodrigo23ia/ocr-ia/internal/auth"
	"github.com/borjarodrigo23ia/ocr-ia/internal/dolibarr"
	"github.com/borjarodrigo23ia/ocr-ia/internal/models"
	"github.com/borjarodrigo23ia/ocr-ia/internal/processor"
)

// erpFixture answers the Dolibarr endpoints the workflow touches. Any field
// left nil gets a sane default.
type erpFixture struct {
	entities        string
	thirdParties    string
	products        string
	invoices        string
	failAll         bool
	createdSupplier string
	createdProduct  string
}

func (f *erpFixture) handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if f.failAll {
			http.Error(w, "Internal error in Dolibarr", http.StatusInternalServerError)
			return
		}
		switch {
		case r.URL.Path == "/status":
			fmt.Fprint(w, `{"success":{"code":200,"message":"pong"}}`)
		case r.URL.Path == "/multicompany":
			fmt.Fprint(w, orJSON(f.entities, `[{"id":"1","label":"Entidad Principal","active":"1","visible":"1"}]`))
		case r.URL.Path == "/thirdparties" && r.Method == http.MethodGet:
			fmt.Fprint(w, orJSON(f.thirdParties, `[]`))
		case r.URL.Path == "/thirdparties" && r.Method == http.MethodPost:
			fmt.Fprint(w, orJSON(f.createdSupplier, `77`))
		case r.URL.Path == "/products" && r.Method == http.MethodGet:
			fmt.Fprint(w, orJSON(f.products, `[]`))
		case r.URL.Path == "/products" && r.Method == http.MethodPost:
			fmt.Fprint(w, orJSON(f.createdProduct, `88`))
		case r.URL.Path == "/supplierinvoices" && r.Method == http.MethodGet:
			fmt.Fprint(w, orJSON(f.invoices, `[]`))
		case r.URL.Path == "/supplierinvoices" && r.Method == http.MethodPost:
			fmt.Fprint(w, `55`)
		case strings.HasPrefix(r.URL.Path, "/supplierinvoices/") && strings.HasSuffix(r.URL.Path, "/lines"):
			fmt.Fprint(w, `1`)
		case strings.HasSuffix(r.URL.Path, "/validate"):
			fmt.Fprint(w, `{}`)
		case strings.HasSuffix(r.URL.Path, "/purchase_prices"):
			fmt.Fprint(w, `{}`)
		default:
			http.NotFound(w, r)
		}
	}
}

func orJSON(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

func newTestRouter(t *testing.T, fixture *erpFixture, cfg *models.Config) http.Handler {
	t.Helper()
	erpServer := httptest.NewServer(fixture.handler())
	t.Cleanup(erpServer.Close)

	if cfg == nil {
		cfg = &models.Config{}
	}
	cfg.Dolibarr = models.DolibarrConfig{BaseURL: erpServer.URL, APIKey: "test-key"}

	erp, err := dolibarr.NewClient(cfg.Dolibarr)
	require.NoError(t, err)

	h := NewHandler(cfg, erp, processor.New(erp), nil, nil)
	return h.SetupRoutes()
}

func doJSON(t *testing.T, router http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var envelope map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	return envelope
}

func sampleRequestData() *models.ExtractedInvoiceData {
	return &models.ExtractedInvoiceData{
		Supplier: models.ExtractedSupplier{Name: "Suministros Acme S.L."},
		Invoice: models.ExtractedInvoice{
			Number:   "F-2024-001",
			Date:     "2024-03-15",
			TotalHT:  28.96,
			TotalTTC: 35.04,
			TotalVAT: 6.08,
		},
		Products: []models.ExtractedProduct{{
			Description: "Cargador universal para portátil 90W",
			ProductCode: "IGG320198",
			Quantity:    2,
			UnitPrice:   14.48,
			TotalPrice:  28.96,
			VatRate:     21,
		}},
	}
}

func TestHealth(t *testing.T) {
	router := newTestRouter(t, &erpFixture{}, nil)

	rec := doJSON(t, router, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var response HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &response))
	assert.Equal(t, "healthy", response.Status)
	assert.True(t, response.Dolibarr.Available)
	assert.False(t, response.Database.Available)
	assert.False(t, response.Storage.Available)
}

func TestHealth_DegradedWhenERPDown(t *testing.T) {
	router := newTestRouter(t, &erpFixture{failAll: true}, nil)

	rec := doJSON(t, router, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var response HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &response))
	assert.Equal(t, "degraded", response.Status)
	assert.False(t, response.Dolibarr.Available)
}

func TestVerify_AllKnown(t *testing.T) {
	router := newTestRouter(t, &erpFixture{
		thirdParties: `[{"id":"5","name":"Suministros Acme S.L."}]`,
		products:     `[{"id":"9","ref":"IGG320198","label":"Cargador universal para portátil 90W"}]`,
	}, nil)

	rec := doJSON(t, router, http.MethodPost, "/api/verify", map[string]any{
		"entityId":      "1",
		"extractedData": sampleRequestData(),
	})
	require.Equal(t, http.StatusOK, rec.Code)

	envelope := decodeEnvelope(t, rec)
	require.Equal(t, true, envelope["success"])
	data := envelope["data"].(map[string]any)
	assert.Equal(t, true, data["canProcess"])
	supplier := data["supplier"].(map[string]any)
	assert.Equal(t, true, supplier["exists"])
	assert.Equal(t, "5", supplier["id"])
}

func TestVerify_MissingSupplier(t *testing.T) {
	router := newTestRouter(t, &erpFixture{}, nil)

	rec := doJSON(t, router, http.MethodPost, "/api/verify", map[string]any{
		"extractedData": sampleRequestData(),
	})
	require.Equal(t, http.StatusOK, rec.Code)

	data := decodeEnvelope(t, rec)["data"].(map[string]any)
	assert.Equal(t, false, data["canProcess"])
	missing := data["missingItems"].(map[string]any)
	assert.Contains(t, missing["suppliers"], "Suministros Acme S.L.")
}

func TestVerify_BadBody(t *testing.T) {
	router := newTestRouter(t, &erpFixture{}, nil)

	rec := doJSON(t, router, http.MethodPost, "/api/verify", map[string]any{"entityId": "1"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestVerify_ERPFailureMapsTo503(t *testing.T) {
	router := newTestRouter(t, &erpFixture{failAll: true}, nil)

	rec := doJSON(t, router, http.MethodPost, "/api/verify", map[string]any{
		"extractedData": sampleRequestData(),
	})
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)

	envelope := decodeEnvelope(t, rec)
	assert.Equal(t, false, envelope["success"])
	assert.Contains(t, envelope["error"], "error en Dolibarr")
}

func TestProcess_CreatesInvoice(t *testing.T) {
	router := newTestRouter(t, &erpFixture{
		thirdParties: `[{"id":"5","name":"Suministros Acme S.L."}]`,
		products:     `[{"id":"9","ref":"IGG320198","label":"Cargador universal para portátil 90W"}]`,
	}, nil)

	rec := doJSON(t, router, http.MethodPost, "/api/process", map[string]any{
		"entityId":      "1",
		"extractedData": sampleRequestData(),
	})
	require.Equal(t, http.StatusOK, rec.Code)

	data := decodeEnvelope(t, rec)["data"].(map[string]any)
	assert.Equal(t, "5", data["supplierId"])
	assert.Equal(t, "55", data["invoiceId"])
}

func TestProcess_DuplicateWithoutForce(t *testing.T) {
	fixture := &erpFixture{
		thirdParties: `[{"id":"5","name":"Suministros Acme S.L."}]`,
		products:     `[{"id":"9","ref":"IGG320198","label":"Cargador universal para portátil 90W"}]`,
		invoices:     `[{"id":"33","ref":"FF2403-0012","ref_supplier":"SUP-F-2024-001-1710000000-AB12CD","socid":5}]`,
	}
	router := newTestRouter(t, fixture, nil)

	rec := doJSON(t, router, http.MethodPost, "/api/process", map[string]any{
		"entityId":      "1",
		"extractedData": sampleRequestData(),
	})
	require.Equal(t, http.StatusConflict, rec.Code)

	envelope := decodeEnvelope(t, rec)
	assert.Equal(t, false, envelope["success"])
	verification := envelope["verification"].(map[string]any)
	invoice := verification["invoice"].(map[string]any)
	assert.Equal(t, true, invoice["isDuplicate"])
}

func TestProcess_DuplicateWithForce(t *testing.T) {
	fixture := &erpFixture{
		thirdParties: `[{"id":"5","name":"Suministros Acme S.L."}]`,
		products:     `[{"id":"9","ref":"IGG320198","label":"Cargador universal para portátil 90W"}]`,
		invoices:     `[{"id":"33","ref":"FF2403-0012","ref_supplier":"SUP-F-2024-001-1710000000-AB12CD","socid":5}]`,
	}
	router := newTestRouter(t, fixture, nil)

	rec := doJSON(t, router, http.MethodPost, "/api/process", map[string]any{
		"entityId":       "1",
		"extractedData":  sampleRequestData(),
		"forceDuplicate": true,
	})
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestProcess_ValidationErrorMapsTo422(t *testing.T) {
	router := newTestRouter(t, &erpFixture{}, nil)

	data := sampleRequestData()
	data.Products[0].Description = "Producto"

	rec := doJSON(t, router, http.MethodPost, "/api/process", map[string]any{
		"entityId":       "1",
		"extractedData":  data,
		"forceDuplicate": true,
	})
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, false, decodeEnvelope(t, rec)["success"])
}

func TestCreateSupplier(t *testing.T) {
	router := newTestRouter(t, &erpFixture{}, nil)

	rec := doJSON(t, router, http.MethodPost, "/api/create-supplier", map[string]any{
		"entityId": "1",
		"supplier": map[string]any{"name": "Nuevo Proveedor SL"},
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	data := decodeEnvelope(t, rec)["data"].(map[string]any)
	assert.Equal(t, "77", data["id"])
}

func TestCreateSupplier_RequiresName(t *testing.T) {
	router := newTestRouter(t, &erpFixture{}, nil)

	rec := doJSON(t, router, http.MethodPost, "/api/create-supplier", map[string]any{
		"supplier": map[string]any{"name": "  "},
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCreateProduct(t *testing.T) {
	router := newTestRouter(t, &erpFixture{}, nil)

	rec := doJSON(t, router, http.MethodPost, "/api/create-product", map[string]any{
		"entityId": "2",
		"product": map[string]any{
			"description": "Cable HDMI 2 metros",
			"productCode": "HDMI-2M",
			"unitPrice":   4.5,
			"vatRate":     21,
		},
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	data := decodeEnvelope(t, rec)["data"].(map[string]any)
	assert.Equal(t, "88", data["id"])
}

func TestEntities(t *testing.T) {
	router := newTestRouter(t, &erpFixture{
		entities: `[{"id":"1","label":"Entidad Principal","active":"1","visible":"1"},{"id":"2","label":"Sucursal Norte","active":"1","visible":"1"}]`,
	}, nil)

	rec := doJSON(t, router, http.MethodGet, "/api/entities", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	data := decodeEnvelope(t, rec)["data"].([]any)
	assert.Len(t, data, 2)
}

func TestSelectEntity_RequiresID(t *testing.T) {
	router := newTestRouter(t, &erpFixture{}, nil)

	rec := doJSON(t, router, http.MethodPost, "/api/entities", map[string]any{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHistory_DisabledStore(t *testing.T) {
	router := newTestRouter(t, &erpFixture{}, nil)

	rec := doJSON(t, router, http.MethodGet, "/api/history", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	data := decodeEnvelope(t, rec)["data"].([]any)
	assert.Empty(t, data)

	rec = doJSON(t, router, http.MethodGet, "/api/history/nope", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestExtract_RequiresFile(t *testing.T) {
	router := newTestRouter(t, &erpFixture{}, nil)

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/extract", &body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestExtract_RejectsUnsupportedType(t *testing.T) {
	router := newTestRouter(t, &erpFixture{}, nil)

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreatePart(map[string][]string{
		"Content-Disposition": {`form-data; name="file"; filename="notes.txt"`},
		"Content-Type":        {"text/plain"},
	})
	require.NoError(t, err)
	_, err = part.Write([]byte("not an invoice"))
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/extract", &body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAuthMiddleware_ProtectsRoutes(t *testing.T) {
	cfg := &models.Config{Auth: models.AuthConfig{Secret: "s3cret", Username: "admin", Password: "pass"}}
	router := newTestRouter(t, &erpFixture{}, cfg)

	rec := doJSON(t, router, http.MethodGet, "/api/entities", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = doJSON(t, router, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	token, err := auth.GenerateToken("s3cret", "admin")
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/api/entities", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestLogin_IssuesToken(t *testing.T) {
	cfg := &models.Config{Auth: models.AuthConfig{Secret: "s3cret", Username: "admin", Password: "pass"}}
	router := newTestRouter(t, &erpFixture{}, cfg)

	rec := doJSON(t, router, http.MethodPost, "/api/login", map[string]string{
		"username": "admin", "password": "pass",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "token")
}
