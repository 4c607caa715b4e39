package dolibarr

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/borjarodrigo23ia/ocr-ia/internal/models"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c, err := NewClient(models.DolibarrConfig{BaseURL: srv.URL, APIKey: "test-key"})
	require.NoError(t, err)
	return c
}

func TestNewClient_RequiresConfig(t *testing.T) {
	_, err := NewClient(models.DolibarrConfig{BaseURL: "http://erp.local"})
	assert.Error(t, err)

	_, err = NewClient(models.DolibarrConfig{APIKey: "k"})
	assert.Error(t, err)
}

func TestRequest_Headers(t *testing.T) {
	var gotKey, gotEntity string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.Header.Get("DOLAPIKEY")
		gotEntity = r.Header.Get("DOLENTITY")
		json.NewEncoder(w).Encode([]Product{})
	})

	_, err := c.getProducts(context.Background(), "3", 10)
	require.NoError(t, err)
	assert.Equal(t, "test-key", gotKey)
	assert.Equal(t, "3", gotEntity)
}

func TestRequest_NoEntityHeaderForDefault(t *testing.T) {
	var hadHeader bool
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, hadHeader = r.Header["Dolentity"]
		json.NewEncoder(w).Encode([]Product{})
	})

	_, err := c.getProducts(context.Background(), DefaultEntity, 10)
	require.NoError(t, err)
	assert.False(t, hadHeader, "default entity must not send DOLENTITY")

	_, err = c.getProducts(context.Background(), "", 10)
	require.NoError(t, err)
	assert.False(t, hadHeader)
}

func TestRequest_APIError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":{"code":401,"message":"bad key"}}`))
	})

	_, err := c.getProducts(context.Background(), "", 0)
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)
	assert.Contains(t, apiErr.Body, "bad key")
}

func TestGetEntities_FiltersInactive(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode([]Entity{
			{ID: "1", Label: "Principal", Active: "1", Visible: "1"},
			{ID: "2", Label: "Cerrada", Active: "0", Visible: "1"},
			{ID: "3", Label: "Oculta", Active: "1", Visible: "0"},
		})
	})

	entities, err := c.GetEntities(context.Background())
	require.NoError(t, err)
	require.Len(t, entities, 1)
	assert.Equal(t, "Principal", entities[0].Label)
}

func TestGetEntities_FallbackWithoutMulticompany(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})

	entities, err := c.GetEntities(context.Background())
	require.NoError(t, err)
	require.Len(t, entities, 1)
	assert.Equal(t, "1", entities[0].ID)
}

func TestCreateThirdParty_DecodesRawID(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var payload map[string]any
		json.NewDecoder(r.Body).Decode(&payload)
		assert.Equal(t, "1", payload["fournisseur"])
		assert.NotEmpty(t, payload["code"])
		w.Write([]byte("42"))
	})

	id, err := c.CreateThirdParty(context.Background(), "", ThirdParty{Name: "Acme"})
	require.NoError(t, err)
	assert.Equal(t, "42", id)
}

func TestCheckInvoiceExists(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("ref_supplier") == "SUP-F-2024-001-x" {
			json.NewEncoder(w).Encode([]SupplierInvoice{
				{ID: "7", Ref: "(PROV7)", RefSupplier: "SUP-F-2024-001-x"},
			})
			return
		}
		json.NewEncoder(w).Encode([]SupplierInvoice{})
	})

	dup := c.CheckInvoiceExists(context.Background(), "1", "SUP-F-2024-001-x", "F-2024-001", 0)
	require.NotNil(t, dup)
	assert.Equal(t, "7", dup.ID)

	none := c.CheckInvoiceExists(context.Background(), "1", "SUP-OTHER", "OTHER", 0)
	assert.Nil(t, none)
}

func TestCheckInvoiceExists_ScopedToEntity(t *testing.T) {
	var filters []string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if f := r.URL.Query().Get("sqlfilters"); f != "" {
			filters = append(filters, f)
		}
		json.NewEncoder(w).Encode([]SupplierInvoice{})
	})

	c.CheckInvoiceExists(context.Background(), "3", "SUP-X", "X-1", 12)
	require.NotEmpty(t, filters)
	for _, f := range filters {
		assert.Contains(t, f, "(t.entity:=:'3')")
	}
}

func TestFormatAmount(t *testing.T) {
	assert.Equal(t, "28.960", FormatAmount(28.96))
	assert.Equal(t, "0.000", FormatAmount(0))
	assert.Equal(t, "21.000", FormatAmount(21))
	assert.Equal(t, "1234.568", FormatAmount(1234.5678))
}
