package dolibarr

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func catalogServer(suppliers []ThirdParty, products []Product) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/thirdparties":
			json.NewEncoder(w).Encode(suppliers)
		case "/products":
			json.NewEncoder(w).Encode(products)
		default:
			http.NotFound(w, r)
		}
	}
}

func TestFindSupplierByName_ExactWinsOverFuzzy(t *testing.T) {
	c := newTestClient(t, catalogServer([]ThirdParty{
		{ID: "1", Name: "Acme S.L."},
		{ID: "2", Name: "Acme"},
	}, nil))

	got, err := c.FindSupplierByName(context.Background(), "", "Acme")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "2", got.ID, "exact match must beat the fuzzy candidate listed first")
}

func TestFindSupplierByName_CaseAndSpacing(t *testing.T) {
	c := newTestClient(t, catalogServer([]ThirdParty{
		{ID: "5", Name: "FERRETERIA LOPEZ"},
	}, nil))

	got, err := c.FindSupplierByName(context.Background(), "", "ferreteria  lopez ")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "5", got.ID)
}

func TestFindSupplierByName_Similarity(t *testing.T) {
	c := newTestClient(t, catalogServer([]ThirdParty{
		{ID: "9", Name: "Infortisa"},
	}, nil))

	// one-letter OCR slip, similarity 8/9
	got, err := c.FindSupplierByName(context.Background(), "", "Infortise")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "9", got.ID)
}

func TestFindSupplierByName_LegalSuffix(t *testing.T) {
	assert.Equal(t, "acme industrial", stripLegalSuffix("Acme Industrial S.L."))
	assert.Equal(t, "acme industrial", stripLegalSuffix("Acme Industrial SL"))
	assert.Equal(t, "acme industrial", stripLegalSuffix("Acme Industrial s.l"))
	assert.Equal(t, "widgets", stripLegalSuffix("Widgets GmbH"))
	assert.Equal(t, "plain name", stripLegalSuffix("Plain Name"))
}

func TestFindSupplierByName_SuffixVariants(t *testing.T) {
	// "Acme S.A." vs "Acme, S.L" only meet once both suffixes are stripped;
	// the leftover comma keeps equality from firing, contains takes over.
	c := newTestClient(t, catalogServer([]ThirdParty{
		{ID: "3", Name: "Acme, S.L"},
	}, nil))

	got, err := c.FindSupplierByName(context.Background(), "", "Acme S.A.")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "3", got.ID)
}

func TestFindSupplierByName_NoMatch(t *testing.T) {
	c := newTestClient(t, catalogServer([]ThirdParty{
		{ID: "1", Name: "Suministros del Norte"},
	}, nil))

	got, err := c.FindSupplierByName(context.Background(), "", "Papelería Central")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestFindSupplierByName_ShortNamesNeedExact(t *testing.T) {
	// "SA" must not match "Casa" through the contains strategies
	c := newTestClient(t, catalogServer([]ThirdParty{
		{ID: "1", Name: "Casa"},
	}, nil))

	got, err := c.FindSupplierByName(context.Background(), "", "SA")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestFindProduct_DirectRefEndpoint(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/products/ref/AB-123" {
			json.NewEncoder(w).Encode(Product{ID: "3", Ref: "AB-123", Label: "Cable HDMI"})
			return
		}
		t.Errorf("listing should not be fetched when the ref endpoint hits: %s", r.URL.Path)
		http.NotFound(w, r)
	})

	got, err := c.FindProduct(context.Background(), "", "AB-123", "")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "3", got.ID)
}

func TestFindProduct_ByRefSeparators(t *testing.T) {
	c := newTestClient(t, catalogServer(nil, []Product{
		{ID: "3", Ref: "AB-123", Label: "Cable HDMI"},
	}))

	got, err := c.FindProduct(context.Background(), "", "AB 123", "")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "3", got.ID)
}

func TestFindProduct_RefBeatsDescription(t *testing.T) {
	c := newTestClient(t, catalogServer(nil, []Product{
		{ID: "1", Ref: "OTHER", Label: "Cable HDMI 2m"},
		{ID: "2", Ref: "CAB-HDMI", Label: "Algo distinto"},
	}))

	got, err := c.FindProduct(context.Background(), "", "CAB-HDMI", "Cable HDMI 2m")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "2", got.ID)
}

func TestFindProduct_ByDescriptionKeywords(t *testing.T) {
	c := newTestClient(t, catalogServer(nil, []Product{
		{ID: "4", Ref: "CARG-01", Label: "Cargador universal portátil", Description: "Cargador universal para portátil y coche, 90W"},
	}))

	got, err := c.FindProduct(context.Background(), "", "", "Cargador universal de portátil para coche")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "4", got.ID)
}

func TestFindProduct_SingleKeywordDescription(t *testing.T) {
	c := newTestClient(t, catalogServer(nil, []Product{
		{ID: "7", Ref: "IMP-HP", Label: "Impresora HP LaserJet 1020"},
	}))

	got, err := c.FindProduct(context.Background(), "", "", "Impresora de la en")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "7", got.ID)
}

func TestFindProduct_NoMatch(t *testing.T) {
	c := newTestClient(t, catalogServer(nil, []Product{
		{ID: "1", Ref: "TOR-01", Label: "Tornillo M6"},
	}))

	got, err := c.FindProduct(context.Background(), "", "XYZ-999", "Impresora láser color")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestMatchProductByDescription_ExactLabelFirst(t *testing.T) {
	products := []Product{
		{ID: "1", Label: "Papel A4 80g premium"},
		{ID: "2", Label: "Papel A4 80g"},
	}
	got := matchProductByDescription(products, "Papel A4 80g")
	require.NotNil(t, got)
	assert.Equal(t, "2", got.ID)
}
