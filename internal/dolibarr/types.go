package dolibarr

// Wire types mirroring the Dolibarr REST schemas this service touches. The
// ERP is authoritative for these records; we only build payloads and read
// back the fields the matching cascades need. Dolibarr serializes most
// numeric flags as strings, so string fields dominate.

// ThirdParty is a Dolibarr société, used here as a supplier (fournisseur=1).
type ThirdParty struct {
	ID                      string `json:"id,omitempty"`
	Code                    string `json:"code,omitempty"`
	Name                    string `json:"name"`
	NameAlias               string `json:"name_alias,omitempty"`
	Client                  string `json:"client,omitempty"`
	Prospect                string `json:"prospect,omitempty"`
	Fournisseur             string `json:"fournisseur,omitempty"`
	Email                   string `json:"email,omitempty"`
	Phone                   string `json:"phone,omitempty"`
	Address                 string `json:"address,omitempty"`
	Zip                     string `json:"zip,omitempty"`
	Town                    string `json:"town,omitempty"`
	CountryID               string `json:"country_id,omitempty"`
	TvaAssuj                string `json:"tva_assuj,omitempty"`
	TvaIntra                string `json:"tva_intra,omitempty"`
	Status                  string `json:"status,omitempty"`
	NotePublic              string `json:"note_public,omitempty"`
	DefaultLang             string `json:"default_lang,omitempty"`
	ModeReglementSupplierID int    `json:"mode_reglement_supplier_id,omitempty"`
	CondReglementSupplierID int    `json:"cond_reglement_supplier_id,omitempty"`
	FkUserCreat             int    `json:"fk_user_creat,omitempty"`
	Entity                  string `json:"entity,omitempty"`
}

// Product is a Dolibarr product or service (Type "0" / "1").
type Product struct {
	ID               string `json:"id,omitempty"`
	Ref              string `json:"ref"`
	Label            string `json:"label"`
	Description      string `json:"description,omitempty"`
	Type             string `json:"type,omitempty"`
	Price            string `json:"price,omitempty"`
	TvaTx            string `json:"tva_tx,omitempty"`
	Status           string `json:"status,omitempty"`
	StatusBuy        string `json:"status_buy,omitempty"`
	ToBuy            string `json:"tobuy,omitempty"`
	ToSell           string `json:"tosell,omitempty"`
	NotePublic       string `json:"note_public,omitempty"`
	SeuilStockAlerte string `json:"seuil_stock_alerte,omitempty"`
	DesiredStock     string `json:"desiredstock,omitempty"`
	DefaultLang      string `json:"default_lang,omitempty"`
	Entity           string `json:"entity,omitempty"`
	AccountancySell  string `json:"accountancy_code_sell,omitempty"`
	AccountancyBuy   string `json:"accountancy_code_buy,omitempty"`
}

// SupplierInvoice is a facture fournisseur header.
type SupplierInvoice struct {
	ID                string `json:"id,omitempty"`
	Ref               string `json:"ref,omitempty"`
	SocID             int    `json:"socid"`
	RefSupplier       string `json:"ref_supplier"`
	Date              string `json:"date"`
	DateEcheance      string `json:"date_echeance,omitempty"`
	NotePublic        string `json:"note_public,omitempty"`
	NotePrivate       string `json:"note_private,omitempty"`
	CondReglementID   int    `json:"cond_reglement_id,omitempty"`
	ModeReglementID   int    `json:"mode_reglement_id,omitempty"`
	Type              int    `json:"type"`
	OrderSupplier     int    `json:"order_supplier,omitempty"`
	MulticurrencyCode string `json:"multicurrency_code,omitempty"`
	MulticurrencyTx   string `json:"multicurrency_tx,omitempty"`
	FkAccount         int    `json:"fk_account,omitempty"`
	Entity            string `json:"entity,omitempty"`
}

// InvoiceLine is one line of a supplier invoice. Dolibarr only supports
// percentage discounts at line level (RemisePercent).
type InvoiceLine struct {
	Desc          string `json:"desc"`
	Qty           string `json:"qty"`
	Subprice      string `json:"subprice"`
	PuHT          string `json:"pu_ht,omitempty"`
	PuTTC         string `json:"pu_ttc,omitempty"`
	TvaTx         string `json:"tva_tx"`
	RemisePercent string `json:"remise_percent,omitempty"`
	TotalHT       string `json:"total_ht"`
	TotalTVA      string `json:"total_tva"`
	TotalTTC      string `json:"total_ttc"`
	FkProduct     string `json:"fk_product,omitempty"`
	ProductType   string `json:"product_type,omitempty"`
	InfoBits      string `json:"info_bits,omitempty"`
	Rang          string `json:"rang,omitempty"`
}

// Entity is a multicompany tenant. Active/Visible come back as "0"/"1".
type Entity struct {
	ID      string `json:"id"`
	Label   string `json:"label"`
	Active  string `json:"active"`
	Visible string `json:"visible"`
	Entity  string `json:"entity,omitempty"`
}
