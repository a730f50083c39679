package entity

import (
	"posmirror/internal/event"
)

// Coercion declares the canonical type a source field is converted to.
type Coercion int

const (
	CoerceString Coercion = iota
	CoerceTimestamp
	CoerceDecimal
	CoerceInt
	CoerceBool
	// CoerceStruct maps a nested source sub-record into a jsonb column using
	// the mapping's Fields.
	CoerceStruct
)

// Strategy selects how the replica writer replaces a row for a key.
type Strategy string

const (
	MergeUpsert        Strategy = "merge_upsert"
	DeleteThenReinsert Strategy = "delete_then_reinsert"
)

// FieldMapping maps one source field onto one warehouse column.
type FieldMapping struct {
	Source string
	Column string
	Coerce Coercion
	// Fields holds the sub-record mappings when Coerce is CoerceStruct.
	Fields []FieldMapping
	// Default is used when the coerced value is absent.
	Default any
	// KeyFallback substitutes the idempotency key when the value is absent.
	KeyFallback bool
}

// CollectionMapping describes a repeated nested substructure stored as a
// jsonb array, with per-element field coercions.
type CollectionMapping struct {
	Source string
	Column string
	Fields []FieldMapping
}

// Config is the static replication configuration for one tracked entity.
type Config struct {
	Type      event.Type
	Table     string
	KeyField  string // source field carrying the idempotency key
	KeyColumn string
	Fields    []FieldMapping
	Strategy  Strategy
	// Items is set only for entities with a repeated substructure.
	Items *CollectionMapping
}

// Columns returns the full ordered column list the writer must cover: key
// column first, then every mapped column, then the collection column.
func (c Config) Columns() []string {
	cols := make([]string, 0, len(c.Fields)+2)
	cols = append(cols, c.KeyColumn)
	for _, f := range c.Fields {
		cols = append(cols, f.Column)
	}
	if c.Items != nil {
		cols = append(cols, c.Items.Column)
	}
	return cols
}

// Lookup resolves the configuration for an entity type.
func Lookup(t event.Type) (Config, bool) {
	cfg, ok := registry[t]
	return cfg, ok
}

// All returns every registered configuration.
func All() []Config {
	out := make([]Config, 0, len(registry))
	for _, t := range []event.Type{event.TypeOrder, event.TypeLineGroup, event.TypeProduct, event.TypeSellingTracking} {
		out = append(out, registry[t])
	}
	return out
}

var registry = map[event.Type]Config{
	event.TypeOrder: {
		Type:      event.TypeOrder,
		Table:     "orders",
		KeyField:  "orderId",
		KeyColumn: "order_id",
		Strategy:  MergeUpsert,
		Fields: []FieldMapping{
			{Source: "assignedCashierEmail", Column: "assigned_cashier_email"},
			{Source: "assignedCashierId", Column: "assigned_cashier_id"},
			{Source: "assignedCashierName", Column: "assigned_cashier_name"},
			{Source: "atpOrOcn", Column: "atp_or_ocn"},
			{Source: "birPermitNo", Column: "bir_permit_no"},
			{Source: "cashSale", Column: "cash_sale", Coerce: CoerceBool},
			{Source: "companyAddress", Column: "company_address"},
			{Source: "companyEmail", Column: "company_email"},
			{Source: "companyId", Column: "company_id"},
			{Source: "companyName", Column: "company_name"},
			{Source: "companyPhone", Column: "company_phone"},
			{Source: "companyTaxId", Column: "company_tax_id"},
			{Source: "createdAt", Column: "created_at", Coerce: CoerceTimestamp},
			{Source: "createdBy", Column: "created_by"},
			{Source: "customerInfo", Column: "customer_info", Coerce: CoerceStruct, Fields: []FieldMapping{
				{Source: "address", Column: "address"},
				{Source: "customerId", Column: "customer_id"},
				{Source: "fullName", Column: "full_name"},
				{Source: "tin", Column: "tin"},
			}},
			{Source: "date", Column: "date", Coerce: CoerceTimestamp},
			{Source: "discountAmount", Column: "discount_amount", Coerce: CoerceDecimal},
			{Source: "grossAmount", Column: "gross_amount", Coerce: CoerceDecimal},
			{Source: "inclusiveSerialNumber", Column: "inclusive_serial_number"},
			{Source: "invoiceNumber", Column: "invoice_number", KeyFallback: true},
			{Source: "message", Column: "message"},
			{Source: "netAmount", Column: "net_amount", Coerce: CoerceDecimal},
			{Source: "payments", Column: "payments", Coerce: CoerceStruct, Fields: []FieldMapping{
				{Source: "amountTendered", Column: "amount_tendered", Coerce: CoerceDecimal},
				{Source: "changeAmount", Column: "change_amount", Coerce: CoerceDecimal},
				{Source: "paymentDescription", Column: "payment_description"},
			}},
			{Source: "status", Column: "status", Default: "active"},
			{Source: "storeId", Column: "store_id"},
			{Source: "totalAmount", Column: "total_amount", Coerce: CoerceDecimal},
			{Source: "uid", Column: "uid"},
			{Source: "updatedAt", Column: "updated_at", Coerce: CoerceTimestamp},
			{Source: "updatedBy", Column: "updated_by"},
			{Source: "vatAmount", Column: "vat_amount", Coerce: CoerceDecimal},
			{Source: "vatExemptAmount", Column: "vat_exempt_amount", Coerce: CoerceDecimal},
			{Source: "vatableSales", Column: "vatable_sales", Coerce: CoerceDecimal},
			{Source: "zeroRatedSales", Column: "zero_rated_sales", Coerce: CoerceDecimal},
		},
	},
	event.TypeLineGroup: {
		Type:      event.TypeLineGroup,
		Table:     "order_details",
		KeyField:  "lineGroupId",
		KeyColumn: "line_group_id",
		Strategy:  DeleteThenReinsert,
		Fields: []FieldMapping{
			{Source: "batchNumber", Column: "batch_number", Coerce: CoerceInt},
			{Source: "companyId", Column: "company_id"},
			{Source: "createdAt", Column: "created_at", Coerce: CoerceTimestamp},
			{Source: "createdBy", Column: "created_by"},
			{Source: "orderId", Column: "order_id"},
			{Source: "storeId", Column: "store_id"},
			{Source: "uid", Column: "uid"},
			{Source: "updatedAt", Column: "updated_at", Coerce: CoerceTimestamp},
			{Source: "updatedBy", Column: "updated_by"},
		},
		Items: &CollectionMapping{
			Source: "items",
			Column: "items",
			Fields: []FieldMapping{
				{Source: "productId", Column: "product_id"},
				{Source: "productName", Column: "product_name"},
				{Source: "quantity", Column: "quantity", Coerce: CoerceInt, Default: int64(1)},
				{Source: "price", Column: "price", Coerce: CoerceDecimal},
				{Source: "discount", Column: "discount", Coerce: CoerceDecimal},
				{Source: "vat", Column: "vat", Coerce: CoerceDecimal},
				{Source: "isVatExempt", Column: "is_vat_exempt", Coerce: CoerceBool},
				{Source: "total", Column: "total", Coerce: CoerceDecimal},
			},
		},
	},
	event.TypeProduct: {
		Type:      event.TypeProduct,
		Table:     "products",
		KeyField:  "productId",
		KeyColumn: "product_id",
		Strategy:  MergeUpsert,
		Fields: []FieldMapping{
			{Source: "barcodeId", Column: "barcode_id"},
			{Source: "category", Column: "category"},
			{Source: "companyId", Column: "company_id"},
			{Source: "createdAt", Column: "created_at", Coerce: CoerceTimestamp},
			{Source: "createdBy", Column: "created_by"},
			{Source: "description", Column: "description"},
			{Source: "discountType", Column: "discount_type"},
			{Source: "discountValue", Column: "discount_value", Coerce: CoerceDecimal},
			{Source: "hasDiscount", Column: "has_discount", Coerce: CoerceBool},
			{Source: "imageUrl", Column: "image_url"},
			{Source: "isFavorite", Column: "is_favorite", Coerce: CoerceBool},
			{Source: "isVatApplicable", Column: "is_vat_applicable", Coerce: CoerceBool},
			{Source: "productCode", Column: "product_code"},
			{Source: "productName", Column: "product_name"},
			{Source: "sellingPrice", Column: "selling_price", Coerce: CoerceDecimal},
			{Source: "skuId", Column: "sku_id"},
			{Source: "status", Column: "status"},
			{Source: "storeId", Column: "store_id"},
			{Source: "totalStock", Column: "total_stock", Coerce: CoerceInt},
			{Source: "uid", Column: "uid"},
			{Source: "unitType", Column: "unit_type"},
			{Source: "updatedAt", Column: "updated_at", Coerce: CoerceTimestamp},
			{Source: "updatedBy", Column: "updated_by"},
		},
	},
	event.TypeSellingTracking: {
		Type:      event.TypeSellingTracking,
		Table:     "orders_selling_tracking",
		KeyField:  "trackingId",
		KeyColumn: "tracking_id",
		Strategy:  MergeUpsert,
		Fields: []FieldMapping{
			{Source: "batchNumber", Column: "batch_number", Coerce: CoerceInt},
			{Source: "companyId", Column: "company_id"},
			{Source: "createdAt", Column: "created_at", Coerce: CoerceTimestamp},
			{Source: "createdBy", Column: "created_by"},
			{Source: "discount", Column: "discount", Coerce: CoerceDecimal},
			{Source: "discountType", Column: "discount_type"},
			{Source: "isVatExempt", Column: "is_vat_exempt", Coerce: CoerceBool},
			{Source: "itemIndex", Column: "item_index", Coerce: CoerceInt},
			{Source: "lineGroupId", Column: "line_group_id"},
			{Source: "orderId", Column: "order_id"},
			{Source: "price", Column: "price", Coerce: CoerceDecimal},
			{Source: "productId", Column: "product_id"},
			{Source: "productName", Column: "product_name"},
			{Source: "quantity", Column: "quantity", Coerce: CoerceDecimal},
			{Source: "status", Column: "status"},
			{Source: "storeId", Column: "store_id"},
			{Source: "total", Column: "total", Coerce: CoerceDecimal},
			{Source: "uid", Column: "uid"},
			{Source: "updatedAt", Column: "updated_at", Coerce: CoerceTimestamp},
			{Source: "updatedBy", Column: "updated_by"},
			{Source: "vat", Column: "vat", Coerce: CoerceDecimal},
		},
	},
}
