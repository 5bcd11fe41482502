package operation

// Canonical operation names. The same names are registered by the mock
// engine and sent as operationName by the live transport.
const (
	GetProducts           = "GetProducts"
	GetProduct            = "GetProduct"
	GetProductByBarcode   = "GetProductByBarcode"
	GetSales              = "GetSales"
	GetSale               = "GetSale"
	GetCustomers          = "GetCustomers"
	GetCustomer           = "GetCustomer"
	GetBarcodes           = "GetBarcodes"
	GetStoreProfile       = "GetStoreProfile"
	GetDashboardStats     = "GetDashboardStats"
	GetLowStockItems      = "GetLowStockItems"
	GetRecentTransactions = "GetRecentTransactions"
	GetSalesAnalytics     = "GetSalesAnalytics"
	GetTopProducts        = "GetTopProducts"
	GetGstSummary         = "GetGstSummary"

	CreateProduct      = "CreateProduct"
	UpdateProduct      = "UpdateProduct"
	DeleteProduct      = "DeleteProduct"
	CreateSale         = "CreateSale"
	DeleteSale         = "DeleteSale"
	CreateCustomer     = "CreateCustomer"
	UpdateCustomer     = "UpdateCustomer"
	DeleteCustomer     = "DeleteCustomer"
	CreateBarcode      = "CreateBarcode"
	DeleteBarcode      = "DeleteBarcode"
	UpdateStoreProfile = "UpdateStoreProfile"
)

const (
	productFragment = `
fragment ProductFields on Product {
  id name barcode price costPrice stock minStock category brand supplier gstRate unit createdAt updatedAt
}`
	saleFragment = `
fragment SaleFields on Sale {
  id invoiceNumber customerId customerName
  items { productId name quantity price gstRate lineTotal }
  subtotal discount tax total paymentMethod createdAt updatedAt
}`
	customerFragment = `
fragment CustomerFields on Customer {
  id name phone email address gstin totalPurchases createdAt updatedAt
}`
	barcodeFragment = `
fragment BarcodeFields on Barcode {
  id code format productId label createdAt updatedAt
}`
	storeProfileFragment = `
fragment StoreProfileFields on StoreProfile {
  id name address phone email gstin currency createdAt updatedAt
}`
)

// builtinEntries is the canonical operation set.
var builtinEntries = []Entry{
	// Queries
	{Name: GetProducts, Kind: KindQuery, Field: "products", Collection: "products", Document: `
query GetProducts($limit: Int, $offset: Int, $search: String, $category: String) {
  products(limit: $limit, offset: $offset, search: $search, category: $category) { ...ProductFields }
}` + productFragment},
	{Name: GetProduct, Kind: KindQuery, Field: "product", Collection: "products", Document: `
query GetProduct($id: ID!) {
  product(id: $id) { ...ProductFields }
}` + productFragment},
	{Name: GetProductByBarcode, Kind: KindQuery, Field: "productByBarcode", Collection: "products", Document: `
query GetProductByBarcode($barcode: String!) {
  productByBarcode(barcode: $barcode) { ...ProductFields }
}` + productFragment},
	{Name: GetSales, Kind: KindQuery, Field: "sales", Collection: "sales", Document: `
query GetSales($limit: Int, $offset: Int, $search: String) {
  sales(limit: $limit, offset: $offset, search: $search) { ...SaleFields }
}` + saleFragment},
	{Name: GetSale, Kind: KindQuery, Field: "sale", Collection: "sales", Document: `
query GetSale($id: ID!) {
  sale(id: $id) { ...SaleFields }
}` + saleFragment},
	{Name: GetCustomers, Kind: KindQuery, Field: "customers", Collection: "customers", Document: `
query GetCustomers($limit: Int, $offset: Int, $search: String) {
  customers(limit: $limit, offset: $offset, search: $search) { ...CustomerFields }
}` + customerFragment},
	{Name: GetCustomer, Kind: KindQuery, Field: "customer", Collection: "customers", Document: `
query GetCustomer($id: ID!) {
  customer(id: $id) { ...CustomerFields }
}` + customerFragment},
	{Name: GetBarcodes, Kind: KindQuery, Field: "barcodes", Collection: "barcodes", Document: `
query GetBarcodes($limit: Int, $offset: Int, $search: String) {
  barcodes(limit: $limit, offset: $offset, search: $search) { ...BarcodeFields }
}` + barcodeFragment},
	{Name: GetStoreProfile, Kind: KindQuery, Field: "storeProfile", Collection: "storeProfile", Document: `
query GetStoreProfile {
  storeProfile { ...StoreProfileFields }
}` + storeProfileFragment},
	{Name: GetDashboardStats, Kind: KindQuery, Field: "dashboardStats", Document: `
query GetDashboardStats {
  dashboardStats { totalSales totalRevenue totalProducts totalCustomers lowStockCount todaySales todayRevenue }
}`},
	{Name: GetLowStockItems, Kind: KindQuery, Field: "lowStockItems", Collection: "products", Document: `
query GetLowStockItems($limit: Int) {
  lowStockItems(limit: $limit) { ...ProductFields }
}` + productFragment},
	{Name: GetRecentTransactions, Kind: KindQuery, Field: "recentTransactions", Collection: "sales", Document: `
query GetRecentTransactions($limit: Int) {
  recentTransactions(limit: $limit) { ...SaleFields }
}` + saleFragment},
	{Name: GetSalesAnalytics, Kind: KindQuery, Field: "salesAnalytics", Document: `
query GetSalesAnalytics($period: String) {
  salesAnalytics(period: $period) {
    period totalSales totalRevenue averageOrderValue
    series { date sales revenue }
  }
}`},
	{Name: GetTopProducts, Kind: KindQuery, Field: "topProducts", Document: `
query GetTopProducts($limit: Int) {
  topProducts(limit: $limit) { productId name quantitySold revenue }
}`},
	{Name: GetGstSummary, Kind: KindQuery, Field: "gstSummary", Document: `
query GetGstSummary($from: String, $to: String) {
  gstSummary(from: $from, to: $to) {
    from to taxableAmount cgst sgst totalTax
    byRate { rate taxableAmount tax }
  }
}`},

	// Mutations
	{Name: CreateProduct, Kind: KindMutation, Field: "createProduct", Collection: "products", Document: `
mutation CreateProduct($name: String!, $barcode: String, $price: Float!, $costPrice: Float, $stock: Int!, $minStock: Int,
  $category: String, $brand: String, $supplier: String, $gstRate: Float, $unit: String) {
  createProduct(name: $name, barcode: $barcode, price: $price, costPrice: $costPrice, stock: $stock, minStock: $minStock,
    category: $category, brand: $brand, supplier: $supplier, gstRate: $gstRate, unit: $unit) { ...ProductFields }
}` + productFragment},
	{Name: UpdateProduct, Kind: KindMutation, Field: "updateProduct", Collection: "products", Document: `
mutation UpdateProduct($id: ID!, $name: String, $barcode: String, $price: Float, $costPrice: Float, $stock: Int, $minStock: Int,
  $category: String, $brand: String, $supplier: String, $gstRate: Float, $unit: String) {
  updateProduct(id: $id, name: $name, barcode: $barcode, price: $price, costPrice: $costPrice, stock: $stock, minStock: $minStock,
    category: $category, brand: $brand, supplier: $supplier, gstRate: $gstRate, unit: $unit) { ...ProductFields }
}` + productFragment},
	{Name: DeleteProduct, Kind: KindMutation, Field: "deleteProduct", Collection: "products", Document: `
mutation DeleteProduct($id: ID!) {
  deleteProduct(id: $id) { id success }
}`},
	{Name: CreateSale, Kind: KindMutation, Field: "createSale", Collection: "sales", Document: `
mutation CreateSale($items: [SaleItemInput!]!, $customerId: ID, $paymentMethod: String, $discount: Float) {
  createSale(items: $items, customerId: $customerId, paymentMethod: $paymentMethod, discount: $discount) { ...SaleFields }
}` + saleFragment},
	{Name: DeleteSale, Kind: KindMutation, Field: "deleteSale", Collection: "sales", Document: `
mutation DeleteSale($id: ID!) {
  deleteSale(id: $id) { id success }
}`},
	{Name: CreateCustomer, Kind: KindMutation, Field: "createCustomer", Collection: "customers", Document: `
mutation CreateCustomer($name: String!, $phone: String, $email: String, $address: String, $gstin: String) {
  createCustomer(name: $name, phone: $phone, email: $email, address: $address, gstin: $gstin) { ...CustomerFields }
}` + customerFragment},
	{Name: UpdateCustomer, Kind: KindMutation, Field: "updateCustomer", Collection: "customers", Document: `
mutation UpdateCustomer($id: ID!, $name: String, $phone: String, $email: String, $address: String, $gstin: String) {
  updateCustomer(id: $id, name: $name, phone: $phone, email: $email, address: $address, gstin: $gstin) { ...CustomerFields }
}` + customerFragment},
	{Name: DeleteCustomer, Kind: KindMutation, Field: "deleteCustomer", Collection: "customers", Document: `
mutation DeleteCustomer($id: ID!) {
  deleteCustomer(id: $id) { id success }
}`},
	{Name: CreateBarcode, Kind: KindMutation, Field: "createBarcode", Collection: "barcodes", Document: `
mutation CreateBarcode($code: String!, $format: String, $productId: ID, $label: String) {
  createBarcode(code: $code, format: $format, productId: $productId, label: $label) { ...BarcodeFields }
}` + barcodeFragment},
	{Name: DeleteBarcode, Kind: KindMutation, Field: "deleteBarcode", Collection: "barcodes", Document: `
mutation DeleteBarcode($id: ID!) {
  deleteBarcode(id: $id) { id success }
}`},
	{Name: UpdateStoreProfile, Kind: KindMutation, Field: "updateStoreProfile", Collection: "storeProfile", Document: `
mutation UpdateStoreProfile($name: String, $address: String, $phone: String, $email: String, $gstin: String, $currency: String) {
  updateStoreProfile(name: $name, address: $address, phone: $phone, email: $email, gstin: $gstin, currency: $currency) { ...StoreProfileFields }
}` + storeProfileFragment},
}
