package mockengine

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/getmockd/posgraph/internal/values"
	"github.com/getmockd/posgraph/pkg/operation"
)

const (
	optString  = `{"type": ["string", "null"]}`
	optNumber  = `{"type": ["number", "null"], "minimum": 0}`
	optInteger = `{"type": ["integer", "null"], "minimum": 0}`
	reqID      = `{"type": "string", "minLength": 1}`
	optPage    = `"limit": {"type": ["integer", "null"], "minimum": 0}, "offset": {"type": ["integer", "null"], "minimum": 0}, "search": ` + optString
)

const productFieldSchemas = `
	"barcode": ` + optString + `,
	"costPrice": ` + optNumber + `,
	"minStock": ` + optInteger + `,
	"category": ` + optString + `,
	"brand": ` + optString + `,
	"supplier": ` + optString + `,
	"gstRate": {"type": ["number", "null"], "minimum": 0, "maximum": 100},
	"unit": ` + optString

const customerFieldSchemas = `
	"phone": ` + optString + `,
	"email": ` + optString + `,
	"address": ` + optString + `,
	"gstin": ` + optString

// variableSchemas holds the JSON Schema for each operation's variables.
// Operations without an entry accept any variables.
var variableSchemas = map[string]string{
	operation.GetProducts: `{"type": "object", "properties": {` + optPage + `, "category": ` + optString + `}}`,
	operation.GetProduct:  `{"type": "object", "required": ["id"], "properties": {"id": ` + reqID + `}}`,
	operation.GetProductByBarcode: `{"type": "object", "required": ["barcode"],
		"properties": {"barcode": {"type": "string", "minLength": 1}}}`,
	operation.GetSales:     `{"type": "object", "properties": {` + optPage + `}}`,
	operation.GetSale:      `{"type": "object", "required": ["id"], "properties": {"id": ` + reqID + `}}`,
	operation.GetCustomers: `{"type": "object", "properties": {` + optPage + `}}`,
	operation.GetCustomer:  `{"type": "object", "required": ["id"], "properties": {"id": ` + reqID + `}}`,
	operation.GetBarcodes:  `{"type": "object", "properties": {` + optPage + `}}`,
	operation.GetLowStockItems: `{"type": "object", "properties": {"limit": ` + optInteger + `}}`,
	operation.GetRecentTransactions: `{"type": "object", "properties": {"limit": ` + optInteger + `}}`,
	operation.GetTopProducts:        `{"type": "object", "properties": {"limit": ` + optInteger + `}}`,
	operation.GetSalesAnalytics: `{"type": "object", "properties": {
		"period": {"enum": ["day", "week", "month", "year", null]}}}`,
	operation.GetGstSummary: `{"type": "object", "properties": {"from": ` + optString + `, "to": ` + optString + `}}`,

	operation.CreateProduct: `{"type": "object", "required": ["name", "price", "stock"], "properties": {
		"name": {"type": "string", "minLength": 1},
		"price": {"type": "number", "minimum": 0},
		"stock": {"type": "integer", "minimum": 0},` + productFieldSchemas + `}}`,
	operation.UpdateProduct: `{"type": "object", "required": ["id"], "properties": {
		"id": ` + reqID + `,
		"name": {"type": ["string", "null"], "minLength": 1},
		"price": ` + optNumber + `,
		"stock": ` + optInteger + `,` + productFieldSchemas + `}}`,
	operation.DeleteProduct: `{"type": "object", "required": ["id"], "properties": {"id": ` + reqID + `}}`,
	operation.CreateSale: `{"type": "object", "required": ["items"], "properties": {
		"items": {"type": "array", "minItems": 1, "items": {
			"type": "object", "required": ["productId", "quantity"], "properties": {
				"productId": ` + reqID + `,
				"quantity": {"type": "integer", "minimum": 1},
				"price": ` + optNumber + `}}},
		"customerId": ` + optString + `,
		"paymentMethod": {"enum": ["cash", "card", "upi", "credit", null]},
		"discount": ` + optNumber + `}}`,
	operation.DeleteSale: `{"type": "object", "required": ["id"], "properties": {"id": ` + reqID + `}}`,
	operation.CreateCustomer: `{"type": "object", "required": ["name"], "properties": {
		"name": {"type": "string", "minLength": 1},` + customerFieldSchemas + `}}`,
	operation.UpdateCustomer: `{"type": "object", "required": ["id"], "properties": {
		"id": ` + reqID + `,
		"name": {"type": ["string", "null"], "minLength": 1},` + customerFieldSchemas + `}}`,
	operation.DeleteCustomer: `{"type": "object", "required": ["id"], "properties": {"id": ` + reqID + `}}`,
	operation.CreateBarcode: `{"type": "object", "required": ["code"], "properties": {
		"code": {"type": "string", "minLength": 1},
		"format": {"enum": ["EAN13", "EAN8", "UPCA", "CODE128", "QR", null]},
		"productId": ` + optString + `,
		"label": ` + optString + `}}`,
	operation.DeleteBarcode: `{"type": "object", "required": ["id"], "properties": {"id": ` + reqID + `}}`,
	operation.UpdateStoreProfile: `{"type": "object", "properties": {
		"name": {"type": ["string", "null"], "minLength": 1},
		"address": ` + optString + `,
		"phone": ` + optString + `,
		"email": ` + optString + `,
		"gstin": ` + optString + `,
		"currency": {"type": ["string", "null"], "minLength": 3, "maxLength": 3}}}`,
}

func compileSchema(name, schema string) (*jsonschema.Schema, error) {
	compiler := jsonschema.NewCompiler()
	compiler.Draft = jsonschema.Draft2020

	url := name + ".json"
	if err := compiler.AddResource(url, strings.NewReader(schema)); err != nil {
		return nil, fmt.Errorf("failed to add schema resource for %s: %w", name, err)
	}
	return compiler.Compile(url)
}

// validateVariables checks vars against schema and converts the first
// failure into a Validation error naming the offending field.
func validateVariables(schema *jsonschema.Schema, vars map[string]any) *operation.Error {
	normalized, err := values.Normalize(vars)
	if err != nil {
		return operation.Validation("", fmt.Sprintf("variables are not valid JSON: %v", err))
	}
	err = schema.Validate(normalized)
	if err == nil {
		return nil
	}

	var verr *jsonschema.ValidationError
	if !errors.As(err, &verr) {
		return operation.Validation("", err.Error())
	}
	leaf := firstLeaf(verr)
	field := fieldFromPointer(leaf.InstanceLocation)
	if strings.HasSuffix(leaf.KeywordLocation, "/required") {
		if missing := quotedName.FindStringSubmatch(leaf.Message); missing != nil {
			field = joinField(field, missing[1])
		}
		return operation.Validation(field, "is required")
	}
	return operation.Validation(field, leaf.Message)
}

var quotedName = regexp.MustCompile(`['"]([^'"]+)['"]`)

func firstLeaf(err *jsonschema.ValidationError) *jsonschema.ValidationError {
	for len(err.Causes) > 0 {
		err = err.Causes[0]
	}
	return err
}

// fieldFromPointer converts a JSON Pointer ("/items/0/quantity") to dot
// notation ("items.0.quantity").
func fieldFromPointer(ptr string) string {
	if ptr == "" || ptr == "/" {
		return ""
	}
	return strings.ReplaceAll(strings.TrimPrefix(ptr, "/"), "/", ".")
}

func joinField(parent, child string) string {
	if parent == "" {
		return child
	}
	return parent + "." + child
}
