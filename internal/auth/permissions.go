package auth

const (
	PermOrdersCreate   = "orders.create"
	PermOrdersView     = "orders.view"
	PermPaymentsCreate = "payments.create"
	PermProductsView   = "products.view"
)

// BuiltinPermissions are the codes the HTTP routes check. Every deployment
// must define them in the permissions table.
var BuiltinPermissions = []Permission{
	{Code: PermOrdersCreate, Description: "Place orders against stock"},
	{Code: PermOrdersView, Description: "List and inspect orders"},
	{Code: PermPaymentsCreate, Description: "Settle invoices with payments"},
	{Code: PermProductsView, Description: "Browse the product catalog"},
}

// MissingPermissions returns the builtin permissions absent from codes, in
// declaration order.
func MissingPermissions(codes []string) []Permission {
	have := NewPermissionSet(codes...)
	var missing []Permission
	for _, p := range BuiltinPermissions {
		if !have.Has(p.Code) {
			missing = append(missing, p)
		}
	}
	return missing
}
