package models

// VisitorContext describes the current site visitor for targeting and
// frequency decisions. It is constructed per request and never stored.
type VisitorContext struct {
	// ID is the stable per-visitor identifier used for frequency capping.
	ID string `json:"id"`
	// Page is the path of the page being rendered, e.g. "/shop/shoes".
	Page string `json:"page,omitempty"`
	// Device is one of desktop/mobile/tablet, resolved from the User-Agent
	// when not supplied explicitly.
	Device string `json:"device,omitempty"`
	// Country is the ISO 3166-1 alpha-2 code, resolved from the IP address
	// when not supplied explicitly.
	Country string `json:"country,omitempty"`
	// UserType is "new" or "returning".
	UserType string `json:"user_type,omitempty"`
	// OrderValue is the visitor's current cart or order value. nil means
	// unknown; a campaign with an order-value bound cannot match then.
	OrderValue *float64 `json:"order_value,omitempty"`
	// ProductCategory of the currently viewed product, if any.
	ProductCategory string `json:"product_category,omitempty"`
	// Segments are the visitor's audience segment tags.
	Segments []string `json:"segments,omitempty"`
}
