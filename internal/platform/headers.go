package platform

import (
	"encoding/json"
	"net/http"
	"strings"
)

// ContentTypeForm is the content type the token and cart endpoints are sent with.
const ContentTypeForm = "application/x-www-form-urlencoded"

const (
	contentTypeJSON = "application/json"
	acceptAny       = "application/json, text/plain, */*"
	channelSuperApp = "super-app"
)

// Identity selects the per-user headers. Empty optional fields are left out.
type Identity struct {
	Token      string
	Phone      string
	StoreIDs   []string
	UserID     string
	CustomerID string
	Email      string
}

// HeaderOption adjusts the base header set for one call.
type HeaderOption func(http.Header)

// Headers builds the header set the mobile app sends on every authenticated
// call. Keys are written verbatim because the platform matches some of them
// by their exact spelling.
func (c *Client) Headers(id Identity, opts ...HeaderOption) http.Header {
	storeIDs := id.StoreIDs
	if storeIDs == nil {
		storeIDs = []string{}
	}
	storeIDsJSON, _ := json.Marshal(storeIDs)
	storeIDsCSV := strings.Join(storeIDs, ",")

	h := http.Header{}
	set(h, "Accept", acceptAny)
	set(h, "Content-Type", contentTypeJSON)
	set(h, "Authorization", "Bearer "+id.Token)
	set(h, "mobileNumber", id.Phone)
	set(h, "device-id", c.opts.DeviceID)
	set(h, "channel", channelSuperApp)
	set(h, "app-version", c.opts.App.Version)
	set(h, "channel-os", c.opts.App.Version)
	set(h, "appversion", c.opts.App.Build)
	set(h, "istio-appVersion", c.opts.App.Build)
	set(h, "storeids", string(storeIDsJSON))
	set(h, "istio-storeIds", string(storeIDsJSON))
	set(h, "aws-cf-cd-storeid", storeIDsCSV)

	if id.UserID != "" {
		set(h, "UserId", id.UserID)
	}
	if id.CustomerID != "" {
		set(h, "customer-id", id.CustomerID)
	}
	if id.Email != "" {
		set(h, "email", id.Email)
	}

	for _, opt := range opts {
		opt(h)
	}
	return h
}

// WithAPIKey adds the x-api-key header.
func WithAPIKey(key string) HeaderOption {
	return func(h http.Header) { set(h, "x-api-key", key) }
}

// WithBearer replaces the Authorization token.
func WithBearer(token string) HeaderOption {
	return func(h http.Header) { set(h, "Authorization", "Bearer "+token) }
}

// WithFormContentType marks the call as form encoded. The body stays JSON;
// the cart endpoints expect exactly this combination.
func WithFormContentType() HeaderOption {
	return func(h http.Header) { set(h, "Content-Type", ContentTypeForm) }
}

// WithStoreIDsCSV sends storeids and istio-storeIds comma separated instead of as a JSON array.
func WithStoreIDsCSV(storeIDs []string) HeaderOption {
	csv := strings.Join(storeIDs, ",")
	return func(h http.Header) {
		set(h, "storeids", csv)
		set(h, "istio-storeIds", csv)
		set(h, "aws-cf-cd-storeid", csv)
	}
}

func set(h http.Header, key, value string) {
	h[key] = []string{value}
}
