package logic

import (
	"net"
	"net/http"
	"strings"

	"github.com/avct/uasurfer"

	"github.com/promoserve/promoserve/internal/geoip"
	"github.com/promoserve/promoserve/internal/models"
)

// DeviceFromUA classifies a raw User-Agent string into the device classes
// recognized by targeting rules.
func DeviceFromUA(uaString string) string {
	u := uasurfer.Parse(uaString)
	switch u.DeviceType {
	case uasurfer.DeviceComputer:
		return models.DeviceDesktop
	case uasurfer.DevicePhone:
		return models.DeviceMobile
	case uasurfer.DeviceTablet:
		return models.DeviceTablet
	default:
		return "other"
	}
}

// ResolveVisitor fills in the device and country of a VisitorContext from
// the request's User-Agent and client IP when the caller did not supply them
// explicitly. Explicit values from the page-rendering collaborator win.
func ResolveVisitor(visitor *models.VisitorContext, g *geoip.GeoIP, r *http.Request) {
	if visitor.Device == "" {
		if ua := r.Header.Get("User-Agent"); ua != "" {
			visitor.Device = DeviceFromUA(ua)
		}
	}
	if visitor.Country == "" && g != nil {
		ipStr := r.Header.Get("X-Forwarded-For")
		if ipStr == "" {
			ipStr = r.RemoteAddr
			if host, _, err := net.SplitHostPort(ipStr); err == nil {
				ipStr = host
			}
		} else {
			// X-Forwarded-For can be comma-separated, take first IP
			if idx := strings.Index(ipStr, ","); idx != -1 {
				ipStr = strings.TrimSpace(ipStr[:idx])
			}
		}
		if ip := net.ParseIP(ipStr); ip != nil {
			visitor.Country = g.Country(ip)
		}
	}
}

// MatchesTargeting reports whether a visitor satisfies a campaign's
// targeting rules. Dimensions are ANDed; values within a dimension are ORed;
// an empty dimension is a wildcard. A dimension the campaign constrains but
// the visitor leaves unknown never matches.
func MatchesTargeting(t models.Targeting, visitor models.VisitorContext) bool {
	if len(t.Pages) > 0 && !matchesPage(t.Pages, visitor.Page) {
		return false
	}
	if len(t.Devices) > 0 && !containsFold(t.Devices, visitor.Device) {
		return false
	}
	if len(t.Countries) > 0 && !containsFold(t.Countries, visitor.Country) {
		return false
	}
	if len(t.UserTypes) > 0 && !containsFold(t.UserTypes, visitor.UserType) {
		return false
	}
	return matchesConditions(t.Conditions, visitor)
}

func matchesConditions(cond models.Conditions, visitor models.VisitorContext) bool {
	if cond.MinOrderValue != nil {
		if visitor.OrderValue == nil || *visitor.OrderValue < *cond.MinOrderValue {
			return false
		}
	}
	if cond.MaxOrderValue != nil {
		if visitor.OrderValue == nil || *visitor.OrderValue > *cond.MaxOrderValue {
			return false
		}
	}
	if len(cond.ProductCategories) > 0 && !containsFold(cond.ProductCategories, visitor.ProductCategory) {
		return false
	}
	if len(cond.UserSegments) > 0 {
		match := false
		for _, want := range cond.UserSegments {
			if containsFold(visitor.Segments, want) {
				match = true
				break
			}
		}
		if !match {
			return false
		}
	}
	return true
}

// matchesPage tests a visitor path against page patterns. A pattern is an
// exact path, a trailing wildcard like /shop/* (matching the prefix and the
// bare path itself), or "*" for everything.
func matchesPage(patterns []string, page string) bool {
	if page == "" {
		return false
	}
	for _, p := range patterns {
		if p == "*" || p == page {
			return true
		}
		if strings.HasSuffix(p, "/*") {
			base := strings.TrimSuffix(p, "/*")
			if page == base || strings.HasPrefix(page, base+"/") {
				return true
			}
		}
	}
	return false
}

func containsFold(values []string, v string) bool {
	if v == "" {
		return false
	}
	for _, c := range values {
		if strings.EqualFold(c, v) {
			return true
		}
	}
	return false
}
