// Package subscription renders a user's active-node credentials into the
// text formats consumed by proxy clients.
package subscription

import "strings"

// Format is a subscription body format, chosen by User-Agent sniffing.
type Format string

const (
	FormatBase64    Format = "base64"
	FormatClash     Format = "clash"
	FormatClashMeta Format = "clash-meta"
	FormatSingBox   Format = "sing-box"
	FormatOutline   Format = "outline"
	FormatV2RayJSON Format = "v2ray-json"
)

// ContentType returns the MIME type served with the format.
func (f Format) ContentType() string {
	switch f {
	case FormatClash, FormatClashMeta:
		return "text/yaml; charset=utf-8"
	case FormatSingBox, FormatV2RayJSON:
		return "application/json; charset=utf-8"
	default:
		return "text/plain; charset=utf-8"
	}
}

// DetectFormat sniffs the client family from a User-Agent header. Meta
// forks are matched before plain clash since their UAs contain "clash"
// too. Unknown agents get base64 links.
func DetectFormat(userAgent string) Format {
	ua := strings.ToLower(userAgent)
	switch {
	case containsAny(ua, "clash-meta", "clash.meta", "clash-verge", "mihomo", "flclash"):
		return FormatClashMeta
	case strings.Contains(ua, "clash"):
		return FormatClash
	case containsAny(ua, "sing-box", "singbox", "sfa", "sfi", "hiddify"):
		return FormatSingBox
	case strings.Contains(ua, "outline"):
		return FormatOutline
	case containsAny(ua, "v2rayn", "streisand"):
		return FormatV2RayJSON
	default:
		return FormatBase64
	}
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
