package subscription

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/veilnet-io/veilnet/internal/domain/node"
	"github.com/veilnet-io/veilnet/internal/domain/user"
	"github.com/veilnet-io/veilnet/internal/shared/config"
	"github.com/veilnet-io/veilnet/internal/shared/logger"
)

// Result is a rendered subscription body plus its serving metadata.
type Result struct {
	Body        string
	ContentType string
	Format      Format
}

// Renderer produces subscription bodies for validated users.
type Renderer struct {
	nodes    node.Repository
	services node.ServiceConfigRepository
	cfg      config.SubscriptionConfig
	logger   logger.Interface
}

// NewRenderer creates a subscription renderer.
func NewRenderer(
	nodes node.Repository,
	services node.ServiceConfigRepository,
	cfg config.SubscriptionConfig,
	log logger.Interface,
) *Renderer {
	return &Renderer{nodes: nodes, services: services, cfg: cfg, logger: log}
}

// Render builds the body for a user in the format the User-Agent implies.
// Users without an active node, and nodes without matching services, get a
// human-readable placeholder body so clients always receive a valid file.
func (r *Renderer) Render(ctx context.Context, u *user.User, userAgent string) (*Result, error) {
	format := DetectFormat(userAgent)

	if u.ActiveNodeID() == nil {
		return placeholderResult(format, selectServerBody(u)), nil
	}

	nodeID := *u.ActiveNodeID()
	n, err := r.nodes.GetByID(ctx, nodeID)
	if err != nil {
		return nil, err
	}
	services, err := r.services.ListByNode(ctx, nodeID)
	if err != nil {
		return nil, err
	}

	entries := BuildEntries(u, n, services)
	if format == FormatOutline {
		entries = filterProtocol(entries, user.ProtocolShadowsocks)
	}
	if len(entries) == 0 {
		return placeholderResult(format, fmt.Sprintf("No server configurations for node %d", nodeID)), nil
	}

	var body string
	switch format {
	case FormatClash, FormatClashMeta:
		body, err = RenderClash(entries, format == FormatClashMeta)
	case FormatSingBox:
		body, err = RenderSingBox(entries)
	case FormatV2RayJSON:
		body, err = RenderV2RayJSON(entries)
	case FormatOutline:
		body = RenderLinks(entries)
	default:
		body = RenderBase64(entries)
	}
	if err != nil {
		return nil, err
	}

	return &Result{Body: body, ContentType: format.ContentType(), Format: format}, nil
}

// Headers returns the subscription metadata headers clients read alongside
// the body.
func (r *Renderer) Headers(u *user.User) map[string]string {
	headers := map[string]string{
		"subscription-userinfo": UserInfoHeader(u),
	}
	if r.cfg.ProfileTitle != "" {
		headers["profile-title"] = "base64:" + base64.StdEncoding.EncodeToString([]byte(r.cfg.ProfileTitle))
	}
	if r.cfg.UpdateIntervalHours > 0 {
		headers["profile-update-interval"] = fmt.Sprintf("%d", r.cfg.UpdateIntervalHours)
	}
	if r.cfg.SupportURL != "" {
		headers["support-url"] = r.cfg.SupportURL
	}
	return headers
}

// UserInfoHeader formats the subscription-userinfo value. The panel tracks
// combined traffic, which goes in the download slot; missing limit or
// expiry serialize as zero per the de facto convention.
func UserInfoHeader(u *user.User) string {
	var total int64
	if u.DataLimit() != nil {
		total = *u.DataLimit()
	}
	var expire int64
	if u.ExpireAt() != nil {
		expire = u.ExpireAt().Unix()
	}
	return fmt.Sprintf("upload=0; download=%d; total=%d; expire=%d", u.UsedTraffic(), total, expire)
}

func selectServerBody(u *user.User) string {
	var lines []string
	for _, p := range u.Proxies() {
		lines = append(lines, fmt.Sprintf("%s: Select a server first", p.Protocol()))
	}
	if len(lines) == 0 {
		lines = []string{"Select a server first"}
	}
	return strings.Join(lines, "\n")
}

func placeholderResult(format Format, body string) *Result {
	if format == FormatBase64 {
		body = base64.StdEncoding.EncodeToString([]byte(body))
	}
	return &Result{Body: body, ContentType: "text/plain; charset=utf-8", Format: format}
}

func filterProtocol(entries []Entry, p user.Protocol) []Entry {
	var out []Entry
	for _, e := range entries {
		if e.Protocol == p {
			out = append(out, e)
		}
	}
	return out
}
