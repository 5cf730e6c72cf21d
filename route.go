package auth

import (
	"strings"
)

// DecisionKind is what the page layer should do with a navigation
type DecisionKind int

const (
	// DecisionRender renders View (and Subview for the business tree)
	DecisionRender DecisionKind = iota
	// DecisionRedirect navigates to Target
	DecisionRedirect
	// DecisionLoading renders the loading placeholder
	DecisionLoading
)

func (k DecisionKind) String() string {
	switch k {
	case DecisionRender:
		return "render"
	case DecisionRedirect:
		return "redirect"
	case DecisionLoading:
		return "loading"
	default:
		return "unknown"
	}
}

// MarshalText encodes the kind by name
func (k DecisionKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// RouteState is the navigation state derived from the session
type RouteState string

const (
	RouteStateLoading            RouteState = "loading"
	RouteStateUnauthenticated    RouteState = "unauthenticated"
	RouteStateAuthenticatedOwner RouteState = "authenticated_owner"
	RouteStateAuthenticatedAdmin RouteState = "authenticated_admin"
)

// View is the top level view tree
type View string

const (
	ViewNone      View = ""
	ViewBusiness  View = "business"
	ViewAdminRoot View = "admin"
)

// Subview is one of the business dashboard sections
type Subview string

const (
	SubviewNone       Subview = ""
	SubviewAnalytics  Subview = "analytics"
	SubviewClients    Subview = "clients"
	SubviewTeam       Subview = "team"
	SubviewCalendar   Subview = "calendar"
	SubviewWhatsApp   Subview = "whatsapp"
	SubviewSettings   Subview = "settings"
	SubviewAgreements Subview = "agreements"
	SubviewTemplates  Subview = "templates"
)

// DefaultSubview is rendered when the last path segment matches no subview
const DefaultSubview = SubviewAnalytics

// ParseSubview maps a path segment onto the closed set of subviews
func ParseSubview(segment string) (Subview, bool) {
	switch Subview(strings.ToLower(strings.TrimSpace(segment))) {
	case SubviewAnalytics:
		return SubviewAnalytics, true
	case SubviewClients:
		return SubviewClients, true
	case SubviewTeam:
		return SubviewTeam, true
	case SubviewCalendar:
		return SubviewCalendar, true
	case SubviewWhatsApp:
		return SubviewWhatsApp, true
	case SubviewSettings:
		return SubviewSettings, true
	case SubviewAgreements:
		return SubviewAgreements, true
	case SubviewTemplates:
		return SubviewTemplates, true
	default:
		return SubviewNone, false
	}
}

// AllSubviews lists the business subviews in menu order
func AllSubviews() []Subview {
	return []Subview{
		SubviewAnalytics,
		SubviewClients,
		SubviewTeam,
		SubviewCalendar,
		SubviewWhatsApp,
		SubviewSettings,
		SubviewAgreements,
		SubviewTemplates,
	}
}

// RouteDecision is computed per navigation and never persisted
type RouteDecision struct {
	Kind    DecisionKind `json:"kind"`
	Target  string       `json:"target,omitempty"`
	View    View         `json:"view,omitempty"`
	Subview Subview      `json:"subview,omitempty"`
	State   RouteState   `json:"state"`
}

// Render returns a render decision
func Render(state RouteState, view View, subview Subview) RouteDecision {
	return RouteDecision{Kind: DecisionRender, View: view, Subview: subview, State: state}
}

// Redirect returns a redirect decision
func Redirect(state RouteState, target string) RouteDecision {
	return RouteDecision{Kind: DecisionRedirect, Target: target, State: state}
}

// Loading returns the loading placeholder decision
func Loading() RouteDecision {
	return RouteDecision{Kind: DecisionLoading, State: RouteStateLoading}
}

// DefaultAdminRedirects maps business routes to their admin equivalents
func DefaultAdminRedirects() map[string]string {
	return map[string]string{
		"/dashboard/analytics": "/dashboard/admin-analytics",
		"/dashboard/clients":   "/dashboard/users",
		"/dashboard/team":      "/dashboard/users",
		"/dashboard/whatsapp":  "/dashboard/admin-whatsapp",
		"/dashboard/settings":  "/dashboard/admin-settings",
	}
}

// RouteResolverOption customizes a RouteResolver
type RouteResolverOption func(*RouteResolver)

// WithAdminRedirects replaces the admin redirect map
func WithAdminRedirects(redirects map[string]string) RouteResolverOption {
	return func(r *RouteResolver) {
		r.adminRedirects = make(map[string]string, len(redirects))
		for from, to := range redirects {
			r.adminRedirects[from] = to
		}
	}
}

// WithSignInPath redirects signed out visitors to path. Empty disables it.
func WithSignInPath(path string) RouteResolverOption {
	return func(r *RouteResolver) {
		r.signInPath = strings.TrimSpace(path)
	}
}

// RouteResolver decides what to render for a requested path. It is pure:
// identical inputs give identical decisions.
type RouteResolver struct {
	adminRedirects map[string]string
	signInPath     string
}

// NewRouteResolver returns a resolver with DefaultAdminRedirects
func NewRouteResolver(opts ...RouteResolverOption) *RouteResolver {
	r := &RouteResolver{
		adminRedirects: DefaultAdminRedirects(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	return r
}

// Decide evaluates the decision table against the session state.
// First match wins:
//  1. loading: placeholder
//  2. super admin on a mapped path: redirect to the admin equivalent
//  3. super admin: admin root
//  4. everyone else: business view, subview from the last path segment
func (r *RouteResolver) Decide(state SessionState, path string) RouteDecision {
	if state.Loading {
		return Loading()
	}

	if state.Profile.IsSuperAdmin() {
		if target, ok := r.adminRedirects[path]; ok {
			return Redirect(RouteStateAuthenticatedAdmin, target)
		}
		return Render(RouteStateAuthenticatedAdmin, ViewAdminRoot, SubviewNone)
	}

	if r.signInPath != "" && state.Identity == nil && path != r.signInPath {
		return Redirect(RouteStateUnauthenticated, r.signInPath)
	}

	routeState := RouteStateAuthenticatedOwner
	if state.Identity == nil {
		routeState = RouteStateUnauthenticated
	}

	return Render(routeState, ViewBusiness, BusinessSubview(path))
}

// DecideForProfile evaluates the table for a resolved profile
func (r *RouteResolver) DecideForProfile(profile *Profile, path string) RouteDecision {
	state := SessionState{Profile: profile}
	if profile != nil {
		state.Identity = &Identity{ID: profile.ID, Email: profile.Email}
	}
	return r.Decide(state, path)
}

// BusinessSubview selects the subview from the last path segment,
// defaulting to DefaultSubview.
func BusinessSubview(path string) Subview {
	trimmed := strings.TrimRight(path, "/")
	segment := trimmed
	if idx := strings.LastIndex(trimmed, "/"); idx >= 0 {
		segment = trimmed[idx+1:]
	}

	if subview, ok := ParseSubview(segment); ok {
		return subview
	}
	return DefaultSubview
}
