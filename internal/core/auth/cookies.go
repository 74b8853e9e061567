package auth

// Cookie and header names shared by the session middleware and the handlers
// that set or clear them.
const (
	AccessCookie      = "access_token_cookie"
	RefreshCookie     = "refresh_token_cookie"
	AccessCSRFCookie  = "csrf_access_token"
	RefreshCSRFCookie = "csrf_refresh_token"
	CSRFHeader        = "X-CSRF-TOKEN"
	CSRFFormField     = "csrf_token"
	RefreshCookiePath = "/api/auth/refresh"
	RootCookiePath    = "/"
)
