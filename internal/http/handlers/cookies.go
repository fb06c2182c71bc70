package handlers

import (
	"net/http"
	"time"

	"github.com/hongminglow/medimate-be/internal/auth"
)

// CookiePolicy sets the session cookies. Production cookies are cross-site
// (SameSite=None) and therefore Secure.
type CookiePolicy struct {
	Production bool
	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

func (p CookiePolicy) cookie(name, value string, maxAge int) *http.Cookie {
	c := &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
	if p.Production {
		c.SameSite = http.SameSiteNoneMode
		c.Secure = true
	}
	return c
}

func (p CookiePolicy) setAccess(w http.ResponseWriter, token string) {
	http.SetCookie(w, p.cookie(auth.AccessCookieName, token, int(p.AccessTTL.Seconds())))
}

func (p CookiePolicy) setRefresh(w http.ResponseWriter, token string) {
	http.SetCookie(w, p.cookie(auth.RefreshCookieName, token, int(p.RefreshTTL.Seconds())))
}

func (p CookiePolicy) clear(w http.ResponseWriter) {
	http.SetCookie(w, p.cookie(auth.AccessCookieName, "", -1))
	http.SetCookie(w, p.cookie(auth.RefreshCookieName, "", -1))
}
