package handler

import (
	"fmt"
	"io"
	"io/fs"

	"github.com/flosch/pongo2/v6"
	"github.com/labstack/echo/v4"

	"github.com/geodonis/geodonis-web/internal/core/auth"
)

// Renderer is an echo.Renderer backed by a pongo2 template set.
type Renderer struct {
	set *pongo2.TemplateSet
}

// NewRenderer loads templates from fsys. With reload set, templates are
// parsed on every render instead of being cached.
func NewRenderer(fsys fs.FS, reload bool) *Renderer {
	set := pongo2.NewSet("geodonis", pongo2.NewFSLoader(fsys))
	set.Debug = reload
	return &Renderer{set: set}
}

// Render executes the named template. The session identity, the CSRF value
// and pending flash messages are added to every template context.
func (r *Renderer) Render(w io.Writer, name string, data any, c echo.Context) error {
	tpl, err := r.set.FromCache(name)
	if err != nil {
		return fmt.Errorf("template %s: %w", name, err)
	}

	ctx := pongo2.Context{}
	if m, ok := data.(map[string]any); ok {
		for k, v := range m {
			ctx[k] = v
		}
	}
	if id := currentIdentity(c); id != nil {
		ctx["current_user"] = id.User
		ctx["is_admin"] = id.IsAdmin()
	}
	if ck, err := c.Cookie(auth.AccessCSRFCookie); err == nil {
		ctx["csrf_token"] = ck.Value
	}
	ctx["flashes"] = popFlashes(c)

	return tpl.ExecuteWriter(ctx, w)
}
