package handler

import (
	"strings"

	"github.com/labstack/echo-contrib/session"
	"github.com/labstack/echo/v4"
)

const flashSessionName = "geodonis_flash"

// Flash is a one-shot message shown on the next rendered page.
type Flash struct {
	Category string
	Message  string
}

func addFlash(c echo.Context, category, message string) {
	sess, err := session.Get(flashSessionName, c)
	if err != nil {
		c.Logger().Warnf("flash session unavailable: %v", err)
		return
	}
	sess.AddFlash(category + "|" + message)
	if err := sess.Save(c.Request(), c.Response()); err != nil {
		c.Logger().Warnf("flash not saved: %v", err)
	}
}

func popFlashes(c echo.Context) []Flash {
	sess, err := session.Get(flashSessionName, c)
	if err != nil {
		return nil
	}
	raw := sess.Flashes()
	if len(raw) == 0 {
		return nil
	}
	if err := sess.Save(c.Request(), c.Response()); err != nil {
		c.Logger().Warnf("flash not cleared: %v", err)
	}

	out := make([]Flash, 0, len(raw))
	for _, v := range raw {
		s, ok := v.(string)
		if !ok {
			continue
		}
		category, message, found := strings.Cut(s, "|")
		if !found {
			category, message = "info", s
		}
		out = append(out, Flash{Category: category, Message: message})
	}
	return out
}
