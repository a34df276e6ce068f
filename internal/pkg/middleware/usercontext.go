package middleware

import (
	"github.com/gofiber/fiber/v2"

	"github.com/ManuelReschke/EventFox/internal/pkg/session"
	"github.com/ManuelReschke/EventFox/internal/pkg/usercontext"
)

// UserContextMiddleware resolves the session principal once per request.
// The login flow of the hosting site writes the session keys; this service
// only reads them.
func UserContextMiddleware(c *fiber.Ctx) error {
	store := session.GetSessionStore()
	if store == nil {
		usercontext.SetUserContext(c, usercontext.UserContext{})
		return c.Next()
	}

	sess, err := store.Get(c)
	if err != nil {
		usercontext.SetUserContext(c, usercontext.UserContext{})
		return c.Next()
	}

	userID, ok := sess.Get(usercontext.KeyUserID).(uint)
	if !ok || userID == 0 {
		usercontext.SetUserContext(c, usercontext.UserContext{})
		return c.Next()
	}

	username, _ := sess.Get(usercontext.KeyUsername).(string)
	email, _ := sess.Get(usercontext.KeyEmail).(string)
	isAdmin, _ := sess.Get(usercontext.KeyIsAdmin).(bool)

	usercontext.SetUserContext(c, usercontext.UserContext{
		UserID:     userID,
		Username:   username,
		Email:      email,
		IsLoggedIn: true,
		IsAdmin:    isAdmin,
	})
	return c.Next()
}
