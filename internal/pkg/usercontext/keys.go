package usercontext

// Shared Locals/session keys used across controllers and middlewares
const (
	KeyUserID      = "user_id"
	KeyUsername    = "username"
	KeyEmail       = "email"
	KeyIsAdmin     = "isAdmin"
	KeyUserContext = "USER_CONTEXT"
)
