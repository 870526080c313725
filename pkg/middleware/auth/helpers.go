package auth

import "context"

func (m *Middleware) GetUser(ctx context.Context) User {
	if user, ok := ctx.Value(userCtxKey).(User); ok {
		return user
	}
	return User{}
}

// HasRole reports whether the caller holds one of roles. Admins hold all.
func (m *Middleware) HasRole(ctx context.Context, roles ...string) bool {
	u, ok := ctx.Value(userCtxKey).(User)
	if !ok || u.Username == "" {
		return false
	}
	if m.adminRole != "" && u.Role.Name == m.adminRole {
		return true
	}
	for _, r := range roles {
		if u.Role.Name == r {
			return true
		}
	}
	return false
}

func (m *Middleware) IsAdmin(ctx context.Context) bool {
	if u, ok := ctx.Value(userCtxKey).(User); ok && m.adminRole != "" {
		return u.Role.Name == m.adminRole
	}
	return false
}

func (m *Middleware) IsAuthenticated(ctx context.Context) bool {
	u, ok := ctx.Value(userCtxKey).(User)
	return ok && u.Username != ""
}

// AdminRole is the role that passes every permission check.
func (m *Middleware) AdminRole() string { return m.adminRole }

// WithUser stores u on ctx the same way the middleware does.
func WithUser(ctx context.Context, u User) context.Context {
	return context.WithValue(ctx, userCtxKey, u)
}
