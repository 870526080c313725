package cms

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/joeydtaylor/steeze-cms/pkg/core"
	"github.com/joeydtaylor/steeze-cms/pkg/manifest"
	"github.com/joeydtaylor/steeze-cms/pkg/middleware/auth"
)

var ErrUnknownUser = errors.New("unknown user")

// Contexts builds execution contexts. Without a user hint the principal is
// the authenticated caller, or the guest user for anonymous requests. With a
// hint the principal is the named manifest user, whatever the caller is.
type Contexts struct {
	users    []manifest.User
	guest    string
	siteRoot string
	auth     *auth.Middleware
	now      func() time.Time
}

func NewContexts(cfg manifest.Config, a *auth.Middleware) *Contexts {
	return &Contexts{
		users:    cfg.Users,
		guest:    cfg.Runtime.GuestUser,
		siteRoot: cfg.Runtime.SiteRoot,
		auth:     a,
		now:      time.Now,
	}
}

func (c *Contexts) InitContext(r *http.Request, _ http.ResponseWriter, user string, extra map[string]any) (*core.Context, error) {
	var p core.Principal
	switch {
	case user != "":
		u, ok := c.lookup(user)
		if !ok {
			return nil, fmt.Errorf("init context for %q: %w", user, ErrUnknownUser)
		}
		p = core.Principal{Name: u.Name, Role: u.Role}
	case c.auth != nil && c.auth.IsAuthenticated(r.Context()):
		u := c.auth.GetUser(r.Context())
		p = core.Principal{Name: u.Username, Role: u.Role.Name}
	default:
		u, ok := c.lookup(c.guest)
		if !ok {
			return nil, fmt.Errorf("init context for guest %q: %w", c.guest, ErrUnknownUser)
		}
		p = core.Principal{Name: u.Name, Role: u.Role}
	}
	return &core.Context{
		Principal:   p,
		RequestPath: r.URL.Path,
		SiteRoot:    c.siteRoot,
		RequestTime: c.now(),
		Extra:       extra,
	}, nil
}

// IsGuest reports whether cms runs as the guest user.
func (c *Contexts) IsGuest(cms *core.Context) bool {
	return cms == nil || cms.Principal.Name == c.guest
}

func (c *Contexts) lookup(name string) (manifest.User, bool) {
	for _, u := range c.users {
		if u.Name == name {
			return u, true
		}
	}
	return manifest.User{}, false
}
