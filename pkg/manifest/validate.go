package manifest

import (
	"errors"
	"fmt"
	"path"
	"strings"
)

// Validate fills defaults and rejects manifests the runtime cannot start with.
func (c *Config) Validate() error {
	if err := c.validateRuntime(); err != nil {
		return err
	}
	if strings.TrimSpace(c.Content.Root) == "" {
		return errors.New("content.root is required")
	}
	if err := c.validateExport(); err != nil {
		return err
	}
	if err := c.validateUsers(); err != nil {
		return err
	}
	for i := range c.Permissions {
		p := &c.Permissions[i]
		clean, err := cleanPath(p.Path)
		if err != nil {
			return fmt.Errorf("permission %d: %w", i, err)
		}
		p.Path = clean
		if len(p.Roles) == 0 {
			return fmt.Errorf("permission %d (%s): at least one role required", i, p.Path)
		}
	}
	if c.Auth.LeewaySeconds < 0 {
		return errors.New("auth.leeway_seconds must be >= 0")
	}
	if c.Auth.AssertionCookie == "" {
		c.Auth.AssertionCookie = "assert"
	}
	return nil
}

func (c *Config) validateRuntime() error {
	rt := &c.Runtime
	rt.HandlerPrefix = strings.TrimSpace(rt.HandlerPrefix)
	if rt.HandlerPrefix == "" {
		rt.HandlerPrefix = DefaultHandlerPrefix
	}
	if !strings.HasPrefix(rt.HandlerPrefix, "/") || rt.HandlerPrefix == "/" {
		return fmt.Errorf("runtime.handler_prefix %q must start with '/' and name a segment", rt.HandlerPrefix)
	}
	if rt.ExportUser == "" {
		rt.ExportUser = DefaultExportUser
	}
	if rt.GuestUser == "" {
		rt.GuestUser = DefaultGuestUser
	}
	if rt.SiteRoot == "" {
		rt.SiteRoot = "/"
	}
	return nil
}

func (c *Config) validateExport() error {
	ex := &c.Export
	if strings.TrimSpace(ex.Dir) == "" {
		return errors.New("export.dir is required")
	}
	if ex.Prefix == "" {
		ex.Prefix = DefaultExportPrefix
	}
	clean, err := cleanPath(ex.Prefix)
	if err != nil {
		return fmt.Errorf("export.prefix: %w", err)
	}
	if clean == "/" {
		return errors.New("export.prefix must not be '/'")
	}
	if strings.HasPrefix(clean, c.Runtime.HandlerPrefix) {
		return fmt.Errorf("export.prefix %q overlaps runtime.handler_prefix", clean)
	}
	ex.Prefix = clean
	for i, s := range ex.Suffixes {
		s = strings.ToLower(strings.TrimSpace(s))
		if s == "" {
			return fmt.Errorf("export.suffixes[%d] is empty", i)
		}
		if !strings.HasPrefix(s, ".") {
			s = "." + s
		}
		ex.Suffixes[i] = s
	}
	return nil
}

func (c *Config) validateUsers() error {
	seen := make(map[string]struct{}, len(c.Users))
	for i, u := range c.Users {
		if strings.TrimSpace(u.Name) == "" {
			return fmt.Errorf("user %d: name is required", i)
		}
		if _, dup := seen[u.Name]; dup {
			return fmt.Errorf("user %q defined twice", u.Name)
		}
		seen[u.Name] = struct{}{}
	}
	for _, want := range []string{c.Runtime.ExportUser, c.Runtime.GuestUser} {
		if _, ok := seen[want]; !ok {
			c.Users = append(c.Users, User{Name: want})
			seen[want] = struct{}{}
		}
	}
	return nil
}

// FindUser returns the manifest entry for name.
func (c *Config) FindUser(name string) (User, bool) {
	for _, u := range c.Users {
		if u.Name == name {
			return u, true
		}
	}
	return User{}, false
}

func cleanPath(p string) (string, error) {
	p = strings.TrimSpace(p)
	if p == "" {
		return "", errors.New("path is required")
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	return path.Clean(p), nil
}
