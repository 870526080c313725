package manifest

// Config is the top-level manifest.
type Config struct {
	Runtime     Runtime      `toml:"runtime" yaml:"runtime" json:"runtime"`
	Content     Content      `toml:"content" yaml:"content" json:"content"`
	Export      Export       `toml:"export" yaml:"export" json:"export"`
	Auth        Auth         `toml:"auth" yaml:"auth" json:"auth"`
	Users       []User       `toml:"user" yaml:"user" json:"user"`
	Permissions []Permission `toml:"permission" yaml:"permission" json:"permission"`
}

// Runtime controls request classification and the identities the runtime
// falls back to.
type Runtime struct {
	HandlerPrefix string `toml:"handler_prefix" yaml:"handler_prefix" json:"handler_prefix"`
	ExportUser    string `toml:"export_user" yaml:"export_user" json:"export_user"`
	GuestUser     string `toml:"guest_user" yaml:"guest_user" json:"guest_user"`
	SiteRoot      string `toml:"site_root" yaml:"site_root" json:"site_root"`
}

type Content struct {
	Root string `toml:"root" yaml:"root" json:"root"`
}

// Export describes where exported artifacts live on disk (RFS) and which
// request paths map onto them.
type Export struct {
	Dir      string   `toml:"dir" yaml:"dir" json:"dir"`
	Prefix   string   `toml:"prefix" yaml:"prefix" json:"prefix"`
	Suffixes []string `toml:"suffixes" yaml:"suffixes" json:"suffixes"`
}

type Auth struct {
	DevBypass        bool   `toml:"dev_bypass" yaml:"dev_bypass" json:"dev_bypass"`
	AdminRole        string `toml:"admin_role" yaml:"admin_role" json:"admin_role"`
	SessionAPI       string `toml:"session_api" yaml:"session_api" json:"session_api"`
	SessionCookie    string `toml:"session_cookie" yaml:"session_cookie" json:"session_cookie"`
	AssertionCookie  string `toml:"assertion_cookie" yaml:"assertion_cookie" json:"assertion_cookie"`
	AssertionKeyURL  string `toml:"assertion_key_url" yaml:"assertion_key_url" json:"assertion_key_url"`
	AssertionKeyFile string `toml:"assertion_key_file" yaml:"assertion_key_file" json:"assertion_key_file"`
	AssertionKeyKID  string `toml:"assertion_key_kid" yaml:"assertion_key_kid" json:"assertion_key_kid"`
	Issuer           string `toml:"issuer" yaml:"issuer" json:"issuer"`
	Audience         string `toml:"audience" yaml:"audience" json:"audience"`
	LeewaySeconds    int    `toml:"leeway_seconds" yaml:"leeway_seconds" json:"leeway_seconds"`
}

// User is a named principal the runtime can impersonate (export, guest).
type User struct {
	Name string `toml:"name" yaml:"name" json:"name"`
	Role string `toml:"role" yaml:"role" json:"role"`
}

// Permission restricts a VFS subtree to a set of roles.
type Permission struct {
	Path  string   `toml:"path" yaml:"path" json:"path"`
	Roles []string `toml:"roles" yaml:"roles" json:"roles"`
}

const (
	DefaultHandlerPrefix = "/handle"
	DefaultExportUser    = "Export"
	DefaultGuestUser     = "Guest"
	DefaultExportPrefix  = "/export"
)
