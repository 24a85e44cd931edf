// Package reference parses secret reference URIs embedded in configuration values.
//
// A reference is a string of the form:
//
//	keyvault://[tag@]vault-host/secrets/secret-name[/version]
//
// The keyvault scheme marks the value for resolution. The optional user-info
// component names a tag on the secret whose value is used instead of the
// secret's primary value. Omitting the version selects the latest version.
//
// Strings that do not parse as URIs, or that use any other scheme (including
// plain https Key Vault URIs), are not references.
package reference

import (
	"net/url"
	"strings"
)

const (
	// MarkerScheme identifies a configuration string as a secret reference.
	MarkerScheme = "keyvault"

	// SecureScheme is the scheme of the URI the secret is fetched from.
	SecureScheme = "https"
)

// Reference is a parsed secret reference.
type Reference struct {
	// Host is the secret store endpoint, e.g. "my-vault.vault.azure.net".
	Host string

	// Path is the secret's resource path on Host, e.g. "/secrets/db-pass/1234".
	Path string

	// RawPath is the escaped form of Path when it differs from the default
	// encoding, e.g. "/secrets/prod%2Fdb" for a name containing a slash.
	RawPath string

	// Tag names a tag on the secret to resolve instead of its value.
	// Empty means the primary value.
	Tag string
}

// Parse parses value as a secret reference. The boolean result reports
// whether value is a reference; malformed URIs and foreign schemes are not
// errors, they are simply not references.
func Parse(value string) (Reference, bool) {
	u, err := url.Parse(value)
	if err != nil {
		return Reference{}, false
	}
	if u.Scheme != MarkerScheme {
		return Reference{}, false
	}

	ref := Reference{
		Host:    u.Host,
		Path:    u.Path,
		RawPath: u.RawPath,
	}
	if u.User != nil {
		ref.Tag = u.User.Username()
	}
	return ref, true
}

// HasTag reports whether the reference selects a tag rather than the value.
func (r Reference) HasTag() bool {
	return r.Tag != ""
}

// URI returns the canonical fetch URI: the secure scheme, host and resource
// path, with no tag left in it.
func (r Reference) URI() string {
	u := url.URL{
		Scheme:  SecureScheme,
		Host:    r.Host,
		Path:    r.Path,
		RawPath: r.RawPath,
	}
	return u.String()
}

// String returns the reference in its keyvault:// form.
func (r Reference) String() string {
	u := url.URL{
		Scheme:  MarkerScheme,
		Host:    r.Host,
		Path:    r.Path,
		RawPath: r.RawPath,
	}
	if r.Tag != "" {
		u.User = url.User(r.Tag)
	}
	return u.String()
}

// SecretName returns the secret name from a /secrets/<name>[/<version>] path,
// or "" when the path has another shape.
func (r Reference) SecretName() string {
	name, _ := r.split()
	return name
}

// Version returns the version segment, or "" for the latest version.
func (r Reference) Version() string {
	_, version := r.split()
	return version
}

func (r Reference) split() (name, version string) {
	u := url.URL{Path: r.Path, RawPath: r.RawPath}
	parts := strings.Split(strings.Trim(u.EscapedPath(), "/"), "/")
	if len(parts) < 2 || parts[0] != "secrets" || parts[1] == "" {
		return "", ""
	}
	name = unescape(parts[1])
	if len(parts) > 2 {
		version = unescape(parts[2])
	}
	return name, version
}

func unescape(seg string) string {
	if s, err := url.PathUnescape(seg); err == nil {
		return s
	}
	return seg
}
