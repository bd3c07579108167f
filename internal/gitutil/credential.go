package gitutil

import (
	"net/url"
	"os"

	"github.com/zalando/go-keyring"
)

// CredentialSource names where a resolved push credential came from,
// for logging (spec's Open Question on push-credential resolution).
type CredentialSource string

const (
	SourceKeyring     CredentialSource = "keyring"
	SourceEnvironment CredentialSource = "environment"
	SourceAnonymous   CredentialSource = "anonymous"
)

// keyringService is the service name under which the scheduler's
// remote push token is stored, when an operator opts in via the OS
// keyring rather than plaintext environment.
const keyringService = "volodyslav-scheduler"

// ResolvePushCredential implements the fallback chain spec's Open
// Question resolves: OS keyring entry first, then the GIT_PUSH_TOKEN
// environment variable, then anonymous (local-only push, no
// credential embedded). username identifies the keyring entry and
// doubles as the HTTP Basic username when a token is found.
func ResolvePushCredential(username string) (token string, source CredentialSource) {
	if secret, err := keyring.Get(keyringService, username); err == nil && secret != "" {
		return secret, SourceKeyring
	}
	if secret := os.Getenv("GIT_PUSH_TOKEN"); secret != "" {
		return secret, SourceEnvironment
	}
	return "", SourceAnonymous
}

// WithCredential embeds username/token as HTTP Basic userinfo into
// remote, for remotes using the http(s) scheme. Non-http(s) remotes
// (ssh, local paths) are returned unchanged, since credential
// resolution here only concerns token-based HTTPS pushes; ssh auth is
// handled by the operator's own ssh-agent.
func WithCredential(remote, username, token string) string {
	if token == "" {
		return remote
	}
	u, err := url.Parse(remote)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return remote
	}
	u.User = url.UserPassword(username, token)
	return u.String()
}

// ResolvedRemote reports the final push URL and where its credential
// came from, for the composition root to log once at startup.
func ResolvedRemote(remote, username string) (string, CredentialSource) {
	token, source := ResolvePushCredential(username)
	return WithCredential(remote, username, token), source
}
