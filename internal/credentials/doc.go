// Package credentials manages the OAuth2 credential used to read the calendar.
//
// A Manager resolves a usable Credential on demand. The stored credential is
// classified into a State; a valid credential is handed out untouched, an
// expired one with a refresh token is refreshed silently, and anything else
// falls through to interactive authorization through an Authorizer (by
// default a loopback redirect listener with PKCE). Every credential obtained
// from the token endpoint is persisted atomically through a Store.
//
// Resolution is serialized within the process by a mutex and across
// processes by an advisory lock next to the credential file.
package credentials
