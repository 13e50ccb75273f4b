// Package auth is the gate in front of every mutating operation.
//
// Credentials are checked against an Argon2id hash with constant-time
// comparison. Successful authentication issues a Session: a signed JWT
// plus a persisted row, so tokens can be revoked before their natural
// expiry.
//
// Two roles exist. Editors may submit layout edits and device commands;
// viewers receive snapshots and diffs only. Anonymous viewing is a
// deployment choice (security.allow_anonymous_read), not a role.
package auth
