// Package auth implements the identity and credential lifecycle core of the
// gameorki backend: registration, password login with JWT session issuance,
// the multi-step password recovery protocol, and the bearer-token and role
// middleware that gate every protected route.
//
// Recovery protocol:
//   - Users carry a RecoveryState value persisted via Bun. A recovery session
//     moves none -> code_issued -> verified -> none, with two independent
//     deadlines: the 6-digit email code (15 minutes) and the overall reset
//     session (1 hour). Expiry is enforced lazily at the moment of use.
//   - RecoveryMachine centralizes code/secret minting, stage derivation, and
//     transition checks; the password reset command handlers drive it.
//
// Sessions:
//   - TokenService signs self-contained HS256 tokens carrying id, username,
//     and role with a fixed 7-day window. Tokens are not revocable; a role
//     change takes effect on the next issuance.
package auth
