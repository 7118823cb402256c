// Package auth implements the credential and account-state engine behind
// token-based sign-in: JWT issuance and validation, a bcrypt password vault,
// and Bun-backed account storage with username and email history lineages.
//
// Token epoch:
//   - Every account stores the issuance instant of the most recent token the
//     engine accepted (LastTokenIssuedAt). Logging in or refreshing advances
//     it, which implicitly invalidates older refresh tokens the next time
//     they are presented. No token list or denylist is kept.
//   - Refresh validation always checks the epoch. Access validation skips
//     the account read by default; wire StrictAccessPolicy when revocation
//     latency matters more than a storage round trip per request.
//
// Changesets:
//   - Mutations to an account are described by a Changeset of logical fields
//     and folded into the record once by User.Apply, right before the
//     repository persists exactly the touched columns. Username and email
//     changes close the open history interval and start the next one in the
//     same transaction.
//
// Activity sinks:
//   - ActivitySink is a light-weight audit emitter used by Auther and the
//     registration handler to describe login, refresh, and identity-change
//     events. Sinks run best-effort (errors are logged) so you can forward
//     to a database or queue without blocking authentication.
//
// Claims decoration:
//   - ClaimsDecorator is invoked before JWTs are signed. Decorators may add
//     extension fields such as scopes while protected claims (sub, iss,
//     username, email, type, iat, exp) remain immutable.
package auth
