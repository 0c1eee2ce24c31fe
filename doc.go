// Package accounts provisions and authenticates user accounts for
// role-segmented applications (student, teacher, admin) and decides where
// each user lands after login or account creation.
//
// Credential lifecycle:
//   - A user either has a usable credential (non empty password hash) or
//     none at all. Admin provisioned accounts start without one and cannot
//     authenticate until the owner completes the invite flow; self
//     registered accounts get their credential up front.
//   - Lifecycle centralizes create, set-credential, authenticate, and
//     reactivate operations, and emits a Created event inside the creating
//     transaction. Listeners with external effects defer them through
//     OnCommit so nothing leaks out of an aborted transaction.
//
// Invites:
//   - InviteDispatcher reacts to Created, filters out staff, superusers,
//     and accounts that already hold a usable credential, and schedules a
//     single set-password email strictly after durable commit. Delivery is
//     best effort; failures never roll back the creation.
//
// Routing:
//   - RolePolicy maps the closed role set to destination identifiers with
//     an exhaustive switch; unknown roles fall back to the student
//     destination so routing never fails.
package accounts
