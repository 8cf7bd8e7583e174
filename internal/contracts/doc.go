// Package contracts manages plan contracting requests.
//
// A contract (contrataciones row) ties a user to a plan and carries a
// lifecycle status: pendiente when requested, then aprobada or
// rechazada once an advisor decides, or cancelada if the client backs
// out first. Approval records who decided and when.
//
// Listings join the plan row so callers can render names and prices
// without a second query. Advisor listings span all users; client
// listings are scoped to the signed-in user.
package contracts
