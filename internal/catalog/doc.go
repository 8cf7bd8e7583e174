// Package catalog manages the mobile plan offering.
//
// Plans live in the backend's planes_moviles table. Clients browse the
// active catalog ordered by price; advisors additionally create, edit,
// deactivate, and delete plans and attach promotional images.
//
// The catalog is read fresh on every call. There is no local cache:
// listings are cheap and the advisor tooling always wants current data.
package catalog
