// Package profile manages rows of the perfiles table.
//
// The backend creates a profile row via trigger when a user signs up,
// but the trigger races the client: Ensure tolerates both orders by
// updating when the row exists and inserting when it does not, then
// falling back to an update if the insert loses the race.
package profile
