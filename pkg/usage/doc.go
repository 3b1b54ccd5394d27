// Package usage counts the records each tenant owns, one query per kind.
//
// Counts are computed fresh on every call. A kind whose query fails is
// reported as 0 and listed in Snapshot.Failed rather than failing the whole
// snapshot: access checks keep answering while the store is degraded, at the
// cost of possibly under-enforcing a cap for that window.
package usage
