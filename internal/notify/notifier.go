package notify

// AdminRoom is the shared room every administrator's connection joins, used
// for broadcasts that target the whole admin set.
const AdminRoom = "admins"

// Notifier publishes role-targeted events into per-user rooms. Delivery is
// best-effort: a missing subscriber or a failed write is never an error, and
// publishing must never sit on the critical path of a state change.
type Notifier interface {
	Publish(roomID, event string, payload interface{})
}
