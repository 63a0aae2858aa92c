package sync

// Event types as delivered by Eventarc (CloudEvents) and by Pub/Sub
// notification attributes.
const (
	EventTypeFinalized = "google.cloud.storage.object.v1.finalized"
	EventTypeDeleted   = "google.cloud.storage.object.v1.deleted"

	AttrObjectFinalize = "OBJECT_FINALIZE"
	AttrObjectDelete   = "OBJECT_DELETE"
)

// ChangeEvent describes a single bucket change notification. ObjectName may
// be empty when the trigger carries no object (e.g. a manual run).
type ChangeEvent struct {
	Bucket     string
	ObjectName string
	EventType  string
}

// IsFinalize reports whether the event means an object was created or
// overwritten. Only finalize events force a re-upload of a file the
// knowledge base already has.
func (e ChangeEvent) IsFinalize() bool {
	return e.EventType == EventTypeFinalized || e.EventType == AttrObjectFinalize
}
