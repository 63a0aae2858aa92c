package api

import (
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/leekycauldron/gcs-xikb-bridge/internal/sync"
)

type Handler struct {
	reconciler Runner
}

func NewHandler(reconciler Runner) *Handler {
	return &Handler{reconciler: reconciler}
}

// pushEnvelope is the Pub/Sub push delivery wrapper. Message.Data is the
// base64-encoded JSON of the storage object the notification is about.
type pushEnvelope struct {
	Message struct {
		Data       []byte            `json:"data"`
		Attributes map[string]string `json:"attributes"`
	} `json:"message"`
	Subscription string `json:"subscription"`
}

// objectPayload is the subset of the storage object notification payload
// the reconciler cares about.
type objectPayload struct {
	Name   string `json:"name"`
	Bucket string `json:"bucket"`
}

// PubSubPush handles a Pub/Sub push delivery of a storage notification.
// The event type arrives in the message attributes (e.g. OBJECT_FINALIZE).
func (h *Handler) PubSubPush(c *gin.Context) {
	var envelope pushEnvelope
	if err := c.ShouldBindJSON(&envelope); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid push envelope: " + err.Error()})
		return
	}

	var obj objectPayload
	if len(envelope.Message.Data) > 0 {
		if err := json.Unmarshal(envelope.Message.Data, &obj); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid notification payload: " + err.Error()})
			return
		}
	}

	h.run(c, sync.ChangeEvent{
		Bucket:     obj.Bucket,
		ObjectName: obj.Name,
		EventType:  envelope.Message.Attributes["eventType"],
	})
}

// CloudEvent handles an Eventarc HTTP delivery: the body is the storage
// object JSON and the event type rides in the Ce-Type header.
func (h *Handler) CloudEvent(c *gin.Context) {
	var obj objectPayload
	if err := c.ShouldBindJSON(&obj); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid event payload: " + err.Error()})
		return
	}

	h.run(c, sync.ChangeEvent{
		Bucket:     obj.Bucket,
		ObjectName: obj.Name,
		EventType:  c.GetHeader("Ce-Type"),
	})
}

// run executes the reconciliation. Degraded runs (skipped uploads, failed
// deletions) still return 200 so the broker does not redeliver; only an
// aborted run maps to a 5xx.
func (h *Handler) run(c *gin.Context, event sync.ChangeEvent) {
	result, err := h.reconciler.Run(c.Request.Context(), event)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": result.Status()})
}
