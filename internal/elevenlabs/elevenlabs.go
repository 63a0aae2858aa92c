package elevenlabs

import "context"

// DocumentRef is an (id, name) pair the agent should reference after a run.
type DocumentRef struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// KnowledgeBase captures the remote operations the reconciler needs.
type KnowledgeBase interface {
	// ListDocuments returns a name -> document id mapping of the current
	// knowledge base. A listing failure partway through degrades to the
	// entries accumulated so far rather than an error.
	ListDocuments(ctx context.Context) (map[string]string, error)
	// UploadDocument registers the file at filePath as a new document and
	// returns its id.
	UploadDocument(ctx context.Context, name, filePath string) (string, error)
	// DeleteDocument removes a document. An already-deleted document is
	// not an error.
	DeleteDocument(ctx context.Context, id string) error
	// UpdateAgentKnowledgeBase replaces the agent's knowledge-base list
	// with the given documents, leaving other agent fields untouched.
	UpdateAgentKnowledgeBase(ctx context.Context, docs []DocumentRef) error
}
