package elevenlabs

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, baseURL string) *Client {
	t.Helper()
	client, err := NewClient(Config{
		APIKey:   "test-key",
		AgentID:  "agent-1",
		BaseURL:  baseURL,
		PageSize: 100,
	})
	require.NoError(t, err)
	return client
}

func TestNewClientValidation(t *testing.T) {
	_, err := NewClient(Config{AgentID: "agent-1"})
	require.Error(t, err)

	_, err = NewClient(Config{APIKey: "key"})
	require.Error(t, err)
}

func TestListDocumentsPagination(t *testing.T) {
	requests := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/convai/knowledge-base", r.URL.Path)
		require.Equal(t, "test-key", r.Header.Get("xi-api-key"))
		require.Equal(t, "100", r.URL.Query().Get("page_size"))

		requests++
		page := map[string]any{}
		docs := make([]map[string]string, 0, 100)
		switch r.URL.Query().Get("cursor") {
		case "":
			for i := 0; i < 100; i++ {
				docs = append(docs, map[string]string{"id": fmt.Sprintf("id-a-%d", i), "name": fmt.Sprintf("a-%d.txt", i)})
			}
			page = map[string]any{"documents": docs, "has_more": true, "next_cursor": "c1"}
		case "c1":
			for i := 0; i < 100; i++ {
				docs = append(docs, map[string]string{"id": fmt.Sprintf("id-b-%d", i), "name": fmt.Sprintf("b-%d.txt", i)})
			}
			page = map[string]any{"documents": docs, "has_more": true, "next_cursor": "c2"}
		case "c2":
			for i := 0; i < 100; i++ {
				docs = append(docs, map[string]string{"id": fmt.Sprintf("id-c-%d", i), "name": fmt.Sprintf("c-%d.txt", i)})
			}
			page = map[string]any{"documents": docs, "has_more": false}
		default:
			t.Fatalf("unexpected cursor %q", r.URL.Query().Get("cursor"))
		}
		json.NewEncoder(w).Encode(page)
	}))
	defer srv.Close()

	docs, err := newTestClient(t, srv.URL).ListDocuments(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, requests)
	assert.Len(t, docs, 300)
	assert.Equal(t, "id-a-0", docs["a-0.txt"])
	assert.Equal(t, "id-c-99", docs["c-99.txt"])
}

func TestListDocumentsPartialOnErrorPage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("cursor") == "" {
			json.NewEncoder(w).Encode(map[string]any{
				"documents":   []map[string]string{{"id": "id1", "name": "a.txt"}},
				"has_more":    true,
				"next_cursor": "c1",
			})
			return
		}
		http.Error(w, "internal error", http.StatusInternalServerError)
	}))
	defer srv.Close()

	docs, err := newTestClient(t, srv.URL).ListDocuments(context.Background())
	require.NoError(t, err, "a failed page degrades to a partial result, not an error")
	assert.Equal(t, map[string]string{"a.txt": "id1"}, docs)
}

func TestUploadDocument(t *testing.T) {
	dir := t.TempDir()
	filePath := filepath.Join(dir, "scratch")
	require.NoError(t, os.WriteFile(filePath, []byte("hello knowledge"), 0o644))

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/convai/knowledge-base/file", r.URL.Path)
		require.Equal(t, "test-key", r.Header.Get("xi-api-key"))

		require.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, "guide.md", r.FormValue("name"))

		file, header, err := r.FormFile("file")
		require.NoError(t, err)
		defer file.Close()
		assert.Equal(t, "guide.md", header.Filename)
		assert.Equal(t, "text/markdown", header.Header.Get("Content-Type"))
		content, err := io.ReadAll(file)
		require.NoError(t, err)
		assert.Equal(t, "hello knowledge", string(content))

		json.NewEncoder(w).Encode(map[string]string{"id": "doc_123"})
	}))
	defer srv.Close()

	id, err := newTestClient(t, srv.URL).UploadDocument(context.Background(), "guide.md", filePath)
	require.NoError(t, err)
	assert.Equal(t, "doc_123", id)
}

func TestUploadDocumentFailure(t *testing.T) {
	dir := t.TempDir()
	filePath := filepath.Join(dir, "scratch")
	require.NoError(t, os.WriteFile(filePath, []byte("x"), 0o644))

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "unsupported document", http.StatusUnprocessableEntity)
	}))
	defer srv.Close()

	_, err := newTestClient(t, srv.URL).UploadDocument(context.Background(), "a.txt", filePath)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "422")
}

func TestDeleteDocument(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		wantErr bool
	}{
		{"deleted", http.StatusOK, false},
		{"already gone", http.StatusNoContent, false},
		{"not found", http.StatusNotFound, true},
		{"server error", http.StatusInternalServerError, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				require.Equal(t, http.MethodDelete, r.Method)
				require.Equal(t, "/convai/knowledge-base/doc_1", r.URL.Path)
				w.WriteHeader(tt.status)
			}))
			defer srv.Close()

			err := newTestClient(t, srv.URL).DeleteDocument(context.Background(), "doc_1")
			if tt.wantErr {
				require.Error(t, err)
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestUpdateAgentKnowledgeBase(t *testing.T) {
	var probed bool
	var patchBody []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/convai/agents/agent-1", r.URL.Path)
		switch r.Method {
		case http.MethodGet:
			probed = true
			json.NewEncoder(w).Encode(map[string]string{"agent_id": "agent-1"})
		case http.MethodPatch:
			require.True(t, probed, "agent must be probed before patching")
			require.Equal(t, "application/json", r.Header.Get("Content-Type"))
			var err error
			patchBody, err = io.ReadAll(r.Body)
			require.NoError(t, err)
			w.WriteHeader(http.StatusOK)
		default:
			t.Fatalf("unexpected method %s", r.Method)
		}
	}))
	defer srv.Close()

	docs := []DocumentRef{
		{ID: "id1", Name: "a.txt"},
		{ID: "id2", Name: "b.pdf"},
	}
	require.NoError(t, newTestClient(t, srv.URL).UpdateAgentKnowledgeBase(context.Background(), docs))

	var got struct {
		ConversationConfig struct {
			Agent struct {
				Prompt struct {
					KnowledgeBase []map[string]string `json:"knowledge_base"`
				} `json:"prompt"`
			} `json:"agent"`
		} `json:"conversation_config"`
	}
	require.NoError(t, json.Unmarshal(patchBody, &got))
	entries := got.ConversationConfig.Agent.Prompt.KnowledgeBase
	require.Len(t, entries, 2)
	assert.Equal(t, map[string]string{
		"type": "file", "id": "id1", "name": "a.txt", "usage_mode": "auto",
	}, entries[0])
	assert.Equal(t, map[string]string{
		"type": "file", "id": "id2", "name": "b.pdf", "usage_mode": "auto",
	}, entries[1])
}

func TestUpdateAgentKnowledgeBaseEmptyList(t *testing.T) {
	var patchBody []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPatch {
			patchBody, _ = io.ReadAll(r.Body)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	require.NoError(t, newTestClient(t, srv.URL).UpdateAgentKnowledgeBase(context.Background(), nil))
	assert.Contains(t, string(patchBody), `"knowledge_base":[]`)
}

func TestUpdateAgentProceedsWhenProbeFails(t *testing.T) {
	var patched bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			http.Error(w, "broken agent state", http.StatusInternalServerError)
		case http.MethodPatch:
			patched = true
			w.WriteHeader(http.StatusOK)
		}
	}))
	defer srv.Close()

	err := newTestClient(t, srv.URL).UpdateAgentKnowledgeBase(context.Background(), []DocumentRef{{ID: "id1", Name: "a.txt"}})
	require.NoError(t, err)
	assert.True(t, patched, "patch must proceed despite a failed probe")
}

func TestUpdateAgentPatchFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPatch {
			http.Error(w, "bad knowledge base", http.StatusBadRequest)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	err := newTestClient(t, srv.URL).UpdateAgentKnowledgeBase(context.Background(), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "400")
}
