package elevenlabs

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/leekycauldron/gcs-xikb-bridge/pkg/logger"
)

// Config encapsulates the connection info for the ElevenLabs ConvAI API.
type Config struct {
	APIKey   string
	AgentID  string
	BaseURL  string
	PageSize int
	Timeout  time.Duration
}

// Client implements KnowledgeBase against the ElevenLabs ConvAI API.
type Client struct {
	apiKey   string
	agentID  string
	baseURL  string
	pageSize int
	http     *http.Client
}

// NewClient builds a new Client.
func NewClient(cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("elevenlabs api key must be provided")
	}
	if cfg.AgentID == "" {
		return nil, fmt.Errorf("elevenlabs agent id must be provided")
	}

	baseURL := strings.TrimSuffix(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://api.elevenlabs.io/v1"
	}
	pageSize := cfg.PageSize
	if pageSize <= 0 {
		pageSize = 100
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	return &Client{
		apiKey:   cfg.APIKey,
		agentID:  cfg.AgentID,
		baseURL:  baseURL,
		pageSize: pageSize,
		http:     &http.Client{Timeout: timeout},
	}, nil
}

type listResponse struct {
	Documents []struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	} `json:"documents"`
	HasMore    bool   `json:"has_more"`
	NextCursor string `json:"next_cursor"`
}

// ListDocuments pages through the knowledge base and returns a name -> id
// mapping. A non-success page response stops the listing and returns the
// entries accumulated so far; only a transport failure is an error.
func (c *Client) ListDocuments(ctx context.Context) (map[string]string, error) {
	docs := make(map[string]string)

	cursor := ""
	for {
		endpoint := c.baseURL + "/convai/knowledge-base"
		params := url.Values{}
		params.Set("page_size", strconv.Itoa(c.pageSize))
		if cursor != "" {
			params.Set("cursor", cursor)
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint+"?"+params.Encode(), nil)
		if err != nil {
			return docs, fmt.Errorf("failed to build list request: %w", err)
		}
		req.Header.Set("xi-api-key", c.apiKey)

		resp, err := c.http.Do(req)
		if err != nil {
			return docs, fmt.Errorf("knowledge base listing failed: %w", err)
		}
		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			return docs, fmt.Errorf("failed to read listing response: %w", err)
		}

		if resp.StatusCode != http.StatusOK {
			logger.Log.Error().
				Int("status", resp.StatusCode).
				Str("body", string(body)).
				Msg("Error listing knowledge base documents")
			return docs, nil
		}

		var page listResponse
		if err := json.Unmarshal(body, &page); err != nil {
			return docs, fmt.Errorf("failed to decode listing response: %w", err)
		}
		for _, doc := range page.Documents {
			docs[doc.Name] = doc.ID
		}

		if !page.HasMore {
			break
		}
		cursor = page.NextCursor
	}

	return docs, nil
}

type uploadResponse struct {
	ID string `json:"id"`
}

// UploadDocument submits the file at filePath as a new knowledge-base
// document with the given display name and returns the assigned id.
func (c *Client) UploadDocument(ctx context.Context, name, filePath string) (string, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return "", fmt.Errorf("failed to open %s: %w", filePath, err)
	}
	defer f.Close()

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	if err := w.WriteField("name", name); err != nil {
		return "", fmt.Errorf("failed to write name field: %w", err)
	}

	header := textproto.MIMEHeader{}
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, name))
	header.Set("Content-Type", ContentTypeFor(name))
	part, err := w.CreatePart(header)
	if err != nil {
		return "", fmt.Errorf("failed to create file part: %w", err)
	}
	if _, err := io.Copy(part, f); err != nil {
		return "", fmt.Errorf("failed to read %s: %w", filePath, err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("failed to finalize multipart body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/convai/knowledge-base/file", &buf)
	if err != nil {
		return "", fmt.Errorf("failed to build upload request: %w", err)
	}
	req.Header.Set("xi-api-key", c.apiKey)
	req.Header.Set("Content-Type", w.FormDataContentType())

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("upload of %s failed: %w", name, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read upload response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("upload of %s returned status %d: %s", name, resp.StatusCode, string(body))
	}

	var result uploadResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return "", fmt.Errorf("failed to decode upload response: %w", err)
	}
	if result.ID == "" {
		return "", fmt.Errorf("upload of %s returned no document id", name)
	}
	return result.ID, nil
}

// DeleteDocument removes a document by id. Both 200 and 204 count as
// success, so deleting an already-deleted document is fine.
func (c *Client) DeleteDocument(ctx context.Context, id string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.baseURL+"/convai/knowledge-base/"+url.PathEscape(id), nil)
	if err != nil {
		return fmt.Errorf("failed to build delete request: %w", err)
	}
	req.Header.Set("xi-api-key", c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("delete of %s failed: %w", id, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("delete of %s returned status %d: %s", id, resp.StatusCode, string(body))
	}
	return nil
}

type knowledgeBaseEntry struct {
	Type      string `json:"type"`
	ID        string `json:"id"`
	Name      string `json:"name"`
	UsageMode string `json:"usage_mode"`
}

type agentPatch struct {
	ConversationConfig struct {
		Agent struct {
			Prompt struct {
				KnowledgeBase []knowledgeBaseEntry `json:"knowledge_base"`
			} `json:"prompt"`
		} `json:"agent"`
	} `json:"conversation_config"`
}

// UpdateAgentKnowledgeBase patches the agent so its knowledge-base list is
// exactly docs. The current agent is probed first as a best-effort sanity
// check; a failed probe only logs a warning and the patch proceeds.
func (c *Client) UpdateAgentKnowledgeBase(ctx context.Context, docs []DocumentRef) error {
	c.probeAgent(ctx)

	patch := agentPatch{}
	entries := make([]knowledgeBaseEntry, 0, len(docs))
	for _, doc := range docs {
		entries = append(entries, knowledgeBaseEntry{
			Type:      "file",
			ID:        doc.ID,
			Name:      doc.Name,
			UsageMode: "auto",
		})
	}
	patch.ConversationConfig.Agent.Prompt.KnowledgeBase = entries

	payload, err := json.Marshal(patch)
	if err != nil {
		return fmt.Errorf("failed to encode agent patch: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPatch, c.agentURL(), bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to build agent patch request: %w", err)
	}
	req.Header.Set("xi-api-key", c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("agent update failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("agent update returned status %d: %s", resp.StatusCode, string(body))
	}
	return nil
}

// probeAgent fetches the current agent configuration. The result does not
// change behavior; a broken agent state is still overwritten by the patch.
func (c *Client) probeAgent(ctx context.Context) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.agentURL(), nil)
	if err != nil {
		logger.Log.Warn().Err(err).Msg("Could not build agent probe request, proceeding with overwrite")
		return
	}
	req.Header.Set("xi-api-key", c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		logger.Log.Warn().Err(err).Msg("Could not fetch agent, proceeding with overwrite")
		return
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		logger.Log.Warn().
			Int("status", resp.StatusCode).
			Msg("Could not fetch agent, proceeding with overwrite")
	}
}

func (c *Client) agentURL() string {
	return c.baseURL + "/convai/agents/" + url.PathEscape(c.agentID)
}

var _ KnowledgeBase = (*Client)(nil)
