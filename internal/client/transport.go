package client

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"chatcore/internal/entity"
	"chatcore/internal/service"
)

// Transport is the wire the outbox speaks over. The HTTP implementation
// below talks to the server's /v1 API; tests substitute a scripted fake.
type Transport interface {
	SendMessage(conversationID, content, replyToID string) (*entity.Message, error)
	EditMessage(messageID, content string) error
	DeleteMessage(messageID string) error
	MarkRead(conversationID string, messageIDs []string) (int, error)
	FetchPage(conversationID string, before time.Time, limit int) (*service.MessagePage, error)
	Poll(marks service.Watermarks) (*service.ChangeSet, error)
}

// HTTPTransport calls the chat API over HTTP with a cookie-bearing client.
type HTTPTransport struct {
	base   string
	client *http.Client
}

func NewHTTPTransport(base string, client *http.Client) *HTTPTransport {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPTransport{base: base, client: client}
}

func (t *HTTPTransport) SendMessage(conversationID, content, replyToID string) (*entity.Message, error) {
	var msg entity.Message
	err := t.do("POST", "/v1/conversations/"+url.PathEscape(conversationID)+"/messages", map[string]string{
		"content":   content,
		"replyToId": replyToID,
	}, &msg)
	if err != nil {
		return nil, err
	}
	return &msg, nil
}

func (t *HTTPTransport) EditMessage(messageID, content string) error {
	return t.do("PATCH", "/v1/messages/"+url.PathEscape(messageID), map[string]string{"content": content}, nil)
}

func (t *HTTPTransport) DeleteMessage(messageID string) error {
	return t.do("DELETE", "/v1/messages/"+url.PathEscape(messageID), nil, nil)
}

func (t *HTTPTransport) MarkRead(conversationID string, messageIDs []string) (int, error) {
	var out struct {
		Marked int `json:"marked"`
	}
	err := t.do("POST", "/v1/conversations/"+url.PathEscape(conversationID)+"/read", map[string]interface{}{
		"messageIds": messageIDs,
	}, &out)
	return out.Marked, err
}

func (t *HTTPTransport) FetchPage(conversationID string, before time.Time, limit int) (*service.MessagePage, error) {
	path := "/v1/conversations/" + url.PathEscape(conversationID) + "/messages"
	q := url.Values{}
	if !before.IsZero() {
		q.Set("before", before.Format(time.RFC3339Nano))
	}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	var page service.MessagePage
	if err := t.do("GET", path, nil, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

func (t *HTTPTransport) Poll(marks service.Watermarks) (*service.ChangeSet, error) {
	var set service.ChangeSet
	if err := t.do("POST", "/v1/feed/poll", marks, &set); err != nil {
		return nil, err
	}
	return &set, nil
}

func (t *HTTPTransport) do(method, path string, body interface{}, into interface{}) error {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}

	req, err := http.NewRequest(method, t.base+path, &buf)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var apiErr struct {
			Error string `json:"error"`
		}
		json.NewDecoder(resp.Body).Decode(&apiErr)
		if apiErr.Error != "" {
			return fmt.Errorf("%s %s: %s", method, path, apiErr.Error)
		}
		return fmt.Errorf("%s %s: status %d", method, path, resp.StatusCode)
	}

	if into != nil {
		return json.NewDecoder(resp.Body).Decode(into)
	}
	return nil
}
