package taskboard

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/go-playground/assert/v2"
)

func newTestServer(t *testing.T) (*httptest.Server, *ConnRegistry, func()) {
	cancelCtx, cancel := context.WithCancel(context.Background())

	registry := NewConnRegistry()
	manager := NewTaskManagerWithDefaults(cancelCtx, NewMemoryTaskStore(), registry)
	auth := NewAuthService(NewMemoryUserStore(), NewAuthGateWithDefaults([]byte("test-key")))
	server := NewServerWithDefaults(cancelCtx, manager, auth, registry)

	testServer := httptest.NewServer(server.Handler())
	closeAll := func() {
		testServer.Close()
		manager.Close()
		server.Close()
		cancel()
	}
	return testServer, registry, closeAll
}

func doJson(t *testing.T, method string, requestUrl string, token string, body string) (int, map[string]any) {
	var reader *bytes.Reader
	if body != "" {
		reader = bytes.NewReader([]byte(body))
	} else {
		reader = bytes.NewReader(nil)
	}
	request, err := http.NewRequest(method, requestUrl, reader)
	assert.Equal(t, nil, err)
	if token != "" {
		request.Header.Set("x-access-token", token)
	}

	response, err := http.DefaultClient.Do(request)
	assert.Equal(t, nil, err)
	defer response.Body.Close()

	out := map[string]any{}
	json.NewDecoder(response.Body).Decode(&out)
	return response.StatusCode, out
}

func registerTestUser(t *testing.T, testServer *httptest.Server) string {
	status, out := doJson(
		t,
		http.MethodPost,
		fmt.Sprintf("%s/auth/register", testServer.URL),
		"",
		`{"email": "alex@example.com", "password": "hunter2"}`,
	)
	assert.Equal(t, http.StatusCreated, status)
	token, _ := out["token"].(string)
	assert.NotEqual(t, "", token)
	return token
}

func TestServerAuthGate(t *testing.T) {
	testServer, _, closeAll := newTestServer(t)
	defer closeAll()

	// the mutation surface requires a prior authorization check
	status, _ := doJson(t, http.MethodGet, fmt.Sprintf("%s/tasks", testServer.URL), "", "")
	assert.Equal(t, http.StatusForbidden, status)

	status, _ = doJson(t, http.MethodGet, fmt.Sprintf("%s/tasks", testServer.URL), "bad-token", "")
	assert.Equal(t, http.StatusUnauthorized, status)

	token := registerTestUser(t, testServer)
	status, _ = doJson(t, http.MethodGet, fmt.Sprintf("%s/tasks", testServer.URL), token, "")
	assert.Equal(t, http.StatusOK, status)
}

func TestServerTaskCrud(t *testing.T) {
	testServer, _, closeAll := newTestServer(t)
	defer closeAll()

	token := registerTestUser(t, testServer)
	tasksUrl := fmt.Sprintf("%s/tasks", testServer.URL)

	status, created := doJson(t, http.MethodPost, tasksUrl, token, `{"description": "write spec"}`)
	assert.Equal(t, http.StatusCreated, status)
	assert.Equal(t, "write spec", created["description"])
	taskId, _ := created["id"].(string)
	assert.NotEqual(t, "", taskId)

	status, updated := doJson(
		t,
		http.MethodPatch,
		fmt.Sprintf("%s/%s", tasksUrl, taskId),
		token,
		`{"status": "done"}`,
	)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "done", updated["status"])
	assert.Equal(t, "write spec", updated["description"])

	status, errOut := doJson(t, http.MethodPost, tasksUrl, token, `{"description": ""}`)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.NotEqual(t, nil, errOut["causes"])

	status, _ = doJson(t, http.MethodPatch, fmt.Sprintf("%s/%s", tasksUrl, NewId()), token, `{"status": "x"}`)
	assert.Equal(t, http.StatusNotFound, status)

	status, _ = doJson(t, http.MethodPatch, fmt.Sprintf("%s/not-an-id", tasksUrl), token, `{"status": "x"}`)
	assert.Equal(t, http.StatusBadRequest, status)

	status, deleted := doJson(t, http.MethodDelete, fmt.Sprintf("%s/%s", tasksUrl, taskId), token, "")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, true, deleted["deleted"])

	status, _ = doJson(t, http.MethodDelete, fmt.Sprintf("%s/%s", tasksUrl, taskId), token, "")
	assert.Equal(t, http.StatusNotFound, status)
}

func TestServerObserverReceivesEvents(t *testing.T) {
	testServer, registry, closeAll := newTestServer(t)
	defer closeAll()

	token := registerTestUser(t, testServer)

	wsUrl := fmt.Sprintf(
		"%s/ws?token=%s",
		strings.Replace(testServer.URL, "http", "ws", 1),
		token,
	)
	ws, _, err := websocket.DefaultDialer.Dial(wsUrl, nil)
	assert.Equal(t, nil, err)
	defer ws.Close()

	// wait for the observer to be registered
	for i := 0; i < 100 && registry.Size() == 0; i += 1 {
		time.Sleep(10 * time.Millisecond)
	}
	assert.Equal(t, 1, registry.Size())

	status, created := doJson(
		t,
		http.MethodPost,
		fmt.Sprintf("%s/tasks", testServer.URL),
		token,
		`{"description": "write spec"}`,
	)
	assert.Equal(t, http.StatusCreated, status)

	ws.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, message, err := ws.ReadMessage()
	assert.Equal(t, nil, err)

	event := map[string]any{}
	err = json.Unmarshal(message, &event)
	assert.Equal(t, nil, err)
	assert.Equal(t, string(EventKindTaskAdded), event["kind"])
	payload := event["payload"].(map[string]any)
	assert.Equal(t, created["id"], payload["id"])
}

func TestServerWsRequiresAuth(t *testing.T) {
	testServer, _, closeAll := newTestServer(t)
	defer closeAll()

	wsUrl := fmt.Sprintf("%s/ws", strings.Replace(testServer.URL, "http", "ws", 1))
	_, response, err := websocket.DefaultDialer.Dial(wsUrl, nil)
	assert.NotEqual(t, nil, err)
	assert.Equal(t, http.StatusForbidden, response.StatusCode)
}
