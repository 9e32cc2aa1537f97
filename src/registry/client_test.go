package registry

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bitte-ai/go-mcp-proxy/src/errs"
	"github.com/bitte-ai/go-mcp-proxy/src/json"
	"github.com/bitte-ai/go-mcp-proxy/src/tools"
)

type recorded struct {
	path, query, auth, body string
}

func newServers(t *testing.T, registry, runtime http.HandlerFunc) (*Client, *[]recorded) {
	t.Helper()
	var calls []recorded
	wrap := func(h http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			b, _ := io.ReadAll(r.Body)
			calls = append(calls, recorded{r.URL.Path, r.URL.RawQuery, r.Header.Get("Authorization"), string(b)})
			h(w, r)
		}
	}
	reg := httptest.NewServer(wrap(registry))
	rt := httptest.NewServer(wrap(runtime))
	t.Cleanup(reg.Close)
	t.Cleanup(rt.Close)
	return NewClient(Options{RegistryURL: reg.URL, RuntimeURL: rt.URL, APIKey: "secret"}, nil), &calls
}

func TestListAgentsQueryAndDecode(t *testing.T) {
	c, calls := newServers(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{"id":"a1","name":"Swap Agent","chainIds":[1,"8453"],"verified":true,"tools":[]}]`))
	}, nil)

	agents, err := c.ListAgents(context.Background(), AgentQuery{VerifiedOnly: true, Limit: 10, ChainIDs: "1,8453", Category: "defi"})
	require.NoError(t, err)
	require.Len(t, agents, 1)
	assert.Equal(t, "Swap Agent", agents[0].Name)
	assert.Equal(t, []ChainID{"1", "8453"}, agents[0].ChainIDs)

	require.Len(t, *calls, 1)
	assert.Equal(t, "/api/agents", (*calls)[0].path)
	assert.Equal(t, "verifiedOnly=true&limit=10&offset=0&chainIds=1%2C8453&category=defi", (*calls)[0].query)
	assert.Empty(t, (*calls)[0].auth)
}

func TestListAgentsNonList(t *testing.T) {
	c, _ := newServers(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"error":"maintenance"}`))
	}, nil)
	agents, err := c.ListAgents(context.Background(), AgentQuery{})
	require.NoError(t, err)
	assert.Empty(t, agents)
}

func TestListAgentsSkipsMalformedEntries(t *testing.T) {
	c, _ := newServers(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{"id":"a1","name":"Good Agent","verified":true},{"id":"a2","pings":"many"}]`))
	}, nil)
	agents, err := c.ListAgents(context.Background(), AgentQuery{})
	require.NoError(t, err)
	require.Len(t, agents, 1)
	assert.Equal(t, "a1", agents[0].ID)
}

func TestListToolsSkipsMalformedEntries(t *testing.T) {
	c, _ := newServers(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[
			{"id":"t1","type":"function","function":{"name":"get-quote","description":"Quote"},"execution":{"baseUrl":"q.example","path":"/quote","httpMethod":"GET"}},
			{"id":"t2","type":"function","function":{"name":"bad","parameters":{"type":"object","required":"amount"}}}
		]`))
	}, nil)
	list, err := c.ListTools(context.Background())
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "get-quote", list[0].Name)
}

func TestListToolsConvertsPluginTools(t *testing.T) {
	c, _ := newServers(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[
			{"id":"t1","type":"function","function":{"name":"get-quote","description":"Quote"},"execution":{"baseUrl":"q.example","path":"/quote","httpMethod":"GET"}},
			{"id":"t2","type":"function","function":{"name":"generate-image","description":"Primitive"}}
		]`))
	}, nil)
	list, err := c.ListTools(context.Background())
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, tools.KindHTTP, list[0].Kind)
	assert.Equal(t, SourceName, list[0].Source)
	assert.Equal(t, "t1", list[0].ID)
	assert.Error(t, list[1].Validate())
}

func TestGetAgentNotFound(t *testing.T) {
	c, _ := newServers(t, func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}, nil)
	_, err := c.GetAgent(context.Background(), "missing")
	assert.True(t, errs.IsNotFound(err))
}

func TestChatUsesRuntimeWithBearer(t *testing.T) {
	c, calls := newServers(t, nil, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("hello from agent"))
	})
	reply, err := c.Chat(context.Background(), ChatRequest{ID: "s1", AgentID: "a1", Messages: []Message{{Role: "user", Content: "hi"}}})
	require.NoError(t, err)
	assert.Equal(t, "hello from agent", reply)

	call := (*calls)[0]
	assert.Equal(t, "/chat", call.path)
	assert.Equal(t, "Bearer secret", call.auth)
	var body ChatRequest
	require.NoError(t, json.Unmarshal([]byte(call.body), &body))
	assert.Equal(t, "a1", body.AgentID)
	assert.Equal(t, "", body.AccountID)
	assert.Equal(t, "hi", body.Messages[0].Content)

	_, err = c.Chat(WithAPIKey(context.Background(), "override"), ChatRequest{ID: "s2"})
	require.NoError(t, err)
	assert.Equal(t, "Bearer override", (*calls)[1].auth)
}

func TestCallNon2xx(t *testing.T) {
	c, _ := newServers(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}, nil)
	_, err := c.Call(context.Background(), "/api/agents", http.MethodGet, nil)
	var herr *errs.HTTPError
	require.ErrorAs(t, err, &herr)
	assert.Equal(t, http.StatusBadGateway, herr.Status)
}

func TestAgentFromTool(t *testing.T) {
	tool := tools.NewNativeTool("agentkit", "run_agent", "Runs an agent", tools.ObjectSchema(map[string]interface{}{
		"agentId": map[string]interface{}{"type": "string", "default": "agent-7"},
	}), nil)
	assert.True(t, LooksLikeAgent(tool))
	agent := AgentFromTool(tool)
	assert.Equal(t, "agent-7", agent.ID)
	assert.Equal(t, "agentkit", agent.Source)
	assert.True(t, agent.Verified)

	plain := tools.NewNativeTool("goat", "transfer", "", tools.ObjectSchema(nil), nil)
	assert.False(t, LooksLikeAgent(plain))
	assert.Equal(t, "transfer", AgentFromTool(plain).ID)
}
