package vk

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/SevereCloud/vksdk/v2/api"
	"github.com/example/matchbot/internal/apperr"
	"github.com/example/matchbot/internal/logger"
	"github.com/example/matchbot/internal/messaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeAPI serves canned responses per method and records the form values it saw
type fakeAPI struct {
	mu        sync.Mutex
	responses map[string]string
	calls     map[string][]map[string]string
}

func newFakeAPI(responses map[string]string) (*fakeAPI, *httptest.Server) {
	fake := &fakeAPI{responses: responses, calls: map[string][]map[string]string{}}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		method := strings.TrimPrefix(r.URL.Path, "/method/")
		_ = r.ParseForm()
		form := map[string]string{}
		for k := range r.Form {
			form[k] = r.Form.Get(k)
		}
		fake.mu.Lock()
		fake.calls[method] = append(fake.calls[method], form)
		body, ok := fake.responses[method]
		fake.mu.Unlock()
		if !ok {
			http.Error(w, "no such method", http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, body)
	}))
	return fake, srv
}

// sentKeyboard decodes the keyboard parameter of messages.send
type sentKeyboard struct {
	OneTime bool `json:"one_time"`
	Inline  bool `json:"inline"`
	Buttons [][]struct {
		Action struct {
			Type    string `json:"type"`
			Label   string `json:"label"`
			Payload string `json:"payload"`
		} `json:"action"`
		Color string `json:"color"`
	} `json:"buttons"`
}

func (a *fakeAPI) lastCall(method string) map[string]string {
	a.mu.Lock()
	defer a.mu.Unlock()
	calls := a.calls[method]
	if len(calls) == 0 {
		return nil
	}
	return calls[len(calls)-1]
}

func newTestClient(t *testing.T, srv *httptest.Server) *api.VK {
	t.Helper()
	c, err := NewClient("secret", "5.199", 2*time.Second, WithAPIURL(srv.URL+"/method"), WithRateLimit(0))
	require.NoError(t, err)
	return c
}

func TestNewClientRequiresToken(t *testing.T) {
	_, err := NewClient("", "", time.Second)
	assert.ErrorIs(t, err, apperr.ErrAuth)
}

func TestCallSendsTokenAndVersion(t *testing.T) {
	fake, srv := newFakeAPI(map[string]string{"users.get": `{"response":[{"id":1,"first_name":"Павел","last_name":"Дуров","sex":2,"city":{"id":2,"title":"Санкт-Петербург"}}]}`})
	defer srv.Close()

	user, err := NewDirectory(newTestClient(t, srv)).GetUser(context.Background(), 1)
	require.NoError(t, err)

	call := fake.lastCall("users.get")
	assert.Equal(t, "secret", call["access_token"])
	assert.Equal(t, "5.199", call["v"])
	assert.Equal(t, "1", call["user_ids"])
	assert.Equal(t, "city,sex", call["fields"])

	stored := user.ToUser()
	assert.Equal(t, int64(1), stored.UserID)
	assert.Equal(t, int64(2), stored.CityID)
	assert.Equal(t, "Санкт-Петербург", stored.CityTitle)
	assert.Equal(t, "https://vk.com/id1", stored.ProfileURL)
}

func TestClassifyMapsErrorCodes(t *testing.T) {
	cases := []struct {
		code api.ErrorType
		kind error
	}{
		{api.ErrAuth, apperr.ErrAuth},
		{api.ErrTooMany, apperr.ErrRateLimit},
		{api.ErrFlood, apperr.ErrRateLimit},
		{api.ErrRateLimit, apperr.ErrRateLimit},
		{api.ErrUserDeleted, apperr.ErrNotFound},
		{api.ErrPrivateProfile, apperr.ErrNotFound},
		{api.ErrParamUserID, apperr.ErrNotFound},
		{203, apperr.ErrTransport},
	}
	for _, tc := range cases {
		t.Run(fmt.Sprint(int(tc.code)), func(t *testing.T) {
			err := classify("groups.getMembers", &api.Error{Code: tc.code, Message: "raw"})
			assert.ErrorIs(t, err, tc.kind)

			var vkErr *api.Error
			require.True(t, errors.As(err, &vkErr))
			assert.Equal(t, tc.code, vkErr.Code)
			assert.Contains(t, err.Error(), "groups.getMembers")
		})
	}

	assert.ErrorIs(t, classify("users.get", errors.New("boom")), apperr.ErrTransport)
}

func TestCallMapsAPIErrors(t *testing.T) {
	_, srv := newFakeAPI(map[string]string{
		"groups.getMembers": `{"error":{"error_code":5,"error_msg":"User authorization failed"}}`,
	})
	defer srv.Close()

	_, err := NewDirectory(newTestClient(t, srv)).GetMembers(context.Background(), 1, 0, MembersPageSize)
	require.Error(t, err)
	assert.ErrorIs(t, err, apperr.ErrAuth)
	assert.ErrorIs(t, err, api.ErrAuth)
}

func TestCallTransportFailures(t *testing.T) {
	_, srv := newFakeAPI(map[string]string{"users.get": `not json`})
	client := newTestClient(t, srv)

	_, err := NewDirectory(client).GetUser(context.Background(), 1)
	assert.ErrorIs(t, err, apperr.ErrTransport)

	_, err = NewDirectory(client).FindCity(context.Background(), "Москва")
	assert.ErrorIs(t, err, apperr.ErrTransport, "unknown method answers 404")

	srv.Close()
	_, err = NewDirectory(client).GetUser(context.Background(), 1)
	assert.ErrorIs(t, err, apperr.ErrTransport)
}

func TestDirectoryQueries(t *testing.T) {
	fake, srv := newFakeAPI(map[string]string{
		"database.getCities": `{"response":{"count":1,"items":[{"id":99,"title":"Казань"}]}}`,
		"groups.search":      `{"response":{"count":1,"items":[{"id":555,"name":"Знакомства Казань","screen_name":"kzn"}]}}`,
		"groups.getMembers": `{"response":{"count":2,"items":[
			{"id":10,"first_name":"Мария","last_name":"А","sex":1,"city":{"id":99,"title":"Казань"},"can_write_private_message":1},
			{"id":11,"first_name":"Олег","last_name":"Б","sex":2,"can_write_private_message":0,"is_closed":true,"can_access_closed":false}
		]}}`,
		"photos.get": `{"response":{"count":1,"items":[{"id":457,"owner_id":10,"sizes":[
			{"type":"s","url":"https://img/s.jpg","width":75,"height":75},
			{"type":"x","url":"https://img/x.jpg","width":604,"height":604},
			{"type":"m","url":"https://img/m.jpg","width":130,"height":130}
		]}]}}`,
	})
	defer srv.Close()
	dir := NewDirectory(newTestClient(t, srv))
	ctx := context.Background()

	city, err := dir.FindCity(ctx, "казань")
	require.NoError(t, err)
	assert.Equal(t, &City{ID: 99, Title: "Казань"}, city)
	assert.Equal(t, "1", fake.lastCall("database.getCities")["country_id"])

	community, err := dir.SearchCommunity(ctx, 99, "Казань")
	require.NoError(t, err)
	assert.Equal(t, int64(555), community.ID)
	call := fake.lastCall("groups.search")
	assert.Equal(t, "99", call["city_id"])
	assert.Equal(t, "6", call["sort"])
	assert.Equal(t, "1", call["count"])

	members, err := dir.GetMembers(ctx, 555, 1000, MembersPageSize)
	require.NoError(t, err)
	require.Len(t, members, 2)
	assert.Equal(t, int64(99), members[0].CityID())
	assert.True(t, members[0].CanMessage())
	assert.False(t, members[0].PhotosHidden())
	assert.Equal(t, int64(0), members[1].CityID())
	assert.False(t, members[1].CanMessage())
	assert.True(t, members[1].PhotosHidden())
	call = fake.lastCall("groups.getMembers")
	assert.Equal(t, "1000", call["offset"])
	assert.Equal(t, "1000", call["count"])
	assert.Contains(t, call["fields"], "can_write_private_message")

	photo, err := dir.GetLatestPhoto(ctx, 10)
	require.NoError(t, err)
	require.NotNil(t, photo)
	assert.Equal(t, "photo10_457", photo.Attachment())
	assert.Equal(t, "https://img/x.jpg", photo.LargestURL())
	assert.Equal(t, "1", fake.lastCall("photos.get")["rev"])
}

func TestDirectoryNotFound(t *testing.T) {
	_, srv := newFakeAPI(map[string]string{
		"database.getCities": `{"response":{"count":0,"items":[]}}`,
		"groups.search":      `{"response":{"count":0,"items":[]}}`,
		"users.get":          `{"response":[]}`,
		"photos.get":         `{"response":{"count":0,"items":[]}}`,
	})
	defer srv.Close()
	dir := NewDirectory(newTestClient(t, srv))
	ctx := context.Background()

	_, err := dir.FindCity(ctx, "Атлантида")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	_, err = dir.SearchCommunity(ctx, 1, "x")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	_, err = dir.GetUser(ctx, 1)
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	photo, err := dir.GetLatestPhoto(ctx, 1)
	require.NoError(t, err)
	assert.Nil(t, photo)
}

func TestSendRendersKeyboardAndAttachment(t *testing.T) {
	fake, srv := newFakeAPI(map[string]string{"messages.send": `{"response":1}`})
	defer srv.Close()
	tr := NewTransport(newTestClient(t, srv), 1, logger.Nop())

	err := tr.Send(context.Background(), messaging.Message{
		RecipientID: 42,
		Text:        "Мария А",
		Attachment:  "photo10_457",
		Keyboard: &messaging.Keyboard{OneTime: true, Inline: true, Rows: [][]messaging.Action{{
			{Label: "Следующий", Color: messaging.ColorPrimary, Payload: `{"command":"next_match","index":1}`},
			{Label: "Меню"},
		}}},
	})
	require.NoError(t, err)

	call := fake.lastCall("messages.send")
	assert.Equal(t, "42", call["user_id"])
	assert.Equal(t, "Мария А", call["message"])
	assert.Equal(t, "photo10_457", call["attachment"])
	assert.Equal(t, "0", call["random_id"])

	var kb sentKeyboard
	require.NoError(t, json.Unmarshal([]byte(call["keyboard"]), &kb))
	assert.True(t, kb.Inline)
	assert.False(t, kb.OneTime, "inline keyboards are never one-time")
	require.Len(t, kb.Buttons, 1)
	require.Len(t, kb.Buttons[0], 2)
	assert.Equal(t, "text", kb.Buttons[0][0].Action.Type)
	assert.Equal(t, `{"command":"next_match","index":1}`, kb.Buttons[0][0].Action.Payload)
	assert.Equal(t, "primary", kb.Buttons[0][0].Color)
	assert.Equal(t, "secondary", kb.Buttons[0][1].Color)
}

func TestSendWithoutKeyboard(t *testing.T) {
	fake, srv := newFakeAPI(map[string]string{"messages.send": `{"response":1}`})
	defer srv.Close()
	tr := NewTransport(newTestClient(t, srv), 1, logger.Nop())

	require.NoError(t, tr.Send(context.Background(), messaging.Message{RecipientID: 1, Text: "hi"}))
	call := fake.lastCall("messages.send")
	_, hasKeyboard := call["keyboard"]
	_, hasAttachment := call["attachment"]
	assert.False(t, hasKeyboard)
	assert.False(t, hasAttachment)
}

func TestListenDeliversPrivateMessages(t *testing.T) {
	var (
		mu        sync.Mutex
		polls     int
		delivered bool
	)
	mux := http.NewServeMux()
	srv := httptest.NewServer(mux)
	defer srv.Close()

	mux.HandleFunc("/method/groups.getLongPollServer", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"response":{"key":"k","server":"%s/poll","ts":"1"}}`, srv.URL)
	})
	mux.HandleFunc("/poll", func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		polls++
		first, done := polls == 1, delivered
		delivered = delivered || !first
		mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		switch {
		case first:
			fmt.Fprint(w, `{"failed":1,"ts":"5"}`)
		case !done:
			fmt.Fprint(w, `{"ts":"6","updates":[
				{"type":"message_new","object":{"message":{"id":1,"from_id":7,"peer_id":7,"text":"/start","out":0}},"group_id":1},
				{"type":"message_new","object":{"message":{"id":2,"from_id":8,"peer_id":2000000001,"text":"chat","out":0}},"group_id":1},
				{"type":"message_reply","object":{"id":3,"from_id":7,"peer_id":7,"text":"reply","out":1},"group_id":1},
				{"type":"message_new","object":{"message":{"id":4,"from_id":7,"peer_id":7,"text":"","payload":"{\"command\":\"next_match\",\"index\":2}","out":0}},"group_id":1}
			]}`)
		default:
			select {
			case <-r.Context().Done():
			case <-time.After(100 * time.Millisecond):
			}
			fmt.Fprint(w, `{"ts":"7","updates":[]}`)
		}
	})

	tr := NewTransport(newTestClient(t, srv), 1, logger.Nop())
	tr.wait = 1
	tr.retryDelay = 10 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	var got []messaging.Event
	done := make(chan error, 1)
	go func() {
		done <- tr.Listen(ctx, func(_ context.Context, ev messaging.Event) {
			mu.Lock()
			got = append(got, ev)
			n := len(got)
			mu.Unlock()
			if n == 2 {
				cancel()
			}
		})
	}()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("listen did not stop")
	}

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, got, 2)
	assert.Equal(t, messaging.Event{Type: "message_new", Text: "/start", SenderID: 7}, got[0])
	assert.Equal(t, `{"command":"next_match","index":2}`, got[1].Payload)
}

func TestListenStopsOnAuthError(t *testing.T) {
	_, srv := newFakeAPI(map[string]string{
		"groups.getLongPollServer": `{"error":{"error_code":5,"error_msg":"invalid token"}}`,
	})
	defer srv.Close()
	tr := NewTransport(newTestClient(t, srv), 1, logger.Nop())

	err := tr.Listen(context.Background(), func(context.Context, messaging.Event) {})
	assert.ErrorIs(t, err, apperr.ErrAuth)
}
