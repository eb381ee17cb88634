package server

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"example.com/openchat/internal/chat"
	"example.com/openchat/internal/credentials"
	"example.com/openchat/internal/middleware"
	"example.com/openchat/internal/models"
)

//
// --- Helpers ---
//

const testSecret = "test-secret"

var fixedNow = time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

// generate JWT token for test user
func makeTestJWT(userID string) string {
	tokenStr, err := middleware.IssueToken([]byte(testSecret), userID, time.Hour, time.Now())
	if err != nil {
		panic(err)
	}
	return tokenStr
}

// create HTTP request with JWT token
func sendJSONRequest(t *testing.T, method, url string, body any, token string, expectedStatus int) *http.Response {
	t.Helper()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("json.Marshal failed: %v", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		t.Fatalf("NewRequest failed: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	t.Cleanup(func() { resp.Body.Close() })

	if resp.StatusCode != expectedStatus {
		b, _ := io.ReadAll(resp.Body)
		t.Fatalf("expected %d, got %d: %s", expectedStatus, resp.StatusCode, string(b))
	}
	return resp
}

func decodeBody[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(resp.Body).Decode(&v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return v
}

//
// --- Setup test server ---
//

func setupTestServer(t *testing.T) (*Server, *httptest.Server) {
	t.Helper()
	reg := chat.NewRegistry(chat.WithHasher(credentials.Argon2{
		Memory: 8 * 1024, Iterations: 1, Parallelism: 1, SaltLength: 16, KeyLength: 32,
	}))
	s := newServer(reg, testSecret, time.Hour)
	tick := fixedNow
	s.now = func() time.Time {
		tick = tick.Add(time.Second)
		return tick
	}

	ts := httptest.NewServer(s.routes())
	t.Cleanup(ts.Close)
	return s, ts
}

func registerHelper(t *testing.T, ts *httptest.Server, username, password string) authenticatedUser {
	t.Helper()
	resp := sendJSONRequest(t, http.MethodPost, ts.URL+"/users",
		registerRequest{Username: username, Password: password, About: "About " + username}, "", http.StatusCreated)
	return decodeBody[authenticatedUser](t, resp)
}

//
// --- Tests ---
//

func TestRegisterUser(t *testing.T) {
	_, ts := setupTestServer(t)

	user := registerHelper(t, ts, "Alice", "alki324d")
	if user.ID == "" || user.Token == "" {
		t.Fatalf("expected id and token, got %+v", user)
	}
	if user.Username != "Alice" || user.About != "About Alice" {
		t.Fatalf("unexpected user %+v", user)
	}
}

func TestRegisterUser_Rejected(t *testing.T) {
	_, ts := setupTestServer(t)
	registerHelper(t, ts, "Alice", "alki324d")

	resp := sendJSONRequest(t, http.MethodPost, ts.URL+"/users",
		registerRequest{Username: "Alice", Password: "other"}, "", http.StatusBadRequest)
	b, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(b), chat.ErrDuplicateAccount.Msg) {
		t.Fatalf("expected duplicate message, got %q", string(b))
	}

	sendJSONRequest(t, http.MethodPost, ts.URL+"/users",
		registerRequest{Username: "   "}, "", http.StatusBadRequest)
	sendJSONRequest(t, http.MethodPost, ts.URL+"/users",
		registerRequest{Username: strings.Repeat("a", 51)}, "", http.StatusBadRequest)
}

// publication clock is fixed in the past, tokens must still be valid now
func TestIssuedTokensUseWallClock(t *testing.T) {
	_, ts := setupTestServer(t)
	alice := registerHelper(t, ts, "Alice", "alki324d")

	subject, err := middleware.ParseToken([]byte(testSecret), alice.Token)
	if err != nil {
		t.Fatalf("registration token rejected: %v", err)
	}
	if subject != alice.ID {
		t.Fatalf("expected subject %s, got %s", alice.ID, subject)
	}

	resp := sendJSONRequest(t, http.MethodPost, ts.URL+"/users/"+alice.ID+"/timeline",
		publishRequest{Text: "hello"}, alice.Token, http.StatusCreated)
	post := decodeBody[models.Post](t, resp)
	if !post.Created.After(fixedNow) || post.Created.After(fixedNow.Add(time.Minute)) {
		t.Fatalf("publication must use the server publication clock, got %v", post.Created)
	}
}

func TestLogin(t *testing.T) {
	_, ts := setupTestServer(t)
	alice := registerHelper(t, ts, "Alice", "alki324d")

	resp := sendJSONRequest(t, http.MethodPost, ts.URL+"/login",
		loginRequest{Username: "Alice", Password: "alki324d"}, "", http.StatusOK)
	got := decodeBody[authenticatedUser](t, resp)
	if got.ID != alice.ID || got.Token == "" {
		t.Fatalf("unexpected login response %+v", got)
	}

	resp = sendJSONRequest(t, http.MethodPost, ts.URL+"/login",
		loginRequest{Username: "Alice", Password: "wrong"}, "", http.StatusNotFound)
	b, _ := io.ReadAll(resp.Body)
	if strings.TrimSpace(string(b)) != "Invalid credentials." {
		t.Fatalf("unexpected body %q", string(b))
	}

	sendJSONRequest(t, http.MethodPost, ts.URL+"/login",
		loginRequest{Username: "Nobody", Password: "x"}, "", http.StatusNotFound)
}

// full flow: register -> follow -> publish -> wall
func TestFollowAndWallFlow(t *testing.T) {
	_, ts := setupTestServer(t)

	alice := registerHelper(t, ts, "Alice", "a")
	bob := registerHelper(t, ts, "Bob", "b")

	sendJSONRequest(t, http.MethodPost, ts.URL+"/followings",
		models.Follow{FollowerID: alice.ID, FolloweeID: bob.ID}, alice.Token, http.StatusCreated)

	resp := sendJSONRequest(t, http.MethodPost, ts.URL+"/users/"+bob.ID+"/timeline",
		publishRequest{Text: "Hello from Bob"}, bob.Token, http.StatusCreated)
	post := decodeBody[models.Post](t, resp)
	if post.ID == "" || post.AuthorID != bob.ID || post.Text != "Hello from Bob" {
		t.Fatalf("unexpected post %+v", post)
	}

	sendJSONRequest(t, http.MethodPost, ts.URL+"/users/"+alice.ID+"/timeline",
		publishRequest{Text: "Hello from Alice"}, alice.Token, http.StatusCreated)

	resp = sendJSONRequest(t, http.MethodGet, ts.URL+"/users/"+alice.ID+"/wall", nil, "", http.StatusOK)
	wall := decodeBody[[]models.Post](t, resp)
	if len(wall) != 2 {
		t.Fatalf("expected 2 posts on wall, got %d", len(wall))
	}
	if wall[0].Text != "Hello from Bob" || wall[1].Text != "Hello from Alice" {
		t.Fatalf("wall not in publication order: %+v", wall)
	}
	if wall[0].ID != post.ID {
		t.Fatalf("post id changed between responses: %s vs %s", wall[0].ID, post.ID)
	}

	resp = sendJSONRequest(t, http.MethodGet, ts.URL+"/users/"+bob.ID+"/wall", nil, "", http.StatusOK)
	if bobWall := decodeBody[[]models.Post](t, resp); len(bobWall) != 1 {
		t.Fatalf("wall must be one-way, got %d posts for Bob", len(bobWall))
	}

	resp = sendJSONRequest(t, http.MethodGet, ts.URL+"/users/"+alice.ID+"/timeline", nil, "", http.StatusOK)
	if timeline := decodeBody[[]models.Post](t, resp); len(timeline) != 1 || timeline[0].Text != "Hello from Alice" {
		t.Fatalf("unexpected timeline %+v", timeline)
	}

	resp = sendJSONRequest(t, http.MethodGet, ts.URL+"/followings/"+alice.ID+"/followees", nil, "", http.StatusOK)
	followees := decodeBody[[]models.User](t, resp)
	if len(followees) != 1 || followees[0].ID != bob.ID || followees[0].Username != "Bob" {
		t.Fatalf("unexpected followees %+v", followees)
	}
}

func TestEmptyListsAreArrays(t *testing.T) {
	_, ts := setupTestServer(t)
	alice := registerHelper(t, ts, "Alice", "a")

	for _, path := range []string{
		"/users/" + alice.ID + "/timeline",
		"/users/" + alice.ID + "/wall",
		"/followings/" + alice.ID + "/followees",
	} {
		resp := sendJSONRequest(t, http.MethodGet, ts.URL+path, nil, "", http.StatusOK)
		b, _ := io.ReadAll(resp.Body)
		if strings.TrimSpace(string(b)) != "[]" {
			t.Fatalf("%s: expected [], got %q", path, string(b))
		}
	}
}

func TestPublish_InappropriateContent(t *testing.T) {
	_, ts := setupTestServer(t)
	alice := registerHelper(t, ts, "Alice", "a")

	sendJSONRequest(t, http.MethodPost, ts.URL+"/users/"+alice.ID+"/timeline",
		publishRequest{Text: "I love Ice Cream"}, alice.Token, http.StatusBadRequest)

	resp := sendJSONRequest(t, http.MethodGet, ts.URL+"/users/"+alice.ID+"/timeline", nil, "", http.StatusOK)
	if timeline := decodeBody[[]models.Post](t, resp); len(timeline) != 0 {
		t.Fatalf("rejected publication must not be stored, got %+v", timeline)
	}
}

func TestProtectedRoutes_Authorization(t *testing.T) {
	_, ts := setupTestServer(t)
	alice := registerHelper(t, ts, "Alice", "a")
	bob := registerHelper(t, ts, "Bob", "b")

	// no token
	sendJSONRequest(t, http.MethodPost, ts.URL+"/users/"+alice.ID+"/timeline",
		publishRequest{Text: "hi"}, "", http.StatusUnauthorized)
	// token of someone else
	sendJSONRequest(t, http.MethodPost, ts.URL+"/users/"+alice.ID+"/timeline",
		publishRequest{Text: "hi"}, bob.Token, http.StatusForbidden)
	sendJSONRequest(t, http.MethodPost, ts.URL+"/followings",
		models.Follow{FollowerID: alice.ID, FolloweeID: bob.ID}, bob.Token, http.StatusForbidden)
	// token for an account that does not exist
	ghost := makeTestJWT("ghost")
	sendJSONRequest(t, http.MethodPost, ts.URL+"/users/ghost/timeline",
		publishRequest{Text: "hi"}, ghost, http.StatusNotFound)
}

func TestFollow_Errors(t *testing.T) {
	_, ts := setupTestServer(t)
	alice := registerHelper(t, ts, "Alice", "a")
	bob := registerHelper(t, ts, "Bob", "b")

	sendJSONRequest(t, http.MethodPost, ts.URL+"/followings",
		models.Follow{FollowerID: alice.ID, FolloweeID: alice.ID}, alice.Token, http.StatusBadRequest)
	sendJSONRequest(t, http.MethodPost, ts.URL+"/followings",
		models.Follow{FollowerID: alice.ID, FolloweeID: "ghost"}, alice.Token, http.StatusNotFound)
	sendJSONRequest(t, http.MethodPost, ts.URL+"/followings",
		models.Follow{FollowerID: alice.ID, FolloweeID: bob.ID}, alice.Token, http.StatusCreated)
	sendJSONRequest(t, http.MethodPost, ts.URL+"/followings",
		models.Follow{FollowerID: alice.ID, FolloweeID: bob.ID}, alice.Token, http.StatusBadRequest)
	sendJSONRequest(t, http.MethodPost, ts.URL+"/followings",
		models.Follow{FollowerID: alice.ID}, alice.Token, http.StatusBadRequest)
}

func TestUnknownUserReads(t *testing.T) {
	_, ts := setupTestServer(t)

	sendJSONRequest(t, http.MethodGet, ts.URL+"/users/ghost/timeline", nil, "", http.StatusNotFound)
	sendJSONRequest(t, http.MethodGet, ts.URL+"/users/ghost/wall", nil, "", http.StatusNotFound)
	sendJSONRequest(t, http.MethodGet, ts.URL+"/followings/ghost/followees", nil, "", http.StatusNotFound)
}

func TestHealthAndMetrics(t *testing.T) {
	_, ts := setupTestServer(t)
	registerHelper(t, ts, "Alice", "a")

	sendJSONRequest(t, http.MethodGet, ts.URL+"/healthz", nil, "", http.StatusOK)
	resp := sendJSONRequest(t, http.MethodGet, ts.URL+"/metrics", nil, "", http.StatusOK)
	b, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(b), "openchat_registrations_total") {
		t.Fatalf("metrics output misses registrations counter")
	}
}

func TestPostIDIsStable(t *testing.T) {
	pub := chat.Publication{AuthorID: "a", Message: "m", At: fixedNow, Seq: 7}
	if postID(pub) != postID(pub) {
		t.Fatalf("post id must be deterministic")
	}
	other := pub
	other.Seq = 8
	if postID(pub) == postID(other) {
		t.Fatalf("different publications must get different ids")
	}
}
