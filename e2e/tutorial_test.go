package e2e

import (
	"net/http"
	"strings"
	"testing"
)

func TestTutorialFlag_RoundTrip(t *testing.T) {
	ta := setupApp(t)
	requireRedis(t, ta)

	key := "refined-tab-intro"
	ta.redis.Del(t.Context(), "tutorial:"+testUserID+":"+key)

	resp, err := doAuthRequest(t, ta.app, http.MethodGet, "/api/tutorials/"+key, "")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	assertStatus(t, resp, http.StatusOK)
	if body := parseJSON(t, resp); body["seen"] != false {
		t.Errorf("expected an unseen tutorial, got %v", body)
	}

	resp, err = doAuthRequest(t, ta.app, http.MethodPut, "/api/tutorials/"+key, `{"seen": true}`)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	assertStatus(t, resp, http.StatusOK)

	resp, err = doAuthRequest(t, ta.app, http.MethodGet, "/api/tutorials/"+key, "")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	body := parseJSON(t, resp)
	if body["seen"] != true || body["key"] != key {
		t.Errorf("expected %s to be seen, got %v", key, body)
	}

	// Flags are per user.
	resp, err = doRequestAs(t, ta.app, "another-user", "", http.MethodGet, "/api/tutorials/"+key, "")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if body := parseJSON(t, resp); body["seen"] != false {
		t.Errorf("expected flag to be scoped to its user, got %v", body)
	}
}

func TestTutorialFlag_InvalidKey(t *testing.T) {
	ta := setupApp(t)

	resp, err := doAuthRequest(t, ta.app, http.MethodGet, "/api/tutorials/"+strings.Repeat("k", 65), "")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}

	assertStatus(t, resp, http.StatusBadRequest)
}
