package agent

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

// chatServer fakes the reasoning service: it returns the configured content
// for every completion request and records what it saw.
func chatServer(t *testing.T, content string, status int) (*httptest.Server, *[]string) {
	t.Helper()
	var prompts []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		body, _ := io.ReadAll(r.Body)
		var req struct {
			Messages []struct {
				Content string `json:"content"`
			} `json:"messages"`
		}
		json.Unmarshal(body, &req)
		for _, m := range req.Messages {
			prompts = append(prompts, m.Content)
		}

		w.WriteHeader(status)
		json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]string{"role": "assistant", "content": content}},
			},
		})
	}))
	t.Cleanup(server.Close)
	return server, &prompts
}

func testClient(url string) *Client {
	return NewClient(url, "test-key", "test-model", 5*time.Second, slog.New(slog.DiscardHandler))
}

func TestEmbed(t *testing.T) {
	server, prompts := chatServer(t, "[0.1, 0.9, 0.0]", http.StatusOK)

	got := testClient(server.URL).Embed(context.Background(), "Black Wallet", "leather, worn")
	if len(got) != 3 || got[1] != 0.9 {
		t.Errorf("unexpected embedding: %v", got)
	}
	if len(*prompts) == 0 {
		t.Fatal("no prompts recorded")
	}
}

func TestEmbedGarbageResponse(t *testing.T) {
	server, _ := chatServer(t, "I'm afraid I can't produce numbers today", http.StatusOK)

	if got := testClient(server.URL).Embed(context.Background(), "t", "d"); got != nil {
		t.Errorf("expected empty embedding for garbage, got %v", got)
	}
}

func TestEmbedServerError(t *testing.T) {
	server, _ := chatServer(t, "", http.StatusInternalServerError)

	if got := testClient(server.URL).Embed(context.Background(), "t", "d"); got != nil {
		t.Errorf("expected empty embedding on server error, got %v", got)
	}
}

func TestEmbedUnreachable(t *testing.T) {
	client := testClient("http://127.0.0.1:1")
	if got := client.Embed(context.Background(), "t", "d"); got != nil {
		t.Errorf("expected empty embedding when unreachable, got %v", got)
	}
}

func TestRankCandidates(t *testing.T) {
	server, _ := chatServer(t, `[{"id": 7, "title": "Keys", "score": 0.8, "owner_contact": "+15550003333"}]`, http.StatusOK)

	got := testClient(server.URL).RankCandidates(context.Background(), "found", "8f373714acfcf4d0", []float64{1, 0})
	if len(got) != 1 || got[0].ID != 7 {
		t.Fatalf("unexpected candidates: %+v", got)
	}
}

func TestRankCandidatesFailureIsEmpty(t *testing.T) {
	server, _ := chatServer(t, "", http.StatusBadGateway)

	if got := testClient(server.URL).RankCandidates(context.Background(), "found", "abc", nil); got != nil {
		t.Errorf("expected no candidates on failure, got %v", got)
	}
}

func TestMaskContact(t *testing.T) {
	server, _ := chatServer(t, "  +1555***1111\n", http.StatusOK)

	got := testClient(server.URL).MaskContact(context.Background(), "+15550001111")
	if got != "+1555***1111" {
		t.Errorf("unexpected mask: %q", got)
	}
}

func TestMaskContactFailureIsEmpty(t *testing.T) {
	server, _ := chatServer(t, "", http.StatusServiceUnavailable)

	if got := testClient(server.URL).MaskContact(context.Background(), "+15550001111"); got != "" {
		t.Errorf("expected empty mask on failure, got %q", got)
	}
}
