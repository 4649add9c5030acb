package ai

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
)

func TestStripCodeFence(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain", `{"a":1}`, `{"a":1}`},
		{"json fence", "```json\n{\"a\":1}\n```", `{"a":1}`},
		{"bare fence", "```\n[\"x\"]\n```", `["x"]`},
		{"whitespace", "  \n{\"a\":1}\n ", `{"a":1}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := StripCodeFence(tt.in); got != tt.want {
				t.Errorf("StripCodeFence(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestDecodeJSON(t *testing.T) {
	var out []string
	if err := DecodeJSON("```json\n[\"a\",\"b\"]\n```", &out); err != nil {
		t.Fatalf("DecodeJSON: %v", err)
	}
	if len(out) != 2 || out[0] != "a" {
		t.Errorf("out = %v", out)
	}
	if err := DecodeJSON("not json", &out); err == nil {
		t.Error("expected error for malformed input")
	}
}

func TestAnthropicClient_GenerateText(t *testing.T) {
	var got anthropicRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("x-api-key") != "test-key" {
			t.Errorf("x-api-key = %q", r.Header.Get("x-api-key"))
		}
		if r.Header.Get("anthropic-version") != anthropicVersion {
			t.Errorf("anthropic-version = %q", r.Header.Get("anthropic-version"))
		}
		body, _ := io.ReadAll(r.Body)
		json.Unmarshal(body, &got)
		w.Write([]byte(`{"content":[{"type":"text","text":"Hello Jane"}]}`))
	}))
	defer srv.Close()

	c := NewAnthropicClient(AnthropicConfig{APIKey: "test-key", BaseURL: srv.URL}, srv.Client())
	text, err := c.GenerateText(context.Background(), "write a greeting", ModeJSON)
	if err != nil {
		t.Fatalf("GenerateText: %v", err)
	}
	if text != "Hello Jane" {
		t.Errorf("text = %q", text)
	}
	if len(got.Messages) != 1 || !strings.HasSuffix(got.Messages[0].Content, jsonInstruction) {
		t.Errorf("json instruction not appended: %+v", got.Messages)
	}
	if got.Model != defaultAnthropicModel {
		t.Errorf("model = %q", got.Model)
	}
}

func TestAnthropicClient_Errors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":{"type":"invalid_request_error","message":"bad"}}`))
	}))
	defer srv.Close()

	c := NewAnthropicClient(AnthropicConfig{APIKey: "k", BaseURL: srv.URL}, srv.Client())
	if _, err := c.GenerateText(context.Background(), "x", ModeText); err == nil {
		t.Fatal("expected error for 400")
	}

	noKey := NewAnthropicClient(AnthropicConfig{BaseURL: srv.URL}, srv.Client())
	if _, err := noKey.GenerateText(context.Background(), "x", ModeText); !errors.Is(err, ErrNoProvider) {
		t.Errorf("err = %v, want ErrNoProvider", err)
	}
}

func TestAnthropicClient_EmptyContent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"content":[]}`))
	}))
	defer srv.Close()

	c := NewAnthropicClient(AnthropicConfig{APIKey: "k", BaseURL: srv.URL}, srv.Client())
	if _, err := c.GenerateText(context.Background(), "x", ModeText); !errors.Is(err, ErrEmptyResponse) {
		t.Errorf("err = %v, want ErrEmptyResponse", err)
	}
}

func TestOpenAIClient_ResponseFormat(t *testing.T) {
	var reqs []openAIRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer sk-test" {
			t.Errorf("Authorization = %q", r.Header.Get("Authorization"))
		}
		var req openAIRequest
		json.NewDecoder(r.Body).Decode(&req)
		reqs = append(reqs, req)
		w.Write([]byte(`{"choices":[{"message":{"content":"{\"ok\":true}"}}]}`))
	}))
	defer srv.Close()

	c := NewOpenAIClient(OpenAIConfig{APIKey: "sk-test", BaseURL: srv.URL}, srv.Client())
	ctx := context.Background()

	if _, err := c.GenerateText(ctx, "Return research as a JSON object.", ModeJSON); err != nil {
		t.Fatalf("GenerateText: %v", err)
	}
	if _, err := c.GenerateText(ctx, "Return a JSON array of 3 strings.", ModeJSON); err != nil {
		t.Fatalf("GenerateText: %v", err)
	}
	if _, err := c.GenerateText(ctx, "Free text please.", ModeText); err != nil {
		t.Fatalf("GenerateText: %v", err)
	}

	if len(reqs) != 3 {
		t.Fatalf("requests = %d, want 3", len(reqs))
	}
	if reqs[0].ResponseFormat == nil || reqs[0].ResponseFormat.Type != "json_object" {
		t.Errorf("object request response_format = %+v", reqs[0].ResponseFormat)
	}
	if reqs[1].ResponseFormat != nil {
		t.Errorf("array request must not force json_object")
	}
	if reqs[2].ResponseFormat != nil {
		t.Errorf("text request must not set response_format")
	}
}

func TestOpenAIClient_NoChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"choices":[]}`))
	}))
	defer srv.Close()

	c := NewOpenAIClient(OpenAIConfig{APIKey: "k", BaseURL: srv.URL}, srv.Client())
	if _, err := c.GenerateText(context.Background(), "x", ModeText); !errors.Is(err, ErrEmptyResponse) {
		t.Errorf("err = %v, want ErrEmptyResponse", err)
	}
}

type fakeInvoker struct {
	input *bedrockruntime.InvokeModelInput
	body  string
	err   error
}

func (f *fakeInvoker) InvokeModel(ctx context.Context, in *bedrockruntime.InvokeModelInput, _ ...func(*bedrockruntime.Options)) (*bedrockruntime.InvokeModelOutput, error) {
	f.input = in
	if f.err != nil {
		return nil, f.err
	}
	return &bedrockruntime.InvokeModelOutput{Body: []byte(f.body)}, nil
}

func TestBedrockClient_GenerateText(t *testing.T) {
	inv := &fakeInvoker{body: `{"content":[{"type":"text","text":"scene"}],"stop_reason":"end_turn"}`}
	c := NewBedrockClientWithAPI(inv, "", 0)

	text, err := c.GenerateText(context.Background(), "describe a scene", ModeText)
	if err != nil {
		t.Fatalf("GenerateText: %v", err)
	}
	if text != "scene" {
		t.Errorf("text = %q", text)
	}
	if *inv.input.ModelId != defaultBedrockModel {
		t.Errorf("model = %q", *inv.input.ModelId)
	}
	var req bedrockRequest
	if err := json.Unmarshal(inv.input.Body, &req); err != nil {
		t.Fatalf("request body: %v", err)
	}
	if req.AnthropicVersion != "bedrock-2023-05-31" || req.MaxTokens != 1024 {
		t.Errorf("request = %+v", req)
	}
}

func TestBedrockClient_InvokeError(t *testing.T) {
	c := NewBedrockClientWithAPI(&fakeInvoker{err: errors.New("throttled")}, "m", 10)
	if _, err := c.GenerateText(context.Background(), "x", ModeText); err == nil {
		t.Fatal("expected error")
	}
}

func TestChain_FallsThroughInOrder(t *testing.T) {
	var order []string
	failing := GeneratorFunc(func(ctx context.Context, prompt string, mode ResponseMode) (string, error) {
		order = append(order, "first")
		return "", errors.New("quota exceeded")
	})
	ok := GeneratorFunc(func(ctx context.Context, prompt string, mode ResponseMode) (string, error) {
		order = append(order, "second")
		return "answer", nil
	})
	never := GeneratorFunc(func(ctx context.Context, prompt string, mode ResponseMode) (string, error) {
		order = append(order, "third")
		return "unused", nil
	})

	text, err := NewChain(failing, nil, ok, never).GenerateText(context.Background(), "p", ModeText)
	if err != nil {
		t.Fatalf("GenerateText: %v", err)
	}
	if text != "answer" {
		t.Errorf("text = %q", text)
	}
	if strings.Join(order, ",") != "first,second" {
		t.Errorf("order = %v", order)
	}
}

func TestChain_AllFail(t *testing.T) {
	boom := errors.New("boom")
	g := GeneratorFunc(func(ctx context.Context, prompt string, mode ResponseMode) (string, error) {
		return "", boom
	})
	_, err := NewChain(g, g).GenerateText(context.Background(), "p", ModeText)
	if !errors.Is(err, boom) {
		t.Errorf("err = %v, want wrapped boom", err)
	}
	if _, err := NewChain().GenerateText(context.Background(), "p", ModeText); !errors.Is(err, ErrNoProvider) {
		t.Errorf("empty chain err = %v, want ErrNoProvider", err)
	}
}

func TestTruncate_KeepsRunesWhole(t *testing.T) {
	got := truncate("abü", 3)
	if got != "ab..." || !utf8.ValidString(got) {
		t.Errorf("truncate = %q, want %q", got, "ab...")
	}
	if got := truncate("short", 10); got != "short" {
		t.Errorf("truncate(short) = %q", got)
	}
}
