package summarize

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sashabaranov/go-openai"

	"corpus/internal/logger"
	"corpus/internal/sheets"
	"corpus/pkg/services"
)

// scripted returns the queued results in order, one per call.
type scripted struct {
	calls   int
	results []string
	errs    []error
}

func (s *scripted) Summarize(ctx context.Context, text string) (string, error) {
	i := s.calls
	s.calls++
	if i < len(s.errs) && s.errs[i] != nil {
		return "", s.errs[i]
	}
	if i < len(s.results) {
		return s.results[i], nil
	}
	return "", errors.New("unexpected call")
}

var noDelay = Policy{Attempts: 3}

func TestRetryingSummarizer_SucceedsOnThirdAttempt(t *testing.T) {
	down := errors.New("503 service unavailable")
	next := &scripted{
		errs:    []error{down, down, nil},
		results: []string{"", "", "Tóm tắt lần ba"},
	}

	got, err := NewRetryingSummarizer(next, noDelay).Summarize(context.Background(), "Đoạn văn")
	if err != nil {
		t.Fatalf("Summarize: %v", err)
	}
	if got != "Tóm tắt lần ba" {
		t.Errorf("got %q", got)
	}
	if next.calls != 3 {
		t.Errorf("calls = %d, want 3", next.calls)
	}
}

func TestRetryingSummarizer_GivesUp(t *testing.T) {
	down := errors.New("503 service unavailable")
	next := &scripted{errs: []error{down, down, down, down}}

	_, err := NewRetryingSummarizer(next, noDelay).Summarize(context.Background(), "Đoạn văn")
	if !errors.Is(err, down) {
		t.Fatalf("err = %v, want last attempt error", err)
	}
	if next.calls != 3 {
		t.Errorf("calls = %d, want 3", next.calls)
	}
}

func TestRetryingSummarizer_StopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	next := services.SummarizerFunc(func(ctx context.Context, text string) (string, error) {
		cancel()
		return "", errors.New("boom")
	})

	_, err := NewRetryingSummarizer(next, Policy{Attempts: 5}).Summarize(ctx, "x")
	if err == nil {
		t.Fatal("expected error")
	}
}

func TestBatch_Run(t *testing.T) {
	down := errors.New("timeout")
	table := sheets.NewTable("Sheet1", "STT", ColumnSource)
	table.Append("1", "Đoạn thứ nhất.")
	table.Append("2", "Đoạn thứ hai.")
	table.Append("3", "   ")
	table.Append("4", "Đoạn thứ tư.")

	// Row 2 fails all three attempts; rows 1 and 4 succeed first time.
	next := &scripted{
		errs:    []error{nil, down, down, down, nil},
		results: []string{"Một", "", "", "", "Bốn"},
	}
	batch := NewBatch(NewRetryingSummarizer(next, noDelay))

	report, err := batch.Run(context.Background(), table)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	col := table.Column(ColumnSummary)
	if col != 2 {
		t.Fatalf("summary column = %d, want 2", col)
	}
	want := []string{"Một", FailureMarker, "", "Bốn"}
	for i, w := range want {
		if got := table.Value(i, col); got != w {
			t.Errorf("row %d summary = %q, want %q", i+1, got, w)
		}
	}
	if report != (Report{Rows: 4, Succeeded: 2, Failed: 1, Skipped: 1}) {
		t.Errorf("report = %+v", report)
	}
}

func TestBatch_MissingColumn(t *testing.T) {
	table := sheets.NewTable("Sheet1", "Đoạn văn")
	table.Append("x")

	next := &scripted{}
	_, err := NewBatch(next).Run(context.Background(), table)
	if !errors.Is(err, sheets.ErrMissingColumns) {
		t.Fatalf("err = %v, want ErrMissingColumns", err)
	}
	if next.calls != 0 {
		t.Error("no row may be processed")
	}
}

func TestOpenAISummarizer_Summarize(t *testing.T) {
	var got openai.ChatCompletionRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/chat/completions") {
			http.NotFound(w, r)
			return
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"id":     "chatcmpl-1",
			"object": "chat.completion",
			"model":  "gpt-4o-mini",
			"choices": []map[string]interface{}{
				{
					"index":         0,
					"finish_reason": "stop",
					"message": map[string]string{
						"role":    "assistant",
						"content": "  Bản tóm tắt.  ",
					},
				},
			},
		})
	}))
	defer srv.Close()

	conf := openai.DefaultConfig("test-key")
	conf.BaseURL = srv.URL + "/v1"
	s := NewOpenAISummarizerWithClient(openai.NewClientWithConfig(conf), "gpt-4o-mini", "Tóm tắt văn bản.")

	summary, err := s.Summarize(context.Background(), "Văn bản dài.")
	if err != nil {
		t.Fatalf("Summarize: %v", err)
	}
	if summary != "Bản tóm tắt." {
		t.Errorf("summary = %q", summary)
	}
	if got.Temperature != Temperature || got.TopP != TopP {
		t.Errorf("sampling = %v/%v", got.Temperature, got.TopP)
	}
	if len(got.Messages) != 2 || got.Messages[0].Content != "Tóm tắt văn bản." {
		t.Fatalf("messages = %+v", got.Messages)
	}
	if !strings.Contains(got.Messages[1].Content, "Văn bản gốc:\nVăn bản dài.") {
		t.Errorf("user prompt = %q", got.Messages[1].Content)
	}
}

func TestLoadPrompt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prompt.txt")
	if err := os.WriteFile(path, []byte("\nHãy tóm tắt.\n"), 0644); err != nil {
		t.Fatal(err)
	}
	prompt, err := LoadPrompt(path)
	if err != nil || prompt != "Hãy tóm tắt." {
		t.Errorf("LoadPrompt = %q, %v", prompt, err)
	}
	if _, err := LoadPrompt(""); err == nil {
		t.Error("expected error for empty path")
	}
}

func TestMain(m *testing.M) {
	_ = logger.Setup(logger.LogConfig{Level: "error", Format: "json"})
	os.Exit(m.Run())
}
