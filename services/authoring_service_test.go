package services

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"tahadi/config"
	"tahadi/models"
)

type genCall struct {
	Model  string
	Prompt string
	Opts   GenerateOptions
}

type genReply struct {
	result *GenerateResult
	err    error
}

type fakeGenClient struct {
	mu      sync.Mutex
	calls   []genCall
	replies []genReply
}

func (f *fakeGenClient) GenerateContent(ctx context.Context, model, prompt string, opts GenerateOptions) (*GenerateResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls = append(f.calls, genCall{Model: model, Prompt: prompt, Opts: opts})
	if len(f.replies) == 0 {
		return nil, errors.New("no scripted reply")
	}
	reply := f.replies[0]
	f.replies = f.replies[1:]
	return reply.result, reply.err
}

type fakeLedger struct {
	mu       sync.Mutex
	history  map[string][]string
	recorded map[string][]LedgerEntry
	failAll  bool
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{
		history:  make(map[string][]string),
		recorded: make(map[string][]LedgerEntry),
	}
}

func (f *fakeLedger) History(ctx context.Context, categoryName string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failAll {
		return nil, errors.New("ledger unavailable")
	}
	return f.history[categoryName], nil
}

func (f *fakeLedger) Record(ctx context.Context, categoryName string, entries []LedgerEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failAll {
		return errors.New("ledger unavailable")
	}
	f.recorded[categoryName] = append(f.recorded[categoryName], entries...)
	return nil
}

func newTestAuthoringService(client GenerativeClient, ledger Ledger) *AuthoringService {
	return NewAuthoringService(client, ledger, &config.Config{
		GeminiModel:      "gemini-3-pro-preview",
		GeminiDraftModel: "gemini-3-flash-preview",
	})
}

const finalStagePayload = `{
	"gk": [
		{"points": 100, "question": "ما عاصمة فرنسا؟", "answer": "باريس", "sources": [{"title": "مصدر", "uri": "https://example.com"}]},
		{"points": 200, "question": "س200", "answer": "ج200"},
		{"points": 300, "question": "س300", "answer": "ج300"},
		{"points": 400, "question": "س400", "answer": "ج400"},
		{"points": 500, "question": "س500", "answer": "ج500"}
	],
	"list_science": [
		{"points": 100, "question": "عدد كواكب المجموعة الشمسية؟", "answer": "ثمانية"},
		{"points": 200, "question": "ع200", "answer": "ج200"},
		{"points": 300, "question": "ع300", "answer": "ج300"},
		{"points": 400, "question": "ع400", "answer": "ج400"},
		{"points": 500, "question": "ع500", "answer": "ج500"}
	]
}`

func TestGenerateBatchHappyPath(t *testing.T) {
	client := &fakeGenClient{replies: []genReply{
		{result: &GenerateResult{
			Text:    "مسودة المقترحات",
			Sources: []models.GroundingSource{{Title: "مصدر", URI: "https://example.com"}},
		}},
		{result: &GenerateResult{Text: "الأسئلة المختارة"}},
		{result: &GenerateResult{Text: "```json\n" + finalStagePayload + "\n```"}},
	}}
	ledger := newFakeLedger()
	service := newTestAuthoringService(client, ledger)

	categories := []models.Category{
		{ID: "gk", Name: "معلومات عامة"},
		{ID: "list_science", Name: "تعداد علمي ⏳"},
	}

	var messages []string
	var steps []int
	onProgress := func(message string, step int) {
		messages = append(messages, message)
		steps = append(steps, step)
	}

	results := service.GenerateBatch(context.Background(), categories, "", onProgress)

	if len(client.calls) != 3 {
		t.Fatalf("generative calls = %d, want 3", len(client.calls))
	}
	if !client.calls[0].Opts.WebSearch {
		t.Error("draft stage must enable web search")
	}
	if client.calls[0].Model != "gemini-3-flash-preview" {
		t.Errorf("draft model = %q", client.calls[0].Model)
	}
	if client.calls[1].Opts.WebSearch || client.calls[1].Opts.JSONResponse {
		t.Error("selection stage must run without tool flags")
	}
	if !client.calls[2].Opts.JSONResponse {
		t.Error("finalize stage must request structured output")
	}
	if client.calls[1].Model != "gemini-3-pro-preview" {
		t.Errorf("selection model = %q, want configured default", client.calls[1].Model)
	}

	gk := results["gk"]
	if len(gk) != 5 {
		t.Fatalf("gk questions = %d, want 5", len(gk))
	}
	if gk[0].Question != "ما عاصمة فرنسا؟" || gk[0].Answer != "باريس" {
		t.Errorf("unexpected first question: %+v", gk[0])
	}
	if len(gk[0].Sources) != 1 || gk[0].Sources[0].URI != "https://example.com" {
		t.Errorf("sources not carried through: %+v", gk[0].Sources)
	}
	for _, q := range gk {
		if q.IsEnumeration {
			t.Errorf("gk question tagged as enumeration: %+v", q)
		}
	}
	for _, q := range results["list_science"] {
		if !q.IsEnumeration {
			t.Errorf("list_science question not tagged as enumeration: %+v", q)
		}
	}

	if got := len(ledger.recorded["معلومات عامة"]); got != 5 {
		t.Errorf("ledger entries for gk = %d, want 5", got)
	}
	if got := len(ledger.recorded["تعداد علمي ⏳"]); got != 5 {
		t.Errorf("ledger entries for list_science = %d, want 5", got)
	}

	wantSteps := []int{10, 15, 10}
	if len(steps) != len(wantSteps) {
		t.Fatalf("progress steps = %v, want %v", steps, wantSteps)
	}
	for i, want := range wantSteps {
		if steps[i] != want {
			t.Errorf("step[%d] = %d, want %d", i, steps[i], want)
		}
		if messages[i] == "" {
			t.Errorf("stage %d reported an empty progress message", i)
		}
	}
}

// Any stage failure degrades every requested category, not just the one that
// glitched.
func TestGenerateBatchStageFailureDegradesAll(t *testing.T) {
	client := &fakeGenClient{replies: []genReply{
		{result: &GenerateResult{Text: "مسودة"}},
		{result: &GenerateResult{Text: "اختيار"}},
		{err: errors.New("503 from upstream")},
	}}
	service := newTestAuthoringService(client, newFakeLedger())

	categories := []models.Category{
		{ID: "gk", Name: "معلومات عامة"},
		{ID: "astronomy", Name: "علم الفلك"},
	}

	results := service.GenerateBatch(context.Background(), categories, "", nil)

	for _, cat := range categories {
		set := results[cat.ID]
		if len(set) != 5 {
			t.Fatalf("%s: placeholder set has %d entries, want 5", cat.ID, len(set))
		}
		for i, q := range set {
			if q.Points != models.PointsLadder[i] {
				t.Errorf("%s[%d]: points = %d, want %d", cat.ID, i, q.Points, models.PointsLadder[i])
			}
			if !IsAuthoringFallback(q) {
				t.Errorf("%s[%d]: not a fallback question: %+v", cat.ID, i, q)
			}
			if q.IsEnumeration {
				t.Errorf("%s[%d]: fallback must not be enumeration", cat.ID, i)
			}
		}
	}
}

func TestGenerateBatchMalformedPayloadDegrades(t *testing.T) {
	client := &fakeGenClient{replies: []genReply{
		{result: &GenerateResult{Text: "مسودة"}},
		{result: &GenerateResult{Text: "اختيار"}},
		{result: &GenerateResult{Text: "آسف، لا أستطيع إخراج JSON اليوم"}},
	}}
	service := newTestAuthoringService(client, newFakeLedger())

	results := service.GenerateBatch(context.Background(), []models.Category{{ID: "gk", Name: "معلومات عامة"}}, "", nil)

	if len(results["gk"]) != 5 || !IsAuthoringFallback(results["gk"][0]) {
		t.Fatalf("malformed payload did not degrade: %+v", results["gk"])
	}
}

func TestGenerateBatchFeedsHistoryToSelection(t *testing.T) {
	client := &fakeGenClient{replies: []genReply{
		{result: &GenerateResult{Text: "مسودة"}},
		{result: &GenerateResult{Text: "اختيار"}},
		{result: &GenerateResult{Text: `{"gk": []}`}},
	}}
	ledger := newFakeLedger()
	ledger.history["معلومات عامة"] = []string{"سؤال قديم عن باريس", "سؤال قديم عن النيل"}
	service := newTestAuthoringService(client, ledger)

	service.GenerateBatch(context.Background(), []models.Category{{ID: "gk", Name: "معلومات عامة"}}, "", nil)

	if len(client.calls) != 3 {
		t.Fatalf("generative calls = %d, want 3", len(client.calls))
	}
	selectionPrompt := client.calls[1].Prompt
	if !strings.Contains(selectionPrompt, "سؤال قديم عن باريس") {
		t.Error("selection prompt missing ledger history entry")
	}
	if !strings.Contains(selectionPrompt, "سؤال قديم عن النيل") {
		t.Error("selection prompt missing second ledger history entry")
	}
}

// A failing ledger degrades silently: history is skipped and recording
// errors are swallowed.
func TestGenerateBatchToleratesFailingLedger(t *testing.T) {
	client := &fakeGenClient{replies: []genReply{
		{result: &GenerateResult{Text: "مسودة"}},
		{result: &GenerateResult{Text: "اختيار"}},
		{result: &GenerateResult{Text: finalStagePayload}},
	}}
	ledger := newFakeLedger()
	ledger.failAll = true
	service := newTestAuthoringService(client, ledger)

	categories := []models.Category{
		{ID: "gk", Name: "معلومات عامة"},
		{ID: "list_science", Name: "تعداد علمي ⏳"},
	}
	results := service.GenerateBatch(context.Background(), categories, "", nil)

	if len(results["gk"]) != 5 {
		t.Fatalf("gk questions = %d, want 5", len(results["gk"]))
	}
	if IsAuthoringFallback(results["gk"][0]) {
		t.Error("ledger failure must not degrade the batch")
	}
}

func TestGenerateBatchEmptyCategories(t *testing.T) {
	client := &fakeGenClient{}
	service := newTestAuthoringService(client, newFakeLedger())

	results := service.GenerateBatch(context.Background(), nil, "", nil)
	if len(results) != 0 {
		t.Errorf("results = %v, want empty", results)
	}
	if len(client.calls) != 0 {
		t.Errorf("generative calls = %d, want 0", len(client.calls))
	}
}

func TestExtractJSON(t *testing.T) {
	testCases := []struct {
		name    string
		text    string
		want    string
		wantErr bool
	}{
		{"bare object", `{"a":1}`, `{"a":1}`, false},
		{"fenced object", "```json\n{\"a\":1}\n```", `{"a":1}`, false},
		{"prose wrapped", `النتيجة النهائية: {"a":1} بالتوفيق`, `{"a":1}`, false},
		{"array payload", `[1,2,3]`, `[1,2,3]`, false},
		{"no json at all", `لا يوجد شيء هنا`, "", true},
		{"unbalanced braces", `{"a":1`, "", true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := extractJSON(tc.text)
			if (err != nil) != tc.wantErr {
				t.Fatalf("extractJSON error = %v, wantErr %v", err, tc.wantErr)
			}
			if !tc.wantErr && string(got) != tc.want {
				t.Errorf("extractJSON = %q, want %q", got, tc.want)
			}
		})
	}
}
