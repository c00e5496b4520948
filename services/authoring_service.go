package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"

	"tahadi/config"
	"tahadi/models"
)

// Global authoring rules fed to the selection stage.
const globalInstructions = `قواعد تأليف الأسئلة:
- السؤال بالعربية الفصحى، واضح، وله إجابة واحدة قاطعة قابلة للتحقق.
- تدرج الصعوبة مع النقاط: 100 سهل جداً و500 يعرفه المتعمقون فقط.
- يمنع أسئلة الرأي أو الأسئلة المركبة متعددة الأجزاء.
- الإجابة مختصرة: اسم أو رقم أو عبارة قصيرة.`

// AuthoredQuestion is one generated question for a (category, points) cell.
type AuthoredQuestion struct {
	Points        int                      `json:"points"`
	Question      string                   `json:"question"`
	Answer        string                   `json:"answer"`
	Sources       []models.GroundingSource `json:"sources,omitempty"`
	IsEnumeration bool                     `json:"is_enumeration"`
}

// AuthoringProgressFunc receives one message per pipeline stage with the
// stage's weight on the caller's progress budget.
type AuthoringProgressFunc func(message string, step int)

// AuthoringService sequences the three generation stages: a web-grounded
// draft, a selection pass against the anti-repetition ledger, and a terse
// structured rewrite. Any stage failure degrades the whole batch to
// placeholder questions.
type AuthoringService struct {
	client       GenerativeClient
	ledger       Ledger
	defaultModel string
	draftModel   string
}

func NewAuthoringService(client GenerativeClient, ledger Ledger, cfg *config.Config) *AuthoringService {
	return &AuthoringService{
		client:       client,
		ledger:       ledger,
		defaultModel: cfg.GeminiModel,
		draftModel:   cfg.GeminiDraftModel,
	}
}

// GenerateBatch produces five questions per category. The returned map always
// carries every requested category id; on any stage failure every category
// degrades to the canned placeholder set.
func (s *AuthoringService) GenerateBatch(ctx context.Context, categories []models.Category, model string, onProgress AuthoringProgressFunc) map[string][]AuthoredQuestion {
	results := make(map[string][]AuthoredQuestion, len(categories))
	if len(categories) == 0 {
		return results
	}
	if strings.TrimSpace(model) == "" {
		model = s.defaultModel
	}

	progress := func(message string, step int) {
		if onProgress != nil {
			onProgress(message, step)
		}
	}

	generated, err := s.runStages(ctx, categories, model, progress)
	if err != nil {
		log.Printf("Authoring pipeline failed, degrading all categories to placeholders: %v", err)
		for _, cat := range categories {
			results[cat.ID] = fallbackQuestionSet()
		}
		return results
	}

	for _, cat := range categories {
		isList := categoryHasListMarker(cat) || strings.Contains(cat.Name, enumerationNameToken)

		processed := generated[cat.ID]
		for i := range processed {
			processed[i].IsEnumeration = isList
		}
		results[cat.ID] = processed

		if len(processed) == 0 {
			continue
		}
		entries := make([]LedgerEntry, len(processed))
		for i, q := range processed {
			entries[i] = LedgerEntry{Text: q.Question, Points: q.Points}
		}
		// Best effort; an unavailable ledger must not fail the batch.
		if err := s.ledger.Record(ctx, cat.Name, entries); err != nil {
			log.Printf("Failed to record ledger entries for %s: %v", cat.Name, err)
		}
	}

	return results
}

func (s *AuthoringService) runStages(ctx context.Context, categories []models.Category, model string, progress AuthoringProgressFunc) (map[string][]AuthoredQuestion, error) {
	catsList := make([]string, len(categories))
	for i, cat := range categories {
		catsList[i] = fmt.Sprintf("- %s (ID: %s)", cat.Name, cat.ID)
	}

	var history strings.Builder
	for _, cat := range categories {
		texts, err := s.ledger.History(ctx, cat.Name)
		if err != nil {
			log.Printf("Ledger history unavailable for %s: %v", cat.Name, err)
			continue
		}
		if len(texts) > 0 {
			history.WriteString(fmt.Sprintf("\n- [%s]: %s", cat.Name, strings.Join(texts, " | ")))
		}
	}

	// Stage A: web-grounded draft. The draft model is fixed to the variant
	// that supports search grounding.
	progress("الطلب 1: البحث في الويب عن أحدث المعلومات والحقائق...", 10)
	draftPrompt := fmt.Sprintf(`المهمة: توليد 8 مقترحات أسئلة لكل مستوى (100-500) للفئات التالية:
%s
استخدم بحث الويب للعثور على معلومات دقيقة، حديثة، ومثيرة للاهتمام.
اربط كل معلومة بمصدرها إن أمكن.`, strings.Join(catsList, "\n"))

	draft, err := s.client.GenerateContent(ctx, s.draftModel, draftPrompt, GenerateOptions{WebSearch: true})
	if err != nil {
		return nil, fmt.Errorf("draft stage: %w", err)
	}

	// Stage B: pick one question per level, excluding ledger history.
	progress("الطلب 2: تصفية النتائج ومطابقتها مع سجل اللاعب...", 15)
	historyPrompt := history.String()
	if historyPrompt == "" {
		historyPrompt = "لا يوجد سجل سابق."
	}
	selectionPrompt := fmt.Sprintf(`%s

[المقترحات الأولية المعتمدة على الويب]:
%s

[سجل الأسئلة السابق لهذا اللاعب - يحظر التكرار]:
%s

المهمة: اختر أفضل سؤال واحد لكل مستوى صعوبة لكل فئة. تأكد من أن الأسئلة ممتعة وغير مكررة.`,
		globalInstructions, draft.Text, historyPrompt)

	selection, err := s.client.GenerateContent(ctx, model, selectionPrompt, GenerateOptions{})
	if err != nil {
		return nil, fmt.Errorf("selection stage: %w", err)
	}

	// Stage C: terse rewrite into strict JSON with citations attached.
	progress("الطلب 3: الصياغة النهائية وتجهيز روابط التحقق...", 10)
	sourcesJSON, err := json.Marshal(draft.Sources)
	if err != nil {
		return nil, fmt.Errorf("encode draft sources: %w", err)
	}
	finalizePrompt := fmt.Sprintf(`[الأسئلة المختارة]:
%s

[المصادر المتاحة]:
%s

المهمة النهائية:
1. صغ الأسئلة بأسلوب "الإيجاز الممتع" (أقل من 12 كلمة).
2. حول النتيجة إلى JSON حصراً:
{ "id_الفئة": [ {"points": 100, "question": "...", "answer": "...", "sources": [{"title": "...", "uri": "..."}]}, ... ] }
ملاحظة: إذا كان السؤال مستمداً من المصادر المتاحة، أرفق الرابط المناسب في حقل sources.`,
		selection.Text, string(sourcesJSON))

	final, err := s.client.GenerateContent(ctx, model, finalizePrompt, GenerateOptions{JSONResponse: true})
	if err != nil {
		return nil, fmt.Errorf("finalize stage: %w", err)
	}

	payload, err := extractJSON(final.Text)
	if err != nil {
		return nil, fmt.Errorf("finalize stage: %w", err)
	}

	var parsed map[string][]AuthoredQuestion
	if err := json.Unmarshal(payload, &parsed); err != nil {
		return nil, fmt.Errorf("finalize stage: parse structured payload: %w", err)
	}
	return parsed, nil
}

// extractJSON pulls the first JSON-looking span out of generative output,
// which may be wrapped in prose or code fencing.
func extractJSON(text string) ([]byte, error) {
	start := strings.IndexAny(text, "{[")
	if start >= 0 {
		closer := "}"
		if text[start] == '[' {
			closer = "]"
		}
		if end := strings.LastIndex(text, closer); end > start {
			span := []byte(text[start : end+1])
			if json.Valid(span) {
				return span, nil
			}
		}
	}
	trimmed := strings.TrimSpace(text)
	if json.Valid([]byte(trimmed)) {
		return []byte(trimmed), nil
	}
	return nil, errors.New("no parseable JSON span in response")
}

// fallbackQuestionSet is the fixed 5-level placeholder set a category
// receives when the pipeline degrades.
func fallbackQuestionSet() []AuthoredQuestion {
	set := make([]AuthoredQuestion, len(models.PointsLadder))
	for i, points := range models.PointsLadder {
		set[i] = AuthoredQuestion{
			Points:   points,
			Question: authoringFallbackText,
			Answer:   skipAnswerText,
		}
	}
	return set
}
