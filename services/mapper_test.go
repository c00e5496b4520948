package services

import (
	"reflect"
	"testing"

	"tahadi/models"
)

func TestMapStockRowMediaClassification(t *testing.T) {
	cat := models.Category{ID: "gk", Name: "معلومات عامة"}

	testCases := []struct {
		name          string
		row           StockRow
		wantAudio     string
		wantVideo     string
		wantImage     string
		wantMediaType string
	}{
		{
			name:          "audio english tag",
			row:           StockRow{QuestionText: "س", AnswerText: "ج", MediaURL: "https://x/a.mp3", MediaType: "audio"},
			wantAudio:     "https://x/a.mp3",
			wantMediaType: MediaTagAudio,
		},
		{
			name:          "audio arabic tag",
			row:           StockRow{QuestionText: "س", AnswerText: "ج", MediaURL: "https://x/a.mp3", MediaType: "صوت"},
			wantAudio:     "https://x/a.mp3",
			wantMediaType: MediaTagAudio,
		},
		{
			name:          "video tag with noise",
			row:           StockRow{QuestionText: "س", AnswerText: "ج", MediaURL: "https://x/v.mp4", MediaType: "  VIDEO "},
			wantVideo:     "https://x/v.mp4",
			wantMediaType: MediaTagVideo,
		},
		{
			name:          "unknown tag defaults to image",
			row:           StockRow{QuestionText: "س", AnswerText: "ج", MediaURL: "https://x/p.png", MediaType: "picture"},
			wantImage:     "https://x/p.png",
			wantMediaType: MediaTagImage,
		},
		{
			name:          "image_url alias",
			row:           StockRow{QuestionText: "س", AnswerText: "ج", ImageURL: "https://x/p.png"},
			wantImage:     "https://x/p.png",
			wantMediaType: MediaTagImage,
		},
		{
			name: "no media url means no media",
			row:  StockRow{QuestionText: "س", AnswerText: "ج", MediaType: "audio"},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			q := MapStockRow(tc.row, cat, 100)

			if q.AudioURL != tc.wantAudio {
				t.Errorf("AudioURL = %q, want %q", q.AudioURL, tc.wantAudio)
			}
			if q.VideoURL != tc.wantVideo {
				t.Errorf("VideoURL = %q, want %q", q.VideoURL, tc.wantVideo)
			}
			if q.ImageURL != tc.wantImage {
				t.Errorf("ImageURL = %q, want %q", q.ImageURL, tc.wantImage)
			}
			if q.MediaType != tc.wantMediaType {
				t.Errorf("MediaType = %q, want %q", q.MediaType, tc.wantMediaType)
			}

			// Mutual exclusivity: at most one media field set, tag matches it.
			set := 0
			for _, url := range []string{q.AudioURL, q.VideoURL, q.ImageURL} {
				if url != "" {
					set++
				}
			}
			if set > 1 {
				t.Errorf("more than one media field set: %+v", q)
			}
			if set == 0 && q.MediaType != "" {
				t.Errorf("media type %q set without a media field", q.MediaType)
			}
		})
	}
}

func TestMapStockRowTextFallbacks(t *testing.T) {
	cat := models.Category{ID: "gk", Name: "معلومات عامة"}

	q := MapStockRow(StockRow{}, cat, 200)
	if q.QuestionText != missingQuestionText {
		t.Errorf("QuestionText = %q, want fallback %q", q.QuestionText, missingQuestionText)
	}
	if q.AnswerText != missingAnswerText {
		t.Errorf("AnswerText = %q, want fallback %q", q.AnswerText, missingAnswerText)
	}
	if q.Status != models.StatusUnplayed {
		t.Errorf("Status = %q, want %q", q.Status, models.StatusUnplayed)
	}

	// The alternate field pair wins over fallbacks.
	q = MapStockRow(StockRow{Question: "سؤال بديل", Answer: "إجابة بديلة"}, cat, 200)
	if q.QuestionText != "سؤال بديل" || q.AnswerText != "إجابة بديلة" {
		t.Errorf("alternate text fields not used: %q / %q", q.QuestionText, q.AnswerText)
	}
}

func TestMapStockRowEnumeration(t *testing.T) {
	testCases := []struct {
		name string
		cat  models.Category
		row  StockRow
		want bool
	}{
		{"list category id", models.Category{ID: "list_science"}, StockRow{QuestionText: "س", AnswerText: "ج"}, true},
		{"count token in question", models.Category{ID: "gk"}, StockRow{QuestionText: "عدد ألوان قوس قزح؟", AnswerText: "سبعة"}, true},
		{"plain category and question", models.Category{ID: "gk"}, StockRow{QuestionText: "ما عاصمة فرنسا؟", AnswerText: "باريس"}, false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			q := MapStockRow(tc.row, tc.cat, 100)
			if q.IsEnumeration != tc.want {
				t.Errorf("IsEnumeration = %v, want %v", q.IsEnumeration, tc.want)
			}
		})
	}
}

func TestMapStockRowIsPure(t *testing.T) {
	cat := models.Category{ID: "astronomy", Name: "علم الفلك"}
	row := StockRow{
		ID:           7,
		QuestionText: "ما أقرب كوكب إلى الشمس؟",
		AnswerText:   "عطارد",
		MediaURL:     "https://x/p.png",
		MediaType:    "image",
		Sources:      []models.GroundingSource{{Title: "مصدر", URI: "https://example.com"}},
	}

	first := MapStockRow(row, cat, 400)
	second := MapStockRow(row, cat, 400)
	if !reflect.DeepEqual(first, second) {
		t.Errorf("mapping is not deterministic:\n%+v\n%+v", first, second)
	}
}

func TestStockRowValidate(t *testing.T) {
	testCases := []struct {
		name    string
		row     StockRow
		wantErr bool
	}{
		{"both fields present", StockRow{QuestionText: "س", AnswerText: "ج"}, false},
		{"alternate fields present", StockRow{Question: "س", Answer: "ج"}, false},
		{"missing question", StockRow{AnswerText: "ج"}, true},
		{"missing answer", StockRow{QuestionText: "س"}, true},
		{"whitespace only", StockRow{QuestionText: "  ", AnswerText: "ج"}, true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.row.Validate()
			if (err != nil) != tc.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tc.wantErr)
			}
		})
	}
}
