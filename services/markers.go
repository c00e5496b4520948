package services

import (
	"fmt"
	"strings"

	"tahadi/models"
)

// Sentinel strings shared between the supply engine, the authoring pipeline
// and any presentation layer. Consumers must match these through the
// predicates below, never by duplicating the literals.
const (
	// Shortage diagnostics and the placeholder cell body.
	shortageMessageFormat  = "نقص: %s (%d)"
	shortagePlaceholderFmt = "عذراً، نفد مخزون الأسئلة لهذه الفئة (%d)"
	skipAnswerText         = "تجاوز"

	// Canned question used when the authoring pipeline degrades.
	authoringFallbackText = "خطأ في الاتصال بالشبكة، يرجى المحاولة."

	// Mapper fallbacks for rows with empty text fields.
	missingQuestionText = "سؤال مفقود"
	missingAnswerText   = "إجابة مفقودة"

	// Enumeration markers. A category whose id carries the list token, or
	// whose question text asks to count things, runs on the enumeration timer.
	enumerationIDToken       = "list"
	enumerationNameToken     = "تعداد"
	enumerationQuestionToken = "عدد"
)

// Media type tags as the presentation layer expects them.
const (
	MediaTagAudio = "صوت"
	MediaTagVideo = "فيديو"
	MediaTagImage = "صورة"
)

// ShortageMessage is the diagnostic appended to the supply errors list when a
// cell has no available question.
func ShortageMessage(categoryName string, points int) string {
	return fmt.Sprintf(shortageMessageFormat, categoryName, points)
}

// NewShortagePlaceholder synthesizes the cell used when the stock is
// exhausted for a (category, points) pair. Its status is terminal so the cell
// can be inspected but never played.
func NewShortagePlaceholder(cat models.Category, points int) models.Question {
	return models.Question{
		ID:           models.BoardKey(cat.ID, points),
		CategoryID:   cat.ID,
		Points:       points,
		QuestionText: fmt.Sprintf(shortagePlaceholderFmt, points),
		AnswerText:   skipAnswerText,
		Status:       models.StatusAnsweredIncorrect,
	}
}

// IsShortagePlaceholder reports whether a question is a stock-exhaustion
// placeholder rather than a real question. Exact equality on the synthesized
// text avoids false positives when a real question happens to contain the
// same substring.
func IsShortagePlaceholder(q models.Question) bool {
	return q.Status == models.StatusAnsweredIncorrect &&
		q.QuestionText == fmt.Sprintf(shortagePlaceholderFmt, q.Points)
}

// IsAuthoringFallback reports whether an authored question is the canned
// degrade result rather than generated content.
func IsAuthoringFallback(q AuthoredQuestion) bool {
	return q.Question == authoringFallbackText
}

func categoryHasListMarker(cat models.Category) bool {
	return strings.Contains(cat.ID, enumerationIDToken)
}
