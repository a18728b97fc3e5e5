package generation

import (
	"encoding/json"
	"fmt"
	"strings"
)

// PromptInput carries everything the lesson prompt embeds.
type PromptInput struct {
	Topic            string
	Category         string
	Subcategory      string
	Semester         int
	Level            string
	WeakConcepts     []string
	LearningVelocity float64
	// Summary is the digest of retrieved documents.
	Summary       string
	RelatedTopics []string
}

// BuildPrompt renders the lesson prompt: learner context, source material
// digest, the target JSON schema and an example document.
func BuildPrompt(in PromptInput) string {
	var b strings.Builder

	b.WriteString("You are a medical education AI. Create a concise, technical lesson overview.\n\n")
	fmt.Fprintf(&b, "TOPIC: %s\n", in.Topic)
	fmt.Fprintf(&b, "CATEGORY: %s\n", in.Category)
	fmt.Fprintf(&b, "SUBCATEGORY: %s\n", in.Subcategory)
	fmt.Fprintf(&b, "SEMESTER: %d\n", in.Semester)
	fmt.Fprintf(&b, "STUDENT LEVEL: %s\n", in.Level)
	fmt.Fprintf(&b, "WEAK AREAS: %s\n", listOrNone(in.WeakConcepts))
	fmt.Fprintf(&b, "LEARNING VELOCITY: %.2f\n\n", in.LearningVelocity)

	b.WriteString("MEDICAL CONTENT:\n")
	b.WriteString(in.Summary)
	b.WriteString("\n\n")

	b.WriteString("Create a clean, technical overview focusing on KEY NOTIONS and essential concepts.\n")
	b.WriteString("Write between 2 and 5 multiple-choice questions with 4 options each; ")
	b.WriteString("correct_answer must be the id of one of the options.\n\n")

	if schema, err := Schema(); err == nil {
		b.WriteString("The response must validate against this JSON schema:\n")
		b.Write(schema)
		b.WriteString("\n\n")
	}

	b.WriteString("Return EXACTLY this JSON format:\n\n")
	example, _ := json.MarshalIndent(exampleDocument(in), "", "  ")
	b.Write(example)
	b.WriteString("\n\nKeep it concise, technical, and focused on essential notions. No extra formatting or complex structures.")

	return b.String()
}

func exampleDocument(in PromptInput) lessonDocument {
	slug := strings.ToLower(strings.ReplaceAll(in.Topic, " ", "_"))
	related := in.RelatedTopics
	if len(related) > 3 {
		related = related[:3]
	}

	firstWeak := "fundamentals"
	if len(in.WeakConcepts) > 0 {
		firstWeak = in.WeakConcepts[0]
	}
	firstRelated := "clinical_application"
	if len(related) > 0 {
		firstRelated = related[0]
	}

	question := func(n int, text, correct string) questionSchema {
		return questionSchema{
			QuestionID:  fmt.Sprintf("q%d_%s", n, slug),
			Text:        text,
			Category:    in.Category,
			Subcategory: in.Subcategory,
			Topic:       in.Topic,
			Difficulty:  in.Level,
			Options: []optionSchema{
				{ID: "a", Text: "[Option A]"},
				{ID: "b", Text: "[Option B]"},
				{ID: "c", Text: "[Option C]"},
				{ID: "d", Text: "[Option D]"},
			},
			CorrectAnswer: correct,
			Explanation:   "Explanation focusing on the key mechanism and clinical relevance.",
		}
	}

	return lessonDocument{
		LessonContent: fmt.Sprintf(
			"**%s**\n\n**Definition:**\n[Clear, technical definition]\n\n**Key Notions:**\n• [Essential concept 1]\n• [Essential concept 2]\n• [Essential concept 3]\n\n**Clinical Relevance:**\n[Brief clinical application]\n\n**Related Concepts:**\n%s",
			in.Topic, strings.Join(related, ", "),
		),
		TargetConcepts: []string{in.Topic, firstWeak, firstRelated},
		Questions: []questionSchema{
			question(1, fmt.Sprintf("What is the primary mechanism of %s?", in.Topic), "c"),
			question(2, fmt.Sprintf("In clinical practice, %s is most important for:", in.Topic), "b"),
		},
		LearningObjectives: []string{
			"Define " + in.Topic,
			"Identify key mechanisms",
			"Apply to clinical scenarios",
		},
		AcademicContext: academicContext{
			Category:      in.Category,
			Subcategory:   in.Subcategory,
			Semester:      in.Semester,
			RelatedTopics: related,
			ContentType:   "technical_overview",
		},
	}
}

func listOrNone(items []string) string {
	if len(items) == 0 {
		return "none"
	}
	return strings.Join(items, ", ")
}
