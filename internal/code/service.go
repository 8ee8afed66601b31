package code

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"neurochat/internal/constants"
	"neurochat/internal/llm"
	"neurochat/internal/models"
)

var (
	ErrEmptySource   = errors.New("code snippet is empty")
	ErrSourceTooLong = errors.New("code snippet is too long")
	ErrEmptyPrompt   = errors.New("generation prompt is empty")
)

// Service answers single-shot code requests. Unlike the conversation
// pipeline nothing is persisted; each request is one completion against the
// inference collaborator.
type Service struct {
	llm llm.Client
}

func NewService(llmClient llm.Client) *Service {
	return &Service{llm: llmClient}
}

type Analysis struct {
	Analysis string `json:"analysis"`
	Language string `json:"language"`
	Stats    Stats  `json:"stats"`
}

type FixResult struct {
	FixedCode string `json:"fixed_code"`
	Language  string `json:"language"`
}

type Explanation struct {
	Explanation string `json:"explanation"`
	Language    string `json:"language"`
}

type Generated struct {
	Code     string `json:"code"`
	Language string `json:"language"`
}

// Analyze reviews the snippet for bugs, style and performance, annotated with
// locally computed line statistics.
func (s *Service) Analyze(ctx context.Context, source, language string) (*Analysis, error) {
	source, language, err := prepareSource(source, language)
	if err != nil {
		return nil, err
	}

	prompt := fmt.Sprintf(`Analyze the following code:

%s

Cover: bugs and potential errors, readability, performance, and concrete improvement suggestions.`, fence(source, language))

	analysis, err := s.llm.Complete(ctx, userTurn(prompt))
	if err != nil {
		return nil, err
	}

	return &Analysis{
		Analysis: analysis,
		Language: language,
		Stats:    CountLines(source),
	}, nil
}

// Fix rewrites the snippet so it works, optionally steered by the error
// message the user observed.
func (s *Service) Fix(ctx context.Context, source, errorText, language string) (*FixResult, error) {
	source, language, err := prepareSource(source, language)
	if err != nil {
		return nil, err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Fix the following code:\n\n%s\n", fence(source, language))
	if errorText != "" {
		fmt.Fprintf(&b, "\nThe error observed:\n%s\n", errorText)
	}
	b.WriteString("\nReturn the corrected code and briefly explain what was wrong.")

	fixed, err := s.llm.Complete(ctx, userTurn(b.String()))
	if err != nil {
		return nil, err
	}

	return &FixResult{FixedCode: fixed, Language: language}, nil
}

// Explain walks through the snippet for a reader seeing it for the first time.
func (s *Service) Explain(ctx context.Context, source, language string) (*Explanation, error) {
	source, language, err := prepareSource(source, language)
	if err != nil {
		return nil, err
	}

	prompt := fmt.Sprintf(`Explain the following code in detail:

%s

Describe what it does, how it works step by step, and any non-obvious behavior.`, fence(source, language))

	explanation, err := s.llm.Complete(ctx, userTurn(prompt))
	if err != nil {
		return nil, err
	}

	return &Explanation{Explanation: explanation, Language: language}, nil
}

// Generate writes new code in the requested language from a natural-language
// description.
func (s *Service) Generate(ctx context.Context, description, language string) (*Generated, error) {
	description = strings.TrimSpace(description)
	if description == "" {
		return nil, ErrEmptyPrompt
	}
	if utf8.RuneCountInString(description) > constants.MaxMessageContentLength {
		return nil, ErrSourceTooLong
	}

	prompt := fmt.Sprintf(`Write %s code for the following task:

%s

Return the code in a fenced block with a short usage note.`, language, description)

	generated, err := s.llm.Complete(ctx, userTurn(prompt))
	if err != nil {
		return nil, err
	}

	return &Generated{Code: generated, Language: language}, nil
}

// prepareSource validates the snippet and fills in the language when the
// caller did not name one.
func prepareSource(source, language string) (string, string, error) {
	if strings.TrimSpace(source) == "" {
		return "", "", ErrEmptySource
	}
	if utf8.RuneCountInString(source) > constants.MaxMessageContentLength {
		return "", "", ErrSourceTooLong
	}
	if language == "" {
		language = DetectLanguage(source)
	}
	return source, language, nil
}

func fence(source, language string) string {
	return "```" + language + "\n" + source + "\n```"
}

func userTurn(content string) []llm.Turn {
	return []llm.Turn{{Role: models.RoleUser, Content: content}}
}
