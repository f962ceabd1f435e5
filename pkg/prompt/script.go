package prompt

import "fmt"

// Script is a canned Prompter for tests. Answers are consumed in order by
// Ask and AskSecret; Confirms by Confirm. Running out of answers is an
// error so a test fails loudly instead of hanging on missing input.
type Script struct {
	Answers  []string
	Confirms []bool
	Said     []string

	answerIdx  int
	confirmIdx int
}

// NewScript builds a Script from ordered answers.
func NewScript(answers ...string) *Script {
	return &Script{Answers: answers}
}

func (s *Script) Ask(prompt string) (string, error) {
	if s.answerIdx >= len(s.Answers) {
		return "", fmt.Errorf("scripted prompter out of answers at %q", prompt)
	}
	answer := s.Answers[s.answerIdx]
	s.answerIdx++
	return answer, nil
}

func (s *Script) AskSecret(prompt string) (string, error) {
	return s.Ask(prompt)
}

func (s *Script) Confirm(prompt string) (bool, error) {
	if s.confirmIdx >= len(s.Confirms) {
		return false, fmt.Errorf("scripted prompter out of confirmations at %q", prompt)
	}
	ok := s.Confirms[s.confirmIdx]
	s.confirmIdx++
	return ok, nil
}

func (s *Script) Say(format string, args ...any) {
	s.Said = append(s.Said, fmt.Sprintf(format, args...))
}
