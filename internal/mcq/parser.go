// Package mcq turns admin-submitted text into questions.
//
// A submission is a sequence of lines:
//
//	SUBJECT: Anatomy
//	Q. What is X?
//	A) a
//	B) b
//	C) c
//	D) d
//	Ans: B
//	Exp: because
//
// A SUBJECT header applies to every following block until the next header.
// A block ends at the next question marker or SUBJECT header. Once its answer
// has been seen it also ends at a blank line or a choice line; unmarked lines
// right before that choice line belong to the next prompt.
package mcq

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/example/studybot/pkg/models"
)

var (
	subjectRe     = regexp.MustCompile(`(?i)^subject\s*[:\-]\s*(.*)$`)
	questionRe    = regexp.MustCompile(`(?i)^q(?:uestion)?\s*\d*\s*[.:)\-]\s*(.*)$`)
	choiceRe      = regexp.MustCompile(`^\(?([A-Da-d])\s*(?:\)|[.:\-](?:\s|$))\s*(.*)$`)
	answerRe      = regexp.MustCompile(`(?i)^(?:ans|answer|correct answer)\s*[:.\-]\s*(.*)$`)
	explanationRe = regexp.MustCompile(`(?i)^(?:exp|expl|explanation)\s*[:.\-]\s*(.*)$`)
)

// Rejection describes a block that was skipped
type Rejection struct {
	Line   int
	Reason string
}

// Result is the outcome of parsing one submission
type Result struct {
	Questions []models.Question
	Skipped   int
	Rejected  []Rejection
}

type field int

const (
	fieldNone field = iota
	fieldPrompt
	fieldChoice
	fieldAnswer
	fieldExplanation
)

type block struct {
	line        int
	subject     string
	prompt      []string
	choices     map[models.Choice]string
	duplicate   bool
	answerSeen  bool
	answerRaw   string
	explanation []string
	last        field
	lastChoice  models.Choice

	// tail counts unmarked lines after the explanation marker, tailLine is the first of them
	tail     int
	tailLine int
}

func (b *block) empty() bool {
	return len(b.prompt) == 0 && len(b.choices) == 0 && !b.answerSeen && len(b.explanation) == 0 && !b.duplicate
}

// takeTail removes the unmarked explanation lines and returns them
func (b *block) takeTail() ([]string, int) {
	if b.last != fieldExplanation || b.tail == 0 {
		return nil, 0
	}
	cut := len(b.explanation) - b.tail
	tail := append([]string(nil), b.explanation[cut:]...)
	b.explanation = b.explanation[:cut]
	b.tail = 0
	return tail, b.tailLine
}

type parser struct {
	subject string
	cur     *block
	result  Result
}

// Parse reads every block of text. Malformed blocks never fail the parse,
// they are counted in Skipped with a reason in Rejected.
func Parse(text string) Result {
	p := &parser{subject: models.DefaultSubject}
	lines := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")
	for i, raw := range lines {
		p.line(i+1, strings.TrimSpace(raw))
	}
	p.flush()
	return p.result
}

func (p *parser) start(line int) *block {
	p.cur = &block{line: line, subject: p.subject, choices: make(map[models.Choice]string)}
	return p.cur
}

func (p *parser) block(line int) *block {
	if p.cur == nil {
		return p.start(line)
	}
	return p.cur
}

func (p *parser) line(n int, line string) {
	if line == "" {
		if p.cur != nil && p.cur.answerSeen {
			p.flush()
		}
		return
	}

	if m := subjectRe.FindStringSubmatch(line); m != nil {
		p.flush()
		p.subject = strings.TrimSpace(m[1])
		if p.subject == "" {
			p.subject = models.DefaultSubject
		}
		return
	}

	if m := answerRe.FindStringSubmatch(line); m != nil {
		b := p.block(n)
		b.answerSeen = true
		b.answerRaw = strings.TrimSpace(m[1])
		b.last = fieldAnswer
		return
	}

	if m := explanationRe.FindStringSubmatch(line); m != nil {
		b := p.block(n)
		b.explanation = append(b.explanation, strings.TrimSpace(m[1]))
		b.last = fieldExplanation
		b.tail = 0
		return
	}

	if m := questionRe.FindStringSubmatch(line); m != nil {
		p.flush()
		b := p.start(n)
		b.prompt = append(b.prompt, strings.TrimSpace(m[1]))
		b.last = fieldPrompt
		return
	}

	if m := choiceRe.FindStringSubmatch(line); m != nil {
		b := p.cur
		if b != nil && b.answerSeen {
			// unmarked lines between the explanation and this choice open the next prompt
			prompt, line := b.takeTail()
			p.flush()
			if len(prompt) > 0 {
				n = line
			}
			b = p.start(n)
			b.prompt = prompt
		}
		b = p.block(n)
		c, _ := models.ParseChoice(m[1])
		if _, ok := b.choices[c]; ok {
			b.duplicate = true
		}
		b.choices[c] = strings.TrimSpace(m[2])
		b.last = fieldChoice
		b.lastChoice = c
		return
	}

	// continuation text
	if p.cur != nil && p.cur.last == fieldAnswer {
		p.flush()
	}
	b := p.block(n)
	switch b.last {
	case fieldChoice:
		b.choices[b.lastChoice] = strings.TrimSpace(b.choices[b.lastChoice] + " " + line)
	case fieldExplanation:
		if b.tail == 0 {
			b.tailLine = n
		}
		b.explanation = append(b.explanation, line)
		b.tail++
	default:
		b.prompt = append(b.prompt, line)
		b.last = fieldPrompt
	}
}

func (p *parser) flush() {
	b := p.cur
	p.cur = nil
	if b == nil || b.empty() {
		return
	}

	var options [4]string
	for i, c := range models.Choices {
		options[i] = b.choices[c]
	}

	var q models.Question
	var err error
	if b.duplicate {
		err = errors.New("duplicate choice")
	} else {
		q, err = NewQuestion(b.subject, strings.Join(b.prompt, "\n"), options, b.answerRaw, strings.Join(b.explanation, "\n"))
	}
	if err != nil {
		p.result.Skipped++
		p.result.Rejected = append(p.result.Rejected, Rejection{Line: b.line, Reason: err.Error()})
		return
	}
	p.result.Questions = append(p.result.Questions, q)
}

// NewQuestion validates the fields of one question. All four options must be
// non-empty and answer must name one of them; prompt and explanation may be empty.
func NewQuestion(subject, prompt string, options [4]string, answer, explanation string) (models.Question, error) {
	var missing []string
	for i, opt := range options {
		if strings.TrimSpace(opt) == "" {
			missing = append(missing, string(models.Choices[i]))
		}
	}
	if len(missing) > 0 {
		return models.Question{}, fmt.Errorf("missing choice %s", strings.Join(missing, ", "))
	}

	if strings.TrimSpace(answer) == "" {
		return models.Question{}, errors.New("missing answer")
	}
	correct, ok := answerLetter(answer)
	if !ok {
		return models.Question{}, fmt.Errorf("invalid answer %q", answer)
	}

	subject = strings.TrimSpace(subject)
	if subject == "" {
		subject = models.DefaultSubject
	}

	return models.Question{
		Text:          strings.TrimSpace(prompt),
		ChoiceA:       strings.TrimSpace(options[0]),
		ChoiceB:       strings.TrimSpace(options[1]),
		ChoiceC:       strings.TrimSpace(options[2]),
		ChoiceD:       strings.TrimSpace(options[3]),
		CorrectChoice: correct,
		Explanation:   strings.TrimSpace(explanation),
		Subject:       subject,
	}, nil
}

// answerLetter accepts "B", "b", "(B)", "B)" and "B) text"
func answerLetter(s string) (models.Choice, bool) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "(")
	if s == "" {
		return "", false
	}
	c, ok := models.ParseChoice(s[:1])
	if !ok {
		return "", false
	}
	if len(s) > 1 {
		next := s[1]
		if (next >= 'a' && next <= 'z') || (next >= 'A' && next <= 'Z') {
			return "", false
		}
	}
	return c, true
}
