// Package quiz builds MCQ prompts and leniently parses the model's reply.
package quiz

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"unicode"

	"studynotion/internal/model"
)

const (
	DefaultCount = 4
	MaxCount     = 20

	// RawMessage accompanies an unparseable reply.
	RawMessage = "Could not parse MCQ JSON. See raw."
)

// Count normalises the requested number of questions: missing or
// non-positive means DefaultCount, anything above MaxCount is clamped.
func Count(n int) int {
	switch {
	case n <= 0:
		return DefaultCount
	case n > MaxCount:
		return MaxCount
	default:
		return n
	}
}

// Prompt asks for n MCQs about topic as a bare JSON array.
func Prompt(topic string, n int) string {
	return fmt.Sprintf(`Create %d multiple-choice questions about "%s" suitable for a student. 
Return EXACTLY JSON array (no extra text) like:
[
  { "q": "Question text?", "options": ["A","B","C","D"], "answer": 1 },
  ...
]
Provide simple options and mark correct option index (0-based).`, Count(n), topic)
}

// State is a step of the reply parser.
type State int

const (
	AwaitResponse State = iota
	Extract
	StrictParse
	Parsed
	Raw
)

func (s State) String() string {
	switch s {
	case AwaitResponse:
		return "await_response"
	case Extract:
		return "extract"
	case StrictParse:
		return "strict_parse"
	case Parsed:
		return "parsed"
	case Raw:
		return "raw"
	default:
		return "unknown"
	}
}

// Result is the terminal state of Parse: either a Quiz (State == Parsed) or
// the untouched content (State == Raw).
type Result struct {
	State State
	Quiz  model.Quiz
	Raw   string
}

// Parse runs the reply content through extraction and strict decoding. It
// never fails; anything that does not decode ends in Raw.
func Parse(content string) Result {
	state := AwaitResponse
	var candidate string
	for {
		switch state {
		case AwaitResponse:
			state = Extract
		case Extract:
			start := strings.Index(content, "[")
			end := strings.LastIndex(content, "]")
			if start == -1 || end == -1 || end <= start {
				return Result{State: Raw, Raw: content}
			}
			candidate = content[start : end+1]
			state = StrictParse
		case StrictParse:
			q, err := decode(candidate)
			if err != nil {
				return Result{State: Raw, Raw: content}
			}
			return Result{State: Parsed, Quiz: q}
		}
	}
}

// NoAnswer marks a question whose answer could not be read as an option index.
const NoAnswer = -1

// wireQuestion is one array element as the model wrote it; fields stay raw
// until normalised.
type wireQuestion struct {
	Q       json.RawMessage `json:"q"`
	Options json.RawMessage `json:"options"`
	Answer  json.RawMessage `json:"answer"`
}

func decode(s string) (model.Quiz, error) {
	dec := json.NewDecoder(strings.NewReader(s))
	var items []json.RawMessage
	if err := dec.Decode(&items); err != nil {
		return nil, err
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, fmt.Errorf("trailing data after quiz array")
	}
	if items == nil {
		return nil, fmt.Errorf("null quiz")
	}

	q := make(model.Quiz, 0, len(items))
	for _, item := range items {
		q = append(q, question(item))
	}
	return q, nil
}

// question normalises one element. A non-object element keeps its text as
// the question with no options.
func question(item json.RawMessage) model.Question {
	var w wireQuestion
	if t := bytes.TrimSpace(item); len(t) == 0 || t[0] != '{' || json.Unmarshal(t, &w) != nil {
		return model.Question{Q: text(item), Options: []string{}, Answer: NoAnswer}
	}
	opts := options(w.Options)
	return model.Question{Q: text(w.Q), Options: opts, Answer: answerIndex(w.Answer, opts)}
}

func options(raw json.RawMessage) []string {
	var list []json.RawMessage
	if err := json.Unmarshal(raw, &list); err != nil || list == nil {
		if t := text(raw); t != "" {
			return []string{t}
		}
		return []string{}
	}
	opts := make([]string, len(list))
	for i, o := range list {
		opts[i] = text(o)
	}
	return opts
}

// text renders a JSON scalar as display text: strings unquoted, anything
// else as written.
func text(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}

// answerIndex accepts 1, 1.0, "1", the text of an option or an option
// letter ("B"). Anything else is NoAnswer.
func answerIndex(raw json.RawMessage, opts []string) int {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return NoAnswer
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		return wholeIndex(f)
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return NoAnswer
	}
	s = strings.TrimSpace(s)
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return wholeIndex(f)
	}
	for i, o := range opts {
		if o == s {
			return i
		}
	}
	if len(s) == 1 {
		if c := unicode.ToUpper(rune(s[0])); c >= 'A' && c <= 'Z' && int(c-'A') < len(opts) {
			return int(c - 'A')
		}
	}
	return NoAnswer
}

func wholeIndex(f float64) int {
	if f < 0 || f != math.Trunc(f) || f > math.MaxInt32 {
		return NoAnswer
	}
	return int(f)
}
