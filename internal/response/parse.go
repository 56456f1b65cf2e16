package response

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/ashureev/chatcheckout/internal/domain"
)

// ErrMalformedCompletion marks structured output that failed validation.
var ErrMalformedCompletion = errors.New("malformed structured completion")

const maxChoices = 4

type structuredCompletion struct {
	Message  *string  `json:"message"`
	Choices  []string `json:"choices"`
	NextStep string   `json:"nextStep"`
}

// ParseStructured validates a JSON completion. Any deviation from the
// expected shape is an error; nothing is salvaged from partial output.
func ParseStructured(text string) (domain.ChatResponse, error) {
	dec := json.NewDecoder(bytes.NewReader([]byte(strings.TrimSpace(text))))
	dec.DisallowUnknownFields()

	var sc structuredCompletion
	if err := dec.Decode(&sc); err != nil {
		return domain.ChatResponse{}, fmt.Errorf("%w: %v", ErrMalformedCompletion, err)
	}
	if dec.More() {
		return domain.ChatResponse{}, fmt.Errorf("%w: trailing data", ErrMalformedCompletion)
	}
	if sc.Message == nil || strings.TrimSpace(*sc.Message) == "" {
		return domain.ChatResponse{}, fmt.Errorf("%w: empty message", ErrMalformedCompletion)
	}

	next := domain.StepTag(sc.NextStep)
	switch next {
	case "":
		next = domain.StepQuestionMode
	case domain.StepQuestionMode, domain.StepExpressQuantity:
	default:
		return domain.ChatResponse{}, fmt.Errorf("%w: next step %q", ErrMalformedCompletion, sc.NextStep)
	}

	if len(sc.Choices) > maxChoices {
		return domain.ChatResponse{}, fmt.Errorf("%w: %d choices", ErrMalformedCompletion, len(sc.Choices))
	}
	choices := make([]string, 0, len(sc.Choices))
	for _, c := range sc.Choices {
		c = strings.TrimSpace(c)
		if c == "" {
			return domain.ChatResponse{}, fmt.Errorf("%w: empty choice", ErrMalformedCompletion)
		}
		choices = append(choices, c)
	}
	if len(choices) == 0 {
		choices = defaultChoices()
	}
	return domain.NewResponse(strings.TrimSpace(*sc.Message), next, choices...), nil
}

// wrapPlain turns narrative completion text into an envelope.
func wrapPlain(text string) domain.ChatResponse {
	return domain.NewResponse(strings.TrimSpace(text), domain.StepQuestionMode, defaultChoices()...)
}

func defaultChoices() []string {
	return []string{ChoiceBuy, ChoiceAnotherQuestion, ChoiceSeeReviews}
}
