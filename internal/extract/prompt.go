package extract

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/MimeLyc/linklingua/internal/transcript"
)

// MinSentences and MaxSentences bound the number of sentences requested.
const (
	MinSentences = 40
	MaxSentences = 60
)

const systemPrompt = "You are an expert linguist who prepares trilingual study transcripts for language learners. You answer with JSON only."

// responseSchema is the fixed structured-output contract of the AI call.
var responseSchema = json.RawMessage(`{
	"type": "object",
	"properties": {
		"sentences": {
			"type": "array",
			"items": {
				"type": "object",
				"properties": {
					"sentence_id": {"type": "string"},
					"start": {"type": "number"},
					"end": {"type": "number"},
					"text": {
						"type": "object",
						"properties": {
							"en": {"type": "string"},
							"zh": {"type": "string"},
							"jp": {"type": "string"}
						},
						"required": ["en", "zh", "jp"],
						"additionalProperties": false
					}
				},
				"required": ["sentence_id", "start", "end", "text"],
				"additionalProperties": false
			}
		}
	},
	"required": ["sentences"],
	"additionalProperties": false
}`)

// buildPrompt asks for the transcript of rawURL. grounding holds formatted web
// search results and may be empty.
func buildPrompt(rawURL string, grounding string) string {
	var prompt strings.Builder

	prompt.WriteString("=== VIDEO ===\n")
	prompt.WriteString(fmt.Sprintf("URL: %s\n", strings.TrimSpace(rawURL)))

	if grounding != "" {
		prompt.WriteString("\n=== WEB SEARCH RESULTS ===\n")
		prompt.WriteString("Use these results to find the precise transcript, lyrics or captions of this specific video.\n\n")
		prompt.WriteString(grounding)
		prompt.WriteString("\n")
	}

	prompt.WriteString("\n=== TASK ===\n")
	prompt.WriteString(fmt.Sprintf("1. Extract %d-%d logical sentences that span the entire duration of the video.\n", MinSentences, MaxSentences))
	prompt.WriteString("2. For each sentence give sentence_id, start and end time in seconds (float), and the text in English (en), Chinese (zh) and Japanese (jp).\n")
	prompt.WriteString("3. Sentences must be ordered by start time and every start must be smaller than its end.\n")
	prompt.WriteString("\nDo not hallucinate. If you cannot find the exact transcript, use the most detailed summary or similar content and map it accurately to timestamps.\n")

	prompt.WriteString("\n=== OUTPUT FORMAT ===\n")
	prompt.WriteString(`Return ONLY a JSON object of the form {"sentences": [...]}. Do not include any explanations or markdown.` + "\n")

	return prompt.String()
}

// flexID accepts sentence ids sent as strings or numbers.
type flexID string

func (f *flexID) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		*f = ""
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*f = flexID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("sentence_id must be a string or number: %w", err)
	}
	*f = flexID(n.String())
	return nil
}

type responseSentence struct {
	SentenceID flexID          `json:"sentence_id"`
	Start      float64         `json:"start"`
	End        float64         `json:"end"`
	Text       transcript.Text `json:"text"`
}

type responseBody struct {
	Sentences []responseSentence `json:"sentences"`
}

// stripFences removes a surrounding markdown code fence some models add even
// in JSON mode.
func stripFences(content string) string {
	s := strings.TrimSpace(content)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		s = s[nl+1:]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

// decodeSentences parses the model output. An empty body or empty sentence
// list yields nil with no error; anything unparsable is an error.
func decodeSentences(content string) ([]transcript.Sentence, error) {
	body := stripFences(content)
	if body == "" {
		return nil, nil
	}

	var parsed responseBody
	if err := json.Unmarshal([]byte(body), &parsed); err != nil {
		return nil, fmt.Errorf("decode model output: %w", err)
	}
	if len(parsed.Sentences) == 0 {
		return nil, nil
	}

	sentences := make([]transcript.Sentence, 0, len(parsed.Sentences))
	for i, rs := range parsed.Sentences {
		id := strings.TrimSpace(string(rs.SentenceID))
		if id == "" {
			id = strconv.Itoa(i + 1)
		}
		sentences = append(sentences, transcript.Sentence{
			ID:    id,
			Start: transcript.Seconds(rs.Start),
			End:   transcript.Seconds(rs.End),
			Text: transcript.Text{
				EN: strings.TrimSpace(rs.Text.EN),
				ZH: strings.TrimSpace(rs.Text.ZH),
				JP: strings.TrimSpace(rs.Text.JP),
			},
		})
	}
	return sentences, nil
}
