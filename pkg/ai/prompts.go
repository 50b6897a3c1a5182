package ai

import (
	"encoding/json"
	"fmt"
	"strings"
)

const systemPrompt = "You help a family organise their household. " +
	"You read short notes, messages and scanned documents and answer only with a single JSON object."

// CaptureAnalysisPrompt asks for the urgency, category, entities, intent,
// follow-up actions and keywords of one captured text.
func CaptureAnalysisPrompt(content string) string {
	return fmt.Sprintf(`
Analyze this text and extract the following information:

Text: %q

Please provide:
1. Urgency score (1-5, where 5 is most urgent)
2. Category (task, event, note, reminder, question)
3. Key entities (people, places, dates, times)
4. Intent/action required
5. Suggested follow-up actions
6. Your confidence in this analysis (0-1)

Format your response as JSON with this structure:
{
  "urgency_score": <1-5>,
  "category": "<category>",
  "entities": {
    "people": ["name1", "name2"],
    "places": ["location1"],
    "dates": ["date1"],
    "times": ["time1"]
  },
  "intent": "<what the user wants to accomplish>",
  "suggested_actions": ["action1", "action2"],
  "keywords": ["keyword1", "keyword2"],
  "confidence": <0-1>
}
`, content)
}

// CaptureAnalysis is the JSON contract of CaptureAnalysisPrompt.
type CaptureAnalysis struct {
	UrgencyScore int    `json:"urgency_score"`
	Category     string `json:"category"`
	Entities     struct {
		People []string `json:"people"`
		Places []string `json:"places"`
		Dates  []string `json:"dates"`
		Times  []string `json:"times"`
	} `json:"entities"`
	Intent           string   `json:"intent"`
	SuggestedActions []string `json:"suggested_actions"`
	Keywords         []string `json:"keywords"`
	Confidence       float64  `json:"confidence"`
}

// ParseCaptureAnalysis decodes a model reply, tolerating code fences and
// chatter around the JSON object.
func ParseCaptureAnalysis(reply string) (*CaptureAnalysis, error) {
	var a CaptureAnalysis
	if err := json.Unmarshal([]byte(CleanJSON(reply)), &a); err != nil {
		return nil, fmt.Errorf("failed to parse analysis: %w", err)
	}
	return &a, nil
}

// CleanJSON strips markdown fences and anything outside the outermost
// braces.
func CleanJSON(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	if start, end := strings.Index(s, "{"), strings.LastIndex(s, "}"); start >= 0 && end > start {
		s = s[start : end+1]
	}
	return strings.TrimSpace(s)
}
