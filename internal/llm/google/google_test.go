package google

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"google.golang.org/genai"
)

func TestCollectText(t *testing.T) {
	assert.Equal(t, "", collectText(nil))
	assert.Equal(t, "", collectText(&genai.GenerateContentResponse{}))

	result := &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: &genai.Content{Parts: []*genai.Part{
				{Text: "thinking...", Thought: true},
				{Text: "[\"b.com\","},
				{Text: "\"c.com\"]"},
			}},
		}},
	}
	assert.Equal(t, `["b.com","c.com"]`, collectText(result))
}

func TestName(t *testing.T) {
	assert.Equal(t, "google", New("", "").Name())
}
