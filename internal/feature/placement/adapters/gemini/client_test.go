package gemini

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"

	"storefront_backend/internal/feature/placement/domain/entity"
)

type fakeModels struct {
	resp       *genai.GenerateContentResponse
	err        error
	gotModel   string
	gotContent []*genai.Content
	gotConfig  *genai.GenerateContentConfig
}

func (f *fakeModels) GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	f.gotModel = model
	f.gotContent = contents
	f.gotConfig = config
	return f.resp, f.err
}

func textResponse(text string) *genai.GenerateContentResponse {
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{
			{Content: genai.NewContentFromText(text, genai.RoleModel)},
		},
	}
}

func TestGeminiPlacer_InferPlacement(t *testing.T) {
	body := `{"placement":{"position":{"x":0,"y":0,"z":-2},"rotation":1.57,"confidence":0.9},"scale":1,"reasoning":"ok"}`
	fake := &fakeModels{resp: textResponse(body)}
	p := newGeminiPlacer(fake, "")

	frame := entity.Frame{Data: []byte{0xff, 0xd8, 0xff}, MIMEType: "image/jpeg"}
	got, err := p.InferPlacement(context.Background(), "place a chair", frame)
	require.NoError(t, err)

	assert.JSONEq(t, body, string(got))
	assert.Equal(t, DefaultModel, fake.gotModel)

	require.Len(t, fake.gotContent, 1)
	parts := fake.gotContent[0].Parts
	require.Len(t, parts, 2)
	assert.Equal(t, "place a chair", parts[0].Text)
	require.NotNil(t, parts[1].InlineData)
	assert.Equal(t, "image/jpeg", parts[1].InlineData.MIMEType)
	assert.Equal(t, frame.Data, parts[1].InlineData.Data)

	require.NotNil(t, fake.gotConfig)
	assert.Equal(t, "application/json", fake.gotConfig.ResponseMIMEType)
	assert.Same(t, placementSchema, fake.gotConfig.ResponseSchema)
}

func TestGeminiPlacer_InferPlacement_Errors(t *testing.T) {
	tests := []struct {
		name string
		fake *fakeModels
	}{
		{name: "api error", fake: &fakeModels{err: errors.New("quota exceeded")}},
		{name: "empty candidates", fake: &fakeModels{resp: &genai.GenerateContentResponse{}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newGeminiPlacer(tt.fake, "gemini-test")
			_, err := p.InferPlacement(context.Background(), "p", entity.Frame{Data: []byte{1}, MIMEType: "image/png"})
			assert.Error(t, err)
			assert.Equal(t, "gemini-test", tt.fake.gotModel)
		})
	}
}

func TestPlacementSchema_RequiresAllFields(t *testing.T) {
	assert.ElementsMatch(t, []string{"placement", "scale", "reasoning"}, placementSchema.Required)
	placement := placementSchema.Properties["placement"]
	require.NotNil(t, placement)
	assert.ElementsMatch(t, []string{"position", "rotation", "confidence"}, placement.Required)
	assert.Equal(t, genai.TypeNumber, placement.Properties["rotation"].Type, "rotation is a single scalar")
}
