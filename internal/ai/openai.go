package ai

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"os"

	openai "github.com/sashabaranov/go-openai"

	"slideflow/internal/config"
)

// EditInput carries one slide-edit request. Overlay, when present, is passed
// to the provider as the edit mask so composited text regions survive the
// regeneration.
type EditInput struct {
	Original      []byte
	Overlay       []byte
	Prompt        string
	QualityInput  string
	QualityOutput string
	OutputFormat  string
}

type ImageEditor struct {
	client *openai.Client
	model  string
}

func NewImageEditor(cfg config.OpenAIConfig) *ImageEditor {
	return &ImageEditor{
		client: openai.NewClient(cfg.APIKey),
		model:  cfg.Model,
	}
}

// Edit runs one image-edit call and returns the raw result bytes.
func (e *ImageEditor) Edit(ctx context.Context, input EditInput) ([]byte, error) {
	if len(input.Original) == 0 {
		return nil, errors.New("empty original image")
	}

	original, err := tempImageFile(input.Original, "original-*.png")
	if err != nil {
		return nil, err
	}
	defer os.Remove(original.Name())
	defer original.Close()

	request := openai.ImageEditRequest{
		Image:          original,
		Prompt:         input.Prompt,
		Model:          e.model,
		N:              1,
		Size:           sizeForQuality(input.QualityOutput),
		ResponseFormat: openai.CreateImageResponseFormatB64JSON,
	}

	if len(input.Overlay) > 0 {
		overlay, err := tempImageFile(input.Overlay, "overlay-*.png")
		if err != nil {
			return nil, err
		}
		defer os.Remove(overlay.Name())
		defer overlay.Close()
		request.Mask = overlay
	}

	response, err := e.client.CreateEditImage(ctx, request)
	if err != nil {
		return nil, fmt.Errorf("image edit: %w", err)
	}
	if len(response.Data) == 0 || response.Data[0].B64JSON == "" {
		return nil, errors.New("image edit returned no output")
	}

	data, err := base64.StdEncoding.DecodeString(response.Data[0].B64JSON)
	if err != nil {
		return nil, fmt.Errorf("decode image payload: %w", err)
	}
	return data, nil
}

func tempImageFile(data []byte, pattern string) (*os.File, error) {
	file, err := os.CreateTemp("", pattern)
	if err != nil {
		return nil, fmt.Errorf("temp file: %w", err)
	}
	if _, err := file.Write(data); err != nil {
		file.Close()
		os.Remove(file.Name())
		return nil, fmt.Errorf("write temp file: %w", err)
	}
	if _, err := file.Seek(0, 0); err != nil {
		file.Close()
		os.Remove(file.Name())
		return nil, fmt.Errorf("rewind temp file: %w", err)
	}
	return file, nil
}

func sizeForQuality(quality string) string {
	switch quality {
	case "low":
		return openai.CreateImageSize512x512
	case "high":
		return openai.CreateImageSize1024x1792
	default:
		return openai.CreateImageSize1024x1024
	}
}
