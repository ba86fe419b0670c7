package tools

import (
	"context"
	"fmt"
	"net/http"
	"strings"
)

// ImageGenerator abstracts the image model backend.
type ImageGenerator interface {
	Generate(ctx context.Context, prompt, aspectRatio string) ([]byte, error)
	Edit(ctx context.Context, prompt string, imageURLs []string) ([]byte, error)
}

var aspectRatios = []string{
	"1:1", "4:3", "3:4", "16:9", "9:16", "3:2", "2:3", "21:9",
}

// GenerateImageTool creates an image from a text prompt. A failed or empty
// generation is reported to the user as plain text, never as an error that
// aborts the turn.
type GenerateImageTool struct {
	gen ImageGenerator
}

func NewGenerateImageTool(gen ImageGenerator) *GenerateImageTool {
	return &GenerateImageTool{gen: gen}
}

func (t *GenerateImageTool) Name() string {
	return "generate_image"
}

func (t *GenerateImageTool) Description() string {
	return "Generate an image from a text prompt and post it to the channel."
}

func (t *GenerateImageTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"prompt": map[string]any{
				"type":        "string",
				"description": "What the image should depict",
			},
			"aspect_ratio": map[string]any{
				"type":        "string",
				"description": "Aspect ratio of the generated image",
				"enum":        aspectRatios,
				"default":     "1:1",
			},
			"channel_id": map[string]any{
				"type":        "string",
				"description": "Channel to post the image to",
			},
		},
		"required": []string{"prompt"},
	}
}

func (t *GenerateImageTool) Execute(ctx context.Context, args map[string]any) *Result {
	prompt := stringArg(args, "prompt", "")
	if prompt == "" {
		return ErrorResult("prompt is required")
	}
	channelID := stringArg(args, "channel_id", "")

	data, err := t.gen.Generate(ctx, prompt, stringArg(args, "aspect_ratio", "1:1"))
	if err != nil || len(data) == 0 {
		if err != nil {
			return imageFailure(channelID, fmt.Sprintf("Failed to generate image: %v", err))
		}
		return imageFailure(channelID, "Failed to generate image.")
	}

	return imageResult(channelID, fmt.Sprintf("Image generated for prompt: %s", prompt), data)
}

// EditImageTool edits existing images given their URLs, usually taken from
// attachments earlier in the conversation.
type EditImageTool struct {
	gen ImageGenerator
}

func NewEditImageTool(gen ImageGenerator) *EditImageTool {
	return &EditImageTool{gen: gen}
}

func (t *EditImageTool) Name() string {
	return "edit_image"
}

func (t *EditImageTool) Description() string {
	return "Edit one or more existing images according to a prompt. Pass the image URLs from the conversation."
}

func (t *EditImageTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"prompt": map[string]any{
				"type":        "string",
				"description": "How the image should be changed",
			},
			"image_urls": map[string]any{
				"type":        "array",
				"description": "URLs of the images to edit",
				"items":       map[string]any{"type": "string"},
			},
			"channel_id": map[string]any{
				"type":        "string",
				"description": "Channel to post the edited image to",
			},
		},
		"required": []string{"prompt", "image_urls"},
	}
}

func (t *EditImageTool) Execute(ctx context.Context, args map[string]any) *Result {
	prompt := stringArg(args, "prompt", "")
	if prompt == "" {
		return ErrorResult("prompt is required")
	}
	urls := stringSliceArg(args, "image_urls")
	if len(urls) == 0 {
		return ErrorResult("image_urls is required")
	}
	channelID := stringArg(args, "channel_id", "")

	data, err := t.gen.Edit(ctx, prompt, urls)
	if err != nil || len(data) == 0 {
		if err != nil {
			return imageFailure(channelID, fmt.Sprintf("Failed to edit image: %v", err))
		}
		return imageFailure(channelID, "Failed to edit image.")
	}

	return imageResult(channelID, fmt.Sprintf("Image edited with prompt: %s", prompt), data)
}

// GenerateMemeTool creates a meme: an image generated from a scene prompt
// with a caption rendered onto it.
type GenerateMemeTool struct {
	gen ImageGenerator
}

func NewGenerateMemeTool(gen ImageGenerator) *GenerateMemeTool {
	return &GenerateMemeTool{gen: gen}
}

func (t *GenerateMemeTool) Name() string {
	return "generate_meme"
}

func (t *GenerateMemeTool) Description() string {
	return "Generate a meme from an image prompt and a caption, and post it to the channel."
}

func (t *GenerateMemeTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"image_prompt": map[string]any{
				"type":        "string",
				"description": "What the meme image should depict",
			},
			"text": map[string]any{
				"type":        "string",
				"description": "Caption to render on the meme",
			},
			"aspect_ratio": map[string]any{
				"type":        "string",
				"description": "Aspect ratio of the generated meme",
				"enum":        aspectRatios,
				"default":     "1:1",
			},
			"channel_id": map[string]any{
				"type":        "string",
				"description": "Channel to post the meme to",
			},
		},
		"required": []string{"image_prompt", "text"},
	}
}

func (t *GenerateMemeTool) Execute(ctx context.Context, args map[string]any) *Result {
	imagePrompt := stringArg(args, "image_prompt", "")
	if imagePrompt == "" {
		return ErrorResult("image_prompt is required")
	}
	text := stringArg(args, "text", "")
	if text == "" {
		return ErrorResult("text is required")
	}
	channelID := stringArg(args, "channel_id", "")

	prompt := memePrompt(imagePrompt, text)
	data, err := t.gen.Generate(ctx, prompt, stringArg(args, "aspect_ratio", "1:1"))
	if err != nil || len(data) == 0 {
		if err != nil {
			return imageFailure(channelID, fmt.Sprintf("Failed to generate meme: %v", err))
		}
		return imageFailure(channelID, "Failed to generate meme.")
	}

	return imageResult(channelID,
		fmt.Sprintf("Meme generated with prompt: %s and text: %s", imagePrompt, text), data)
}

func memePrompt(imagePrompt, text string) string {
	return fmt.Sprintf(
		"%s. Render the caption %q on the image in bold white meme lettering with a black outline.",
		imagePrompt, text)
}

func imageResult(channelID, forLLM string, data []byte) *Result {
	return &Result{
		Kind:             KindImage,
		ChannelID:        channelID,
		ForLLM:           forLLM,
		Image:            data,
		ImageContentType: detectImageType(data),
	}
}

// detectImageType sniffs the MIME type from the image bytes. Anything the
// sniffer cannot identify as an image is treated as JPEG, the original
// default.
func detectImageType(data []byte) string {
	ct := http.DetectContentType(data)
	if !strings.HasPrefix(ct, "image/") {
		return "image/jpeg"
	}
	return ct
}

// imageFailure yields a user-visible text event instead of an error so the
// conversation keeps going.
func imageFailure(channelID, msg string) *Result {
	return &Result{
		Kind:      KindText,
		ChannelID: channelID,
		ForLLM:    msg,
		ForUser:   msg,
	}
}
