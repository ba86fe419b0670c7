// Package imagegen generates and edits images through the Replicate
// predictions API.
package imagegen

import (
	"fmt"
	"sort"
	"strings"

	"github.com/bottylabs/botty/pkg/logger"
)

// DefaultModelKey is used when no image model is configured.
const DefaultModelKey = "seedream"

// ModelConfig describes one Replicate image model and how to shape its input.
type ModelConfig struct {
	// ModelID is the owner/name identifier on Replicate.
	ModelID string

	// Name is the human-readable model name.
	Name string

	// DefaultParams are merged into every prediction input.
	DefaultParams map[string]any

	// ImageInputKey is the input field used for reference images.
	ImageInputKey string

	// ImageInputAsList controls whether reference images are passed as a
	// list or as a single value.
	ImageInputAsList bool

	// MaxInputImages caps how many reference images the model accepts.
	// Extra images are dropped, not rejected.
	MaxInputImages int
}

var models = map[string]ModelConfig{
	"seedream": {
		ModelID: "bytedance/seedream-4",
		Name:    "Seedream 4",
		DefaultParams: map[string]any{
			"size":           "1K",
			"enhance_prompt": true,
		},
		ImageInputKey:    "image_input",
		ImageInputAsList: true,
		MaxInputImages:   10,
	},
	"nano-banana": {
		ModelID: "google/nano-banana",
		Name:    "Nano Banana",
		DefaultParams: map[string]any{
			"output_format": "png",
		},
		ImageInputKey:    "image_input",
		ImageInputAsList: true,
		MaxInputImages:   3,
	},
	"nano-banana-pro": {
		ModelID: "google/nano-banana-pro",
		Name:    "Nano Banana Pro",
		DefaultParams: map[string]any{
			"resolution":          "2K",
			"output_format":       "png",
			"safety_filter_level": "block_only_high",
		},
		ImageInputKey:    "image_input",
		ImageInputAsList: true,
		MaxInputImages:   14,
	},
}

// ModelFor returns the configuration for a model key.
func ModelFor(key string) (ModelConfig, error) {
	cfg, ok := models[key]
	if !ok {
		return ModelConfig{}, fmt.Errorf("unknown image model %q, valid options: %s", key, strings.Join(modelKeys(), ", "))
	}
	return cfg, nil
}

// ResolveModel picks the model for a configured key, falling back to the
// default with a warning when the key is empty or unknown.
func ResolveModel(key string) ModelConfig {
	if key == "" {
		return models[DefaultModelKey]
	}
	cfg, err := ModelFor(key)
	if err != nil {
		logger.WarnCF("imagegen", "Invalid image model in settings, using default",
			map[string]any{"model": key, "default": DefaultModelKey, "valid": strings.Join(modelKeys(), ", ")})
		return models[DefaultModelKey]
	}
	return cfg
}

func modelKeys() []string {
	keys := make([]string, 0, len(models))
	for k := range models {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// GenerationInput builds the prediction input for text-to-image generation.
func (c ModelConfig) GenerationInput(prompt, aspectRatio string) map[string]any {
	if aspectRatio == "" {
		aspectRatio = "1:1"
	}
	input := map[string]any{
		"prompt":       prompt,
		"aspect_ratio": aspectRatio,
	}
	for k, v := range c.DefaultParams {
		input[k] = v
	}
	return input
}

// EditingInput builds the prediction input for image editing. The aspect
// ratio follows the input images, and reference images beyond the model's
// limit are dropped.
func (c ModelConfig) EditingInput(prompt string, imageURLs []string) map[string]any {
	images := imageURLs
	if len(images) > c.MaxInputImages {
		images = images[:c.MaxInputImages]
	}

	var imageValue any
	if c.ImageInputAsList {
		imageValue = images
	} else if len(images) > 0 {
		imageValue = images[0]
	}

	input := map[string]any{
		"prompt":        prompt,
		c.ImageInputKey: imageValue,
		"aspect_ratio":  "match_input_image",
	}
	for k, v := range c.DefaultParams {
		input[k] = v
	}
	return input
}
