// Package describe generates natural language descriptions of annotated images
// and answers questions about them.
package describe

import (
	"context"
	_ "embed"
	"fmt"
	"strings"

	"github.com/kozaktomas/photo-gallery/internal/ai"
	"github.com/kozaktomas/photo-gallery/internal/constants"
	"github.com/kozaktomas/photo-gallery/internal/database"
	"github.com/kozaktomas/photo-gallery/internal/detect"
	"go.uber.org/zap"
)

//go:embed prompts/enhance_system.txt
var enhanceSystemPrompt string

//go:embed prompts/enhance_user.txt
var enhanceUserPrompt string

//go:embed prompts/chat_system.txt
var chatSystemPrompt string

const (
	// EmptyDescription is used when no object was detected.
	EmptyDescription = "This image does not contain any recognisable objects."

	// ChatFailureReply is returned when the chat provider fails.
	ChatFailureReply = "I apologise, but I'm having trouble processing your question. Please try again."

	// ChatUnavailableReply is returned when no chat provider is configured.
	ChatUnavailableReply = "Sorry, the chat model is not loaded properly."
)

// ImageContext is what the chat assistant knows about an image.
type ImageContext struct {
	Objects   []string
	FaceCount int
}

// ContextFromAnnotations collects the distinct tag labels in detection order and the face count.
func ContextFromAnnotations(ann *database.ImageAnnotations) ImageContext {
	ic := ImageContext{FaceCount: len(ann.Faces)}
	seen := make(map[string]bool, len(ann.Tags))
	for _, t := range ann.Tags {
		if !seen[t.Label] {
			seen[t.Label] = true
			ic.Objects = append(ic.Objects, t.Label)
		}
	}
	return ic
}

// Describer builds descriptions, optionally enhanced by an LLM.
type Describer struct {
	llm ai.Provider
	log *zap.Logger
}

// New creates a Describer. llm may be nil, in which case only templated descriptions are produced.
func New(llm ai.Provider, log *zap.Logger) *Describer {
	return &Describer{llm: llm, log: log}
}

// Describe returns the templated description of boxes, enhanced by the LLM when one is configured.
func (d *Describer) Describe(ctx context.Context, boxes []detect.Box) string {
	basic := Basic(boxes)
	if len(boxes) == 0 {
		return basic
	}
	return d.Enhance(ctx, basic, Labels(boxes))
}

// Enhance asks the LLM for a richer version of basic.
// Any failure falls back to basic.
func (d *Describer) Enhance(ctx context.Context, basic string, labels []string) string {
	if d.llm == nil {
		return basic
	}

	prompt := fmt.Sprintf(enhanceUserPrompt, strings.Join(labels, ", "), basic)
	reply, err := d.llm.Complete(ctx, enhanceSystemPrompt, []ai.Message{{Role: ai.RoleUser, Content: prompt}})
	if err != nil {
		d.log.Warn("description enhancement failed", zap.Error(err))
		return basic
	}

	enhanced := cleanEnhanced(reply)
	if enhanced == "" {
		return basic
	}
	return enhanced
}

// Chat answers the last user message of conversation using the image context.
// It never returns an error; failures produce a fixed apology.
func (d *Describer) Chat(ctx context.Context, image ImageContext, conversation []ai.Message) string {
	if d.llm == nil {
		return ChatUnavailableReply
	}

	faces := "The image does not contain any human faces."
	if image.FaceCount > 0 {
		faces = fmt.Sprintf("The image contains %d human face(s).", image.FaceCount)
	}
	system := fmt.Sprintf(chatSystemPrompt, strings.Join(image.Objects, ", "), faces)

	history := make([]ai.Message, 0, len(conversation))
	for _, m := range conversation {
		if m.Role == ai.RoleUser || m.Role == ai.RoleAssistant {
			history = append(history, m)
		}
	}

	reply, err := d.llm.Complete(ctx, system, history)
	if err != nil {
		d.log.Warn("chat completion failed", zap.Error(err))
		return ChatFailureReply
	}
	return strings.TrimSpace(reply)
}

// cleanEnhanced strips quotes and caps the length.
func cleanEnhanced(s string) string {
	s = strings.TrimSpace(strings.ReplaceAll(s, `"`, ""))
	runes := []rune(s)
	if len(runes) > constants.MaxDescriptionLength {
		keep := constants.MaxDescriptionLength - len(constants.DescriptionEllipsis)
		s = string(runes[:keep]) + constants.DescriptionEllipsis
	}
	return s
}
