// Package aiwriter generates short Portuguese outreach copy for leads using
// the Anthropic API.
package aiwriter

import (
	"context"
	"fmt"
	"strings"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/rotisserie/eris"
)

// Generator defines the copy generation operations.
type Generator interface {
	// Icebreaker writes a first outbound message for the lead. The result
	// is a single short paragraph, no greeting boilerplate.
	Icebreaker(ctx context.Context, p Prompt) (string, error)
}

// Prompt carries the lead context the copy is grounded on.
type Prompt struct {
	BusinessName string
	Category     string
	City         string
	Tone         string
	HasWebsite   bool
	HasWhatsApp  bool
	Opportunity  string
}

const systemPrompt = `Você escreve mensagens de prospecção B2B curtas para uma
agência de marketing digital brasileira. Regras: uma única mensagem de no
máximo 3 frases, em português informal-profissional, personalizada com os
dados do negócio, sem saudação genérica, sem assinatura, sem emojis em
excesso. Nunca invente fatos que não estejam no contexto.`

// Config holds the model settings.
type Config struct {
	Model     string
	MaxTokens int
}

type sdkGenerator struct {
	client sdk.Client
	cfg    Config
}

// New creates a Generator backed by the official SDK.
func New(apiKey string, cfg Config, opts ...option.RequestOption) Generator {
	if cfg.Model == "" {
		cfg.Model = "claude-haiku-4-5-20251001"
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 1024
	}
	clientOpts := append([]option.RequestOption{option.WithAPIKey(apiKey)}, opts...)
	return &sdkGenerator{
		client: sdk.NewClient(clientOpts...),
		cfg:    cfg,
	}
}

func (g *sdkGenerator) Icebreaker(ctx context.Context, p Prompt) (string, error) {
	if p.BusinessName == "" {
		return "", eris.New("aiwriter: business name is required")
	}

	msg, err := g.client.Messages.New(ctx, sdk.MessageNewParams{
		Model:     sdk.Model(g.cfg.Model),
		MaxTokens: int64(g.cfg.MaxTokens),
		System:    []sdk.TextBlockParam{{Text: systemPrompt}},
		Messages: []sdk.MessageParam{
			sdk.NewUserMessage(sdk.NewTextBlock(p.userPrompt())),
		},
	})
	if err != nil {
		return "", eris.Wrapf(err, "aiwriter: icebreaker for %s", p.BusinessName)
	}

	for _, block := range msg.Content {
		if block.Type == "text" && strings.TrimSpace(block.Text) != "" {
			return strings.TrimSpace(block.Text), nil
		}
	}
	return "", eris.New("aiwriter: empty completion")
}

func (p Prompt) userPrompt() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Negócio: %s\n", p.BusinessName)
	if p.Category != "" {
		fmt.Fprintf(&b, "Segmento: %s\n", p.Category)
	}
	if p.City != "" {
		fmt.Fprintf(&b, "Cidade: %s\n", p.City)
	}
	if p.HasWebsite {
		b.WriteString("Tem site próprio.\n")
	} else {
		b.WriteString("Não tem site próprio.\n")
	}
	if p.HasWhatsApp {
		b.WriteString("Atende por WhatsApp.\n")
	}
	if p.Opportunity != "" {
		fmt.Fprintf(&b, "Diagnóstico: %s\n", p.Opportunity)
	}
	tone := p.Tone
	if tone == "" {
		tone = "consultivo"
	}
	fmt.Fprintf(&b, "Tom desejado: %s\n", tone)
	b.WriteString("Escreva a mensagem de abertura.")
	return b.String()
}
