// Package llm runs the agent's reasoning loop against an OpenAI-compatible
// chat completions endpoint (Azure OpenAI, OpenAI or a local Ollama).
package llm

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/ai/azopenai"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/to"
	"github.com/go-faster/errors"
	"github.com/rs/zerolog"

	"issuebridge/internal/agent"
	"issuebridge/internal/config"
	"issuebridge/internal/middleware"
)

// Ollama ignores the key but the client refuses an empty credential.
const placeholderKey = "ollama"

// ChatClient is the part of azopenai.Client the reasoner uses.
type ChatClient interface {
	GetChatCompletions(ctx context.Context, body azopenai.ChatCompletionsOptions, options *azopenai.GetChatCompletionsOptions) (azopenai.GetChatCompletionsResponse, error)
}

// Reasoner alternates model turns and tool calls until the model answers
// without requesting a tool.
type Reasoner struct {
	client      ChatClient
	model       string
	temperature float32
	maxRounds   int
	logger      zerolog.Logger
}

// New creates a Reasoner for cfg. The offline provider has no model client
// and is rejected.
func New(cfg config.ModelConfig, logger zerolog.Logger) (*Reasoner, error) {
	key := cfg.APIKey
	if key == "" {
		key = placeholderKey
	}
	opts := &azopenai.ClientOptions{}
	if strings.HasPrefix(cfg.Endpoint, "http://") {
		opts.InsecureAllowCredentialWithHTTP = true
	}

	var (
		client *azopenai.Client
		err    error
	)
	switch cfg.Provider {
	case config.ProviderAzure:
		client, err = azopenai.NewClientWithKeyCredential(cfg.Endpoint, azcore.NewKeyCredential(key), opts)
	case config.ProviderOpenAI:
		client, err = azopenai.NewClientForOpenAI(cfg.Endpoint, azcore.NewKeyCredential(key), opts)
	default:
		return nil, errors.Errorf("provider %q has no model client", cfg.Provider)
	}
	if err != nil {
		return nil, errors.Wrap(err, "create chat client")
	}
	return NewWithClient(client, cfg, logger), nil
}

// NewWithClient creates a Reasoner over an existing chat client.
func NewWithClient(client ChatClient, cfg config.ModelConfig, logger zerolog.Logger) *Reasoner {
	rounds := cfg.MaxRounds
	if rounds <= 0 {
		rounds = config.Default().Model.MaxRounds
	}
	return &Reasoner{
		client:      client,
		model:       cfg.Name,
		temperature: cfg.Temperature,
		maxRounds:   rounds,
		logger:      logger.With().Str("component", "llm").Str("model", cfg.Name).Logger(),
	}
}

// Invoke runs the loop for prompt and returns the transcript: the user
// prompt, every assistant turn and every tool result in order.
func (r *Reasoner) Invoke(ctx context.Context, prompt string, tools []agent.Tool) ([]agent.Message, error) {
	defs, err := toolDefinitions(tools)
	if err != nil {
		return nil, err
	}
	byName := make(map[string]agent.Tool, len(tools))
	for _, t := range tools {
		byName[t.Name()] = t
	}

	messages := []azopenai.ChatRequestMessageClassification{
		&azopenai.ChatRequestUserMessage{
			Content: azopenai.NewChatRequestUserMessageContent(prompt),
		},
	}
	transcript := []agent.Message{{Role: agent.RoleUser, Content: prompt}}
	logger := r.logger.With().Str("run_id", middleware.GetRequestID(ctx)).Logger()

	for round := 0; ; round++ {
		opts := azopenai.ChatCompletionsOptions{
			DeploymentName: to.Ptr(r.model),
			Messages:       messages,
			Temperature:    to.Ptr(r.temperature),
		}
		if len(defs) > 0 {
			opts.Tools = defs
		}

		resp, err := r.client.GetChatCompletions(ctx, opts, nil)
		if err != nil {
			return transcript, errors.Wrap(err, "chat completion")
		}
		if len(resp.Choices) == 0 || resp.Choices[0].Message == nil {
			return transcript, errors.New("chat completion returned no choices")
		}
		msg := resp.Choices[0].Message

		if msg.Content != nil {
			transcript = append(transcript, agent.Message{Role: agent.RoleAssistant, Content: *msg.Content})
		}
		calls := functionCalls(msg.ToolCalls)
		if len(calls) == 0 {
			return transcript, nil
		}
		if round >= r.maxRounds {
			return transcript, errors.Errorf("no final answer after %d tool rounds", r.maxRounds)
		}

		messages = append(messages, &azopenai.ChatRequestAssistantMessage{ToolCalls: msg.ToolCalls})
		for _, call := range calls {
			name := deref(call.Function.Name)
			out := r.callTool(ctx, byName, name, deref(call.Function.Arguments))
			logger.Debug().Int("round", round).Str("tool", name).Msg("tool call")

			messages = append(messages, &azopenai.ChatRequestToolMessage{
				Content:    azopenai.NewChatRequestToolMessageContent(out),
				ToolCallID: call.ID,
			})
			transcript = append(transcript, agent.Message{Role: agent.RoleTool, Content: out, ToolName: name})
		}
	}
}

func (r *Reasoner) callTool(ctx context.Context, tools map[string]agent.Tool, name, args string) string {
	t, ok := tools[name]
	if !ok {
		return "Unknown tool: " + name
	}
	if strings.TrimSpace(args) == "" {
		args = "{}"
	}
	return t.Call(ctx, args)
}

func functionCalls(calls []azopenai.ChatCompletionsToolCallClassification) []*azopenai.ChatCompletionsFunctionToolCall {
	var out []*azopenai.ChatCompletionsFunctionToolCall
	for _, c := range calls {
		if fc, ok := c.(*azopenai.ChatCompletionsFunctionToolCall); ok && fc.Function != nil {
			out = append(out, fc)
		}
	}
	return out
}

func toolDefinitions(tools []agent.Tool) ([]azopenai.ChatCompletionsToolDefinitionClassification, error) {
	defs := make([]azopenai.ChatCompletionsToolDefinitionClassification, 0, len(tools))
	for _, t := range tools {
		params, err := json.Marshal(t.Schema())
		if err != nil {
			return nil, errors.Wrapf(err, "marshal schema of %s", t.Name())
		}
		defs = append(defs, &azopenai.ChatCompletionsFunctionToolDefinition{
			Type: to.Ptr("function"),
			Function: &azopenai.ChatCompletionsFunctionToolDefinitionFunction{
				Name:        to.Ptr(t.Name()),
				Description: to.Ptr(t.Description()),
				Parameters:  params,
			},
		})
	}
	return defs, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
