package chat

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/wuwenbin0122/chatgate/internal/ollama"
	"github.com/wuwenbin0122/chatgate/internal/utils"
)

const (
	defaultTimeout      = 120 * time.Second
	defaultSystemPrompt = "You are a helpful assistant."
)

type Generator interface {
	Generate(ctx context.Context, req ollama.GenerateRequest) (*ollama.GenerateResponse, error)
}

// Recorder accepts a finished exchange for persistence. Implementations
// must not block the caller and must not report failures back to it.
type Recorder interface {
	Record(userMessage, assistantMessage string)
}

// Request is one chat call. A nil SystemPrompt selects the configured
// default.
type Request struct {
	Message      string
	SystemPrompt *string
}

type Response struct {
	Response string `json:"response"`
	Model    string `json:"model"`
}

type Options struct {
	Model               string
	DefaultSystemPrompt string
	Timeout             time.Duration
}

type Service struct {
	generator Generator
	recorder  Recorder
	opts      Options
	logger    *zap.Logger
}

func NewService(generator Generator, recorder Recorder, opts Options, logger *zap.Logger) *Service {
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	if strings.TrimSpace(opts.DefaultSystemPrompt) == "" {
		opts.DefaultSystemPrompt = defaultSystemPrompt
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Service{generator: generator, recorder: recorder, opts: opts, logger: logger}
}

func (s *Service) Model() string {
	return s.opts.Model
}

// Chat forwards the message to the inference server and returns its reply.
// The exchange is handed to the recorder only after a successful call;
// whatever happens to it afterwards does not affect the returned response.
func (s *Service) Chat(ctx context.Context, req Request, identity string) (*Response, error) {
	const op = "chat.Chat"

	if identity == "" {
		return nil, utils.E(utils.CodeUnauthorized, op, "unauthorized", nil)
	}

	system := s.opts.DefaultSystemPrompt
	if req.SystemPrompt != nil {
		system = *req.SystemPrompt
	}

	ctx, cancel := context.WithTimeout(ctx, s.opts.Timeout)
	defer cancel()

	result, err := s.generator.Generate(ctx, ollama.GenerateRequest{
		Model:  s.opts.Model,
		Prompt: req.Message,
		System: system,
		Stream: false,
	})
	if err != nil {
		return nil, classifyUpstream(op, err)
	}

	reply := ""
	if result != nil {
		reply = result.Response
	}

	if s.recorder != nil {
		s.recorder.Record(req.Message, reply)
	}

	return &Response{Response: reply, Model: s.opts.Model}, nil
}

func classifyUpstream(op string, err error) error {
	switch ollama.KindOf(err) {
	case ollama.KindTimeout:
		return utils.E(utils.CodeUpstreamTimeout, op, "ollama timeout", err)
	case ollama.KindStatus:
		return utils.E(utils.CodeUpstreamFailure, op, "ollama request failed", err)
	case ollama.KindDecode:
		return utils.E(utils.CodeUpstreamFailure, op, "ollama returned malformed output", err)
	default:
		return utils.E(utils.CodeUpstreamFailure, op, "ollama error: "+err.Error(), err)
	}
}
