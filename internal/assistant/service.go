package assistant

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/smilebright/dental-ai-platform/internal/actions"
	"github.com/smilebright/dental-ai-platform/internal/observability/metrics"
	"github.com/smilebright/dental-ai-platform/pkg/logging"
)

// Low temperature for increased determinism. The model is still free to
// vary; every downstream guarantee comes from normalization, not from this.
const chatTemperature = 0.2

const serviceUnavailableMessage = "service unavailable"

// ChatActionRequest is one inbound patient chat turn.
type ChatActionRequest struct {
	PatientID uuid.UUID
	Message   string
	History   []ChatMessage
	Context   PatientContext
}

// ChatActionResult is the normalized assistant output. Action is always a
// catalog member and Response is never empty.
type ChatActionResult struct {
	Action      actions.Action `json:"action"`
	Data        any            `json:"data"`
	Response    string         `json:"response"`
	RawResponse string         `json:"rawResponse,omitempty"`
}

// Service turns free-text patient requests into catalog actions. It wraps
// the external language model and enforces the structured-output contract
// the model itself cannot be trusted to honor.
type Service struct {
	llm     LLMClient
	history *HistoryStore
	metrics *metrics.AssistantMetrics
	logger  *logging.Logger
	now     func() time.Time
}

// NewService constructs the intent normalizer.
func NewService(llm LLMClient, history *HistoryStore, m *metrics.AssistantMetrics, logger *logging.Logger) *Service {
	if llm == nil {
		panic("assistant: llm client required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{
		llm:     llm,
		history: history,
		metrics: m,
		logger:  logger.Named("assistant"),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// llmReply is the shape the model is instructed to produce.
type llmReply struct {
	Action   string          `json:"action"`
	Data     json.RawMessage `json:"data"`
	Response string          `json:"response"`
}

// ChatAction classifies one patient message into a catalog action. It never
// returns an error: any failure along the way degrades into a well-formed
// general response.
func (s *Service) ChatAction(ctx context.Context, req ChatActionRequest) ChatActionResult {
	history := req.History
	if len(history) == 0 && s.history != nil {
		if stored, err := s.history.Load(ctx, req.PatientID); err == nil {
			history = stored
		}
	}

	messages := make([]ChatMessage, 0, len(history)+1)
	messages = append(messages, history...)
	messages = append(messages, ChatMessage{Role: ChatRoleUser, Content: req.Message})

	start := s.now()
	resp, err := s.llm.Complete(ctx, LLMRequest{
		System:      []string{buildSystemPrompt(req.Context, s.now())},
		Messages:    messages,
		Temperature: chatTemperature,
	})
	s.metrics.ObserveLLMLatency("chat_action", time.Since(start).Seconds())

	var result ChatActionResult
	switch {
	case err != nil || strings.TrimSpace(resp.Text) == "":
		if err != nil {
			s.logger.Error("language model call failed", "patient_id", req.PatientID, "error", err)
		} else {
			s.logger.Warn("language model returned empty reply", "patient_id", req.PatientID)
		}
		result = ChatActionResult{
			Action: actions.GeneralResponse,
			Data:   map[string]string{"error": serviceUnavailableMessage},
		}
	default:
		result = s.normalize(resp.Text)
	}

	if strings.TrimSpace(result.Response) == "" {
		result.Response = actions.DefaultResponse(result.Action)
	}
	s.metrics.ObserveChatAction(string(result.Action))

	s.appendHistory(ctx, req.PatientID, history, req.Message, result.Response)
	return result
}

// normalize reconciles the model's raw text against the contract: parse as
// JSON, coerce the action through the catalog, keep the raw text around for
// debugging.
func (s *Service) normalize(raw string) ChatActionResult {
	var reply llmReply
	if err := json.Unmarshal([]byte(extractJSON(raw)), &reply); err != nil {
		// Soft failure: the model talked plain text instead of JSON.
		return ChatActionResult{
			Action:      actions.GeneralResponse,
			Data:        map[string]string{"message": raw},
			Response:    strings.TrimSpace(raw),
			RawResponse: raw,
		}
	}

	action := actions.Coerce(reply.Action)
	var data any
	if len(reply.Data) > 0 && string(reply.Data) != "null" {
		var decoded any
		if err := json.Unmarshal(reply.Data, &decoded); err == nil {
			data = decoded
		}
	}

	return ChatActionResult{
		Action:      action,
		Data:        data,
		Response:    strings.TrimSpace(reply.Response),
		RawResponse: raw,
	}
}

func (s *Service) appendHistory(ctx context.Context, patientID uuid.UUID, prior []ChatMessage, userMessage, assistantReply string) {
	if s.history == nil || patientID == uuid.Nil {
		return
	}
	updated := append(append([]ChatMessage{}, prior...),
		ChatMessage{Role: ChatRoleUser, Content: userMessage},
		ChatMessage{Role: ChatRoleAssistant, Content: assistantReply},
	)
	if err := s.history.Save(ctx, patientID, updated); err != nil {
		s.logger.Warn("failed to persist conversation history", "patient_id", patientID, "error", err)
	}
}

// extractJSON strips markdown code fences and trims to the outermost JSON
// object so a chatty model reply still parses.
func extractJSON(raw string) string {
	text := strings.TrimSpace(raw)
	if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```json")
		text = strings.TrimPrefix(text, "```")
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
		text = strings.TrimSpace(text)
	}
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start >= 0 && end > start {
		return text[start : end+1]
	}
	return text
}
