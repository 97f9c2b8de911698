package agent

import (
	"context"
	"errors"
	"io"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/sashabaranov/go-openai"

	"github.com/wsvoicebridge/voxstream/pkg/models"
)

type openaiChatAgent struct {
	client *openai.Client
}

func NewOpenAIChatAgent(client *openai.Client) ChatAgent {
	return &openaiChatAgent{client: client}
}

func conversationToOpenAiMessages(conversation *models.Conversation) []openai.ChatCompletionMessage {
	result := make([]openai.ChatCompletionMessage, len(conversation.Messages))
	for i, message := range conversation.Messages {
		result[i].Role = message.Role
		result[i].Content = message.Content
	}
	return result
}

// RunPrompt streams one chat completion's tokens on outputChan, closing it
// when the stream ends or ctx is cancelled.
func (o *openaiChatAgent) RunPrompt(ctx context.Context, modelQuality ModelQuality, conversation *models.Conversation, outputChan chan string) error {
	defer close(outputChan)

	model := "gpt-3.5-turbo"
	if modelQuality == SlowerAndSmarter {
		model = "gpt-4"
	}

	startTime := time.Now()
	lastDataReceivedPrintoutTime := time.Now()

	chatRequest := openai.ChatCompletionRequest{
		Model:       model,
		Messages:    conversationToOpenAiMessages(conversation),
		Temperature: 0,
	}
	log.Info().Str("prompt", conversation.GetLastPrompt()).Str("model", chatRequest.Model).Float32("temperature", chatRequest.Temperature).Msg("executeChatRequest")

	completionStream, err := o.client.CreateChatCompletionStream(ctx, chatRequest)
	if err != nil {
		return wrapAgentError(err, "cannot create chat completion stream")
	}
	defer completionStream.Close()

	var contentBuilder strings.Builder
	var debugChunkBuilder strings.Builder

	firstContent := true
	for {
		response, streamRecvErr := completionStream.Recv()
		if firstContent {
			log.Debug().Dur("latency", time.Since(startTime)).Msg("first chat completion token received")
			firstContent = false
		}

		for _, choice := range response.Choices {
			content := choice.Delta.Content
			select {
			case outputChan <- content:
			case <-ctx.Done():
				return wrapAgentError(ctx.Err(), "chat completion cancelled mid-stream")
			}
			contentBuilder.WriteString(content)
			debugChunkBuilder.WriteString(content)

			if time.Since(lastDataReceivedPrintoutTime) >= time.Second {
				lastDataReceivedPrintoutTime = time.Now()
				lastChunk := debugChunkBuilder.String()
				debugChunkBuilder.Reset()
				log.Debug().Float64("time_elapsed", time.Since(startTime).Seconds()).Str("last_content", lastChunk).Msg("chat completion stream status")
			}
		}

		if streamRecvErr != nil {
			if errors.Is(streamRecvErr, io.EOF) {
				break
			}
			return wrapAgentError(streamRecvErr, "chat completion stream read failed")
		}
	}

	log.Info().Dur("time_elapsed", time.Since(startTime)).Str("response", contentBuilder.String()).Msg("chat completion finished")
	return nil
}
