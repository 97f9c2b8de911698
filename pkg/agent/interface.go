package agent

import (
	"context"

	"github.com/wsvoicebridge/voxstream/pkg/models"
)

type ModelQuality int

// Declare constants with the custom type. These are your enum values.
const (
	FastAndCheap ModelQuality = iota
	SlowerAndSmarter
)

func (m ModelQuality) String() string {
	names := [...]string{
		"FastAndCheap",
		"SlowerAndSmarter",
	}

	if m < FastAndCheap || m > SlowerAndSmarter {
		return "Unknown"
	}

	return names[m]
}

// ChatAgent runs one chat completion over a conversation, streaming
// response tokens on outputChan. ctx carries the owning session's
// lifetime: cancelling it abandons the completion stream rather than
// leaving it running past a closed connection.
// TODO: Feels like we need a better interface here, but lets wait until conversation.go evolves.
// - Probably needs to be stateful.
type ChatAgent interface {
	RunPrompt(ctx context.Context, modelQuality ModelQuality, conversation *models.Conversation, outputChan chan string) error
}
