package nodes

import (
	"context"
	"errors"
	"fmt"
	"io"

	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/green-credit-copilot/server/internal/stream"
)

// streamKind selects which event type a node's model tokens are emitted as.
type streamKind int

const (
	streamThought streamKind = iota
	streamAnswer
)

// streamGenerate runs one streamed model call, forwarding every content chunk
// to the turn's emitter and returning the concatenated message. Internal
// nodes forward as thought deltas; answer nodes as answer deltas.
func streamGenerate(ctx context.Context, node string, kind streamKind, m einomodel.BaseChatModel, msgs []*schema.Message) (*schema.Message, error) {
	sr, err := m.Stream(ctx, msgs)
	if err != nil {
		return nil, fmt.Errorf("%s model stream: %w", node, err)
	}
	defer sr.Close()

	em := stream.FromContext(ctx)
	var chunks []*schema.Message
	for {
		chunk, err := sr.Recv()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, fmt.Errorf("%s model recv: %w", node, err)
		}
		if chunk == nil {
			continue
		}
		if chunk.Content != "" {
			switch kind {
			case streamAnswer:
				em.Answer(node, chunk.Content)
			default:
				em.Thought(node, chunk.Content)
			}
		}
		chunks = append(chunks, chunk)
	}

	if len(chunks) == 0 {
		return nil, fmt.Errorf("%s model: empty stream", node)
	}
	out, err := schema.ConcatMessages(chunks)
	if err != nil {
		return nil, fmt.Errorf("%s model concat: %w", node, err)
	}
	return out, nil
}
