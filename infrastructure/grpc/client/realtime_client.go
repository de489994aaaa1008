package client

import (
	"chat-relay/domain/chat"
	"chat-relay/domain/event"
	pb "chat-relay/infrastructure/grpc/realtimepb"
	"context"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
	"google.golang.org/protobuf/types/known/structpb"
)

// RealtimeClient hides the Struct envelopes of the realtime service behind typed calls.
type RealtimeClient struct {
	client pb.RealtimeClient
}

func NewRealtimeClient(cc grpc.ClientConnInterface) *RealtimeClient {
	return &RealtimeClient{client: pb.NewRealtimeClient(cc)}
}

func withToken(ctx context.Context, token string) context.Context {
	return metadata.AppendToOutgoingContext(ctx, "authorization", "Bearer "+token)
}

// Connect opens a session stream authenticated by token.
func (c *RealtimeClient) Connect(ctx context.Context, token string) (*Session, error) {
	stream, err := c.client.Connect(withToken(ctx, token))
	if err != nil {
		return nil, err
	}
	return &Session{stream: stream}, nil
}

func (c *RealtimeClient) GetPresence(ctx context.Context, token string, userID chat.UserID) (chat.Presence, error) {
	req, err := structpb.NewStruct(map[string]any{"userId": string(userID)})
	if err != nil {
		return chat.Presence{}, err
	}
	res, err := c.client.GetPresence(withToken(ctx, token), req)
	if err != nil {
		return chat.Presence{}, err
	}
	fields := res.GetFields()
	presence := chat.Presence{
		UserID: chat.UserID(fields["userId"].GetStringValue()),
		Online: fields["online"].GetBoolValue(),
	}
	if raw := fields["lastSeen"].GetStringValue(); raw != "" {
		lastSeen, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			return chat.Presence{}, err
		}
		presence.LastSeen = lastSeen
	}
	return presence, nil
}

// Session is one open stream. Send and Recv may be used from two different goroutines.
type Session struct {
	stream grpc.BidiStreamingClient[structpb.Struct, structpb.Struct]
}

// Send writes one inbound frame. data must marshal to a JSON object.
func (s *Session) Send(eventType event.Name, ref string, data map[string]any) error {
	frame, err := pb.NewEnvelope(string(eventType), ref, data, time.Now())
	if err != nil {
		return err
	}
	return s.stream.Send(frame)
}

// Recv blocks until the next outbound event.
func (s *Session) Recv() (pb.Envelope, error) {
	frame, err := s.stream.Recv()
	if err != nil {
		return pb.Envelope{}, err
	}
	return pb.ParseEnvelope(frame)
}

// Close half-closes the stream, the server then ends the session.
func (s *Session) Close() error {
	return s.stream.CloseSend()
}
