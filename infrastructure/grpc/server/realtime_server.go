package server

import (
	"chat-relay/auth"
	"chat-relay/domain/chat"
	"chat-relay/domain/event"
	"chat-relay/errors"
	pb "chat-relay/infrastructure/grpc/realtimepb"
	"chat-relay/runtime"
	"chat-relay/sink"
	"context"
	"io"
	"log/slog"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// ISessions is the part of the orchestrator the transport needs.
type ISessions interface {
	NewSession() *runtime.SessionHandler
	GetPresence(ctx context.Context, userID chat.UserID) (chat.Presence, error)
}

type RealtimeServer struct {
	log             *slog.Logger
	sessions        ISessions
	bufferSize      int
	deliveryTimeout time.Duration
}

var _ pb.RealtimeServer = (*RealtimeServer)(nil)

func NewRealtimeServer(log *slog.Logger, sessions ISessions, bufferSize int, deliveryTimeout time.Duration) *RealtimeServer {
	return &RealtimeServer{
		log:             log,
		sessions:        sessions,
		bufferSize:      bufferSize,
		deliveryTimeout: deliveryTimeout,
	}
}

// Connect runs one session for the lifetime of the stream.
// A reader goroutine feeds inbound frames to the session in order, while this goroutine
// is the only one writing to the stream.
func (s *RealtimeServer) Connect(stream grpc.BidiStreamingServer[structpb.Struct, structpb.Struct]) error {
	ctx := stream.Context()
	session := s.sessions.NewSession()
	user, err := session.Authenticate(ctx, auth.BearerFromMetadata(ctx))
	if err != nil {
		return errors.MapToGRPCError(err)
	}

	out := sink.NewConnectionSink(s.log, s.bufferSize, s.deliveryTimeout)
	if err := session.Activate(ctx, out); err != nil {
		out.Close()
		return errors.MapToGRPCError(err)
	}
	defer func() {
		session.Close(context.WithoutCancel(ctx))
		out.Close()
	}()

	readErr := make(chan error, 1)
	go s.read(ctx, stream, session, readErr)

	for {
		select {
		case <-ctx.Done():
			s.log.Info("Client disconnected", "user_id", user.ID)
			return nil
		case err := <-readErr:
			if err == io.EOF {
				return nil
			}
			return err
		case <-out.Done():
			// Closed by the server shutdown: flush what is left, then end the stream.
			for _, e := range out.Pending() {
				if err := s.send(stream, user, e); err != nil {
					return err
				}
			}
			return nil
		case e := <-out.Events():
			if err := s.send(stream, user, e); err != nil {
				return err
			}
		}
	}
}

func (s *RealtimeServer) send(stream grpc.BidiStreamingServer[structpb.Struct, structpb.Struct], user chat.User, e event.Event) error {
	frame, err := pb.NewEnvelope(string(e.Name()), "", e.Payload(), time.Now())
	if err != nil {
		s.log.Error("Failed to encode event", "event", e.Name(), "error", err)
		return nil
	}
	if err := stream.Send(frame); err != nil {
		s.log.Error("Failed to push event to stream",
			"user_id", user.ID,
			"event", e.Name(),
			"error", err)
		return err
	}
	return nil
}

func (s *RealtimeServer) read(ctx context.Context, stream grpc.BidiStreamingServer[structpb.Struct, structpb.Struct],
	session *runtime.SessionHandler, readErr chan<- error) {
	for {
		frame, err := stream.Recv()
		if err != nil {
			readErr <- err
			return
		}
		envelope, err := pb.ParseEnvelope(frame)
		if err != nil {
			s.log.Debug("Unreadable frame data", "type", envelope.Type, "error", err)
		}
		// Rejections are already reported on the stream as error events.
		_ = session.Handle(ctx, event.Inbound{
			Type: event.Name(envelope.Type),
			Ref:  envelope.Ref,
			Data: envelope.Data,
		})
	}
}

// GetPresence answers {userId} with {userId, online, lastSeen}.
func (s *RealtimeServer) GetPresence(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	query := chat.PresenceQuery{UserID: chat.UserID(req.GetFields()["userId"].GetStringValue())}
	if err := chat.ValidateIDs(query); err != nil {
		return nil, errors.MapToGRPCError(err)
	}
	presence, err := s.sessions.GetPresence(ctx, query.UserID)
	if err != nil {
		return nil, errors.MapToGRPCError(err)
	}
	fields := map[string]any{
		"userId": string(presence.UserID),
		"online": presence.Online,
	}
	if !presence.LastSeen.IsZero() {
		fields["lastSeen"] = presence.LastSeen.UTC().Format(time.RFC3339Nano)
	}
	return structpb.NewStruct(fields)
}
