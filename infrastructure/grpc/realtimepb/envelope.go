package realtimepb

import (
	"encoding/json"
	"time"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"
)

// Envelope is the decoded form of a Struct frame.
type Envelope struct {
	Type      string
	Ref       string
	Data      json.RawMessage
	Timestamp string
}

// NewEnvelope builds a frame. data must only hold JSON compatible values.
func NewEnvelope(eventType, ref string, data map[string]any, at time.Time) (*structpb.Struct, error) {
	fields := map[string]any{
		"type":      eventType,
		"timestamp": at.UTC().Format(time.RFC3339Nano),
	}
	if ref != "" {
		fields["ref"] = ref
	}
	if data != nil {
		fields["data"] = data
	}
	return structpb.NewStruct(fields)
}

// ParseEnvelope reads a frame. A missing or non object data field gives empty Data.
func ParseEnvelope(frame *structpb.Struct) (Envelope, error) {
	fields := frame.GetFields()
	envelope := Envelope{
		Type:      fields["type"].GetStringValue(),
		Ref:       fields["ref"].GetStringValue(),
		Timestamp: fields["timestamp"].GetStringValue(),
	}
	data := fields["data"].GetStructValue()
	if data == nil {
		return envelope, nil
	}
	raw, err := protojson.Marshal(data)
	if err != nil {
		return envelope, err
	}
	envelope.Data = raw
	return envelope, nil
}
