package wire

import (
	"bytes"
	"encoding/gob"
	"encoding/json"
)

// Serializer turns a Message into bytes and back, mirroring the
// request/response split the transport layer carries.
type Serializer interface {
	Serialize(msg Message) ([]byte, error)
	Deserialize(b []byte, msg *Message) error
}

// NewJSONSerializer returns a Serializer backed by encoding/json.
func NewJSONSerializer() Serializer { return jsonSerializer{} }

type jsonSerializer struct{}

func (jsonSerializer) Serialize(msg Message) ([]byte, error) { return json.Marshal(msg) }
func (jsonSerializer) Deserialize(b []byte, msg *Message) error { return json.Unmarshal(b, msg) }

// NewGOBSerializer returns a Serializer backed by encoding/gob.
func NewGOBSerializer() Serializer { return gobSerializer{} }

type gobSerializer struct{}

func (gobSerializer) Serialize(msg Message) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(msg); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (gobSerializer) Deserialize(b []byte, msg *Message) error {
	return gob.NewDecoder(bytes.NewReader(b)).Decode(msg)
}
