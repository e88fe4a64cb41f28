package protocol

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// tagged is implemented by every Op and EventMsg variant.
type tagged interface {
	Type() string
}

// marshalTagged encodes v as a JSON object with a leading "type" member.
func marshalTagged(v tagged) ([]byte, error) {
	body, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	body = bytes.TrimSpace(body)
	if len(body) < 2 || body[0] != '{' {
		return nil, fmt.Errorf("%s does not encode as an object", v.Type())
	}

	var buf bytes.Buffer
	buf.WriteString(`{"type":`)
	typ, _ := json.Marshal(v.Type())
	buf.Write(typ)
	if rest := bytes.TrimSpace(body[1:]); len(rest) > 1 {
		buf.WriteByte(',')
		buf.Write(rest)
	} else {
		buf.WriteByte('}')
	}
	return buf.Bytes(), nil
}

// peekType reads the "type" member of a tagged object.
func peekType(data []byte) (string, error) {
	var envelope struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		return "", err
	}
	if envelope.Type == "" {
		return "", fmt.Errorf("missing type")
	}
	return envelope.Type, nil
}
