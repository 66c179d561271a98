package report

import (
	jsoniter "github.com/json-iterator/go"
	"google.golang.org/grpc/encoding"
)

// CodecName is the gRPC content-subtype under which the JSON codec is registered.
const CodecName = "json"

var json = jsoniter.ConfigCompatibleWithStandardLibrary

type codec struct{}

func (codec) Marshal(v interface{}) ([]byte, error)      { return json.Marshal(v) }
func (codec) Unmarshal(data []byte, v interface{}) error { return json.Unmarshal(data, v) }
func (codec) Name() string                               { return CodecName }

func init() {
	encoding.RegisterCodec(codec{})
}
