// Package form builds the parts of multipart/form-data request bodies.
//
// Nothing in this package reads a stream. Values are described here and read
// by a transport when the request is sent.
package form

import (
	"fmt"
	"io"
)

// PlaceholderFilename is given to file parts whose value carries no name.
const PlaceholderFilename = "_"

// PartOptions describes how a part's content is presented.
type PartOptions struct {
	Filename    string `json:"filename,omitempty"`
	ContentType string `json:"contentType,omitempty"`
}

// FilePart is the normalized content of a file-like field.
// Value is one of []byte, string or io.Reader.
type FilePart struct {
	Value   interface{}
	Options PartOptions
}

// NamedReader is a stream that knows where it came from, such as *os.File.
// Transports derive the part filename from Name.
type NamedReader interface {
	io.Reader
	Name() string
}

// Normalize guarantees a usable filename for an upload value.
//
// A NamedReader with a non-empty name and a *FilePart that already has a
// filename are returned as is. A *FilePart without a filename yields a new
// *FilePart with the placeholder name; the input is left untouched. Raw
// bytes, strings and unnamed streams are wrapped in a new *FilePart.
// Callers can compare the result with the input to tell whether wrapping
// happened.
func Normalize(v interface{}) (interface{}, error) {
	switch in := v.(type) {
	case nil:
		return nil, fmt.Errorf("nil upload value")
	case *FilePart:
		if in == nil {
			return nil, fmt.Errorf("nil upload value")
		}
		if in.Options.Filename != "" {
			return in, nil
		}
		return withPlaceholder(*in)
	case FilePart:
		if in.Options.Filename != "" {
			return &in, nil
		}
		return withPlaceholder(in)
	case NamedReader:
		if in.Name() != "" {
			return in, nil
		}
		return wrap(in), nil
	case []byte:
		return wrap(in), nil
	case string:
		return wrap(in), nil
	case io.Reader:
		return wrap(in), nil
	default:
		return nil, fmt.Errorf("unsupported upload value of type %T", v)
	}
}

func withPlaceholder(in FilePart) (*FilePart, error) {
	switch in.Value.(type) {
	case []byte, string, io.Reader:
	default:
		return nil, fmt.Errorf("unsupported file part value of type %T", in.Value)
	}
	opts := in.Options
	opts.Filename = PlaceholderFilename
	return &FilePart{Value: in.Value, Options: opts}, nil
}

func wrap(v interface{}) *FilePart {
	return &FilePart{Value: v, Options: PartOptions{Filename: PlaceholderFilename}}
}
