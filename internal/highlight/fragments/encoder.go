package fragments

import "html"

// Encoder escapes source text before it is written into a fragment.
type Encoder interface {
	Encode(text string) string
}

type defaultEncoder struct{}

func (defaultEncoder) Encode(text string) string { return text }

type htmlEncoder struct{}

func (htmlEncoder) Encode(text string) string { return html.EscapeString(text) }

// EncoderFor returns the encoder registered under name; anything other than
// "html" leaves text untouched.
func EncoderFor(name string) Encoder {
	if name == "html" {
		return htmlEncoder{}
	}
	return defaultEncoder{}
}
