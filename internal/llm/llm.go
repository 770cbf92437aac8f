// Package llm answers free-form pilot questions through OpenAI-compatible
// chat completion APIs, with provider fallback and rate limiting.
package llm

import "context"

// Completer produces a single answer for a prompt.
type Completer interface {
	Complete(ctx context.Context, p Prompt) (string, error)
}

// Exchange is one earlier utterance and the reply given to it.
type Exchange struct {
	Utterance string
	Response  string
}

// Prompt is a question with its system instructions and recent context.
type Prompt struct {
	System   string
	History  []Exchange
	Question string
}

// Message is one chat message in OpenAI wire form.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Messages flattens the prompt into chat messages, oldest first.
func (p Prompt) Messages() []Message {
	msgs := make([]Message, 0, 2+2*len(p.History))
	if p.System != "" {
		msgs = append(msgs, Message{Role: "system", Content: p.System})
	}
	for _, ex := range p.History {
		msgs = append(msgs,
			Message{Role: "user", Content: ex.Utterance},
			Message{Role: "assistant", Content: ex.Response},
		)
	}
	return append(msgs, Message{Role: "user", Content: p.Question})
}
