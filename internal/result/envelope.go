package result

import "fmt"

// Kind tags an envelope.
type Kind int

const (
	KindLoading Kind = iota
	KindSuccess
	KindError
)

func (k Kind) String() string {
	switch k {
	case KindLoading:
		return "loading"
	case KindSuccess:
		return "success"
	case KindError:
		return "error"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Envelope is one published outcome: a progress message, a value, or an error message.
type Envelope[T any] struct {
	Kind    Kind
	Message string
	Value   T
}

func Loading[T any](msg string) Envelope[T] {
	return Envelope[T]{Kind: KindLoading, Message: msg}
}

func Success[T any](v T) Envelope[T] {
	return Envelope[T]{Kind: KindSuccess, Value: v}
}

func Error[T any](msg string) Envelope[T] {
	return Envelope[T]{Kind: KindError, Message: msg}
}

func (e Envelope[T]) IsLoading() bool { return e.Kind == KindLoading }
func (e Envelope[T]) IsSuccess() bool { return e.Kind == KindSuccess }
func (e Envelope[T]) IsError() bool   { return e.Kind == KindError }

func (e Envelope[T]) String() string {
	if e.Kind == KindSuccess {
		return fmt.Sprintf("success(%v)", e.Value)
	}
	return fmt.Sprintf("%s(%q)", e.Kind, e.Message)
}
