package domain

import (
	"github.com/asynkron/protoactor-go/actor"
)

type ActorRef actor.PID

type ActorRequestMixIn struct {
	ReplyToRef *ActorRef
}

type ActorRequest interface {
	ReplyTo() *ActorRef
}

func (r ActorRequestMixIn) ReplyTo() *ActorRef {
	return r.ReplyToRef
}

func ReplyToPID(pid *actor.PID) ActorRequestMixIn {
	return ActorRequestMixIn{ReplyToRef: (*ActorRef)(pid)}
}

type ActorResponseMixIn struct {
	ResponseError error
}

func (r ActorResponseMixIn) GetResponseError() error {
	return r.ResponseError
}

func (r ActorResponseMixIn) HasResponseError() bool {
	return r.ResponseError != nil
}

func ErrorResponse(err error) ActorResponseMixIn {
	return ActorResponseMixIn{ResponseError: err}
}

type ActorResponse interface {
	GetResponseError() error
	HasResponseError() bool
}
