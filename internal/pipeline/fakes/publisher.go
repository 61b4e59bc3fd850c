package fakes

import (
	"context"
	"sync"
)

type Publisher struct {
	PublishCall struct {
		mutex     sync.Mutex
		CallCount int
		Receives  struct {
			Ctx   context.Context
			Files []string
		}
		Returns struct {
			StringSlice []string
			Error       error
		}
		Stub func(context.Context, []string) ([]string, error)
	}
}

func (f *Publisher) Publish(param1 context.Context, param2 []string) ([]string, error) {
	f.PublishCall.mutex.Lock()
	defer f.PublishCall.mutex.Unlock()
	f.PublishCall.CallCount++
	f.PublishCall.Receives.Ctx = param1
	f.PublishCall.Receives.Files = param2
	if f.PublishCall.Stub != nil {
		return f.PublishCall.Stub(param1, param2)
	}
	return f.PublishCall.Returns.StringSlice, f.PublishCall.Returns.Error
}
