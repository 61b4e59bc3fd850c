package fakes

import (
	"context"
	"sync"
)

type Store struct {
	UploadCall struct {
		mutex     sync.Mutex
		CallCount int
		Receives  struct {
			Ctx         context.Context
			LocalPath   string
			Key         string
			ContentType string
		}
		Returns struct {
			Error error
		}
		Stub func(context.Context, string, string, string) error
	}
}

func (f *Store) Upload(param1 context.Context, param2 string, param3 string, param4 string) error {
	f.UploadCall.mutex.Lock()
	defer f.UploadCall.mutex.Unlock()
	f.UploadCall.CallCount++
	f.UploadCall.Receives.Ctx = param1
	f.UploadCall.Receives.LocalPath = param2
	f.UploadCall.Receives.Key = param3
	f.UploadCall.Receives.ContentType = param4
	if f.UploadCall.Stub != nil {
		return f.UploadCall.Stub(param1, param2, param3, param4)
	}
	return f.UploadCall.Returns.Error
}
