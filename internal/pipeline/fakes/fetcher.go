package fakes

import (
	"context"
	"sync"

	"github.com/paketo-buildpacks/tally/internal/oci"
)

type Fetcher struct {
	FetchCall struct {
		mutex     sync.Mutex
		CallCount int
		Receives  struct {
			Ctx       context.Context
			Reference string
		}
		Returns struct {
			Layout oci.Layout
			Error  error
		}
		Stub func(context.Context, string) (oci.Layout, error)
	}
}

func (f *Fetcher) Fetch(param1 context.Context, param2 string) (oci.Layout, error) {
	f.FetchCall.mutex.Lock()
	defer f.FetchCall.mutex.Unlock()
	f.FetchCall.CallCount++
	f.FetchCall.Receives.Ctx = param1
	f.FetchCall.Receives.Reference = param2
	if f.FetchCall.Stub != nil {
		return f.FetchCall.Stub(param1, param2)
	}
	return f.FetchCall.Returns.Layout, f.FetchCall.Returns.Error
}
