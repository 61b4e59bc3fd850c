package fakes

import (
	"sync"

	"github.com/paketo-buildpacks/tally/internal/scan"
)

type Generator struct {
	GenerateCall struct {
		mutex     sync.Mutex
		CallCount int
		Receives  struct {
			Request scan.Request
		}
		Returns struct {
			String string
			Error  error
		}
		Stub func(scan.Request) (string, error)
	}
}

func (f *Generator) Generate(param1 scan.Request) (string, error) {
	f.GenerateCall.mutex.Lock()
	defer f.GenerateCall.mutex.Unlock()
	f.GenerateCall.CallCount++
	f.GenerateCall.Receives.Request = param1
	if f.GenerateCall.Stub != nil {
		return f.GenerateCall.Stub(param1)
	}
	return f.GenerateCall.Returns.String, f.GenerateCall.Returns.Error
}
