package fakes

import (
	"sync"

	"github.com/paketo-buildpacks/tally/internal/vuln"
)

type ReleaseProbe struct {
	ReleaseCall struct {
		mutex     sync.Mutex
		CallCount int
		Receives  struct {
			SbomPath string
		}
		Returns struct {
			Distro vuln.Distro
			Bool   bool
			Error  error
		}
		Stub func(string) (vuln.Distro, bool, error)
	}
}

func (f *ReleaseProbe) Release(param1 string) (vuln.Distro, bool, error) {
	f.ReleaseCall.mutex.Lock()
	defer f.ReleaseCall.mutex.Unlock()
	f.ReleaseCall.CallCount++
	f.ReleaseCall.Receives.SbomPath = param1
	if f.ReleaseCall.Stub != nil {
		return f.ReleaseCall.Stub(param1)
	}
	return f.ReleaseCall.Returns.Distro, f.ReleaseCall.Returns.Bool, f.ReleaseCall.Returns.Error
}
