package fakes

import "sync"

type Converter struct {
	ConvertToOCICall struct {
		mutex     sync.Mutex
		CallCount int
		Receives  struct {
			Path        string
			Destination string
		}
		Returns struct {
			String string
			Error  error
		}
		Stub func(string, string) (string, error)
	}
}

func (f *Converter) ConvertToOCI(param1 string, param2 string) (string, error) {
	f.ConvertToOCICall.mutex.Lock()
	defer f.ConvertToOCICall.mutex.Unlock()
	f.ConvertToOCICall.CallCount++
	f.ConvertToOCICall.Receives.Path = param1
	f.ConvertToOCICall.Receives.Destination = param2
	if f.ConvertToOCICall.Stub != nil {
		return f.ConvertToOCICall.Stub(param1, param2)
	}
	return f.ConvertToOCICall.Returns.String, f.ConvertToOCICall.Returns.Error
}
