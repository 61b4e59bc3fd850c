package fakes

import "sync"

type Extractor struct {
	ExtractCall struct {
		mutex     sync.Mutex
		CallCount int
		Receives  struct {
			IsoPath string
		}
		Returns struct {
			String string
			Error  error
		}
		Stub func(string) (string, error)
	}
	LabelCall struct {
		mutex     sync.Mutex
		CallCount int
		Receives  struct {
			IsoPath string
		}
		Returns struct {
			String string
			Error  error
		}
		Stub func(string) (string, error)
	}
}

func (f *Extractor) Extract(param1 string) (string, error) {
	f.ExtractCall.mutex.Lock()
	defer f.ExtractCall.mutex.Unlock()
	f.ExtractCall.CallCount++
	f.ExtractCall.Receives.IsoPath = param1
	if f.ExtractCall.Stub != nil {
		return f.ExtractCall.Stub(param1)
	}
	return f.ExtractCall.Returns.String, f.ExtractCall.Returns.Error
}
func (f *Extractor) Label(param1 string) (string, error) {
	f.LabelCall.mutex.Lock()
	defer f.LabelCall.mutex.Unlock()
	f.LabelCall.CallCount++
	f.LabelCall.Receives.IsoPath = param1
	if f.LabelCall.Stub != nil {
		return f.LabelCall.Stub(param1)
	}
	return f.LabelCall.Returns.String, f.LabelCall.Returns.Error
}
